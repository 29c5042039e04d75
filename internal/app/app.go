package app

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tankodb/internal/config"
	"github.com/varoOP/tankodb/internal/database"
	"github.com/varoOP/tankodb/internal/domain"
	"github.com/varoOP/tankodb/internal/knowledgebase"
	"github.com/varoOP/tankodb/internal/logger"
	"github.com/varoOP/tankodb/internal/resolver"
	"github.com/varoOP/tankodb/internal/server"
	"github.com/varoOP/tankodb/internal/sources"
)

// App holds the wired application: configuration, storage, knowledge base
// and the resolver built on top of them.
type App struct {
	Log           zerolog.Logger
	Config        *domain.Config
	Resolver      resolver.Service
	KnowledgeBase *knowledgebase.Service

	db       *database.DB
	registry *prometheus.Registry
}

// NewApp loads configuration and initializes every dependency.
func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}

	log := logger.NewLoggerWithLevel(cfg.LogLevel)

	db, err := database.NewDB(cfg.DBDir, log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize database")
	}

	kb, err := knowledgebase.NewService(log, cfg.KnowledgeBasePath)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to load knowledge base")
	}

	adapters := sources.Enabled(log, cfg)
	log.Debug().Int("adapters", len(adapters)).Msg("Constructed source adapters")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := resolver.NewMetrics(registry)

	cacheRepo := database.NewCacheRepo(log, db)
	svc := resolver.NewService(log, cfg, cacheRepo, kb, adapters, metrics)

	return &App{
		Log:           log,
		Config:        cfg,
		Resolver:      svc,
		KnowledgeBase: kb,
		db:            db,
		registry:      registry,
	}, nil
}

// Serve runs the HTTP API until the listener fails.
func (a *App) Serve() error {
	srv := server.New(a.Log, a.Config.ListenAddr, a.Resolver, a.registry)
	return srv.Open()
}

// Close releases the database handle.
func (a *App) Close() error {
	return a.db.Close()
}
