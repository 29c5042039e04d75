package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/varoOP/tankodb/internal/domain"
	"github.com/varoOP/tankodb/internal/resolver"
)

// Server exposes the resolver and its administrative operations over HTTP
// for the import workflow.
type Server struct {
	log      zerolog.Logger
	addr     string
	resolver resolver.Service
	gatherer prometheus.Gatherer
}

func New(log zerolog.Logger, addr string, svc resolver.Service, gatherer prometheus.Gatherer) *Server {
	return &Server{
		log:      log.With().Str("module", "server").Logger(),
		addr:     addr,
		resolver: svc,
		gatherer: gatherer,
	}
}

// Handler builds the route tree. Split from Open so tests can drive it with
// httptest.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	{
		api.POST("/resolve", s.handleResolve)
		api.GET("/cache", s.handleListCache)
		api.DELETE("/cache", s.handleClearCache)
		api.POST("/cache/refresh", s.handleRefreshCache)
	}

	return r
}

// Open starts serving and blocks until the listener fails.
func (s *Server) Open() error {
	s.log.Info().Str("addr", s.addr).Msg("Starting HTTP server")

	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	return srv.ListenAndServe()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

type resolveRequest struct {
	Title         string `json:"title"`
	ExternalID    string `json:"external_id"`
	Status        string `json:"status"`
	ForceRefresh  bool   `json:"force_refresh"`
	KnownChapters int    `json:"known_chapters"`
}

func (s *Server) handleResolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	status := domain.Status(req.Status)
	if status == "" {
		status = domain.StatusUnknown
	}

	rc, err := s.resolver.Resolve(c.Request.Context(), domain.ResolutionRequest{
		Title:         req.Title,
		ExternalID:    req.ExternalID,
		Status:        status,
		ForceRefresh:  req.ForceRefresh,
		KnownChapters: req.KnownChapters,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTitle) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rc)
}

type cacheEntryResponse struct {
	Title           string `json:"title"`
	TitleNormalized string `json:"title_normalized"`
	ExternalID      string `json:"external_id,omitempty"`
	ChapterCount    int    `json:"chapter_count"`
	VolumeCount     int    `json:"volume_count"`
	Source          string `json:"source"`
	Status          string `json:"status"`
	CachedAt        string `json:"cached_at"`
	RefreshedAt     string `json:"refreshed_at"`
	RefreshCount    int    `json:"refresh_count"`
}

func (s *Server) handleListCache(c *gin.Context) {
	entries, err := s.resolver.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]cacheEntryResponse, 0, len(entries))
	bySource := map[string]int{}
	for _, e := range entries {
		bySource[e.Source]++
		out = append(out, cacheEntryResponse{
			Title:           e.Title,
			TitleNormalized: e.TitleNormalized,
			ExternalID:      e.ExternalID,
			ChapterCount:    e.ChapterCount,
			VolumeCount:     e.VolumeCount,
			Source:          e.Source,
			Status:          string(e.Status),
			CachedAt:        e.CachedAt.Format(time.RFC3339),
			RefreshedAt:     e.RefreshedAt.Format(time.RFC3339),
			RefreshCount:    e.RefreshCount,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"count":     len(out),
		"by_source": bySource,
		"entries":   out,
	})
}

// handleClearCache clears one entry when ?title= is given, otherwise purges
// the whole cache.
func (s *Server) handleClearCache(c *gin.Context) {
	if title := c.Query("title"); title != "" {
		if err := s.resolver.Clear(c.Request.Context(), title); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no cache entry for title"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"cleared": 1})
		return
	}

	n, err := s.resolver.ClearAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}

// handleRefreshCache force-refreshes one title (?title=) or every entry
// previously resolved by a source (?source=).
func (s *Server) handleRefreshCache(c *gin.Context) {
	title := c.Query("title")
	source := c.Query("source")

	switch {
	case title != "":
		rc, err := s.resolver.Refresh(c.Request.Context(), title)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidTitle) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rc)

	case source != "":
		n, err := s.resolver.RefreshBySource(c.Request.Context(), source)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"refreshed": n})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "title or source query parameter required"})
	}
}
