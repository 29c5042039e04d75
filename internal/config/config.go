package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/varoOP/tankodb/internal/domain"
)

// Load builds the configuration from viper, which merges the optional config
// file, TANKODB_* environment variables and bound flags. Missing keys fall
// back to defaults; invalid values fail loudly here rather than deep inside
// the resolver.
func Load() (*domain.Config, error) {
	setDefaults()

	cfg := &domain.Config{
		DBDir:             viper.GetString("db_dir"),
		KnowledgeBasePath: viper.GetString("knowledge_base_path"),
		ListenAddr:        viper.GetString("listen_addr"),
		LogLevel:          viper.GetString("log_level"),

		MalClientID: viper.GetString("mal_client_id"),
		UserAgent:   viper.GetString("user_agent"),

		AdapterTimeout: viper.GetDuration("adapter_timeout"),
		RateInterval:   viper.GetDuration("rate_interval"),
		RetryBackoff:   viper.GetDuration("retry_backoff"),

		FreshOngoing:   viper.GetDuration("fresh_ongoing"),
		FreshCompleted: viper.GetDuration("fresh_completed"),

		EstimateChaptersPerVolume: viper.GetInt("estimate_chapters_per_volume"),

		EnabledSources: viper.GetStringSlice("enabled_sources"),
	}

	if cfg.AdapterTimeout <= 0 {
		return nil, fmt.Errorf("adapter_timeout must be positive, got %s", cfg.AdapterTimeout)
	}
	if cfg.FreshOngoing <= 0 || cfg.FreshCompleted <= 0 {
		return nil, fmt.Errorf("staleness thresholds must be positive (fresh_ongoing=%s, fresh_completed=%s)",
			cfg.FreshOngoing, cfg.FreshCompleted)
	}
	if cfg.FreshCompleted < cfg.FreshOngoing {
		return nil, fmt.Errorf("fresh_completed (%s) must not be shorter than fresh_ongoing (%s)",
			cfg.FreshCompleted, cfg.FreshOngoing)
	}
	if cfg.EstimateChaptersPerVolume <= 0 {
		return nil, fmt.Errorf("estimate_chapters_per_volume must be positive, got %d",
			cfg.EstimateChaptersPerVolume)
	}
	if cfg.RateInterval < 0 || cfg.RetryBackoff < 0 {
		return nil, fmt.Errorf("rate_interval and retry_backoff must not be negative")
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("db_dir", ".")
	viper.SetDefault("knowledge_base_path", "knowledge_base.json")
	viper.SetDefault("listen_addr", ":7337")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	viper.SetDefault("adapter_timeout", 10*time.Second)
	viper.SetDefault("rate_interval", 500*time.Millisecond)
	viper.SetDefault("retry_backoff", 2*time.Second)
	viper.SetDefault("fresh_ongoing", 30*24*time.Hour)
	viper.SetDefault("fresh_completed", 90*24*time.Hour)
	viper.SetDefault("estimate_chapters_per_volume", 9)
	viper.SetDefault("enabled_sources", []string{})
}
