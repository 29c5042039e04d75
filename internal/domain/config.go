package domain

import "time"

// Config holds all runtime configuration, loaded by internal/config.
type Config struct {
	DBDir             string
	KnowledgeBasePath string
	ListenAddr        string
	LogLevel          string

	MalClientID string
	UserAgent   string

	AdapterTimeout time.Duration
	RateInterval   time.Duration
	RetryBackoff   time.Duration

	// FreshOngoing and FreshCompleted are the staleness thresholds for
	// cache entries of publishing and finished series respectively.
	FreshOngoing   time.Duration
	FreshCompleted time.Duration

	// EstimateChaptersPerVolume drives the volume estimation fallback
	// (volumes = ceil(chapters / ratio)).
	EstimateChaptersPerVolume int

	EnabledSources []string
}

// SourceEnabled reports whether the named adapter should be constructed. An
// empty EnabledSources list enables everything.
func (c *Config) SourceEnabled(name string) bool {
	if len(c.EnabledSources) == 0 {
		return true
	}
	for _, s := range c.EnabledSources {
		if s == name {
			return true
		}
	}
	return false
}
