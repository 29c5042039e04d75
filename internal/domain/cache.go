package domain

import (
	"context"
	"time"
)

// CacheEntry is one row of the persistent count cache, keyed by normalized
// title. It is owned and mutated exclusively by the resolver.
type CacheEntry struct {
	ID              int64
	Title           string
	TitleNormalized string
	ExternalID      string
	ChapterCount    int
	VolumeCount     int
	Source          string
	Status          Status
	CachedAt        time.Time
	RefreshedAt     time.Time
	RefreshCount    int
}

// Resolved converts a cache entry back into the resolver's return type.
func (e *CacheEntry) Resolved() ResolvedCount {
	return ResolvedCount{
		ChapterCount: e.ChapterCount,
		VolumeCount:  e.VolumeCount,
		Source:       e.Source,
		ResolvedAt:   e.RefreshedAt,
	}
}

// CacheRepo defines the persistent cache operations. Upsert must be a single
// atomic insert-or-update on the title_normalized unique key; it is the only
// concurrency guard against duplicate rows for the same title.
type CacheRepo interface {
	Get(ctx context.Context, titleNormalized string) (*CacheEntry, error)
	GetByExternalID(ctx context.Context, externalID string) (*CacheEntry, error)
	Upsert(ctx context.Context, entry CacheEntry) error
	Delete(ctx context.Context, titleNormalized string) error
	Purge(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]CacheEntry, error)
	ListBySource(ctx context.Context, source string) ([]CacheEntry, error)
}
