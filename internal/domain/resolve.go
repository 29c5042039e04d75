package domain

import (
	"context"
	"errors"
	"time"
)

// Status is the publication status of a series as reported by a metadata
// source or by the caller importing it.
type Status string

const (
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusFinished  Status = "finished"
	StatusUnknown   Status = "unknown"
)

// Completed reports whether the series is no longer publishing, which puts
// cache entries on the slower refresh schedule.
func (s Status) Completed() bool {
	return s == StatusCompleted || s == StatusFinished
}

// Source names for resolutions that did not come from an adapter. Adapter
// results carry the adapter's own name.
const (
	SourceKnowledgeBase = "knowledge_base"
	SourceEstimate      = "estimate"
)

var (
	// ErrInvalidTitle is returned when a resolution is requested for an
	// empty or whitespace-only title.
	ErrInvalidTitle = errors.New("invalid manga title")

	// ErrNotFound is returned by cache lookups that matched nothing.
	ErrNotFound = errors.New("entry not found")
)

// ResolutionRequest is the input to a single count resolution.
type ResolutionRequest struct {
	Title        string
	ExternalID   string
	Status       Status
	ForceRefresh bool

	// KnownChapters is the chapter count already known to the caller, used
	// only to derive an estimate when every other tier comes up empty.
	KnownChapters int
}

// ResolvedCount is the unit of value produced and cached by the resolver.
// A zero VolumeCount with a nonzero ChapterCount is valid and means
// "chapters known, volumes unknown".
type ResolvedCount struct {
	ChapterCount int       `json:"chapter_count"`
	VolumeCount  int       `json:"volume_count"`
	Source       string    `json:"source"`
	ResolvedAt   time.Time `json:"resolved_at"`
}

// SourceKind distinguishes structured-API adapters from HTML scrapers when
// breaking arbitration ties.
type SourceKind int

const (
	KindAPI SourceKind = iota
	KindScrape
)

// Candidate is one adapter's proposed counts for a title, pre-arbitration.
type Candidate struct {
	Source       string
	Kind         SourceKind
	Priority     int
	ChapterCount int
	VolumeCount  int
	Confidence   float64
}

// Adapter is implemented by each external metadata source. Adapters manage
// their own rate limiting and retries and must be safe for concurrent use.
type Adapter interface {
	Name() string
	Kind() SourceKind
	Priority() int
	Fetch(ctx context.Context, title, externalID string) (*Candidate, error)
}
