package domain

// KnowledgeBaseEntry maps a canonical normalized title to curated or
// scrape-verified counts. Aliases are alternate normalized titles that
// resolve to the same entry.
type KnowledgeBaseEntry struct {
	Title    string   `json:"title"`
	Chapters int      `json:"chapters"`
	Volumes  int      `json:"volumes"`
	Aliases  []string `json:"aliases,omitempty"`
}

// KnowledgeBase is the restart-durable, never-stale complement to the
// persistent cache. Record overwrites unconditionally, last write wins.
type KnowledgeBase interface {
	Lookup(titleNormalized string) (*KnowledgeBaseEntry, bool)
	Record(titleNormalized, displayTitle string, chapters, volumes int) error
	Len() int
}
