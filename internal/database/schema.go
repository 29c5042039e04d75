package database

const schema = `
-- Resolved volume/chapter counts keyed by normalized title.
-- The unique constraint is the sole guard against concurrent resolutions
-- of the same title creating duplicate rows.
CREATE TABLE manga_count_cache (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	title_normalized TEXT NOT NULL,
	external_id TEXT,
	chapter_count INTEGER NOT NULL DEFAULT 0,
	volume_count INTEGER NOT NULL DEFAULT 0,
	source TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'unknown',
	cached_at TIMESTAMP NOT NULL,
	refreshed_at TIMESTAMP NOT NULL,
	refresh_count INTEGER NOT NULL DEFAULT 0,
	UNIQUE(title_normalized)
);

CREATE INDEX idx_count_cache_title ON manga_count_cache(title_normalized);
CREATE INDEX idx_count_cache_external_id ON manga_count_cache(external_id);
CREATE INDEX idx_count_cache_refreshed ON manga_count_cache(refreshed_at);
CREATE INDEX idx_count_cache_source ON manga_count_cache(source);
`

// migrations contains incremental schema changes
// Each migration is applied in order based on the current user_version
// migrations[0] is empty because version 0 uses the base schema
var migrations = []string{
	"",
}
