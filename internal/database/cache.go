package database

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tankodb/internal/domain"
)

// CacheRepo implements domain.CacheRepo on the sqlite cache table.
type CacheRepo struct {
	log zerolog.Logger
	db  *DB
}

// NewCacheRepo creates a new cache repository
func NewCacheRepo(log zerolog.Logger, db *DB) domain.CacheRepo {
	return &CacheRepo{
		log: log.With().Str("repo", "cache").Logger(),
		db:  db,
	}
}

var entryColumns = []string{
	"id", "title", "title_normalized", "external_id", "chapter_count",
	"volume_count", "source", "status", "cached_at", "refreshed_at",
	"refresh_count",
}

// Get returns the cache entry for a normalized title.
func (r *CacheRepo) Get(ctx context.Context, titleNormalized string) (*domain.CacheEntry, error) {
	return r.getOne(ctx, sq.Eq{"title_normalized": titleNormalized})
}

// GetByExternalID returns the cache entry carrying the given provider id.
func (r *CacheRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.CacheEntry, error) {
	return r.getOne(ctx, sq.Eq{"external_id": externalID})
}

func (r *CacheRepo) getOne(ctx context.Context, where sq.Eq) (*domain.CacheEntry, error) {
	queryBuilder := r.db.squirrel.
		Select(entryColumns...).
		From("manga_count_cache").
		Where(where).
		Limit(1)

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Get")

	row := r.db.handler.QueryRowContext(ctx, query, args...)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrap(err, "error scanning row")
	}

	return entry, nil
}

// Upsert inserts a new row for the entry's normalized title or, when one
// already exists, overwrites its counts and bumps refreshed_at and
// refresh_count. Executed as a single conditional statement so concurrent
// resolutions of the same title cannot race into duplicate rows. The stored
// status is only replaced when the incoming entry carries a known status.
func (r *CacheRepo) Upsert(ctx context.Context, entry domain.CacheEntry) error {
	now := time.Now().Format(time.RFC3339)

	status := entry.Status
	if status == "" {
		status = domain.StatusUnknown
	}

	queryBuilder := r.db.squirrel.
		Insert("manga_count_cache").
		Columns("title", "title_normalized", "external_id", "chapter_count",
			"volume_count", "source", "status", "cached_at", "refreshed_at",
			"refresh_count").
		Values(entry.Title, entry.TitleNormalized, entry.ExternalID,
			entry.ChapterCount, entry.VolumeCount, entry.Source, string(status),
			now, now, 0).
		Suffix(`ON CONFLICT (title_normalized) DO UPDATE SET
			chapter_count = excluded.chapter_count,
			volume_count = excluded.volume_count,
			source = excluded.source,
			external_id = CASE WHEN excluded.external_id != '' THEN excluded.external_id ELSE external_id END,
			status = CASE WHEN excluded.status != 'unknown' THEN excluded.status ELSE status END,
			refreshed_at = excluded.refreshed_at,
			refresh_count = refresh_count + 1`)

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Upsert")

	_, err = r.db.handler.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "error executing query")
	}

	return nil
}

// Delete removes a single cache entry by normalized title.
func (r *CacheRepo) Delete(ctx context.Context, titleNormalized string) error {
	queryBuilder := r.db.squirrel.
		Delete("manga_count_cache").
		Where(sq.Eq{"title_normalized": titleNormalized})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building delete query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Delete")

	res, err := r.db.handler.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "error executing delete query")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// Purge removes every cache entry and returns how many rows went away.
func (r *CacheRepo) Purge(ctx context.Context) (int64, error) {
	query, args, err := r.db.squirrel.Delete("manga_count_cache").ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "error building purge query")
	}

	r.log.Trace().Str("query", query).Msg("Purge")

	res, err := r.db.handler.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "error executing purge query")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "error counting purged rows")
	}

	return n, nil
}

// List returns all cache entries, most recently refreshed first.
func (r *CacheRepo) List(ctx context.Context) ([]domain.CacheEntry, error) {
	return r.list(ctx, nil)
}

// ListBySource returns the cache entries resolved by the named source.
func (r *CacheRepo) ListBySource(ctx context.Context, source string) ([]domain.CacheEntry, error) {
	return r.list(ctx, sq.Eq{"source": source})
}

func (r *CacheRepo) list(ctx context.Context, where sq.Eq) ([]domain.CacheEntry, error) {
	queryBuilder := r.db.squirrel.
		Select(entryColumns...).
		From("manga_count_cache").
		OrderBy("refreshed_at DESC")

	if where != nil {
		queryBuilder = queryBuilder.Where(where)
	}

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("List")

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	var entries []domain.CacheEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*domain.CacheEntry, error) {
	var (
		entry      domain.CacheEntry
		externalID sql.NullString
		status     string
		cachedAt   string
		refreshed  string
	)

	if err := row.Scan(&entry.ID, &entry.Title, &entry.TitleNormalized,
		&externalID, &entry.ChapterCount, &entry.VolumeCount, &entry.Source,
		&status, &cachedAt, &refreshed, &entry.RefreshCount); err != nil {
		return nil, err
	}

	entry.ExternalID = externalID.String
	entry.Status = domain.Status(status)

	var err error
	if entry.CachedAt, err = time.Parse(time.RFC3339, cachedAt); err != nil {
		return nil, errors.Wrapf(err, "bad cached_at for %s", entry.TitleNormalized)
	}
	if entry.RefreshedAt, err = time.Parse(time.RFC3339, refreshed); err != nil {
		return nil, errors.Wrapf(err, "bad refreshed_at for %s", entry.TitleNormalized)
	}

	return &entry, nil
}
