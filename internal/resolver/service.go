package resolver

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tankodb/internal/arbiter"
	"github.com/varoOP/tankodb/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Service is the tiered count resolver. Resolve never fails for a valid
// title: it degrades from session cache to persistent cache to knowledge
// base to live sources to an estimate.
type Service interface {
	Resolve(ctx context.Context, req domain.ResolutionRequest) (domain.ResolvedCount, error)
	List(ctx context.Context) ([]domain.CacheEntry, error)
	Clear(ctx context.Context, title string) error
	ClearAll(ctx context.Context) (int64, error)
	Refresh(ctx context.Context, title string) (domain.ResolvedCount, error)
	RefreshBySource(ctx context.Context, source string) (int, error)
}

type service struct {
	log      zerolog.Logger
	cfg      *domain.Config
	cache    domain.CacheRepo
	kb       domain.KnowledgeBase
	adapters []domain.Adapter
	session  *sessionCache
	metrics  *Metrics
	now      func() time.Time
}

func NewService(log zerolog.Logger, cfg *domain.Config, cache domain.CacheRepo, kb domain.KnowledgeBase, adapters []domain.Adapter, metrics *Metrics) Service {
	return &service{
		log:      log.With().Str("module", "resolver").Logger(),
		cfg:      cfg,
		cache:    cache,
		kb:       kb,
		adapters: adapters,
		session:  newSessionCache(),
		metrics:  metrics,
		now:      time.Now,
	}
}

// Resolve walks the tiers in cost order. ForceRefresh skips every cache tier
// and goes straight to the sources. A stale persistent entry is remembered
// and returned in preference to an estimate when the sources come up empty.
func (s *service) Resolve(ctx context.Context, req domain.ResolutionRequest) (domain.ResolvedCount, error) {
	key := domain.NormalizeTitle(req.Title)
	if key == "" {
		return domain.ResolvedCount{}, domain.ErrInvalidTitle
	}

	var stale *domain.CacheEntry

	if !req.ForceRefresh {
		if rc, ok := s.session.get(key); ok {
			s.metrics.resolved(tierSession)
			return rc, nil
		}

		if entry := s.cacheLookup(ctx, key, req.ExternalID); entry != nil {
			if s.fresh(entry) {
				rc := entry.Resolved()
				s.session.set(key, rc)
				s.metrics.resolved(tierPersistent)
				return rc, nil
			}
			s.log.Debug().
				Str("title", req.Title).
				Time("refreshed_at", entry.RefreshedAt).
				Str("status", string(entry.Status)).
				Msg("cache entry is stale, re-resolving")
			s.metrics.staleFound()
			stale = entry
		}

		if kbEntry, ok := s.kb.Lookup(key); ok {
			rc := domain.ResolvedCount{
				ChapterCount: kbEntry.Chapters,
				VolumeCount:  kbEntry.Volumes,
				Source:       domain.SourceKnowledgeBase,
				ResolvedAt:   s.now(),
			}
			s.writeThrough(ctx, key, kbEntry.Title, req, rc, false)
			s.metrics.resolved(tierKnowledge)
			return rc, nil
		}
	}

	candidates := s.fanOut(ctx, req.Title, req.ExternalID)

	if winner, ok := arbiter.Pick(candidates); ok {
		rc := domain.ResolvedCount{
			ChapterCount: winner.ChapterCount,
			VolumeCount:  winner.VolumeCount,
			Source:       winner.Source,
			ResolvedAt:   s.now(),
		}
		s.log.Info().
			Str("title", req.Title).
			Str("source", winner.Source).
			Int("chapters", rc.ChapterCount).
			Int("volumes", rc.VolumeCount).
			Int("candidates", len(candidates)).
			Msg("resolved from sources")
		s.writeThrough(ctx, key, req.Title, req, rc, true)
		s.metrics.resolved(tierScrape)
		return rc, nil
	}

	if stale != nil {
		s.log.Warn().
			Str("title", req.Title).
			Msg("no source produced a candidate, keeping stale cache entry")
		s.metrics.resolved(tierStale)
		return stale.Resolved(), nil
	}

	s.metrics.resolved(tierEstimate)
	return s.estimate(req), nil
}

// cacheLookup reads the persistent cache, falling back to the external id
// when the title key misses. Read failures are logged and treated as cache
// misses so resolution continues through the slower tiers.
func (s *service) cacheLookup(ctx context.Context, key, externalID string) *domain.CacheEntry {
	entry, err := s.cache.Get(ctx, key)
	if err != nil && errors.Is(err, domain.ErrNotFound) && externalID != "" {
		entry, err = s.cache.GetByExternalID(ctx, externalID)
	}
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Error().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		}
		return nil
	}
	return entry
}

// fresh evaluates the status-dependent staleness threshold against the
// entry's own stored status.
func (s *service) fresh(entry *domain.CacheEntry) bool {
	threshold := s.cfg.FreshOngoing
	if entry.Status.Completed() {
		threshold = s.cfg.FreshCompleted
	}
	return s.now().Sub(entry.RefreshedAt) <= threshold
}

// fanOut queries every adapter concurrently, each under its own timeout, and
// joins before arbitration. A slow or failing adapter costs its own
// candidate, nothing else.
func (s *service) fanOut(ctx context.Context, title, externalID string) []domain.Candidate {
	results := make([]*domain.Candidate, len(s.adapters))

	g := new(errgroup.Group)
	for i, ad := range s.adapters {
		i, ad := i, ad
		g.Go(func() error {
			actx, cancel := context.WithTimeout(ctx, s.cfg.AdapterTimeout)
			defer cancel()

			cand, err := ad.Fetch(actx, title, externalID)
			if err != nil {
				s.log.Warn().Err(err).
					Str("adapter", ad.Name()).
					Str("title", title).
					Msg("adapter fetch failed")
				s.metrics.adapterFailed(ad.Name())
				return nil
			}
			results[i] = cand
			return nil
		})
	}
	g.Wait()

	var candidates []domain.Candidate
	for _, r := range results {
		if r != nil {
			candidates = append(candidates, *r)
		}
	}
	return candidates
}

// writeThrough promotes a resolution to the cheaper tiers: session cache and
// persistent cache always, knowledge base only for scrape-verified results.
// Persistence failures are logged and swallowed; the resolution itself
// already succeeded.
func (s *service) writeThrough(ctx context.Context, key, displayTitle string, req domain.ResolutionRequest, rc domain.ResolvedCount, recordKB bool) {
	s.session.set(key, rc)

	if recordKB {
		if err := s.kb.Record(key, displayTitle, rc.ChapterCount, rc.VolumeCount); err != nil {
			s.log.Error().Err(err).Str("title", displayTitle).Msg("failed to record knowledge base entry")
		}
	}

	entry := domain.CacheEntry{
		Title:           displayTitle,
		TitleNormalized: key,
		ExternalID:      req.ExternalID,
		ChapterCount:    rc.ChapterCount,
		VolumeCount:     rc.VolumeCount,
		Source:          rc.Source,
		Status:          req.Status,
	}
	if err := s.cache.Upsert(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("title", displayTitle).Msg("failed to upsert cache entry")
	}
}

// estimate derives counts from whatever the caller already knew. Estimates
// are deliberately never written to any cache tier: caching a guess would
// poison the knowledge base and suppress real resolution attempts.
func (s *service) estimate(req domain.ResolutionRequest) domain.ResolvedCount {
	chapters := req.KnownChapters
	if chapters < 0 {
		chapters = 0
	}

	ratio := s.cfg.EstimateChaptersPerVolume
	if ratio <= 0 {
		ratio = 9
	}

	volumes := 0
	if chapters > 0 {
		volumes = (chapters + ratio - 1) / ratio
	}

	s.log.Info().
		Str("title", req.Title).
		Int("chapters", chapters).
		Int("volumes", volumes).
		Msg("falling back to estimate")

	return domain.ResolvedCount{
		ChapterCount: chapters,
		VolumeCount:  volumes,
		Source:       domain.SourceEstimate,
		ResolvedAt:   s.now(),
	}
}

// List returns every persistent cache entry.
func (s *service) List(ctx context.Context) ([]domain.CacheEntry, error) {
	return s.cache.List(ctx)
}

// Clear removes a single title from the session and persistent caches.
func (s *service) Clear(ctx context.Context, title string) error {
	key := domain.NormalizeTitle(title)
	if key == "" {
		return domain.ErrInvalidTitle
	}

	s.session.delete(key)
	return s.cache.Delete(ctx, key)
}

// ClearAll purges both caches and returns the number of persistent rows
// removed. The knowledge base is untouched; it is curated data, not cache.
func (s *service) ClearAll(ctx context.Context) (int64, error) {
	s.session.clear()
	return s.cache.Purge(ctx)
}

// Refresh re-resolves one title, bypassing every cache tier.
func (s *service) Refresh(ctx context.Context, title string) (domain.ResolvedCount, error) {
	return s.Resolve(ctx, domain.ResolutionRequest{Title: title, ForceRefresh: true})
}

// RefreshBySource force-refreshes every cache entry previously resolved by
// the named source and returns how many entries were re-resolved.
func (s *service) RefreshBySource(ctx context.Context, source string) (int, error) {
	entries, err := s.cache.ListBySource(ctx, source)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to list entries for source %s", source)
	}

	refreshed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}

		req := domain.ResolutionRequest{
			Title:        entry.Title,
			ExternalID:   entry.ExternalID,
			Status:       entry.Status,
			ForceRefresh: true,
		}
		if _, err := s.Resolve(ctx, req); err != nil {
			s.log.Warn().Err(err).Str("title", entry.Title).Msg("bulk refresh failed for entry")
			continue
		}
		refreshed++
	}

	s.log.Info().Str("source", source).Int("refreshed", refreshed).Msg("bulk refresh complete")
	return refreshed, nil
}
