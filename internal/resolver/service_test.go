package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tankodb/internal/domain"
)

type fakeCache struct {
	mtx     sync.Mutex
	entries map[string]*domain.CacheEntry
	upserts int
	now     time.Time
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*domain.CacheEntry{}, now: time.Now()}
}

func (c *fakeCache) Get(_ context.Context, key string) (*domain.CacheEntry, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if entry, ok := c.entries[key]; ok {
		cp := *entry
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (c *fakeCache) GetByExternalID(_ context.Context, externalID string) (*domain.CacheEntry, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	for _, entry := range c.entries {
		if entry.ExternalID == externalID {
			cp := *entry
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (c *fakeCache) Upsert(_ context.Context, entry domain.CacheEntry) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.upserts++
	if prev, ok := c.entries[entry.TitleNormalized]; ok {
		entry.CachedAt = prev.CachedAt
		entry.RefreshCount = prev.RefreshCount + 1
		if entry.Status == domain.StatusUnknown || entry.Status == "" {
			entry.Status = prev.Status
		}
	} else {
		entry.CachedAt = c.now
	}
	entry.RefreshedAt = c.now
	c.entries[entry.TitleNormalized] = &entry
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if _, ok := c.entries[key]; !ok {
		return domain.ErrNotFound
	}
	delete(c.entries, key)
	return nil
}

func (c *fakeCache) Purge(context.Context) (int64, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	n := int64(len(c.entries))
	c.entries = map[string]*domain.CacheEntry{}
	return n, nil
}

func (c *fakeCache) List(context.Context) ([]domain.CacheEntry, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	var entries []domain.CacheEntry
	for _, entry := range c.entries {
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (c *fakeCache) ListBySource(_ context.Context, source string) ([]domain.CacheEntry, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	var entries []domain.CacheEntry
	for _, entry := range c.entries {
		if entry.Source == source {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

type fakeKB struct {
	mtx     sync.Mutex
	entries map[string]*domain.KnowledgeBaseEntry
	records int
}

func newFakeKB() *fakeKB {
	return &fakeKB{entries: map[string]*domain.KnowledgeBaseEntry{}}
}

func (k *fakeKB) Lookup(key string) (*domain.KnowledgeBaseEntry, bool) {
	k.mtx.Lock()
	defer k.mtx.Unlock()
	entry, ok := k.entries[key]
	return entry, ok
}

func (k *fakeKB) Record(key, title string, chapters, volumes int) error {
	k.mtx.Lock()
	defer k.mtx.Unlock()
	k.records++
	k.entries[key] = &domain.KnowledgeBaseEntry{Title: title, Chapters: chapters, Volumes: volumes}
	return nil
}

func (k *fakeKB) Len() int {
	k.mtx.Lock()
	defer k.mtx.Unlock()
	return len(k.entries)
}

type fakeAdapter struct {
	name     string
	kind     domain.SourceKind
	priority int
	cand     *domain.Candidate
	err      error

	mtx   sync.Mutex
	calls int
}

func (a *fakeAdapter) Name() string            { return a.name }
func (a *fakeAdapter) Kind() domain.SourceKind { return a.kind }
func (a *fakeAdapter) Priority() int           { return a.priority }

func (a *fakeAdapter) Fetch(context.Context, string, string) (*domain.Candidate, error) {
	a.mtx.Lock()
	a.calls++
	a.mtx.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	return a.cand, nil
}

func (a *fakeAdapter) callCount() int {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	return a.calls
}

func testConfig() *domain.Config {
	return &domain.Config{
		AdapterTimeout:            time.Second,
		FreshOngoing:              30 * 24 * time.Hour,
		FreshCompleted:            90 * 24 * time.Hour,
		EstimateChaptersPerVolume: 9,
	}
}

func newTestService(cache domain.CacheRepo, kb domain.KnowledgeBase, adapters ...domain.Adapter) *service {
	svc := NewService(zerolog.Nop(), testConfig(), cache, kb, adapters, nil).(*service)
	return svc
}

func apiCandidate(name string, priority, chapters, volumes int) *domain.Candidate {
	return &domain.Candidate{
		Source:       name,
		Kind:         domain.KindAPI,
		Priority:     priority,
		ChapterCount: chapters,
		VolumeCount:  volumes,
		Confidence:   0.9,
	}
}

func TestResolve_InvalidTitle(t *testing.T) {
	svc := newTestService(newFakeCache(), newFakeKB())

	for _, title := range []string{"", "   ", "!!!"} {
		_, err := svc.Resolve(context.Background(), domain.ResolutionRequest{Title: title})
		if !errors.Is(err, domain.ErrInvalidTitle) {
			t.Errorf("Resolve(%q) err = %v, want ErrInvalidTitle", title, err)
		}
	}
}

func TestResolve_FreshPersistentHit(t *testing.T) {
	cache := newFakeCache()
	adapter := &fakeAdapter{name: "anilist", priority: 1, cand: apiCandidate("anilist", 1, 999, 99)}
	svc := newTestService(cache, newFakeKB(), adapter)

	cache.entries["dandadan"] = &domain.CacheEntry{
		Title:           "Dandadan",
		TitleNormalized: "dandadan",
		ChapterCount:    211,
		VolumeCount:     24,
		Source:          "anilist",
		Status:          domain.StatusOngoing,
		RefreshedAt:     time.Now().Add(-24 * time.Hour),
	}

	rc, err := svc.Resolve(context.Background(), domain.ResolutionRequest{Title: "Dandadan"})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if rc.ChapterCount != 211 || rc.VolumeCount != 24 {
		t.Errorf("got %d/%d, want cached 211/24", rc.ChapterCount, rc.VolumeCount)
	}
	if adapter.callCount() != 0 {
		t.Errorf("fresh cache hit still queried the adapter %d times", adapter.callCount())
	}
}

func TestResolve_SessionCachesSecondCall(t *testing.T) {
	cache := newFakeCache()
	adapter := &fakeAdapter{name: "anilist", priority: 1, cand: apiCandidate("anilist", 1, 211, 24)}
	svc := newTestService(cache, newFakeKB(), adapter)

	if _, err := svc.Resolve(context.Background(), domain.ResolutionRequest{Title: "Dandadan"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Resolve(context.Background(), domain.ResolutionRequest{Title: "Dandadan"}); err != nil {
		t.Fatal(err)
	}

	if adapter.callCount() != 1 {
		t.Errorf("adapter called %d times, want 1", adapter.callCount())
	}
	if cache.upserts != 1 {
		t.Errorf("cache upserted %d times, want 1", cache.upserts)
	}
}

func TestResolve_KnowledgeBaseHit(t *testing.T) {
	cache := newFakeCache()
	kb := newFakeKB()
	kb.entries["dandadan"] = &domain.KnowledgeBaseEntry{Title: "Dandadan", Chapters: 211, Volumes: 24}
	adapter := &fakeAdapter{name: "anilist", priority: 1, cand: apiCandidate("anilist", 1, 999, 99)}
	svc := newTestService(cache, kb, adapter)

	rc, err := svc.Resolve(context.Background(), domain.ResolutionRequest{Title: "Dandadan"})
	if err != nil {
		t.Fatal(err)
	}

	if rc.Source != domain.SourceKnowledgeBase {
		t.Errorf("source = %q, want knowledge_base", rc.Source)
	}
	if rc.ChapterCount != 211 || rc.VolumeCount != 24 {
		t.Errorf("got %d/%d, want 211/24", rc.ChapterCount, rc.VolumeCount)
	}
	if adapter.callCount() != 0 {
		t.Error("knowledge base hit should not reach the adapters")
	}

	// Write-through to the persistent cache, but no KB re-record.
	if _, ok := cache.entries["dandadan"]; !ok {
		t.Error("knowledge base hit not promoted to persistent cache")
	}
	if kb.records != 0 {
		t.Errorf("knowledge base recorded %d times on its own hit", kb.records)
	}
}

func TestResolve_StaleOngoingEntryTriggersRefetch(t *testing.T) {
	cache := newFakeCache()
	adapter := &fakeAdapter{name: "anilist", priority: 1, cand: apiCandidate("anilist", 1, 215, 25)}
	svc := newTestService(cache, newFakeKB(), adapter)

	base := time.Now()
	svc.now = func() time.Time { return base }

	cache.entries["dandadan"] = &domain.CacheEntry{
		Title:           "Dandadan",
		TitleNormalized: "dandadan",
		ChapterCount:    211,
		VolumeCount:     24,
		Source:          "anilist",
		Status:          domain.StatusOngoing,
		RefreshedAt:     base.Add(-31 * 24 * time.Hour),
	}

	rc, err := svc.Resolve(context.Background(), domain.ResolutionRequest{Title: "Dandadan"})
	if err != nil {
		t.Fatal(err)
	}
	if rc.ChapterCount != 215 {
		t.Errorf("stale entry not refreshed, chapters = %d", rc.ChapterCount)
	}
	if adapter.callCount() != 1 {
		t.Errorf("adapter called %d times, want 1", adapter.callCount())
	}
}

func TestResolve_OngoingFreshJustUnderThreshold(t *testing.T) {
	cache := newFakeCache()
	adapter := &fakeAdapter{name: "anilist", priority: 1, cand: apiCandidate("anilist", 1, 999, 99)}
	svc := newTestService(cache, newFakeKB(), adapter)

	base := time.Now()
	svc.now = func() time.Time { return base }

	cache.entries["dandadan"] = &domain.CacheEntry{
		Title:           "Dandadan",
		TitleNormalized: "dandadan",
		ChapterCount:    211,
		Source:          "anilist",
		Status:          domain.StatusOngoing,
		RefreshedAt:     base.Add(-29 * 24 * time.Hour),
	}

	rc, err := svc.Resolve(context.Background(), domain.ResolutionRequest{Title: "Dandadan"})
	if err != nil {
		t.Fatal(err)
	}
	if rc.ChapterCount != 211 {
		t.Errorf("29 day old ongoing entry treated as stale, got %d chapters", rc.ChapterCount)
	}
	if adapter.callCount() != 0 {
		t.Error("fresh entry still hit the adapters")
	}
}

func TestResolve_CompletedUsesSlowerThreshold(t *testing.T) {
	cache := newFakeCache()
	adapter := &fakeAdapter{name: "anilist", priority: 1, cand: apiCandidate("anilist", 1, 999, 99)}
	svc := newTestService(cache, newFakeKB(), adapter)

	base := time.Now()
	svc.now = func() time.Time { return base }

	// 60 days old: stale for an ongoing series, fresh for a completed one.
	cache.entries["berserk"] = &domain.CacheEntry{
		Title:           "Berserk",
		TitleNormalized: "berserk",
		ChapterCount:    375,
		VolumeCount:     41,
		Source:          "anilist",
		Status:          domain.StatusCompleted,
		RefreshedAt:     base.Add(-60 * 24 * time.Hour),
	}

	rc, err := svc.Resolve(context.Background(), domain.ResolutionRequest{Title: "Berserk"})
	if err != nil {
		t.Fatal(err)
	}
	if rc.ChapterCount != 375 {
		t.Errorf("completed entry refreshed too early, got %d chapters", rc.ChapterCount)
	}
	if adapter.callCount() != 0 {
		t.Error("fresh completed entry still hit the adapters")
	}
}

func TestResolve_StaleFallbackWhenSourcesFail(t *testing.T) {
	cache := newFakeCache()
	adapter := &fakeAdapter{name: "anilist", priority: 1, err: errors.New("upstream down")}
	svc := newTestService(cache, newFakeKB(), adapter)

	base := time.Now()
	svc.now = func() time.Time { return base }

	cache.entries["dandadan"] = &domain.CacheEntry{
		Title:           "Dandadan",
		TitleNormalized: "dandadan",
		ChapterCount:    211,
		VolumeCount:     24,
		Source:          "anilist",
		Status:          domain.StatusOngoing,
		RefreshedAt:     base.Add(-45 * 24 * time.Hour),
	}

	rc, err := svc.Resolve(context.Background(), domain.ResolutionRequest{Title: "Dandadan", KnownChapters: 27})
	if err != nil {
		t.Fatal(err)
	}

	// Stale data beats an estimate.
	if rc.Source != "anilist" || rc.ChapterCount != 211 {
		t.Errorf("got %q %d chapters, want stale anilist 211", rc.Source, rc.ChapterCount)
	}

	// The stale fallback must not look fresh to the next call.
	if _, ok := svc.session.get("dandadan"); ok {
		t.Error("stale fallback was promoted to the session cache")
	}
}

func TestResolve_EstimateFallback(t *testing.T) {
	cache := newFakeCache()
	kb := newFakeKB()
	adapter := &fakeAdapter{name: "anilist", priority: 1, err: errors.New("upstream down")}
	svc := newTestService(cache, kb, adapter)

	rc, err := svc.Resolve(context.Background(), domain.ResolutionRequest{Title: "Obscure Series", KnownChapters: 27})
	if err != nil {
		t.Fatal(err)
	}

	if rc.Source != domain.SourceEstimate {
		t.Errorf("source = %q, want estimate", rc.Source)
	}
	if rc.ChapterCount != 27 || rc.VolumeCount != 3 {
		t.Errorf("got %d/%d, want 27 chapters and ceil(27/9)=3 volumes", rc.ChapterCount, rc.VolumeCount)
	}

	// Estimates are never written anywhere.
	if cache.upserts != 0 {
		t.Error("estimate was persisted")
	}
	if kb.records != 0 {
		t.Error("estimate was recorded in the knowledge base")
	}
	if _, ok := svc.session.get("obscure series"); ok {
		t.Error("estimate was session-cached")
	}
}

func TestResolve_EstimateRoundsUp(t *testing.T) {
	svc := newTestService(newFakeCache(), newFakeKB())

	cases := []struct {
		chapters, volumes int
	}{
		{0, 0},
		{1, 1},
		{9, 1},
		{10, 2},
		{27, 3},
		{28, 4},
	}

	for _, tc := range cases {
		rc, err := svc.Resolve(context.Background(), domain.ResolutionRequest{Title: "Obscure Series", KnownChapters: tc.chapters})
		if err != nil {
			t.Fatal(err)
		}
		if rc.VolumeCount != tc.volumes {
			t.Errorf("estimate(%d chapters) = %d volumes, want %d", tc.chapters, rc.VolumeCount, tc.volumes)
		}
	}
}

func TestResolve_ForceRefreshSkipsCaches(t *testing.T) {
	cache := newFakeCache()
	kb := newFakeKB()
	kb.entries["dandadan"] = &domain.KnowledgeBaseEntry{Title: "Dandadan", Chapters: 100, Volumes: 10}
	adapter := &fakeAdapter{name: "anilist", priority: 1, cand: apiCandidate("anilist", 1, 215, 25)}
	svc := newTestService(cache, kb, adapter)

	cache.entries["dandadan"] = &domain.CacheEntry{
		Title:           "Dandadan",
		TitleNormalized: "dandadan",
		ChapterCount:    211,
		Source:          "anilist",
		Status:          domain.StatusOngoing,
		RefreshedAt:     time.Now(),
	}
	svc.session.set("dandadan", domain.ResolvedCount{ChapterCount: 211, Source: "anilist"})

	rc, err := svc.Resolve(context.Background(), domain.ResolutionRequest{Title: "Dandadan", ForceRefresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if rc.ChapterCount != 215 {
		t.Errorf("force refresh returned %d chapters from a cache tier, want 215 from source", rc.ChapterCount)
	}
	if adapter.callCount() != 1 {
		t.Errorf("adapter called %d times, want 1", adapter.callCount())
	}

	// New result replaces the caches.
	if entry := cache.entries["dandadan"]; entry.ChapterCount != 215 {
		t.Errorf("persistent cache holds %d chapters after refresh", entry.ChapterCount)
	}
	if rc, ok := svc.session.get("dandadan"); !ok || rc.ChapterCount != 215 {
		t.Error("session cache not replaced after refresh")
	}
}

func TestResolve_ArbitrationAcrossAdapters(t *testing.T) {
	cache := newFakeCache()
	kb := newFakeKB()
	anilist := &fakeAdapter{name: "anilist", priority: 1, cand: apiCandidate("anilist", 1, 200, 22)}
	mangafire := &fakeAdapter{name: "mangafire", kind: domain.KindScrape, priority: 10, cand: &domain.Candidate{
		Source: "mangafire", Kind: domain.KindScrape, Priority: 10, ChapterCount: 211, VolumeCount: 24, Confidence: 0.5,
	}}
	broken := &fakeAdapter{name: "mangadex", priority: 2, err: errors.New("timeout")}
	svc := newTestService(cache, kb, anilist, mangafire, broken)

	rc, err := svc.Resolve(context.Background(), domain.ResolutionRequest{Title: "Dandadan"})
	if err != nil {
		t.Fatal(err)
	}

	if rc.Source != "mangafire" || rc.ChapterCount != 211 {
		t.Errorf("got %q with %d chapters, want mangafire with 211", rc.Source, rc.ChapterCount)
	}

	// A scrape win is recorded for future restarts.
	entry, ok := kb.entries["dandadan"]
	if !ok {
		t.Fatal("winning resolution not recorded in the knowledge base")
	}
	if entry.Chapters != 211 || entry.Volumes != 24 {
		t.Errorf("knowledge base holds %d/%d, want 211/24", entry.Chapters, entry.Volumes)
	}
}

func TestResolve_NilAdapterResultIgnored(t *testing.T) {
	// An adapter may return (nil, nil) when the title matched nothing.
	empty := &fakeAdapter{name: "anilist", priority: 1}
	svc := newTestService(newFakeCache(), newFakeKB(), empty)

	rc, err := svc.Resolve(context.Background(), domain.ResolutionRequest{Title: "Obscure Series", KnownChapters: 18})
	if err != nil {
		t.Fatal(err)
	}
	if rc.Source != domain.SourceEstimate {
		t.Errorf("source = %q, want estimate", rc.Source)
	}
}

func TestClear(t *testing.T) {
	cache := newFakeCache()
	svc := newTestService(cache, newFakeKB())

	cache.entries["dandadan"] = &domain.CacheEntry{TitleNormalized: "dandadan"}
	svc.session.set("dandadan", domain.ResolvedCount{ChapterCount: 211})

	if err := svc.Clear(context.Background(), "Dandadan"); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}

	if _, ok := svc.session.get("dandadan"); ok {
		t.Error("session entry survived Clear")
	}
	if _, ok := cache.entries["dandadan"]; ok {
		t.Error("persistent entry survived Clear")
	}

	if err := svc.Clear(context.Background(), "Dandadan"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second Clear err = %v, want ErrNotFound", err)
	}
	if err := svc.Clear(context.Background(), "  "); !errors.Is(err, domain.ErrInvalidTitle) {
		t.Errorf("blank Clear err = %v, want ErrInvalidTitle", err)
	}
}

func TestClearAll_LeavesKnowledgeBase(t *testing.T) {
	cache := newFakeCache()
	kb := newFakeKB()
	kb.entries["dandadan"] = &domain.KnowledgeBaseEntry{Title: "Dandadan", Chapters: 211, Volumes: 24}
	svc := newTestService(cache, kb)

	cache.entries["dandadan"] = &domain.CacheEntry{TitleNormalized: "dandadan"}
	cache.entries["berserk"] = &domain.CacheEntry{TitleNormalized: "berserk"}
	svc.session.set("dandadan", domain.ResolvedCount{})

	n, err := svc.ClearAll(context.Background())
	if err != nil {
		t.Fatalf("ClearAll() error: %v", err)
	}
	if n != 2 {
		t.Errorf("purged %d entries, want 2", n)
	}
	if _, ok := svc.session.get("dandadan"); ok {
		t.Error("session cache survived ClearAll")
	}
	if kb.Len() != 1 {
		t.Error("ClearAll must not touch the knowledge base")
	}
}

func TestRefreshBySource(t *testing.T) {
	cache := newFakeCache()
	adapter := &fakeAdapter{name: "anilist", priority: 1, cand: apiCandidate("anilist", 1, 500, 50)}
	svc := newTestService(cache, newFakeKB(), adapter)

	cache.entries["one piece"] = &domain.CacheEntry{
		Title: "One Piece", TitleNormalized: "one piece", ChapterCount: 1100, Source: "mangafire",
		Status: domain.StatusOngoing, RefreshedAt: time.Now(),
	}
	cache.entries["berserk"] = &domain.CacheEntry{
		Title: "Berserk", TitleNormalized: "berserk", ChapterCount: 375, Source: "anilist",
		Status: domain.StatusCompleted, RefreshedAt: time.Now(),
	}

	n, err := svc.RefreshBySource(context.Background(), "mangafire")
	if err != nil {
		t.Fatalf("RefreshBySource() error: %v", err)
	}
	if n != 1 {
		t.Errorf("refreshed %d entries, want 1", n)
	}
	if adapter.callCount() != 1 {
		t.Errorf("adapter called %d times, want 1", adapter.callCount())
	}
	if entry := cache.entries["one piece"]; entry.ChapterCount != 500 {
		t.Errorf("entry not re-resolved, chapters = %d", entry.ChapterCount)
	}
	if entry := cache.entries["berserk"]; entry.ChapterCount != 375 {
		t.Error("entry from another source was touched")
	}
}
