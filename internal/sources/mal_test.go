package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/varoOP/tankodb/internal/domain"
)

const malSearchFixture = `{"data":[
	{"node":{"id":1,"title":"Dandadan Doujin Collection","media_type":"doujinshi","num_chapters":5,"num_volumes":1}},
	{"node":{"id":2,"title":"Dan Da Dan","media_type":"manga","num_chapters":211,"num_volumes":24,
		"alternative_titles":{"en":"Dandadan"}}}
]}`

func newTestMAL(t *testing.T, handler http.Handler) *MyAnimeList {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	cfg := testSourceConfig()
	cfg.MalClientID = "test-client-id"

	m := NewMyAnimeList(zerolog.Nop(), cfg)
	m.baseURL = ts.URL
	return m
}

func TestMyAnimeList_FetchBySearch(t *testing.T) {
	m := newTestMAL(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-MAL-CLIENT-ID"); got != "test-client-id" {
			t.Errorf("client id header = %q, want test-client-id", got)
		}
		if got := r.URL.Query().Get("q"); got != "Dandadan" {
			t.Errorf("q = %q, want Dandadan", got)
		}
		w.Write([]byte(malSearchFixture))
	}))

	cand, err := m.Fetch(context.Background(), "Dandadan", "")
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if cand == nil {
		t.Fatal("Fetch() returned no candidate")
	}

	// The doujinshi entry matches the title exactly but is fan content.
	if cand.ChapterCount != 211 || cand.VolumeCount != 24 {
		t.Errorf("got %d/%d, want 211/24 from the manga entry", cand.ChapterCount, cand.VolumeCount)
	}
	if cand.Source != NameMyAnimeList || cand.Kind != domain.KindAPI {
		t.Errorf("candidate misattributed: %+v", cand)
	}
}

func TestMyAnimeList_FetchByID(t *testing.T) {
	m := newTestMAL(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/manga/13" {
			t.Errorf("path = %q, want /manga/13", r.URL.Path)
		}
		w.Write([]byte(`{"id":13,"title":"One Piece","media_type":"manga","num_chapters":1112,"num_volumes":108}`))
	}))

	cand, err := m.Fetch(context.Background(), "One Piece", "13")
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if cand == nil {
		t.Fatal("Fetch() returned no candidate")
	}
	if cand.ChapterCount != 1112 || cand.VolumeCount != 108 {
		t.Errorf("got %d/%d, want 1112/108", cand.ChapterCount, cand.VolumeCount)
	}
}

func TestMyAnimeList_NoMatch(t *testing.T) {
	m := newTestMAL(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))

	cand, err := m.Fetch(context.Background(), "Obscure Series", "")
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if cand != nil {
		t.Errorf("empty search produced a candidate: %+v", cand)
	}
}
