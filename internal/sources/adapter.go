package sources

import (
	"fmt"
	"net/http"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog"
	"github.com/varoOP/tankodb/internal/domain"
	"golang.org/x/time/rate"
)

// Adapter names. These are the source strings written into cache entries.
const (
	NameAniList     = "anilist"
	NameMangaDex    = "mangadex"
	NameMyAnimeList = "myanimelist"
	NameMangaFire   = "mangafire"
	NameMangaPark   = "mangapark"
)

// Fixed adapter priority for arbitration tie-breaks. Structured APIs outrank
// HTML scrapers; lower is better.
const (
	priorityAniList     = 1
	priorityMangaDex    = 2
	priorityMyAnimeList = 3
	priorityMangaFire   = 10
	priorityMangaPark   = 11
)

// HTTPError is a non-OK response from a source, kept local to the adapter
// that hit it. The resolver converts these to "no candidate".
type HTTPError struct {
	Source     string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: unexpected status code %d", e.Source, e.StatusCode)
}

func transient(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// limitedClient enforces a minimum inter-request interval per adapter and
// retries a transient failure once after a fixed backoff. Adapters do not
// share clients, so one throttled source never slows the others.
type limitedClient struct {
	http    *http.Client
	limiter *rate.Limiter
	backoff time.Duration
	source  string
	agent   string
	log     zerolog.Logger
}

func newLimitedClient(source string, cfg *domain.Config, log zerolog.Logger, transport http.RoundTripper) *limitedClient {
	interval := cfg.RateInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	return &limitedClient{
		http: &http.Client{
			Timeout:   cfg.AdapterTimeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		backoff: cfg.RetryBackoff,
		source:  source,
		agent:   cfg.UserAgent,
		log:     log,
	}
}

// Do performs the request, waiting out the rate limiter first. A 429 or 5xx
// gets one fixed-backoff retry before the failure surfaces.
func (c *limitedClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}

	if c.agent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.agent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if !transient(resp.StatusCode) {
		return resp, nil
	}
	resp.Body.Close()

	c.log.Debug().
		Int("status", resp.StatusCode).
		Str("url", req.URL.String()).
		Dur("backoff", c.backoff).
		Msg("transient failure, retrying once")

	select {
	case <-time.After(c.backoff):
	case <-req.Context().Done():
		return nil, req.Context().Err()
	}

	retry := req.Clone(req.Context())
	resp, err = c.http.Do(retry)
	if err != nil {
		return nil, err
	}
	if transient(resp.StatusCode) {
		code := resp.StatusCode
		resp.Body.Close()
		return nil, &HTTPError{Source: c.source, StatusCode: code}
	}

	return resp, nil
}

// bestTitleMatch picks the search result whose title best matches the
// requested one. Exact normalized matches win outright; otherwise the lowest
// fuzzy rank wins. Returns -1 when nothing is close enough to trust, so a
// search that only returned unrelated series yields no candidate instead of
// the first hit.
func bestTitleMatch(want string, titles []string) int {
	norm := domain.NormalizeTitle(want)

	best := -1
	bestRank := -1
	for i, t := range titles {
		cand := domain.NormalizeTitle(t)
		if cand == norm {
			return i
		}
		rank := fuzzy.RankMatchNormalizedFold(norm, cand)
		if rank < 0 {
			continue
		}
		if best == -1 || rank < bestRank {
			best, bestRank = i, rank
		}
	}

	return best
}
