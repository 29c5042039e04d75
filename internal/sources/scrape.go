package sources

import (
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/gocolly/colly"
	"github.com/gocolly/colly/extensions"
	"github.com/rs/zerolog"
	"github.com/varoOP/tankodb/internal/domain"
)

// scrapeSite holds what the HTML-scrape adapters share: a colly collector
// factory with rate limiting and a single fixed-backoff retry on transient
// responses.
type scrapeSite struct {
	log     zerolog.Logger
	baseURL string
	host    string
	delay   time.Duration
	timeout time.Duration
	backoff time.Duration
}

func newScrapeSite(log zerolog.Logger, baseURL string, cfg *domain.Config) scrapeSite {
	// colly matches AllowedDomains against URL.Host, port included.
	host := ""
	if u, err := url.Parse(baseURL); err == nil {
		host = u.Host
	}

	delay := cfg.RateInterval
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	return scrapeSite{
		log:     log,
		baseURL: baseURL,
		host:    host,
		delay:   delay,
		timeout: cfg.AdapterTimeout,
		backoff: cfg.RetryBackoff,
	}
}

// newCollector builds a collector scoped to the site's domain. lastErr
// receives the final visit error, after the one retry transient failures
// get.
func (s *scrapeSite) newCollector(lastErr *error) *colly.Collector {
	c := colly.NewCollector(
		colly.AllowedDomains(s.host),
	)

	extensions.RandomUserAgent(c)
	c.SetRequestTimeout(s.timeout)
	c.Limit(&colly.LimitRule{
		DomainGlob: "*",
		Delay:      s.delay,
	})

	retried := false
	c.OnError(func(r *colly.Response, err error) {
		if !retried && r.StatusCode != 0 && transient(r.StatusCode) {
			retried = true
			s.log.Debug().
				Int("status", r.StatusCode).
				Str("url", r.Request.URL.String()).
				Dur("backoff", s.backoff).
				Msg("transient failure, retrying once")
			time.Sleep(s.backoff)
			if retryErr := r.Request.Retry(); retryErr == nil {
				return
			}
		}
		*lastErr = err
	})

	c.OnRequest(func(r *colly.Request) {
		s.log.Debug().Str("url", r.URL.String()).Msg("visiting")
	})

	return c
}

// absolute resolves a scraped href against the site base.
func (s *scrapeSite) absolute(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

var (
	firstNumberRe = regexp.MustCompile(`\d+`)
	volumeRefRe   = regexp.MustCompile(`(?i)(?:^|[^0-9])Vol(?:ume)?[\s.]*(\d+)`)
)

// firstNumber extracts the leading integer from free-form text like
// "Chapters: 207", or 0 when there is none.
func firstNumber(text string) int {
	m := firstNumberRe.FindString(text)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// uniqueVolumeRefs counts distinct "Vol N" / "Volume N" references in page
// text, a last-ditch way to infer volume counts from chapter listings.
func uniqueVolumeRefs(text string) int {
	seen := map[string]struct{}{}
	for _, m := range volumeRefRe.FindAllStringSubmatch(text, -1) {
		seen[m[1]] = struct{}{}
	}
	return len(seen)
}
