package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gocolly/colly"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tankodb/internal/domain"
)

const mangaparkURL = "https://mangapark.net"

// MangaPark scrapes mangapark.net chapter listings.
type MangaPark struct {
	site scrapeSite
}

func NewMangaPark(log zerolog.Logger, cfg *domain.Config) *MangaPark {
	l := log.With().Str("adapter", NameMangaPark).Logger()
	return &MangaPark{site: newScrapeSite(l, mangaparkURL, cfg)}
}

func (p *MangaPark) Name() string            { return NameMangaPark }
func (p *MangaPark) Kind() domain.SourceKind { return domain.KindScrape }
func (p *MangaPark) Priority() int           { return priorityMangaPark }

func (p *MangaPark) Fetch(ctx context.Context, title, externalID string) (*domain.Candidate, error) {
	mangaURL, err := p.search(title)
	if err != nil {
		return nil, err
	}
	if mangaURL == "" {
		p.site.log.Debug().Str("title", title).Msg("no matching manga")
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chapters, volumes, err := p.details(mangaURL)
	if err != nil {
		return nil, err
	}

	p.site.log.Debug().
		Str("title", title).
		Str("url", mangaURL).
		Int("chapters", chapters).
		Int("volumes", volumes).
		Msg("scraped counts")

	return &domain.Candidate{
		Source:       NameMangaPark,
		Kind:         domain.KindScrape,
		Priority:     priorityMangaPark,
		ChapterCount: chapters,
		VolumeCount:  volumes,
		Confidence:   0.5,
	}, nil
}

func (p *MangaPark) search(title string) (string, error) {
	var (
		visitErr error
		titles   []string
		links    []string
	)

	c := p.site.newCollector(&visitErr)
	c.OnHTML(".manga-list .item", func(e *colly.HTMLElement) {
		href := e.ChildAttr("a.fw-bold", "href")
		name := strings.TrimSpace(e.ChildText("a.fw-bold"))
		if href == "" || name == "" {
			return
		}
		titles = append(titles, name)
		links = append(links, href)
	})

	searchURL := fmt.Sprintf("%s/search?q=%s", p.site.baseURL, url.QueryEscape(title))
	if err := c.Visit(searchURL); err != nil {
		return "", errors.Wrap(err, "search visit failed")
	}
	c.Wait()
	if visitErr != nil {
		return "", errors.Wrap(visitErr, "search failed")
	}

	idx := bestTitleMatch(title, titles)
	if idx < 0 {
		return "", nil
	}
	return p.site.absolute(links[idx]), nil
}

func (p *MangaPark) details(mangaURL string) (int, int, error) {
	var (
		visitErr     error
		chapterText  int
		chapterLinks int
		volumeText   int
		volumeItems  int
		pageText     string
	)

	c := p.site.newCollector(&visitErr)
	c.OnHTML(".detail-set span, .info-item, .manga-info-text li", func(e *colly.HTMLElement) {
		text := e.Text
		switch {
		case strings.Contains(text, "Chapter"):
			if chapterText == 0 {
				chapterText = firstNumber(text)
			}
		case strings.Contains(text, "Volume"):
			if volumeText == 0 {
				volumeText = firstNumber(text)
			}
		}
	})
	c.OnHTML(".chapter-list a", func(e *colly.HTMLElement) {
		chapterLinks++
	})
	c.OnHTML(".volume-selector option, .volume-list li, .volumes-container .volume", func(e *colly.HTMLElement) {
		volumeItems++
	})
	c.OnHTML("html", func(e *colly.HTMLElement) {
		pageText = e.Text
	})

	if err := c.Visit(mangaURL); err != nil {
		return 0, 0, errors.Wrap(err, "details visit failed")
	}
	c.Wait()
	if visitErr != nil {
		return 0, 0, errors.Wrap(visitErr, "details failed")
	}

	chapters := chapterText
	if chapters == 0 {
		chapters = chapterLinks
	}

	volumes := volumeText
	if volumes == 0 {
		volumes = volumeItems
	}
	if volumes == 0 && chapters > 0 {
		volumes = uniqueVolumeRefs(pageText)
	}

	return chapters, volumes, nil
}
