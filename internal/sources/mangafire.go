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

const mangafireURL = "https://mangafire.to"

// MangaFire scrapes mangafire.to, the source with the most reliable volume
// listings among the scrape targets.
type MangaFire struct {
	site scrapeSite
}

func NewMangaFire(log zerolog.Logger, cfg *domain.Config) *MangaFire {
	l := log.With().Str("adapter", NameMangaFire).Logger()
	return &MangaFire{site: newScrapeSite(l, mangafireURL, cfg)}
}

func (f *MangaFire) Name() string            { return NameMangaFire }
func (f *MangaFire) Kind() domain.SourceKind { return domain.KindScrape }
func (f *MangaFire) Priority() int           { return priorityMangaFire }

func (f *MangaFire) Fetch(ctx context.Context, title, externalID string) (*domain.Candidate, error) {
	mangaURL, err := f.search(title)
	if err != nil {
		return nil, err
	}
	if mangaURL == "" {
		f.site.log.Debug().Str("title", title).Msg("no matching manga")
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chapters, volumes, err := f.details(mangaURL)
	if err != nil {
		return nil, err
	}

	f.site.log.Debug().
		Str("title", title).
		Str("url", mangaURL).
		Int("chapters", chapters).
		Int("volumes", volumes).
		Msg("scraped counts")

	return &domain.Candidate{
		Source:       NameMangaFire,
		Kind:         domain.KindScrape,
		Priority:     priorityMangaFire,
		ChapterCount: chapters,
		VolumeCount:  volumes,
		Confidence:   0.5,
	}, nil
}

func (f *MangaFire) search(title string) (string, error) {
	var (
		visitErr error
		titles   []string
		links    []string
	)

	c := f.site.newCollector(&visitErr)
	c.OnHTML(".manga-card, .mangas-card", func(e *colly.HTMLElement) {
		href := e.ChildAttr("a", "href")
		if href == "" {
			return
		}
		name := strings.TrimSpace(e.ChildText(".manga-title"))
		if name == "" {
			name = strings.TrimSpace(e.ChildText("a"))
		}
		if name == "" {
			return
		}
		titles = append(titles, name)
		links = append(links, href)
	})

	searchURL := fmt.Sprintf("%s/search?q=%s", f.site.baseURL, url.QueryEscape(title))
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
	return f.site.absolute(links[idx]), nil
}

func (f *MangaFire) details(mangaURL string) (int, int, error) {
	var (
		visitErr     error
		chapterText  int
		chapterItems int
		volumeText   int
		volumeItems  int
		pageText     string
	)

	c := f.site.newCollector(&visitErr)
	c.OnHTML(".manga-info span, .info-item", func(e *colly.HTMLElement) {
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
	c.OnHTML(".chapters-list a, .chapter-item", func(e *colly.HTMLElement) {
		chapterItems++
	})
	c.OnHTML(".volumes-list .volume-item, .manga-volumes .volume, .volume-selector option, .volume-list li, .manga-volume", func(e *colly.HTMLElement) {
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
		chapters = chapterItems
	}

	volumes := volumeItems
	if volumes == 0 {
		volumes = volumeText
	}
	if volumes == 0 && chapters > 0 {
		// Chapter listings often carry "Vol N" markers even when the site
		// has no volume index.
		volumes = uniqueVolumeRefs(pageText)
	}

	return chapters, volumes, nil
}
