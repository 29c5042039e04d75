package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tankodb/internal/domain"
)

const mangadexURL = "https://api.mangadex.org"

// MangaDex fetches counts from the MangaDex REST API: a title search picks
// the manga, then the aggregate endpoint counts its volumes and chapters.
type MangaDex struct {
	log     zerolog.Logger
	client  *limitedClient
	baseURL string
}

func NewMangaDex(log zerolog.Logger, cfg *domain.Config) *MangaDex {
	l := log.With().Str("adapter", NameMangaDex).Logger()
	return &MangaDex{
		log:     l,
		client:  newLimitedClient(NameMangaDex, cfg, l, nil),
		baseURL: mangadexURL,
	}
}

func (m *MangaDex) Name() string            { return NameMangaDex }
func (m *MangaDex) Kind() domain.SourceKind { return domain.KindAPI }
func (m *MangaDex) Priority() int           { return priorityMangaDex }

type mangadexSearchResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Title map[string]string   `json:"title"`
			Tags  []mangadexTag       `json:"tags"`
			Links map[string]string   `json:"links"`
			Alt   []map[string]string `json:"altTitles"`
		} `json:"attributes"`
	} `json:"data"`
}

type mangadexTag struct {
	Attributes struct {
		Name map[string]string `json:"name"`
	} `json:"attributes"`
}

type mangadexAggregateResponse struct {
	Volumes map[string]struct {
		Chapters map[string]json.RawMessage `json:"chapters"`
	} `json:"volumes"`
}

func (m *MangaDex) Fetch(ctx context.Context, title, externalID string) (*domain.Candidate, error) {
	mangaID, err := m.search(ctx, title)
	if err != nil {
		return nil, err
	}
	if mangaID == "" {
		m.log.Debug().Str("title", title).Msg("no matching manga")
		return nil, nil
	}

	chapters, volumes, err := m.aggregate(ctx, mangaID)
	if err != nil {
		return nil, err
	}

	m.log.Debug().
		Str("title", title).
		Str("mangadex_id", mangaID).
		Int("chapters", chapters).
		Int("volumes", volumes).
		Msg("fetched counts")

	return &domain.Candidate{
		Source:       NameMangaDex,
		Kind:         domain.KindAPI,
		Priority:     priorityMangaDex,
		ChapterCount: chapters,
		VolumeCount:  volumes,
		Confidence:   0.85,
	}, nil
}

func (m *MangaDex) search(ctx context.Context, title string) (string, error) {
	u := fmt.Sprintf("%s/manga?title=%s&limit=5&includes[]=tag", m.baseURL, url.QueryEscape(title))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create search request")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "search request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{Source: NameMangaDex, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read search response")
	}

	parsed := &mangadexSearchResponse{}
	if err := json.Unmarshal(body, parsed); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal search response")
	}

	// Canonical entries only: a doujinshi-tagged result is fan content, not
	// the series being imported.
	var (
		titles []string
		ids    []string
	)
	for _, d := range parsed.Data {
		if hasDoujinshiTag(d.Attributes.Tags) {
			continue
		}
		best := d.Attributes.Title["en"]
		if best == "" {
			for _, t := range d.Attributes.Title {
				best = t
				break
			}
		}
		if best == "" {
			continue
		}
		titles = append(titles, best)
		ids = append(ids, d.ID)

		for _, alt := range d.Attributes.Alt {
			if en, ok := alt["en"]; ok && en != "" {
				titles = append(titles, en)
				ids = append(ids, d.ID)
			}
		}
	}

	idx := bestTitleMatch(title, titles)
	if idx < 0 {
		return "", nil
	}
	return ids[idx], nil
}

func (m *MangaDex) aggregate(ctx context.Context, mangaID string) (int, int, error) {
	u := fmt.Sprintf("%s/manga/%s/aggregate", m.baseURL, mangaID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to create aggregate request")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, 0, errors.Wrap(err, "aggregate request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, &HTTPError{Source: NameMangaDex, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to read aggregate response")
	}

	parsed := &mangadexAggregateResponse{}
	if err := json.Unmarshal(body, parsed); err != nil {
		return 0, 0, errors.Wrap(err, "failed to unmarshal aggregate response")
	}

	chapters := 0
	volumes := 0
	for vol, data := range parsed.Volumes {
		// MangaDex files unvolumed chapters under "none"; those chapters
		// count but the pseudo-volume does not.
		if vol != "none" {
			volumes++
		}
		chapters += len(data.Chapters)
	}

	return chapters, volumes, nil
}

func hasDoujinshiTag(tags []mangadexTag) bool {
	for _, t := range tags {
		if t.Attributes.Name["en"] == "Doujinshi" {
			return true
		}
	}
	return false
}
