package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tankodb/internal/domain"
)

const malURL = "https://api.myanimelist.net/v2"

type clientIDTransport struct {
	Transport http.RoundTripper
	ClientID  string
}

func (c *clientIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if c.Transport == nil {
		c.Transport = http.DefaultTransport
	}
	req.Header.Add("X-MAL-CLIENT-ID", c.ClientID)
	return c.Transport.RoundTrip(req)
}

// MyAnimeList fetches counts from the MAL API v2. Requires a client id; the
// adapter is not constructed when the config has none.
type MyAnimeList struct {
	log     zerolog.Logger
	client  *limitedClient
	baseURL string
}

func NewMyAnimeList(log zerolog.Logger, cfg *domain.Config) *MyAnimeList {
	l := log.With().Str("adapter", NameMyAnimeList).Logger()
	return &MyAnimeList{
		log:     l,
		client:  newLimitedClient(NameMyAnimeList, cfg, l, &clientIDTransport{ClientID: cfg.MalClientID}),
		baseURL: malURL,
	}
}

func (m *MyAnimeList) Name() string            { return NameMyAnimeList }
func (m *MyAnimeList) Kind() domain.SourceKind { return domain.KindAPI }
func (m *MyAnimeList) Priority() int           { return priorityMyAnimeList }

type malManga struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	MediaType   string `json:"media_type"`
	NumChapters int    `json:"num_chapters"`
	NumVolumes  int    `json:"num_volumes"`
	Status      string `json:"status"`
	Alternative struct {
		English  string   `json:"en"`
		Synonyms []string `json:"synonyms"`
	} `json:"alternative_titles"`
}

type malSearchResponse struct {
	Data []struct {
		Node malManga `json:"node"`
	} `json:"data"`
}

func (m *MyAnimeList) Fetch(ctx context.Context, title, externalID string) (*domain.Candidate, error) {
	var manga *malManga
	var err error

	if id, convErr := strconv.Atoi(externalID); convErr == nil && id > 0 {
		manga, err = m.byID(ctx, id)
	} else {
		manga, err = m.search(ctx, title)
	}
	if err != nil {
		return nil, err
	}
	if manga == nil {
		m.log.Debug().Str("title", title).Msg("no matching manga")
		return nil, nil
	}

	m.log.Debug().
		Str("title", title).
		Int("mal_id", manga.ID).
		Int("chapters", manga.NumChapters).
		Int("volumes", manga.NumVolumes).
		Msg("fetched counts")

	return &domain.Candidate{
		Source:       NameMyAnimeList,
		Kind:         domain.KindAPI,
		Priority:     priorityMyAnimeList,
		ChapterCount: manga.NumChapters,
		VolumeCount:  manga.NumVolumes,
		Confidence:   0.8,
	}, nil
}

const malFields = "num_chapters,num_volumes,status,media_type,alternative_titles"

func (m *MyAnimeList) byID(ctx context.Context, id int) (*malManga, error) {
	u := fmt.Sprintf("%s/manga/%d?fields=%s", m.baseURL, id, malFields)

	body, err := m.get(ctx, u)
	if err != nil {
		return nil, err
	}

	manga := &malManga{}
	if err := json.Unmarshal(body, manga); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal manga")
	}
	return manga, nil
}

func (m *MyAnimeList) search(ctx context.Context, title string) (*malManga, error) {
	u := fmt.Sprintf("%s/manga?q=%s&limit=5&fields=%s", m.baseURL, url.QueryEscape(title), malFields)

	body, err := m.get(ctx, u)
	if err != nil {
		return nil, err
	}

	parsed := &malSearchResponse{}
	if err := json.Unmarshal(body, parsed); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal search response")
	}

	var (
		titles []string
		idxs   []int
	)
	for i, d := range parsed.Data {
		// MAL marks fan works as their own media type.
		if d.Node.MediaType == "doujinshi" {
			continue
		}
		titles = append(titles, d.Node.Title)
		idxs = append(idxs, i)
		if d.Node.Alternative.English != "" {
			titles = append(titles, d.Node.Alternative.English)
			idxs = append(idxs, i)
		}
	}

	match := bestTitleMatch(title, titles)
	if match < 0 {
		return nil, nil
	}
	return &parsed.Data[idxs[match]].Node, nil
}

func (m *MyAnimeList) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Source: NameMyAnimeList, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	return body, nil
}
