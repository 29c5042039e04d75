package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tankodb/internal/domain"
)

const anilistURL = "https://graphql.anilist.co"

const anilistSearchQuery = `
query ($search: String) {
	Page(page: 1, perPage: 5) {
		media(search: $search, type: MANGA, format_not: NOVEL) {
			id
			title { romaji english }
			chapters
			volumes
			status
		}
	}
}`

const anilistByIDQuery = `
query ($id: Int) {
	Media(id: $id, type: MANGA) {
		id
		title { romaji english }
		chapters
		volumes
		status
	}
}`

// AniList fetches counts from the AniList GraphQL API.
type AniList struct {
	log     zerolog.Logger
	client  *limitedClient
	baseURL string
}

func NewAniList(log zerolog.Logger, cfg *domain.Config) *AniList {
	l := log.With().Str("adapter", NameAniList).Logger()
	return &AniList{
		log:     l,
		client:  newLimitedClient(NameAniList, cfg, l, nil),
		baseURL: anilistURL,
	}
}

func (a *AniList) Name() string            { return NameAniList }
func (a *AniList) Kind() domain.SourceKind { return domain.KindAPI }
func (a *AniList) Priority() int           { return priorityAniList }

type anilistMedia struct {
	ID    int `json:"id"`
	Title struct {
		Romaji  string `json:"romaji"`
		English string `json:"english"`
	} `json:"title"`
	Chapters *int   `json:"chapters"`
	Volumes  *int   `json:"volumes"`
	Status   string `json:"status"`
}

type anilistResponse struct {
	Data struct {
		Page struct {
			Media []anilistMedia `json:"media"`
		} `json:"Page"`
		Media *anilistMedia `json:"Media"`
	} `json:"data"`
}

// Fetch resolves counts by AniList id when one is given, otherwise by a
// title search matched defensively against the requested title.
func (a *AniList) Fetch(ctx context.Context, title, externalID string) (*domain.Candidate, error) {
	var (
		query     string
		variables map[string]any
	)

	if id, err := strconv.Atoi(externalID); err == nil && id > 0 {
		query, variables = anilistByIDQuery, map[string]any{"id": id}
	} else {
		query, variables = anilistSearchQuery, map[string]any{"search": title}
	}

	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Source: NameAniList, StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	parsed := &anilistResponse{}
	if err := json.Unmarshal(raw, parsed); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}

	media := parsed.Data.Media
	if media == nil {
		media = a.pickMatch(title, parsed.Data.Page.Media)
	}
	if media == nil {
		a.log.Debug().Str("title", title).Msg("no matching media")
		return nil, nil
	}

	chapters, volumes := 0, 0
	if media.Chapters != nil {
		chapters = *media.Chapters
	}
	if media.Volumes != nil {
		volumes = *media.Volumes
	}

	a.log.Debug().
		Str("title", title).
		Int("anilist_id", media.ID).
		Int("chapters", chapters).
		Int("volumes", volumes).
		Msg("fetched counts")

	return &domain.Candidate{
		Source:       NameAniList,
		Kind:         domain.KindAPI,
		Priority:     priorityAniList,
		ChapterCount: chapters,
		VolumeCount:  volumes,
		Confidence:   0.9,
	}, nil
}

func (a *AniList) pickMatch(title string, media []anilistMedia) *anilistMedia {
	var (
		titles []string
		idxs   []int
	)
	for i, m := range media {
		if m.Title.Romaji != "" {
			titles = append(titles, m.Title.Romaji)
			idxs = append(idxs, i)
		}
		if m.Title.English != "" {
			titles = append(titles, m.Title.English)
			idxs = append(idxs, i)
		}
	}

	match := bestTitleMatch(title, titles)
	if match < 0 {
		return nil
	}
	return &media[idxs[match]]
}
