package sources

import (
	"github.com/rs/zerolog"
	"github.com/varoOP/tankodb/internal/domain"
)

// Enabled constructs the adapter set the config allows, in priority order.
// MyAnimeList needs an API client id and is skipped without one.
func Enabled(log zerolog.Logger, cfg *domain.Config) []domain.Adapter {
	var adapters []domain.Adapter

	if cfg.SourceEnabled(NameAniList) {
		adapters = append(adapters, NewAniList(log, cfg))
	}
	if cfg.SourceEnabled(NameMangaDex) {
		adapters = append(adapters, NewMangaDex(log, cfg))
	}
	if cfg.SourceEnabled(NameMyAnimeList) {
		if cfg.MalClientID != "" {
			adapters = append(adapters, NewMyAnimeList(log, cfg))
		} else {
			log.Debug().Msg("mal_client_id not set, skipping myanimelist adapter")
		}
	}
	if cfg.SourceEnabled(NameMangaFire) {
		adapters = append(adapters, NewMangaFire(log, cfg))
	}
	if cfg.SourceEnabled(NameMangaPark) {
		adapters = append(adapters, NewMangaPark(log, cfg))
	}

	return adapters
}
