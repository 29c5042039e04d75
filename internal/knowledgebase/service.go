package knowledgebase

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tankodb/internal/domain"
	"gopkg.in/yaml.v3"
)

// Service is the dynamic knowledge base: a title-keyed JSON document loaded
// wholesale into memory at startup and rewritten wholesale on every Record.
// Entries are either curated seeds or previously scrape-verified results and
// are never considered stale.
type Service struct {
	log  zerolog.Logger
	path string

	mtx     sync.RWMutex
	entries map[string]*domain.KnowledgeBaseEntry
	aliases map[string]string
}

var _ domain.KnowledgeBase = (*Service)(nil)

// NewService loads the knowledge base document from path. A missing document
// is seeded with the built-in popular-title list and written out.
func NewService(log zerolog.Logger, path string) (*Service, error) {
	s := &Service{
		log:     log.With().Str("module", "knowledgebase").Logger(),
		path:    path,
		entries: make(map[string]*domain.KnowledgeBaseEntry),
		aliases: make(map[string]string),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to open knowledge base %s", s.path)
		}
		s.log.Info().Str("path", s.path).Msg("No knowledge base document found, seeding built-in titles")
		s.entries = seedEntries()
		s.rebuildAliasIndex()
		return s.rewrite()
	}
	defer f.Close()

	body, err := io.ReadAll(f)
	if err != nil {
		return errors.Wrapf(err, "failed to read knowledge base %s", s.path)
	}

	if err := json.Unmarshal(body, &s.entries); err != nil {
		return errors.Wrapf(err, "failed to unmarshal knowledge base %s", s.path)
	}

	s.rebuildAliasIndex()
	s.log.Debug().Int("entries", len(s.entries)).Str("path", s.path).Msg("Loaded knowledge base")
	return nil
}

// Lookup resolves a normalized title to its entry, either by canonical key
// or through an alias.
func (s *Service) Lookup(titleNormalized string) (*domain.KnowledgeBaseEntry, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if entry, ok := s.entries[titleNormalized]; ok {
		return entry, true
	}
	if canonical, ok := s.aliases[titleNormalized]; ok {
		if entry, ok := s.entries[canonical]; ok {
			return entry, true
		}
	}

	return nil, false
}

// Record stores scrape-verified counts for a title, overwriting any existing
// entry, and rewrites the durable document. Alias lists of an overwritten
// entry are kept.
func (s *Service) Record(titleNormalized, displayTitle string, chapters, volumes int) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	entry := &domain.KnowledgeBaseEntry{
		Title:    displayTitle,
		Chapters: chapters,
		Volumes:  volumes,
	}
	if prev, ok := s.entries[titleNormalized]; ok {
		entry.Aliases = prev.Aliases
	}
	s.entries[titleNormalized] = entry
	s.rebuildAliasIndex()

	if err := s.rewrite(); err != nil {
		return err
	}

	s.log.Debug().
		Str("title", displayTitle).
		Int("chapters", chapters).
		Int("volumes", volumes).
		Msg("Recorded knowledge base entry")
	return nil
}

// Len returns the number of canonical entries.
func (s *Service) Len() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.entries)
}

// ImportYAML merges a curated YAML mapping of normalized title to entry into
// the knowledge base and rewrites the document once. Returns how many
// entries were merged.
func (s *Service) ImportYAML(path string) (int, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read %s", path)
	}

	imported := map[string]*domain.KnowledgeBaseEntry{}
	if err := yaml.Unmarshal(body, &imported); err != nil {
		return 0, errors.Wrapf(err, "failed to unmarshal yaml from %s", path)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	for key, entry := range imported {
		s.entries[domain.NormalizeTitle(key)] = entry
	}
	s.rebuildAliasIndex()

	if err := s.rewrite(); err != nil {
		return 0, err
	}

	s.log.Info().Int("imported", len(imported)).Str("path", path).Msg("Imported curated entries")
	return len(imported), nil
}

// rewrite persists the whole document. Written to a temp file and renamed
// into place so a crash mid-write cannot corrupt the document. Callers hold
// the write lock.
func (s *Service) rewrite() error {
	body, err := json.MarshalIndent(s.entries, "", "   ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal knowledge base")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".knowledge_base-*.json")
	if err != nil {
		return errors.Wrap(err, "failed to create temp document")
	}

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "failed to write knowledge base")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "failed to close knowledge base")
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "failed to replace %s", s.path)
	}

	return nil
}

// rebuildAliasIndex rebuilds the alias lookup map. Callers hold the write
// lock (or run before the service is shared).
func (s *Service) rebuildAliasIndex() {
	s.aliases = make(map[string]string)
	for canonical, entry := range s.entries {
		for _, alias := range entry.Aliases {
			s.aliases[domain.NormalizeTitle(alias)] = canonical
		}
	}
}
