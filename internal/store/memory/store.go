// Package memory provides an in-memory match store for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"leadwatch/internal/lead"
)

// Store implements lead.Store with process-local state. All mutations are
// guarded by a single mutex, so row writes are atomic.
type Store struct {
	mu       sync.Mutex
	sources  map[int64]lead.Source
	keywords map[int64]lead.Keyword
	matches  map[string]lead.Match
	order    []string
	settings *lead.NotificationSettings
	nextID   int64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		sources:  make(map[int64]lead.Source),
		keywords: make(map[int64]lead.Keyword),
		matches:  make(map[string]lead.Match),
		nextID:   1,
	}
}

// AddSource registers a source, assigning an id when unset. Sources are
// dashboard-owned in production; this is the dev-mode stand-in.
func (s *Store) AddSource(src lead.Source) lead.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src.ID == 0 {
		src.ID = s.nextID
		s.nextID++
	}
	s.sources[src.ID] = src
	return src
}

// AddKeyword registers a keyword, enforcing case-insensitive uniqueness.
func (s *Store) AddKeyword(kw lead.Keyword) (lead.Keyword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	norm := lead.NormalizeKeyword(kw.Text)
	for _, existing := range s.keywords {
		if lead.NormalizeKeyword(existing.Text) == norm {
			return lead.Keyword{}, fmt.Errorf("keyword %q already exists", kw.Text)
		}
	}
	if kw.ID == 0 {
		kw.ID = s.nextID
		s.nextID++
	}
	s.keywords[kw.ID] = kw
	return kw, nil
}

// ListActiveSources returns active sources of the given type by id order.
func (s *Store) ListActiveSources(_ context.Context, t lead.SourceType) ([]lead.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []lead.Source
	for _, src := range s.sources {
		if src.IsActive && src.Type == t {
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListActiveKeywords returns active keywords by id order.
func (s *Store) ListActiveKeywords(_ context.Context) ([]lead.Keyword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []lead.Keyword
	for _, kw := range s.keywords {
		if kw.IsActive {
			out = append(out, kw)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetSource returns one source by id.
func (s *Store) GetSource(_ context.Context, id int64) (lead.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return lead.Source{}, fmt.Errorf("source %d not found", id)
	}
	return src, nil
}

// GetKeyword returns one keyword by id.
func (s *Store) GetKeyword(_ context.Context, id int64) (lead.Keyword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kw, ok := s.keywords[id]
	if !ok {
		return lead.Keyword{}, fmt.Errorf("keyword %d not found", id)
	}
	return kw, nil
}

// FindExisting returns the match with the given dedup key, or nil.
func (s *Store) FindExisting(_ context.Context, sourceID int64, dedupKey string) (*lead.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		m := s.matches[id]
		if m.SourceID == sourceID && m.DedupKey == dedupKey {
			copy := m
			return &copy, nil
		}
	}
	return nil, nil
}

// Insert persists a match, rejecting equivalents with ErrDuplicateMatch.
func (s *Store) Insert(_ context.Context, m lead.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		existing := s.matches[id]
		if existing.SourceID == m.SourceID && existing.DedupKey == m.DedupKey {
			return fmt.Errorf("match %s: %w", m.ID, lead.ErrDuplicateMatch)
		}
	}
	s.matches[m.ID] = m
	s.order = append(s.order, m.ID)
	return nil
}

// ListUnnotified returns pending matches in insertion order.
func (s *Store) ListUnnotified(_ context.Context) ([]lead.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []lead.Match
	for _, id := range s.order {
		if m := s.matches[id]; !m.IsNotified {
			out = append(out, m)
		}
	}
	return out, nil
}

// MarkNotified sets IsNotified; marking twice is a no-op.
func (s *Store) MarkNotified(_ context.Context, matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return fmt.Errorf("match %s not found", matchID)
	}
	m.IsNotified = true
	s.matches[matchID] = m
	return nil
}

// UpdateLastScraped advances the source's last-scraped timestamp.
func (s *Store) UpdateLastScraped(_ context.Context, sourceID int64, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[sourceID]
	if !ok {
		return fmt.Errorf("source %d not found", sourceID)
	}
	src.LastScrapedAt = &ts
	s.sources[sourceID] = src
	return nil
}

// NotificationSettings returns the singleton settings, creating it from
// defaults on first call.
func (s *Store) NotificationSettings(_ context.Context, defaults lead.NotificationSettings) (lead.NotificationSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		defaults.UpdatedAt = time.Now().UTC()
		s.settings = &defaults
	}
	return *s.settings, nil
}

// UpdateNotificationSettings overwrites the singleton settings.
func (s *Store) UpdateNotificationSettings(_ context.Context, ns lead.NotificationSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns.UpdatedAt = time.Now().UTC()
	s.settings = &ns
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() {}
