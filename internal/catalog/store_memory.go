package catalog

import (
	"context"
	"sync"

	"blackbox/pkg/platform/sentinel"
)

// InMemoryStore keeps the catalog resident. It backs tests and is also the
// runtime read path: the file store loads into one of these at startup.
type InMemoryStore struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]Entry
}

func NewInMemoryStore(entries ...Entry) *InMemoryStore {
	s := &InMemoryStore{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if _, dup := s.entries[e.ID]; dup {
			continue
		}
		s.entries[e.ID] = e
		s.order = append(s.order, e.ID)
	}
	return s
}

func (s *InMemoryStore) List(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id])
	}
	return out, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[id]; ok {
		return e, nil
	}
	return Entry{}, ErrNotFound
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[entry.ID]; dup {
		return sentinel.ErrConflict
	}
	s.entries[entry.ID] = entry
	s.order = append(s.order, entry.ID)
	return nil
}

// Len reports the number of entries, for the status endpoint.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
