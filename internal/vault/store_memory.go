package vault

import (
	"context"
	"sort"
	"sync"

	"blackbox/pkg/platform/sentinel"
)

// InMemoryStore keeps header and records in maps. It backs unit tests and
// mirrors the sqlite store's contract exactly.
type InMemoryStore struct {
	mu      sync.RWMutex
	header  *Header
	records map[string]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

func (s *InMemoryStore) LoadHeader(_ context.Context) (Header, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.header == nil {
		return Header{}, sentinel.ErrNotFound
	}
	return *s.header, nil
}

func (s *InMemoryStore) SaveHeader(_ context.Context, h Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header = &h
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, siteID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[siteID]; ok {
		return rec, nil
	}
	return Record{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) Upsert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.SiteID] = rec
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, siteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[siteID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, siteID)
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]RecordInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RecordInfo, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, RecordInfo{SiteID: rec.SiteID, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SiteID < out[j].SiteID })
	return out, nil
}
