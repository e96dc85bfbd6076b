package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"blackbox/pkg/platform/sentinel"
)

// fileDocument is the on-disk shape: {"sites": {"gmail": ["gmail", ...]}}.
// It matches the catalog file the provisioning scripts lay down.
type fileDocument struct {
	Sites map[string][]string `json:"sites"`
}

// FileStore persists the catalog as a JSON file and serves reads from an
// in-memory copy. Appends rewrite the whole file atomically; the catalog is
// a few hundred entries at most.
type FileStore struct {
	mu    sync.Mutex
	path  string
	cache *InMemoryStore
}

// OpenFileStore loads the catalog file, seeding a default catalog when the
// file does not exist yet.
func OpenFileStore(path string) (*FileStore, error) {
	entries, err := loadFile(path)
	if os.IsNotExist(err) {
		entries = Seed()
		if werr := writeFile(path, entries); werr != nil {
			return nil, fmt.Errorf("catalog: seed %s: %w", path, werr)
		}
	} else if err != nil {
		return nil, err
	}
	return &FileStore{path: path, cache: NewInMemoryStore(entries...)}, nil
}

func loadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w: %w", path, sentinel.ErrCorrupt, err)
	}
	entries := make([]Entry, 0, len(doc.Sites))
	for id, aliases := range doc.Sites {
		e, err := NewEntry(id, id, aliases)
		if err != nil {
			return nil, fmt.Errorf("catalog: entry %q: %w", id, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func writeFile(path string, entries []Entry) error {
	doc := fileDocument{Sites: make(map[string][]string, len(entries))}
	for _, e := range entries {
		doc.Sites[e.ID] = e.Aliases
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	// Write-then-rename so a crash mid-write never truncates the catalog.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	return s.cache.List(ctx)
}

func (s *FileStore) FindByID(ctx context.Context, id string) (Entry, error) {
	return s.cache.FindByID(ctx, id)
}

func (s *FileStore) Append(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cache.Append(ctx, entry); err != nil {
		return err
	}
	entries, err := s.cache.List(ctx)
	if err != nil {
		return err
	}
	if err := writeFile(s.path, entries); err != nil {
		return fmt.Errorf("catalog: persist %s: %w: %w", s.path, sentinel.ErrUnavailable, err)
	}
	return nil
}

// Len reports the number of entries, for the status endpoint.
func (s *FileStore) Len() int {
	return s.cache.Len()
}
