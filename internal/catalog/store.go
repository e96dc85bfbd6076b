package catalog

import (
	"context"

	"blackbox/pkg/platform/sentinel"
)

// Sentinels shared by every store implementation.
var (
	ErrNotFound = sentinel.ErrNotFound
	ErrConflict = sentinel.ErrConflict
)

// Store persists catalog entries. The resolution engine only reads; Append
// runs exactly once per confirmed new site.
type Store interface {
	List(ctx context.Context) ([]Entry, error)
	FindByID(ctx context.Context, id string) (Entry, error)
	Append(ctx context.Context, entry Entry) error
}
