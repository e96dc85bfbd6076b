package vault

import "context"

// Store persists the header and the encrypted records. Implementations
// return sentinel.ErrNotFound for missing rows and wrap backend failures in
// sentinel.ErrUnavailable so the service can apply its retry-once policy.
// Stores only ever see ciphertext.
type Store interface {
	LoadHeader(ctx context.Context) (Header, error)
	SaveHeader(ctx context.Context, h Header) error

	Find(ctx context.Context, siteID string) (Record, error)
	Upsert(ctx context.Context, rec Record) error
	Delete(ctx context.Context, siteID string) error
	List(ctx context.Context) ([]RecordInfo, error)
}
