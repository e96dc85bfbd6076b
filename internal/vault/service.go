// Package vault implements the encrypted credential store. Records are
// sealed with chacha20poly1305 under a working key derived from the master
// passphrase via argon2id; the session manager owns that key and the vault
// only borrows it per call. Plaintext returned to callers lives in wipeable
// buffers.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"blackbox/internal/platform/metrics"
	"blackbox/internal/session"
	"blackbox/pkg/platform/sentinel"
	"blackbox/pkg/requestcontext"
)

// Service is the vault façade. Construct one per daemon with New.
type Service struct {
	store   Store
	session *session.Manager
	params  KDFParams
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a logger. Log lines never include passphrases, keys,
// or decrypted payloads.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches the daemon metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithKDFParams overrides the cost parameters used when initializing a new
// vault. Existing vaults always use the parameters persisted in their header.
func WithKDFParams(p KDFParams) Option {
	return func(s *Service) { s.params = p }
}

// New builds a vault service over store, gated by sess.
func New(store Store, sess *session.Manager, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("vault: store is required")
	}
	if sess == nil {
		return nil, errors.New("vault: session manager is required")
	}
	s := &Service{store: store, session: sess, params: DefaultKDFParams()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Initialized reports whether a vault header exists.
func (s *Service) Initialized(ctx context.Context) (bool, error) {
	_, err := s.store.LoadHeader(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %w", ErrIO, err)
	}
}

// Init creates the vault header: fresh salt, the configured cost parameters,
// and the sealed verification record. It does not unlock; call Unlock with
// the same passphrase afterwards.
func (s *Service) Init(ctx context.Context, passphrase []byte) error {
	if _, err := s.store.LoadHeader(ctx); err == nil {
		return ErrAlreadyInitialized
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	salt, err := newSalt()
	if err != nil {
		return err
	}
	key := deriveKey(passphrase, salt, s.params)
	defer wipe(key)

	nonce, cipher, err := seal(key, checkMagic, nil)
	if err != nil {
		return err
	}
	header := Header{Salt: salt, Params: s.params, CheckNonce: nonce, CheckCipher: cipher}
	if err := s.retryOnce(func() error { return s.store.SaveHeader(ctx, header) }); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if s.logger != nil {
		s.logger.Info("vault initialized",
			"kdf_time", s.params.TimeCost, "kdf_memory_kib", s.params.MemoryKiB, "kdf_parallelism", s.params.Parallelism)
	}
	return nil
}

// Unlock derives a key from passphrase using the persisted salt and cost
// parameters, verifies it against the header record, and on success hands
// the key to the session. Every attempt is recorded as a count and timestamp
// only, never the passphrase. A failed attempt wipes the derived key and
// leaves the session Locked.
func (s *Service) Unlock(ctx context.Context, passphrase []byte) error {
	header, err := s.store.LoadHeader(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return ErrHeaderMissing
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if len(header.Salt) == 0 || len(header.CheckCipher) == 0 {
		return ErrHeaderCorrupt
	}

	key := deriveKey(passphrase, header.Salt, header.Params)

	header.Attempts++
	header.LastAttempt = requestcontext.Now(ctx)
	if saveErr := s.store.SaveHeader(ctx, header); saveErr != nil && s.logger != nil {
		s.logger.Warn("could not persist unlock attempt counter", "err", saveErr)
	}

	if !verifyCheck(key, header) {
		wipe(key)
		if s.metrics != nil {
			s.metrics.UnlockAttempts.WithLabelValues("failure").Inc()
		}
		if s.logger != nil {
			s.logger.Warn("unlock failed", "attempts", header.Attempts)
		}
		return ErrWrongPassphrase
	}

	s.session.Unlock(ctx, key)
	if s.metrics != nil {
		s.metrics.UnlockAttempts.WithLabelValues("success").Inc()
	}
	return nil
}

// Lock wipes the working key and locks the session. Idempotent.
func (s *Service) Lock() {
	s.session.Lock()
}

// Get decrypts the record for siteID. The caller must Wipe the returned
// record when done; prefer WithRecord for scoped access.
func (s *Service) Get(ctx context.Context, siteID string) (*ClearRecord, error) {
	var out *ClearRecord
	err := s.session.WithKey(ctx, func(key []byte) error {
		rec, err := s.findRecord(ctx, siteID)
		if err != nil {
			return err
		}
		plaintext, err := open(key, rec.Nonce, rec.Payload, []byte(siteID))
		if err != nil {
			return err
		}
		defer wipe(plaintext)
		out, err = decodePayload(siteID, plaintext)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptData, err)
		}
		return nil
	})
	if err != nil {
		s.countOp("get", err)
		return nil, err
	}
	s.countOp("get", nil)
	return out, nil
}

// WithRecord runs fn over the decrypted record and wipes the plaintext on
// every exit path, normal or not.
func (s *Service) WithRecord(ctx context.Context, siteID string, fn func(*ClearRecord) error) error {
	rec, err := s.Get(ctx, siteID)
	if err != nil {
		return err
	}
	defer rec.Wipe()
	return fn(rec)
}

// Put seals rec under a fresh nonce and overwrites any existing record for
// the site (latest write wins). The caller keeps ownership of rec's buffers
// and is responsible for wiping them after the call returns.
func (s *Service) Put(ctx context.Context, siteID string, rec *ClearRecord) error {
	if siteID == "" {
		return errors.New("vault: site id must not be empty")
	}
	err := s.session.WithKey(ctx, func(key []byte) error {
		plaintext, err := encodePayload(rec)
		if err != nil {
			return fmt.Errorf("vault: encode payload: %w", err)
		}
		defer wipe(plaintext)

		nonce, cipher, err := seal(key, plaintext, []byte(siteID))
		if err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		stored := Record{SiteID: siteID, Nonce: nonce, Payload: cipher, CreatedAt: now, UpdatedAt: now}
		if existing, err := s.findRecord(ctx, siteID); err == nil {
			stored.CreatedAt = existing.CreatedAt
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		if err := s.retryOnce(func() error { return s.store.Upsert(ctx, stored) }); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
		return nil
	})
	s.countOp("put", err)
	return err
}

// Delete removes the record for siteID.
func (s *Service) Delete(ctx context.Context, siteID string) error {
	err := s.session.WithKey(ctx, func([]byte) error {
		err := s.retryOnce(func() error { return s.store.Delete(ctx, siteID) })
		if errors.Is(err, sentinel.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
		return nil
	})
	s.countOp("delete", err)
	return err
}

// List returns record metadata (never payloads). Requires an unlocked
// session like every other record operation.
func (s *Service) List(ctx context.Context) ([]RecordInfo, error) {
	var out []RecordInfo
	err := s.session.WithKey(ctx, func([]byte) error {
		var err error
		out, err = s.store.List(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stats is the metadata summary for the status endpoint.
type Stats struct {
	Records        int
	UnlockAttempts uint64
	LastAttempt    string
}

// Stats reads the attempt counters and the record count. Works while locked;
// it touches no ciphertext and exposes a count, never site ids.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	header, err := s.store.LoadHeader(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Stats{}, ErrHeaderMissing
	}
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %w", ErrIO, err)
	}
	st := Stats{UnlockAttempts: header.Attempts}
	if !header.LastAttempt.IsZero() {
		st.LastAttempt = header.LastAttempt.UTC().Format("2006-01-02T15:04:05Z")
	}
	if infos, err := s.store.List(ctx); err == nil {
		st.Records = len(infos)
	}
	return st, nil
}

// findRecord maps store sentinels into the vault taxonomy, retrying
// transient storage failures once.
func (s *Service) findRecord(ctx context.Context, siteID string) (Record, error) {
	var rec Record
	err := s.retryOnce(func() error {
		var err error
		rec, err = s.store.Find(ctx, siteID)
		return err
	})
	if errors.Is(err, sentinel.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return rec, nil
}

// retryOnce re-runs fn a single time when the store reports a transient
// backend failure. Anything else passes through untouched.
func (s *Service) retryOnce(fn func() error) error {
	err := fn()
	if err == nil || !errors.Is(err, sentinel.ErrUnavailable) {
		return err
	}
	if s.logger != nil {
		s.logger.Warn("vault storage failure, retrying once", "err", err)
	}
	return fn()
}

func (s *Service) countOp(op string, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrLocked):
		result = "locked"
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case errors.Is(err, ErrCorruptData):
		result = "corrupt"
	default:
		result = "error"
	}
	s.metrics.VaultOps.WithLabelValues(op, result).Inc()
}
