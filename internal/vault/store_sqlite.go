package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"blackbox/pkg/platform/sentinel"
)

// SQLiteStore is the durable vault backing. The database file itself is not
// encrypted: every payload cell is AEAD ciphertext and the header row holds
// only salt, cost parameters, and the verification ciphertext. The file is
// created 0600 inside a 0700 directory.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS vault_header (
	id           INTEGER PRIMARY KEY CHECK (id = 1),
	salt         BLOB NOT NULL,
	time_cost    INTEGER NOT NULL,
	memory_kib   INTEGER NOT NULL,
	parallelism  INTEGER NOT NULL,
	check_nonce  BLOB NOT NULL,
	check_cipher BLOB NOT NULL,
	attempts     INTEGER NOT NULL DEFAULT 0,
	last_attempt INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS vault_records (
	site_id    TEXT PRIMARY KEY,
	nonce      BLOB NOT NULL,
	payload    BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// OpenSQLiteStore opens (creating if necessary) the vault database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("vault: create db dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("vault: open db: %w", err)
	}
	// Single local writer; pool concurrency only invites SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("vault: init schema: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		db.Close()
		return nil, fmt.Errorf("vault: chmod db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LoadHeader(ctx context.Context) (Header, error) {
	var (
		h           Header
		lastAttempt int64
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT salt, time_cost, memory_kib, parallelism, check_nonce, check_cipher, attempts, last_attempt
		FROM vault_header WHERE id = 1`)
	err := row.Scan(&h.Salt, &h.Params.TimeCost, &h.Params.MemoryKiB, &h.Params.Parallelism,
		&h.CheckNonce, &h.CheckCipher, &h.Attempts, &lastAttempt)
	if errors.Is(err, sql.ErrNoRows) {
		return Header{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Header{}, fmt.Errorf("vault: load header: %w: %w", sentinel.ErrUnavailable, err)
	}
	if lastAttempt > 0 {
		h.LastAttempt = time.Unix(lastAttempt, 0).UTC()
	}
	return h, nil
}

func (s *SQLiteStore) SaveHeader(ctx context.Context, h Header) error {
	var lastAttempt int64
	if !h.LastAttempt.IsZero() {
		lastAttempt = h.LastAttempt.Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vault_header (id, salt, time_cost, memory_kib, parallelism, check_nonce, check_cipher, attempts, last_attempt)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			salt = excluded.salt,
			time_cost = excluded.time_cost,
			memory_kib = excluded.memory_kib,
			parallelism = excluded.parallelism,
			check_nonce = excluded.check_nonce,
			check_cipher = excluded.check_cipher,
			attempts = excluded.attempts,
			last_attempt = excluded.last_attempt`,
		h.Salt, h.Params.TimeCost, h.Params.MemoryKiB, h.Params.Parallelism,
		h.CheckNonce, h.CheckCipher, h.Attempts, lastAttempt)
	if err != nil {
		return fmt.Errorf("vault: save header: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) Find(ctx context.Context, siteID string) (Record, error) {
	var (
		rec                  Record
		createdAt, updatedAt int64
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT site_id, nonce, payload, created_at, updated_at FROM vault_records WHERE site_id = ?`, siteID)
	err := row.Scan(&rec.SiteID, &rec.Nonce, &rec.Payload, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("vault: find record: %w: %w", sentinel.ErrUnavailable, err)
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return rec, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vault_records (site_id, nonce, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(site_id) DO UPDATE SET
			nonce = excluded.nonce,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		rec.SiteID, rec.Nonce, rec.Payload, rec.CreatedAt.Unix(), rec.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("vault: upsert record: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, siteID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vault_records WHERE site_id = ?`, siteID)
	if err != nil {
		return fmt.Errorf("vault: delete record: %w: %w", sentinel.ErrUnavailable, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]RecordInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT site_id, created_at, updated_at FROM vault_records ORDER BY site_id`)
	if err != nil {
		return nil, fmt.Errorf("vault: list records: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []RecordInfo
	for rows.Next() {
		var (
			info                 RecordInfo
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&info.SiteID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("vault: scan record row: %w: %w", sentinel.ErrUnavailable, err)
		}
		info.CreatedAt = time.Unix(createdAt, 0).UTC()
		info.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vault: list records: %w: %w", sentinel.ErrUnavailable, err)
	}
	return out, nil
}
