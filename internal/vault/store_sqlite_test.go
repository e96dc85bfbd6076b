package vault

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"blackbox/pkg/platform/sentinel"
)

type SQLiteStoreSuite struct {
	suite.Suite
	store *SQLiteStore
	path  string
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLiteStoreSuite))
}

func (s *SQLiteStoreSuite) SetupTest() {
	s.path = filepath.Join(s.T().TempDir(), "db", "vault.db")
	store, err := OpenSQLiteStore(s.path)
	s.Require().NoError(err)
	s.store = store
}

func (s *SQLiteStoreSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *SQLiteStoreSuite) TestHeaderRoundTrip() {
	_, err := s.store.LoadHeader(context.Background())
	s.ErrorIs(err, sentinel.ErrNotFound)

	want := Header{
		Salt:        []byte("0123456789abcdef"),
		Params:      KDFParams{TimeCost: 3, MemoryKiB: 64 * 1024, Parallelism: 4},
		CheckNonce:  []byte("nonce-nonce!"),
		CheckCipher: []byte("ciphertext"),
		Attempts:    7,
		LastAttempt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	s.Require().NoError(s.store.SaveHeader(context.Background(), want))

	got, err := s.store.LoadHeader(context.Background())
	s.Require().NoError(err)
	s.Equal(want, got)
}

func (s *SQLiteStoreSuite) TestSaveHeaderOverwritesSingleRow() {
	h := Header{Salt: []byte("salt"), CheckNonce: []byte("n"), CheckCipher: []byte("c")}
	s.Require().NoError(s.store.SaveHeader(context.Background(), h))

	h.Attempts = 3
	s.Require().NoError(s.store.SaveHeader(context.Background(), h))

	got, err := s.store.LoadHeader(context.Background())
	s.Require().NoError(err)
	s.Equal(uint64(3), got.Attempts)
}

func (s *SQLiteStoreSuite) TestRecordLifecycle() {
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	rec := Record{
		SiteID:    "gmail",
		Nonce:     []byte("nonce-nonce!"),
		Payload:   []byte("ciphertext"),
		CreatedAt: created,
		UpdatedAt: created,
	}
	s.Require().NoError(s.store.Upsert(ctx, rec))

	got, err := s.store.Find(ctx, "gmail")
	s.Require().NoError(err)
	s.Equal(rec, got)

	rec.Payload = []byte("new ciphertext")
	rec.UpdatedAt = created.Add(time.Minute)
	s.Require().NoError(s.store.Upsert(ctx, rec))

	got, err = s.store.Find(ctx, "gmail")
	s.Require().NoError(err)
	s.Equal([]byte("new ciphertext"), got.Payload)
	s.Equal(created, got.CreatedAt, "upsert keeps the original created_at")

	s.Require().NoError(s.store.Delete(ctx, "gmail"))
	_, err = s.store.Find(ctx, "gmail")
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(ctx, "gmail"), sentinel.ErrNotFound)
}

func (s *SQLiteStoreSuite) TestListSortedBySiteID() {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, id := range []string{"netflix", "amazon", "gmail"} {
		s.Require().NoError(s.store.Upsert(ctx, Record{
			SiteID: id, Nonce: []byte("n"), Payload: []byte("c"),
			CreatedAt: now, UpdatedAt: now,
		}))
	}

	infos, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(infos, 3)
	s.Equal("amazon", infos[0].SiteID)
	s.Equal("gmail", infos[1].SiteID)
	s.Equal("netflix", infos[2].SiteID)
}

func (s *SQLiteStoreSuite) TestDataSurvivesReopen() {
	ctx := context.Background()
	s.Require().NoError(s.store.SaveHeader(ctx, Header{
		Salt: []byte("salt"), CheckNonce: []byte("n"), CheckCipher: []byte("c"),
	}))
	s.Require().NoError(s.store.Close())

	store, err := OpenSQLiteStore(s.path)
	s.Require().NoError(err)
	s.store = store

	got, err := s.store.LoadHeader(ctx)
	s.Require().NoError(err)
	s.Equal([]byte("salt"), got.Salt)
}
