package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"blackbox/pkg/platform/sentinel"
)

type FileStoreSuite struct {
	suite.Suite
	path string
	ctx  context.Context
}

func TestFileStoreSuite(t *testing.T) {
	suite.Run(t, new(FileStoreSuite))
}

func (s *FileStoreSuite) SetupTest() {
	s.path = filepath.Join(s.T().TempDir(), "sites.json")
	s.ctx = context.Background()
}

func (s *FileStoreSuite) TestOpenSeedsMissingFile() {
	store, err := OpenFileStore(s.path)
	s.Require().NoError(err)

	s.Positive(store.Len())
	_, err = os.Stat(s.path)
	s.NoError(err, "seed catalog is written to disk")

	e, err := store.FindByID(s.ctx, "gmail")
	s.Require().NoError(err)
	s.Contains(e.Aliases, "google mail")
}

func (s *FileStoreSuite) TestOpenExistingFile() {
	err := os.WriteFile(s.path, []byte(`{"sites":{"gmail":["gmail","google mail"]}}`), 0o644)
	s.Require().NoError(err)

	store, err := OpenFileStore(s.path)
	s.Require().NoError(err)
	s.Equal(1, store.Len())
}

func (s *FileStoreSuite) TestOpenCorruptFile() {
	err := os.WriteFile(s.path, []byte(`{not json`), 0o644)
	s.Require().NoError(err)

	_, err = OpenFileStore(s.path)
	s.ErrorIs(err, sentinel.ErrCorrupt)
}

func (s *FileStoreSuite) TestAppendPersistsAcrossReopen() {
	store, err := OpenFileStore(s.path)
	s.Require().NoError(err)

	entry, err := NewEntry("jellyfin", "jellyfin", []string{"jellyfin", "jelly fin"})
	s.Require().NoError(err)
	s.Require().NoError(store.Append(s.ctx, entry))

	reopened, err := OpenFileStore(s.path)
	s.Require().NoError(err)
	got, err := reopened.FindByID(s.ctx, "jellyfin")
	s.Require().NoError(err)
	s.Contains(got.Aliases, "jelly fin")
}
