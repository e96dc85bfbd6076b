package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"blackbox/internal/catalog"
	"blackbox/internal/session"
	"blackbox/internal/vault"
)

type RouterSuite struct {
	suite.Suite
	srv  *httptest.Server
	sess *session.Manager
	vsvc *vault.Service
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.sess = session.NewManager(300 * time.Second)
	vsvc, err := vault.New(vault.NewInMemoryStore(), s.sess,
		vault.WithKDFParams(vault.KDFParams{TimeCost: 1, MemoryKiB: 8 * 1024, Parallelism: 1}))
	s.Require().NoError(err)
	s.vsvc = vsvc

	sites := catalog.NewInMemoryStore(catalog.Seed()...)
	s.srv = httptest.NewServer(NewRouter(s.sess, vsvc, sites, nil))
}

func (s *RouterSuite) TearDownTest() {
	s.srv.Close()
}

func (s *RouterSuite) getStatus() Status {
	resp, err := http.Get(s.srv.URL + "/status")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var st Status
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&st))
	return st
}

func (s *RouterSuite) TestHealthz() {
	resp, err := http.Get(s.srv.URL + "/healthz")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *RouterSuite) TestStatusFreshDevice() {
	st := s.getStatus()
	s.Equal("locked", st.State)
	s.False(st.Initialized)
	s.Equal(15, st.CatalogSize)
	s.Zero(st.UnlockAttempts)
}

func (s *RouterSuite) TestStatusAfterUnlock() {
	ctx := context.Background()
	s.Require().NoError(s.vsvc.Init(ctx, []byte("master")))
	s.Require().NoError(s.vsvc.Unlock(ctx, []byte("master")))

	st := s.getStatus()
	s.Equal("unlocked", st.State)
	s.True(st.Initialized)
	s.Equal(uint64(1), st.UnlockAttempts)
	s.NotEmpty(st.LastAttempt)
	s.Zero(st.Records)
}

func (s *RouterSuite) TestMetricsEndpoint() {
	resp, err := http.Get(s.srv.URL + "/metrics")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}
