package session

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"blackbox/pkg/requestcontext"
)

const testIdleTimeout = 300 * time.Second

type ManagerSuite struct {
	suite.Suite
	mgr   *Manager
	start time.Time
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.mgr = NewManager(testIdleTimeout)
	s.start = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *ManagerSuite) ctxAt(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.start.Add(offset))
}

func (s *ManagerSuite) TestStartsLocked() {
	s.Equal(Locked, s.mgr.State())
	err := s.mgr.WithKey(s.ctxAt(0), func([]byte) error { return nil })
	s.ErrorIs(err, ErrLocked)
}

func (s *ManagerSuite) TestUnlockGrantsKeyBorrow() {
	s.mgr.Unlock(s.ctxAt(0), []byte{1, 2, 3, 4})
	s.Equal(Unlocked, s.mgr.State())

	var seen []byte
	err := s.mgr.WithKey(s.ctxAt(time.Second), func(key []byte) error {
		seen = append(seen, key...)
		return nil
	})
	s.Require().NoError(err)
	s.Equal([]byte{1, 2, 3, 4}, seen)
}

func (s *ManagerSuite) TestLockWipesKeyBuffer() {
	key := []byte("0123456789abcdef0123456789abcdef")
	s.mgr.Unlock(s.ctxAt(0), key)
	s.mgr.Lock()

	s.Equal(Locked, s.mgr.State())
	s.Equal(bytes.Repeat([]byte{0}, len(key)), key,
		"the buffer handed to Unlock must be zeroed on lock")
}

func (s *ManagerSuite) TestLockIsIdempotent() {
	s.mgr.Lock()
	s.mgr.Lock()
	s.Equal(Locked, s.mgr.State())
}

func (s *ManagerSuite) TestReUnlockWipesPreviousKey() {
	first := []byte("first-key-material-first-key-mat")
	s.mgr.Unlock(s.ctxAt(0), first)
	s.mgr.Unlock(s.ctxAt(time.Second), []byte("second-key-material-second-key-m"))

	s.Equal(bytes.Repeat([]byte{0}, len(first)), first)
}

func (s *ManagerSuite) TestErrorFromBorrowStillWipesOnLaterLock() {
	key := []byte("0123456789abcdef0123456789abcdef")
	s.mgr.Unlock(s.ctxAt(0), key)

	wantErr := errors.New("decrypt failed")
	err := s.mgr.WithKey(s.ctxAt(time.Second), func([]byte) error { return wantErr })
	s.ErrorIs(err, wantErr)
	s.Equal(Unlocked, s.mgr.State(), "an operation error does not lock the session")

	s.mgr.Lock()
	s.Equal(bytes.Repeat([]byte{0}, len(key)), key)
}

func (s *ManagerSuite) TestIdleDeadlineLocksOnBorrow() {
	key := []byte("0123456789abcdef0123456789abcdef")
	s.mgr.Unlock(s.ctxAt(0), key)

	var autoLocks int
	s.mgr.onAutoLock = func() { autoLocks++ }

	err := s.mgr.WithKey(s.ctxAt(testIdleTimeout), func([]byte) error { return nil })
	s.ErrorIs(err, ErrLocked)
	s.Equal(Locked, s.mgr.State())
	s.Equal(1, autoLocks)
	s.Equal(bytes.Repeat([]byte{0}, len(key)), key)
}

func (s *ManagerSuite) TestActivityPushesDeadlineOut() {
	s.mgr.Unlock(s.ctxAt(0), []byte{1})

	// Borrow just before the deadline refreshes activity.
	err := s.mgr.WithKey(s.ctxAt(testIdleTimeout-time.Second), func([]byte) error { return nil })
	s.Require().NoError(err)

	// A borrow that would have been past the original deadline still works.
	err = s.mgr.WithKey(s.ctxAt(testIdleTimeout+time.Second), func([]byte) error { return nil })
	s.NoError(err)
}

func (s *ManagerSuite) TestExpireIfIdle() {
	s.Run("noop while locked", func() {
		s.False(s.mgr.ExpireIfIdle(s.start))
	})

	s.Run("noop before the deadline", func() {
		s.mgr.Unlock(s.ctxAt(0), []byte{1})
		s.False(s.mgr.ExpireIfIdle(s.start.Add(testIdleTimeout - time.Second)))
		s.Equal(Unlocked, s.mgr.State())
	})

	s.Run("locks at the deadline", func() {
		s.True(s.mgr.ExpireIfIdle(s.start.Add(testIdleTimeout)))
		s.Equal(Locked, s.mgr.State())
	})
}

func (s *ManagerSuite) TestTouchRefreshesActivity() {
	s.mgr.Unlock(s.ctxAt(0), []byte{1})
	s.mgr.Touch(s.ctxAt(testIdleTimeout - time.Second))

	s.False(s.mgr.ExpireIfIdle(s.start.Add(testIdleTimeout)))
	s.Equal(Unlocked, s.mgr.State())
}
