// Package session owns the working-key lifecycle. One Manager exists per
// daemon; it is created Locked, becomes Unlocked only after the vault has
// verified a derived key, and returns to Locked on idle timeout, explicit
// lock, or unlock-failure reset. On every transition out of Unlocked the key
// buffer is overwritten with zeros before it is released. No other package
// ever stores the key; it only borrows it for the duration of one call.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"blackbox/pkg/requestcontext"
)

// ErrLocked is returned by key borrows while the session is Locked.
var ErrLocked = errors.New("session locked")

// State is the session lock state.
type State int

const (
	Locked State = iota
	Unlocked
)

func (s State) String() string {
	if s == Unlocked {
		return "unlocked"
	}
	return "locked"
}

// Manager is the process-wide session handle. It is constructed explicitly
// and passed to the vault and orchestrator, never kept as ambient global
// state, so tests can run independent sessions side by side.
type Manager struct {
	mu           sync.Mutex
	state        State
	key          []byte
	lastActivity time.Time
	idleTimeout  time.Duration
	logger       *slog.Logger
	onAutoLock   func()
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger attaches a logger for lifecycle transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithAutoLockHook registers a callback fired when the idle deadline locks
// the session (used for the idle-lock metric).
func WithAutoLockHook(fn func()) Option {
	return func(m *Manager) { m.onAutoLock = fn }
}

// NewManager returns a Manager in the Locked state.
func NewManager(idleTimeout time.Duration, opts ...Option) *Manager {
	m := &Manager{state: Locked, idleTimeout: idleTimeout}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State reports the current lock state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Unlock transitions to Unlocked, taking ownership of key. The caller must
// not retain or reuse the slice afterwards. Any previously held key is wiped
// first, so a repeated unlock cannot leak the old key.
func (m *Manager) Unlock(ctx context.Context, key []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wipeLocked()
	m.key = key
	m.state = Unlocked
	m.lastActivity = requestcontext.Now(ctx)
	if m.logger != nil {
		m.logger.Info("session unlocked")
	}
}

// Lock wipes the working key and transitions to Locked. Idempotent.
func (m *Manager) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Locked {
		return
	}
	m.wipeLocked()
	m.state = Locked
	if m.logger != nil {
		m.logger.Info("session locked")
	}
}

// Touch records user activity, pushing the idle deadline out.
func (m *Manager) Touch(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Unlocked {
		m.lastActivity = requestcontext.Now(ctx)
	}
}

// ExpireIfIdle locks the session when the idle deadline has passed and
// reports whether it did. Driven by the daemon's ticker; because a vault
// operation holds the same mutex for the whole borrow, an in-flight
// operation always completes before the transition takes effect.
func (m *Manager) ExpireIfIdle(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Unlocked || now.Sub(m.lastActivity) < m.idleTimeout {
		return false
	}
	m.wipeLocked()
	m.state = Locked
	if m.logger != nil {
		m.logger.Info("session locked after idle timeout", "idle_timeout", m.idleTimeout)
	}
	if m.onAutoLock != nil {
		m.onAutoLock()
	}
	return true
}

// WithKey borrows the working key for the duration of fn, under the session
// mutex. The deadline is re-checked against the turn clock before the borrow
// so a stale session locks itself rather than serving one last request. fn
// must not retain the slice.
func (m *Manager) WithKey(ctx context.Context, fn func(key []byte) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Unlocked {
		return ErrLocked
	}
	now := requestcontext.Now(ctx)
	if now.Sub(m.lastActivity) >= m.idleTimeout {
		m.wipeLocked()
		m.state = Locked
		if m.logger != nil {
			m.logger.Info("session locked after idle timeout", "idle_timeout", m.idleTimeout)
		}
		if m.onAutoLock != nil {
			m.onAutoLock()
		}
		return ErrLocked
	}
	m.lastActivity = now
	return fn(m.key)
}

// wipeLocked zeroes and drops the key buffer. Caller holds m.mu.
func (m *Manager) wipeLocked() {
	for i := range m.key {
		m.key[i] = 0
	}
	m.key = nil
}
