// Package requestcontext provides transport-independent context accessors for
// turn-scoped values.
//
// Values are set once per voice turn by the transport layer and consumed by
// services. Keeping this package free of transport dependencies lets the
// resolution engine, vault, and session manager import only what they need.
//
// Usage in services (read values):
//
//	turnID := requestcontext.TurnID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	turnIDKey   struct{}
	turnTimeKey struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyTurnID   = turnIDKey{}
	ContextKeyTurnTime = turnTimeKey{}
)

// TurnID retrieves the voice-turn identifier from the context.
// Returns "" if not set (non-turn contexts like startup or the idle ticker).
func TurnID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyTurnID).(string); ok {
		return id
	}
	return ""
}

// WithTurnID injects a turn identifier into the context.
func WithTurnID(ctx context.Context, turnID string) context.Context {
	return context.WithValue(ctx, ContextKeyTurnID, turnID)
}

// Now retrieves the turn-scoped time from context.
// Falls back to time.Now() when not set, so background workers and CLI paths
// keep working without a transport in front of them. Tests inject a fixed
// time here to drive the idle-lock deadline deterministically.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyTurnTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyTurnTime, t)
}
