package vault

import (
	"errors"

	"blackbox/internal/session"
)

// Unlock-time failures. A wrong passphrase never reveals how
// close the guess was; header problems are distinguished so provisioning can
// tell "not initialized" from "won't open".
var (
	ErrWrongPassphrase    = errors.New("vault: wrong passphrase")
	ErrHeaderMissing      = errors.New("vault: header missing, vault not initialized")
	ErrHeaderCorrupt      = errors.New("vault: header corrupt")
	ErrAlreadyInitialized = errors.New("vault: already initialized")
)

// Record-operation failures.
var (
	// ErrLocked aliases the session sentinel so callers can errors.Is
	// against either package.
	ErrLocked = session.ErrLocked

	ErrNotFound = errors.New("vault: record not found")

	// ErrCorruptData means authenticated decryption failed: tampering or
	// bitrot. The record is surfaced as unreadable, never auto-deleted.
	ErrCorruptData = errors.New("vault: record failed authentication")

	// ErrIO marks storage failures. The service retries the operation once
	// before surfacing it; a persistent failure is fatal for the operation,
	// not for the process.
	ErrIO = errors.New("vault: storage failure")
)
