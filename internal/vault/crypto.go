package vault

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// checkMagic is the known plaintext sealed into the header at vault
// creation. Unlock succeeds only when the derived key both opens the header
// record and the plaintext matches, compared in constant time.
var checkMagic = []byte("blackbox.vault.v1")

const saltLen = 16

// KDFParams are the argon2id cost parameters. They are chosen at vault
// creation and persisted in the header; the same passphrase must derive the
// same key for the life of the vault file.
type KDFParams struct {
	TimeCost    uint32
	MemoryKiB   uint32
	Parallelism uint8
}

// DefaultKDFParams fit the appliance's SoC: 3 passes over 64 MiB, 4 lanes.
func DefaultKDFParams() KDFParams {
	return KDFParams{TimeCost: 3, MemoryKiB: 64 * 1024, Parallelism: 4}
}

// Header is the vault's self-describing verification record: everything
// needed to re-derive and check the working key, plus the unlock-attempt
// counters. It never contains key material.
type Header struct {
	Salt        []byte
	Params      KDFParams
	CheckNonce  []byte
	CheckCipher []byte
	Attempts    uint64
	LastAttempt time.Time
}

// deriveKey stretches the passphrase into a working key with argon2id.
// The caller owns the returned slice and must wipe it on every failure path.
func deriveKey(passphrase, salt []byte, p KDFParams) []byte {
	return argon2.IDKey(passphrase, salt, p.TimeCost, p.MemoryKiB, p.Parallelism, chacha20poly1305.KeySize)
}

// newSalt returns a fresh random KDF salt.
func newSalt() ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("vault: salt generation: %w", err)
	}
	return salt, nil
}

// seal encrypts plaintext with a fresh random nonce. The site id is bound as
// associated data so a record copied under another key fails authentication.
func seal(key, plaintext, associated []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, fmt.Errorf("vault: cipher init: %w", err)
	}
	nonce = make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("vault: nonce generation: %w", err)
	}
	return nonce, aead.Seal(nil, nonce, plaintext, associated), nil
}

// open authenticates and decrypts a record. Any failure is reported as
// ErrCorruptData; the caller decides whether that means a bad key (unlock)
// or a damaged record (get).
func open(key, nonce, ciphertext, associated []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("vault: cipher init: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, associated)
	if err != nil {
		return nil, ErrCorruptData
	}
	return plaintext, nil
}

// verifyCheck opens the header's verification record with key and compares
// the magic in constant time. Returns false for any mismatch without
// distinguishing why.
func verifyCheck(key []byte, h Header) bool {
	plaintext, err := open(key, h.CheckNonce, h.CheckCipher, nil)
	if err != nil {
		return false
	}
	ok := subtle.ConstantTimeCompare(plaintext, checkMagic) == 1
	wipe(plaintext)
	return ok
}
