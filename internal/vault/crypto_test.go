package vault

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastKDFParams keeps argon2id cheap in tests. Production costs are covered
// by DefaultKDFParams and exercised nowhere in the test suite.
func fastKDFParams() KDFParams {
	return KDFParams{TimeCost: 1, MemoryKiB: 8 * 1024, Parallelism: 1}
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := deriveKey([]byte("correct horse"), bytes.Repeat([]byte{7}, saltLen), fastKDFParams())
	plaintext := []byte(`{"password":"secret99"}`)

	nonce, ciphertext, err := seal(key, plaintext, []byte("gmail"))
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ciphertext)

	got, err := open(key, nonce, ciphertext, []byte("gmail"))
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestSealUsesFreshNonces(t *testing.T) {
	key := deriveKey([]byte("pw"), bytes.Repeat([]byte{7}, saltLen), fastKDFParams())

	n1, c1, err := seal(key, []byte("same plaintext"), nil)
	require.NoError(t, err)
	n2, c2, err := seal(key, []byte("same plaintext"), nil)
	require.NoError(t, err)

	assert.NotEqual(t, n1, n2)
	assert.NotEqual(t, c1, c2)
}

func TestOpenRejectsTampering(t *testing.T) {
	key := deriveKey([]byte("pw"), bytes.Repeat([]byte{7}, saltLen), fastKDFParams())
	nonce, ciphertext, err := seal(key, []byte("payload"), []byte("gmail"))
	require.NoError(t, err)

	t.Run("flipped ciphertext byte", func(t *testing.T) {
		tampered := append([]byte(nil), ciphertext...)
		tampered[0] ^= 0x01
		_, err := open(key, nonce, tampered, []byte("gmail"))
		assert.ErrorIs(t, err, ErrCorruptData)
	})

	t.Run("wrong associated data", func(t *testing.T) {
		_, err := open(key, nonce, ciphertext, []byte("netflix"))
		assert.ErrorIs(t, err, ErrCorruptData)
	})

	t.Run("wrong key", func(t *testing.T) {
		other := deriveKey([]byte("other"), bytes.Repeat([]byte{7}, saltLen), fastKDFParams())
		_, err := open(other, nonce, ciphertext, []byte("gmail"))
		assert.ErrorIs(t, err, ErrCorruptData)
	})
}

func TestVerifyCheck(t *testing.T) {
	salt, err := newSalt()
	require.NoError(t, err)
	key := deriveKey([]byte("master"), salt, fastKDFParams())

	nonce, cipher, err := seal(key, checkMagic, nil)
	require.NoError(t, err)
	header := Header{Salt: salt, Params: fastKDFParams(), CheckNonce: nonce, CheckCipher: cipher}

	assert.True(t, verifyCheck(key, header))

	wrong := deriveKey([]byte("guess"), salt, fastKDFParams())
	assert.False(t, verifyCheck(wrong, header))
}

func TestDeriveKeyIsDeterministicPerSalt(t *testing.T) {
	salt1 := bytes.Repeat([]byte{1}, saltLen)
	salt2 := bytes.Repeat([]byte{2}, saltLen)

	assert.Equal(t,
		deriveKey([]byte("pw"), salt1, fastKDFParams()),
		deriveKey([]byte("pw"), salt1, fastKDFParams()))
	assert.NotEqual(t,
		deriveKey([]byte("pw"), salt1, fastKDFParams()),
		deriveKey([]byte("pw"), salt2, fastKDFParams()))
}
