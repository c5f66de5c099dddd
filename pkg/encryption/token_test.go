package encryption

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deriveTokenKey(t *testing.T, password string) string {
	t.Helper()
	key, _, err := DeriveKey(password, nil)
	require.NoError(t, err)
	return EncodeKey(key)
}

func TestToken_RoundTrip(t *testing.T) {
	encodedKey := deriveTokenKey(t, "pw1")

	testCases := [][]byte{
		[]byte("hello world"),
		{},
		make([]byte, 4096),
		{0x00, 0xff},
	}

	for _, data := range testCases {
		token, err := EncryptToken(data, encodedKey)
		require.NoError(t, err)

		plaintext, err := DecryptToken(token, encodedKey)
		require.NoError(t, err)
		assert.Equal(t, data, plaintext)
	}
}

func TestToken_WrongKey(t *testing.T) {
	token, err := EncryptToken([]byte("data"), deriveTokenKey(t, "pw1"))
	require.NoError(t, err)

	_, err = DecryptToken(token, deriveTokenKey(t, "pw2"))
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestToken_BitFlipFailsClosed(t *testing.T) {
	encodedKey := deriveTokenKey(t, "pw1")
	token, err := EncryptToken([]byte("sensitive record"), encodedKey)
	require.NoError(t, err)

	raw, err := base64.URLEncoding.DecodeString(token)
	require.NoError(t, err)

	// Flip one bit at every byte position: version, timestamp, IV,
	// ciphertext and MAC must all be covered by the integrity tag
	for i := range raw {
		mutated := make([]byte, len(raw))
		copy(mutated, raw)
		mutated[i] ^= 0x01

		_, err := DecryptToken(base64.URLEncoding.EncodeToString(mutated), encodedKey)
		require.ErrorIs(t, err, ErrDecryption, "bit flip at byte %d not rejected", i)
	}
}

func TestToken_Malformed(t *testing.T) {
	encodedKey := deriveTokenKey(t, "pw1")

	testCases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not base64", "%%%"},
		{"too short", base64.URLEncoding.EncodeToString(make([]byte, 10))},
		{"wrong version", base64.URLEncoding.EncodeToString(append([]byte{0x81}, make([]byte, 100)...))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecryptToken(tc.token, encodedKey)
			assert.ErrorIs(t, err, ErrDecryption)
		})
	}
}

func TestToken_InvalidKey(t *testing.T) {
	_, err := EncryptToken([]byte("data"), "short-key")
	assert.ErrorIs(t, err, ErrEncryption)

	shortKey := base64.URLEncoding.EncodeToString(make([]byte, 16))
	_, err = EncryptToken([]byte("data"), shortKey)
	assert.ErrorIs(t, err, ErrEncryption)
}

func TestToken_FreshIVPerCall(t *testing.T) {
	encodedKey := deriveTokenKey(t, "pw1")

	token1, err := EncryptToken([]byte("same data"), encodedKey)
	require.NoError(t, err)
	token2, err := EncryptToken([]byte("same data"), encodedKey)
	require.NoError(t, err)

	assert.NotEqual(t, token1, token2)
}
