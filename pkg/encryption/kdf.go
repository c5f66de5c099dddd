// Package encryption implements the cryptographic core of the vault:
// password-based key derivation, authenticated symmetric encryption in
// token and AEAD modes, RSA-OAEP asymmetric encryption, hybrid envelopes
// and content integrity hashing.
package encryption

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the symmetric key length in bytes (AES-256)
	KeySize = 32

	// SaltSize is the key derivation salt length in bytes
	SaltSize = 16

	// PBKDF2Iterations is the iteration count for password-based key derivation
	PBKDF2Iterations = 100000
)

// DeriveKey derives a 32-byte symmetric key from a password using
// PBKDF2-HMAC-SHA256. If salt is nil a fresh random 16-byte salt is
// generated; the caller must retain the returned salt or the derived
// key is unrecoverable.
//
// Derivation is deterministic: the same (password, salt) pair always
// yields the same key.
func DeriveKey(password string, salt []byte) ([]byte, []byte, error) {
	if password == "" {
		return nil, nil, fmt.Errorf("%w: password cannot be empty", ErrKeyDerivation)
	}

	if salt == nil {
		salt = make([]byte, SaltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, nil, fmt.Errorf("%w: salt generation: %v", ErrKeyDerivation, err)
		}
	} else if len(salt) != SaltSize {
		return nil, nil, fmt.Errorf("%w: salt must be %d bytes, got %d", ErrKeyDerivation, SaltSize, len(salt))
	}

	key := pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, KeySize, sha256.New)
	return key, salt, nil
}

// EncodeKey encodes a raw key in the URL-safe base64 form used by the
// token mode and by byte-encoded receipt fields.
func EncodeKey(key []byte) string {
	return base64.URLEncoding.EncodeToString(key)
}

// DecodeKey decodes a URL-safe base64 key back to raw bytes.
func DecodeKey(encoded string) ([]byte, error) {
	key, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed key encoding", ErrKeyDerivation)
	}
	return key, nil
}

// ZeroKey overwrites key material in place. Ephemeral keys are cleared
// as soon as the operation that needed them returns.
func ZeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
