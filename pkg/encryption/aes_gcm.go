package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

const (
	// GCMNonceSize is the AES-GCM nonce length in bytes
	GCMNonceSize = 12

	// GCMTagSize is the AES-GCM authentication tag length in bytes
	GCMTagSize = 16

	// AlgorithmAESGCM is the algorithm identifier recorded in receipts
	AlgorithmAESGCM = "AES-256-GCM"
)

// AEADResult holds the output of an AEAD encryption operation with the
// nonce and authentication tag split out explicitly.
type AEADResult struct {
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
}

// EncryptGCM encrypts data using AES-256-GCM with a fresh random nonce.
// associatedData is authenticated but not encrypted and may be nil.
// The key must be exactly 32 bytes.
func EncryptGCM(data, key, associatedData []byte) (*AEADResult, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: invalid key size: expected %d bytes, got %d", ErrEncryption, KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}

	nonce := make([]byte, GCMNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: nonce generation: %v", ErrEncryption, err)
	}

	sealed := gcm.Seal(nil, nonce, data, associatedData)

	// Seal appends the tag to the ciphertext; split it back out
	split := len(sealed) - GCMTagSize
	return &AEADResult{
		Ciphertext: sealed[:split],
		Nonce:      nonce,
		Tag:        sealed[split:],
	}, nil
}

// DecryptGCM decrypts AES-256-GCM ciphertext, verifying the tag against
// the ciphertext and associated data. Any verification failure (wrong
// key, modified ciphertext, nonce, tag or associated data) returns
// ErrDecryption with no further detail.
func DecryptGCM(ciphertext, key, nonce, tag, associatedData []byte) ([]byte, error) {
	if len(key) != KeySize || len(nonce) != GCMNonceSize || len(tag) != GCMTagSize {
		return nil, ErrDecryption
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrDecryption
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrDecryption
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, associatedData)
	if err != nil {
		return nil, ErrDecryption
	}

	return plaintext, nil
}

// GenerateKey generates a random 32-byte symmetric key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}
