package encryption

import "errors"

// Sentinel errors for the encryption core. Callers match with errors.Is.
//
// ErrDecryption is deliberately generic: tag verification, padding
// validation and key mismatch all surface as the same error so that
// nothing about the failure mode leaks to an attacker.
var (
	// ErrKeyDerivation indicates a malformed password or salt
	ErrKeyDerivation = errors.New("key derivation failed")

	// ErrEncryption indicates an unencryptable input (oversized plaintext, invalid key length)
	ErrEncryption = errors.New("encryption failed")

	// ErrDecryption indicates any authentication or decryption failure
	ErrDecryption = errors.New("decryption failed")

	// ErrIntegrityMismatch indicates a post-decrypt hash that does not match the receipt
	ErrIntegrityMismatch = errors.New("integrity verification failed")
)
