package encryption

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashSHA256 computes the hex-encoded SHA-256 digest of data.
func HashSHA256(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}

// VerifyIntegrity reports whether data hashes to expectedHash (hex
// SHA-256). It is a pure comparison with no side effects; digests are
// compared in constant time.
func VerifyIntegrity(data []byte, expectedHash string) bool {
	expected, err := hex.DecodeString(expectedHash)
	if err != nil || len(expected) != sha256.Size {
		return false
	}

	digest := sha256.Sum256(data)
	return subtle.ConstantTimeCompare(digest[:], expected) == 1
}
