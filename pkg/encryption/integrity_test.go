package encryption

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashSHA256(t *testing.T) {
	// Known vector
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		HashSHA256([]byte{}))

	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		HashSHA256([]byte("hello")))
}

func TestVerifyIntegrity(t *testing.T) {
	data := []byte("patient-record-payload")
	hash := HashSHA256(data)

	assert.True(t, VerifyIntegrity(data, hash))

	mutated := append([]byte{}, data...)
	mutated[0] ^= 0x01
	assert.False(t, VerifyIntegrity(mutated, hash))
}

func TestVerifyIntegrity_MalformedHash(t *testing.T) {
	data := []byte("data")

	assert.False(t, VerifyIntegrity(data, ""))
	assert.False(t, VerifyIntegrity(data, "zz"))
	assert.False(t, VerifyIntegrity(data, "abcd")) // too short
}
