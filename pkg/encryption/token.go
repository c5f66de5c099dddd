package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// Self-contained authenticated token mode (Fernet-compatible).
//
// A token is the URL-safe base64 encoding of:
//
//	version (0x80) | timestamp (8 bytes BE) | IV (16 bytes) |
//	AES-128-CBC ciphertext (PKCS#7) | HMAC-SHA256 tag (32 bytes)
//
// under a 32-byte key whose first half signs and second half encrypts.
// Any bit flip anywhere in the token causes decryption to fail closed.
const (
	tokenVersion = 0x80

	tokenIVSize     = 16
	tokenMACSize    = sha256.Size
	tokenHeaderSize = 1 + 8 + tokenIVSize

	// minimum token: header, one cipher block, MAC
	tokenMinSize = tokenHeaderSize + aes.BlockSize + tokenMACSize
)

// AlgorithmToken is the algorithm identifier for the token mode.
const AlgorithmToken = "AES-128-CBC-HMAC-token"

// EncryptToken encrypts data into a self-contained authenticated token.
// encodedKey is a URL-safe base64 32-byte key as produced by EncodeKey,
// typically over the output of DeriveKey.
func EncryptToken(data []byte, encodedKey string) (string, error) {
	signKey, encKey, err := splitTokenKey(encodedKey)
	if err != nil {
		return "", fmt.Errorf("%w: invalid token key", ErrEncryption)
	}

	iv := make([]byte, tokenIVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("%w: IV generation: %v", ErrEncryption, err)
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryption, err)
	}

	// PKCS#7 padding, always at least one byte
	pad := aes.BlockSize - len(data)%aes.BlockSize
	padded := make([]byte, len(data)+pad)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(pad)
	}

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	msg := make([]byte, 0, tokenHeaderSize+len(ciphertext)+tokenMACSize)
	msg = append(msg, tokenVersion)
	msg = binary.BigEndian.AppendUint64(msg, uint64(time.Now().Unix()))
	msg = append(msg, iv...)
	msg = append(msg, ciphertext...)

	mac := hmac.New(sha256.New, signKey)
	mac.Write(msg)
	msg = mac.Sum(msg)

	return base64.URLEncoding.EncodeToString(msg), nil
}

// DecryptToken verifies and decrypts a token produced by EncryptToken.
// The HMAC is verified before any decryption is attempted; every
// failure mode returns the same generic ErrDecryption.
func DecryptToken(token string, encodedKey string) ([]byte, error) {
	signKey, encKey, err := splitTokenKey(encodedKey)
	if err != nil {
		return nil, ErrDecryption
	}

	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrDecryption
	}

	if len(raw) < tokenMinSize || raw[0] != tokenVersion {
		return nil, ErrDecryption
	}

	ciphertext := raw[tokenHeaderSize : len(raw)-tokenMACSize]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrDecryption
	}

	mac := hmac.New(sha256.New, signKey)
	mac.Write(raw[:len(raw)-tokenMACSize])
	if !hmac.Equal(mac.Sum(nil), raw[len(raw)-tokenMACSize:]) {
		return nil, ErrDecryption
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, ErrDecryption
	}

	iv := raw[tokenHeaderSize-tokenIVSize : tokenHeaderSize]
	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	return stripPKCS7(padded)
}

// splitTokenKey decodes the URL-safe base64 key and splits it into the
// signing half and the encryption half.
func splitTokenKey(encodedKey string) (signKey, encKey []byte, err error) {
	key, err := base64.URLEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, nil, err
	}
	if len(key) != KeySize {
		return nil, nil, fmt.Errorf("token key must be %d bytes, got %d", KeySize, len(key))
	}
	return key[:16], key[16:], nil
}

func stripPKCS7(padded []byte) ([]byte, error) {
	if len(padded) == 0 {
		return nil, ErrDecryption
	}
	pad := int(padded[len(padded)-1])
	if pad < 1 || pad > aes.BlockSize || pad > len(padded) {
		return nil, ErrDecryption
	}
	if !bytes.Equal(padded[len(padded)-pad:], bytes.Repeat([]byte{byte(pad)}, pad)) {
		return nil, ErrDecryption
	}
	return padded[:len(padded)-pad], nil
}
