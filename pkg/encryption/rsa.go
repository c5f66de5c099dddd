package encryption

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/youmark/pkcs8"
)

const (
	// DefaultRSABits is the default RSA key size in bits
	DefaultRSABits = 2048

	// MinRSABits is the minimum accepted RSA key size in bits
	MinRSABits = 2048
)

// KeyPair holds an RSA key pair.
type KeyPair struct {
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
}

// GenerateKeyPair generates a new RSA key pair. bits may be zero to use
// the default size; keys below 2048 bits are rejected.
func GenerateKeyPair(bits int) (*KeyPair, error) {
	if bits == 0 {
		bits = DefaultRSABits
	}
	if bits < MinRSABits {
		return nil, fmt.Errorf("RSA key size must be at least %d bits, got %d", MinRSABits, bits)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key pair: %w", err)
	}

	return &KeyPair{
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
	}, nil
}

// MaxRSAPlaintext returns the largest plaintext the given public key can
// encrypt under OAEP with SHA-256.
func MaxRSAPlaintext(publicKey *rsa.PublicKey) int {
	return publicKey.Size() - 2*sha256.Size - 2
}

// EncryptRSA encrypts data with the RSA public key using OAEP padding
// with SHA-256 for both the hash and the mask generation function.
// Plaintext exceeding the OAEP ceiling is rejected with a clear size
// error rather than truncated.
func EncryptRSA(data []byte, publicKey *rsa.PublicKey) ([]byte, error) {
	if publicKey == nil {
		return nil, fmt.Errorf("%w: public key cannot be nil", ErrEncryption)
	}
	if maxLen := MaxRSAPlaintext(publicKey); len(data) > maxLen {
		return nil, fmt.Errorf("%w: plaintext too large for RSA-OAEP: %d bytes exceeds limit of %d", ErrEncryption, len(data), maxLen)
	}

	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, publicKey, data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}

	return ciphertext, nil
}

// DecryptRSA decrypts RSA-OAEP ciphertext with the private key. Padding
// and integrity failures surface as the single generic ErrDecryption so
// no padding-oracle detail leaks to the caller.
func DecryptRSA(ciphertext []byte, privateKey *rsa.PrivateKey) ([]byte, error) {
	if privateKey == nil {
		return nil, ErrDecryption
	}

	data, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, privateKey, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}

	return data, nil
}

// EncodePublicKeyPEM serializes an RSA public key to PKIX PEM.
func EncodePublicKeyPEM(publicKey *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// EncodePrivateKeyPEM serializes an RSA private key to PKCS#8 PEM. With
// a nil or empty passphrase the key is written unencrypted, which is
// unsafe for at-rest storage and should only be used for keys that are
// wrapped by some other layer. With a passphrase the key is encrypted
// per PKCS#8.
func EncodePrivateKeyPEM(privateKey *rsa.PrivateKey, passphrase []byte) ([]byte, error) {
	blockType := "PRIVATE KEY"
	if len(passphrase) == 0 {
		passphrase = nil
	} else {
		blockType = "ENCRYPTED PRIVATE KEY"
	}

	der, err := pkcs8.MarshalPrivateKey(privateKey, passphrase, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}), nil
}

// ParsePublicKeyPEM parses an RSA public key from PKIX or PKCS#1 PEM.
func ParsePublicKeyPEM(pemData []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	switch block.Type {
	case "PUBLIC KEY":
		pubKeyInterface, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKIX public key: %w", err)
		}
		publicKey, ok := pubKeyInterface.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("not an RSA public key")
		}
		return publicKey, nil
	case "RSA PUBLIC KEY":
		publicKey, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS1 public key: %w", err)
		}
		return publicKey, nil
	default:
		return nil, fmt.Errorf("invalid PEM block type: %s", block.Type)
	}
}

// ParsePrivateKeyPEM parses an RSA private key from PEM. PKCS#1,
// unencrypted PKCS#8 and passphrase-encrypted PKCS#8 blocks are all
// accepted; passphrase may be nil for unencrypted keys.
func ParsePrivateKeyPEM(pemData, passphrase []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS1 private key: %w", err)
		}
		return privateKey, nil
	case "PRIVATE KEY":
		privateKey, err := pkcs8.ParsePKCS8PrivateKeyRSA(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS8 private key: %w", err)
		}
		return privateKey, nil
	case "ENCRYPTED PRIVATE KEY":
		if len(passphrase) == 0 {
			return nil, fmt.Errorf("private key is encrypted: passphrase required")
		}
		privateKey, err := pkcs8.ParsePKCS8PrivateKeyRSA(block.Bytes, passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to parse encrypted PKCS8 private key: %w", err)
		}
		return privateKey, nil
	default:
		return nil, fmt.Errorf("invalid PEM block type: %s", block.Type)
	}
}
