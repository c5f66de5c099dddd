package encryption

import (
	"crypto/rsa"
	"fmt"
)

// Envelope is the result of hybrid encryption: the payload encrypted
// under a one-time symmetric key, plus that key wrapped under the
// recipient's public key. The one-time key itself never leaves the
// encrypt or decrypt call.
type Envelope struct {
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
	WrappedKey []byte
}

// HybridEncrypt encrypts data of arbitrary size for the holder of the
// matching private key: a fresh 32-byte key encrypts the payload with
// AES-256-GCM and is itself wrapped with RSA-OAEP. This sidesteps the
// RSA plaintext ceiling and amortizes the asymmetric cost over the
// whole payload.
func HybridEncrypt(data []byte, recipientPublicKey *rsa.PublicKey) (*Envelope, error) {
	if recipientPublicKey == nil {
		return nil, fmt.Errorf("%w: recipient public key cannot be nil", ErrEncryption)
	}

	oneTimeKey, err := GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}
	defer ZeroKey(oneTimeKey)

	sealed, err := EncryptGCM(data, oneTimeKey, nil)
	if err != nil {
		return nil, err
	}

	wrappedKey, err := EncryptRSA(oneTimeKey, recipientPublicKey)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Ciphertext: sealed.Ciphertext,
		Nonce:      sealed.Nonce,
		Tag:        sealed.Tag,
		WrappedKey: wrappedKey,
	}, nil
}

// HybridDecrypt unwraps the one-time key with the private key and then
// decrypts the payload. If key unwrapping fails the symmetric stage is
// never attempted; failure at either stage is the same generic
// ErrDecryption.
func HybridDecrypt(envelope *Envelope, recipientPrivateKey *rsa.PrivateKey) ([]byte, error) {
	if envelope == nil {
		return nil, ErrDecryption
	}

	oneTimeKey, err := DecryptRSA(envelope.WrappedKey, recipientPrivateKey)
	if err != nil {
		return nil, ErrDecryption
	}
	defer ZeroKey(oneTimeKey)

	return DecryptGCM(envelope.Ciphertext, oneTimeKey, envelope.Nonce, envelope.Tag, nil)
}
