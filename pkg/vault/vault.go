// Package vault orchestrates the encryption core and a storage backend
// into encrypt-then-store and retrieve-then-verify-then-decrypt
// workflows.
package vault

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/medsecure/vault/pkg/encryption"
	"github.com/medsecure/vault/pkg/storage"
)

// Metrics receives operation outcomes. Implementations must be safe for
// concurrent use; a nil recorder disables instrumentation.
type Metrics interface {
	RecordStore(backend string, bytes int, duration time.Duration, err error)
	RecordRetrieve(backend string, bytes int, verified bool, duration time.Duration, err error)
}

// Vault pairs password-derived AEAD encryption with a storage backend.
// A Vault is configured once and safe for concurrent use by independent
// callers; no state is held between calls beyond the backend client.
type Vault struct {
	backend storage.Backend
	logger  *logrus.Entry
	metrics Metrics
}

// Option configures a Vault.
type Option func(*Vault)

// WithMetrics attaches an operation metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(v *Vault) { v.metrics = m }
}

// WithLogger overrides the default component logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(v *Vault) { v.logger = logger }
}

// New creates a Vault backed by the given storage backend.
func New(backend storage.Backend, opts ...Option) *Vault {
	v := &Vault{
		backend: backend,
		logger:  logrus.WithField("component", "vault"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// RetrieveResult is the outcome of a retrieval: the recovered plaintext,
// its hash, and whether that hash matched the expected original.
type RetrieveResult struct {
	Data     []byte
	Hash     string
	Verified bool
}

// Store derives a key from password, AEAD-encrypts data, uploads the
// ciphertext and returns the receipt the caller must retain to retrieve
// it. The uploaded blob is nonce || ciphertext || tag.
func (v *Vault) Store(ctx context.Context, data []byte, password, filename string) (*Receipt, error) {
	start := time.Now()
	logger := v.logger.WithFields(logrus.Fields{
		"op":       uuid.NewString(),
		"backend":  v.backend.Name(),
		"filename": filename,
		"size":     len(data),
	})

	receipt, err := v.store(ctx, data, password, filename)
	if v.metrics != nil {
		v.metrics.RecordStore(v.backend.Name(), len(data), time.Since(start), err)
	}
	if err != nil {
		logger.WithError(err).Error("Store failed")
		return nil, err
	}

	logger.WithField("cid", receipt.CID).Info("Stored encrypted blob")
	return receipt, nil
}

func (v *Vault) store(ctx context.Context, data []byte, password, filename string) (*Receipt, error) {
	key, salt, err := encryption.DeriveKey(password, nil)
	if err != nil {
		return nil, err
	}
	defer encryption.ZeroKey(key)

	sealed, err := encryption.EncryptGCM(data, key, nil)
	if err != nil {
		return nil, err
	}

	blob := make([]byte, 0, len(sealed.Nonce)+len(sealed.Ciphertext)+len(sealed.Tag))
	blob = append(blob, sealed.Nonce...)
	blob = append(blob, sealed.Ciphertext...)
	blob = append(blob, sealed.Tag...)

	cid, err := v.backend.Upload(ctx, blob)
	if err != nil {
		return nil, err
	}

	return &Receipt{
		CID:              cid,
		Filename:         filename,
		Size:             int64(len(data)),
		EncryptedSize:    int64(len(blob)),
		Salt:             base64.StdEncoding.EncodeToString(salt),
		OriginalHash:     encryption.HashSHA256(data),
		EncryptionMethod: encryption.AlgorithmAESGCM,
	}, nil
}

// Retrieve downloads, decrypts and verifies the blob described by the
// receipt. Decryption authenticates the ciphertext via the AEAD tag;
// the hash comparison is an independent end-to-end check of the
// recovered plaintext against the receipt. A mismatch is reported via
// Verified, not an error, since the decryption itself already
// succeeded.
func (v *Vault) Retrieve(ctx context.Context, receipt *Receipt, password string) (*RetrieveResult, error) {
	if receipt == nil {
		return nil, fmt.Errorf("receipt is required")
	}
	if err := receipt.Validate(); err != nil {
		return nil, err
	}
	return v.RetrieveRaw(ctx, receipt.CID, password, receipt.Salt, receipt.OriginalHash)
}

// RetrieveRaw is the loose-argument form of Retrieve for callers that
// track receipt fields separately. expectedHash may be empty, in which
// case Verified is always false.
func (v *Vault) RetrieveRaw(ctx context.Context, cid, password, saltB64, expectedHash string) (*RetrieveResult, error) {
	start := time.Now()
	logger := v.logger.WithFields(logrus.Fields{
		"op":      uuid.NewString(),
		"backend": v.backend.Name(),
		"cid":     cid,
	})

	result, err := v.retrieve(ctx, cid, password, saltB64, expectedHash)
	if v.metrics != nil {
		n, verified := 0, false
		if result != nil {
			n, verified = len(result.Data), result.Verified
		}
		v.metrics.RecordRetrieve(v.backend.Name(), n, verified, time.Since(start), err)
	}
	if err != nil {
		logger.WithError(err).Error("Retrieve failed")
		return nil, err
	}

	if expectedHash != "" && !result.Verified {
		logger.WithFields(logrus.Fields{
			"expected_hash": expectedHash,
			"actual_hash":   result.Hash,
		}).Warn("Post-decrypt hash does not match receipt")
	} else {
		logger.Info("Retrieved and decrypted blob")
	}

	return result, nil
}

func (v *Vault) retrieve(ctx context.Context, cid, password, saltB64, expectedHash string) (*RetrieveResult, error) {
	blob, err := v.backend.Download(ctx, cid)
	if err != nil {
		return nil, err
	}

	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed salt encoding", encryption.ErrKeyDerivation)
	}

	key, _, err := encryption.DeriveKey(password, salt)
	if err != nil {
		return nil, err
	}
	defer encryption.ZeroKey(key)

	if len(blob) < encryption.GCMNonceSize+encryption.GCMTagSize {
		return nil, encryption.ErrDecryption
	}
	nonce := blob[:encryption.GCMNonceSize]
	tag := blob[len(blob)-encryption.GCMTagSize:]
	ciphertext := blob[encryption.GCMNonceSize : len(blob)-encryption.GCMTagSize]

	data, err := encryption.DecryptGCM(ciphertext, key, nonce, tag, nil)
	if err != nil {
		return nil, err
	}

	hash := encryption.HashSHA256(data)
	verified := expectedHash != "" && encryption.VerifyIntegrity(data, expectedHash)

	return &RetrieveResult{
		Data:     data,
		Hash:     hash,
		Verified: verified,
	}, nil
}

// VerifyIntegrity reports whether data hashes to expectedHash. Pure
// helper with no side effects, usable standalone.
func (v *Vault) VerifyIntegrity(data []byte, expectedHash string) bool {
	return encryption.VerifyIntegrity(data, expectedHash)
}

// GatewayURL derives the active backend's public fetch URL for cid.
func (v *Vault) GatewayURL(cid string) string {
	return v.backend.GatewayURL(cid)
}

// Backend exposes the active storage backend.
func (v *Vault) Backend() storage.Backend {
	return v.backend
}
