package vault

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsecure/vault/pkg/encryption"
	"github.com/medsecure/vault/pkg/storage"
)

// memBackend is an in-memory storage.Backend for orchestration tests.
type memBackend struct {
	mu    sync.Mutex
	blobs map[string][]byte
	fail  error
}

func newMemBackend() *memBackend {
	return &memBackend{blobs: make(map[string][]byte)}
}

func (b *memBackend) Upload(_ context.Context, data []byte) (string, error) {
	if b.fail != nil {
		return "", b.fail
	}
	digest := sha256.Sum256(data)
	cid := "Qm" + hex.EncodeToString(digest[:8])

	b.mu.Lock()
	defer b.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	b.blobs[cid] = stored
	return cid, nil
}

func (b *memBackend) Download(_ context.Context, cid string) ([]byte, error) {
	if b.fail != nil {
		return nil, b.fail
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blobs[cid]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (b *memBackend) GatewayURL(cid string) string { return "https://ipfs.io/ipfs/" + cid }
func (b *memBackend) Name() string                 { return "memory" }

func TestVault_StoreRetrieve(t *testing.T) {
	v := New(newMemBackend())
	data := []byte("hello-world")

	receipt, err := v.Store(context.Background(), data, "pw1", "greeting.txt")
	require.NoError(t, err)

	assert.NotEmpty(t, receipt.CID)
	assert.Equal(t, "greeting.txt", receipt.Filename)
	assert.Equal(t, int64(len(data)), receipt.Size)
	assert.Greater(t, receipt.EncryptedSize, receipt.Size, "AEAD adds nonce and tag overhead")
	assert.Equal(t, encryption.HashSHA256(data), receipt.OriginalHash)
	assert.Equal(t, "AES-256-GCM", receipt.EncryptionMethod)
	assert.NotEmpty(t, receipt.Salt)

	result, err := v.Retrieve(context.Background(), receipt, "pw1")
	require.NoError(t, err)
	assert.Equal(t, data, result.Data)
	assert.True(t, result.Verified)
	assert.Equal(t, receipt.OriginalHash, result.Hash)
}

func TestVault_WrongPassword(t *testing.T) {
	v := New(newMemBackend())

	receipt, err := v.Store(context.Background(), []byte("hello-world"), "pw1", "f")
	require.NoError(t, err)

	_, err = v.Retrieve(context.Background(), receipt, "wrong-pw")
	assert.ErrorIs(t, err, encryption.ErrDecryption)
}

func TestVault_TamperedBlob(t *testing.T) {
	backend := newMemBackend()
	v := New(backend)

	receipt, err := v.Store(context.Background(), []byte("hello-world"), "pw1", "f")
	require.NoError(t, err)

	backend.mu.Lock()
	backend.blobs[receipt.CID][encryption.GCMNonceSize] ^= 0x01
	backend.mu.Unlock()

	_, err = v.Retrieve(context.Background(), receipt, "pw1")
	assert.ErrorIs(t, err, encryption.ErrDecryption)
}

func TestVault_HashMismatchReportedNotFatal(t *testing.T) {
	v := New(newMemBackend())

	receipt, err := v.Store(context.Background(), []byte("hello-world"), "pw1", "f")
	require.NoError(t, err)

	// Receipt claims a different original hash: decryption still succeeds
	// (the AEAD tag authenticates the channel) but verification must fail
	receipt.OriginalHash = encryption.HashSHA256([]byte("something else"))

	result, err := v.Retrieve(context.Background(), receipt, "pw1")
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, []byte("hello-world"), result.Data)
}

func TestVault_RetrieveRawWithoutHash(t *testing.T) {
	v := New(newMemBackend())

	receipt, err := v.Store(context.Background(), []byte("hello-world"), "pw1", "f")
	require.NoError(t, err)

	result, err := v.RetrieveRaw(context.Background(), receipt.CID, "pw1", receipt.Salt, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello-world"), result.Data)
	assert.False(t, result.Verified, "no expected hash means nothing was verified")
}

func TestVault_NotFound(t *testing.T) {
	v := New(newMemBackend())

	_, err := v.RetrieveRaw(context.Background(), "QmMissing", "pw1", "c2FsdHNhbHRzYWx0c2E=", "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestVault_BackendUnavailable(t *testing.T) {
	backend := newMemBackend()
	backend.fail = fmt.Errorf("%w: connection refused", storage.ErrUnavailable)
	v := New(backend)

	_, err := v.Store(context.Background(), []byte("data"), "pw1", "f")
	assert.ErrorIs(t, err, storage.ErrUnavailable)
}

func TestVault_MalformedSalt(t *testing.T) {
	v := New(newMemBackend())

	receipt, err := v.Store(context.Background(), []byte("data"), "pw1", "f")
	require.NoError(t, err)

	_, err = v.RetrieveRaw(context.Background(), receipt.CID, "pw1", "%%%not-base64%%%", "")
	assert.ErrorIs(t, err, encryption.ErrKeyDerivation)
}

func TestVault_ReceiptJSONShape(t *testing.T) {
	v := New(newMemBackend())

	receipt, err := v.Store(context.Background(), []byte("hello-world"), "pw1", "greeting.txt")
	require.NoError(t, err)

	encoded, err := json.Marshal(receipt)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(encoded, &fields))

	for _, key := range []string{"cid", "filename", "size", "encrypted_size", "salt", "original_hash", "encryption_method"} {
		assert.Contains(t, fields, key)
	}
}

func TestVault_VerifyIntegrity(t *testing.T) {
	v := New(newMemBackend())
	data := []byte("payload")

	assert.True(t, v.VerifyIntegrity(data, encryption.HashSHA256(data)))
	assert.False(t, v.VerifyIntegrity([]byte("other"), encryption.HashSHA256(data)))
}

func TestVault_GatewayURL(t *testing.T) {
	v := New(newMemBackend())
	assert.Equal(t, "https://ipfs.io/ipfs/QmX", v.GatewayURL("QmX"))
}

type countingMetrics struct {
	mu        sync.Mutex
	stores    int
	retrieves int
}

func (m *countingMetrics) RecordStore(string, int, time.Duration, error) {
	m.mu.Lock()
	m.stores++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordRetrieve(string, int, bool, time.Duration, error) {
	m.mu.Lock()
	m.retrieves++
	m.mu.Unlock()
}

func TestVault_MetricsRecorded(t *testing.T) {
	metrics := &countingMetrics{}
	v := New(newMemBackend(), WithMetrics(metrics))

	receipt, err := v.Store(context.Background(), []byte("data"), "pw1", "f")
	require.NoError(t, err)
	_, err = v.Retrieve(context.Background(), receipt, "pw1")
	require.NoError(t, err)

	assert.Equal(t, 1, metrics.stores)
	assert.Equal(t, 1, metrics.retrieves)
}

func TestVault_ConcurrentUse(t *testing.T) {
	v := New(newMemBackend())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data := []byte(fmt.Sprintf("payload-%d", i))

			receipt, err := v.Store(context.Background(), data, "pw1", "f")
			assert.NoError(t, err)

			result, err := v.Retrieve(context.Background(), receipt, "pw1")
			assert.NoError(t, err)
			assert.Equal(t, data, result.Data)
			assert.True(t, result.Verified)
		}(i)
	}
	wg.Wait()
}
