package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTripperFunc lets tests intercept requests to fixed external URLs.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestPinningService_Upload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"cid":"bafyTestCID"}`))
	}))
	defer server.Close()

	backend, err := NewPinningService("test-token", server.URL, "", server.Client())
	require.NoError(t, err)

	cid, err := backend.Upload(context.Background(), []byte("encrypted-blob"))
	require.NoError(t, err)
	assert.Equal(t, "bafyTestCID", cid)
}

func TestPinningService_UploadRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer server.Close()

	backend, err := NewPinningService("bad-token", server.URL, "", server.Client())
	require.NoError(t, err)

	_, err = backend.Upload(context.Background(), []byte("data"))
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "401")
}

func TestPinningService_Download(t *testing.T) {
	client := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		// Subdomain-style gateway URL: https://{cid}.{host}
		assert.Equal(t, "bafyTestCID.ipfs.w3s.link", r.URL.Host)
		assert.Equal(t, http.MethodGet, r.Method)

		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader([]byte("encrypted-blob"))),
			Header:     make(http.Header),
		}, nil
	})}

	backend, err := NewPinningService("test-token", "", "", client)
	require.NoError(t, err)

	data, err := backend.Download(context.Background(), "bafyTestCID")
	require.NoError(t, err)
	assert.Equal(t, []byte("encrypted-blob"), data)
}

func TestPinningService_DownloadNotFound(t *testing.T) {
	client := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(bytes.NewReader([]byte("not found"))),
			Header:     make(http.Header),
		}, nil
	})}

	backend, err := NewPinningService("test-token", "", "", client)
	require.NoError(t, err)

	_, err = backend.Download(context.Background(), "bafyMissing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPinningService_RequiresToken(t *testing.T) {
	_, err := NewPinningService("", "", "", nil)
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestPinningService_GatewayURL(t *testing.T) {
	backend, err := NewPinningService("test-token", "", "", nil)
	require.NoError(t, err)

	assert.Equal(t, "https://bafyTestCID.ipfs.w3s.link", backend.GatewayURL("bafyTestCID"))
	assert.Equal(t, "web3.storage", backend.Name())
}
