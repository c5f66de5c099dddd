package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicAuthGateway_Upload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "project-id", user)
		assert.Equal(t, "project-secret", pass)
		assert.Equal(t, "/add", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Hash":"QmInfuraCID"}`))
	}))
	defer server.Close()

	backend, err := NewBasicAuthGateway("project-id", "project-secret", server.URL, server.Client())
	require.NoError(t, err)

	cid, err := backend.Upload(context.Background(), []byte("encrypted-blob"))
	require.NoError(t, err)
	assert.Equal(t, "QmInfuraCID", cid)
}

func TestBasicAuthGateway_Download(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/cat", r.URL.Path)
		assert.Equal(t, "QmInfuraCID", r.URL.Query().Get("arg"))

		_, _ = w.Write([]byte("encrypted-blob"))
	}))
	defer server.Close()

	backend, err := NewBasicAuthGateway("project-id", "project-secret", server.URL, server.Client())
	require.NoError(t, err)

	data, err := backend.Download(context.Background(), "QmInfuraCID")
	require.NoError(t, err)
	assert.Equal(t, []byte("encrypted-blob"), data)
}

func TestBasicAuthGateway_AuthRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	backend, err := NewBasicAuthGateway("project-id", "wrong-secret", server.URL, server.Client())
	require.NoError(t, err)

	_, err = backend.Upload(context.Background(), []byte("data"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestBasicAuthGateway_RequiresBothCredentials(t *testing.T) {
	_, err := NewBasicAuthGateway("project-id", "", "", nil)
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = NewBasicAuthGateway("", "project-secret", "", nil)
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestBasicAuthGateway_GatewayURL(t *testing.T) {
	backend, err := NewBasicAuthGateway("project-id", "project-secret", "", nil)
	require.NoError(t, err)

	assert.Equal(t, "https://ipfs.infura.io/ipfs/QmInfuraCID", backend.GatewayURL("QmInfuraCID"))
	assert.Equal(t, "infura", backend.Name())
}
