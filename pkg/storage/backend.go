// Package storage provides the content-addressed storage backends the
// vault uploads encrypted blobs to: a local IPFS node, a bearer-token
// pinning service, a basic-auth IPFS gateway and an S3-compatible
// archive. Exactly one backend is active per vault instance, selected
// from configuration.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Backend stores and retrieves opaque byte blobs by content identifier.
// Content identifiers are backend-opaque: two backends are not assumed
// to assign the same identifier to identical bytes.
//
// Upload and Download have no built-in retry; resilience is the
// caller's concern.
type Backend interface {
	// Upload stores data and returns its content identifier
	Upload(ctx context.Context, data []byte) (string, error)

	// Download retrieves the bytes stored under cid
	Download(ctx context.Context, cid string) ([]byte, error)

	// GatewayURL derives a human-fetchable URL for cid. The construction
	// rule differs per backend but is pure and deterministic.
	GatewayURL(cid string) string

	// Name returns a short identifier for the backend variant
	Name() string
}

var (
	// ErrUnavailable indicates a non-success response or unreachable endpoint
	ErrUnavailable = errors.New("storage backend unavailable")

	// ErrNotFound indicates the content identifier is absent at the backend
	ErrNotFound = errors.New("content not found")

	// ErrNoCredentials indicates no backend could be resolved from configuration
	ErrNoCredentials = errors.New("no storage backend credentials resolvable")
)

const (
	// maxErrorBody bounds how much of an error response body is carried in
	// error messages; payload contents are never included
	maxErrorBody = 256

	defaultHTTPTimeout = 60 * time.Second
)

// DefaultHTTPClient returns the HTTP client used when a backend is
// constructed without one.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// newUploadRequest builds a multipart/form-data POST carrying data as
// the "file" field, the shape all IPFS-style add endpoints expect.
func newUploadRequest(ctx context.Context, uploadURL, filename string, data []byte) (*http.Request, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return req, nil
}

// responseError maps a non-success HTTP response to a backend error,
// carrying the status and a truncated body for caller-side logging.
func responseError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	kind := ErrUnavailable
	if resp.StatusCode == http.StatusNotFound {
		kind = ErrNotFound
	}

	return fmt.Errorf("%w: %s returned status %d: %s", kind, op, resp.StatusCode, bytes.TrimSpace(body))
}
