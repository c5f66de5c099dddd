package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultWeb3UploadURL is the fixed upload endpoint of the pinning service.
	DefaultWeb3UploadURL = "https://api.web3.storage/upload"

	// DefaultWeb3GatewayHost is the subdomain-style gateway host.
	DefaultWeb3GatewayHost = "ipfs.w3s.link"
)

// PinningService talks to a token-authenticated IPFS pinning service
// (web3.storage API shape). Uploads go to a fixed endpoint with a
// bearer token; downloads use the subdomain-style public gateway.
type PinningService struct {
	uploadURL   string
	gatewayHost string
	token       string
	client      *http.Client
	logger      *logrus.Entry
}

// NewPinningService creates a pinning-service backend. uploadURL and
// gatewayHost may be empty to use the service defaults; token is
// required.
func NewPinningService(token, uploadURL, gatewayHost string, client *http.Client) (*PinningService, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: pinning service token is required", ErrNoCredentials)
	}
	if uploadURL == "" {
		uploadURL = DefaultWeb3UploadURL
	}
	if gatewayHost == "" {
		gatewayHost = DefaultWeb3GatewayHost
	}
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &PinningService{
		uploadURL:   uploadURL,
		gatewayHost: gatewayHost,
		token:       token,
		client:      client,
		logger:      logrus.WithField("component", "storage-pinning"),
	}, nil
}

type pinResponse struct {
	CID string `json:"cid"`
}

// Upload posts data to the upload endpoint with bearer authentication
// and returns the CID from the response.
func (b *PinningService) Upload(ctx context.Context, data []byte) (string, error) {
	req, err := newUploadRequest(ctx, b.uploadURL, "encrypted_file", data)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+b.token)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", responseError("pinning upload", resp)
	}

	var result pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: malformed upload response: %v", ErrUnavailable, err)
	}
	if result.CID == "" {
		return "", fmt.Errorf("%w: upload response missing cid", ErrUnavailable)
	}

	b.logger.WithFields(logrus.Fields{
		"cid":  result.CID,
		"size": len(data),
	}).Debug("Uploaded blob to pinning service")

	return result.CID, nil
}

// Download fetches the bytes for cid from the subdomain-style gateway.
func (b *PinningService) Download(ctx context.Context, cid string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.GatewayURL(cid), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError("gateway fetch", resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	return data, nil
}

// GatewayURL returns the subdomain-style gateway URL, https://{cid}.{host}.
func (b *PinningService) GatewayURL(cid string) string {
	return fmt.Sprintf("https://%s.%s", cid, b.gatewayHost)
}

// Name returns the backend variant identifier.
func (b *PinningService) Name() string {
	return "web3.storage"
}
