package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
)

// DefaultInfuraAPIURL is the basic-auth IPFS gateway API endpoint.
const DefaultInfuraAPIURL = "https://ipfs.infura.io:5001/api/v0"

// BasicAuthGateway talks to a basic-auth-protected hosted IPFS gateway
// (Infura API shape). Both uploads and downloads authenticate with the
// project id and secret.
type BasicAuthGateway struct {
	apiURL        string
	projectID     string
	projectSecret string
	client        *http.Client
	logger        *logrus.Entry
}

// NewBasicAuthGateway creates a basic-auth gateway backend. Both
// credentials are required; apiURL may be empty to use the default.
func NewBasicAuthGateway(projectID, projectSecret, apiURL string, client *http.Client) (*BasicAuthGateway, error) {
	if projectID == "" || projectSecret == "" {
		return nil, fmt.Errorf("%w: gateway project id and secret are both required", ErrNoCredentials)
	}
	if apiURL == "" {
		apiURL = DefaultInfuraAPIURL
	}
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &BasicAuthGateway{
		apiURL:        apiURL,
		projectID:     projectID,
		projectSecret: projectSecret,
		client:        client,
		logger:        logrus.WithField("component", "storage-gateway"),
	}, nil
}

// Upload posts data to {api}/add with basic authentication.
func (b *BasicAuthGateway) Upload(ctx context.Context, data []byte) (string, error) {
	req, err := newUploadRequest(ctx, b.apiURL+"/add", "encrypted_file", data)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(b.projectID, b.projectSecret)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", responseError("gateway add", resp)
	}

	var result addResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: malformed add response: %v", ErrUnavailable, err)
	}
	if result.Hash == "" {
		return "", fmt.Errorf("%w: add response missing hash", ErrUnavailable)
	}

	b.logger.WithFields(logrus.Fields{
		"cid":  result.Hash,
		"size": len(data),
	}).Debug("Uploaded blob to basic-auth gateway")

	return result.Hash, nil
}

// Download retrieves cid via POST {api}/cat?arg={cid} with basic auth.
func (b *BasicAuthGateway) Download(ctx context.Context, cid string) ([]byte, error) {
	catURL := fmt.Sprintf("%s/cat?arg=%s", b.apiURL, url.QueryEscape(cid))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, catURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	req.SetBasicAuth(b.projectID, b.projectSecret)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError("gateway cat", resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	return data, nil
}

// GatewayURL returns the provider's public path-style gateway URL.
func (b *BasicAuthGateway) GatewayURL(cid string) string {
	return "https://ipfs.infura.io/ipfs/" + cid
}

// Name returns the backend variant identifier.
func (b *BasicAuthGateway) Name() string {
	return "infura"
}
