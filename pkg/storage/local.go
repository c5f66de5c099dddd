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

// DefaultLocalAPIURL is the API endpoint of a locally running IPFS node.
const DefaultLocalAPIURL = "http://localhost:5001/api/v0"

// LocalNode talks to the HTTP API of a locally reachable IPFS node.
type LocalNode struct {
	apiURL string
	client *http.Client
	logger *logrus.Entry
}

// NewLocalNode creates a backend for a local IPFS node. apiURL and
// client may be empty/nil to use defaults.
func NewLocalNode(apiURL string, client *http.Client) *LocalNode {
	if apiURL == "" {
		apiURL = DefaultLocalAPIURL
	}
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &LocalNode{
		apiURL: apiURL,
		client: client,
		logger: logrus.WithField("component", "storage-local"),
	}
}

type addResponse struct {
	Hash string `json:"Hash"`
}

// Upload adds data to the node via POST {api}/add and returns the CID
// from the response.
func (b *LocalNode) Upload(ctx context.Context, data []byte) (string, error) {
	req, err := newUploadRequest(ctx, b.apiURL+"/add", "encrypted_file", data)
	if err != nil {
		return "", err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", responseError("ipfs add", resp)
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
	}).Debug("Uploaded blob to local IPFS node")

	return result.Hash, nil
}

// Download retrieves the bytes for cid via POST {api}/cat?arg={cid}.
func (b *LocalNode) Download(ctx context.Context, cid string) ([]byte, error) {
	catURL := fmt.Sprintf("%s/cat?arg=%s", b.apiURL, url.QueryEscape(cid))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, catURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError("ipfs cat", resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	return data, nil
}

// GatewayURL returns the public path-style gateway URL for cid.
func (b *LocalNode) GatewayURL(cid string) string {
	return "https://ipfs.io/ipfs/" + cid
}

// Name returns the backend variant identifier.
func (b *LocalNode) Name() string {
	return "local"
}
