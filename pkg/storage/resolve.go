package storage

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Settings holds every credential set a deployment may configure. The
// active backend is resolved once at construction, never re-inferred.
type Settings struct {
	// Local node
	APIURL string

	// Token-authenticated pinning service
	Web3StorageToken string
	Web3UploadURL    string
	Web3GatewayHost  string

	// Basic-auth gateway
	InfuraProjectID     string
	InfuraProjectSecret string
	InfuraAPIURL        string

	// S3-compatible archive; nil when unconfigured
	Archive *S3Config
}

// Resolve selects the backend variant from the configured credentials.
// Resolution order: pinning token, then basic-auth gateway credentials,
// then archive credentials, then the local node as fallback. A partial
// basic-auth credential pair is a configuration error rather than a
// silent fallback.
func Resolve(ctx context.Context, settings *Settings, client *http.Client) (Backend, error) {
	logger := logrus.WithField("component", "storage-resolve")

	if settings == nil {
		settings = &Settings{}
	}

	if settings.Web3StorageToken != "" {
		logger.Info("Using token-authenticated pinning service for storage")
		return NewPinningService(settings.Web3StorageToken, settings.Web3UploadURL, settings.Web3GatewayHost, client)
	}

	if settings.InfuraProjectID != "" || settings.InfuraProjectSecret != "" {
		if settings.InfuraProjectID == "" || settings.InfuraProjectSecret == "" {
			return nil, fmt.Errorf("%w: partial gateway credentials: project id and secret must both be set", ErrNoCredentials)
		}
		logger.Info("Using basic-auth gateway for storage")
		return NewBasicAuthGateway(settings.InfuraProjectID, settings.InfuraProjectSecret, settings.InfuraAPIURL, client)
	}

	if settings.Archive != nil && settings.Archive.Bucket != "" {
		logger.WithField("bucket", settings.Archive.Bucket).Info("Using S3-compatible archive for storage")
		return NewS3Archive(ctx, settings.Archive)
	}

	logger.Info("Using local IPFS node for storage")
	return NewLocalNode(settings.APIURL, client), nil
}
