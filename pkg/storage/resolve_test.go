package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Order(t *testing.T) {
	archive := &S3Config{
		Bucket:      "vault-archive",
		AccessKeyID: "AK",
		SecretKey:   "SK",
		Region:      "us-east-1",
	}

	testCases := []struct {
		name     string
		settings *Settings
		want     string
	}{
		{
			name: "pinning token wins over everything",
			settings: &Settings{
				Web3StorageToken:    "token",
				InfuraProjectID:     "id",
				InfuraProjectSecret: "secret",
				Archive:             archive,
			},
			want: "web3.storage",
		},
		{
			name: "gateway credentials win over archive and local",
			settings: &Settings{
				InfuraProjectID:     "id",
				InfuraProjectSecret: "secret",
				Archive:             archive,
			},
			want: "infura",
		},
		{
			name:     "archive credentials win over local",
			settings: &Settings{Archive: archive},
			want:     "s3-archive",
		},
		{
			name:     "local node is the fallback",
			settings: &Settings{},
			want:     "local",
		},
		{
			name:     "nil settings fall back to local",
			settings: nil,
			want:     "local",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			backend, err := Resolve(context.Background(), tc.settings, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, backend.Name())
		})
	}
}

func TestResolve_PartialGatewayCredentials(t *testing.T) {
	_, err := Resolve(context.Background(), &Settings{InfuraProjectID: "id"}, nil)
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = Resolve(context.Background(), &Settings{InfuraProjectSecret: "secret"}, nil)
	assert.ErrorIs(t, err, ErrNoCredentials)
}
