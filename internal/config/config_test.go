package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsecure/vault/pkg/storage"
)

func loadWith(t *testing.T, overrides map[string]any) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	setDefaults()
	for key, value := range overrides {
		viper.Set(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadWith(t, nil)

	assert.Equal(t, "0.0.0.0:8080", cfg.BindAddress)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, storage.DefaultLocalAPIURL, cfg.IPFS.APIURL)
	assert.Equal(t, "data/receipts.db", cfg.ReceiptsPath)
	assert.Equal(t, 60, cfg.Auth.TokenTTLMinutes)
	assert.False(t, cfg.Monitoring.Enabled)
	assert.Equal(t, ":9090", cfg.Monitoring.BindAddress)
}

func TestLoad_Validation(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaults()
	viper.Set("bind_address", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_EnvCredentialFallback(t *testing.T) {
	t.Setenv("WEB3_STORAGE_TOKEN", "env-token")
	t.Setenv("INFURA_IPFS_PROJECT_ID", "env-id")
	t.Setenv("INFURA_IPFS_PROJECT_SECRET", "env-secret")

	cfg := loadWith(t, nil)

	assert.Equal(t, "env-token", cfg.IPFS.Web3StorageToken)
	assert.Equal(t, "env-id", cfg.IPFS.InfuraProjectID)
	assert.Equal(t, "env-secret", cfg.IPFS.InfuraProjectSecret)
}

func TestLoad_ConfigWinsOverEnv(t *testing.T) {
	t.Setenv("WEB3_STORAGE_TOKEN", "env-token")

	cfg := loadWith(t, map[string]any{"ipfs.web3_storage_token": "file-token"})
	assert.Equal(t, "file-token", cfg.IPFS.Web3StorageToken)
}

func TestStorageSettings(t *testing.T) {
	cfg := loadWith(t, map[string]any{
		"ipfs.web3_storage_token": "token",
		"archive.bucket":          "vault-archive",
		"archive.access_key_id":   "AK",
		"archive.secret_key":      "SK",
	})

	settings := cfg.StorageSettings()
	assert.Equal(t, "token", settings.Web3StorageToken)
	require.NotNil(t, settings.Archive)
	assert.Equal(t, "vault-archive", settings.Archive.Bucket)
	assert.Equal(t, "us-east-1", settings.Archive.Region)
}

func TestStorageSettings_NoArchiveWithoutBucket(t *testing.T) {
	cfg := loadWith(t, nil)
	assert.Nil(t, cfg.StorageSettings().Archive)
}
