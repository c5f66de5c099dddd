package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/medsecure/vault/pkg/storage"
)

// IPFSConfig holds the credentials for the IPFS-style backends. The
// active backend is chosen from which credentials are present, in the
// order: pinning token, gateway credentials, archive, local node.
type IPFSConfig struct {
	APIURL              string `mapstructure:"api_url"`
	Web3StorageToken    string `mapstructure:"web3_storage_token"`
	Web3UploadURL       string `mapstructure:"web3_upload_url"`
	Web3GatewayHost     string `mapstructure:"web3_gateway_host"`
	InfuraProjectID     string `mapstructure:"infura_project_id"`
	InfuraProjectSecret string `mapstructure:"infura_project_secret"`
	InfuraAPIURL        string `mapstructure:"infura_api_url"`
}

// ArchiveConfig holds S3-compatible archive backend settings.
type ArchiveConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	Region         string `mapstructure:"region"`
	Bucket         string `mapstructure:"bucket"`
	AccessKeyID    string `mapstructure:"access_key_id"`
	SecretKey      string `mapstructure:"secret_key"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}

// AuthConfig holds API authentication settings. Users maps usernames to
// passwords; intended for development and small deployments, not for an
// identity provider replacement.
type AuthConfig struct {
	Secret          string            `mapstructure:"secret"`
	TokenTTLMinutes int               `mapstructure:"token_ttl_minutes"`
	Users           map[string]string `mapstructure:"users"`
}

// MonitoringConfig holds the metrics server settings.
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BindAddress string `mapstructure:"bind_address"`
	MetricsPath string `mapstructure:"metrics_path"`
}

// Config is the top-level application configuration.
type Config struct {
	BindAddress  string           `mapstructure:"bind_address"`
	LogLevel     string           `mapstructure:"log_level"`
	LogFormat    string           `mapstructure:"log_format"`
	ReceiptsPath string           `mapstructure:"receipts_path"`
	IPFS         IPFSConfig       `mapstructure:"ipfs"`
	Archive      ArchiveConfig    `mapstructure:"archive"`
	Auth         AuthConfig       `mapstructure:"auth"`
	Monitoring   MonitoringConfig `mapstructure:"monitoring"`
}

// InitConfig wires up viper: explicit config file if given, otherwise
// the standard search locations, plus MSV_* environment variables.
func InitConfig(cfgFile string) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".medsecure-vault")
	}

	viper.SetEnvPrefix("MSV")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// Load unmarshals and validates the configuration.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvFallbacks(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvFallbacks honors the credential environment variables the
// original deployment used, without the MSV prefix.
func applyEnvFallbacks(cfg *Config) {
	if cfg.IPFS.Web3StorageToken == "" {
		cfg.IPFS.Web3StorageToken = os.Getenv("WEB3_STORAGE_TOKEN")
	}
	if cfg.IPFS.InfuraProjectID == "" {
		cfg.IPFS.InfuraProjectID = os.Getenv("INFURA_IPFS_PROJECT_ID")
	}
	if cfg.IPFS.InfuraProjectSecret == "" {
		cfg.IPFS.InfuraProjectSecret = os.Getenv("INFURA_IPFS_PROJECT_SECRET")
	}
}

func validate(cfg *Config) error {
	if cfg.BindAddress == "" {
		return fmt.Errorf("bind_address is required")
	}
	if cfg.Auth.TokenTTLMinutes <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	return nil
}

// StorageSettings maps configuration onto backend resolution settings.
func (c *Config) StorageSettings() *storage.Settings {
	settings := &storage.Settings{
		APIURL:              c.IPFS.APIURL,
		Web3StorageToken:    c.IPFS.Web3StorageToken,
		Web3UploadURL:       c.IPFS.Web3UploadURL,
		Web3GatewayHost:     c.IPFS.Web3GatewayHost,
		InfuraProjectID:     c.IPFS.InfuraProjectID,
		InfuraProjectSecret: c.IPFS.InfuraProjectSecret,
		InfuraAPIURL:        c.IPFS.InfuraAPIURL,
	}

	if c.Archive.Bucket != "" {
		settings.Archive = &storage.S3Config{
			Endpoint:       c.Archive.Endpoint,
			Region:         c.Archive.Region,
			Bucket:         c.Archive.Bucket,
			AccessKeyID:    c.Archive.AccessKeyID,
			SecretKey:      c.Archive.SecretKey,
			ForcePathStyle: c.Archive.ForcePathStyle,
		}
	}

	return settings
}

func setDefaults() {
	viper.SetDefault("bind_address", "0.0.0.0:8080")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("receipts_path", "data/receipts.db")

	viper.SetDefault("ipfs.api_url", storage.DefaultLocalAPIURL)

	viper.SetDefault("archive.region", "us-east-1")

	viper.SetDefault("auth.token_ttl_minutes", 60)

	viper.SetDefault("monitoring.enabled", false)
	viper.SetDefault("monitoring.bind_address", ":9090")
	viper.SetDefault("monitoring.metrics_path", "/metrics")
}
