package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/medsecure/vault/internal/config"
	"github.com/medsecure/vault/internal/monitoring"
	"github.com/medsecure/vault/internal/receipts"
	"github.com/medsecure/vault/internal/server"
	"github.com/medsecure/vault/pkg/storage"
	"github.com/medsecure/vault/pkg/vault"
)

var (
	// Build information injected at build time
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"

	cfgFile  string
	password string
	output   string

	rootCmd = &cobra.Command{
		Use:   "medsecure-vault",
		Short: "MedSecure Vault encrypts medical records and stores them on IPFS",
		Long: `MedSecure Vault encrypts files with password-derived keys before
pushing them to content-addressed storage, and decrypts them again on
retrieval.

Storage backends are chosen from configured credentials, in order:
- web3.storage pinning service (API token)
- Infura IPFS gateway (project id and secret)
- S3-compatible archive bucket
- local IPFS node (default)

Every stored file produces a receipt holding the content identifier,
key derivation salt and plaintext hash. Receipts are kept in a local
database and are required for retrieval.`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to configuration file (YAML format)")

	storeCmd.Flags().StringVarP(&password, "password", "p", "", "encryption password (or MSV_PASSWORD)")
	retrieveCmd.Flags().StringVarP(&password, "password", "p", "", "encryption password (or MSV_PASSWORD)")
	retrieveCmd.Flags().StringVarP(&output, "output", "o", "", "write plaintext to file instead of stdout")

	rootCmd.AddCommand(serveCmd, storeCmd, retrieveCmd, urlCmd, receiptsCmd, versionCmd)
}

func initConfig() {
	config.InitConfig(cfgFile)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging applies the configured level and format.
func setupLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)

	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	return nil
}

// buildVault resolves the storage backend from configuration and wires
// the metrics recorder.
func buildVault(ctx context.Context, cfg *config.Config) (*vault.Vault, error) {
	backend, err := storage.Resolve(ctx, cfg.StorageSettings(), storage.DefaultHTTPClient())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage backend: %w", err)
	}

	return vault.New(backend, vault.WithMetrics(monitoring.NewVaultMetrics())), nil
}

func resolvePassword() (string, error) {
	if password != "" {
		return password, nil
	}
	if env := os.Getenv("MSV_PASSWORD"); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("password required: use --password or MSV_PASSWORD")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the vault HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		logrus.WithFields(logrus.Fields{
			"version":   version,
			"commit":    commit,
			"buildTime": buildTime,
		}).Info("MedSecure Vault build information")

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := setupLogging(cfg); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		v, err := buildVault(ctx, cfg)
		if err != nil {
			return err
		}

		store, err := receipts.Open(cfg.ReceiptsPath)
		if err != nil {
			return err
		}
		defer store.Close()

		apiServer, err := server.NewServer(cfg, v, store)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		if cfg.Monitoring.Enabled {
			monitoringServer := monitoring.NewServer(&monitoring.Config{
				BindAddress: cfg.Monitoring.BindAddress,
				MetricsPath: cfg.Monitoring.MetricsPath,
			})
			go func() {
				if err := monitoringServer.Start(ctx); err != nil {
					logrus.WithError(err).Error("Monitoring server failed")
				}
			}()
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		serverErrChan := make(chan error, 1)
		go func() {
			serverErrChan <- apiServer.Start(ctx)
		}()

		select {
		case err := <-serverErrChan:
			return err
		case <-sigChan:
			logrus.Info("Received shutdown signal, gracefully shutting down...")
			cancel()
			return <-serverErrChan
		}
	},
}

var storeCmd = &cobra.Command{
	Use:   "store <file>",
	Short: "Encrypt a file and upload it to the configured backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := setupLogging(cfg); err != nil {
			return err
		}

		pw, err := resolvePassword()
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		ctx := cmd.Context()
		v, err := buildVault(ctx, cfg)
		if err != nil {
			return err
		}

		receipt, err := v.Store(ctx, data, pw, filepath.Base(args[0]))
		if err != nil {
			return err
		}

		store, err := receipts.Open(cfg.ReceiptsPath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Put(receipt); err != nil {
			return err
		}

		return printJSON(receipt)
	},
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <cid>",
	Short: "Download, decrypt and verify a stored record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := setupLogging(cfg); err != nil {
			return err
		}

		pw, err := resolvePassword()
		if err != nil {
			return err
		}

		store, err := receipts.Open(cfg.ReceiptsPath)
		if err != nil {
			return err
		}
		defer store.Close()

		receipt, err := store.Get(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		v, err := buildVault(ctx, cfg)
		if err != nil {
			return err
		}

		result, err := v.Retrieve(ctx, receipt, pw)
		if err != nil {
			return err
		}
		if !result.Verified {
			fmt.Fprintln(os.Stderr, "Warning: integrity verification failed")
		}

		if output != "" {
			if err := os.WriteFile(output, result.Data, 0600); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			return nil
		}
		_, err = os.Stdout.Write(result.Data)
		return err
	},
}

var urlCmd = &cobra.Command{
	Use:   "url <cid>",
	Short: "Print the public gateway URL for a content identifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := cmd.Context()
		v, err := buildVault(ctx, cfg)
		if err != nil {
			return err
		}

		fmt.Println(v.GatewayURL(args[0]))
		return nil
	},
}

var receiptsCmd = &cobra.Command{
	Use:   "receipts",
	Short: "List stored receipts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		store, err := receipts.Open(cfg.ReceiptsPath)
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.List()
		if err != nil {
			return err
		}
		return printJSON(list)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("medsecure-vault %s (commit %s, built %s)\n", version, commit, buildTime)
	},
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
