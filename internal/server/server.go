// Package server exposes the vault over a small authenticated HTTP
// API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/medsecure/vault/internal/auth"
	"github.com/medsecure/vault/internal/config"
	"github.com/medsecure/vault/internal/monitoring"
	"github.com/medsecure/vault/internal/receipts"
	"github.com/medsecure/vault/pkg/vault"
)

// Server represents the vault API server
type Server struct {
	httpServer    *http.Server
	vault         *vault.Vault
	receipts      *receipts.Store
	authenticator *auth.Authenticator
	config        *config.Config
	logger        *logrus.Entry
}

// NewServer creates a new API server instance
func NewServer(cfg *config.Config, v *vault.Vault, store *receipts.Store) (*Server, error) {
	logger := logrus.WithField("component", "api-server")

	authenticator, err := auth.New(cfg.Auth.Secret,
		time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute, cfg.Auth.Users)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	server := &Server{
		vault:         v,
		receipts:      store,
		authenticator: authenticator,
		config:        cfg,
		logger:        logger,
	}

	router := mux.NewRouter()
	server.setupRoutes(router)

	server.httpServer = &http.Server{
		Addr:         cfg.BindAddress,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server, nil
}

func (s *Server) setupRoutes(router *mux.Router) {
	router.Use(s.requestLogMiddleware)
	router.Use(monitoring.HTTPMiddleware)

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(s.authenticator.Middleware)
	protected.HandleFunc("/records", s.handleStoreRecord).Methods(http.MethodPost)
	protected.HandleFunc("/records/{cid}", s.handleRetrieveRecord).Methods(http.MethodGet)
	protected.HandleFunc("/records/{cid}/url", s.handleRecordURL).Methods(http.MethodGet)
	protected.HandleFunc("/receipts", s.handleListReceipts).Methods(http.MethodGet)
}

// requestLogMiddleware tags each request with an id and logs its
// outcome.
func (s *Server) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		next.ServeHTTP(w, r)

		s.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"duration":   time.Since(start).String(),
		}).Debug("Request handled")
	})
}

// Start starts the API server and blocks until the context is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	serverErrChan := make(chan error, 1)
	go func() {
		s.logger.WithFields(logrus.Fields{
			"address": s.config.BindAddress,
			"backend": s.vault.Backend().Name(),
		}).Info("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	select {
	case err := <-serverErrChan:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		s.logger.Info("Server stopped")
		return nil
	}
}

// Stop stops the server immediately.
func (s *Server) Stop() error {
	return s.httpServer.Close()
}
