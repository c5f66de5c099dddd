// Package auth issues and verifies the bearer tokens that protect the
// record API. Tokens are HS256 JWTs signed with a key derived from the
// configured secret.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/hkdf"
)

const (
	// signingKeyInfo is the HKDF context for deriving the JWT signing
	// key from the configured secret.
	signingKeyInfo = "medsecure-vault-token-signing"

	signingKeySize = 32

	// DefaultTokenTTL applies when no TTL is configured.
	DefaultTokenTTL = 60 * time.Minute
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// Claims are the JWT claims carried by an issued token.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Authenticator verifies user credentials and manages bearer tokens.
type Authenticator struct {
	signingKey []byte
	tokenTTL   time.Duration
	users      map[string]string
	logger     *logrus.Entry
}

// New creates an Authenticator. The signing key is derived from secret
// with HKDF-SHA256 so the raw secret never acts as a key directly.
func New(secret string, tokenTTL time.Duration, users map[string]string) (*Authenticator, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth secret cannot be empty")
	}
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}

	reader := hkdf.New(sha256.New, []byte(secret), nil, []byte(signingKeyInfo))
	signingKey := make([]byte, signingKeySize)
	if _, err := reader.Read(signingKey); err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}

	return &Authenticator{
		signingKey: signingKey,
		tokenTTL:   tokenTTL,
		users:      users,
		logger:     logrus.WithField("component", "auth"),
	}, nil
}

// Login checks the username and password and returns a bearer token on
// success. Both comparisons run in constant time.
func (a *Authenticator) Login(username, password string) (string, error) {
	stored := a.users[username]
	if subtle.ConstantTimeCompare([]byte(stored), []byte(password)) != 1 || stored == "" {
		return "", ErrInvalidCredentials
	}

	return a.IssueToken(username)
}

// IssueToken signs a token for the given username.
func (a *Authenticator) IssueToken(username string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "medsecure-vault",
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// VerifyToken parses and validates a bearer token and returns its
// claims. Any parse or validation failure maps to ErrInvalidToken.
func (a *Authenticator) VerifyToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (interface{}, error) {
			return a.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer("medsecure-vault"),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

type contextKey string

// usernameKey carries the authenticated username through the request
// context.
const usernameKey contextKey = "auth-username"

func contextWithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// UsernameFromRequest returns the username the middleware stored on the
// request, or empty if the request was not authenticated.
func UsernameFromRequest(r *http.Request) string {
	if v, ok := r.Context().Value(usernameKey).(string); ok {
		return v
	}
	return ""
}

// Middleware rejects requests without a valid Authorization bearer
// token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			a.logger.WithField("path", r.URL.Path).Debug("Missing bearer token")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := a.VerifyToken(strings.TrimPrefix(header, prefix))
		if err != nil {
			a.logger.WithField("path", r.URL.Path).Debug("Rejected bearer token")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := contextWithUsername(r.Context(), claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
