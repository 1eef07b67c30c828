// Package csrf protects the activation forms against cross-site request forgery
package csrf

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// FormField is the form parameter carrying the token
const FormField = "csrf_token"

// ErrInvalidToken indicates a missing, forged, expired or already used token
var ErrInvalidToken = errors.New("invalid csrf token")

// Store keeps issued tokens until they are used or expire
type Store interface {
	// SaveToken stores a token with expiry
	SaveToken(ctx context.Context, token string, expiresIn time.Duration) error

	// ConsumeToken removes a token, failing if it was never issued or is gone
	ConsumeToken(ctx context.Context, token string) error

	// CheckHealth verifies the store is operational
	CheckHealth(ctx context.Context) error
}

// Manager issues and verifies single-use signed tokens
type Manager struct {
	store     Store
	secret    []byte
	expiresIn time.Duration
}

// NewManager creates a new CSRF token manager
func NewManager(store Store, secret []byte, expiresIn time.Duration) *Manager {
	return &Manager{
		store:     store,
		secret:    secret,
		expiresIn: expiresIn,
	}
}

// GenerateToken creates and stores a new token of the form nonce.signature
func (m *Manager) GenerateToken(ctx context.Context) (string, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(nonce)
	token := encoded + "." + base64.RawURLEncoding.EncodeToString(m.sign(encoded))

	if err := m.store.SaveToken(ctx, token, m.expiresIn); err != nil {
		return "", fmt.Errorf("saving token: %w", err)
	}
	return token, nil
}

// ValidateToken verifies the signature and consumes the token
func (m *Manager) ValidateToken(ctx context.Context, token string) error {
	nonce, sig, ok := strings.Cut(token, ".")
	if !ok || nonce == "" {
		return ErrInvalidToken
	}

	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(m.sign(nonce), got) {
		return ErrInvalidToken
	}

	if err := m.store.ConsumeToken(ctx, token); err != nil {
		return fmt.Errorf("validating token: %w", err)
	}
	return nil
}

// CheckHealth verifies the CSRF manager is operational
func (m *Manager) CheckHealth(ctx context.Context) error {
	if err := m.store.CheckHealth(ctx); err != nil {
		return fmt.Errorf("csrf store health check failed: %w", err)
	}
	return nil
}

func (m *Manager) sign(nonce string) []byte {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(nonce))
	return h.Sum(nil)
}
