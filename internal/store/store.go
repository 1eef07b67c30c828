// Package store persists pending device transactions
package store

import (
	"context"
	"errors"
	"time"

	"github.com/wrale/oauth2-device-grant/internal/deviceflow"
)

var (
	// ErrNotFound indicates no live transaction matches the code
	ErrNotFound = errors.New("device transaction not found")

	// ErrExpired indicates the transaction outlived its device code
	ErrExpired = errors.New("device transaction expired")

	// ErrAlreadyDecided indicates a decision was already recorded
	ErrAlreadyDecided = errors.New("device transaction already decided")
)

// Status is the lifecycle state of a device transaction
type Status string

const (
	StatusPending Status = "pending"
	StatusAllowed Status = "allowed"
	StatusDenied  Status = "denied"
)

// Record is the persisted form of a device transaction
type Record struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"client_id"`
	DeviceCode   string    `json:"device_code"`
	UserCode     string    `json:"user_code"`
	Scope        []string  `json:"scope,omitempty"`
	ResponseMode string    `json:"response_mode,omitempty"`
	Status       Status    `json:"status"`
	UserID       string    `json:"user_id,omitempty"`
	GrantedScope []string  `json:"granted_scope,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the record is past its expiry
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Transaction builds the decision engine view of the record for user's decision
func (r *Record) Transaction(client, user any, decision *deviceflow.Decision) *deviceflow.Transaction {
	return &deviceflow.Transaction{
		ID:     r.ID,
		Client: client,
		Req: &deviceflow.Request{
			ClientID:     r.ClientID,
			Scope:        deviceflow.ScopeSet(r.Scope),
			ResponseMode: r.ResponseMode,
		},
		User: user,
		Res:  decision,
		Locals: map[string]any{
			deviceflow.LocalDeviceCode: r.DeviceCode,
		},
	}
}

// Store defines the interface for device transaction storage
type Store interface {
	// Save stores a new pending transaction until its expiry
	Save(ctx context.Context, rec *Record) error

	// GetByUserCode retrieves a live transaction by user code
	GetByUserCode(ctx context.Context, userCode string) (*Record, error)

	// GetByDeviceCode retrieves a live transaction by device code
	GetByDeviceCode(ctx context.Context, deviceCode string) (*Record, error)

	// Activate records an approval by userID for the granted scope
	Activate(ctx context.Context, deviceCode, userID string, scope []string) error

	// Deny records a refusal
	Deny(ctx context.Context, deviceCode, userID string) error

	// Complete retires the user code so it cannot be decided again
	Complete(ctx context.Context, deviceCode string) error

	// CheckHealth verifies the storage backend is healthy
	CheckHealth(ctx context.Context) error
}
