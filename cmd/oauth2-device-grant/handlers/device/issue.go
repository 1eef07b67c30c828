package device

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/wrale/oauth2-device-grant/cmd/oauth2-device-grant/handlers/common"
	"github.com/wrale/oauth2-device-grant/internal/codes"
	"github.com/wrale/oauth2-device-grant/internal/deviceflow"
	"github.com/wrale/oauth2-device-grant/internal/store"
)

// IssueConfig configures the issue function backing the device endpoint.
// Modes lists the response modes a client may request; an empty
// response_mode is always accepted.
type IssueConfig struct {
	Store           store.Store
	VerificationURI string
	ExpiresIn       time.Duration
	Interval        time.Duration
	Modes           []string
	Now             func() time.Time
}

// NewIssueFunc returns an issue function that generates a device and user
// code pair and persists a pending transaction for it
func NewIssueFunc(cfg IssueConfig) deviceflow.IssueBodyFunc {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return func(ctx context.Context, client any, scope deviceflow.ScopeSet, body map[string]any) (*deviceflow.Issued, error) {
		c, ok := client.(common.Client)
		if !ok {
			return nil, deviceflow.NewAuthorizationError("Client is not registered for device authorization", deviceflow.ErrorCodeUnauthorizedClient)
		}

		mode, _ := body["response_mode"].(string)
		if mode != "" && !slices.Contains(cfg.Modes, mode) {
			return nil, deviceflow.NewAuthorizationError("Unsupported response_mode: "+mode, deviceflow.ErrorCodeInvalidRequest)
		}

		deviceCode, err := codes.GenerateDeviceCode()
		if err != nil {
			return nil, fmt.Errorf("generating device code: %w", err)
		}
		userCode, err := codes.GenerateUserCode()
		if err != nil {
			return nil, fmt.Errorf("generating user code: %w", err)
		}

		issuedAt := now()
		rec := &store.Record{
			ID:           uuid.NewString(),
			ClientID:     c.ID,
			DeviceCode:   deviceCode,
			UserCode:     userCode,
			Scope:        scope,
			ResponseMode: mode,
			Status:       store.StatusPending,
			CreatedAt:    issuedAt,
			ExpiresAt:    issuedAt.Add(cfg.ExpiresIn),
		}
		if err := cfg.Store.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("saving device transaction: %w", err)
		}

		params := map[string]any{
			"expires_in": int(cfg.ExpiresIn.Seconds()),
			"interval":   int(cfg.Interval.Seconds()),
		}
		if cfg.VerificationURI != "" {
			params["verification_uri_complete"] = codes.CompleteURI(cfg.VerificationURI, userCode)
		}

		return &deviceflow.Issued{
			DeviceCode: deviceCode,
			UserCode:   userCode,
			Params:     params,
		}, nil
	}
}
