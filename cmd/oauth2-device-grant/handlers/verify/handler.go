// Package verify provides the user-facing activation pages per RFC 8628 section 3.3
package verify

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/wrale/oauth2-device-grant/cmd/oauth2-device-grant/handlers/common"
	"github.com/wrale/oauth2-device-grant/internal/csrf"
	"github.com/wrale/oauth2-device-grant/internal/deviceflow"
	"github.com/wrale/oauth2-device-grant/internal/metrics"
	"github.com/wrale/oauth2-device-grant/internal/store"
)

// DefaultUserHeader carries the user authenticated by the fronting proxy
const DefaultUserHeader = "X-Forwarded-User"

// Handler processes user verification and decisions
type Handler struct {
	store           store.Store
	decider         *deviceflow.Decider
	templates       common.Renderer
	csrf            *csrf.Manager
	clients         common.Clients
	userHeader      string
	verificationURI string
	metrics         metrics.Recorder
	logger          *zap.Logger
}

// Config contains handler configuration
type Config struct {
	Store           store.Store
	Decider         *deviceflow.Decider
	Templates       common.Renderer
	CSRF            *csrf.Manager
	Clients         common.Clients
	UserHeader      string
	VerificationURI string
	Metrics         metrics.Recorder
	Logger          *zap.Logger
}

// New creates a new verification flow handler
func New(cfg Config) *Handler {
	h := &Handler{
		store:           cfg.Store,
		decider:         cfg.Decider,
		templates:       cfg.Templates,
		csrf:            cfg.CSRF,
		clients:         cfg.Clients,
		userHeader:      cfg.UserHeader,
		verificationURI: cfg.VerificationURI,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
	}
	if h.userHeader == "" {
		h.userHeader = DefaultUserHeader
	}
	if h.metrics == nil {
		h.metrics = metrics.NewNoopMetrics()
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	return h
}

// renderError shows cause through the decision engine's error phase. When
// the transaction names a mode that cannot render, the engine hands cause
// back and it is written as a JSON OAuth error instead.
func (h *Handler) renderError(ctx context.Context, w http.ResponseWriter, txn *deviceflow.Transaction, cause error) {
	status := http.StatusInternalServerError
	var aerr *deviceflow.AuthorizationError
	if errors.As(cause, &aerr) && aerr.Status != 0 {
		status = aerr.Status
	}

	h.metrics.RecordDecisionError(deviceflow.ErrorCode(cause))
	sink := common.NewHTMLSink(w, h.templates).WithStatus(status)
	err := h.decider.RespondError(ctx, txn, sink, cause)
	switch {
	case err == nil:
	case errors.Is(err, cause):
		common.WriteAuthorizationError(w, cause)
	default:
		h.logger.Error("rendering error page failed", zap.Error(err), zap.NamedError("cause", cause))
		common.WriteAuthorizationError(w, err)
	}
}
