package device

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/wrale/oauth2-device-grant/cmd/oauth2-device-grant/handlers/common"
	"github.com/wrale/oauth2-device-grant/internal/deviceflow"
	"github.com/wrale/oauth2-device-grant/internal/metrics"
)

// ResultSuccess labels successful issuance in metrics
const ResultSuccess = "success"

// Handler processes device authorization requests per RFC 8628 section 3.1
type Handler struct {
	issuer  *deviceflow.Issuer
	clients common.Clients
	metrics metrics.Recorder
	logger  *zap.Logger
}

// Config contains handler configuration
type Config struct {
	Issuer  *deviceflow.Issuer
	Clients common.Clients
	Metrics metrics.Recorder
	Logger  *zap.Logger
}

// New creates a new device authorization handler
func New(cfg Config) *Handler {
	h := &Handler{
		issuer:  cfg.Issuer,
		clients: cfg.Clients,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
	if h.metrics == nil {
		h.metrics = metrics.NewNoopMetrics()
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	return h
}

// ServeHTTP handles device authorization requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.fail(w, http.StatusBadRequest, deviceflow.ErrorCodeInvalidRequest, "POST method required")
		return
	}

	if err := r.ParseForm(); err != nil {
		h.fail(w, http.StatusBadRequest, deviceflow.ErrorCodeInvalidRequest, "Invalid request format")
		return
	}

	// Check for duplicate parameters per RFC 8628 section 3.1
	for key, values := range r.Form {
		if len(values) > 1 {
			h.fail(w, http.StatusBadRequest, deviceflow.ErrorCodeInvalidRequest, "Parameters MUST NOT be included more than once: "+key)
			return
		}
	}

	clientID := r.Form.Get("client_id")
	if clientID == "" {
		h.fail(w, http.StatusBadRequest, deviceflow.ErrorCodeInvalidRequest, "The client_id parameter is REQUIRED")
		return
	}
	client, ok := h.clients.Lookup(clientID)
	if !ok {
		h.fail(w, http.StatusUnauthorized, "invalid_client", "Unknown client")
		return
	}

	body := make(map[string]any, len(r.Form))
	for key := range r.Form {
		body[key] = r.Form.Get(key)
	}

	err := h.issuer.Handle(r.Context(), w, deviceflow.IssueRequest{
		Client:   client,
		Body:     body,
		AuthInfo: map[string]any{"method": "none"},
	})
	if err != nil {
		code := deviceflow.ErrorCode(err)
		h.metrics.RecordDeviceCodeIssued(code)
		h.logger.Warn("device authorization failed",
			zap.String("client_id", clientID),
			zap.String("error", code),
			zap.Error(err))
		common.WriteAuthorizationError(w, err)
		return
	}

	h.metrics.RecordDeviceCodeIssued(ResultSuccess)
	h.logger.Info("device code issued", zap.String("client_id", clientID))
}

func (h *Handler) fail(w http.ResponseWriter, status int, code, description string) {
	h.metrics.RecordDeviceCodeIssued(code)
	common.WriteError(w, status, code, description)
}
