package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/wrale/oauth2-device-grant/cmd/oauth2-device-grant/handlers/common"
	"github.com/wrale/oauth2-device-grant/internal/csrf"
	"github.com/wrale/oauth2-device-grant/internal/deviceflow"
	"github.com/wrale/oauth2-device-grant/internal/store"
)

var (
	errLoginRequired = deviceflow.NewAuthorizationError("Sign in to authorize a device", deviceflow.ErrorCodeAccessDenied)
	errInvalidForm   = deviceflow.NewAuthorizationError(msgResubmit, deviceflow.ErrorCodeInvalidRequest)
	errCodeNotFound  = deviceflow.NewAuthorizationError(msgInvalidCode, deviceflow.ErrorCodeInvalidRequest)
)

// NewActivator returns the activation callback that records an approval
// in the transaction store
func NewActivator(st store.Store) deviceflow.ActivateResponseFunc {
	return func(ctx context.Context, client any, deviceCode string, user any, ares *deviceflow.Decision) error {
		u, ok := user.(common.User)
		if !ok || u.ID == "" {
			return errLoginRequired
		}
		if err := st.Activate(ctx, deviceCode, u.ID, ares.Scope); err != nil {
			if errors.Is(err, store.ErrAlreadyDecided) {
				return deviceflow.NewAuthorizationError("This code has already been used", deviceflow.ErrorCodeInvalidRequest)
			}
			return fmt.Errorf("activating device: %w", err)
		}
		return nil
	}
}

// HandleDecision applies the user's allow or deny answer to the transaction
func (h *Handler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := common.UserFromRequest(r, h.userHeader)
	if !ok {
		h.renderError(ctx, w, nil, errLoginRequired)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.renderError(ctx, w, nil, errInvalidForm)
		return
	}
	if err := h.csrf.ValidateToken(ctx, r.PostFormValue(csrf.FormField)); err != nil {
		h.renderError(ctx, w, nil, errInvalidForm)
		return
	}

	rec, err := h.store.GetByUserCode(ctx, displayCode(r.PostFormValue("user_code")))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrExpired) {
			h.renderError(ctx, w, nil, errCodeNotFound)
			return
		}
		h.renderError(ctx, w, nil, fmt.Errorf("looking up user code: %w", err))
		return
	}

	client, ok := h.clients.Lookup(rec.ClientID)
	if !ok {
		client = common.Client{ID: rec.ClientID, Name: rec.ClientID}
	}

	allow := r.PostFormValue("decision") == "allow"
	txn := rec.Transaction(client, user, &deviceflow.Decision{
		Allow: allow,
		Scope: deviceflow.ScopeSet(rec.Scope),
	})
	log := h.logger.With(zap.String("transaction_id", rec.ID), zap.String("user", user.ID))

	if !allow {
		if err := h.store.Deny(ctx, rec.DeviceCode, user.ID); err != nil {
			log.Warn("recording denial failed", zap.Error(err))
			if errors.Is(err, store.ErrAlreadyDecided) {
				err = errCodeNotFound
			}
			h.renderError(ctx, w, txn, err)
			return
		}
	}

	sink := common.NewHTMLSink(w, h.templates)
	err = h.decider.Respond(ctx, txn, sink, func(ctx context.Context) error {
		return h.store.Complete(ctx, rec.DeviceCode)
	})

	var cerr *deviceflow.CompletionError
	switch {
	case err == nil:
		h.metrics.RecordDecision(outcome(allow))
		log.Info("device decision recorded", zap.Bool("allowed", allow))
	case errors.As(err, &cerr):
		// The page is already rendered; the decision stands.
		h.metrics.RecordDecision(outcome(allow))
		log.Warn("completing device transaction failed", zap.Error(cerr.Err))
	default:
		log.Warn("device decision failed", zap.Error(err))
		h.renderError(ctx, w, txn, err)
	}
}

func outcome(allow bool) string {
	if allow {
		return deviceflow.OutcomeAllowed.String()
	}
	return deviceflow.OutcomeDenied.String()
}
