package verify

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/wrale/oauth2-device-grant/internal/codes"
	"github.com/wrale/oauth2-device-grant/internal/csrf"
	"github.com/wrale/oauth2-device-grant/internal/deviceflow"
	"github.com/wrale/oauth2-device-grant/internal/store"
	"github.com/wrale/oauth2-device-grant/internal/templates"
)

const (
	msgInvalidCode = "Invalid or expired code. Please try again."
	msgResubmit    = "Please try submitting the form again."
)

var errCSRFUnavailable = deviceflow.NewAuthorizationError(
	"Unable to process request securely. Please try again in a moment.",
	deviceflow.ErrorCodeTemporarilyUnavailable)

// HandleForm shows the code entry form, prefilled from verification_uri_complete
func (h *Handler) HandleForm(w http.ResponseWriter, r *http.Request) {
	h.renderVerify(w, r, http.StatusOK, displayCode(r.URL.Query().Get("code")), "")
}

// HandleSubmit looks up the entered user code and asks the user to decide
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		h.renderVerify(w, r, http.StatusBadRequest, "", msgResubmit)
		return
	}
	if err := h.csrf.ValidateToken(ctx, r.PostFormValue(csrf.FormField)); err != nil {
		h.renderVerify(w, r, http.StatusBadRequest, "", msgResubmit)
		return
	}

	code := displayCode(r.PostFormValue("code"))
	if err := codes.ValidateUserCode(code); err != nil {
		h.renderVerify(w, r, http.StatusBadRequest, code, msgInvalidCode)
		return
	}

	rec, err := h.store.GetByUserCode(ctx, code)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrExpired) {
			h.logger.Error("looking up user code", zap.Error(err))
		}
		h.renderVerify(w, r, http.StatusBadRequest, code, msgInvalidCode)
		return
	}
	if rec.Status != store.StatusPending {
		h.renderVerify(w, r, http.StatusBadRequest, code, msgInvalidCode)
		return
	}

	token, err := h.csrf.GenerateToken(ctx)
	if err != nil {
		h.logger.Error("generating csrf token", zap.Error(err))
		h.renderError(ctx, w, nil, errCSRFUnavailable)
		return
	}

	client, _ := h.clients.Lookup(rec.ClientID)
	name := client.Name
	if name == "" {
		name = rec.ClientID
	}

	h.render(w, http.StatusOK, templates.ViewConsent, templates.ConsentData{
		UserCode:   rec.UserCode,
		ClientName: name,
		Scope:      rec.Scope,
		CSRFToken:  token,
	})
}

func (h *Handler) renderVerify(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	token, err := h.csrf.GenerateToken(r.Context())
	if err != nil {
		h.logger.Error("generating csrf token", zap.Error(err))
		h.renderError(r.Context(), w, nil, errCSRFUnavailable)
		return
	}

	h.render(w, status, templates.ViewVerify, templates.VerifyData{
		PrefilledCode:   code,
		CSRFToken:       token,
		VerificationURI: h.verificationURI,
		Error:           message,
	})
}

func (h *Handler) render(w http.ResponseWriter, status int, view string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := h.templates.Render(w, view, data); err != nil {
		h.logger.Error("rendering page", zap.String("view", view), zap.Error(err))
	}
}

// displayCode puts user input into XXXX-XXXX form, ignoring case and dashes
func displayCode(input string) string {
	return codes.FormatUserCode(codes.NormalizeUserCode(input))
}
