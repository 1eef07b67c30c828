package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/wrale/oauth2-device-grant/internal/deviceflow"
)

// ErrorResponse is the OAuth 2.0 error body per RFC 6749 section 5.2
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// SetJSONHeaders sets required headers for JSON responses per RFC 8628
func SetJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
}

// WriteError sends an OAuth error response with the given status
func WriteError(w http.ResponseWriter, status int, code string, description string) {
	SetJSONHeaders(w)

	response := ErrorResponse{
		Error:            code,
		ErrorDescription: strings.TrimSpace(description),
	}

	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		WriteJSONError(w, err)
		return
	}
}

// WriteAuthorizationError maps err to an OAuth error response. Errors that
// carry no OAuth code are reported as server_error without their message.
func WriteAuthorizationError(w http.ResponseWriter, err error) {
	var aerr *deviceflow.AuthorizationError
	if errors.As(err, &aerr) {
		status := aerr.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		WriteError(w, status, deviceflow.ErrorCode(aerr), aerr.Description)
		return
	}
	WriteError(w, http.StatusInternalServerError, deviceflow.ErrorCodeServerError, "The server encountered an unexpected error")
}

// WriteJSONError handles JSON encoding failures with a standardized response
func WriteJSONError(w http.ResponseWriter, err error) {
	SetJSONHeaders(w)
	w.WriteHeader(http.StatusInternalServerError)

	errResponse := []byte(`{"error":"server_error","error_description":"Failed to encode response"}`)
	if _, writeErr := w.Write(errResponse); writeErr != nil {
		return
	}
}
