package deviceflow

import (
	"errors"
	"fmt"
	"net/http"
)

// OAuth 2.0 error codes used by the device authorization grant
const (
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeInvalidScope            = "invalid_scope"
	ErrorCodeUnauthorizedClient      = "unauthorized_client"
	ErrorCodeAccessDenied            = "access_denied"
	ErrorCodeUnsupportedResponseType = "unsupported_response_type"
	ErrorCodeUnsupportedResponseMode = "unsupported_response_mode"
	ErrorCodeServerError             = "server_error"
	ErrorCodeTemporarilyUnavailable  = "temporarily_unavailable"
)

var (
	// ErrBodyNotParsed indicates the host did not decode the request body
	ErrBodyNotParsed = errors.New("deviceflow: request body was not parsed")

	// ErrMissingIssue indicates an Issuer was constructed without an issue function
	ErrMissingIssue = errors.New("deviceflow: device authorization requires an issue function")

	// ErrMissingActivate indicates a Decider was constructed without an activate callback
	ErrMissingActivate = errors.New("deviceflow: device_code grant requires an activate callback")

	// ErrMissingDecision indicates the transaction carries no user decision
	ErrMissingDecision = errors.New("deviceflow: transaction has no decision")
)

// AuthorizationError is an OAuth 2.0 error carrying a machine readable code
type AuthorizationError struct {
	Code        string
	Description string
	URI         string
	Status      int
}

// NewAuthorizationError creates an error whose HTTP status is derived from code
func NewAuthorizationError(description, code string) *AuthorizationError {
	if code == "" {
		code = ErrorCodeServerError
	}
	return &AuthorizationError{
		Code:        code,
		Description: description,
		Status:      statusForCode(code),
	}
}

func (e *AuthorizationError) Error() string {
	return e.Description
}

func statusForCode(code string) int {
	switch code {
	case ErrorCodeInvalidRequest, ErrorCodeInvalidScope:
		return http.StatusBadRequest
	case ErrorCodeUnauthorizedClient, ErrorCodeAccessDenied:
		return http.StatusForbidden
	case ErrorCodeUnsupportedResponseType:
		return http.StatusNotImplemented
	case ErrorCodeTemporarilyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errUnsupportedMode is reported for response modes missing from the registry.
// It always carries 501 and no documentation URI.
func errUnsupportedMode(name string) *AuthorizationError {
	return &AuthorizationError{
		Code:        ErrorCodeUnsupportedResponseMode,
		Description: "Unsupported device response mode: " + name,
		Status:      http.StatusNotImplemented,
	}
}

func errAccessDenied() *AuthorizationError {
	return NewAuthorizationError("Request denied by authorization server", ErrorCodeAccessDenied)
}

// ErrorCode returns the OAuth error code for err, server_error when untagged
func ErrorCode(err error) string {
	var aerr *AuthorizationError
	if errors.As(err, &aerr) && aerr.Code != "" {
		return aerr.Code
	}
	return ErrorCodeServerError
}

// ErrorDescription returns the human readable text of err
func ErrorDescription(err error) string {
	if err == nil {
		return ""
	}
	var aerr *AuthorizationError
	if errors.As(err, &aerr) {
		return aerr.Description
	}
	return err.Error()
}

// CompletionError reports a completion hook failure after the response was rendered
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completing transaction: %v", e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// recovered turns a recovered panic value into an error. Error values are
// passed through so a panic looks the same to the host as a returned error.
func recovered(what string, v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("%s panicked: %v", what, v)
}
