package deviceflow

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Issued is the outcome of a successful issue function. A nil *Issued or an
// empty DeviceCode means the authorization server declined the request.
type Issued struct {
	DeviceCode string
	UserCode   string
	Params     map[string]any
}

// issueInput carries every piece of context an issue function may ask for
type issueInput struct {
	client   any
	scope    ScopeSet
	body     map[string]any
	authInfo any
}

// IssueFunc is implemented by the four issue function shapes below. Each
// shape declares which request context it wants, from least to most.
type IssueFunc interface {
	issue(ctx context.Context, in issueInput) (*Issued, error)
}

// IssueClientFunc receives only the authenticated client
type IssueClientFunc func(ctx context.Context, client any) (*Issued, error)

// IssueScopeFunc receives the client and the requested scope
type IssueScopeFunc func(ctx context.Context, client any, scope ScopeSet) (*Issued, error)

// IssueBodyFunc receives the client, scope and the parsed request body
type IssueBodyFunc func(ctx context.Context, client any, scope ScopeSet, body map[string]any) (*Issued, error)

// IssueAuthInfoFunc additionally receives the client authentication info
type IssueAuthInfoFunc func(ctx context.Context, client any, scope ScopeSet, body map[string]any, authInfo any) (*Issued, error)

func (f IssueClientFunc) issue(ctx context.Context, in issueInput) (*Issued, error) {
	return f(ctx, in.client)
}

func (f IssueScopeFunc) issue(ctx context.Context, in issueInput) (*Issued, error) {
	return f(ctx, in.client, in.scope)
}

func (f IssueBodyFunc) issue(ctx context.Context, in issueInput) (*Issued, error) {
	return f(ctx, in.client, in.scope, in.body)
}

func (f IssueAuthInfoFunc) issue(ctx context.Context, in issueInput) (*Issued, error) {
	return f(ctx, in.client, in.scope, in.body, in.authInfo)
}

// IssueRequest is a device authorization request as seen by the Issuer
type IssueRequest struct {
	// Client is the identity established by client authentication
	Client any
	// Body is the decoded request body. nil means the host never parsed it.
	Body map[string]any
	// AuthInfo is optional information from client authentication
	AuthInfo any
}

// IssuanceResult is the device authorization response per RFC 8628 section 3.2
type IssuanceResult struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	Extra           map[string]any
}

// MarshalJSON writes the base fields merged with Extra. Extra may add fields
// but never replaces device_code, user_code or a configured verification_uri.
func (r *IssuanceResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+3)
	for k, v := range r.Extra {
		out[k] = v
	}
	out["device_code"] = r.DeviceCode
	out["user_code"] = r.UserCode
	if r.VerificationURI != "" {
		out["verification_uri"] = r.VerificationURI
	}
	return json.Marshal(out)
}

// Issuer handles device authorization requests per RFC 8628 section 3.1
type Issuer struct {
	issue           IssueFunc
	verificationURI string
	separators      []string
	logger          *zap.Logger
}

// NewIssuer creates an Issuer around the given issue function
func NewIssuer(fn IssueFunc, opts ...IssuerOption) (*Issuer, error) {
	if fn == nil {
		return nil, ErrMissingIssue
	}

	i := &Issuer{
		issue:      fn,
		separators: []string{DefaultScopeSeparator},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue validates the request, invokes the issue function and builds the response
func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (*IssuanceResult, error) {
	if req.Body == nil {
		return nil, ErrBodyNotParsed
	}

	var scope ScopeSet
	if raw, ok := req.Body["scope"]; ok && !isEmpty(raw) {
		s, ok := raw.(string)
		if !ok {
			return nil, NewAuthorizationError("Invalid parameter: scope must be a string", ErrorCodeInvalidRequest)
		}
		scope = ParseScope(s, i.separators)
	}

	issued, err := i.call(ctx, issueInput{
		client:   req.Client,
		scope:    scope,
		body:     req.Body,
		authInfo: req.AuthInfo,
	})
	if err != nil {
		i.logger.Debug("issue function failed", zap.Error(err))
		return nil, err
	}
	if issued == nil || issued.DeviceCode == "" {
		return nil, errAccessDenied()
	}

	return &IssuanceResult{
		DeviceCode:      issued.DeviceCode,
		UserCode:        issued.UserCode,
		VerificationURI: i.verificationURI,
		Extra:           issued.Params,
	}, nil
}

// Handle issues a device code and writes the JSON response. On failure
// nothing is written and the error is returned to the host.
func (i *Issuer) Handle(ctx context.Context, w http.ResponseWriter, req IssueRequest) error {
	result, err := i.Issue(ctx, req)
	if err != nil {
		return err
	}
	return WriteResult(w, result)
}

func (i *Issuer) call(ctx context.Context, in issueInput) (issued *Issued, err error) {
	defer func() {
		if r := recover(); r != nil {
			issued, err = nil, recovered("issue function", r)
		}
	}()
	return i.issue.issue(ctx, in)
}

// WriteResult writes a device authorization response that must not be cached
func WriteResult(w http.ResponseWriter, result *IssuanceResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, err = w.Write(data)
	return err
}

// isEmpty reports values a form decoder produces for an omitted parameter
func isEmpty(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return s == ""
	default:
		return false
	}
}
