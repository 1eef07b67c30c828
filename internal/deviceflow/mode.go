package deviceflow

// DefaultModeName is the registry key used when a request names no response mode
const DefaultModeName = "default"

// Outcome is the result a response mode is asked to render
type Outcome int

const (
	OutcomeAllowed Outcome = iota
	OutcomeDenied
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllowed:
		return "allowed"
	case OutcomeDenied:
		return "denied"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Params are the protocol parameters handed to a response mode. An allowed
// decision has no error; a denial carries access_denied; the error phase
// carries both error and error_description.
type Params struct {
	Outcome          Outcome `json:"-"`
	Error            string  `json:"error,omitempty"`
	ErrorDescription string  `json:"error_description,omitempty"`
}

// ResponseMode renders the outcome of a device transaction
type ResponseMode interface {
	Respond(txn *Transaction, sink Sink, params Params) error
}

// ResponseModeFunc adapts a function to ResponseMode
type ResponseModeFunc func(txn *Transaction, sink Sink, params Params) error

// Respond calls f(txn, sink, params)
func (f ResponseModeFunc) Respond(txn *Transaction, sink Sink, params Params) error {
	return f(txn, sink, params)
}

// Views names the views rendered by the built-in default mode
type Views struct {
	Allowed string
	Denied  string
	Error   string
}

// DefaultViews are the logical view names of the default mode
var DefaultViews = Views{
	Allowed: "device/allowed",
	Denied:  "device/denied",
	Error:   "device/error",
}

func (v Views) withDefaults() Views {
	if v.Allowed == "" {
		v.Allowed = DefaultViews.Allowed
	}
	if v.Denied == "" {
		v.Denied = DefaultViews.Denied
	}
	if v.Error == "" {
		v.Error = DefaultViews.Error
	}
	return v
}

// renderDefault is the built-in default response mode
func (d *Decider) renderDefault(txn *Transaction, sink Sink, params Params) error {
	locals := map[string]any{
		"user":   txn.User,
		"client": txn.Client,
	}

	switch params.Outcome {
	case OutcomeAllowed:
		return sink.Render(d.views.Allowed, locals)
	case OutcomeDenied:
		return sink.Render(d.views.Denied, locals)
	default:
		locals["error"] = params.Error
		locals["error_description"] = params.ErrorDescription
		return sink.Render(d.views.Error, locals)
	}
}

// mode resolves a response mode by name. An empty name selects the default;
// an unknown name is an error, never a fallback.
func (d *Decider) mode(name string) (ResponseMode, error) {
	if name == "" {
		name = DefaultModeName
	}
	mode, ok := d.modes[name]
	if !ok {
		return nil, errUnsupportedMode(name)
	}
	return mode, nil
}
