package deviceflow

import "net/http"

// LocalDeviceCode is the Transaction.Locals key holding the resolved device code
const LocalDeviceCode = "deviceCode"

// Request is the original device authorization request of a transaction
type Request struct {
	ClientID     string
	Scope        ScopeSet
	ResponseMode string
	Params       map[string]any
}

// Decision is the user's answer to a pending device transaction
type Decision struct {
	Allow  bool
	Scope  ScopeSet
	Params map[string]any
}

// Transaction links a client, device code, user and decision. It is owned
// by the host: the decision engine reads it and never mutates it.
type Transaction struct {
	ID     string
	Client any
	Req    *Request
	User   any
	Res    *Decision
	Locals map[string]any
}

// DeviceCode returns the device code resolved by earlier processing
func (t *Transaction) DeviceCode() string {
	if t == nil {
		return ""
	}
	code, _ := t.Locals[LocalDeviceCode].(string)
	return code
}

func (t *Transaction) responseMode() string {
	if t == nil || t.Req == nil {
		return ""
	}
	return t.Req.ResponseMode
}

// Sink renders the outcome of a decision. It is an http.ResponseWriter that
// can also render a logical view with a locals mapping.
type Sink interface {
	http.ResponseWriter
	Render(view string, locals map[string]any) error
}
