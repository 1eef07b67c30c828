package deviceflow

import (
	"context"
	"maps"
	"slices"

	"go.uber.org/zap"
)

// GrantName identifies the device code grant
const GrantName = "device_code"

// Activator is implemented by the four activation callback shapes below.
// Each shape appends one more piece of transaction context, in the fixed
// order ares, areq, locals.
type Activator interface {
	activate(ctx context.Context, txn *Transaction) error
}

// ActivateFunc receives the client, device code and the approving user
type ActivateFunc func(ctx context.Context, client any, deviceCode string, user any) error

// ActivateResponseFunc additionally receives the user's decision
type ActivateResponseFunc func(ctx context.Context, client any, deviceCode string, user any, ares *Decision) error

// ActivateRequestFunc additionally receives the original request
type ActivateRequestFunc func(ctx context.Context, client any, deviceCode string, user any, ares *Decision, areq *Request) error

// ActivateLocalsFunc additionally receives the transaction locals
type ActivateLocalsFunc func(ctx context.Context, client any, deviceCode string, user any, ares *Decision, areq *Request, locals map[string]any) error

func (f ActivateFunc) activate(ctx context.Context, txn *Transaction) error {
	return f(ctx, txn.Client, txn.DeviceCode(), txn.User)
}

func (f ActivateResponseFunc) activate(ctx context.Context, txn *Transaction) error {
	return f(ctx, txn.Client, txn.DeviceCode(), txn.User, txn.Res)
}

func (f ActivateRequestFunc) activate(ctx context.Context, txn *Transaction) error {
	return f(ctx, txn.Client, txn.DeviceCode(), txn.User, txn.Res, txn.Req)
}

func (f ActivateLocalsFunc) activate(ctx context.Context, txn *Transaction) error {
	return f(ctx, txn.Client, txn.DeviceCode(), txn.User, txn.Res, txn.Req, txn.Locals)
}

// CompleteFunc is run after a successful render, typically to let the
// transaction store finalize the transaction
type CompleteFunc func(ctx context.Context) error

// Decider maps a user's decision on a pending device transaction to a
// rendered response. It holds no per-transaction state.
type Decider struct {
	activate Activator
	modes    map[string]ResponseMode
	views    Views
	logger   *zap.Logger
}

// NewDecider creates a decision engine around the activation callback
func NewDecider(activate Activator, opts ...DecisionOption) (*Decider, error) {
	if activate == nil {
		return nil, ErrMissingActivate
	}

	d := &Decider{
		activate: activate,
		modes:    make(map[string]ResponseMode),
		views:    DefaultViews,
		logger:   zap.NewNop(),
	}
	d.modes[DefaultModeName] = ResponseModeFunc(d.renderDefault)

	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Name returns the grant name
func (d *Decider) Name() string {
	return GrantName
}

// Modes returns the names of the registered response modes, sorted
func (d *Decider) Modes() []string {
	return slices.Sorted(maps.Keys(d.modes))
}

// Respond handles the response phase: a decision has been attached to txn.
// A denial renders without calling the activation callback. Activation and
// mode lookup failures are returned before anything is rendered. A
// completion failure is returned as *CompletionError after rendering.
func (d *Decider) Respond(ctx context.Context, txn *Transaction, sink Sink, complete CompleteFunc) error {
	if txn == nil || txn.Res == nil {
		return ErrMissingDecision
	}

	log := d.logger.With(zap.String("transaction_id", txn.ID))

	params := Params{Outcome: OutcomeAllowed}
	if !txn.Res.Allow {
		params = Params{Outcome: OutcomeDenied, Error: ErrorCodeAccessDenied}
	} else if err := d.callActivate(ctx, txn); err != nil {
		log.Debug("activation failed", zap.Error(err))
		return err
	}

	mode, err := d.mode(txn.responseMode())
	if err != nil {
		return err
	}
	if err := mode.Respond(txn, sink, params); err != nil {
		return err
	}
	log.Debug("decision rendered", zap.Stringer("outcome", params.Outcome))

	if complete == nil {
		return nil
	}
	if err := complete(ctx); err != nil {
		log.Warn("completing transaction failed", zap.Error(err))
		return &CompletionError{Err: err}
	}
	return nil
}

// RespondError handles the error phase: cause is rendered through the
// requested response mode as error and error_description. If the mode
// cannot be resolved, cause itself is returned unrendered.
func (d *Decider) RespondError(ctx context.Context, txn *Transaction, sink Sink, cause error) error {
	if txn == nil {
		txn = &Transaction{}
	}

	mode, err := d.mode(txn.responseMode())
	if err != nil {
		d.logger.Debug("no response mode for error",
			zap.String("transaction_id", txn.ID),
			zap.Error(err))
		return cause
	}

	params := Params{
		Outcome:          OutcomeError,
		Error:            ErrorCode(cause),
		ErrorDescription: ErrorDescription(cause),
	}
	d.logger.Debug("rendering error",
		zap.String("transaction_id", txn.ID),
		zap.String("error", params.Error))
	return mode.Respond(txn, sink, params)
}

func (d *Decider) callActivate(ctx context.Context, txn *Transaction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered("activate callback", r)
		}
	}()
	return d.activate.activate(ctx, txn)
}
