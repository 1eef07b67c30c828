package deviceflow

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// recordingSink captures the view a response mode renders
type recordingSink struct {
	*httptest.ResponseRecorder
	view    string
	locals  map[string]any
	renders int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{ResponseRecorder: httptest.NewRecorder()}
}

func (s *recordingSink) Render(view string, locals map[string]any) error {
	s.renders++
	s.view = view
	s.locals = locals
	return nil
}

const testDeviceCode = "GMMhmHCXhWEzkobqIHGG_EnNYYsAkukHspeYUk9E8"

func testTransaction(allow bool, mode string) *Transaction {
	return &Transaction{
		ID:     "c123",
		Client: client,
		Req:    &Request{ClientID: "1", Scope: ScopeSet{"profile"}, ResponseMode: mode},
		User:   user,
		Res:    &Decision{Allow: allow, Scope: ScopeSet{"tv"}},
		Locals: map[string]any{LocalDeviceCode: testDeviceCode, "bar": "baz"},
	}
}

func noopActivate(ctx context.Context, c any, deviceCode string, u any) error { return nil }

func TestNewDeciderRequiresActivate(t *testing.T) {
	if _, err := NewDecider(nil); !errors.Is(err, ErrMissingActivate) {
		t.Errorf("NewDecider(nil) error = %v, want ErrMissingActivate", err)
	}

	d, err := NewDecider(ActivateFunc(noopActivate))
	if err != nil {
		t.Fatalf("NewDecider() error = %v", err)
	}
	if d.Name() != "device_code" {
		t.Errorf("Name() = %q, want device_code", d.Name())
	}
}

func TestDeciderModes(t *testing.T) {
	d, _ := NewDecider(ActivateFunc(noopActivate), WithModes(map[string]ResponseMode{
		"json":  ResponseModeFunc(func(txn *Transaction, sink Sink, params Params) error { return nil }),
		"other": ResponseModeFunc(func(txn *Transaction, sink Sink, params Params) error { return nil }),
	}))

	if diff := cmp.Diff([]string{"default", "json", "other"}, d.Modes()); diff != "" {
		t.Errorf("Modes() mismatch (-want +got):\n%s", diff)
	}
}

func TestActivatorShapes(t *testing.T) {
	checkCommon := func(t *testing.T, c any, deviceCode string, u any) {
		t.Helper()
		if deviceCode != testDeviceCode {
			t.Errorf("deviceCode = %q", deviceCode)
		}
		if diff := cmp.Diff(client, c); diff != "" {
			t.Errorf("client mismatch:\n%s", diff)
		}
		if diff := cmp.Diff(user, u); diff != "" {
			t.Errorf("user mismatch:\n%s", diff)
		}
	}

	tests := []struct {
		name string
		fn   func(t *testing.T, called *bool) Activator
	}{
		{
			name: "client, device code and user",
			fn: func(t *testing.T, called *bool) Activator {
				return ActivateFunc(func(ctx context.Context, c any, deviceCode string, u any) error {
					*called = true
					checkCommon(t, c, deviceCode, u)
					return nil
				})
			},
		},
		{
			name: "with response",
			fn: func(t *testing.T, called *bool) Activator {
				return ActivateResponseFunc(func(ctx context.Context, c any, deviceCode string, u any, ares *Decision) error {
					*called = true
					checkCommon(t, c, deviceCode, u)
					if ares.Scope[0] != "tv" {
						t.Errorf("ares.Scope = %v", ares.Scope)
					}
					return nil
				})
			},
		},
		{
			name: "with request",
			fn: func(t *testing.T, called *bool) Activator {
				return ActivateRequestFunc(func(ctx context.Context, c any, deviceCode string, u any, ares *Decision, areq *Request) error {
					*called = true
					checkCommon(t, c, deviceCode, u)
					if ares.Scope[0] != "tv" || areq.Scope[0] != "profile" {
						t.Errorf("ares.Scope = %v, areq.Scope = %v", ares.Scope, areq.Scope)
					}
					return nil
				})
			},
		},
		{
			name: "with locals",
			fn: func(t *testing.T, called *bool) Activator {
				return ActivateLocalsFunc(func(ctx context.Context, c any, deviceCode string, u any, ares *Decision, areq *Request, locals map[string]any) error {
					*called = true
					checkCommon(t, c, deviceCode, u)
					if areq.Scope[0] != "profile" || locals["bar"] != "baz" {
						t.Errorf("areq.Scope = %v, locals = %v", areq.Scope, locals)
					}
					return nil
				})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			d, _ := NewDecider(tt.fn(t, &called))
			sink := newRecordingSink()
			completed := false

			err := d.Respond(context.Background(), testTransaction(true, ""), sink, func(ctx context.Context) error {
				completed = true
				return nil
			})
			if err != nil {
				t.Fatalf("Respond() error = %v", err)
			}
			if !called {
				t.Error("activate callback not called")
			}
			if !completed {
				t.Error("completion hook not called")
			}
			if sink.view != "device/allowed" {
				t.Errorf("view = %q, want device/allowed", sink.view)
			}
			if diff := cmp.Diff(map[string]any{"user": user, "client": client}, sink.locals); diff != "" {
				t.Errorf("locals mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRespondDenied(t *testing.T) {
	called := false
	d, _ := NewDecider(ActivateFunc(func(ctx context.Context, c any, deviceCode string, u any) error {
		called = true
		return nil
	}))
	sink := newRecordingSink()
	completed := false

	err := d.Respond(context.Background(), testTransaction(false, ""), sink, func(ctx context.Context) error {
		completed = true
		return nil
	})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if called {
		t.Error("activate callback must not be called on denial")
	}
	if !completed {
		t.Error("completion hook not called")
	}
	if sink.view != "device/denied" {
		t.Errorf("view = %q, want device/denied", sink.view)
	}
}

func TestRespondActivationFailure(t *testing.T) {
	boom := errors.New("something went wrong")

	tests := []struct {
		name string
		fn   ActivateFunc
	}{
		{
			name: "returned error",
			fn:   func(ctx context.Context, c any, deviceCode string, u any) error { return boom },
		},
		{
			name: "panic",
			fn:   func(ctx context.Context, c any, deviceCode string, u any) error { panic(boom) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := NewDecider(tt.fn)
			sink := newRecordingSink()
			completed := false

			err := d.Respond(context.Background(), testTransaction(true, ""), sink, func(ctx context.Context) error {
				completed = true
				return nil
			})
			if !errors.Is(err, boom) {
				t.Errorf("Respond() error = %v, want %v", err, boom)
			}
			if sink.renders != 0 {
				t.Errorf("expected no render, got view %q", sink.view)
			}
			if completed {
				t.Error("completion hook must not run after activation failure")
			}
		})
	}
}

func TestRespondCompletionFailure(t *testing.T) {
	boom := errors.New("store unavailable")
	d, _ := NewDecider(ActivateFunc(noopActivate))
	sink := newRecordingSink()

	err := d.Respond(context.Background(), testTransaction(true, ""), sink, func(ctx context.Context) error {
		return boom
	})

	var cerr *CompletionError
	if !errors.As(err, &cerr) {
		t.Fatalf("Respond() error = %v, want *CompletionError", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("CompletionError should wrap %v", boom)
	}
	if sink.view != "device/allowed" {
		t.Errorf("completion failure must follow the render, view = %q", sink.view)
	}
}

func TestRespondWithoutDecision(t *testing.T) {
	d, _ := NewDecider(ActivateFunc(noopActivate))

	txn := testTransaction(true, "")
	txn.Res = nil
	if err := d.Respond(context.Background(), txn, newRecordingSink(), nil); !errors.Is(err, ErrMissingDecision) {
		t.Errorf("Respond() error = %v, want ErrMissingDecision", err)
	}
}

func TestRespondCustomMode(t *testing.T) {
	tests := []struct {
		name       string
		allow      bool
		wantParams Params
	}{
		{name: "allowed", allow: true, wantParams: Params{Outcome: OutcomeAllowed}},
		{name: "denied", allow: false, wantParams: Params{Outcome: OutcomeDenied, Error: "access_denied"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Params
			var gotTxn *Transaction
			other := ResponseModeFunc(func(txn *Transaction, sink Sink, params Params) error {
				gotTxn = txn
				got = params
				sink.WriteHeader(http.StatusNoContent)
				return nil
			})
			d, _ := NewDecider(ActivateFunc(noopActivate), WithModes(map[string]ResponseMode{"other": other}))
			sink := newRecordingSink()
			txn := testTransaction(tt.allow, "other")

			if err := d.Respond(context.Background(), txn, sink, nil); err != nil {
				t.Fatalf("Respond() error = %v", err)
			}
			if gotTxn != txn {
				t.Error("mode should receive the transaction")
			}
			if diff := cmp.Diff(tt.wantParams, got); diff != "" {
				t.Errorf("params mismatch (-want +got):\n%s", diff)
			}
			if sink.renders != 0 {
				t.Error("default mode should not render")
			}
			if sink.Code != http.StatusNoContent {
				t.Errorf("status = %d, want %d", sink.Code, http.StatusNoContent)
			}
		})
	}
}

func TestRespondUnsupportedMode(t *testing.T) {
	called := false
	d, _ := NewDecider(ActivateFunc(func(ctx context.Context, c any, deviceCode string, u any) error {
		called = true
		return nil
	}))
	sink := newRecordingSink()
	completed := false

	err := d.Respond(context.Background(), testTransaction(true, "fubar"), sink, func(ctx context.Context) error {
		completed = true
		return nil
	})

	var aerr *AuthorizationError
	if !errors.As(err, &aerr) {
		t.Fatalf("Respond() error = %v, want *AuthorizationError", err)
	}
	want := &AuthorizationError{
		Code:        "unsupported_response_mode",
		Description: "Unsupported device response mode: fubar",
		Status:      http.StatusNotImplemented,
	}
	if diff := cmp.Diff(want, aerr); diff != "" {
		t.Errorf("error mismatch (-want +got):\n%s", diff)
	}
	if !called {
		t.Error("activation runs before the mode is resolved")
	}
	if sink.renders != 0 || completed {
		t.Error("nothing should be rendered or completed for an unsupported mode")
	}
}

func TestRespondOverrideDefaults(t *testing.T) {
	t.Run("custom views", func(t *testing.T) {
		d, _ := NewDecider(ActivateFunc(noopActivate), WithViews(Views{Allowed: "tv/ok"}))

		sink := newRecordingSink()
		if err := d.Respond(context.Background(), testTransaction(true, ""), sink, nil); err != nil {
			t.Fatalf("Respond() error = %v", err)
		}
		if sink.view != "tv/ok" {
			t.Errorf("view = %q, want tv/ok", sink.view)
		}

		sink = newRecordingSink()
		if err := d.Respond(context.Background(), testTransaction(false, ""), sink, nil); err != nil {
			t.Fatalf("Respond() error = %v", err)
		}
		if sink.view != "device/denied" {
			t.Errorf("view = %q, want device/denied", sink.view)
		}
	})

	t.Run("custom default mode", func(t *testing.T) {
		var got Params
		d, _ := NewDecider(ActivateFunc(noopActivate), WithModes(map[string]ResponseMode{
			DefaultModeName: ResponseModeFunc(func(txn *Transaction, sink Sink, params Params) error {
				got = params
				return nil
			}),
		}))
		sink := newRecordingSink()

		if err := d.Respond(context.Background(), testTransaction(false, ""), sink, nil); err != nil {
			t.Fatalf("Respond() error = %v", err)
		}
		if got.Outcome != OutcomeDenied || sink.renders != 0 {
			t.Errorf("custom default not used: params %+v, renders %d", got, sink.renders)
		}
	})
}

func TestRespondError(t *testing.T) {
	t.Run("generic error through default mode", func(t *testing.T) {
		d, _ := NewDecider(ActivateFunc(noopActivate))
		sink := newRecordingSink()

		err := d.RespondError(context.Background(), testTransaction(true, ""), sink, errors.New("something went wrong"))
		if err != nil {
			t.Fatalf("RespondError() error = %v", err)
		}
		if sink.view != "device/error" {
			t.Errorf("view = %q, want device/error", sink.view)
		}
		want := map[string]any{
			"user":              user,
			"client":            client,
			"error":             "server_error",
			"error_description": "something went wrong",
		}
		if diff := cmp.Diff(want, sink.locals); diff != "" {
			t.Errorf("locals mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("authorization error through custom mode", func(t *testing.T) {
		var got Params
		d, _ := NewDecider(ActivateFunc(noopActivate), WithModes(map[string]ResponseMode{
			"other": ResponseModeFunc(func(txn *Transaction, sink Sink, params Params) error {
				got = params
				return nil
			}),
		}))

		cause := NewAuthorizationError("not authorized", "unauthorized_client")
		if err := d.RespondError(context.Background(), testTransaction(true, "other"), newRecordingSink(), cause); err != nil {
			t.Fatalf("RespondError() error = %v", err)
		}
		want := Params{Outcome: OutcomeError, Error: "unauthorized_client", ErrorDescription: "not authorized"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("params mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unsupported mode", func(t *testing.T) {
		d, _ := NewDecider(ActivateFunc(noopActivate))
		sink := newRecordingSink()

		cause := NewAuthorizationError("not authorized", "unauthorized_client")
		err := d.RespondError(context.Background(), testTransaction(true, "fubar"), sink, cause)
		if !errors.Is(err, cause) {
			t.Fatalf("RespondError() error = %v, want the original cause", err)
		}
		var aerr *AuthorizationError
		if !errors.As(err, &aerr) {
			t.Fatalf("RespondError() error = %T, want *AuthorizationError", err)
		}
		if aerr.Code != "unauthorized_client" || aerr.Status != http.StatusForbidden || aerr.Error() != "not authorized" {
			t.Errorf("forwarded error = {%q %d %q}, want {unauthorized_client 403 not authorized}", aerr.Code, aerr.Status, aerr.Error())
		}
		if sink.renders != 0 {
			t.Error("nothing should be rendered for an unsupported mode")
		}
	})

	t.Run("no transaction", func(t *testing.T) {
		d, _ := NewDecider(ActivateFunc(noopActivate))
		sink := newRecordingSink()

		if err := d.RespondError(context.Background(), nil, sink, errors.New("boom")); err != nil {
			t.Fatalf("RespondError() error = %v", err)
		}
		if sink.view != "device/error" {
			t.Errorf("view = %q, want device/error", sink.view)
		}
	})
}
