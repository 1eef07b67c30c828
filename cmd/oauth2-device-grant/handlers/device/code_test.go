package device

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/oauth2"

	"github.com/wrale/oauth2-device-grant/cmd/oauth2-device-grant/handlers/common"
	"github.com/wrale/oauth2-device-grant/cmd/oauth2-device-grant/handlers/common/test"
	"github.com/wrale/oauth2-device-grant/internal/codes"
	"github.com/wrale/oauth2-device-grant/internal/deviceflow"
	"github.com/wrale/oauth2-device-grant/internal/metrics"
	"github.com/wrale/oauth2-device-grant/internal/store"
)

const verificationURI = "https://auth.example.com/device"

var testClients = common.Clients{"tv-app": {ID: "tv-app", Name: "Living Room TV"}}

func newTestHandler(t *testing.T, st store.Store) (*Handler, *metrics.Metrics) {
	t.Helper()

	issuer, err := deviceflow.NewIssuer(NewIssueFunc(IssueConfig{
		Store:           st,
		VerificationURI: verificationURI,
		ExpiresIn:       15 * time.Minute,
		Interval:        5 * time.Second,
		Modes:           []string{deviceflow.DefaultModeName, "json"},
	}), deviceflow.WithVerificationURI(verificationURI), deviceflow.WithScopeSeparators(" ", ","))
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}

	m := metrics.New(prometheus.NewRegistry())
	return New(Config{Issuer: issuer, Clients: testClients, Metrics: m}), m
}

func TestDeviceAuthWithOAuth2Client(t *testing.T) {
	st := test.NewMockStore()
	h, m := newTestHandler(t, st)
	srv := httptest.NewServer(h)
	defer srv.Close()

	cfg := &oauth2.Config{
		ClientID: "tv-app",
		Endpoint: oauth2.Endpoint{DeviceAuthURL: srv.URL + "/device/code"},
		Scopes:   []string{"profile", "tv"},
	}

	resp, err := cfg.DeviceAuth(context.Background())
	if err != nil {
		t.Fatalf("DeviceAuth() error = %v", err)
	}

	if len(resp.DeviceCode) != 64 {
		t.Errorf("DeviceCode length = %d, want 64", len(resp.DeviceCode))
	}
	if err := codes.ValidateUserCode(resp.UserCode); err != nil {
		t.Errorf("UserCode %q invalid: %v", resp.UserCode, err)
	}
	if resp.VerificationURI != verificationURI {
		t.Errorf("VerificationURI = %q, want %q", resp.VerificationURI, verificationURI)
	}
	if want := codes.CompleteURI(verificationURI, resp.UserCode); resp.VerificationURIComplete != want {
		t.Errorf("VerificationURIComplete = %q, want %q", resp.VerificationURIComplete, want)
	}
	if resp.Interval != 5 {
		t.Errorf("Interval = %d, want 5", resp.Interval)
	}
	if until := time.Until(resp.Expiry); until <= 14*time.Minute || until > 15*time.Minute {
		t.Errorf("Expiry in %v, want about 15m", until)
	}

	rec, ok := st.Record(resp.DeviceCode)
	if !ok {
		t.Fatal("transaction was not saved")
	}
	if rec.ClientID != "tv-app" || rec.Status != store.StatusPending || rec.ID == "" {
		t.Errorf("unexpected record %+v", rec)
	}
	if diff := cmp.Diff([]string{"profile", "tv"}, rec.Scope); diff != "" {
		t.Errorf("scope mismatch (-want +got):\n%s", diff)
	}

	if got := testutil.ToFloat64(m.DeviceCodesTotal.WithLabelValues(ResultSuccess)); got != 1 {
		t.Errorf("success counter = %v, want 1", got)
	}
}

func TestDeviceAuthRejectedWithOAuth2Client(t *testing.T) {
	h, _ := newTestHandler(t, test.NewMockStore())
	srv := httptest.NewServer(h)
	defer srv.Close()

	cfg := &oauth2.Config{
		ClientID: "unknown",
		Endpoint: oauth2.Endpoint{DeviceAuthURL: srv.URL},
	}

	_, err := cfg.DeviceAuth(context.Background())

	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) {
		t.Fatalf("DeviceAuth() error = %v, want *oauth2.RetrieveError", err)
	}
	if rerr.Response.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rerr.Response.StatusCode, http.StatusUnauthorized)
	}
	var body common.ErrorResponse
	if err := json.Unmarshal(rerr.Body, &body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body.Error != "invalid_client" {
		t.Errorf("error = %q, want invalid_client", body.Error)
	}
}

func TestDeviceCodeHandler(t *testing.T) {
	tests := []struct {
		name          string
		method        string
		body          string
		saveErr       error
		wantStatus    int
		wantErrorCode string
		wantErrorDesc string
	}{
		{
			name:          "wrong method",
			method:        "GET",
			wantStatus:    http.StatusBadRequest,
			wantErrorCode: "invalid_request",
			wantErrorDesc: "POST method required",
		},
		{
			name:          "missing client_id",
			method:        "POST",
			body:          "scope=profile",
			wantStatus:    http.StatusBadRequest,
			wantErrorCode: "invalid_request",
			wantErrorDesc: "The client_id parameter is REQUIRED",
		},
		{
			name:          "duplicate parameter",
			method:        "POST",
			body:          "client_id=tv-app&client_id=tv-app",
			wantStatus:    http.StatusBadRequest,
			wantErrorCode: "invalid_request",
			wantErrorDesc: "Parameters MUST NOT be included more than once: client_id",
		},
		{
			name:          "unknown client",
			method:        "POST",
			body:          "client_id=toaster",
			wantStatus:    http.StatusUnauthorized,
			wantErrorCode: "invalid_client",
			wantErrorDesc: "Unknown client",
		},
		{
			name:          "store failure",
			method:        "POST",
			body:          "client_id=tv-app",
			saveErr:       errors.New("redis: connection refused"),
			wantStatus:    http.StatusInternalServerError,
			wantErrorCode: "server_error",
			wantErrorDesc: "The server encountered an unexpected error",
		},
		{
			name:          "unsupported response mode",
			method:        "POST",
			body:          "client_id=tv-app&response_mode=fubar",
			wantStatus:    http.StatusBadRequest,
			wantErrorCode: "invalid_request",
			wantErrorDesc: "Unsupported response_mode: fubar",
		},
		{
			name:       "comma separated scope",
			method:     "POST",
			body:       "client_id=tv-app&scope=profile,tv&response_mode=json",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := test.NewMockStore()
			if tt.saveErr != nil {
				st.SaveFunc = func(ctx context.Context, rec *store.Record) error { return tt.saveErr }
			}
			h, m := newTestHandler(t, st)

			req := httptest.NewRequest(tt.method, "/device/code", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Cache-Control"); got != "no-store" {
				t.Errorf("Cache-Control = %q, want no-store", got)
			}

			if tt.wantErrorCode != "" {
				var resp common.ErrorResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("decoding response: %v", err)
				}
				want := common.ErrorResponse{Error: tt.wantErrorCode, ErrorDescription: tt.wantErrorDesc}
				if diff := cmp.Diff(want, resp); diff != "" {
					t.Errorf("error mismatch (-want +got):\n%s", diff)
				}
				if got := testutil.ToFloat64(m.DeviceCodesTotal.WithLabelValues(tt.wantErrorCode)); got != 1 {
					t.Errorf("%s counter = %v, want 1", tt.wantErrorCode, got)
				}
				return
			}

			var resp map[string]any
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			deviceCode, _ := resp["device_code"].(string)
			rec, ok := st.Record(deviceCode)
			if !ok {
				t.Fatalf("no record saved for %q", deviceCode)
			}
			if diff := cmp.Diff([]string{"profile", "tv"}, rec.Scope); diff != "" {
				t.Errorf("scope mismatch (-want +got):\n%s", diff)
			}
			if rec.ResponseMode != "json" {
				t.Errorf("ResponseMode = %q, want json", rec.ResponseMode)
			}
		})
	}
}

func TestIssueFuncRejectsUnregisteredClient(t *testing.T) {
	fn := NewIssueFunc(IssueConfig{Store: test.NewMockStore(), ExpiresIn: time.Minute})

	_, err := fn(context.Background(), "not-a-client", nil, map[string]any{})
	if deviceflow.ErrorCode(err) != deviceflow.ErrorCodeUnauthorizedClient {
		t.Errorf("error = %v, want unauthorized_client", err)
	}
}

func TestIssueFuncRejectsUnsupportedResponseMode(t *testing.T) {
	st := test.NewMockStore()
	st.SaveFunc = func(ctx context.Context, rec *store.Record) error {
		t.Error("Save called for an unsupported response mode")
		return nil
	}
	fn := NewIssueFunc(IssueConfig{Store: st, ExpiresIn: time.Minute, Modes: []string{deviceflow.DefaultModeName}})

	client := testClients["tv-app"]
	issued, err := fn(context.Background(), client, nil, map[string]any{"response_mode": "fubar"})
	if deviceflow.ErrorCode(err) != deviceflow.ErrorCodeInvalidRequest {
		t.Errorf("error = %v, want invalid_request", err)
	}
	if issued != nil {
		t.Errorf("issued = %+v, want nil", issued)
	}

	st.SaveFunc = nil
	if _, err := fn(context.Background(), client, nil, map[string]any{"response_mode": deviceflow.DefaultModeName}); err != nil {
		t.Errorf("registered mode rejected: %v", err)
	}
}
