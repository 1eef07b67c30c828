package test

import (
	"context"
	"sync"
	"time"

	"github.com/wrale/oauth2-device-grant/internal/codes"
	"github.com/wrale/oauth2-device-grant/internal/csrf"
	"github.com/wrale/oauth2-device-grant/internal/store"
)

// MockStore is an in-memory store.Store. Func fields override behavior.
type MockStore struct {
	mu      sync.Mutex
	records map[string]*store.Record

	SaveFunc        func(ctx context.Context, rec *store.Record) error
	ActivateFunc    func(ctx context.Context, deviceCode, userID string, scope []string) error
	DenyFunc        func(ctx context.Context, deviceCode, userID string) error
	CompleteFunc    func(ctx context.Context, deviceCode string) error
	CheckHealthFunc func(ctx context.Context) error
}

// Ensure MockStore implements store.Store
var _ store.Store = (*MockStore)(nil)

var _ csrf.Store = (*MockCSRFStore)(nil)

// NewMockStore creates an empty in-memory store
func NewMockStore() *MockStore {
	return &MockStore{records: make(map[string]*store.Record)}
}

// Record returns a copy of the stored record for deviceCode
func (m *MockStore) Record(deviceCode string) (store.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[deviceCode]
	if !ok {
		return store.Record{}, false
	}
	return *rec, true
}

// Save implements store.Store
func (m *MockStore) Save(ctx context.Context, rec *store.Record) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, rec); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.DeviceCode] = &cp
	return nil
}

// GetByDeviceCode implements store.Store
func (m *MockStore) GetByDeviceCode(ctx context.Context, deviceCode string) (*store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[deviceCode]
	if !ok {
		return nil, store.ErrNotFound
	}
	if rec.Expired(time.Now()) {
		return nil, store.ErrExpired
	}
	cp := *rec
	return &cp, nil
}

// GetByUserCode implements store.Store. Completed records are not found.
func (m *MockStore) GetByUserCode(ctx context.Context, userCode string) (*store.Record, error) {
	m.mu.Lock()
	want := codes.NormalizeUserCode(userCode)
	var deviceCode string
	for dc, rec := range m.records {
		if rec.UserCode != "" && codes.NormalizeUserCode(rec.UserCode) == want {
			deviceCode = dc
			break
		}
	}
	m.mu.Unlock()

	if deviceCode == "" {
		return nil, store.ErrNotFound
	}
	return m.GetByDeviceCode(ctx, deviceCode)
}

// Activate implements store.Store
func (m *MockStore) Activate(ctx context.Context, deviceCode, userID string, scope []string) error {
	if m.ActivateFunc != nil {
		return m.ActivateFunc(ctx, deviceCode, userID, scope)
	}
	return m.decide(deviceCode, func(rec *store.Record) {
		rec.Status = store.StatusAllowed
		rec.UserID = userID
		rec.GrantedScope = scope
	})
}

// Deny implements store.Store
func (m *MockStore) Deny(ctx context.Context, deviceCode, userID string) error {
	if m.DenyFunc != nil {
		return m.DenyFunc(ctx, deviceCode, userID)
	}
	return m.decide(deviceCode, func(rec *store.Record) {
		rec.Status = store.StatusDenied
		rec.UserID = userID
	})
}

func (m *MockStore) decide(deviceCode string, apply func(*store.Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[deviceCode]
	if !ok {
		return store.ErrNotFound
	}
	if rec.Status != store.StatusPending {
		return store.ErrAlreadyDecided
	}
	apply(rec)
	return nil
}

// Complete implements store.Store by forgetting the user code
func (m *MockStore) Complete(ctx context.Context, deviceCode string) error {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, deviceCode)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[deviceCode]
	if !ok {
		return store.ErrNotFound
	}
	rec.UserCode = ""
	return nil
}

// CheckHealth implements store.Store
func (m *MockStore) CheckHealth(ctx context.Context) error {
	if m.CheckHealthFunc != nil {
		return m.CheckHealthFunc(ctx)
	}
	return nil
}

// MockCSRFStore is an in-memory csrf.Store
type MockCSRFStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	Err    error
}

// NewMockCSRFStore creates an empty token store
func NewMockCSRFStore() *MockCSRFStore {
	return &MockCSRFStore{tokens: make(map[string]time.Time)}
}

// SaveToken implements csrf.Store
func (m *MockCSRFStore) SaveToken(ctx context.Context, token string, expiresIn time.Duration) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = time.Now().Add(expiresIn)
	return nil
}

// ConsumeToken implements csrf.Store
func (m *MockCSRFStore) ConsumeToken(ctx context.Context, token string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.tokens[token]
	if !ok || time.Now().After(expiry) {
		return csrf.ErrInvalidToken
	}
	delete(m.tokens, token)
	return nil
}

// CheckHealth implements csrf.Store
func (m *MockCSRFStore) CheckHealth(ctx context.Context) error {
	return m.Err
}
