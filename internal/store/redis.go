package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wrale/oauth2-device-grant/internal/codes"
)

const (
	devicePrefix = "device:"
	userPrefix   = "user:"

	// maxDecideAttempts bounds optimistic retries when a decision races
	// another write to the same record
	maxDecideAttempts = 5
)

// RedisStore implements the Store interface using Redis
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore creates a new Redis-backed store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// CheckHealth verifies Redis connectivity
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Save stores the record under its device code and indexes it by user code
func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return ErrExpired
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, devicePrefix+rec.DeviceCode, data, ttl)
	pipe.Set(ctx, userPrefix+codes.NormalizeUserCode(rec.UserCode), rec.DeviceCode, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving record: %w", err)
	}
	return nil
}

// GetByDeviceCode retrieves a record by device code
func (s *RedisStore) GetByDeviceCode(ctx context.Context, deviceCode string) (*Record, error) {
	return s.decode(s.client.Get(ctx, devicePrefix+deviceCode).Bytes())
}

func (s *RedisStore) decode(data []byte, err error) (*Record, error) {
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling record: %w", err)
	}
	if rec.Expired(s.now()) {
		return nil, ErrExpired
	}
	return &rec, nil
}

// GetByUserCode retrieves a record through the user code index
func (s *RedisStore) GetByUserCode(ctx context.Context, userCode string) (*Record, error) {
	deviceCode, err := s.client.Get(ctx, userPrefix+codes.NormalizeUserCode(userCode)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting user code reference: %w", err)
	}
	return s.GetByDeviceCode(ctx, deviceCode)
}

// Activate marks the record allowed
func (s *RedisStore) Activate(ctx context.Context, deviceCode, userID string, scope []string) error {
	return s.decide(ctx, deviceCode, func(rec *Record) {
		rec.Status = StatusAllowed
		rec.UserID = userID
		rec.GrantedScope = scope
	})
}

// Deny marks the record denied
func (s *RedisStore) Deny(ctx context.Context, deviceCode, userID string) error {
	return s.decide(ctx, deviceCode, func(rec *Record) {
		rec.Status = StatusDenied
		rec.UserID = userID
	})
}

// decide applies a decision to a pending record, keeping its remaining TTL.
// The record is watched so that only one of several concurrent decisions
// is written; the others see ErrAlreadyDecided.
func (s *RedisStore) decide(ctx context.Context, deviceCode string, apply func(*Record)) error {
	key := devicePrefix + deviceCode

	txf := func(tx *redis.Tx) error {
		rec, err := s.decode(tx.Get(ctx, key).Bytes())
		if err != nil {
			return err
		}
		if rec.Status != StatusPending {
			return ErrAlreadyDecided
		}
		apply(rec)

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return fmt.Errorf("saving decision: %w", err)
		}
		return nil
	}

	for i := 0; i < maxDecideAttempts; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("saving decision: %w", redis.TxFailedErr)
}

// Complete removes the user code index so the code cannot be entered again.
// The device code record stays until expiry for the token endpoint.
func (s *RedisStore) Complete(ctx context.Context, deviceCode string) error {
	rec, err := s.GetByDeviceCode(ctx, deviceCode)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, userPrefix+codes.NormalizeUserCode(rec.UserCode)).Err(); err != nil {
		return fmt.Errorf("removing user code: %w", err)
	}
	return nil
}
