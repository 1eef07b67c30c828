package csrf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenPrefix = "csrf:"

// RedisStore implements the Store interface using Redis
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed CSRF token store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// SaveToken stores a CSRF token; Redis expires it
func (s *RedisStore) SaveToken(ctx context.Context, token string, expiresIn time.Duration) error {
	if token == "" {
		return ErrInvalidToken
	}
	if err := s.client.Set(ctx, tokenPrefix+token, "1", expiresIn).Err(); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	return nil
}

// ConsumeToken deletes the token atomically so it validates at most once.
// An expired token is indistinguishable from one never issued.
func (s *RedisStore) ConsumeToken(ctx context.Context, token string) error {
	err := s.client.GetDel(ctx, tokenPrefix+token).Err()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("consuming token: %w", err)
	}
	return nil
}

// CheckHealth verifies Redis connectivity
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
