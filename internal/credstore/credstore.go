// Package credstore provides the key-value credential store capability used
// for session persistence. The production implementation is Redis; tests use
// the in-memory fake.
package credstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/cloudykangaroo/orchestrate/internal/logging"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("credstore: key not found")

// Store is the key-value capability the session layer depends on.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// RedisStore implements Store on a Redis connection.
type RedisStore struct {
	client *redis.Client
	log    *logging.Logger
}

// NewRedisStore connects to Redis at addr.
func NewRedisStore(addr string, db int, log *logging.Logger) *RedisStore {
	if log == nil {
		log = logging.NewDefault("credstore")
	}
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	return &RedisStore{client: client, log: log}
}

// Set stores value under key. A zero ttl stores without expiry.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("credstore set %q: %w", key, err)
	}
	return nil
}

// Get retrieves the value stored under key, or ErrMiss.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("credstore get %q: %w", key, err)
	}
	return val, nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("credstore delete %q: %w", key, err)
	}
	return nil
}

// Ping verifies connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// SelfTest writes a random value and reads it back, verifying the store
// returns what was written. Run once at startup; a failure is logged by the
// caller and is not fatal.
func SelfTest(ctx context.Context, store Store) error {
	token := uuid.NewString()
	key := "test_" + token
	if err := store.Set(ctx, key, token, time.Minute); err != nil {
		return fmt.Errorf("self-test write: %w", err)
	}
	got, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("self-test read: %w", err)
	}
	if got != token {
		return fmt.Errorf("self-test mismatch: wrote %q, read %q", token, got)
	}
	return nil
}
