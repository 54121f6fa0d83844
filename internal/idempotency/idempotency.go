// Package idempotency remembers which order an Idempotency-Key produced so a
// retried create request returns the original order instead of placing a
// second one.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyOrderCreate maps idem:order:create:{caller}:{key} to an order ID.
const keyOrderCreate = "idem:order:create:%s:%s"

// Store records the order created for a caller's idempotency key.
type Store interface {
	Lookup(ctx context.Context, callerID, key string) (orderID string, found bool, err error)
	Remember(ctx context.Context, callerID, key, orderID string) error
}

// NewRedisClient creates a go-redis client and checks the server answers.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// RedisStore is a Store backed by Redis keys with a TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Key returns the Redis key for a caller's idempotency key.
func Key(callerID, key string) string {
	return fmt.Sprintf(keyOrderCreate, callerID, key)
}

func (s *RedisStore) Lookup(ctx context.Context, callerID, key string) (string, bool, error) {
	orderID, err := s.rdb.Get(ctx, Key(callerID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return orderID, true, nil
}

func (s *RedisStore) Remember(ctx context.Context, callerID, key, orderID string) error {
	if err := s.rdb.Set(ctx, Key(callerID, key), orderID, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotency key: %w", err)
	}
	return nil
}
