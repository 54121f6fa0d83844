package idempotency_test

import (
	"context"
	"testing"
	"time"

	"tokoorders/internal/idempotency"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "idem:order:create:user-1:abc", idempotency.Key("user-1", "abc"))
	assert.NotEqual(t, idempotency.Key("user-1", "abc"), idempotency.Key("user-2", "abc"))
}

func TestRedisStore_UnreachableServer(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()
	store := idempotency.NewRedisStore(rdb, time.Minute)

	_, found, err := store.Lookup(context.Background(), "user-1", "abc")
	assert.Error(t, err)
	assert.False(t, found)

	assert.Error(t, store.Remember(context.Background(), "user-1", "abc", "order-1"))
}

func TestNewRedisClient_UnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := idempotency.NewRedisClient(ctx, "127.0.0.1:1")
	assert.Error(t, err)
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := idempotency.NewRedisClient(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisStore_LookupMiss(t *testing.T) {
	_, rdb := newMiniRedis(t)
	store := idempotency.NewRedisStore(rdb, time.Minute)

	orderID, found, err := store.Lookup(context.Background(), "user-1", "abc")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, orderID)
}

func TestRedisStore_RememberThenLookup(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newMiniRedis(t)
	store := idempotency.NewRedisStore(rdb, 24*time.Hour)

	require.NoError(t, store.Remember(ctx, "user-1", "abc", "order-1"))

	orderID, found, err := store.Lookup(ctx, "user-1", "abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "order-1", orderID)

	got, err := mr.Get(idempotency.Key("user-1", "abc"))
	require.NoError(t, err)
	assert.Equal(t, "order-1", got)
	assert.Equal(t, 24*time.Hour, mr.TTL(idempotency.Key("user-1", "abc")))

	// Keys are scoped to the caller.
	_, found, err = store.Lookup(ctx, "user-2", "abc")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_KeyExpires(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newMiniRedis(t)
	store := idempotency.NewRedisStore(rdb, time.Minute)

	require.NoError(t, store.Remember(ctx, "user-1", "abc", "order-1"))
	mr.FastForward(time.Minute + time.Second)

	_, found, err := store.Lookup(ctx, "user-1", "abc")
	require.NoError(t, err)
	assert.False(t, found)
}
