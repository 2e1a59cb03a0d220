package cache

import (
	"context"
	"testing"
	"time"

	"github.com/firesafe/ledger/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisIdempotencyStore(t *testing.T) {
	client := testutil.NewRedisClient(t)
	store := NewRedisIdempotencyStore(client, "test:")
	ctx := context.Background()

	marked, err := store.MarkProcessed(ctx, "ledger:settle:k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = store.MarkProcessed(ctx, "ledger:settle:k1", time.Minute)
	require.NoError(t, err)
	assert.False(t, marked)

	held, err := store.IsProcessed(ctx, "ledger:settle:k1")
	require.NoError(t, err)
	assert.True(t, held)

	ttl, err := client.TTL(ctx, "test:ledger:settle:k1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Release(ctx, "ledger:settle:k1"))
	held, err = store.IsProcessed(ctx, "ledger:settle:k1")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestNewIdempotencyStore_FallsBackToMemory(t *testing.T) {
	store := NewIdempotencyStore(nil, nil)
	defer store.Close()
	_, ok := store.(*InMemoryIdempotencyStore)
	assert.True(t, ok)
}

func TestRedisIdempotencyStore_DefaultPrefix(t *testing.T) {
	store := NewRedisIdempotencyStore(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "")
	assert.Equal(t, defaultKeyPrefix, store.keyPrefix)
}
