package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redisAddr skips the test unless WMSSYNC_TEST_REDIS_ADDR names a server.
func redisAddr(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("WMSSYNC_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("WMSSYNC_TEST_REDIS_ADDR not set")
	}
	return addr
}

func TestRedisIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	client, err := NewRedisClient(ctx, redisAddr(t), "", 0)
	require.NoError(t, err)
	defer client.Close()

	store := NewRedisIdempotencyStore(client, "wmssync:test:"+uuid.NewString()+":")
	key := "hook-1"

	isNew, err := store.MarkProcessed(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = store.MarkProcessed(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, isNew)

	processed, err := store.IsProcessed(ctx, key)
	require.NoError(t, err)
	assert.True(t, processed)

	require.NoError(t, store.Release(ctx, key))
	processed, err = store.IsProcessed(ctx, key)
	require.NoError(t, err)
	assert.False(t, processed)
}
