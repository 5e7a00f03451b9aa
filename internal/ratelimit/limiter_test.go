package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestLimiterBlocksAfterMaxAttempts(t *testing.T) {
	_, client := newTestRedis(t)
	l, err := New(client, Config{MaxAttempts: 3, Window: time.Minute})
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Check(ctx, "email:a@example.com"))
		require.NoError(t, l.Fail(ctx, "email:a@example.com"))
	}
	assert.ErrorIs(t, l.Check(ctx, "email:a@example.com"), ErrRateLimited)
	assert.NoError(t, l.Check(ctx, "email:b@example.com"))

	n, err := l.Attempts(ctx, "email:a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestLimiterWindowExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	l, err := New(client, Config{MaxAttempts: 1, Window: time.Minute})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, l.Fail(ctx, "k"))
	require.ErrorIs(t, l.Check(ctx, "k"), ErrRateLimited)

	mr.FastForward(time.Minute + time.Second)
	assert.NoError(t, l.Check(ctx, "k"))
}

func TestLimiterReset(t *testing.T) {
	_, client := newTestRedis(t)
	l, err := New(client, Config{MaxAttempts: 1, Window: time.Minute})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, l.Fail(ctx, "k"))
	require.NoError(t, l.Reset(ctx, "k"))
	assert.NoError(t, l.Check(ctx, "k"))
}

func TestLimiterRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	l, err := New(client, Config{MaxAttempts: 1, Window: time.Minute})
	require.NoError(t, err)

	mr.Close()
	assert.ErrorIs(t, l.Fail(context.Background(), "k"), ErrUnavailable)
}

func TestNewValidatesConfig(t *testing.T) {
	_, client := newTestRedis(t)

	_, err := New(nil, Config{MaxAttempts: 1, Window: time.Minute})
	assert.Error(t, err)
	_, err = New(client, Config{MaxAttempts: 0, Window: time.Minute})
	assert.Error(t, err)
	_, err = New(client, Config{MaxAttempts: 1})
	assert.Error(t, err)
}
