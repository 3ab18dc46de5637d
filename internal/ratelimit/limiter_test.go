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

func newTestLimiter(t *testing.T, max int) (*LoginLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, Config{MaxAttempts: max, Cooldown: 15 * time.Minute}), mr
}

func TestLoginLimiter_BlocksAfterMaxFailures(t *testing.T) {
	l, _ := newTestLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.CheckLogin(ctx, "alice", "10.0.0.1"))
		require.NoError(t, l.IncrementLogin(ctx, "alice", "10.0.0.1"))
	}
	assert.ErrorIs(t, l.CheckLogin(ctx, "alice", "10.0.0.1"), ErrRateLimited)
	assert.ErrorIs(t, l.CheckLogin(ctx, "ALICE", "10.0.0.9"), ErrRateLimited, "identifier is case-insensitive")
	assert.ErrorIs(t, l.CheckLogin(ctx, "bob", "10.0.0.1"), ErrRateLimited, "IP budget is shared")
	assert.NoError(t, l.CheckLogin(ctx, "bob", "10.0.0.2"))

	n, err := l.Attempts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestLoginLimiter_WindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, 1)
	ctx := context.Background()

	require.NoError(t, l.IncrementLogin(ctx, "alice", ""))
	assert.ErrorIs(t, l.CheckLogin(ctx, "alice", ""), ErrRateLimited)
	assert.Equal(t, 15*time.Minute, mr.TTL(keyPrefix+"id:alice"))

	mr.FastForward(16 * time.Minute)
	assert.NoError(t, l.CheckLogin(ctx, "alice", ""))
}

func TestLoginLimiter_ResetClearsIdentifierOnly(t *testing.T) {
	l, _ := newTestLimiter(t, 2)
	ctx := context.Background()

	require.NoError(t, l.IncrementLogin(ctx, "alice", "10.0.0.1"))
	require.NoError(t, l.IncrementLogin(ctx, "alice", "10.0.0.1"))
	require.NoError(t, l.ResetLogin(ctx, "alice"))

	n, err := l.Attempts(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.ErrorIs(t, l.CheckLogin(ctx, "alice", "10.0.0.1"), ErrRateLimited, "ip counter survives")
	assert.NoError(t, l.CheckLogin(ctx, "alice", "10.0.0.2"))
}

func TestLoginLimiter_RedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, 2)
	mr.Close()

	err := l.CheckLogin(context.Background(), "alice", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimited)
	assert.Error(t, l.IncrementLogin(context.Background(), "alice", ""))
}
