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

func testLimiter(t *testing.T, maxAttempts int) (*LoginLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLoginLimiter(client, maxAttempts, time.Minute), mr
}

func TestEnforceAllowsFreshIdentifier(t *testing.T) {
	limiter, _ := testLimiter(t, 3)
	assert.NoError(t, limiter.Enforce(context.Background(), "alice@example.com", "10.0.0.1"))
}

func TestEnforceBlocksAfterMaxFailures(t *testing.T) {
	limiter, _ := testLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Enforce(ctx, "alice@example.com", "10.0.0.1"))
		require.NoError(t, limiter.RegisterFailure(ctx, "alice@example.com", "10.0.0.1"))
	}

	err := limiter.Enforce(ctx, "alice@example.com", "10.0.0.1")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestIPCounterBlocksAcrossIdentifiers(t *testing.T) {
	limiter, _ := testLimiter(t, 2)
	ctx := context.Background()

	require.NoError(t, limiter.RegisterFailure(ctx, "alice@example.com", "10.0.0.9"))
	require.NoError(t, limiter.RegisterFailure(ctx, "bob@example.com", "10.0.0.9"))

	// fresh identifier, same address
	err := limiter.Enforce(ctx, "carol@example.com", "10.0.0.9")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestResetClearsIdentifierCounter(t *testing.T) {
	limiter, _ := testLimiter(t, 1)
	ctx := context.Background()

	require.NoError(t, limiter.RegisterFailure(ctx, "alice@example.com", ""))
	require.ErrorIs(t, limiter.Enforce(ctx, "alice@example.com", ""), ErrRateLimited)

	require.NoError(t, limiter.Reset(ctx, "alice@example.com"))
	assert.NoError(t, limiter.Enforce(ctx, "alice@example.com", ""))
}

func TestWindowExpiry(t *testing.T) {
	limiter, mr := testLimiter(t, 1)
	ctx := context.Background()

	require.NoError(t, limiter.RegisterFailure(ctx, "alice@example.com", ""))
	require.ErrorIs(t, limiter.Enforce(ctx, "alice@example.com", ""), ErrRateLimited)

	mr.FastForward(2 * time.Minute)
	assert.NoError(t, limiter.Enforce(ctx, "alice@example.com", ""))
}

func TestRedisOutageSurfacesAsUnavailable(t *testing.T) {
	limiter, mr := testLimiter(t, 3)
	mr.Close()

	err := limiter.Enforce(context.Background(), "alice@example.com", "10.0.0.1")
	assert.ErrorIs(t, err, ErrRedisUnavailable)
}
