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

func newRedisTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client), mr
}

func TestRedisStoreFreshIdentifierAllowed(t *testing.T) {
	store, _ := newRedisTestStore(t)
	ctx := context.Background()

	result, err := store.Check(ctx, "client-a", loginPolicy)

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, loginPolicy.MaxAttempts, result.RemainingAttempts)
}

func TestRedisStoreCountsAndLocksOut(t *testing.T) {
	store, _ := newRedisTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		result, err := store.RecordAttempt(ctx, "client-a", loginPolicy, false)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, loginPolicy.MaxAttempts-(i+1), result.RemainingAttempts)
	}

	result, err := store.RecordAttempt(ctx, "client-a", loginPolicy, false)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Positive(t, result.RetryAfter)

	checked, err := store.Check(ctx, "client-a", loginPolicy)
	require.NoError(t, err)
	assert.False(t, checked.Allowed)
}

func TestRedisStoreLockoutNotExtended(t *testing.T) {
	store, mr := newRedisTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.RecordAttempt(ctx, "client-a", loginPolicy, false)
		require.NoError(t, err)
	}

	mr.FastForward(10 * time.Minute)

	// Failures during an active lockout must not restart the block TTL
	result, err := store.RecordAttempt(ctx, "client-a", loginPolicy, false)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.LessOrEqual(t, result.RetryAfter, int((20 * time.Minute).Seconds()))
}

func TestRedisStoreSuccessResets(t *testing.T) {
	store, _ := newRedisTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := store.RecordAttempt(ctx, "client-a", loginPolicy, false)
		require.NoError(t, err)
	}

	result, err := store.RecordAttempt(ctx, "client-a", loginPolicy, true)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, loginPolicy.MaxAttempts, result.RemainingAttempts)

	checked, err := store.Check(ctx, "client-a", loginPolicy)
	require.NoError(t, err)
	assert.Equal(t, loginPolicy.MaxAttempts, checked.RemainingAttempts)
}

func TestRedisStoreWindowExpiry(t *testing.T) {
	store, mr := newRedisTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := store.RecordAttempt(ctx, "client-a", loginPolicy, false)
		require.NoError(t, err)
	}

	mr.FastForward(loginPolicy.Window + time.Second)

	result, err := store.Check(ctx, "client-a", loginPolicy)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, loginPolicy.MaxAttempts, result.RemainingAttempts)
}

func TestRedisStoreLockoutExpiry(t *testing.T) {
	store, mr := newRedisTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.RecordAttempt(ctx, "client-a", loginPolicy, false)
		require.NoError(t, err)
	}

	mr.FastForward(loginPolicy.BlockDuration + time.Second)

	result, err := store.Check(ctx, "client-a", loginPolicy)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRedisStoreReset(t *testing.T) {
	store, _ := newRedisTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.RecordAttempt(ctx, "client-a", loginPolicy, false)
		require.NoError(t, err)
	}

	require.NoError(t, store.Reset(ctx, "client-a"))

	result, err := store.Check(ctx, "client-a", loginPolicy)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}
