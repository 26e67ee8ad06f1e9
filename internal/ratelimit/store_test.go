package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var loginPolicy = Policy{
	MaxAttempts:   5,
	Window:        15 * time.Minute,
	BlockDuration: 30 * time.Minute,
}

// fakeClock lets tests drive the store's notion of time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore() (*MemoryStore, *fakeClock) {
	store := NewMemoryStore()
	clock := newFakeClock()
	store.now = clock.Now
	return store, clock
}

func TestMemoryStoreFreshIdentifierAllowed(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	result, err := store.Check(ctx, "client-a", loginPolicy)

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, loginPolicy.MaxAttempts, result.RemainingAttempts)
	assert.Zero(t, result.RetryAfter)
}

func TestMemoryStoreCountsFailures(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		result, err := store.RecordAttempt(ctx, "client-a", loginPolicy, false)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, loginPolicy.MaxAttempts-(i+1), result.RemainingAttempts)
	}

	result, err := store.Check(ctx, "client-a", loginPolicy)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, result.RemainingAttempts)
}

func TestMemoryStoreLockoutAtThreshold(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := store.RecordAttempt(ctx, "client-a", loginPolicy, false)
		require.NoError(t, err)
	}

	// The 5th failure crosses the threshold and starts the lockout
	result, err := store.RecordAttempt(ctx, "client-a", loginPolicy, false)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, int(loginPolicy.BlockDuration.Seconds()), result.RetryAfter)
	assert.Equal(t, clock.Now().Add(loginPolicy.BlockDuration), result.ResetTime)

	checked, err := store.Check(ctx, "client-a", loginPolicy)
	require.NoError(t, err)
	assert.False(t, checked.Allowed)
	assert.Positive(t, checked.RetryAfter)
}

func TestMemoryStoreLockoutNotExtendedByFurtherFailures(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.RecordAttempt(ctx, "client-a", loginPolicy, false)
		require.NoError(t, err)
	}

	first, err := store.Check(ctx, "client-a", loginPolicy)
	require.NoError(t, err)
	blockedUntil := first.ResetTime

	// Hammering during the lockout must not push BlockedUntil out
	clock.Advance(5 * time.Minute)
	for i := 0; i < 3; i++ {
		result, err := store.RecordAttempt(ctx, "client-a", loginPolicy, false)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, blockedUntil, result.ResetTime)
	}
}

func TestMemoryStoreRetryAfterCountsDown(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.RecordAttempt(ctx, "client-a", loginPolicy, false)
		require.NoError(t, err)
	}

	clock.Advance(10 * time.Minute)

	result, err := store.Check(ctx, "client-a", loginPolicy)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, int((20 * time.Minute).Seconds()), result.RetryAfter)
}

func TestMemoryStoreSuccessForgivesAllFailures(t *testing.T) {
	store, _ := newTestStore()
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

func TestMemoryStoreWindowExpiresLazily(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := store.RecordAttempt(ctx, "client-a", loginPolicy, false)
		require.NoError(t, err)
	}

	clock.Advance(loginPolicy.Window + time.Second)

	// Expired window is indistinguishable from a fresh identifier
	result, err := store.Check(ctx, "client-a", loginPolicy)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, loginPolicy.MaxAttempts, result.RemainingAttempts)

	// And the next failure starts a brand new window
	recorded, err := store.RecordAttempt(ctx, "client-a", loginPolicy, false)
	require.NoError(t, err)
	assert.Equal(t, loginPolicy.MaxAttempts-1, recorded.RemainingAttempts)
}

func TestMemoryStoreExpiredLockoutTreatedAsFresh(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.RecordAttempt(ctx, "client-a", loginPolicy, false)
		require.NoError(t, err)
	}

	clock.Advance(loginPolicy.BlockDuration + time.Second)

	result, err := store.Check(ctx, "client-a", loginPolicy)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, loginPolicy.MaxAttempts, result.RemainingAttempts)
}

func TestMemoryStoreIdentifiersIndependent(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.RecordAttempt(ctx, "client-a", loginPolicy, false)
		require.NoError(t, err)
	}

	result, err := store.Check(ctx, "client-b", loginPolicy)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, loginPolicy.MaxAttempts, result.RemainingAttempts)
}

func TestMemoryStoreReset(t *testing.T) {
	store, _ := newTestStore()
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

func TestMemoryStoreCleanupExpired(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	// Three entries aged 25h, 1m, and 1s against a 24h ceiling
	_, err := store.RecordAttempt(ctx, "ancient", loginPolicy, false)
	require.NoError(t, err)

	clock.Advance(25*time.Hour - time.Minute)
	_, err = store.RecordAttempt(ctx, "recent", loginPolicy, false)
	require.NoError(t, err)

	clock.Advance(time.Minute - time.Second)
	_, err = store.RecordAttempt(ctx, "newest", loginPolicy, false)
	require.NoError(t, err)

	clock.Advance(time.Second)

	removed, err := store.CleanupExpired(ctx, DefaultRetention)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, store.Len())
}

func TestMemoryStoreConcurrentRecords(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	policy := Policy{MaxAttempts: 1000, Window: time.Hour, BlockDuration: time.Hour}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.RecordAttempt(ctx, "shared", policy, false)
		}()
	}
	wg.Wait()

	result, err := store.Check(ctx, "shared", policy)
	require.NoError(t, err)
	assert.Equal(t, policy.MaxAttempts-100, result.RemainingAttempts)
}
