package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// failingStore simulates an unreachable backing store.
type failingStore struct{}

func (failingStore) Check(context.Context, string, Policy) (Result, error) {
	return Result{}, errors.New("store unavailable")
}

func (failingStore) RecordAttempt(context.Context, string, Policy, bool) (Result, error) {
	return Result{}, errors.New("store unavailable")
}

func (failingStore) Reset(context.Context, string) error {
	return errors.New("store unavailable")
}

func (failingStore) CleanupExpired(context.Context, time.Duration) (int, error) {
	return 0, errors.New("store unavailable")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestLimiterDeniesAfterThreshold(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), discardLogger())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		limiter.RecordAttempt(ctx, "client-a", loginPolicy, false)
	}

	result := limiter.Check(ctx, "client-a", loginPolicy)
	assert.False(t, result.Allowed)
	assert.Positive(t, result.RetryAfter)
}

// Infrastructure errors fail open: a broken store must not lock
// legitimate users out. Only a real verdict denies.
func TestLimiterFailsOpenOnStoreError(t *testing.T) {
	limiter := NewLimiter(failingStore{}, discardLogger())
	ctx := context.Background()

	checked := limiter.Check(ctx, "client-a", loginPolicy)
	assert.True(t, checked.Allowed)
	assert.Equal(t, loginPolicy.MaxAttempts, checked.RemainingAttempts)

	recorded := limiter.RecordAttempt(ctx, "client-a", loginPolicy, false)
	assert.True(t, recorded.Allowed)
}

func TestLimiterCleanupReportsRemovals(t *testing.T) {
	store, clock := newTestStore()
	limiter := NewLimiter(store, discardLogger())
	ctx := context.Background()

	limiter.RecordAttempt(ctx, "old-client", loginPolicy, false)
	clock.Advance(DefaultRetention + time.Minute)
	limiter.RecordAttempt(ctx, "new-client", loginPolicy, false)

	assert.Equal(t, 1, limiter.CleanupExpired(ctx))
	assert.Equal(t, 1, store.Len())
}
