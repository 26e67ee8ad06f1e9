package background

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeTokenSweeper struct {
	calls atomic.Int32
	rows  int64
	err   error
}

func (f *fakeTokenSweeper) CleanupExpired(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	return f.rows, f.err
}

type fakeLimiterSweeper struct {
	calls   atomic.Int32
	entries int
}

func (f *fakeLimiterSweeper) CleanupExpired(ctx context.Context) int {
	f.calls.Add(1)
	return f.entries
}

func TestCleanupManagerRunsImmediatelyOnStart(t *testing.T) {
	resetSweeper := &fakeTokenSweeper{rows: 3}
	verificationSweeper := &fakeTokenSweeper{rows: 1}
	limiterSweeper := &fakeLimiterSweeper{entries: 2}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cm := NewCleanupManager(resetSweeper, verificationSweeper, limiterSweeper, logger, time.Hour)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return resetSweeper.calls.Load() == 1 &&
			verificationSweeper.calls.Load() == 1 &&
			limiterSweeper.calls.Load() == 1
	}, time.Second, 10*time.Millisecond)

	cm.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}

func TestCleanupManagerStopsOnContextCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cm := NewCleanupManager(&fakeTokenSweeper{}, &fakeTokenSweeper{}, &fakeLimiterSweeper{}, logger, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not honor context cancellation")
	}
}

func TestCleanupManagerSurvivesSweepErrors(t *testing.T) {
	failing := &fakeTokenSweeper{err: assert.AnError}
	limiterSweeper := &fakeLimiterSweeper{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cm := NewCleanupManager(failing, failing, limiterSweeper, logger, time.Hour)

	cm.runCleanup(context.Background())

	// A failing token sweep must not short-circuit the limiter sweep
	assert.Equal(t, int32(2), failing.calls.Load())
	assert.Equal(t, int32(1), limiterSweeper.calls.Load())
}
