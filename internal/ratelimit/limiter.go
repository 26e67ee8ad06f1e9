package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Limiter is the handle authentication services consult before and after
// every credential check. It is constructed once at process start and
// injected, so tests get a fresh isolated instance instead of sharing
// hidden globals.
//
// The limiter never fails a request on store trouble: infrastructure
// errors are logged and the attempt is allowed (fail open), while an
// actual rate-limit verdict always denies (fail closed).
type Limiter struct {
	store     Store
	retention time.Duration
	logger    *slog.Logger
}

// NewLimiter creates a limiter over the given store.
func NewLimiter(store Store, logger *slog.Logger) *Limiter {
	return &Limiter{
		store:     store,
		retention: DefaultRetention,
		logger:    logger,
	}
}

// Check reports whether the identifier may attempt the operation now.
func (l *Limiter) Check(ctx context.Context, identifier string, p Policy) Result {
	result, err := l.store.Check(ctx, identifier, p)
	if err != nil {
		l.logger.Error("rate limit check failed, allowing request", slog.Any("error", err))
		return Result{Allowed: true, RemainingAttempts: p.MaxAttempts, ResetTime: time.Now().Add(p.Window)}
	}
	return result
}

// RecordAttempt folds an attempt outcome into the identifier's counters
// and returns the updated allowance view.
func (l *Limiter) RecordAttempt(ctx context.Context, identifier string, p Policy, success bool) Result {
	result, err := l.store.RecordAttempt(ctx, identifier, p, success)
	if err != nil {
		l.logger.Error("rate limit record failed, allowing request", slog.Any("error", err))
		return Result{Allowed: true, RemainingAttempts: p.MaxAttempts, ResetTime: time.Now().Add(p.Window)}
	}

	if !result.Allowed {
		l.logger.Warn("client locked out",
			slog.String("identifier", identifier),
			slog.Int("retry_after", result.RetryAfter))
	}
	return result
}

// Reset clears all counters for an identifier (support tooling).
func (l *Limiter) Reset(ctx context.Context, identifier string) {
	if err := l.store.Reset(ctx, identifier); err != nil {
		l.logger.Error("rate limit reset failed", slog.Any("error", err))
	}
}

// CleanupExpired sweeps entries older than the retention ceiling and
// returns how many were removed.
func (l *Limiter) CleanupExpired(ctx context.Context) int {
	removed, err := l.store.CleanupExpired(ctx, l.retention)
	if err != nil {
		l.logger.Error("rate limit cleanup failed", slog.Any("error", err))
		return 0
	}
	return removed
}
