package background

import (
	"context"
	"log/slog"
	"time"
)

// TokenSweeper removes expired token rows, reporting how many went.
type TokenSweeper interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// LimiterSweeper purges rate-limit entries past the retention ceiling.
type LimiterSweeper interface {
	CleanupExpired(ctx context.Context) int
}

// CleanupManager periodically sweeps expired reset tokens, verification
// tokens and stale rate-limit entries. The sweeps are housekeeping:
// expiry is always enforced at read time, so a missed run only delays
// reclamation, never correctness.
type CleanupManager struct {
	resetTokens        TokenSweeper
	verificationTokens TokenSweeper
	limiter            LimiterSweeper
	logger             *slog.Logger
	interval           time.Duration
	stopCh             chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	resetTokens TokenSweeper,
	verificationTokens TokenSweeper,
	limiter LimiterSweeper,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		resetTokens:        resetTokens,
		verificationTokens: verificationTokens,
		limiter:            limiter,
		logger:             logger,
		interval:           interval,
		stopCh:             make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resetRows, err := cm.resetTokens.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup reset tokens", slog.Any("error", err))
	}

	verificationRows, err := cm.verificationTokens.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup verification tokens", slog.Any("error", err))
	}

	limiterEntries := cm.limiter.CleanupExpired(cleanupCtx)

	if resetRows > 0 || verificationRows > 0 || limiterEntries > 0 {
		cm.logger.Info("cleanup pass completed",
			slog.Int64("reset_tokens", resetRows),
			slog.Int64("verification_tokens", verificationRows),
			slog.Int("limiter_entries", limiterEntries))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
