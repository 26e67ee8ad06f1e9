package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the limiter with Redis so multiple API instances
// share one set of counters. The attempt counter carries the window as
// its TTL; the block key carries the lockout as its TTL and is written
// with NX so re-entrant failures cannot extend it. TTL-based expiry
// replaces the periodic sweep.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func attemptsKey(identifier string) string {
	return "ratelimit:att:" + identifier
}

func blockKey(identifier string) string {
	return "ratelimit:block:" + identifier
}

func (s *RedisStore) Check(ctx context.Context, identifier string, p Policy) (Result, error) {
	now := time.Now()

	blockTTL, err := s.client.PTTL(ctx, blockKey(identifier)).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit block lookup: %w", err)
	}
	if blockTTL > 0 {
		return Result{
			Allowed:    false,
			RetryAfter: retryAfterSeconds(blockTTL),
			ResetTime:  now.Add(blockTTL),
		}, nil
	}

	attempts, err := s.client.Get(ctx, attemptsKey(identifier)).Int()
	if err != nil {
		if err == redis.Nil {
			return Result{
				Allowed:           true,
				RemainingAttempts: p.MaxAttempts,
				ResetTime:         now.Add(p.Window),
			}, nil
		}
		return Result{}, fmt.Errorf("rate limit counter lookup: %w", err)
	}

	windowTTL, err := s.client.PTTL(ctx, attemptsKey(identifier)).Result()
	if err != nil || windowTTL < 0 {
		windowTTL = p.Window
	}

	remaining := p.MaxAttempts - attempts
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:           attempts < p.MaxAttempts,
		RemainingAttempts: remaining,
		ResetTime:         now.Add(windowTTL),
	}, nil
}

func (s *RedisStore) RecordAttempt(ctx context.Context, identifier string, p Policy, success bool) (Result, error) {
	now := time.Now()

	if success {
		if err := s.client.Del(ctx, attemptsKey(identifier), blockKey(identifier)).Err(); err != nil {
			return Result{}, fmt.Errorf("rate limit reset on success: %w", err)
		}
		return Result{
			Allowed:           true,
			RemainingAttempts: p.MaxAttempts,
			ResetTime:         now.Add(p.Window),
		}, nil
	}

	// An active lockout outlives the counting window, so it has to be
	// consulted before the counter
	blockTTL, err := s.client.PTTL(ctx, blockKey(identifier)).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit block lookup: %w", err)
	}
	if blockTTL > 0 {
		return Result{
			Allowed:    false,
			RetryAfter: retryAfterSeconds(blockTTL),
			ResetTime:  now.Add(blockTTL),
		}, nil
	}

	attempts, err := s.client.Incr(ctx, attemptsKey(identifier)).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit increment: %w", err)
	}
	if attempts == 1 {
		if err := s.client.Expire(ctx, attemptsKey(identifier), p.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("rate limit window expiry: %w", err)
		}
	}

	if int(attempts) >= p.MaxAttempts {
		// NX: only the failure that first crosses the threshold starts
		// the lockout clock
		if err := s.client.SetNX(ctx, blockKey(identifier), 1, p.BlockDuration).Err(); err != nil {
			return Result{}, fmt.Errorf("rate limit lockout: %w", err)
		}
		blockTTL, err := s.client.PTTL(ctx, blockKey(identifier)).Result()
		if err != nil || blockTTL < 0 {
			blockTTL = p.BlockDuration
		}
		return Result{
			Allowed:    false,
			RetryAfter: retryAfterSeconds(blockTTL),
			ResetTime:  now.Add(blockTTL),
		}, nil
	}

	return Result{
		Allowed:           true,
		RemainingAttempts: p.MaxAttempts - int(attempts),
		ResetTime:         now.Add(p.Window),
	}, nil
}

func (s *RedisStore) Reset(ctx context.Context, identifier string) error {
	if err := s.client.Del(ctx, attemptsKey(identifier), blockKey(identifier)).Err(); err != nil {
		return fmt.Errorf("rate limit reset: %w", err)
	}
	return nil
}

// CleanupExpired is a no-op for Redis: key TTLs already bound memory.
func (s *RedisStore) CleanupExpired(_ context.Context, _ time.Duration) (int, error) {
	return 0, nil
}
