package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store holds rate-limit state. Check and RecordAttempt must be atomic
// per identifier; implementations guard the read-modify-write sequence.
// Swapping MemoryStore for RedisStore leaves callers unaffected.
type Store interface {
	Check(ctx context.Context, identifier string, p Policy) (Result, error)
	RecordAttempt(ctx context.Context, identifier string, p Policy, success bool) (Result, error)
	Reset(ctx context.Context, identifier string) error
	CleanupExpired(ctx context.Context, retention time.Duration) (int, error)
}

// MemoryStore is the default process-local store: a mutex-guarded map.
// Operations are O(1) and sub-microsecond, so a single lock is enough.
// State is lost on restart, which is an accepted trade-off.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry

	// now is swappable in tests
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// isStale reports whether an entry should be treated as if it never
// existed: its lockout has lapsed, or it is not blocked and its counting
// window has expired.
func isStale(e *Entry, now time.Time, p Policy) bool {
	if !e.BlockedUntil.IsZero() {
		return !now.Before(e.BlockedUntil)
	}
	return now.Sub(e.WindowStart) > p.Window
}

// Check reports whether the identifier is currently allowed to attempt.
// It never mutates state: expired windows are merely recognized here and
// rewritten on the next RecordAttempt.
func (s *MemoryStore) Check(_ context.Context, identifier string, p Policy) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	e, ok := s.entries[identifier]
	if !ok || isStale(e, now, p) {
		return Result{
			Allowed:           true,
			RemainingAttempts: p.MaxAttempts,
			ResetTime:         now.Add(p.Window),
		}, nil
	}

	if !e.BlockedUntil.IsZero() {
		return Result{
			Allowed:    false,
			RetryAfter: retryAfterSeconds(e.BlockedUntil.Sub(now)),
			ResetTime:  e.BlockedUntil,
		}, nil
	}

	remaining := p.MaxAttempts - e.Attempts
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:           e.Attempts < p.MaxAttempts,
		RemainingAttempts: remaining,
		ResetTime:         e.WindowStart.Add(p.Window),
	}, nil
}

// RecordAttempt folds an attempt outcome into the entry. A single
// success forgives all prior failures; a failure that crosses
// MaxAttempts starts the lockout episode. Failures recorded during an
// active lockout never push BlockedUntil further out.
func (s *MemoryStore) RecordAttempt(_ context.Context, identifier string, p Policy, success bool) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if success {
		delete(s.entries, identifier)
		return Result{
			Allowed:           true,
			RemainingAttempts: p.MaxAttempts,
			ResetTime:         now.Add(p.Window),
		}, nil
	}

	e, ok := s.entries[identifier]
	if !ok || isStale(e, now, p) {
		e = &Entry{WindowStart: now}
		s.entries[identifier] = e
	}

	e.Attempts++

	if e.Attempts >= p.MaxAttempts {
		if e.BlockedUntil.IsZero() {
			e.BlockedUntil = now.Add(p.BlockDuration)
		}
		return Result{
			Allowed:    false,
			RetryAfter: retryAfterSeconds(e.BlockedUntil.Sub(now)),
			ResetTime:  e.BlockedUntil,
		}, nil
	}

	return Result{
		Allowed:           true,
		RemainingAttempts: p.MaxAttempts - e.Attempts,
		ResetTime:         e.WindowStart.Add(p.Window),
	}, nil
}

// Reset removes all state for an identifier.
func (s *MemoryStore) Reset(_ context.Context, identifier string) error {
	s.mu.Lock()
	delete(s.entries, identifier)
	s.mu.Unlock()
	return nil
}

// CleanupExpired purges entries whose window started before the
// retention ceiling. Housekeeping only: lazy expiry already makes such
// entries inert.
func (s *MemoryStore) CleanupExpired(_ context.Context, retention time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for identifier, e := range s.entries {
		if now.Sub(e.WindowStart) > retention {
			delete(s.entries, identifier)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of tracked identifiers.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
