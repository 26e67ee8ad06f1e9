// Package ratelimit implements the sliding-window attempt limiter with
// progressive lockout that gates the authentication endpoints. Counters
// are keyed by an opaque client identifier and live in a pluggable store:
// an in-memory map for single-instance deployments or Redis when state
// must be shared across instances.
package ratelimit

import (
	"time"
)

// Entry is the per-identifier mutable record. Attempts only resets to
// zero on a successful attempt or when the window expires lazily; once a
// lockout episode starts, BlockedUntil is set exactly once and is never
// extended by further failures.
type Entry struct {
	Attempts     int
	WindowStart  time.Time
	BlockedUntil time.Time // zero value means no active lockout
}

// Policy is the immutable limit configuration for one protected
// operation. Loaded at startup, never mutated.
type Policy struct {
	MaxAttempts   int
	Window        time.Duration
	BlockDuration time.Duration
}

// Result is the allowance view returned to callers. RetryAfter is whole
// seconds (rounded up) until a blocked identifier may try again; it is
// zero unless the identifier is in lockout.
type Result struct {
	Allowed           bool      `json:"allowed"`
	RemainingAttempts int       `json:"remaining_attempts"`
	RetryAfter        int       `json:"retry_after,omitempty"`
	ResetTime         time.Time `json:"reset_time"`
}

// DefaultRetention bounds how long inert entries survive before the
// periodic sweep removes them. Lazy expiry already makes stale entries
// behaviorally invisible; the sweep only caps memory.
const DefaultRetention = 24 * time.Hour

// retryAfterSeconds rounds a remaining lockout duration up to whole
// seconds so clients never retry early.
func retryAfterSeconds(remaining time.Duration) int {
	if remaining <= 0 {
		return 0
	}
	secs := int(remaining / time.Second)
	if remaining%time.Second != 0 {
		secs++
	}
	return secs
}
