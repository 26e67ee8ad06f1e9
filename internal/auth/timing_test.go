package auth

import (
	"testing"
	"time"
)

func TestTimingDelayOnFailure(t *testing.T) {
	td := NewTimingDelay(TimingConfig{BaseDelay: 30 * time.Millisecond})

	start := time.Now()
	td.Wait(start, false)

	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 30ms", elapsed)
	}
}

func TestTimingDelaySkippedOnSuccess(t *testing.T) {
	td := NewTimingDelay(TimingConfig{BaseDelay: 200 * time.Millisecond})

	start := time.Now()
	td.Wait(start, true)

	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("success should not delay, took %v", elapsed)
	}
}

func TestTimingDelayCountsElapsedWork(t *testing.T) {
	td := NewTimingDelay(TimingConfig{BaseDelay: 40 * time.Millisecond})

	// Work that already took longer than the target adds no extra sleep
	start := time.Now().Add(-100 * time.Millisecond)

	before := time.Now()
	td.Wait(start, false)

	if elapsed := time.Since(before); elapsed > 20*time.Millisecond {
		t.Errorf("no additional delay expected, slept %v", elapsed)
	}
}
