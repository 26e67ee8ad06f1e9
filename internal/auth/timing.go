package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig controls the artificial delay applied to failed
// authentication attempts so "user not found" and "wrong password" take
// indistinguishable time.
type TimingConfig struct {
	BaseDelay   time.Duration
	RandomDelay time.Duration // upper bound of the jitter added to BaseDelay
}

// TimingDelay equalizes authentication response times.
type TimingDelay struct {
	config TimingConfig
}

func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config}
}

// Wait sleeps out the remainder of the target delay, measured from
// startTime. Successful attempts return immediately.
func (td *TimingDelay) Wait(startTime time.Time, success bool) {
	if success {
		return
	}

	target := td.config.BaseDelay + td.jitter()
	if elapsed := time.Since(startTime); elapsed < target {
		time.Sleep(target - elapsed)
	}
}

// jitter draws from crypto/rand; math/rand would be predictable enough
// to subtract back out.
func (td *TimingDelay) jitter() time.Duration {
	if td.config.RandomDelay <= 0 {
		return 0
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	n := binary.BigEndian.Uint64(buf[:])
	return time.Duration(n % uint64(td.config.RandomDelay))
}
