package registry

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/tphakala/eas-monitor/internal/conf"
)

const (
	// jitter added on top of the base delay, in percent
	backoffJitterPercentMax = 20
	maxBackoffExponent      = 30
)

// backoffDelay returns the base delay before reconnect attempt n (0 based):
// initial * multiplier^n capped at the maximum.
func backoffDelay(cfg conf.BackoffSettings, attempt int) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	mult := cfg.Multiplier
	if mult < 1 {
		mult = 1
	}
	exponent := min(attempt, maxBackoffExponent)
	d := time.Duration(float64(cfg.InitialDelay) * math.Pow(mult, float64(exponent)))
	if cfg.MaxDelay > 0 && (d > cfg.MaxDelay || d <= 0) {
		d = cfg.MaxDelay
	}
	return d
}

// withJitter adds up to backoffJitterPercentMax percent of d, spreading
// reconnects of sources that failed together.
func withJitter(d time.Duration) time.Duration {
	jitterRange := time.Duration(float64(d) * backoffJitterPercentMax / 100)
	if jitterRange <= 0 {
		return d
	}
	n, err := rand.Int(rand.Reader, big.NewInt(jitterRange.Nanoseconds()))
	if err != nil {
		return d
	}
	return d + time.Duration(n.Int64())
}

// sleepCtx waits for d or until ctx is done, reporting whether the full
// delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
