package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tphakala/eas-monitor/internal/conf"
)

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	cfg := conf.BackoffSettings{InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{5, 32 * time.Second},
		{6, time.Minute},
		{1000, time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoffDelay(cfg, tt.attempt), "attempt %d", tt.attempt)
	}

	assert.Equal(t, time.Duration(0), backoffDelay(conf.BackoffSettings{}, 3))
	assert.Equal(t, time.Second, backoffDelay(conf.BackoffSettings{InitialDelay: time.Second, Multiplier: 0.5}, 4),
		"multipliers below one do not shrink the delay")
}

func TestWithJitter(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	for range 100 {
		d := withJitter(base)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+base/5)
	}
	assert.Equal(t, time.Duration(0), withJitter(0))
}

func TestSleepCtx(t *testing.T) {
	t.Parallel()

	assert.True(t, sleepCtx(t.Context(), time.Millisecond))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.False(t, sleepCtx(ctx, time.Hour))
	assert.False(t, sleepCtx(ctx, 0))
}
