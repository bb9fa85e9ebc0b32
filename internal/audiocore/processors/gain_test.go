package processors

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/eas-monitor/internal/errors"
)

func TestNewGain(t *testing.T) {
	t.Parallel()

	g, err := NewGain(1.5)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, g.Value(), 1e-9)

	for _, bad := range []float64{-1, 11, math.NaN()} {
		g, err := NewGain(bad)
		require.Error(t, err, "gain %v", bad)
		assert.Nil(t, g)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	}
}

func TestGain_Apply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		gain  float64
		input []float32
		want  []float32
	}{
		{"unity", 1, []float32{0.25, -0.5}, []float32{0.25, -0.5}},
		{"double", 2, []float32{0.25, -0.25}, []float32{0.5, -0.5}},
		{"clips", 4, []float32{0.5, -0.5, 0.1}, []float32{1, -1, 0.4}},
		{"mute", 0, []float32{0.7, -0.7}, []float32{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, err := NewGain(tt.gain)
			require.NoError(t, err)

			samples := append([]float32(nil), tt.input...)
			g.Apply(samples)
			assert.InDeltaSlice(t, tt.want, samples, 1e-6)
		})
	}
}

func TestGain_SetKeepsPreviousOnError(t *testing.T) {
	t.Parallel()

	g, err := NewGain(2)
	require.NoError(t, err)

	require.Error(t, g.Set(20))
	assert.InDelta(t, 2.0, g.Value(), 1e-9)

	require.NoError(t, g.Set(0.5))
	assert.InDelta(t, 0.5, g.Value(), 1e-9)
}

func TestGain_ConcurrentSet(t *testing.T) {
	t.Parallel()

	g, err := NewGain(1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Go(func() {
		for i := range 1000 {
			_ = g.Set(float64(i%10) + 0.5)
		}
	})
	wg.Go(func() {
		buf := make([]float32, 64)
		for range 1000 {
			g.Apply(buf)
		}
	})
	wg.Wait()

	assert.LessOrEqual(t, g.Value(), MaxGain)
}
