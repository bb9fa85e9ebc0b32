// Package processors holds sample transforms applied between capture and
// the ring buffer.
package processors

import (
	"math"
	"sync/atomic"

	"github.com/tphakala/eas-monitor/internal/audiocore"
	"github.com/tphakala/eas-monitor/internal/errors"
)

// MaxGain is the largest accepted linear gain.
const MaxGain = 10.0

// Gain scales mono float samples by a linear factor, clipping to [-1, 1].
// The factor may be changed while a capture task is applying it.
type Gain struct {
	bits atomic.Uint64 // math.Float64bits of the factor
}

// NewGain returns a gain stage with factor gain in [0, MaxGain].
func NewGain(gain float64) (*Gain, error) {
	g := &Gain{}
	if err := g.Set(gain); err != nil {
		return nil, err
	}
	return g, nil
}

// Set updates the factor.
func (g *Gain) Set(gain float64) error {
	if math.IsNaN(gain) || gain < 0 || gain > MaxGain {
		return errors.Newf("gain must be between 0 and %.0f", MaxGain).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryValidation).
			Context("gain", gain).
			Build()
	}
	g.bits.Store(math.Float64bits(gain))
	return nil
}

// Value returns the current factor.
func (g *Gain) Value() float64 {
	return math.Float64frombits(g.bits.Load())
}

// Apply scales samples in place.
func (g *Gain) Apply(samples []float32) {
	gain := g.Value()
	if gain == 1 {
		return
	}
	for i, s := range samples {
		amplified := float32(float64(s) * gain)
		switch {
		case amplified > 1:
			amplified = 1
		case amplified < -1:
			amplified = -1
		}
		samples[i] = amplified
	}
}
