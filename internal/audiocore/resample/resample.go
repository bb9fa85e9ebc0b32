// Package resample converts captured audio to the canonical decode rate.
package resample

import "math"

// Resample converts mono samples from fromRate to toRate using piecewise
// linear interpolation. When the rates match the input slice is returned
// as is. The output holds round(len(samples) * toRate / fromRate) samples
// and output i is taken at source position i * fromRate / toRate, clamped
// to the last input sample.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 {
		return samples
	}
	if len(samples) == 0 {
		return []float32{}
	}

	outLen := int(math.Round(float64(len(samples)) * float64(toRate) / float64(fromRate)))
	out := make([]float32, outLen)
	step := float64(fromRate) / float64(toRate)
	last := len(samples) - 1

	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx] + (samples[idx+1]-samples[idx])*frac
	}
	return out
}

// Downmix averages interleaved frames into a mono signal. Mono input is
// returned unchanged. A trailing partial frame is dropped.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	out := make([]float32, frames)
	scale := 1 / float32(channels)
	for f := range frames {
		var sum float32
		for _, s := range interleaved[f*channels : (f+1)*channels] {
			sum += s
		}
		out[f] = sum * scale
	}
	return out
}

// Stream resamples a continuous signal delivered in chunks. It carries the
// fractional read position and the last input sample across calls, so the
// total output length tracks total input length times toRate / fromRate no
// matter how the input is split.
type Stream struct {
	fromRate int
	toRate   int
	step     float64

	pos     float64 // read position relative to the start of the next chunk, may be negative
	prev    float32 // last sample of the previous chunk
	hasPrev bool
}

// NewStream creates a chunked resampler.
func NewStream(fromRate, toRate int) *Stream {
	s := &Stream{fromRate: fromRate, toRate: toRate}
	if fromRate > 0 && toRate > 0 {
		s.step = float64(fromRate) / float64(toRate)
	}
	return s
}

// Rates returns the input and output sample rates.
func (s *Stream) Rates() (fromRate, toRate int) {
	return s.fromRate, s.toRate
}

// Process resamples the next chunk. The returned slice is newly allocated
// unless the rates match, in which case chunk itself is returned.
func (s *Stream) Process(chunk []float32) []float32 {
	if s.fromRate == s.toRate || s.step == 0 {
		return chunk
	}
	if len(chunk) == 0 {
		return []float32{}
	}

	// sample at virtual index -1 is the tail of the previous chunk
	at := func(i int) float32 {
		if i < 0 {
			if s.hasPrev {
				return s.prev
			}
			return chunk[0]
		}
		return chunk[i]
	}

	n := len(chunk)
	out := make([]float32, 0, int(float64(n)/s.step)+2)
	pos := s.pos
	for pos <= float64(n-1) {
		idx := int(math.Floor(pos))
		frac := float32(pos - float64(idx))
		a := at(idx)
		b := at(idx + 1)
		out = append(out, a+(b-a)*frac)
		pos += s.step
	}

	s.pos = pos - float64(n)
	s.prev = chunk[n-1]
	s.hasPrev = true
	return out
}

// Reset clears the carried state, used after a discontinuity such as a
// reconnect.
func (s *Stream) Reset() {
	s.pos = 0
	s.prev = 0
	s.hasPrev = false
}
