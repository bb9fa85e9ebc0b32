package precheck

import "math"

// goertzel computes the power of a single frequency over fixed size blocks.
type goertzel struct {
	coeff float64
}

func newGoertzel(freq float64, sampleRate int) goertzel {
	return goertzel{coeff: 2 * math.Cos(2*math.Pi*freq/float64(sampleRate))}
}

// power returns the squared magnitude of the frequency in block, after
// weighting each sample with window.
func (g goertzel) power(block, window []float32) float64 {
	var s1, s2 float64
	for i, x := range block {
		s0 := float64(x*window[i]) + g.coeff*s1 - s2
		s2, s1 = s1, s0
	}
	return s1*s1 + s2*s2 - g.coeff*s1*s2
}

// hann returns a Hann window of length n.
func hann(n int) []float32 {
	w := make([]float32, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = float32(0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}
