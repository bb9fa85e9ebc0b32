package same

import "math"

// Protocol constants.
const (
	BaudRate       = 520.83
	MarkFrequency  = 2083.3 // logical 1
	SpaceFrequency = 1562.5 // logical 0
	PreambleByte   = 0xAB
	PreambleLength = 16
)

const (
	// pllInertia scales the clock toward zero on every tone transition.
	// Lower values lock faster, higher values ride through noise.
	pllInertia = 0.65
	epsilon    = 1e-12
)

// demodulator turns PCM into a bitstream. Mark and space energy are measured
// with quadrature correlators averaged over one bit period; a digital PLL
// clocked at the baud rate samples their normalized difference mid-bit.
type demodulator struct {
	markStep   float64 // radians per sample
	spaceStep  float64
	markPhase  float64
	spacePhase float64

	window int
	hist   [4][]float64 // mark I, mark Q, space I, space Q
	sums   [4]float64
	pos    int

	clock    int32
	step     uint32
	prevSign bool
}

// bit is one recovered bit and the sample index it was taken at.
type bit struct {
	value  uint8
	sample int
}

func newDemodulator(sampleRate int) *demodulator {
	fs := float64(sampleRate)
	window := max(int(math.Round(fs/BaudRate)), 2)
	d := &demodulator{
		markStep:  2 * math.Pi * MarkFrequency / fs,
		spaceStep: 2 * math.Pi * SpaceFrequency / fs,
		window:    window,
		step:      uint32(math.Round(math.Exp2(32) * BaudRate / fs)),
	}
	for i := range d.hist {
		d.hist[i] = make([]float64, window)
	}
	return d
}

// process demodulates pcm and returns every sampled bit.
func (d *demodulator) process(pcm []float32) []bit {
	bits := make([]bit, 0, int(float64(len(pcm))*d.bitsPerSample())+1)
	for n, s := range pcm {
		v := d.correlate(float64(s))

		prev := d.clock
		d.clock = int32(uint32(d.clock) + d.step)
		if prev > 0 && d.clock < 0 {
			var b uint8
			if v > 0 {
				b = 1
			}
			bits = append(bits, bit{value: b, sample: n})
		}

		sign := v > 0
		if sign != d.prevSign {
			d.clock = int32(float64(d.clock) * pllInertia)
			d.prevSign = sign
		}
	}
	return bits
}

func (d *demodulator) bitsPerSample() float64 {
	return float64(d.step) / math.Exp2(32)
}

// correlate advances both local oscillators by one sample and returns the
// normalized mark minus space energy in [-1, 1].
func (d *demodulator) correlate(s float64) float64 {
	ms, mc := math.Sincos(d.markPhase)
	ss, sc := math.Sincos(d.spacePhase)
	d.markPhase = math.Mod(d.markPhase+d.markStep, 2*math.Pi)
	d.spacePhase = math.Mod(d.spacePhase+d.spaceStep, 2*math.Pi)

	in := [4]float64{s * mc, s * ms, s * sc, s * ss}
	for i, x := range in {
		d.sums[i] += x - d.hist[i][d.pos]
		d.hist[i][d.pos] = x
	}
	d.pos++
	if d.pos == d.window {
		d.pos = 0
	}

	mark := d.sums[0]*d.sums[0] + d.sums[1]*d.sums[1]
	space := d.sums[2]*d.sums[2] + d.sums[3]*d.sums[3]
	return (mark - space) / (mark + space + epsilon)
}
