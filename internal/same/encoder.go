package same

import (
	"math"
	"time"
)

// AttentionTone selects the signal sent between header and end of message.
type AttentionTone int

const (
	AttentionNone AttentionTone = iota
	AttentionEAS                // 853 Hz and 960 Hz dual tone
	AttentionNWR                // 1050 Hz weather radio tone
)

// burstGap is the silence between repeated bursts.
const burstGap = time.Second

// Encoder generates SAME bursts as continuous phase AFSK.
type Encoder struct {
	sampleRate int
	amplitude  float64
}

// NewEncoder returns an encoder producing PCM at sampleRate with peak level
// amplitude in (0, 1]. Zero amplitude selects 0.5.
func NewEncoder(sampleRate int, amplitude float64) *Encoder {
	if amplitude <= 0 || amplitude > 1 {
		amplitude = 0.5
	}
	return &Encoder{sampleRate: sampleRate, amplitude: amplitude}
}

// Burst encodes one transmission: the preamble followed by text.
func (e *Encoder) Burst(text string) []float32 {
	data := make([]byte, 0, PreambleLength+len(text))
	for range PreambleLength {
		data = append(data, PreambleByte)
	}
	data = append(data, text...)

	fs := float64(e.sampleRate)
	samplesPerBit := fs / BaudRate
	total := int(math.Ceil(float64(len(data)*8) * samplesPerBit))
	out := make([]float32, 0, total)

	var phase float64
	n := 0
	for i, c := range data {
		for k := range 8 {
			freq := SpaceFrequency
			if c>>k&1 == 1 {
				freq = MarkFrequency
			}
			step := 2 * math.Pi * freq / fs
			bitEnd := int(math.Round(float64(i*8+k+1) * samplesPerBit))
			for ; n < bitEnd; n++ {
				out = append(out, float32(e.amplitude*math.Sin(phase)))
				phase = math.Mod(phase+step, 2*math.Pi)
			}
		}
	}
	return out
}

// Repeat encodes text three times separated by one second of silence.
func (e *Encoder) Repeat(text string) []float32 {
	burst := e.Burst(text)
	gap := e.Silence(burstGap)
	out := make([]float32, 0, 3*len(burst)+2*len(gap))
	for i := range 3 {
		if i > 0 {
			out = append(out, gap...)
		}
		out = append(out, burst...)
	}
	return out
}

// Header encodes the three header bursts of m.
func (e *Encoder) Header(m Message) []float32 {
	return e.Repeat(FormatHeader(m))
}

// EOM encodes the three end of message bursts.
func (e *Encoder) EOM() []float32 {
	return e.Repeat(eomMarker)
}

// Alert encodes a complete activation: header bursts, the attention signal
// for attention, and end of message bursts, each separated by one second.
func (e *Encoder) Alert(m Message, tone AttentionTone, attention time.Duration) []float32 {
	out := e.Header(m)
	out = append(out, e.Silence(burstGap)...)
	if tone != AttentionNone && attention > 0 {
		out = append(out, e.Attention(tone, attention)...)
		out = append(out, e.Silence(burstGap)...)
	}
	return append(out, e.EOM()...)
}

// Attention generates the attention signal.
func (e *Encoder) Attention(tone AttentionTone, d time.Duration) []float32 {
	var freqs []float64
	switch tone {
	case AttentionEAS:
		freqs = []float64{853, 960}
	case AttentionNWR:
		freqs = []float64{1050}
	default:
		return e.Silence(d)
	}
	return Tone(e.sampleRate, e.amplitude, d, freqs...)
}

// Silence returns d of zero samples.
func (e *Encoder) Silence(d time.Duration) []float32 {
	return make([]float32, e.samples(d))
}

func (e *Encoder) samples(d time.Duration) int {
	return int(d.Seconds() * float64(e.sampleRate))
}

// Tone returns the sum of sine waves at freqs, scaled so the peak does not
// exceed amplitude.
func Tone(sampleRate int, amplitude float64, d time.Duration, freqs ...float64) []float32 {
	n := int(d.Seconds() * float64(sampleRate))
	out := make([]float32, n)
	if len(freqs) == 0 {
		return out
	}
	scale := amplitude / float64(len(freqs))
	for i := range out {
		t := float64(i) / float64(sampleRate)
		var v float64
		for _, f := range freqs {
			v += math.Sin(2 * math.Pi * f * t)
		}
		out[i] = float32(scale * v)
	}
	return out
}
