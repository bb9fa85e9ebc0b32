package precheck

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tphakala/eas-monitor/internal/same"
)

const (
	testRate   = 16000
	testHeader = "ZCZC-WXR-RWT-039003+0015-2911153-KLOX/NWS-"
)

func burstSnapshot(amplitude float64) []float32 {
	enc := same.NewEncoder(testRate, amplitude)
	pcm := enc.Silence(time.Second)
	pcm = append(pcm, enc.Burst(testHeader)...)
	return append(pcm, enc.Silence(time.Second)...)
}

// voiceLike approximates voiced speech: a wandering pitch with a falling
// harmonic series.
func voiceLike(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		t := float64(i) / testRate
		f0 := 150 + 20*math.Sin(2*math.Pi*3*t)
		var v float64
		for k := 1; k < 25; k++ {
			v += 0.3 / float64(k) * math.Sin(2*math.Pi*f0*float64(k)*t)
		}
		out[i] = float32(v)
	}
	return out
}

func TestLikelySAME(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(5, 6))
	noise := make([]float32, 4*testRate)
	for i := range noise {
		noise[i] = float32(rng.NormFloat64() * 0.1)
	}

	enc := same.NewEncoder(testRate, 0.5)
	eom := append(enc.Silence(time.Second), enc.Burst("NNNN")...)

	tests := []struct {
		name     string
		snapshot []float32
		want     bool
	}{
		{"header burst", burstSnapshot(0.5), true},
		{"quiet header burst", burstSnapshot(0.005), true},
		{"end of message burst", eom, true},
		{"burst below level floor", burstSnapshot(0.0005), false},
		{"silence", make([]float32, 4*testRate), false},
		{"white noise", noise, false},
		{"weather radio tone", same.Tone(testRate, 0.5, 4*time.Second, 1050), false},
		{"dual attention tone", same.Tone(testRate, 0.5, 4*time.Second, 853, 960), false},
		{"voice", voiceLike(4 * testRate), false},
		{"short snapshot", make([]float32, 50), false},
	}

	f := New(Config{SampleRate: testRate})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, f.LikelySAME(tt.snapshot))
		})
	}
}

func TestAnalyze_Counts(t *testing.T) {
	t.Parallel()

	f := New(Config{SampleRate: testRate})
	snapshot := burstSnapshot(0.5)
	r := f.Analyze(snapshot)

	assert.Equal(t, len(snapshot)/DefaultBlockSize, r.Blocks)
	assert.GreaterOrEqual(t, r.TonalBlocks, r.Densest)
	assert.Equal(t, 2*DefaultMinTonalBlocks, r.Densest, "a burst fills the whole detection window")
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	assert.Equal(t, DefaultBlockSize, f.cfg.BlockSize)
	assert.Equal(t, DefaultMinTonalBlocks, f.cfg.MinTonalBlocks)
	assert.InDelta(t, math.Pow(10, DefaultRatioDB/10), f.ratio, 1e-9)
	assert.InDelta(t, math.Pow(10, DefaultMinLevelDBFS/20), f.minRMS, 1e-12)
	assert.Len(t, f.guards, len(guardFrequencies))
}

func TestGoertzel_PeaksAtTarget(t *testing.T) {
	t.Parallel()

	block := same.Tone(testRate, 1, 6*time.Millisecond, MarkFrequency)
	window := hann(len(block))

	on := newGoertzel(MarkFrequency, testRate).power(block, window)
	off := newGoertzel(800, testRate).power(block, window)
	assert.Greater(t, on, 100*off)
}
