package resample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(n, rate int, freq float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / float64(rate)))
	}
	return out
}

func TestResample_Identity(t *testing.T) {
	t.Parallel()

	in := sine(1000, 16000, 440)
	out := Resample(in, 16000, 16000)

	require.Len(t, out, len(in))
	assert.Same(t, &in[0], &out[0], "identity resample must not copy")
}

func TestResample_LengthLaw(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		n        int
		from, to int
	}{
		{"44.1k to 16k", 44100, 44100, 16000},
		{"48k to 16k", 4800, 48000, 16000},
		{"8k to 16k", 801, 8000, 16000},
		{"22.05k to 16k", 12345, 22050, 16000},
		{"24k to 16k", 3, 24000, 16000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := Resample(make([]float32, tt.n), tt.from, tt.to)
			want := int(math.Round(float64(tt.n) * float64(tt.to) / float64(tt.from)))
			assert.Len(t, out, want)
		})
	}
}

func TestResample_Interpolates(t *testing.T) {
	t.Parallel()

	// upsampling a ramp by two places midpoints between samples
	out := Resample([]float32{0, 1, 2, 3}, 8000, 16000)
	require.Len(t, out, 8)
	assert.InDeltaSlice(t, []float32{0, 0.5, 1, 1.5, 2, 2.5, 3, 3}, out, 1e-6)
}

func TestResample_Empty(t *testing.T) {
	t.Parallel()

	out := Resample(nil, 44100, 16000)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestResample_PreservesTone(t *testing.T) {
	t.Parallel()

	// a 1 kHz tone at 48 kHz should still complete 1000 cycles per second at 16 kHz
	out := Resample(sine(48000, 48000, 1000), 48000, 16000)
	require.Len(t, out, 16000)

	crossings := 0
	for i := 1; i < len(out); i++ {
		if (out[i-1] < 0) != (out[i] < 0) {
			crossings++
		}
	}
	assert.InDelta(t, 2000, crossings, 4)
}

func TestDownmix(t *testing.T) {
	t.Parallel()

	t.Run("stereo", func(t *testing.T) {
		t.Parallel()
		out := Downmix([]float32{1, 0, 0.5, 0.5, -1, 1, 0.25}, 2)
		assert.InDeltaSlice(t, []float32{0.5, 0.5, 0}, out, 1e-6)
	})

	t.Run("mono passthrough", func(t *testing.T) {
		t.Parallel()
		in := []float32{1, 2, 3}
		out := Downmix(in, 1)
		assert.Same(t, &in[0], &out[0])
	})
}

func TestStream_ChunkedLengthMatchesOneShot(t *testing.T) {
	t.Parallel()

	const total = 44100 * 3
	in := sine(total, 44100, 1562.5)
	want := Resample(in, 44100, 16000)

	s := NewStream(44100, 16000)
	var got []float32
	chunkSizes := []int{4096, 1000, 333, 7, 12000}
	for off, i := 0, 0; off < total; i++ {
		n := min(chunkSizes[i%len(chunkSizes)], total-off)
		got = append(got, s.Process(in[off:off+n])...)
		off += n
	}

	assert.InDelta(t, len(want), len(got), 1)

	// the streamed signal samples the same positions as the one shot path
	for i := 0; i < min(len(want), len(got)); i += 97 {
		assert.InDelta(t, want[i], got[i], 1e-4, "sample %d", i)
	}
}

func TestStream_IdentityAndReset(t *testing.T) {
	t.Parallel()

	s := NewStream(16000, 16000)
	in := []float32{1, 2, 3}
	out := s.Process(in)
	assert.Same(t, &in[0], &out[0])

	s = NewStream(32000, 16000)
	first := s.Process([]float32{0, 1, 2, 3, 4})
	assert.InDeltaSlice(t, []float32{0, 2, 4}, first, 1e-6)
	s.Reset()
	second := s.Process([]float32{0, 1, 2, 3, 4})
	assert.Equal(t, first, second)
}
