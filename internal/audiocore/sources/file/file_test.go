package file

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/eas-monitor/internal/audiocore"
)

func writeTone(t *testing.T, n, rate int) string {
	t.Helper()
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*1000*float64(i)/float64(rate)))
	}
	path := filepath.Join(t.TempDir(), "tone.wav")
	require.NoError(t, WriteWAV(path, samples, rate))
	return path
}

func pullAll(t *testing.T, a *Adapter, limit int) ([]float32, error) {
	t.Helper()
	var out []float32
	for len(out) < limit {
		chunk, err := a.Pull(t.Context(), 512)
		if err != nil {
			return out, err
		}
		out = append(out, chunk.Samples...)
	}
	return out, nil
}

func TestWAV_RoundTrip(t *testing.T) {
	t.Parallel()

	path := writeTone(t, 4000, 8000)
	a := New(Config{ID: "f", Path: path})
	require.NoError(t, a.Open(t.Context()))
	defer func() { _ = a.Close() }()

	assert.Equal(t, audiocore.Format{SampleRate: 8000, Channels: 1}, a.Format())

	got, err := pullAll(t, a, math.MaxInt)
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, got, 4000)

	// 1 kHz at 8 kHz peaks at sample 2
	assert.InDelta(t, 0.5, got[2], 1e-3)
	assert.InDelta(t, -0.5, got[6], 1e-3)
}

func TestLoop_RewindsAtEOF(t *testing.T) {
	t.Parallel()

	path := writeTone(t, 300, 8000)
	a := New(Config{ID: "f", Path: path, Loop: true})
	require.NoError(t, a.Open(t.Context()))
	defer func() { _ = a.Close() }()

	got, err := pullAll(t, a, 1000)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(got), 1000)

	// the second pass starts over
	assert.InDelta(t, got[2], got[302], 1e-6)
}

func TestRealtime_Paces(t *testing.T) {
	t.Parallel()

	path := writeTone(t, 800, 8000)
	a := New(Config{ID: "f", Path: path, Realtime: true})
	require.NoError(t, a.Open(t.Context()))
	defer func() { _ = a.Close() }()

	start := time.Now()
	_, err := pullAll(t, a, math.MaxInt)
	require.ErrorIs(t, err, io.EOF)
	// 800 samples at 8 kHz is 100 ms of audio
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRealtime_ContextCancel(t *testing.T) {
	t.Parallel()

	path := writeTone(t, 16000, 8000)
	a := New(Config{ID: "f", Path: path, Realtime: true, Loop: true})
	require.NoError(t, a.Open(t.Context()))
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	var err error
	for err == nil {
		_, err = a.Pull(ctx, 4000)
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpen_Failures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	notWAV := filepath.Join(dir, "bogus.wav")
	require.NoError(t, os.WriteFile(notWAV, []byte("definitely not riff data"), 0o600))
	mp3 := filepath.Join(dir, "song.mp3")
	require.NoError(t, os.WriteFile(mp3, []byte("ID3"), 0o600))

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.wav")},
		{"invalid wav", notWAV},
		{"unsupported extension", mp3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := New(Config{ID: "f", Path: tt.path})
			err := a.Open(t.Context())
			require.Error(t, err)
			assert.True(t, audiocore.IsFatal(err))
		})
	}
}

func TestPull_BeforeOpenIsFatal(t *testing.T) {
	t.Parallel()

	_, err := New(Config{ID: "f"}).Pull(t.Context(), 10)
	assert.True(t, audiocore.IsFatal(err))
}

func TestDecodeFLACFrame(t *testing.T) {
	t.Parallel()

	t.Run("16 bit", func(t *testing.T) {
		t.Parallel()
		out := decodeFLACFrame([]byte{0x00, 0x40, 0x00, 0xc0}, 16)
		assert.InDeltaSlice(t, []float32{0.5, -0.5}, out, 1e-6)
	})

	t.Run("24 bit sign extension", func(t *testing.T) {
		t.Parallel()
		out := decodeFLACFrame([]byte{0x00, 0x00, 0x40, 0x00, 0x00, 0xc0}, 24)
		assert.InDeltaSlice(t, []float32{0.5, -0.5}, out, 1e-6)
	})
}
