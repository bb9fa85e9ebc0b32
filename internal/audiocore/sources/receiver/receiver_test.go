package receiver

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hz.tools/rf"
	"hz.tools/sdr"

	"github.com/tphakala/eas-monitor/internal/audiocore"
)

// fmSource produces IQ for a carrier frequency modulated by a sine tone.
type fmSource struct {
	rate      uint
	deviation float64
	tone      float64
	phase     float64
	n         int
	closed    bool
	failAfter int // samples before Read starts failing, 0 = never
}

func (f *fmSource) Read(s sdr.Samples) (int, error) {
	buf, ok := s.(sdr.SamplesC64)
	if !ok {
		return 0, sdr.ErrSampleFormatMismatch
	}
	if f.failAfter > 0 && f.n >= f.failAfter {
		return 0, errors.New("usb transfer failed")
	}
	for i := range buf {
		t := float64(f.n) / float64(f.rate)
		f.phase += 2 * math.Pi * f.deviation * math.Sin(2*math.Pi*f.tone*t) / float64(f.rate)
		buf[i] = complex64(complex(math.Cos(f.phase), math.Sin(f.phase)))
		f.n++
	}
	return len(buf), nil
}

func (f *fmSource) SampleFormat() sdr.SampleFormat { return sdr.SampleFormatC64 }
func (f *fmSource) SampleRate() uint               { return f.rate }
func (f *fmSource) Close() error                   { f.closed = true; return nil }

type fakeTuner struct {
	rx       *fmSource
	freq     rf.Hz
	rate     uint
	gain     float64
	closed   bool
	tuneErr  error
	startErr error
}

func (t *fakeTuner) SetCenterFrequency(freq rf.Hz) error { t.freq = freq; return t.tuneErr }
func (t *fakeTuner) SetSampleRate(rate uint) error       { t.rate = rate; return nil }
func (t *fakeTuner) SetGain(db float64) error            { t.gain = db; return nil }
func (t *fakeTuner) Close() error                        { t.closed = true; return nil }
func (t *fakeTuner) StartRx() (sdr.ReadCloser, error) {
	if t.startErr != nil {
		return nil, t.startErr
	}
	return t.rx, nil
}

func testConfig() Config {
	return Config{
		ID:         "nwr",
		Driver:     "fake",
		Frequency:  162.55e6,
		SampleRate: 48000,
		Deviation:  5000,
		Downsample: 3,
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	a := New(testConfig())
	assert.Equal(t, audiocore.Format{SampleRate: 16000, Channels: 1}, a.Format())
	assert.Equal(t, 24000, Config{SampleRate: 240000, Downsample: 10}.AudioRate())
}

func TestOpen_TunesAndDemodulates(t *testing.T) {
	t.Parallel()

	tuner := &fakeTuner{rx: &fmSource{rate: 48000, deviation: 5000, tone: 1000}}
	cfg := testConfig()
	cfg.Gain = 28
	a := NewWithTuner(cfg, func(int) (Tuner, error) { return tuner, nil })

	require.NoError(t, a.Open(t.Context()))
	assert.Equal(t, rf.Hz(162.55e6), tuner.freq)
	assert.Equal(t, uint(48000), tuner.rate)
	assert.InDelta(t, 28.0, tuner.gain, 0)

	var audio []float32
	for len(audio) < 16000 {
		chunk, err := a.Pull(t.Context(), 4000)
		require.NoError(t, err)
		audio = append(audio, chunk.Samples...)
	}
	require.Len(t, audio, 16000)

	var peak float32
	crossings := 0
	for i := 1; i < len(audio); i++ {
		peak = max(peak, audio[i], -audio[i])
		if (audio[i-1] < 0) != (audio[i] < 0) {
			crossings++
		}
	}
	// full deviation maps to unity
	assert.InDelta(t, 1.0, peak, 0.05)
	// one second of a 1 kHz tone
	assert.InDelta(t, 2000, crossings, 6)

	require.NoError(t, a.Close())
	assert.True(t, tuner.closed)
	assert.True(t, tuner.rx.closed)
}

func TestOpen_Failures(t *testing.T) {
	t.Parallel()

	t.Run("unknown driver is fatal", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig()
		cfg.Driver = "hackrf"
		err := New(cfg).Open(t.Context())
		assert.True(t, audiocore.IsFatal(err))
	})

	t.Run("missing device is transient", func(t *testing.T) {
		t.Parallel()
		a := NewWithTuner(testConfig(), func(int) (Tuner, error) { return nil, errors.New("no device") })
		assert.True(t, audiocore.IsTransient(a.Open(t.Context())))
	})

	t.Run("tuning failure is fatal", func(t *testing.T) {
		t.Parallel()
		tuner := &fakeTuner{tuneErr: errors.New("frequency out of range")}
		a := NewWithTuner(testConfig(), func(int) (Tuner, error) { return tuner, nil })
		assert.True(t, audiocore.IsFatal(a.Open(t.Context())))
		assert.True(t, tuner.closed)
	})

	t.Run("rx start failure is transient", func(t *testing.T) {
		t.Parallel()
		tuner := &fakeTuner{startErr: errors.New("busy")}
		a := NewWithTuner(testConfig(), func(int) (Tuner, error) { return tuner, nil })
		assert.True(t, audiocore.IsTransient(a.Open(t.Context())))
	})
}

func TestPull_ReadFailureIsTransient(t *testing.T) {
	t.Parallel()

	tuner := &fakeTuner{rx: &fmSource{rate: 48000, deviation: 5000, tone: 1000, failAfter: 3000}}
	a := NewWithTuner(testConfig(), func(int) (Tuner, error) { return tuner, nil })
	require.NoError(t, a.Open(t.Context()))
	defer func() { _ = a.Close() }()

	_, err := a.Pull(t.Context(), 1000)
	require.NoError(t, err)

	_, err = a.Pull(t.Context(), 1000)
	require.Error(t, err)
	assert.True(t, audiocore.IsTransient(err))
}

func TestRegisterDriver(t *testing.T) {
	tuner := &fakeTuner{rx: &fmSource{rate: 48000}}
	RegisterDriver("test-driver", func(int) (Tuner, error) { return tuner, nil })

	cfg := testConfig()
	cfg.Driver = "test-driver"
	a := New(cfg)
	require.NoError(t, a.Open(t.Context()))
	require.NoError(t, a.Close())
}
