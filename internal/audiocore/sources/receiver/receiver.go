// Package receiver tunes an SDR to a NOAA Weather Radio style narrowband FM
// channel and demodulates it to audio.
package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/cmplx"
	"sync"
	"time"

	"hz.tools/rf"
	"hz.tools/sdr"
	"hz.tools/sdr/stream"

	"github.com/tphakala/eas-monitor/internal/audiocore"
	"github.com/tphakala/eas-monitor/internal/errors"
	"github.com/tphakala/eas-monitor/internal/logging"
)

// Tuner is the subset of an SDR receiver the adapter needs.
type Tuner interface {
	SetCenterFrequency(freq rf.Hz) error
	SetSampleRate(rate uint) error
	// SetGain sets the tuner gain in dB, 0 selects automatic gain
	SetGain(db float64) error
	StartRx() (sdr.ReadCloser, error)
	Close() error
}

// Driver opens the tuner at a driver specific device index.
type Driver func(index int) (Tuner, error)

var (
	driversMu sync.RWMutex
	drivers   = map[string]Driver{}
)

// RegisterDriver makes a hardware driver available by name.
func RegisterDriver(name string, d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = d
}

func lookupDriver(name string) (Driver, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	return d, ok
}

// Config configures a receiver adapter.
type Config struct {
	ID         string
	Driver     string
	Index      int
	Frequency  float64 // Hz
	SampleRate int     // IQ rate
	Deviation  float64 // peak FM deviation in Hz
	Downsample int     // IQ to audio decimation
	Gain       float64 // dB, 0 = automatic
}

// AudioRate returns the demodulated audio rate.
func (c Config) AudioRate() int {
	if c.Downsample <= 0 {
		return c.SampleRate
	}
	return c.SampleRate / c.Downsample
}

// Adapter implements audiocore.Adapter for an SDR receiver.
type Adapter struct {
	config Config
	logger *slog.Logger
	open   Driver // overrides the registered driver, used in tests

	tuner  Tuner
	rx     sdr.ReadCloser
	reader sdr.Reader

	iq        sdr.SamplesC64
	last      complex64 // final IQ sample of the previous read
	haveLast  bool
	closeOnce sync.Once
}

// New creates a receiver adapter.
func New(cfg Config) *Adapter {
	if cfg.Downsample <= 0 {
		cfg.Downsample = 1
	}
	logger := logging.ForService("audiocore")
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		config: cfg,
		logger: logger.With("component", "receiver", "source_id", cfg.ID),
	}
}

// NewWithTuner creates an adapter that uses open instead of a registered
// driver.
func NewWithTuner(cfg Config, open Driver) *Adapter {
	a := New(cfg)
	a.open = open
	return a
}

// Format returns the audio rate after decimation, always mono.
func (a *Adapter) Format() audiocore.Format {
	return audiocore.Format{SampleRate: a.config.AudioRate(), Channels: 1}
}

// Open opens, tunes and starts the receiver.
func (a *Adapter) Open(_ context.Context) error {
	open := a.open
	if open == nil {
		d, ok := lookupDriver(a.config.Driver)
		if !ok {
			return audiocore.Fatal(errors.Newf("sdr driver %q is not available in this build", a.config.Driver).
				Component("audiocore").
				Category(errors.CategoryDevice).
				Context("operation", "open_receiver").
				Context("source_id", a.config.ID).
				Build())
		}
		open = d
	}

	tuner, err := open(a.config.Index)
	if err != nil {
		// a missing dongle may be plugged back in
		return audiocore.Transient(a.deviceError(err, "open_receiver"))
	}

	if err := a.tune(tuner); err != nil {
		_ = tuner.Close()
		return audiocore.Fatal(a.deviceError(err, "tune_receiver"))
	}

	rx, err := tuner.StartRx()
	if err != nil {
		_ = tuner.Close()
		return audiocore.Transient(a.deviceError(err, "start_rx"))
	}

	reader, err := stream.ConvertReader(rx, sdr.SampleFormatC64)
	if err != nil {
		_ = rx.Close()
		_ = tuner.Close()
		return audiocore.Fatal(a.deviceError(err, "convert_reader"))
	}

	a.tuner = tuner
	a.rx = rx
	a.reader = reader

	a.logger.Info("receiver started",
		"driver", a.config.Driver,
		"index", a.config.Index,
		"frequency_hz", a.config.Frequency,
		"iq_rate", a.config.SampleRate,
		"audio_rate", a.config.AudioRate())
	return nil
}

func (a *Adapter) tune(t Tuner) error {
	if err := t.SetCenterFrequency(rf.Hz(a.config.Frequency)); err != nil {
		return fmt.Errorf("set center frequency: %w", err)
	}
	if err := t.SetSampleRate(uint(a.config.SampleRate)); err != nil {
		return fmt.Errorf("set sample rate: %w", err)
	}
	if err := t.SetGain(a.config.Gain); err != nil {
		return fmt.Errorf("set gain: %w", err)
	}
	return nil
}

func (a *Adapter) deviceError(err error, op string) error {
	return errors.New(err).
		Component("audiocore").
		Category(errors.CategoryDevice).
		Context("operation", op).
		Context("source_id", a.config.ID).
		Context("driver", a.config.Driver).
		Build()
}

// Pull reads IQ, FM demodulates and decimates to at most maxSamples audio
// samples. Read failures are transient.
func (a *Adapter) Pull(ctx context.Context, maxSamples int) (audiocore.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return audiocore.Chunk{}, err
	}
	if a.reader == nil {
		return audiocore.Chunk{}, audiocore.Fatal(errors.Newf("receiver not open").
			Component("audiocore").
			Category(errors.CategoryState).
			Context("source_id", a.config.ID).
			Build())
	}
	if maxSamples <= 0 {
		maxSamples = audiocore.DefaultPullSize
	}

	need := maxSamples * a.config.Downsample
	if cap(a.iq) < need {
		a.iq = make(sdr.SamplesC64, need)
	}
	iq := a.iq[:need]

	n, err := sdr.ReadFull(a.reader, iq)
	if err != nil && n == 0 {
		return audiocore.Chunk{}, audiocore.Transient(a.deviceError(err, "read_iq"))
	}

	audio := a.demodulate(iq[:n])
	return audiocore.Chunk{Samples: audio, Timestamp: time.Now()}, nil
}

// demodulate runs a quadrature discriminator and averages each group of
// Downsample outputs. Output is scaled so the configured peak deviation
// maps to 1.
func (a *Adapter) demodulate(iq sdr.SamplesC64) []float32 {
	if len(iq) == 0 {
		return []float32{}
	}

	scale := 1.0
	if a.config.Deviation > 0 && a.config.SampleRate > 0 {
		scale = float64(a.config.SampleRate) / (2 * math.Pi * a.config.Deviation)
	}

	prev := iq[0]
	if a.haveLast {
		prev = a.last
	}

	ds := a.config.Downsample
	out := make([]float32, 0, len(iq)/ds)
	var acc float64
	for i, s := range iq {
		acc += cmplx.Phase(complex128(s) * cmplx.Conj(complex128(prev)))
		prev = s
		if (i+1)%ds == 0 {
			out = append(out, float32(acc/float64(ds)*scale))
			acc = 0
		}
	}

	a.last = prev
	a.haveLast = true
	return out
}

// Close stops streaming and releases the hardware.
func (a *Adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.rx != nil {
			err = a.rx.Close()
		}
		if a.tuner != nil {
			if cerr := a.tuner.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		a.reader = nil
	})
	return err
}
