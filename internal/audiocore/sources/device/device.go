// Package device captures audio from a local sound card through miniaudio.
package device

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/eas-monitor/internal/audiocore"
	"github.com/tphakala/eas-monitor/internal/errors"
	"github.com/tphakala/eas-monitor/internal/logging"
)

const (
	bytesPerSample = 2
	// seconds of audio the callback may run ahead of Pull
	handoffSeconds = 2
)

// Config configures a device adapter.
type Config struct {
	ID         string
	Device     string // name, decoded id or name substring, empty = default
	SampleRate int
	Channels   int
}

// Adapter implements audiocore.Adapter for a capture device. The malgo data
// callback writes into a byte ring that Pull drains.
type Adapter struct {
	config Config
	logger *slog.Logger

	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device

	mu      sync.Mutex // guards ring
	ring    *ringbuffer.RingBuffer
	notify  chan struct{}
	stopped chan struct{}
	stop    sync.Once

	closing   atomic.Bool
	overruns  atomic.Uint64
	closeOnce sync.Once
	scratch   []byte
	samples   []float32
}

// New creates a device adapter. The device is opened by Open.
func New(cfg Config) *Adapter {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	logger := logging.ForService("audiocore")
	if logger == nil {
		logger = slog.Default()
	}

	size := cfg.SampleRate * cfg.Channels * bytesPerSample * handoffSeconds
	return &Adapter{
		config:  cfg,
		logger:  logger.With("component", "device", "source_id", cfg.ID),
		ring:    ringbuffer.New(size),
		notify:  make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

// Format returns the configured capture format.
func (a *Adapter) Format() audiocore.Format {
	return audiocore.Format{SampleRate: a.config.SampleRate, Channels: a.config.Channels}
}

// Open initializes and starts the capture device. A device that does not
// exist is a fatal error, a device that fails to start is transient.
func (a *Adapter) Open(_ context.Context) error {
	malgoCtx, err := initContext()
	if err != nil {
		return audiocore.Fatal(err)
	}
	a.malgoCtx = malgoCtx

	infos, err := malgoCtx.Devices(malgo.Capture)
	if err != nil {
		a.releaseContext()
		return audiocore.Transient(errors.New(err).
			Component("audiocore").
			Category(errors.CategoryDevice).
			Context("operation", "enumerate_devices").
			Context("source_id", a.config.ID).
			Build())
	}

	idx := selectDevice(describe(infos), a.config.Device)
	if idx < 0 {
		a.releaseContext()
		return audiocore.Fatal(errors.Newf("no capture device matches %q", a.config.Device).
			Component("audiocore").
			Category(errors.CategoryDevice).
			Context("operation", "select_device").
			Context("source_id", a.config.ID).
			Context("available_devices", len(infos)).
			Build())
	}
	selected := describe(infos)[idx]
	info := infos[selected.Index]

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(a.config.Channels)
	deviceConfig.Capture.DeviceID = info.ID.Pointer()
	deviceConfig.SampleRate = uint32(a.config.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: a.onData,
		Stop: a.onStop,
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		a.releaseContext()
		return audiocore.Transient(errors.New(err).
			Component("audiocore").
			Category(errors.CategoryDevice).
			Context("operation", "init_device").
			Context("source_id", a.config.ID).
			Context("device_name", selected.Name).
			Build())
	}
	a.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		a.device = nil
		a.releaseContext()
		return audiocore.Transient(errors.New(err).
			Component("audiocore").
			Category(errors.CategoryDevice).
			Context("operation", "start_device").
			Context("source_id", a.config.ID).
			Build())
	}

	a.logger.Info("capture device started",
		"device_name", selected.Name,
		"device_id", selected.ID,
		"sample_rate", a.config.SampleRate,
		"channels", a.config.Channels)
	return nil
}

// onData runs on the audio thread and must not block.
func (a *Adapter) onData(_, input []byte, _ uint32) {
	a.write(input)
}

func (a *Adapter) write(input []byte) {
	a.mu.Lock()
	n, err := a.ring.Write(input)
	a.mu.Unlock()
	if err != nil || n < len(input) {
		a.overruns.Add(1)
	}
	select {
	case a.notify <- struct{}{}:
	default:
	}
}

// onStop fires when miniaudio stops the device, including after Close.
func (a *Adapter) onStop() {
	if !a.closing.Load() {
		a.logger.Warn("capture device stopped unexpectedly")
	}
	a.stop.Do(func() { close(a.stopped) })
}

// Pull drains buffered audio, waiting for the callback when empty.
func (a *Adapter) Pull(ctx context.Context, maxSamples int) (audiocore.Chunk, error) {
	if maxSamples <= 0 {
		maxSamples = audiocore.DefaultPullSize
	}
	frameBytes := bytesPerSample * a.config.Channels

	for {
		a.mu.Lock()
		avail := a.ring.Length()
		want := min(avail, max(maxSamples*bytesPerSample, frameBytes))
		want -= want % frameBytes
		var n int
		if want > 0 {
			if cap(a.scratch) < want {
				a.scratch = make([]byte, want)
			}
			n, _ = a.ring.Read(a.scratch[:want])
		}
		a.mu.Unlock()

		if n > 0 {
			a.samples = audiocore.S16LEToFloat32(a.samples, a.scratch[:n])
			out := make([]float32, len(a.samples))
			copy(out, a.samples)
			return audiocore.Chunk{Samples: out, Timestamp: time.Now()}, nil
		}

		select {
		case <-a.notify:
		case <-a.stopped:
			return audiocore.Chunk{}, audiocore.Transient(errors.Newf("capture device stopped").
				Component("audiocore").
				Category(errors.CategoryDevice).
				Context("source_id", a.config.ID).
				Build())
		case <-ctx.Done():
			return audiocore.Chunk{}, ctx.Err()
		}
	}
}

// Overruns returns how many callbacks found the hand-off ring full.
func (a *Adapter) Overruns() uint64 {
	return a.overruns.Load()
}

// Close stops the device and releases the malgo context.
func (a *Adapter) Close() error {
	a.closeOnce.Do(func() {
		a.closing.Store(true)
		if a.device != nil {
			_ = a.device.Stop()
			a.device.Uninit()
			a.device = nil
		}
		a.releaseContext()
		a.stop.Do(func() { close(a.stopped) })
	})
	return nil
}

func (a *Adapter) releaseContext() {
	if a.malgoCtx == nil {
		return
	}
	_ = a.malgoCtx.Uninit()
	a.malgoCtx.Free()
	a.malgoCtx = nil
}
