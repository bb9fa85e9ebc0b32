// Package file replays WAV and FLAC files as an audio source, optionally
// looping and paced at the native sample rate.
package file

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/tphakala/eas-monitor/internal/audiocore"
	"github.com/tphakala/eas-monitor/internal/errors"
	"github.com/tphakala/eas-monitor/internal/logging"
)

// Config configures a file adapter.
type Config struct {
	ID       string
	Path     string
	Loop     bool // rewind at end of file instead of returning io.EOF
	Realtime bool // deliver audio no faster than the native rate
}

// Adapter implements audiocore.Adapter for a local audio file.
type Adapter struct {
	config Config
	logger *slog.Logger

	file    *os.File
	decoder pcmDecoder
	format  audiocore.Format

	passSamples int       // samples delivered in the current pass
	paceStart   time.Time // start of real-time pacing
	paced       int64     // frames delivered since paceStart
}

// New creates a file adapter.
func New(cfg Config) *Adapter {
	logger := logging.ForService("audiocore")
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		config: cfg,
		logger: logger.With("component", "file", "source_id", cfg.ID),
	}
}

// Open opens and validates the file. Every failure is fatal since retrying
// will not change the file.
func (a *Adapter) Open(_ context.Context) error {
	if err := a.open(); err != nil {
		return audiocore.Fatal(err)
	}
	a.logger.Info("audio file opened",
		"path", a.config.Path,
		"format", describeFormat(a.format),
		"loop", a.config.Loop,
		"realtime", a.config.Realtime)
	return nil
}

func (a *Adapter) open() error {
	f, err := os.Open(a.config.Path)
	if err != nil {
		return errors.New(err).
			Component("audiocore").
			Category(errors.CategoryFileIO).
			Context("operation", "open_file").
			Context("path", a.config.Path).
			Build()
	}

	dec, err := openDecoder(f)
	if err != nil {
		_ = f.Close()
		return err
	}
	format := dec.format()
	if format.SampleRate <= 0 || format.Channels <= 0 {
		_ = f.Close()
		return errors.New(audiocore.ErrInvalidAudioFormat).
			Context("path", a.config.Path).
			Context("sample_rate", format.SampleRate).
			Context("channels", format.Channels).
			Build()
	}
	if a.decoder != nil && format != a.format {
		_ = f.Close()
		return errors.Newf("audio format changed between passes").
			Component("audiocore").
			Category(errors.CategoryAudioSource).
			Context("path", a.config.Path).
			Build()
	}

	a.file = f
	a.decoder = dec
	a.format = format
	a.passSamples = 0
	return nil
}

// Format returns the file's native format.
func (a *Adapter) Format() audiocore.Format {
	return a.format
}

// Pull decodes up to maxSamples interleaved samples.
func (a *Adapter) Pull(ctx context.Context, maxSamples int) (audiocore.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return audiocore.Chunk{}, err
	}
	if a.decoder == nil {
		return audiocore.Chunk{}, audiocore.Fatal(errors.Newf("file adapter not open").
			Component("audiocore").
			Category(errors.CategoryState).
			Context("source_id", a.config.ID).
			Build())
	}
	if maxSamples <= 0 {
		maxSamples = audiocore.DefaultPullSize
	}
	maxSamples = max(maxSamples-maxSamples%a.format.Channels, a.format.Channels)

	buf := make([]float32, maxSamples)
	n, err := a.decoder.read(buf)
	for err == io.EOF && n == 0 {
		if !a.config.Loop || a.passSamples == 0 {
			return audiocore.Chunk{}, io.EOF
		}
		if rerr := a.rewind(); rerr != nil {
			return audiocore.Chunk{}, audiocore.Fatal(rerr)
		}
		n, err = a.decoder.read(buf)
	}
	if err != nil && err != io.EOF {
		return audiocore.Chunk{}, audiocore.Fatal(errors.New(err).
			Component("audiocore").
			Category(errors.CategoryAudioSource).
			Context("operation", "decode_file").
			Context("path", a.config.Path).
			Build())
	}
	a.passSamples += n

	if a.config.Realtime {
		if err := a.pace(ctx, n/a.format.Channels); err != nil {
			return audiocore.Chunk{}, err
		}
	}
	return audiocore.Chunk{Samples: buf[:n], Timestamp: time.Now()}, nil
}

// rewind reopens the file for the next loop pass.
func (a *Adapter) rewind() error {
	if a.file != nil {
		_ = a.file.Close()
		a.file = nil
	}
	a.logger.Debug("rewinding audio file")
	return a.open()
}

// pace sleeps until frames worth of audio would have played.
func (a *Adapter) pace(ctx context.Context, frames int) error {
	if a.paceStart.IsZero() {
		a.paceStart = time.Now()
	}
	a.paced += int64(frames)
	due := a.paceStart.Add(time.Duration(a.paced) * time.Second / time.Duration(a.format.SampleRate))
	wait := time.Until(due)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the file.
func (a *Adapter) Close() error {
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	a.decoder = nil
	return err
}
