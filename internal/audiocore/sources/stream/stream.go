// Package stream captures network audio by running ffmpeg and reading raw
// PCM from its stdout.
package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/eas-monitor/internal/audiocore"
	"github.com/tphakala/eas-monitor/internal/errors"
	"github.com/tphakala/eas-monitor/internal/logging"
)

const (
	bytesPerSample = 2
	readBufferSize = 8192
	stopTimeout    = 5 * time.Second
)

// Config configures a stream adapter.
type Config struct {
	ID         string
	URL        string
	FFmpegPath string
	Transport  string // rtsp transport, tcp or udp
	SampleRate int    // rate ffmpeg resamples to
	Channels   int
	ExtraArgs  []string
}

// Adapter implements audiocore.Adapter on top of an ffmpeg subprocess.
type Adapter struct {
	config Config
	logger *slog.Logger

	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
	cancel context.CancelFunc

	pcm     chan []byte
	exitErr chan error // receives the process exit status once
	pending []byte     // unconsumed tail of the last pcm block

	lastStderr atomic.Value // string
	running    atomic.Bool
	openOnce   sync.Once
	closeOnce  sync.Once
	openErr    error
	wg         sync.WaitGroup
	scratch    []float32
}

// New creates a stream adapter. The process is started by Open.
func New(cfg Config) *Adapter {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audiocore.CanonicalSampleRate
	}

	logger := logging.ForService("audiocore")
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		config:  cfg,
		logger:  logger.With("component", "stream", "source_id", cfg.ID),
		pcm:     make(chan []byte, 32),
		exitErr: make(chan error, 1),
	}
}

// Format returns the rate and channel count ffmpeg is asked to produce.
func (a *Adapter) Format() audiocore.Format {
	return audiocore.Format{SampleRate: a.config.SampleRate, Channels: a.config.Channels}
}

// Args returns the ffmpeg argument list.
func (a *Adapter) Args() []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
	}

	if isRTSPURL(a.config.URL) {
		transport := a.config.Transport
		if transport == "" {
			transport = "tcp"
		}
		args = append(args, "-rtsp_transport", transport)
	} else if strings.HasPrefix(a.config.URL, "http://") || strings.HasPrefix(a.config.URL, "https://") {
		args = append(args, "-reconnect", "1", "-reconnect_streamed", "1")
	}

	args = append(args, "-i", a.config.URL, "-vn")
	args = append(args, a.config.ExtraArgs...)
	args = append(args,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(a.config.SampleRate),
		"-ac", strconv.Itoa(a.config.Channels),
		"pipe:1",
	)
	return args
}

// Open starts ffmpeg. A missing binary is fatal, the process lifetime is
// bound to ctx.
func (a *Adapter) Open(ctx context.Context) error {
	a.openOnce.Do(func() {
		a.openErr = a.open(ctx)
	})
	return a.openErr
}

func (a *Adapter) open(ctx context.Context) error {
	startTime := time.Now()

	path, err := exec.LookPath(a.config.FFmpegPath)
	if err != nil {
		return audiocore.Fatal(errors.New(err).
			Component("audiocore").
			Category(errors.CategoryConfiguration).
			Context("operation", "lookup-ffmpeg").
			Context("source_id", a.config.ID).
			Context("command", a.config.FFmpegPath).
			Build())
	}

	procCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.cmd = exec.CommandContext(procCtx, path, a.Args()...)

	a.stdout, err = a.cmd.StdoutPipe()
	if err != nil {
		cancel()
		return audiocore.Fatal(errors.New(err).
			Component("audiocore").
			Category(errors.CategorySystem).
			Context("operation", "create-stdout-pipe").
			Context("source_id", a.config.ID).
			Build())
	}
	a.stderr, err = a.cmd.StderrPipe()
	if err != nil {
		cancel()
		return audiocore.Fatal(errors.New(err).
			Component("audiocore").
			Category(errors.CategorySystem).
			Context("operation", "create-stderr-pipe").
			Context("source_id", a.config.ID).
			Build())
	}

	if err := a.cmd.Start(); err != nil {
		cancel()
		return audiocore.Transient(errors.New(err).
			Component("audiocore").
			Category(errors.CategoryCommandExecution).
			Context("operation", "start-ffmpeg").
			Context("source_id", a.config.ID).
			Build())
	}
	a.running.Store(true)

	a.logger.Info("ffmpeg process started",
		"pid", a.cmd.Process.Pid,
		"url", errors.ScrubMessage(a.config.URL),
		"sample_rate", a.config.SampleRate,
		"channels", a.config.Channels,
		"startup_duration_ms", time.Since(startTime).Milliseconds())

	a.wg.Add(2)
	go a.readStdout(procCtx)
	go a.drainStderr()
	return nil
}

// readStdout forwards PCM blocks and reports the exit status when the
// process closes its output.
func (a *Adapter) readStdout(ctx context.Context) {
	defer a.wg.Done()

	buf := make([]byte, readBufferSize)
	for {
		n, err := a.stdout.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case a.pcm <- data:
			case <-ctx.Done():
				// the process is being killed, reap it
				_ = a.cmd.Wait()
				a.running.Store(false)
				return
			}
		}
		if err != nil {
			waitErr := a.cmd.Wait()
			a.running.Store(false)
			a.exitErr <- a.exitError(waitErr)
			return
		}
	}
}

func (a *Adapter) exitError(waitErr error) error {
	msg := "ffmpeg exited"
	if waitErr != nil {
		msg = fmt.Sprintf("ffmpeg exited: %v", waitErr)
	}
	if last, ok := a.lastStderr.Load().(string); ok && last != "" {
		msg += ": " + last
	}
	return audiocore.Transient(errors.Newf("%s", errors.ScrubMessage(msg)).
		Component("audiocore").
		Category(errors.CategoryAudioSource).
		Context("operation", "read-audio").
		Context("source_id", a.config.ID).
		Build())
}

// drainStderr keeps ffmpeg from blocking on a full stderr pipe and keeps
// the last line for error reports.
func (a *Adapter) drainStderr() {
	defer a.wg.Done()

	scanner := bufio.NewScanner(a.stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		a.lastStderr.Store(line)
		a.logger.Debug("ffmpeg stderr output", "message", errors.ScrubMessage(line))
	}
}

// Pull returns the next block of PCM converted to float32.
func (a *Adapter) Pull(ctx context.Context, maxSamples int) (audiocore.Chunk, error) {
	frameBytes := bytesPerSample * a.config.Channels
	if maxSamples <= 0 {
		maxSamples = audiocore.DefaultPullSize
	}
	maxBytes := maxSamples * bytesPerSample

	for len(a.pending) < frameBytes {
		data, err := a.next(ctx)
		if err != nil {
			a.pending = nil
			return audiocore.Chunk{}, err
		}
		a.pending = append(a.pending, data...)
	}

	take := min(len(a.pending), max(maxBytes, frameBytes))
	take -= take % frameBytes

	a.scratch = audiocore.S16LEToFloat32(a.scratch, a.pending[:take])
	a.pending = a.pending[take:]

	samples := make([]float32, len(a.scratch))
	copy(samples, a.scratch)
	return audiocore.Chunk{Samples: samples, Timestamp: time.Now()}, nil
}

// next returns the next PCM block. Audio queued before the process exited
// is delivered before the exit error, which stays pending for later calls.
func (a *Adapter) next(ctx context.Context) ([]byte, error) {
	select {
	case data := <-a.pcm:
		return data, nil
	case err := <-a.exitErr:
		a.exitErr <- err
		select {
		case data := <-a.pcm:
			return data, nil
		default:
			return nil, err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops ffmpeg and waits for the reader goroutines.
func (a *Adapter) Close() error {
	a.closeOnce.Do(func() {
		if a.cancel == nil {
			return
		}
		a.cancel()

		done := make(chan struct{})
		go func() {
			a.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(stopTimeout):
			if a.cmd != nil && a.cmd.Process != nil {
				_ = a.cmd.Process.Kill()
			}
			a.logger.Warn("ffmpeg process did not exit in time, killed")
			<-done
		}
		a.running.Store(false)
		a.logger.Info("ffmpeg process stopped")
	})
	return nil
}

// Running reports whether the ffmpeg process is alive.
func (a *Adapter) Running() bool {
	return a.running.Load()
}

func isRTSPURL(url string) bool {
	return strings.HasPrefix(url, "rtsp://") || strings.HasPrefix(url, "rtsps://")
}
