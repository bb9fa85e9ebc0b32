package registry

import (
	"context"
	"fmt"
	"io"

	"github.com/tphakala/eas-monitor/internal/audiocore"
	"github.com/tphakala/eas-monitor/internal/audiocore/resample"
	"github.com/tphakala/eas-monitor/internal/errors"
)

// run is the capture task of one source. It owns the adapter, writes to
// the ring buffer and reconnects after transient faults until ctx ends, a
// fatal fault occurs or the reconnect budget is spent.
func (r *Registry) run(ctx context.Context, e *entry, adapter audiocore.Adapter, done chan struct{}) {
	id := e.cfg.ID
	logger := r.logger.With("source_id", id)

	final, reason := StateStopped, "stop requested"
	defer func() {
		e.mu.Lock()
		if final == StateError {
			e.lastError = reason
		}
		r.transitionLocked(e, final, reason)
		e.cancel = nil
		e.mu.Unlock()
		close(done)
	}()

	failures := 0
	for {
		produced, err := r.capture(ctx, e, adapter)
		_ = adapter.Close()
		if produced {
			failures = 0
		}

		switch {
		case ctx.Err() != nil:
			return
		case errors.Is(err, io.EOF):
			final, reason = StateStopped, "end of stream"
			return
		case audiocore.IsFatal(err):
			final, reason = StateError, err.Error()
			return
		}

		// everything else is treated as transient
		logger.Warn("source disconnected", "error", err)
		e.mu.Lock()
		e.lastError = err.Error()
		r.transitionLocked(e, StateDisconnected, err.Error())
		e.mu.Unlock()

		adapter = nil
		for adapter == nil {
			failures++
			if limit := r.config.Backoff.MaxRetries; limit > 0 && failures > limit {
				final, reason = StateError, fmt.Sprintf("giving up after %d reconnect attempts: %v", limit, err)
				return
			}

			base := backoffDelay(r.config.Backoff, failures-1)
			wait := withJitter(base)
			logger.Info("waiting before reconnect",
				"attempt", failures,
				"backoff_ms", base.Milliseconds(),
				"wait_ms", wait.Milliseconds())
			if !sleepCtx(ctx, wait) {
				return
			}

			e.mu.Lock()
			e.reconnects++
			r.transitionLocked(e, StateStarting, fmt.Sprintf("reconnect attempt %d", failures))
			e.mu.Unlock()

			var openErr error
			adapter, openErr = r.open(ctx, e)
			if openErr == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			if audiocore.IsFatal(openErr) {
				final, reason = StateError, openErr.Error()
				return
			}
			err = openErr
			logger.Warn("reconnect failed", "attempt", failures, "error", openErr)
			e.mu.Lock()
			e.lastError = openErr.Error()
			r.transitionLocked(e, StateDisconnected, openErr.Error())
			e.mu.Unlock()
		}

		e.mu.Lock()
		r.transitionLocked(e, StateRunning, "reconnected")
		e.mu.Unlock()
		logger.Info("source reconnected", "attempts", failures)
	}
}

// capture pulls from adapter until it fails, downmixing and resampling
// into the ring buffer. It reports whether any audio was written.
func (r *Registry) capture(ctx context.Context, e *entry, adapter audiocore.Adapter) (bool, error) {
	format := adapter.Format()
	rs := resample.NewStream(format.SampleRate, r.config.SampleRate)
	produced := false

	for {
		chunk, err := adapter.Pull(ctx, audiocore.DefaultPullSize)
		if len(chunk.Samples) > 0 {
			mono := resample.Downmix(chunk.Samples, format.Channels)
			out := rs.Process(mono)
			e.gain.Apply(out)
			e.buffer.Write(out)
			produced = true
			if r.observer != nil {
				r.observer.SamplesCaptured(e.cfg.ID, len(out))
			}
		}
		if err != nil {
			return produced, err
		}
	}
}
