// Package registry owns the audio sources: their configuration, lifecycle
// state, ring buffers and capture goroutines.
package registry

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/eas-monitor/internal/audiocore"
	"github.com/tphakala/eas-monitor/internal/audiocore/buffer"
	"github.com/tphakala/eas-monitor/internal/audiocore/processors"
	"github.com/tphakala/eas-monitor/internal/audiocore/sources"
	"github.com/tphakala/eas-monitor/internal/conf"
	"github.com/tphakala/eas-monitor/internal/errors"
	"github.com/tphakala/eas-monitor/internal/health"
	"github.com/tphakala/eas-monitor/internal/logging"
)

// Observer receives source status changes and capture volume.
type Observer interface {
	SourceStatusChanged(sourceID, status, lastError string)
	SamplesCaptured(sourceID string, n int)
	SourceRemoved(sourceID string)
}

// Config holds registry wide settings.
type Config struct {
	BufferDuration time.Duration
	SampleRate     int // canonical rate buffers are filled at
	Backoff        conf.BackoffSettings
}

// Option customizes a Registry.
type Option func(*Registry)

// WithFactory replaces the adapter factory.
func WithFactory(f sources.Factory) Option {
	return func(r *Registry) { r.factory = f }
}

// WithObserver registers the status observer, typically the health tracker.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// Source is a point in time view of a registered source.
type Source struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Type       conf.SourceType `json:"type"`
	Priority   int             `json:"priority"`
	Enabled    bool            `json:"enabled"`
	AutoStart  bool            `json:"autostart"`
	State      State           `json:"state"`
	LastError  string          `json:"last_error,omitempty"`
	SampleRate int             `json:"sample_rate"` // native rate, 0 until first open
	Channels   int             `json:"channels"`
	Gain       float64         `json:"gain"`
	Reconnects int             `json:"reconnects"`
	LastWrite  time.Time       `json:"last_write"`
	Buffered   time.Duration   `json:"buffered"`
	History    []Transition    `json:"history"`
}

// Target is a running source as seen by the scanner.
type Target struct {
	ID       string
	Priority int
	Buffer   *buffer.RingBuffer
}

type entry struct {
	cfg    conf.SourceConfig
	buffer *buffer.RingBuffer
	gain   *processors.Gain

	mu           sync.Mutex
	state        State
	lastError    string
	history      []Transition
	format       audiocore.Format
	reconnects   int
	runningSince time.Time
	cancel       context.CancelFunc
	done         chan struct{} // closed when the capture task exits
}

// Registry manages the set of audio sources.
type Registry struct {
	config   Config
	factory  sources.Factory
	observer Observer
	logger   *slog.Logger

	mu      sync.RWMutex
	sources map[string]*entry
}

// New creates an empty registry.
func New(cfg Config, opts ...Option) *Registry {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audiocore.CanonicalSampleRate
	}
	logger := logging.ForService("audiocore")
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		config:  cfg,
		factory: sources.New,
		logger:  logger.With("component", "registry"),
		sources: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers a source and returns its id, generating one when cfg has
// none. The source starts in the stopped state.
func (r *Registry) Add(cfg conf.SourceConfig) (string, error) {
	cfg = cfg.Normalized()
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()[:8]
	}
	if err := conf.ValidateSource(&cfg); err != nil {
		return "", errors.New(audiocore.ErrInvalidSourceConfig).
			Component(audiocore.ComponentAudioCore).
			Context("source_id", cfg.ID).
			Context("reason", err.Error()).
			Build()
	}

	buf, err := buffer.New(r.config.BufferDuration, r.config.SampleRate)
	if err != nil {
		return "", err
	}
	gain, err := processors.NewGain(cfg.Gain)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[cfg.ID]; exists {
		return "", errors.New(audiocore.ErrDuplicateSource).
			Component(audiocore.ComponentAudioCore).
			Context("source_id", cfg.ID).
			Build()
	}
	r.sources[cfg.ID] = &entry{cfg: cfg, buffer: buf, gain: gain, state: StateStopped}

	r.logger.Info("source added",
		"source_id", cfg.ID,
		"source_type", cfg.Type,
		"priority", cfg.Priority)
	r.notify(cfg.ID, StateStopped, "")
	return cfg.ID, nil
}

// Remove stops and unregisters a source.
func (r *Registry) Remove(id string) error {
	if err := r.Stop(id); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.sources, id)
	r.mu.Unlock()
	if r.observer != nil {
		r.observer.SourceRemoved(id)
	}
	r.logger.Info("source removed", "source_id", id)
	return nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sources[id]
	if !ok {
		return nil, errors.New(audiocore.ErrSourceNotFound).
			Component(audiocore.ComponentAudioCore).
			Context("source_id", id).
			Build()
	}
	return e, nil
}

// Start opens the source's adapter and launches its capture task. It
// returns ErrAlreadyRunning when a task already exists for id and the
// adapter's error when opening fails, leaving the source in error.
func (r *Registry) Start(ctx context.Context, id string) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	if !e.cfg.Enabled {
		return errors.Newf("source %s is disabled", id).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryState).
			Context("source_id", id).
			Build()
	}

	// the capture task outlives the caller's request
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	e.mu.Lock()
	if e.state.active() {
		e.mu.Unlock()
		cancel()
		return errors.New(audiocore.ErrAlreadyRunning).
			Component(audiocore.ComponentAudioCore).
			Context("source_id", id).
			Context("state", string(e.state)).
			Build()
	}
	r.transitionLocked(e, StateStarting, "start requested")
	e.lastError = ""
	e.reconnects = 0
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	adapter, err := r.open(runCtx, e)
	if err != nil {
		e.mu.Lock()
		if runCtx.Err() != nil {
			r.transitionLocked(e, StateStopped, "stopped while starting")
		} else {
			e.lastError = err.Error()
			r.transitionLocked(e, StateError, err.Error())
		}
		e.cancel = nil
		e.mu.Unlock()
		cancel()
		close(done)
		r.logger.Error("failed to start source", "source_id", id, "error", err)
		return err
	}

	e.mu.Lock()
	r.transitionLocked(e, StateRunning, "adapter opened")
	e.mu.Unlock()

	go r.run(runCtx, e, adapter, done)
	return nil
}

// open builds and opens an adapter, recording its native format.
func (r *Registry) open(ctx context.Context, e *entry) (audiocore.Adapter, error) {
	adapter, err := r.factory(e.cfg)
	if err != nil {
		return nil, audiocore.Fatal(err)
	}
	if err := adapter.Open(ctx); err != nil {
		_ = adapter.Close()
		return nil, err
	}

	format := adapter.Format()
	if format.SampleRate <= 0 || format.Channels <= 0 {
		_ = adapter.Close()
		return nil, audiocore.Fatal(errors.New(audiocore.ErrInvalidAudioFormat).
			Component(audiocore.ComponentAudioCore).
			Context("source_id", e.cfg.ID).
			Context("sample_rate", format.SampleRate).
			Context("channels", format.Channels).
			Build())
	}

	e.mu.Lock()
	e.format = format
	e.mu.Unlock()
	return adapter, nil
}

// Stop cancels the source's capture task and waits for it to exit.
// Stopping a stopped source is a no-op.
func (r *Registry) Stop(id string) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	cancel, done := e.cancel, e.done
	if cancel == nil {
		// no task, only error needs resetting
		if e.state == StateError {
			r.transitionLocked(e, StateStopped, "stop requested")
		}
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(audiocore.StopTimeout):
		return errors.Newf("timed out waiting for source %s to stop", id).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryTimeout).
			Context("source_id", id).
			Build()
	}

	e.mu.Lock()
	if e.state == StateError {
		r.transitionLocked(e, StateStopped, "stop requested")
	}
	e.mu.Unlock()
	return nil
}

// Restart stops and starts a source, clearing an error state.
func (r *Registry) Restart(ctx context.Context, id string) error {
	if err := r.Stop(id); err != nil {
		return err
	}
	return r.Start(ctx, id)
}

// StartAll starts every enabled autostart source. Failures are logged and
// joined into the returned error, other sources still start.
func (r *Registry) StartAll(ctx context.Context) error {
	var errs []error
	for _, s := range r.List() {
		if !s.Enabled || !s.AutoStart {
			continue
		}
		if err := r.Start(ctx, s.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops every source.
func (r *Registry) Close() error {
	var errs []error
	for _, s := range r.List() {
		if err := r.Stop(s.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetGain changes the input gain of a source. A running source picks the
// new factor up with its next chunk.
func (r *Registry) SetGain(id string, gain float64) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	if err := e.gain.Set(gain); err != nil {
		return err
	}
	r.logger.Info("source gain changed", "source_id", id, "gain", gain)
	return nil
}

// Get returns a snapshot of one source.
func (r *Registry) Get(id string) (Source, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Source{}, err
	}
	return e.snapshot(), nil
}

// List returns snapshots of all sources ordered by priority, then id.
func (r *Registry) List() []Source {
	r.mu.RLock()
	out := make([]Source, 0, len(r.sources))
	for _, e := range r.sources {
		out = append(out, e.snapshot())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Source) int {
		return cmp.Or(cmp.Compare(a.Priority, b.Priority), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// BestActiveSource returns the running source with the lowest priority
// number.
func (r *Registry) BestActiveSource() (string, bool) {
	for _, s := range r.List() {
		if s.State == StateRunning {
			return s.ID, true
		}
	}
	return "", false
}

// RunningTargets returns the running sources in priority order.
func (r *Registry) RunningTargets() []Target {
	r.mu.RLock()
	targets := make([]Target, 0, len(r.sources))
	for _, e := range r.sources {
		e.mu.Lock()
		running := e.state == StateRunning
		e.mu.Unlock()
		if running {
			targets = append(targets, Target{ID: e.cfg.ID, Priority: e.cfg.Priority, Buffer: e.buffer})
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(targets, func(a, b Target) int {
		return cmp.Or(cmp.Compare(a.Priority, b.Priority), cmp.Compare(a.ID, b.ID))
	})
	return targets
}

// Activity reports buffer write times for silence detection.
func (r *Registry) Activity() []health.Activity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]health.Activity, 0, len(r.sources))
	for _, e := range r.sources {
		e.mu.Lock()
		a := health.Activity{
			SourceID:  e.cfg.ID,
			Running:   e.state == StateRunning,
			Since:     e.runningSince,
			LastWrite: e.buffer.LastWrite(),
		}
		e.mu.Unlock()
		out = append(out, a)
	}
	return out
}

func (e *entry) snapshot() Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Source{
		ID:         e.cfg.ID,
		Name:       e.cfg.Name,
		Type:       e.cfg.Type,
		Priority:   e.cfg.Priority,
		Enabled:    e.cfg.Enabled,
		AutoStart:  e.cfg.AutoStart,
		State:      e.state,
		LastError:  e.lastError,
		SampleRate: e.format.SampleRate,
		Channels:   e.format.Channels,
		Gain:       e.gain.Value(),
		Reconnects: e.reconnects,
		LastWrite:  e.buffer.LastWrite(),
		Buffered:   time.Duration(e.buffer.Len()) * time.Second / time.Duration(e.buffer.SampleRate()),
		History:    slices.Clone(e.history),
	}
}

// transitionLocked moves e to state to. Invalid transitions are logged and
// ignored. The caller holds e.mu.
func (r *Registry) transitionLocked(e *entry, to State, reason string) bool {
	from := e.state
	if from == to {
		return true
	}
	if !isValidTransition(from, to) {
		r.logger.Warn("invalid state transition ignored",
			"source_id", e.cfg.ID,
			"from", from,
			"to", to,
			"reason", reason)
		return false
	}

	e.state = to
	now := time.Now()
	if to == StateRunning {
		e.runningSince = now
	}
	e.history = append(e.history, Transition{From: from, To: to, At: now, Reason: reason})
	if len(e.history) > audiocore.MaxStateHistory {
		e.history = slices.Clone(e.history[len(e.history)-audiocore.MaxStateHistory:])
	}

	r.logger.Info("source state changed",
		"source_id", e.cfg.ID,
		"from", from,
		"to", to,
		"reason", reason)
	lastErr := ""
	if to == StateError {
		lastErr = e.lastError
	}
	r.notify(e.cfg.ID, to, lastErr)
	return true
}

func (r *Registry) notify(id string, state State, lastError string) {
	if r.observer != nil {
		r.observer.SourceStatusChanged(id, string(state), lastError)
	}
}
