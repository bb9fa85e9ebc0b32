package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/eas-monitor/internal/errors"
	"github.com/tphakala/eas-monitor/internal/logging"
	"github.com/tphakala/eas-monitor/internal/observability/metrics"
	"github.com/tphakala/eas-monitor/internal/same"
)

const (
	DefaultQueueSize       = 64
	DefaultDedupWindow     = 5 * time.Minute
	DefaultDeliveryTimeout = 15 * time.Second

	// Drop reasons reported to metrics.
	DropQueueFull = "queue_full"
	DropStopped   = "stopped"

	componentAlert = "alert"
)

// Sink delivers alerts to one destination. Deliver is called from the
// emitter worker only, never concurrently for the same alert.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, a Alert) error
	Close() error
}

// Config tunes the emitter.
type Config struct {
	QueueSize       int           // pending alerts before new ones are dropped
	DedupWindow     time.Duration // identical headers inside the window are emitted once, 0 disables
	DeliveryTimeout time.Duration // per sink, per alert
	Monitor         string        // station name stamped on every alert
}

// Emitter accepts alerts from the scanner and delivers them to sinks on a
// background worker. Emit never blocks; a full queue drops the alert.
type Emitter struct {
	cfg     Config
	sinks   []Sink
	metrics *metrics.AlertMetrics
	logger  *slog.Logger
	now     func() time.Time

	seen *cache.Cache

	queue chan Alert

	mu      sync.RWMutex
	closed  bool
	started bool
	done    chan struct{}
	stop    sync.Once
}

// Option customizes an Emitter.
type Option func(*Emitter)

// WithMetrics records emission and delivery counters to m.
func WithMetrics(m *metrics.AlertMetrics) Option {
	return func(e *Emitter) { e.metrics = m }
}

// WithClock replaces time.Now for alert timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Emitter) { e.now = now }
}

// NewEmitter creates an emitter delivering to sinks. Call Start before
// alerts are expected to flow.
func NewEmitter(cfg Config, sinks []Sink, opts ...Option) *Emitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = DefaultDeliveryTimeout
	}

	e := &Emitter{
		cfg:    cfg,
		sinks:  sinks,
		now:    time.Now,
		queue:  make(chan Alert, cfg.QueueSize),
		done:   make(chan struct{}),
		logger: serviceLogger(),
	}
	if cfg.DedupWindow > 0 {
		e.seen = cache.New(cfg.DedupWindow, cfg.DedupWindow)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func serviceLogger() *slog.Logger {
	logger := logging.ForService(componentAlert)
	if logger == nil {
		logger = slog.Default().With("service", componentAlert)
	}
	return logger
}

// Sinks returns the names of the configured sinks.
func (e *Emitter) Sinks() []string {
	names := make([]string, 0, len(e.sinks))
	for _, s := range e.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Start launches the delivery worker. It is a no-op after the first call.
// Cancelling ctx does not abort queued deliveries; Stop drains the queue.
func (e *Emitter) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.closed {
		return
	}
	e.started = true

	go e.run(context.WithoutCancel(ctx))
}

// Emit queues a decoded message received on sourceID.
func (e *Emitter) Emit(msg same.Message, sourceID string) {
	if e.seen != nil {
		// Add fails while the key is still cached.
		if err := e.seen.Add(msg.Raw, sourceID, cache.DefaultExpiration); err != nil {
			e.logger.Debug("duplicate alert suppressed",
				"source_id", sourceID,
				"header", msg.Raw)
			if e.metrics != nil {
				e.metrics.RecordSuppressed()
			}
			return
		}
	}

	m := msg
	e.enqueue(Alert{Kind: KindAlert, SourceID: sourceID, Message: &m})
}

// EmitEOM queues an end of message marker received on sourceID. Markers are
// not deduplicated across sources.
func (e *Emitter) EmitEOM(sourceID string) {
	e.enqueue(Alert{Kind: KindEOM, SourceID: sourceID})
}

func (e *Emitter) enqueue(a Alert) {
	a.ID = uuid.NewString()
	a.Monitor = e.cfg.Monitor
	a.Received = e.now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.drop(a, DropStopped)
		return
	}

	select {
	case e.queue <- a:
		if e.metrics != nil {
			e.metrics.SetQueueDepth(len(e.queue))
		}
	default:
		// A later repeat of a dropped header must not be suppressed.
		if a.Kind == KindAlert && e.seen != nil {
			e.seen.Delete(a.Message.Raw)
		}
		e.drop(a, DropQueueFull)
	}
}

// drop logs the complete header so an operator can act on a lost alert.
func (e *Emitter) drop(a Alert, reason string) {
	e.logger.Error("alert dropped",
		"reason", reason,
		"source_id", a.SourceID,
		"kind", a.Kind,
		"header", a.Header())
	if e.metrics != nil {
		e.metrics.RecordDropped(reason)
	}
}

func (e *Emitter) run(ctx context.Context) {
	defer close(e.done)
	for a := range e.queue {
		if e.metrics != nil {
			e.metrics.SetQueueDepth(len(e.queue))
		}
		e.deliver(ctx, a)
	}
}

// deliver fans a out to every sink in parallel and waits for all of them.
func (e *Emitter) deliver(ctx context.Context, a Alert) {
	if a.Kind == KindAlert {
		e.logger.Info("alert received",
			"source_id", a.SourceID,
			"event", a.Event(),
			"originator", a.Message.Originator,
			"confidence", a.Message.Confidence,
			"header", a.Header())
	} else {
		e.logger.Info("end of message received", "source_id", a.SourceID)
	}

	var wg sync.WaitGroup
	for _, s := range e.sinks {
		wg.Go(func() {
			e.deliverTo(ctx, s, a)
		})
	}
	wg.Wait()

	if e.metrics != nil {
		e.metrics.RecordEmitted(a.Event(), string(a.Kind))
	}
}

func (e *Emitter) deliverTo(ctx context.Context, s Sink, a Alert) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.DeliveryTimeout)
	defer cancel()

	start := time.Now()
	err := safeDeliver(ctx, s, a)
	if e.metrics != nil {
		e.metrics.RecordDelivery(s.Name(), err, time.Since(start))
	}
	if err == nil {
		return
	}

	enhanced := errors.New(err).
		Component(componentAlert).
		Category(errors.CategoryBroadcast).
		Context("sink", s.Name()).
		Context("alert_kind", string(a.Kind)).
		Context("event", a.Event()).
		Build()
	e.logger.Error("alert delivery failed",
		"sink", s.Name(),
		"source_id", a.SourceID,
		"header", a.Header(),
		"error", enhanced)
}

// safeDeliver isolates the emitter from a panicking sink.
func safeDeliver(ctx context.Context, s Sink, a Alert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Deliver(ctx, a)
}

// Stop refuses new alerts, delivers what is queued and closes every sink.
// It is safe to call more than once.
func (e *Emitter) Stop() {
	e.stop.Do(func() {
		e.mu.Lock()
		e.closed = true
		started := e.started
		close(e.queue)
		e.mu.Unlock()

		if started {
			<-e.done
		} else {
			for a := range e.queue {
				e.drop(a, DropStopped)
			}
		}

		for _, s := range e.sinks {
			if err := s.Close(); err != nil {
				e.logger.Warn("failed to close alert sink", "sink", s.Name(), "error", err)
			}
		}
		if e.seen != nil {
			e.seen.Flush()
		}
	})
}
