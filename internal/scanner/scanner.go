// Package scanner periodically snapshots every running source and decodes
// SAME bursts from the snapshots under a global concurrency ceiling.
package scanner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/tphakala/eas-monitor/internal/audiocore/precheck"
	"github.com/tphakala/eas-monitor/internal/audiocore/registry"
	"github.com/tphakala/eas-monitor/internal/health"
	"github.com/tphakala/eas-monitor/internal/logging"
	"github.com/tphakala/eas-monitor/internal/same"
)

const (
	DefaultScanInterval = 2 * time.Second

	// decode error log lines allowed per second, with a small burst
	errorLogRate  = 0.2
	errorLogBurst = 3
)

// Config holds the scanner tunables.
type Config struct {
	ScanInterval       time.Duration
	BufferDuration     time.Duration // ring buffer length, bounds how long one burst set stays visible
	MaxConcurrentScans int

	// Precheck filters snapshots before decoding. Nil decodes every
	// snapshot.
	Precheck *precheck.Filter
}

// Targets lists the sources to scan, implemented by the source registry.
type Targets interface {
	RunningTargets() []registry.Target
}

// Decoder decodes one snapshot.
type Decoder interface {
	Decode(pcm []float32) same.Result
}

// Emitter receives decoded messages. Both calls must not block.
type Emitter interface {
	Emit(msg same.Message, sourceID string)
	EmitEOM(sourceID string)
}

// Recorder receives scan accounting, implemented by health.Tracker.
type Recorder interface {
	SetConcurrencyLimit(n int)
	ScanStarted()
	ScanFinished(d time.Duration)
	ScanSkipped(sourceID, reason string)
	ScanFiltered(sourceID string)
	DecodeError(sourceID string)
	MessageDecoded(sourceID, confidence string)
}

// Scanner drives periodic decoding.
type Scanner struct {
	cfg      Config
	targets  Targets
	decoder  Decoder
	emitter  Emitter
	recorder Recorder
	log      *slog.Logger

	sem        *semaphore.Weighted
	errLimiter *rate.Limiter

	// forwarded remembers what was already passed to the emitter per
	// source while it can still be seen in later snapshots.
	forwarded *cache.Cache

	mu       sync.Mutex
	inFlight map[string]bool

	scans  sync.WaitGroup
	loop   sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a scanner. It does nothing until Start or ScanOnce is called.
func New(cfg Config, targets Targets, decoder Decoder, emitter Emitter, recorder Recorder) *Scanner {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = DefaultScanInterval
	}
	cfg.MaxConcurrentScans = max(cfg.MaxConcurrentScans, 1)

	logger := logging.ForService("scanner")
	if logger == nil {
		logger = slog.Default()
	}

	ttl := cfg.BufferDuration + 2*cfg.ScanInterval
	s := &Scanner{
		cfg:        cfg,
		targets:    targets,
		decoder:    decoder,
		emitter:    emitter,
		recorder:   recorder,
		log:        logger.With("component", "scanner"),
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrentScans)),
		errLimiter: rate.NewLimiter(rate.Limit(errorLogRate), errorLogBurst),
		forwarded:  cache.New(ttl, ttl),
		inFlight:   make(map[string]bool),
	}
	recorder.SetConcurrencyLimit(cfg.MaxConcurrentScans)
	return s
}

// Start runs the scan loop until ctx is cancelled or Stop is called.
func (s *Scanner) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.loop.Go(func() { s.scanLoop(ctx) })
}

// Stop ends the scan loop and waits for in-flight decodes to finish.
func (s *Scanner) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.loop.Wait()
	s.scans.Wait()
}

// Wait blocks until every dispatched decode has finished.
func (s *Scanner) Wait() {
	s.scans.Wait()
}

func (s *Scanner) scanLoop(ctx context.Context) {
	s.log.Info("scanner started",
		"scan_interval", s.cfg.ScanInterval,
		"max_concurrent_scans", s.cfg.MaxConcurrentScans,
		"precheck", s.cfg.Precheck != nil)

	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scanner stopped")
			return
		case <-ticker.C:
			s.ScanOnce()
		}
	}
}

// ScanOnce runs one tick: every running source is considered in priority
// order and decodes are dispatched while slots are free. It returns the
// number of decodes dispatched without waiting for them.
func (s *Scanner) ScanOnce() int {
	dispatched := 0
	for _, t := range s.targets.RunningTargets() {
		if s.busy(t.ID) {
			s.recorder.ScanSkipped(t.ID, health.SkipSourceBusy)
			continue
		}

		snapshot := t.Buffer.Snapshot()
		if len(snapshot) == 0 {
			continue
		}
		if s.cfg.Precheck != nil && !s.cfg.Precheck.LikelySAME(snapshot) {
			s.recorder.ScanFiltered(t.ID)
			continue
		}

		if !s.sem.TryAcquire(1) {
			s.recorder.ScanSkipped(t.ID, health.SkipConcurrencyLimit)
			s.log.Debug("scan skipped, no decode slot free", "source_id", t.ID)
			continue
		}

		s.dispatch(t.ID, snapshot)
		dispatched++
	}
	return dispatched
}

func (s *Scanner) busy(sourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[sourceID]
}

// dispatch decodes snapshot in its own goroutine. The caller holds a slot.
func (s *Scanner) dispatch(sourceID string, snapshot []float32) {
	s.mu.Lock()
	s.inFlight[sourceID] = true
	s.mu.Unlock()

	s.recorder.ScanStarted()
	s.scans.Go(func() {
		start := time.Now()
		defer func() {
			s.recorder.ScanFinished(time.Since(start))
			s.sem.Release(1)
			s.mu.Lock()
			delete(s.inFlight, sourceID)
			s.mu.Unlock()
		}()

		s.handle(sourceID, s.decoder.Decode(snapshot))
	})
}

func (s *Scanner) handle(sourceID string, res same.Result) {
	s.handleMessage(sourceID, res)

	// An EOM that precedes the newest header in the snapshot closed an
	// earlier activation.
	if res.EOMBursts > 0 && res.EOMEnd > res.HeaderEnd && s.firstSighting(sourceID, eomKey) {
		s.log.Info("end of message received", "source_id", sourceID, "bursts", res.EOMBursts)
		s.emitter.EmitEOM(sourceID)
	}
}

func (s *Scanner) handleMessage(sourceID string, res same.Result) {
	switch res.Kind {
	case same.MessageFound:
		msg := res.Message
		if msg.Confidence == same.ConfidenceLow && !res.Settled {
			s.log.Debug("uncorroborated header, waiting for repeats",
				"source_id", sourceID,
				"header", msg.Raw)
			return
		}
		if !s.firstSighting(sourceID, msg.Raw) {
			return
		}
		// A new activation gets its own end of message.
		s.forwarded.Delete(sourceID + "|" + eomKey)
		s.recorder.MessageDecoded(sourceID, string(msg.Confidence))
		s.log.Info("SAME message decoded",
			"source_id", sourceID,
			"header", msg.Raw,
			"event", msg.Event,
			"originator", string(msg.Originator),
			"confidence", string(msg.Confidence),
			"agreeing_bursts", msg.Agreeing)
		s.emitter.Emit(*msg, sourceID)

	case same.DecodeError:
		s.recorder.DecodeError(sourceID)
		if s.errLimiter.Allow() {
			s.log.Warn("malformed SAME burst",
				"source_id", sourceID,
				"malformed_bursts", res.MalformedBursts,
				"error", res.Err)
		}

	case same.PartialBurst:
		s.log.Debug("partial SAME burst", "source_id", sourceID)
	}
}

const eomKey = "NNNN"

// firstSighting reports whether key was not yet forwarded for sourceID and
// remembers it.
func (s *Scanner) firstSighting(sourceID, key string) bool {
	return s.forwarded.Add(sourceID+"|"+key, struct{}{}, cache.DefaultExpiration) == nil
}
