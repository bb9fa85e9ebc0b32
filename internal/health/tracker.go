// Package health aggregates scan counters, per-source status and silence
// detection into a snapshot for operators, mirroring every update to
// Prometheus.
package health

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/eas-monitor/internal/logging"
	"github.com/tphakala/eas-monitor/internal/observability/metrics"
)

// Activity is the capture state of one source as seen by silence detection.
type Activity struct {
	SourceID  string
	Running   bool
	LastWrite time.Time // zero until the first write
	Since     time.Time // when the source last entered running
}

// ActivityProvider reports capture activity, implemented by the source registry.
type ActivityProvider interface {
	Activity() []Activity
}

// SourceHealth is the health view of one source.
type SourceHealth struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"`
	LastError       string    `json:"last_error,omitempty"`
	Silent          bool      `json:"silent"`
	SilentSince     time.Time `json:"silent_since,omitzero"`
	SamplesCaptured uint64    `json:"samples_captured"`
}

// Snapshot is an immutable copy of the tracker state.
type Snapshot struct {
	Timestamp     time.Time      `json:"timestamp"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Scans         ScanMetrics    `json:"scans"`
	Sources       []SourceHealth `json:"sources"`
	Process       *ProcessStats  `json:"process,omitempty"`
}

// SilenceChange reports a source whose silence flag flipped.
type SilenceChange struct {
	SourceID string
	Silent   bool
	Idle     time.Duration // time since the last write
}

type sourceEntry struct {
	status      string
	lastError   string
	silent      bool
	silentSince time.Time
	samples     atomic.Uint64
}

// Tracker is the metrics and health aggregate. All methods are safe for
// concurrent use.
type Tracker struct {
	silenceThreshold time.Duration
	metrics          *metrics.AudioCoreMetrics
	started          time.Time
	process          bool
	log              *slog.Logger

	scans *scanCounters

	mu       sync.RWMutex
	sources  map[string]*sourceEntry
	activity ActivityProvider
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithMetrics mirrors every update to m.
func WithMetrics(m *metrics.AudioCoreMetrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithProcessStats includes process CPU and memory usage in snapshots.
func WithProcessStats() Option {
	return func(t *Tracker) { t.process = true }
}

// WithActivity makes Snapshot evaluate silence against p.
func WithActivity(p ActivityProvider) Option {
	return func(t *Tracker) { t.activity = p }
}

// NewTracker creates a tracker flagging running sources silent after
// silenceThreshold without audio. A threshold of zero disables silence
// detection.
func NewTracker(silenceThreshold time.Duration, opts ...Option) *Tracker {
	logger := logging.ForService("health")
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		silenceThreshold: silenceThreshold,
		started:          time.Now(),
		log:              logger.With("component", "tracker"),
		scans:            newScanCounters(),
		sources:          make(map[string]*sourceEntry),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetActivityProvider sets the provider Snapshot evaluates silence
// against, for providers that are created after the tracker.
func (t *Tracker) SetActivityProvider(p ActivityProvider) {
	t.mu.Lock()
	t.activity = p
	t.mu.Unlock()
}

// Scan counters

// SetConcurrencyLimit records the configured decode ceiling.
func (t *Tracker) SetConcurrencyLimit(n int) {
	t.scans.limit.Store(int64(n))
	if t.metrics != nil {
		t.metrics.SetConcurrencyLimit(n)
	}
}

// ScanStarted marks a decode as dispatched.
func (t *Tracker) ScanStarted() {
	t.scans.started()
	if t.metrics != nil {
		t.metrics.RecordScanStarted()
	}
}

// ScanFinished marks a decode as complete whatever its outcome.
func (t *Tracker) ScanFinished(d time.Duration) {
	t.scans.finished(d)
	if t.metrics != nil {
		t.metrics.RecordScanFinished(d)
	}
}

// ScanSkipped counts a scan that was not dispatched.
func (t *Tracker) ScanSkipped(sourceID, reason string) {
	t.scans.skipped(reason)
	if t.metrics != nil {
		t.metrics.RecordScanSkipped(sourceID, reason)
	}
}

// ScanFiltered counts a snapshot rejected by the pre-check.
func (t *Tracker) ScanFiltered(sourceID string) {
	t.scans.filtered.Add(1)
	if t.metrics != nil {
		t.metrics.RecordScanFiltered(sourceID)
	}
}

// DecodeError counts a scan that produced only malformed bursts.
func (t *Tracker) DecodeError(sourceID string) {
	t.scans.decodeErrors.Add(1)
	if t.metrics != nil {
		t.metrics.RecordDecodeError(sourceID)
	}
}

// MessageDecoded counts a decoded message.
func (t *Tracker) MessageDecoded(sourceID, confidence string) {
	t.scans.messages.Add(1)
	if t.metrics != nil {
		t.metrics.RecordMessageDecoded(sourceID, confidence)
	}
}

// ScanMetrics returns a copy of the scan counters.
func (t *Tracker) ScanMetrics() ScanMetrics {
	return t.scans.snapshot()
}

// Source status

func (t *Tracker) source(id string) *sourceEntry {
	t.mu.RLock()
	e, ok := t.sources[id]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.sources[id]; !ok {
		e = &sourceEntry{}
		t.sources[id] = e
	}
	return e
}

// SourceStatusChanged records a lifecycle transition of a source.
func (t *Tracker) SourceStatusChanged(sourceID, status, lastError string) {
	e := t.source(sourceID)
	t.mu.Lock()
	e.status = status
	e.lastError = lastError
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.RecordSourceState(sourceID, status)
	}
}

// SamplesCaptured adds n samples written to a source's buffer.
func (t *Tracker) SamplesCaptured(sourceID string, n int) {
	t.source(sourceID).samples.Add(uint64(n))
	if t.metrics != nil {
		t.metrics.RecordSamplesCaptured(sourceID, n)
	}
}

// SourceRemoved forgets a source.
func (t *Tracker) SourceRemoved(sourceID string) {
	t.mu.Lock()
	delete(t.sources, sourceID)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.RemoveSource(sourceID)
	}
}

// EvaluateSilence updates the silence flag of every source in activity and
// returns the flags that changed. A running source is silent when nothing
// was written for longer than the threshold, counted from when it started
// running if it never wrote since.
func (t *Tracker) EvaluateSilence(activity []Activity, now time.Time) []SilenceChange {
	var changes []SilenceChange
	for _, a := range activity {
		last := a.LastWrite
		if a.Since.After(last) {
			last = a.Since
		}
		idle := now.Sub(last)
		silent := t.silenceThreshold > 0 && a.Running && idle > t.silenceThreshold

		e := t.source(a.SourceID)
		t.mu.Lock()
		changed := e.silent != silent
		if changed {
			e.silent = silent
			e.silentSince = time.Time{}
			if silent {
				e.silentSince = now
			}
		}
		t.mu.Unlock()

		if changed {
			c := SilenceChange{SourceID: a.SourceID, Silent: silent, Idle: idle}
			changes = append(changes, c)
			t.logSilenceChange(c)
			if t.metrics != nil {
				t.metrics.SetSourceSilent(a.SourceID, silent)
			}
		}
	}
	return changes
}

func (t *Tracker) logSilenceChange(c SilenceChange) {
	if c.Silent {
		t.log.Warn("source silent",
			"source_id", c.SourceID,
			"idle_seconds", c.Idle.Seconds(),
			"threshold_seconds", t.silenceThreshold.Seconds())
		return
	}
	t.log.Info("source audio resumed", "source_id", c.SourceID)
}

// Silent reports the current silence flag of a source.
func (t *Tracker) Silent(sourceID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.sources[sourceID]
	return ok && e.silent
}

// Snapshot returns an immutable copy of the current health state. With an
// activity provider set, silence flags are evaluated first so they reflect
// the latest writes.
func (t *Tracker) Snapshot() Snapshot {
	now := time.Now()

	t.mu.RLock()
	provider := t.activity
	t.mu.RUnlock()
	if provider != nil {
		t.EvaluateSilence(provider.Activity(), now)
	}

	snap := Snapshot{
		Timestamp:     now,
		UptimeSeconds: now.Sub(t.started).Seconds(),
		Scans:         t.scans.snapshot(),
	}

	t.mu.RLock()
	snap.Sources = make([]SourceHealth, 0, len(t.sources))
	for id, e := range t.sources {
		snap.Sources = append(snap.Sources, SourceHealth{
			ID:              id,
			Status:          e.status,
			LastError:       e.lastError,
			Silent:          e.silent,
			SilentSince:     e.silentSince,
			SamplesCaptured: e.samples.Load(),
		})
	}
	t.mu.RUnlock()

	slices.SortFunc(snap.Sources, func(a, b SourceHealth) int { return cmp.Compare(a.ID, b.ID) })

	if t.process {
		if stats, err := ReadProcessStats(); err == nil {
			snap.Process = stats
		}
	}
	return snap
}
