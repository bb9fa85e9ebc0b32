// Package metrics provides custom Prometheus metrics for the eas-monitor components.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AudioCoreMetrics contains Prometheus metrics for source capture and buffer
// scanning.
type AudioCoreMetrics struct {
	registry *prometheus.Registry

	// Source metrics
	sourceState       *prometheus.GaugeVec
	sourceTransitions *prometheus.CounterVec
	samplesCaptured   *prometheus.CounterVec
	sourceSilent      *prometheus.GaugeVec

	// Scanner metrics
	scansPerformed   prometheus.Counter
	scansSkipped     *prometheus.CounterVec
	scansFiltered    *prometheus.CounterVec
	decodeErrors     *prometheus.CounterVec
	messagesDecoded  *prometheus.CounterVec
	activeScans      prometheus.Gauge
	concurrencyLimit prometheus.Gauge
	scanDuration     prometheus.Histogram

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// sourceStates lists every label value of the source state gauge so that
// exactly one of them reads 1 per source.
var sourceStates = []string{"stopped", "starting", "running", "error", "disconnected"}

// NewAudioCoreMetrics creates and registers new audiocore metrics
func NewAudioCoreMetrics(registry *prometheus.Registry) (*AudioCoreMetrics, error) {
	m := &AudioCoreMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *AudioCoreMetrics) initMetrics() {
	m.sourceState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "audiocore_source_state",
			Help: "Current lifecycle state of a source (1 for the active state)",
		},
		[]string{"source_id", "state"},
	)

	m.sourceTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiocore_source_transitions_total",
			Help: "Total number of source state transitions",
		},
		[]string{"source_id", "state"},
	)

	m.samplesCaptured = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiocore_samples_captured_total",
			Help: "Total number of samples written to source ring buffers",
		},
		[]string{"source_id"},
	)

	m.sourceSilent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "audiocore_source_silent",
			Help: "Whether a running source has stopped delivering audio (1 for silent)",
		},
		[]string{"source_id"},
	)

	m.scansPerformed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scanner_scans_performed_total",
		Help: "Total number of completed decode scans",
	})

	m.scansSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanner_scans_skipped_total",
			Help: "Total number of scans skipped because no decode slot was available",
		},
		[]string{"source_id", "reason"},
	)

	m.scansFiltered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanner_scans_filtered_total",
			Help: "Total number of snapshots rejected by the pre-check filter",
		},
		[]string{"source_id"},
	)

	m.decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanner_decode_errors_total",
			Help: "Total number of scans that found only malformed bursts",
		},
		[]string{"source_id"},
	)

	m.messagesDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanner_messages_decoded_total",
			Help: "Total number of decoded SAME messages",
		},
		[]string{"source_id", "confidence"},
	)

	m.activeScans = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scanner_active_scans",
		Help: "Number of decode scans currently running",
	})

	m.concurrencyLimit = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scanner_concurrency_limit",
		Help: "Configured maximum number of concurrent decode scans",
	})

	m.scanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scanner_scan_duration_seconds",
		Help:    "Time spent decoding one buffer snapshot",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
	})

	m.collectors = []prometheus.Collector{
		m.sourceState,
		m.sourceTransitions,
		m.samplesCaptured,
		m.sourceSilent,
		m.scansPerformed,
		m.scansSkipped,
		m.scansFiltered,
		m.decodeErrors,
		m.messagesDecoded,
		m.activeScans,
		m.concurrencyLimit,
		m.scanDuration,
	}
}

// Describe implements the Collector interface
func (m *AudioCoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *AudioCoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// Source metrics recording methods

// RecordSourceState sets the state gauge of sourceID to state and counts the
// transition.
func (m *AudioCoreMetrics) RecordSourceState(sourceID, state string) {
	for _, s := range sourceStates {
		value := 0.0
		if s == state {
			value = 1
		}
		m.sourceState.WithLabelValues(sourceID, s).Set(value)
	}
	m.sourceTransitions.WithLabelValues(sourceID, state).Inc()
}

// RecordSamplesCaptured adds n captured samples for sourceID.
func (m *AudioCoreMetrics) RecordSamplesCaptured(sourceID string, n int) {
	m.samplesCaptured.WithLabelValues(sourceID).Add(float64(n))
}

// SetSourceSilent updates the silence flag of sourceID.
func (m *AudioCoreMetrics) SetSourceSilent(sourceID string, silent bool) {
	value := 0.0
	if silent {
		value = 1
	}
	m.sourceSilent.WithLabelValues(sourceID).Set(value)
}

// RemoveSource deletes every series labelled with sourceID.
func (m *AudioCoreMetrics) RemoveSource(sourceID string) {
	labels := prometheus.Labels{"source_id": sourceID}
	m.sourceState.DeletePartialMatch(labels)
	m.sourceTransitions.DeletePartialMatch(labels)
	m.samplesCaptured.DeletePartialMatch(labels)
	m.sourceSilent.DeletePartialMatch(labels)
	m.scansSkipped.DeletePartialMatch(labels)
	m.scansFiltered.DeletePartialMatch(labels)
	m.decodeErrors.DeletePartialMatch(labels)
	m.messagesDecoded.DeletePartialMatch(labels)
}

// Scanner metrics recording methods

// RecordScanStarted increments the active scan gauge.
func (m *AudioCoreMetrics) RecordScanStarted() {
	m.activeScans.Inc()
}

// RecordScanFinished decrements the active scan gauge and records the scan.
func (m *AudioCoreMetrics) RecordScanFinished(duration time.Duration) {
	m.activeScans.Dec()
	m.scansPerformed.Inc()
	m.scanDuration.Observe(duration.Seconds())
}

// RecordScanSkipped counts a skipped scan with its reason.
func (m *AudioCoreMetrics) RecordScanSkipped(sourceID, reason string) {
	m.scansSkipped.WithLabelValues(sourceID, reason).Inc()
}

// RecordScanFiltered counts a snapshot rejected by the pre-check.
func (m *AudioCoreMetrics) RecordScanFiltered(sourceID string) {
	m.scansFiltered.WithLabelValues(sourceID).Inc()
}

// RecordDecodeError counts a scan that ended in a decode error.
func (m *AudioCoreMetrics) RecordDecodeError(sourceID string) {
	m.decodeErrors.WithLabelValues(sourceID).Inc()
}

// RecordMessageDecoded counts a decoded message.
func (m *AudioCoreMetrics) RecordMessageDecoded(sourceID, confidence string) {
	m.messagesDecoded.WithLabelValues(sourceID, confidence).Inc()
}

// SetConcurrencyLimit publishes the configured scan ceiling.
func (m *AudioCoreMetrics) SetConcurrencyLimit(n int) {
	m.concurrencyLimit.Set(float64(n))
}
