// Package metrics provides custom Prometheus metrics for alert delivery.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AlertMetrics contains all Prometheus metrics related to alert emission and sink delivery.
type AlertMetrics struct {
	AlertsEmitted    *prometheus.CounterVec   // Alerts accepted by the emitter, by event code
	AlertsDropped    *prometheus.CounterVec   // Alerts lost before delivery, by reason
	AlertsSuppressed prometheus.Counter       // Duplicate headers within the dedup window
	QueueDepth       prometheus.Gauge         // Alerts waiting for the delivery worker
	SinkDeliveries   *prometheus.CounterVec   // Delivery attempts by sink and status
	SinkDuration     *prometheus.HistogramVec // Delivery latency by sink

	registry *prometheus.Registry
}

// NewAlertMetrics creates a new instance of AlertMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewAlertMetrics(registry *prometheus.Registry) (*AlertMetrics, error) {
	m := &AlertMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register alert metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for AlertMetrics.
func (m *AlertMetrics) initMetrics() {
	m.AlertsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_emitted_total",
			Help: "Total number of alerts accepted for delivery by event code",
		},
		[]string{"event", "kind"}, // kind: alert, eom
	)

	m.AlertsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_dropped_total",
			Help: "Total number of alerts dropped before delivery",
		},
		[]string{"reason"}, // reason: queue_full, stopped
	)

	m.AlertsSuppressed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alert_duplicates_suppressed_total",
		Help: "Total number of repeated headers suppressed within the dedup window",
	})

	m.QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "alert_queue_depth",
		Help: "Number of alerts waiting for delivery",
	})

	m.SinkDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_sink_deliveries_total",
			Help: "Total number of sink delivery attempts by sink and status",
		},
		[]string{"sink", "status"}, // status: success, error
	)

	m.SinkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alert_sink_delivery_duration_seconds",
			Help:    "Time taken to deliver one alert to a sink",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}, // 10ms to 30s
		},
		[]string{"sink"},
	)
}

// RecordEmitted counts an accepted alert.
func (m *AlertMetrics) RecordEmitted(event, kind string) {
	m.AlertsEmitted.WithLabelValues(event, kind).Inc()
}

// RecordDropped counts an alert lost before delivery.
func (m *AlertMetrics) RecordDropped(reason string) {
	m.AlertsDropped.WithLabelValues(reason).Inc()
}

// RecordSuppressed counts a suppressed duplicate.
func (m *AlertMetrics) RecordSuppressed() {
	m.AlertsSuppressed.Inc()
}

// SetQueueDepth publishes the current queue length.
func (m *AlertMetrics) SetQueueDepth(n int) {
	m.QueueDepth.Set(float64(n))
}

// RecordDelivery records the outcome and latency of one sink delivery.
func (m *AlertMetrics) RecordDelivery(sink string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.SinkDeliveries.WithLabelValues(sink, status).Inc()
	m.SinkDuration.WithLabelValues(sink).Observe(duration.Seconds())
}

// Describe implements the prometheus.Collector interface.
func (m *AlertMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.AlertsEmitted.Describe(ch)
	m.AlertsDropped.Describe(ch)
	ch <- m.AlertsSuppressed.Desc()
	ch <- m.QueueDepth.Desc()
	m.SinkDeliveries.Describe(ch)
	m.SinkDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *AlertMetrics) Collect(ch chan<- prometheus.Metric) {
	m.AlertsEmitted.Collect(ch)
	m.AlertsDropped.Collect(ch)
	ch <- m.AlertsSuppressed
	ch <- m.QueueDepth
	m.SinkDeliveries.Collect(ch)
	m.SinkDuration.Collect(ch)
}
