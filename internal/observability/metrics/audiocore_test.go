package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioCoreMetrics_SourceState(t *testing.T) {
	t.Parallel()

	m, err := NewAudioCoreMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordSourceState("lp1", "starting")
	m.RecordSourceState("lp1", "running")

	assert.InDelta(t, 1, testutil.ToFloat64(m.sourceState.WithLabelValues("lp1", "running")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.sourceState.WithLabelValues("lp1", "starting")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.sourceTransitions.WithLabelValues("lp1", "starting")), 0)

	m.RemoveSource("lp1")
	assert.Equal(t, 0, testutil.CollectAndCount(m.sourceState))
}

func TestAudioCoreMetrics_Scans(t *testing.T) {
	t.Parallel()

	m, err := NewAudioCoreMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordScanStarted()
	m.RecordScanStarted()
	assert.InDelta(t, 2, testutil.ToFloat64(m.activeScans), 0)

	m.RecordScanFinished(10 * time.Millisecond)
	assert.InDelta(t, 1, testutil.ToFloat64(m.activeScans), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.scansPerformed), 0)

	m.RecordScanSkipped("nwr", "concurrency_limit")
	m.RecordScanSkipped("nwr", "concurrency_limit")
	assert.InDelta(t, 2, testutil.ToFloat64(m.scansSkipped.WithLabelValues("nwr", "concurrency_limit")), 0)
}

func TestAudioCoreMetrics_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewAudioCoreMetrics(registry)
	require.NoError(t, err)
	_, err = NewAudioCoreMetrics(registry)
	assert.Error(t, err)
}

func TestAlertMetrics_RecordDelivery(t *testing.T) {
	t.Parallel()

	m, err := NewAlertMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordDelivery("mqtt", nil, 5*time.Millisecond)
	m.RecordDelivery("mqtt", errors.New("broker down"), time.Millisecond)
	m.RecordDropped("queue_full")

	assert.InDelta(t, 1, testutil.ToFloat64(m.SinkDeliveries.WithLabelValues("mqtt", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SinkDeliveries.WithLabelValues("mqtt", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AlertsDropped.WithLabelValues("queue_full")), 0)
}
