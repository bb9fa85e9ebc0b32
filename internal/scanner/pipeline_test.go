package scanner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/eas-monitor/internal/alert"
	"github.com/tphakala/eas-monitor/internal/audiocore"
	"github.com/tphakala/eas-monitor/internal/audiocore/precheck"
	"github.com/tphakala/eas-monitor/internal/audiocore/registry"
	"github.com/tphakala/eas-monitor/internal/conf"
	"github.com/tphakala/eas-monitor/internal/health"
	"github.com/tphakala/eas-monitor/internal/same"
)

// replayAdapter delivers pcm once and then idles like a quiet live feed.
type replayAdapter struct {
	format  audiocore.Format
	pcm     []float32
	offset  int
	drained atomic.Bool
}

func (a *replayAdapter) Open(context.Context) error { return nil }

func (a *replayAdapter) Pull(ctx context.Context, maxSamples int) (audiocore.Chunk, error) {
	if a.offset >= len(a.pcm) {
		a.drained.Store(true)
		<-ctx.Done()
		return audiocore.Chunk{}, ctx.Err()
	}
	n := min(maxSamples, len(a.pcm)-a.offset)
	chunk := audiocore.Chunk{Samples: a.pcm[a.offset : a.offset+n], Timestamp: time.Now()}
	a.offset += n
	return chunk, nil
}

func (a *replayAdapter) Format() audiocore.Format { return a.format }

func (a *replayAdapter) Close() error { return nil }

// replaySource registers pcm as source wx1 and waits until all of it has
// been buffered.
func replaySource(t *testing.T, rate int, pcm []float32) *registry.Registry {
	t.Helper()
	adapter := &replayAdapter{format: audiocore.Format{SampleRate: rate, Channels: 1}, pcm: pcm}
	reg := registry.New(
		registry.Config{BufferDuration: 12 * time.Second, SampleRate: audiocore.CanonicalSampleRate},
		registry.WithFactory(func(conf.SourceConfig) (audiocore.Adapter, error) { return adapter, nil }),
	)
	t.Cleanup(func() { _ = reg.Close() })

	id, err := reg.Add(conf.SourceConfig{ID: "wx1", Type: conf.SourceTypeFile, Path: "wx1.wav", Enabled: true})
	require.NoError(t, err)
	require.NoError(t, reg.Start(t.Context(), id))
	require.Eventually(t, adapter.drained.Load, 5*time.Second, 5*time.Millisecond)
	return reg
}

func newPipelineScanner(reg *registry.Registry, issued time.Time, emitter Emitter, tracker *health.Tracker) *Scanner {
	decoder := same.NewDecoder(same.Config{
		SampleRate: audiocore.CanonicalSampleRate,
		Now:        func() time.Time { return issued.Add(time.Minute) },
	})
	return New(Config{
		ScanInterval:       10 * time.Millisecond,
		BufferDuration:     12 * time.Second,
		MaxConcurrentScans: 2,
		Precheck:           precheck.New(precheck.Config{SampleRate: audiocore.CanonicalSampleRate}),
	}, reg, decoder, emitter, tracker)
}

func TestPipeline_EndToEnd(t *testing.T) {
	const nativeRate = 44100

	issued := time.Date(2026, time.October, 18, 11, 53, 0, 0, time.UTC)
	want := same.Message{
		Originator: same.OriginatorWXR,
		Event:      "RWT",
		Locations:  []same.Location{{State: "39", County: "003"}},
		Purge:      15 * time.Minute,
		Issued:     issued,
		Station:    "KLOX/NWS",
	}

	enc := same.NewEncoder(nativeRate, 0.5)
	pcm := enc.Silence(500 * time.Millisecond)
	pcm = append(pcm, enc.Header(want)...)
	pcm = append(pcm, enc.Silence(3*time.Second)...)

	reg := replaySource(t, nativeRate, pcm)

	tracker := health.NewTracker(0)
	emitter := &recordingEmitter{}
	s := newPipelineScanner(reg, issued, emitter, tracker)

	s.Start(t.Context())
	require.Eventually(t, func() bool { return len(emitter.Messages()) > 0 }, 10*time.Second, 10*time.Millisecond)
	// let further ticks see the same bursts
	require.Eventually(t, func() bool { return tracker.ScanMetrics().ScansPerformed >= 3 }, 10*time.Second, 10*time.Millisecond)
	s.Stop()

	msgs := emitter.Messages()
	require.Len(t, msgs, 1)
	got := msgs[0]
	assert.Equal(t, "ZCZC-WXR-RWT-039003+0015-2911153-KLOX/NWS-", got.Raw)
	assert.Equal(t, want.Originator, got.Originator)
	assert.Equal(t, want.Event, got.Event)
	assert.Equal(t, want.Locations, got.Locations)
	assert.Equal(t, want.Purge, got.Purge)
	assert.True(t, want.Issued.Equal(got.Issued))
	assert.Equal(t, want.Station, got.Station)
	assert.Equal(t, same.ConfidenceHigh, got.Confidence)
	assert.Equal(t, 3, got.Agreeing)

	m := tracker.ScanMetrics()
	assert.GreaterOrEqual(t, m.ScansPerformed, uint64(1))
	assert.Zero(t, m.DecodeErrors)
	assert.Equal(t, uint64(1), m.MessagesDecoded)
	assert.LessOrEqual(t, m.PeakActiveScans, int64(2))
}

// recordingSink collects what the alert emitter delivers.
type recordingSink struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(_ context.Context, a alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) count(kind alert.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.alerts {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

func TestPipeline_DeliversThroughEmitter(t *testing.T) {
	const nativeRate = 44100

	issued := time.Date(2026, time.October, 18, 11, 53, 0, 0, time.UTC)
	msg := same.Message{
		Originator: same.OriginatorWXR,
		Event:      "RWT",
		Locations:  []same.Location{{State: "39", County: "003"}},
		Purge:      15 * time.Minute,
		Issued:     issued,
		Station:    "KLOX/NWS",
	}

	enc := same.NewEncoder(nativeRate, 0.5)
	pcm := enc.Silence(500 * time.Millisecond)
	// the whole activation fits in the 12 s buffer
	pcm = append(pcm, enc.Alert(msg, same.AttentionNWR, time.Second)...)
	pcm = append(pcm, enc.Silence(500*time.Millisecond)...)

	reg := replaySource(t, nativeRate, pcm)

	sink := &recordingSink{}
	emitter := alert.NewEmitter(alert.Config{QueueSize: 8, DedupWindow: time.Minute, DeliveryTimeout: time.Second},
		[]alert.Sink{sink})
	emitter.Start(t.Context())

	tracker := health.NewTracker(0)
	s := newPipelineScanner(reg, issued, emitter, tracker)
	s.Start(t.Context())
	require.Eventually(t, func() bool {
		return sink.count(alert.KindAlert) > 0 && sink.count(alert.KindEOM) > 0
	}, 10*time.Second, 10*time.Millisecond)
	// later ticks rescan the same buffered bursts
	scans := tracker.ScanMetrics().ScansPerformed
	require.Eventually(t, func() bool { return tracker.ScanMetrics().ScansPerformed >= scans+3 }, 10*time.Second, 10*time.Millisecond)
	s.Stop()
	emitter.Stop()

	assert.Equal(t, 1, sink.count(alert.KindAlert))
	assert.Equal(t, 1, sink.count(alert.KindEOM))
	assert.Equal(t, uint64(1), tracker.ScanMetrics().MessagesDecoded)
}
