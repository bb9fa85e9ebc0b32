package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tphakala/eas-monitor/internal/logging"
)

const defaultCheckInterval = 5 * time.Second

// Monitor periodically evaluates silence for every source so flags,
// transition logs and metrics stay current between health requests.
type Monitor struct {
	tracker  *Tracker
	provider ActivityProvider
	interval time.Duration
	log      *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor checking provider every interval.
func NewMonitor(tracker *Tracker, provider ActivityProvider, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	logger := logging.ForService("health")
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		tracker:  tracker,
		provider: provider,
		interval: interval,
		log:      logger.With("component", "monitor"),
	}
}

// Start launches the monitor loop. It runs until ctx is cancelled or Stop
// is called.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Go(func() { m.monitorLoop(ctx) })
}

// Stop stops the monitor loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) monitorLoop(ctx context.Context) {
	m.log.Info("health monitor started",
		"check_interval", m.interval,
		"silence_threshold", m.tracker.silenceThreshold)

	m.check(time.Now())

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			m.check(now)
		case <-ctx.Done():
			m.log.Info("health monitor stopping")
			return
		}
	}
}

// check runs one silence evaluation. The tracker logs flag transitions.
func (m *Monitor) check(now time.Time) {
	m.tracker.EvaluateSilence(m.provider.Activity(), now)

	scans := m.tracker.ScanMetrics()
	m.log.Debug("scan statistics",
		"scans_performed", scans.ScansPerformed,
		"scans_skipped", scans.ScansSkipped,
		"scans_filtered", scans.ScansFiltered,
		"decode_errors", scans.DecodeErrors,
		"active_scans", scans.ActiveScans,
		"avg_duration_ms", scans.AvgDuration.Milliseconds())
}
