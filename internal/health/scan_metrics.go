package health

import (
	"math"
	"sync/atomic"
	"time"
)

// Skip reasons reported by the scanner.
const (
	SkipSourceBusy       = "source_busy"       // previous scan of the source still running
	SkipConcurrencyLimit = "concurrency_limit" // every decode slot taken
)

// ScanMetrics is an immutable copy of the scan counters.
type ScanMetrics struct {
	ScansPerformed     uint64        `json:"scans_performed"`
	ScansSkipped       uint64        `json:"scans_skipped"`
	SkippedBusy        uint64        `json:"skipped_source_busy"`
	SkippedConcurrency uint64        `json:"skipped_concurrency_limit"`
	ScansFiltered      uint64        `json:"scans_filtered"`
	DecodeErrors       uint64        `json:"decode_errors"`
	MessagesDecoded    uint64        `json:"messages_decoded"`
	ActiveScans        int64         `json:"active_scans"`
	PeakActiveScans    int64         `json:"peak_active_scans"`
	ConcurrencyLimit   int64         `json:"concurrency_limit"`
	MinDuration        time.Duration `json:"min_duration_ns"`
	AvgDuration        time.Duration `json:"avg_duration_ns"`
	MaxDuration        time.Duration `json:"max_duration_ns"`
}

// scanCounters is the process wide scan aggregate. Fields only move
// through the methods below.
type scanCounters struct {
	performed    atomic.Uint64
	skippedBusy  atomic.Uint64
	skippedLimit atomic.Uint64
	filtered     atomic.Uint64
	decodeErrors atomic.Uint64
	messages     atomic.Uint64
	active       atomic.Int64
	peakActive   atomic.Int64
	limit        atomic.Int64
	totalNanos   atomic.Int64
	minNanos     atomic.Int64
	maxNanos     atomic.Int64
}

func newScanCounters() *scanCounters {
	c := &scanCounters{}
	c.minNanos.Store(math.MaxInt64)
	return c
}

func (c *scanCounters) started() {
	n := c.active.Add(1)
	for {
		peak := c.peakActive.Load()
		if n <= peak || c.peakActive.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (c *scanCounters) finished(d time.Duration) {
	c.active.Add(-1)
	c.performed.Add(1)

	ns := d.Nanoseconds()
	c.totalNanos.Add(ns)
	for {
		cur := c.minNanos.Load()
		if ns >= cur || c.minNanos.CompareAndSwap(cur, ns) {
			break
		}
	}
	for {
		cur := c.maxNanos.Load()
		if ns <= cur || c.maxNanos.CompareAndSwap(cur, ns) {
			break
		}
	}
}

func (c *scanCounters) skipped(reason string) {
	if reason == SkipSourceBusy {
		c.skippedBusy.Add(1)
		return
	}
	c.skippedLimit.Add(1)
}

func (c *scanCounters) snapshot() ScanMetrics {
	m := ScanMetrics{
		ScansPerformed:     c.performed.Load(),
		SkippedBusy:        c.skippedBusy.Load(),
		SkippedConcurrency: c.skippedLimit.Load(),
		ScansFiltered:      c.filtered.Load(),
		DecodeErrors:       c.decodeErrors.Load(),
		MessagesDecoded:    c.messages.Load(),
		ActiveScans:        c.active.Load(),
		PeakActiveScans:    c.peakActive.Load(),
		ConcurrencyLimit:   c.limit.Load(),
		MaxDuration:        time.Duration(c.maxNanos.Load()),
	}
	m.ScansSkipped = m.SkippedBusy + m.SkippedConcurrency
	if m.ScansPerformed > 0 {
		m.MinDuration = time.Duration(c.minNanos.Load())
		m.AvgDuration = time.Duration(c.totalNanos.Load() / int64(m.ScansPerformed))
	}
	return m
}
