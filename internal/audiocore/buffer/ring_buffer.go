// Package buffer holds the fixed duration sample store each running source
// writes into and the scanner reads from.
package buffer

import (
	"sync"
	"time"

	"github.com/tphakala/eas-monitor/internal/errors"
)

// RingBuffer is a fixed capacity circular store of mono float32 samples.
// Writes overwrite the oldest samples once the buffer is full. A single
// capture goroutine writes while any number of readers take snapshots.
type RingBuffer struct {
	data         []float32
	writeIndex   int
	length       int // valid samples, saturates at capacity
	capacity     int
	sampleRate   int
	lastWrite    time.Time
	totalWritten uint64
	mu           sync.RWMutex
}

// New creates a ring buffer holding duration worth of audio at sampleRate.
func New(duration time.Duration, sampleRate int) (*RingBuffer, error) {
	if duration <= 0 {
		return nil, errors.Newf("invalid buffer duration: %v", duration).
			Component("audiocore").
			Category(errors.CategoryValidation).
			Build()
	}
	if sampleRate <= 0 {
		return nil, errors.Newf("invalid sample rate: %d", sampleRate).
			Component("audiocore").
			Category(errors.CategoryValidation).
			Build()
	}

	capacity := int(duration.Seconds() * float64(sampleRate))
	if capacity <= 0 {
		return nil, errors.Newf("buffer duration %v too short for %d Hz", duration, sampleRate).
			Component("audiocore").
			Category(errors.CategoryValidation).
			Build()
	}

	return &RingBuffer{
		data:       make([]float32, capacity),
		capacity:   capacity,
		sampleRate: sampleRate,
	}, nil
}

// Write appends samples, overwriting the oldest data when full. Input longer
// than the capacity keeps only its newest samples.
func (rb *RingBuffer) Write(samples []float32) {
	if len(samples) == 0 {
		return
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.totalWritten += uint64(len(samples))
	rb.lastWrite = time.Now()

	if len(samples) > rb.capacity {
		samples = samples[len(samples)-rb.capacity:]
	}

	written := 0
	for written < len(samples) {
		// Calculate how much we can write before wrapping
		n := min(len(samples)-written, rb.capacity-rb.writeIndex)
		copy(rb.data[rb.writeIndex:rb.writeIndex+n], samples[written:written+n])
		written += n
		rb.writeIndex = (rb.writeIndex + n) % rb.capacity
	}

	rb.length = min(rb.length+len(samples), rb.capacity)
}

// Snapshot returns a chronological copy of the buffered samples, oldest
// first. The copy is at most Capacity samples long.
func (rb *RingBuffer) Snapshot() []float32 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	out := make([]float32, rb.length)
	if rb.length < rb.capacity {
		// not wrapped yet, data starts at zero
		copy(out, rb.data[:rb.length])
		return out
	}

	n := copy(out, rb.data[rb.writeIndex:])
	copy(out[n:], rb.data[:rb.writeIndex])
	return out
}

// Capacity returns the maximum number of samples held.
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

// SampleRate returns the rate the buffer was sized for.
func (rb *RingBuffer) SampleRate() int {
	return rb.sampleRate
}

// Duration returns the span of audio the buffer holds when full.
func (rb *RingBuffer) Duration() time.Duration {
	return time.Duration(rb.capacity) * time.Second / time.Duration(rb.sampleRate)
}

// Len returns the number of valid samples.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.length
}

// LastWrite returns the time of the most recent non-empty write, zero if
// nothing was written since creation or Reset.
func (rb *RingBuffer) LastWrite() time.Time {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.lastWrite
}

// TotalWritten returns the number of samples written over the buffer's life.
func (rb *RingBuffer) TotalWritten() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.totalWritten
}

// Reset discards buffered audio. Counters are kept.
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.writeIndex = 0
	rb.length = 0
	clear(rb.data)
}
