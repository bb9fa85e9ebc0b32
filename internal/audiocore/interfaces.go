package audiocore

import (
	"context"
	"time"
)

// Format describes the native audio an adapter produces.
type Format struct {
	SampleRate int // samples per second per channel
	Channels   int // interleaved channel count
}

// Chunk is a block of audio returned by an adapter.
type Chunk struct {
	Samples   []float32 // interleaved samples normalized to [-1, 1]
	Timestamp time.Time // capture time of the first sample
}

// Frames returns the number of whole frames in the chunk.
func (c Chunk) Frames(channels int) int {
	if channels <= 0 {
		return len(c.Samples)
	}
	return len(c.Samples) / channels
}

// Adapter is the capture side of one audio source. The registry calls Open
// once, then Pull in a loop from a single goroutine, and Close when done.
//
// Pull blocks until audio is available, ctx is cancelled or the source
// fails. Failures are classified with Transient and Fatal; io.EOF means the
// source ended normally.
type Adapter interface {
	// Open acquires the underlying device, process or file.
	Open(ctx context.Context) error

	// Pull returns up to maxSamples interleaved samples.
	Pull(ctx context.Context, maxSamples int) (Chunk, error)

	// Format returns the native sample rate and channel count. It is valid
	// after Open returns.
	Format() Format

	// Close releases resources. It is safe to call more than once.
	Close() error
}
