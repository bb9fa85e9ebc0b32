package audiocore

import "time"

// CanonicalSampleRate is the rate every source is resampled to before it is
// buffered and decoded.
const CanonicalSampleRate = 16000

// Capture loop constants
const (
	// DefaultPullSize is the number of native samples requested per Pull
	DefaultPullSize = 4096

	// MaxStateHistory is the number of state transitions kept per source
	MaxStateHistory = 10

	// StopTimeout bounds how long Stop waits for a capture loop to exit
	StopTimeout = 10 * time.Second
)
