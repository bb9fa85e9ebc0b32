// Package metrics provides constants used across metric definitions.
package metrics

// Histogram bucket configuration constants.
const (
	// BucketStart100B is the starting bucket for 100 byte histograms.
	BucketStart100B = 100.0
	// BucketFactor10 is the exponential growth factor of 10 for larger ranges.
	BucketFactor10 = 10
	// BucketCount6 defines 6 exponential buckets.
	BucketCount6 = 6
)
