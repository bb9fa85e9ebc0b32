// Package audiocore holds the shared vocabulary of the audio pipeline that
// feeds the SAME decoder.
//
// # Architecture Overview
//
// Audio flows one way:
//
//   - sources: one adapter per capture variant (SDR receiver, network
//     stream, sound card, file) behind a pull based Adapter interface
//   - resample: downmix and linear interpolation to CanonicalSampleRate
//   - processors: per-source input gain
//   - buffer: a fixed duration RingBuffer per source
//   - registry: source lifecycle, capture loops and reconnect backoff
//   - precheck: cheap tone test that gates the decoder
//
// The scanner package snapshots ring buffers on a timer and hands them to
// the decoder in package same.
//
// # Concurrency
//
// Each running source owns exactly one capture goroutine, which is the only
// writer of its RingBuffer. Readers take copies through Snapshot and never
// block the writer for longer than a copy.
package audiocore
