package buffer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func ramp(start, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(start + i)
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		duration time.Duration
		rate     int
		wantErr  bool
		wantCap  int
	}{
		{"twelve seconds at 16k", 12 * time.Second, 16000, false, 192000},
		{"half second", 500 * time.Millisecond, 16000, false, 8000},
		{"zero duration", 0, 16000, true, 0},
		{"negative rate", time.Second, -1, true, 0},
		{"too short", time.Nanosecond, 16000, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rb, err := New(tt.duration, tt.rate)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCap, rb.Capacity())
			assert.Equal(t, tt.duration, rb.Duration())
		})
	}
}

func TestRingBuffer_PartialFill(t *testing.T) {
	t.Parallel()

	rb, err := New(time.Second, 10)
	require.NoError(t, err)

	assert.Empty(t, rb.Snapshot())
	assert.True(t, rb.LastWrite().IsZero())

	rb.Write(ramp(0, 4))
	assert.Equal(t, 4, rb.Len())
	assert.Equal(t, ramp(0, 4), rb.Snapshot())
	assert.False(t, rb.LastWrite().IsZero())
}

func TestRingBuffer_OverwritesOldest(t *testing.T) {
	t.Parallel()

	rb, err := New(time.Second, 10)
	require.NoError(t, err)

	rb.Write(ramp(0, 7))
	rb.Write(ramp(7, 7))

	assert.Equal(t, 10, rb.Len())
	assert.Equal(t, ramp(4, 10), rb.Snapshot())
	assert.Equal(t, uint64(14), rb.TotalWritten())
}

func TestRingBuffer_WriteLargerThanCapacity(t *testing.T) {
	t.Parallel()

	rb, err := New(time.Second, 10)
	require.NoError(t, err)

	rb.Write(ramp(0, 3))
	rb.Write(ramp(100, 25))

	assert.Equal(t, ramp(115, 10), rb.Snapshot())
	assert.Equal(t, uint64(28), rb.TotalWritten())
}

func TestRingBuffer_BoundHolds(t *testing.T) {
	t.Parallel()

	rb, err := New(time.Second, 100)
	require.NoError(t, err)

	next := 0
	for _, n := range []int{1, 37, 99, 100, 101, 3, 250, 64} {
		rb.Write(ramp(next, n))
		next += n
		snap := rb.Snapshot()
		require.LessOrEqual(t, len(snap), rb.Capacity())
		// newest sample is always last
		assert.InDelta(t, float32(next-1), snap[len(snap)-1], 0)
	}
}

func TestRingBuffer_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	rb, err := New(time.Second, 10)
	require.NoError(t, err)
	rb.Write(ramp(0, 5))

	snap := rb.Snapshot()
	snap[0] = 99
	assert.InDelta(t, float32(0), rb.Snapshot()[0], 0)
}

func TestRingBuffer_Reset(t *testing.T) {
	t.Parallel()

	rb, err := New(time.Second, 10)
	require.NoError(t, err)
	rb.Write(ramp(0, 15))
	rb.Reset()

	assert.Equal(t, 0, rb.Len())
	assert.Empty(t, rb.Snapshot())
	assert.Equal(t, uint64(15), rb.TotalWritten())
}

func TestRingBuffer_ConcurrentReadersSeeWholeWrites(t *testing.T) {
	t.Parallel()

	const chunk = 64
	rb, err := New(time.Second, chunk*8)
	require.NoError(t, err)

	// every write is a constant chunk, a torn write would mix values inside
	// one chunk aligned block
	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		block := make([]float32, chunk)
		for v := range 2000 {
			for i := range block {
				block[i] = float32(v)
			}
			rb.Write(block)
		}
	}()

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := rb.Snapshot()
				for off := 0; off+chunk <= len(snap); off += chunk {
					first := snap[off]
					for _, s := range snap[off : off+chunk] {
						if s != first {
							t.Errorf("torn write observed at offset %d", off)
							return
						}
					}
				}
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, uint64(2000*chunk), rb.TotalWritten())
}
