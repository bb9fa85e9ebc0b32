package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/eas-monitor/internal/audiocore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSelectDevice(t *testing.T) {
	t.Parallel()

	devices := []Info{
		{Index: 0, Name: "HDA Intel PCH: ALC3246 Analog", ID: "hw:0,0"},
		{Index: 1, Name: "USB Audio Device", ID: "hw:1,0", IsDefault: true},
		{Index: 2, Name: "Scanner Line In", ID: "hw:2,0"},
	}

	tests := []struct {
		name string
		want string
		idx  int
	}{
		{"empty selects default", "", 1},
		{"default keyword", "default", 1},
		{"exact name", "Scanner Line In", 2},
		{"decoded id", "hw:0,0", 0},
		{"substring", "ALC3246", 0},
		{"no match", "Bluetooth", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.idx, selectDevice(devices, tt.want))
		})
	}

	assert.Equal(t, -1, selectDevice(nil, ""))
	assert.Equal(t, 0, selectDevice(devices[2:], ""), "first device without a default")
}

func TestDecodeID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hw:1,0", decodeID("68773a312c300000"))
	assert.Equal(t, "not-hex", decodeID("not-hex"))
}

func TestPull_DrainsCallbackData(t *testing.T) {
	t.Parallel()

	a := New(Config{ID: "card", SampleRate: 8000, Channels: 2})
	assert.Equal(t, audiocore.Format{SampleRate: 8000, Channels: 2}, a.Format())

	// two stereo frames and a dangling half frame
	a.write([]byte{0x00, 0x40, 0x00, 0xc0, 0x00, 0x00, 0xff, 0x7f, 0x00, 0x40})

	chunk, err := a.Pull(t.Context(), 1024)
	require.NoError(t, err)
	require.Len(t, chunk.Samples, 4)
	assert.InDelta(t, 0.5, chunk.Samples[0], 1e-6)
	assert.InDelta(t, -0.5, chunk.Samples[1], 1e-6)

	// the half frame is only delivered once completed
	go func() {
		time.Sleep(10 * time.Millisecond)
		a.write([]byte{0x00, 0x00})
	}()
	chunk, err = a.Pull(t.Context(), 1024)
	require.NoError(t, err)
	assert.Len(t, chunk.Samples, 2)
}

func TestPull_RespectsMaxSamples(t *testing.T) {
	t.Parallel()

	a := New(Config{ID: "card", SampleRate: 8000, Channels: 1})
	a.write(make([]byte, 200))

	chunk, err := a.Pull(t.Context(), 30)
	require.NoError(t, err)
	assert.Len(t, chunk.Samples, 30)

	chunk, err = a.Pull(t.Context(), 1000)
	require.NoError(t, err)
	assert.Len(t, chunk.Samples, 70)
}

func TestPull_StoppedDeviceIsTransient(t *testing.T) {
	t.Parallel()

	a := New(Config{ID: "card"})
	a.onStop()

	_, err := a.Pull(t.Context(), 1024)
	require.Error(t, err)
	assert.True(t, audiocore.IsTransient(err))
	require.NoError(t, a.Close())
}

func TestPull_ContextCancel(t *testing.T) {
	t.Parallel()

	a := New(Config{ID: "card"})
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err := a.Pull(ctx, 1024)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOverrunsCounted(t *testing.T) {
	t.Parallel()

	a := New(Config{ID: "card", SampleRate: 100, Channels: 1})
	// ring holds 100*2*2 bytes
	a.write(make([]byte, 400))
	a.write(make([]byte, 2))
	assert.Equal(t, uint64(1), a.Overruns())
}
