package same

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEncoder_BurstLength(t *testing.T) {
	t.Parallel()

	enc := NewEncoder(testRate, 0.5)
	burst := enc.Burst("NNNN")

	bits := (PreambleLength + 4) * 8
	want := int(math.Round(float64(bits) * testRate / BaudRate))
	assert.Len(t, burst, want)
}

func TestEncoder_Amplitude(t *testing.T) {
	t.Parallel()

	enc := NewEncoder(testRate, 0.25)
	var peak float64
	for _, s := range enc.Burst(rwtHeader) {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	assert.LessOrEqual(t, peak, 0.25)
	assert.Greater(t, peak, 0.24)

	assert.Equal(t, 0.5, NewEncoder(testRate, 0).amplitude)
	assert.Equal(t, 0.5, NewEncoder(testRate, 2).amplitude)
}

func TestEncoder_Layout(t *testing.T) {
	t.Parallel()

	enc := NewEncoder(testRate, 0.5)
	burst := len(enc.Burst(rwtHeader))
	eom := len(enc.Burst(eomMarker))
	gap := testRate

	assert.Len(t, enc.Header(rwtMessage()), 3*burst+2*gap)
	assert.Len(t, enc.EOM(), 3*eom+2*gap)

	alert := enc.Alert(rwtMessage(), AttentionEAS, 8*time.Second)
	assert.Len(t, alert, 3*burst+2*gap+gap+8*testRate+gap+3*eom+2*gap)

	quiet := enc.Alert(rwtMessage(), AttentionNone, 8*time.Second)
	assert.Len(t, quiet, 3*burst+2*gap+gap+3*eom+2*gap)
}

func TestTone(t *testing.T) {
	t.Parallel()

	dual := Tone(testRate, 0.8, 100*time.Millisecond, 853, 960)
	assert.Len(t, dual, testRate/10)
	for _, s := range dual {
		assert.LessOrEqual(t, math.Abs(float64(s)), 0.8+1e-6)
	}

	assert.Equal(t, make([]float32, 160), Tone(testRate, 0.8, 10*time.Millisecond))
}
