package decode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/eas-monitor/cmd/generate"
	"github.com/tphakala/eas-monitor/internal/audiocore/sources/file"
	"github.com/tphakala/eas-monitor/internal/same"
)

const testHeader = "ZCZC-WXR-TOR-039003-039005+0030-2911153-KLOX/NWS-"

var testIssued = time.Date(2026, 10, 18, 11, 53, 0, 0, time.UTC)

func decoderConfig() same.Config {
	return same.Config{
		SampleRate: 16000,
		SettleTime: time.Nanosecond,
		Now:        func() time.Time { return testIssued.Add(time.Hour) },
	}
}

func writeActivation(t *testing.T, rate int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "activation.wav")
	header, err := generate.Write(path, generate.Options{
		Originator: "WXR",
		Event:      "TOR",
		Locations:  []string{"039003", "039005"},
		Purge:      30 * time.Minute,
		Station:    "KLOX/NWS",
		Issued:     testIssued,
		SampleRate: rate,
		Amplitude:  0.5,
		Attention:  "nwr",
		Duration:   2 * time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, testHeader, header)
	return path
}

func TestFile_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, rate := range []int{16000, 48000} {
		t.Run(fmt.Sprintf("%dHz", rate), func(t *testing.T) {
			t.Parallel()

			report, err := File(t.Context(), writeActivation(t, rate), decoderConfig())
			require.NoError(t, err)

			assert.Equal(t, "message", report.Result)
			require.NotNil(t, report.Message)
			assert.Equal(t, testHeader, report.Message.Raw)
			assert.Equal(t, same.ConfidenceHigh, report.Message.Confidence)
			assert.Equal(t, testIssued, report.Message.Issued)
			assert.Equal(t, 3, report.EOMBursts)
			assert.Empty(t, report.Error)
			assert.Greater(t, report.Duration, 10.0)
		})
	}
}

func TestFile_Silence(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "silence.wav")
	require.NoError(t, file.WriteWAV(path, make([]float32, 16000), 16000))

	report, err := File(t.Context(), path, decoderConfig())
	require.NoError(t, err)
	assert.Equal(t, "no_signal", report.Result)
	assert.Nil(t, report.Message)
	assert.InDelta(t, 1.0, report.Duration, 0.001)
}

func TestFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := File(t.Context(), filepath.Join(t.TempDir(), "missing.wav"), decoderConfig())
	require.Error(t, err)
}

func TestRender(t *testing.T) {
	t.Parallel()

	msg, err := same.ParseHeader(testHeader, testIssued)
	require.NoError(t, err)
	msg.Confidence = same.ConfidenceHigh
	msg.Bursts, msg.Agreeing = 3, 3

	report := Report{
		File:      "activation.wav",
		Duration:  12.5,
		Result:    "message",
		Message:   msg,
		EOMBursts: 3,
	}

	t.Run("text", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		require.NoError(t, Render(&buf, FormatText, report))
		out := buf.String()
		assert.Contains(t, out, "Result:    message")
		assert.Contains(t, out, testHeader)
		assert.Contains(t, out, "Tornado Warning")
		assert.Contains(t, out, "Expires:   2026-10-18T12:23:00Z")
		assert.Contains(t, out, "3 of 3 agree, confidence high")
		assert.Contains(t, out, "EOM:       3 bursts")
		assert.NotContains(t, out, "Malformed")
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		require.NoError(t, Render(&buf, FormatJSON, report))

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "message", decoded["result"])
		assert.InDelta(t, 3, decoded["eom_bursts"], 0)
		assert.NotContains(t, decoded, "error")
		require.IsType(t, map[string]any{}, decoded["message"])
		assert.Equal(t, testHeader, decoded["message"].(map[string]any)["raw"])
	})

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		require.NoError(t, Render(&buf, FormatYAML, report))

		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "activation.wav", decoded["file"])
		assert.Equal(t, "message", decoded["result"])
	})
}
