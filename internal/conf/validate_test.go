package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings(t *testing.T) *Settings {
	t.Helper()
	settings, err := unmarshalSettings(newTestViper(t, ""))
	require.NoError(t, err)
	return settings
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(s *Settings) {},
		},
		{
			name:    "scan interval not shorter than buffer",
			mutate:  func(s *Settings) { s.Monitor.ScanInterval = 20 * time.Second },
			wantErr: "monitor.scaninterval must be shorter",
		},
		{
			name:    "zero concurrency",
			mutate:  func(s *Settings) { s.Monitor.MaxConcurrentScans = -1 },
			wantErr: "monitor.maxconcurrentscans",
		},
		{
			name:    "sample rate too low for mark tone",
			mutate:  func(s *Settings) { s.Monitor.SampleRate = 4000 },
			wantErr: "monitor.samplerate",
		},
		{
			name:    "vote threshold out of range",
			mutate:  func(s *Settings) { s.Decoder.VoteThreshold = 4 },
			wantErr: "decoder.votethreshold",
		},
		{
			name:    "backoff max below initial",
			mutate:  func(s *Settings) { s.Backoff.MaxDelay = 100 * time.Millisecond },
			wantErr: "backoff.maxdelay",
		},
		{
			name:    "dedup window shorter than buffer",
			mutate:  func(s *Settings) { s.Alert.DedupWindow = time.Second },
			wantErr: "alert.dedupwindow",
		},
		{
			name: "mqtt without broker host",
			mutate: func(s *Settings) {
				s.MQTT.Enabled = true
				s.MQTT.Broker = "localhost"
			},
			wantErr: "mqtt.broker",
		},
		{
			name:    "notify without urls",
			mutate:  func(s *Settings) { s.Notify.Enabled = true },
			wantErr: "notify.urls",
		},
		{
			name: "duplicate source ids",
			mutate: func(s *Settings) {
				s.Sources = []SourceConfig{
					{ID: "a", Type: SourceTypeFile, Path: "a.wav"},
					{ID: "a", Type: SourceTypeFile, Path: "b.wav"},
				}
			},
			wantErr: "duplicate id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings(t)
			tt.mutate(s)

			err := ValidateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateSource(t *testing.T) {
	tests := []struct {
		name    string
		source  SourceConfig
		wantErr string
	}{
		{
			name:   "valid rtsp stream",
			source: SourceConfig{ID: "cam", Type: SourceTypeStream, URL: "rtsp://10.0.0.5:554/live", SampleRate: 16000},
		},
		{
			name:    "unknown type",
			source:  SourceConfig{ID: "x", Type: "carrier-pigeon"},
			wantErr: "unknown source type",
		},
		{
			name:    "stream shell injection",
			source:  SourceConfig{ID: "s", Type: SourceTypeStream, URL: "rtsp://host/live;rm -rf /", SampleRate: 16000},
			wantErr: "invalid characters",
		},
		{
			name:    "stream unsupported scheme",
			source:  SourceConfig{ID: "s", Type: SourceTypeStream, URL: "file:///etc/passwd", SampleRate: 16000},
			wantErr: "unsupported stream scheme",
		},
		{
			name:    "file traversal",
			source:  SourceConfig{ID: "f", Type: SourceTypeFile, Path: "../../etc/shadow"},
			wantErr: "directory traversal",
		},
		{
			name:    "file without path",
			source:  SourceConfig{ID: "f", Type: SourceTypeFile},
			wantErr: "requires a path",
		},
		{
			name: "receiver audio rate too low",
			source: SourceConfig{ID: "rx", Type: SourceTypeReceiver, Receiver: ReceiverConfig{
				Frequency: 162.55e6, SampleRate: 240000, Downsample: 60,
			}},
			wantErr: "at least 8000",
		},
		{
			name:    "id with spaces",
			source:  SourceConfig{ID: "my source", Type: SourceTypeFile, Path: "a.wav"},
			wantErr: "invalid characters",
		},
		{
			name:    "negative priority",
			source:  SourceConfig{ID: "p", Type: SourceTypeFile, Path: "a.wav", Priority: -1},
			wantErr: "priority",
		},
		{
			name:    "gain too high",
			source:  SourceConfig{ID: "g", Type: SourceTypeFile, Path: "a.wav", Gain: 10.5},
			wantErr: "gain",
		},
		{
			name:   "gain within range",
			source: SourceConfig{ID: "g", Type: SourceTypeFile, Path: "a.wav", Gain: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSource(&tt.source)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
