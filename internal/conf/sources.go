// conf/sources.go audio source definitions
package conf

import (
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
)

// SourceType identifies the capture variant behind an audio source.
type SourceType string

const (
	SourceTypeReceiver SourceType = "receiver" // SDR hardware receiver
	SourceTypeStream   SourceType = "stream"   // network stream decoded by ffmpeg
	SourceTypeDevice   SourceType = "device"   // local sound card
	SourceTypeFile     SourceType = "file"     // local WAV or FLAC file
)

// SourceTypes lists every supported source type.
var SourceTypes = []SourceType{SourceTypeReceiver, SourceTypeStream, SourceTypeDevice, SourceTypeFile}

// ReceiverConfig holds tuning parameters for SDR sources.
type ReceiverConfig struct {
	Driver     string  // hardware driver, "rtl"
	Index      int     // device index for the driver
	Frequency  float64 // center frequency in Hz
	SampleRate int     // IQ sample rate
	Deviation  float64 // FM deviation in Hz
	Downsample int     // IQ to audio decimation factor
	Gain       float64 // tuner gain in dB, 0 = automatic
}

// SourceConfig is the configuration of a single audio source.
type SourceConfig struct {
	ID         string
	Name       string
	Type       SourceType
	Enabled    bool
	AutoStart  bool
	Priority   int     // lower is preferred
	SampleRate int     // native rate requested from the source, 0 = source default
	Channels   int     // native channel count, 0 = 1
	Gain       float64 // linear input gain applied after resampling, 0 = unity

	// stream
	URL        string
	Transport  string // rtsp transport, tcp or udp
	FFmpegPath string

	// device
	Device string // device name or id substring, empty = system default

	// file
	Path     string
	Loop     bool
	Realtime bool // pace reads at the native sample rate

	Receiver ReceiverConfig
}

// normalize fills per-type defaults.
func (s *SourceConfig) normalize() {
	s.ID = strings.TrimSpace(s.ID)
	s.Type = SourceType(strings.ToLower(string(s.Type)))
	if s.Channels == 0 {
		s.Channels = 1
	}
	if s.Gain == 0 {
		s.Gain = 1
	}
	switch s.Type {
	case SourceTypeStream:
		if s.SampleRate == 0 {
			s.SampleRate = 16000
		}
		if s.Transport == "" {
			s.Transport = "tcp"
		}
		if s.FFmpegPath == "" {
			s.FFmpegPath = "ffmpeg"
		}
	case SourceTypeDevice:
		if s.SampleRate == 0 {
			s.SampleRate = 48000
		}
	case SourceTypeReceiver:
		if s.Receiver.Driver == "" {
			s.Receiver.Driver = "rtl"
		}
		if s.Receiver.SampleRate == 0 {
			s.Receiver.SampleRate = 240000
		}
		if s.Receiver.Downsample == 0 {
			s.Receiver.Downsample = 10
		}
		if s.Receiver.Deviation == 0 {
			s.Receiver.Deviation = 5000
		}
	}
}

// Normalized returns a copy of the config with per-type defaults applied.
func (s SourceConfig) Normalized() SourceConfig {
	s.normalize()
	return s
}

// dangerousChars are rejected in anything handed to an external process.
const dangerousChars = "`$;|&<>\n\r"

// ValidateSource checks a single source definition.
func ValidateSource(s *SourceConfig) error {
	var errs []string

	if s.ID != "" && strings.ContainsAny(s.ID, " /\\"+dangerousChars) {
		errs = append(errs, fmt.Sprintf("source id %q contains invalid characters", s.ID))
	}
	if !slices.Contains(SourceTypes, s.Type) {
		errs = append(errs, fmt.Sprintf("unknown source type %q", s.Type))
	}
	if s.Priority < 0 {
		errs = append(errs, "priority must not be negative")
	}
	if s.SampleRate < 0 || s.SampleRate > 384000 {
		errs = append(errs, fmt.Sprintf("sample rate %d out of range", s.SampleRate))
	}
	if s.Channels < 0 || s.Channels > 8 {
		errs = append(errs, fmt.Sprintf("channel count %d out of range", s.Channels))
	}
	if s.Gain < 0 || s.Gain > 10 {
		errs = append(errs, fmt.Sprintf("gain %.2f out of range, must be between 0 and 10", s.Gain))
	}

	switch s.Type {
	case SourceTypeStream:
		if err := validateStreamURL(s.URL); err != nil {
			errs = append(errs, err.Error())
		}
		if s.Transport != "" && s.Transport != "tcp" && s.Transport != "udp" {
			errs = append(errs, fmt.Sprintf("invalid transport %q, must be tcp or udp", s.Transport))
		}
		if s.SampleRate == 0 {
			errs = append(errs, "stream sources need a sample rate")
		}
	case SourceTypeFile:
		if s.Path == "" {
			errs = append(errs, "file source requires a path")
		} else if strings.Contains(filepath.ToSlash(s.Path), "../") {
			errs = append(errs, "file path must not contain directory traversal")
		}
	case SourceTypeDevice:
		if strings.ContainsAny(s.Device, dangerousChars) {
			errs = append(errs, "device name contains invalid characters")
		}
	case SourceTypeReceiver:
		r := s.Receiver
		if r.Frequency <= 0 {
			errs = append(errs, "receiver requires a frequency")
		}
		if r.SampleRate <= 0 || r.Downsample <= 0 {
			errs = append(errs, "receiver sample rate and downsample must be positive")
		} else if r.SampleRate/r.Downsample < 8000 {
			errs = append(errs, "receiver audio rate (samplerate / downsample) must be at least 8000")
		}
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateStreamURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("stream source requires a url")
	}
	if strings.ContainsAny(raw, dangerousChars) {
		return fmt.Errorf("stream url contains invalid characters")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid stream url: %w", err)
	}
	switch u.Scheme {
	case "rtsp", "rtsps", "http", "https", "rtmp", "udp", "tcp", "srt":
	default:
		return fmt.Errorf("unsupported stream scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("stream url has no host")
	}
	return nil
}
