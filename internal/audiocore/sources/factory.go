// Package sources builds capture adapters from source configuration.
package sources

import (
	"github.com/tphakala/eas-monitor/internal/audiocore"
	"github.com/tphakala/eas-monitor/internal/audiocore/sources/device"
	"github.com/tphakala/eas-monitor/internal/audiocore/sources/file"
	"github.com/tphakala/eas-monitor/internal/audiocore/sources/receiver"
	"github.com/tphakala/eas-monitor/internal/audiocore/sources/stream"
	"github.com/tphakala/eas-monitor/internal/conf"
	"github.com/tphakala/eas-monitor/internal/errors"
)

// Factory creates the adapter for a source configuration.
type Factory func(cfg conf.SourceConfig) (audiocore.Adapter, error)

// New creates an adapter for cfg. Every source type has a case, unknown
// types are configuration errors.
func New(cfg conf.SourceConfig) (audiocore.Adapter, error) {
	switch cfg.Type {
	case conf.SourceTypeReceiver:
		r := cfg.Receiver
		return receiver.New(receiver.Config{
			ID:         cfg.ID,
			Driver:     r.Driver,
			Index:      r.Index,
			Frequency:  r.Frequency,
			SampleRate: r.SampleRate,
			Deviation:  r.Deviation,
			Downsample: r.Downsample,
			Gain:       r.Gain,
		}), nil

	case conf.SourceTypeStream:
		return stream.New(stream.Config{
			ID:         cfg.ID,
			URL:        cfg.URL,
			FFmpegPath: cfg.FFmpegPath,
			Transport:  cfg.Transport,
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
		}), nil

	case conf.SourceTypeDevice:
		return device.New(device.Config{
			ID:         cfg.ID,
			Device:     cfg.Device,
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
		}), nil

	case conf.SourceTypeFile:
		return file.New(file.Config{
			ID:       cfg.ID,
			Path:     cfg.Path,
			Loop:     cfg.Loop,
			Realtime: cfg.Realtime,
		}), nil

	default:
		return nil, errors.New(audiocore.ErrInvalidSourceConfig).
			Component("audiocore").
			Context("source_id", cfg.ID).
			Context("source_type", string(cfg.Type)).
			Build()
	}
}

// ListDevices returns the capture devices visible to the device adapter.
func ListDevices() ([]device.Info, error) {
	return device.List()
}
