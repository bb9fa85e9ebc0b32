// Package decode implements offline decoding of a recorded audio file.
package decode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/eas-monitor/internal/audiocore"
	"github.com/tphakala/eas-monitor/internal/audiocore/resample"
	"github.com/tphakala/eas-monitor/internal/audiocore/sources/file"
	"github.com/tphakala/eas-monitor/internal/conf"
	"github.com/tphakala/eas-monitor/internal/errors"
	"github.com/tphakala/eas-monitor/internal/same"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Report is the outcome of decoding one file.
type Report struct {
	File            string        `json:"file" yaml:"file"`
	Duration        float64       `json:"duration_seconds" yaml:"duration_seconds"`
	Result          string        `json:"result" yaml:"result"`
	Message         *same.Message `json:"message,omitempty" yaml:"message,omitempty"`
	EOMBursts       int           `json:"eom_bursts" yaml:"eom_bursts"`
	MalformedBursts int           `json:"malformed_bursts" yaml:"malformed_bursts"`
	Error           string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Command creates the decode command.
func Command(settings *conf.Settings) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "decode [input.wav|input.flac]",
		Short: "Decode SAME headers from an audio file",
		Long:  "Decode a recorded WAV or FLAC file through the same decoder the monitor uses and print the result.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if format != FormatText && format != FormatJSON && format != FormatYAML {
				return fmt.Errorf("unsupported output format %q, use text, json or yaml", format)
			}

			report, err := File(cmd.Context(), args[0], same.Config{
				SampleRate:       settings.Monitor.SampleRate,
				VoteThreshold:    settings.Decoder.VoteThreshold,
				RequireAgreement: settings.Decoder.RequireAgreement,
				// a recording has no more bursts coming
				SettleTime: time.Nanosecond,
			})
			if err != nil {
				return err
			}
			return Render(cmd.OutOrStdout(), format, report)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", FormatText, "Output format: text, json, yaml")
	return cmd
}

// File decodes the whole of path as one snapshot.
func File(ctx context.Context, path string, cfg same.Config) (Report, error) {
	decoder := same.NewDecoder(cfg)

	pcm, err := readMono(ctx, path, decoder.SampleRate())
	if err != nil {
		return Report{}, err
	}

	res := decoder.Decode(pcm)
	report := Report{
		File:            path,
		Duration:        float64(len(pcm)) / float64(decoder.SampleRate()),
		Result:          res.Kind.String(),
		Message:         res.Message,
		EOMBursts:       res.EOMBursts,
		MalformedBursts: res.MalformedBursts,
	}
	if res.Err != nil {
		report.Error = res.Err.Error()
	}
	return report, nil
}

// readMono reads the file to the end, downmixed and resampled to rate.
func readMono(ctx context.Context, path string, rate int) ([]float32, error) {
	adapter := file.New(file.Config{ID: "decode", Path: path})
	if err := adapter.Open(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = adapter.Close() }()

	format := adapter.Format()
	var native []float32
	for {
		chunk, err := adapter.Pull(ctx, audiocore.DefaultPullSize)
		native = append(native, chunk.Samples...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	return resample.Resample(resample.Downmix(native, format.Channels), format.SampleRate, rate), nil
}

// Render writes report to w in format.
func Render(w io.Writer, format string, report Report) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		return renderText(w, report)
	}
}

func renderText(w io.Writer, r Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "File:      %s (%.1f s)\n", r.File, r.Duration)
	fmt.Fprintf(&b, "Result:    %s\n", r.Result)

	if m := r.Message; m != nil {
		fmt.Fprintf(&b, "Header:    %s\n", m.Raw)
		fmt.Fprintf(&b, "Event:     %s (%s, %s)\n", m.EventName(), m.Event, m.Significance())
		fmt.Fprintf(&b, "Issued by: %s (%s), station %s\n", m.Originator.Name(), m.Originator, strings.TrimSpace(m.Station))
		fmt.Fprintf(&b, "Issued:    %s\n", m.Issued.UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, "Expires:   %s\n", m.Expires().UTC().Format(time.RFC3339))
		for i, l := range m.Locations {
			label := "Areas:"
			if i > 0 {
				label = ""
			}
			fmt.Fprintf(&b, "%-10s %s  %s\n", label, l, l.Describe())
		}
		fmt.Fprintf(&b, "Bursts:    %d of %d agree, confidence %s\n", m.Agreeing, m.Bursts, m.Confidence)
	}
	if r.EOMBursts > 0 {
		fmt.Fprintf(&b, "EOM:       %d bursts\n", r.EOMBursts)
	}
	if r.MalformedBursts > 0 {
		fmt.Fprintf(&b, "Malformed: %d bursts\n", r.MalformedBursts)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "Error:     %s\n", r.Error)
	}

	_, err := io.WriteString(w, b.String())
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

