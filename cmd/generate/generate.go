// Package generate implements synthesis of SAME test activations.
package generate

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/eas-monitor/internal/audiocore/sources/file"
	"github.com/tphakala/eas-monitor/internal/same"
)

// Options describes one generated activation.
type Options struct {
	Originator string
	Event      string
	Locations  []string
	Purge      time.Duration
	Station    string
	Issued     time.Time

	SampleRate int
	Amplitude  float64
	Attention  string // none, eas or nwr
	Duration   time.Duration
	HeaderOnly bool
}

// Command creates the generate command.
func Command() *cobra.Command {
	opts := Options{}

	cmd := &cobra.Command{
		Use:   "generate [output.wav]",
		Short: "Generate a SAME test activation as a WAV file",
		Long: `Generate a complete SAME activation (three header bursts, the attention
signal and three end of message bursts) for exercising a receiver.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Issued = time.Now().UTC()
			header, err := Write(args[0], opts)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n%s\n", args[0], header)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Originator, "originator", "EAS", "Originator code (PEP, CIV, WXR, EAS)")
	cmd.Flags().StringVar(&opts.Event, "event", "RWT", "Three letter event code")
	cmd.Flags().StringSliceVar(&opts.Locations, "locations", []string{"000000"}, "PSSCCC location codes")
	cmd.Flags().DurationVar(&opts.Purge, "purge", 15*time.Minute, "Purge time, rounded to minutes")
	cmd.Flags().StringVar(&opts.Station, "station", "EASMON  ", "Station identifier, padded to eight characters")
	cmd.Flags().IntVar(&opts.SampleRate, "rate", 16000, "Output sample rate in Hz")
	cmd.Flags().Float64Var(&opts.Amplitude, "amplitude", 0.5, "Peak amplitude in (0, 1]")
	cmd.Flags().StringVar(&opts.Attention, "attention", "nwr", "Attention signal: none, eas, nwr")
	cmd.Flags().DurationVar(&opts.Duration, "attention-duration", 8*time.Second, "Attention signal length")
	cmd.Flags().BoolVar(&opts.HeaderOnly, "header-only", false, "Write only the three header bursts")

	return cmd
}

// Message builds the header described by opts. The result is validated by
// parsing its wire form, so codes the decoder would reject fail here too.
func Message(opts Options) (*same.Message, error) {
	m := same.Message{
		Originator: same.Originator(strings.ToUpper(opts.Originator)),
		Event:      strings.ToUpper(opts.Event),
		Purge:      opts.Purge,
		Issued:     opts.Issued.UTC().Truncate(time.Minute),
		Station:    opts.Station,
	}
	for _, code := range opts.Locations {
		loc, err := same.ParseLocation(code)
		if err != nil {
			return nil, err
		}
		m.Locations = append(m.Locations, loc)
	}

	parsed, err := same.ParseHeader(same.FormatHeader(m), opts.Issued)
	if err != nil {
		return nil, err
	}
	return parsed, nil
}

// Write synthesizes the activation described by opts to a WAV file at path
// and returns the header it carries.
func Write(path string, opts Options) (string, error) {
	msg, err := Message(opts)
	if err != nil {
		return "", err
	}

	tone, err := attentionTone(opts.Attention)
	if err != nil {
		return "", err
	}

	enc := same.NewEncoder(opts.SampleRate, opts.Amplitude)
	var pcm []float32
	if opts.HeaderOnly {
		pcm = enc.Header(*msg)
	} else {
		pcm = enc.Alert(*msg, tone, opts.Duration)
	}
	// leading and trailing silence keeps the first burst clear of the file edge
	pcm = append(enc.Silence(time.Second), pcm...)
	pcm = append(pcm, enc.Silence(time.Second)...)

	if err := file.WriteWAV(path, pcm, opts.SampleRate); err != nil {
		return "", err
	}
	return msg.Raw, nil
}

func attentionTone(name string) (same.AttentionTone, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return same.AttentionNone, nil
	case "eas":
		return same.AttentionEAS, nil
	case "nwr":
		return same.AttentionNWR, nil
	}
	return same.AttentionNone, fmt.Errorf("unknown attention signal %q, use none, eas or nwr", name)
}
