// Package devices implements listing of audio capture devices.
package devices

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/eas-monitor/internal/audiocore/sources"
)

// Command creates the devices command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices",
		Long:  "List the capture devices usable as the device of a source with type device.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := sources.ListDevices()
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "No capture devices found")
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "INDEX\tNAME\tID\tDEFAULT")
			for _, d := range infos {
				def := ""
				if d.IsDefault {
					def = "*"
				}
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", d.Index, d.Name, d.ID, def)
			}
			return w.Flush()
		},
	}
}
