// Package cmd assembles the eas-monitor command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/eas-monitor/cmd/config"
	"github.com/tphakala/eas-monitor/cmd/decode"
	"github.com/tphakala/eas-monitor/cmd/devices"
	"github.com/tphakala/eas-monitor/cmd/generate"
	"github.com/tphakala/eas-monitor/cmd/monitor"
	"github.com/tphakala/eas-monitor/internal/buildinfo"
	"github.com/tphakala/eas-monitor/internal/conf"
	"github.com/tphakala/eas-monitor/internal/logging"
)

// RootCommand creates and returns the root command
func RootCommand(info *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "eas-monitor",
		Short:        "SAME/EAS alert monitor",
		Long:         "Continuously monitors audio sources for SAME encoded Emergency Alert System messages.",
		Version:      info.GetVersion(),
		SilenceUsage: true,
	}

	if err := setupFlags(rootCmd, &configPath); err != nil {
		panic(err)
	}

	generateCmd := generate.Command()
	devicesCmd := devices.Command()

	rootCmd.AddCommand(
		monitor.Command(settings, info),
		decode.Command(settings),
		generateCmd,
		devicesCmd,
		config.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// Standalone tools run without a configuration file
		if cmd.Name() == generateCmd.Name() || cmd.Name() == devicesCmd.Name() {
			return logging.Init(conf.LogConfig{}, viper.GetBool("debug"))
		}

		if configPath != "" {
			conf.SetConfigFile(configPath)
		}
		loaded, err := conf.Load()
		if err != nil {
			return err
		}
		*settings = *loaded
		settings.Version = info.GetVersion()

		return logging.Init(settings.Main.Log, settings.Debug)
	}

	rootCmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		return logging.Close()
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configPath *string) error {
	rootCmd.PersistentFlags().StringVarP(configPath, "config", "c", "", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
