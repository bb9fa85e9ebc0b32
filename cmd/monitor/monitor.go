// Package monitor implements the command that runs the full monitoring
// pipeline until interrupted.
package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/eas-monitor/internal/alert"
	"github.com/tphakala/eas-monitor/internal/audiocore/precheck"
	"github.com/tphakala/eas-monitor/internal/audiocore/registry"
	"github.com/tphakala/eas-monitor/internal/buildinfo"
	"github.com/tphakala/eas-monitor/internal/conf"
	"github.com/tphakala/eas-monitor/internal/health"
	"github.com/tphakala/eas-monitor/internal/httpserver"
	"github.com/tphakala/eas-monitor/internal/logging"
	"github.com/tphakala/eas-monitor/internal/observability"
	"github.com/tphakala/eas-monitor/internal/same"
	"github.com/tphakala/eas-monitor/internal/scanner"
	"github.com/tphakala/eas-monitor/internal/telemetry"
)

// Command creates the monitor command.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Monitor audio sources for SAME alerts",
		Long:  "Capture every configured source, decode SAME bursts and deliver alerts to the configured sinks.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Run(cmd.Context(), settings, info)
		},
	}

	if err := setupFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// setupFlags configures flags specific to the monitor command.
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("listen", "", "Listen address of the health and metrics endpoint")
	cmd.Flags().Duration("scan-interval", 0, "Time between buffer scans")
	cmd.Flags().Int("max-concurrent-scans", 0, "Maximum number of concurrent decodes")

	bindings := map[string]string{
		"webserver.listen":           "listen",
		"monitor.scaninterval":       "scan-interval",
		"monitor.maxconcurrentscans": "max-concurrent-scans",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// Run wires the registry, scanner, health monitor, alert emitter and HTTP
// server and blocks until ctx is cancelled.
func Run(ctx context.Context, settings *conf.Settings, info *buildinfo.Context) error {
	logger := logging.ForService("monitor")
	if logger == nil {
		logger = slog.Default().With("service", "monitor")
	}

	if settings.Telemetry.Enabled && info.SystemID == "" {
		if paths, err := conf.GetDefaultConfigPaths(); err == nil {
			if id, err := telemetry.LoadOrCreateSystemID(paths[0]); err == nil {
				info.SystemID = id
			}
		}
	}
	closeTelemetry, err := telemetry.Init(settings, info.GetSystemID())
	if err != nil {
		logger.Warn("error telemetry disabled", "error", err)
	}
	defer closeTelemetry()

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	tracker := health.NewTracker(settings.Monitor.SilenceThreshold,
		health.WithMetrics(m.AudioCore),
		health.WithProcessStats())

	reg := registry.New(registry.Config{
		BufferDuration: settings.Monitor.BufferDuration,
		SampleRate:     settings.Monitor.SampleRate,
		Backoff:        settings.Backoff,
	}, registry.WithObserver(tracker))
	tracker.SetActivityProvider(reg)
	for _, src := range settings.Sources {
		if _, err := reg.Add(src); err != nil {
			return err
		}
	}

	sinks, err := alert.BuildSinks(ctx, settings, m.MQTT)
	if err != nil {
		return err
	}
	emitter := alert.NewEmitter(alert.Config{
		QueueSize:   settings.Alert.QueueSize,
		DedupWindow: settings.Alert.DedupWindow,
		Monitor:     settings.Main.Name,
	}, sinks, alert.WithMetrics(m.Alert))
	emitter.Start(ctx)
	// stopped last so alerts decoded during shutdown are still delivered
	defer emitter.Stop()

	decoder := same.NewDecoder(same.Config{
		SampleRate:       settings.Monitor.SampleRate,
		VoteThreshold:    settings.Decoder.VoteThreshold,
		RequireAgreement: settings.Decoder.RequireAgreement,
	})

	var filter *precheck.Filter
	if settings.Precheck.Enabled {
		filter = precheck.New(precheck.Config{
			SampleRate:     settings.Monitor.SampleRate,
			RatioDB:        settings.Precheck.RatioDB,
			MinLevelDBFS:   settings.Precheck.MinLevelDBFS,
			MinTonalBlocks: settings.Precheck.MinTonalBlocks,
		})
	}

	scan := scanner.New(scanner.Config{
		ScanInterval:       settings.Monitor.ScanInterval,
		BufferDuration:     settings.Monitor.BufferDuration,
		MaxConcurrentScans: settings.Monitor.MaxConcurrentScans,
		Precheck:           filter,
	}, reg, decoder, emitter, tracker)

	healthMonitor := health.NewMonitor(tracker, reg, settings.Monitor.HealthCheckInterval)

	if err := reg.StartAll(ctx); err != nil {
		// failed sources stay in error and can be restarted over HTTP
		logger.Error("some sources failed to start", "error", err)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn("failed to stop sources", "error", err)
		}
	}()

	logger.Info("monitor started",
		"station", settings.Main.Name,
		"version", info.GetVersion(),
		"sources", len(settings.Sources),
		"sinks", emitter.Sinks(),
		"max_concurrent_scans", settings.Monitor.MaxConcurrentScans)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		healthMonitor.Start(gctx)
		scan.Start(gctx)
		<-gctx.Done()
		scan.Stop()
		healthMonitor.Stop()
		return nil
	})

	if settings.WebServer.Enabled {
		server := httpserver.New(settings.WebServer.Listen, reg, tracker,
			httpserver.WithMetrics(m),
			httpserver.WithVersion(info.GetVersion()))
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	err = g.Wait()
	logger.Info("monitor stopping")
	return err
}
