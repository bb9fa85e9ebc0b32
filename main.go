package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tphakala/eas-monitor/cmd"
	"github.com/tphakala/eas-monitor/internal/buildinfo"
)

// Set with -ldflags at build time.
var (
	version   string
	buildDate string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	info := &buildinfo.Context{Version: version, BuildDate: buildDate}

	if err := cmd.RootCommand(info).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
