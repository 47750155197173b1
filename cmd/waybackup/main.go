// Command waybackup downloads every (or the first, or the last) archived
// snapshot of a URL from the Wayback Machine, resuming across restarts via
// a local metadata store. Grounded on the teacher's cmd/downurl/main.go:
// load configuration, run the job, print a friendly error and a non-zero
// exit code on failure.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lcalzada-xor/waybackup/internal/waysupervisor"
	"github.com/lcalzada-xor/waybackup/internal/wbconfig"
	"github.com/lcalzada-xor/waybackup/internal/wbmetrics"
	"github.com/lcalzada-xor/waybackup/internal/wbsink"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := wbsink.New(os.Stdout, os.Stderr)

	cmd := wbconfig.NewCommand(func(cmd *cobra.Command, cfg wbconfig.Config) error {
		shutdownMetrics, err := wbmetrics.ServeBackground(cfg.MetricsAddr)
		if err != nil {
			return err
		}
		defer shutdownMetrics(context.Background())

		sup := waysupervisor.New(cfg, sink)
		return sup.Run(ctx)
	})

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
