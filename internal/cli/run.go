package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/sheetwatch/internal/engine"
	"github.com/roach88/sheetwatch/internal/metrics"
	"github.com/roach88/sheetwatch/internal/notify"
	"github.com/roach88/sheetwatch/internal/report"
	"github.com/roach88/sheetwatch/internal/schedule"
)

// shutdownGrace bounds how long queued notifications may take to drain on
// shutdown.
const shutdownGrace = 15 * time.Second

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// Clock drives the schedules. Defaults to the wall clock.
	Clock clock.Clock
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Monitor the spreadsheet until interrupted",
		Long: `Start the monitor.

Every monitor.interval the spreadsheet is fetched, diffed against the last
accepted snapshot and the resulting changes are announced. Monthly and weekly
reports are posted on their configured days when reports.enabled is set.

Example:
  sheetwatch run --config /etc/sheetwatch
  SHEETWATCH_DRY_RUN=true sheetwatch run -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(opts, cmd)
		},
	}

	return cmd
}

func runMonitor(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if err := cfg.Validate(true); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("error closing state", "error", closeErr)
		}
	}()

	src, err := newSource(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create source", err)
	}
	sink, err := newSink(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create notification sink", err)
	}

	reg := prometheus.NewRegistry()
	eng, err := a.newEngine(src, sink, metrics.New(reg))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	// The dispatcher outlives ctx so queued notifications drain on shutdown.
	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	defer cancelDispatch()
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		_ = eng.Run(dispatchCtx)
	}()

	var wg sync.WaitGroup
	if cfg.Metrics.Addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, reg); err != nil {
				slog.Error("metrics server failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
	}
	if cfg.Reports.Enabled {
		reporter := report.New(a.monthly, a.weekly, report.TextRenderer{})
		hour := cfg.Reports.Hour
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = schedule.Daily(ctx, clk, hour, schedule.OnMonthDay(cfg.Reports.MonthlyDay), "monthly-report",
				reportJob(eng, "monthly", reporter.MonthlyNotification))
		}()
		go func() {
			defer wg.Done()
			_ = schedule.Daily(ctx, clk, hour, schedule.OnWeekday(cfg.Reports.WeeklyDay), "weekly-report",
				reportJob(eng, "weekly", reporter.WeeklyNotification))
		}()
	}

	slog.Info("monitor starting",
		"source", src.Describe(),
		"interval", cfg.Monitor.Interval,
		"entities", a.store.Len(),
		"warm", a.store.Warm(),
		"dry_run", cfg.DryRun,
	)
	fmt.Fprintln(cmd.OutOrStdout(), "Monitor started. Press Ctrl-C to stop.")

	err = schedule.Every(ctx, clk, cfg.Monitor.Interval, "cycle", func(ctx context.Context, _ time.Time) {
		// Tick logs and journals its own outcome.
		_, _ = eng.Tick(ctx)
	})
	wg.Wait()

	eng.Close()
	select {
	case <-dispatched:
	case <-time.After(shutdownGrace):
		slog.Warn("notifications still pending at shutdown", "pending", eng.Pending())
		cancelDispatch()
		<-dispatched
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "monitor error", err)
	}
	slog.Info("monitor stopped gracefully")
	return nil
}

// reportJob renders one scheduled report and queues it for delivery. A
// period with no data is skipped quietly.
func reportJob(eng *engine.Engine, name string, build func(time.Time) (notify.Notification, error)) schedule.Job {
	return func(_ context.Context, now time.Time) {
		n, err := build(now)
		switch {
		case errors.Is(err, report.ErrNoData):
			slog.Info("no data for scheduled report", "report", name)
		case err != nil:
			slog.Error("scheduled report failed", "report", name, "error", err)
		case !eng.Enqueue(n):
			slog.Warn("dispatcher closed, report dropped", "report", name)
		default:
			slog.Info("scheduled report queued", "report", name, "title", n.Title)
		}
	}
}
