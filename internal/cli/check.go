package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sheetwatch/internal/engine"
	"github.com/roach88/sheetwatch/internal/notify"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	DryRun bool

	// Sink overrides the configured sink (for testing).
	Sink notify.Sink
}

// CheckResult is the outcome of one cycle.
type CheckResult struct {
	CycleID  string   `json:"cycle_id"`
	Outcome  string   `json:"outcome"`
	Warm     bool     `json:"warm"`
	Rows     int      `json:"rows"`
	Skipped  int      `json:"skipped"`
	Events   int      `json:"events"`
	Changes  int      `json:"changes"`
	Queued   int      `json:"queued"`
	Departed []string `json:"departed,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// WriteText implements textWriter.
func (r CheckResult) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Cycle %s: %s\n", r.CycleID, r.Outcome)
	fmt.Fprintf(w, "  Rows:      %d (%d skipped)\n", r.Rows, r.Skipped)
	fmt.Fprintf(w, "  Events:    %d (%d changes)\n", r.Events, r.Changes)
	fmt.Fprintf(w, "  Queued:    %d\n", r.Queued)
	if len(r.Departed) > 0 {
		fmt.Fprintf(w, "  Departed:  %v\n", r.Departed)
	}
	if !r.Warm && r.Error == "" {
		fmt.Fprintln(w, "  Warm-up load: nothing was announced")
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  Error:     %s\n", r.Error)
	}
	return nil
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return newCheckCommand(&CheckOptions{RootOptions: rootOpts})
}

func newCheckCommand(opts *CheckOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run exactly one monitoring cycle",
		Long: `Fetch the spreadsheet once, diff it and deliver the resulting notifications.

With --dry-run the integrity guard is still applied, but nothing is committed
or recorded and notifications are written to the log instead of Discord.

Example:
  sheetwatch check
  sheetwatch check --dry-run --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "diff and route without committing or sending")

	return cmd
}

func runCheck(opts *CheckOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	cfg.DryRun = cfg.DryRun || opts.DryRun
	if err := cfg.Validate(opts.Sink == nil); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	src, err := newSource(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create source", err)
	}
	sink := opts.Sink
	if sink == nil {
		if sink, err = newSink(cfg); err != nil {
			return WrapExitError(ExitCommandError, "failed to create notification sink", err)
		}
	}

	eng, err := a.newEngine(src, sink, nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}

	rep, tickErr := eng.Tick(ctx)
	eng.Close()
	if err := eng.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "delivery interrupted", err)
	}

	result := CheckResult{
		CycleID:  rep.CycleID,
		Outcome:  rep.Outcome,
		Warm:     rep.Warm,
		Rows:     rep.Rows,
		Skipped:  rep.Skipped,
		Events:   len(rep.Events),
		Changes:  rep.Changes,
		Queued:   rep.Queued,
		Departed: rep.Departed,
	}
	if tickErr != nil {
		result.Error = tickErr.Error()
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if err := formatter.Success(result); err != nil {
		return err
	}
	if tickErr != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("cycle failed (%s)", engine.CodeOf(tickErr)), tickErr)
	}
	return nil
}
