package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sheetwatch/internal/entity"
	"github.com/roach88/sheetwatch/internal/report"
)

// ReportResult is a rendered report, or the note that its period is empty.
type ReportResult struct {
	Kind   string `json:"kind"`
	Key    string `json:"key"`
	NoData bool   `json:"no_data"`
	Text   string `json:"text,omitempty"`
}

func (r ReportResult) String() string {
	if r.NoData {
		return fmt.Sprintf("No data for %s.", r.Key)
	}
	return r.Text
}

// NewReportCommand creates the report command and its monthly and weekly
// subcommands.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the monthly change report or the weekly suspended roster",
		Long: `Print a report from the history ledgers.

An empty period is not an error: the command prints "No data" and exits 0.

Example:
  sheetwatch report monthly 2025-03
  sheetwatch report weekly 2025-W11
  sheetwatch report weekly          # current ISO week`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "monthly [YYYY-MM]",
		Short:         "Monthly change report (defaults to the current month)",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := entity.Period(time.Now())
			if len(args) == 1 {
				key = args[0]
			}
			return runReport(rootOpts, cmd, "monthly", key)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "weekly [YYYY-Www]",
		Short:         "Weekly suspended roster (defaults to the current ISO week)",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := entity.WeekKey(time.Now())
			if len(args) == 1 {
				key = args[0]
			}
			return runReport(rootOpts, cmd, "weekly", key)
		},
	})

	return cmd
}

func runReport(opts *RootOptions, cmd *cobra.Command, kind, key string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	reporter := report.New(a.monthly, a.weekly, report.TextRenderer{})
	var text string
	if kind == "monthly" {
		text, err = reporter.RenderMonthly(key)
	} else {
		text, err = reporter.RenderWeekly(key)
	}

	result := ReportResult{Kind: kind, Key: key, Text: text}
	switch {
	case errors.Is(err, report.ErrNoData):
		result.NoData = true
	case err != nil:
		return WrapExitError(ExitCommandError, "failed to build report", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return formatter.Success(result)
}
