package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sheetwatch/internal/entity"
)

// StatusResult summarizes the monitor state.
type StatusResult struct {
	Entities      int            `json:"entities"`
	LastCheckedAt *time.Time     `json:"last_checked_at,omitempty"`
	Warm          bool           `json:"warm"`
	Period        string         `json:"period"`
	Changes       int            `json:"changes"`
	StatusChanges int            `json:"status_changes"`
	RegimeChanges int            `json:"regime_changes"`
	Week          string         `json:"week"`
	Suspended     int            `json:"suspended"`
	LastCycle     string         `json:"last_cycle,omitempty"`
	Outcomes      map[string]int `json:"outcomes,omitempty"`
}

// WriteText implements textWriter.
func (r StatusResult) WriteText(w io.Writer) error {
	last := "never"
	if r.LastCheckedAt != nil {
		last = r.LastCheckedAt.Local().Format("02/01/2006 15:04:05")
	}
	warm := "complete"
	if !r.Warm {
		warm = "pending (next cycle loads silently)"
	}
	fmt.Fprintf(w, "Monitored entities: %d\n", r.Entities)
	fmt.Fprintf(w, "Last check:         %s\n", last)
	fmt.Fprintf(w, "Warm-up:            %s\n", warm)
	fmt.Fprintf(w, "Changes in %s:  %d (%d status, %d regime)\n", r.Period, r.Changes, r.StatusChanges, r.RegimeChanges)
	fmt.Fprintf(w, "Suspended in %s: %d\n", r.Week, r.Suspended)
	if r.LastCycle != "" {
		fmt.Fprintf(w, "Last cycle:         %s\n", r.LastCycle)
	}
	return nil
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Show monitored entity count, last check and current totals",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd, time.Now())
		},
	}
	return cmd
}

func runStatus(opts *RootOptions, cmd *cobra.Command, now time.Time) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	snap := a.store.Current()
	result := StatusResult{
		Entities: snap.Len(),
		Warm:     a.store.Warm(),
		Period:   entity.Period(now),
		Week:     entity.WeekKey(now),
	}
	if !snap.LastCheckedAt.IsZero() {
		result.LastCheckedAt = &snap.LastCheckedAt
	}
	if entry, ok := a.monthly.Get(result.Period); ok {
		result.Changes = entry.Total
		result.StatusChanges = entry.StatusCount
		result.RegimeChanges = entry.RegimeCount
	}
	if roster, ok := a.weekly.Get(result.Week); ok {
		result.Suspended = roster.Count
	}

	ctx := context.Background()
	if c, ok, err := a.journal.LastCycle(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	} else if ok {
		result.LastCycle = fmt.Sprintf("%s at %s", c.Outcome, c.StartedAt.Local().Format("02/01/2006 15:04:05"))
	}
	if result.Outcomes, err = a.journal.CountOutcomes(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return formatter.Success(result)
}
