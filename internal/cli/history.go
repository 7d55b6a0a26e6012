package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sheetwatch/internal/journal"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// HistoryChange is one journaled change in CLI output.
type HistoryChange struct {
	At       time.Time `json:"at"`
	Type     string    `json:"type"`
	Previous string    `json:"previous,omitempty"`
	New      string    `json:"new"`
	Notified bool      `json:"notified"`
	Reason   string    `json:"reason,omitempty"`
}

// HistoryDispatch is one delivery attempt in CLI output.
type HistoryDispatch struct {
	At          time.Time `json:"at"`
	Kind        string    `json:"kind"`
	Destination string    `json:"destination"`
	OK          bool      `json:"ok"`
	Error       string    `json:"error,omitempty"`
}

// HistoryResult is everything journaled about one entity.
type HistoryResult struct {
	EntityID   string            `json:"entity_id"`
	Name       string            `json:"name,omitempty"`
	Changes    []HistoryChange   `json:"changes"`
	Dispatches []HistoryDispatch `json:"dispatches"`
}

const historyTimeLayout = "02/01/2006 15:04:05"

// WriteText implements textWriter.
func (r HistoryResult) WriteText(w io.Writer) error {
	if len(r.Changes) == 0 {
		fmt.Fprintf(w, "No journaled changes for %s\n", r.EntityID)
		return nil
	}
	fmt.Fprintf(w, "History for %s %s\n\n", r.EntityID, r.Name)

	fmt.Fprintln(w, "=== Changes ===")
	for _, c := range r.Changes {
		note := "notified"
		if !c.Notified {
			note = "silent: " + c.Reason
		}
		fmt.Fprintf(w, "  %s  %-15s %s → %s  (%s)\n",
			c.At.Local().Format(historyTimeLayout), c.Type, dash(c.Previous), c.New, note)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Dispatches ===")
	if len(r.Dispatches) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, d := range r.Dispatches {
		result := "ok"
		if !d.OK {
			result = "failed: " + d.Error
		}
		fmt.Fprintf(w, "  %s  %-15s %-10s %s\n",
			d.At.Local().Format(historyTimeLayout), d.Kind, d.Destination, result)
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <entity-id>",
		Short: "Show journaled changes and deliveries for one entity",
		Long: `Show the changes detected for one entity, newest first, together with
the outcome of every notification sent about it.

Example:
  sheetwatch history 1042
  sheetwatch history 1042 --limit 5 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of changes (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command, entityID string) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	changes, err := a.journal.History(ctx, entityID, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}
	dispatches, err := a.journal.Dispatches(ctx, entityID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read dispatches", err)
	}

	result := HistoryResult{
		EntityID:   entityID,
		Changes:    make([]HistoryChange, 0, len(changes)),
		Dispatches: make([]HistoryDispatch, 0, len(dispatches)),
	}
	for _, c := range changes {
		if result.Name == "" {
			result.Name = c.Name
		}
		result.Changes = append(result.Changes, historyChange(c))
	}
	for _, d := range dispatches {
		result.Dispatches = append(result.Dispatches, HistoryDispatch{
			At: d.At, Kind: d.Kind, Destination: d.Destination, OK: d.OK, Error: d.Error,
		})
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return formatter.Success(result)
}

func historyChange(c journal.Change) HistoryChange {
	return HistoryChange{
		At:       c.At,
		Type:     c.EventType,
		Previous: c.Previous,
		New:      c.New,
		Notified: c.Notified,
		Reason:   c.Reason,
	}
}
