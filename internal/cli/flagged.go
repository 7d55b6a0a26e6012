package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
)

// FlaggedResult groups entity ids by flagged status.
type FlaggedResult struct {
	Total    int                 `json:"total"`
	ByStatus map[string][]string `json:"by_status"`
}

// WriteText implements textWriter.
func (r FlaggedResult) WriteText(w io.Writer) error {
	if r.Total == 0 {
		fmt.Fprintln(w, "No entities in a flagged status.")
		return nil
	}
	statuses := make([]string, 0, len(r.ByStatus))
	for s := range r.ByStatus {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(w, "%s (%d)\n", s, len(r.ByStatus[s]))
		for _, id := range r.ByStatus[s] {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
	fmt.Fprintf(w, "Total: %d\n", r.Total)
	return nil
}

// NewFlaggedCommand creates the flagged command.
func NewFlaggedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flagged",
		Short: "List entities whose current status needs attention",
		Long: `List the entities of the current snapshot whose status is flagged
(INATIVA, BAIXADA, DEVOLVIDA or SUSPENSA), grouped by status.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlagged(rootOpts, cmd)
		},
	}
	return cmd
}

func runFlagged(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result := FlaggedResult{ByStatus: make(map[string][]string)}
	for id, rec := range a.store.Current().Records {
		if a.table.IsFlagged(rec.Status) {
			result.ByStatus[rec.Status] = append(result.ByStatus[rec.Status], id)
			result.Total++
		}
	}
	for _, ids := range result.ByStatus {
		sort.Strings(ids)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return formatter.Success(result)
}
