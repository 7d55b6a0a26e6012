package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	Yes bool
}

// ResetResult reports where the snapshot went.
type ResetResult struct {
	MovedTo string `json:"moved_to,omitempty"`
}

func (r ResetResult) String() string {
	if r.MovedTo == "" {
		return "No snapshot to reset. The next cycle performs a silent warm-up load."
	}
	return fmt.Sprintf("Snapshot moved to %s. The next cycle performs a silent warm-up load.", r.MovedTo)
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard the snapshot so the next cycle reloads silently",
		Long: `Move the current snapshot to a timestamped backup and clear the warm-up
marker. The monthly and weekly ledgers are kept.

Example:
  sheetwatch reset --yes`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(opts, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "confirm the reset")

	return cmd
}

func runReset(opts *ResetOptions, cmd *cobra.Command) error {
	if !opts.Yes {
		return NewExitError(ExitCommandError, "refusing to reset without --yes")
	}
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if err := cfg.ValidateState(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	a, err := openState(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	moved, err := a.store.Reset()
	if err != nil {
		return WrapExitError(ExitFailure, "reset failed", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return formatter.Success(ResetResult{MovedTo: moved})
}
