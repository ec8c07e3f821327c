package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sweepgrid/sweepgrid/pkg/store"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <dataset>",
		Short: "Show per-status cell counts and completion",
		Example: `  # Human-readable summary
  sweepgrid status runs/lr-sweep.grid

  # JSON for scripting
  sweepgrid status runs/lr-sweep.grid --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return summarize(args[0], snap).print(os.Stdout, jsonOutput)
		},
	}
}
