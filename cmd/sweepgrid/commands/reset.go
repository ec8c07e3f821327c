package commands

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sweepgrid/sweepgrid/pkg/grid"
	"github.com/sweepgrid/sweepgrid/pkg/store"
)

func newResetCommand() *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "reset <dataset>",
		Short: "Reset finished cells back to not-started",
		Long: `Reset cells back to NotStarted and save the dataset in place.

By default completed and failed cells are reset; --statuses selects a
different set using the single-letter symbols N, C, F, S.`,
		Example: `  # Re-run everything that finished
  sweepgrid reset runs/lr-sweep.grid

  # Only retry failures
  sweepgrid reset runs/lr-sweep.grid --statuses F`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseStatuses(statusFlag)
			if err != nil {
				return err
			}

			snap, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			want := make(map[grid.Status]struct{}, len(from))
			for _, s := range from {
				want[s] = struct{}{}
			}
			reset := 0
			for i, s := range snap.Status {
				if _, ok := want[s]; ok {
					snap.Status[i] = grid.StatusNotStarted
					reset++
				}
			}

			if err := store.Save(cmd.Context(), snap, args[0], true); err != nil {
				return err
			}

			log.Info().Int("cells", reset).Str("dataset", args[0]).Msg("Reset complete")
			fmt.Printf("✓ Reset %d cells in %s\n", reset, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "statuses", "C,F", "comma-separated statuses to reset")

	return cmd
}

// parseStatuses parses a comma-separated list of status symbols.
func parseStatuses(flag string) ([]grid.Status, error) {
	var statuses []grid.Status
	for _, part := range strings.Split(flag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		s := grid.Status(part)
		if err := s.Validate(); err != nil {
			return nil, grid.NewConfigurationError("invalid --statuses value").WithErr(err)
		}
		statuses = append(statuses, s)
	}
	if len(statuses) == 0 {
		return nil, grid.NewConfigurationError("--statuses selects no statuses")
	}
	return statuses, nil
}
