package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sweepgrid/sweepgrid/pkg/config"
	"github.com/sweepgrid/sweepgrid/pkg/grid"
	"github.com/sweepgrid/sweepgrid/pkg/store"
)

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [sweep.yaml] <dataset>",
		Short: "Create a fresh dataset from a sweep definition",
		Long: `Create a fresh dataset from a YAML sweep definition.

The definition declares the parameter axes, return value slots, and
optional features (uuid, timing, priorities). Every cell starts
NotStarted. The dataset extension picks the persistence form.

The definition path is the first argument, or the persistent --config
flag when only the dataset is given.`,
		Example: `  # Create a columnar dataset
  sweepgrid init sweep.yaml runs/lr-sweep.grid

  # Definition from the persistent --config flag
  sweepgrid init --config sweep.yaml runs/lr-sweep.grid

  # Overwrite an existing SQLite dataset
  sweepgrid init sweep.yaml runs/lr-sweep.db --force`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			definitionPath, datasetPath, err := resolveInitPaths(args, configPath)
			if err != nil {
				return err
			}

			log.Info().
				Str("definition", definitionPath).
				Str("dataset", datasetPath).
				Msg("Creating dataset")

			def, err := config.NewLoader().LoadFromFile(definitionPath)
			if err != nil {
				return err
			}

			g, err := def.Build()
			if err != nil {
				return err
			}

			if err := store.Save(cmd.Context(), g.Snapshot(), datasetPath, force); err != nil {
				return err
			}

			fmt.Printf("✓ Created dataset %s: %d cells across %d axes\n",
				datasetPath, g.Size(), len(g.Axes()))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing dataset")

	return cmd
}

// resolveInitPaths picks the definition and dataset paths from the
// positional arguments, falling back to --config for the definition.
func resolveInitPaths(args []string, configPath string) (string, string, error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}
	if configPath == "" {
		return "", "", grid.NewConfigurationError(
			"a sweep definition is required: pass it as the first argument or with --config")
	}
	return configPath, args[0], nil
}
