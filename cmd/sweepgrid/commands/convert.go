package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sweepgrid/sweepgrid/pkg/store"
)

func newConvertCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "convert <src> <dst>",
		Short: "Convert a dataset to a different persistence form",
		Long: `Convert a dataset between persistence forms. The destination
extension picks the target form. Datasets containing object-kind payloads
can only be converted to the .gob form.`,
		Example: `  # Columnar directory to SQLite
  sweepgrid convert runs/lr-sweep.grid runs/lr-sweep.db

  # SQLite to a gob blob, replacing an old copy
  sweepgrid convert runs/lr-sweep.db runs/lr-sweep.gob --force`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := args[0], args[1]

			snap, err := store.Load(cmd.Context(), src)
			if err != nil {
				return err
			}
			if err := store.Save(cmd.Context(), snap, dst, force); err != nil {
				return err
			}

			fmt.Printf("✓ Converted %s to %s\n", src, dst)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing destination")

	return cmd
}
