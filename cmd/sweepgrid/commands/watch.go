package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sweepgrid/sweepgrid/pkg/store"
)

// watchDebounce coalesces bursts of writes into one re-print. Auto-saving
// sweeps rewrite the whole dataset per finished experiment, so bursts are
// the common case.
const watchDebounce = 500 * time.Millisecond

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dataset>",
		Short: "Watch a dataset and re-print its status on change",
		Long: `Watch a dataset path and re-print the status summary whenever it
changes. Useful for monitoring a long sweep that saves its progress.`,
		Example: `  sweepgrid watch runs/lr-sweep.grid`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			ctx := cmd.Context()

			printStatus := func() {
				snap, err := store.Load(ctx, path)
				if err != nil {
					log.Warn().Err(err).Msg("Failed to reload dataset")
					return
				}
				fmt.Println()
				_ = summarize(path, snap).print(os.Stdout, jsonOutput)
			}
			printStatus()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer watcher.Close()

			// Watch the parent directory: columnar datasets are directories
			// whose files are replaced wholesale, and save-by-rename never
			// fires events on the watched file itself.
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			watchPath := filepath.Dir(path)
			if info.IsDir() {
				watchPath = path
			}
			if err := watcher.Add(watchPath); err != nil {
				return fmt.Errorf("failed to watch %s: %w", watchPath, err)
			}

			log.Info().Str("dataset", path).Msg("Watching for changes")

			var reloadTimer *time.Timer
			for {
				select {
				case <-ctx.Done():
					return nil

				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
						continue
					}
					log.Debug().
						Str("file", event.Name).
						Str("op", event.Op.String()).
						Msg("Dataset changed")

					if reloadTimer != nil {
						reloadTimer.Stop()
					}
					reloadTimer = time.AfterFunc(watchDebounce, printStatus)

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					log.Error().Err(err).Msg("Watcher error")
				}
			}
		},
	}
}
