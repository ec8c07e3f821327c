package store

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/sweepgrid/sweepgrid/pkg/grid"
)

func init() {
	// Concrete types that travel inside interface{} cell slots. Callers with
	// custom object payloads register their own types the same way.
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register(complex128(0))
	gob.Register(false)
	gob.Register("")
}

// saveGob writes the whole snapshot as a single gob blob. This is the only
// form that can carry object-kind payloads.
func saveGob(snap *grid.Snapshot, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create gob file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(snap); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close gob file: %w", err)
	}
	return nil
}

func loadGob(path string) (*grid.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gob file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var snap grid.Snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}
