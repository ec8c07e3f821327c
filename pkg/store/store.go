package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sweepgrid/sweepgrid/pkg/grid"
)

// Recognized path suffixes.
const (
	ExtGrid   = ".grid"
	ExtDB     = ".db"
	ExtSQLite = ".sqlite"
	ExtGob    = ".gob"
)

// SupportedExtensions returns the recognized path suffixes.
func SupportedExtensions() []string {
	return []string{ExtGrid, ExtDB, ExtSQLite, ExtGob}
}

// Save persists a snapshot to path, picking the format from the suffix.
// When overwrite is false and something already exists at path, Save fails
// with an already_exists error. Content is written to a temporary sibling
// and renamed into place, so a crash mid-save never corrupts prior data.
func Save(ctx context.Context, snap *grid.Snapshot, path string, overwrite bool) error {
	ext := filepath.Ext(path)
	switch ext {
	case ExtGrid, ExtDB, ExtSQLite, ExtGob:
	default:
		return unsupported(ext, path)
	}

	if _, err := os.Stat(path); err == nil {
		if !overwrite {
			return grid.NewExistsError("destination already exists; pass overwrite to replace it").WithPath(path)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat destination: %w", err)
	}

	// Array-oriented forms reject object payloads up front, before any
	// partial write.
	if ext != ExtGob && !snap.ObjectFree() {
		return grid.NewFormatError("snapshot contains object values; only the gob format supports them").WithPath(path)
	}

	tmp := path + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("failed to clear temporary path: %w", err)
	}

	var err error
	switch ext {
	case ExtGrid:
		err = saveColumnar(snap, tmp)
	case ExtDB, ExtSQLite:
		err = saveSQLite(ctx, snap, tmp)
	case ExtGob:
		err = saveGob(snap, tmp)
	}
	if err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}

	if err := os.RemoveAll(path); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("failed to remove prior data: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("failed to move data into place: %w", err)
	}
	return nil
}

// Load restores a snapshot from path, picking the format from the suffix.
func Load(ctx context.Context, path string) (*grid.Snapshot, error) {
	switch ext := filepath.Ext(path); ext {
	case ExtGrid:
		return loadColumnar(path)
	case ExtDB, ExtSQLite:
		return loadSQLite(ctx, path)
	case ExtGob:
		return loadGob(path)
	default:
		return nil, unsupported(ext, path)
	}
}

// Exists reports whether something is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func unsupported(ext, path string) error {
	return grid.NewFormatError(
		fmt.Sprintf("unsupported extension %q, supported extensions are %v", ext, SupportedExtensions())).
		WithPath(path)
}
