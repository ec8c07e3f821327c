package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sweepgrid/sweepgrid/pkg/grid"
)

// Columnar directory layout: meta.json describes the axes, shape, columns,
// and capability flags; every column lives in its own JSON file next to it.

const columnarMetaFile = "meta.json"

type columnarMeta struct {
	Axes    []columnarAxis `json:"axes"`
	Shape   []int          `json:"shape"`
	Status  []grid.Status  `json:"status"`
	Returns []columnarRef  `json:"returns"`
	Custom  []columnarRef  `json:"custom,omitempty"`

	UUIDs      []string `json:"uuids,omitempty"`
	Durations  []string `json:"durations,omitempty"`
	Priorities []int    `json:"priorities,omitempty"`

	UUIDEnabled       bool `json:"uuid_enabled,omitempty"`
	TimingEnabled     bool `json:"timing_enabled,omitempty"`
	PrioritiesEnabled bool `json:"priorities_enabled,omitempty"`
}

type columnarAxis struct {
	Name   string    `json:"name"`
	Kind   grid.Kind `json:"kind"`
	Values []string  `json:"values"`
}

type columnarRef struct {
	Name string    `json:"name"`
	Kind grid.Kind `json:"kind"`
	File string    `json:"file"`
}

type columnarColumn struct {
	Name   string    `json:"name"`
	Kind   grid.Kind `json:"kind"`
	Values []string  `json:"values"`
}

func saveColumnar(snap *grid.Snapshot, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create columnar directory: %w", err)
	}

	meta := columnarMeta{
		Shape:             snap.Shape,
		Status:            snap.Status,
		UUIDs:             snap.UUIDs,
		Priorities:        snap.Priorities,
		UUIDEnabled:       snap.UUIDEnabled,
		TimingEnabled:     snap.TimingEnabled,
		PrioritiesEnabled: snap.PrioritiesEnabled,
	}
	for _, ax := range snap.Axes {
		values, err := encodeValues(ax.Kind, ax.Values)
		if err != nil {
			return err
		}
		meta.Axes = append(meta.Axes, columnarAxis{Name: ax.Name, Kind: ax.Kind, Values: values})
	}
	if snap.Durations != nil {
		durations := make([]interface{}, len(snap.Durations))
		for i, d := range snap.Durations {
			durations[i] = d
		}
		encoded, err := encodeValues(grid.KindFloat, durations)
		if err != nil {
			return err
		}
		meta.Durations = encoded
	}

	writeColumn := func(prefix string, i int, col grid.SnapshotColumn) (columnarRef, error) {
		file := fmt.Sprintf("%s_%02d.json", prefix, i)
		values, err := encodeValues(col.Kind, col.Values)
		if err != nil {
			return columnarRef{}, err
		}
		if err := writeJSON(filepath.Join(dir, file), columnarColumn{
			Name:   col.Name,
			Kind:   col.Kind,
			Values: values,
		}); err != nil {
			return columnarRef{}, err
		}
		return columnarRef{Name: col.Name, Kind: col.Kind, File: file}, nil
	}

	for i, col := range snap.Returns {
		ref, err := writeColumn("return", i, col)
		if err != nil {
			return err
		}
		meta.Returns = append(meta.Returns, ref)
	}
	for i, col := range snap.Custom {
		ref, err := writeColumn("custom", i, col)
		if err != nil {
			return err
		}
		meta.Custom = append(meta.Custom, ref)
	}

	return writeJSON(filepath.Join(dir, columnarMetaFile), meta)
}

func loadColumnar(dir string) (*grid.Snapshot, error) {
	var meta columnarMeta
	if err := readJSON(filepath.Join(dir, columnarMetaFile), &meta); err != nil {
		return nil, err
	}

	snap := &grid.Snapshot{
		Shape:             meta.Shape,
		Status:            meta.Status,
		UUIDs:             meta.UUIDs,
		Priorities:        meta.Priorities,
		UUIDEnabled:       meta.UUIDEnabled,
		TimingEnabled:     meta.TimingEnabled,
		PrioritiesEnabled: meta.PrioritiesEnabled,
	}
	for _, ax := range meta.Axes {
		values, err := decodeValues(ax.Kind, ax.Values)
		if err != nil {
			return nil, err
		}
		snap.Axes = append(snap.Axes, grid.SnapshotAxis{Name: ax.Name, Kind: ax.Kind, Values: values})
	}
	if meta.Durations != nil {
		decoded, err := decodeValues(grid.KindFloat, meta.Durations)
		if err != nil {
			return nil, err
		}
		snap.Durations = make([]float64, len(decoded))
		for i, v := range decoded {
			snap.Durations[i] = v.(float64)
		}
	}

	readColumn := func(ref columnarRef) (grid.SnapshotColumn, error) {
		var col columnarColumn
		if err := readJSON(filepath.Join(dir, ref.File), &col); err != nil {
			return grid.SnapshotColumn{}, err
		}
		values, err := decodeValues(col.Kind, col.Values)
		if err != nil {
			return grid.SnapshotColumn{}, err
		}
		return grid.SnapshotColumn{Name: col.Name, Kind: col.Kind, Values: values}, nil
	}

	for _, ref := range meta.Returns {
		col, err := readColumn(ref)
		if err != nil {
			return nil, err
		}
		snap.Returns = append(snap.Returns, col)
	}
	for _, ref := range meta.Custom {
		col, err := readColumn(ref)
		if err != nil {
			return nil, err
		}
		snap.Custom = append(snap.Custom, col)
	}

	return snap, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
