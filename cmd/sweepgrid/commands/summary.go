package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sweepgrid/sweepgrid/pkg/grid"
)

// statusSummary is one dataset's status breakdown.
type statusSummary struct {
	Path       string              `json:"path"`
	Shape      []int               `json:"shape"`
	Cells      int                 `json:"cells"`
	Counts     map[grid.Status]int `json:"counts"`
	Completion float64             `json:"completion"`
}

func summarize(path string, snap *grid.Snapshot) statusSummary {
	counts := make(map[grid.Status]int, 4)
	for _, s := range snap.Status {
		counts[s]++
	}
	cells := len(snap.Status)
	completion := 0.0
	if cells > 0 {
		// Skipped cells are out of the denominator: they were never meant
		// to run.
		runnable := cells - counts[grid.StatusSkipped]
		if runnable > 0 {
			completion = float64(counts[grid.StatusCompleted]) / float64(runnable) * 100
		}
	}
	return statusSummary{
		Path:       path,
		Shape:      snap.Shape,
		Cells:      cells,
		Counts:     counts,
		Completion: completion,
	}
}

func (s statusSummary) print(w io.Writer, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Fprintf(w, "Dataset: %s\n", s.Path)
	fmt.Fprintf(w, "Shape:   %v (%d cells)\n\n", s.Shape, s.Cells)
	for _, st := range grid.AllStatuses() {
		fmt.Fprintf(w, "  %-12s %d\n", statusLabel(st), s.Counts[st])
	}
	fmt.Fprintf(w, "\nCompletion: %.1f%%\n", s.Completion)
	return nil
}

func statusLabel(s grid.Status) string {
	switch s {
	case grid.StatusNotStarted:
		return "not started"
	case grid.StatusCompleted:
		return "completed"
	case grid.StatusFailed:
		return "failed"
	case grid.StatusSkipped:
		return "skipped"
	default:
		return string(s)
	}
}
