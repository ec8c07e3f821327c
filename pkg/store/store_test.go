package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/sweepgrid/sweepgrid/pkg/grid"
)

func testGrid(t *testing.T) *grid.Grid {
	t.Helper()
	g, err := grid.New(
		[]grid.Parameter{
			{Name: "x", Values: []interface{}{1, 2, 3}},
			{Name: "mode", Values: []interface{}{"fast", "slow"}},
		},
		[]grid.ReturnValue{
			{Name: "loss", Kind: grid.KindFloat},
			{Name: "converged", Kind: grid.KindBool},
		},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := g.SetCell([]int{0, 0}, grid.StatusCompleted,
		map[string]interface{}{"loss": 0.25, "converged": true}, math.NaN()); err != nil {
		t.Fatalf("SetCell: %v", err)
	}
	if err := g.SetCell([]int{2, 1}, grid.StatusFailed, nil, math.NaN()); err != nil {
		t.Fatalf("SetCell: %v", err)
	}
	if err := g.SetStatus([]int{1, 0}, grid.StatusSkipped); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	return g
}

func sameParameters() []grid.Parameter {
	return []grid.Parameter{
		{Name: "x", Values: []interface{}{1, 2, 3}},
		{Name: "mode", Values: []interface{}{"fast", "slow"}},
	}
}

func sameReturns() []grid.ReturnValue {
	return []grid.ReturnValue{
		{Name: "loss", Kind: grid.KindFloat},
		{Name: "converged", Kind: grid.KindBool},
	}
}

func checkRestored(t *testing.T, loaded *grid.Snapshot) {
	t.Helper()
	g, err := grid.Restore(loaded, sameParameters(), sameReturns())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	status, err := g.StatusAt([]int{0, 0})
	if err != nil {
		t.Fatalf("StatusAt: %v", err)
	}
	if status != grid.StatusCompleted {
		t.Errorf("status at [0 0] = %q, want C", status)
	}
	status, _ = g.StatusAt([]int{1, 0})
	if status != grid.StatusSkipped {
		t.Errorf("status at [1 0] = %q, want S", status)
	}
	status, _ = g.StatusAt([]int{2, 1})
	if status != grid.StatusFailed {
		t.Errorf("status at [2 1] = %q, want F", status)
	}
	loss, err := g.ReturnValueAt([]int{0, 0}, "loss")
	if err != nil {
		t.Fatalf("ReturnValueAt: %v", err)
	}
	if loss != 0.25 {
		t.Errorf("loss at [0 0] = %v, want 0.25", loss)
	}
	converged, _ := g.ReturnValueAt([]int{0, 0}, "converged")
	if converged != true {
		t.Errorf("converged at [0 0] = %v, want true", converged)
	}
	// An untouched float cell must round-trip as NaN.
	empty, _ := g.ReturnValueAt([]int{1, 1}, "loss")
	if f, ok := empty.(float64); !ok || !math.IsNaN(f) {
		t.Errorf("empty loss cell = %v, want NaN", empty)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, ext := range []string{ExtGrid, ExtDB, ExtSQLite, ExtGob} {
		t.Run(ext, func(t *testing.T) {
			g := testGrid(t)
			g.EnableUUID()
			g.EnableTiming()
			g.EnablePriorities()
			if err := g.SetPriority([]int{2, 0}, 7); err != nil {
				t.Fatalf("SetPriority: %v", err)
			}
			wantUUID, err := g.UUIDAt([]int{0, 1})
			if err != nil {
				t.Fatalf("UUIDAt: %v", err)
			}

			path := filepath.Join(t.TempDir(), "sweep"+ext)
			ctx := context.Background()
			if err := Save(ctx, g.Snapshot(), path, false); err != nil {
				t.Fatalf("Save: %v", err)
			}
			loaded, err := Load(ctx, path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			checkRestored(t, loaded)

			restored, err := grid.Restore(loaded, sameParameters(), sameReturns())
			if err != nil {
				t.Fatalf("Restore: %v", err)
			}
			gotUUID, err := restored.UUIDAt([]int{0, 1})
			if err != nil {
				t.Fatalf("UUIDAt after restore: %v", err)
			}
			if gotUUID != wantUUID {
				t.Errorf("uuid at [0 1] = %q, want %q", gotUUID, wantUUID)
			}
			d, err := restored.DurationAt([]int{0, 0})
			if err != nil {
				t.Fatalf("DurationAt after restore: %v", err)
			}
			if !math.IsNaN(d) {
				t.Errorf("unmeasured duration = %v, want NaN", d)
			}
			p, err := restored.PriorityAt([]int{2, 0})
			if err != nil {
				t.Fatalf("PriorityAt after restore: %v", err)
			}
			if p != 7 {
				t.Errorf("priority at [2 0] = %d, want 7", p)
			}
		})
	}
}

func TestSaveUnsupportedExtension(t *testing.T) {
	g := testGrid(t)
	path := filepath.Join(t.TempDir(), "sweep.csv")
	err := Save(context.Background(), g.Snapshot(), path, false)
	if !grid.IsUnsupportedFormat(err) {
		t.Fatalf("Save to .csv: got %v, want format error", err)
	}
	if _, err := Load(context.Background(), path); !grid.IsUnsupportedFormat(err) {
		t.Fatalf("Load from .csv: got %v, want format error", err)
	}
}

func TestSaveExisting(t *testing.T) {
	g := testGrid(t)
	path := filepath.Join(t.TempDir(), "sweep.gob")
	ctx := context.Background()

	if err := Save(ctx, g.Snapshot(), path, false); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	err := Save(ctx, g.Snapshot(), path, false)
	if !grid.IsAlreadyExists(err) {
		t.Fatalf("second Save without overwrite: got %v, want exists error", err)
	}
	if err := Save(ctx, g.Snapshot(), path, true); err != nil {
		t.Fatalf("Save with overwrite: %v", err)
	}
	if _, err := Load(ctx, path); err != nil {
		t.Fatalf("Load after overwrite: %v", err)
	}
}

func TestObjectPayloadsNeedGob(t *testing.T) {
	type payload struct{ N int }
	g, err := grid.New(
		[]grid.Parameter{{Name: "cfg", Values: []interface{}{payload{1}, payload{2}}}},
		nil,
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	snap := g.Snapshot()
	ctx := context.Background()
	dir := t.TempDir()

	for _, ext := range []string{ExtGrid, ExtDB, ExtSQLite} {
		err := Save(ctx, snap, filepath.Join(dir, "sweep"+ext), false)
		if !grid.IsUnsupportedFormat(err) {
			t.Errorf("Save object grid to %s: got %v, want format error", ext, err)
		}
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sweep.gob")
	if Exists(path) {
		t.Fatal("Exists on missing path = true")
	}
	g := testGrid(t)
	if err := Save(context.Background(), g.Snapshot(), path, false); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !Exists(path) {
		t.Fatal("Exists on saved path = false")
	}
}
