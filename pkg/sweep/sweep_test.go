package sweep

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sweepgrid/sweepgrid/pkg/grid"
	"github.com/sweepgrid/sweepgrid/pkg/runner"
	"github.com/sweepgrid/sweepgrid/pkg/store"
	"github.com/sweepgrid/sweepgrid/pkg/telemetry"
)

func lineGrid(t *testing.T, values ...interface{}) *grid.Grid {
	t.Helper()
	g, err := grid.New(
		[]grid.Parameter{{Name: "x", Values: values}},
		[]grid.ReturnValue{{Name: "y", Kind: grid.KindInt}},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func double(_ context.Context, kwargs Kwargs) (Results, error) {
	x := kwargs["x"].(int64)
	return Results{"y": x * 2}, nil
}

func TestRunSequential(t *testing.T) {
	g := lineGrid(t, 1, 2, 3)
	s, err := New(g, double)
	if err != nil {
		t.Fatalf("New sweep: %v", err)
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for i := 0; i < 3; i++ {
		status, _ := g.StatusAt([]int{i})
		if status != grid.StatusCompleted {
			t.Errorf("cell %d status = %q, want C", i, status)
		}
		y, _ := g.ReturnValueAt([]int{i}, "y")
		if y != int64((i+1)*2) {
			t.Errorf("cell %d y = %v, want %d", i, y, (i+1)*2)
		}
	}
}

func TestRunFailureIsolation(t *testing.T) {
	g := lineGrid(t, 1, 2)
	fn := func(_ context.Context, kwargs Kwargs) (Results, error) {
		if kwargs["x"].(int64) == 2 {
			return nil, errors.New("diverged")
		}
		return Results{"y": int64(1)}, nil
	}
	s, err := New(g, fn)
	if err != nil {
		t.Fatalf("New sweep: %v", err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	status, _ := g.StatusAt([]int{0})
	if status != grid.StatusCompleted {
		t.Errorf("cell x=1 status = %q, want C", status)
	}
	status, _ = g.StatusAt([]int{1})
	if status != grid.StatusFailed {
		t.Errorf("cell x=2 status = %q, want F", status)
	}
}

func TestRunPanicIsolation(t *testing.T) {
	g := lineGrid(t, 1, 2)
	fn := func(_ context.Context, kwargs Kwargs) (Results, error) {
		if kwargs["x"].(int64) == 1 {
			panic("boom")
		}
		return Results{"y": int64(4)}, nil
	}
	s, err := New(g, fn)
	if err != nil {
		t.Fatalf("New sweep: %v", err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	status, _ := g.StatusAt([]int{0})
	if status != grid.StatusFailed {
		t.Errorf("panicking cell status = %q, want F", status)
	}
	status, _ = g.StatusAt([]int{1})
	if status != grid.StatusCompleted {
		t.Errorf("surviving cell status = %q, want C", status)
	}
}

func TestRunPriorityOrder(t *testing.T) {
	g := lineGrid(t, 10, 20, 30, 40)
	g.EnablePriorities()
	priorities := []int{3, 1, 3, 2}
	for i, p := range priorities {
		if err := g.SetPriority([]int{i}, p); err != nil {
			t.Fatalf("SetPriority: %v", err)
		}
	}

	var order []int64
	fn := func(_ context.Context, kwargs Kwargs) (Results, error) {
		order = append(order, kwargs["x"].(int64))
		return Results{"y": int64(0)}, nil
	}
	s, err := New(g, fn)
	if err != nil {
		t.Fatalf("New sweep: %v", err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []int64{10, 30, 40, 20}
	if len(order) != len(want) {
		t.Fatalf("executed %d experiments, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("execution order = %v, want %v", order, want)
		}
	}
}

func TestRunMeasuresDuration(t *testing.T) {
	g := lineGrid(t, 1)
	g.EnableTiming()
	s, err := New(g, double)
	if err != nil {
		t.Fatalf("New sweep: %v", err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	d, err := g.DurationAt([]int{0})
	if err != nil {
		t.Fatalf("DurationAt: %v", err)
	}
	if math.IsNaN(d) || d < 0 {
		t.Errorf("duration = %v, want a measured value", d)
	}
}

func TestRunAutoSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.gob")
	g := lineGrid(t, 1, 2)
	s, err := New(g, double, WithSavePath(path), WithAutoSave())
	if err != nil {
		t.Fatalf("New sweep: %v", err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap, err := store.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	restored, err := grid.Restore(snap,
		[]grid.Parameter{{Name: "x", Values: []interface{}{1, 2}}},
		[]grid.ReturnValue{{Name: "y", Kind: grid.KindInt}})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	for i := 0; i < 2; i++ {
		status, _ := restored.StatusAt([]int{i})
		if status != grid.StatusCompleted {
			t.Errorf("restored cell %d status = %q, want C", i, status)
		}
	}
}

func TestAutoSaveRequiresPath(t *testing.T) {
	g := lineGrid(t, 1)
	_, err := New(g, double, WithAutoSave())
	if !grid.IsConfiguration(err) {
		t.Fatalf("New with auto-save and no path: got %v, want configuration error", err)
	}
}

func TestRunSkipsNonSelectedStatuses(t *testing.T) {
	g := lineGrid(t, 1, 2, 3)
	if err := g.SetStatus([]int{1}, grid.StatusSkipped); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	s, err := New(g, double)
	if err != nil {
		t.Fatalf("New sweep: %v", err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	status, _ := g.StatusAt([]int{1})
	if status != grid.StatusSkipped {
		t.Errorf("skipped cell status = %q, want S untouched", status)
	}
	counts := g.CountByStatus()
	if counts[grid.StatusCompleted] != 2 {
		t.Errorf("completed count = %d, want 2", counts[grid.StatusCompleted])
	}
}

func TestRunDistributed(t *testing.T) {
	g := lineGrid(t, 1, 2, 3)
	s, err := New(g, double)
	if err != nil {
		t.Fatalf("New sweep: %v", err)
	}

	var calls int
	fn := func(ctx context.Context, kwargs map[string]interface{}) (map[string]interface{}, error) {
		calls++
		return double(ctx, kwargs)
	}
	err = s.RunDistributed(context.Background(), RoleManager, DistributedOptions{
		Workers: 1,
		Spawner: &runner.PipeSpawner{Fn: fn, Log: s.log.Zerolog()},
	})
	if err != nil {
		t.Fatalf("RunDistributed: %v", err)
	}

	if calls != 3 {
		t.Errorf("worker executed %d jobs, want 3 (exactly-once dispatch)", calls)
	}
	for i := 0; i < 3; i++ {
		status, _ := g.StatusAt([]int{i})
		if status != grid.StatusCompleted {
			t.Errorf("cell %d status = %q, want C", i, status)
		}
		y, _ := g.ReturnValueAt([]int{i}, "y")
		if y != int64((i+1)*2) {
			t.Errorf("cell %d y = %v, want %d", i, y, (i+1)*2)
		}
	}
}

func TestRunDistributedFailuresRecorded(t *testing.T) {
	g := lineGrid(t, 1, 2, 3)
	s, err := New(g, double)
	if err != nil {
		t.Fatalf("New sweep: %v", err)
	}

	fn := func(_ context.Context, kwargs map[string]interface{}) (map[string]interface{}, error) {
		if kwargs["x"].(int64) == 2 {
			return nil, fmt.Errorf("diverged")
		}
		return map[string]interface{}{"y": kwargs["x"].(int64) * 2}, nil
	}
	err = s.RunDistributed(context.Background(), RoleManager, DistributedOptions{
		Workers: 2,
		Spawner: &runner.PipeSpawner{Fn: fn, Log: s.log.Zerolog()},
	})
	if err != nil {
		t.Fatalf("RunDistributed: %v", err)
	}

	counts := g.CountByStatus()
	if counts[grid.StatusCompleted] != 2 || counts[grid.StatusFailed] != 1 {
		t.Errorf("counts = %v, want 2 completed and 1 failed", counts)
	}
	status, _ := g.StatusAt([]int{1})
	if status != grid.StatusFailed {
		t.Errorf("cell x=2 status = %q, want F", status)
	}
}

func TestRunDistributedNeedsTwoParticipants(t *testing.T) {
	g := lineGrid(t, 1)
	s, err := New(g, double)
	if err != nil {
		t.Fatalf("New sweep: %v", err)
	}

	err = s.RunDistributed(context.Background(), RoleManager, DistributedOptions{
		Workers: 0,
		Spawner: &runner.PipeSpawner{Fn: double, Log: s.log.Zerolog()},
	})
	if !grid.IsConfiguration(err) {
		t.Fatalf("RunDistributed with 1 participant: got %v, want configuration error", err)
	}
	// Nothing was dispatched.
	status, _ := g.StatusAt([]int{0})
	if status != grid.StatusNotStarted {
		t.Errorf("cell status = %q, want N", status)
	}
}

func TestRunDistributedTiming(t *testing.T) {
	g := lineGrid(t, 1)
	g.EnableTiming()
	s, err := New(g, double)
	if err != nil {
		t.Fatalf("New sweep: %v", err)
	}

	err = s.RunDistributed(context.Background(), RoleManager, DistributedOptions{
		Workers: 1,
		Spawner: &runner.PipeSpawner{Fn: double, Log: s.log.Zerolog()},
	})
	if err != nil {
		t.Fatalf("RunDistributed: %v", err)
	}

	d, err := g.DurationAt([]int{0})
	if err != nil {
		t.Fatalf("DurationAt: %v", err)
	}
	if math.IsNaN(d) || d < 0 {
		t.Errorf("duration = %v, want a measured value", d)
	}
}

func TestRunDistributedUnknownRole(t *testing.T) {
	g := lineGrid(t, 1)
	s, err := New(g, double)
	if err != nil {
		t.Fatalf("New sweep: %v", err)
	}
	err = s.RunDistributed(context.Background(), Role("observer"), DistributedOptions{})
	if !grid.IsConfiguration(err) {
		t.Fatalf("unknown role: got %v, want configuration error", err)
	}
}

func TestResumeValidatesAxes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.gob")
	g := lineGrid(t, 1, 2)
	if err := store.Save(context.Background(), g.Snapshot(), path, false); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Same declaration resumes cleanly.
	if _, err := Resume(context.Background(), path,
		[]grid.Parameter{{Name: "x", Values: []interface{}{1, 2}}},
		[]grid.ReturnValue{{Name: "y", Kind: grid.KindInt}},
		double); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	// Different axis values are a data mismatch.
	_, err := Resume(context.Background(), path,
		[]grid.Parameter{{Name: "x", Values: []interface{}{1, 5}}},
		[]grid.ReturnValue{{Name: "y", Kind: grid.KindInt}},
		double)
	if !grid.IsDataMismatch(err) {
		t.Fatalf("Resume with changed axis: got %v, want data mismatch", err)
	}
}

func TestRunDistributedRejectsObjectArguments(t *testing.T) {
	type trainCfg struct{ Layers int }

	newObjectGrid := func(t *testing.T) *grid.Grid {
		t.Helper()
		g := lineGrid(t, 1, 2)
		if err := g.AddCustomArgument("cfg", trainCfg{Layers: 7}); err != nil {
			t.Fatalf("AddCustomArgument: %v", err)
		}
		return g
	}
	fn := func(_ context.Context, kwargs Kwargs) (Results, error) {
		cfg := kwargs["cfg"].(trainCfg)
		return Results{"y": kwargs["x"].(int64) * int64(cfg.Layers)}, nil
	}

	// The sequential scheduler passes object arguments in-process.
	g := newObjectGrid(t)
	s, err := New(g, fn)
	if err != nil {
		t.Fatalf("New sweep: %v", err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if g.CountByStatus()[grid.StatusCompleted] != 2 {
		t.Fatalf("sequential counts = %v, want all completed", g.CountByStatus())
	}

	// The distributed scheduler rejects them before any dispatch.
	g = newObjectGrid(t)
	s, err = New(g, fn)
	if err != nil {
		t.Fatalf("New sweep: %v", err)
	}
	err = s.RunDistributed(context.Background(), RoleManager, DistributedOptions{
		Workers: 1,
		Spawner: &runner.PipeSpawner{Fn: fn, Log: s.log.Zerolog()},
	})
	if !grid.IsConfiguration(err) {
		t.Fatalf("RunDistributed with object argument: got %v, want configuration error", err)
	}
	if !strings.Contains(err.Error(), "cfg") {
		t.Errorf("error %q does not name the offending argument", err)
	}
	for i := 0; i < 2; i++ {
		status, _ := g.StatusAt([]int{i})
		if status != grid.StatusNotStarted {
			t.Errorf("cell %d status = %q, want N untouched", i, status)
		}
	}
}

func newTestTracer(t *testing.T) *telemetry.Tracer {
	t.Helper()
	tr, err := telemetry.NewTracer(telemetry.TracingConfig{
		Enabled:      true,
		Exporter:     "none",
		SamplingRate: 1.0,
	}, "sweepgrid-test", "test", "test")
	if err != nil {
		t.Fatalf("NewTracer: %v", err)
	}
	t.Cleanup(func() { _ = tr.Shutdown(context.Background()) })
	return tr
}

func TestRunWithTracer(t *testing.T) {
	g := lineGrid(t, 1, 2)
	var traceIDs []string
	fn := func(ctx context.Context, kwargs Kwargs) (Results, error) {
		traceIDs = append(traceIDs, telemetry.TraceID(ctx))
		return double(ctx, kwargs)
	}
	s, err := New(g, fn, WithTracer(newTestTracer(t)))
	if err != nil {
		t.Fatalf("New sweep: %v", err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(traceIDs) != 2 {
		t.Fatalf("ran %d experiments, want 2", len(traceIDs))
	}
	for i, id := range traceIDs {
		if id == "" {
			t.Errorf("experiment %d ran outside a span", i)
		}
	}
	if g.CountByStatus()[grid.StatusCompleted] != 2 {
		t.Errorf("counts = %v, want all completed", g.CountByStatus())
	}
}

func TestRunDistributedWithTracer(t *testing.T) {
	g := lineGrid(t, 1, 2, 3)
	s, err := New(g, double, WithTracer(newTestTracer(t)))
	if err != nil {
		t.Fatalf("New sweep: %v", err)
	}

	fn := func(_ context.Context, kwargs map[string]interface{}) (map[string]interface{}, error) {
		if kwargs["x"].(int64) == 2 {
			return nil, fmt.Errorf("diverged")
		}
		return map[string]interface{}{"y": kwargs["x"].(int64) * 2}, nil
	}
	err = s.RunDistributed(context.Background(), RoleManager, DistributedOptions{
		Workers: 2,
		Spawner: &runner.PipeSpawner{Fn: fn, Log: s.log.Zerolog()},
	})
	if err != nil {
		t.Fatalf("RunDistributed: %v", err)
	}

	counts := g.CountByStatus()
	if counts[grid.StatusCompleted] != 2 || counts[grid.StatusFailed] != 1 {
		t.Errorf("counts = %v, want 2 completed and 1 failed", counts)
	}
}
