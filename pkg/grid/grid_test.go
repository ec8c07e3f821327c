package grid

import (
	"math"
	"testing"
)

func newTestGrid(t *testing.T) *Grid {
	t.Helper()
	g, err := New(
		[]Parameter{
			{Name: "x", Values: []interface{}{1, 2, 3}},
			{Name: "mode", Values: []interface{}{"fast", "slow"}},
		},
		[]ReturnValue{
			{Name: "loss", Kind: KindFloat},
			{Name: "converged", Kind: KindBool},
		},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestNewShapeAndInitialState(t *testing.T) {
	g := newTestGrid(t)

	if g.Size() != 6 {
		t.Errorf("Size = %d, want 6 (product of axis lengths)", g.Size())
	}
	shape := g.Shape()
	if len(shape) != 2 || shape[0] != 3 || shape[1] != 2 {
		t.Errorf("Shape = %v, want [3 2]", shape)
	}

	counts := g.CountByStatus()
	if counts[StatusNotStarted] != 6 {
		t.Errorf("fresh grid has %d NotStarted cells, want 6", counts[StatusNotStarted])
	}

	// Empty-cell sentinels per return kind.
	loss, err := g.ReturnValueAt([]int{0, 0}, "loss")
	if err != nil {
		t.Fatalf("ReturnValueAt: %v", err)
	}
	if !math.IsNaN(loss.(float64)) {
		t.Errorf("empty float cell = %v, want NaN", loss)
	}
	converged, _ := g.ReturnValueAt([]int{0, 0}, "converged")
	if converged != false {
		t.Errorf("empty bool cell = %v, want false", converged)
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name       string
		parameters []Parameter
		returns    []ReturnValue
	}{
		{
			name:       "no parameters",
			parameters: nil,
		},
		{
			name:       "empty axis",
			parameters: []Parameter{{Name: "x", Values: nil}},
		},
		{
			name: "reserved parameter name",
			parameters: []Parameter{
				{Name: "status", Values: []interface{}{1}},
			},
		},
		{
			name: "duplicate parameter name",
			parameters: []Parameter{
				{Name: "x", Values: []interface{}{1}},
				{Name: "x", Values: []interface{}{2}},
			},
		},
		{
			name: "reserved return name",
			parameters: []Parameter{
				{Name: "x", Values: []interface{}{1}},
			},
			returns: []ReturnValue{{Name: "duration", Kind: KindFloat}},
		},
		{
			name: "return collides with parameter",
			parameters: []Parameter{
				{Name: "x", Values: []interface{}{1}},
			},
			returns: []ReturnValue{{Name: "x", Kind: KindFloat}},
		},
		{
			name: "invalid return kind",
			parameters: []Parameter{
				{Name: "x", Values: []interface{}{1}},
			},
			returns: []ReturnValue{{Name: "y", Kind: Kind("decimal")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.parameters, tt.returns)
			if !IsConfiguration(err) {
				t.Errorf("New: got %v, want configuration error", err)
			}
		})
	}
}

func TestSelectIndices(t *testing.T) {
	g := newTestGrid(t)
	if err := g.SetStatus([]int{0, 0}, StatusCompleted); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := g.SetStatus([]int{1, 1}, StatusFailed); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	notStarted, err := g.SelectIndices(StatusNotStarted)
	if err != nil {
		t.Fatalf("SelectIndices: %v", err)
	}
	if len(notStarted) != 4 {
		t.Errorf("NotStarted selection has %d cells, want 4", len(notStarted))
	}

	finished, err := g.SelectIndices(StatusCompleted, StatusFailed)
	if err != nil {
		t.Fatalf("SelectIndices: %v", err)
	}
	if len(finished) != 2 {
		t.Errorf("finished selection has %d cells, want 2", len(finished))
	}

	all, err := g.SelectIndices()
	if err != nil {
		t.Fatalf("SelectIndices: %v", err)
	}
	if len(all) != g.Size() {
		t.Errorf("empty filter selected %d cells, want all %d", len(all), g.Size())
	}

	if _, err := g.SelectIndices(Status("X")); !IsConfiguration(err) {
		t.Errorf("invalid status filter: got %v, want configuration error", err)
	}
}

func TestResetStatus(t *testing.T) {
	g := newTestGrid(t)
	g.SetStatus([]int{0, 0}, StatusCompleted)
	g.SetStatus([]int{1, 0}, StatusFailed)
	g.SetStatus([]int{2, 0}, StatusSkipped)

	if err := g.ResetStatus(); err != nil {
		t.Fatalf("ResetStatus: %v", err)
	}

	// Default reset covers Completed and Failed but leaves Skipped alone.
	counts := g.CountByStatus()
	if counts[StatusNotStarted] != 5 || counts[StatusSkipped] != 1 {
		t.Errorf("counts after reset = %v, want 5 N and 1 S", counts)
	}

	if err := g.ResetStatus(StatusSkipped); err != nil {
		t.Fatalf("ResetStatus(S): %v", err)
	}
	if g.CountByStatus()[StatusNotStarted] != 6 {
		t.Errorf("explicit skip reset left counts %v", g.CountByStatus())
	}

	selected, _ := g.SelectIndices(StatusNotStarted)
	if len(selected) != 6 {
		t.Errorf("selection after full reset has %d cells, want 6", len(selected))
	}
}

func TestSortByPriority(t *testing.T) {
	g, err := New(
		[]Parameter{{Name: "x", Values: []interface{}{10, 20, 30, 40}}},
		nil,
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g.EnablePriorities()
	for i, p := range []int{3, 1, 3, 2} {
		if err := g.SetPriority([]int{i}, p); err != nil {
			t.Fatalf("SetPriority: %v", err)
		}
	}

	indices, _ := g.SelectIndices(StatusNotStarted)
	sorted := g.SortByPriority(indices)

	// Descending priority, stable for ties.
	want := [][]int{{0}, {2}, {3}, {1}}
	for i := range want {
		if sorted[i][0] != want[i][0] {
			t.Fatalf("sorted order = %v, want %v", sorted, want)
		}
	}

	// Disabled priorities make the sort an identity.
	g.DisablePriorities()
	same := g.SortByPriority(indices)
	for i := range indices {
		if same[i][0] != indices[i][0] {
			t.Fatalf("sort with disabled priorities reordered %v to %v", indices, same)
		}
	}
}

func TestSetCell(t *testing.T) {
	g := newTestGrid(t)
	g.EnableTiming()

	err := g.SetCell([]int{1, 0}, StatusCompleted,
		map[string]interface{}{"loss": 0.25, "converged": true, "extra": 99}, 1.5)
	if err != nil {
		t.Fatalf("SetCell: %v", err)
	}

	status, _ := g.StatusAt([]int{1, 0})
	if status != StatusCompleted {
		t.Errorf("status = %q, want C", status)
	}
	loss, _ := g.ReturnValueAt([]int{1, 0}, "loss")
	if loss != 0.25 {
		t.Errorf("loss = %v, want 0.25", loss)
	}
	d, _ := g.DurationAt([]int{1, 0})
	if d != 1.5 {
		t.Errorf("duration = %v, want 1.5", d)
	}

	// Undeclared return names are dropped, not stored.
	if _, err := g.ReturnValueAt([]int{1, 0}, "extra"); !IsConfiguration(err) {
		t.Errorf("undeclared return lookup: got %v, want configuration error", err)
	}

	// NaN duration leaves the slot untouched.
	if err := g.SetCell([]int{1, 0}, StatusCompleted, nil, math.NaN()); err != nil {
		t.Fatalf("SetCell: %v", err)
	}
	d, _ = g.DurationAt([]int{1, 0})
	if d != 1.5 {
		t.Errorf("duration after NaN write = %v, want 1.5 preserved", d)
	}

	if err := g.SetCell([]int{1, 0}, Status("X"), nil, math.NaN()); !IsConfiguration(err) {
		t.Errorf("invalid status: got %v, want configuration error", err)
	}
	if err := g.SetCell([]int{9, 0}, StatusCompleted, nil, math.NaN()); !IsConfiguration(err) {
		t.Errorf("out-of-range index: got %v, want configuration error", err)
	}
	if err := g.SetCell([]int{1}, StatusCompleted, nil, math.NaN()); !IsConfiguration(err) {
		t.Errorf("wrong index rank: got %v, want configuration error", err)
	}
}

func TestCustomArguments(t *testing.T) {
	g := newTestGrid(t)

	if err := g.AddCustomArgument("seed", 42); err != nil {
		t.Fatalf("AddCustomArgument: %v", err)
	}
	if err := g.SetArgument([]int{2, 1}, "seed", 7); err != nil {
		t.Fatalf("SetArgument: %v", err)
	}

	kwargs, err := g.KwargsAt([]int{2, 1})
	if err != nil {
		t.Fatalf("KwargsAt: %v", err)
	}
	if kwargs["x"] != int64(3) || kwargs["mode"] != "slow" {
		t.Errorf("axis kwargs = %v", kwargs)
	}
	if kwargs["seed"] != int64(7) {
		t.Errorf("overridden seed = %v, want 7", kwargs["seed"])
	}

	// Every other cell keeps the broadcast default.
	kwargs, _ = g.KwargsAt([]int{0, 0})
	if kwargs["seed"] != int64(42) {
		t.Errorf("default seed = %v, want 42", kwargs["seed"])
	}

	tests := []struct {
		name    string
		argName string
	}{
		{"reserved name", "uuid"},
		{"existing parameter", "x"},
		{"existing custom argument", "seed"},
		{"existing return value", "loss"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.AddCustomArgument(tt.argName, 0); !IsConfiguration(err) {
				t.Errorf("AddCustomArgument(%q): got %v, want configuration error", tt.argName, err)
			}
		})
	}

	if err := g.SetArgument([]int{0, 0}, "missing", 1); !IsConfiguration(err) {
		t.Errorf("SetArgument on unknown name: got %v, want configuration error", err)
	}
}

func TestUUIDSlot(t *testing.T) {
	g := newTestGrid(t)

	if _, err := g.UUIDAt([]int{0, 0}); !IsConfiguration(err) {
		t.Fatalf("UUIDAt while disabled: got %v, want configuration error", err)
	}

	g.EnableUUID()
	first, err := g.UUIDAt([]int{0, 0})
	if err != nil {
		t.Fatalf("UUIDAt: %v", err)
	}
	if first == "" {
		t.Fatal("enabled uuid slot is empty")
	}
	other, _ := g.UUIDAt([]int{1, 0})
	if other == first {
		t.Error("two cells share a uuid")
	}

	// Idempotent: re-enabling never regenerates.
	g.EnableUUID()
	again, _ := g.UUIDAt([]int{0, 0})
	if again != first {
		t.Errorf("uuid changed across re-enable: %s vs %s", first, again)
	}

	// Disable hides the slot but keeps storage.
	g.DisableUUID()
	if _, err := g.UUIDAt([]int{0, 0}); !IsConfiguration(err) {
		t.Errorf("UUIDAt after disable: got %v, want configuration error", err)
	}
	g.EnableUUID()
	restored, _ := g.UUIDAt([]int{0, 0})
	if restored != first {
		t.Errorf("uuid lost across disable/enable: %s vs %s", first, restored)
	}

	kwargs, _ := g.KwargsAt([]int{0, 0})
	if kwargs["uuid"] != first {
		t.Errorf("kwargs uuid = %v, want %s", kwargs["uuid"], first)
	}
}

func TestTimingSlot(t *testing.T) {
	g := newTestGrid(t)

	if _, err := g.DurationAt([]int{0, 0}); !IsConfiguration(err) {
		t.Fatalf("DurationAt while disabled: got %v, want configuration error", err)
	}

	g.EnableTiming()
	d, err := g.DurationAt([]int{0, 0})
	if err != nil {
		t.Fatalf("DurationAt: %v", err)
	}
	if !math.IsNaN(d) {
		t.Errorf("unmeasured duration = %v, want NaN", d)
	}

	g.SetCell([]int{0, 0}, StatusCompleted, nil, 2.0)
	g.DisableTiming()
	g.EnableTiming()
	d, _ = g.DurationAt([]int{0, 0})
	if d != 2.0 {
		t.Errorf("duration lost across disable/enable: %v", d)
	}
}

func TestPrioritySlot(t *testing.T) {
	g := newTestGrid(t)

	if err := g.SetPriority([]int{0, 0}, 5); !IsConfiguration(err) {
		t.Fatalf("SetPriority while disabled: got %v, want configuration error", err)
	}

	g.EnablePriorities()
	p, err := g.PriorityAt([]int{0, 0})
	if err != nil {
		t.Fatalf("PriorityAt: %v", err)
	}
	if p != 0 {
		t.Errorf("default priority = %d, want 0", p)
	}

	g.SetPriority([]int{0, 0}, 9)
	g.DisablePriorities()
	g.EnablePriorities()
	p, _ = g.PriorityAt([]int{0, 0})
	if p != 9 {
		t.Errorf("priority lost across disable/enable: %d", p)
	}
}

func TestKwargsAtCoercesAxisValues(t *testing.T) {
	g, err := New(
		[]Parameter{{Name: "rate", Values: []interface{}{1, 2.5}}},
		nil,
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// A mixed int/float axis widens every value to float64.
	kwargs, _ := g.KwargsAt([]int{0})
	if kwargs["rate"] != 1.0 {
		t.Errorf("widened axis value = %v (%T), want 1.0", kwargs["rate"], kwargs["rate"])
	}
}

func TestObjectNames(t *testing.T) {
	g := newTestGrid(t)
	if names := g.ObjectNames(); len(names) != 0 {
		t.Errorf("scalar grid ObjectNames = %v, want none", names)
	}

	if err := g.AddCustomArgument("cfg", struct{ N int }{7}); err != nil {
		t.Fatalf("AddCustomArgument: %v", err)
	}
	names := g.ObjectNames()
	if len(names) != 1 || names[0] != "cfg" {
		t.Errorf("ObjectNames = %v, want [cfg]", names)
	}

	g2, err := New(
		[]Parameter{{Name: "model", Values: []interface{}{struct{}{}, struct{}{}}}},
		[]ReturnValue{{Name: "out", Kind: KindObject}},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	names = g2.ObjectNames()
	if len(names) != 2 || names[0] != "model" || names[1] != "out" {
		t.Errorf("ObjectNames = %v, want [model out]", names)
	}
}

func TestAxesReturnsCopy(t *testing.T) {
	g := newTestGrid(t)
	axes := g.Axes()
	axes[0].Name = "mutated"

	if g.Axes()[0].Name != "x" {
		t.Error("mutating the returned slice changed the grid's axes")
	}
}
