package grid

import (
	"fmt"
	"math"
)

// Tolerances for numeric axis comparison on restore, matching the usual
// allclose semantics: |a-b| <= atol + rtol*|b|.
const (
	restoreRelTol = 1e-5
	restoreAbsTol = 1e-8
)

// SnapshotAxis is the serializable form of one parameter axis.
type SnapshotAxis struct {
	Name   string
	Kind   Kind
	Values []interface{}
}

// SnapshotColumn is the serializable form of one cell column.
type SnapshotColumn struct {
	Name   string
	Kind   Kind
	Values []interface{}
}

// Snapshot is a self-contained, codec-friendly copy of a grid. pkg/store
// serializes snapshots; Restore validates them against a declared
// configuration and rebuilds the grid.
type Snapshot struct {
	Axes   []SnapshotAxis
	Shape  []int
	Status []Status

	Returns []SnapshotColumn
	Custom  []SnapshotColumn

	// Optional slot storage. Present whenever the slot was ever enabled,
	// independent of the current flag, so disabled slots survive a
	// save/reload cycle.
	UUIDs      []string
	Durations  []float64
	Priorities []int

	UUIDEnabled       bool
	TimingEnabled     bool
	PrioritiesEnabled bool
}

// ObjectFree reports whether the snapshot contains no object-kind columns or
// axes. The array-oriented persistence forms reject snapshots that are not
// object-free.
func (s *Snapshot) ObjectFree() bool {
	for _, ax := range s.Axes {
		if ax.Kind == KindObject {
			return false
		}
	}
	for _, col := range s.Returns {
		if col.Kind == KindObject {
			return false
		}
	}
	for _, col := range s.Custom {
		if col.Kind == KindObject {
			return false
		}
	}
	return true
}

// Snapshot produces a deep copy of the grid's full state.
func (g *Grid) Snapshot() *Snapshot {
	snap := &Snapshot{
		Shape:             g.Shape(),
		Status:            append([]Status(nil), g.status...),
		UUIDEnabled:       g.uuidEnabled,
		TimingEnabled:     g.timingEnabled,
		PrioritiesEnabled: g.priorityEnabled,
	}
	for _, ax := range g.axes {
		snap.Axes = append(snap.Axes, SnapshotAxis{
			Name:   ax.Name,
			Kind:   ax.Kind,
			Values: append([]interface{}(nil), ax.Values...),
		})
	}
	for _, name := range g.returnNames {
		col := g.returns[name]
		snap.Returns = append(snap.Returns, SnapshotColumn{
			Name:   name,
			Kind:   col.Kind,
			Values: append([]interface{}(nil), col.Values...),
		})
	}
	for _, name := range g.customNames {
		col := g.custom[name]
		snap.Custom = append(snap.Custom, SnapshotColumn{
			Name:   name,
			Kind:   col.Kind,
			Values: append([]interface{}(nil), col.Values...),
		})
	}
	if g.uuids != nil {
		snap.UUIDs = append([]string(nil), g.uuids...)
	}
	if g.durations != nil {
		snap.Durations = append([]float64(nil), g.durations...)
	}
	if g.priorities != nil {
		snap.Priorities = append([]int(nil), g.priorities...)
	}
	return snap
}

// Restore rebuilds a grid from a snapshot and validates it against the
// declared configuration. Axis names must match exactly; numeric axis values
// are compared with tolerance, bool and string values exactly, and complex or
// object axes by length only. Every declared return value must be present in
// the snapshot. Any disagreement is a DataMismatchError, fatal at
// construction.
func Restore(snap *Snapshot, parameters []Parameter, returnValues []ReturnValue) (*Grid, error) {
	g, err := New(parameters, returnValues)
	if err != nil {
		return nil, err
	}

	if len(snap.Axes) != len(g.axes) {
		return nil, NewDataMismatchError(
			fmt.Sprintf("expected %d parameter axes, snapshot has %d", len(g.axes), len(snap.Axes)))
	}
	snapAxes := make(map[string]SnapshotAxis, len(snap.Axes))
	for _, ax := range snap.Axes {
		snapAxes[ax.Name] = ax
	}
	for _, ax := range g.axes {
		loaded, ok := snapAxes[ax.Name]
		if !ok {
			return nil, NewDataMismatchError("parameter axis missing from snapshot").WithName(ax.Name)
		}
		if err := compareAxisValues(ax, loaded); err != nil {
			return nil, err
		}
	}

	if len(snap.Status) != g.size {
		return nil, NewDataMismatchError(
			fmt.Sprintf("snapshot has %d cells, grid shape needs %d", len(snap.Status), g.size))
	}
	for _, s := range snap.Status {
		if err := s.Validate(); err != nil {
			return nil, NewDataMismatchError("snapshot contains an invalid status").WithErr(err)
		}
	}
	copy(g.status, snap.Status)

	snapReturns := make(map[string]SnapshotColumn, len(snap.Returns))
	for _, col := range snap.Returns {
		snapReturns[col.Name] = col
	}
	for _, name := range g.returnNames {
		loaded, ok := snapReturns[name]
		if !ok {
			return nil, NewDataMismatchError("return value missing from snapshot").WithName(name)
		}
		if len(loaded.Values) != g.size {
			return nil, NewDataMismatchError("return value column has wrong length").WithName(name)
		}
		copy(g.returns[name].Values, loaded.Values)
	}

	for _, col := range snap.Custom {
		if len(col.Values) != g.size {
			return nil, NewDataMismatchError("custom argument column has wrong length").WithName(col.Name)
		}
		g.customNames = append(g.customNames, col.Name)
		g.custom[col.Name] = &Column{
			Kind:   col.Kind,
			Values: append([]interface{}(nil), col.Values...),
		}
	}

	if snap.UUIDs != nil {
		if len(snap.UUIDs) != g.size {
			return nil, NewDataMismatchError("uuid column has wrong length")
		}
		g.uuids = append([]string(nil), snap.UUIDs...)
		g.uuidEnabled = snap.UUIDEnabled
	}
	if snap.Durations != nil {
		if len(snap.Durations) != g.size {
			return nil, NewDataMismatchError("duration column has wrong length")
		}
		g.durations = append([]float64(nil), snap.Durations...)
		g.timingEnabled = snap.TimingEnabled
	}
	if snap.Priorities != nil {
		if len(snap.Priorities) != g.size {
			return nil, NewDataMismatchError("priority column has wrong length")
		}
		g.priorities = append([]int(nil), snap.Priorities...)
		g.priorityEnabled = snap.PrioritiesEnabled
	}

	return g, nil
}

// compareAxisValues checks one declared axis against its loaded counterpart.
func compareAxisValues(declared Axis, loaded SnapshotAxis) error {
	if len(declared.Values) != len(loaded.Values) {
		return NewDataMismatchError(
			fmt.Sprintf("axis has %d declared values but %d loaded values",
				len(declared.Values), len(loaded.Values))).WithName(declared.Name)
	}

	switch declared.Kind {
	case KindInt, KindFloat:
		for i, v := range declared.Values {
			a, _ := toFloat64(v)
			b, ok := toFloat64(loaded.Values[i])
			if !ok || !closeEnough(a, b) {
				return NewDataMismatchError(
					fmt.Sprintf("axis value %d differs: declared %v, loaded %v",
						i, v, loaded.Values[i])).WithName(declared.Name)
			}
		}
	case KindBool:
		for i, v := range declared.Values {
			if v != loaded.Values[i] {
				return NewDataMismatchError(
					fmt.Sprintf("axis value %d differs: declared %v, loaded %v",
						i, v, loaded.Values[i])).WithName(declared.Name)
			}
		}
	case KindString:
		for i, v := range declared.Values {
			if v != loaded.Values[i] {
				return NewDataMismatchError(
					fmt.Sprintf("axis value %d differs: declared %v, loaded %v",
						i, v, loaded.Values[i])).WithName(declared.Name)
			}
		}
	default:
		// Complex and object axes are only checked for length, which
		// already happened above.
	}
	return nil
}

func closeEnough(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return math.Abs(a-b) <= restoreAbsTol+restoreRelTol*math.Abs(b)
}
