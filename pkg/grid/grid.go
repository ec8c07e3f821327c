package grid

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of one experiment cell.
type Status string

const (
	// StatusNotStarted marks a cell that has never been dispatched.
	StatusNotStarted Status = "N"
	// StatusCompleted marks a cell whose experiment returned successfully.
	StatusCompleted Status = "C"
	// StatusFailed marks a cell whose experiment returned an error or
	// panicked.
	StatusFailed Status = "F"
	// StatusSkipped marks a cell excluded from scheduling by the user.
	StatusSkipped Status = "S"
)

// Validate checks if the status is one of the four recognized symbols.
func (s Status) Validate() error {
	switch s {
	case StatusNotStarted, StatusCompleted, StatusFailed, StatusSkipped:
		return nil
	default:
		return fmt.Errorf("invalid status: %q", string(s))
	}
}

// AllStatuses returns the four recognized statuses in a fixed order.
func AllStatuses() []Status {
	return []Status{StatusNotStarted, StatusCompleted, StatusFailed, StatusSkipped}
}

// Reserved argument names. Axes, return values, and custom arguments may not
// use them.
var reservedNames = map[string]struct{}{
	"uuid":     {},
	"status":   {},
	"duration": {},
	"priority": {},
}

// Parameter declares one axis of the sweep: a name and its ordered sequence
// of distinct values.
type Parameter struct {
	Name   string
	Values []interface{}
}

// ReturnValue declares one named result slot with its storage kind.
type ReturnValue struct {
	Name string
	Kind Kind
}

// Axis is a classified parameter axis.
type Axis struct {
	Name   string
	Kind   Kind
	Values []interface{}
}

// Column is the flat cell storage for one variable, indexed by flattened
// multi-index.
type Column struct {
	Kind   Kind
	Values []interface{}
}

// Grid holds the N-dimensional experiment state: one cell per combination of
// axis values. The shape is immutable after construction; cell contents are
// mutated in place by the schedulers.
//
// Grid is not safe for concurrent mutation. Both schedulers observe a
// single-writer discipline, so no internal locking is needed.
type Grid struct {
	axes    []Axis
	shape   []int
	strides []int
	size    int

	status      []Status
	returnNames []string
	returns     map[string]*Column
	customNames []string
	custom      map[string]*Column

	// Optional per-cell slots. Storage is retained when a capability is
	// disabled so re-enabling restores prior values unchanged.
	uuids      []string
	durations  []float64
	priorities []int

	uuidEnabled     bool
	timingEnabled   bool
	priorityEnabled bool
}

// New creates a fresh grid with every cell NotStarted. The shape is the
// product of the axis lengths. Axis kinds are picked by Classify; return
// value kinds are declared by the caller.
func New(parameters []Parameter, returnValues []ReturnValue) (*Grid, error) {
	if len(parameters) == 0 {
		return nil, NewConfigurationError("at least one parameter axis is required")
	}

	seen := make(map[string]struct{}, len(parameters)+len(returnValues))
	for _, p := range parameters {
		if _, reserved := reservedNames[p.Name]; reserved {
			return nil, NewConfigurationError("parameter name is reserved").WithName(p.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return nil, NewConfigurationError("duplicate parameter name").WithName(p.Name)
		}
		seen[p.Name] = struct{}{}
		if len(p.Values) == 0 {
			return nil, NewConfigurationError("parameter axis has no values").WithName(p.Name)
		}
	}
	for _, rv := range returnValues {
		if _, reserved := reservedNames[rv.Name]; reserved {
			return nil, NewConfigurationError("return value name is reserved").WithName(rv.Name)
		}
		if _, dup := seen[rv.Name]; dup {
			return nil, NewConfigurationError("return value name collides with another name").WithName(rv.Name)
		}
		seen[rv.Name] = struct{}{}
		if err := rv.Kind.Validate(); err != nil {
			return nil, NewConfigurationError("invalid return value kind").WithName(rv.Name).WithErr(err)
		}
	}

	g := &Grid{
		axes:    make([]Axis, 0, len(parameters)),
		returns: make(map[string]*Column, len(returnValues)),
		custom:  make(map[string]*Column),
	}

	size := 1
	for _, p := range parameters {
		kind := Classify(p.Values)
		values := make([]interface{}, len(p.Values))
		for i, v := range p.Values {
			values[i] = kind.Coerce(v)
		}
		g.axes = append(g.axes, Axis{Name: p.Name, Kind: kind, Values: values})
		g.shape = append(g.shape, len(p.Values))
		size *= len(p.Values)
	}
	g.size = size
	g.strides = rowMajorStrides(g.shape)

	g.status = make([]Status, size)
	for i := range g.status {
		g.status[i] = StatusNotStarted
	}

	for _, rv := range returnValues {
		g.returnNames = append(g.returnNames, rv.Name)
		g.returns[rv.Name] = newColumn(rv.Kind, size)
	}

	return g, nil
}

func newColumn(kind Kind, size int) *Column {
	col := &Column{Kind: kind, Values: make([]interface{}, size)}
	empty := kind.Empty()
	for i := range col.Values {
		col.Values[i] = empty
	}
	return col
}

func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

// Shape returns a copy of the grid's shape.
func (g *Grid) Shape() []int {
	out := make([]int, len(g.shape))
	copy(out, g.shape)
	return out
}

// Size returns the total number of cells.
func (g *Grid) Size() int {
	return g.size
}

// Axes returns a copy of the classified parameter axes.
func (g *Grid) Axes() []Axis {
	out := make([]Axis, len(g.axes))
	copy(out, g.axes)
	return out
}

// ReturnNames returns the declared return value names in order.
func (g *Grid) ReturnNames() []string {
	out := make([]string, len(g.returnNames))
	copy(out, g.returnNames)
	return out
}

// CustomArgumentNames returns the custom argument names in creation order.
func (g *Grid) CustomArgumentNames() []string {
	out := make([]string, len(g.customNames))
	copy(out, g.customNames)
	return out
}

// ObjectNames returns the names of axes, custom arguments, and return values
// stored as opaque objects, in declaration order. Object values exist only
// in-process: they have no string encoding, so they can neither travel to a
// worker nor be stored by the array-oriented persistence forms.
func (g *Grid) ObjectNames() []string {
	var names []string
	for _, ax := range g.axes {
		if ax.Kind == KindObject {
			names = append(names, ax.Name)
		}
	}
	for _, name := range g.customNames {
		if g.custom[name].Kind == KindObject {
			names = append(names, name)
		}
	}
	for _, name := range g.returnNames {
		if g.returns[name].Kind == KindObject {
			names = append(names, name)
		}
	}
	return names
}

// flatten converts a multi-index to the flat cell offset.
func (g *Grid) flatten(index []int) (int, error) {
	if len(index) != len(g.shape) {
		return 0, NewConfigurationError(
			fmt.Sprintf("index has %d dimensions, grid has %d", len(index), len(g.shape)))
	}
	flat := 0
	for i, ix := range index {
		if ix < 0 || ix >= g.shape[i] {
			return 0, NewConfigurationError(
				fmt.Sprintf("index %d out of range for axis %s (length %d)", ix, g.axes[i].Name, g.shape[i]))
		}
		flat += ix * g.strides[i]
	}
	return flat, nil
}

// unflatten converts a flat cell offset back to a multi-index.
func (g *Grid) unflatten(flat int) []int {
	index := make([]int, len(g.shape))
	for i, stride := range g.strides {
		index[i] = flat / stride
		flat %= stride
	}
	return index
}

// SelectIndices returns the multi-indices of every cell whose status is in
// the given set, in row-major order. An empty set selects all four statuses.
func (g *Grid) SelectIndices(statuses ...Status) ([][]int, error) {
	if len(statuses) == 0 {
		statuses = AllStatuses()
	}
	want := make(map[Status]struct{}, len(statuses))
	for _, s := range statuses {
		if err := s.Validate(); err != nil {
			return nil, NewConfigurationError("invalid status filter").WithErr(err)
		}
		want[s] = struct{}{}
	}

	var indices [][]int
	for flat, s := range g.status {
		if _, ok := want[s]; ok {
			indices = append(indices, g.unflatten(flat))
		}
	}
	return indices, nil
}

// SortByPriority reorders indices descending by cell priority, keeping the
// original relative order for ties. When priorities are disabled it is the
// identity function.
func (g *Grid) SortByPriority(indices [][]int) [][]int {
	if !g.priorityEnabled {
		return indices
	}
	sorted := make([][]int, len(indices))
	copy(sorted, indices)
	sort.SliceStable(sorted, func(i, j int) bool {
		fi, _ := g.flatten(sorted[i])
		fj, _ := g.flatten(sorted[j])
		return g.priorities[fi] > g.priorities[fj]
	})
	return sorted
}

// SetCell applies one job result to the cell at index: the new status, any
// provided return values, and the measured duration (applied only when
// timing is enabled; pass NaN to leave it untouched).
func (g *Grid) SetCell(index []int, status Status, returns map[string]interface{}, duration float64) error {
	flat, err := g.flatten(index)
	if err != nil {
		return err
	}
	if err := status.Validate(); err != nil {
		return NewConfigurationError("invalid status").WithErr(err)
	}

	g.status[flat] = status
	for name, value := range returns {
		col, ok := g.returns[name]
		if !ok {
			continue // undeclared return values are dropped
		}
		col.Values[flat] = col.Kind.Coerce(value)
	}
	if g.timingEnabled && !math.IsNaN(duration) {
		g.durations[flat] = duration
	}
	return nil
}

// SetStatus sets the status of a single cell.
func (g *Grid) SetStatus(index []int, status Status) error {
	flat, err := g.flatten(index)
	if err != nil {
		return err
	}
	if err := status.Validate(); err != nil {
		return NewConfigurationError("invalid status").WithErr(err)
	}
	g.status[flat] = status
	return nil
}

// StatusAt returns the status of the cell at index.
func (g *Grid) StatusAt(index []int) (Status, error) {
	flat, err := g.flatten(index)
	if err != nil {
		return "", err
	}
	return g.status[flat], nil
}

// ReturnValueAt returns the stored value of one declared return slot.
func (g *Grid) ReturnValueAt(index []int, name string) (interface{}, error) {
	flat, err := g.flatten(index)
	if err != nil {
		return nil, err
	}
	col, ok := g.returns[name]
	if !ok {
		return nil, NewConfigurationError("unknown return value").WithName(name)
	}
	return col.Values[flat], nil
}

// ResetStatus sets every cell whose status is in from back to NotStarted.
// The default set is {Completed, Failed}.
func (g *Grid) ResetStatus(from ...Status) error {
	if len(from) == 0 {
		from = []Status{StatusCompleted, StatusFailed}
	}
	want := make(map[Status]struct{}, len(from))
	for _, s := range from {
		if err := s.Validate(); err != nil {
			return NewConfigurationError("invalid status to reset").WithErr(err)
		}
		want[s] = struct{}{}
	}
	for flat, s := range g.status {
		if _, ok := want[s]; ok {
			g.status[flat] = StatusNotStarted
		}
	}
	return nil
}

// CountByStatus returns the number of cells per status.
func (g *Grid) CountByStatus() map[Status]int {
	counts := make(map[Status]int, 4)
	for _, s := range g.status {
		counts[s]++
	}
	return counts
}

// AddCustomArgument adds a non-axis argument broadcast to every cell with the
// given default. Individual cells can be overridden with SetArgument.
func (g *Grid) AddCustomArgument(name string, defaultValue interface{}) error {
	if _, reserved := reservedNames[name]; reserved {
		return NewConfigurationError("argument name is reserved").WithName(name)
	}
	for _, ax := range g.axes {
		if ax.Name == name {
			return NewConfigurationError("argument is already a parameter").WithName(name)
		}
	}
	if _, exists := g.custom[name]; exists {
		return NewConfigurationError("argument is already a custom argument").WithName(name)
	}
	if _, exists := g.returns[name]; exists {
		return NewConfigurationError("argument name collides with a return value").WithName(name)
	}

	kind := Classify([]interface{}{defaultValue})
	col := &Column{Kind: kind, Values: make([]interface{}, g.size)}
	value := kind.Coerce(defaultValue)
	for i := range col.Values {
		col.Values[i] = value
	}
	g.customNames = append(g.customNames, name)
	g.custom[name] = col
	return nil
}

// SetArgument overrides one cell's custom argument value.
func (g *Grid) SetArgument(index []int, name string, value interface{}) error {
	flat, err := g.flatten(index)
	if err != nil {
		return err
	}
	col, ok := g.custom[name]
	if !ok {
		return NewConfigurationError("unknown custom argument").WithName(name)
	}
	col.Values[flat] = col.Kind.Coerce(value)
	return nil
}

// KwargsAt resolves the keyword arguments for the cell at index: the axis
// values merged with every custom argument and, when enabled, the cell's
// uuid.
func (g *Grid) KwargsAt(index []int) (map[string]interface{}, error) {
	flat, err := g.flatten(index)
	if err != nil {
		return nil, err
	}
	kwargs := make(map[string]interface{}, len(g.axes)+len(g.customNames)+1)
	for i, ax := range g.axes {
		kwargs[ax.Name] = ax.Values[index[i]]
	}
	for _, name := range g.customNames {
		kwargs[name] = g.custom[name].Values[flat]
	}
	if g.uuidEnabled {
		kwargs["uuid"] = g.uuids[flat]
	}
	return kwargs, nil
}

// EnableUUID assigns a uuid to every cell. Activation is idempotent: uuids
// are generated once and survive disable/re-enable cycles and save/reload.
func (g *Grid) EnableUUID() {
	if g.uuids == nil {
		g.uuids = make([]string, g.size)
		for i := range g.uuids {
			g.uuids[i] = uuid.NewString()
		}
	}
	g.uuidEnabled = true
}

// DisableUUID hides the uuid slot without discarding its storage.
func (g *Grid) DisableUUID() { g.uuidEnabled = false }

// UUIDEnabled reports whether uuid injection is active.
func (g *Grid) UUIDEnabled() bool { return g.uuidEnabled }

// UUIDAt returns the uuid of the cell at index. UUIDs must be enabled.
func (g *Grid) UUIDAt(index []int) (string, error) {
	if !g.uuidEnabled {
		return "", NewConfigurationError("uuid injection is disabled")
	}
	flat, err := g.flatten(index)
	if err != nil {
		return "", err
	}
	return g.uuids[flat], nil
}

// EnableTiming adds a duration slot to every cell, NaN until measured.
// Activation is idempotent.
func (g *Grid) EnableTiming() {
	if g.durations == nil {
		g.durations = make([]float64, g.size)
		for i := range g.durations {
			g.durations[i] = math.NaN()
		}
	}
	g.timingEnabled = true
}

// DisableTiming hides the duration slot without discarding its storage.
func (g *Grid) DisableTiming() { g.timingEnabled = false }

// TimingEnabled reports whether duration measurement is active.
func (g *Grid) TimingEnabled() bool { return g.timingEnabled }

// DurationAt returns the measured duration in seconds of the cell at index.
// Timing must be enabled.
func (g *Grid) DurationAt(index []int) (float64, error) {
	if !g.timingEnabled {
		return 0, NewConfigurationError("timing is disabled")
	}
	flat, err := g.flatten(index)
	if err != nil {
		return 0, err
	}
	return g.durations[flat], nil
}

// EnablePriorities adds a priority slot to every cell, default 0. Higher
// priorities are scheduled first. Activation is idempotent.
func (g *Grid) EnablePriorities() {
	if g.priorities == nil {
		g.priorities = make([]int, g.size)
	}
	g.priorityEnabled = true
}

// DisablePriorities hides the priority slot without discarding its storage.
func (g *Grid) DisablePriorities() { g.priorityEnabled = false }

// PrioritiesEnabled reports whether priority scheduling is active.
func (g *Grid) PrioritiesEnabled() bool { return g.priorityEnabled }

// SetPriority sets the scheduling priority of one cell. Priorities must be
// enabled.
func (g *Grid) SetPriority(index []int, priority int) error {
	if !g.priorityEnabled {
		return NewConfigurationError("priorities are disabled")
	}
	flat, err := g.flatten(index)
	if err != nil {
		return err
	}
	g.priorities[flat] = priority
	return nil
}

// PriorityAt returns the priority of the cell at index. Priorities must be
// enabled.
func (g *Grid) PriorityAt(index []int) (int, error) {
	if !g.priorityEnabled {
		return 0, NewConfigurationError("priorities are disabled")
	}
	flat, err := g.flatten(index)
	if err != nil {
		return 0, err
	}
	return g.priorities[flat], nil
}
