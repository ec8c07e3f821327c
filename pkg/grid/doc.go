// Package grid implements the experiment grid store: the Cartesian product of
// named parameter axes, with one mutable cell per parameter combination.
//
// # Overview
//
// A Grid is built from an ordered list of parameter axes and a set of declared
// return values. Every combination of axis values owns a cell holding:
//
//   - Status: N (not started), C (completed), F (failed), S (skipped)
//   - one slot per declared return value, empty until the experiment completes
//   - optional duration, priority, and uuid slots, guarded by capability flags
//   - any number of custom argument slots, broadcast at creation time and
//     individually overridable
//
// Cells are addressed by multi-index (one offset per axis). The grid is the
// single source of truth for both schedulers in pkg/sweep: they select cells
// by status, order them by priority, and write results back one cell at a
// time.
//
// # Value Kinds
//
// Axis and column storage is typed by an explicit closed tag (Kind): int,
// float, complex, bool, string, or object. A deterministic classification
// pass over each axis's values picks its kind; return-value columns declare
// theirs up front. Each kind has a fixed empty sentinel (NaN for floats,
// zero values otherwise, nil for objects).
//
// # Persistence
//
// Snapshot produces a self-contained, codec-friendly copy of the grid that
// pkg/store serializes. Restore rebuilds a grid from a snapshot and validates
// it against the declared configuration: axis names must match, numeric axis
// values are compared with tolerance, bool and string values exactly, and
// object axes by length only. Declared return values must all be present.
// A mismatch is fatal at construction.
//
// # Error Classification
//
// Errors carry a class for programmatic handling:
//
//   - configuration: reserved-name collisions, duplicate custom arguments,
//     invalid status symbols, insufficient worker counts
//   - data_mismatch: a restored snapshot disagrees with the declared axes
//     or return values
//   - format / already_exists: persistence-boundary failures
//
// Use the helpers to inspect them:
//
//	if grid.IsConfiguration(err) {
//	    // the call violated the grid's contract
//	}
package grid
