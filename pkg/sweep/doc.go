// Package sweep runs experiments over a parameter grid.
//
// A Sweep pairs a grid with an experiment function. Run executes the
// selected cells one at a time in-process; RunDistributed farms them out to
// a fixed pool of worker processes while the manager stays the grid's sole
// writer. Both schedulers share the same failure boundary: an experiment
// that returns an error or panics marks its cell Failed and never aborts
// the batch.
package sweep
