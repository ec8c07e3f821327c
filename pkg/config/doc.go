// Package config loads YAML sweep definitions for the CLI.
//
// A definition declares the parameter axes, the return value slots, the
// optional per-cell features, and where the dataset is saved. Definitions
// are validated structurally first and then against the grid's own naming
// rules when the grid is built.
package config
