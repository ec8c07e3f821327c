// Package store persists grid snapshots to disk and restores them.
//
// The format is picked by path suffix:
//
//   - .grid — a columnar array directory: meta.json plus one JSON column
//     file per variable
//   - .db / .sqlite — a self-describing SQLite file with an embedded,
//     migration-managed schema
//   - .gob — a generic object blob
//
// The array-oriented forms (.grid, .db, .sqlite) serialize int, float,
// complex, bool, and string cell data. Only the .gob form supports
// object-kind payloads; callers must gob.Register their concrete types.
//
// Save is atomic: content is written to a temporary sibling and renamed over
// the destination. Saving onto an existing path without overwrite fails with
// an already_exists error; an unrecognized suffix fails with a format error
// on both save and load.
package store
