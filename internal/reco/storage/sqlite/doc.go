// Package sqlite persists validation runs and their per-event diagnostics
// in a SQLite database.
//
// The schema is owned by the embedded migrations under migrations/ and is
// brought up to date by Open. Reconstruction packages never import this
// package; the CLI feeds it the reports produced by the pipeline runner.
package sqlite
