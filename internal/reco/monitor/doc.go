// Package monitor renders offline views of reconstruction output: PNG
// plots of one event's spacepoints and seeds, and an HTML report of the
// validation diagnostics of a run.
package monitor
