package pipeline

import "github.com/banshee-data/seedline/internal/monitoring"

const logPrefix = "[pipeline] "

// opsf logs to the ops stream (event failures, aborted runs).
func opsf(format string, args ...interface{}) {
	monitoring.Opsf(logPrefix+format, args...)
}

// diagf logs to the diag stream (per-event validation summaries).
func diagf(format string, args ...interface{}) {
	monitoring.Diagf(logPrefix+format, args...)
}

// tracef logs to the trace stream (per-stage timings and counts).
func tracef(format string, args ...interface{}) {
	monitoring.Tracef(logPrefix+format, args...)
}
