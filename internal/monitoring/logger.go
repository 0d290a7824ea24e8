// Package monitoring owns the diagnostic log streams shared by the
// reconstruction packages.
//
// Three streams are kept apart so an operator can route them separately:
//   - ops:   actionable warnings (forced partition splits, fatal config errors)
//   - diag:  per-event diagnostics (collection sizes, validation outcomes)
//   - trace: per-stage telemetry (labelling rounds, bin occupancy)
//
// A nil writer disables the stream.
package monitoring

import (
	"io"
	"log"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu          sync.RWMutex
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

func init() {
	// Until configured, ops goes to the standard logger's writer and the
	// noisier streams stay muted.
	opsLogger = newLogger("[seedline] ", log.Writer())
}

// SetLogWriters configures the three logging streams.
// Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	opsLogger = newLogger("[seedline] ", ops)
	diagLogger = newLogger("[seedline] ", diag)
	traceLogger = newLogger("[seedline] ", trace)
}

// UseLogrus routes ops to Warn, diag to Info and trace to Debug on the
// given logrus logger, so the logger's level decides which streams are
// emitted. Passing nil uses the logrus standard logger.
func UseLogrus(l *logrus.Logger) {
	if l == nil {
		l = logrus.StandardLogger()
	}
	mu.Lock()
	defer mu.Unlock()
	opsLogger = log.New(l.WriterLevel(logrus.WarnLevel), "", 0)
	diagLogger = log.New(l.WriterLevel(logrus.InfoLevel), "", 0)
	traceLogger = log.New(l.WriterLevel(logrus.DebugLevel), "", 0)
}

// Mute disables all streams. Intended for tests and benchmarks.
func Mute() {
	SetLogWriters(nil, nil, nil)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs to the ops stream.
func Opsf(format string, args ...interface{}) {
	mu.RLock()
	l := opsLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Diagf logs to the diag stream.
func Diagf(format string, args ...interface{}) {
	mu.RLock()
	l := diagLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Tracef logs to the trace stream.
func Tracef(format string, args ...interface{}) {
	mu.RLock()
	l := traceLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}
