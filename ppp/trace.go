package ppp

import (
	"fmt"
	"io"
)

// Tracer is an instance-scoped, numeric-level debug log, styled after the
// teacher's Trace/TraceOpen idiom but carried as a field of Session rather
// than package-level globals — the spec explicitly flags exactly that
// shape of hidden global state as the anti-pattern to avoid.
type Tracer struct {
	w     io.Writer
	level int
}

// NewTracer wraps w at the given verbosity level (0 disables all tracing).
func NewTracer(w io.Writer, level int) *Tracer {
	return &Tracer{w: w, level: level}
}

// Tracef logs a formatted message if level is within the tracer's verbosity.
func (t *Tracer) Tracef(level int, format string, args ...interface{}) {
	if t == nil || t.w == nil || level > t.level {
		return
	}
	fmt.Fprintf(t.w, format, args...)
}
