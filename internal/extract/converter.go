// Package extract defines the uniform contract every format converter
// implements, plus the error taxonomy shared across the pipeline.
package extract

import (
	"context"
	"fmt"

	"psprip/internal/report"
)

// LogFunc receives human-readable log lines as a converter produces them.
// Converters call it incrementally so the orchestrator can stream output;
// they never buffer a whole run's worth of lines.
type LogFunc func(line string)

// Logf formats and emits one line when the sink is attached.
func (f LogFunc) Logf(format string, args ...any) {
	if f == nil {
		return
	}
	f(fmt.Sprintf(format, args...))
}

// Request carries the per-task inputs handed to a converter.
type Request struct {
	// InputRoot is the effective USRDIR root (cache-backed or user-supplied).
	InputRoot string
	// OutputRoot is the destination root; converters own a subdirectory each.
	OutputRoot string
	// Log receives streamed log lines; may be nil.
	Log LogFunc
}

// Result carries item counts for one converter run. Per-item failures are
// counted as skipped, never raised as errors.
type Result struct {
	Found     int
	Converted int
	Skipped   int
}

// Add accumulates another result into this one.
func (r *Result) Add(other Result) {
	r.Found += other.Found
	r.Converted += other.Converted
	r.Skipped += other.Skipped
}

// Converter is the capability every format-specific extractor exposes.
// Run returns an error only for converter-wide setup failures; item-level
// problems are absorbed into Result.Skipped and the log stream.
type Converter interface {
	Kind() report.Kind
	Run(ctx context.Context, req Request) (Result, error)
}

// Cancelled reports whether the context has been cancelled. Converters call
// it between items so long batches stop promptly.
func Cancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
