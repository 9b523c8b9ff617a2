package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldTask is the standardized structured logging key for extraction task names.
	FieldTask = "task"
	// FieldEventType tags notable lifecycle events (task_start, task_complete, ...).
	FieldEventType = "event_type"
	// FieldErrorHint carries a suggested next step alongside warnings and errors.
	FieldErrorHint = "error_hint"
)

type taskContextKey struct{}

// WithTask stores the active task name in the context.
func WithTask(ctx context.Context, task string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, taskContextKey{}, task)
}

// TaskFromContext returns the active task name, if any.
func TaskFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	task, ok := ctx.Value(taskContextKey{}).(string)
	return task, ok && task != ""
}

// WithContext returns a logger augmented with structured fields derived from the context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if task, ok := TaskFromContext(ctx); ok {
		return logger.With(slog.String(FieldTask, task))
	}
	return logger
}
