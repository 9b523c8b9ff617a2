package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"psprip/internal/report"
)

var (
	// ErrStructure marks inputs that lack the expected PSP_GAME/USRDIR subtree.
	ErrStructure = errors.New("image structure error")
	// ErrExtraction marks I/O failures while materializing a cache entry.
	ErrExtraction = errors.New("extraction error")
	// ErrConverterSetup marks converter-wide preconditions that are unmet
	// (missing input root, missing external tool). Tasks failing this way are
	// skipped rather than failed.
	ErrConverterSetup = errors.New("converter setup error")
	// ErrUsage marks caller contract violations reported before any task runs.
	ErrUsage = errors.New("usage error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later status classification.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExtraction
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// StatusForError maps a converter error to the terminal task status the
// orchestrator should record. Setup failures and cancellation skip the task;
// everything else fails it.
func StatusForError(err error) report.Status {
	switch {
	case err == nil:
		return report.StatusSucceeded
	case errors.Is(err, ErrConverterSetup):
		return report.StatusSkipped
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return report.StatusSkipped
	default:
		return report.StatusFailed
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "extraction failure"
	}
	return strings.Join(parts, ": ")
}
