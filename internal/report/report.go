// Package report defines the shared status model for extraction runs: the
// seven task kinds, the per-task state machine, and the aggregated run
// report consumed by the CLI and any attached presentation layer.
package report

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies one format-specific extraction task.
type Kind string

const (
	KindTextures    Kind = "textures"
	KindGeometry    Kind = "geometry"
	KindAudio       Kind = "audio"
	KindLevels      Kind = "levels"
	KindMovies      Kind = "movies"
	KindDataTables  Kind = "datatables"
	KindFontMetrics Kind = "fontmetrics"
)

// orderedKinds is the fixed execution order for a full run. Movies sit after
// levels so the transcode-heavy work runs once the cheap passes are done.
var orderedKinds = []Kind{
	KindTextures,
	KindGeometry,
	KindAudio,
	KindLevels,
	KindMovies,
	KindDataTables,
	KindFontMetrics,
}

var kindSet = func() map[Kind]struct{} {
	set := make(map[Kind]struct{}, len(orderedKinds))
	for _, kind := range orderedKinds {
		set[kind] = struct{}{}
	}
	return set
}()

// AllKinds returns the declared execution order.
func AllKinds() []Kind {
	cp := make([]Kind, len(orderedKinds))
	copy(cp, orderedKinds)
	return cp
}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := kindSet[normalized]
	return normalized, ok
}

// Status represents the lifecycle of one extraction task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Terminal reports whether the status is final. Terminal states are never
// left again.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// CancelledReason marks tasks skipped because the run was cancelled.
const CancelledReason = "run cancelled"

// Task captures the outcome of a single extraction task.
type Task struct {
	Kind       Kind      `json:"kind"`
	Status     Status    `json:"status"`
	Found      int       `json:"found"`
	Converted  int       `json:"converted"`
	Skipped    int       `json:"skipped"`
	Reason     string    `json:"reason,omitempty"`
	LogLines   []string  `json:"log_lines,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// AppendLog records one captured log line.
func (t *Task) AppendLog(line string) {
	if line == "" {
		return
	}
	t.LogLines = append(t.LogLines, line)
}

// Run aggregates every task executed in one invocation. It is appended to as
// tasks complete and treated as immutable once the run ends.
type Run struct {
	ID         string    `json:"id"`
	Input      string    `json:"input"`
	OutputRoot string    `json:"output_root"`
	Tasks      []*Task   `json:"tasks"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// NewRun creates a run report for the given input and destination.
func NewRun(input, outputRoot string, kinds []Kind) *Run {
	run := &Run{
		ID:         uuid.NewString(),
		Input:      input,
		OutputRoot: outputRoot,
		StartedAt:  time.Now().UTC(),
		Tasks:      make([]*Task, 0, len(kinds)),
	}
	for _, kind := range kinds {
		run.Tasks = append(run.Tasks, &Task{Kind: kind, Status: StatusPending})
	}
	return run
}

// Task returns the task entry for the given kind, or nil.
func (r *Run) Task(kind Kind) *Task {
	for _, task := range r.Tasks {
		if task.Kind == kind {
			return task
		}
	}
	return nil
}

// Finish stamps the run end time.
func (r *Run) Finish() {
	r.FinishedAt = time.Now().UTC()
}

// Succeeded reports overall success: every selected task reached succeeded.
func (r *Run) Succeeded() bool {
	if len(r.Tasks) == 0 {
		return false
	}
	for _, task := range r.Tasks {
		if task.Status != StatusSucceeded {
			return false
		}
	}
	return true
}
