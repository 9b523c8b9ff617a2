package report

import "testing"

func TestAllKindsOrder(t *testing.T) {
	kinds := AllKinds()
	if len(kinds) != 7 {
		t.Fatalf("expected 7 kinds, got %d", len(kinds))
	}
	if kinds[0] != KindTextures || kinds[3] != KindLevels || kinds[4] != KindMovies {
		t.Fatalf("unexpected order: %v", kinds)
	}
	// Mutating the returned slice must not affect later calls.
	kinds[0] = Kind("mutated")
	if AllKinds()[0] != KindTextures {
		t.Fatalf("AllKinds must return a copy")
	}
}

func TestParseKind(t *testing.T) {
	if kind, ok := ParseKind("  Textures "); !ok || kind != KindTextures {
		t.Fatalf("got %q ok=%v", kind, ok)
	}
	if _, ok := ParseKind("sprites"); ok {
		t.Fatalf("unknown kind must not parse")
	}
	if _, ok := ParseKind(""); ok {
		t.Fatalf("empty kind must not parse")
	}
}

func TestStatusTerminal(t *testing.T) {
	for status, want := range map[Status]bool{
		StatusPending:   false,
		StatusRunning:   false,
		StatusSucceeded: true,
		StatusFailed:    true,
		StatusSkipped:   true,
	} {
		if status.Terminal() != want {
			t.Fatalf("%s.Terminal() = %v, want %v", status, status.Terminal(), want)
		}
	}
}

func TestRunLifecycle(t *testing.T) {
	run := NewRun("in", "out", []Kind{KindTextures, KindAudio})
	if run.ID == "" {
		t.Fatalf("run must get an id")
	}
	if len(run.Tasks) != 2 {
		t.Fatalf("tasks: %d", len(run.Tasks))
	}
	if run.Task(KindAudio) == nil || run.Task(KindMovies) != nil {
		t.Fatalf("task lookup broken")
	}
	if run.Succeeded() {
		t.Fatalf("pending run must not be succeeded")
	}

	for _, task := range run.Tasks {
		task.Status = StatusSucceeded
	}
	run.Finish()
	if !run.Succeeded() {
		t.Fatalf("all-succeeded run must succeed")
	}
	if run.FinishedAt.IsZero() {
		t.Fatalf("finish must stamp the end time")
	}

	run.Task(KindAudio).Status = StatusSkipped
	if run.Succeeded() {
		t.Fatalf("skipped task must fail overall success")
	}
}

func TestTaskAppendLog(t *testing.T) {
	task := &Task{Kind: KindLevels}
	task.AppendLog("")
	task.AppendLog("line one")
	if len(task.LogLines) != 1 || task.LogLines[0] != "line one" {
		t.Fatalf("log lines: %v", task.LogLines)
	}
}

func TestEmptyRunNeverSucceeds(t *testing.T) {
	run := NewRun("in", "out", nil)
	run.Finish()
	if run.Succeeded() {
		t.Fatalf("run without tasks must not succeed")
	}
}
