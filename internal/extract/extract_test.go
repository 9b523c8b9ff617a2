package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"psprip/internal/report"
)

func TestWrapTagsAndMessage(t *testing.T) {
	inner := errors.New("permission denied")
	err := Wrap(ErrConverterSetup, "audio", "setup", "open bank", inner)
	if !errors.Is(err, ErrConverterSetup) {
		t.Fatalf("marker lost: %v", err)
	}
	if !errors.Is(err, inner) {
		t.Fatalf("inner error lost: %v", err)
	}
	want := "converter setup error: audio: setup: open bank: permission denied"
	if err.Error() != want {
		t.Fatalf("message: got %q, want %q", err.Error(), want)
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := Wrap(nil, "", "", "", nil)
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("nil marker should default to extraction: %v", err)
	}
	if err.Error() != "extraction error: extraction failure" {
		t.Fatalf("message: %q", err.Error())
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want report.Status
	}{
		{nil, report.StatusSucceeded},
		{Wrap(ErrConverterSetup, "x", "y", "z", nil), report.StatusSkipped},
		{context.Canceled, report.StatusSkipped},
		{context.DeadlineExceeded, report.StatusSkipped},
		{Wrap(ErrExtraction, "x", "y", "z", nil), report.StatusFailed},
		{errors.New("boom"), report.StatusFailed},
	}
	for _, tc := range cases {
		if got := StatusForError(tc.err); got != tc.want {
			t.Fatalf("StatusForError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestCancelled(t *testing.T) {
	if err := Cancelled(context.Background()); err != nil {
		t.Fatalf("live context: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Cancelled(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled context: %v", err)
	}
}

func TestLogfNilSink(t *testing.T) {
	var log LogFunc
	log.Logf("must not panic: %d", 1)

	var lines []string
	log = func(line string) { lines = append(lines, line) }
	log.Logf("item %d", 7)
	if len(lines) != 1 || lines[0] != "item 7" {
		t.Fatalf("captured lines: %v", lines)
	}
}

func TestSubDirCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "Textures"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	dir, ok := SubDir(root, "textures")
	if !ok || filepath.Base(dir) != "Textures" {
		t.Fatalf("got %q ok=%v", dir, ok)
	}
	if _, ok := SubDir(root, "audio"); ok {
		t.Fatalf("missing directory must not resolve")
	}
}

func TestListFilesFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"B.TXD", "a.txd", "readme.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub.txd"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := ListFiles(dir, ".txd")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files: %v", files)
	}
	if filepath.Base(files[0]) != "B.TXD" || filepath.Base(files[1]) != "a.txd" {
		t.Fatalf("sort order: %v", files)
	}
}

func TestLimit(t *testing.T) {
	files := []string{"a", "b", "c"}
	if got := Limit(files, 2); len(got) != 2 {
		t.Fatalf("limit 2: %v", got)
	}
	if got := Limit(files, 0); len(got) != 3 {
		t.Fatalf("limit 0 means unlimited: %v", got)
	}
	if got := Limit(files, 10); len(got) != 3 {
		t.Fatalf("limit beyond length: %v", got)
	}
}

func TestStem(t *testing.T) {
	if got := Stem("/a/b/TANK.RWS"); got != "TANK" {
		t.Fatalf("stem: %q", got)
	}
	if got := Stem("noext"); got != "noext" {
		t.Fatalf("stem: %q", got)
	}
}
