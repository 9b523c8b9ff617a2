package movies

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"psprip/internal/config"
	"psprip/internal/extract"
	"psprip/internal/report"
)

type fakeExecutor struct {
	binaries []string
	args     [][]string
	output   []string
	err      error
}

func (f *fakeExecutor) Run(_ context.Context, binary string, args []string, onOutput func(string)) error {
	f.binaries = append(f.binaries, binary)
	f.args = append(f.args, append([]string(nil), args...))
	for _, line := range f.output {
		onOutput(line)
	}
	return f.err
}

func testConfig() *config.Config {
	cfg := config.Default()
	return &cfg
}

func writeMovie(t *testing.T, inRoot, name string) string {
	t.Helper()
	movieDir := filepath.Join(inRoot, "movie")
	if err := os.MkdirAll(movieDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(movieDir, name)
	if err := os.WriteFile(path, []byte("pmf-data"), 0o644); err != nil {
		t.Fatalf("write pmf: %v", err)
	}
	return path
}

func TestRunMissingMovieDirIsSetupError(t *testing.T) {
	cfg := testConfig()
	cfg.Movies.Mode = "copy"
	conv := New(cfg)
	_, err := conv.Run(context.Background(), extract.Request{
		InputRoot:  t.TempDir(),
		OutputRoot: t.TempDir(),
	})
	if !errors.Is(err, extract.ErrConverterSetup) {
		t.Fatalf("expected setup error, got %v", err)
	}
}

func TestRunCopyMode(t *testing.T) {
	inRoot := t.TempDir()
	outRoot := t.TempDir()
	writeMovie(t, inRoot, "INTRO.PMF")

	cfg := testConfig()
	cfg.Movies.Mode = "copy"
	conv := New(cfg)

	res, err := conv.Run(context.Background(), extract.Request{InputRoot: inRoot, OutputRoot: outRoot})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Found != 1 || res.Converted != 1 || res.Skipped != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	copied, err := os.ReadFile(filepath.Join(outRoot, "movies", "pmf", "INTRO.PMF"))
	if err != nil {
		t.Fatalf("missing copy: %v", err)
	}
	if string(copied) != "pmf-data" {
		t.Fatalf("copy content mismatch: %q", copied)
	}

	data, err := os.ReadFile(filepath.Join(outRoot, "movies", "_summary.json"))
	if err != nil {
		t.Fatalf("missing summary: %v", err)
	}
	var summary runSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.CopyOK != 1 || summary.Mode != "copy" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunProbeModeMissingToolIsSetupError(t *testing.T) {
	inRoot := t.TempDir()
	writeMovie(t, inRoot, "INTRO.PMF")

	cfg := testConfig()
	cfg.Movies.Mode = "probe"
	cfg.Tools.FFprobe = "definitely-not-ffprobe"
	conv := New(cfg)

	_, err := conv.Run(context.Background(), extract.Request{InputRoot: inRoot, OutputRoot: t.TempDir()})
	if !errors.Is(err, extract.ErrConverterSetup) {
		t.Fatalf("expected setup error, got %v", err)
	}
	if extract.StatusForError(err) != report.StatusSkipped {
		t.Fatalf("missing tool should map to skipped")
	}
}

func TestRunProbeMode(t *testing.T) {
	inRoot := t.TempDir()
	outRoot := t.TempDir()
	src := writeMovie(t, inRoot, "INTRO.PMF")

	cfg := testConfig()
	cfg.Movies.Mode = "probe"
	// Any resolvable binary satisfies the lookup; the fake executor runs instead.
	cfg.Tools.FFprobe = "sh"
	exec := &fakeExecutor{output: []string{`{"format": {"format_name": "pmf"}}`}}
	conv := New(cfg, WithExecutor(exec))

	res, err := conv.Run(context.Background(), extract.Request{InputRoot: inRoot, OutputRoot: outRoot})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Converted != 1 || res.Skipped != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	if len(exec.args) != 1 {
		t.Fatalf("expected one invocation, got %d", len(exec.args))
	}
	args := exec.args[0]
	if args[len(args)-1] != src {
		t.Fatalf("probe should receive the source path, got %v", args)
	}

	data, err := os.ReadFile(filepath.Join(outRoot, "movies", "probe_json", "INTRO.json"))
	if err != nil {
		t.Fatalf("missing probe output: %v", err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("probe output not JSON: %v", err)
	}
}

func TestRunProbeModeRejectsNonJSONOutput(t *testing.T) {
	inRoot := t.TempDir()
	writeMovie(t, inRoot, "INTRO.PMF")

	cfg := testConfig()
	cfg.Movies.Mode = "probe"
	cfg.Tools.FFprobe = "sh"
	conv := New(cfg, WithExecutor(&fakeExecutor{output: []string{"not json"}}))

	res, err := conv.Run(context.Background(), extract.Request{InputRoot: inRoot, OutputRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Converted != 0 || res.Skipped != 1 {
		t.Fatalf("bad probe output should count as a failed op: %+v", res)
	}
}

func TestRunTranscodeModeArgs(t *testing.T) {
	inRoot := t.TempDir()
	outRoot := t.TempDir()
	writeMovie(t, inRoot, "INTRO.PMF")

	cfg := testConfig()
	cfg.Movies.Mode = "transcode"
	cfg.Movies.Overwrite = true
	cfg.Tools.FFmpeg = "sh"
	exec := &fakeExecutor{}
	conv := New(cfg, WithExecutor(exec))

	res, err := conv.Run(context.Background(), extract.Request{InputRoot: inRoot, OutputRoot: outRoot})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Converted != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	args := exec.args[0]
	joined := make(map[string]bool, len(args))
	for _, a := range args {
		joined[a] = true
	}
	for _, want := range []string{"-y", "libx264", "yuv420p", "+faststart"} {
		if !joined[want] {
			t.Fatalf("missing ffmpeg argument %q in %v", want, args)
		}
	}
	wantOut := filepath.Join(outRoot, "movies", "mp4", "INTRO.mp4")
	if args[len(args)-1] != wantOut {
		t.Fatalf("output path: got %q, want %q", args[len(args)-1], wantOut)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	inRoot := t.TempDir()
	writeMovie(t, inRoot, "INTRO.PMF")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig()
	cfg.Movies.Mode = "copy"
	conv := New(cfg)
	_, err := conv.Run(ctx, extract.Request{InputRoot: inRoot, OutputRoot: t.TempDir()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
