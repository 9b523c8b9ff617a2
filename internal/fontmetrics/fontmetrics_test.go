package fontmetrics

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"psprip/internal/config"
	"psprip/internal/extract"
)

func TestRunMissingFontDirIsSetupError(t *testing.T) {
	cfg := config.Default()
	conv := New(&cfg)
	_, err := conv.Run(context.Background(), extract.Request{
		InputRoot:  t.TempDir(),
		OutputRoot: t.TempDir(),
	})
	if !errors.Is(err, extract.ErrConverterSetup) {
		t.Fatalf("expected setup error, got %v", err)
	}
}

func TestRunWritesMetricsAndSummary(t *testing.T) {
	inRoot := t.TempDir()
	outRoot := t.TempDir()
	fontDir := filepath.Join(inRoot, "font")
	if err := os.MkdirAll(fontDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(fontDir, "HUD.MET"), []byte(sampleMet), 0o644); err != nil {
		t.Fatalf("write met: %v", err)
	}
	if err := os.WriteFile(filepath.Join(fontDir, "BAD.MET"), []byte("WRONG\na\nb\n"), 0o644); err != nil {
		t.Fatalf("write met: %v", err)
	}

	cfg := config.Default()
	conv := New(&cfg)
	res, err := conv.Run(context.Background(), extract.Request{InputRoot: inRoot, OutputRoot: outRoot})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Found != 2 || res.Converted != 1 || res.Skipped != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	data, err := os.ReadFile(filepath.Join(outRoot, "font_metrics_json", "HUD.json"))
	if err != nil {
		t.Fatalf("missing metrics output: %v", err)
	}
	var m Metrics
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if m.GlyphCount != 3 {
		t.Fatalf("glyph count: %d", m.GlyphCount)
	}

	data, err = os.ReadFile(filepath.Join(outRoot, "font_metrics_json", "_summary.json"))
	if err != nil {
		t.Fatalf("missing summary: %v", err)
	}
	var summary runSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.FilesTotal != 2 || summary.OK != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
