package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"geometry mode", func(c *Config) { c.Geometry.Mode = "everything" }},
		{"audio mode", func(c *Config) { c.Audio.Mode = "wav" }},
		{"movies mode", func(c *Config) { c.Movies.Mode = "stream" }},
		{"geometry limit", func(c *Config) { c.Geometry.Limit = -1 }},
		{"levels limit", func(c *Config) { c.Levels.Limit = -1 }},
		{"movies limit", func(c *Config) { c.Movies.Limit = -1 }},
		{"logging format", func(c *Config) { c.Logging.Format = "xml" }},
		{"logging level", func(c *Config) { c.Logging.Level = "verbose" }},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadMissingExplicitPathKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatalf("missing file reported as existing")
	}
	if resolved != path {
		t.Fatalf("resolved path: %q", resolved)
	}
	if cfg.Movies.Mode != "copy" || cfg.Audio.Mode != "all" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadAppliesFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[movies]
mode = "probe"
limit = 3

[textures]
flat_aliases = false

[logging]
format = "json"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatalf("file not detected")
	}
	if cfg.Movies.Mode != "probe" || cfg.Movies.Limit != 3 {
		t.Fatalf("movies overrides: %+v", cfg.Movies)
	}
	if cfg.Textures.FlatAliases {
		t.Fatalf("textures override lost")
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("logging override lost: %q", cfg.Logging.Format)
	}
	// Untouched sections keep their defaults.
	if cfg.Geometry.Mode != "all" {
		t.Fatalf("geometry default lost: %q", cfg.Geometry.Mode)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[audio]\nmode = \"wav\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("movies = {"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("create sample: %v", err)
	}
	if _, _, exists, err := Load(path); err != nil || !exists {
		t.Fatalf("sample must load cleanly: exists=%v err=%v", exists, err)
	}
}

func TestExpandPathMakesAbsolute(t *testing.T) {
	got, err := ExpandPath("relative/dir")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Fatalf("expected absolute path, got %q", got)
	}
	if !strings.HasSuffix(got, filepath.Join("relative", "dir")) {
		t.Fatalf("unexpected expansion: %q", got)
	}
}

func TestFFBinaryFallbacks(t *testing.T) {
	cfg := Default()
	cfg.Tools.FFmpeg = "  "
	cfg.Tools.FFprobe = ""
	if cfg.FFmpegBinary() != "ffmpeg" || cfg.FFprobeBinary() != "ffprobe" {
		t.Fatalf("blank tool names must fall back to defaults")
	}
}
