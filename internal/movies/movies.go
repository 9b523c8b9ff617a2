// Package movies handles PMF movie assets: plain copies, ffprobe metadata
// dumps and H.264/AAC transcodes via ffmpeg.
package movies

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"psprip/internal/config"
	"psprip/internal/extract"
	"psprip/internal/fileutil"
	"psprip/internal/report"
)

const (
	inputDirName  = "movie"
	outputDirName = "movies"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Option configures the converter.
type Option func(*Converter)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(executor Executor) Option {
	return func(c *Converter) {
		if executor != nil {
			c.exec = executor
		}
	}
}

// Converter copies, probes and transcodes .pmf movies.
type Converter struct {
	mode      string
	overwrite bool
	limit     int
	ffmpeg    string
	ffprobe   string
	exec      Executor
}

// New builds the movies converter from configuration.
func New(cfg *config.Config, opts ...Option) *Converter {
	c := &Converter{
		mode:      cfg.Movies.Mode,
		overwrite: cfg.Movies.Overwrite,
		limit:     cfg.Movies.Limit,
		ffmpeg:    cfg.FFmpegBinary(),
		ffprobe:   cfg.FFprobeBinary(),
		exec:      commandExecutor{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Kind implements extract.Converter.
func (c *Converter) Kind() report.Kind {
	return report.KindMovies
}

type runSummary struct {
	FilesTotal  int    `json:"files_total"`
	Mode        string `json:"mode"`
	CopyOK      int    `json:"copy_ok"`
	ProbeOK     int    `json:"probe_ok"`
	TranscodeOK int    `json:"transcode_ok"`
	FailedOps   int    `json:"failed_ops"`
	OutRoot     string `json:"out_root"`
}

// Run executes the configured operations per movie file. Copy mode needs no
// external tools; probe and transcode require ffprobe/ffmpeg and skip the
// whole task when the tool is missing.
func (c *Converter) Run(ctx context.Context, req extract.Request) (extract.Result, error) {
	var res extract.Result

	doCopy := c.mode == "copy" || c.mode == "all"
	doProbe := c.mode == "probe" || c.mode == "all"
	doTranscode := c.mode == "transcode" || c.mode == "all"

	movieRoot, ok := extract.SubDir(req.InputRoot, inputDirName)
	if !ok {
		return res, extract.Wrap(extract.ErrConverterSetup, "movies", "setup",
			fmt.Sprintf("no %s directory under %s", inputDirName, req.InputRoot), nil)
	}
	if doProbe {
		if _, err := exec.LookPath(c.ffprobe); err != nil {
			return res, extract.Wrap(extract.ErrConverterSetup, "movies", "setup",
				fmt.Sprintf("ffprobe %q not available for mode %q", c.ffprobe, c.mode), err)
		}
	}
	if doTranscode {
		if _, err := exec.LookPath(c.ffmpeg); err != nil {
			return res, extract.Wrap(extract.ErrConverterSetup, "movies", "setup",
				fmt.Sprintf("ffmpeg %q not available for mode %q", c.ffmpeg, c.mode), err)
		}
	}

	files, err := extract.ListFiles(movieRoot, ".pmf")
	if err != nil {
		return res, extract.Wrap(extract.ErrConverterSetup, "movies", "setup", "list pmf files", err)
	}
	files = extract.Limit(files, c.limit)
	res.Found = len(files)

	outRoot := filepath.Join(req.OutputRoot, outputDirName)
	pmfDir := filepath.Join(outRoot, "pmf")
	probeDir := filepath.Join(outRoot, "probe_json")
	mp4Dir := filepath.Join(outRoot, "mp4")
	for _, dir := range []string{pmfDir, probeDir, mp4Dir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return res, extract.Wrap(extract.ErrConverterSetup, "movies", "setup", "create output directory", err)
		}
	}

	summary := runSummary{FilesTotal: len(files), Mode: c.mode, OutRoot: outRoot}
	for _, src := range files {
		if err := extract.Cancelled(ctx); err != nil {
			return res, err
		}
		base := filepath.Base(src)
		req.Log.Logf("%s:", base)

		if doCopy {
			if err := fileutil.CopyFileVerified(src, filepath.Join(pmfDir, base)); err != nil {
				summary.FailedOps++
				req.Log.Logf("  copy: FAIL %v", err)
			} else {
				summary.CopyOK++
				req.Log.Logf("  copy: ok")
			}
		}
		if doProbe {
			if err := c.probe(ctx, src, filepath.Join(probeDir, extract.Stem(src)+".json")); err != nil {
				summary.FailedOps++
				req.Log.Logf("  probe: FAIL %v", err)
			} else {
				summary.ProbeOK++
				req.Log.Logf("  probe: ok")
			}
		}
		if doTranscode {
			if err := c.transcode(ctx, src, filepath.Join(mp4Dir, extract.Stem(src)+".mp4"), req.Log); err != nil {
				summary.FailedOps++
				req.Log.Logf("  transcode: FAIL %v", err)
			} else {
				summary.TranscodeOK++
				req.Log.Logf("  transcode: ok")
			}
		}
	}

	res.Converted = summary.CopyOK + summary.ProbeOK + summary.TranscodeOK
	res.Skipped = summary.FailedOps

	data, err := json.MarshalIndent(summary, "", "  ")
	if err == nil {
		err = fileutil.WriteFileAtomic(filepath.Join(outRoot, "_summary.json"), append(data, '\n'), 0o644)
	}
	if err != nil {
		return res, extract.Wrap(extract.ErrExtraction, "movies", "summary", "write _summary.json", err)
	}
	req.Log.Logf("movies done: files=%d copy_ok=%d probe_ok=%d transcode_ok=%d failed_ops=%d",
		summary.FilesTotal, summary.CopyOK, summary.ProbeOK, summary.TranscodeOK, summary.FailedOps)
	return res, nil
}

// probe captures ffprobe's JSON description of the movie's container and
// streams.
func (c *Converter) probe(ctx context.Context, src, outJSON string) error {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		src,
	}
	var captured strings.Builder
	if err := c.exec.Run(ctx, c.ffprobe, args, func(line string) {
		captured.WriteString(line)
		captured.WriteString("\n")
	}); err != nil {
		return err
	}

	var parsed any
	if err := json.Unmarshal([]byte(captured.String()), &parsed); err != nil {
		return fmt.Errorf("ffprobe returned non-JSON output")
	}
	pretty, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(outJSON, append(pretty, '\n'), 0o644)
}

func (c *Converter) transcode(ctx context.Context, src, outMP4 string, log extract.LogFunc) error {
	overwriteFlag := "-n"
	if c.overwrite {
		overwriteFlag = "-y"
	}
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		overwriteFlag,
		"-i", src,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "18",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-c:a", "aac",
		"-b:a", "160k",
		outMP4,
	}
	return c.exec.Run(ctx, c.ffmpeg, args, func(line string) {
		log.Logf("  ffmpeg: %s", line)
	})
}
