// Package fontmetrics converts bitmap font metric files (.met) into JSON,
// probing for the matching texture atlas alongside each file.
package fontmetrics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"psprip/internal/config"
	"psprip/internal/extract"
	"psprip/internal/fileutil"
	"psprip/internal/report"
)

const (
	inputDirName  = "font"
	outputDirName = "font_metrics_json"
)

// Converter extracts font metrics to JSON.
type Converter struct{}

// New builds the font metrics converter.
func New(_ *config.Config) *Converter {
	return &Converter{}
}

// Kind implements extract.Converter.
func (c *Converter) Kind() report.Kind {
	return report.KindFontMetrics
}

type fileSummary struct {
	File       string `json:"file"`
	GlyphCount int    `json:"glyph_count"`
	AtlasFound string `json:"atlas_found"`
}

type runSummary struct {
	FilesTotal int            `json:"files_total"`
	OK         int            `json:"ok"`
	Failed     int            `json:"failed"`
	Files      []*fileSummary `json:"files"`
}

// Run parses every .met under <input>/font into one JSON document per file
// plus _summary.json.
func (c *Converter) Run(ctx context.Context, req extract.Request) (extract.Result, error) {
	var res extract.Result

	fontRoot, ok := extract.SubDir(req.InputRoot, inputDirName)
	if !ok {
		return res, extract.Wrap(extract.ErrConverterSetup, "fontmetrics", "setup",
			fmt.Sprintf("no %s directory under %s", inputDirName, req.InputRoot), nil)
	}
	files, err := extract.ListFiles(fontRoot, ".met")
	if err != nil {
		return res, extract.Wrap(extract.ErrConverterSetup, "fontmetrics", "setup", "list met files", err)
	}

	outRoot := filepath.Join(req.OutputRoot, outputDirName)
	if err := os.MkdirAll(outRoot, 0o755); err != nil {
		return res, extract.Wrap(extract.ErrConverterSetup, "fontmetrics", "setup", "create output directory", err)
	}

	summary := runSummary{FilesTotal: len(files), Files: []*fileSummary{}}
	res.Found = len(files)

	for _, file := range files {
		if err := extract.Cancelled(ctx); err != nil {
			return res, err
		}
		base := filepath.Base(file)
		blob, err := os.ReadFile(file)
		if err != nil {
			res.Skipped++
			summary.Failed++
			req.Log.Logf("%s: FAIL %v", base, err)
			continue
		}
		metrics, err := parseMet(file, string(blob))
		if err != nil {
			res.Skipped++
			summary.Failed++
			req.Log.Logf("%s: FAIL %v", base, err)
			continue
		}
		if err := writeJSON(filepath.Join(outRoot, extract.Stem(file)+".json"), metrics); err != nil {
			res.Skipped++
			summary.Failed++
			req.Log.Logf("%s: FAIL %v", base, err)
			continue
		}
		res.Converted++
		summary.OK++
		summary.Files = append(summary.Files, &fileSummary{
			File:       metrics.File,
			GlyphCount: metrics.GlyphCount,
			AtlasFound: metrics.AtlasFound,
		})
		req.Log.Logf("%s: glyphs=%d atlas=%s", base, metrics.GlyphCount, orNone(metrics.AtlasFound))
	}

	if err := writeJSON(filepath.Join(outRoot, "_summary.json"), summary); err != nil {
		return res, extract.Wrap(extract.ErrExtraction, "fontmetrics", "summary", "write _summary.json", err)
	}
	req.Log.Logf("fontmetrics done: met_files=%d ok=%d failed=%d", summary.FilesTotal, summary.OK, summary.Failed)
	return res, nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644)
}
