// Package levels converts BZPK level packages (.LVL) into structured JSON
// documents plus a run summary.
package levels

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
	inputDirName  = "leveldata"
	outputDirName = "leveldata_json"
)

// Converter extracts LVL packages to JSON.
type Converter struct {
	limit int
}

// New builds the levels converter from configuration.
func New(cfg *config.Config) *Converter {
	return &Converter{limit: cfg.Levels.Limit}
}

// Kind implements extract.Converter.
func (c *Converter) Kind() report.Kind {
	return report.KindLevels
}

type runSummary struct {
	FilesTotal int            `json:"files_total"`
	OK         int            `json:"ok"`
	Failed     int            `json:"failed"`
	Files      []*FileSummary `json:"files"`
}

// Run parses every .LVL under <input>/leveldata and writes one JSON document
// per file plus _summary.json.
func (c *Converter) Run(ctx context.Context, req extract.Request) (extract.Result, error) {
	var res extract.Result

	lvlRoot, ok := extract.SubDir(req.InputRoot, inputDirName)
	if !ok {
		return res, extract.Wrap(extract.ErrConverterSetup, "levels", "setup",
			fmt.Sprintf("no %s directory under %s", inputDirName, req.InputRoot), nil)
	}
	files, err := extract.ListFiles(lvlRoot, ".lvl")
	if err != nil {
		return res, extract.Wrap(extract.ErrConverterSetup, "levels", "setup", "list lvl files", err)
	}
	files = extract.Limit(files, c.limit)

	outRoot := filepath.Join(req.OutputRoot, outputDirName)
	if err := os.MkdirAll(outRoot, 0o755); err != nil {
		return res, extract.Wrap(extract.ErrConverterSetup, "levels", "setup", "create output directory", err)
	}

	summary := runSummary{FilesTotal: len(files)}
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
		doc, err := parsePackage(base, blob)
		if err != nil {
			res.Skipped++
			summary.Failed++
			req.Log.Logf("%s: FAIL %v", base, err)
			continue
		}
		outFile := filepath.Join(outRoot, extract.Stem(file)+".json")
		if err := writeJSON(outFile, doc); err != nil {
			res.Skipped++
			summary.Failed++
			req.Log.Logf("%s: FAIL %v", base, err)
			continue
		}
		res.Converted++
		summary.OK++
		summary.Files = append(summary.Files, &doc.Summary)
		req.Log.Logf("%s: objects=%d rws_refs=%d", base, doc.Summary.ParsedObjectCount, len(doc.Summary.UniqueRWSRefs))
	}

	if err := writeJSON(filepath.Join(outRoot, "_summary.json"), summary); err != nil {
		return res, extract.Wrap(extract.ErrExtraction, "levels", "summary", "write _summary.json", err)
	}
	req.Log.Logf("levels done: lvl_files=%d ok=%d failed=%d", summary.FilesTotal, summary.OK, summary.Failed)
	return res, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644)
}
