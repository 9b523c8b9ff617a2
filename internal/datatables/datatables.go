// Package datatables converts gameplay CSV tables, localization token files
// and menu XML definitions into structured JSON.
package datatables

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

const outputDirName = "data_tables_json"

// Converter extracts the three table-like asset families.
type Converter struct{}

// New builds the data tables converter.
func New(_ *config.Config) *Converter {
	return &Converter{}
}

// Kind implements extract.Converter.
func (c *Converter) Kind() report.Kind {
	return report.KindDataTables
}

type runSummary struct {
	CSVFiles int `json:"csv_files"`
	CSVOk    int `json:"csv_ok"`
	TXTFiles int `json:"txt_files"`
	TXTOk    int `json:"txt_ok"`
	XMLFiles int `json:"xml_files"`
	XMLOk    int `json:"xml_ok"`
}

// Run parses leveldata CSVs, text TXT tokens and menu XMLs into JSON files
// under data_tables_json.
func (c *Converter) Run(ctx context.Context, req extract.Request) (extract.Result, error) {
	var res extract.Result

	csvRoot, csvOK := extract.SubDir(req.InputRoot, "leveldata")
	txtRoot, txtOK := extract.SubDir(req.InputRoot, "text")
	xmlRoot, xmlOK := extract.SubDir(req.InputRoot, "menu")
	if !csvOK || !txtOK || !xmlOK {
		return res, extract.Wrap(extract.ErrConverterSetup, "datatables", "setup",
			fmt.Sprintf("missing leveldata/text/menu directories under %s", req.InputRoot), nil)
	}

	outRoot := filepath.Join(req.OutputRoot, outputDirName)
	outCSV := filepath.Join(outRoot, "leveldata_csv")
	outTXT := filepath.Join(outRoot, "localization_txt")
	outXML := filepath.Join(outRoot, "menu_xml")
	for _, dir := range []string{outCSV, outTXT, outXML} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return res, extract.Wrap(extract.ErrConverterSetup, "datatables", "setup", "create output directory", err)
		}
	}

	csvFiles, err := extract.ListFiles(csvRoot, ".csv")
	if err != nil {
		return res, extract.Wrap(extract.ErrConverterSetup, "datatables", "setup", "list csv files", err)
	}
	txtFiles, err := extract.ListFiles(txtRoot, ".txt")
	if err != nil {
		return res, extract.Wrap(extract.ErrConverterSetup, "datatables", "setup", "list txt files", err)
	}
	xmlFiles, err := extract.ListFiles(xmlRoot, ".xml")
	if err != nil {
		return res, extract.Wrap(extract.ErrConverterSetup, "datatables", "setup", "list xml files", err)
	}

	summary := runSummary{CSVFiles: len(csvFiles), TXTFiles: len(txtFiles), XMLFiles: len(xmlFiles)}
	res.Found = len(csvFiles) + len(txtFiles) + len(xmlFiles)

	for _, file := range csvFiles {
		if err := extract.Cancelled(ctx); err != nil {
			return res, err
		}
		base := filepath.Base(file)
		blob, err := os.ReadFile(file)
		if err != nil {
			res.Skipped++
			req.Log.Logf("[csv] %s: FAIL %v", base, err)
			continue
		}
		table := parseCSVTable(base, decodeText(blob))
		if err := writeJSON(filepath.Join(outCSV, extract.Stem(file)+".json"), table); err != nil {
			res.Skipped++
			req.Log.Logf("[csv] %s: FAIL %v", base, err)
			continue
		}
		res.Converted++
		summary.CSVOk++
		req.Log.Logf("[csv] %s: rows=%d comments=%d", base, table.RowCount, table.CommentCount)
	}

	for _, file := range txtFiles {
		if err := extract.Cancelled(ctx); err != nil {
			return res, err
		}
		base := filepath.Base(file)
		blob, err := os.ReadFile(file)
		if err != nil {
			res.Skipped++
			req.Log.Logf("[txt] %s: FAIL %v", base, err)
			continue
		}
		loc := parseLocalization(base, decodeText(blob))
		if err := writeJSON(filepath.Join(outTXT, extract.Stem(file)+".json"), loc); err != nil {
			res.Skipped++
			req.Log.Logf("[txt] %s: FAIL %v", base, err)
			continue
		}
		res.Converted++
		summary.TXTOk++
		req.Log.Logf("[txt] %s: entries=%d unparsed=%d", base, loc.EntriesCount, len(loc.Unparsed))
	}

	for _, file := range xmlFiles {
		if err := extract.Cancelled(ctx); err != nil {
			return res, err
		}
		base := filepath.Base(file)
		blob, err := os.ReadFile(file)
		if err != nil {
			res.Skipped++
			req.Log.Logf("[xml] %s: FAIL %v", base, err)
			continue
		}
		menu, err := parseMenuXML(base, blob)
		if err != nil {
			res.Skipped++
			req.Log.Logf("[xml] %s: FAIL %v", base, err)
			continue
		}
		if err := writeJSON(filepath.Join(outXML, extract.Stem(file)+".json"), menu); err != nil {
			res.Skipped++
			req.Log.Logf("[xml] %s: FAIL %v", base, err)
			continue
		}
		res.Converted++
		summary.XMLOk++
		req.Log.Logf("[xml] %s: textures=%d", base, menu.UniqueTextureCount)
	}

	if err := writeJSON(filepath.Join(outRoot, "_summary.json"), summary); err != nil {
		return res, extract.Wrap(extract.ErrExtraction, "datatables", "summary", "write _summary.json", err)
	}
	req.Log.Logf("datatables done: csv_ok=%d/%d txt_ok=%d/%d xml_ok=%d/%d",
		summary.CSVOk, summary.CSVFiles, summary.TXTOk, summary.TXTFiles, summary.XMLOk, summary.XMLFiles)
	return res, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644)
}
