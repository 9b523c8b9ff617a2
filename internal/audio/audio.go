// Package audio extracts the audio directory: ATRAC3 files are copied as-is,
// .bnk banks are unpacked and their embedded VAGp streams optionally decoded
// to WAV.
package audio

import (
	"context"
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"psprip/internal/config"
	"psprip/internal/extract"
	"psprip/internal/fileutil"
	"psprip/internal/report"
)

const (
	inputDirName  = "audio"
	outputDirName = "audio_rip"
)

// Converter extracts at3 and bnk audio.
type Converter struct {
	mode      string
	decodeVAG bool
}

// New builds the audio converter from configuration.
func New(cfg *config.Config) *Converter {
	return &Converter{mode: cfg.Audio.Mode, decodeVAG: cfg.Audio.DecodeVAG}
}

// Kind implements extract.Converter.
func (c *Converter) Kind() report.Kind {
	return report.KindAudio
}

// Run copies .at3 files and unpacks .bnk banks per the configured mode.
func (c *Converter) Run(ctx context.Context, req extract.Request) (extract.Result, error) {
	var res extract.Result

	audioRoot, ok := extract.SubDir(req.InputRoot, inputDirName)
	if !ok {
		return res, extract.Wrap(extract.ErrConverterSetup, "audio", "setup",
			fmt.Sprintf("no %s directory under %s", inputDirName, req.InputRoot), nil)
	}
	outRoot := filepath.Join(req.OutputRoot, outputDirName)
	if err := os.MkdirAll(outRoot, 0o755); err != nil {
		return res, extract.Wrap(extract.ErrConverterSetup, "audio", "setup", "create output directory", err)
	}

	if c.mode == "all" || c.mode == "at3" {
		if err := c.copyAT3(ctx, audioRoot, outRoot, req.Log, &res); err != nil {
			return res, err
		}
	}
	if c.mode == "all" || c.mode == "bnk" {
		if err := c.extractBanks(ctx, audioRoot, outRoot, req.Log, &res); err != nil {
			return res, err
		}
	}
	req.Log.Logf("audio done: found=%d converted=%d failed=%d", res.Found, res.Converted, res.Skipped)
	return res, nil
}

func (c *Converter) copyAT3(ctx context.Context, audioRoot, outRoot string, log extract.LogFunc, res *extract.Result) error {
	files, err := walkFiles(audioRoot, ".at3")
	if err != nil {
		return extract.Wrap(extract.ErrConverterSetup, "audio", "setup", "walk at3 files", err)
	}
	res.Found += len(files)

	copied, failed := 0, 0
	for _, rel := range files {
		if err := extract.Cancelled(ctx); err != nil {
			return err
		}
		dst := filepath.Join(outRoot, "at3", rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			failed++
			log.Logf("[at3] %s: %v", rel, err)
			continue
		}
		if err := fileutil.CopyFileVerified(filepath.Join(audioRoot, rel), dst); err != nil {
			failed++
			log.Logf("[at3] %s: %v", rel, err)
			continue
		}
		copied++
	}
	res.Converted += copied
	res.Skipped += failed
	log.Logf("[at3] copied=%d failed=%d", copied, failed)
	return nil
}

func (c *Converter) extractBanks(ctx context.Context, audioRoot, outRoot string, log extract.LogFunc, res *extract.Result) error {
	banks, err := walkFiles(audioRoot, ".bnk")
	if err != nil {
		return extract.Wrap(extract.ErrConverterSetup, "audio", "setup", "walk bnk files", err)
	}
	for _, rel := range banks {
		if err := extract.Cancelled(ctx); err != nil {
			return err
		}
		found, extracted, wavWritten, failed := c.extractOneBank(audioRoot, outRoot, rel, log)
		res.Found += found
		res.Converted += extracted
		res.Skipped += failed
		log.Logf("[bnk] %s: extracted=%d wav=%d failed=%d", filepath.Base(rel), extracted, wavWritten, failed)
	}
	return nil
}

func (c *Converter) extractOneBank(audioRoot, outRoot, rel string, log extract.LogFunc) (found, extracted, wavWritten, failed int) {
	blob, err := os.ReadFile(filepath.Join(audioRoot, rel))
	if err != nil {
		log.Logf("[bnk] %s: read: %v", rel, err)
		return 0, 0, 0, 1
	}
	entries := parseBankEntries(blob)
	found = len(entries)

	bankName := fileutil.SafeName(extract.Stem(rel), "unnamed")
	bankOut := filepath.Join(outRoot, "bnk", filepath.Dir(rel), bankName)
	if err := os.MkdirAll(bankOut, 0o755); err != nil {
		log.Logf("[bnk] %s: %v", rel, err)
		return found, 0, 0, found
	}

	rows := [][]string{{"index", "name", "size", "offset", "magic", "out_file", "wav_file", "status"}}
	usedNames := make(map[string]bool)

	for _, ent := range entries {
		end := ent.Offset + ent.Size
		if ent.Offset < 0 || ent.Size <= 0 || end > int64(len(blob)) {
			rows = append(rows, []string{
				strconv.Itoa(ent.Index), ent.Name,
				strconv.FormatInt(ent.Size, 10), strconv.FormatInt(ent.Offset, 10),
				"", "", "", "invalid_range",
			})
			failed++
			continue
		}
		payload := blob[ent.Offset:end]

		outName := dedupeName(entryFileName(ent.Name), usedNames)
		outFile := filepath.Join(bankOut, outName)
		if err := fileutil.WriteFileAtomic(outFile, payload, 0o644); err != nil {
			rows = append(rows, []string{
				strconv.Itoa(ent.Index), ent.Name,
				strconv.FormatInt(ent.Size, 10), strconv.FormatInt(ent.Offset, 10),
				"", "", "", "write_failed",
			})
			failed++
			continue
		}
		extracted++

		magic := ""
		if len(payload) >= 4 {
			magic = asciiOnly(payload[:4])
		}
		wavName := ""
		status := "ok"
		if c.decodeVAG && IsVAG(payload) {
			sampleRate, pcm, err := decodeVAG(payload)
			if err == nil {
				wavPath := strings.TrimSuffix(outFile, filepath.Ext(outFile)) + ".wav"
				err = writeWAV(wavPath, sampleRate, pcm)
				if err == nil {
					wavName = filepath.Base(wavPath)
					wavWritten++
				}
			}
			if err != nil {
				status = "decode_failed"
				failed++
			}
		}

		rows = append(rows, []string{
			strconv.Itoa(ent.Index), ent.Name,
			strconv.FormatInt(ent.Size, 10), strconv.FormatInt(ent.Offset, 10),
			magic, outName, wavName, status,
		})
	}

	if err := writeIndexCSV(filepath.Join(bankOut, "_index.csv"), rows); err != nil {
		log.Logf("[bnk] %s: index: %v", rel, err)
		failed++
	}
	return found, extracted, wavWritten, failed
}

func entryFileName(name string) string {
	safe := fileutil.SafeName(filepath.Base(name), "unnamed")
	if !strings.Contains(safe, ".") {
		safe += ".bin"
	}
	return safe
}

func dedupeName(name string, used map[string]bool) string {
	stem := extract.Stem(name)
	suffix := filepath.Ext(name)
	out := name
	for n := 2; used[strings.ToLower(out)]; n++ {
		out = fmt.Sprintf("%s_%d%s", stem, n, suffix)
	}
	used[strings.ToLower(out)] = true
	return out
}

func writeIndexCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// walkFiles recursively collects files with the given extension, returned as
// sorted slash-normalized paths relative to root.
func walkFiles(root, ext string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ext) {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
