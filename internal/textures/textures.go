// Package textures converts RenderWare texture dictionaries (.txd) into PNG
// files, one per contained raster.
package textures

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"psprip/internal/config"
	"psprip/internal/extract"
	"psprip/internal/fileutil"
	"psprip/internal/report"
	"psprip/internal/rw"
)

const (
	inputDirName  = "textures"
	outputDirName = "textures_png"
	flatDirName   = "_flat"
)

// Converter extracts TXD dictionaries to PNG.
type Converter struct {
	flatAliases bool
}

// New builds the textures converter from configuration.
func New(cfg *config.Config) *Converter {
	return &Converter{flatAliases: cfg.Textures.FlatAliases}
}

// Kind implements extract.Converter.
func (c *Converter) Kind() report.Kind {
	return report.KindTextures
}

// Run decodes every .txd under <input>/textures. Each dictionary gets its own
// output subdirectory; failed rasters leave an error sidecar in place of the
// image. Partial yield is success.
func (c *Converter) Run(ctx context.Context, req extract.Request) (extract.Result, error) {
	var res extract.Result

	txdRoot, ok := extract.SubDir(req.InputRoot, inputDirName)
	if !ok {
		return res, extract.Wrap(extract.ErrConverterSetup, "textures", "setup",
			fmt.Sprintf("no %s directory under %s", inputDirName, req.InputRoot), nil)
	}
	files, err := extract.ListFiles(txdRoot, ".txd")
	if err != nil {
		return res, extract.Wrap(extract.ErrConverterSetup, "textures", "setup", "list txd files", err)
	}

	outRoot := filepath.Join(req.OutputRoot, outputDirName)
	if err := os.MkdirAll(outRoot, 0o755); err != nil {
		return res, extract.Wrap(extract.ErrConverterSetup, "textures", "setup", "create output directory", err)
	}
	flatDir := ""
	if c.flatAliases {
		flatDir = filepath.Join(outRoot, flatDirName)
		if err := os.MkdirAll(flatDir, 0o755); err != nil {
			return res, extract.Wrap(extract.ErrConverterSetup, "textures", "setup", "create flat alias directory", err)
		}
	}

	res.Found = len(files)
	for _, file := range files {
		if err := extract.Cancelled(ctx); err != nil {
			return res, err
		}
		ok, fail := c.extractOne(file, outRoot, flatDir, req.Log)
		res.Converted += ok
		res.Skipped += fail
		req.Log.Logf("%s: ok=%d fail=%d", filepath.Base(file), ok, fail)
	}
	req.Log.Logf("textures done: txd_files=%d extracted=%d failed=%d", res.Found, res.Converted, res.Skipped)
	return res, nil
}

func (c *Converter) extractOne(txdPath, outRoot, flatDir string, log extract.LogFunc) (ok, fail int) {
	perOut := filepath.Join(outRoot, extract.Stem(txdPath))
	if err := os.MkdirAll(perOut, 0o755); err != nil {
		log.Logf("%s: create output dir: %v", filepath.Base(txdPath), err)
		return 0, 1
	}

	raw, err := os.ReadFile(txdPath)
	if err != nil {
		log.Logf("%s: read: %v", filepath.Base(txdPath), err)
		return 0, 1
	}
	entries, err := rw.ParseTextureDictionary(raw)
	if err != nil {
		log.Logf("%s: %v", filepath.Base(txdPath), err)
		return 0, 1
	}

	for _, entry := range entries {
		if entry.Err != nil {
			writeErrorSidecar(perOut, entry.Index, entry.Err)
			fail++
			continue
		}
		tex := entry.Texture
		name := fileutil.SafeName(tex.Name, fmt.Sprintf("tex_%03d", entry.Index))
		outFile := filepath.Join(perOut, fmt.Sprintf("%03d_%s.png", entry.Index, name))

		encoded, err := encodePNG(tex)
		if err != nil {
			writeErrorSidecar(perOut, entry.Index, err)
			fail++
			continue
		}
		if err := fileutil.WriteFileAtomic(outFile, encoded, 0o644); err != nil {
			writeErrorSidecar(perOut, entry.Index, err)
			fail++
			continue
		}
		ok++

		if flatDir != "" {
			flatFile := filepath.Join(flatDir, flatName(name))
			if _, err := os.Stat(flatFile); os.IsNotExist(err) {
				_ = fileutil.WriteFileAtomic(flatFile, encoded, 0o644)
			}
		}
	}
	return ok, fail
}

func encodePNG(tex *rw.Texture) ([]byte, error) {
	img := &image.NRGBA{
		Pix:    tex.RGBA,
		Stride: tex.Width * 4,
		Rect:   image.Rect(0, 0, tex.Width, tex.Height),
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// flatName maps a texture name to its alias file, matching what material
// files reference: the name's stem plus .png.
func flatName(name string) string {
	stem := extract.Stem(name)
	return fileutil.SafeName(stem, "unnamed") + ".png"
}

func writeErrorSidecar(dir string, index int, cause error) {
	path := filepath.Join(dir, fmt.Sprintf("%03d_ERROR.txt", index))
	_ = os.WriteFile(path, []byte(cause.Error()+"\n"), 0o644)
}
