package fontmetrics

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const metSignature = "METRICS1"

// glyphRE matches one metric row: codepoint, four box coordinates, optional
// trailing # comment.
var (
	glyphRE       = regexp.MustCompile(`^\s*(-?\d+)\s+(-?\d+)\s+(-?\d+)\s+(-?\d+)\s+(-?\d+)(?:\s*#\s*(.*))?$`)
	commentCharRE = regexp.MustCompile(`'(.+)'`)
)

// Glyph is one parsed metrics row.
type Glyph struct {
	Codepoint int    `json:"codepoint"`
	Char      string `json:"char"`
	X0        int    `json:"x0"`
	Y0        int    `json:"y0"`
	X1        int    `json:"x1"`
	Y1        int    `json:"y1"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Comment   string `json:"comment"`
}

// UnparsedLine records a line the glyph grammar did not match.
type UnparsedLine struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Metrics is the JSON form of one .met file.
type Metrics struct {
	File            string          `json:"file"`
	Signature       string          `json:"signature"`
	AtlasLine       string          `json:"atlas_line"`
	AtlasCandidates []string        `json:"atlas_candidates"`
	AtlasFound      string          `json:"atlas_found"`
	HeaderLine      string          `json:"header_line"`
	GlyphCount      int             `json:"glyph_count"`
	Glyphs          []*Glyph        `json:"glyphs"`
	UnparsedLines   []*UnparsedLine `json:"unparsed_lines"`
}

// parseMet parses the text METRICS1 format: signature line, atlas reference
// line, a header line, then one glyph row per line.
func parseMet(path string, text string) (*Metrics, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) < 3 {
		return nil, fmt.Errorf("MET file too short")
	}
	signature := strings.TrimSpace(lines[0])
	if signature != metSignature {
		return nil, fmt.Errorf("unexpected signature: %s", signature)
	}

	m := &Metrics{
		File:          filepath.Base(path),
		Signature:     signature,
		AtlasLine:     strings.TrimSpace(lines[1]),
		HeaderLine:    strings.TrimSpace(lines[2]),
		Glyphs:        []*Glyph{},
		UnparsedLines: []*UnparsedLine{},
	}

	for i, line := range lines[3:] {
		lineNo := i + 4
		s := strings.TrimRight(line, " \t")
		if s == "" {
			continue
		}
		match := glyphRE.FindStringSubmatch(s)
		if match == nil {
			m.UnparsedLines = append(m.UnparsedLines, &UnparsedLine{Line: lineNo, Text: s})
			continue
		}
		code, _ := strconv.Atoi(match[1])
		x0, _ := strconv.Atoi(match[2])
		y0, _ := strconv.Atoi(match[3])
		x1, _ := strconv.Atoi(match[4])
		y1, _ := strconv.Atoi(match[5])
		comment := strings.TrimSpace(match[6])

		char := ""
		if comment != "" {
			if cm := commentCharRE.FindStringSubmatch(comment); cm != nil {
				char = cm[1]
			}
		}
		if char == "" && code >= 0 && code <= 0x10FFFF {
			char = string(rune(code))
		}

		m.Glyphs = append(m.Glyphs, &Glyph{
			Codepoint: code,
			Char:      char,
			X0:        x0,
			Y0:        y0,
			X1:        x1,
			Y1:        y1,
			Width:     x1 - x0,
			Height:    y1 - y0,
			Comment:   comment,
		})
	}
	m.GlyphCount = len(m.Glyphs)

	m.AtlasCandidates = atlasCandidates(m.AtlasLine)
	dir := filepath.Dir(path)
	for _, name := range m.AtlasCandidates {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			m.AtlasFound = name
			break
		}
	}
	return m, nil
}

// atlasCandidates expands the atlas reference line into filenames to probe
// next to the metrics file, preferring a .png sibling.
func atlasCandidates(atlasLine string) []string {
	var candidates []string
	for _, tok := range strings.Fields(atlasLine) {
		base := filepath.Base(tok)
		if ext := filepath.Ext(base); ext != "" {
			candidates = append(candidates, strings.TrimSuffix(base, ext)+".png", base)
		} else {
			candidates = append(candidates, base+".png", base)
		}
	}
	return candidates
}
