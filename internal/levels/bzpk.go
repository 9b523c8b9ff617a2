package levels

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// BZPK package layout: a 16-byte header ("BZPK", u32 declared size, u32
// unknown, u32 object count) followed by entries of <u32 size><u32 id>
// <payload>, with optional zero-word padding between siblings. Entry payloads
// either nest further entries (which must consume the payload exactly) or
// hold a scalar decoded heuristically.
var bzpkMagic = []byte("BZPK")

const (
	bzpkHeaderSize = 0x10

	// Child ids whose string payloads identify an object.
	idClass = 0x20000000
	idName  = 0x80000000
)

type entry struct {
	offset       int
	size         int
	id           uint32
	payloadStart int
	payloadEnd   int
	children     []*entry
}

// Node is the JSON form of one entry.
type Node struct {
	Offset   int            `json:"offset"`
	Size     int            `json:"size"`
	IDU32    uint32         `json:"id_u32"`
	IDI32    int32          `json:"id_i32"`
	IDHex    string         `json:"id_hex"`
	Children []*Node        `json:"children,omitempty"`
	Value    map[string]any `json:"value,omitempty"`
}

// Object is one top-level entry with its inferred identity and references.
type Object struct {
	Index   int      `json:"index"`
	Offset  int      `json:"offset"`
	Size    int      `json:"size"`
	Class   string   `json:"class,omitempty"`
	Name    string   `json:"name,omitempty"`
	RWSRefs []string `json:"rws_refs"`
	Node    *Node    `json:"node"`
}

// FileSummary describes one parsed package.
type FileSummary struct {
	File              string   `json:"file"`
	DeclaredSize      uint32   `json:"declared_size"`
	ActualSize        int      `json:"actual_size"`
	HeaderUnknown     uint32   `json:"header_unknown"`
	HeaderObjectCount uint32   `json:"header_object_count"`
	ParsedObjectCount int      `json:"parsed_object_count"`
	ParseFinalOffset  int      `json:"parse_final_offset"`
	UniqueRWSRefs     []string `json:"unique_rws_refs"`
	StringCount       int      `json:"string_count"`
}

// Document is the per-file JSON output.
type Document struct {
	Summary FileSummary `json:"summary"`
	Objects []*Object   `json:"objects"`
}

// parsePackage decodes one BZPK blob into its JSON document.
func parsePackage(name string, blob []byte) (*Document, error) {
	if len(blob) < bzpkHeaderSize {
		return nil, fmt.Errorf("file too small: %d bytes", len(blob))
	}
	if string(blob[:4]) != string(bzpkMagic) {
		return nil, fmt.Errorf("missing BZPK header")
	}
	declaredSize := binary.LittleEndian.Uint32(blob[4:])
	headerUnknown := binary.LittleEndian.Uint32(blob[8:])
	objectCount := binary.LittleEndian.Uint32(blob[12:])

	top, finalPos, err := parseEntries(blob, bzpkHeaderSize, len(blob))
	if err != nil {
		return nil, err
	}
	for _, ent := range top {
		ent.children = tryParseChildren(blob, ent)
	}

	doc := &Document{
		Summary: FileSummary{
			File:              name,
			DeclaredSize:      declaredSize,
			ActualSize:        len(blob),
			HeaderUnknown:     headerUnknown,
			HeaderObjectCount: objectCount,
			ParsedObjectCount: len(top),
			ParseFinalOffset:  finalPos,
		},
	}

	var allStrings, allRWS []string
	for i, ent := range top {
		node := entryToNode(blob, ent)
		class, objName := inferObjectInfo(node)
		var strs, refs []string
		collectStrings(node, &strs, &refs)
		allStrings = append(allStrings, strs...)
		allRWS = append(allRWS, refs...)
		doc.Objects = append(doc.Objects, &Object{
			Index:   i,
			Offset:  node.Offset,
			Size:    node.Size,
			Class:   class,
			Name:    objName,
			RWSRefs: sortedUnique(refs),
			Node:    node,
		})
	}
	doc.Summary.UniqueRWSRefs = sortedUnique(allRWS)
	doc.Summary.StringCount = len(allStrings)
	return doc, nil
}

func skipZeroWords(blob []byte, pos, end int) int {
	for pos+4 <= end && binary.LittleEndian.Uint32(blob[pos:]) == 0 {
		pos += 4
	}
	return pos
}

func parseEntries(blob []byte, start, end int) ([]*entry, int, error) {
	var entries []*entry
	pos := start
	for pos+8 <= end {
		pos = skipZeroWords(blob, pos, end)
		if pos+8 > end {
			break
		}
		size := int(binary.LittleEndian.Uint32(blob[pos:]))
		id := binary.LittleEndian.Uint32(blob[pos+4:])
		if size < 8 || pos+size > end {
			return nil, 0, fmt.Errorf("invalid entry at 0x%X: size=%d", pos, size)
		}
		entries = append(entries, &entry{
			offset:       pos,
			size:         size,
			id:           id,
			payloadStart: pos + 8,
			payloadEnd:   pos + size,
		})
		pos += size
	}
	pos = skipZeroWords(blob, pos, end)
	return entries, pos, nil
}

// tryParseChildren treats the payload as nested entries only when the nested
// parse consumes the payload exactly; otherwise the payload stays scalar.
func tryParseChildren(blob []byte, ent *entry) []*entry {
	children, finalPos, err := parseEntries(blob, ent.payloadStart, ent.payloadEnd)
	if err != nil || len(children) == 0 || finalPos != ent.payloadEnd {
		return nil
	}
	for _, child := range children {
		child.children = tryParseChildren(blob, child)
	}
	return children
}

func entryToNode(blob []byte, ent *entry) *Node {
	node := &Node{
		Offset: ent.offset,
		Size:   ent.size,
		IDU32:  ent.id,
		IDI32:  int32(ent.id),
		IDHex:  fmt.Sprintf("0x%08X", ent.id),
	}
	if ent.children != nil {
		for _, child := range ent.children {
			node.Children = append(node.Children, entryToNode(blob, child))
		}
		return node
	}
	node.Value = decodeScalarPayload(blob[ent.payloadStart:ent.payloadEnd])
	return node
}

// stripPadding removes trailing nul and 0xBF padding bytes seen in package
// strings.
func stripPadding(data []byte) []byte {
	end := len(data)
	for end > 0 && (data[end-1] == 0x00 || data[end-1] == 0xBF) {
		end--
	}
	return data[:end]
}

func decodeScalarPayload(data []byte) map[string]any {
	out := map[string]any{"raw_hex": hex.EncodeToString(data)}

	trimmed := stripPadding(data)
	if len(trimmed) > 0 && isPrintableASCII(trimmed) {
		out["kind"] = "string"
		out["value"] = string(trimmed)
		return out
	}

	if len(data) == 4 {
		u := binary.LittleEndian.Uint32(data)
		f := math.Float32frombits(u)
		out["kind"] = "u32_f32"
		out["u32"] = u
		out["i32"] = int32(u)
		out["f32"] = jsonFloat(float64(f))
		return out
	}

	if len(data) == 8 || len(data) == 12 || len(data) == 16 {
		vals := make([]any, 0, len(data)/4)
		for i := 0; i < len(data); i += 4 {
			f := math.Float32frombits(binary.LittleEndian.Uint32(data[i:]))
			vals = append(vals, jsonFloat(float64(f)))
		}
		out["kind"] = fmt.Sprintf("f32x%d", len(vals))
		out["f32"] = vals
		return out
	}

	if len(data)%4 == 0 && len(data) <= 64 {
		vals := make([]uint32, 0, len(data)/4)
		for i := 0; i < len(data); i += 4 {
			vals = append(vals, binary.LittleEndian.Uint32(data[i:]))
		}
		out["kind"] = fmt.Sprintf("u32x%d", len(vals))
		out["u32"] = vals
		return out
	}

	out["kind"] = "blob"
	out["size"] = len(data)
	return out
}

// jsonFloat rounds finite values to six decimals; non-finite values become
// strings since JSON cannot carry them.
func jsonFloat(f float64) any {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return fmt.Sprintf("%v", f)
	}
	return math.Round(f*1e6) / 1e6
}

func isPrintableASCII(data []byte) bool {
	for _, b := range data {
		if b < 32 || b >= 127 {
			return false
		}
	}
	return true
}

func collectStrings(node *Node, strs, rwsRefs *[]string) {
	if node.Value != nil && node.Value["kind"] == "string" {
		if s, ok := node.Value["value"].(string); ok {
			*strs = append(*strs, s)
			if strings.HasSuffix(strings.ToLower(s), ".rws") {
				*rwsRefs = append(*rwsRefs, s)
			}
		}
	}
	for _, child := range node.Children {
		collectStrings(child, strs, rwsRefs)
	}
}

func inferObjectInfo(node *Node) (class, name string) {
	for _, child := range node.Children {
		if child.Value == nil || child.Value["kind"] != "string" {
			continue
		}
		text, ok := child.Value["value"].(string)
		if !ok {
			continue
		}
		switch {
		case child.IDU32 == idClass && class == "":
			class = text
		case child.IDU32 == idName && name == "":
			name = text
		}
	}
	return class, name
}

func sortedUnique(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
