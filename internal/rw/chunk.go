// Package rw decodes the subset of RenderWare binary streams found on PSP
// game discs: texture dictionaries with PSP-native rasters, model clumps and
// terrain worlds. Chunks are 12-byte little-endian headers (type, size,
// version) followed by the payload.
package rw

import (
	"encoding/binary"
)

// Chunk ids.
const (
	ChunkStruct        = 0x01
	ChunkString        = 0x02
	ChunkExtension     = 0x03
	ChunkTexture       = 0x06
	ChunkMaterial      = 0x07
	ChunkMaterialList  = 0x08
	ChunkAtomicSector  = 0x09
	ChunkPlaneSector   = 0x0A
	ChunkWorld         = 0x0B
	ChunkFrameList     = 0x0E
	ChunkGeometry      = 0x0F
	ChunkClump         = 0x10
	ChunkAtomic        = 0x14
	ChunkGeometryList  = 0x1A
	ChunkTextureDict   = 0x16
	ChunkTextureNative = 0x15

	// Plugin chunk ids seen inside Extension chunks.
	ChunkNodeName      = 0x0253F2FE
	ChunkBinMeshPLG    = 0x50E
	ChunkNativeDataPLG = 0x510
)

// recurseChunkTypes are container chunks that can wrap other chunks in these
// streams; the deep finder descends into them.
var recurseChunkTypes = map[uint32]bool{
	ChunkExtension:    true,
	ChunkAtomicSector: true,
	ChunkPlaneSector:  true,
	ChunkWorld:        true,
	ChunkClump:        true,
	0x24:              true,
	0x29:              true,
	0x2A:              true,
	0x2B:              true,
}

const maxChunkDepth = 32

// Chunk describes one chunk's location inside a stream.
type Chunk struct {
	Type         uint32
	Size         uint32
	Version      uint32
	HeaderStart  int
	PayloadStart int
	PayloadEnd   int
}

// IterChunks walks sibling chunks in blob[start:end]. Truncated trailing
// chunks are ignored.
func IterChunks(blob []byte, start, end int) []Chunk {
	var chunks []Chunk
	WalkChunks(blob, start, end, func(ch Chunk) bool {
		chunks = append(chunks, ch)
		return true
	})
	return chunks
}

// WalkChunks calls fn for each sibling chunk until fn returns false.
func WalkChunks(blob []byte, start, end int, fn func(Chunk) bool) {
	pos := start
	lim := end
	if lim > len(blob) {
		lim = len(blob)
	}
	for pos+12 <= lim {
		chunkType := binary.LittleEndian.Uint32(blob[pos:])
		chunkSize := binary.LittleEndian.Uint32(blob[pos+4:])
		chunkVer := binary.LittleEndian.Uint32(blob[pos+8:])
		payloadStart := pos + 12
		payloadEnd := payloadStart + int(chunkSize)
		if payloadEnd > lim || payloadEnd < payloadStart {
			return
		}
		if !fn(Chunk{
			Type:         chunkType,
			Size:         chunkSize,
			Version:      chunkVer,
			HeaderStart:  pos,
			PayloadStart: payloadStart,
			PayloadEnd:   payloadEnd,
		}) {
			return
		}
		pos = payloadEnd
	}
}

// FindChunks collects every chunk of targetType in blob[start:end], descending
// into known container chunks.
func FindChunks(blob []byte, start, end int, targetType uint32) []Chunk {
	var found []Chunk
	var walk func(s, e, depth int)
	walk = func(s, e, depth int) {
		if depth > maxChunkDepth {
			return
		}
		for _, ch := range IterChunks(blob, s, e) {
			if ch.Type == targetType {
				found = append(found, ch)
			}
			if recurseChunkTypes[ch.Type] {
				walk(ch.PayloadStart, ch.PayloadEnd, depth+1)
			}
		}
	}
	walk(start, end, 0)
	return found
}

// FirstChunk returns the first sibling chunk of the given type, or false.
func FirstChunk(blob []byte, start, end int, chunkType uint32) (Chunk, bool) {
	var (
		match Chunk
		ok    bool
	)
	WalkChunks(blob, start, end, func(ch Chunk) bool {
		if ch.Type == chunkType {
			match = ch
			ok = true
			return false
		}
		return true
	})
	return match, ok
}

// LibraryVersion unpacks the packed library id in a chunk version field into
// a comparable 0xVJJNN form (e.g. 0x34003 for 3.4.0.3).
func LibraryVersion(version uint32) uint32 {
	if version&0xFFFF0000 != 0 {
		return (version>>14&0x3FF00 + 0x30000) | (version >> 16 & 0x3F)
	}
	return version << 8
}
