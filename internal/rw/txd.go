package rw

import (
	"encoding/binary"
	"fmt"
)

// DictionaryEntry is one texture-native slot in a dictionary. Decode failures
// stay attached to their slot so callers can report per-texture errors while
// keeping the rest of the dictionary.
type DictionaryEntry struct {
	Index   int
	Texture *Texture
	Err     error
}

// ParseTextureDictionary decodes every texture-native chunk in a TXD stream.
// The stream must start with a Texture Dictionary chunk.
func ParseTextureDictionary(blob []byte) ([]DictionaryEntry, error) {
	if len(blob) < 12 {
		return nil, fmt.Errorf("stream too short: %d bytes", len(blob))
	}
	rootType := binary.LittleEndian.Uint32(blob)
	rootSize := binary.LittleEndian.Uint32(blob[4:])
	if rootType != ChunkTextureDict {
		return nil, fmt.Errorf("not a texture dictionary: root chunk type 0x%X", rootType)
	}
	rootStart := 12
	rootEnd := rootStart + int(rootSize)

	var entries []DictionaryEntry
	index := 0
	for _, ch := range IterChunks(blob, rootStart, rootEnd) {
		if ch.Type != ChunkTextureNative {
			continue
		}
		entry := DictionaryEntry{Index: index}
		index++

		inner, ok := FirstChunk(blob, ch.PayloadStart, ch.PayloadEnd, ChunkStruct)
		if !ok || inner.HeaderStart != ch.PayloadStart {
			entry.Err = fmt.Errorf("texture native %d: missing leading struct chunk", entry.Index)
			entries = append(entries, entry)
			continue
		}
		tex, err := decodeNativeRaster(blob[inner.PayloadStart:inner.PayloadEnd])
		if err != nil {
			entry.Err = fmt.Errorf("texture native %d: %w", entry.Index, err)
			entries = append(entries, entry)
			continue
		}
		entry.Texture = tex
		entries = append(entries, entry)
	}
	return entries, nil
}
