package audio

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Bank layout: a u32 entry count followed by 0x48-byte entries. Each entry is
// a 0x40-byte nul-padded name, a u32 payload size and a u32 payload offset
// into the bank file.
const (
	bnkEntryNameSize = 0x40
	bnkEntrySize     = 0x48
)

// BankEntry is one embedded file in a .bnk bank.
type BankEntry struct {
	Index  int
	Name   string
	Size   int64
	Offset int64
}

// parseBankEntries reads the entry table. A table that does not fit the blob
// yields no entries, matching how banks with corrupt headers are treated.
func parseBankEntries(blob []byte) []BankEntry {
	if len(blob) < 4 {
		return nil
	}
	count := int(binary.LittleEndian.Uint32(blob))
	tableEnd := 4 + count*bnkEntrySize
	if count < 0 || tableEnd < 4 || tableEnd > len(blob) {
		return nil
	}

	entries := make([]BankEntry, 0, count)
	for i := 0; i < count; i++ {
		off := 4 + i*bnkEntrySize
		rawName := blob[off : off+bnkEntryNameSize]
		if idx := strings.IndexByte(string(rawName), 0); idx >= 0 {
			rawName = rawName[:idx]
		}
		name := strings.TrimSpace(asciiOnly(rawName))
		if name == "" {
			name = fmt.Sprintf("entry_%04d.bin", i)
		}
		entries = append(entries, BankEntry{
			Index:  i,
			Name:   name,
			Size:   int64(binary.LittleEndian.Uint32(blob[off+0x40:])),
			Offset: int64(binary.LittleEndian.Uint32(blob[off+0x44:])),
		})
	}
	return entries
}

func asciiOnly(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if c < 0x80 {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
