package rw

import (
	"encoding/binary"
	"math"
)

// testVersion is the packed RW 3.6.0.3 library stamp.
const testVersion = 0x1803FFFF

func mkChunk(chunkType uint32, parts ...[]byte) []byte {
	var body []byte
	for _, part := range parts {
		body = append(body, part...)
	}
	out := make([]byte, 12+len(body))
	binary.LittleEndian.PutUint32(out, chunkType)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(body)))
	binary.LittleEndian.PutUint32(out[8:], testVersion)
	copy(out[12:], body)
	return out
}

func leU16(values ...uint16) []byte {
	out := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[i*2:], v)
	}
	return out
}

func leU32(values ...uint32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

func leF32(values ...float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func nameBytes(name string, size int) []byte {
	out := make([]byte, size)
	copy(out, name)
	return out
}

// rasterStruct builds a texture-native struct payload for an unswizzled
// raster.
func rasterStruct(name string, width, height, depth int, flags uint32, pixels, palette []byte) []byte {
	out := make([]byte, 0, rasterHeaderSize+len(pixels)+len(palette))
	out = append(out, leU32(uint32(width), uint32(height), uint32(depth), 1, flags)...)
	out = append(out, nameBytes(name, rasterNameLen)...)
	out = append(out, leU32(uint32(len(pixels)))...)
	out = append(out, pixels...)
	out = append(out, palette...)
	return out
}
