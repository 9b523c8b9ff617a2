package rw

import (
	"encoding/binary"
	"fmt"
)

// PSP-native raster struct payload, little endian:
//
//	0x00 u32 width
//	0x04 u32 height
//	0x08 u32 depth in bits per pixel (4, 8, 16, 32)
//	0x0C u32 mip level count
//	0x10 u32 flags (bit 0: swizzled; bits 8-9: 16-bit pixel format)
//	0x14 [32]byte nul-padded texture name
//	0x34 u32 byte size of mip level 0
//	0x38 mip level 0 pixel data, then the CLUT for 4/8-bit rasters
//	     (16 or 256 RGBA8888 entries)
const (
	rasterHeaderSize  = 0x38
	rasterSwizzled    = 0x1
	rasterPixelShift  = 8
	rasterPixelMask   = 0x3
	rasterPixel565    = 0
	rasterPixel5551   = 1
	rasterPixel4444   = 2
	rasterNameLen     = 32
	rasterNameOffset  = 0x14
	rasterDataSizeOff = 0x34
)

// Texture is one decoded raster: straight RGBA, top-left origin.
type Texture struct {
	Name   string
	Width  int
	Height int
	RGBA   []byte
}

// decodeNativeRaster decodes one texture-native struct payload.
func decodeNativeRaster(blob []byte) (*Texture, error) {
	if len(blob) < rasterHeaderSize {
		return nil, fmt.Errorf("raster struct too short: %d bytes", len(blob))
	}
	width := int(binary.LittleEndian.Uint32(blob[0x00:]))
	height := int(binary.LittleEndian.Uint32(blob[0x04:]))
	depth := int(binary.LittleEndian.Uint32(blob[0x08:]))
	flags := binary.LittleEndian.Uint32(blob[0x10:])
	name := cString(blob[rasterNameOffset : rasterNameOffset+rasterNameLen])
	dataSize := int(binary.LittleEndian.Uint32(blob[rasterDataSizeOff:]))

	if width <= 0 || height <= 0 || width > 4096 || height > 4096 {
		return nil, fmt.Errorf("raster %q: implausible dimensions %dx%d", name, width, height)
	}
	switch depth {
	case 4, 8, 16, 32:
	default:
		return nil, fmt.Errorf("raster %q: unsupported depth %d", name, depth)
	}
	need := width * height * depth / 8
	if dataSize < need {
		return nil, fmt.Errorf("raster %q: data size %d below %d", name, dataSize, need)
	}
	if rasterHeaderSize+dataSize > len(blob) {
		return nil, fmt.Errorf("raster %q: truncated pixel data", name)
	}
	pixels := blob[rasterHeaderSize : rasterHeaderSize+dataSize]
	if flags&rasterSwizzled != 0 {
		pixels = unswizzle(pixels, width, height, depth)
	}

	var palette []byte
	if depth <= 8 {
		entries := 16
		if depth == 8 {
			entries = 256
		}
		palStart := rasterHeaderSize + dataSize
		palEnd := palStart + entries*4
		if palEnd > len(blob) {
			return nil, fmt.Errorf("raster %q: truncated palette", name)
		}
		palette = blob[palStart:palEnd]
	}

	rgba := make([]byte, width*height*4)
	switch depth {
	case 4:
		decodePal4(rgba, pixels, palette, width, height)
	case 8:
		decodePal8(rgba, pixels, palette, width, height)
	case 16:
		pixelFormat := int(flags >> rasterPixelShift & rasterPixelMask)
		decode16(rgba, pixels, pixelFormat, width, height)
	case 32:
		copy(rgba, pixels[:len(rgba)])
	}

	return &Texture{Name: name, Width: width, Height: height, RGBA: rgba}, nil
}

// unswizzle reorders 16x8-byte GE blocks into linear rows. Rasters narrower
// than one block, and any source overrun, are returned untouched.
func unswizzle(data []byte, width, height, depth int) []byte {
	byteWidth := width * depth >> 3
	if byteWidth <= 0 || height <= 0 {
		return data
	}
	if byteWidth < 16 || height < 8 {
		return data
	}
	rowBlocks := byteWidth / 16
	if rowBlocks <= 0 {
		return data
	}

	const blockSize = 16 * 8
	res := make([]byte, byteWidth*height)
	for y := 0; y < height; y++ {
		blockY := y / 8
		yInBlock := y % 8
		for x := 0; x < byteWidth; x++ {
			blockX := x / 16
			xInBlock := x % 16
			blockIdx := blockX + blockY*rowBlocks
			srcOff := blockIdx*blockSize + xInBlock + yInBlock*16
			if srcOff >= len(data) {
				return data
			}
			res[y*byteWidth+x] = data[srcOff]
		}
	}
	return res
}

func decodePal4(rgba, pixels, palette []byte, width, height int) {
	for i := 0; i < width*height; i++ {
		b := pixels[i/2]
		idx := int(b & 0x0F)
		if i%2 == 1 {
			idx = int(b >> 4)
		}
		copy(rgba[i*4:], palette[idx*4:idx*4+4])
	}
}

func decodePal8(rgba, pixels, palette []byte, width, height int) {
	for i := 0; i < width*height; i++ {
		idx := int(pixels[i])
		copy(rgba[i*4:], palette[idx*4:idx*4+4])
	}
}

// decode16 expands the GE 16-bit formats; components sit in the low bits of
// each little-endian word (red lowest).
func decode16(rgba, pixels []byte, pixelFormat, width, height int) {
	for i := 0; i < width*height; i++ {
		v := binary.LittleEndian.Uint16(pixels[i*2:])
		var r, g, b, a byte
		switch pixelFormat {
		case rasterPixel5551:
			r = expand5(v & 0x1F)
			g = expand5(v >> 5 & 0x1F)
			b = expand5(v >> 10 & 0x1F)
			a = 0
			if v&0x8000 != 0 {
				a = 0xFF
			}
		case rasterPixel4444:
			r = expand4(v & 0xF)
			g = expand4(v >> 4 & 0xF)
			b = expand4(v >> 8 & 0xF)
			a = expand4(v >> 12 & 0xF)
		default: // rasterPixel565
			r = expand5(v & 0x1F)
			g = expand6(v >> 5 & 0x3F)
			b = expand5(v >> 11 & 0x1F)
			a = 0xFF
		}
		rgba[i*4+0] = r
		rgba[i*4+1] = g
		rgba[i*4+2] = b
		rgba[i*4+3] = a
	}
}

func expand4(v uint16) byte { return byte(v<<4 | v) }
func expand5(v uint16) byte { return byte(v<<3 | v>>2) }
func expand6(v uint16) byte { return byte(v<<2 | v>>4) }

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
