package rw

import (
	"bytes"
	"testing"
)

func TestUnswizzlePassthroughBelowBlockSize(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	// 2x2 at 16bpp is 4 bytes per row, narrower than one 16-byte block.
	if got := unswizzle(data, 2, 2, 16); !bytes.Equal(got, data) {
		t.Fatalf("expected passthrough, got %v", got)
	}
}

func TestUnswizzleRoundTrip(t *testing.T) {
	const (
		width  = 8
		height = 8
		depth  = 32
	)
	byteWidth := width * depth / 8

	linear := make([]byte, byteWidth*height)
	for i := range linear {
		linear[i] = byte(i)
	}

	// Build the swizzled layout the inverse way the decoder reads it.
	swizzled := make([]byte, len(linear))
	rowBlocks := byteWidth / 16
	for y := 0; y < height; y++ {
		for x := 0; x < byteWidth; x++ {
			blockIdx := x/16 + y/8*rowBlocks
			srcOff := blockIdx*128 + x%16 + y%8*16
			swizzled[srcOff] = linear[y*byteWidth+x]
		}
	}

	if got := unswizzle(swizzled, width, height, depth); !bytes.Equal(got, linear) {
		t.Fatalf("unswizzle mismatch")
	}
}

func TestDecodeNativeRaster32(t *testing.T) {
	pixels := []byte{
		1, 2, 3, 4, 5, 6, 7, 8,
		9, 10, 11, 12, 13, 14, 15, 16,
	}
	blob := rasterStruct("grid", 2, 2, 32, 0, pixels, nil)

	tex, err := decodeNativeRaster(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tex.Name != "grid" || tex.Width != 2 || tex.Height != 2 {
		t.Fatalf("unexpected raster: %+v", tex)
	}
	if !bytes.Equal(tex.RGBA, pixels) {
		t.Fatalf("32-bit rasters must copy through unchanged")
	}
}

func TestDecodeNativeRaster16Formats(t *testing.T) {
	cases := []struct {
		name  string
		flags uint32
		pixel uint16
		want  [4]byte
	}{
		{"565 white", 0, 0xFFFF, [4]byte{0xFF, 0xFF, 0xFF, 0xFF}},
		{"5551 opaque red", 1 << rasterPixelShift, 0x801F, [4]byte{0xFF, 0, 0, 0xFF}},
		{"5551 transparent", 1 << rasterPixelShift, 0x001F, [4]byte{0xFF, 0, 0, 0}},
		{"4444 half alpha", 2 << rasterPixelShift, 0x8F00, [4]byte{0, 0, 0xFF, 0x88}},
	}
	for _, tc := range cases {
		blob := rasterStruct("px", 1, 1, 16, tc.flags, leU16(tc.pixel), nil)
		tex, err := decodeNativeRaster(blob)
		if err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		got := [4]byte{tex.RGBA[0], tex.RGBA[1], tex.RGBA[2], tex.RGBA[3]}
		if got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDecodeNativeRasterPal4(t *testing.T) {
	palette := make([]byte, 16*4)
	copy(palette[0:], []byte{10, 11, 12, 13})
	copy(palette[4:], []byte{20, 21, 22, 23})
	// Low nibble is the first pixel.
	blob := rasterStruct("pal", 2, 1, 4, 0, []byte{0x10}, palette)

	tex, err := decodeNativeRaster(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []byte{10, 11, 12, 13, 20, 21, 22, 23}
	if !bytes.Equal(tex.RGBA, want) {
		t.Fatalf("got %v, want %v", tex.RGBA, want)
	}
}

func TestDecodeNativeRasterRejectsBadHeader(t *testing.T) {
	if _, err := decodeNativeRaster(rasterStruct("big", 9000, 2, 32, 0, nil, nil)); err == nil {
		t.Fatalf("expected dimension error")
	}
	if _, err := decodeNativeRaster(rasterStruct("odd", 2, 2, 3, 0, nil, nil)); err == nil {
		t.Fatalf("expected depth error")
	}
	if _, err := decodeNativeRaster(rasterStruct("short", 2, 2, 32, 0, make([]byte, 4), nil)); err == nil {
		t.Fatalf("expected data size error")
	}
}
