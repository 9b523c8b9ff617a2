package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// VAGp streams carry PSX ADPCM: a 0x40-byte header with big-endian data size
// at 0x0C and sample rate at 0x10, then 16-byte blocks of one predictor/shift
// byte, one flag byte and 14 nibble-packed sample bytes.
var vagMagic = []byte("VAGp")

var adpcmCoefs = [5][2]int32{
	{0, 0},
	{60, 0},
	{115, -52},
	{98, -55},
	{122, -60},
}

const (
	vagHeaderSize     = 0x40
	vagDefaultRate    = 22050
	vagBlockSize      = 16
	vagEndFlagMask    = 0x01 | 0x04
	vagDataSizeOffset = 0x0C
	vagRateOffset     = 0x10
)

var errNotVAG = errors.New("not a VAGp stream")

// IsVAG reports whether the payload starts with the VAGp magic.
func IsVAG(blob []byte) bool {
	return len(blob) >= 4 && bytes.Equal(blob[:4], vagMagic)
}

// decodeVAG converts a VAGp stream to 16-bit signed PCM, returning the sample
// rate alongside the samples. Decoding stops at the first block flagged as
// the stream end.
func decodeVAG(blob []byte) (sampleRate int, pcm []int16, err error) {
	if len(blob) < vagHeaderSize || !IsVAG(blob) {
		return 0, nil, errNotVAG
	}
	dataSize := int(binary.BigEndian.Uint32(blob[vagDataSizeOffset:]))
	sampleRate = int(binary.BigEndian.Uint32(blob[vagRateOffset:]))
	if sampleRate <= 0 {
		sampleRate = vagDefaultRate
	}

	avail := len(blob) - vagHeaderSize
	if dataSize > avail {
		dataSize = avail
	}
	if dataSize < 0 {
		dataSize = 0
	}
	adpcm := blob[vagHeaderSize : vagHeaderSize+dataSize]
	adpcm = adpcm[:len(adpcm)-len(adpcm)%vagBlockSize]

	var hist1, hist2 int32
	for i := 0; i < len(adpcm); i += vagBlockSize {
		block := adpcm[i : i+vagBlockSize]
		flags := block[1]
		pcm, hist1, hist2 = decodeBlock(block, pcm, hist1, hist2)
		if flags&vagEndFlagMask != 0 {
			break
		}
	}
	return sampleRate, pcm, nil
}

func decodeBlock(block []byte, pcm []int16, hist1, hist2 int32) ([]int16, int32, int32) {
	predictor := block[0] >> 4 & 0x0F
	shift := uint(block[0] & 0x0F)
	var coef1, coef2 int32
	if int(predictor) < len(adpcmCoefs) {
		coef1, coef2 = adpcmCoefs[predictor][0], adpcmCoefs[predictor][1]
	}

	for _, b := range block[2:] {
		for _, nibble := range [2]int32{int32(b & 0x0F), int32(b >> 4 & 0x0F)} {
			if nibble >= 8 {
				nibble -= 16
			}
			sample := nibble << 12 >> shift
			sample += (hist1*coef1 + hist2*coef2 + 32) >> 6
			if sample > 32767 {
				sample = 32767
			} else if sample < -32768 {
				sample = -32768
			}
			pcm = append(pcm, int16(sample))
			hist2 = hist1
			hist1 = sample
		}
	}
	return pcm, hist1, hist2
}
