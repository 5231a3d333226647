// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrFormat is returned for PCM layouts DecodePCM cannot read.
var ErrFormat = errors.New("unsupported PCM format")

// Format describes interleaved little-endian PCM as delivered by a
// push-style capture callback.
type Format struct {
	Channels      int
	BitsPerSample int  // 16, 24 or 32
	Float         bool // IEEE float32 samples; requires 32 bits
	Silent        bool // The host flagged the packet as silence
}

// FrameSize returns the number of bytes per interleaved frame.
func (f Format) FrameSize() int {
	return f.Channels * f.BitsPerSample / 8
}

func (f Format) validate() error {
	if f.Channels <= 0 {
		return fmt.Errorf("%w: %d channels", ErrFormat, f.Channels)
	}
	switch f.BitsPerSample {
	case 16, 24:
		if f.Float {
			return fmt.Errorf("%w: %d-bit float", ErrFormat, f.BitsPerSample)
		}
	case 32:
	default:
		return fmt.Errorf("%w: %d bits per sample", ErrFormat, f.BitsPerSample)
	}
	return nil
}

// DecodePCM converts raw interleaved frames into first-channel samples in
// [-1, 1]. Trailing bytes that do not form a whole frame are ignored. Silent
// packets decode to zeros of the same length.
func DecodePCM(raw []byte, f Format) ([]float64, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	out := make([]float64, len(raw)/f.FrameSize())
	return DecodePCMInto(out, raw, f)
}

// DecodePCMInto decodes into dst and returns dst resliced to the frame count,
// or to len(dst) when the packet holds more frames than dst.
func DecodePCMInto(dst []float64, raw []byte, f Format) ([]float64, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	frameSize := f.FrameSize()
	frames := min(len(raw)/frameSize, len(dst))
	dst = dst[:frames]

	if f.Silent {
		clear(dst)
		return dst, nil
	}

	for i := range dst {
		b := raw[i*frameSize:]
		switch {
		case f.Float:
			dst[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		case f.BitsPerSample == 16:
			dst[i] = float64(int16(binary.LittleEndian.Uint16(b))) / (1 << 15)
		case f.BitsPerSample == 24:
			v := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
			dst[i] = float64(v) / (1 << 23)
		default:
			dst[i] = float64(int32(binary.LittleEndian.Uint32(b))) / (1 << 31)
		}
	}
	return dst, nil
}
