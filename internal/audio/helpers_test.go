// SPDX-License-Identifier: MIT
package audio

import (
	"math"

	"barviz/internal/config"
)

const (
	testSampleRate = 48000
	testFrameSize  = 256
	testChannels   = 2
)

var (
	testBuffer  = makeBuffer(testFrameSize*testChannels, 0.5)
	quietBuffer = makeBuffer(testFrameSize*testChannels, 0.001)
	loudBuffer  = makeBuffer(testFrameSize*testChannels, 0.9)

	lowThreshold  = int32(0.0001 * math.MaxInt32)
	highThreshold = int32(0.95 * math.MaxInt32)
)

// makeBuffer returns an interleaved int32 sine buffer peaking at amplitude
// of full scale. Both channels carry the same sample.
func makeBuffer(size int, amplitude float64) []int32 {
	buf := make([]int32, size)
	for i := range buf {
		frame := i / testChannels
		v := amplitude * math.Sin(2*math.Pi*float64(frame)/32)
		buf[i] = int32(v * math.MaxInt32)
	}
	return buf
}

func testAudioConfig() config.AudioConfig {
	cfg := config.NewConfig().Audio
	cfg.SampleRate = testSampleRate
	cfg.FramesPerBuffer = testFrameSize
	cfg.InputChannels = testChannels
	cfg.GateEnabled = false
	return cfg
}
