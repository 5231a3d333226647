// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"barviz/internal/config"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	wavRate   = 8000
	wavBlock  = 256
	wavFrames = 300
)

// writeTestWAV writes a 16-bit stereo ramp whose left channel is i*64 and
// whose right channel is constant.
func writeTestWAV(t *testing.T) (string, []int) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ramp.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	left := make([]int, wavFrames)
	data := make([]int, 0, wavFrames*2)
	for i := range wavFrames {
		left[i] = i * 64
		data = append(data, left[i], 1000)
	}

	enc := wav.NewEncoder(f, wavRate, 16, 2, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: wavRate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path, left
}

func TestWAVSourceReadsFirstChannel(t *testing.T) {
	path, left := writeTestWAV(t)
	s := NewWAVSource(path, wavBlock, false)
	require.NoError(t, s.Initialize())
	defer s.Close()

	assert.Equal(t, float64(wavRate), s.SampleRate())
	assert.Equal(t, 2, s.channels)
	assert.Equal(t, 16, s.bitDepth)

	require.True(t, s.step())
	block := s.Exchange().TakeLatest()
	require.Len(t, block, wavBlock)
	for i, v := range block {
		if want := float64(left[i]) / 32768; v != want {
			t.Fatalf("sample %d = %f, want %f", i, v, want)
		}
	}

	// Short final block is zero padded.
	require.True(t, s.step())
	block = s.Exchange().TakeLatest()
	assert.Equal(t, float64(left[wavFrames-1])/32768, block[wavFrames-wavBlock-1])
	assert.Equal(t, 0.0, block[wavBlock-1])

	assert.False(t, s.step(), "end of file")
	assert.True(t, s.Exchange().Closed())
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed at end of file")
	}
}

func TestWAVSourceLoops(t *testing.T) {
	path, left := writeTestWAV(t)
	s := NewWAVSource(path, wavBlock, true)
	require.NoError(t, s.Initialize())
	defer s.Close()

	require.True(t, s.step())
	require.True(t, s.step())
	require.True(t, s.step(), "rewinds instead of ending")

	block := s.Exchange().TakeLatest()
	assert.Equal(t, float64(left[1])/32768, block[1])
	assert.False(t, s.Exchange().Closed())
}

func TestWAVSourceCapture(t *testing.T) {
	path, _ := writeTestWAV(t)
	s := NewWAVSource(path, wavBlock, true)
	require.NoError(t, s.Initialize())
	defer s.Close()
	s.interval = time.Millisecond

	require.NoError(t, s.StartCapture())
	require.NoError(t, s.StartCapture())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.True(t, s.Exchange().WaitForNewData(ctx))

	require.NoError(t, s.StopCapture())
	require.NoError(t, s.StopCapture())
	assert.False(t, s.Exchange().WaitForNewData(ctx))

	require.NoError(t, s.StartCapture())
	s.Exchange().TakeLatest()
	require.True(t, s.Exchange().WaitForNewData(ctx), "restarted source publishes again")
}

func TestWAVSourceErrors(t *testing.T) {
	dir := t.TempDir()

	assert.Error(t, NewWAVSource(filepath.Join(dir, "missing.wav"), wavBlock, false).Initialize())

	garbage := filepath.Join(dir, "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not RIFF data"), 0o644))
	assert.ErrorContains(t, NewWAVSource(garbage, wavBlock, false).Initialize(), "invalid WAV file")

	assert.Error(t, NewWAVSource(garbage, 0, false).Initialize())
	assert.Error(t, NewWAVSource(garbage, wavBlock, false).StartCapture())
}

func TestNormalizeInt(t *testing.T) {
	assert.Equal(t, 0.0, normalizeInt(128, 8))
	assert.Equal(t, -1.0, normalizeInt(0, 8))
	assert.Equal(t, -1.0, normalizeInt(-32768, 16))
	assert.Equal(t, 0.5, normalizeInt(1<<22, 24))
	assert.Equal(t, -1.0, normalizeInt(math.MinInt32, 32))
	assert.Equal(t, 0.0, normalizeInt(12, 12))
}

func TestToneSource(t *testing.T) {
	s := NewToneSource(testSampleRate, 1000, testFrameSize)
	require.NoError(t, s.Initialize())
	defer s.Close()

	require.True(t, s.step())
	block := s.Exchange().TakeLatest()
	require.Len(t, block, testFrameSize)
	assert.Equal(t, 0.0, block[0])
	assert.InDelta(t, math.Sin(2*math.Pi*1000*5/testSampleRate), block[5], 1e-9)

	// Phase continues across blocks.
	require.True(t, s.step())
	next := s.Exchange().TakeLatest()
	assert.InDelta(t, math.Sin(2*math.Pi*1000*testFrameSize/testSampleRate), next[0], 1e-9)

	s.interval = time.Millisecond
	require.NoError(t, s.StartCapture())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.True(t, s.Exchange().WaitForNewData(ctx))
	require.NoError(t, s.StopCapture())
	assert.True(t, s.Exchange().Closed())
}

func TestToneSourceErrors(t *testing.T) {
	assert.Error(t, NewToneSource(testSampleRate, 0, testFrameSize).Initialize())
	assert.Error(t, NewToneSource(testSampleRate, testSampleRate, testFrameSize).Initialize())
	assert.Error(t, NewToneSource(0, 440, testFrameSize).Initialize())
	assert.Error(t, NewToneSource(testSampleRate, 440, testFrameSize).StartCapture())
}

func TestNewSource(t *testing.T) {
	cfg := config.NewConfig().Audio

	src, err := NewSource(cfg)
	require.NoError(t, err)
	assert.IsType(t, &Engine{}, src)

	cfg.Source = config.SourceWAV
	src, err = NewSource(cfg)
	require.NoError(t, err)
	assert.IsType(t, &WAVSource{}, src)

	cfg.Source = config.SourceTone
	src, err = NewSource(cfg)
	require.NoError(t, err)
	assert.IsType(t, &ToneSource{}, src)

	cfg.Source = "cassette"
	_, err = NewSource(cfg)
	assert.Error(t, err)
}

func TestBlockInterval(t *testing.T) {
	assert.Equal(t, 32*time.Millisecond, blockInterval(256, 8000))
	assert.Equal(t, time.Millisecond, blockInterval(0, 8000))
}
