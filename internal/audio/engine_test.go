// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt32ToFloat(t *testing.T) {
	in := []int32{math.MaxInt32, 7, math.MinInt32, 7, 0, 7, math.MaxInt32 / 2, 7}
	dst := make([]float64, 5)

	Int32ToFloat(dst, in, 2)

	assert.InDelta(t, 1.0, dst[0], 1e-9)
	assert.Equal(t, -1.0, dst[1])
	assert.Equal(t, 0.0, dst[2])
	assert.InDelta(t, 0.5, dst[3], 1e-9)
	assert.Equal(t, 0.0, dst[4], "missing frames are zero")
}

func TestProcessBufferPublishesFirstChannel(t *testing.T) {
	e := NewEngine(testAudioConfig())

	e.processInputStream(loudBuffer)

	require.True(t, e.Exchange().HasNewData())
	block := e.Exchange().TakeLatest()
	require.Len(t, block, testFrameSize)
	for i, v := range block {
		want := float64(loudBuffer[i*testChannels]) / (1 << 31)
		if v != want {
			t.Fatalf("sample %d = %f, want %f", i, v, want)
		}
	}
}

func TestProcessBufferGatedPublishesSilence(t *testing.T) {
	e := NewEngine(testAudioConfig())
	e.EnableGate()
	e.SetGateThreshold(0.1)

	e.processBuffer(loudBuffer)
	assert.NotZero(t, e.Exchange().TakeLatest()[8])

	e.processBuffer(quietBuffer)
	require.True(t, e.Exchange().HasNewData(), "gated blocks are still published")
	for _, v := range e.Exchange().TakeLatest() {
		if v != 0 {
			t.Fatal("gated block should be silent")
		}
	}
}

func TestNewEngineAppliesGateConfig(t *testing.T) {
	cfg := testAudioConfig()
	cfg.GateEnabled = true
	cfg.GateThreshold = 0.25

	e := NewEngine(cfg)
	assert.True(t, e.GateEnabled())
	assert.InDelta(t, 0.25, e.GateThreshold(), 1e-6)
	assert.Equal(t, float64(testSampleRate), e.SampleRate())
}

// TestProcessBufferHotPath verifies the capture callback does not allocate.
func TestProcessBufferHotPath(t *testing.T) {
	e := NewEngine(testAudioConfig())
	e.EnableGate()
	e.SetGateThreshold(0.01)

	allocs := testing.AllocsPerRun(100, func() {
		e.processBuffer(testBuffer)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in capture callback, got %.1f", allocs)
	}
}

// BenchmarkHotPath benchmarks the gate, conversion and publish of one callback.
func BenchmarkHotPath(b *testing.B) {
	e := NewEngine(testAudioConfig())
	e.EnableGate()
	e.SetGateThreshold(0.01)

	b.ReportAllocs()

	for b.Loop() {
		e.processBuffer(testBuffer)
	}
}
