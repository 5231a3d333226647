// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGateToggle(t *testing.T) {
	var e Engine
	assert.False(t, e.GateEnabled(), "zero engine starts ungated")

	steps := []struct {
		apply func()
		want  bool
	}{
		{e.EnableGate, true},
		{e.EnableGate, true},
		{e.DisableGate, false},
		{e.DisableGate, false},
		{e.EnableGate, true},
	}
	for i, s := range steps {
		s.apply()
		assert.Equal(t, s.want, e.GateEnabled(), "step %d", i)
	}
}

func TestGateThresholdClampsToFullScale(t *testing.T) {
	var e Engine

	for in, want := range map[float64]float64{
		-0.1:  0,
		0:     0,
		0.001: 0.001,
		0.25:  0.25,
		0.999: 0.999,
		1:     1,
		1.5:   1,
	} {
		e.SetGateThreshold(in)
		assert.InDelta(t, want, e.GateThreshold(), 1e-6, "threshold %v", in)

		// Stored as a fraction of the int32 sample range the callback compares against.
		assert.InDelta(t, want*math.MaxInt32, float64(e.gateThreshold.Load()), 1)
	}
}

func TestGateOpen(t *testing.T) {
	tests := []struct {
		name      string
		buffer    []int32
		enabled   bool
		threshold float64
		open      bool
	}{
		{"ungated quiet passes", quietBuffer, false, 0.1, true},
		{"ungated loud passes", loudBuffer, false, 0.1, true},
		{"quiet above a tiny threshold", quietBuffer, true, 0.0001, true},
		{"quiet below threshold", quietBuffer, true, 0.1, false},
		{"loud above threshold", loudBuffer, true, 0.1, true},
		{"loud below a near full-scale threshold", loudBuffer, true, 0.999, false},
		{"silence never opens an enabled gate", make([]int32, 8), true, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Engine
			e.gateEnabled.Store(tt.enabled)
			e.SetGateThreshold(tt.threshold)

			assert.Equal(t, tt.open, e.gateOpen(tt.buffer),
				"peak %d, threshold %d", peakAmplitude(tt.buffer), e.gateThreshold.Load())
		})
	}
}

func TestPeakAmplitude(t *testing.T) {
	tests := []struct {
		name   string
		buffer []int32
		want   int32
	}{
		{"empty", nil, 0},
		{"positive", []int32{1, 5, 3}, 5},
		{"negative wins", []int32{4, -9, 2}, 9},
		{"max", []int32{math.MaxInt32, -1}, math.MaxInt32},
		{"min int reads as zero", []int32{math.MinInt32, 7}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, peakAmplitude(tt.buffer))
		})
	}

	// The shared fixtures peak at their nominal fraction of full scale.
	assert.InDelta(t, 0.9*math.MaxInt32, float64(peakAmplitude(loudBuffer)), 0.01*math.MaxInt32)
	assert.InDelta(t, 0.001*math.MaxInt32, float64(peakAmplitude(quietBuffer)), 0.0001*math.MaxInt32)
}

func TestPeakAmplitudeNoAllocs(t *testing.T) {
	allocs := testing.AllocsPerRun(100, func() {
		_ = peakAmplitude(testBuffer)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in noise gate hot path, got %.1f", allocs)
	}
}

func BenchmarkGateOpen(b *testing.B) {
	for _, bm := range []struct {
		name      string
		buffer    []int32
		threshold int32
		enabled   bool
	}{
		{"ungated", testBuffer, lowThreshold, false},
		{"quiet/low threshold", quietBuffer, lowThreshold, true},
		{"loud/high threshold", loudBuffer, highThreshold, true},
	} {
		b.Run(bm.name, func(b *testing.B) {
			var e Engine
			e.gateEnabled.Store(bm.enabled)
			e.gateThreshold.Store(bm.threshold)

			b.ReportAllocs()
			for b.Loop() {
				_ = e.gateOpen(bm.buffer)
			}
		})
	}
}
