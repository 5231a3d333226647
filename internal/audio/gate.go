// SPDX-License-Identifier: MIT
package audio

import "math"

func (e *Engine) EnableGate() {
	e.gateEnabled.Store(true)
}

func (e *Engine) DisableGate() {
	e.gateEnabled.Store(false)
}

// GateEnabled reports whether the noise gate is active.
func (e *Engine) GateEnabled() bool {
	return e.gateEnabled.Load()
}

// SetGateThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (e *Engine) SetGateThreshold(threshold float64) {
	threshold = min(max(threshold, 0.0), 1.0)
	e.gateThreshold.Store(int32(threshold * float64(math.MaxInt32)))
}

// GateThreshold returns the current noise gate threshold as a float64.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (e *Engine) GateThreshold() float64 {
	return float64(e.gateThreshold.Load()) / float64(math.MaxInt32)
}

// gateOpen reports whether the buffer should pass the gate.
func (e *Engine) gateOpen(buffer []int32) bool {
	return !e.gateEnabled.Load() || peakAmplitude(buffer) > e.gateThreshold.Load()
}

// peakAmplitude returns the largest absolute sample without branching in
// the loop body. math.MinInt32 has no positive counterpart and reads as 0.
func peakAmplitude(buffer []int32) int32 {
	var maxAmplitude int32
	for _, sample := range buffer {
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask
		amplitude &^= amplitude >> 31
		diff := amplitude - maxAmplitude
		maxAmplitude += diff &^ (diff >> 31)
	}
	return maxAmplitude
}
