// SPDX-License-Identifier: MIT
// Package synth generates deterministic test signals: fixed blocks for unit
// tests and a phase-continuous oscillator for the synthetic capture source.
package synth

import "math"

// Sine returns size samples of a sine wave at frequency Hz with the given
// peak amplitude, starting at phase zero.
func Sine(size int, sampleRate, frequency, amplitude float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*frequency*t) * amplitude
	}
	return buffer
}

// Chord returns a 440Hz fundamental with its second and third harmonics,
// peaking below full scale.
func Chord(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		buffer[i] = (math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2) * 0.9
	}
	return buffer
}

// PeakIndex returns the index of the largest value in values[start:end+1].
// The range is clamped to the slice; an empty slice returns 0.
func PeakIndex(values []float64, start, end int) int {
	if len(values) == 0 {
		return 0
	}

	start = max(start, 0)
	end = min(end, len(values)-1)
	if start > end {
		return start
	}

	peak := start
	for i := start + 1; i <= end; i++ {
		if values[i] > values[peak] {
			peak = i
		}
	}
	return peak
}

// Oscillator produces a continuous sine wave across successive blocks.
// It is not safe for concurrent use.
type Oscillator struct {
	phase     float64
	step      float64
	amplitude float64
}

// NewOscillator creates an oscillator at frequency Hz.
func NewOscillator(sampleRate, frequency, amplitude float64) *Oscillator {
	return &Oscillator{
		step:      2 * math.Pi * frequency / sampleRate,
		amplitude: amplitude,
	}
}

// Fill writes the next len(dst) samples into dst.
func (o *Oscillator) Fill(dst []float64) {
	for i := range dst {
		dst[i] = math.Sin(o.phase) * o.amplitude
		o.phase += o.step
		if o.phase >= 2*math.Pi {
			o.phase -= 2 * math.Pi
		}
	}
}
