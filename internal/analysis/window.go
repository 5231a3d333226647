// SPDX-License-Identifier: MIT
package analysis

import "gonum.org/v1/gonum/dsp/window"

// hannCoefficients returns the n-point Hann window. gonum's window functions
// scale their argument in place, so the slice is seeded with ones first.
func hannCoefficients(n int) []float64 {
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	if n > 1 {
		window.Hann(coeffs)
	}
	return coeffs
}

// windowCache holds the transform-size table and the table for the most
// recent shorter block length, so lenient mode never grows without bound.
type windowCache struct {
	full  []float64
	other []float64
}

func newWindowCache(size int) windowCache {
	return windowCache{full: hannCoefficients(size)}
}

func (c *windowCache) get(n int) []float64 {
	if n == len(c.full) {
		return c.full
	}
	if len(c.other) != n {
		c.other = hannCoefficients(n)
	}
	return c.other
}
