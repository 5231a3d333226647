// SPDX-License-Identifier: MIT
/*
Package fft implements the radix-2 Cooley-Tukey discrete Fourier transform
used by the analysis loop.

The transform is iterative: the input is copied into bit-reversed order and
then combined in log2(N) butterfly passes,

	X[k]       = E[k] + w^k * O[k]
	X[k + N/2] = E[k] - w^k * O[k]    with w = exp(-2*pi*i/N)

A Plan holds the twiddle factors and bit-reversal table for one length and is
read-only once built, so it can be shared between goroutines. Transform and
Inverse are convenience wrappers that look the plan up in a package cache and
always return a freshly allocated result.
*/
package fft

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"barviz/pkg/bitint"
)

// ErrInvalidInput is returned when a transform is requested for a length
// that is not a positive power of two, or when buffers do not match a plan.
var ErrInvalidInput = errors.New("fft: invalid input")

// Plan holds the pre-computed tables for a transform of a fixed length.
type Plan struct {
	n        int
	twiddles []complex128 // exp(-2*pi*i*k/n) for k in [0, n/2)
	reversed []int        // bit-reversed index for every position
}

// plans caches one Plan per transform length.
var plans sync.Map // map[int]*Plan

// NewPlan builds the twiddle and bit-reversal tables for length n.
func NewPlan(n int) (*Plan, error) {
	if !bitint.IsPowerOfTwo(n) {
		return nil, fmt.Errorf("%w: length %d is not a power of two", ErrInvalidInput, n)
	}

	p := &Plan{
		n:        n,
		twiddles: make([]complex128, n/2),
		reversed: make([]int, n),
	}

	for k := range p.twiddles {
		angle := -2 * math.Pi * float64(k) / float64(n)
		p.twiddles[k] = complex(math.Cos(angle), math.Sin(angle))
	}

	stages := bitint.Log2(n)
	for i := range p.reversed {
		p.reversed[i] = bitint.ReverseBits(i, stages)
	}

	return p, nil
}

// Len returns the transform length of the plan.
func (p *Plan) Len() int {
	return p.n
}

// Execute writes the forward transform of src into dst. Both slices must
// have the plan's length. dst and src may be the same slice. Execute does
// not allocate.
func (p *Plan) Execute(dst, src []complex128) error {
	if len(dst) != p.n || len(src) != p.n {
		return fmt.Errorf("%w: plan length %d, got dst %d src %d", ErrInvalidInput, p.n, len(dst), len(src))
	}

	p.permute(dst, src)
	p.butterflies(dst)
	return nil
}

// permute places src into dst in bit-reversed order.
func (p *Plan) permute(dst, src []complex128) {
	if &dst[0] == &src[0] {
		for i, j := range p.reversed {
			if i < j {
				dst[i], dst[j] = dst[j], dst[i]
			}
		}
		return
	}
	for i, j := range p.reversed {
		dst[j] = src[i]
	}
}

func (p *Plan) butterflies(x []complex128) {
	n := p.n
	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		stride := n / size
		for start := 0; start < n; start += size {
			for k := range half {
				a := start + k
				b := a + half
				t := p.twiddles[k*stride] * x[b]
				x[b] = x[a] - t
				x[a] += t
			}
		}
	}
}

// cachedPlan returns the shared plan for length n, building it on first use.
func cachedPlan(n int) (*Plan, error) {
	if v, ok := plans.Load(n); ok {
		return v.(*Plan), nil
	}
	p, err := NewPlan(n)
	if err != nil {
		return nil, err
	}
	v, _ := plans.LoadOrStore(n, p)
	return v.(*Plan), nil
}

// Transform returns the discrete Fourier transform of x. The input is not
// modified. len(x) must be a power of two; callers with arbitrary block
// lengths should zero-pad with Pad first.
func Transform(x []complex128) ([]complex128, error) {
	p, err := cachedPlan(len(x))
	if err != nil {
		return nil, err
	}
	out := make([]complex128, len(x))
	if err := p.Execute(out, x); err != nil {
		return nil, err
	}
	return out, nil
}

// Inverse returns the unnormalised inverse transform of x, so that
// Inverse(Transform(x)) equals x scaled by len(x).
func Inverse(x []complex128) ([]complex128, error) {
	p, err := cachedPlan(len(x))
	if err != nil {
		return nil, err
	}

	// conj(F(conj(x))) is the inverse transform without the 1/N factor.
	out := make([]complex128, len(x))
	for i, v := range x {
		out[i] = cmplx.Conj(v)
	}
	if err := p.Execute(out, out); err != nil {
		return nil, err
	}
	for i, v := range out {
		out[i] = cmplx.Conj(v)
	}
	return out, nil
}

// Pad copies real samples into a complex buffer of length n, zero-filling
// the tail when x is shorter and keeping the first n samples when longer.
func Pad(x []float64, n int) []complex128 {
	out := make([]complex128, n)
	PadInto(out, x)
	return out
}

// PadInto is the allocation-free form of Pad; the length of dst is the
// target transform size.
func PadInto(dst []complex128, x []float64) {
	m := min(len(x), len(dst))
	for i := range m {
		dst[i] = complex(x[i], 0)
	}
	clear(dst[m:])
}

// Magnitudes stores |x[i]| into dst[i] for every bin that fits in both slices.
func Magnitudes(dst []float64, x []complex128) {
	for i := range min(len(dst), len(x)) {
		dst[i] = cmplx.Abs(x[i])
	}
}
