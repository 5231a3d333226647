// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
)

// ShaperConfig holds the compression and easing constants.
type ShaperConfig struct {
	AttackRate float64 // Easing rate while rising, (0, 1].
	DecayRate  float64 // Easing rate while falling, (0, 1].
	LogBase    float64 // Compression constant K, > 1.
	Ceiling    float64 // Upper clamp on compressed values, 0 disables.
}

// Shaper compresses raw band values and eases them toward their targets with
// a fast attack and slow decay. It owns the previous shaped vector and is not
// safe for concurrent use.
type Shaper struct {
	cfg     ShaperConfig
	invLogK float64
	prev    []float64
}

// NewShaper returns a Shaper for the given band count with all previous
// values at zero.
func NewShaper(bands int, cfg ShaperConfig) (*Shaper, error) {
	if bands < 1 {
		return nil, fmt.Errorf("band count must be positive, got %d", bands)
	}
	if cfg.AttackRate <= 0 || cfg.AttackRate > 1 {
		return nil, fmt.Errorf("attack rate must be in (0, 1], got %f", cfg.AttackRate)
	}
	if cfg.DecayRate <= 0 || cfg.DecayRate > 1 {
		return nil, fmt.Errorf("decay rate must be in (0, 1], got %f", cfg.DecayRate)
	}
	if cfg.LogBase <= 1 {
		return nil, fmt.Errorf("log base must be greater than 1, got %f", cfg.LogBase)
	}
	if cfg.Ceiling < 0 {
		return nil, fmt.Errorf("ceiling must not be negative, got %f", cfg.Ceiling)
	}

	return &Shaper{
		cfg:     cfg,
		invLogK: 1 / math.Log(cfg.LogBase),
		prev:    make([]float64, bands),
	}, nil
}

// Compress maps a raw magnitude to log(raw+1)/log(K). Negative input is
// treated as 0.
func (s *Shaper) Compress(raw float64) float64 {
	v := math.Log1p(max(raw, 0)) * s.invLogK
	if s.cfg.Ceiling > 0 {
		v = min(v, s.cfg.Ceiling)
	}
	return v
}

// Step moves prev toward target by attack when rising and by decay otherwise.
func Step(prev, target, attack, decay float64) float64 {
	if target > prev {
		return prev + (target-prev)*attack
	}
	return prev + (target-prev)*decay
}

// Shape compresses raw, eases the stored previous values toward it and
// writes the result into dst, which is allocated when too short. raw must
// hold Bands() values.
func (s *Shaper) Shape(dst, raw []float64) []float64 {
	if len(raw) != len(s.prev) {
		panic(fmt.Sprintf("analysis: shaper has %d bands, got %d values", len(s.prev), len(raw)))
	}
	if len(dst) < len(s.prev) {
		dst = make([]float64, len(s.prev))
	}
	dst = dst[:len(s.prev)]

	for i, r := range raw {
		s.prev[i] = Step(s.prev[i], s.Compress(r), s.cfg.AttackRate, s.cfg.DecayRate)
		dst[i] = s.prev[i]
	}
	return dst
}

// Bands returns the number of bands shaped.
func (s *Shaper) Bands() int { return len(s.prev) }

// Previous returns a copy of the last shaped vector.
func (s *Shaper) Previous() []float64 {
	return append([]float64(nil), s.prev...)
}

// Reset sets every previous value back to zero.
func (s *Shaper) Reset() {
	clear(s.prev)
}
