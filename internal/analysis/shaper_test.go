// SPDX-License-Identifier: MIT
package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepAttackDecay(t *testing.T) {
	// Rising: geometric approach at the attack rate.
	v := Step(0, 1, 0.5, 0.2)
	assert.InDelta(t, 0.5, v, 1e-12)
	v = Step(v, 1, 0.5, 0.2)
	assert.InDelta(t, 0.75, v, 1e-12)

	// Falling uses the decay rate.
	assert.InDelta(t, 0.8, Step(1, 0, 0.5, 0.2), 1e-12)

	// Equal values stay put.
	assert.Equal(t, 0.3, Step(0.3, 0.3, 0.5, 0.2))
}

func TestShaperCompress(t *testing.T) {
	s, err := NewShaper(1, ShaperConfig{AttackRate: 1, DecayRate: 1, LogBase: 100})
	require.NoError(t, err)

	assert.Equal(t, 0.0, s.Compress(0))
	assert.Equal(t, 0.0, s.Compress(-5), "negative input is clamped")
	assert.InDelta(t, 1.0, s.Compress(99), 1e-12)
	assert.InDelta(t, 2.0, s.Compress(9999), 1e-12, "no ceiling when disabled")

	capped, err := NewShaper(1, ShaperConfig{AttackRate: 1, DecayRate: 1, LogBase: 100, Ceiling: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0.5, capped.Compress(99))
	assert.InDelta(t, 0.150515, capped.Compress(1), 1e-6)
}

func TestShaperShape(t *testing.T) {
	s, err := NewShaper(2, ShaperConfig{AttackRate: 0.5, DecayRate: 0.2, LogBase: 100})
	require.NoError(t, err)

	// 99 compresses to exactly 1 with K=100.
	out := s.Shape(nil, []float64{99, 0})
	assert.InDeltaSlice(t, []float64{0.5, 0}, out, 1e-12)

	out = s.Shape(out, []float64{99, 0})
	assert.InDeltaSlice(t, []float64{0.75, 0}, out, 1e-12)

	out = s.Shape(out, []float64{0, 0})
	assert.InDeltaSlice(t, []float64{0.6, 0}, out, 1e-12)
	assert.InDeltaSlice(t, []float64{0.6, 0}, s.Previous(), 1e-12)

	s.Reset()
	assert.Equal(t, []float64{0, 0}, s.Previous())
	assert.Equal(t, 2, s.Bands())
}

func TestShaperShapeWrongLength(t *testing.T) {
	s, err := NewShaper(3, ShaperConfig{AttackRate: 1, DecayRate: 1, LogBase: 10})
	require.NoError(t, err)
	assert.Panics(t, func() { s.Shape(nil, []float64{1}) })
}

func TestNewShaperErrors(t *testing.T) {
	valid := ShaperConfig{AttackRate: 0.9, DecayRate: 0.15, LogBase: 100}
	tests := []struct {
		name  string
		bands int
		cfg   func(ShaperConfig) ShaperConfig
	}{
		{"zero bands", 0, func(c ShaperConfig) ShaperConfig { return c }},
		{"zero attack", 1, func(c ShaperConfig) ShaperConfig { c.AttackRate = 0; return c }},
		{"attack above one", 1, func(c ShaperConfig) ShaperConfig { c.AttackRate = 1.1; return c }},
		{"negative decay", 1, func(c ShaperConfig) ShaperConfig { c.DecayRate = -0.1; return c }},
		{"log base one", 1, func(c ShaperConfig) ShaperConfig { c.LogBase = 1; return c }},
		{"negative ceiling", 1, func(c ShaperConfig) ShaperConfig { c.Ceiling = -1; return c }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewShaper(tt.bands, tt.cfg(valid))
			assert.Error(t, err)
		})
	}
}
