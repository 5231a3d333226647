// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	"barviz/pkg/bitint"

	"gonum.org/v1/gonum/floats"
)

// Scale selects how the analysis range is partitioned into bands.
type Scale int

const (
	// ScaleLog spaces band edges evenly in log frequency.
	ScaleLog Scale = iota
	// ScaleLinear spaces band edges evenly in Hz.
	ScaleLinear
	// ScaleLogGrowth is ScaleLog with each band GrowthFactor times wider
	// (in log frequency) than the one below it.
	ScaleLogGrowth
)

func (s Scale) String() string {
	switch s {
	case ScaleLog:
		return "log"
	case ScaleLinear:
		return "linear"
	case ScaleLogGrowth:
		return "log-growth"
	default:
		return fmt.Sprintf("Scale(%d)", int(s))
	}
}

// ParseScale converts a name produced by Scale.String back to a Scale. It
// returns ScaleLog and an error if the name is unknown.
func ParseScale(name string) (Scale, error) {
	switch name {
	case "log":
		return ScaleLog, nil
	case "linear":
		return ScaleLinear, nil
	case "log-growth":
		return ScaleLogGrowth, nil
	default:
		return ScaleLog, fmt.Errorf("unknown band scale: '%s'", name)
	}
}

// BandConfig describes the band layout over a magnitude spectrum.
type BandConfig struct {
	Bands          int
	TransformSize  int
	SampleRate     float64
	LowerFrequency float64
	UpperFrequency float64
	Scale          Scale
	GrowthFactor   float64 // Only used by ScaleLogGrowth.
}

// BinRange is an inclusive range of spectrum bins. A range with End < Start
// is empty.
type BinRange struct {
	Start int
	End   int
}

// Len returns the number of bins in the range.
func (r BinRange) Len() int {
	return max(r.End-r.Start+1, 0)
}

// Empty reports whether the range holds no bins.
func (r BinRange) Empty() bool {
	return r.End < r.Start
}

// BandMapper averages magnitude bins into a fixed number of bands. All ranges
// are computed up front; Map does not allocate.
type BandMapper struct {
	cfg      BandConfig
	binWidth float64
	edges    []float64
	ranges   []BinRange
}

// NewBandMapper validates cfg and precomputes the band edges and bin ranges.
//
// The start bin of band i is ceil(edge_i/binWidth). Every band but the last
// ends one bin before the next band starts, so a bin that falls exactly on a
// shared edge belongs to the upper band and no bin is ever counted twice. The
// last band ends at floor(upper/binWidth). Ranges are clamped to
// [0, TransformSize/2-1].
func NewBandMapper(cfg BandConfig) (*BandMapper, error) {
	switch {
	case cfg.Bands < 1:
		return nil, fmt.Errorf("band count must be positive, got %d", cfg.Bands)
	case !bitint.IsPowerOfTwo(cfg.TransformSize) || cfg.TransformSize < 2:
		return nil, fmt.Errorf("transform size must be a power of 2 >= 2, got %d", cfg.TransformSize)
	case cfg.SampleRate <= 0:
		return nil, fmt.Errorf("sample rate must be positive, got %f", cfg.SampleRate)
	case cfg.LowerFrequency <= 0 || cfg.UpperFrequency <= cfg.LowerFrequency:
		return nil, fmt.Errorf("invalid frequency range [%f, %f]", cfg.LowerFrequency, cfg.UpperFrequency)
	case cfg.Scale == ScaleLogGrowth && cfg.GrowthFactor <= 0:
		return nil, fmt.Errorf("growth factor must be positive, got %f", cfg.GrowthFactor)
	}

	edges, err := bandEdges(cfg)
	if err != nil {
		return nil, err
	}

	m := &BandMapper{
		cfg:      cfg,
		binWidth: cfg.SampleRate / float64(cfg.TransformSize),
		edges:    edges,
		ranges:   make([]BinRange, cfg.Bands),
	}

	maxBin := cfg.TransformSize/2 - 1
	for i := range m.ranges {
		start := int(math.Ceil(edges[i] / m.binWidth))
		var end int
		if i == cfg.Bands-1 {
			end = int(math.Floor(edges[i+1] / m.binWidth))
		} else {
			end = int(math.Ceil(edges[i+1]/m.binWidth)) - 1
		}
		m.ranges[i] = BinRange{Start: max(start, 0), End: min(end, maxBin)}
	}

	return m, nil
}

// bandEdges returns the Bands+1 edge frequencies of cfg, low to high.
func bandEdges(cfg BandConfig) ([]float64, error) {
	edges := make([]float64, cfg.Bands+1)
	lo, hi := cfg.LowerFrequency, cfg.UpperFrequency

	switch cfg.Scale {
	case ScaleLinear:
		floats.Span(edges, lo, hi)
	case ScaleLog:
		floats.LogSpan(edges, lo, hi)
	case ScaleLogGrowth:
		// Band i spans GrowthFactor^i units of log frequency.
		widths := make([]float64, cfg.Bands)
		for i := range widths {
			widths[i] = math.Pow(cfg.GrowthFactor, float64(i))
		}
		cum := floats.CumSum(make([]float64, cfg.Bands), widths)
		total := cum[len(cum)-1]
		logLo, logSpan := math.Log(lo), math.Log(hi)-math.Log(lo)
		for i, c := range cum {
			edges[i+1] = math.Exp(logLo + logSpan*c/total)
		}
	default:
		return nil, fmt.Errorf("unknown band scale %v", cfg.Scale)
	}

	// Pin the ends so rounding in the span never moves the analysis range.
	edges[0], edges[cfg.Bands] = lo, hi
	return edges, nil
}

// Bands returns the number of output bands.
func (m *BandMapper) Bands() int { return len(m.ranges) }

// BinWidth returns the width of one spectrum bin in Hz.
func (m *BandMapper) BinWidth() float64 { return m.binWidth }

// Edges returns a copy of the band edge frequencies (Bands()+1 values).
func (m *BandMapper) Edges() []float64 {
	return append([]float64(nil), m.edges...)
}

// Ranges returns a copy of the inclusive bin range of each band.
func (m *BandMapper) Ranges() []BinRange {
	return append([]BinRange(nil), m.ranges...)
}

// BandForFrequency returns the index of the band whose bin range holds the
// bin nearest to freq, or -1 if that bin is not mapped.
func (m *BandMapper) BandForFrequency(freq float64) int {
	bin := int(math.Round(freq / m.binWidth))
	for i, r := range m.ranges {
		if bin >= r.Start && bin <= r.End {
			return i
		}
	}
	return -1
}

// Map writes the mean magnitude of each band into dst and returns it. dst is
// allocated when shorter than Bands(). Bins beyond len(magnitudes) are
// excluded, and a band with no bins is 0.
func (m *BandMapper) Map(dst, magnitudes []float64) []float64 {
	if len(dst) < len(m.ranges) {
		dst = make([]float64, len(m.ranges))
	}
	dst = dst[:len(m.ranges)]

	last := len(magnitudes) - 1
	for i, r := range m.ranges {
		end := min(r.End, last)
		if end < r.Start {
			dst[i] = 0
			continue
		}
		dst[i] = floats.Sum(magnitudes[r.Start:end+1]) / float64(end-r.Start+1)
	}
	return dst
}
