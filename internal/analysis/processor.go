// SPDX-License-Identifier: MIT
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"barviz/internal/config"
	"barviz/internal/fft"
	applog "barviz/internal/log"
	"barviz/internal/transport"
	"barviz/pkg/bitint"
)

// BlockSource is the consumer side of the capture buffer exchange.
type BlockSource interface {
	// WaitForNewData blocks until a block has been published since the last
	// TakeLatest. It returns false when woken by shutdown or ctx.
	WaitForNewData(ctx context.Context) bool
	// TakeLatest returns a copy of the most recent block and clears the
	// new-data flag.
	TakeLatest() []float64
}

// ResultProvider is the renderer-facing side of the processor.
type ResultProvider interface {
	GetFrequencyWindowMagnitudes() []float64
	IsReady() bool
	WaitUntilReady(ctx context.Context) bool
	Bands() int
}

// State is the lifecycle state of a Processor.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config holds the analysis parameters of a Processor.
type Config struct {
	SampleRate      float64
	Bands           int
	TransformSize   int
	LowerFrequency  float64
	UpperFrequency  float64
	AttackRate      float64
	DecayRate       float64
	LogBase         float64
	Scale           Scale
	GrowthFactor    float64
	StrictBlockSize bool    // Skip blocks whose length does not round up to TransformSize.
	Ceiling         float64 // Upper clamp on shaped values, 0 disables.
}

// DefaultConfig returns the built-in analysis parameters at 48kHz.
func DefaultConfig() Config {
	return Config{
		SampleRate:      config.DefaultSampleRate,
		Bands:           config.DefaultNumBands,
		TransformSize:   config.DefaultTransformSize,
		LowerFrequency:  config.DefaultLowerFrequency,
		UpperFrequency:  config.DefaultUpperFrequency,
		AttackRate:      config.DefaultAttackRate,
		DecayRate:       config.DefaultDecayRate,
		LogBase:         config.DefaultLogBase,
		Scale:           ScaleLog,
		GrowthFactor:    config.DefaultGrowthFactor,
		StrictBlockSize: true,
		Ceiling:         config.DefaultCeiling,
	}
}

// FromConfig builds processor parameters from the analysis section of the
// application configuration and the capture sample rate.
func FromConfig(c config.AnalysisConfig, sampleRate float64) (Config, error) {
	scale, err := ParseScale(c.Scale)
	if err != nil {
		return Config{}, err
	}
	return Config{
		SampleRate:      sampleRate,
		Bands:           c.NumBands,
		TransformSize:   c.TransformSize,
		LowerFrequency:  c.LowerFrequency,
		UpperFrequency:  c.UpperFrequency,
		AttackRate:      c.AttackRate,
		DecayRate:       c.DecayRate,
		LogBase:         c.LogBase,
		Scale:           scale,
		GrowthFactor:    c.GrowthFactor,
		StrictBlockSize: c.StrictBlockSize,
		Ceiling:         c.Ceiling,
	}, nil
}

// Stats counts blocks by outcome since the processor was created.
type Stats struct {
	Processed uint64 // Blocks that produced a band vector.
	Skipped   uint64 // Blocks rejected by the size gate.
	Failed    uint64 // Iterations that panicked or errored.
}

// Processor pulls sample blocks from a BlockSource, runs them through the
// window, transform, band mapper and shaper, and publishes the band vector
// to its result mailbox and sinks. Exactly one goroutine runs the loop; all
// workspace buffers are owned by it.
type Processor struct {
	cfg    Config
	src    BlockSource
	sinks  []transport.Transport
	plan   *fft.Plan
	mapper *BandMapper
	shaper *Shaper
	result *result

	// Loop workspace.
	windows  windowCache
	edges    []float64 // Shared with sinks through Frame; the mapper keeps its own.
	frame    []float64
	input    []complex128
	spectrum []complex128
	mags     []float64
	raw      []float64
	shaped   []float64
	seq      uint64

	mu     sync.Mutex // Guards state, cancel and done.
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	processed atomic.Uint64
	skipped   atomic.Uint64
	failed    atomic.Uint64
}

var _ ResultProvider = (*Processor)(nil)

var errEmptyBlock = errors.New("empty sample block")

// NewProcessor validates cfg and allocates every buffer the loop needs.
func NewProcessor(cfg Config, src BlockSource, sinks ...transport.Transport) (*Processor, error) {
	if src == nil {
		return nil, fmt.Errorf("analysis: block source cannot be nil")
	}

	plan, err := fft.NewPlan(cfg.TransformSize)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	mapper, err := NewBandMapper(BandConfig{
		Bands:          cfg.Bands,
		TransformSize:  cfg.TransformSize,
		SampleRate:     cfg.SampleRate,
		LowerFrequency: cfg.LowerFrequency,
		UpperFrequency: cfg.UpperFrequency,
		Scale:          cfg.Scale,
		GrowthFactor:   cfg.GrowthFactor,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	shaper, err := NewShaper(cfg.Bands, ShaperConfig{
		AttackRate: cfg.AttackRate,
		DecayRate:  cfg.DecayRate,
		LogBase:    cfg.LogBase,
		Ceiling:    cfg.Ceiling,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	n := cfg.TransformSize

	applog.WithFields(applog.Fields{
		"bands":      cfg.Bands,
		"size":       n,
		"sampleRate": cfg.SampleRate,
		"scale":      cfg.Scale,
		"range":      fmt.Sprintf("%.0f-%.0fHz", cfg.LowerFrequency, cfg.UpperFrequency),
	}).Info("Analysis: Initializing processor")

	return &Processor{
		cfg:      cfg,
		src:      src,
		sinks:    sinks,
		plan:     plan,
		mapper:   mapper,
		shaper:   shaper,
		result:   newResult(cfg.Bands),
		windows:  newWindowCache(n),
		edges:    mapper.Edges(),
		frame:    make([]float64, n),
		input:    make([]complex128, n),
		spectrum: make([]complex128, n),
		mags:     make([]float64, n),
		raw:      make([]float64, cfg.Bands),
		shaped:   make([]float64, cfg.Bands),
	}, nil
}

// Start spawns the analysis goroutine. Starting a running processor is a
// no-op; a stopped processor starts again with its shaping state intact.
func (p *Processor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateRunning || p.state == StateStopping {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.state = StateRunning
	p.result.reopen()

	go p.run(ctx, p.done)
	applog.Debugf("Analysis: Processor started")
}

// Stop cancels the loop and waits for the goroutine to exit. It is safe to
// call any number of times, including concurrently.
func (p *Processor) Stop() {
	p.mu.Lock()
	switch p.state {
	case StateRunning:
	case StateStopping:
		done := p.done
		p.mu.Unlock()
		<-done
		return
	default:
		p.mu.Unlock()
		return
	}

	p.state = StateStopping
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	p.result.close()
	<-done

	p.mu.Lock()
	p.state = StateStopped
	p.cancel = nil
	p.mu.Unlock()
	applog.Debugf("Analysis: Processor stopped (%+v)", p.Stats())
}

// StartProcessing starts the analysis loop.
func (p *Processor) StartProcessing() { p.Start() }

// StopProcessing stops the analysis loop and joins it.
func (p *Processor) StopProcessing() { p.Stop() }

// State returns the current lifecycle state.
func (p *Processor) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Processor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for p.src.WaitForNewData(ctx) {
		if ctx.Err() != nil {
			return
		}
		if err := p.process(p.src.TakeLatest()); err != nil {
			p.failed.Add(1)
			applog.Errorf("Analysis: Skipping block: %v", err)
		}
	}

	if ctx.Err() == nil {
		p.sourceClosed(done)
	}
}

// sourceClosed moves a loop that ended because its source shut down to
// Stopped and wakes blocked readers. A concurrent Stop owns the transition.
func (p *Processor) sourceClosed(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateRunning || p.done != done {
		return
	}
	p.result.close()
	p.state = StateStopped
	p.cancel()
	p.cancel = nil
	applog.Debugf("Analysis: Source closed, processor stopped (%+v)", p.Stats())
}

// process runs one block through the pipeline. Panics are converted to
// errors so that a bad block never ends the loop.
func (p *Processor) process(block []float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered from panic: %v", r)
		}
	}()

	n := p.cfg.TransformSize
	if len(block) == 0 {
		return errEmptyBlock
	}
	if p.cfg.StrictBlockSize && bitint.NextPowerOfTwo(len(block)) != n {
		p.skipped.Add(1)
		return nil
	}
	if len(block) > n {
		block = block[len(block)-n:]
	}

	w := p.windows.get(len(block))
	frame := p.frame[:len(block)]
	for i, s := range block {
		frame[i] = s * w[i]
	}
	fft.PadInto(p.input, frame)

	if err := p.plan.Execute(p.spectrum, p.input); err != nil {
		return err
	}
	fft.Magnitudes(p.mags, p.spectrum)
	p.mapper.Map(p.raw, p.mags)
	p.shaper.Shape(p.shaped, p.raw)

	p.result.publish(p.shaped)
	p.processed.Add(1)
	p.seq++
	p.fanOut()
	return nil
}

func (p *Processor) fanOut() {
	if len(p.sinks) == 0 {
		return
	}
	frame := transport.Frame{
		Seq:       p.seq,
		Timestamp: time.Now(),
		Bands:     append([]float64(nil), p.shaped...),
		Edges:     p.edges,
	}
	for _, sink := range p.sinks {
		if err := sink.Send(frame); err != nil {
			applog.Debugf("Analysis: Sink %T rejected frame %d: %v", sink, frame.Seq, err)
		}
	}
}

// GetFrequencyWindowMagnitudes returns a copy of the latest shaped band
// vector and clears the ready flag.
func (p *Processor) GetFrequencyWindowMagnitudes() []float64 {
	return p.result.latest()
}

// BandsInto copies the latest band vector into dst without clearing the
// ready flag and returns the number of values copied.
func (p *Processor) BandsInto(dst []float64) int {
	return p.result.into(dst)
}

// IsReady reports whether a band vector has been published since the last
// GetFrequencyWindowMagnitudes.
func (p *Processor) IsReady() bool {
	return p.result.isReady()
}

// WaitUntilReady blocks until a band vector is ready, the processor stops or
// ctx is done. It reports whether a vector is ready.
func (p *Processor) WaitUntilReady(ctx context.Context) bool {
	return p.result.wait(ctx)
}

// SampleRate returns the sample rate the band layout was computed for.
func (p *Processor) SampleRate() float64 { return p.cfg.SampleRate }

// Bands returns the number of output bands.
func (p *Processor) Bands() int { return p.mapper.Bands() }

// Edges returns a copy of the band edge frequencies in Hz.
func (p *Processor) Edges() []float64 { return append([]float64(nil), p.edges...) }

// Stats returns the block counters.
func (p *Processor) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Skipped:   p.skipped.Load(),
		Failed:    p.failed.Load(),
	}
}
