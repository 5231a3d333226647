// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"time"

	"barviz/pkg/synth"
)

// ToneSource publishes a continuous sine wave in real time.
type ToneSource struct {
	sampleRate float64
	frequency  float64
	blockSize  int
	interval   time.Duration

	osc      *synth.Oscillator
	block    []float64
	exchange *Exchange
	pacer    pacer
}

// NewToneSource creates a full-scale sine source at frequency Hz.
func NewToneSource(sampleRate, frequency float64, blockSize int) *ToneSource {
	return &ToneSource{
		sampleRate: sampleRate,
		frequency:  frequency,
		blockSize:  blockSize,
		interval:   blockInterval(blockSize, sampleRate),
		exchange:   NewExchange(blockSize),
	}
}

func (s *ToneSource) Initialize() error {
	if s.sampleRate <= 0 || s.blockSize <= 0 {
		return fmt.Errorf("tone source needs a positive sample rate and block size")
	}
	if s.frequency <= 0 || s.frequency >= s.sampleRate/2 {
		return fmt.Errorf("tone frequency %.1f Hz outside (0, %.1f)", s.frequency, s.sampleRate/2)
	}
	s.osc = synth.NewOscillator(s.sampleRate, s.frequency, 1)
	s.block = make([]float64, s.blockSize)
	return nil
}

func (s *ToneSource) StartCapture() error {
	if s.osc == nil {
		return fmt.Errorf("tone source not initialized")
	}
	s.exchange.open()
	s.pacer.start(s.interval, s.step)
	return nil
}

func (s *ToneSource) step() bool {
	s.osc.Fill(s.block)
	s.exchange.Publish(s.block)
	return true
}

func (s *ToneSource) StopCapture() error {
	s.pacer.stop()
	s.exchange.Close()
	return nil
}

func (s *ToneSource) SampleRate() float64 { return s.sampleRate }

func (s *ToneSource) Exchange() *Exchange { return s.exchange }

func (s *ToneSource) Close() error { return s.StopCapture() }

var _ Source = (*ToneSource)(nil)
