// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"sync"
	"time"

	"barviz/internal/config"
)

// Source produces mono sample blocks into an Exchange.
type Source interface {
	// Initialize acquires the device or file. It fails when the backend is unavailable.
	Initialize() error
	// StartCapture begins publishing blocks. Calling it twice is a no-op.
	StartCapture() error
	// StopCapture stops publishing and closes the exchange. Calling it twice is a no-op.
	StopCapture() error
	// SampleRate is valid after Initialize.
	SampleRate() float64
	Exchange() *Exchange
	Close() error
}

// NewSource builds the capture source selected by cfg.Source.
func NewSource(cfg config.AudioConfig) (Source, error) {
	switch cfg.Source {
	case config.SourceDevice, "":
		return NewEngine(cfg), nil
	case config.SourceWAV:
		return NewWAVSource(cfg.WAVFile, cfg.FramesPerBuffer, cfg.Loop), nil
	case config.SourceTone:
		return NewToneSource(cfg.SampleRate, cfg.ToneFrequency, cfg.FramesPerBuffer), nil
	default:
		return nil, fmt.Errorf("unknown audio source %q", cfg.Source)
	}
}

// blockInterval is the real-time duration of one block.
func blockInterval(blockSize int, sampleRate float64) time.Duration {
	if blockSize <= 0 || sampleRate <= 0 {
		return time.Millisecond
	}
	return time.Duration(float64(blockSize) / sampleRate * float64(time.Second))
}

// pacer calls a step function on a fixed interval from its own goroutine,
// emulating the callback cadence of a sound card for file and synthetic sources.
type pacer struct {
	mu       sync.Mutex
	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup
}

// start launches the loop. step returns false to end it early.
// Returns false when the loop is already running.
func (p *pacer) start(interval time.Duration, step func() bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.doneChan != nil {
		return false
	}

	p.ticker = time.NewTicker(interval)
	p.doneChan = make(chan struct{})
	done, ticker := p.doneChan, p.ticker

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				if !step() {
					return
				}
			case <-done:
				return
			}
		}
	}()
	return true
}

// stop ends the loop and waits for it. Safe to call when not running.
func (p *pacer) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.doneChan == nil {
		return
	}
	close(p.doneChan)
	p.ticker.Stop()
	p.wg.Wait()
	p.doneChan = nil
	p.ticker = nil
}
