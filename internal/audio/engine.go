// SPDX-License-Identifier: MIT
/*
Package audio implements the capture side of the pipeline:
- PortAudio input streams feeding a single-slot Exchange
- Real-time WAV file and synthetic tone sources for headless runs
- Noise gate with branchless peak detection
- WAV recording with atomic state management

Thread Safety:
- The capture callback only touches pre-allocated buffers
- Gate and recording state are read atomically from the callback
- Exchange is the only structure shared with the analysis loop
*/
package audio

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"barviz/internal/config"
	applog "barviz/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

// Engine captures from a PortAudio input device. Only the first channel of
// each interleaved frame is analysed.
type Engine struct {
	config config.AudioConfig

	// Audio input handling.
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream
	streamMu     sync.Mutex // Serialises Start/StopCapture.

	// Hand-off to the analysis loop.
	exchange  *Exchange
	monoInput []float64 // First channel, normalised.

	// Noise gate for signal conditioning.
	gateEnabled   atomic.Bool
	gateThreshold atomic.Int32 // Absolute amplitude threshold (0-2147483647)

	// Recording state and buffers.
	isRecording atomic.Bool
	recordMu    sync.Mutex // Guards the encoder between callback and Stop.
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // Reusable buffer for format conversion
}

// NewEngine creates an engine for cfg. PortAudio is not touched until Initialize.
func NewEngine(cfg config.AudioConfig) *Engine {
	e := &Engine{
		config:    cfg,
		exchange:  NewExchange(cfg.FramesPerBuffer),
		monoInput: make([]float64, cfg.FramesPerBuffer),
	}
	e.gateEnabled.Store(cfg.GateEnabled)
	e.SetGateThreshold(cfg.GateThreshold)
	return e
}

// Initialize resolves the configured input device and latency.
func (e *Engine) Initialize() error {
	device, err := InputDevice(e.config.InputDevice)
	if err != nil {
		return err
	}
	if e.config.InputChannels > device.MaxInputChannels {
		return fmt.Errorf("device %q supports %d input channels, %d requested",
			device.Name, device.MaxInputChannels, e.config.InputChannels)
	}

	e.inputDevice = device
	if e.config.LowLatency {
		e.inputLatency = device.DefaultLowInputLatency
	} else {
		e.inputLatency = device.DefaultHighInputLatency
	}

	applog.WithFields(applog.Fields{
		"device":     device.Name,
		"channels":   e.config.InputChannels,
		"sampleRate": e.config.SampleRate,
		"latency":    e.inputLatency,
	}).Info("Audio: Input device selected")
	return nil
}

// StartCapture opens and starts the input stream.
func (e *Engine) StartCapture() error {
	e.streamMu.Lock()
	defer e.streamMu.Unlock()

	if e.inputStream != nil {
		return nil
	}
	if e.inputDevice == nil {
		return fmt.Errorf("audio engine not initialized")
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.config.InputChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.config.FramesPerBuffer,
		SampleRate:      e.config.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}

	e.exchange.open()
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	e.inputStream = stream
	return nil
}

// StopCapture stops and closes the input stream and wakes the analysis loop.
func (e *Engine) StopCapture() error {
	e.streamMu.Lock()
	defer e.streamMu.Unlock()

	e.exchange.Close()
	if e.inputStream == nil {
		return nil
	}

	stream := e.inputStream
	e.inputStream = nil
	if err := stream.Stop(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to stop input stream: %w", err)
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("failed to close input stream: %w", err)
	}
	return nil
}

// SampleRate returns the configured stream sample rate.
func (e *Engine) SampleRate() float64 { return e.config.SampleRate }

// Exchange returns the mailbox the callback publishes into.
func (e *Engine) Exchange() *Exchange { return e.exchange }

// processInputStream is the core audio processing callback.
// Performance Critical:
// - Runs on the PortAudio callback thread
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (e *Engine) processInputStream(in []int32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.record(in)
	e.processBuffer(in)
}

// processBuffer extracts the first channel of the interleaved buffer,
// normalises it and publishes it. Gated buffers publish silence so that the
// bars decay instead of freezing.
func (e *Engine) processBuffer(buffer []int32) {
	if e.gateOpen(buffer) {
		Int32ToFloat(e.monoInput, buffer, e.config.InputChannels)
	} else {
		clear(e.monoInput)
	}
	e.exchange.Publish(e.monoInput)
}

// Int32ToFloat writes the first channel of interleaved int32 frames into dst,
// normalised to [-1, 1). Missing frames are written as zero.
func Int32ToFloat(dst []float64, in []int32, channels int) {
	channels = max(channels, 1)
	for i := range dst {
		if j := i * channels; j < len(in) {
			dst[i] = float64(in[j]) / -math.MinInt32
		} else {
			dst[i] = 0
		}
	}
}

// Close stops any recording and the input stream.
func (e *Engine) Close() error {
	if err := e.StopRecording(); err != nil {
		return err
	}
	return e.StopCapture()
}

var _ Source = (*Engine)(nil)
