// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"barviz/internal/config"
	applog "barviz/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrAlreadyRecording is returned by StartRecording while a recording is active.
var ErrAlreadyRecording = errors.New("already recording")

// recordingLayout names generated recordings by their start time.
const recordingLayout = "recording-02-01-2006-150405.wav"

// RecordingPath returns the output path for a recording started at now.
// An explicit OutputFile wins over the generated name.
func RecordingPath(cfg config.RecordingConfig, now time.Time) string {
	name := cfg.OutputFile
	if name == "" {
		name = now.Format(recordingLayout)
	}
	return filepath.Join(cfg.OutputDir, name)
}

// StartRecording writes every captured buffer, before the gate, to a 32-bit
// WAV file at filename.
func (e *Engine) StartRecording(filename string) error {
	e.recordMu.Lock()
	defer e.recordMu.Unlock()

	if e.isRecording.Load() {
		return ErrAlreadyRecording
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create recording directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	e.outputFile = file

	channels := max(e.config.InputChannels, 1)
	e.wavEncoder = wav.NewEncoder(file, int(e.config.SampleRate), 32, channels, 1)

	e.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  int(e.config.SampleRate),
		},
		Data:           make([]int, e.config.FramesPerBuffer*channels),
		SourceBitDepth: 32,
	}

	e.isRecording.Store(true)
	applog.Infof("Audio: Recording to %s", filename)
	return nil
}

// StopRecording finalises the WAV header and closes the file. It is a no-op
// when no recording is active.
func (e *Engine) StopRecording() error {
	if !e.isRecording.Load() {
		return nil
	}

	e.recordMu.Lock()
	defer e.recordMu.Unlock()

	e.isRecording.Store(false)

	if e.wavEncoder != nil {
		if err := e.wavEncoder.Close(); err != nil {
			return err
		}
		e.wavEncoder = nil
	}

	if e.outputFile != nil {
		if err := e.outputFile.Close(); err != nil {
			return err
		}
		e.outputFile = nil
	}

	return nil
}

// Recording reports whether a recording is active.
func (e *Engine) Recording() bool {
	return e.isRecording.Load()
}

// record appends one interleaved callback buffer to the active recording.
func (e *Engine) record(in []int32) {
	if !e.isRecording.Load() {
		return
	}

	e.recordMu.Lock()
	defer e.recordMu.Unlock()

	if e.wavEncoder == nil {
		return
	}

	n := min(len(in), cap(e.sampleBuf.Data))
	e.sampleBuf.Data = e.sampleBuf.Data[:n]
	for i := range n {
		e.sampleBuf.Data[i] = int(in[i])
	}

	if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
		applog.Errorf("Audio: Error writing to WAV file: %v", err)
	}
}
