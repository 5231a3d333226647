// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	applog "barviz/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource replays the first channel of a PCM WAV file in real time,
// one block per block duration.
type WAVSource struct {
	path      string
	blockSize int
	loop      bool
	interval  time.Duration

	mu         sync.Mutex // Guards the decoder between the pacer and Close.
	file       *os.File
	decoder    *wav.Decoder
	sampleRate float64
	channels   int
	bitDepth   int
	buf        *audio.IntBuffer
	block      []float64

	exchange *Exchange
	pacer    pacer
	ended    chan struct{}
	endOnce  sync.Once
}

// NewWAVSource creates a source for the file at path. When loop is false the
// source closes its exchange at end of file.
func NewWAVSource(path string, blockSize int, loop bool) *WAVSource {
	return &WAVSource{
		path:      path,
		blockSize: blockSize,
		loop:      loop,
		exchange:  NewExchange(blockSize),
		ended:     make(chan struct{}),
	}
}

// Initialize opens the file and reads its format.
func (s *WAVSource) Initialize() error {
	if s.blockSize <= 0 {
		return fmt.Errorf("wav source needs a positive block size")
	}

	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open wav file: %w", err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return fmt.Errorf("invalid WAV file: %s", s.path)
	}
	if dec.NumChans == 0 || dec.SampleRate == 0 {
		f.Close()
		return fmt.Errorf("unsupported WAV format in %s", s.path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.file = f
	s.decoder = dec
	s.sampleRate = float64(dec.SampleRate)
	s.channels = int(dec.NumChans)
	s.bitDepth = int(dec.BitDepth)
	s.interval = blockInterval(s.blockSize, s.sampleRate)
	s.buf = &audio.IntBuffer{
		Format:         dec.Format(),
		Data:           make([]int, s.blockSize*s.channels),
		SourceBitDepth: s.bitDepth,
	}
	s.block = make([]float64, s.blockSize)

	applog.WithFields(applog.Fields{
		"file":       s.path,
		"sampleRate": s.sampleRate,
		"channels":   s.channels,
		"bitDepth":   s.bitDepth,
	}).Info("Audio: WAV source opened")
	return nil
}

// StartCapture starts replaying from the current file position.
func (s *WAVSource) StartCapture() error {
	s.mu.Lock()
	ready, interval := s.decoder != nil, s.interval
	s.mu.Unlock()
	if !ready {
		return fmt.Errorf("wav source not initialized")
	}

	s.exchange.open()
	s.pacer.start(interval, s.step)
	return nil
}

// step publishes the next block. At end of file it rewinds when looping,
// otherwise it closes the exchange and ends the pacer.
func (s *WAVSource) step() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames, err := s.readBlock()
	if err == nil && frames == 0 && s.loop {
		if err = s.rewind(); err == nil {
			frames, err = s.readBlock()
		}
	}

	switch {
	case err != nil:
		applog.Errorf("Audio: WAV read failed: %v", err)
	case frames > 0:
		s.exchange.Publish(s.block)
		return true
	default:
		applog.Infof("Audio: End of %s", s.path)
	}

	s.exchange.Close()
	s.endOnce.Do(func() { close(s.ended) })
	return false
}

// readBlock decodes up to one block and returns the number of frames read.
// A short final block is zero padded.
func (s *WAVSource) readBlock() (int, error) {
	s.buf.Data = s.buf.Data[:cap(s.buf.Data)]
	n, err := s.decoder.PCMBuffer(s.buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	if err != nil {
		return 0, err
	}

	frames := n / s.channels
	for i := range s.block {
		if i < frames {
			s.block[i] = normalizeInt(s.buf.Data[i*s.channels], s.bitDepth)
		} else {
			s.block[i] = 0
		}
	}
	return frames, nil
}

// rewind restarts decoding from the top of the file.
func (s *WAVSource) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind wav file: %w", err)
	}
	dec := wav.NewDecoder(s.file)
	if !dec.IsValidFile() {
		return fmt.Errorf("invalid WAV file: %s", s.path)
	}
	s.decoder = dec
	return nil
}

// normalizeInt maps a decoded integer sample to [-1, 1). 8-bit WAV is unsigned.
func normalizeInt(v, bitDepth int) float64 {
	switch bitDepth {
	case 8:
		return float64(v-128) / 128
	case 16, 24, 32:
		return float64(v) / float64(int64(1)<<(bitDepth-1))
	default:
		return 0
	}
}

// Done is closed once a non-looping source reaches the end of its file.
func (s *WAVSource) Done() <-chan struct{} { return s.ended }

func (s *WAVSource) StopCapture() error {
	s.pacer.stop()
	s.exchange.Close()
	return nil
}

func (s *WAVSource) SampleRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleRate
}

func (s *WAVSource) Exchange() *Exchange { return s.exchange }

// Close stops replay and closes the file.
func (s *WAVSource) Close() error {
	if err := s.StopCapture(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.decoder = nil
	return err
}

var _ Source = (*WAVSource)(nil)
