// SPDX-License-Identifier: MIT
package transport

import "time"

// Transport defines a generic interface for sending processed band vectors.
// Implementations should be thread-safe and must not block the analysis loop.
type Transport interface {
	Send(data any) error
	Close() error
}

// Frame is one published band vector as seen by transports. Bands is owned by
// the frame; senders may retain it.
type Frame struct {
	Seq       uint64    `json:"seq"`             // Monotonic per processor run.
	Timestamp time.Time `json:"ts"`              // Time the vector was shaped.
	Bands     []float64 `json:"bands"`           // Shaped values, low to high frequency.
	Edges     []float64 `json:"edges,omitempty"` // Band edge frequencies in Hz, len(Bands)+1.
}

// Peak returns the index and value of the loudest band, or -1 for an empty frame.
func (f Frame) Peak() (int, float64) {
	idx, peak := -1, 0.0
	for i, v := range f.Bands {
		if idx < 0 || v > peak {
			idx, peak = i, v
		}
	}
	return idx, peak
}
