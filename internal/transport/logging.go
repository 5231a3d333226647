// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	applog "barviz/internal/log"
)

// LoggingTransport implements the Transport interface by logging frames at
// debug level. Every Nth frame is logged so the console stays readable.
type LoggingTransport struct {
	every uint64
	count atomic.Uint64
}

// NewLoggingTransport creates a new LoggingTransport logging one in every
// `every` frames; values below 1 log all frames.
func NewLoggingTransport(every int) *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport (every %d frames)", max(every, 1))
	return &LoggingTransport{every: uint64(max(every, 1))}
}

// Send logs the received data. Logging transport never fails to "send".
func (lt *LoggingTransport) Send(data any) error {
	n := lt.count.Add(1)
	if (n-1)%lt.every != 0 || !applog.Enabled(applog.LevelDebug) {
		return nil
	}

	switch v := data.(type) {
	case Frame:
		idx, peak := v.Peak()
		applog.WithFields(applog.Fields{
			"seq":   v.Seq,
			"bands": len(v.Bands),
			"peak":  idx,
			"value": peak,
		}).Debug("frame")
	default:
		applog.Debugf("LOG_TRANSPORT: Received (%T): %+v", data, data)
	}
	return nil
}

// Sent returns the number of frames received so far.
func (lt *LoggingTransport) Sent() uint64 {
	return lt.count.Load()
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("LOG_TRANSPORT: Close called after %d frames.", lt.count.Load())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
