// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	applog "barviz/internal/log"
)

// BandProvider is the read side of the analysis result mailbox. BandsInto
// copies the most recent band vector into dst without consuming it and
// returns the number of values written.
type BandProvider interface {
	Bands() int
	BandsInto(dst []float64) int
}

// Sender abstracts the datagram socket so tests can capture packets.
type Sender interface {
	Send(data []byte) error
	Close() error
}

// UDPPublisher periodically fetches the latest band vector, packs it into a
// defined binary format, and sends it over UDP using a Sender. It runs in a
// separate goroutine managed by Start and Stop methods.
type UDPPublisher struct {
	sender   Sender        // The underlying UDP sender instance.
	bands    BandProvider  // The processor to fetch band values from.
	interval time.Duration // The interval at which packets are sent.

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects access to ticker and doneChan during Start/Stop.

	sequenceNum uint32 // Monotonically increasing sequence number for packets.

	// Pre-allocated buffers to keep buildAndSendPacket allocation free.
	bandBuffer   []float64
	packetBuffer []byte
}

// NewUDPPublisher creates and initializes a new UDPPublisher.
// If the provided interval is invalid (<= 0), it defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender Sender, bands BandProvider) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if bands == nil {
		return nil, fmt.Errorf("UDPPublisher: band provider cannot be nil")
	}
	n := bands.Bands()
	if n < 1 || n > math.MaxUint16 {
		return nil, fmt.Errorf("UDPPublisher: band count %d cannot be encoded", n)
	}

	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	applog.Infof("UDPPublisher: Initializing (Interval: %s, Bands: %d)", interval, n)

	return &UDPPublisher{
		sender:       sender,
		bands:        bands,
		interval:     interval,
		bandBuffer:   make([]float64, n),
		packetBuffer: make([]byte, 0, HeaderSize+4*n),
	}, nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Capture locals so the goroutine never reads p.ticker/p.doneChan.
	ticker := p.ticker
	doneChan := p.doneChan

	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		applog.Infof("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				applog.Debugf("UDPPublisher: Publisher goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		applog.Debugf("UDPPublisher: Stop called but not running.")
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})

	p.mu.Unlock()

	p.wg.Wait()
	fields := applog.Fields{"sequence": p.sequenceNum}
	if counted, ok := p.sender.(interface{ Stats() SenderStats }); ok {
		st := counted.Stats()
		fields["delivered"], fields["failed"] = st.Packets, st.Failed
	}
	applog.WithFields(fields).Info("UDPPublisher: Publisher goroutine finished")
	return nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Band Count        | uint16         | 2            | Number of floats (N)    |
| Bands             | []float32      | N * 4        | Shaped band values      |
+-----------------------------------------------------------------------------+

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<----- N * 4 Bytes ----->|
+-------------------+-----------------------+---------------+-------------------------+
|  Sequence Number  |       Timestamp       |  Band Count   |          Bands          |
|      (uint32)     |        (int64)        |    (uint16)   |      (N * float32)      |
+-------------------+-----------------------+---------------+-------------------------+
*/

// HeaderSize is the fixed size of the packet header in bytes.
const HeaderSize = 4 + 8 + 2

// ErrShortPacket is returned by DecodePacket for truncated datagrams.
var ErrShortPacket = errors.New("udp: short packet")

// Packet is a decoded band datagram.
type Packet struct {
	Seq       uint32
	Timestamp time.Time
	Bands     []float32
}

// AppendPacket encodes a packet onto dst and returns the extended slice.
func AppendPacket(dst []byte, seq uint32, ts time.Time, bands []float64) []byte {
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(ts.UnixNano()))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(bands)))
	for _, v := range bands {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	}
	return dst
}

// DecodePacket parses a datagram produced by the publisher.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}
	seq := binary.BigEndian.Uint32(b[0:4])
	ts := int64(binary.BigEndian.Uint64(b[4:12]))
	n := int(binary.BigEndian.Uint16(b[12:14]))

	payload := b[HeaderSize:]
	if len(payload) < 4*n {
		return Packet{}, fmt.Errorf("%w: want %d band bytes, got %d", ErrShortPacket, 4*n, len(payload))
	}

	bands := make([]float32, n)
	for i := range bands {
		bands[i] = math.Float32frombits(binary.BigEndian.Uint32(payload[4*i:]))
	}
	return Packet{Seq: seq, Timestamp: time.Unix(0, ts), Bands: bands}, nil
}

// buildAndSendPacket is executed on each ticker interval. It copies the
// latest band vector, packs it and sends it using the Sender.
func (p *UDPPublisher) buildAndSendPacket() {
	n := p.bands.BandsInto(p.bandBuffer)

	p.sequenceNum++
	p.packetBuffer = AppendPacket(p.packetBuffer[:0], p.sequenceNum, time.Now(), p.bandBuffer[:n])

	// Send errors are logged by the sender.
	if err := p.sender.Send(p.packetBuffer); err == nil {
		applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(p.packetBuffer))
	}
}

// Close stops the publisher goroutine. The sender is owned by the caller.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)
var _ Sender = (*UDPSender)(nil)
