// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	applog "barviz/internal/log"
)

// MaxDatagram is the largest UDP payload an IPv4 socket can carry.
const MaxDatagram = 65507

var (
	// ErrSenderClosed is returned by Send after Close.
	ErrSenderClosed = errors.New("udp: sender is closed")
	// ErrPacketTooLarge is returned for payloads above MaxDatagram.
	ErrPacketTooLarge = errors.New("udp: packet exceeds datagram size")
)

// SenderStats counts datagrams by outcome.
type SenderStats struct {
	Packets uint64 // Datagrams written.
	Bytes   uint64 // Payload bytes written.
	Failed  uint64 // Writes rejected by the socket.
}

// UDPSender writes band packets to one connected UDP peer. The peer usually
// starts after us, so write failures are counted and only the first failure
// of a run (and the recovery) is logged.
type UDPSender struct {
	target *net.UDPAddr

	mu   sync.Mutex // Serialises writes with Close.
	conn *net.UDPConn

	packets atomic.Uint64
	bytes   atomic.Uint64
	failed  atomic.Uint64
	failing atomic.Bool
}

// NewUDPSender resolves targetAddress ("host:port") and connects a socket
// to it. Connecting only fixes the peer; nothing is sent until Send.
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	target, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("udp: resolve target %q: %w", targetAddress, err)
	}

	conn, err := net.DialUDP("udp", nil, target)
	if err != nil {
		return nil, fmt.Errorf("udp: dial %s: %w", target, err)
	}

	applog.WithFields(applog.Fields{
		"local":  conn.LocalAddr().String(),
		"target": target.String(),
	}).Info("UDP Sender: Ready")

	return &UDPSender{target: target, conn: conn}, nil
}

// Target returns the resolved destination address.
func (s *UDPSender) Target() *net.UDPAddr {
	return s.target
}

// Send writes data as one datagram.
func (s *UDPSender) Send(data []byte) error {
	if len(data) > MaxDatagram {
		return fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, len(data))
	}

	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return ErrSenderClosed
	}
	n, err := s.conn.Write(data)
	s.mu.Unlock()

	if err != nil {
		s.failed.Add(1)
		if !s.failing.Swap(true) {
			applog.Warnf("UDP Sender: Packets to %s are failing: %v", s.target, err)
		}
		return fmt.Errorf("udp: send to %s: %w", s.target, err)
	}

	if s.failing.Swap(false) {
		applog.Infof("UDP Sender: Packets to %s delivered again", s.target)
	}
	s.packets.Add(1)
	s.bytes.Add(uint64(n))
	return nil
}

// Stats returns the datagram counters.
func (s *UDPSender) Stats() SenderStats {
	return SenderStats{
		Packets: s.packets.Load(),
		Bytes:   s.bytes.Load(),
		Failed:  s.failed.Load(),
	}
}

// Close releases the socket. Closing twice is a no-op.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil

	applog.WithFields(applog.Fields{
		"target":  s.target.String(),
		"packets": s.packets.Load(),
		"failed":  s.failed.Load(),
	}).Info("UDP Sender: Closed")

	if err != nil {
		return fmt.Errorf("udp: close: %w", err)
	}
	return nil
}
