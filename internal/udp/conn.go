package udp

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"
)

// packetConn sends and receives whole datagrams in the begin / write /
// end steps the Talker reports on.
type packetConn interface {
	// beginPacket starts a datagram to addr.
	beginPacket(addr netip.AddrPort) error
	// write appends p to the pending datagram.
	write(p []byte) (int, error)
	// endPacket transmits the pending datagram.
	endPacket() error
	// parsePacket polls for a datagram and reports whether one arrived,
	// including a zero-length one.
	parsePacket() (bool, error)
	// read copies the datagram found by parsePacket into p.
	read(p []byte) int
	Close() error
}

// newUDPConn binds a UDP socket to laddr.
func newUDPConn(laddr netip.AddrPort, pollTimeout, writeTimeout time.Duration) (packetConn, error) {
	c, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(laddr))
	if err != nil {
		return nil, err
	}
	return &udpConn{
		UDPConn:      c,
		pollTimeout:  pollTimeout,
		writeTimeout: writeTimeout,
		out:          make([]byte, 0, MaxMessageLen),
		in:           make([]byte, MaxMessageLen),
	}, nil
}

// udpConn is a packetConn over a bound UDP socket.
type udpConn struct {
	*net.UDPConn
	pollTimeout  time.Duration
	writeTimeout time.Duration

	dst     netip.AddrPort
	out     []byte
	in      []byte
	pending int // Bytes in in, -1 when nothing was received.
}

func (c *udpConn) beginPacket(addr netip.AddrPort) error {
	if !addr.IsValid() {
		return fmt.Errorf("invalid destination %v", addr)
	}
	if err := c.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	c.dst = addr
	c.out = c.out[:0]
	return nil
}

func (c *udpConn) write(p []byte) (int, error) {
	n := min(len(p), cap(c.out)-len(c.out))
	c.out = append(c.out, p[:n]...)
	return n, nil
}

func (c *udpConn) endPacket() error {
	n, err := c.WriteToUDPAddrPort(c.out, c.dst)
	if err != nil {
		return err
	}
	if n != len(c.out) {
		return fmt.Errorf("sent %d of %d bytes", n, len(c.out))
	}
	c.out = c.out[:0]
	return nil
}

func (c *udpConn) parsePacket() (bool, error) {
	c.pending = -1
	if err := c.SetReadDeadline(time.Now().Add(c.pollTimeout)); err != nil {
		return false, err
	}
	n, _, err := c.ReadFromUDPAddrPort(c.in)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return false, nil
		}
		return false, err
	}
	c.pending = n
	return true, nil
}

func (c *udpConn) read(p []byte) int {
	if c.pending < 0 {
		return 0
	}
	n := copy(p, c.in[:c.pending])
	clear(c.in[:c.pending])
	c.pending = -1
	return n
}
