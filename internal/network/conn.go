package network

import (
	"fmt"
	"io"
	"net"
	"time"
)

// UDPConn gives a single datagram received on a shared net.PacketConn net.Conn-like semantics: the
// first Read returns the datagram, and writes go back to the client that sent it. It never owns the
// shared socket; closing it does not close the listener.
type UDPConn struct {
	conn    net.PacketConn
	remote  net.Addr
	payload []byte
	read    bool
	closed  bool
}

// NewUDPConn creates a UDPConn for a datagram received from remote on a backing net.PacketConn.
func NewUDPConn(conn net.PacketConn, remote net.Addr, payload []byte) *UDPConn {
	return &UDPConn{
		conn:    conn,
		remote:  remote,
		payload: payload,
	}
}

// Read copies the received datagram into buf. As with any datagram read, bytes that do not fit in
// buf are discarded. Subsequent reads return io.EOF.
func (c *UDPConn) Read(buf []byte) (int, error) {
	if c.closed {
		return 0, net.ErrClosed
	}

	if c.read {
		return 0, io.EOF
	}

	c.read = true

	return copy(buf, c.payload), nil
}

// Write sends a single datagram to the client from which the payload was received.
func (c *UDPConn) Write(buf []byte) (int, error) {
	if c.closed {
		return 0, net.ErrClosed
	}

	if c.remote == nil {
		return 0, fmt.Errorf("conn: no remote associated with this connection")
	}

	return c.conn.WriteTo(buf, c.remote)
}

// Close detaches the conn from its client. The shared socket is left open.
func (c *UDPConn) Close() error {
	c.closed = true
	return nil
}

// LocalAddr obtains the listener's local address.
func (c *UDPConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr obtains the client's address.
func (c *UDPConn) RemoteAddr() net.Addr {
	return c.remote
}

// SetDeadline is a no-op. Deadlines on the shared socket would apply to every client at once.
func (c *UDPConn) SetDeadline(t time.Time) error {
	return nil
}

// SetReadDeadline is a no-op; the datagram has already been read.
func (c *UDPConn) SetReadDeadline(t time.Time) error {
	return nil
}

// SetWriteDeadline is a no-op. A UDP send does not wait on the peer.
func (c *UDPConn) SetWriteDeadline(t time.Time) error {
	return nil
}
