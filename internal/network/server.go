package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"dnssink/internal/wire"
)

// contextKey is a type alias for context keys passed to server handlers.
type contextKey int

// ServerHandler is a common interface that wraps logic for handling inbound datagrams.
type ServerHandler interface {
	// Handle is invoked once per received datagram. The passed conn yields the datagram on its
	// first Read and writes replies back to the datagram's sender.
	Handle(ctx context.Context, conn net.Conn) error

	// ConsumeError is a callback invoked when the server fails to read from its socket, when the
	// handler returns an error, or when the handler panics.
	ConsumeError(ctx context.Context, err error)
}

// UDPServer describes a server that listens on a UDP address.
type UDPServer struct {
	addr  string
	opts  UDPServerOpts
	conn  net.PacketConn
	mutex sync.Mutex
}

// UDPServerOpts formalizes UDP server configuration options.
type UDPServerOpts struct {
	// MaxConcurrentQueries bounds the number of datagrams being handled at any time. A fixed
	// number of workers share the listening socket; each reads one datagram and handles it to
	// completion before reading the next, so a query waiting on its upstream occupies exactly
	// one worker and never blocks the others from reading.
	MaxConcurrentQueries int
	// MaxMessageSize is the size of each worker's receive buffer.
	MaxMessageSize int
}

const (
	// ClientContextKey is the name of the context key holding the net.Addr of the client whose
	// datagram is being handled.
	ClientContextKey contextKey = iota
)

// NewUDPServer creates a UDP server listening on the specified address.
func NewUDPServer(addr string, opts UDPServerOpts) *UDPServer {
	// Sane option defaults
	if opts.MaxConcurrentQueries <= 0 {
		opts.MaxConcurrentQueries = 64
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = wire.MaxMessageSize
	}

	return &UDPServer{addr: addr, opts: opts}
}

// Listen binds the UDP socket.
func (s *UDPServer) Listen() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.conn != nil {
		return fmt.Errorf("server: already listening: addr=%s", s.conn.LocalAddr())
	}

	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return fmt.Errorf("server: failed to listen on UDP socket: err=%v", err)
	}

	s.conn = conn

	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *UDPServer) Addr() net.Addr {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.conn == nil {
		return nil
	}

	return s.conn.LocalAddr()
}

// Serve handles datagrams with the specified handler until ctx is done. It then stops reading,
// waits for in-flight handlers to write their replies, and closes the socket. Handlers are not
// canceled by shutdown; each is bounded by its own upstream timeout.
func (s *UDPServer) Serve(ctx context.Context, handler ServerHandler) error {
	s.mutex.Lock()
	conn := s.conn
	s.mutex.Unlock()

	if conn == nil {
		return fmt.Errorf("server: Serve called before Listen")
	}

	var wg sync.WaitGroup

	for i := 0; i < s.opts.MaxConcurrentQueries; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			s.work(ctx, conn, handler)
		}()
	}

	<-ctx.Done()

	// Unblock the pending reads while keeping the socket open for in-flight replies.
	conn.SetReadDeadline(time.Now())
	wg.Wait()

	return conn.Close()
}

// work is one worker's receive loop. It returns once the socket is closed.
func (s *UDPServer) work(ctx context.Context, conn net.PacketConn, handler ServerHandler) {
	buf := make([]byte, s.opts.MaxMessageSize)

	for {
		n, remote, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}

			handler.ConsumeError(ctx, fmt.Errorf("server: error reading from UDP socket: err=%v", err))
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		s.dispatch(
			context.WithValue(context.Background(), ClientContextKey, remote),
			NewUDPConn(conn, remote, payload),
			handler,
		)
	}
}

// dispatch runs the handler for one datagram, containing any failure to that datagram.
func (s *UDPServer) dispatch(ctx context.Context, conn *UDPConn, handler ServerHandler) {
	defer func() {
		if r := recover(); r != nil {
			handler.ConsumeError(ctx, fmt.Errorf("server: handler panic: client=%v panic=%v", conn.RemoteAddr(), r))
		}

		conn.Close()
	}()

	if err := handler.Handle(ctx, conn); err != nil {
		handler.ConsumeError(ctx, err)
	}
}
