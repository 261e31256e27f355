package network

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"lib.kevinlin.info/aperture/lib"

	"dnssink/internal/metrics"
	"dnssink/internal/wire"
)

// Client defines the interface for a client exchanging raw DNS messages with an upstream resolver.
type Client interface {
	// Exchange sends a raw query and returns the raw reply. Failures are *ForwardError.
	Exchange(ctx context.Context, req []byte) ([]byte, error)

	// Addr returns the upstream address.
	Addr() string

	// Stats returns historical client stats.
	Stats() Stats
}

// Stats formalizes stats tracked per-client.
type Stats struct {
	// SuccessfulExchanges is the number of queries for which the upstream returned a reply.
	SuccessfulExchanges int
	// FailedExchanges is the number of queries that ended in a ForwardError.
	FailedExchanges int
}

// UDPClient forwards each query over its own transient UDP socket. There is no connection reuse and
// no retry: one socket and one attempt per query.
type UDPClient struct {
	addr       string
	cxHook     metrics.ConnectionLifecycleHook
	ioHook     metrics.ConnectionIOHook
	opts       UDPClientOpts
	stats      Stats
	statsMutex sync.RWMutex
}

// UDPClientOpts formalizes UDP client configuration options.
type UDPClientOpts struct {
	// Timeout bounds an entire exchange: opening the socket, sending the query and waiting for
	// the reply. A context deadline that expires sooner takes precedence.
	Timeout time.Duration
	// MaxResponseSize is the size of the buffer the reply is read into.
	MaxResponseSize int
}

// NewUDPClient creates a client forwarding to the specified upstream address.
func NewUDPClient(addr string, cxHook metrics.ConnectionLifecycleHook, ioHook metrics.ConnectionIOHook, opts UDPClientOpts) *UDPClient {
	// Sane option defaults
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.MaxResponseSize <= 0 {
		opts.MaxResponseSize = wire.MaxMessageSize
	}

	return &UDPClient{
		addr:   addr,
		cxHook: cxHook,
		ioHook: ioHook,
		opts:   opts,
	}
}

// Exchange writes the query to a fresh socket connected to the upstream and waits for a reply that
// carries the same transaction id. Replies with any other id are discarded. The socket is closed
// before returning, whatever the outcome.
func (c *UDPClient) Exchange(ctx context.Context, req []byte) ([]byte, error) {
	if len(req) < 2 {
		return nil, c.fail(BadResponse, fmt.Errorf("query too short: bytes=%d", len(req)))
	}

	deadline := time.Now().Add(c.opts.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	dialTimer := lib.NewStopwatch()
	dialer := net.Dialer{Deadline: deadline}

	conn, err := dialer.DialContext(ctx, "udp", c.addr)
	if err != nil {
		c.cxHook.EmitConnectionError()
		return nil, c.fail(classify(ctx, err), err)
	}

	c.cxHook.EmitConnectionOpen(dialTimer.Elapsed(), conn.RemoteAddr())

	defer func() {
		conn.Close()
		c.cxHook.EmitConnectionClose(conn.RemoteAddr())
	}()

	if err := conn.SetDeadline(deadline); err != nil {
		return nil, c.fail(NetworkUnreachable, err)
	}

	writeTimer := lib.NewStopwatch()
	if _, err := conn.Write(req); err != nil {
		c.ioHook.EmitWriteError(conn.RemoteAddr())
		return nil, c.fail(classify(ctx, err), err)
	}
	c.ioHook.EmitWrite(writeTimer.Elapsed(), conn.RemoteAddr())

	id := binary.BigEndian.Uint16(req)
	buf := make([]byte, c.opts.MaxResponseSize)
	readTimer := lib.NewStopwatch()

	for {
		n, err := conn.Read(buf)
		if err != nil {
			c.ioHook.EmitReadError(conn.RemoteAddr())
			return nil, c.fail(classify(ctx, err), err)
		}

		if n < wire.HeaderLen {
			c.ioHook.EmitReadError(conn.RemoteAddr())
			return nil, c.fail(BadResponse, fmt.Errorf("reply too short: bytes=%d", n))
		}

		if binary.BigEndian.Uint16(buf) != id {
			continue
		}

		c.ioHook.EmitRead(readTimer.Elapsed(), conn.RemoteAddr())
		c.record(nil)

		resp := make([]byte, n)
		copy(resp, buf[:n])

		return resp, nil
	}
}

// Addr returns the upstream address.
func (c *UDPClient) Addr() string {
	return c.addr
}

// Stats returns current client stats.
func (c *UDPClient) Stats() Stats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()

	return c.stats
}

// String returns a string representation of the client.
func (c *UDPClient) String() string {
	return fmt.Sprintf("UDPClient{addr: %s, timeout: %v}", c.addr, c.opts.Timeout)
}

func (c *UDPClient) fail(kind ForwardErrorKind, err error) error {
	forwardErr := &ForwardError{Kind: kind, Addr: c.addr, Err: err}
	c.record(forwardErr)

	return forwardErr
}

func (c *UDPClient) record(err error) {
	c.statsMutex.Lock()
	defer c.statsMutex.Unlock()

	if err != nil {
		c.stats.FailedExchanges++
	} else {
		c.stats.SuccessfulExchanges++
	}
}

// classify maps a socket error to a forward failure kind. On a connected UDP socket an ICMP port
// unreachable surfaces as ECONNREFUSED on the next read.
func classify(ctx context.Context, err error) ForwardErrorKind {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return UpstreamRefused
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}

	if ctx.Err() != nil {
		return Timeout
	}

	return NetworkUnreachable
}
