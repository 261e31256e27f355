package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/getsentry/raven-go"
	"lib.kevinlin.info/aperture/lib"

	"dnssink/internal/log"
	"dnssink/internal/metrics"
	"dnssink/internal/network"
	"dnssink/internal/policy"
	"dnssink/internal/wire"
)

// Decisions reported to metrics for every answered query.
const (
	decisionBlocked = "blocked"
	decisionAllowed = "allowed"
	decisionFailed  = "failed"
)

// DNSFilterHandler is a network.ServerHandler that answers queries for blocked names with a sink
// address and relays every other query to the upstream resolver.
type DNSFilterHandler struct {
	Policy         *policy.Set
	Upstream       network.Client
	ClientCxIOHook metrics.ConnectionIOHook
	FilterHook     metrics.FilterHook
	Logger         log.Logger
	Opts           DNSFilterOpts
}

// DNSFilterOpts formalizes configuration options for the filter handler.
type DNSFilterOpts struct {
	// SinkAddr is the IPv4 address returned for blocked names.
	SinkAddr net.IP
	// BlockTTL is the TTL of block answers, in seconds.
	BlockTTL uint32
	// UpstreamTimeout bounds the upstream exchange of a single query. A reply, possibly a
	// SERVFAIL, is always written within this bound.
	UpstreamTimeout time.Duration
}

// ConsumeError logs the error and reports it to Sentry.
func (h *DNSFilterHandler) ConsumeError(ctx context.Context, err error) {
	h.Logger.Error("%v", err)
	h.FilterHook.EmitError()

	tags := map[string]string{"transport": "udp"}
	if client, ok := ctx.Value(network.ClientContextKey).(net.Addr); ok {
		tags["client"] = client.String()
	}

	raven.CaptureError(err, tags)
}

// Handle reads one query datagram from the client connection and answers it. Malformed datagrams
// are dropped without a reply. Queries for blocked names get a synthesized sink answer. All other
// queries are relayed to the upstream and its reply is written back verbatim, or a SERVFAIL if the
// upstream failed.
func (h *DNSFilterHandler) Handle(ctx context.Context, clientConn net.Conn) error {
	rttTxTimer := lib.NewStopwatch()

	/* Read and parse the query */

	clientReq, err := h.clientRead(clientConn)
	if err != nil {
		return err
	}

	h.FilterHook.EmitRequestSize(int64(len(clientReq)), clientConn.RemoteAddr())

	query, err := wire.Parse(clientReq)
	if err != nil {
		// A malformed datagram carries no trustworthy id to reply to; drop it.
		kind := "unknown"

		var parseErr *wire.ParseError
		if errors.As(err, &parseErr) {
			kind = parseErr.Kind.String()
		}

		h.FilterHook.EmitParseError(kind)
		h.Logger.Warn(
			"dns_filter: dropping malformed datagram: client=%v bytes=%d err=%v",
			clientConn.RemoteAddr(),
			len(clientReq),
			err,
		)

		return nil
	}

	/* Decide and build the reply */

	var resp []byte
	var decision string

	if h.Policy.IsBlocked(query.Question.Name) {
		h.Logger.Debug(
			"dns_filter: blocked query: client=%v id=%d name=%s type=%d",
			clientConn.RemoteAddr(),
			query.Header.ID,
			query.Question.Name,
			query.Question.Type,
		)

		decision = decisionBlocked
		resp, err = SynthesizeBlock(query, h.Opts.SinkAddr, h.Opts.BlockTTL).Pack()
	} else {
		resp, decision, err = h.forward(ctx, clientConn, query, clientReq)
	}

	if err != nil {
		return fmt.Errorf("dns_filter: error serializing response: name=%s err=%v", query.Question.Name, err)
	}

	/* Write the reply back to the client */

	if err := h.clientWrite(clientConn, resp); err != nil {
		return err
	}

	h.Logger.Debug(
		"dns_filter: completed write back to client: decision=%s rtt=%v",
		decision,
		rttTxTimer.Elapsed(),
	)

	h.FilterHook.EmitDecision(decision)
	h.FilterHook.EmitResponseSize(int64(len(resp)), clientConn.RemoteAddr())
	h.FilterHook.EmitRTT(rttTxTimer.Elapsed(), clientConn.RemoteAddr(), decision)

	return nil
}

// forward relays the raw query to the upstream. On success the upstream reply is returned as-is,
// since it already carries the client's transaction id; on failure a SERVFAIL is synthesized.
func (h *DNSFilterHandler) forward(ctx context.Context, client net.Conn, query *wire.Query, clientReq []byte) ([]byte, string, error) {
	if h.Opts.UpstreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Opts.UpstreamTimeout)
		defer cancel()
	}

	upstreamTxTimer := lib.NewStopwatch()

	upstreamResp, err := h.Upstream.Exchange(ctx, clientReq)
	if err == nil {
		h.Logger.Debug(
			"dns_filter: relaying upstream response: name=%s response_bytes=%d",
			query.Question.Name,
			len(upstreamResp),
		)

		h.FilterHook.EmitUpstreamLatency(upstreamTxTimer.Elapsed(), h.Upstream.Addr())

		return upstreamResp, decisionAllowed, nil
	}

	kind := "unknown"

	var forwardErr *network.ForwardError
	if errors.As(err, &forwardErr) {
		kind = forwardErr.Kind.String()
	}

	h.FilterHook.EmitForwardError(kind)
	h.Logger.Warn(
		"dns_filter: upstream exchange failed; replying SERVFAIL: client=%v name=%s err=%v",
		client.RemoteAddr(),
		query.Question.Name,
		err,
	)

	resp, err := SynthesizeServFail(query).Pack()

	return resp, decisionFailed, err
}

// clientRead reads the query datagram from the client.
func (h *DNSFilterHandler) clientRead(conn net.Conn) ([]byte, error) {
	clientReadTimer := lib.NewStopwatch()
	clientReq := make([]byte, wire.MaxMessageSize)

	clientReadBytes, err := conn.Read(clientReq)
	if err != nil {
		h.ClientCxIOHook.EmitReadError(conn.RemoteAddr())
		return nil, fmt.Errorf("dns_filter: error reading request from client: err=%v", err)
	}

	h.ClientCxIOHook.EmitRead(clientReadTimer.Elapsed(), conn.RemoteAddr())

	// Trim the request buffer to only what the server was able to read
	return clientReq[:clientReadBytes], nil
}

// clientWrite writes the reply back to the client.
func (h *DNSFilterHandler) clientWrite(conn net.Conn, resp []byte) error {
	clientWriteTimer := lib.NewStopwatch()
	clientWriteBytes, err := conn.Write(resp)

	if err != nil {
		h.ClientCxIOHook.EmitWriteError(conn.RemoteAddr())
		return fmt.Errorf("dns_filter: error writing response to client: client=%v err=%v", conn.RemoteAddr(), err)
	}

	if clientWriteBytes != len(resp) {
		h.ClientCxIOHook.EmitWriteError(conn.RemoteAddr())
		return fmt.Errorf(
			"dns_filter: failed writing response bytes to client: expected=%d actual=%d",
			len(resp),
			clientWriteBytes,
		)
	}

	h.ClientCxIOHook.EmitWrite(clientWriteTimer.Elapsed(), conn.RemoteAddr())

	return nil
}
