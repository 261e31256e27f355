package metrics

import (
	"fmt"
	"net"
	"os"
	"time"
)

// ConnectionLifecycleHook reports events on the transient sockets opened towards the upstream
// resolver, one per forwarded query.
type ConnectionLifecycleHook interface {
	// EmitConnectionOpen reports the event that a socket was successfully opened.
	EmitConnectionOpen(latency time.Duration, addr net.Addr)

	// EmitConnectionClose reports the event that a socket was closed.
	EmitConnectionClose(addr net.Addr)

	// EmitConnectionError reports occurrence of an error opening a socket.
	EmitConnectionError()
}

// ConnectionIOHook reports I/O events with a client or with the upstream resolver.
type ConnectionIOHook interface {
	// EmitRead reports a successful read and its latency.
	EmitRead(latency time.Duration, addr net.Addr)

	// EmitReadError reports the event that a read failed.
	EmitReadError(addr net.Addr)

	// EmitWrite reports a successful write and its latency.
	EmitWrite(latency time.Duration, addr net.Addr)

	// EmitWriteError reports the event that a write failed.
	EmitWriteError(addr net.Addr)
}

// FilterHook reports the outcome of each query passing through the filter.
type FilterHook interface {
	// EmitDecision reports the path taken by a query: blocked, allowed or failed.
	EmitDecision(decision string)

	// EmitParseError reports a dropped malformed datagram, tagged with the parse failure kind.
	EmitParseError(kind string)

	// EmitForwardError reports a failed upstream exchange, tagged with the failure kind.
	EmitForwardError(kind string)

	// EmitRequestSize reports the size of a client query on the wire.
	EmitRequestSize(bytes int64, client net.Addr)

	// EmitResponseSize reports the size of the reply written to a client.
	EmitResponseSize(bytes int64, client net.Addr)

	// EmitRTT reports the end-to-end latency of serving a single query, from the moment the
	// datagram was read to the moment the reply was written.
	EmitRTT(latency time.Duration, client net.Addr, decision string)

	// EmitUpstreamLatency reports the latency of a successful upstream exchange.
	EmitUpstreamLatency(latency time.Duration, upstream string)

	// EmitError reports the occurrence of a critical error that caused a query to not be served.
	EmitError()
}

// AsyncStatsdConnectionLifecycleHook is an implementation of ConnectionLifecycleHook that outputs
// metrics asynchronously to statsd.
type AsyncStatsdConnectionLifecycleHook struct {
	client *StatsdClient
	source string
}

// AsyncStatsdConnectionIOHook is an implementation of ConnectionIOHook that outputs metrics
// asynchronously to statsd.
type AsyncStatsdConnectionIOHook struct {
	client *StatsdClient
	source string
}

// AsyncStatsdFilterHook is an implementation of FilterHook that outputs metrics asynchronously to
// statsd.
type AsyncStatsdFilterHook struct {
	client *StatsdClient
}

// NoopConnectionLifecycleHook implements the ConnectionLifecycleHook interface but noops on all
// emissions.
type NoopConnectionLifecycleHook struct{}

// NoopConnectionIOHook implements the ConnectionIOHook interface but noops on all emissions.
type NoopConnectionIOHook struct{}

// NoopFilterHook implements the FilterHook interface but noops on all emissions.
type NoopFilterHook struct{}

// NewAsyncStatsdConnectionLifecycleHook creates a new hook with the specified source, statsd
// address, and statsd sample rate. The source denotes the entity towards which sockets are opened.
func NewAsyncStatsdConnectionLifecycleHook(source string, addr string, sampleRate float32, version string) (ConnectionLifecycleHook, error) {
	client, err := statsdClientFactory(addr, sampleRate, version)
	if err != nil {
		return nil, err
	}

	return &AsyncStatsdConnectionLifecycleHook{
		client: client,
		source: source,
	}, nil
}

// EmitConnectionOpen statsd implementation
func (h *AsyncStatsdConnectionLifecycleHook) EmitConnectionOpen(latency time.Duration, addr net.Addr) {
	go func() {
		tags := map[string]string{"addr": ipFromAddr(addr)}

		h.client.Count(fmt.Sprintf("event.%s.cx_open", h.source), 1, tags)

		if latency > 0 {
			h.client.Timing(fmt.Sprintf("latency.%s.cx_open", h.source), latency, tags)
		}
	}()
}

// EmitConnectionClose statsd implementation
func (h *AsyncStatsdConnectionLifecycleHook) EmitConnectionClose(addr net.Addr) {
	go h.client.Count(fmt.Sprintf("event.%s.cx_close", h.source), 1, map[string]string{
		"addr": ipFromAddr(addr),
	})
}

// EmitConnectionError statsd implementation
func (h *AsyncStatsdConnectionLifecycleHook) EmitConnectionError() {
	go h.client.Count(fmt.Sprintf("event.%s.cx_error", h.source), 1, nil)
}

// NewNoopConnectionLifecycleHook creates a noop implementation of ConnectionLifecycleHook.
func NewNoopConnectionLifecycleHook() ConnectionLifecycleHook {
	return &NoopConnectionLifecycleHook{}
}

// EmitConnectionOpen noops.
func (h *NoopConnectionLifecycleHook) EmitConnectionOpen(latency time.Duration, addr net.Addr) {}

// EmitConnectionClose noops.
func (h *NoopConnectionLifecycleHook) EmitConnectionClose(addr net.Addr) {}

// EmitConnectionError noops.
func (h *NoopConnectionLifecycleHook) EmitConnectionError() {}

// NewAsyncStatsdConnectionIOHook creates a new hook with the specified source, statsd address, and
// statsd sample rate. The source denotes the entity with whom the server is performing I/O.
func NewAsyncStatsdConnectionIOHook(source string, addr string, sampleRate float32, version string) (ConnectionIOHook, error) {
	client, err := statsdClientFactory(addr, sampleRate, version)
	if err != nil {
		return nil, err
	}

	return &AsyncStatsdConnectionIOHook{
		client: client,
		source: source,
	}, nil
}

// EmitRead statsd implementation.
func (h *AsyncStatsdConnectionIOHook) EmitRead(latency time.Duration, addr net.Addr) {
	go h.client.Timing(fmt.Sprintf("latency.%s.read", h.source), latency, map[string]string{
		"addr": ipFromAddr(addr),
	})
}

// EmitReadError statsd implementation.
func (h *AsyncStatsdConnectionIOHook) EmitReadError(addr net.Addr) {
	go h.client.Count(fmt.Sprintf("event.%s.read_error", h.source), 1, map[string]string{
		"addr": ipFromAddr(addr),
	})
}

// EmitWrite statsd implementation.
func (h *AsyncStatsdConnectionIOHook) EmitWrite(latency time.Duration, addr net.Addr) {
	go h.client.Timing(fmt.Sprintf("latency.%s.write", h.source), latency, map[string]string{
		"addr": ipFromAddr(addr),
	})
}

// EmitWriteError statsd implementation.
func (h *AsyncStatsdConnectionIOHook) EmitWriteError(addr net.Addr) {
	go h.client.Count(fmt.Sprintf("event.%s.write_error", h.source), 1, map[string]string{
		"addr": ipFromAddr(addr),
	})
}

// NewNoopConnectionIOHook creates a noop implementation of ConnectionIOHook.
func NewNoopConnectionIOHook() ConnectionIOHook {
	return &NoopConnectionIOHook{}
}

// EmitRead noops.
func (h *NoopConnectionIOHook) EmitRead(latency time.Duration, addr net.Addr) {}

// EmitReadError noops.
func (h *NoopConnectionIOHook) EmitReadError(addr net.Addr) {}

// EmitWrite noops.
func (h *NoopConnectionIOHook) EmitWrite(latency time.Duration, addr net.Addr) {}

// EmitWriteError noops.
func (h *NoopConnectionIOHook) EmitWriteError(addr net.Addr) {}

// NewAsyncStatsdFilterHook creates a new hook with the specified statsd address and sample rate.
func NewAsyncStatsdFilterHook(addr string, sampleRate float32, version string) (FilterHook, error) {
	client, err := statsdClientFactory(addr, sampleRate, version)
	if err != nil {
		return nil, err
	}

	return &AsyncStatsdFilterHook{client}, nil
}

// EmitDecision statsd implementation
func (h *AsyncStatsdFilterHook) EmitDecision(decision string) {
	go h.client.Count("event.filter.decision", 1, map[string]string{
		"decision": decision,
	})
}

// EmitParseError statsd implementation
func (h *AsyncStatsdFilterHook) EmitParseError(kind string) {
	go h.client.Count("event.filter.parse_error", 1, map[string]string{
		"kind": kind,
	})
}

// EmitForwardError statsd implementation
func (h *AsyncStatsdFilterHook) EmitForwardError(kind string) {
	go h.client.Count("event.filter.forward_error", 1, map[string]string{
		"kind": kind,
	})
}

// EmitRequestSize statsd implementation
func (h *AsyncStatsdFilterHook) EmitRequestSize(bytes int64, client net.Addr) {
	go h.client.Size("size.filter.request", bytes, map[string]string{
		"addr": ipFromAddr(client),
	})
}

// EmitResponseSize statsd implementation
func (h *AsyncStatsdFilterHook) EmitResponseSize(bytes int64, client net.Addr) {
	go h.client.Size("size.filter.response", bytes, map[string]string{
		"addr": ipFromAddr(client),
	})
}

// EmitRTT statsd implementation
func (h *AsyncStatsdFilterHook) EmitRTT(latency time.Duration, client net.Addr, decision string) {
	go h.client.Timing("latency.filter.tx_rtt", latency, map[string]string{
		"client":   ipFromAddr(client),
		"decision": decision,
	})
}

// EmitUpstreamLatency statsd implementation
func (h *AsyncStatsdFilterHook) EmitUpstreamLatency(latency time.Duration, upstream string) {
	go h.client.Timing("latency.filter.tx_upstream", latency, map[string]string{
		"upstream": upstream,
	})
}

// EmitError statsd implementation
func (h *AsyncStatsdFilterHook) EmitError() {
	go h.client.Count("event.filter.error", 1, nil)
}

// NewNoopFilterHook creates a noop implementation of FilterHook.
func NewNoopFilterHook() FilterHook {
	return &NoopFilterHook{}
}

// EmitDecision noops.
func (h *NoopFilterHook) EmitDecision(decision string) {}

// EmitParseError noops.
func (h *NoopFilterHook) EmitParseError(kind string) {}

// EmitForwardError noops.
func (h *NoopFilterHook) EmitForwardError(kind string) {}

// EmitRequestSize noops.
func (h *NoopFilterHook) EmitRequestSize(bytes int64, client net.Addr) {}

// EmitResponseSize noops.
func (h *NoopFilterHook) EmitResponseSize(bytes int64, client net.Addr) {}

// EmitRTT noops.
func (h *NoopFilterHook) EmitRTT(latency time.Duration, client net.Addr, decision string) {}

// EmitUpstreamLatency noops.
func (h *NoopFilterHook) EmitUpstreamLatency(latency time.Duration, upstream string) {}

// EmitError noops.
func (h *NoopFilterHook) EmitError() {}

// statsdClientFactory creates a configured StatsdClient with reasonable defaults for the given
// statsd server address and sample rate.
func statsdClientFactory(addr string, sampleRate float32, version string) (*StatsdClient, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, err
	}

	defaultTags := map[string]string{
		"host": hostname,
	}
	if version != "" {
		defaultTags["version"] = version
	}

	return NewStatsdClient(addr, "dnssink", defaultTags, sampleRate)
}

// ipFromAddr returns the IP address from a full net.Addr, or null if unavailable.
func ipFromAddr(addr net.Addr) string {
	switch networkAddr := addr.(type) {
	case *net.UDPAddr:
		return networkAddr.IP.String()
	case *net.TCPAddr:
		return networkAddr.IP.String()
	default:
		return "null"
	}
}
