package protocol

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"net"
	"testing"

	"github.com/miekg/dns"

	"dnssink/internal/log"
	"dnssink/internal/metrics"
	"dnssink/internal/network"
	"dnssink/internal/policy"
)

// fakeConn is a net.Conn holding one inbound datagram and capturing writes.
type fakeConn struct {
	net.Conn

	req      []byte
	read     bool
	written  [][]byte
	writeErr error
}

func (c *fakeConn) Read(buf []byte) (int, error) {
	if c.read {
		return 0, errors.New("already read")
	}
	c.read = true
	return copy(buf, c.req), nil
}

func (c *fakeConn) Write(buf []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.written = append(c.written, append([]byte{}, buf...))
	return len(buf), nil
}

func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(192, 0, 2, 1), Port: 5353}
}

// fakeClient is a network.Client with a canned exchange.
type fakeClient struct {
	exchange func(req []byte) ([]byte, error)
	calls    int
}

func (c *fakeClient) Exchange(ctx context.Context, req []byte) ([]byte, error) {
	c.calls++
	return c.exchange(req)
}

func (c *fakeClient) Addr() string {
	return "192.0.2.53:53"
}

func (c *fakeClient) Stats() network.Stats {
	return network.Stats{}
}

func newTestHandler(upstream network.Client) *DNSFilterHandler {
	return &DNSFilterHandler{
		Policy:         policy.NewSet([]string{"ads.example.com"}),
		Upstream:       upstream,
		ClientCxIOHook: metrics.NewNoopConnectionIOHook(),
		FilterHook:     metrics.NewNoopFilterHook(),
		Logger:         log.NewWriterLogger(log.Debug, ioutil.Discard),
		Opts: DNSFilterOpts{
			SinkAddr: net.IPv4zero,
			BlockTTL: DefaultBlockTTL,
		},
	}
}

func packedQuery(t *testing.T, name string, qtype uint16) (*dns.Msg, []byte) {
	t.Helper()

	m := new(dns.Msg)
	m.SetQuestion(name, qtype)

	req, err := m.Pack()
	if err != nil {
		t.Fatal(err)
	}

	return m, req
}

func unpackReply(t *testing.T, conn *fakeConn) *dns.Msg {
	t.Helper()

	if len(conn.written) != 1 {
		t.Fatalf("expected exactly one reply, got %d", len(conn.written))
	}

	reply := new(dns.Msg)
	if err := reply.Unpack(conn.written[0]); err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	return reply
}

func TestHandleBlockedQuery(t *testing.T) {
	upstream := &fakeClient{exchange: func([]byte) ([]byte, error) { return nil, errors.New("unexpected") }}
	handler := newTestHandler(upstream)

	for _, name := range []string{"ads.example.com.", "ADS.Example.Com."} {
		query, req := packedQuery(t, name, dns.TypeA)
		conn := &fakeConn{req: req}

		if err := handler.Handle(context.Background(), conn); err != nil {
			t.Fatalf("%s: Handle: %v", name, err)
		}

		reply := unpackReply(t, conn)
		if reply.Id != query.Id || !reply.Response || !reply.Authoritative {
			t.Errorf("%s: unexpected header: %+v", name, reply.MsgHdr)
		}
		if len(reply.Question) != 1 || reply.Question[0].Name != name {
			t.Errorf("%s: question not echoed: %v", name, reply.Question)
		}
		if len(reply.Answer) != 1 {
			t.Fatalf("%s: expected one answer, got %d", name, len(reply.Answer))
		}

		a, ok := reply.Answer[0].(*dns.A)
		if !ok || !a.A.Equal(net.IPv4zero) || a.Hdr.Ttl != 60 {
			t.Errorf("%s: unexpected answer: %v", name, reply.Answer[0])
		}
	}

	if upstream.calls != 0 {
		t.Errorf("blocked queries reached the upstream %d times", upstream.calls)
	}
}

func TestHandleAllowedQueryRelaysVerbatim(t *testing.T) {
	var upstreamReply []byte

	upstream := &fakeClient{exchange: func(req []byte) ([]byte, error) {
		query := new(dns.Msg)
		if err := query.Unpack(req); err != nil {
			return nil, err
		}

		reply := new(dns.Msg)
		reply.SetReply(query)
		reply.Answer = append(reply.Answer, &dns.A{
			Hdr: dns.RR_Header{Name: query.Question[0].Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 300},
			A:   net.ParseIP("93.184.216.34"),
		})

		packed, err := reply.Pack()
		upstreamReply = packed
		return packed, err
	}}

	handler := newTestHandler(upstream)
	_, req := packedQuery(t, "sub.ads.example.com.", dns.TypeA)
	conn := &fakeConn{req: req}

	if err := handler.Handle(context.Background(), conn); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if upstream.calls != 1 {
		t.Fatalf("upstream called %d times; want 1", upstream.calls)
	}
	if len(conn.written) != 1 || !bytes.Equal(conn.written[0], upstreamReply) {
		t.Errorf("upstream reply not relayed verbatim")
	}
}

func TestHandleUpstreamFailureRepliesServFail(t *testing.T) {
	upstream := &fakeClient{exchange: func([]byte) ([]byte, error) {
		return nil, &network.ForwardError{Kind: network.Timeout, Addr: "192.0.2.53:53"}
	}}

	handler := newTestHandler(upstream)
	query, req := packedQuery(t, "example.com.", dns.TypeA)
	conn := &fakeConn{req: req}

	if err := handler.Handle(context.Background(), conn); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	reply := unpackReply(t, conn)
	if reply.Id != query.Id || reply.Rcode != dns.RcodeServerFailure {
		t.Errorf("unexpected reply: id=%d rcode=%d", reply.Id, reply.Rcode)
	}
	if len(reply.Answer) != 0 || reply.Authoritative {
		t.Errorf("SERVFAIL must carry no answers and no AA bit: %v", reply)
	}
	if len(reply.Question) != 1 || reply.Question[0].Name != "example.com." {
		t.Errorf("question not echoed: %v", reply.Question)
	}
}

func TestHandleDropsMalformedDatagram(t *testing.T) {
	upstream := &fakeClient{exchange: func([]byte) ([]byte, error) { return nil, errors.New("unexpected") }}
	handler := newTestHandler(upstream)

	malformed := [][]byte{
		{0x12},
		{0x12, 0x34, 0x01, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05, 'a'},
		{0x12, 0x34, 0x01, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xc0, 0x0c},
	}

	for _, req := range malformed {
		conn := &fakeConn{req: req}

		if err := handler.Handle(context.Background(), conn); err != nil {
			t.Errorf("malformed datagram %x returned error %v; want silent drop", req, err)
		}
		if len(conn.written) != 0 {
			t.Errorf("malformed datagram %x got a reply", req)
		}
	}

	if upstream.calls != 0 {
		t.Errorf("malformed datagrams reached the upstream")
	}
}

func TestHandleReportsClientWriteFailure(t *testing.T) {
	handler := newTestHandler(&fakeClient{})
	_, req := packedQuery(t, "ads.example.com.", dns.TypeA)

	conn := &fakeConn{req: req, writeErr: errors.New("socket closed")}
	if err := handler.Handle(context.Background(), conn); err == nil {
		t.Error("expected an error when the reply cannot be written")
	}
}
