package protocol

import (
	"bytes"
	"net"
	"testing"

	"github.com/miekg/dns"

	"dnssink/internal/wire"
)

func parsedQuery(t *testing.T, id uint16, name string, qtype uint16) *wire.Query {
	t.Helper()

	n, err := wire.NewName(name)
	if err != nil {
		t.Fatal(err)
	}

	return &wire.Query{
		Header:   wire.Header{ID: id, Flags: wire.FlagRD},
		Question: wire.Question{Name: n, Type: qtype, Class: wire.ClassINET},
	}
}

func TestSynthesizeBlock(t *testing.T) {
	query := parsedQuery(t, 0x4242, "Ads.Example.com", wire.TypeA)

	resp := SynthesizeBlock(query, net.ParseIP("10.0.0.53"), 60)

	if resp.Id != 0x4242 {
		t.Errorf("id = %#x", resp.Id)
	}
	if !resp.Response || !resp.Authoritative || !resp.RecursionDesired {
		t.Errorf("unexpected flags: %+v", resp.MsgHdr)
	}
	if resp.Rcode != dns.RcodeSuccess {
		t.Errorf("rcode = %d", resp.Rcode)
	}
	if len(resp.Question) != 1 || resp.Question[0].Name != "Ads.Example.com." || resp.Question[0].Qtype != dns.TypeA {
		t.Errorf("question not echoed: %+v", resp.Question)
	}
	if len(resp.Answer) != 1 {
		t.Fatalf("expected exactly one answer, got %d", len(resp.Answer))
	}

	a, ok := resp.Answer[0].(*dns.A)
	if !ok {
		t.Fatalf("answer is %T; want *dns.A", resp.Answer[0])
	}
	if a.Hdr.Name != "Ads.Example.com." || a.Hdr.Class != dns.ClassINET || a.Hdr.Ttl != 60 {
		t.Errorf("unexpected answer header: %+v", a.Hdr)
	}
	if !a.A.Equal(net.IPv4(10, 0, 0, 53)) {
		t.Errorf("answer address = %v", a.A)
	}
}

func TestSynthesizeBlockDefaults(t *testing.T) {
	for _, sink := range []net.IP{nil, net.ParseIP("::1")} {
		resp := SynthesizeBlock(parsedQuery(t, 1, "ads.example.com", wire.TypeAAAA), sink, 0)

		if len(resp.Answer) != 1 {
			t.Fatalf("sink %v: expected one answer", sink)
		}

		a, ok := resp.Answer[0].(*dns.A)
		if !ok {
			t.Fatalf("sink %v: answer is %T; want *dns.A", sink, resp.Answer[0])
		}
		if !a.A.Equal(net.IPv4zero) {
			t.Errorf("sink %v: answer address = %v; want 0.0.0.0", sink, a.A)
		}
		if a.Hdr.Ttl != DefaultBlockTTL {
			t.Errorf("sink %v: ttl = %d", sink, a.Hdr.Ttl)
		}
	}
}

func TestSynthesizeServFail(t *testing.T) {
	query := parsedQuery(t, 7, "example.com", wire.TypeA)

	resp := SynthesizeServFail(query)

	if resp.Id != 7 || !resp.Response || resp.Authoritative {
		t.Errorf("unexpected header: %+v", resp.MsgHdr)
	}
	if resp.Rcode != dns.RcodeServerFailure {
		t.Errorf("rcode = %d; want SERVFAIL", resp.Rcode)
	}
	if len(resp.Answer) != 0 {
		t.Errorf("expected no answers, got %d", len(resp.Answer))
	}
	if len(resp.Question) != 1 || resp.Question[0].Name != "example.com." {
		t.Errorf("question not echoed: %+v", resp.Question)
	}
}

func TestSynthesizePreservesQueryFlags(t *testing.T) {
	query := parsedQuery(t, 9, "example.com", wire.TypeA)
	query.Header.Flags = wire.FlagRD | wire.FlagRA | wire.FlagAD | wire.FlagCD | 2<<11

	for _, resp := range []*dns.Msg{
		SynthesizeServFail(query),
		SynthesizeBlock(query, nil, 0),
	} {
		if resp.Opcode != 2 {
			t.Errorf("opcode = %d; want 2", resp.Opcode)
		}
		if !resp.RecursionDesired || !resp.RecursionAvailable || !resp.AuthenticatedData || !resp.CheckingDisabled {
			t.Errorf("flags not preserved: %+v", resp.MsgHdr)
		}
	}
}

// rawQuery is a query for "W w\\\xff.org" AAAA with RD and CD set.
var rawQuery = []byte{
	0x00, 0x63, 0x01, 0x10, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x05, 'W', ' ', 'w', '\\', 0xff, 0x03, 'o', 'r', 'g', 0x00,
	0x00, 0x1c, 0x00, 0x01,
}

func TestSynthesizedRepliesEchoQuestionBytes(t *testing.T) {
	query, err := wire.Parse(rawQuery)
	if err != nil {
		t.Fatal(err)
	}

	servFail, err := SynthesizeServFail(query).Pack()
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	if !bytes.Equal(servFail[wire.HeaderLen:], rawQuery[wire.HeaderLen:]) {
		t.Errorf("question section differs:\n got %x\nwant %x", servFail[wire.HeaderLen:], rawQuery[wire.HeaderLen:])
	}
	// QR | RD | CD, rcode 2
	if servFail[2] != 0x81 || servFail[3] != 0x12 {
		t.Errorf("flags = %#02x%02x; want 0x8112", servFail[2], servFail[3])
	}

	block, err := SynthesizeBlock(query, net.IPv4(10, 0, 0, 1), 60).Pack()
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	if !bytes.Equal(block[wire.HeaderLen:len(rawQuery)], rawQuery[wire.HeaderLen:]) {
		t.Errorf("question section differs:\n got %x\nwant %x", block[wire.HeaderLen:len(rawQuery)], rawQuery[wire.HeaderLen:])
	}
	// The answer owner is a pointer to the question name at offset 12.
	if block[len(rawQuery)] != 0xc0 || block[len(rawQuery)+1] != 0x0c {
		t.Errorf("answer owner = %x; want c00c", block[len(rawQuery):len(rawQuery)+2])
	}
	if !bytes.Equal(block[len(block)-4:], []byte{10, 0, 0, 1}) {
		t.Errorf("answer data = %v", block[len(block)-4:])
	}
}
