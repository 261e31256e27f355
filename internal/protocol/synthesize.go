package protocol

import (
	"net"

	"github.com/miekg/dns"

	"dnssink/internal/wire"
)

// DefaultBlockTTL is the TTL, in seconds, of synthesized block answers. It is short so that caching
// clients re-query periodically rather than caching the block forever.
const DefaultBlockTTL uint32 = 60

// SynthesizeBlock builds the authoritative reply for a blocked query: the query's id, flags and
// question, and exactly one A answer pointing at the sink address. A sink that is not an IPv4
// address falls back to 0.0.0.0, and a zero TTL to DefaultBlockTTL.
func SynthesizeBlock(query *wire.Query, sink net.IP, ttl uint32) *dns.Msg {
	addr := sink.To4()
	if addr == nil {
		addr = net.IPv4zero.To4()
	}

	if ttl == 0 {
		ttl = DefaultBlockTTL
	}

	msg := replyTo(query, dns.RcodeSuccess)
	msg.Authoritative = true
	msg.Answer = []dns.RR{
		&dns.A{
			Hdr: dns.RR_Header{
				Name:   msg.Question[0].Name,
				Rrtype: dns.TypeA,
				Class:  dns.ClassINET,
				Ttl:    ttl,
			},
			A: addr,
		},
	}

	return msg
}

// SynthesizeServFail builds the transient-failure reply sent when the upstream could not be
// consulted: SERVFAIL, no answers, not authoritative.
func SynthesizeServFail(query *wire.Query) *dns.Msg {
	return replyTo(query, dns.RcodeServerFailure)
}

// replyTo derives a reply header and question from a parsed query. SetReply keeps only the id,
// opcode, RD and CD bits, so the remaining query flags are copied back explicitly.
func replyTo(query *wire.Query, rcode int) *dns.Msg {
	flags := query.Header.Flags

	req := &dns.Msg{
		MsgHdr: dns.MsgHdr{
			Id:                 query.Header.ID,
			Opcode:             int(query.Header.Opcode()),
			Truncated:          flags&wire.FlagTC != 0,
			RecursionDesired:   flags&wire.FlagRD != 0,
			RecursionAvailable: flags&wire.FlagRA != 0,
			Zero:               flags&wire.FlagZ != 0,
			AuthenticatedData:  flags&wire.FlagAD != 0,
			CheckingDisabled:   flags&wire.FlagCD != 0,
		},
		Question: []dns.Question{{
			Name:   query.Question.Name.FQDN(),
			Qtype:  query.Question.Type,
			Qclass: query.Question.Class,
		}},
	}

	msg := new(dns.Msg).SetRcode(req, rcode)
	msg.Truncated = req.Truncated
	msg.RecursionDesired = req.RecursionDesired
	msg.RecursionAvailable = req.RecursionAvailable
	msg.Zero = req.Zero
	msg.AuthenticatedData = req.AuthenticatedData
	msg.CheckingDisabled = req.CheckingDisabled
	// Answer owner names become a pointer to the question name.
	msg.Compress = true

	return msg
}
