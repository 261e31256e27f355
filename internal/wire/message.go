package wire

// HeaderLen is the fixed size of a DNS message header.
const HeaderLen = 12

// MaxMessageSize is the largest datagram the service will read or write.
const MaxMessageSize = 65535

// Record types.
const (
	TypeA    uint16 = 1
	TypeAAAA uint16 = 28
)

// ClassINET is the Internet class.
const ClassINET uint16 = 1

// Header flag bits.
const (
	FlagQR uint16 = 1 << 15 // response
	FlagAA uint16 = 1 << 10 // authoritative answer
	FlagTC uint16 = 1 << 9  // truncated
	FlagRD uint16 = 1 << 8  // recursion desired
	FlagRA uint16 = 1 << 7  // recursion available
	FlagZ  uint16 = 1 << 6  // reserved
	FlagAD uint16 = 1 << 5  // authentic data
	FlagCD uint16 = 1 << 4  // checking disabled

	opcodeMask uint16 = 0x7800
)

// Header is the identifying part of the DNS header: the transaction id and the flags word. Section
// counts are consumed by Parse and not retained.
type Header struct {
	ID    uint16
	Flags uint16
}

// Response reports whether the QR bit is set.
func (h Header) Response() bool {
	return h.Flags&FlagQR != 0
}

// Authoritative reports whether the AA bit is set.
func (h Header) Authoritative() bool {
	return h.Flags&FlagAA != 0
}

// RecursionDesired reports whether the RD bit is set.
func (h Header) RecursionDesired() bool {
	return h.Flags&FlagRD != 0
}

// Opcode returns the four-bit operation code.
func (h Header) Opcode() uint8 {
	return uint8((h.Flags & opcodeMask) >> 11)
}

// Question is the single entry of a query's question section.
type Question struct {
	Name  Name
	Type  uint16
	Class uint16
}

// Query is a parsed single-question DNS query.
type Query struct {
	Header   Header
	Question Question
}
