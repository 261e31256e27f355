// Package wire implements the subset of the DNS message format this service reads: a single-question
// query datagram. Every length byte read from the network is treated as untrusted; malformed input
// yields a *ParseError rather than a panic or an out-of-bounds read.
package wire
