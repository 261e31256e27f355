//go:generate go run golang.org/x/tools/cmd/stringer -type=ParseErrorKind -linecomment=true

package wire

import (
	"fmt"
)

// ParseErrorKind classifies why a datagram could not be parsed as a query.
type ParseErrorKind int

const (
	// Truncated means a length or fixed-size field would read past the end of the datagram.
	Truncated ParseErrorKind = iota // truncated
	// InvalidLabel means a label length byte exceeds 63. Compression pointers fall in this class.
	InvalidLabel // invalid label
	// NameTooLong means the encoded question name exceeds 255 octets.
	NameTooLong // name too long
	// NotQuery means the QR bit is set: the datagram is itself a response.
	NotQuery // not a query
	// BadQuestionCount means the header does not announce exactly one question.
	BadQuestionCount // bad question count
)

// ParseError describes a datagram that is not a well-formed single-question query.
type ParseError struct {
	Kind ParseErrorKind
	// Offset is the position in the datagram at which parsing failed.
	Offset int
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("wire: malformed query: kind=%s offset=%d", e.Kind, e.Offset)
}

func parseError(kind ParseErrorKind, offset int) error {
	return &ParseError{Kind: kind, Offset: offset}
}
