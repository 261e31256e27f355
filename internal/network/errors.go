//go:generate go run golang.org/x/tools/cmd/stringer -type=ForwardErrorKind -linecomment=true

package network

import (
	"fmt"
)

// ForwardErrorKind classifies a failed upstream exchange.
type ForwardErrorKind int

const (
	// Timeout means no reply arrived within the exchange deadline.
	Timeout ForwardErrorKind = iota // timeout
	// NetworkUnreachable means the upstream could not be reached at all.
	NetworkUnreachable // unreachable
	// UpstreamRefused means the upstream host actively refused the datagram.
	UpstreamRefused // refused
	// BadResponse means the upstream replied with a datagram too short to be a DNS message.
	BadResponse // bad response
)

// ForwardError describes a failed exchange with the upstream resolver.
type ForwardError struct {
	Kind ForwardErrorKind
	Addr string
	Err  error
}

// Error implements the error interface.
func (e *ForwardError) Error() string {
	return fmt.Sprintf("client: upstream exchange failed: kind=%s addr=%s err=%v", e.Kind, e.Addr, e.Err)
}

// Unwrap returns the underlying network error.
func (e *ForwardError) Unwrap() error {
	return e.Err
}
