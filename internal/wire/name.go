package wire

import (
	"fmt"
	"strings"
)

// MaxNameLen is the maximum length of an encoded domain name, including length bytes and the
// terminating root label.
const MaxNameLen = 255

// MaxLabelLen is the maximum length of a single label.
const MaxLabelLen = 63

// Name is a domain name held as its sequence of labels, exactly as they appeared on the wire (case
// included). The root label is implicit.
type Name struct {
	labels [][]byte
}

// NewName builds a Name from its presentation form, e.g. "ads.example.com" or "ads.example.com.".
// The empty string and "." denote the root name.
func NewName(s string) (Name, error) {
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return Name{}, nil
	}

	var labels [][]byte
	wireLen := 1
	for _, label := range strings.Split(s, ".") {
		if len(label) == 0 {
			return Name{}, fmt.Errorf("wire: empty label in name: name=%q", s)
		}
		if len(label) > MaxLabelLen {
			return Name{}, fmt.Errorf("wire: label exceeds %d octets: name=%q", MaxLabelLen, s)
		}

		wireLen += 1 + len(label)
		labels = append(labels, []byte(label))
	}

	if wireLen > MaxNameLen {
		return Name{}, fmt.Errorf("wire: name exceeds %d octets: name=%q", MaxNameLen, s)
	}

	return Name{labels: labels}, nil
}

// Labels returns the labels of the name, root excluded.
func (n Name) Labels() []string {
	labels := make([]string, len(n.labels))
	for i, label := range n.labels {
		labels[i] = string(label)
	}

	return labels
}

// WireLen is the number of octets the name occupies when encoded.
func (n Name) WireLen() int {
	size := 1
	for _, label := range n.labels {
		size += 1 + len(label)
	}

	return size
}

// String returns the dot-joined name in its original case, without a trailing dot.
func (n Name) String() string {
	return strings.Join(n.Labels(), ".")
}

// Key returns the canonical form of the name: ASCII-lowercased, dot-joined, no trailing dot. Two
// encodings of a name that differ only in case share a key.
func (n Name) Key() string {
	var b strings.Builder
	b.Grow(n.WireLen())

	for i, label := range n.labels {
		if i > 0 {
			b.WriteByte('.')
		}
		for _, c := range label {
			b.WriteByte(lowerASCII(c))
		}
	}

	return b.String()
}

// FQDN returns the name in the escaped, fully-qualified presentation form used by
// github.com/miekg/dns. Backslashes and bytes outside printable ASCII are escaped, so packing the
// result reproduces the original label bytes.
func (n Name) FQDN() string {
	if len(n.labels) == 0 {
		return "."
	}

	var b strings.Builder
	b.Grow(n.WireLen())

	for _, label := range n.labels {
		for _, c := range label {
			switch {
			case c == '\\' || c == '.':
				b.WriteByte('\\')
				b.WriteByte(c)
			case c < '!' || c > '~':
				fmt.Fprintf(&b, "\\%03d", c)
			default:
				b.WriteByte(c)
			}
		}
		b.WriteByte('.')
	}

	return b.String()
}

// Equal reports whether two names have byte-identical labels.
func (n Name) Equal(other Name) bool {
	if len(n.labels) != len(other.labels) {
		return false
	}
	for i := range n.labels {
		if string(n.labels[i]) != string(other.labels[i]) {
			return false
		}
	}

	return true
}

// CanonicalKey normalizes a presentation-form name into the same key space as Name.Key.
func CanonicalKey(s string) string {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")

	b := []byte(s)
	for i, c := range b {
		b[i] = lowerASCII(c)
	}

	return string(b)
}

// DNS names compare case-insensitively over ASCII only.
func lowerASCII(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}

	return c
}
