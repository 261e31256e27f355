// Package policy holds the set of blocked domain names consulted for every query.
//
// Matching is exact on the canonical (lowercased, no trailing dot) fully-qualified name. A blocked
// "ads.example.com" does not block "sub.ads.example.com": suffix and wildcard matching are a known
// limitation, not an oversight.
package policy

import (
	"dnssink/internal/wire"
)

// Set is an immutable set of blocked domain names. It is built once at startup and shared by every
// query handler without synchronization.
type Set struct {
	names map[string]struct{}
}

// NewSet builds a Set from presentation-form names. Names are normalized; empty entries are
// skipped.
func NewSet(names []string) *Set {
	set := &Set{names: make(map[string]struct{}, len(names))}

	for _, name := range names {
		if key := wire.CanonicalKey(name); key != "" {
			set.names[key] = struct{}{}
		}
	}

	return set
}

// IsBlocked reports whether the question name is in the set.
func (s *Set) IsBlocked(name wire.Name) bool {
	_, ok := s.names[name.Key()]
	return ok
}

// Contains reports whether a presentation-form name is in the set.
func (s *Set) Contains(name string) bool {
	_, ok := s.names[wire.CanonicalKey(name)]
	return ok
}

// Len returns the number of distinct blocked names.
func (s *Set) Len() int {
	return len(s.names)
}
