package capture

import "sort"

// NameSet is an immutable set of variable names. Extending operations
// return a new set and never modify the receiver, so a set can be
// shared across sibling branches of a traversal without leakage.
type NameSet struct {
	names map[string]struct{}
}

// NewNameSet builds a set from the given names. The zero NameSet is an
// empty, usable set.
func NewNameSet(names ...string) NameSet {
	if len(names) == 0 {
		return NameSet{}
	}
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return NameSet{names: m}
}

// Has reports whether name is in the set.
func (s NameSet) Has(name string) bool {
	_, ok := s.names[name]
	return ok
}

// Len returns the number of names in the set.
func (s NameSet) Len() int { return len(s.names) }

// With returns a copy of the set with the given names added.
func (s NameSet) With(names ...string) NameSet {
	if len(names) == 0 {
		return s
	}
	m := make(map[string]struct{}, len(s.names)+len(names))
	for n := range s.names {
		m[n] = struct{}{}
	}
	for _, n := range names {
		m[n] = struct{}{}
	}
	return NameSet{names: m}
}

// Union returns a new set holding every name in either set.
func (s NameSet) Union(other NameSet) NameSet {
	if other.Len() == 0 {
		return s
	}
	if s.Len() == 0 {
		return other
	}
	m := make(map[string]struct{}, len(s.names)+len(other.names))
	for n := range s.names {
		m[n] = struct{}{}
	}
	for n := range other.names {
		m[n] = struct{}{}
	}
	return NameSet{names: m}
}

// Sorted returns the names in lexical order.
func (s NameSet) Sorted() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
