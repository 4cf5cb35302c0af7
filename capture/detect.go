package capture

import (
	"sort"

	"github.com/jward/understory/expr"
)

// FreeVariable is one name free relative to a closure, with every
// location that read it.
type FreeVariable struct {
	Name  string
	Count int
	Refs  []Ref
	Site  expr.Loc // location of the capturing construct
}

// Analysis is the free/bound partition of a closure's references.
type Analysis struct {
	FreeVariables     []FreeVariable
	BoundVariables    []string
	AllReferences     []string
	HasCaptures       bool
	TotalCaptureCount int
}

// Detect partitions collected references against a closure's full
// bound-name set: a name is free iff it is not in bound. Free
// variables are sorted by name for determinism, and AllReferences is
// the deduplicated name set of every reference, free or bound.
func Detect(refs []Ref, bound NameSet, site expr.Loc) *Analysis {
	groups := make(map[string][]Ref)
	for _, r := range refs {
		groups[r.Name] = append(groups[r.Name], r)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	a := &Analysis{
		BoundVariables: bound.Sorted(),
		AllReferences:  names,
	}
	for _, name := range names {
		if bound.Has(name) {
			continue
		}
		g := groups[name]
		a.FreeVariables = append(a.FreeVariables, FreeVariable{
			Name:  name,
			Count: len(g),
			Refs:  g,
			Site:  site,
		})
		a.TotalCaptureCount += len(g)
	}
	a.HasCaptures = len(a.FreeVariables) > 0
	return a
}
