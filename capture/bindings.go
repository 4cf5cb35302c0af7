package capture

import "github.com/jward/understory/expr"

// Ref is one textual use of a variable name.
type Ref struct {
	Name string
	Line int
	Col  int
}

// maxPatternDepth bounds the pattern walks. Sub-patterns nested deeper
// than this contribute nothing further rather than recursing without
// limit; pattern extraction itself never fails.
const maxPatternDepth = 512

// Bindings returns the set of names a pattern binds. The wildcard "_"
// binds nothing, pinned sub-patterns read rather than bind, map keys
// are not pattern position, and shapes the walker does not recognize
// contribute the empty set.
func Bindings(pattern expr.Node) NameSet {
	var names []string
	patternBindings(pattern, 0, &names)
	return NewNameSet(names...)
}

func patternBindings(n expr.Node, depth int, out *[]string) {
	if n == nil || depth > maxPatternDepth {
		return
	}
	depth++
	switch n := n.(type) {
	case *expr.Var:
		if n.Name != "_" && n.Name != "" {
			*out = append(*out, n.Name)
		}
	case *expr.Pin:
		// ^x matches against the existing value of x; nothing binds
	case *expr.Match:
		patternBindings(n.Pattern, depth, out)
		patternBindings(n.Value, depth, out)
	case *expr.When:
		patternBindings(n.Pattern, depth, out)
	case *expr.List:
		for _, it := range n.Items {
			patternBindings(it, depth, out)
		}
		patternBindings(n.Tail, depth, out)
	case *expr.Tuple:
		for _, it := range n.Items {
			patternBindings(it, depth, out)
		}
	case *expr.Pair:
		patternBindings(n.Key, depth, out)
		patternBindings(n.Value, depth, out)
	case *expr.Map:
		for _, e := range n.Entries {
			if e != nil {
				patternBindings(e.Value, depth, out)
			}
		}
	case *expr.Struct:
		if n.Map != nil {
			for _, e := range n.Map.Entries {
				if e != nil {
					patternBindings(e.Value, depth, out)
				}
			}
		}
	case *expr.Binary:
		for _, seg := range n.Segments {
			if seg != nil {
				patternBindings(seg.Value, depth, out)
			}
		}
	}
}

// Pins returns the pin references (^name) inside a pattern, in pattern
// order. A pin is a read of an already-bound name at pattern position,
// so pinned names are reported unconditionally; plain identifiers are
// bindings and are skipped. Unlike Bindings, map keys are traversed,
// since a pattern key may itself be pinned.
func Pins(pattern expr.Node) []Ref {
	var refs []Ref
	patternPins(pattern, 0, &refs)
	return refs
}

func patternPins(n expr.Node, depth int, out *[]Ref) {
	if n == nil || depth > maxPatternDepth {
		return
	}
	depth++
	switch n := n.(type) {
	case *expr.Pin:
		if v, ok := n.Target.(*expr.Var); ok {
			loc := n.Loc()
			if loc == (expr.Loc{}) {
				loc = v.Loc()
			}
			*out = append(*out, Ref{Name: v.Name, Line: loc.Line, Col: loc.Col})
		}
	case *expr.Match:
		patternPins(n.Pattern, depth, out)
		patternPins(n.Value, depth, out)
	case *expr.When:
		patternPins(n.Pattern, depth, out)
	case *expr.List:
		for _, it := range n.Items {
			patternPins(it, depth, out)
		}
		patternPins(n.Tail, depth, out)
	case *expr.Tuple:
		for _, it := range n.Items {
			patternPins(it, depth, out)
		}
	case *expr.Pair:
		patternPins(n.Key, depth, out)
		patternPins(n.Value, depth, out)
	case *expr.Map:
		for _, e := range n.Entries {
			if e != nil {
				patternPins(e.Key, depth, out)
				patternPins(e.Value, depth, out)
			}
		}
	case *expr.Struct:
		if n.Map != nil {
			for _, e := range n.Map.Entries {
				if e != nil {
					patternPins(e.Key, depth, out)
					patternPins(e.Value, depth, out)
				}
			}
		}
	case *expr.Binary:
		for _, seg := range n.Segments {
			if seg != nil {
				patternPins(seg.Value, depth, out)
			}
		}
	}
}
