package capture

import (
	"errors"
	"strings"

	"github.com/jward/understory/expr"
)

// MaxDepth bounds expression-tree recursion. Trees nested deeper than
// this abort with ErrTooDeep instead of exhausting the call stack.
const MaxDepth = 512

// ErrTooDeep is returned when an expression tree nests beyond MaxDepth.
var ErrTooDeep = errors.New("expression tree exceeds maximum depth")

// specialForms are identifier-shaped names that are language keywords,
// never variables.
var specialForms = map[string]struct{}{
	"__MODULE__":     {},
	"__DIR__":        {},
	"__ENV__":        {},
	"__CALLER__":     {},
	"__STACKTRACE__": {},
	"when":           {},
	"and":            {},
	"or":             {},
	"not":            {},
	"in":             {},
}

// Collect walks an expression tree under a set of locally bound names
// and returns, in source order, every variable read the bound set does
// not satisfy. bound is never modified: binding constructs extend it by
// copy for exactly the sub-trees their bindings cover, so sibling
// branches cannot see each other's names. The only error is ErrTooDeep.
func Collect(node expr.Node, bound NameSet) ([]Ref, error) {
	c := &collector{}
	if err := c.walk(node, bound); err != nil {
		return nil, err
	}
	return c.refs, nil
}

type collector struct {
	refs  []Ref
	depth int
}

// reference records one identifier read unless the name is the
// wildcard, a keyword, or already bound. Names carrying the attribute
// sigil are attribute reads, never locals.
func (c *collector) reference(name string, loc expr.Loc, bound NameSet) {
	if name == "" || name == "_" {
		return
	}
	if _, ok := specialForms[name]; ok {
		return
	}
	if strings.HasPrefix(name, "@") {
		return
	}
	if bound.Has(name) {
		return
	}
	c.refs = append(c.refs, Ref{Name: name, Line: loc.Line, Col: loc.Col})
}

// pins records a pattern's pinned names as references, subject to the
// same bound filter as identifiers: a pin of a locally bound name reads
// that binding, not an enclosing scope.
func (c *collector) pins(pattern expr.Node, bound NameSet) {
	for _, p := range Pins(pattern) {
		if bound.Has(p.Name) {
			continue
		}
		c.refs = append(c.refs, p)
	}
}

func (c *collector) walk(n expr.Node, bound NameSet) error {
	if n == nil {
		return nil
	}
	if c.depth >= MaxDepth {
		return ErrTooDeep
	}
	c.depth++
	defer func() { c.depth-- }()

	switch n := n.(type) {
	case *expr.Var:
		c.reference(n.Name, n.Loc(), bound)

	case *expr.Attr:
		// attribute reads resolve by bare name against the module
		// scope, through the same bound check as any identifier
		c.reference(n.Name, n.Loc(), bound)

	case *expr.Pin:
		// a pin reaching expression position still reads its target
		return c.walk(n.Target, bound)

	case *expr.Atom, *expr.Lit, *expr.Unknown:
		// no references

	case *expr.Call:
		// the head symbol is a call target, not a read
		for _, a := range n.Args {
			if err := c.walk(a, bound); err != nil {
				return err
			}
		}

	case *expr.Remote:
		// receiver and message name are never references
		for _, a := range n.Args {
			if err := c.walk(a, bound); err != nil {
				return err
			}
		}

	case *expr.Fn:
		for _, cl := range n.Clauses {
			cb := bound
			for _, p := range cl.Params {
				cb = cb.Union(Bindings(p))
			}
			if err := c.walk(cl.Guard, cb); err != nil {
				return err
			}
			if err := c.walk(cl.Body, cb); err != nil {
				return err
			}
		}

	case *expr.Case:
		if err := c.walk(n.Subject, bound); err != nil {
			return err
		}
		return c.branches(n.Branches, bound)

	case *expr.Cond:
		return c.branches(n.Branches, bound)

	case *expr.Receive:
		if err := c.branches(n.Branches, bound); err != nil {
			return err
		}
		if n.After != nil {
			if err := c.walk(n.After.Pattern, bound); err != nil {
				return err
			}
			return c.walk(n.After.Body, bound)
		}

	case *expr.Try:
		if err := c.walk(n.Body, bound); err != nil {
			return err
		}
		for _, group := range [][]*expr.Branch{n.Rescue, n.Catch, n.Else} {
			if err := c.branches(group, bound); err != nil {
				return err
			}
		}
		return c.walk(n.After, bound)

	case *expr.With:
		running := bound
		for _, wc := range n.Clauses {
			if wc == nil {
				continue
			}
			if err := c.walk(wc.Source, running); err != nil {
				return err
			}
			running = running.Union(Bindings(wc.Pattern))
		}
		if err := c.walk(n.Body, running); err != nil {
			return err
		}
		return c.branches(n.Else, running)

	case *expr.For:
		running := bound
		for _, fc := range n.Clauses {
			if fc == nil {
				continue
			}
			if fc.Pattern != nil {
				if err := c.walk(fc.Source, running); err != nil {
					return err
				}
				running = running.Union(Bindings(fc.Pattern))
			} else if err := c.walk(fc.Filter, running); err != nil {
				return err
			}
		}
		// the accumulator target sees the enclosing scope, not the
		// generators' bindings
		if err := c.walk(n.Into, bound); err != nil {
			return err
		}
		return c.walk(n.Body, running)

	case *expr.Match:
		// the value may reference names the pattern is about to bind
		// over; folding the pattern's bindings into subsequent
		// statements is the enclosing block's job
		if err := c.walk(n.Value, bound); err != nil {
			return err
		}
		c.pins(n.Pattern, bound)

	case *expr.Block:
		running := bound
		for _, stmt := range n.Exprs {
			if err := c.walk(stmt, running); err != nil {
				return err
			}
			if m, ok := stmt.(*expr.Match); ok {
				running = running.Union(matchBindings(m))
			}
		}

	case *expr.List:
		for _, it := range n.Items {
			if err := c.walk(it, bound); err != nil {
				return err
			}
		}
		return c.walk(n.Tail, bound)

	case *expr.Tuple:
		for _, it := range n.Items {
			if err := c.walk(it, bound); err != nil {
				return err
			}
		}

	case *expr.Pair:
		if err := c.walk(n.Key, bound); err != nil {
			return err
		}
		return c.walk(n.Value, bound)

	case *expr.Map:
		if err := c.walk(n.Update, bound); err != nil {
			return err
		}
		for _, e := range n.Entries {
			if e == nil {
				continue
			}
			if err := c.walk(e.Key, bound); err != nil {
				return err
			}
			if err := c.walk(e.Value, bound); err != nil {
				return err
			}
		}

	case *expr.Struct:
		if n.Map != nil {
			return c.walk(n.Map, bound)
		}

	case *expr.Binary:
		for _, seg := range n.Segments {
			if seg == nil {
				continue
			}
			if err := c.walk(seg.Value, bound); err != nil {
				return err
			}
			if err := c.walk(seg.Size, bound); err != nil {
				return err
			}
		}

	case *expr.When:
		// a guarded pattern reaching expression position
		if err := c.walk(n.Pattern, bound); err != nil {
			return err
		}
		return c.walk(n.Guard, bound)
	}
	return nil
}

// branches scans branch arms under the outer bound. Each arm's pattern
// pins are collected first, then the guard and body see the arm's own
// bindings; arms never see each other's bindings.
func (c *collector) branches(bs []*expr.Branch, bound NameSet) error {
	for _, b := range bs {
		if b == nil {
			continue
		}
		c.pins(b.Pattern, bound)
		bb := bound.Union(Bindings(b.Pattern))
		if err := c.walk(b.Guard, bb); err != nil {
			return err
		}
		if err := c.walk(b.Body, bb); err != nil {
			return err
		}
	}
	return nil
}

// matchBindings returns everything a match statement binds, including
// the intermediate patterns of a chained a = b = expr.
func matchBindings(m *expr.Match) NameSet {
	set := Bindings(m.Pattern)
	v := m.Value
	for {
		inner, ok := v.(*expr.Match)
		if !ok {
			return set
		}
		set = set.Union(Bindings(inner.Pattern))
		v = inner.Value
	}
}
