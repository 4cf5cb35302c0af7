package capture

import (
	"fmt"

	"github.com/jward/understory/expr"
)

// ClosureReport is one analyzed anonymous function: where it sits, the
// free/bound partition, and the scope resolution of its free names.
type ClosureReport struct {
	Fn       *expr.Fn
	Function *expr.Function // enclosing named function
	Analysis *Analysis
	Scopes   *ScopeAnalysis
}

// WalkDocument finds and analyzes every anonymous function in a
// document. The walker maintains the enclosing scope stack as it
// descends: the module's attribute names form level 0, each named
// function clause's parameter bindings form a function scope, binding
// branch arms and sequential generators form block scopes, and
// enclosing anonymous functions form closure scopes. Bindings made by
// match statements extend the innermost scope for the statements after
// them. The only error is ErrTooDeep.
func WalkDocument(doc *expr.Document) ([]*ClosureReport, error) {
	w := &walker{}
	attrs := make([]string, 0, len(doc.Attributes))
	for _, a := range doc.Attributes {
		attrs = append(attrs, a.Name)
	}
	w.push(ScopeModule, doc.Module, NewNameSet(attrs...))
	for _, fn := range doc.Functions {
		w.function = fn
		for _, cl := range fn.Clauses {
			names := NameSet{}
			for _, p := range cl.Params {
				names = names.Union(Bindings(p))
			}
			w.push(ScopeFunction, fmt.Sprintf("%s/%d", fn.Name, fn.Arity), names)
			err := w.walk(cl.Body)
			w.pop()
			if err != nil {
				return nil, err
			}
		}
	}
	return w.reports, nil
}

type frame struct {
	kind  ScopeKind
	name  string
	names NameSet
	pos   expr.Loc
}

type walker struct {
	frames   []frame
	function *expr.Function
	reports  []*ClosureReport
	depth    int
}

func (w *walker) push(kind ScopeKind, name string, names NameSet) {
	w.frames = append(w.frames, frame{kind: kind, name: name, names: names})
}

func (w *walker) pop() {
	w.frames = w.frames[:len(w.frames)-1]
}

// extend folds names into the innermost frame.
func (w *walker) extend(names NameSet) {
	if names.Len() == 0 || len(w.frames) == 0 {
		return
	}
	top := &w.frames[len(w.frames)-1]
	top.names = top.names.Union(names)
}

func (w *walker) descriptors() []ScopeDescriptor {
	descs := make([]ScopeDescriptor, len(w.frames))
	for i, f := range w.frames {
		descs[i] = ScopeDescriptor{Kind: f.kind, Name: f.name, Names: f.names, Pos: f.pos}
	}
	return descs
}

func (w *walker) report(fn *expr.Fn) error {
	a, sa, err := AnalyzeWithScopes(fn, w.descriptors())
	if err != nil {
		return err
	}
	w.reports = append(w.reports, &ClosureReport{
		Fn:       fn,
		Function: w.function,
		Analysis: a,
		Scopes:   sa,
	})
	return nil
}

func (w *walker) walk(n expr.Node) error {
	if n == nil {
		return nil
	}
	if w.depth >= MaxDepth {
		return ErrTooDeep
	}
	w.depth++
	defer func() { w.depth-- }()

	switch n := n.(type) {
	case *expr.Fn:
		if err := w.report(n); err != nil {
			return err
		}
		for _, cl := range n.Clauses {
			names := NameSet{}
			for _, p := range cl.Params {
				names = names.Union(Bindings(p))
			}
			w.push(ScopeClosure, "", names)
			err := w.walk(cl.Body)
			w.pop()
			if err != nil {
				return err
			}
		}

	case *expr.Block:
		for _, stmt := range n.Exprs {
			if err := w.walk(stmt); err != nil {
				return err
			}
			if m, ok := stmt.(*expr.Match); ok {
				w.extend(matchBindings(m))
			}
		}

	case *expr.Match:
		// patterns hold no closures, only the value side can
		return w.walk(n.Value)

	case *expr.Case:
		if err := w.walk(n.Subject); err != nil {
			return err
		}
		return w.walkBranches("case", n.Branches)

	case *expr.Cond:
		return w.walkBranches("cond", n.Branches)

	case *expr.Receive:
		if err := w.walkBranches("receive", n.Branches); err != nil {
			return err
		}
		if n.After != nil {
			if err := w.walk(n.After.Pattern); err != nil {
				return err
			}
			return w.walk(n.After.Body)
		}

	case *expr.Try:
		if err := w.walk(n.Body); err != nil {
			return err
		}
		for _, group := range [][]*expr.Branch{n.Rescue, n.Catch, n.Else} {
			if err := w.walkBranches("try", group); err != nil {
				return err
			}
		}
		return w.walk(n.After)

	case *expr.With:
		pushed := false
		for _, wc := range n.Clauses {
			if wc == nil {
				continue
			}
			if err := w.walk(wc.Source); err != nil {
				if pushed {
					w.pop()
				}
				return err
			}
			if b := Bindings(wc.Pattern); b.Len() > 0 {
				if pushed {
					w.extend(b)
				} else {
					w.push(ScopeBlock, "with", b)
					pushed = true
				}
			}
		}
		err := w.walk(n.Body)
		if err == nil {
			err = w.walkBranches("with", n.Else)
		}
		if pushed {
			w.pop()
		}
		return err

	case *expr.For:
		// the accumulator target sits in the enclosing scope
		if err := w.walk(n.Into); err != nil {
			return err
		}
		pushed := false
		for _, fc := range n.Clauses {
			if fc == nil {
				continue
			}
			var err error
			if fc.Pattern != nil {
				if err = w.walk(fc.Source); err == nil {
					if b := Bindings(fc.Pattern); b.Len() > 0 {
						if pushed {
							w.extend(b)
						} else {
							w.push(ScopeBlock, "for", b)
							pushed = true
						}
					}
				}
			} else {
				err = w.walk(fc.Filter)
			}
			if err != nil {
				if pushed {
					w.pop()
				}
				return err
			}
		}
		err := w.walk(n.Body)
		if pushed {
			w.pop()
		}
		return err

	case *expr.Call:
		for _, a := range n.Args {
			if err := w.walk(a); err != nil {
				return err
			}
		}

	case *expr.Remote:
		if err := w.walk(n.Recv); err != nil {
			return err
		}
		for _, a := range n.Args {
			if err := w.walk(a); err != nil {
				return err
			}
		}

	case *expr.Pin:
		return w.walk(n.Target)

	case *expr.List:
		for _, it := range n.Items {
			if err := w.walk(it); err != nil {
				return err
			}
		}
		return w.walk(n.Tail)

	case *expr.Tuple:
		for _, it := range n.Items {
			if err := w.walk(it); err != nil {
				return err
			}
		}

	case *expr.Pair:
		if err := w.walk(n.Key); err != nil {
			return err
		}
		return w.walk(n.Value)

	case *expr.Map:
		if err := w.walk(n.Update); err != nil {
			return err
		}
		for _, e := range n.Entries {
			if e == nil {
				continue
			}
			if err := w.walk(e.Key); err != nil {
				return err
			}
			if err := w.walk(e.Value); err != nil {
				return err
			}
		}

	case *expr.Struct:
		if n.Map != nil {
			return w.walk(n.Map)
		}

	case *expr.Binary:
		for _, seg := range n.Segments {
			if seg == nil {
				continue
			}
			if err := w.walk(seg.Value); err != nil {
				return err
			}
			if err := w.walk(seg.Size); err != nil {
				return err
			}
		}

	case *expr.When:
		if err := w.walk(n.Pattern); err != nil {
			return err
		}
		return w.walk(n.Guard)
	}
	return nil
}

// walkBranches descends into branch arms. An arm whose pattern binds
// names gets a block scope covering its guard and body; arms with no
// bindings add no scope level.
func (w *walker) walkBranches(name string, bs []*expr.Branch) error {
	for _, b := range bs {
		if b == nil {
			continue
		}
		if err := w.walk(b.Pattern); err != nil {
			return err
		}
		names := Bindings(b.Pattern)
		if names.Len() == 0 {
			if err := w.walk(b.Guard); err != nil {
				return err
			}
			if err := w.walk(b.Body); err != nil {
				return err
			}
			continue
		}
		w.push(ScopeBlock, name, names)
		err := w.walk(b.Guard)
		if err == nil {
			err = w.walk(b.Body)
		}
		w.pop()
		if err != nil {
			return err
		}
	}
	return nil
}
