package capture

import "github.com/jward/understory/expr"

// ScopeKind classifies one lexical level.
type ScopeKind uint8

const (
	ScopeModule ScopeKind = iota
	ScopeFunction
	ScopeClosure
	ScopeBlock
)

var scopeKindNames = [...]string{"module", "function", "closure", "block"}

func (k ScopeKind) String() string {
	if int(k) < len(scopeKindNames) {
		return scopeKindNames[k]
	}
	return "unknown"
}

// ScopeDescriptor describes one enclosing lexical scope, supplied by a
// caller walking the containing module, ordered outermost first.
type ScopeDescriptor struct {
	Kind  ScopeKind
	Name  string
	Names NameSet
	Pos   expr.Loc
}

// Scope is one indexed level of a built chain.
type Scope struct {
	Level  int
	Kind   ScopeKind
	Name   string
	Names  NameSet
	Parent int // index of the enclosing level; -1 at the outermost
	Pos    expr.Loc
}

// Chain is an ordered scope hierarchy, outermost (level 0) to
// innermost. Levels are call-scoped: a chain belongs to the analysis
// invocation that built it and is not shared across invocations.
type Chain []Scope

// BuildChain indexes an ordered descriptor list into a Chain.
func BuildChain(descs []ScopeDescriptor) Chain {
	chain := make(Chain, len(descs))
	for i, d := range descs {
		chain[i] = Scope{
			Level:  i,
			Kind:   d.Kind,
			Name:   d.Name,
			Names:  d.Names,
			Parent: i - 1,
			Pos:    d.Pos,
		}
	}
	return chain
}

// ScopeAnalysis maps each resolved free name to its providing scope
// and carries the derived capture metrics.
type ScopeAnalysis struct {
	Chain                    Chain
	VariableSources          map[string]Scope
	CaptureDepth             int
	CrossesFunctionBoundary  bool
	CapturesModuleAttributes bool
}

// Depth returns how many levels separate a providing scope from the
// closure the chain was built for.
func (sa *ScopeAnalysis) Depth(s Scope) int {
	return len(sa.Chain) - s.Level - 1
}

// Resolve maps free names against a chain, innermost scope first.
// Names no scope provides are absent from VariableSources. The closure
// itself sits at level len(chain); a variable's capture depth is the
// number of levels between its providing scope and the closure, and
// CaptureDepth is the maximum over all resolved names (0 when every
// provider is the immediate parent, or nothing resolves).
func Resolve(freeNames []string, chain Chain) *ScopeAnalysis {
	sa := &ScopeAnalysis{
		Chain:           chain,
		VariableSources: make(map[string]Scope),
	}
	closureLevel := len(chain)
	for _, name := range freeNames {
		for i := len(chain) - 1; i >= 0; i-- {
			if !chain[i].Names.Has(name) {
				continue
			}
			scope := chain[i]
			sa.VariableSources[name] = scope
			if d := closureLevel - scope.Level - 1; d > sa.CaptureDepth {
				sa.CaptureDepth = d
			}
			if scope.Kind == ScopeModule {
				sa.CapturesModuleAttributes = true
			}
			for j := scope.Level + 1; j < closureLevel; j++ {
				if chain[j].Kind == ScopeFunction {
					sa.CrossesFunctionBoundary = true
					break
				}
			}
			break
		}
	}
	return sa
}
