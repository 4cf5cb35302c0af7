// Package capture implements scope-aware free-variable resolution over
// normalized expression trees: which names an anonymous function reads
// without binding, and how far up the enclosing lexical scopes each
// one is captured from.
package capture

import "github.com/jward/understory/expr"

// Analyze runs free-variable detection over an anonymous function. The
// reported bound set is the union of every clause's parameter bindings;
// references are collected per clause under that clause's own bindings
// only, so clauses never see each other's names.
func Analyze(fn *expr.Fn) (*Analysis, error) {
	bound := NameSet{}
	for _, cl := range fn.Clauses {
		for _, p := range cl.Params {
			bound = bound.Union(Bindings(p))
		}
	}
	var refs []Ref
	for _, cl := range fn.Clauses {
		cb := NameSet{}
		for _, p := range cl.Params {
			cb = cb.Union(Bindings(p))
		}
		gr, err := Collect(cl.Guard, cb)
		if err != nil {
			return nil, err
		}
		refs = append(refs, gr...)
		br, err := Collect(cl.Body, cb)
		if err != nil {
			return nil, err
		}
		refs = append(refs, br...)
	}
	return Detect(refs, bound, fn.Loc()), nil
}

// AnalyzeWithScopes additionally resolves the free names against the
// enclosing scope chain described by descs.
func AnalyzeWithScopes(fn *expr.Fn, descs []ScopeDescriptor) (*Analysis, *ScopeAnalysis, error) {
	a, err := Analyze(fn)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(a.FreeVariables))
	for _, fv := range a.FreeVariables {
		names = append(names, fv.Name)
	}
	return a, Resolve(names, BuildChain(descs)), nil
}
