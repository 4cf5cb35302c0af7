package understory

import (
	"fmt"

	"github.com/jward/understory/internal/store"
)

// QueryBuilder provides a consumer-facing query API over the Store.
type QueryBuilder struct {
	store *store.Store
}

// NewQueryBuilder creates a QueryBuilder over an existing Store, for
// callers that open the database without an Engine.
func NewQueryBuilder(s *store.Store) *QueryBuilder {
	return &QueryBuilder{store: s}
}

// CaptureSite is one occurrence of a captured variable inside a closure
// body, resolved to its document.
type CaptureSite struct {
	ClosureID int64
	Module    string
	Path      string
	Name      string
	Line      int
	Col       int
}

// ClosuresIn returns every closure declared in the given module, in source
// order. Returns an empty slice if the module is not indexed.
func (q *QueryBuilder) ClosuresIn(module string) ([]ClosureResult, error) {
	rows, err := q.store.DB().Query(
		closureResultSelect+`
		 WHERE d.module = ?
		 ORDER BY c.line, c.col`,
		module,
	)
	if err != nil {
		return nil, fmt.Errorf("closures in: %w", err)
	}
	defer rows.Close()

	var results []ClosureResult
	for rows.Next() {
		cr, err := scanClosureResult(rows)
		if err != nil {
			return nil, fmt.Errorf("closures in: scan: %w", err)
		}
		results = append(results, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("closures in: rows: %w", err)
	}
	if results == nil {
		results = []ClosureResult{}
	}
	return results, nil
}

// FunctionsIn returns the named functions of a module, in source order.
func (q *QueryBuilder) FunctionsIn(module string) ([]store.Function, error) {
	rows, err := q.store.DB().Query(
		`SELECT f.id, f.document_id, f.name, f.arity, f.kind, f.line
		 FROM functions f
		 JOIN documents d ON f.document_id = d.id
		 WHERE d.module = ?
		 ORDER BY f.line`,
		module,
	)
	if err != nil {
		return nil, fmt.Errorf("functions in: %w", err)
	}
	defer rows.Close()

	var fns []store.Function
	for rows.Next() {
		var f store.Function
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.Name, &f.Arity, &f.Kind, &f.Line); err != nil {
			return nil, fmt.Errorf("functions in: scan: %w", err)
		}
		fns = append(fns, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("functions in: rows: %w", err)
	}
	if fns == nil {
		fns = []store.Function{}
	}
	return fns, nil
}

// CapturesOf returns the free variables a closure captures, with their
// occurrence locations. Empty for closures without captures.
func (q *QueryBuilder) CapturesOf(closureID int64) ([]store.FreeVariable, error) {
	fvs, err := q.store.FreeVariablesByClosure(closureID)
	if err != nil {
		return nil, fmt.Errorf("captures of: %w", err)
	}
	if fvs == nil {
		fvs = []store.FreeVariable{}
	}
	return fvs, nil
}

// SourcesOf returns where each of a closure's captured variables is bound:
// the providing scope's level, kind, name, and capture depth.
func (q *QueryBuilder) SourcesOf(closureID int64) ([]store.VariableSource, error) {
	srcs, err := q.store.VariableSourcesByClosure(closureID)
	if err != nil {
		return nil, fmt.Errorf("sources of: %w", err)
	}
	if srcs == nil {
		srcs = []store.VariableSource{}
	}
	return srcs, nil
}

// ScopeChainOf returns a closure's lexical scope chain, ordered from the
// outermost scope (level 0) to the innermost.
func (q *QueryBuilder) ScopeChainOf(closureID int64) ([]store.ClosureScope, error) {
	chain, err := q.store.ScopesByClosure(closureID)
	if err != nil {
		return nil, fmt.Errorf("scope chain of: %w", err)
	}
	if chain == nil {
		chain = []store.ClosureScope{}
	}
	return chain, nil
}

// CaptureSites returns every place a variable name is captured across all
// indexed documents, ordered by document path and position.
func (q *QueryBuilder) CaptureSites(name string) ([]CaptureSite, error) {
	rows, err := q.store.DB().Query(
		`SELECT r.closure_id, d.module, d.path, r.name, r.line, r.col
		 FROM references_ r
		 JOIN closures c ON r.closure_id = c.id
		 JOIN documents d ON c.document_id = d.id
		 WHERE r.name = ?
		 ORDER BY d.path, r.line, r.col`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("capture sites: %w", err)
	}
	defer rows.Close()

	var sites []CaptureSite
	for rows.Next() {
		var cs CaptureSite
		if err := rows.Scan(&cs.ClosureID, &cs.Module, &cs.Path, &cs.Name, &cs.Line, &cs.Col); err != nil {
			return nil, fmt.Errorf("capture sites: scan: %w", err)
		}
		sites = append(sites, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("capture sites: rows: %w", err)
	}
	if sites == nil {
		sites = []CaptureSite{}
	}
	return sites, nil
}

// FactsAbout returns every fact mentioning an entity as subject or object.
func (q *QueryBuilder) FactsAbout(entity string) ([]store.Fact, error) {
	rows, err := q.store.DB().Query(
		`SELECT id, document_id, subject, predicate, object
		 FROM facts
		 WHERE subject = ? OR object = ?
		 ORDER BY predicate, subject, object`,
		entity, entity,
	)
	if err != nil {
		return nil, fmt.Errorf("facts about: %w", err)
	}
	defer rows.Close()

	var facts []store.Fact
	for rows.Next() {
		var f store.Fact
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.Subject, &f.Predicate, &f.Object); err != nil {
			return nil, fmt.Errorf("facts about: scan: %w", err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("facts about: rows: %w", err)
	}
	if facts == nil {
		facts = []store.Fact{}
	}
	return facts, nil
}
