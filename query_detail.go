package understory

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jward/understory/internal/store"
)

// ClosureDetail bundles a closure with its full capture analysis. One call
// replaces five separate Store lookups.
type ClosureDetail struct {
	Closure       ClosureResult          // the closure with document/function context
	FreeVariables []store.FreeVariable   // captured variables with occurrence locations
	References    []store.Reference      // individual capture occurrences in source order
	Scopes        []store.ClosureScope   // lexical scope chain, outermost first
	Sources       []store.VariableSource // providing scope per captured variable
}

// ClosureDetail returns a closure and all of its capture analysis.
// Returns nil with no error if the closure ID does not exist.
func (q *QueryBuilder) ClosureDetail(closureID int64) (*ClosureDetail, error) {
	cr, err := q.closureResultByID(closureID)
	if err != nil {
		return nil, fmt.Errorf("closure detail: %w", err)
	}
	if cr == nil {
		return nil, nil
	}

	fvs, err := q.store.FreeVariablesByClosure(closureID)
	if err != nil {
		return nil, fmt.Errorf("closure detail: free variables: %w", err)
	}

	refs, err := q.store.ReferencesByClosure(closureID)
	if err != nil {
		return nil, fmt.Errorf("closure detail: references: %w", err)
	}

	scopes, err := q.store.ScopesByClosure(closureID)
	if err != nil {
		return nil, fmt.Errorf("closure detail: scopes: %w", err)
	}

	sources, err := q.store.VariableSourcesByClosure(closureID)
	if err != nil {
		return nil, fmt.Errorf("closure detail: variable sources: %w", err)
	}

	if fvs == nil {
		fvs = []store.FreeVariable{}
	}
	if refs == nil {
		refs = []store.Reference{}
	}
	if scopes == nil {
		scopes = []store.ClosureScope{}
	}
	if sources == nil {
		sources = []store.VariableSource{}
	}

	return &ClosureDetail{
		Closure:       *cr,
		FreeVariables: fvs,
		References:    refs,
		Scopes:        scopes,
		Sources:       sources,
	}, nil
}

// ClosureAt is a position-based convenience that resolves the closure
// declared at (module, line, col) and returns its ClosureDetail. When no
// closure starts exactly at col, the nearest closure starting at or before
// col on the same line wins. Returns nil with no error if none exists.
func (q *QueryBuilder) ClosureAt(module string, line, col int) (*ClosureDetail, error) {
	var id int64
	err := q.store.DB().QueryRow(
		`SELECT c.id
		 FROM closures c
		 JOIN documents d ON c.document_id = d.id
		 WHERE d.module = ? AND c.line = ? AND c.col <= ?
		 ORDER BY c.col DESC
		 LIMIT 1`,
		module, line, col,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("closure at: %w", err)
	}
	return q.ClosureDetail(id)
}

// CapturingClosures returns every closure that captures the given variable
// name, resolved with document and function context, in ID order.
func (q *QueryBuilder) CapturingClosures(name string) ([]ClosureResult, error) {
	rows, err := q.store.DB().Query(
		"SELECT closure_id FROM free_variables WHERE name = ? ORDER BY closure_id", name,
	)
	if err != nil {
		return nil, fmt.Errorf("capturing closures: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("capturing closures: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("capturing closures: rows: %w", err)
	}

	byID, err := q.closureResultsByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("capturing closures: load closures: %w", err)
	}

	results := make([]ClosureResult, 0, len(ids))
	for _, id := range ids {
		if cr, ok := byID[id]; ok {
			results = append(results, *cr)
		}
	}
	return results, nil
}

// closureResultByID loads a single closure as a ClosureResult by its ID.
// Returns nil with no error if not found.
func (q *QueryBuilder) closureResultByID(closureID int64) (*ClosureResult, error) {
	row := q.store.DB().QueryRow(closureResultSelect+" WHERE c.id = ?", closureID)
	cr, err := scanClosureResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

// closureResultsByIDs loads multiple closures as ClosureResults in a single
// query. Returns a map from closure ID to *ClosureResult. Missing IDs are
// simply absent from the map.
func (q *QueryBuilder) closureResultsByIDs(ids []int64) (map[int64]*ClosureResult, error) {
	if len(ids) == 0 {
		return map[int64]*ClosureResult{}, nil
	}
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := q.store.DB().Query(
		closureResultSelect+" WHERE c.id IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64]*ClosureResult, len(ids))
	for rows.Next() {
		cr, err := scanClosureResult(rows)
		if err != nil {
			return nil, err
		}
		result[cr.ID] = &cr
	}
	return result, rows.Err()
}
