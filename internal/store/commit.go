package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real
// (positive, AUTOINCREMENT) IDs, and all FK references within the batch
// are rewritten using the fakeToReal mapping.
//
// Insert order respects FK dependencies:
//  1. Functions (depend on document_id only, which is already real)
//  2. Closures (depend on document_id, function_id)
//  3. ClosureScopes (depend on closure_id)
//  4. References (depend on closure_id)
//  5. FreeVariables (depend on closure_id)
//  6. VariableSources (depend on closure_id)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64)

	// 1. Functions
	for _, fn := range batch.Functions {
		realID, err := insertFunctionTx(tx, &fn)
		if err != nil {
			return fmt.Errorf("commit batch: function %q: %w", fn.Name, err)
		}
		fakeToReal[fn.ID] = realID
	}

	// 2. Closures
	for _, c := range batch.Closures {
		if c.FunctionID != nil && *c.FunctionID < 0 {
			realID, ok := fakeToReal[*c.FunctionID]
			if !ok {
				return fmt.Errorf("commit batch: closure at %d:%d has function_id=%d not in fakeToReal map (have %d functions)", c.Line, c.Col, *c.FunctionID, len(batch.Functions))
			}
			c.FunctionID = &realID
		}
		realID, err := insertClosureTx(tx, &c)
		if err != nil {
			return fmt.Errorf("commit batch: closure at %d:%d: %w", c.Line, c.Col, err)
		}
		fakeToReal[c.ID] = realID
	}

	// 3. ClosureScopes
	for _, cs := range batch.ClosureScopes {
		if cs.ClosureID < 0 {
			cs.ClosureID = fakeToReal[cs.ClosureID]
		}
		realID, err := insertClosureScopeTx(tx, &cs)
		if err != nil {
			return fmt.Errorf("commit batch: closure scope: %w", err)
		}
		fakeToReal[cs.ID] = realID
	}

	// 4. References
	for _, r := range batch.References {
		if r.ClosureID < 0 {
			r.ClosureID = fakeToReal[r.ClosureID]
		}
		realID, err := insertReferenceTx(tx, &r)
		if err != nil {
			return fmt.Errorf("commit batch: reference %q: %w", r.Name, err)
		}
		fakeToReal[r.ID] = realID
	}

	// 5. FreeVariables
	for _, v := range batch.FreeVariables {
		if v.ClosureID < 0 {
			v.ClosureID = fakeToReal[v.ClosureID]
		}
		realID, err := insertFreeVariableTx(tx, &v)
		if err != nil {
			return fmt.Errorf("commit batch: free variable %q: %w", v.Name, err)
		}
		fakeToReal[v.ID] = realID
	}

	// 6. VariableSources
	for _, v := range batch.VariableSources {
		if v.ClosureID < 0 {
			v.ClosureID = fakeToReal[v.ClosureID]
		}
		if _, err := insertVariableSourceTx(tx, &v); err != nil {
			return fmt.Errorf("commit batch: variable source %q: %w", v.Name, err)
		}
	}

	return tx.Commit()
}

// --- Transaction-scoped insert helpers ---
// These mirror the Store insert methods but accept *sql.Tx instead of using s.db.

func insertFunctionTx(tx *sql.Tx, f *Function) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO functions (document_id, name, arity, kind, line)
		 VALUES (?, ?, ?, ?, ?)`,
		f.DocumentID, f.Name, f.Arity, f.Kind, f.Line,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertClosureTx(tx *sql.Tx, c *Closure) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO closures (document_id, function_id, line, col, arity, clause_count, bound_names, referenced_names, has_captures, total_capture_count, capture_depth, crosses_function_boundary, captures_module_attributes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.DocumentID, c.FunctionID, c.Line, c.Col, c.Arity, c.ClauseCount,
		marshalNames(c.BoundNames), marshalNames(c.ReferencedNames),
		c.HasCaptures, c.TotalCaptureCount, c.CaptureDepth,
		c.CrossesFunctionBoundary, c.CapturesModuleAttributes,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertClosureScopeTx(tx *sql.Tx, cs *ClosureScope) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO closure_scopes (closure_id, level, kind, name, names, parent_level)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cs.ClosureID, cs.Level, cs.Kind, cs.Name, marshalNames(cs.Names), cs.ParentLevel,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertReferenceTx(tx *sql.Tx, r *Reference) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO references_ (closure_id, name, line, col)
		 VALUES (?, ?, ?, ?)`,
		r.ClosureID, r.Name, r.Line, r.Col,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertFreeVariableTx(tx *sql.Tx, v *FreeVariable) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO free_variables (closure_id, name, reference_count, locations)
		 VALUES (?, ?, ?, ?)`,
		v.ClosureID, v.Name, v.ReferenceCount, marshalLocations(v.Locations),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertVariableSourceTx(tx *sql.Tx, v *VariableSource) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO variable_sources (closure_id, name, scope_level, scope_kind, scope_name, depth)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		v.ClosureID, v.Name, v.ScopeLevel, v.ScopeKind, v.ScopeName, v.Depth,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
