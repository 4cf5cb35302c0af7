package store

import "fmt"

// --- References ---

// InsertReference stores one free-variable read site and returns its ID.
func (s *Store) InsertReference(r *Reference) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO references_ (closure_id, name, line, col) VALUES (?, ?, ?, ?)",
		r.ClosureID, r.Name, r.Line, r.Col,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reference: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reference id: %w", err)
	}
	r.ID = id
	return id, nil
}

func (s *Store) queryReferences(query string, args ...any) ([]Reference, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	defer rows.Close()

	var refs []Reference
	for rows.Next() {
		var r Reference
		if err := rows.Scan(&r.ID, &r.ClosureID, &r.Name, &r.Line, &r.Col); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("references rows: %w", err)
	}
	return refs, nil
}

// ReferencesByClosure returns a closure's free-variable reads in
// source order.
func (s *Store) ReferencesByClosure(closureID int64) ([]Reference, error) {
	return s.queryReferences(
		"SELECT id, closure_id, name, line, col FROM references_ WHERE closure_id = ? ORDER BY line, col", closureID,
	)
}

// ReferencesByName returns every read of name across all closures.
func (s *Store) ReferencesByName(name string) ([]Reference, error) {
	return s.queryReferences(
		"SELECT id, closure_id, name, line, col FROM references_ WHERE name = ? ORDER BY closure_id, line, col", name,
	)
}

// --- Free variables ---

// InsertFreeVariable stores one per-name capture rollup and returns
// its ID.
func (s *Store) InsertFreeVariable(v *FreeVariable) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO free_variables (closure_id, name, reference_count, locations) VALUES (?, ?, ?, ?)",
		v.ClosureID, v.Name, v.ReferenceCount, marshalLocations(v.Locations),
	)
	if err != nil {
		return 0, fmt.Errorf("insert free variable: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("free variable id: %w", err)
	}
	v.ID = id
	return id, nil
}

func (s *Store) queryFreeVariables(query string, args ...any) ([]FreeVariable, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query free variables: %w", err)
	}
	defer rows.Close()

	var vars []FreeVariable
	for rows.Next() {
		var v FreeVariable
		var locs string
		if err := rows.Scan(&v.ID, &v.ClosureID, &v.Name, &v.ReferenceCount, &locs); err != nil {
			return nil, fmt.Errorf("scan free variable: %w", err)
		}
		v.Locations = unmarshalLocations(locs)
		vars = append(vars, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("free variables rows: %w", err)
	}
	return vars, nil
}

// FreeVariablesByClosure returns a closure's captures sorted by name.
func (s *Store) FreeVariablesByClosure(closureID int64) ([]FreeVariable, error) {
	return s.queryFreeVariables(
		"SELECT id, closure_id, name, reference_count, locations FROM free_variables WHERE closure_id = ? ORDER BY name", closureID,
	)
}

// FreeVariablesByName returns every capture of name across all
// closures.
func (s *Store) FreeVariablesByName(name string) ([]FreeVariable, error) {
	return s.queryFreeVariables(
		"SELECT id, closure_id, name, reference_count, locations FROM free_variables WHERE name = ? ORDER BY closure_id", name,
	)
}

// --- Variable sources ---

// InsertVariableSource stores one name-to-scope resolution and returns
// its ID.
func (s *Store) InsertVariableSource(v *VariableSource) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO variable_sources (closure_id, name, scope_level, scope_kind, scope_name, depth) VALUES (?, ?, ?, ?, ?, ?)",
		v.ClosureID, v.Name, v.ScopeLevel, v.ScopeKind, v.ScopeName, v.Depth,
	)
	if err != nil {
		return 0, fmt.Errorf("insert variable source: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("variable source id: %w", err)
	}
	v.ID = id
	return id, nil
}

// VariableSourcesByClosure returns a closure's resolved captures
// sorted by name.
func (s *Store) VariableSourcesByClosure(closureID int64) ([]VariableSource, error) {
	rows, err := s.db.Query(
		"SELECT id, closure_id, name, scope_level, scope_kind, scope_name, depth FROM variable_sources WHERE closure_id = ? ORDER BY name",
		closureID,
	)
	if err != nil {
		return nil, fmt.Errorf("query variable sources: %w", err)
	}
	defer rows.Close()

	var sources []VariableSource
	for rows.Next() {
		var v VariableSource
		if err := rows.Scan(&v.ID, &v.ClosureID, &v.Name, &v.ScopeLevel, &v.ScopeKind, &v.ScopeName, &v.Depth); err != nil {
			return nil, fmt.Errorf("scan variable source: %w", err)
		}
		sources = append(sources, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("variable sources rows: %w", err)
	}
	return sources, nil
}
