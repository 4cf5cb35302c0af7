package store

import (
	"database/sql"
	"fmt"
	"time"
)

// --- Documents ---

// InsertDocument stores a document row and returns its ID.
func (s *Store) InsertDocument(d *Document) (int64, error) {
	if d.IndexedAt.IsZero() {
		d.IndexedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(
		"INSERT INTO documents (path, module, hash, indexed_at) VALUES (?, ?, ?, ?)",
		d.Path, d.Module, d.Hash, d.IndexedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("document id: %w", err)
	}
	d.ID = id
	return id, nil
}

// DocumentByPath returns the document at path, or nil if not indexed.
func (s *Store) DocumentByPath(path string) (*Document, error) {
	row := s.db.QueryRow(
		"SELECT id, path, module, hash, indexed_at FROM documents WHERE path = ?", path,
	)
	var d Document
	err := row.Scan(&d.ID, &d.Path, &d.Module, &d.Hash, &d.IndexedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("document by path: %w", err)
	}
	return &d, nil
}

// DocumentByID returns the document with the given ID, or nil.
func (s *Store) DocumentByID(id int64) (*Document, error) {
	row := s.db.QueryRow(
		"SELECT id, path, module, hash, indexed_at FROM documents WHERE id = ?", id,
	)
	var d Document
	err := row.Scan(&d.ID, &d.Path, &d.Module, &d.Hash, &d.IndexedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("document by id: %w", err)
	}
	return &d, nil
}

// Documents returns every indexed document ordered by path.
func (s *Store) Documents() ([]Document, error) {
	rows, err := s.db.Query("SELECT id, path, module, hash, indexed_at FROM documents ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Path, &d.Module, &d.Hash, &d.IndexedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("documents rows: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes the document row itself. Child data must be
// removed first via DeleteDocumentData.
func (s *Store) DeleteDocument(id int64) error {
	if _, err := s.db.Exec("DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// --- Functions ---

// InsertFunction stores a named-function row and returns its ID.
func (s *Store) InsertFunction(f *Function) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO functions (document_id, name, arity, kind, line) VALUES (?, ?, ?, ?, ?)",
		f.DocumentID, f.Name, f.Arity, f.Kind, f.Line,
	)
	if err != nil {
		return 0, fmt.Errorf("insert function: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("function id: %w", err)
	}
	f.ID = id
	return id, nil
}

// FunctionsByDocument returns a document's named functions in
// definition order.
func (s *Store) FunctionsByDocument(documentID int64) ([]Function, error) {
	rows, err := s.db.Query(
		"SELECT id, document_id, name, arity, kind, line FROM functions WHERE document_id = ? ORDER BY line",
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query functions: %w", err)
	}
	defer rows.Close()

	var fns []Function
	for rows.Next() {
		var f Function
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.Name, &f.Arity, &f.Kind, &f.Line); err != nil {
			return nil, fmt.Errorf("scan function: %w", err)
		}
		fns = append(fns, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("functions rows: %w", err)
	}
	return fns, nil
}

// --- Closures ---

// ClosureCols is the canonical closure column list, exported for
// callers assembling their own SELECTs over closure rows.
const ClosureCols = "id, document_id, function_id, line, col, arity, clause_count, bound_names, referenced_names, has_captures, total_capture_count, capture_depth, crosses_function_boundary, captures_module_attributes"

// InsertClosure stores a closure row and returns its ID.
func (s *Store) InsertClosure(c *Closure) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO closures (document_id, function_id, line, col, arity, clause_count, bound_names, referenced_names, has_captures, total_capture_count, capture_depth, crosses_function_boundary, captures_module_attributes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.DocumentID, c.FunctionID, c.Line, c.Col, c.Arity, c.ClauseCount,
		marshalNames(c.BoundNames), marshalNames(c.ReferencedNames),
		c.HasCaptures, c.TotalCaptureCount, c.CaptureDepth,
		c.CrossesFunctionBoundary, c.CapturesModuleAttributes,
	)
	if err != nil {
		return 0, fmt.Errorf("insert closure: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("closure id: %w", err)
	}
	c.ID = id
	return id, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

// ScanClosureRow scans one row selected with ClosureCols.
func ScanClosureRow(row rowScanner) (Closure, error) {
	var c Closure
	var bound, referenced string
	err := row.Scan(
		&c.ID, &c.DocumentID, &c.FunctionID, &c.Line, &c.Col, &c.Arity, &c.ClauseCount,
		&bound, &referenced, &c.HasCaptures, &c.TotalCaptureCount, &c.CaptureDepth,
		&c.CrossesFunctionBoundary, &c.CapturesModuleAttributes,
	)
	if err != nil {
		return Closure{}, err
	}
	c.BoundNames = unmarshalNames(bound)
	c.ReferencedNames = unmarshalNames(referenced)
	return c, nil
}

func (s *Store) queryClosures(query string, args ...any) ([]Closure, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query closures: %w", err)
	}
	defer rows.Close()

	var closures []Closure
	for rows.Next() {
		c, err := ScanClosureRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan closure: %w", err)
		}
		closures = append(closures, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("closures rows: %w", err)
	}
	return closures, nil
}

// ClosureByID returns one closure, or nil if absent.
func (s *Store) ClosureByID(id int64) (*Closure, error) {
	row := s.db.QueryRow("SELECT "+ClosureCols+" FROM closures WHERE id = ?", id)
	c, err := ScanClosureRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("closure by id: %w", err)
	}
	return &c, nil
}

// ClosuresByDocument returns a document's closures in source order.
func (s *Store) ClosuresByDocument(documentID int64) ([]Closure, error) {
	return s.queryClosures(
		"SELECT "+ClosureCols+" FROM closures WHERE document_id = ? ORDER BY line, col", documentID,
	)
}

// ClosuresByFunction returns the closures defined inside one named
// function.
func (s *Store) ClosuresByFunction(functionID int64) ([]Closure, error) {
	return s.queryClosures(
		"SELECT "+ClosureCols+" FROM closures WHERE function_id = ? ORDER BY line, col", functionID,
	)
}

// --- Closure scopes ---

// InsertClosureScope stores one scope-chain level and returns its ID.
func (s *Store) InsertClosureScope(cs *ClosureScope) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO closure_scopes (closure_id, level, kind, name, names, parent_level) VALUES (?, ?, ?, ?, ?, ?)",
		cs.ClosureID, cs.Level, cs.Kind, cs.Name, marshalNames(cs.Names), cs.ParentLevel,
	)
	if err != nil {
		return 0, fmt.Errorf("insert closure scope: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("closure scope id: %w", err)
	}
	cs.ID = id
	return id, nil
}

// ScopesByClosure returns a closure's scope chain, outermost first.
func (s *Store) ScopesByClosure(closureID int64) ([]ClosureScope, error) {
	rows, err := s.db.Query(
		"SELECT id, closure_id, level, kind, name, names, parent_level FROM closure_scopes WHERE closure_id = ? ORDER BY level",
		closureID,
	)
	if err != nil {
		return nil, fmt.Errorf("query closure scopes: %w", err)
	}
	defer rows.Close()

	var scopes []ClosureScope
	for rows.Next() {
		var cs ClosureScope
		var names string
		if err := rows.Scan(&cs.ID, &cs.ClosureID, &cs.Level, &cs.Kind, &cs.Name, &names, &cs.ParentLevel); err != nil {
			return nil, fmt.Errorf("scan closure scope: %w", err)
		}
		cs.Names = unmarshalNames(names)
		scopes = append(scopes, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("closure scopes rows: %w", err)
	}
	return scopes, nil
}
