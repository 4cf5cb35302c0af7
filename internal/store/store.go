package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for understory's 9 tables.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
-- Analysis tables

CREATE TABLE IF NOT EXISTS documents (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  module          TEXT NOT NULL,
  hash            TEXT,
  indexed_at      TIMESTAMP
);

CREATE TABLE IF NOT EXISTS functions (
  id              INTEGER PRIMARY KEY,
  document_id     INTEGER NOT NULL REFERENCES documents(id),
  name            TEXT NOT NULL,
  arity           INTEGER NOT NULL,
  kind            TEXT,
  line            INTEGER
);

CREATE TABLE IF NOT EXISTS closures (
  id              INTEGER PRIMARY KEY,
  document_id     INTEGER NOT NULL REFERENCES documents(id),
  function_id     INTEGER REFERENCES functions(id),
  line            INTEGER,
  col             INTEGER,
  arity           INTEGER NOT NULL DEFAULT 0,
  clause_count    INTEGER NOT NULL DEFAULT 1,
  bound_names     TEXT,
  referenced_names TEXT,
  has_captures    BOOLEAN DEFAULT FALSE,
  total_capture_count INTEGER DEFAULT 0,
  capture_depth   INTEGER DEFAULT 0,
  crosses_function_boundary BOOLEAN DEFAULT FALSE,
  captures_module_attributes BOOLEAN DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS closure_scopes (
  id              INTEGER PRIMARY KEY,
  closure_id      INTEGER NOT NULL REFERENCES closures(id),
  level           INTEGER NOT NULL,
  kind            TEXT NOT NULL,
  name            TEXT,
  names           TEXT,
  parent_level    INTEGER DEFAULT -1
);

CREATE TABLE IF NOT EXISTS references_ (
  id              INTEGER PRIMARY KEY,
  closure_id      INTEGER NOT NULL REFERENCES closures(id),
  name            TEXT NOT NULL,
  line            INTEGER,
  col             INTEGER
);

CREATE TABLE IF NOT EXISTS free_variables (
  id              INTEGER PRIMARY KEY,
  closure_id      INTEGER NOT NULL REFERENCES closures(id),
  name            TEXT NOT NULL,
  reference_count INTEGER NOT NULL DEFAULT 1,
  locations       TEXT
);

CREATE TABLE IF NOT EXISTS variable_sources (
  id              INTEGER PRIMARY KEY,
  closure_id      INTEGER NOT NULL REFERENCES closures(id),
  name            TEXT NOT NULL,
  scope_level     INTEGER NOT NULL,
  scope_kind      TEXT NOT NULL,
  scope_name      TEXT,
  depth           INTEGER NOT NULL DEFAULT 0
);

-- Fact tables

CREATE TABLE IF NOT EXISTS facts (
  id              INTEGER PRIMARY KEY,
  document_id     INTEGER REFERENCES documents(id),
  subject         TEXT NOT NULL,
  predicate       TEXT NOT NULL,
  object          TEXT NOT NULL,
  UNIQUE(subject, predicate, object)
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

-- Indexes

CREATE INDEX IF NOT EXISTS idx_documents_module ON documents(module);
CREATE INDEX IF NOT EXISTS idx_functions_document ON functions(document_id);
CREATE INDEX IF NOT EXISTS idx_functions_name ON functions(name);
CREATE INDEX IF NOT EXISTS idx_closures_document ON closures(document_id);
CREATE INDEX IF NOT EXISTS idx_closures_function ON closures(function_id);
CREATE INDEX IF NOT EXISTS idx_closure_scopes_closure ON closure_scopes(closure_id);
CREATE INDEX IF NOT EXISTS idx_references_closure ON references_(closure_id);
CREATE INDEX IF NOT EXISTS idx_references_name ON references_(name);
CREATE INDEX IF NOT EXISTS idx_free_variables_closure ON free_variables(closure_id);
CREATE INDEX IF NOT EXISTS idx_free_variables_name ON free_variables(name);
CREATE INDEX IF NOT EXISTS idx_variable_sources_closure ON variable_sources(closure_id);
CREATE INDEX IF NOT EXISTS idx_variable_sources_kind ON variable_sources(scope_kind);
CREATE INDEX IF NOT EXISTS idx_facts_document ON facts(document_id);
CREATE INDEX IF NOT EXISTS idx_facts_subject ON facts(subject);
CREATE INDEX IF NOT EXISTS idx_facts_predicate ON facts(predicate);
`

// DeleteDocumentData transactionally removes all analysis rows and
// document-scoped facts for a document. The document row itself stays;
// the caller decides whether to update or replace it. Deletes in
// reverse-dependency order to respect FK constraints.
func (s *Store) DeleteDocumentData(documentID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Get closure IDs for this document (needed for child table cleanup).
	rows, err := tx.Query("SELECT id FROM closures WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("query closures: %w", err)
	}
	var closureIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan closure id: %w", err)
		}
		closureIDs = append(closureIDs, id)
	}
	rows.Close()

	if len(closureIDs) > 0 {
		placeholders := placeholderList(len(closureIDs))
		args := int64sToArgs(closureIDs)
		for _, q := range []string{
			"DELETE FROM variable_sources WHERE closure_id IN (" + placeholders + ")",
			"DELETE FROM free_variables WHERE closure_id IN (" + placeholders + ")",
			"DELETE FROM references_ WHERE closure_id IN (" + placeholders + ")",
			"DELETE FROM closure_scopes WHERE closure_id IN (" + placeholders + ")",
		} {
			if _, err := tx.Exec(q, args...); err != nil {
				return fmt.Errorf("delete closure child data: %w", err)
			}
		}
	}

	for _, q := range []string{
		"DELETE FROM closures WHERE document_id = ?",
		"DELETE FROM functions WHERE document_id = ?",
		"DELETE FROM facts WHERE document_id = ?",
	} {
		if _, err := tx.Exec(q, documentID); err != nil {
			return fmt.Errorf("delete document data: %w", err)
		}
	}

	return tx.Commit()
}
