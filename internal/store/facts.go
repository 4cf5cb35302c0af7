package store

import "fmt"

// InsertFact stores one triple and returns its ID. Duplicate triples
// (same subject, predicate, object) are ignored and return 0.
func (s *Store) InsertFact(f *Fact) (int64, error) {
	res, err := s.db.Exec(
		"INSERT OR IGNORE INTO facts (document_id, subject, predicate, object) VALUES (?, ?, ?, ?)",
		f.DocumentID, f.Subject, f.Predicate, f.Object,
	)
	if err != nil {
		return 0, fmt.Errorf("insert fact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fact rows affected: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("fact id: %w", err)
	}
	f.ID = id
	return id, nil
}

func (s *Store) queryFacts(query string, args ...any) ([]Fact, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.Subject, &f.Predicate, &f.Object); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("facts rows: %w", err)
	}
	return facts, nil
}

// FactsBySubject returns the triples whose subject is exactly subject.
func (s *Store) FactsBySubject(subject string) ([]Fact, error) {
	return s.queryFacts(
		"SELECT id, document_id, subject, predicate, object FROM facts WHERE subject = ? ORDER BY predicate, object", subject,
	)
}

// FactsByPredicate returns the triples with the given predicate.
func (s *Store) FactsByPredicate(predicate string) ([]Fact, error) {
	return s.queryFacts(
		"SELECT id, document_id, subject, predicate, object FROM facts WHERE predicate = ? ORDER BY subject, object", predicate,
	)
}

// FactsByDocument returns the triples derived from one document.
func (s *Store) FactsByDocument(documentID int64) ([]Fact, error) {
	return s.queryFacts(
		"SELECT id, document_id, subject, predicate, object FROM facts WHERE document_id = ? ORDER BY subject, predicate, object", documentID,
	)
}

// CountFacts returns the total number of stored triples.
func (s *Store) CountFacts() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM facts").Scan(&n); err != nil {
		return 0, fmt.Errorf("count facts: %w", err)
	}
	return n, nil
}

// DeleteFactsForDocuments removes the triples derived from the given
// documents, ahead of re-emitting them.
func (s *Store) DeleteFactsForDocuments(documentIDs []int64) error {
	if len(documentIDs) == 0 {
		return nil
	}
	placeholders := placeholderList(len(documentIDs))
	args := int64sToArgs(documentIDs)
	if _, err := s.db.Exec("DELETE FROM facts WHERE document_id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("delete facts for documents: %w", err)
	}
	return nil
}

// DeleteAllFacts clears the fact table, for a full re-emit.
func (s *Store) DeleteAllFacts() error {
	if _, err := s.db.Exec("DELETE FROM facts"); err != nil {
		return fmt.Errorf("delete all facts: %w", err)
	}
	return nil
}
