package understory

import (
	"fmt"
)

// ModuleSummary aggregates capture statistics for one module.
type ModuleSummary struct {
	Module            string
	Path              string
	Functions         int
	Closures          int
	CapturingClosures int
	MaxCaptureDepth   int
}

// ProjectSummary is a digest of everything indexed: document, function and
// closure counts, capture statistics, and the most-captured variable names.
type ProjectSummary struct {
	Documents         int
	Functions         int
	Closures          int
	CapturingClosures int
	BoundaryCrossings int // closures capturing across a function boundary
	AttributeCaptures int // closures capturing module attributes
	MaxCaptureDepth   int
	Facts             int
	Modules           []ModuleSummary
	MostCaptured      []CapturedName
}

// ProjectSummary returns project-wide capture statistics with per-module
// breakdowns and the topCaptured most-captured variable names.
func (q *QueryBuilder) ProjectSummary(topCaptured int) (*ProjectSummary, error) {
	ps := &ProjectSummary{}

	err := q.store.DB().QueryRow("SELECT COUNT(*) FROM documents").Scan(&ps.Documents)
	if err != nil {
		return nil, fmt.Errorf("project summary: count documents: %w", err)
	}
	err = q.store.DB().QueryRow("SELECT COUNT(*) FROM functions").Scan(&ps.Functions)
	if err != nil {
		return nil, fmt.Errorf("project summary: count functions: %w", err)
	}

	err = q.store.DB().QueryRow(
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN has_captures THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN crosses_function_boundary THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN captures_module_attributes THEN 1 ELSE 0 END), 0),
			COALESCE(MAX(capture_depth), 0)
		 FROM closures`,
	).Scan(&ps.Closures, &ps.CapturingClosures, &ps.BoundaryCrossings, &ps.AttributeCaptures, &ps.MaxCaptureDepth)
	if err != nil {
		return nil, fmt.Errorf("project summary: closure stats: %w", err)
	}

	facts, err := q.store.CountFacts()
	if err != nil {
		return nil, fmt.Errorf("project summary: count facts: %w", err)
	}
	ps.Facts = facts

	modules, err := q.ModuleSummaries()
	if err != nil {
		return nil, fmt.Errorf("project summary: %w", err)
	}
	ps.Modules = modules

	most, err := q.MostCaptured(topCaptured)
	if err != nil {
		return nil, fmt.Errorf("project summary: %w", err)
	}
	ps.MostCaptured = most

	return ps, nil
}

// ModuleSummaries returns per-module capture statistics, ordered by module
// name.
func (q *QueryBuilder) ModuleSummaries() ([]ModuleSummary, error) {
	rows, err := q.store.DB().Query(
		`SELECT d.module, d.path,
			(SELECT COUNT(*) FROM functions f WHERE f.document_id = d.id) AS function_count,
			(SELECT COUNT(*) FROM closures c WHERE c.document_id = d.id) AS closure_count,
			(SELECT COUNT(*) FROM closures c WHERE c.document_id = d.id AND c.has_captures) AS capturing_count,
			COALESCE((SELECT MAX(c.capture_depth) FROM closures c WHERE c.document_id = d.id), 0) AS max_depth
		 FROM documents d
		 ORDER BY d.module`,
	)
	if err != nil {
		return nil, fmt.Errorf("module summaries: query: %w", err)
	}
	defer rows.Close()

	var modules []ModuleSummary
	for rows.Next() {
		var ms ModuleSummary
		if err := rows.Scan(&ms.Module, &ms.Path, &ms.Functions, &ms.Closures, &ms.CapturingClosures, &ms.MaxCaptureDepth); err != nil {
			return nil, fmt.Errorf("module summaries: scan: %w", err)
		}
		modules = append(modules, ms)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("module summaries: rows: %w", err)
	}
	if modules == nil {
		modules = []ModuleSummary{}
	}
	return modules, nil
}

// MostCaptured returns the top-N most-captured variable names, ordered by
// how many closures capture them. topN of 0 returns empty list. Negative
// returns error.
func (q *QueryBuilder) MostCaptured(topN int) ([]CapturedName, error) {
	if topN < 0 {
		return nil, fmt.Errorf("most captured: topN must be non-negative, got %d", topN)
	}
	if topN == 0 {
		return []CapturedName{}, nil
	}

	rows, err := q.store.DB().Query(
		`SELECT name, COUNT(*) AS closure_count, COALESCE(SUM(reference_count), 0) AS total_refs
		 FROM free_variables
		 GROUP BY name
		 ORDER BY closure_count DESC, name
		 LIMIT ?`,
		topN,
	)
	if err != nil {
		return nil, fmt.Errorf("most captured: query: %w", err)
	}
	defer rows.Close()

	var items []CapturedName
	for rows.Next() {
		var cn CapturedName
		if err := rows.Scan(&cn.Name, &cn.ClosureCount, &cn.TotalReferences); err != nil {
			return nil, fmt.Errorf("most captured: scan: %w", err)
		}
		items = append(items, cn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("most captured: rows: %w", err)
	}
	if items == nil {
		items = []CapturedName{}
	}
	return items, nil
}
