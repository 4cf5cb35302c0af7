package understory

import (
	"fmt"
	"strings"

	"github.com/jward/understory/internal/store"
)

// --- Common Types ---

// Pagination controls offset+limit paging on list/search results.
type Pagination struct {
	Offset int // skip this many results (default 0)
	Limit  int // max results to return (default 50, max 500)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// normalize returns a Pagination with defaults applied and bounds enforced.
func (p Pagination) normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// SortField specifies how to order results.
type SortField string

const (
	SortByModule       SortField = "module"
	SortByLine         SortField = "line"
	SortByArity        SortField = "arity"
	SortByCaptureCount SortField = "capture_count"
	SortByCaptureDepth SortField = "capture_depth"
)

// SortOrder specifies ascending or descending.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Sort controls result ordering.
type Sort struct {
	Field SortField
	Order SortOrder
}

// ClosureResult extends Closure with resolved document and function context.
type ClosureResult struct {
	store.Closure
	Module       string // module of the defining document
	DocumentPath string // path of the defining document
	FunctionName string // enclosing function as "name/arity", empty at module level
}

// CapturedName aggregates how often a variable name is captured across the
// project.
type CapturedName struct {
	Name            string
	ClosureCount    int // closures that capture this name
	TotalReferences int // total occurrence count across those closures
}

// PagedResult wraps a page of results with total count for pagination.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int // total matching results (before pagination)
}

// ClosureFilter specifies which closures to include. All fields are optional.
type ClosureFilter struct {
	Module                   *string // exact module match
	PathPrefix               *string // restrict to documents under this path
	FunctionName             *string // enclosing function name (any arity)
	HasCaptures              *bool
	CrossesFunctionBoundary  *bool
	CapturesModuleAttributes *bool
	MinCaptureDepth          *int    // capture_depth >= this value
	CapturesName             *string // closure captures this variable name
}

// --- Internal Helpers ---

// closureResultSelect is the shared SELECT head for ClosureResult queries:
// closure columns plus the document's module/path and the enclosing
// function rendered as "name/arity".
var closureResultSelect = fmt.Sprintf(
	`SELECT %s, d.module, d.path,
		COALESCE(fn.name || '/' || fn.arity, '') AS function_name
	 FROM closures c
	 JOIN documents d ON c.document_id = d.id
	 LEFT JOIN functions fn ON c.function_id = fn.id`,
	prefixClosureCols("c"),
)

// prefixClosureCols qualifies each closure column with a table alias.
func prefixClosureCols(alias string) string {
	cols := strings.Split(store.ClosureCols, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

// scanClosureResult scans a row selected with closureResultSelect.
func scanClosureResult(row scanner) (ClosureResult, error) {
	var cr ClosureResult
	var bound, referenced string
	err := row.Scan(
		&cr.ID, &cr.DocumentID, &cr.FunctionID, &cr.Line, &cr.Col, &cr.Arity, &cr.ClauseCount,
		&bound, &referenced, &cr.HasCaptures, &cr.TotalCaptureCount, &cr.CaptureDepth,
		&cr.CrossesFunctionBoundary, &cr.CapturesModuleAttributes,
		&cr.Module, &cr.DocumentPath, &cr.FunctionName,
	)
	if err != nil {
		return ClosureResult{}, err
	}
	cr.BoundNames = store.UnmarshalNames(bound)
	cr.ReferencedNames = store.UnmarshalNames(referenced)
	return cr, nil
}

// normalizePathPrefix ensures a path prefix ends with "/" for correct LIKE
// matching. "lib/my_app" -> "lib/my_app/" to prevent matching
// "lib/my_app_web/".
func normalizePathPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	if !strings.HasSuffix(prefix, "/") {
		return prefix + "/"
	}
	return prefix
}

// closureSortColumn returns the SQL ORDER BY expression for closure queries.
// Falls back to "d.module" for unknown fields.
func closureSortColumn(field SortField) string {
	switch field {
	case SortByModule:
		return "d.module"
	case SortByLine:
		return "c.line"
	case SortByArity:
		return "c.arity"
	case SortByCaptureCount:
		return "c.total_capture_count"
	case SortByCaptureDepth:
		return "c.capture_depth"
	default:
		return "d.module"
	}
}

// sortDirection returns "ASC" or "DESC".
func sortDirection(order SortOrder) string {
	if order == Desc {
		return "DESC"
	}
	return "ASC"
}

// escapeLike escapes LIKE pattern metacharacters with backslash.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// --- Enumeration Endpoints ---

// Closures is the primary listing/filtering endpoint. All filter fields are
// optional; an empty filter lists every closure.
func (q *QueryBuilder) Closures(filter ClosureFilter, sort Sort, page Pagination) (*PagedResult[ClosureResult], error) {
	page = page.normalize()

	var where []string
	var args []any

	if filter.Module != nil {
		where = append(where, "d.module = ?")
		args = append(args, *filter.Module)
	}
	if filter.PathPrefix != nil {
		prefix := normalizePathPrefix(*filter.PathPrefix)
		if prefix != "" {
			where = append(where, "d.path LIKE ? ESCAPE '\\'")
			args = append(args, escapeLike(prefix)+"%")
		}
	}
	if filter.FunctionName != nil {
		where = append(where, "fn.name = ?")
		args = append(args, *filter.FunctionName)
	}
	if filter.HasCaptures != nil {
		where = append(where, "c.has_captures = ?")
		args = append(args, *filter.HasCaptures)
	}
	if filter.CrossesFunctionBoundary != nil {
		where = append(where, "c.crosses_function_boundary = ?")
		args = append(args, *filter.CrossesFunctionBoundary)
	}
	if filter.CapturesModuleAttributes != nil {
		where = append(where, "c.captures_module_attributes = ?")
		args = append(args, *filter.CapturesModuleAttributes)
	}
	if filter.MinCaptureDepth != nil {
		where = append(where, "c.capture_depth >= ?")
		args = append(args, *filter.MinCaptureDepth)
	}
	if filter.CapturesName != nil {
		where = append(where, "EXISTS (SELECT 1 FROM free_variables fv WHERE fv.closure_id = c.id AND fv.name = ?)")
		args = append(args, *filter.CapturesName)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	// Count query
	countSQL := `SELECT COUNT(*)
		 FROM closures c
		 JOIN documents d ON c.document_id = d.id
		 LEFT JOIN functions fn ON c.function_id = fn.id ` + whereClause
	var totalCount int
	if err := q.store.DB().QueryRow(countSQL, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("closures: count: %w", err)
	}

	// Data query
	orderCol := closureSortColumn(sort.Field)
	orderDir := sortDirection(sort.Order)

	dataSQL := fmt.Sprintf(
		`%s
		 %s
		 ORDER BY %s %s, c.line, c.col
		 LIMIT ? OFFSET ?`,
		closureResultSelect, whereClause, orderCol, orderDir,
	)
	dataArgs := append(append([]any{}, args...), page.Limit, page.Offset)

	rows, err := q.store.DB().Query(dataSQL, dataArgs...)
	if err != nil {
		return nil, fmt.Errorf("closures: query: %w", err)
	}
	defer rows.Close()

	var items []ClosureResult
	for rows.Next() {
		cr, err := scanClosureResult(rows)
		if err != nil {
			return nil, fmt.Errorf("closures: scan: %w", err)
		}
		items = append(items, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("closures: rows: %w", err)
	}
	if items == nil {
		items = []ClosureResult{}
	}

	return &PagedResult[ClosureResult]{Items: items, TotalCount: totalCount}, nil
}

// SearchCapturedNames finds captured variable names matching a glob pattern
// (* matches any run of characters). Results are aggregated per name and
// ordered by how many closures capture them. An empty pattern matches all.
func (q *QueryBuilder) SearchCapturedNames(pattern string, page Pagination) (*PagedResult[CapturedName], error) {
	page = page.normalize()

	like := strings.ReplaceAll(escapeLike(pattern), "*", "%")
	if like == "" {
		like = "%"
	}

	countSQL := `SELECT COUNT(DISTINCT name) FROM free_variables WHERE name LIKE ? ESCAPE '\'`
	var totalCount int
	if err := q.store.DB().QueryRow(countSQL, like).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("search captured names: count: %w", err)
	}

	rows, err := q.store.DB().Query(
		`SELECT name, COUNT(*) AS closure_count, COALESCE(SUM(reference_count), 0) AS total_refs
		 FROM free_variables
		 WHERE name LIKE ? ESCAPE '\'
		 GROUP BY name
		 ORDER BY closure_count DESC, name
		 LIMIT ? OFFSET ?`,
		like, page.Limit, page.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("search captured names: query: %w", err)
	}
	defer rows.Close()

	var items []CapturedName
	for rows.Next() {
		var cn CapturedName
		if err := rows.Scan(&cn.Name, &cn.ClosureCount, &cn.TotalReferences); err != nil {
			return nil, fmt.Errorf("search captured names: scan: %w", err)
		}
		items = append(items, cn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search captured names: rows: %w", err)
	}
	if items == nil {
		items = []CapturedName{}
	}

	return &PagedResult[CapturedName]{Items: items, TotalCount: totalCount}, nil
}
