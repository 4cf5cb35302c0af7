package understory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jward/understory/internal/store"
)

// FactGraph represents the fact neighborhood around an entity. Facts are
// bulk-loaded then traversed with BFS, no recursive SQL or N+1 queries.
type FactGraph struct {
	Root  string          // starting entity
	Nodes []FactGraphNode // all entities reachable within depth
	Edges []store.Fact    // all facts connecting visited entities
	Depth int             // actual max depth reached (may be < maxDepth if graph is shallow)
}

// FactGraphNode is an entity in the fact graph with its distance from the root.
type FactGraphNode struct {
	Entity string
	Depth  int // BFS depth from root (0 = root itself)
}

// factGraphData holds the bulk-loaded fact adjacency maps.
type factGraphData struct {
	forward        map[string][]string     // subject -> objects
	reverse        map[string][]string     // object -> subjects
	factsBySubject map[string][]store.Fact // facts keyed by subject
	factsByObject  map[string][]store.Fact // facts keyed by object
}

// buildFactGraph bulk-loads all facts into memory and builds forward and
// reverse adjacency maps. This avoids N+1 queries during BFS traversal.
func (q *QueryBuilder) buildFactGraph() (*factGraphData, error) {
	rows, err := q.store.DB().Query("SELECT id, document_id, subject, predicate, object FROM facts")
	if err != nil {
		return nil, fmt.Errorf("build fact graph: load facts: %w", err)
	}
	defer rows.Close()

	data := &factGraphData{
		forward:        make(map[string][]string),
		reverse:        make(map[string][]string),
		factsBySubject: make(map[string][]store.Fact),
		factsByObject:  make(map[string][]store.Fact),
	}

	for rows.Next() {
		var f store.Fact
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.Subject, &f.Predicate, &f.Object); err != nil {
			return nil, fmt.Errorf("build fact graph: scan fact: %w", err)
		}
		data.forward[f.Subject] = append(data.forward[f.Subject], f.Object)
		data.reverse[f.Object] = append(data.reverse[f.Object], f.Subject)
		data.factsBySubject[f.Subject] = append(data.factsBySubject[f.Subject], f)
		data.factsByObject[f.Object] = append(data.factsByObject[f.Object], f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("build fact graph: fact rows: %w", err)
	}

	return data, nil
}

// Neighborhood returns all entities reachable from an entity within maxDepth
// hops, following facts in both directions (subject to object and back).
// Bulk-loads all facts into memory, then walks with BFS. maxDepth of 0
// returns only the root node (no traversal). Negative returns error.
// Capped at 100. Returns nil, nil if the entity appears in no fact.
func (q *QueryBuilder) Neighborhood(entity string, maxDepth int) (*FactGraph, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("neighborhood: maxDepth must be non-negative, got %d", maxDepth)
	}
	if maxDepth > 100 {
		maxDepth = 100
	}

	data, err := q.buildFactGraph()
	if err != nil {
		return nil, fmt.Errorf("neighborhood: %w", err)
	}

	if len(data.factsBySubject[entity]) == 0 && len(data.factsByObject[entity]) == 0 {
		return nil, nil
	}

	result := &FactGraph{
		Root:  entity,
		Nodes: []FactGraphNode{{Entity: entity, Depth: 0}},
		Edges: []store.Fact{},
		Depth: 0,
	}

	if maxDepth == 0 {
		return result, nil
	}

	// BFS over both adjacency maps.
	visited := map[string]int{entity: 0} // entity -> depth
	type bfsEntry struct {
		entity string
		depth  int
	}
	queue := []bfsEntry{{entity: entity, depth: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= maxDepth {
			continue
		}

		neighbors := append([]string{}, data.forward[current.entity]...)
		neighbors = append(neighbors, data.reverse[current.entity]...)
		for _, next := range neighbors {
			if _, seen := visited[next]; !seen {
				newDepth := current.depth + 1
				visited[next] = newDepth
				if newDepth > result.Depth {
					result.Depth = newDepth
				}
				queue = append(queue, bfsEntry{entity: next, depth: newDepth})
			}
		}
	}

	// Collect visited entities (except root, already added) ordered by
	// depth then name for deterministic output.
	entities := make([]string, 0, len(visited)-1)
	for ent := range visited {
		if ent != entity {
			entities = append(entities, ent)
		}
	}
	sort.Slice(entities, func(i, j int) bool {
		if visited[entities[i]] != visited[entities[j]] {
			return visited[entities[i]] < visited[entities[j]]
		}
		return entities[i] < entities[j]
	})
	for _, ent := range entities {
		result.Nodes = append(result.Nodes, FactGraphNode{Entity: ent, Depth: visited[ent]})
	}

	// Collect facts whose subject and object are both visited.
	factSeen := make(map[int64]bool)
	for ent := range visited {
		for _, f := range data.factsBySubject[ent] {
			if _, objVisited := visited[f.Object]; objVisited {
				if !factSeen[f.ID] {
					factSeen[f.ID] = true
					result.Edges = append(result.Edges, f)
				}
			}
		}
	}

	return result, nil
}

// FactFilter specifies which facts to include. All fields are optional;
// nil fields match anything.
type FactFilter struct {
	Subject    *string
	Predicate  *string
	Object     *string
	DocumentID *int64
}

// FactsMatching lists facts matching the filter, ordered by subject,
// predicate, object.
func (q *QueryBuilder) FactsMatching(filter FactFilter, page Pagination) (*PagedResult[store.Fact], error) {
	page = page.normalize()

	var where []string
	var args []any

	if filter.Subject != nil {
		where = append(where, "subject = ?")
		args = append(args, *filter.Subject)
	}
	if filter.Predicate != nil {
		where = append(where, "predicate = ?")
		args = append(args, *filter.Predicate)
	}
	if filter.Object != nil {
		where = append(where, "object = ?")
		args = append(args, *filter.Object)
	}
	if filter.DocumentID != nil {
		where = append(where, "document_id = ?")
		args = append(args, *filter.DocumentID)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countSQL := "SELECT COUNT(*) FROM facts " + whereClause
	var totalCount int
	if err := q.store.DB().QueryRow(countSQL, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("facts matching: count: %w", err)
	}

	dataSQL := fmt.Sprintf(
		`SELECT id, document_id, subject, predicate, object
		 FROM facts
		 %s
		 ORDER BY subject, predicate, object
		 LIMIT ? OFFSET ?`,
		whereClause,
	)
	dataArgs := append(append([]any{}, args...), page.Limit, page.Offset)

	rows, err := q.store.DB().Query(dataSQL, dataArgs...)
	if err != nil {
		return nil, fmt.Errorf("facts matching: query: %w", err)
	}
	defer rows.Close()

	var items []store.Fact
	for rows.Next() {
		var f store.Fact
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.Subject, &f.Predicate, &f.Object); err != nil {
			return nil, fmt.Errorf("facts matching: scan: %w", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("facts matching: rows: %w", err)
	}
	if items == nil {
		items = []store.Fact{}
	}

	return &PagedResult[store.Fact]{Items: items, TotalCount: totalCount}, nil
}
