package runtime

import (
	"context"

	"github.com/risor-io/risor/object"

	"github.com/jward/understory/internal/store"
)

// Host functions wrapping Store queries and fact emission. Scripts walk
// the indexed analysis through these and write knowledge-graph triples
// back with emit_fact.

func makeDocumentsFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("documents", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("documents", 0, len(args))
		}
		docs, err := s.Documents()
		if err != nil {
			return object.Errorf("documents: %v", err)
		}

		var results []object.Object
		for _, d := range docs {
			results = append(results, documentToMap(d))
		}
		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

// MakeDocumentsToEmitFn creates a documents_to_emit function that filters
// Documents results to only documents in the emit radius. When radius is
// nil, returns all documents (full emit). Exported so engine.go can pass
// it as an extra global without importing object.
func MakeDocumentsToEmitFn(s *store.Store, radius map[int64]bool) any {
	return object.NewBuiltin("documents_to_emit", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("documents_to_emit", 0, len(args))
		}
		docs, err := s.Documents()
		if err != nil {
			return object.Errorf("documents_to_emit: %v", err)
		}

		var results []object.Object
		for _, d := range docs {
			if radius != nil && !radius[d.ID] {
				continue
			}
			results = append(results, documentToMap(d))
		}
		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

func makeFunctionsByDocumentFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("functions_by_document", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("functions_by_document", 1, len(args))
		}
		documentID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("functions_by_document: %v", err)
		}

		fns, queryErr := s.FunctionsByDocument(documentID)
		if queryErr != nil {
			return object.Errorf("functions_by_document: %v", queryErr)
		}

		var results []object.Object
		for _, f := range fns {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":          object.NewInt(f.ID),
				"document_id": object.NewInt(f.DocumentID),
				"name":        object.NewString(f.Name),
				"arity":       object.NewInt(int64(f.Arity)),
				"kind":        object.NewString(f.Kind),
				"line":        object.NewInt(int64(f.Line)),
			}))
		}
		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

func makeClosuresByDocumentFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("closures_by_document", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("closures_by_document", 1, len(args))
		}
		documentID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("closures_by_document: %v", err)
		}

		closures, queryErr := s.ClosuresByDocument(documentID)
		if queryErr != nil {
			return object.Errorf("closures_by_document: %v", queryErr)
		}

		var results []object.Object
		for _, c := range closures {
			results = append(results, closureToMap(c))
		}
		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

func makeFreeVariablesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("free_variables", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("free_variables", 1, len(args))
		}
		closureID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("free_variables: %v", err)
		}

		vars, queryErr := s.FreeVariablesByClosure(closureID)
		if queryErr != nil {
			return object.Errorf("free_variables: %v", queryErr)
		}

		var results []object.Object
		for _, v := range vars {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":              object.NewInt(v.ID),
				"closure_id":      object.NewInt(v.ClosureID),
				"name":            object.NewString(v.Name),
				"reference_count": object.NewInt(int64(v.ReferenceCount)),
				"locations":       locationsToList(v.Locations),
			}))
		}
		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

func makeClosureReferencesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("closure_references", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("closure_references", 1, len(args))
		}
		closureID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("closure_references: %v", err)
		}

		refs, queryErr := s.ReferencesByClosure(closureID)
		if queryErr != nil {
			return object.Errorf("closure_references: %v", queryErr)
		}

		var results []object.Object
		for _, r := range refs {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":         object.NewInt(r.ID),
				"closure_id": object.NewInt(r.ClosureID),
				"name":       object.NewString(r.Name),
				"line":       object.NewInt(int64(r.Line)),
				"col":        object.NewInt(int64(r.Col)),
			}))
		}
		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

func makeScopeChainFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("scope_chain", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("scope_chain", 1, len(args))
		}
		closureID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("scope_chain: %v", err)
		}

		scopes, queryErr := s.ScopesByClosure(closureID)
		if queryErr != nil {
			return object.Errorf("scope_chain: %v", queryErr)
		}

		var results []object.Object
		for _, sc := range scopes {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":           object.NewInt(sc.ID),
				"closure_id":   object.NewInt(sc.ClosureID),
				"level":        object.NewInt(int64(sc.Level)),
				"kind":         object.NewString(sc.Kind),
				"name":         object.NewString(sc.Name),
				"names":        stringsToList(sc.Names),
				"parent_level": object.NewInt(int64(sc.ParentLevel)),
			}))
		}
		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

func makeVariableSourcesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("variable_sources", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("variable_sources", 1, len(args))
		}
		closureID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("variable_sources: %v", err)
		}

		sources, queryErr := s.VariableSourcesByClosure(closureID)
		if queryErr != nil {
			return object.Errorf("variable_sources: %v", queryErr)
		}

		var results []object.Object
		for _, src := range sources {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":          object.NewInt(src.ID),
				"closure_id":  object.NewInt(src.ClosureID),
				"name":        object.NewString(src.Name),
				"scope_level": object.NewInt(int64(src.ScopeLevel)),
				"scope_kind":  object.NewString(src.ScopeKind),
				"scope_name":  object.NewString(src.ScopeName),
				"depth":       object.NewInt(int64(src.Depth)),
			}))
		}
		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

func makeEmitFactFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("emit_fact", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("emit_fact", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("emit_fact: %v", err)
		}

		fact := &store.Fact{
			Subject:   getString(m, "subject"),
			Predicate: getString(m, "predicate"),
			Object:    getString(m, "object"),
		}
		if fact.Subject == "" || fact.Predicate == "" || fact.Object == "" {
			return object.Errorf("emit_fact: subject, predicate and object are required")
		}
		if v, ok := getOptionalInt64(m, "document_id"); ok {
			fact.DocumentID = &v
		}

		id, insertErr := s.InsertFact(fact)
		if insertErr != nil {
			return object.Errorf("emit_fact: %v", insertErr)
		}
		// id is 0 when the triple already exists.
		return object.NewInt(id)
	})
}

// --- Row to Risor map converters ---

func documentToMap(d store.Document) object.Object {
	return object.NewMap(map[string]object.Object{
		"id":     object.NewInt(d.ID),
		"path":   object.NewString(d.Path),
		"module": object.NewString(d.Module),
	})
}

func closureToMap(c store.Closure) object.Object {
	m := map[string]object.Object{
		"id":                         object.NewInt(c.ID),
		"document_id":                object.NewInt(c.DocumentID),
		"line":                       object.NewInt(int64(c.Line)),
		"col":                        object.NewInt(int64(c.Col)),
		"arity":                      object.NewInt(int64(c.Arity)),
		"clause_count":               object.NewInt(int64(c.ClauseCount)),
		"bound_names":                stringsToList(c.BoundNames),
		"referenced_names":           stringsToList(c.ReferencedNames),
		"has_captures":               object.NewBool(c.HasCaptures),
		"total_capture_count":        object.NewInt(int64(c.TotalCaptureCount)),
		"capture_depth":              object.NewInt(int64(c.CaptureDepth)),
		"crosses_function_boundary":  object.NewBool(c.CrossesFunctionBoundary),
		"captures_module_attributes": object.NewBool(c.CapturesModuleAttributes),
	}
	if c.FunctionID != nil {
		m["function_id"] = object.NewInt(*c.FunctionID)
	}
	return object.NewMap(m)
}

func stringsToList(names []string) object.Object {
	items := make([]object.Object, 0, len(names))
	for _, n := range names {
		items = append(items, object.NewString(n))
	}
	return object.NewList(items)
}

func locationsToList(locs []store.Location) object.Object {
	items := make([]object.Object, 0, len(locs))
	for _, l := range locs {
		items = append(items, object.NewMap(map[string]object.Object{
			"line": object.NewInt(int64(l.Line)),
			"col":  object.NewInt(int64(l.Col)),
		}))
	}
	return object.NewList(items)
}
