// Package understory provides deterministic, scope-aware closure capture
// analysis for pre-parsed expression documents. It classifies every
// anonymous function in a document by the variables it captures from
// enclosing scopes and emits the results as subject/predicate/object facts
// suitable for knowledge-graph construction.
//
// # Pipeline
//
// Understory operates in two phases:
//
//  1. Index: For each expression document (a JSON AST dump), run scope
//     analysis to find each closure's bound variables, free variables, and
//     the scope chain that resolves them, and write the results to SQLite.
//
//  2. Emit: Run Risor emit scripts that walk the stored analysis and
//     produce semantic facts: which module defines which closure, which
//     variables a closure captures, where each captured variable comes
//     from, and whether the capture crosses a function boundary.
//
// # Usage
//
// Create an Engine, index documents, emit facts, and query:
//
//	e, err := understory.New("understory.db", "", understory.WithScriptsFS(scripts.FS))
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	stats, err := e.IndexDirectory(ctx, "path/to/ast-dumps")
//	_, err = e.Emit(ctx)
//
//	q := e.Query()
//	detail, err := q.ClosureAt("MyApp.Worker", 42, 8)
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] provides:
//
//   - [QueryBuilder.ClosureAt]: the closure at a module position, with its
//     full capture analysis.
//   - [QueryBuilder.Closures]: filtered, paginated closure discovery.
//   - [QueryBuilder.CaptureSites]: every place a variable name is captured.
//   - [QueryBuilder.FactsMatching]: query the emitted fact graph.
//   - [QueryBuilder.ProjectSummary]: per-module capture statistics.
//
// # Incremental Indexing
//
// [Engine.IndexDocuments] detects unchanged documents via content hashing
// and skips them. When a document changes, its previous analysis and facts
// are replaced, and the next [Engine.Emit] re-runs scripts only for the
// changed documents. Use [WithModules] to restrict which modules the
// Engine processes.
//
// # Scripts
//
// Fact emission logic lives in Risor scripts; the compiled-in defaults are
// in the scripts package:
//
//   - graph.risor: structural facts (definesFunction, definesClosure,
//     definedInFunction)
//   - captures.risor: capture facts (capturesVariable, capturesFrom,
//     captureDepth, crossesFunctionBoundary, capturesModuleAttributes)
//
// Scripts receive the stored analysis via host functions. See the
// internal/runtime package for the full set of globals exposed to scripts.
package understory
