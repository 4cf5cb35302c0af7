package understory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jward/understory/capture"
	"github.com/jward/understory/expr"
	"github.com/jward/understory/internal/runtime"
	"github.com/jward/understory/internal/store"
)

// Engine orchestrates the understory pipeline: document discovery, change
// detection, scope analysis, fact emission via Risor scripts, and query access.
type Engine struct {
	store      *store.Store
	runtime    *runtime.Runtime
	scriptsDir string
	scriptsFS  fs.FS
	modules    map[string]bool // nil means all modules

	// emitRadius accumulates document IDs that need fact re-emission after
	// indexing. nil means "emit everything" (first run or full reindex).
	emitRadius map[int64]bool

	// useParallel enables the parallel analysis pipeline.
	useParallel bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithModules restricts which modules the Engine will index. Documents whose
// top-level module is not in the list are skipped.
func WithModules(modules ...string) Option {
	return func(e *Engine) {
		e.modules = make(map[string]bool, len(modules))
		for _, m := range modules {
			e.modules[m] = true
		}
	}
}

// WithParallel controls parallel analysis. When true (default),
// IndexDocuments uses a worker pool for scope analysis, with a single writer
// goroutine committing batches to SQLite. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithScriptsFS configures the Engine to load Risor scripts from the given
// filesystem instead of from the scriptsDir path on disk. This enables
// embedding scripts via go:embed. When set, scriptsDir is ignored for
// script loading but may still be used as a label in error messages.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// New creates an Engine backed by a SQLite database at dbPath.
// Script loading priority:
//  1. If WithScriptsFS is set, use the provided fs.FS
//  2. Otherwise, use scriptsDir on disk
//
// The scriptsDir parameter may be empty when WithScriptsFS is used.
func New(dbPath string, scriptsDir string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("understory: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("understory: migrate: %w", err)
	}

	// Apply options to a temporary Engine to collect configuration before
	// creating the Runtime, since the Runtime needs to know about fs.FS.
	e := &Engine{
		store:       s,
		scriptsDir:  scriptsDir,
		useParallel: true, // default to parallel analysis
	}
	for _, opt := range opts {
		opt(e)
	}

	// Build Runtime with the appropriate script source.
	var rtOpts []runtime.RuntimeOption
	if e.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.scriptsFS))
	}
	e.runtime = runtime.NewRuntime(s, scriptsDir, rtOpts...)

	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

// scriptsHash computes a SHA-256 hash of all emit scripts. Walks the
// scriptsFS or scriptsDir to find all .risor files, sorts them by path,
// and hashes their concatenated contents. Returns hex-encoded hash string.
func (e *Engine) scriptsHash() string {
	var paths []string

	if e.scriptsFS != nil {
		fs.WalkDir(e.scriptsFS, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() && strings.HasSuffix(path, ".risor") {
				paths = append(paths, path)
			}
			return nil
		})
	} else if e.scriptsDir != "" {
		filepath.WalkDir(e.scriptsDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() && strings.HasSuffix(path, ".risor") {
				rel, _ := filepath.Rel(e.scriptsDir, path)
				paths = append(paths, rel)
			}
			return nil
		})
	}

	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		src, err := e.runtime.LoadScript(p)
		if err != nil {
			continue
		}
		h.Write([]byte(p))
		h.Write([]byte(src))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// ScriptsChanged reports whether the emit scripts differ from what was used
// to build the current database. Returns true if the DB has no stored hash
// (first run) or if the hash doesn't match. When true, the caller should
// re-emit all facts, or delete the DB and reindex from scratch.
func (e *Engine) ScriptsChanged() bool {
	current := e.scriptsHash()
	stored, err := e.store.GetMetadata("scripts_hash")
	if err != nil || stored == "" {
		return true
	}
	return current != stored
}

// storeScriptsHash persists the current scripts hash to the database.
func (e *Engine) storeScriptsHash() {
	_ = e.store.SetMetadata("scripts_hash", e.scriptsHash())
}

// IndexStats summarizes an indexing pass.
type IndexStats struct {
	Indexed int // documents analyzed and stored
	Skipped int // unchanged, filtered out, or not expression documents
	Failed  int // documents that errored
}

// IndexDocuments indexes the given expression document paths. Unchanged
// documents (same content hash) are skipped. Changed documents have their
// previous analysis deleted and rebuilt, and are added to the emit radius
// for the next Emit call.
func (e *Engine) IndexDocuments(ctx context.Context, paths []string) (*IndexStats, error) {
	if e.useParallel {
		return e.IndexDocumentsParallel(ctx, paths)
	}
	return e.indexDocumentsSerial(ctx, paths)
}

func (e *Engine) indexDocumentsSerial(ctx context.Context, paths []string) (*IndexStats, error) {
	// Initialize the emit radius so Emit knows indexing ran. An empty
	// non-nil map after a no-op pass means "nothing to emit".
	if e.emitRadius == nil {
		e.emitRadius = make(map[int64]bool)
	}

	stats := &IndexStats{}
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		indexed, err := e.indexDocument(path)
		switch {
		case err != nil:
			stats.Failed++
			errs = append(errs, fmt.Errorf("index %s: %w", path, err))
		case indexed:
			stats.Indexed++
		default:
			stats.Skipped++
		}
	}
	if len(errs) > 0 {
		return stats, fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return stats, nil
}

// indexDocument indexes one document. Returns false with a nil error when
// the document was skipped (unchanged, filtered out, or not a document file).
func (e *Engine) indexDocument(path string) (bool, error) {
	if !isDocumentPath(path) {
		return false, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read document: %w", err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(content))

	existing, err := e.store.DocumentByPath(path)
	if err != nil {
		return false, fmt.Errorf("lookup document: %w", err)
	}
	if existing != nil && existing.Hash == hash {
		return false, nil // unchanged
	}

	doc, err := expr.DecodeDocument(content)
	if err != nil {
		return false, err
	}
	doc.Path = path
	if e.modules != nil && !e.modules[doc.Module] {
		return false, nil // module filtered out
	}

	// Re-index: remove the previous analysis before inserting fresh rows.
	if existing != nil {
		if err := e.store.DeleteDocumentData(existing.ID); err != nil {
			return false, fmt.Errorf("delete old analysis: %w", err)
		}
		if err := e.store.DeleteDocument(existing.ID); err != nil {
			return false, fmt.Errorf("delete document record: %w", err)
		}
	}

	documentID, err := e.store.InsertDocument(&store.Document{
		Path:      path,
		Module:    doc.Module,
		Hash:      hash,
		IndexedAt: time.Now(),
	})
	if err != nil {
		return false, fmt.Errorf("insert document: %w", err)
	}

	reports, err := capture.WalkDocument(doc)
	if err != nil {
		return false, fmt.Errorf("analyze: %w", err)
	}
	if err := persistReports(e.store, doc, documentID, reports); err != nil {
		return false, err
	}

	e.emitRadius[documentID] = true
	return true, nil
}

// persistReports writes a document's functions and closure reports through
// ds, which is either the live Store (serial path) or a per-document
// BatchedStore (parallel path). Functions go first so closures can point at
// their enclosing function's ID.
func persistReports(ds store.DataStore, doc *expr.Document, documentID int64, reports []*capture.ClosureReport) error {
	fnIDs := make(map[*expr.Function]int64, len(doc.Functions))
	for _, fn := range doc.Functions {
		id, err := ds.InsertFunction(&store.Function{
			DocumentID: documentID,
			Name:       fn.Name,
			Arity:      fn.Arity,
			Kind:       fn.Kind,
			Line:       fn.Line,
		})
		if err != nil {
			return fmt.Errorf("insert function %s/%d: %w", fn.Name, fn.Arity, err)
		}
		fnIDs[fn] = id
	}

	for _, rep := range reports {
		loc := rep.Fn.Loc()
		closure := &store.Closure{
			DocumentID:               documentID,
			Line:                     loc.Line,
			Col:                      loc.Col,
			Arity:                    rep.Fn.Arity(),
			ClauseCount:              len(rep.Fn.Clauses),
			BoundNames:               rep.Analysis.BoundVariables,
			ReferencedNames:          rep.Analysis.AllReferences,
			HasCaptures:              rep.Analysis.HasCaptures,
			TotalCaptureCount:        rep.Analysis.TotalCaptureCount,
			CaptureDepth:             rep.Scopes.CaptureDepth,
			CrossesFunctionBoundary:  rep.Scopes.CrossesFunctionBoundary,
			CapturesModuleAttributes: rep.Scopes.CapturesModuleAttributes,
		}
		if rep.Function != nil {
			if id, ok := fnIDs[rep.Function]; ok {
				closure.FunctionID = &id
			}
		}
		closureID, err := ds.InsertClosure(closure)
		if err != nil {
			return fmt.Errorf("insert closure %d:%d: %w", loc.Line, loc.Col, err)
		}

		for _, sc := range rep.Scopes.Chain {
			if _, err := ds.InsertClosureScope(&store.ClosureScope{
				ClosureID:   closureID,
				Level:       sc.Level,
				Kind:        sc.Kind.String(),
				Name:        sc.Name,
				Names:       sc.Names.Sorted(),
				ParentLevel: sc.Parent,
			}); err != nil {
				return fmt.Errorf("insert scope level %d: %w", sc.Level, err)
			}
		}

		for _, fv := range rep.Analysis.FreeVariables {
			locs := make([]store.Location, 0, len(fv.Refs))
			for _, ref := range fv.Refs {
				if _, err := ds.InsertReference(&store.Reference{
					ClosureID: closureID,
					Name:      ref.Name,
					Line:      ref.Line,
					Col:       ref.Col,
				}); err != nil {
					return fmt.Errorf("insert reference %s: %w", fv.Name, err)
				}
				locs = append(locs, store.Location{Line: ref.Line, Col: ref.Col})
			}
			if _, err := ds.InsertFreeVariable(&store.FreeVariable{
				ClosureID:      closureID,
				Name:           fv.Name,
				ReferenceCount: fv.Count,
				Locations:      locs,
			}); err != nil {
				return fmt.Errorf("insert free variable %s: %w", fv.Name, err)
			}
		}

		names := make([]string, 0, len(rep.Scopes.VariableSources))
		for name := range rep.Scopes.VariableSources {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			scope := rep.Scopes.VariableSources[name]
			if _, err := ds.InsertVariableSource(&store.VariableSource{
				ClosureID:  closureID,
				Name:       name,
				ScopeLevel: scope.Level,
				ScopeKind:  scope.Kind.String(),
				ScopeName:  scope.Name,
				Depth:      rep.Scopes.Depth(scope),
			}); err != nil {
				return fmt.Errorf("insert variable source %s: %w", name, err)
			}
		}
	}
	return nil
}

// isDocumentPath reports whether path looks like a pre-parsed expression
// document produced by the AST dump step.
func isDocumentPath(path string) bool {
	return strings.HasSuffix(path, ".ast.json")
}

// skipDirs are directory names excluded from document discovery.
var skipDirs = map[string]bool{
	"_build":       true,
	"deps":         true,
	"node_modules": true,
}

// IndexDirectory discovers expression documents under root and indexes them.
// Prefers `git ls-files` for discovery (respects .gitignore); falls back to
// a filesystem walk when root is not a git checkout.
func (e *Engine) IndexDirectory(ctx context.Context, root string) (*IndexStats, error) {
	paths, err := gitListFiles(root)
	if err != nil {
		paths, err = walkListFiles(root)
		if err != nil {
			return nil, fmt.Errorf("discover documents: %w", err)
		}
	}

	var docs []string
	for _, p := range paths {
		if isDocumentPath(p) {
			docs = append(docs, p)
		}
	}
	sort.Strings(docs)

	if err := e.removeStaleDocuments(root, docs); err != nil {
		return nil, err
	}

	return e.IndexDocuments(ctx, docs)
}

// removeStaleDocuments deletes stored records for documents under root that
// are no longer on disk, including any facts emitted for them. Documents
// outside root are left alone.
func (e *Engine) removeStaleDocuments(root string, found []string) error {
	stored, err := e.store.Documents()
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	onDisk := make(map[string]bool, len(found))
	for _, p := range found {
		onDisk[p] = true
	}

	var stale []store.Document
	for _, doc := range stored {
		if onDisk[doc.Path] {
			continue
		}
		rel, err := filepath.Rel(root, doc.Path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue // outside root
		}
		stale = append(stale, doc)
	}
	if len(stale) == 0 {
		return nil
	}

	ids := make([]int64, len(stale))
	for i, doc := range stale {
		ids[i] = doc.ID
	}
	if err := e.store.DeleteFactsForDocuments(ids); err != nil {
		return fmt.Errorf("delete stale facts: %w", err)
	}
	for _, doc := range stale {
		if err := e.store.DeleteDocumentData(doc.ID); err != nil {
			return fmt.Errorf("delete stale analysis %s: %w", doc.Path, err)
		}
		if err := e.store.DeleteDocument(doc.ID); err != nil {
			return fmt.Errorf("delete stale document %s: %w", doc.Path, err)
		}
	}
	return nil
}

// gitListFiles lists tracked and untracked-but-not-ignored files via git.
func gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, line := range bytes.Split(out, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		paths = append(paths, filepath.Join(root, string(line)))
	}
	return paths, nil
}

// walkListFiles walks the directory tree, skipping hidden directories and
// common build output.
func walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// EmitStats summarizes a fact emission pass.
type EmitStats struct {
	ScriptsRun   int
	Documents    int // documents facts were (re)emitted for
	FactsEmitted int // net new facts stored
}

// Emit runs the emit scripts over indexed documents, producing semantic
// facts. After IndexDocuments it emits only for documents in the emit
// radius; called on a fresh Engine it emits for every stored document.
// Stale facts for affected documents are deleted first, so Emit is safe
// to re-run.
func (e *Engine) Emit(ctx context.Context) (*EmitStats, error) {
	// Consume the emit radius regardless of outcome. The next indexing
	// pass rebuilds it.
	defer func() { e.emitRadius = nil }()

	stats := &EmitStats{}

	// A script change invalidates every stored fact, not just the ones in
	// the radius.
	if e.emitRadius != nil && e.ScriptsChanged() {
		e.emitRadius = nil
	}

	// A non-nil empty radius means indexing ran but nothing changed.
	if e.emitRadius != nil && len(e.emitRadius) == 0 {
		return stats, nil
	}

	if e.emitRadius != nil {
		ids := make([]int64, 0, len(e.emitRadius))
		for id := range e.emitRadius {
			ids = append(ids, id)
		}
		if err := e.store.DeleteFactsForDocuments(ids); err != nil {
			return nil, fmt.Errorf("delete stale facts: %w", err)
		}
		stats.Documents = len(ids)
	} else {
		if err := e.store.DeleteAllFacts(); err != nil {
			return nil, fmt.Errorf("delete facts: %w", err)
		}
		docs, err := e.store.Documents()
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		stats.Documents = len(docs)
	}

	before, err := e.store.CountFacts()
	if err != nil {
		return nil, fmt.Errorf("count facts: %w", err)
	}

	names, err := e.runtime.ListScripts()
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}

	// documents_to_emit exposes the emit radius to scripts. A nil radius
	// yields every stored document.
	extras := map[string]any{
		"documents_to_emit": runtime.MakeDocumentsToEmitFn(e.store, e.emitRadius),
	}

	var errs []error
	for _, name := range names {
		if err := e.runtime.RunScript(ctx, name, extras); err != nil {
			errs = append(errs, fmt.Errorf("emit script %s: %w", name, err))
			continue
		}
		stats.ScriptsRun++
	}
	if len(errs) > 0 {
		return stats, fmt.Errorf("emission had %d error(s): %w", len(errs), errs[0])
	}

	after, err := e.store.CountFacts()
	if err != nil {
		return nil, fmt.Errorf("count facts: %w", err)
	}
	stats.FactsEmitted = after - before

	e.storeScriptsHash()

	return stats, nil
}
