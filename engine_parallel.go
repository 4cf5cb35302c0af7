package understory

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/jward/understory/capture"
	"github.com/jward/understory/expr"
	"github.com/jward/understory/internal/store"
)

// workItem holds everything a parallel analysis worker needs.
type workItem struct {
	path       string
	documentID int64
	doc        *expr.Document
	batch      *store.BatchedStore
}

// IndexDocumentsParallel indexes documents using a three-phase pipeline:
//
//	Phase A (serial):  Hash check, decode, delete old data, insert document records.
//	Phase B (parallel): Scope analysis via worker pool, writes buffered per document.
//	Phase C (serial):  Commit batches to SQLite, accumulate the emit radius.
func (e *Engine) IndexDocumentsParallel(ctx context.Context, paths []string) (*IndexStats, error) {
	if e.emitRadius == nil {
		e.emitRadius = make(map[int64]bool)
	}
	stats := &IndexStats{}

	// ---- Phase A: Serial document preparation ----
	var (
		items []workItem
		errs  []error
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		item, skip, err := e.prepareDocument(path)
		if err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("prepare %s: %w", path, err))
			continue
		}
		if skip {
			stats.Skipped++
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		if len(errs) > 0 {
			return stats, fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
		}
		return stats, nil
	}

	// ---- Phase B: Parallel analysis ----
	numWorkers := min(runtime.NumCPU(), len(items))
	if numWorkers < 1 {
		numWorkers = 1
	}

	workCh := make(chan workItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	type result struct {
		item workItem
		err  error
	}
	resultCh := make(chan result, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Analysis is pure computation; each item's BatchedStore
			// buffers writes until the serial commit phase.
			for item := range workCh {
				if err := ctx.Err(); err != nil {
					resultCh <- result{item: item, err: err}
					continue
				}
				resultCh <- result{item: item, err: analyzeDocument(item)}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: Serial commit ----
	for res := range resultCh {
		if res.err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("analyze %s: %w", res.item.path, res.err))
			continue
		}

		if err := e.store.CommitBatch(res.item.batch); err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("commit %s: %w", res.item.path, err))
			continue
		}

		stats.Indexed++
		e.emitRadius[res.item.documentID] = true
	}

	if len(errs) > 0 {
		return stats, fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return stats, nil
}

// prepareDocument does Phase A work for one document: hash check, decode,
// cleanup of the previous analysis, and the document record insert. The
// returned item carries a fresh BatchedStore for the analysis worker.
// skip=true means unchanged, filtered out, or not a document file.
func (e *Engine) prepareDocument(path string) (workItem, bool, error) {
	if !isDocumentPath(path) {
		return workItem{}, true, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("read document: %w", err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(content))

	existing, err := e.store.DocumentByPath(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("lookup document: %w", err)
	}
	if existing != nil && existing.Hash == hash {
		return workItem{}, true, nil // unchanged
	}

	doc, err := expr.DecodeDocument(content)
	if err != nil {
		return workItem{}, false, err
	}
	doc.Path = path
	if e.modules != nil && !e.modules[doc.Module] {
		return workItem{}, true, nil
	}

	if existing != nil {
		if err := e.store.DeleteDocumentData(existing.ID); err != nil {
			return workItem{}, false, fmt.Errorf("delete old analysis: %w", err)
		}
		if err := e.store.DeleteDocument(existing.ID); err != nil {
			return workItem{}, false, fmt.Errorf("delete document record: %w", err)
		}
	}

	// The document row is inserted serially so workers only ever hold
	// fake IDs for rows they created themselves.
	documentID, err := e.store.InsertDocument(&store.Document{
		Path:      path,
		Module:    doc.Module,
		Hash:      hash,
		IndexedAt: time.Now(),
	})
	if err != nil {
		return workItem{}, false, fmt.Errorf("insert document: %w", err)
	}

	return workItem{
		path:       path,
		documentID: documentID,
		doc:        doc,
		batch:      store.NewBatchedStore(e.store),
	}, false, nil
}

// analyzeDocument runs scope analysis for one document, buffering all
// writes in the item's BatchedStore.
func analyzeDocument(item workItem) error {
	reports, err := capture.WalkDocument(item.doc)
	if err != nil {
		return err
	}
	return persistReports(item.batch, item.doc, item.documentID, reports)
}
