package understory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// goldenFact is one expected triple, in the (subject, predicate, object)
// order FactsMatching returns.
type goldenFact struct {
	Subject   string
	Predicate string
	Object    string
}

// TestGolden_WorkerFacts pins the exact fact output for the worker
// fixture: a closure capturing a local bound in its enclosing function
// plus a module attribute. Any change to the analysis or the emit scripts
// that alters the graph shows up here.
func TestGolden_WorkerFacts(t *testing.T) {
	e := newTestEngine(t)
	path := writeDoc(t, t.TempDir(), "worker.ast.json", workerDoc)
	ctx := context.Background()

	_, err := e.IndexDocuments(ctx, []string{path})
	require.NoError(t, err)
	_, err = e.Emit(ctx)
	require.NoError(t, err)

	res, err := e.Query().FactsMatching(FactFilter{}, Pagination{Limit: 100})
	require.NoError(t, err)

	var got []goldenFact
	for _, f := range res.Items {
		got = append(got, goldenFact{f.Subject, f.Predicate, f.Object})
	}

	want := []goldenFact{
		{"MyApp.Worker", "definesClosure", "MyApp.Worker:6:5"},
		{"MyApp.Worker", "definesFunction", "MyApp.Worker.start/1"},
		{"MyApp.Worker:6:5", "captureDepth", "1"},
		{"MyApp.Worker:6:5", "capturesFrom", "count@start/1"},
		{"MyApp.Worker:6:5", "capturesFrom", "retry_limit@MyApp.Worker"},
		{"MyApp.Worker:6:5", "capturesFromScopeKind", "function"},
		{"MyApp.Worker:6:5", "capturesFromScopeKind", "module"},
		{"MyApp.Worker:6:5", "capturesModuleAttributes", "true"},
		{"MyApp.Worker:6:5", "capturesVariable", "count"},
		{"MyApp.Worker:6:5", "capturesVariable", "retry_limit"},
		{"MyApp.Worker:6:5", "crossesFunctionBoundary", "true"},
		{"MyApp.Worker:6:5", "definedInFunction", "MyApp.Worker.start/1"},
	}
	assert.Equal(t, want, got)
}

// TestGolden_QueueFacts pins the output for a non-capturing closure:
// structural facts only.
func TestGolden_QueueFacts(t *testing.T) {
	e := newTestEngine(t)
	path := writeDoc(t, t.TempDir(), "queue.ast.json", queueDoc)
	ctx := context.Background()

	_, err := e.IndexDocuments(ctx, []string{path})
	require.NoError(t, err)
	_, err = e.Emit(ctx)
	require.NoError(t, err)

	res, err := e.Query().FactsMatching(FactFilter{}, Pagination{Limit: 100})
	require.NoError(t, err)

	var got []goldenFact
	for _, f := range res.Items {
		got = append(got, goldenFact{f.Subject, f.Predicate, f.Object})
	}

	want := []goldenFact{
		{"MyApp.Queue", "definesClosure", "MyApp.Queue:4:21"},
		{"MyApp.Queue", "definesFunction", "MyApp.Queue.drain/1"},
		{"MyApp.Queue:4:21", "definedInFunction", "MyApp.Queue.drain/1"},
	}
	assert.Equal(t, want, got)
}

// TestGolden_StableAcrossReindex re-runs the whole pipeline and verifies
// the graph is byte-for-byte identical: the analysis is deterministic.
func TestGolden_StableAcrossReindex(t *testing.T) {
	run := func() []goldenFact {
		e := newTestEngine(t)
		path := writeDoc(t, t.TempDir(), "worker.ast.json", workerDoc)
		ctx := context.Background()
		_, err := e.IndexDocuments(ctx, []string{path})
		require.NoError(t, err)
		_, err = e.Emit(ctx)
		require.NoError(t, err)

		res, err := e.Query().FactsMatching(FactFilter{}, Pagination{Limit: 100})
		require.NoError(t, err)
		var got []goldenFact
		for _, f := range res.Items {
			got = append(got, goldenFact{f.Subject, f.Predicate, f.Object})
		}
		return got
	}

	assert.Equal(t, run(), run())
}
