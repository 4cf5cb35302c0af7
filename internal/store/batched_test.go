package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_ClosuresByDocument_ReturnsBufferedClosures(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	// Insert a real document into the database (simulates Phase A of parallel indexing).
	d := insertTestDocument(t, s, "lib/a.ast.json", "A")

	// Create a BatchedStore (simulates what a worker goroutine uses).
	batch := NewBatchedStore(s)

	// Insert closures into the batch (not committed to DB yet).
	id1, err := batch.InsertClosure(&Closure{DocumentID: d.ID, Line: 10, Col: 3})
	require.NoError(t, err)
	assert.Negative(t, id1, "batched IDs should be negative")

	id2, err := batch.InsertClosure(&Closure{DocumentID: d.ID, Line: 20, Col: 3})
	require.NoError(t, err)
	assert.Negative(t, id2)

	// ClosuresByDocument should return the buffered closures even though
	// they haven't been committed to SQLite yet.
	closures, err := batch.ClosuresByDocument(d.ID)
	require.NoError(t, err)
	require.Len(t, closures, 2)

	for _, c := range closures {
		assert.Negative(t, c.ID, "buffered closures should have negative IDs")
	}
}

func TestBatchedStore_ClosuresByDocument_MergesWithDatabase(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	d := insertTestDocument(t, s, "lib/a.ast.json", "A")

	// Insert a closure directly into the database (e.g., from a previous indexing run).
	insertTestClosure(t, s, d.ID, nil, 5)

	batch := NewBatchedStore(s)
	_, err := batch.InsertClosure(&Closure{DocumentID: d.ID, Line: 10, Col: 3})
	require.NoError(t, err)

	closures, err := batch.ClosuresByDocument(d.ID)
	require.NoError(t, err)
	require.Len(t, closures, 2)

	lines := []int{closures[0].Line, closures[1].Line}
	assert.Contains(t, lines, 5)
	assert.Contains(t, lines, 10)
}

func TestBatchedStore_ClosuresByDocument_DoesNotReturnOtherDocuments(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	d1 := insertTestDocument(t, s, "lib/a.ast.json", "A")
	d2 := insertTestDocument(t, s, "lib/b.ast.json", "B")

	batch := NewBatchedStore(s)
	_, err := batch.InsertClosure(&Closure{DocumentID: d1.ID, Line: 10})
	require.NoError(t, err)
	_, err = batch.InsertClosure(&Closure{DocumentID: d2.ID, Line: 20})
	require.NoError(t, err)

	closures, err := batch.ClosuresByDocument(d1.ID)
	require.NoError(t, err)
	require.Len(t, closures, 1)
	assert.Equal(t, 10, closures[0].Line)
}

func TestCommitBatch_RemapsFakeIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	d := insertTestDocument(t, s, "lib/a.ast.json", "A")

	batch := NewBatchedStore(s)

	fnID, err := batch.InsertFunction(&Function{DocumentID: d.ID, Name: "run", Arity: 1, Kind: "def", Line: 5})
	require.NoError(t, err)
	require.Negative(t, fnID)

	clID, err := batch.InsertClosure(&Closure{
		DocumentID:      d.ID,
		FunctionID:      ptr(fnID),
		Line:            7,
		Col:             12,
		BoundNames:      []string{"x"},
		ReferencedNames: []string{"x", "y"},
		HasCaptures:     true,
	})
	require.NoError(t, err)
	require.Negative(t, clID)

	_, err = batch.InsertClosureScope(&ClosureScope{ClosureID: clID, Level: 0, Kind: "module", Name: "A", ParentLevel: -1})
	require.NoError(t, err)
	_, err = batch.InsertReference(&Reference{ClosureID: clID, Name: "y", Line: 8, Col: 5})
	require.NoError(t, err)
	_, err = batch.InsertFreeVariable(&FreeVariable{ClosureID: clID, Name: "y", ReferenceCount: 1, Locations: []Location{{Line: 8, Col: 5}}})
	require.NoError(t, err)
	_, err = batch.InsertVariableSource(&VariableSource{ClosureID: clID, Name: "y", ScopeLevel: 1, ScopeKind: "function", ScopeName: "run/1"})
	require.NoError(t, err)

	require.NoError(t, s.CommitBatch(batch))

	// Everything lands in SQLite with real IDs and intact relationships.
	fns, err := s.FunctionsByDocument(d.ID)
	require.NoError(t, err)
	require.Len(t, fns, 1)
	require.Positive(t, fns[0].ID)

	closures, err := s.ClosuresByDocument(d.ID)
	require.NoError(t, err)
	require.Len(t, closures, 1)
	c := closures[0]
	require.Positive(t, c.ID)
	require.NotNil(t, c.FunctionID)
	assert.Equal(t, fns[0].ID, *c.FunctionID)

	scopes, err := s.ScopesByClosure(c.ID)
	require.NoError(t, err)
	require.Len(t, scopes, 1)
	assert.Equal(t, "module", scopes[0].Kind)

	refs, err := s.ReferencesByClosure(c.ID)
	require.NoError(t, err)
	assert.Len(t, refs, 1)

	vars, err := s.FreeVariablesByClosure(c.ID)
	require.NoError(t, err)
	require.Len(t, vars, 1)
	assert.Equal(t, "y", vars[0].Name)

	sources, err := s.VariableSourcesByClosure(c.ID)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "run/1", sources[0].ScopeName)
}

func TestCommitBatch_ClosureWithoutFunction(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	d := insertTestDocument(t, s, "lib/a.ast.json", "A")

	batch := NewBatchedStore(s)
	// Module-level closure, no enclosing function.
	_, err := batch.InsertClosure(&Closure{DocumentID: d.ID, Line: 3, Col: 1})
	require.NoError(t, err)

	require.NoError(t, s.CommitBatch(batch))

	closures, err := s.ClosuresByDocument(d.ID)
	require.NoError(t, err)
	require.Len(t, closures, 1)
	assert.Nil(t, closures[0].FunctionID)
}

func TestCommitBatch_EmptyBatch(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	batch := NewBatchedStore(s)
	require.NoError(t, s.CommitBatch(batch))
}
