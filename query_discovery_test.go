package understory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/understory/internal/store"
)

// seedDiscoveryFixture inserts two documents with a mix of capturing and
// non-capturing closures:
//
//	App.Worker (lib/app/worker.ast.json), run/1
//	  closure 6:5   captures count (x2), depth 0
//	  closure 9:3   captures config, depth 1, crosses boundary, module attrs
//	App.Web.Router (lib/app_web/router.ast.json), dispatch/2
//	  closure 4:7   no captures
func seedDiscoveryFixture(t *testing.T, s *store.Store) {
	t.Helper()
	workerID := insertDocument(t, s, "lib/app/worker.ast.json", "App.Worker")
	runID := insertFunction(t, s, workerID, "run", 1, 4)

	c1 := insertClosure(t, s, &store.Closure{
		DocumentID: workerID, FunctionID: &runID, Line: 6, Col: 5, Arity: 1, ClauseCount: 1,
		BoundNames: []string{"msg"}, ReferencedNames: []string{"count", "msg"},
		HasCaptures: true, TotalCaptureCount: 2, CaptureDepth: 0,
	})
	insertFreeVariable(t, s, c1, "count", 2, store.Location{Line: 7, Col: 24})

	c2 := insertClosure(t, s, &store.Closure{
		DocumentID: workerID, FunctionID: &runID, Line: 9, Col: 3, Arity: 0, ClauseCount: 1,
		ReferencedNames: []string{"config"},
		HasCaptures:     true, TotalCaptureCount: 1, CaptureDepth: 1,
		CrossesFunctionBoundary: true, CapturesModuleAttributes: true,
	})
	insertFreeVariable(t, s, c2, "config", 1, store.Location{Line: 10, Col: 8})

	routerID := insertDocument(t, s, "lib/app_web/router.ast.json", "App.Web.Router")
	dispatchID := insertFunction(t, s, routerID, "dispatch", 2, 3)
	insertClosure(t, s, &store.Closure{
		DocumentID: routerID, FunctionID: &dispatchID, Line: 4, Col: 7, Arity: 1, ClauseCount: 1,
		BoundNames: []string{"conn"}, ReferencedNames: []string{"conn"},
	})
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }

func TestClosures_EmptyFilterListsAll(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedDiscoveryFixture(t, s)

	res, err := q.Closures(ClosureFilter{}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)
	assert.Len(t, res.Items, 3)
}

func TestClosures_FilterByModule(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedDiscoveryFixture(t, s)

	res, err := q.Closures(ClosureFilter{Module: strPtr("App.Worker")}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
	for _, cr := range res.Items {
		assert.Equal(t, "App.Worker", cr.Module)
	}
}

func TestClosures_FilterByPathPrefix(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedDiscoveryFixture(t, s)

	// "lib/app" must not match "lib/app_web"
	res, err := q.Closures(ClosureFilter{PathPrefix: strPtr("lib/app")}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
}

func TestClosures_FilterByFunctionName(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedDiscoveryFixture(t, s)

	res, err := q.Closures(ClosureFilter{FunctionName: strPtr("dispatch")}, Sort{}, Pagination{})
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalCount)
	assert.Equal(t, "dispatch/2", res.Items[0].FunctionName)
}

func TestClosures_FilterByCaptureFlags(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedDiscoveryFixture(t, s)

	capturing, err := q.Closures(ClosureFilter{HasCaptures: boolPtr(true)}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 2, capturing.TotalCount)

	crossing, err := q.Closures(ClosureFilter{CrossesFunctionBoundary: boolPtr(true)}, Sort{}, Pagination{})
	require.NoError(t, err)
	require.Equal(t, 1, crossing.TotalCount)
	assert.Equal(t, 9, crossing.Items[0].Line)

	attrs, err := q.Closures(ClosureFilter{CapturesModuleAttributes: boolPtr(true)}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 1, attrs.TotalCount)
}

func TestClosures_FilterByMinCaptureDepth(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedDiscoveryFixture(t, s)

	res, err := q.Closures(ClosureFilter{MinCaptureDepth: intPtr(1)}, Sort{}, Pagination{})
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalCount)
	assert.Equal(t, 1, res.Items[0].CaptureDepth)
}

func TestClosures_FilterByCapturedName(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedDiscoveryFixture(t, s)

	res, err := q.Closures(ClosureFilter{CapturesName: strPtr("count")}, Sort{}, Pagination{})
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalCount)
	assert.Equal(t, 6, res.Items[0].Line)
}

func TestClosures_SortByCaptureCountDesc(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedDiscoveryFixture(t, s)

	res, err := q.Closures(ClosureFilter{}, Sort{Field: SortByCaptureCount, Order: Desc}, Pagination{})
	require.NoError(t, err)
	require.Len(t, res.Items, 3)
	assert.Equal(t, 2, res.Items[0].TotalCaptureCount)
	assert.Equal(t, 1, res.Items[1].TotalCaptureCount)
	assert.Equal(t, 0, res.Items[2].TotalCaptureCount)
}

func TestClosures_Pagination(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedDiscoveryFixture(t, s)

	page1, err := q.Closures(ClosureFilter{}, Sort{Field: SortByModule}, Pagination{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page1.TotalCount)
	assert.Len(t, page1.Items, 2)

	page2, err := q.Closures(ClosureFilter{}, Sort{Field: SortByModule}, Pagination{Offset: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page2.TotalCount)
	assert.Len(t, page2.Items, 1)
}

func TestClosures_UnmarshalsNameColumns(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedDiscoveryFixture(t, s)

	res, err := q.Closures(ClosureFilter{CapturesName: strPtr("count")}, Sort{}, Pagination{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, []string{"msg"}, res.Items[0].BoundNames)
	assert.Equal(t, []string{"count", "msg"}, res.Items[0].ReferencedNames)
}

func TestSearchCapturedNames_GlobPattern(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedDiscoveryFixture(t, s)

	res, err := q.SearchCapturedNames("co*", Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
	require.Len(t, res.Items, 2)
	// equal closure counts, ordered by name
	assert.Equal(t, "config", res.Items[0].Name)
	assert.Equal(t, "count", res.Items[1].Name)
	assert.Equal(t, 2, res.Items[1].TotalReferences)
}

func TestSearchCapturedNames_EmptyPatternMatchesAll(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedDiscoveryFixture(t, s)

	res, err := q.SearchCapturedNames("", Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
}

func TestSearchCapturedNames_NoMatch(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedDiscoveryFixture(t, s)

	res, err := q.SearchCapturedNames("zz*", Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalCount)
	assert.Empty(t, res.Items)
}

func TestPagination_Normalize(t *testing.T) {
	t.Parallel()
	p := Pagination{Offset: -3, Limit: 0}.normalize()
	assert.Equal(t, 0, p.Offset)
	assert.Equal(t, defaultLimit, p.Limit)

	p = Pagination{Limit: maxLimit + 1}.normalize()
	assert.Equal(t, maxLimit, p.Limit)
}
