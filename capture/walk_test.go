package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/understory/expr"
)

// doc builds a single-function document for walker tests.
func doc(module string, attrs []string, fns ...*expr.Function) *expr.Document {
	d := &expr.Document{Module: module, Functions: fns}
	for _, a := range attrs {
		d.Attributes = append(d.Attributes, expr.Attribute{Name: a})
	}
	return d
}

func namedFn(name string, params []expr.Node, body expr.Node) *expr.Function {
	return &expr.Function{
		Name:    name,
		Arity:   len(params),
		Kind:    "def",
		Clauses: []*expr.Clause{{Params: params, Body: body}},
	}
}

func TestWalkDocument_ClosureCapturingParam(t *testing.T) {
	t.Parallel()
	// def run(count), do: fn msg -> send(msg, count) end
	d := doc("MyApp.Worker", nil,
		namedFn("run", []expr.Node{v("count")},
			fn1([]expr.Node{v("msg")}, call("send", v("msg"), v("count")))))

	reports, err := WalkDocument(d)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	rep := reports[0]
	assert.Equal(t, "run", rep.Function.Name)
	require.Len(t, rep.Analysis.FreeVariables, 1)
	assert.Equal(t, "count", rep.Analysis.FreeVariables[0].Name)

	src, ok := rep.Scopes.VariableSources["count"]
	require.True(t, ok)
	assert.Equal(t, ScopeFunction, src.Kind)
	assert.Equal(t, "run/1", src.Name)
	assert.Equal(t, 0, rep.Scopes.CaptureDepth)
	assert.False(t, rep.Scopes.CrossesFunctionBoundary)
}

func TestWalkDocument_NonCapturingClosure(t *testing.T) {
	t.Parallel()
	d := doc("MyApp.Queue", nil,
		namedFn("drain", []expr.Node{v("items")},
			fn1([]expr.Node{v("item")}, call("normalize", v("item")))))

	reports, err := WalkDocument(d)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Analysis.HasCaptures)
	assert.Empty(t, reports[0].Analysis.FreeVariables)
}

func TestWalkDocument_ModuleAttributesFormOuterScope(t *testing.T) {
	t.Parallel()
	// @retry_limit ... def run(_), do: fn -> @retry_limit end
	d := doc("MyApp.Worker", []string{"retry_limit"},
		namedFn("run", []expr.Node{v("_")},
			fn1(nil, &expr.Attr{Name: "retry_limit"})))

	reports, err := WalkDocument(d)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	rep := reports[0]
	src, ok := rep.Scopes.VariableSources["retry_limit"]
	require.True(t, ok)
	assert.Equal(t, ScopeModule, src.Kind)
	assert.Equal(t, 0, src.Level)
	assert.True(t, rep.Scopes.CapturesModuleAttributes)
	// the named function's scope lies between the module and the closure
	assert.True(t, rep.Scopes.CrossesFunctionBoundary)
	assert.Equal(t, 1, rep.Scopes.CaptureDepth)
}

func TestWalkDocument_NestedClosures(t *testing.T) {
	t.Parallel()
	// def run(x), do: fn y -> fn z -> {x, y, z} end end
	inner := fn1([]expr.Node{v("z")}, tuple(v("x"), v("y"), v("z")))
	outer := fn1([]expr.Node{v("y")}, inner)
	d := doc("MyApp.Nest", nil, namedFn("run", []expr.Node{v("x")}, outer))

	reports, err := WalkDocument(d)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	// reported outside-in
	outerRep, innerRep := reports[0], reports[1]
	require.Len(t, outerRep.Analysis.FreeVariables, 1)
	assert.Equal(t, "x", outerRep.Analysis.FreeVariables[0].Name)

	require.Len(t, innerRep.Analysis.FreeVariables, 2)
	assert.Equal(t, "x", innerRep.Analysis.FreeVariables[0].Name)
	assert.Equal(t, "y", innerRep.Analysis.FreeVariables[1].Name)

	// y comes from the enclosing closure scope, x from the function
	assert.Equal(t, ScopeClosure, innerRep.Scopes.VariableSources["y"].Kind)
	assert.Equal(t, ScopeFunction, innerRep.Scopes.VariableSources["x"].Kind)
	assert.Equal(t, 1, innerRep.Scopes.CaptureDepth)
}

func TestWalkDocument_MatchExtendsScopeForLaterClosures(t *testing.T) {
	t.Parallel()
	// def run(items) do
	//   count = length(items)
	//   fn msg -> send(msg, count) end
	// end
	body := block(
		match(v("count"), call("length", v("items"))),
		fn1([]expr.Node{v("msg")}, call("send", v("msg"), v("count"))),
	)
	d := doc("MyApp.Worker", nil, namedFn("run", []expr.Node{v("items")}, body))

	reports, err := WalkDocument(d)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	src, ok := reports[0].Scopes.VariableSources["count"]
	require.True(t, ok)
	assert.Equal(t, ScopeFunction, src.Kind)
}

func TestWalkDocument_CaseBranchFormsBlockScope(t *testing.T) {
	t.Parallel()
	// case fetch() do
	//   {:ok, conn} -> fn req -> handle(conn, req) end
	// end
	caseExpr := &expr.Case{
		Subject: call("fetch"),
		Branches: []*expr.Branch{
			branch(tuple(atom("ok"), v("conn")),
				fn1([]expr.Node{v("req")}, call("handle", v("conn"), v("req")))),
		},
	}
	d := doc("MyApp.Server", nil, namedFn("serve", nil, caseExpr))

	reports, err := WalkDocument(d)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	src, ok := reports[0].Scopes.VariableSources["conn"]
	require.True(t, ok)
	assert.Equal(t, ScopeBlock, src.Kind)
	assert.Equal(t, "case", src.Name)
	assert.Equal(t, 0, reports[0].Scopes.CaptureDepth)
}

func TestWalkDocument_ComprehensionGeneratorScope(t *testing.T) {
	t.Parallel()
	// for x <- xs, do: fn -> x end
	forExpr := &expr.For{
		Clauses: []*expr.ForClause{{Pattern: v("x"), Source: v("xs")}},
		Body:    fn1(nil, v("x")),
	}
	d := doc("MyApp.Comp", nil, namedFn("build", []expr.Node{v("xs")}, forExpr))

	reports, err := WalkDocument(d)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	src, ok := reports[0].Scopes.VariableSources["x"]
	require.True(t, ok)
	assert.Equal(t, ScopeBlock, src.Kind)
	assert.Equal(t, "for", src.Name)
}

func TestWalkDocument_SiblingBranchScopesDoNotLeak(t *testing.T) {
	t.Parallel()
	// case subj do
	//   {:ok, result} -> :ok
	//   :error -> fn -> result end   # result is unresolved here
	// end
	caseExpr := &expr.Case{
		Subject: call("subj"),
		Branches: []*expr.Branch{
			branch(tuple(atom("ok"), v("result")), atom("ok")),
			branch(atom("error"), fn1(nil, v("result"))),
		},
	}
	d := doc("MyApp.Leak", nil, namedFn("run", nil, caseExpr))

	reports, err := WalkDocument(d)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	rep := reports[0]
	require.Len(t, rep.Analysis.FreeVariables, 1)
	assert.Equal(t, "result", rep.Analysis.FreeVariables[0].Name)
	// free but unresolved: no scope provides it
	assert.NotContains(t, rep.Scopes.VariableSources, "result")
}

func TestWalkDocument_MultiClauseFunction(t *testing.T) {
	t.Parallel()
	// each named-function clause gets its own function scope
	fn := &expr.Function{
		Name: "handle", Arity: 1, Kind: "def",
		Clauses: []*expr.Clause{
			{Params: []expr.Node{v("a")}, Body: fn1(nil, v("a"))},
			{Params: []expr.Node{v("b")}, Body: fn1(nil, v("b"))},
		},
	}
	d := doc("MyApp.Multi", nil, fn)

	reports, err := WalkDocument(d)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, ScopeFunction, reports[0].Scopes.VariableSources["a"].Kind)
	assert.Equal(t, ScopeFunction, reports[1].Scopes.VariableSources["b"].Kind)
}

func TestWalkDocument_TooDeep(t *testing.T) {
	t.Parallel()
	var body expr.Node = fn1(nil, v("x"))
	for i := 0; i < MaxDepth+10; i++ {
		body = list(body)
	}
	d := doc("MyApp.Deep", nil, namedFn("run", nil, body))
	_, err := WalkDocument(d)
	require.ErrorIs(t, err, ErrTooDeep)
}

func TestWalkDocument_EmptyDocument(t *testing.T) {
	t.Parallel()
	reports, err := WalkDocument(doc("MyApp.Empty", nil))
	require.NoError(t, err)
	assert.Empty(t, reports)
}
