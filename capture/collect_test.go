package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/understory/expr"
)

// names flattens a ref list to its names, in collection order.
func names(refs []Ref) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Name)
	}
	return out
}

func mustCollect(t *testing.T, n expr.Node, bound NameSet) []Ref {
	t.Helper()
	refs, err := Collect(n, bound)
	require.NoError(t, err)
	return refs
}

func TestCollect_FreeIdentifier(t *testing.T) {
	t.Parallel()
	refs := mustCollect(t, v("y"), NewNameSet("x"))
	assert.Equal(t, []string{"y"}, names(refs))
}

func TestCollect_BoundIdentifierSkipped(t *testing.T) {
	t.Parallel()
	assert.Empty(t, mustCollect(t, v("x"), NewNameSet("x")))
}

func TestCollect_WildcardAndKeywordsNeverReference(t *testing.T) {
	t.Parallel()
	n := call("f", v("_"), v("__MODULE__"), v("when"), v("in"))
	assert.Empty(t, mustCollect(t, n, NameSet{}))
}

func TestCollect_AttributeSigilNameSkipped(t *testing.T) {
	t.Parallel()
	// a "@name" identifier would be an attribute read misfiled as a var;
	// real attribute references arrive as Attr nodes
	assert.Empty(t, mustCollect(t, v("@limit"), NameSet{}))
}

func TestCollect_AttrNodeIsAReference(t *testing.T) {
	t.Parallel()
	refs := mustCollect(t, &expr.Attr{Name: "limit"}, NameSet{})
	assert.Equal(t, []string{"limit"}, names(refs))
}

func TestCollect_CallHeadNotAReference(t *testing.T) {
	t.Parallel()
	refs := mustCollect(t, call("length", v("items")), NameSet{})
	assert.Equal(t, []string{"items"}, names(refs))
}

func TestCollect_RemoteScansOnlyArgs(t *testing.T) {
	t.Parallel()
	// Enum.map(items, acc): receiver and message are never references
	n := &expr.Remote{Recv: atom("Enum"), Name: "map", Args: []expr.Node{v("items"), v("acc")}}
	assert.Equal(t, []string{"items", "acc"}, names(mustCollect(t, n, NameSet{})))
}

func TestCollect_FnClauseBindingsCoverGuardAndBody(t *testing.T) {
	t.Parallel()
	// fn x when x > min -> x + step end
	f := &expr.Fn{Clauses: []*expr.Clause{{
		Params: []expr.Node{v("x")},
		Guard:  call(">", v("x"), v("min")),
		Body:   call("+", v("x"), v("step")),
	}}}
	assert.Equal(t, []string{"min", "step"}, names(mustCollect(t, f, NameSet{})))
}

func TestCollect_FnClausesAreIndependent(t *testing.T) {
	t.Parallel()
	// fn x -> x end ; fn _ -> x end: the second clause does not see the
	// first clause's x
	f := &expr.Fn{Clauses: []*expr.Clause{
		{Params: []expr.Node{v("x")}, Body: v("x")},
		{Params: []expr.Node{v("_")}, Body: v("x")},
	}}
	assert.Equal(t, []string{"x"}, names(mustCollect(t, f, NameSet{})))
}

func TestCollect_CaseSubjectSeesOuterBound(t *testing.T) {
	t.Parallel()
	n := &expr.Case{
		Subject:  v("input"),
		Branches: []*expr.Branch{branch(v("ok"), v("ok"))},
	}
	assert.Equal(t, []string{"input"}, names(mustCollect(t, n, NameSet{})))
}

func TestCollect_NoCrossBranchLeakage(t *testing.T) {
	t.Parallel()
	// case subj do
	//   {:ok, result} -> result
	//   :error -> result   # unbound here, must be reported
	// end
	n := &expr.Case{
		Subject: v("subj"),
		Branches: []*expr.Branch{
			branch(tuple(atom("ok"), v("result")), v("result")),
			branch(atom("error"), v("result")),
		},
	}
	refs := mustCollect(t, n, NameSet{})
	assert.Equal(t, []string{"subj", "result"}, names(refs))
}

func TestCollect_BranchPatternPinsAreReferences(t *testing.T) {
	t.Parallel()
	// case status do
	//   ^expected -> :ok
	// end
	n := &expr.Case{
		Subject:  v("status"),
		Branches: []*expr.Branch{branch(pin("expected"), atom("ok"))},
	}
	assert.Equal(t, []string{"status", "expected"}, names(mustCollect(t, n, NameSet{})))
}

func TestCollect_BranchPatternPinOfBoundNameSkipped(t *testing.T) {
	t.Parallel()
	// x is bound in the enclosing scope; pinning it reads that
	// binding, so it is not a free reference
	n := &expr.Case{
		Subject:  v("status"),
		Branches: []*expr.Branch{branch(pin("x"), atom("ok"))},
	}
	assert.Equal(t, []string{"status"}, names(mustCollect(t, n, NewNameSet("x"))))
}

func TestCollect_MatchPatternPinOfBlockBindingSkipped(t *testing.T) {
	t.Parallel()
	// x = 1; ^x = fetch()
	n := block(
		match(v("x"), lit(1)),
		match(pin("x"), call("fetch")),
	)
	assert.Empty(t, names(mustCollect(t, n, NameSet{})))
}

func TestCollect_BranchGuardSeesBranchBindings(t *testing.T) {
	t.Parallel()
	n := &expr.Case{
		Subject: v("subj"),
		Branches: []*expr.Branch{{
			Pattern: v("n"),
			Guard:   call(">", v("n"), v("threshold")),
			Body:    v("n"),
		}},
	}
	assert.Equal(t, []string{"subj", "threshold"}, names(mustCollect(t, n, NameSet{})))
}

func TestCollect_TryBranchGroups(t *testing.T) {
	t.Parallel()
	n := &expr.Try{
		Body:   call("run", v("job")),
		Rescue: []*expr.Branch{branch(v("e"), call("log", v("e"), v("logger")))},
		After:  call("cleanup", v("res")),
	}
	assert.Equal(t, []string{"job", "logger", "res"}, names(mustCollect(t, n, NameSet{})))
}

func TestCollect_ReceiveAfterTimeout(t *testing.T) {
	t.Parallel()
	n := &expr.Receive{
		Branches: []*expr.Branch{branch(tuple(atom("msg"), v("m")), v("m"))},
		After:    &expr.Branch{Pattern: v("timeout"), Body: call("expire", v("queue"))},
	}
	// the after arm's timeout expression and body sit in expression
	// position under the outer bound
	assert.Equal(t, []string{"timeout", "queue"}, names(mustCollect(t, n, NameSet{})))
}

func TestCollect_WithSequentialBindings(t *testing.T) {
	t.Parallel()
	// with {:ok, a} <- fetch(id),
	//      {:ok, b} <- decode(a) do
	//   combine(a, b, extra)
	// end
	n := &expr.With{
		Clauses: []*expr.WithClause{
			{Op: "<-", Pattern: tuple(atom("ok"), v("a")), Source: call("fetch", v("id"))},
			{Op: "<-", Pattern: tuple(atom("ok"), v("b")), Source: call("decode", v("a"))},
		},
		Body: call("combine", v("a"), v("b"), v("extra")),
	}
	assert.Equal(t, []string{"id", "extra"}, names(mustCollect(t, n, NameSet{})))
}

func TestCollect_WithLaterBindingNotVisibleEarlier(t *testing.T) {
	t.Parallel()
	// the first source references b before the second clause binds it
	n := &expr.With{
		Clauses: []*expr.WithClause{
			{Op: "<-", Pattern: v("a"), Source: call("f", v("b"))},
			{Op: "=", Pattern: v("b"), Source: lit(1)},
		},
		Body: v("a"),
	}
	assert.Equal(t, []string{"b"}, names(mustCollect(t, n, NameSet{})))
}

func TestCollect_WithElseSeesAccumulatedBindings(t *testing.T) {
	t.Parallel()
	n := &expr.With{
		Clauses: []*expr.WithClause{
			{Op: "<-", Pattern: v("a"), Source: lit(1)},
		},
		Body: v("a"),
		Else: []*expr.Branch{branch(v("err"), tuple(v("err"), v("a")))},
	}
	assert.Empty(t, names(mustCollect(t, n, NameSet{})))
}

func TestCollect_ForGeneratorsAccumulate(t *testing.T) {
	t.Parallel()
	// for x <- xs, y <- expand(x), y > min, do: {x, y}
	n := &expr.For{
		Clauses: []*expr.ForClause{
			{Pattern: v("x"), Source: v("xs")},
			{Pattern: v("y"), Source: call("expand", v("x"))},
			{Filter: call(">", v("y"), v("min"))},
		},
		Body: tuple(v("x"), v("y")),
	}
	assert.Equal(t, []string{"xs", "min"}, names(mustCollect(t, n, NameSet{})))
}

func TestCollect_ForIntoSeesOuterScopeOnly(t *testing.T) {
	t.Parallel()
	// for x <- xs, into: x, do: x — the accumulator target must not see
	// the generator's binding
	n := &expr.For{
		Clauses: []*expr.ForClause{{Pattern: v("x"), Source: v("xs")}},
		Into:    v("x"),
		Body:    v("x"),
	}
	assert.Equal(t, []string{"xs", "x"}, names(mustCollect(t, n, NameSet{})))
}

func TestCollect_MatchValueScannedUnderCurrentBound(t *testing.T) {
	t.Parallel()
	// total = total + n: the right side reads the pre-existing total
	n := match(v("total"), call("+", v("total"), v("n")))
	assert.Equal(t, []string{"total", "n"}, names(mustCollect(t, n, NameSet{})))
}

func TestCollect_MatchPatternPinsCollected(t *testing.T) {
	t.Parallel()
	// {^expected, got} = pair
	n := match(tuple(pin("expected"), v("got")), v("pair"))
	assert.Equal(t, []string{"pair", "expected"}, names(mustCollect(t, n, NameSet{})))
}

func TestCollect_BlockFoldsMatchBindingsForward(t *testing.T) {
	t.Parallel()
	// count = length(items); report(count, tag)
	n := block(
		match(v("count"), call("length", v("items"))),
		call("report", v("count"), v("tag")),
	)
	assert.Equal(t, []string{"items", "tag"}, names(mustCollect(t, n, NameSet{})))
}

func TestCollect_BlockChainedMatchBindsAllPatterns(t *testing.T) {
	t.Parallel()
	// a = b = seed(); use(a, b)
	n := block(
		match(v("a"), match(v("b"), call("seed"))),
		call("use", v("a"), v("b")),
	)
	assert.Empty(t, names(mustCollect(t, n, NameSet{})))
}

func TestCollect_BlockBindingsDoNotLeakBackward(t *testing.T) {
	t.Parallel()
	// use(x); x = 1
	n := block(
		call("use", v("x")),
		match(v("x"), lit(1)),
	)
	assert.Equal(t, []string{"x"}, names(mustCollect(t, n, NameSet{})))
}

func TestCollect_MapUpdateAndEntries(t *testing.T) {
	t.Parallel()
	// %{base | key => val}
	n := &expr.Map{Update: v("base"), Entries: []*expr.Pair{pair(atom("key"), v("val"))}}
	assert.Equal(t, []string{"base", "val"}, names(mustCollect(t, n, NameSet{})))
}

func TestCollect_BinarySegmentSizeIsAReference(t *testing.T) {
	t.Parallel()
	// <<body::binary-size(len)>> in expression position reads both
	n := &expr.Binary{Segments: []*expr.Segment{{Value: v("body"), Size: v("len")}}}
	assert.Equal(t, []string{"body", "len"}, names(mustCollect(t, n, NameSet{})))
}

func TestCollect_UnrecognizedShapeIsSilent(t *testing.T) {
	t.Parallel()
	refs := mustCollect(t, &expr.Unknown{Kind: "quote"}, NameSet{})
	assert.Empty(t, refs)
}

func TestCollect_NilNode(t *testing.T) {
	t.Parallel()
	refs, err := Collect(nil, NameSet{})
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestCollect_TooDeep(t *testing.T) {
	t.Parallel()
	var n expr.Node = v("x")
	for i := 0; i < MaxDepth+10; i++ {
		n = list(n)
	}
	_, err := Collect(n, NameSet{})
	require.ErrorIs(t, err, ErrTooDeep)
}

func TestCollect_DepthResetsBetweenSiblings(t *testing.T) {
	t.Parallel()
	// two siblings each just under the cap must both be walked
	deep := func() expr.Node {
		var n expr.Node = v("leaf")
		for i := 0; i < MaxDepth-5; i++ {
			n = list(n)
		}
		return n
	}
	refs := mustCollect(t, tuple(deep(), deep()), NameSet{})
	assert.Equal(t, []string{"leaf", "leaf"}, names(refs))
}

func TestCollect_BoundSetNeverMutated(t *testing.T) {
	t.Parallel()
	bound := NewNameSet("outer")
	f := &expr.Fn{Clauses: []*expr.Clause{{Params: []expr.Node{v("p")}, Body: v("p")}}}
	_ = mustCollect(t, f, bound)
	assert.Equal(t, []string{"outer"}, bound.Sorted())
}
