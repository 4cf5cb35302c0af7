package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildChain_AssignsLevelsAndParents(t *testing.T) {
	t.Parallel()
	chain := BuildChain([]ScopeDescriptor{
		{Kind: ScopeModule, Name: "MyApp", Names: NewNameSet("config")},
		{Kind: ScopeFunction, Name: "run/1", Names: NewNameSet("x")},
		{Kind: ScopeBlock, Name: "case", Names: NewNameSet("result")},
	})

	require.Len(t, chain, 3)
	for i, sc := range chain {
		assert.Equal(t, i, sc.Level)
		assert.Equal(t, i-1, sc.Parent)
	}
	assert.Equal(t, ScopeModule, chain[0].Kind)
	assert.Equal(t, "run/1", chain[1].Name)
}

func TestBuildChain_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, BuildChain(nil))
}

func TestScopeKind_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "module", ScopeModule.String())
	assert.Equal(t, "function", ScopeFunction.String())
	assert.Equal(t, "closure", ScopeClosure.String())
	assert.Equal(t, "block", ScopeBlock.String())
	assert.Equal(t, "unknown", ScopeKind(99).String())
}

func TestResolve_NearestScopeWins(t *testing.T) {
	t.Parallel()
	// x exists at both levels; the inner function shadows the module
	chain := BuildChain([]ScopeDescriptor{
		{Kind: ScopeModule, Names: NewNameSet("x")},
		{Kind: ScopeFunction, Names: NewNameSet("x")},
	})
	sa := Resolve([]string{"x"}, chain)

	require.Contains(t, sa.VariableSources, "x")
	assert.Equal(t, 1, sa.VariableSources["x"].Level)
	assert.False(t, sa.CapturesModuleAttributes)
}

func TestResolve_ModuleAndFunctionSources(t *testing.T) {
	t.Parallel()
	// chain = [{module, [config]}, {function, [x, y]}], free = [y, config]
	chain := BuildChain([]ScopeDescriptor{
		{Kind: ScopeModule, Name: "MyApp", Names: NewNameSet("config")},
		{Kind: ScopeFunction, Name: "handle/2", Names: NewNameSet("x", "y")},
	})
	sa := Resolve([]string{"y", "config"}, chain)

	require.Contains(t, sa.VariableSources, "y")
	require.Contains(t, sa.VariableSources, "config")
	assert.Equal(t, ScopeFunction, sa.VariableSources["y"].Kind)
	assert.Equal(t, ScopeModule, sa.VariableSources["config"].Kind)
	assert.True(t, sa.CapturesModuleAttributes)
}

func TestResolve_UnresolvedNamesOmitted(t *testing.T) {
	t.Parallel()
	chain := BuildChain([]ScopeDescriptor{
		{Kind: ScopeFunction, Names: NewNameSet("x")},
	})
	sa := Resolve([]string{"x", "ghost"}, chain)

	assert.Contains(t, sa.VariableSources, "x")
	assert.NotContains(t, sa.VariableSources, "ghost")
	assert.Len(t, sa.VariableSources, 1)
}

func TestResolve_CaptureDepthImmediateParentIsZero(t *testing.T) {
	t.Parallel()
	chain := BuildChain([]ScopeDescriptor{
		{Kind: ScopeFunction, Names: NewNameSet("x")},
	})
	sa := Resolve([]string{"x"}, chain)
	assert.Equal(t, 0, sa.CaptureDepth)
	assert.Equal(t, 0, sa.Depth(sa.VariableSources["x"]))
}

func TestResolve_CaptureDepthCountsSkippedScopes(t *testing.T) {
	t.Parallel()
	// provider at level 0, two scopes between it and the closure
	chain := BuildChain([]ScopeDescriptor{
		{Kind: ScopeModule, Names: NewNameSet("config")},
		{Kind: ScopeFunction, Names: NewNameSet("x")},
		{Kind: ScopeClosure, Names: NewNameSet("y")},
	})
	sa := Resolve([]string{"config", "x"}, chain)

	assert.Equal(t, 2, sa.Depth(sa.VariableSources["config"]))
	assert.Equal(t, 1, sa.Depth(sa.VariableSources["x"]))
	assert.Equal(t, 2, sa.CaptureDepth)
}

func TestResolve_CrossesFunctionBoundary(t *testing.T) {
	t.Parallel()
	// a function scope lies strictly between the provider and the closure
	chain := BuildChain([]ScopeDescriptor{
		{Kind: ScopeFunction, Names: NewNameSet("outer")},
		{Kind: ScopeFunction, Names: NewNameSet("inner")},
	})
	sa := Resolve([]string{"outer"}, chain)
	assert.True(t, sa.CrossesFunctionBoundary)
}

func TestResolve_NoBoundaryWhenProviderIsInnermost(t *testing.T) {
	t.Parallel()
	chain := BuildChain([]ScopeDescriptor{
		{Kind: ScopeModule, Names: NewNameSet("config")},
		{Kind: ScopeFunction, Names: NewNameSet("x")},
	})
	sa := Resolve([]string{"x"}, chain)
	assert.False(t, sa.CrossesFunctionBoundary)
}

func TestResolve_BlockScopesBetweenDoNotCrossBoundary(t *testing.T) {
	t.Parallel()
	chain := BuildChain([]ScopeDescriptor{
		{Kind: ScopeFunction, Names: NewNameSet("x")},
		{Kind: ScopeBlock, Names: NewNameSet("y")},
		{Kind: ScopeBlock, Names: NewNameSet("z")},
	})
	sa := Resolve([]string{"x"}, chain)
	assert.Equal(t, 2, sa.CaptureDepth)
	assert.False(t, sa.CrossesFunctionBoundary)
}

func TestResolve_EmptyChain(t *testing.T) {
	t.Parallel()
	sa := Resolve([]string{"anything"}, nil)
	assert.Empty(t, sa.VariableSources)
	assert.Equal(t, 0, sa.CaptureDepth)
	assert.False(t, sa.CrossesFunctionBoundary)
	assert.False(t, sa.CapturesModuleAttributes)
}

func TestResolve_NoFreeNames(t *testing.T) {
	t.Parallel()
	chain := BuildChain([]ScopeDescriptor{{Kind: ScopeFunction, Names: NewNameSet("x")}})
	sa := Resolve(nil, chain)
	assert.Empty(t, sa.VariableSources)
	assert.Equal(t, 0, sa.CaptureDepth)
}
