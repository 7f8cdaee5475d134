package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"rez-core/internal/types"
)

func TestStateIdentityStable(t *testing.T) {
	pkg := NewPackage(types.PackageDef{Name: "python", Version: "3.9.0"}, "", nil)
	build := func() *searchState {
		s := &searchState{assignments: map[string]assignment{}}
		s.assignments["python"] = assignment{pkg: pkg, variant: -1}
		s.pending = append(s.pending, pendingReq{req: MustParseRequirement("maya>=2020")})
		return s
	}
	require.Equal(t, build().identity(), build().identity())

	other := build()
	other.pending = append(other.pending, pendingReq{req: MustParseRequirement("numpy")})
	require.NotEqual(t, build().identity(), other.identity())
}

func TestStatePoolRecycles(t *testing.T) {
	pool := &statePool{}
	s := pool.get()
	s.assignments["x"] = assignment{}
	s.pending = append(s.pending, pendingReq{req: MustParseRequirement("x")})
	s.gCost = 3
	pool.put(s)

	reused := pool.get()
	require.Same(t, s, reused)
	require.Empty(t, reused.assignments)
	require.Empty(t, reused.pending)
	require.Zero(t, reused.gCost)
}

func TestIsAncestorWalksSources(t *testing.T) {
	a := NewPackage(types.PackageDef{Name: "a", Version: "1.0.0"}, "", nil)
	b := NewPackage(types.PackageDef{Name: "b", Version: "1.0.0"}, "", nil)
	s := &searchState{assignments: map[string]assignment{
		"a": {pkg: a, source: ""},
		"b": {pkg: b, source: "a"},
	}}
	require.True(t, s.isAncestor("a", "b"))
	require.False(t, s.isAncestor("b", "a"))
	require.False(t, s.isAncestor("c", "b"))
}

func TestDepthEstimateMonotoneBuckets(t *testing.T) {
	require.Equal(t, float64(1), depthEstimate("libcore"))
	require.Equal(t, float64(3), depthEstimate("render_plugin"))
	require.Equal(t, float64(5), depthEstimate("paint_app"))
	require.Equal(t, float64(2), depthEstimate("numpy"))
	for _, name := range []string{"libcore", "render_plugin", "paint_app", "numpy"} {
		require.GreaterOrEqual(t, depthEstimate(name), float64(0))
	}
}
