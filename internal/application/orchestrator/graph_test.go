package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type node struct {
	id       string
	priority int
	deps     []string
}

func buildRegistry(t *testing.T, nodes ...node) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, n := range nodes {
		_, err := r.Register(newModel(n.id), ModelOptions{Priority: n.priority}, n.deps...)
		require.NoError(t, err)
	}
	return r
}

func TestBuildGraph_Empty(t *testing.T) {
	g, err := BuildGraph(nil)
	require.NoError(t, err)
	require.Equal(t, 0, g.Len())
	require.Empty(t, g.Order())
}

func TestBuildGraph_LinearChain(t *testing.T) {
	r := buildRegistry(t,
		node{id: "c", deps: []string{"b"}},
		node{id: "b", deps: []string{"a"}},
		node{id: "a"},
	)

	g, err := BuildGraph(r.Registrations())
	require.NoError(t, err)
	require.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, g.LevelIDs())

	lvl, ok := g.LevelOf("c")
	require.True(t, ok)
	require.Equal(t, 2, lvl)
	require.Equal(t, []string{"b"}, g.Dependents("a"))
}

func TestBuildGraph_Diamond(t *testing.T) {
	r := buildRegistry(t,
		node{id: "top"},
		node{id: "left", priority: 5, deps: []string{"top"}},
		node{id: "right", priority: 1, deps: []string{"top"}},
		node{id: "bottom", deps: []string{"left", "right"}},
	)

	g, err := BuildGraph(r.Registrations())
	require.NoError(t, err)
	require.Equal(t, [][]string{{"top"}, {"right", "left"}, {"bottom"}}, g.LevelIDs())
	require.ElementsMatch(t, []string{"left", "right"}, g.Dependents("top"))
}

func TestBuildGraph_PriorityTieBreak(t *testing.T) {
	r := buildRegistry(t,
		node{id: "x", priority: 5},
		node{id: "y", priority: 5},
		node{id: "z", priority: 1},
		node{id: "neg", priority: -3},
	)

	g, err := BuildGraph(r.Registrations())
	require.NoError(t, err)
	require.Equal(t, [][]string{{"neg", "z", "x", "y"}}, g.LevelIDs())

	ids := make([]string, 0, 4)
	for _, reg := range g.Order() {
		ids = append(ids, reg.ID())
	}
	require.Equal(t, []string{"neg", "z", "x", "y"}, ids)
}

func TestBuildGraph_DependencyBeatsPriority(t *testing.T) {
	// A high priority value never lets a dependent run before its dependency.
	r := buildRegistry(t,
		node{id: "late", priority: 100},
		node{id: "early", priority: -100, deps: []string{"late"}},
	)

	g, err := BuildGraph(r.Registrations())
	require.NoError(t, err)
	require.Equal(t, [][]string{{"late"}, {"early"}}, g.LevelIDs())
}

func TestBuildGraph_UnresolvedDependency(t *testing.T) {
	r := buildRegistry(t,
		node{id: "a"},
		node{id: "b", deps: []string{"a", "ghost"}},
	)

	_, err := BuildGraph(r.Registrations())
	require.ErrorIs(t, err, ErrUnresolvedDependency)

	var depErr *UnresolvedDependencyError
	require.ErrorAs(t, err, &depErr)
	require.Equal(t, "b", depErr.ModelID)
	require.Equal(t, "ghost", depErr.Dependency)
}

func TestBuildGraph_Cycle(t *testing.T) {
	r := buildRegistry(t,
		node{id: "root"},
		node{id: "a", deps: []string{"c", "root"}},
		node{id: "b", deps: []string{"a"}},
		node{id: "c", deps: []string{"b"}},
		node{id: "tail", deps: []string{"c"}},
	)

	_, err := BuildGraph(r.Registrations())
	require.ErrorIs(t, err, ErrCyclicDependency)

	var cycErr *CyclicDependencyError
	require.ErrorAs(t, err, &cycErr)
	// Models downstream of the cycle cannot be placed either.
	require.Equal(t, []string{"a", "b", "c", "tail"}, cycErr.ModelIDs)
	require.Contains(t, err.Error(), "a, b, c, tail")
}

func TestBuildGraph_SelfDependency(t *testing.T) {
	r := buildRegistry(t,
		node{id: "ok"},
		node{id: "loop", deps: []string{"loop"}},
	)

	_, err := BuildGraph(r.Registrations())
	require.ErrorIs(t, err, ErrCyclicDependency)

	var cycErr *CyclicDependencyError
	require.ErrorAs(t, err, &cycErr)
	require.Equal(t, []string{"loop"}, cycErr.ModelIDs)
}

func TestGraph_AccessorsReturnCopies(t *testing.T) {
	r := buildRegistry(t, node{id: "a"}, node{id: "b", deps: []string{"a"}})

	g, err := BuildGraph(r.Registrations())
	require.NoError(t, err)

	levels := g.Levels()
	levels[0][0] = nil
	require.NotNil(t, g.Levels()[0][0])

	order := g.Order()
	order[0] = nil
	require.NotNil(t, g.Order()[0])

	_, ok := g.LevelOf("missing")
	require.False(t, ok)
	require.Empty(t, g.Dependents("b"))
}
