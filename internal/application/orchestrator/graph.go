package orchestrator

import (
	"slices"
	"sort"
)

// Graph is the execution plan derived from the registrations: an ordered
// sequence of levels in which every dependency of a model lies in an
// earlier level. It is read-only once built.
type Graph struct {
	levels     [][]*Registration
	order      []*Registration
	levelOf    map[string]int
	dependents map[string][]string
}

// BuildGraph resolves dependencies and groups registrations into levels.
//
// Levels are extracted repeatedly as the set of models whose dependencies
// are all placed. Inside a level models are sorted by ascending priority,
// then registration order, which yields the total order returned by Order.
//
// It fails with *UnresolvedDependencyError when a dependency names no
// registration, and with *CyclicDependencyError naming every model that
// cannot be placed. A model depending on itself is a cycle of one.
func BuildGraph(regs []*Registration) (*Graph, error) {
	byID := make(map[string]*Registration, len(regs))
	for _, reg := range regs {
		byID[reg.id] = reg
	}

	indeg := make(map[string]int, len(regs))
	dependents := make(map[string][]string, len(regs))
	for _, reg := range regs {
		for _, dep := range reg.dependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, &UnresolvedDependencyError{ModelID: reg.id, Dependency: dep}
			}
			dependents[dep] = append(dependents[dep], reg.id)
		}
		indeg[reg.id] = len(reg.dependsOn)
	}

	g := &Graph{
		order:      make([]*Registration, 0, len(regs)),
		levelOf:    make(map[string]int, len(regs)),
		dependents: dependents,
	}

	placed := make(map[string]bool, len(regs))
	for len(placed) < len(regs) {
		var level []*Registration
		for _, reg := range regs {
			if !placed[reg.id] && indeg[reg.id] == 0 {
				level = append(level, reg)
			}
		}
		if len(level) == 0 {
			break
		}

		sortLevel(level)

		n := len(g.levels)
		for _, reg := range level {
			placed[reg.id] = true
			g.levelOf[reg.id] = n
			for _, dependent := range dependents[reg.id] {
				indeg[dependent]--
			}
		}
		g.levels = append(g.levels, level)
		g.order = append(g.order, level...)
	}

	if len(placed) < len(regs) {
		var cyclic []string
		for _, reg := range regs {
			if !placed[reg.id] {
				cyclic = append(cyclic, reg.id)
			}
		}
		return nil, &CyclicDependencyError{ModelIDs: cyclic}
	}

	return g, nil
}

// sortLevel orders a level by ascending priority, then registration order.
func sortLevel(level []*Registration) {
	sort.SliceStable(level, func(i, j int) bool {
		a, b := level[i], level[j]
		if a.options.Priority != b.options.Priority {
			return a.options.Priority < b.options.Priority
		}
		return a.order < b.order
	})
}

// Levels returns the levels in execution order.
func (g *Graph) Levels() [][]*Registration {
	out := make([][]*Registration, len(g.levels))
	for i, level := range g.levels {
		out[i] = slices.Clone(level)
	}
	return out
}

// LevelIDs returns the model identities of each level.
func (g *Graph) LevelIDs() [][]string {
	out := make([][]string, len(g.levels))
	for i, level := range g.levels {
		ids := make([]string, len(level))
		for j, reg := range level {
			ids[j] = reg.id
		}
		out[i] = ids
	}
	return out
}

// Order returns the total execution order: levels flattened, each level in
// tie-break order.
func (g *Graph) Order() []*Registration {
	return slices.Clone(g.order)
}

// LevelOf returns the level index of a model.
func (g *Graph) LevelOf(id string) (int, bool) {
	n, ok := g.levelOf[id]
	return n, ok
}

// Dependents returns the models that declared a dependency on id.
func (g *Graph) Dependents(id string) []string {
	return slices.Clone(g.dependents[id])
}

// Len returns the number of levels.
func (g *Graph) Len() int {
	return len(g.levels)
}
