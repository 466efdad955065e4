package taskgraph

import (
	"slices"
	"strings"
)

// Graph is an immutable, validated set of tasks.
type Graph[C any] struct {
	tasks      map[string]Task[C]
	order      []string            // deterministic topological order
	index      map[string]int      // position in order
	dependents map[string][]string // reverse edges, ordered by index
}

// New validates tasks and builds a graph. Names must be unique and non-empty,
// dependencies must exist, and the edges must not form a cycle.
func New[C any](tasks ...Task[C]) (*Graph[C], error) {
	if len(tasks) == 0 {
		return nil, invalidf("no tasks")
	}

	g := &Graph[C]{
		tasks:      make(map[string]Task[C], len(tasks)),
		index:      make(map[string]int, len(tasks)),
		dependents: make(map[string][]string, len(tasks)),
	}
	declared := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if strings.TrimSpace(t.Name) == "" {
			return nil, invalidf("task %d has an empty name", i)
		}
		if _, dup := g.tasks[t.Name]; dup {
			return nil, invalidf("duplicate task name %q", t.Name)
		}
		if t.Action == nil {
			return nil, invalidf("task %q has no action", t.Name)
		}
		t.Deps = slices.Clone(t.Deps)
		g.tasks[t.Name] = t
		declared[t.Name] = i
	}

	for _, t := range tasks {
		seen := map[string]bool{}
		for _, dep := range t.Deps {
			if dep == t.Name {
				return nil, invalidf("task %q depends on itself", t.Name)
			}
			if _, ok := g.tasks[dep]; !ok {
				return nil, invalidf("task %q depends on unknown task %q", t.Name, dep)
			}
			if seen[dep] {
				return nil, invalidf("task %q lists dependency %q twice", t.Name, dep)
			}
			seen[dep] = true
			g.dependents[dep] = append(g.dependents[dep], t.Name)
		}
	}

	order, err := topoOrder(g.tasks, g.dependents, declared)
	if err != nil {
		return nil, err
	}
	g.order = order
	for i, name := range order {
		g.index[name] = i
	}
	for name, deps := range g.dependents {
		slices.SortFunc(deps, func(a, b string) int { return g.index[a] - g.index[b] })
		g.dependents[name] = deps
	}
	return g, nil
}

// topoOrder runs Kahn's algorithm, breaking ties by declaration order. When tasks
// remain unplaced, it reports one concrete cycle.
func topoOrder[C any](tasks map[string]Task[C], dependents map[string][]string, declared map[string]int) ([]string, error) {
	indeg := make(map[string]int, len(tasks))
	var ready []string
	for name, t := range tasks {
		indeg[name] = len(t.Deps)
		if len(t.Deps) == 0 {
			ready = append(ready, name)
		}
	}

	byDecl := func(a, b string) int { return declared[a] - declared[b] }
	order := make([]string, 0, len(tasks))
	for len(ready) > 0 {
		slices.SortFunc(ready, byDecl)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, d := range dependents[next] {
			indeg[d]--
			if indeg[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	if len(order) == len(tasks) {
		return order, nil
	}
	return nil, cycleError(findCycle(tasks, indeg, byDecl))
}

// findCycle walks dependencies of the unplaced tasks until a node repeats.
func findCycle[C any](tasks map[string]Task[C], indeg map[string]int, byDecl func(a, b string) int) []string {
	var remaining []string
	for name, n := range indeg {
		if n > 0 {
			remaining = append(remaining, name)
		}
	}
	slices.SortFunc(remaining, byDecl)

	pos := map[string]int{}
	var path []string
	cur := remaining[0]
	for {
		if i, ok := pos[cur]; ok {
			return append(slices.Clone(path[i:]), cur)
		}
		pos[cur] = len(path)
		path = append(path, cur)
		for _, dep := range tasks[cur].Deps {
			if indeg[dep] > 0 {
				cur = dep
				break
			}
		}
	}
}

// Len returns the number of tasks.
func (g *Graph[C]) Len() int { return len(g.order) }

// Order returns task names in deterministic topological order.
func (g *Graph[C]) Order() []string { return slices.Clone(g.order) }

// Task looks a task up by name.
func (g *Graph[C]) Task(name string) (Task[C], bool) {
	t, ok := g.tasks[name]
	return t, ok
}

// Deps returns the direct dependencies of name.
func (g *Graph[C]) Deps(name string) []string {
	return slices.Clone(g.tasks[name].Deps)
}

// DependsOn reports whether task a transitively depends on task b.
func (g *Graph[C]) DependsOn(a, b string) bool {
	seen := map[string]bool{}
	stack := slices.Clone(g.tasks[a].Deps)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == b {
			return true
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, g.tasks[n].Deps...)
	}
	return false
}
