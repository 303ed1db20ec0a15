package graph

import (
	"sort"

	"ftree/internal/core/errors"
	"ftree/internal/engine/index"
	"ftree/internal/engine/unit"
)

// Nodes lists every source and target of a, sorted with less.
func (a Adjacency[N]) Nodes(less func(x, y N) bool) []N {
	seen := make(map[N]bool, len(a))
	for from, targets := range a {
		seen[from] = true
		for _, to := range targets {
			seen[to] = true
		}
	}
	out := make([]N, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Cycles returns the strongly connected components of adj that contain a
// cycle: every component with more than one node and every node with an
// edge to itself. Members are sorted with less and components by their
// first member.
func Cycles[N comparable](adj Adjacency[N], less func(x, y N) bool) [][]N {
	nodes := adj.Nodes(less)
	next := 0
	stack := make([]N, 0, len(nodes))
	onStack := make(map[N]bool, len(nodes))
	indexOf := make(map[N]int, len(nodes))
	lowLink := make(map[N]int, len(nodes))
	var components [][]N

	var connect func(N)
	connect = func(v N) {
		indexOf[v] = next
		lowLink[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if _, seen := indexOf[w]; !seen {
				connect(w)
				if lowLink[w] < lowLink[v] {
					lowLink[v] = lowLink[w]
				}
			} else if onStack[w] && indexOf[w] < lowLink[v] {
				lowLink[v] = indexOf[w]
			}
		}

		if lowLink[v] != indexOf[v] {
			return
		}
		var component []N
		for {
			last := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[last] = false
			component = append(component, last)
			if last == v {
				break
			}
		}
		if len(component) > 1 || selfLoop(adj, v) {
			sort.Slice(component, func(i, j int) bool { return less(component[i], component[j]) })
			components = append(components, component)
		}
	}

	for _, n := range nodes {
		if _, seen := indexOf[n]; !seen {
			connect(n)
		}
	}
	sort.Slice(components, func(i, j int) bool { return less(components[i][0], components[j][0]) })
	return components
}

func selfLoop[N comparable](adj Adjacency[N], v N) bool {
	for _, w := range adj[v] {
		if w == v {
			return true
		}
	}
	return false
}

// ShortestPath returns the shortest chain of edges from one node to
// another, visiting successors in less order so the result is stable.
func ShortestPath[N comparable](adj Adjacency[N], from, to N, less func(x, y N) bool) ([]N, bool) {
	if from == to {
		return []N{from}, true
	}
	queue := []N{from}
	visited := map[N]bool{from: true}
	prev := make(map[N]N)

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		neighbors := append([]N(nil), adj[curr]...)
		sort.Slice(neighbors, func(i, j int) bool { return less(neighbors[i], neighbors[j]) })
		for _, next := range neighbors {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = curr
			if next == to {
				path := []N{to}
				for node := to; node != from; {
					node = prev[node]
					path = append(path, node)
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

// CompilationCycles lists groups of files that need each other to
// compile. No valid build order exists for them.
func (t *Tree) CompilationCycles() [][]string {
	return Cycles(t.CompilationGraph(), lessString)
}

// ExecutionCycles lists groups of units that may call each other,
// i.e. direct or mutual recursion.
func (t *Tree) ExecutionCycles() [][]unit.Path {
	return Cycles(t.ExecutionGraph(), unit.Less)
}

// TraceFiles returns the shortest chain of compilation dependencies from
// one file to another. The bool is false when to is not needed by from.
func (t *Tree) TraceFiles(from, to string) ([]string, bool, error) {
	from, to = index.Normalize(from), index.Normalize(to)
	for _, f := range []string{from, to} {
		if !t.index.Has(f) {
			return nil, false, errors.AddContext(errors.New(errors.CodeNotFound, "file not indexed"), errors.CtxPath, f)
		}
	}
	path, ok := ShortestPath(t.CompilationGraph(), from, to, lessString)
	return path, ok, nil
}

// TraceScopes returns the shortest call chain from one unit to another.
func (t *Tree) TraceScopes(from, to unit.Path) ([]unit.Path, bool, error) {
	defs := t.defs()
	for _, s := range []unit.Path{from, to} {
		if len(defs[s]) == 0 {
			return nil, false, errors.AddContext(errors.New(errors.CodeNotFound, "scope not indexed"), errors.CtxScope, s.String())
		}
	}
	path, ok := ShortestPath(t.ExecutionGraph(), from, to, unit.Less)
	return path, ok, nil
}
