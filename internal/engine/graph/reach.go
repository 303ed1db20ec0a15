package graph

import "sort"

// Unbounded asks a reachability query for the full transitive closure.
const Unbounded = -1

// Direction selects which edges a traversal follows.
type Direction int

const (
	// Down follows outgoing edges: what a node needs or calls.
	Down Direction = iota
	// Up follows incoming edges: what needs or calls the node.
	Up
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// Adjacency is a directed graph as node -> sorted unique successors.
type Adjacency[N comparable] map[N][]N

// Reverse returns the graph with every edge flipped.
func (a Adjacency[N]) Reverse(less func(x, y N) bool) Adjacency[N] {
	rev := make(Adjacency[N], len(a))
	for from, targets := range a {
		if _, ok := rev[from]; !ok {
			rev[from] = nil
		}
		for _, to := range targets {
			rev[to] = append(rev[to], from)
		}
	}
	for node, sources := range rev {
		sort.Slice(sources, func(i, j int) bool { return less(sources[i], sources[j]) })
		rev[node] = sources
	}
	return rev
}

// EdgeCount is the total number of edges.
func (a Adjacency[N]) EdgeCount() int {
	n := 0
	for _, targets := range a {
		n += len(targets)
	}
	return n
}

// NodeCount counts sources and targets.
func (a Adjacency[N]) NodeCount() int {
	seen := make(map[N]bool, len(a))
	for from, targets := range a {
		seen[from] = true
		for _, to := range targets {
			seen[to] = true
		}
	}
	return len(seen)
}

// Reach returns the nodes reachable from start within level hops, sorted
// with less. Level 0 yields nothing and Unbounded (any negative level) the
// whole closure. The start node is part of the result only when a cycle
// leads back to it. Every node is expanded at most once, so cyclic graphs
// terminate.
func Reach[N comparable](adj Adjacency[N], start N, level int, less func(x, y N) bool) []N {
	if level == 0 {
		return nil
	}

	found := make(map[N]bool)
	expanded := map[N]bool{start: true}
	frontier := []N{start}
	for depth := 0; len(frontier) > 0 && (level < 0 || depth < level); depth++ {
		var next []N
		for _, node := range frontier {
			for _, succ := range adj[node] {
				found[succ] = true
				if !expanded[succ] {
					expanded[succ] = true
					next = append(next, succ)
				}
			}
		}
		frontier = next
	}

	out := make([]N, 0, len(found))
	for node := range found {
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
