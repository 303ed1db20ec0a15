// Package graph derives the compilation and execution graphs of a Fortran
// project from its index and answers reachability queries over them.
package graph

import (
	"ftree/internal/engine/index"
	"ftree/internal/engine/unit"
	"ftree/internal/shared/observability"
)

const defaultMemoCapacity = 512

// scopeKey names a unit inside a given file. The same unit path may be
// defined by several files.
type scopeKey struct {
	file  string
	scope unit.Path
}

type memoKey struct {
	node  string
	dir   Direction
	level int
}

// Tree owns the derived graphs of one index. Graphs are built lazily and
// rebuilt in full whenever the index version moves. A Tree is not safe for
// concurrent use.
type Tree struct {
	index *index.Index

	version uint64
	valid   bool

	// definitions maps every unit to the sorted files defining it.
	definitions map[unit.Path][]string

	compilation    Adjacency[string]
	compilationRev Adjacency[string]
	// includedFiles holds, per unit, the tracked files its includes
	// resolved to.
	includedFiles map[scopeKey][]string

	execution    Adjacency[unit.Path]
	executionRev Adjacency[unit.Path]

	fileMemo  *LRUCache[memoKey, []string]
	scopeMemo *LRUCache[memoKey, []unit.Path]
}

func New(ix *index.Index) *Tree {
	return &Tree{
		index:     ix,
		fileMemo:  NewLRUCache[memoKey, []string](defaultMemoCapacity),
		scopeMemo: NewLRUCache[memoKey, []unit.Path](defaultMemoCapacity),
	}
}

// Index returns the project index the tree reads from.
func (t *Tree) Index() *index.Index {
	return t.index
}

// IsValid reports whether anything is indexed.
func (t *Tree) IsValid() bool {
	return t.index.Len() != 0
}

// refresh drops every derived value when the index changed since they
// were computed. Nothing is rebuilt here.
func (t *Tree) refresh() {
	if t.valid && t.version == t.index.Version() {
		return
	}
	t.version = t.index.Version()
	t.valid = true
	t.definitions = nil
	t.compilation = nil
	t.compilationRev = nil
	t.includedFiles = nil
	t.execution = nil
	t.executionRev = nil
	t.fileMemo.Clear()
	t.scopeMemo.Clear()
}

func (t *Tree) defs() map[unit.Path][]string {
	t.refresh()
	if t.definitions == nil {
		defs := make(map[unit.Path][]string)
		for _, file := range t.index.KnownFiles() {
			rec, _ := t.index.Record(file)
			for _, u := range rec.Units {
				defs[u] = append(defs[u], file)
			}
		}
		t.definitions = defs
	}
	return t.definitions
}

// CompilationGraph returns file -> files needed to compile it. Includes
// that match no tracked file appear as their literal text.
func (t *Tree) CompilationGraph() Adjacency[string] {
	t.refresh()
	if t.compilation == nil {
		t.compilation, t.includedFiles = t.buildCompilation()
		t.compilationRev = t.compilation.Reverse(lessString)
		record("compilation", t.compilation.NodeCount(), t.compilation.EdgeCount())
	}
	return t.compilation
}

// ExecutionGraph returns unit -> units it may call.
func (t *Tree) ExecutionGraph() Adjacency[unit.Path] {
	t.refresh()
	if t.execution == nil {
		// Include resolution feeds call resolution.
		t.CompilationGraph()
		t.execution = t.buildExecution()
		t.executionRev = t.execution.Reverse(unit.Less)
		record("execution", t.execution.NodeCount(), t.execution.EdgeCount())
	}
	return t.execution
}

func (t *Tree) compilationDirection(dir Direction) Adjacency[string] {
	t.CompilationGraph()
	if dir == Up {
		return t.compilationRev
	}
	return t.compilation
}

func (t *Tree) executionDirection(dir Direction) Adjacency[unit.Path] {
	t.ExecutionGraph()
	if dir == Up {
		return t.executionRev
	}
	return t.execution
}

func record(graph string, nodes, edges int) {
	observability.GraphRebuildsTotal.WithLabelValues(graph).Inc()
	observability.GraphNodes.WithLabelValues(graph).Set(float64(nodes))
	observability.GraphEdges.WithLabelValues(graph).Set(float64(edges))
}

func lessString(a, b string) bool {
	return a < b
}
