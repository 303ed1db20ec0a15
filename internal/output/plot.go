// Package output turns a neighbourhood of the compilation or execution
// graph into a plot and writes it as DOT, Mermaid, TSV, a text tree or any
// format the Graphviz renderer knows.
package output

import (
	"context"
	"sort"

	"ftree/internal/core/errors"
	"ftree/internal/engine/graph"
	"ftree/internal/engine/index"
	"ftree/internal/engine/unit"
)

type GraphKind string

const (
	CompilationGraph GraphKind = "compilation"
	ExecutionGraph   GraphKind = "execution"
)

type Node struct {
	ID string
	// File is the first file defining an execution node. It is empty for
	// compilation nodes and for unresolved targets.
	File    string
	Func    bool
	Central bool
}

type Edge struct {
	From string
	To   string
}

// Plot is the part of a graph reachable from the central nodes within the
// requested depths.
type Plot struct {
	Kind    GraphKind
	Central []string
	Nodes   []Node
	Edges   []Edge
	// Frame groups the central nodes on one rank. FrameLabel is set when
	// every central scope lives in the same file.
	Frame      bool
	FrameLabel string
}

// Depth bounds a plot: Upper hops towards dependents, Lower hops towards
// dependencies. graph.Unbounded lifts a bound.
type Depth struct {
	Upper int
	Lower int
}

type plotBuilder struct {
	plot  *Plot
	down  map[string][]string
	up    map[string][]string
	file  func(string) string
	nodes map[string]int
	edges map[Edge]bool
}

func newBuilder(kind GraphKind, down, up map[string][]string, file func(string) string) *plotBuilder {
	return &plotBuilder{
		plot:  &Plot{Kind: kind},
		down:  down,
		up:    up,
		file:  file,
		nodes: make(map[string]int),
		edges: make(map[Edge]bool),
	}
}

func (b *plotBuilder) node(id string) {
	if _, ok := b.nodes[id]; ok {
		return
	}
	n := Node{ID: id, File: b.file(id)}
	if b.plot.Kind == ExecutionGraph {
		if p, err := unit.Parse(id); err == nil {
			n.Func = p.Kind() == unit.KindFunc
		}
	}
	b.nodes[id] = len(b.plot.Nodes)
	b.plot.Nodes = append(b.plot.Nodes, n)
}

// walk adds every edge within level hops of start. Each node is expanded
// at most once per depth so that cycles terminate.
func (b *plotBuilder) walk(start string, level int, adj map[string][]string, forward bool) {
	type item struct {
		id    string
		level int
	}
	expanded := make(map[string]int)
	queue := []item{{start, level}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.level == 0 {
			continue
		}
		if prev, ok := expanded[cur.id]; ok && (prev == graph.Unbounded || (cur.level != graph.Unbounded && prev >= cur.level)) {
			continue
		}
		expanded[cur.id] = cur.level
		next := cur.level
		if next != graph.Unbounded {
			next--
		}
		for _, other := range adj[cur.id] {
			b.node(other)
			e := Edge{From: cur.id, To: other}
			if !forward {
				e = Edge{From: other, To: cur.id}
			}
			if !b.edges[e] {
				b.edges[e] = true
				b.plot.Edges = append(b.plot.Edges, e)
			}
			queue = append(queue, item{other, next})
		}
	}
}

func (b *plotBuilder) build(central []string, depth Depth) *Plot {
	for _, id := range central {
		b.node(id)
		b.plot.Nodes[b.nodes[id]].Central = true
		b.plot.Central = append(b.plot.Central, id)
	}
	for _, id := range central {
		b.walk(id, depth.Lower, b.down, true)
		b.walk(id, depth.Upper, b.up, false)
	}
	sort.Slice(b.plot.Nodes, func(i, j int) bool { return b.plot.Nodes[i].ID < b.plot.Nodes[j].ID })
	sort.Slice(b.plot.Edges, func(i, j int) bool {
		if b.plot.Edges[i].From != b.plot.Edges[j].From {
			return b.plot.Edges[i].From < b.plot.Edges[j].From
		}
		return b.plot.Edges[i].To < b.plot.Edges[j].To
	})
	return b.plot
}

// CompilationPlot plots the compilation graph around files.
func CompilationPlot(t *graph.Tree, files []string, depth Depth) (*Plot, error) {
	if len(files) == 0 {
		return nil, errors.New(errors.CodeValidationError, "no central file")
	}
	central := make([]string, 0, len(files))
	for _, f := range files {
		f = index.Normalize(f)
		if !t.Index().Has(f) {
			return nil, errors.AddContext(errors.New(errors.CodeNotFound, "file not indexed"), errors.CtxPath, f)
		}
		central = append(central, f)
	}
	down := t.CompilationGraph()
	up := down.Reverse(func(a, b string) bool { return a < b })
	b := newBuilder(CompilationGraph, down, up, func(string) string { return "" })
	p := b.build(uniqueStrings(central), depth)
	p.Frame = true
	return p, nil
}

// ExecutionPlot plots the execution graph around scopes. The central
// scopes are framed when they all come from one file, or when frame is
// set.
func ExecutionPlot(t *graph.Tree, scopes []unit.Path, depth Depth, frame bool) (*Plot, error) {
	if len(scopes) == 0 {
		return nil, errors.New(errors.CodeValidationError, "no central scope")
	}
	central := make([]string, 0, len(scopes))
	files := make(map[string]bool)
	for _, s := range scopes {
		defs := t.ScopeToFiles(s)
		if len(defs) == 0 {
			return nil, errors.AddContext(errors.New(errors.CodeNotFound, "scope not defined"), errors.CtxScope, s.String())
		}
		files[defs[0]] = true
		central = append(central, s.String())
	}

	exec := t.ExecutionGraph()
	down := make(map[string][]string, len(exec))
	for from, targets := range exec {
		list := make([]string, len(targets))
		for i, to := range targets {
			list[i] = to.String()
		}
		down[from.String()] = list
	}
	up := graph.Adjacency[string](down).Reverse(func(a, b string) bool { return a < b })

	fileOf := func(id string) string {
		p, err := unit.Parse(id)
		if err != nil {
			return ""
		}
		if defs := t.ScopeToFiles(p); len(defs) > 0 {
			return defs[0]
		}
		return ""
	}
	b := newBuilder(ExecutionGraph, down, up, fileOf)
	p := b.build(uniqueStrings(central), depth)
	p.Frame = frame
	if len(files) == 1 {
		p.Frame = true
		for f := range files {
			p.FrameLabel = f
		}
	}
	return p, nil
}

// NodeByID returns the node with id.
func (p *Plot) NodeByID(id string) (Node, bool) {
	i := sort.Search(len(p.Nodes), func(i int) bool { return p.Nodes[i].ID >= id })
	if i < len(p.Nodes) && p.Nodes[i].ID == id {
		return p.Nodes[i], true
	}
	return Node{}, false
}

// Successors returns the plotted targets of id.
func (p *Plot) Successors(id string) []string {
	var out []string
	for _, e := range p.Edges {
		if e.From == id {
			out = append(out, e.To)
		}
	}
	return out
}

// Predecessors returns the plotted sources of id.
func (p *Plot) Predecessors(id string) []string {
	var out []string
	for _, e := range p.Edges {
		if e.To == id {
			out = append(out, e.From)
		}
	}
	sort.Strings(out)
	return out
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// PlotCompilationFromFile writes the compilation graph around file.
func PlotCompilationFromFile(ctx context.Context, t *graph.Tree, file, out string, depth Depth, r Renderer) error {
	p, err := CompilationPlot(t, []string{file}, depth)
	if err != nil {
		return err
	}
	return Write(ctx, p, out, r)
}

// PlotCompilationFromScope writes the compilation graph around the files
// defining scope.
func PlotCompilationFromScope(ctx context.Context, t *graph.Tree, scope unit.Path, out string, depth Depth, r Renderer) error {
	files := t.ScopeToFiles(scope)
	if len(files) == 0 {
		return errors.AddContext(errors.New(errors.CodeNotFound, "scope not defined"), errors.CtxScope, scope.String())
	}
	p, err := CompilationPlot(t, files, depth)
	if err != nil {
		return err
	}
	p.Frame = false
	return Write(ctx, p, out, r)
}

// PlotExecutionFromScope writes the execution graph around scope.
func PlotExecutionFromScope(ctx context.Context, t *graph.Tree, scope unit.Path, out string, depth Depth, r Renderer) error {
	p, err := ExecutionPlot(t, []unit.Path{scope}, depth, false)
	if err != nil {
		return err
	}
	return Write(ctx, p, out, r)
}

// PlotExecutionFromFile writes the execution graph around every unit of
// file, framed together.
func PlotExecutionFromFile(ctx context.Context, t *graph.Tree, file, out string, depth Depth, r Renderer) error {
	scopes, err := t.FileToScopes(file)
	if err != nil {
		return err
	}
	if len(scopes) == 0 {
		return errors.AddContext(errors.New(errors.CodeNotFound, "file defines no unit"), errors.CtxPath, file)
	}
	p, err := ExecutionPlot(t, scopes, depth, true)
	if err != nil {
		return err
	}
	return Write(ctx, p, out, r)
}
