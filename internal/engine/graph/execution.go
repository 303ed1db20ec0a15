package graph

import (
	"log/slog"

	"ftree/internal/engine/parser"
	"ftree/internal/engine/unit"
	"ftree/internal/shared/observability"
)

// candidates groups the places a called name was found, by the way the
// caller can see it.
type candidates struct {
	viaUse      []unit.Path
	global      []unit.Path
	viaInclude  []unit.Path
	viaContains []unit.Path
	sibling     []unit.Path
}

// local lists the matches of every category except the global one. A
// unit reachable through two categories, or through two included files,
// counts once per way it was found.
func (c candidates) local() []unit.Path {
	out := make([]unit.Path, 0, len(c.viaUse)+len(c.viaInclude)+len(c.viaContains)+len(c.sibling))
	for _, group := range [][]unit.Path{c.viaUse, c.viaInclude, c.viaContains, c.sibling} {
		out = append(out, group...)
	}
	return out
}

// buildExecution resolves every CALL and possible function reference to
// the unit it designates, then flattens named interfaces.
func (t *Tree) buildExecution() Adjacency[unit.Path] {
	graph := make(Adjacency[unit.Path])
	for _, file := range t.index.KnownFiles() {
		rec, _ := t.index.Record(file)
		for _, scope := range rec.Units {
			targets := make(map[unit.Path]bool)
			for _, name := range rec.Calls[scope] {
				if target, ok := t.resolveCall(rec, scope, name, unit.KindSub); ok {
					targets[target] = true
				}
			}
			for _, name := range rec.Funcs[scope] {
				if target, ok := t.resolveCall(rec, scope, name, unit.KindFunc); ok {
					targets[target] = true
				}
			}
			graph[scope] = mergeTargets(graph[scope], targets)
		}
	}
	return t.flattenInterfaces(graph)
}

// resolveCall finds the unit a call to name from scope designates. The
// interface lookup runs when the canonical kind has no local match, and
// global units are only considered when neither lookup matched locally.
func (t *Tree) resolveCall(rec *parser.Record, scope unit.Path, name string, kind unit.Kind) (unit.Path, bool) {
	found := t.findCandidates(rec, scope, name, kind)
	global := found.global
	if len(found.local()) == 0 {
		ifaces := t.findCandidates(rec, scope, name, unit.KindInterface)
		global = append(global, ifaces.global...)
		found = ifaces
	}

	local := found.local()
	switch {
	case len(local) > 1:
		observability.ResolutionOutcomesTotal.WithLabelValues("call", "ambiguous").Inc()
		slog.Error("ambiguous call resolution",
			"path", rec.Path,
			"scope", scope.String(),
			"callee", name,
			"use", len(found.viaUse),
			"include", len(found.viaInclude),
			"contains", len(found.viaContains),
			"sibling", len(found.sibling))
		return unit.Unknown, true
	case len(local) == 1:
		observability.ResolutionOutcomesTotal.WithLabelValues("call", "resolved").Inc()
		return local[0], true
	}

	switch len(global) {
	case 1:
		observability.ResolutionOutcomesTotal.WithLabelValues("call", "resolved").Inc()
		return global[0], true
	case 0:
		if kind != unit.KindFunc {
			observability.ResolutionOutcomesTotal.WithLabelValues("call", "missing").Inc()
			slog.Info("no definition found for call", "path", rec.Path, "scope", scope.String(), "callee", name)
		}
	default:
		observability.ResolutionOutcomesTotal.WithLabelValues("call", "ambiguous_global").Inc()
		slog.Info("call matches several global units", "path", rec.Path, "scope", scope.String(), "callee", name, "files", len(global))
	}
	return unit.Path{}, false
}

func (t *Tree) findCandidates(rec *parser.Record, scope unit.Path, name string, kind unit.Kind) candidates {
	defs := t.defs()
	seg := unit.NewSegment(kind, name)
	var found candidates

	// USE statements of the scope and of every enclosing unit.
	seenUse := make(map[unit.Path]bool)
	for _, anc := range scope.Ancestors() {
		for _, use := range rec.Uses[anc] {
			remote, ok := use.Imports(seg.Name)
			if !ok {
				continue
			}
			target := unit.New(
				unit.NewSegment(unit.KindModule, use.Module),
				unit.NewSegment(kind, remote),
			)
			if len(defs[target]) > 0 && !seenUse[target] {
				seenUse[target] = true
				found.viaUse = append(found.viaUse, target)
			}
		}
	}

	// Top level units of any file; one entry per defining file.
	bare := unit.New(seg)
	for range defs[bare] {
		found.global = append(found.global, bare)
	}

	for _, anc := range scope.Ancestors() {
		for _, file := range t.includedFiles[scopeKey{file: rec.Path, scope: anc}] {
			if inc, ok := t.index.Record(file); ok && inc.HasUnit(bare) {
				found.viaInclude = append(found.viaInclude, bare)
			}
		}
	}

	if child := scope.Child(seg); rec.HasUnit(child) {
		found.viaContains = append(found.viaContains, child)
	}
	if sibling := scope.Sibling(seg); rec.HasUnit(sibling) {
		found.sibling = append(found.sibling, sibling)
	}
	return found
}

// flattenInterfaces replaces edges into a named interface by edges to the
// procedures the interface groups.
func (t *Tree) flattenInterfaces(graph Adjacency[unit.Path]) Adjacency[unit.Path] {
	defs := t.defs()
	expansion := make(map[unit.Path][]unit.Path)

	expand := func(iface unit.Path) []unit.Path {
		if impl, ok := expansion[iface]; ok {
			return impl
		}
		impl := []unit.Path{iface}
		files := defs[iface]
		switch len(files) {
		case 1:
			rec, _ := t.index.Record(files[0])
			// An interface without bindings drops the edge.
			impl = nil
			for _, u := range rec.Units {
				parent, ok := u.Parent()
				if !ok || parent != iface {
					continue
				}
				if same := iface.Sibling(u.Last()); rec.HasUnit(same) {
					impl = append(impl, same)
				} else {
					impl = append(impl, unit.New(u.Last()))
				}
			}
		case 0:
			slog.Info("interface not indexed", "scope", iface.String())
		default:
			slog.Error("interface defined in several files", "scope", iface.String(), "files", files)
		}
		expansion[iface] = impl
		return impl
	}

	out := make(Adjacency[unit.Path], len(graph))
	for from, targets := range graph {
		set := make(map[unit.Path]bool, len(targets))
		for _, to := range targets {
			if !to.IsNamedInterface() {
				set[to] = true
				continue
			}
			for _, impl := range expand(to) {
				set[impl] = true
			}
		}
		out[from] = mergeTargets(nil, set)
	}
	return out
}

func mergeTargets(existing []unit.Path, add map[unit.Path]bool) []unit.Path {
	set := make(map[unit.Path]bool, len(existing)+len(add))
	for _, p := range existing {
		set[p] = true
	}
	for p := range add {
		set[p] = true
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]unit.Path, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sortPaths(out)
	return out
}
