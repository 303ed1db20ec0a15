package graph

import (
	"log/slog"
	"path/filepath"
	"sort"

	"ftree/internal/engine/index"
	"ftree/internal/engine/unit"
	"ftree/internal/shared/observability"
)

// includeTier returns the tracked files an include target may designate.
type includeTier struct {
	name  string
	match func(from, target string) []string
}

type includeResolver struct {
	known  map[string]bool
	real   map[string][]string
	byBase map[string][]string
}

func newIncludeResolver(files []string) *includeResolver {
	r := &includeResolver{
		known:  make(map[string]bool, len(files)),
		real:   make(map[string][]string, len(files)),
		byBase: make(map[string][]string, len(files)),
	}
	for _, file := range files {
		r.known[file] = true
		rp := realPath(file)
		r.real[rp] = append(r.real[rp], file)
		base := filepath.Base(file)
		r.byBase[base] = append(r.byBase[base], file)
	}
	return r
}

// tiers go from the most to the least precise.
func (r *includeResolver) tiers() []includeTier {
	return []includeTier{
		{name: "exact", match: func(_, target string) []string {
			if p := index.Normalize(target); r.known[p] {
				return []string{p}
			}
			return nil
		}},
		{name: "relative", match: func(from, target string) []string {
			return r.real[realPath(filepath.Join(filepath.Dir(from), target))]
		}},
		{name: "basename", match: func(_, target string) []string {
			return r.byBase[filepath.Base(target)]
		}},
	}
}

// resolve accepts the first tier with exactly one candidate. A tier with
// several candidates is ambiguous and hands over to the next one.
func (r *includeResolver) resolve(from, target string) (string, bool) {
	for _, tier := range r.tiers() {
		candidates := tier.match(from, target)
		switch len(candidates) {
		case 0:
			continue
		case 1:
			return candidates[0], true
		default:
			slog.Debug("ambiguous include tier", "path", from, "include", target, "tier", tier.name, "candidates", candidates)
		}
	}
	return "", false
}

func realPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// buildCompilation resolves includes and USE statements into file edges.
func (t *Tree) buildCompilation() (Adjacency[string], map[scopeKey][]string) {
	files := t.index.KnownFiles()
	defs := t.defs()
	includes := newIncludeResolver(files)

	graph := make(Adjacency[string], len(files))
	included := make(map[scopeKey][]string)

	for _, file := range files {
		rec, _ := t.index.Record(file)
		targets := make(map[string]bool)

		for _, scope := range rec.Units {
			for _, inc := range rec.Includes[scope] {
				resolved, ok := includes.resolve(file, inc)
				if !ok {
					observability.ResolutionOutcomesTotal.WithLabelValues("include", "unresolved").Inc()
					slog.Debug("include not tracked", "path", file, "scope", scope.String(), "include", inc)
					targets[inc] = true
					continue
				}
				observability.ResolutionOutcomesTotal.WithLabelValues("include", "resolved").Inc()
				targets[resolved] = true
				key := scopeKey{file: file, scope: scope}
				included[key] = append(included[key], resolved)
			}

			for _, use := range rec.Uses[scope] {
				module := unit.New(unit.NewSegment(unit.KindModule, use.Module))
				definedIn := defs[module]
				switch len(definedIn) {
				case 0:
					observability.ResolutionOutcomesTotal.WithLabelValues("use", "missing").Inc()
					slog.Info("no file defines used module", "path", file, "scope", scope.String(), "module", use.Module)
				case 1:
					observability.ResolutionOutcomesTotal.WithLabelValues("use", "resolved").Inc()
					// A file using a module it defines gets no self edge.
					if definedIn[0] != file {
						targets[definedIn[0]] = true
					}
				default:
					observability.ResolutionOutcomesTotal.WithLabelValues("use", "ambiguous").Inc()
					slog.Error("module defined in several files", "path", file, "scope", scope.String(), "module", use.Module, "files", definedIn)
				}
			}
		}

		graph[file] = sortedKeys(targets)
	}

	for key, list := range included {
		included[key] = sortedUnique(list)
	}
	return graph, included
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedUnique(list []string) []string {
	set := make(map[string]bool, len(list))
	for _, s := range list {
		set[s] = true
	}
	return sortedKeys(set)
}
