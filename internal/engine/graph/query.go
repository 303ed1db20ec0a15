package graph

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"ftree/internal/core/errors"
	"ftree/internal/engine/index"
	"ftree/internal/engine/unit"
)

// StopOptions tune IsUnderStopScopes.
type StopOptions struct {
	// IncludeInterfaces checks the implementation of an interface binding
	// instead of the binding itself.
	IncludeInterfaces bool
	// IncludeStopScopes makes a stop scope count as under itself.
	IncludeStopScopes bool
}

// NeedsFile lists the files file needs to compile, up to level hops.
func (t *Tree) NeedsFile(file string, level int) ([]string, error) {
	return t.fileQuery(file, Down, level)
}

// NeededByFile lists the files that need file to compile.
func (t *Tree) NeededByFile(file string, level int) ([]string, error) {
	return t.fileQuery(file, Up, level)
}

// CallsScopes lists the units scope may call, up to level hops.
func (t *Tree) CallsScopes(scope unit.Path, level int) ([]unit.Path, error) {
	return t.scopeQuery(scope, Down, level)
}

// CalledByScope lists the units that may call scope.
func (t *Tree) CalledByScope(scope unit.Path, level int) ([]unit.Path, error) {
	return t.scopeQuery(scope, Up, level)
}

func (t *Tree) fileQuery(file string, dir Direction, level int) ([]string, error) {
	file = index.Normalize(file)
	if !t.index.Has(file) {
		return nil, errors.AddContext(errors.New(errors.CodeNotFound, "file not indexed"), errors.CtxPath, file)
	}
	adj := t.compilationDirection(dir)
	key := memoKey{node: file, dir: dir, level: normLevel(level)}
	if cached, ok := t.fileMemo.Get(key); ok {
		return append([]string(nil), cached...), nil
	}
	out := Reach(adj, file, level, lessString)
	t.fileMemo.Put(key, out)
	return append([]string(nil), out...), nil
}

func (t *Tree) scopeQuery(scope unit.Path, dir Direction, level int) ([]unit.Path, error) {
	if len(t.defs()[scope]) == 0 {
		return nil, errors.AddContext(errors.New(errors.CodeNotFound, "scope not indexed"), errors.CtxScope, scope.String())
	}
	adj := t.executionDirection(dir)
	key := memoKey{node: scope.String(), dir: dir, level: normLevel(level)}
	if cached, ok := t.scopeMemo.Get(key); ok {
		return append([]unit.Path(nil), cached...), nil
	}
	out := Reach(adj, scope, level, unit.Less)
	t.scopeMemo.Put(key, out)
	return append([]unit.Path(nil), out...), nil
}

func normLevel(level int) int {
	if level < 0 {
		return Unbounded
	}
	return level
}

// IsUnderStopScopes reports whether one of stop calls scope, directly or
// not. With IncludeInterfaces, an interface binding is checked through the
// unit implementing it; a binding without indexed code is never under
// anything.
func (t *Tree) IsUnderStopScopes(scope unit.Path, stop []unit.Path, opts StopOptions) bool {
	if opts.IncludeInterfaces {
		if iface, ok := scope.EnclosingInterface(); ok {
			impl, found := t.implementation(iface, scope)
			if !found {
				return false
			}
			return t.IsUnderStopScopes(impl, stop, StopOptions{IncludeStopScopes: opts.IncludeStopScopes})
		}
	}

	stopSet := make(map[unit.Path]bool, len(stop))
	for _, s := range stop {
		stopSet[s] = true
	}
	if opts.IncludeStopScopes && stopSet[scope] {
		return true
	}
	callers, err := t.CalledByScope(scope, Unbounded)
	if err != nil {
		return false
	}
	for _, caller := range callers {
		if stopSet[caller] {
			return true
		}
	}
	return false
}

// implementation returns the indexed unit implementing binding, looking
// next to the interface first and at top level second.
func (t *Tree) implementation(iface, binding unit.Path) (unit.Path, bool) {
	defs := t.defs()
	if same := iface.Sibling(binding.Last()); len(defs[same]) > 0 {
		return same, true
	}
	if bare := unit.New(binding.Last()); len(defs[bare]) > 0 {
		return bare, true
	}
	return unit.Path{}, false
}

// ScopeToFiles lists the files defining scope.
func (t *Tree) ScopeToFiles(scope unit.Path) []string {
	return append([]string(nil), t.defs()[scope]...)
}

// FileToScopes lists the units file defines, sorted. Stores keep units
// sorted, so the order survives a save and reload.
func (t *Tree) FileToScopes(file string) ([]unit.Path, error) {
	rec, ok := t.index.Record(file)
	if !ok {
		return nil, errors.AddContext(errors.New(errors.CodeNotFound, "file not indexed"), errors.CtxPath, index.Normalize(file))
	}
	out := append([]unit.Path(nil), rec.Units...)
	sortPaths(out)
	return out, nil
}

// FindScopeInterface looks for an interface block declaring scope, e.g.
// module:M/interface:I/sub:S for sub:S. It returns the file and the unit
// found inside the interface.
func (t *Tree) FindScopeInterface(scope unit.Path) (string, unit.Path, bool) {
	want := scope.Segments()
	if len(want) == 0 {
		return "", unit.Path{}, false
	}
	for _, file := range t.index.KnownFiles() {
		rec, _ := t.index.Record(file)
		for _, u := range rec.Units {
			segs := u.Segments()
			n := len(segs) - len(want)
			if n < 1 || segs[n-1].Kind != unit.KindInterface {
				continue
			}
			if segmentsEqual(segs[n:], want) {
				return file, u, true
			}
		}
	}
	return "", unit.Path{}, false
}

func segmentsEqual(a, b []unit.Segment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Update re-analyses files that changed and forgets those that vanished.
// Every file is processed; the returned error joins the failures.
func (t *Tree) Update(paths ...string) error {
	var failed []string
	var firstErr error
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.index.Forget(path)
			continue
		}
		if err := t.index.AnalyzeFile(path); err != nil {
			failed = append(failed, index.Normalize(path))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr == nil {
		return nil
	}
	if len(failed) == 1 {
		return firstErr
	}
	return errors.AddContext(
		errors.Wrap(firstErr, errors.CodeParse, fmt.Sprintf("%d files failed to parse", len(failed))),
		errors.CtxPath, strings.Join(failed, ","))
}

// UpdateSignaled re-analyses the files signaled on the index.
func (t *Tree) UpdateSignaled() error {
	return t.Update(t.index.PopSignaled()...)
}

// Rescan brings the index in line with the files found on disk: new files
// are analysed and missing ones forgotten. Files already known are kept.
func (t *Tree) Rescan(found []string) error {
	present := make(map[string]bool, len(found))
	var added []string
	for _, path := range found {
		key := index.Normalize(path)
		present[key] = true
		if !t.index.Has(key) {
			added = append(added, path)
		}
	}
	var gone []string
	for _, known := range t.index.KnownFiles() {
		if !present[known] {
			gone = append(gone, known)
		}
	}
	t.index.Forget(gone...)
	return t.Update(added...)
}

func sortPaths(paths []unit.Path) {
	sort.Slice(paths, func(i, j int) bool { return unit.Less(paths[i], paths[j]) })
}
