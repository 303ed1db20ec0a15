package parser

import (
	"sort"
	"strings"

	"ftree/internal/engine/unit"
)

// Record is everything the extractor learned about one source file: the
// units it defines and, per unit, the raw references that the graph
// builders resolve later.
type Record struct {
	Path     string
	Units    []unit.Path
	Includes map[unit.Path][]string
	Uses     map[unit.Path][]Use
	Calls    map[unit.Path][]string
	// Funcs holds names used with parentheses that are not declared as
	// arrays in the unit; they may be function calls.
	Funcs map[unit.Path][]string
}

// Use is one USE statement. An empty Only means no ONLY restriction.
// Renames maps a local name to the module-side name.
type Use struct {
	Module  string            `json:"module"`
	Only    []string          `json:"only"`
	Renames map[string]string `json:"renames,omitempty"`
}

// NewRecord returns an empty record for path.
func NewRecord(path string) *Record {
	return &Record{
		Path:     path,
		Includes: make(map[unit.Path][]string),
		Uses:     make(map[unit.Path][]Use),
		Calls:    make(map[unit.Path][]string),
		Funcs:    make(map[unit.Path][]string),
	}
}

// HasUnit reports whether the file defines p.
func (r *Record) HasUnit(p unit.Path) bool {
	for _, u := range r.Units {
		if u == p {
			return true
		}
	}
	return false
}

// AddUnit registers p once, keeping declaration order.
func (r *Record) AddUnit(p unit.Path) {
	if r.HasUnit(p) {
		return
	}
	r.Units = append(r.Units, p)
}

// Imports reports whether the use makes name visible and returns the name
// the module itself knows it under.
func (u Use) Imports(name string) (string, bool) {
	if remote, ok := u.Renames[name]; ok {
		return remote, true
	}
	if len(u.Only) == 0 {
		return name, true
	}
	for _, o := range u.Only {
		if o == name {
			return name, true
		}
	}
	return "", false
}

// Restricted reports whether the use carries an ONLY list.
func (u Use) Restricted() bool {
	return len(u.Only) > 0
}

func (u Use) sortKey() string {
	return u.Module + "\x00" + strings.Join(u.Only, ",")
}

// Normalize sorts and deduplicates every reference list so that two
// extractions of the same file compare equal.
func (r *Record) Normalize() {
	for p, incs := range r.Includes {
		r.Includes[p] = uniqueStrings(incs, false)
	}
	for p, names := range r.Calls {
		r.Calls[p] = uniqueStrings(names, true)
	}
	for p, names := range r.Funcs {
		r.Funcs[p] = uniqueStrings(names, true)
	}
	for p, uses := range r.Uses {
		for i := range uses {
			uses[i].Only = uniqueStrings(uses[i].Only, true)
			if len(uses[i].Renames) == 0 {
				uses[i].Renames = nil
			}
		}
		sort.SliceStable(uses, func(i, j int) bool {
			return uses[i].sortKey() < uses[j].sortKey()
		})
		r.Uses[p] = uses
	}
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := NewRecord(r.Path)
	c.Units = append([]unit.Path(nil), r.Units...)
	for p, v := range r.Includes {
		c.Includes[p] = append([]string(nil), v...)
	}
	for p, v := range r.Calls {
		c.Calls[p] = append([]string(nil), v...)
	}
	for p, v := range r.Funcs {
		c.Funcs[p] = append([]string(nil), v...)
	}
	for p, uses := range r.Uses {
		out := make([]Use, len(uses))
		for i, u := range uses {
			out[i] = Use{Module: u.Module, Only: append([]string(nil), u.Only...)}
			if len(u.Renames) > 0 {
				out[i].Renames = make(map[string]string, len(u.Renames))
				for k, v := range u.Renames {
					out[i].Renames[k] = v
				}
			}
		}
		c.Uses[p] = out
	}
	return c
}

func uniqueStrings(in []string, upper bool) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if upper {
			s = strings.ToUpper(s)
		}
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
