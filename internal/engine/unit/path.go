// Package unit models hierarchical Fortran program-unit identifiers such as
// "module:PHYS/sub:COMPUTE".
//
// A Path is an immutable value: it is built from segments, rendered to a
// canonical string for storage and logging, and decomposed back into
// segments for every structural operation. Paths are comparable and can be
// used directly as map keys.
package unit

import (
	"fmt"
	"strings"
)

// Kind is the category of a program unit.
type Kind string

const (
	KindModule    Kind = "module"
	KindSubmodule Kind = "submodule"
	KindProgram   Kind = "prog"
	KindSub       Kind = "sub"
	KindFunc      Kind = "func"
	KindInterface Kind = "interface"
	KindType      Kind = "type"
)

// AnonymousName names unnamed interface blocks and generic operator
// interfaces.
const AnonymousName = "--UNKNOWN--"

const (
	separator     = "/"
	kindSeparator = ":"
	unknownKey    = "??"
)

var knownKinds = map[Kind]bool{
	KindModule:    true,
	KindSubmodule: true,
	KindProgram:   true,
	KindSub:       true,
	KindFunc:      true,
	KindInterface: true,
	KindType:      true,
}

// Valid reports whether k is one of the known unit kinds.
func (k Kind) Valid() bool {
	return knownKinds[k]
}

// Segment is one "kind:NAME" element of a Path.
type Segment struct {
	Kind Kind
	Name string
}

// NewSegment builds a segment with a normalised (upper-case) name.
func NewSegment(kind Kind, name string) Segment {
	return Segment{Kind: kind, Name: normalizeName(name)}
}

func (s Segment) String() string {
	return string(s.Kind) + kindSeparator + s.Name
}

// Path identifies a program unit within its file.
type Path struct {
	key string
}

// Unknown is the sentinel call target recorded when a call resolves to
// more than one candidate.
var Unknown = Path{key: unknownKey}

// New builds a path from outermost to innermost segment.
func New(segs ...Segment) Path {
	if len(segs) == 0 {
		return Path{}
	}
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = NewSegment(s.Kind, s.Name).String()
	}
	return Path{key: strings.Join(parts, separator)}
}

// Parse decodes the canonical rendering of a path.
func Parse(raw string) (Path, error) {
	raw = strings.TrimSpace(raw)
	if raw == unknownKey {
		return Unknown, nil
	}
	if raw == "" {
		return Path{}, fmt.Errorf("empty unit path")
	}
	parts := strings.Split(raw, separator)
	segs := make([]Segment, 0, len(parts))
	for _, part := range parts {
		seg, err := parseSegment(part)
		if err != nil {
			return Path{}, fmt.Errorf("unit path %q: %w", raw, err)
		}
		segs = append(segs, seg)
	}
	return New(segs...), nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func parseSegment(part string) (Segment, error) {
	kind, name, ok := strings.Cut(part, kindSeparator)
	if !ok {
		return Segment{}, fmt.Errorf("segment %q has no kind", part)
	}
	k := Kind(strings.ToLower(strings.TrimSpace(kind)))
	if !k.Valid() {
		return Segment{}, fmt.Errorf("segment %q has unknown kind %q", part, kind)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Segment{}, fmt.Errorf("segment %q has no name", part)
	}
	return NewSegment(k, name), nil
}

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == AnonymousName {
		return name
	}
	return strings.ToUpper(name)
}

// String returns the canonical rendering.
func (p Path) String() string {
	return p.key
}

// IsZero reports whether p is the empty path.
func (p Path) IsZero() bool {
	return p.key == ""
}

// IsUnknown reports whether p is the ambiguity sentinel.
func (p Path) IsUnknown() bool {
	return p.key == unknownKey
}

// Segments decomposes the path. The sentinel and the zero path have none.
func (p Path) Segments() []Segment {
	if p.IsZero() || p.IsUnknown() {
		return nil
	}
	parts := strings.Split(p.key, separator)
	segs := make([]Segment, len(parts))
	for i, part := range parts {
		kind, name, _ := strings.Cut(part, kindSeparator)
		segs[i] = Segment{Kind: Kind(kind), Name: name}
	}
	return segs
}

// Depth is the number of segments.
func (p Path) Depth() int {
	return len(p.Segments())
}

// Last returns the innermost segment.
func (p Path) Last() Segment {
	segs := p.Segments()
	if len(segs) == 0 {
		return Segment{}
	}
	return segs[len(segs)-1]
}

// Kind is the kind of the innermost segment.
func (p Path) Kind() Kind {
	return p.Last().Kind
}

// Name is the name of the innermost segment.
func (p Path) Name() string {
	return p.Last().Name
}

// Parent returns the enclosing unit, or false for a top-level unit.
func (p Path) Parent() (Path, bool) {
	segs := p.Segments()
	if len(segs) < 2 {
		return Path{}, false
	}
	return New(segs[:len(segs)-1]...), true
}

// Child appends seg below p. The child of the zero path is a top-level path.
func (p Path) Child(seg Segment) Path {
	segs := append(p.Segments(), seg)
	return New(segs...)
}

// Sibling returns the path obtained by replacing the innermost segment,
// i.e. seg placed in the same enclosing scope as p.
func (p Path) Sibling(seg Segment) Path {
	parent, ok := p.Parent()
	if !ok {
		return New(seg)
	}
	return parent.Child(seg)
}

// IsTopLevel reports whether p has exactly one segment.
func (p Path) IsTopLevel() bool {
	return p.Depth() == 1
}

// Within reports whether p equals ancestor or is nested below it. The
// comparison is segment-wise so "sub:AB" is not within "sub:A".
func (p Path) Within(ancestor Path) bool {
	a := ancestor.Segments()
	s := p.Segments()
	if len(a) == 0 || len(a) > len(s) {
		return false
	}
	for i := range a {
		if a[i] != s[i] {
			return false
		}
	}
	return true
}

// Ancestors lists p and every enclosing unit, innermost first.
func (p Path) Ancestors() []Path {
	segs := p.Segments()
	out := make([]Path, 0, len(segs))
	for i := len(segs); i > 0; i-- {
		out = append(out, New(segs[:i]...))
	}
	return out
}

// EnclosingInterface returns the interface block p is declared in, if p is
// an interface binding or interface body (".../interface:I/sub:X").
func (p Path) EnclosingInterface() (Path, bool) {
	parent, ok := p.Parent()
	if !ok || parent.Kind() != KindInterface {
		return Path{}, false
	}
	return parent, true
}

// IsNamedInterface reports whether p is an interface with a real name.
func (p Path) IsNamedInterface() bool {
	last := p.Last()
	return last.Kind == KindInterface && last.Name != AnonymousName
}

// MarshalText renders the canonical form.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.key), nil
}

// UnmarshalText parses the canonical form.
func (p *Path) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Less orders paths by canonical rendering.
func Less(a, b Path) bool {
	return a.key < b.key
}
