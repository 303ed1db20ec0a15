package parser

import (
	"fmt"
	"regexp"
	"strings"

	"ftree/internal/core/errors"
	"ftree/internal/engine/unit"
)

const (
	prefixSpecs = `(?:(?:RECURSIVE|PURE|ELEMENTAL|IMPURE|NON_RECURSIVE|MODULE)\s+)*`
	typeSpec    = `(?:(?:INTEGER|REAL|DOUBLE\s*PRECISION|DOUBLE\s*COMPLEX|COMPLEX|LOGICAL|CHARACTER|TYPE|CLASS)\s*(?:\*\s*\d+|\*\s*\(\s*\*\s*\)|\((?:[^()]|\([^()]*\))*\))?\s+)?`
)

var (
	endPattern        = regexp.MustCompile(`^END\s*(PROGRAM|MODULE|SUBMODULE|SUBROUTINE|FUNCTION|INTERFACE|TYPE|PROCEDURE|BLOCK\s*DATA)\b`)
	programPattern    = regexp.MustCompile(`^PROGRAM\s+([A-Z_]\w*)`)
	modulePattern     = regexp.MustCompile(`^MODULE\s+([A-Z_]\w*)\s*$`)
	submodulePattern  = regexp.MustCompile(`^SUBMODULE\s*\(\s*[A-Z_][\w:\s]*\)\s*([A-Z_]\w*)`)
	subroutinePattern = regexp.MustCompile(`^` + prefixSpecs + `SUBROUTINE\s+([A-Z_]\w*)`)
	functionPattern   = regexp.MustCompile(`^` + prefixSpecs + typeSpec + prefixSpecs + `FUNCTION\s+([A-Z_]\w*)`)
	interfacePattern  = regexp.MustCompile(`^(?:ABSTRACT\s+)?INTERFACE\b\s*(.*)$`)
	procedurePattern  = regexp.MustCompile(`^(MODULE\s+)?PROCEDURE\b\s*(?:::)?\s*(.*)$`)
	typeDefPattern    = regexp.MustCompile(`^TYPE\s*(?:,[^:]*)?::\s*([A-Z_]\w*)|^TYPE\s+([A-Z_]\w*)\s*$`)
	blockDataPattern  = regexp.MustCompile(`^BLOCK\s*DATA\b`)
	usePattern        = regexp.MustCompile(`^USE\b(?:\s*,\s*(?:NON_)?INTRINSIC\s*::|\s*::)?\s*([A-Z_]\w*)\s*(?:,\s*(.*))?$`)
	onlyPattern       = regexp.MustCompile(`^ONLY\s*:\s*(.*)$`)
	includePattern    = regexp.MustCompile(`(?i)^(?:\d+\s+)?INCLUDE\s*(?:'([^']*)'|"([^"]*)")`)
	callPattern       = regexp.MustCompile(`^CALL\s+([A-Z_]\w*)\s*(?:\(|$)`)
	labelPattern      = regexp.MustCompile(`^\d+\s+`)
	constructPattern  = regexp.MustCompile(`^[A-Z_]\w*\s*:(?:[^:]|$)`)
	declPattern       = regexp.MustCompile(`^(?:(?:INTEGER|REAL|DOUBLE\s*PRECISION|DOUBLE\s*COMPLEX|COMPLEX|LOGICAL|CHARACTER)(?:\s*[*(,:]|\s+[A-Z_])|(?:TYPE|CLASS|PROCEDURE)\s*\()`)
	dimensionPattern  = regexp.MustCompile(`^(?:DIMENSION|ALLOCATABLE|POINTER|TARGET|CODIMENSION)\b\s*(?:::)?\s*(.*)$`)
	identPattern      = regexp.MustCompile(`[A-Z_][A-Z0-9_]*`)
	selectorPattern   = regexp.MustCompile(`^(?:INTEGER|REAL|DOUBLE\s*PRECISION|DOUBLE\s*COMPLEX|COMPLEX|LOGICAL|CHARACTER|TYPE|CLASS|PROCEDURE)\s*(?:\*\s*\d+|\*\s*\(\s*\*\s*\)|\((?:[^()]|\([^()]*\))*\))?`)
)

// nonExecutable statements never contribute function references.
var nonExecutable = []string{
	"IMPLICIT", "PARAMETER", "DATA", "COMMON", "EQUIVALENCE", "SAVE",
	"EXTERNAL", "INTRINSIC", "PUBLIC", "PRIVATE", "NAMELIST", "FORMAT",
	"ENTRY", "CONTAINS", "SEQUENCE", "IMPORT", "PROTECTED", "VALUE",
	"OPTIONAL", "INTENT", "BIND", "VOLATILE", "ASYNCHRONOUS", "GENERIC",
	"FINAL", "ENUMERATOR", "ENUM", "END", "CONTIGUOUS",
}

// statementKeywords may be followed by '(' without being a reference.
var statementKeywords = map[string]bool{
	"IF": true, "ELSEIF": true, "WHILE": true, "CASE": true, "WHERE": true,
	"ELSEWHERE": true, "FORALL": true, "CONCURRENT": true, "WRITE": true,
	"READ": true, "PRINT": true, "OPEN": true, "CLOSE": true, "INQUIRE": true,
	"ALLOCATE": true, "DEALLOCATE": true, "NULLIFY": true, "BACKSPACE": true,
	"REWIND": true, "ENDFILE": true, "FLUSH": true, "WAIT": true, "STOP": true,
	"RETURN": true, "GOTO": true, "TO": true, "ASSOCIATE": true, "IS": true,
	"SELECT": true, "RANK": true, "DEFAULT": true, "CALL": true, "RESULT": true,
	"FORMAT": true, "EXIT": true, "CYCLE": true, "SYNC": true, "LOCK": true,
	"UNLOCK": true, "BLOCK": true, "CRITICAL": true, "CHANGE": true, "TEAM": true,
	"EVENT": true, "POST": true, "FAIL": true, "IMAGE": true, "ERROR": true,
	"TYPE": true, "CLASS": true,
}

type frame struct {
	path unit.Path
	// block frames (BLOCK DATA) only balance END statements.
	block    bool
	arrays   map[string]bool
	refs     []string
	calls    []string
	bindings []string
}

func (f *frame) kind() unit.Kind {
	if f.block {
		return ""
	}
	return f.path.Kind()
}

type extraction struct {
	rec        *Record
	stack      []*frame
	pending    []string
	interfaces []*frame
}

// extract reads one file. Units are named by their nesting, e.g.
// module:M/sub:S for a subroutine contained in module M.
func extract(path, src string, fixedForm bool) (*Record, error) {
	x := &extraction{rec: NewRecord(path)}
	for _, st := range splitStatements(src, fixedForm) {
		if err := x.statement(st); err != nil {
			return nil, err
		}
	}
	if len(x.stack) > 0 {
		top := x.stack[len(x.stack)-1]
		name := top.path.String()
		if top.block {
			name = "BLOCK DATA"
		}
		return nil, errors.New(errors.CodeParse, fmt.Sprintf("unterminated program unit %s", name))
	}
	x.bindInterfaces()
	return x.rec, nil
}

func (x *extraction) top() *frame {
	if len(x.stack) == 0 {
		return nil
	}
	return x.stack[len(x.stack)-1]
}

func (x *extraction) statement(st statement) error {
	if st.directive != "" {
		x.include(st.directive)
		return nil
	}

	if m := includePattern.FindStringSubmatch(strings.TrimSpace(st.raw)); m != nil {
		target := m[1]
		if target == "" {
			target = m[2]
		}
		x.include(target)
		return nil
	}

	code := stripLabelAndConstruct(st.code)
	if code == "" {
		return nil
	}

	if top := x.top(); top != nil && top.kind() == unit.KindType {
		// Type definitions only end; their bodies hold no references.
		if m := endPattern.FindStringSubmatch(code); m != nil && keywordKind(m[1]) == unit.KindType {
			x.pop()
		}
		return nil
	}

	if isEnd(code) {
		return x.end(code, st.line)
	}

	if top := x.top(); top != nil && top.kind() == unit.KindInterface {
		if m := procedurePattern.FindStringSubmatch(code); m != nil {
			top.bindings = append(top.bindings, splitNames(m[2])...)
			return nil
		}
	} else if m := procedurePattern.FindStringSubmatch(code); m != nil && m[1] != "" {
		// Separate module procedure body inside a submodule.
		if names := splitNames(m[2]); len(names) == 1 {
			x.push(unit.KindSub, names[0])
			return nil
		}
	}

	if m := interfacePattern.FindStringSubmatch(code); m != nil {
		name := strings.TrimSpace(m[1])
		if !identPattern.MatchString(name) || identPattern.FindString(name) != name {
			name = unit.AnonymousName
		}
		f := x.push(unit.KindInterface, name)
		x.interfaces = append(x.interfaces, f)
		return nil
	}
	if m := subroutinePattern.FindStringSubmatch(code); m != nil {
		x.push(unit.KindSub, m[1])
		return nil
	}
	if m := functionPattern.FindStringSubmatch(code); m != nil {
		x.push(unit.KindFunc, m[1])
		return nil
	}
	if m := modulePattern.FindStringSubmatch(code); m != nil {
		x.push(unit.KindModule, m[1])
		return nil
	}
	if m := submodulePattern.FindStringSubmatch(code); m != nil {
		x.push(unit.KindSubmodule, m[1])
		return nil
	}
	if m := programPattern.FindStringSubmatch(code); m != nil {
		x.push(unit.KindProgram, m[1])
		return nil
	}
	if m := typeDefPattern.FindStringSubmatch(code); m != nil {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if name != "IS" {
			x.push(unit.KindType, name)
			return nil
		}
	}
	if blockDataPattern.MatchString(code) {
		x.stack = append(x.stack, &frame{block: true})
		return nil
	}

	top := x.top()
	if top == nil || top.block {
		return nil
	}

	if m := usePattern.FindStringSubmatch(code); m != nil {
		x.rec.Uses[top.path] = append(x.rec.Uses[top.path], parseUse(m[1], m[2]))
		return nil
	}
	if declPattern.MatchString(code) {
		declareArrays(top, code)
		return nil
	}
	if m := dimensionPattern.FindStringSubmatch(code); m != nil {
		for _, entity := range splitTopLevel(m[1], ',') {
			if name := identPattern.FindString(entity); name != "" {
				top.arrays[name] = true
			}
		}
		return nil
	}
	for _, kw := range nonExecutable {
		if code == kw || strings.HasPrefix(code, kw+" ") || strings.HasPrefix(code, kw+"(") || strings.HasPrefix(code, kw+":") || strings.HasPrefix(code, kw+",") {
			return nil
		}
	}

	exec := stripLogicalIf(code)
	if m := callPattern.FindStringSubmatchIndex(exec); m != nil {
		top.calls = append(top.calls, exec[m[2]:m[3]])
		exec = exec[m[3]:]
	}
	top.refs = append(top.refs, references(exec)...)
	return nil
}

func (x *extraction) include(target string) {
	target = strings.TrimSpace(target)
	if target == "" {
		return
	}
	top := x.top()
	if top == nil {
		x.pending = append(x.pending, target)
		return
	}
	if top.block {
		return
	}
	x.rec.Includes[top.path] = append(x.rec.Includes[top.path], target)
}

func (x *extraction) push(kind unit.Kind, name string) *frame {
	var p unit.Path
	if top := x.top(); top != nil && !top.block {
		p = top.path.Child(unit.NewSegment(kind, name))
	} else {
		p = unit.New(unit.NewSegment(kind, name))
	}
	f := &frame{path: p, arrays: make(map[string]bool)}
	x.stack = append(x.stack, f)
	x.rec.AddUnit(p)
	if p.IsTopLevel() && len(x.pending) > 0 {
		x.rec.Includes[p] = append(x.rec.Includes[p], x.pending...)
		x.pending = nil
	}
	return f
}

func (x *extraction) end(code string, line int) error {
	top := x.top()
	if top == nil {
		// A main program without a PROGRAM statement ends with a bare END.
		return nil
	}
	if m := endPattern.FindStringSubmatch(code); m != nil {
		// END PROCEDURE closes a separate module procedure, a sub frame.
		if want := keywordKind(m[1]); want != top.kind() {
			return errors.AddContext(
				errors.New(errors.CodeParse, fmt.Sprintf("END %s does not close %s", m[1], describe(top))),
				errors.CtxLine, line)
		}
	}
	x.pop()
	return nil
}

func describe(f *frame) string {
	if f.block {
		return "BLOCK DATA"
	}
	return f.path.String()
}

func (x *extraction) pop() {
	f := x.stack[len(x.stack)-1]
	x.stack = x.stack[:len(x.stack)-1]
	if f.block {
		return
	}
	if len(f.calls) > 0 {
		x.rec.Calls[f.path] = append(x.rec.Calls[f.path], f.calls...)
	}
	var funcs []string
	for _, ref := range f.refs {
		if f.arrays[ref] || x.hostArray(ref) {
			continue
		}
		funcs = append(funcs, ref)
	}
	if len(funcs) > 0 {
		x.rec.Funcs[f.path] = append(x.rec.Funcs[f.path], funcs...)
	}
}

// hostArray reports whether an enclosing unit declares name as an array.
func (x *extraction) hostArray(name string) bool {
	for _, f := range x.stack {
		if f.arrays[name] {
			return true
		}
	}
	return false
}

// bindInterfaces adds interface:I/<kind>:N units for every procedure N
// listed in interface I that the file defines next to the interface.
func (x *extraction) bindInterfaces() {
	for _, iface := range x.interfaces {
		for _, name := range iface.bindings {
			for _, kind := range []unit.Kind{unit.KindSub, unit.KindFunc} {
				seg := unit.NewSegment(kind, name)
				sibling := iface.path.Sibling(seg)
				if x.rec.HasUnit(sibling) {
					x.rec.AddUnit(iface.path.Child(seg))
				}
			}
		}
	}
}

func isEnd(code string) bool {
	return code == "END" || endPattern.MatchString(code)
}

func keywordKind(kw string) unit.Kind {
	switch strings.Join(strings.Fields(kw), " ") {
	case "PROGRAM":
		return unit.KindProgram
	case "MODULE":
		return unit.KindModule
	case "SUBMODULE":
		return unit.KindSubmodule
	case "SUBROUTINE", "PROCEDURE":
		return unit.KindSub
	case "FUNCTION":
		return unit.KindFunc
	case "INTERFACE":
		return unit.KindInterface
	case "TYPE":
		return unit.KindType
	}
	return ""
}

func stripLabelAndConstruct(code string) string {
	code = strings.TrimSpace(labelPattern.ReplaceAllString(strings.TrimSpace(code), ""))
	if loc := constructPattern.FindStringIndex(code); loc != nil {
		idx := strings.IndexByte(code, ':')
		code = strings.TrimSpace(code[idx+1:])
	}
	return code
}

// stripLogicalIf returns the action statement of a logical IF, the
// statement itself otherwise. Block IFs yield only their condition.
func stripLogicalIf(code string) string {
	rest := strings.TrimSpace(strings.TrimPrefix(code, "IF"))
	if !strings.HasPrefix(code, "IF") || !strings.HasPrefix(rest, "(") {
		return code
	}
	depth := 0
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				cond := rest[:i+1]
				action := strings.TrimSpace(rest[i+1:])
				if action == "" || action == "THEN" || labelsOnly(action) {
					return "IF" + cond
				}
				// Keep the condition so references inside it are seen.
				return strings.TrimSpace(action) + " " + cond
			}
		}
	}
	return code
}

// labelsOnly matches the arithmetic IF tail "10, 20, 30".
func labelsOnly(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && c != ',' && c != ' ' {
			return false
		}
	}
	return true
}

// references returns identifiers directly followed by '('.
func references(code string) []string {
	var out []string
	for _, loc := range identPattern.FindAllStringIndex(code, -1) {
		start, end := loc[0], loc[1]
		if start > 0 {
			prev := code[start-1]
			if prev == '%' || (prev >= '0' && prev <= '9') {
				continue
			}
		}
		rest := strings.TrimLeft(code[end:], " ")
		if !strings.HasPrefix(rest, "(") {
			continue
		}
		name := code[start:end]
		if statementKeywords[name] {
			continue
		}
		out = append(out, name)
	}
	return out
}

func parseUse(module, rest string) Use {
	u := Use{Module: module}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return u
	}
	if m := onlyPattern.FindStringSubmatch(rest); m != nil {
		for _, item := range splitTopLevel(m[1], ',') {
			local, remote, renamed := splitRename(item)
			if local == "" {
				continue
			}
			u.Only = append(u.Only, local)
			if renamed {
				if u.Renames == nil {
					u.Renames = make(map[string]string)
				}
				u.Renames[local] = remote
			}
		}
		return u
	}
	for _, item := range splitTopLevel(rest, ',') {
		local, remote, renamed := splitRename(item)
		if local == "" || !renamed {
			continue
		}
		if u.Renames == nil {
			u.Renames = make(map[string]string)
		}
		u.Renames[local] = remote
	}
	return u
}

// splitRename reads "local => remote" or "name". Operator and assignment
// specifiers are ignored.
func splitRename(item string) (local, remote string, renamed bool) {
	item = strings.TrimSpace(item)
	if idx := strings.Index(item, "=>"); idx >= 0 {
		local = strings.TrimSpace(item[:idx])
		remote = strings.TrimSpace(item[idx+2:])
		if !isIdent(local) || !isIdent(remote) {
			return "", "", false
		}
		return local, remote, true
	}
	if !isIdent(item) {
		return "", "", false
	}
	return item, item, false
}

func isIdent(s string) bool {
	return s != "" && identPattern.FindString(s) == s && (s[0] < '0' || s[0] > '9')
}

func splitNames(list string) []string {
	var out []string
	for _, item := range splitTopLevel(list, ',') {
		item = strings.TrimSpace(item)
		if isIdent(item) {
			out = append(out, item)
		}
	}
	return out
}

// declareArrays records the array entities of a type declaration statement.
func declareArrays(f *frame, code string) {
	attrs, entities := "", ""
	if idx := strings.Index(code, "::"); idx >= 0 {
		attrs, entities = code[:idx], code[idx+2:]
	} else {
		loc := selectorPattern.FindStringIndex(code)
		if loc == nil {
			return
		}
		entities = code[loc[1]:]
		if strings.HasPrefix(strings.TrimSpace(entities), "FUNCTION") {
			return
		}
	}
	allArrays := false
	for _, attr := range splitTopLevel(attrs, ',') {
		attr = strings.TrimSpace(attr)
		if strings.HasPrefix(attr, "DIMENSION") || strings.HasPrefix(attr, "CODIMENSION") {
			allArrays = true
		}
	}
	for _, entity := range splitTopLevel(entities, ',') {
		entity = strings.TrimSpace(entity)
		name := identPattern.FindString(entity)
		if name == "" || !strings.HasPrefix(entity, name) {
			continue
		}
		tail := strings.TrimSpace(entity[len(name):])
		if allArrays || strings.HasPrefix(tail, "(") || strings.HasPrefix(tail, "[") {
			f.arrays[name] = true
		}
	}
}

// splitTopLevel splits s on sep outside parentheses and brackets.
func splitTopLevel(s string, sep byte) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if strings.TrimSpace(s[start:]) != "" || len(parts) > 0 {
		parts = append(parts, s[start:])
	}
	return parts
}
