package output

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

type MermaidGenerator struct {
	plot *Plot
}

func NewMermaidGenerator(p *Plot) *MermaidGenerator {
	return &MermaidGenerator{plot: p}
}

func (m *MermaidGenerator) Generate() (string, error) {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	names := make([]string, len(m.plot.Nodes))
	for i, n := range m.plot.Nodes {
		names[i] = n.ID
	}
	ids := makeMermaidIDs(names)

	// Group execution nodes by defining file; ungrouped nodes go first.
	byFile := make(map[string][]Node)
	for _, n := range m.plot.Nodes {
		byFile[n.File] = append(byFile[n.File], n)
	}
	for _, n := range byFile[""] {
		b.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", ids[n.ID], escapeMermaidLabel(n.ID)))
	}
	files := make([]string, 0, len(byFile))
	for f := range byFile {
		if f != "" {
			files = append(files, f)
		}
	}
	sort.Strings(files)
	for i, f := range files {
		b.WriteString(fmt.Sprintf("  subgraph file_%d[\"%s\"]\n", i, escapeMermaidLabel(f)))
		for _, n := range byFile[f] {
			b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", ids[n.ID], escapeMermaidLabel(n.ID)))
		}
		b.WriteString("  end\n")
	}

	for _, e := range m.plot.Edges {
		b.WriteString(fmt.Sprintf("  %s --> %s\n", ids[e.From], ids[e.To]))
	}

	b.WriteString("  classDef central stroke-width:3px;\n")
	b.WriteString("  classDef func fill:#dde8ff,stroke:#2b50aa;\n")
	var central, funcs []string
	for _, n := range m.plot.Nodes {
		if n.Central {
			central = append(central, ids[n.ID])
		}
		if n.Func {
			funcs = append(funcs, ids[n.ID])
		}
	}
	if len(central) > 0 {
		b.WriteString(fmt.Sprintf("  class %s central\n", strings.Join(central, ",")))
	}
	if len(funcs) > 0 {
		b.WriteString(fmt.Sprintf("  class %s func\n", strings.Join(funcs, ",")))
	}
	return b.String(), nil
}

func sanitizeMermaidID(name string) string {
	if name == "" {
		return "m"
	}
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	out := b.String()
	if unicode.IsDigit(rune(out[0])) {
		return "m_" + out
	}
	return out
}

func makeMermaidIDs(names []string) map[string]string {
	ids := make(map[string]string, len(names))
	used := make(map[string]int, len(names))
	for _, name := range names {
		base := sanitizeMermaidID(name)
		idx := used[base]
		used[base] = idx + 1
		if idx == 0 {
			ids[name] = base
			continue
		}
		ids[name] = fmt.Sprintf("%s_%d", base, idx+1)
	}
	return ids
}

func escapeMermaidLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
