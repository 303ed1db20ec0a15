package output

import (
	"fmt"
	"strings"
)

type DOTGenerator struct {
	plot *Plot
}

func NewDOTGenerator(p *Plot) *DOTGenerator {
	return &DOTGenerator{plot: p}
}

func (d *DOTGenerator) Generate() (string, error) {
	var buf strings.Builder
	ids := nodeIDs(d.plot)

	buf.WriteString("digraph D {\n")
	buf.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8];\n\n")

	for i, n := range d.plot.Nodes {
		// Execution nodes sit in a cluster named after their file, except
		// central nodes already labelled by the frame.
		label := n.File
		if n.Central && d.plot.FrameLabel != "" {
			label = ""
		}
		if label != "" {
			buf.WriteString(fmt.Sprintf("  subgraph cluster_%d {\n", i))
			buf.WriteString(fmt.Sprintf("    label=%q;\n", label))
			buf.WriteString("    " + d.nodeLine(ids[n.ID], n) + "\n")
			buf.WriteString("  }\n")
			continue
		}
		buf.WriteString("  " + d.nodeLine(ids[n.ID], n) + "\n")
	}
	if len(d.plot.Edges) > 0 {
		buf.WriteString("\n")
	}
	for _, e := range d.plot.Edges {
		buf.WriteString(fmt.Sprintf("  %s -> %s;\n", ids[e.From], ids[e.To]))
	}

	if d.plot.Frame && len(d.plot.Central) > 0 {
		central := make([]string, len(d.plot.Central))
		for i, id := range d.plot.Central {
			central[i] = ids[id]
		}
		buf.WriteString("\n  subgraph cluster_R {\n")
		buf.WriteString("    {rank=same " + strings.Join(central, " ") + "}\n")
		if d.plot.FrameLabel != "" {
			buf.WriteString(fmt.Sprintf("    label=%q;\n", d.plot.FrameLabel))
		}
		buf.WriteString("  }\n")
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

func (d *DOTGenerator) nodeLine(id string, n Node) string {
	color := "black"
	if d.plot.Kind == ExecutionGraph {
		color = "green"
		if n.Func {
			color = "blue"
		}
	}
	attrs := fmt.Sprintf("label=%q, color=%q", n.ID, color)
	if n.Central {
		attrs += ", penwidth=2.0"
	}
	return fmt.Sprintf("%s [%s];", id, attrs)
}

// nodeIDs maps node names to identifiers Graphviz accepts unquoted.
func nodeIDs(p *Plot) map[string]string {
	ids := make(map[string]string, len(p.Nodes))
	for i, n := range p.Nodes {
		ids[n.ID] = fmt.Sprintf("n%d", i)
	}
	return ids
}
