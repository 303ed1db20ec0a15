package output

import (
	"bytes"

	"github.com/ddddddO/gtree"
)

// TreeGenerator prints the plot as indented trees, one per central node
// and direction. A node already on the current branch is printed once more
// with a marker and not expanded again.
type TreeGenerator struct {
	plot *Plot
}

func NewTreeGenerator(p *Plot) *TreeGenerator {
	return &TreeGenerator{plot: p}
}

func (g *TreeGenerator) Generate() (string, error) {
	var buf bytes.Buffer
	for _, id := range g.plot.Central {
		down := gtree.NewRoot(id)
		g.grow(down, id, g.plot.Successors, map[string]bool{id: true})
		if err := gtree.OutputProgrammably(&buf, down); err != nil {
			return "", err
		}
		if preds := g.plot.Predecessors(id); len(preds) > 0 {
			up := gtree.NewRoot(id + " (used by)")
			g.grow(up, id, g.plot.Predecessors, map[string]bool{id: true})
			if err := gtree.OutputProgrammably(&buf, up); err != nil {
				return "", err
			}
		}
	}
	return buf.String(), nil
}

func (g *TreeGenerator) grow(parent *gtree.Node, id string, next func(string) []string, branch map[string]bool) {
	for _, child := range next(id) {
		if branch[child] {
			parent.Add(child + " (cycle)")
			continue
		}
		node := parent.Add(child)
		branch[child] = true
		g.grow(node, child, next, branch)
		delete(branch, child)
	}
}
