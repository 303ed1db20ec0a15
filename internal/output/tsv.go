package output

import (
	"fmt"
	"strings"
)

type TSVGenerator struct {
	plot *Plot
}

func NewTSVGenerator(p *Plot) *TSVGenerator {
	return &TSVGenerator{plot: p}
}

// Generate writes one line per plotted edge with the defining file of
// each end, empty for compilation graphs.
func (t *TSVGenerator) Generate() (string, error) {
	var buf strings.Builder

	buf.WriteString("From\tTo\tFromFile\tToFile\n")
	for _, e := range t.plot.Edges {
		from, _ := t.plot.NodeByID(e.From)
		to, _ := t.plot.NodeByID(e.To)
		buf.WriteString(fmt.Sprintf("%s\t%s\t%s\t%s\n", e.From, e.To, from.File, to.File))
	}

	return buf.String(), nil
}
