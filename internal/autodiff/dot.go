package autodiff

import (
	"bufio"
	"fmt"
	"io"
)

// WriteDOT renders the graph in Graphviz DOT format: tensors are boxes
// labelled with their shape, nodes are ellipses labelled with their
// operator, and edges follow the data flow.
func (g *Graph) WriteDOT(w io.Writer) error {
	a := g.arena
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "digraph %q {\n", "graph-"+g.id.String())
	fmt.Fprintln(bw, "  rankdir=LR;")

	for _, id := range g.tensors {
		e := a.entry(id)
		label := fmt.Sprintf("t%d %v", id, e.shape)
		if e.isLeaf() {
			label = fmt.Sprintf("t%d %s %v", id, e.init, e.shape)
		}
		style := ""
		if id == g.root {
			style = ", style=bold"
		}
		fmt.Fprintf(bw, "  t%d [shape=box, label=%q%s];\n", id, label, style)
	}

	for _, id := range g.order {
		n := a.nodes[id]
		fmt.Fprintf(bw, "  n%d [shape=ellipse, label=%q];\n", id, n.op.String())
		for _, in := range n.inputs {
			fmt.Fprintf(bw, "  t%d -> n%d;\n", in, id)
		}
		fmt.Fprintf(bw, "  n%d -> t%d;\n", id, n.output)
	}

	fmt.Fprintln(bw, "}")
	return bw.Flush()
}
