package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/toygrad/autodiff"
)

// GraphHandler builds sum(max(x, axis)) as an explicit graph and prints its
// nodes, or the Graphviz rendering with --format=dot.
func GraphHandler(cmd *cobra.Command, _ []string) error {
	o, err := parseArenaFlags(cmd)
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}

	_, y, err := maxSumGraph(o)
	if err != nil {
		return err
	}
	g, err := autodiff.FromTensor(y)
	if err != nil {
		return err
	}

	switch format {
	case "dot":
		return g.WriteDOT(cmd.OutOrStdout())
	case "table":
		if eval, _ := cmd.Flags().GetBool("eval"); eval {
			if err := g.Forward(); err != nil {
				return err
			}
			if err := g.Backward(); err != nil {
				return err
			}
		}
		renderNodes(cmd, g)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want table or dot)", format)
	}
}

func renderNodes(cmd *cobra.Command, g *autodiff.Graph) {
	nodes := g.Nodes()
	data := make([][]string, len(nodes))
	for i, n := range nodes {
		inputs := make([]string, len(n.Inputs))
		for j, in := range n.Inputs {
			inputs[j] = "t" + strconv.Itoa(int(in))
		}
		data[i] = []string{
			"n" + strconv.Itoa(int(n.ID)),
			n.Op.String(),
			strings.Join(inputs, ","),
			"t" + strconv.Itoa(int(n.Output)),
			strconv.Itoa(n.Level),
			n.State.String(),
			n.GradState.String(),
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "graph %s: %d nodes, %d levels\n\n", g.ID(), g.Len(), len(g.Levels()))
	table := newTable(out, "NODE", "OP", "INPUTS", "OUTPUT", "LEVEL", "STATE", "GRAD")
	table.AppendBulk(data)
	table.Render()
}

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the topological order of sum(max(x, axis))",
		Args:  cobra.NoArgs,
		RunE:  GraphHandler,
	}
	addArenaFlags(cmd)
	cmd.Flags().String("format", "table", "Output format: table or dot")
	cmd.Flags().Bool("eval", false, "Run forward and backward before printing")
	return cmd
}
