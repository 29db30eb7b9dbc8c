package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/born-ml/toygrad/tensor"
)

// DemoHandler runs y = sum(max(x, axis)) forward and backward and prints
// every element of x next to its gradient.
func DemoHandler(cmd *cobra.Command, _ []string) error {
	o, err := parseArenaFlags(cmd)
	if err != nil {
		return err
	}

	x, y, err := maxSumGraph(o)
	if err != nil {
		return err
	}
	if err := y.Forward(); err != nil {
		return err
	}
	if err := y.Backward(); err != nil {
		return err
	}

	values, err := x.Values()
	if err != nil {
		return err
	}
	g, err := x.Grad()
	if err != nil {
		return err
	}
	grads, err := g.Values()
	if err != nil {
		return err
	}
	total, err := y.At(0)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "x: %s\n", x)
	fmt.Fprintf(out, "y: %s = %.6f\n\n", y, total)
	renderElements(out, x.Shape(), values, grads)

	var nonZero int
	for _, v := range grads {
		if v != 0 {
			nonZero++
		}
	}
	fmt.Fprintf(out, "\n%d of %d gradient entries are non-zero\n", nonZero, len(grads))
	return nil
}

func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Differentiate sum(max(x, axis)) for a random x",
		Args:  cobra.NoArgs,
		RunE:  DemoHandler,
	}
	addArenaFlags(cmd)
	return cmd
}

// renderElements prints one row per element: its coordinates, value and
// gradient.
func renderElements(w io.Writer, shape tensor.Shape, values, grads []float64) {
	data := make([][]string, len(values))
	for i := range values {
		data[i] = []string{
			fmt.Sprint(unravel(shape, i)),
			strconv.FormatFloat(values[i], 'f', 6, 64),
			strconv.FormatFloat(grads[i], 'f', 6, 64),
		}
	}

	table := newTable(w, "INDEX", "VALUE", "GRAD")
	table.AppendBulk(data)
	table.Render()
}

// unravel converts a flat row-major index into coordinates.
func unravel(shape tensor.Shape, flat int) []int {
	coords := make([]int, len(shape))
	for d := len(shape) - 1; d >= 0; d-- {
		coords[d] = flat % shape[d]
		flat /= shape[d]
	}
	return coords
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}
