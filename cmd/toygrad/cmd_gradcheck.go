package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/born-ml/toygrad/autodiff"
	"github.com/born-ml/toygrad/tensor"
)

// GradcheckHandler compares Backward against finite differences on
// sum(max(x, axis) * w - min(x, axis) + sum(x, axis)), which exercises every
// operator with broadcasting.
func GradcheckHandler(cmd *cobra.Command, _ []string) error {
	o, err := parseArenaFlags(cmd)
	if err != nil {
		return err
	}
	eps, err := cmd.Flags().GetFloat64("eps")
	if err != nil {
		return err
	}
	tol, err := cmd.Flags().GetFloat64("tol")
	if err != nil {
		return err
	}

	reduced, err := tensor.InferReduce(o.shape, o.axis)
	if err != nil {
		return err
	}

	x, err := o.arena.RandN(o.shape)
	if err != nil {
		return err
	}
	// w spans only the last reduced dimension and broadcasts over the rest.
	w, err := o.arena.RandN(tensor.Shape{reduced[len(reduced)-1]})
	if err != nil {
		return err
	}

	out, err := gradcheckGraph(x, w, o.axis)
	if err != nil {
		return err
	}

	results, err := autodiff.CheckGradients(out, []*autodiff.Tensor{x, w}, eps)
	if err != nil {
		return err
	}

	names := map[autodiff.TensorID]string{x.ID(): "x", w.ID(): "w"}
	shapes := map[autodiff.TensorID]tensor.Shape{x.ID(): x.Shape(), w.ID(): w.Shape()}

	var failed int
	data := make([][]string, len(results))
	for i, r := range results {
		status := "ok"
		if r.MaxAbsDiff > tol {
			status = "FAIL"
			failed++
		}
		data[i] = []string{
			names[r.Leaf],
			shapes[r.Leaf].String(),
			strconv.FormatFloat(r.MaxAbsDiff, 'e', 3, 64),
			status,
		}
	}

	table := newTable(cmd.OutOrStdout(), "LEAF", "SHAPE", "MAX ABS DIFF", "STATUS")
	table.AppendBulk(data)
	table.Render()

	if failed > 0 {
		return fmt.Errorf("%d of %d gradients exceed tolerance %g", failed, len(results), tol)
	}
	return nil
}

func gradcheckGraph(x, w *autodiff.Tensor, axis int) (*autodiff.Tensor, error) {
	m, err := x.Max(axis)
	if err != nil {
		return nil, err
	}
	mw, err := m.Mul(w)
	if err != nil {
		return nil, err
	}
	n, err := x.Min(axis)
	if err != nil {
		return nil, err
	}
	s, err := x.Sum(axis)
	if err != nil {
		return nil, err
	}
	d, err := mw.Sub(n)
	if err != nil {
		return nil, err
	}
	r, err := d.Add(s)
	if err != nil {
		return nil, err
	}
	return r.SumAll()
}

func newGradcheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gradcheck",
		Short: "Verify gradients against central finite differences",
		Args:  cobra.NoArgs,
		RunE:  GradcheckHandler,
	}
	addArenaFlags(cmd)
	cmd.Flags().Float64("eps", 1e-6, "Finite-difference step")
	cmd.Flags().Float64("tol", 1e-5, "Largest accepted absolute difference")
	return cmd
}
