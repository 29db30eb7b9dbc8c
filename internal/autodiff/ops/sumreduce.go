package ops

import "github.com/born-ml/toygrad/internal/tensor"

// sumForward reduces x along axis (or over everything for NoAxis).
//
// Forward:
//
//	y[o, i] = sum_k x[o, k, i]
//
// Backward (sumBackward):
//
//	grad_x[o, k, i] = grad_y[o, i]
func sumForward(x Operand, axis int, out *tensor.Buffer) {
	if axis == tensor.NoAxis {
		out.Data()[0] = x.Values.Sum()
		return
	}

	outer, n, inner := tensor.AxisExtent(x.Shape, axis)
	src, dst := x.Values.Data(), out.Data()
	out.Zero()
	for o := 0; o < outer; o++ {
		for k := 0; k < n; k++ {
			row := src[(o*n+k)*inner : (o*n+k+1)*inner]
			acc := dst[o*inner : (o+1)*inner]
			for i, v := range row {
				acc[i] += v
			}
		}
	}
}

// sumBackward replicates the upstream gradient unchanged across every
// position of the reduced axis.
func sumBackward(outGrad *tensor.Buffer, x Operand, axis int) *tensor.Buffer {
	grad := tensor.NewBuffer(x.Shape.NumElements())
	outer, n, inner := tensor.AxisExtent(x.Shape, axis)
	g, dst := outGrad.Data(), grad.Data()
	for o := 0; o < outer; o++ {
		for k := 0; k < n; k++ {
			copy(dst[(o*n+k)*inner:(o*n+k+1)*inner], g[o*inner:(o+1)*inner])
		}
	}
	return grad
}
