package ops

import (
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/toygrad/internal/tensor"
)

// extremumForward writes the maximum (or minimum) of every slice along axis
// into out and returns, per output element, the flat input index holding
// it. Ties resolve to the first occurrence.
//
// Forward:
//
//	y[o, i] = max_k x[o, k, i]
//
// Backward (extremumBackward):
//
//	grad_x[o, k, i] = grad_y[o, i] if k is the recorded index, else 0
func extremumForward(x Operand, axis int, out *tensor.Buffer, isMax bool) []int {
	outer, n, inner := tensor.AxisExtent(x.Shape, axis)
	src, dst := x.Values.Data(), out.Data()
	index := make([]int, len(dst))
	slice := make([]float64, n)

	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*n*inner + i
			for k := range slice {
				slice[k] = src[base+k*inner]
			}

			var k int
			if isMax {
				k = floats.MaxIdx(slice)
			} else {
				k = floats.MinIdx(slice)
			}

			j := o*inner + i
			dst[j] = slice[k]
			index[j] = base + k*inner
		}
	}
	return index
}

// extremumBackward scatters each upstream gradient into the recorded input
// position. Every other position receives exactly zero.
func extremumBackward(outGrad *tensor.Buffer, x Operand, index []int) *tensor.Buffer {
	grad := tensor.NewBuffer(x.Shape.NumElements())
	g, dst := outGrad.Data(), grad.Data()
	for j, idx := range index {
		dst[idx] += g[j]
	}
	return grad
}
