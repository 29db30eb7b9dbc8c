package ops

import (
	"fmt"

	"github.com/born-ml/toygrad/internal/parallel"
	"github.com/born-ml/toygrad/internal/tensor"
)

// broadcastStrides returns, for every dimension of out, the stride to step
// through in when that output coordinate advances. Dimensions that in lacks
// or holds at size 1 get stride 0, which repeats the same element.
func broadcastStrides(in, out tensor.Shape) []int {
	inStrides := in.ComputeStrides()
	strides := make([]int, len(out))
	offset := len(out) - len(in)
	for d := range out {
		srcDim := d - offset
		if srcDim < 0 || in[srcDim] == 1 {
			continue
		}
		strides[d] = inStrides[srcDim]
	}
	return strides
}

// broadcastIndex maps flat output index i to the flat index of the input
// element that broadcasts onto it.
func broadcastIndex(i int, outStrides, inStrides []int) int {
	idx := 0
	for d, s := range outStrides {
		coord := i / s
		i %= s
		idx += coord * inStrides[d]
	}
	return idx
}

// broadcastIndices precomputes broadcastIndex for every output element, or
// returns nil when in already has the output shape.
func broadcastIndices(in, out tensor.Shape) []int {
	if in.Equal(out) {
		return nil
	}
	outStrides := out.ComputeStrides()
	inStrides := broadcastStrides(in, out)
	idx := make([]int, out.NumElements())
	for i := range idx {
		idx[i] = broadcastIndex(i, outStrides, inStrides)
	}
	return idx
}

// elementwise evaluates out[i] = f(a[ia(i)], b[ib(i)]) over the broadcast
// output shape.
func elementwise(a, b Operand, out *tensor.Buffer, outShape tensor.Shape, cfg parallel.Config, f func(x, y float64) float64) {
	aIdx := broadcastIndices(a.Shape, outShape)
	bIdx := broadcastIndices(b.Shape, outShape)
	av, bv, ov := a.Values.Data(), b.Values.Data(), out.Data()

	parallel.For(len(ov), func(i int) {
		ai, bi := i, i
		if aIdx != nil {
			ai = aIdx[i]
		}
		if bIdx != nil {
			bi = bIdx[i]
		}
		ov[i] = f(av[ai], bv[bi])
	}, cfg)
}

// reduceBroadcast sums a gradient shaped like the broadcast output back down
// to target, along every axis that was broadcast in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.Buffer, gradShape, target tensor.Shape) *tensor.Buffer {
	if grad.Len() != gradShape.NumElements() {
		panic(fmt.Sprintf("reduceBroadcast: gradient has %d elements, shape %v needs %d",
			grad.Len(), gradShape, gradShape.NumElements()))
	}

	// Clone so callers never alias the upstream gradient.
	if gradShape.Equal(target) {
		return grad.Clone()
	}

	result := tensor.NewBuffer(target.NumElements())
	idx := broadcastIndices(target, gradShape)
	src, dst := grad.Data(), result.Data()
	for i, g := range src {
		dst[idx[i]] += g
	}
	return result
}

// unary evaluates out[i] = f(x[i]).
func unary(x Operand, out *tensor.Buffer, cfg parallel.Config, f func(float64) float64) {
	xv, ov := x.Values.Data(), out.Data()
	if len(xv) != len(ov) {
		panic(fmt.Sprintf("unary: input has %d elements, output %d", len(xv), len(ov)))
	}
	parallel.For(len(ov), func(i int) {
		ov[i] = f(xv[i])
	}, cfg)
}

// unaryBackward applies the chain rule for a unary function:
// grad_x[i] = grad_y[i] * f'(x[i]).
func unaryBackward(outGrad *tensor.Buffer, x Operand, derivative func(float64) float64) *tensor.Buffer {
	grad := tensor.NewBuffer(x.Values.Len())
	g, xv, dst := outGrad.Data(), x.Values.Data(), grad.Data()
	for i := range dst {
		dst[i] = g[i] * derivative(xv[i])
	}
	return grad
}
