package ops

import (
	"github.com/born-ml/toygrad/internal/parallel"
	"github.com/born-ml/toygrad/internal/tensor"
)

// mulForward computes out = a * b with broadcasting.
func mulForward(a, b Operand, out *tensor.Buffer, outShape tensor.Shape, cfg parallel.Config) {
	elementwise(a, b, out, outShape, cfg, func(x, y float64) float64 { return x * y })
}

// mulBackward computes input gradients for multiplication:
// grad_a = outputGrad * b, grad_b = outputGrad * a.
// Both products live in the output shape and are then reduced.
func mulBackward(outGrad *tensor.Buffer, outShape tensor.Shape, a, b Operand) []*tensor.Buffer {
	return []*tensor.Buffer{
		reduceBroadcast(scaleByOperand(outGrad, outShape, b), outShape, a.Shape),
		reduceBroadcast(scaleByOperand(outGrad, outShape, a), outShape, b.Shape),
	}
}

// scaleByOperand returns grad[i] * x[ix(i)] over the output shape.
func scaleByOperand(grad *tensor.Buffer, outShape tensor.Shape, x Operand) *tensor.Buffer {
	result := tensor.NewBuffer(grad.Len())
	idx := broadcastIndices(x.Shape, outShape)
	g, xv, dst := grad.Data(), x.Values.Data(), result.Data()
	for i := range dst {
		xi := i
		if idx != nil {
			xi = idx[i]
		}
		dst[i] = g[i] * xv[xi]
	}
	return result
}
