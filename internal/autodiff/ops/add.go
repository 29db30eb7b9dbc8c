package ops

import (
	"github.com/born-ml/toygrad/internal/parallel"
	"github.com/born-ml/toygrad/internal/tensor"
)

// addForward computes out = a + b with broadcasting.
func addForward(a, b Operand, out *tensor.Buffer, outShape tensor.Shape, cfg parallel.Config) {
	elementwise(a, b, out, outShape, cfg, func(x, y float64) float64 { return x + y })
}

// addBackward computes input gradients for addition.
//
// d(a+b)/da = d(a+b)/db = 1, so the output gradient flows unchanged to both
// inputs, summed along whatever axes each input was broadcast over.
func addBackward(outGrad *tensor.Buffer, outShape tensor.Shape, a, b Operand) []*tensor.Buffer {
	return []*tensor.Buffer{
		reduceBroadcast(outGrad, outShape, a.Shape),
		reduceBroadcast(outGrad, outShape, b.Shape),
	}
}
