package ops

import (
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/toygrad/internal/parallel"
	"github.com/born-ml/toygrad/internal/tensor"
)

// subForward computes out = a - b with broadcasting.
func subForward(a, b Operand, out *tensor.Buffer, outShape tensor.Shape, cfg parallel.Config) {
	elementwise(a, b, out, outShape, cfg, func(x, y float64) float64 { return x - y })
}

// subBackward computes input gradients for subtraction:
// grad_a = outputGrad, grad_b = -outputGrad, each reduced to its input shape.
func subBackward(outGrad *tensor.Buffer, outShape tensor.Shape, a, b Operand) []*tensor.Buffer {
	gradB := reduceBroadcast(outGrad, outShape, b.Shape)
	floats.Scale(-1, gradB.Data())
	return []*tensor.Buffer{
		reduceBroadcast(outGrad, outShape, a.Shape),
		gradB,
	}
}
