package ops

import (
	"github.com/born-ml/toygrad/internal/parallel"
	"github.com/born-ml/toygrad/internal/tensor"
)

// divForward computes out = a / b with broadcasting.
func divForward(a, b Operand, out *tensor.Buffer, outShape tensor.Shape, cfg parallel.Config) {
	elementwise(a, b, out, outShape, cfg, func(x, y float64) float64 { return x / y })
}

// divBackward computes input gradients for division.
//
// Backward pass:
//   - d(a/b)/da = 1/b, so grad_a = outputGrad / b
//   - d(a/b)/db = -a/b², so grad_b = -outputGrad * a / b²
func divBackward(outGrad *tensor.Buffer, outShape tensor.Shape, a, b Operand) []*tensor.Buffer {
	aIdx := broadcastIndices(a.Shape, outShape)
	bIdx := broadcastIndices(b.Shape, outShape)
	av, bv, g := a.Values.Data(), b.Values.Data(), outGrad.Data()

	gradA := tensor.NewBuffer(len(g))
	gradB := tensor.NewBuffer(len(g))
	ga, gb := gradA.Data(), gradB.Data()
	for i, gi := range g {
		ai, bi := i, i
		if aIdx != nil {
			ai = aIdx[i]
		}
		if bIdx != nil {
			bi = bIdx[i]
		}
		ga[i] = gi / bv[bi]
		gb[i] = -gi * av[ai] / (bv[bi] * bv[bi])
	}

	return []*tensor.Buffer{
		reduceBroadcast(gradA, outShape, a.Shape),
		reduceBroadcast(gradB, outShape, b.Shape),
	}
}
