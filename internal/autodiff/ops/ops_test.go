package ops

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/toygrad/internal/parallel"
	"github.com/born-ml/toygrad/internal/tensor"
)

func operand(shape tensor.Shape, data ...float64) Operand {
	return Operand{Shape: shape, Values: tensor.BufferFrom(data)}
}

func arange(shape tensor.Shape) Operand {
	buf := tensor.NewBuffer(shape.NumElements())
	FillArange(buf, 1, 1)
	return Operand{Shape: shape, Values: buf}
}

func forward(t *testing.T, op Op, inputs ...Operand) (*tensor.Buffer, tensor.Shape, Aux) {
	t.Helper()
	shapes := make([]tensor.Shape, len(inputs))
	for i, in := range inputs {
		shapes[i] = in.Shape
	}
	outShape, err := op.OutputShape(shapes...)
	require.NoError(t, err)
	out := tensor.NewBuffer(outShape.NumElements())
	aux := op.Forward(inputs, out, outShape, parallel.Sequential())
	return out, outShape, aux
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "add", Elementwise(KindAdd).String())
	assert.Equal(t, "max(axis=1)", Reduce(KindMax, 1).String())
	assert.Equal(t, "sum(all)", Reduce(KindSum, tensor.NoAxis).String())
	assert.Equal(t, "randn", Leaf(KindRandN).String())
	assert.True(t, Leaf(KindConst).IsLeaf())
	assert.False(t, Elementwise(KindMul).IsLeaf())
}

func TestOutputShape_Errors(t *testing.T) {
	_, err := Elementwise(KindAdd).OutputShape(tensor.Shape{2, 3}, tensor.Shape{4})
	assert.ErrorIs(t, err, tensor.ErrShape)

	_, err = Reduce(KindMax, tensor.NoAxis).OutputShape(tensor.Shape{2, 3})
	assert.ErrorIs(t, err, tensor.ErrShape, "max needs an explicit axis")

	_, err = Reduce(KindSum, 2).OutputShape(tensor.Shape{2, 3})
	assert.ErrorIs(t, err, tensor.ErrShape)

	_, err = Elementwise(KindAdd).OutputShape(tensor.Shape{2})
	assert.ErrorIs(t, err, tensor.ErrShape, "wrong arity")

	_, err = Leaf(KindRandN).OutputShape()
	assert.ErrorIs(t, err, tensor.ErrShape)
}

func TestAdd_Forward_Broadcast(t *testing.T) {
	// [2,3] + [3] -> [2,3]
	a := operand(tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	b := operand(tensor.Shape{3}, 10, 20, 30)

	out, shape, _ := forward(t, Elementwise(KindAdd), a, b)

	assert.Equal(t, tensor.Shape{2, 3}, shape)
	assert.Equal(t, []float64{11, 22, 33, 14, 25, 36}, out.Data())
}

func TestAdd_Forward_BothBroadcast(t *testing.T) {
	// [2,1] + [1,3] -> [2,3]
	a := operand(tensor.Shape{2, 1}, 1, 2)
	b := operand(tensor.Shape{1, 3}, 10, 20, 30)

	out, shape, _ := forward(t, Elementwise(KindAdd), a, b)

	assert.Equal(t, tensor.Shape{2, 3}, shape)
	assert.Equal(t, []float64{11, 21, 31, 12, 22, 32}, out.Data())
}

func TestAdd_Forward_Parallel(t *testing.T) {
	shape := tensor.Shape{64, 64}
	a, b := arange(shape), arange(shape)
	outShape, err := Elementwise(KindAdd).OutputShape(shape, shape)
	require.NoError(t, err)

	seq := tensor.NewBuffer(outShape.NumElements())
	par := tensor.NewBuffer(outShape.NumElements())
	Elementwise(KindAdd).Forward([]Operand{a, b}, seq, outShape, parallel.Sequential())
	Elementwise(KindAdd).Forward([]Operand{a, b}, par, outShape,
		parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 16})

	assert.True(t, seq.Equal(par))
}

func TestAdd_Backward_ReducesBroadcast(t *testing.T) {
	a := operand(tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	b := operand(tensor.Shape{3}, 10, 20, 30)
	_, shape, aux := forward(t, Elementwise(KindAdd), a, b)

	grads := Elementwise(KindAdd).Backward(tensor.Ones(shape.NumElements()), shape, []Operand{a, b}, aux)

	require.Len(t, grads, 2)
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1}, grads[0].Data())
	assert.Equal(t, []float64{2, 2, 2}, grads[1].Data(), "summed over the broadcast axis")
}

func TestSub_Backward(t *testing.T) {
	a := operand(tensor.Shape{2, 2}, 1, 2, 3, 4)
	b := operand(tensor.Shape{2, 1}, 1, 1)
	out, shape, aux := forward(t, Elementwise(KindSub), a, b)
	assert.Equal(t, []float64{0, 1, 2, 3}, out.Data())

	grads := Elementwise(KindSub).Backward(tensor.Ones(4), shape, []Operand{a, b}, aux)

	assert.Equal(t, []float64{1, 1, 1, 1}, grads[0].Data())
	assert.Equal(t, []float64{-2, -2}, grads[1].Data())
}

func TestMul_Backward(t *testing.T) {
	a := operand(tensor.Shape{2, 2}, 1, 2, 3, 4)
	b := operand(tensor.Shape{2}, 10, 100)
	out, shape, aux := forward(t, Elementwise(KindMul), a, b)
	assert.Equal(t, []float64{10, 200, 30, 400}, out.Data())

	grads := Elementwise(KindMul).Backward(tensor.Ones(4), shape, []Operand{a, b}, aux)

	assert.Equal(t, []float64{10, 100, 10, 100}, grads[0].Data())
	assert.Equal(t, []float64{4, 6}, grads[1].Data(), "a summed over rows")
}

func TestMax_ForwardAndRouting(t *testing.T) {
	// Shape [2,3]: max along axis 1.
	x := operand(tensor.Shape{2, 3}, 1, 5, 2, 7, 3, 7)
	op := Reduce(KindMax, 1)

	out, shape, aux := forward(t, op, x)

	assert.Equal(t, tensor.Shape{2}, shape)
	assert.Equal(t, []float64{5, 7}, out.Data())
	assert.Equal(t, []int{1, 3}, aux.Index, "ties resolve to the first occurrence")

	grads := op.Backward(tensor.BufferFrom([]float64{2, 3}), shape, []Operand{x}, aux)
	assert.Equal(t, []float64{0, 2, 0, 3, 0, 0}, grads[0].Data())
}

func TestMax_MiddleAxis(t *testing.T) {
	x := arange(tensor.Shape{2, 3, 4}) // 1..24, increasing along every axis
	op := Reduce(KindMax, 1)

	out, shape, aux := forward(t, op, x)

	assert.Equal(t, tensor.Shape{2, 4}, shape)
	assert.Equal(t, []float64{9, 10, 11, 12, 21, 22, 23, 24}, out.Data())

	grads := op.Backward(tensor.Ones(8), shape, []Operand{x}, aux)
	g := grads[0].Data()
	assert.Equal(t, 8, floats.Count(func(v float64) bool { return v != 0 }, g))
	for j, idx := range aux.Index {
		assert.Equal(t, 1.0, g[idx], "output %d", j)
	}
}

func TestMin_Routing(t *testing.T) {
	x := operand(tensor.Shape{2, 2}, 3, 1, 0, 4)
	op := Reduce(KindMin, 0)

	out, shape, aux := forward(t, op, x)
	assert.Equal(t, []float64{0, 1}, out.Data())

	grads := op.Backward(tensor.Ones(2), shape, []Operand{x}, aux)
	assert.Equal(t, []float64{0, 1, 1, 0}, grads[0].Data())
}

func TestSum_AxisAndAll(t *testing.T) {
	x := arange(tensor.Shape{2, 3})

	out, shape, _ := forward(t, Reduce(KindSum, 0), x)
	assert.Equal(t, tensor.Shape{3}, shape)
	assert.Equal(t, []float64{5, 7, 9}, out.Data())

	out, shape, _ = forward(t, Reduce(KindSum, 1), x)
	assert.Equal(t, tensor.Shape{2}, shape)
	assert.Equal(t, []float64{6, 15}, out.Data())

	out, shape, _ = forward(t, Reduce(KindSum, tensor.NoAxis), x)
	assert.Equal(t, tensor.Shape{1}, shape)
	assert.Equal(t, []float64{21}, out.Data())
}

func TestSum_Backward_Replicates(t *testing.T) {
	x := arange(tensor.Shape{2, 3})

	grads := Reduce(KindSum, 1).Backward(tensor.BufferFrom([]float64{4, 7}), tensor.Shape{2}, []Operand{x}, Aux{})
	assert.Equal(t, []float64{4, 4, 4, 7, 7, 7}, grads[0].Data())

	grads = Reduce(KindSum, 0).Backward(tensor.BufferFrom([]float64{1, 2, 3}), tensor.Shape{3}, []Operand{x}, Aux{})
	assert.Equal(t, []float64{1, 2, 3, 1, 2, 3}, grads[0].Data())

	grads = Reduce(KindSum, tensor.NoAxis).Backward(tensor.BufferFrom([]float64{5}), tensor.Shape{1}, []Operand{x}, Aux{})
	assert.Equal(t, []float64{5, 5, 5, 5, 5, 5}, grads[0].Data())
}

func TestLeaf_NoBackward(t *testing.T) {
	assert.Nil(t, Leaf(KindRandN).Backward(tensor.Ones(1), tensor.Shape{1}, nil, Aux{}))
}

func TestReduceBroadcast(t *testing.T) {
	grad := tensor.BufferFrom([]float64{1, 2, 3, 4, 5, 6})

	// [2,3] -> [2,1]
	got := reduceBroadcast(grad, tensor.Shape{2, 3}, tensor.Shape{2, 1})
	assert.Equal(t, []float64{6, 15}, got.Data())

	// [2,3] -> [1]
	got = reduceBroadcast(grad, tensor.Shape{2, 3}, tensor.Shape{1})
	assert.Equal(t, []float64{21}, got.Data())

	// Same shape returns a copy.
	got = reduceBroadcast(grad, tensor.Shape{2, 3}, tensor.Shape{2, 3})
	got.Data()[0] = 100
	assert.Equal(t, 1.0, grad.Data()[0])
}

func TestFillNormal(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	buf := tensor.NewBuffer(10000)
	FillNormal(buf, rng)

	mean := buf.Sum() / float64(buf.Len())
	assert.InDelta(t, 0, mean, 0.05)

	var sq float64
	for _, v := range buf.Data() {
		sq += (v - mean) * (v - mean)
	}
	assert.InDelta(t, 1, sq/float64(buf.Len()), 0.05)
}

func TestDiv_ForwardBackward(t *testing.T) {
	a := operand(tensor.Shape{2, 2}, 1, 2, 3, 4)
	b := operand(tensor.Shape{2}, 2, 4)
	out, shape, aux := forward(t, Elementwise(KindDiv), a, b)
	assert.Equal(t, []float64{0.5, 0.5, 1.5, 1}, out.Data())

	grads := Elementwise(KindDiv).Backward(tensor.Ones(4), shape, []Operand{a, b}, aux)

	assert.Equal(t, []float64{0.5, 0.25, 0.5, 0.25}, grads[0].Data())
	// -(1+3)/2² and -(2+4)/4²
	assert.Equal(t, []float64{-1, -0.375}, grads[1].Data())
}

func TestUnary_Forward(t *testing.T) {
	x := operand(tensor.Shape{4}, -2, -0.5, 0, 3)

	tests := []struct {
		kind Kind
		want []float64
	}{
		{KindNeg, []float64{2, 0.5, 0, -3}},
		{KindReLU, []float64{0, 0, 0, 3}},
	}
	for _, tt := range tests {
		out, shape, _ := forward(t, Elementwise(tt.kind), x)
		assert.Equal(t, tensor.Shape{4}, shape, tt.kind.String())
		assert.Equal(t, tt.want, out.Data(), tt.kind.String())
	}

	out, _, _ := forward(t, Elementwise(KindSigmoid), x)
	assert.InDelta(t, 0.5, out.Data()[2], 1e-15)

	out, _, _ = forward(t, Elementwise(KindExp), operand(tensor.Shape{2}, 0, 1))
	assert.InDeltaSlice(t, []float64{1, math.E}, out.Data(), 1e-15)

	out, _, _ = forward(t, Elementwise(KindLog), operand(tensor.Shape{2}, 1, math.E))
	assert.InDeltaSlice(t, []float64{0, 1}, out.Data(), 1e-15)
}

func TestUnary_Backward(t *testing.T) {
	x := operand(tensor.Shape{3}, -1, 0.5, 2)
	g := tensor.BufferFrom([]float64{2, 2, 2})
	shape := tensor.Shape{3}

	grads := Elementwise(KindNeg).Backward(g, shape, []Operand{x}, Aux{})
	assert.Equal(t, []float64{-2, -2, -2}, grads[0].Data())

	grads = Elementwise(KindReLU).Backward(g, shape, []Operand{x}, Aux{})
	assert.Equal(t, []float64{0, 2, 2}, grads[0].Data())

	grads = Elementwise(KindLog).Backward(g, shape, []Operand{x}, Aux{})
	assert.Equal(t, []float64{-2, 4, 1}, grads[0].Data())

	grads = Elementwise(KindExp).Backward(g, shape, []Operand{x}, Aux{})
	assert.InDeltaSlice(t, []float64{2 * math.Exp(-1), 2 * math.Exp(0.5), 2 * math.Exp(2)}, grads[0].Data(), 1e-12)

	grads = Elementwise(KindSigmoid).Backward(tensor.Ones(1), tensor.Shape{1}, []Operand{operand(tensor.Shape{1}, 0)}, Aux{})
	assert.InDelta(t, 0.25, grads[0].Data()[0], 1e-15)
}

func TestUnary_OutputShape(t *testing.T) {
	in := tensor.Shape{2, 3}
	out, err := Elementwise(KindExp).OutputShape(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	out[0] = 9
	assert.Equal(t, 2, in[0], "output shape must not alias the input")

	_, err = Elementwise(KindNeg).OutputShape(in, in)
	assert.ErrorIs(t, err, tensor.ErrShape)

	assert.Equal(t, "sigmoid", Elementwise(KindSigmoid).String())
}
