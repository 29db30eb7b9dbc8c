// Package ops implements the operators of the computation graph.
//
// An operator is a closed tagged variant, Op{Kind, Axis}. Every kind has a
// forward kernel and, except for the leaf initializers, a backward rule:
//   - Add: element-wise a + b with broadcasting
//   - Sub: element-wise a - b with broadcasting
//   - Mul: element-wise a * b with broadcasting
//   - Max, Min: extremum along one axis, routing gradient to the arg-extremum
//   - Div: element-wise a / b with broadcasting
//   - Neg, Exp, Log, ReLU, Sigmoid: unary element-wise functions
//   - Sum: sum along one axis or over all axes
//   - RandN, Const: leaf initializers (no backward rule)
//
// Kernels work on flat row-major float64 buffers. They panic on internal
// invariant violations (mismatched buffer lengths); shape checking happens
// earlier, in OutputShape, when the node is built.
package ops

import (
	"fmt"

	"github.com/born-ml/toygrad/internal/parallel"
	"github.com/born-ml/toygrad/internal/tensor"
)

// Kind tags an operator.
type Kind uint8

// Operator kinds.
const (
	KindRandN Kind = iota
	KindConst
	KindAdd
	KindSub
	KindMul
	KindMax
	KindMin
	KindSum
	KindDiv
	KindNeg
	KindExp
	KindLog
	KindReLU
	KindSigmoid
)

// String returns the lower-case operator name.
func (k Kind) String() string {
	switch k {
	case KindRandN:
		return "randn"
	case KindConst:
		return "const"
	case KindAdd:
		return "add"
	case KindSub:
		return "sub"
	case KindMul:
		return "mul"
	case KindMax:
		return "max"
	case KindMin:
		return "min"
	case KindSum:
		return "sum"
	case KindDiv:
		return "div"
	case KindNeg:
		return "neg"
	case KindExp:
		return "exp"
	case KindLog:
		return "log"
	case KindReLU:
		return "relu"
	case KindSigmoid:
		return "sigmoid"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Op is one operator instance. Axis is meaningful for reductions only;
// tensor.NoAxis selects every axis.
type Op struct {
	Kind Kind
	Axis int
}

// Elementwise returns a binary broadcasting operator or a unary function.
func Elementwise(kind Kind) Op {
	return Op{Kind: kind, Axis: tensor.NoAxis}
}

// Reduce returns a reduction operator along axis.
func Reduce(kind Kind, axis int) Op {
	return Op{Kind: kind, Axis: axis}
}

// Leaf returns a leaf initializer.
func Leaf(kind Kind) Op {
	return Op{Kind: kind, Axis: tensor.NoAxis}
}

// String describes the operator, e.g. "max(axis=1)" or "sum(all)".
func (op Op) String() string {
	switch op.Kind {
	case KindMax, KindMin, KindSum:
		if op.Axis == tensor.NoAxis {
			return op.Kind.String() + "(all)"
		}
		return fmt.Sprintf("%s(axis=%d)", op.Kind, op.Axis)
	default:
		return op.Kind.String()
	}
}

// IsLeaf reports whether the operator is an initializer.
func (op Op) IsLeaf() bool {
	return op.Kind == KindRandN || op.Kind == KindConst
}

// NumInputs returns the arity of the operator.
func (op Op) NumInputs() int {
	switch op.Kind {
	case KindAdd, KindSub, KindMul, KindDiv:
		return 2
	case KindMax, KindMin, KindSum, KindNeg, KindExp, KindLog, KindReLU, KindSigmoid:
		return 1
	default:
		return 0
	}
}

// Operand is a read view of one input: its shape and current values.
type Operand struct {
	Shape  tensor.Shape
	Values *tensor.Buffer
}

// Aux holds per-evaluation state the backward rule needs.
type Aux struct {
	// Index maps each output element of Max/Min to the flat input index
	// that produced it.
	Index []int
}

// OutputShape infers the output shape from the input shapes. It is called
// once, when the node is built, so shape errors never reach execution.
func (op Op) OutputShape(inputs ...tensor.Shape) (tensor.Shape, error) {
	if op.IsLeaf() {
		return nil, &tensor.ShapeError{Op: op.String(), Details: "leaf initializers take their shape explicitly"}
	}
	if len(inputs) != op.NumInputs() {
		return nil, &tensor.ShapeError{
			Op:      op.String(),
			Shapes:  inputs,
			Details: fmt.Sprintf("expected %d inputs, got %d", op.NumInputs(), len(inputs)),
		}
	}

	switch op.Kind {
	case KindAdd, KindSub, KindMul, KindDiv:
		out, err := tensor.InferBroadcast(inputs[0], inputs[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return out, nil
	case KindMax, KindMin:
		if err := tensor.ValidateAxis(inputs[0], op.Axis, false); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return tensor.InferReduce(inputs[0], op.Axis)
	case KindNeg, KindExp, KindLog, KindReLU, KindSigmoid:
		return inputs[0].Clone(), nil
	case KindSum:
		out, err := tensor.InferReduce(inputs[0], op.Axis)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return out, nil
	default:
		return nil, &tensor.ShapeError{Op: op.String(), Details: "unknown operator"}
	}
}

// Forward computes the output values into out, whose length must match
// outShape. It returns the auxiliary state for Backward.
func (op Op) Forward(inputs []Operand, out *tensor.Buffer, outShape tensor.Shape, cfg parallel.Config) Aux {
	if out.Len() != outShape.NumElements() {
		panic(fmt.Sprintf("%s: output buffer has %d elements, shape %v needs %d",
			op, out.Len(), outShape, outShape.NumElements()))
	}

	switch op.Kind {
	case KindAdd:
		addForward(inputs[0], inputs[1], out, outShape, cfg)
	case KindSub:
		subForward(inputs[0], inputs[1], out, outShape, cfg)
	case KindMul:
		mulForward(inputs[0], inputs[1], out, outShape, cfg)
	case KindDiv:
		divForward(inputs[0], inputs[1], out, outShape, cfg)
	case KindNeg:
		unary(inputs[0], out, cfg, negForward)
	case KindExp:
		unary(inputs[0], out, cfg, expForward)
	case KindLog:
		unary(inputs[0], out, cfg, logForward)
	case KindReLU:
		unary(inputs[0], out, cfg, reluForward)
	case KindSigmoid:
		unary(inputs[0], out, cfg, sigmoidForward)
	case KindMax:
		return Aux{Index: extremumForward(inputs[0], op.Axis, out, true)}
	case KindMin:
		return Aux{Index: extremumForward(inputs[0], op.Axis, out, false)}
	case KindSum:
		sumForward(inputs[0], op.Axis, out)
	case KindRandN, KindConst:
		// Leaves are filled when they are created.
	default:
		panic(fmt.Sprintf("forward: unknown operator %s", op))
	}
	return Aux{}
}

// Backward returns one gradient buffer per input, each shaped like that
// input, given the gradient of the output.
func (op Op) Backward(outGrad *tensor.Buffer, outShape tensor.Shape, inputs []Operand, aux Aux) []*tensor.Buffer {
	switch op.Kind {
	case KindAdd:
		return addBackward(outGrad, outShape, inputs[0], inputs[1])
	case KindSub:
		return subBackward(outGrad, outShape, inputs[0], inputs[1])
	case KindMul:
		return mulBackward(outGrad, outShape, inputs[0], inputs[1])
	case KindDiv:
		return divBackward(outGrad, outShape, inputs[0], inputs[1])
	case KindNeg:
		return []*tensor.Buffer{unaryBackward(outGrad, inputs[0], negDerivative)}
	case KindExp:
		return []*tensor.Buffer{unaryBackward(outGrad, inputs[0], expDerivative)}
	case KindLog:
		return []*tensor.Buffer{unaryBackward(outGrad, inputs[0], logDerivative)}
	case KindReLU:
		return []*tensor.Buffer{unaryBackward(outGrad, inputs[0], reluDerivative)}
	case KindSigmoid:
		return []*tensor.Buffer{unaryBackward(outGrad, inputs[0], sigmoidDerivative)}
	case KindMax, KindMin:
		return []*tensor.Buffer{extremumBackward(outGrad, inputs[0], aux.Index)}
	case KindSum:
		return []*tensor.Buffer{sumBackward(outGrad, inputs[0], op.Axis)}
	case KindRandN, KindConst:
		return nil
	default:
		panic(fmt.Sprintf("backward: unknown operator %s", op))
	}
}
