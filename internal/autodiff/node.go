package autodiff

import (
	"github.com/born-ml/toygrad/internal/autodiff/ops"
)

// NodeState is the forward-pass state of a node.
type NodeState uint8

// Forward states.
const (
	Unevaluated NodeState = iota
	Evaluated
)

// String returns the state name.
func (s NodeState) String() string {
	if s == Evaluated {
		return "evaluated"
	}
	return "unevaluated"
}

// GradState is the backward-pass state of a node.
type GradState uint8

// Backward states.
const (
	Unvisited GradState = iota
	GradientAccumulated
)

// String returns the state name.
func (s GradState) String() string {
	if s == GradientAccumulated {
		return "gradient-accumulated"
	}
	return "unvisited"
}

// Node is one operator instance in the computation DAG. It owns its output
// tensor and refers to its inputs by ID.
type Node struct {
	id        NodeID
	op        ops.Op
	inputs    []TensorID
	output    TensorID
	aux       ops.Aux
	state     NodeState
	gradState GradState
	seen      []uint64 // input versions at the last evaluation
}

// upToDate reports whether the cached output still matches the inputs.
func (n *Node) upToDate(a *Arena) bool {
	if n.state != Evaluated || a.entry(n.output).values == nil {
		return false
	}
	for i, in := range n.inputs {
		if a.entry(in).version != n.seen[i] {
			return false
		}
	}
	return true
}

// operands returns read views of the node's inputs.
func (n *Node) operands(a *Arena) []ops.Operand {
	operands := make([]ops.Operand, len(n.inputs))
	for i, in := range n.inputs {
		e := a.entry(in)
		operands[i] = ops.Operand{Shape: e.shape, Values: e.values}
	}
	return operands
}

// NodeInfo is a read-only description of a node.
type NodeInfo struct {
	ID        NodeID
	Op        ops.Op
	Inputs    []TensorID
	Output    TensorID
	Level     int
	State     NodeState
	GradState GradState
}
