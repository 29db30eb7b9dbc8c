// Package autodiff implements the tensor graph and its reverse-mode
// automatic differentiation engine.
//
// Architecture:
//   - Arena: owns every tensor and node, addressed by stable TensorID/NodeID
//   - Tensor: a handle into the arena; operator methods append one Node each
//   - Node: one operator instance with its input IDs and cached output
//   - Graph: topologically ordered view of the nodes reachable from a root,
//     executing forward and backward passes level by level
//
// Usage:
//
//	arena := autodiff.New(autodiff.WithSeed(42))
//	x, _ := arena.RandN(tensor.Shape{2, 3, 4})
//	m, _ := x.Max(1)
//	y, _ := m.SumAll()
//	_ = y.Forward()
//	_ = y.Backward()
//	grad, _ := x.Grad() // ones at the argmax positions, zeros elsewhere
//
// Building nodes is single-threaded. Passes may evaluate independent nodes
// of the same level concurrently, depending on the arena's parallel.Config.
package autodiff

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/toygrad/internal/autodiff/ops"
	"github.com/born-ml/toygrad/internal/parallel"
	"github.com/born-ml/toygrad/internal/tensor"
)

// TensorID addresses a tensor inside its Arena.
type TensorID int

// NodeID addresses a node inside its Arena.
type NodeID int

// NoNode marks a tensor that no node produced (a leaf).
const NoNode NodeID = -1

// Arena owns the tensors and nodes created through it. Nodes refer to
// tensors by ID only, so tensors shared by several nodes need no
// reference counting.
//
// An Arena is not safe for concurrent construction.
type Arena struct {
	tensors []*tensorEntry
	nodes   []*Node
	rng     *rand.Rand
	cfg     parallel.Config
}

// Option configures an Arena.
type Option func(*Arena)

// WithSeed seeds the generator used by RandN so runs are reproducible.
func WithSeed(seed uint64) Option {
	return func(a *Arena) {
		a.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // ML uses math/rand intentionally for reproducibility
	}
}

// WithParallel sets the worker configuration for kernels and passes.
func WithParallel(cfg parallel.Config) Option {
	return func(a *Arena) {
		a.cfg = cfg
	}
}

// New creates an empty arena. Without WithSeed the generator is seeded
// randomly.
func New(opts ...Option) *Arena {
	a := &Arena{
		tensors: make([]*tensorEntry, 0, 64),
		nodes:   make([]*Node, 0, 64),
		cfg:     parallel.DefaultConfig(),
	}
	WithSeed(rand.Uint64())(a) //nolint:gosec // seed only
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns the arena's worker configuration.
func (a *Arena) Config() parallel.Config {
	return a.cfg
}

// NumTensors returns how many tensors the arena holds.
func (a *Arena) NumTensors() int {
	return len(a.tensors)
}

// NumNodes returns how many nodes the arena holds.
func (a *Arena) NumNodes() int {
	return len(a.nodes)
}

// tensorEntry is the arena-side state of a tensor.
type tensorEntry struct {
	id           TensorID
	shape        tensor.Shape
	values       *tensor.Buffer // nil until a forward pass computes it
	grad         *tensor.Buffer // nil unless a backward pass reached it
	node         NodeID
	init         ops.Op // initializer, leaves only
	requiresGrad bool   // leaves only; intermediates derive it from their inputs
	retainGrad   bool
	readOnly     bool
	version      uint64 // bumped whenever values change
	graph        *Graph // implicit graph, built on first use
}

func (e *tensorEntry) isLeaf() bool {
	return e.node == NoNode
}

// keepsGrad reports whether the gradient survives the end of a pass.
func (e *tensorEntry) keepsGrad() bool {
	return e.retainGrad || (e.isLeaf() && e.requiresGrad)
}

func (a *Arena) entry(id TensorID) *tensorEntry {
	return a.tensors[id]
}

func (a *Arena) handle(id TensorID) *Tensor {
	return &Tensor{arena: a, id: id}
}

func (a *Arena) newEntry(shape tensor.Shape) *tensorEntry {
	e := &tensorEntry{
		id:    TensorID(len(a.tensors)),
		shape: shape.Clone(),
		node:  NoNode,
	}
	a.tensors = append(a.tensors, e)
	return e
}

// newLeaf creates a leaf with allocated values.
func (a *Arena) newLeaf(shape tensor.Shape, init ops.Op) (*tensorEntry, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	e := a.newEntry(shape)
	e.init = init
	e.values = tensor.NewBuffer(shape.NumElements())
	e.requiresGrad = true
	e.version = 1
	return e, nil
}

// RandN creates a leaf filled with independent standard-normal samples.
func (a *Arena) RandN(shape tensor.Shape) (*Tensor, error) {
	e, err := a.newLeaf(shape, ops.Leaf(ops.KindRandN))
	if err != nil {
		return nil, err
	}
	ops.FillNormal(e.values, a.rng)
	return a.handle(e.id), nil
}

// FromSlice creates a leaf holding a copy of data in row-major order.
func (a *Arena) FromSlice(shape tensor.Shape, data []float64) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements() {
		return nil, &tensor.ShapeError{
			Op:      "from_slice",
			Shapes:  []tensor.Shape{shape.Clone()},
			Details: fmt.Sprintf("data has %d elements, shape needs %d", len(data), shape.NumElements()),
		}
	}
	e, err := a.newLeaf(shape, ops.Leaf(ops.KindConst))
	if err != nil {
		return nil, err
	}
	e.values.CopyFrom(data)
	return a.handle(e.id), nil
}

// Full creates a leaf with every element set to c.
func (a *Arena) Full(shape tensor.Shape, c float64) (*Tensor, error) {
	e, err := a.newLeaf(shape, ops.Leaf(ops.KindConst))
	if err != nil {
		return nil, err
	}
	e.values.Fill(c)
	return a.handle(e.id), nil
}

// Arange creates a leaf holding start, start+step, ... in row-major order.
func (a *Arena) Arange(shape tensor.Shape, start, step float64) (*Tensor, error) {
	e, err := a.newLeaf(shape, ops.Leaf(ops.KindConst))
	if err != nil {
		return nil, err
	}
	ops.FillArange(e.values, start, step)
	return a.handle(e.id), nil
}

// apply appends a node computing op over inputs and returns its output.
// The output shape is inferred here, so shape errors never reach a pass.
func (a *Arena) apply(op ops.Op, inputs ...*Tensor) (*Tensor, error) {
	shapes := make([]tensor.Shape, len(inputs))
	ids := make([]TensorID, len(inputs))
	for i, in := range inputs {
		if in == nil || in.arena != a {
			return nil, &tensor.StateError{Op: op.String(), Tensor: -1, Details: "operand belongs to a different arena"}
		}
		e := a.entry(in.id)
		shapes[i] = e.shape
		ids[i] = e.id
	}

	outShape, err := op.OutputShape(shapes...)
	if err != nil {
		return nil, err
	}

	out := a.newEntry(outShape)

	n := &Node{
		id:     NodeID(len(a.nodes)),
		op:     op,
		inputs: ids,
		output: out.id,
		seen:   make([]uint64, len(ids)),
	}
	a.nodes = append(a.nodes, n)
	out.node = n.id

	return a.handle(out.id), nil
}
