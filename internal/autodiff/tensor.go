package autodiff

import (
	"fmt"

	"github.com/born-ml/toygrad/internal/autodiff/ops"
	"github.com/born-ml/toygrad/internal/tensor"
)

// Tensor is a handle to a tensor stored in an Arena. Handles are cheap to
// copy; two handles with the same arena and ID denote the same tensor.
type Tensor struct {
	arena *Arena
	id    TensorID
}

func (t *Tensor) entry() *tensorEntry {
	return t.arena.entry(t.id)
}

// ID returns the tensor's stable identifier within its arena.
func (t *Tensor) ID() TensorID {
	return t.id
}

// Arena returns the arena owning the tensor.
func (t *Tensor) Arena() *Arena {
	return t.arena
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() tensor.Shape {
	return t.entry().shape.Clone()
}

// IsLeaf reports whether the tensor was created by an initializer.
func (t *Tensor) IsLeaf() bool {
	return t.entry().isLeaf()
}

// Op returns the operator that produces the tensor: the producing node's
// operator, or the initializer for leaves.
func (t *Tensor) Op() ops.Op {
	e := t.entry()
	if e.isLeaf() {
		return e.init
	}
	return t.arena.nodes[e.node].op
}

// RequiresGrad reports whether gradients flow into the tensor: it is a leaf
// that requires them or is computed from one.
func (t *Tensor) RequiresGrad() bool {
	e := t.entry()
	if e.isLeaf() {
		return e.requiresGrad
	}
	g, err := t.Graph()
	if err != nil {
		return false
	}
	return g.gradMask()[t.id]
}

// String describes the tensor without touching its values.
func (t *Tensor) String() string {
	e := t.entry()
	return fmt.Sprintf("tensor(id=%d, shape=%v, op=%s)", e.id, e.shape, t.Op())
}

// Add returns t + other with broadcasting.
func (t *Tensor) Add(other *Tensor) (*Tensor, error) {
	return t.arena.apply(ops.Elementwise(ops.KindAdd), t, other)
}

// Sub returns t - other with broadcasting.
func (t *Tensor) Sub(other *Tensor) (*Tensor, error) {
	return t.arena.apply(ops.Elementwise(ops.KindSub), t, other)
}

// Mul returns t * other (element-wise) with broadcasting.
func (t *Tensor) Mul(other *Tensor) (*Tensor, error) {
	return t.arena.apply(ops.Elementwise(ops.KindMul), t, other)
}

// Div returns t / other with broadcasting.
func (t *Tensor) Div(other *Tensor) (*Tensor, error) {
	return t.arena.apply(ops.Elementwise(ops.KindDiv), t, other)
}

// Neg returns -t.
func (t *Tensor) Neg() (*Tensor, error) {
	return t.arena.apply(ops.Elementwise(ops.KindNeg), t)
}

// Exp returns e^t element-wise.
func (t *Tensor) Exp() (*Tensor, error) {
	return t.arena.apply(ops.Elementwise(ops.KindExp), t)
}

// Log returns the natural logarithm of t element-wise.
func (t *Tensor) Log() (*Tensor, error) {
	return t.arena.apply(ops.Elementwise(ops.KindLog), t)
}

// ReLU returns max(0, t) element-wise.
func (t *Tensor) ReLU() (*Tensor, error) {
	return t.arena.apply(ops.Elementwise(ops.KindReLU), t)
}

// Sigmoid returns 1 / (1 + e^-t) element-wise.
func (t *Tensor) Sigmoid() (*Tensor, error) {
	return t.arena.apply(ops.Elementwise(ops.KindSigmoid), t)
}

// Max reduces t to its maximum along axis, which is dropped from the shape.
func (t *Tensor) Max(axis int) (*Tensor, error) {
	return t.arena.apply(ops.Reduce(ops.KindMax, axis), t)
}

// Min reduces t to its minimum along axis, which is dropped from the shape.
func (t *Tensor) Min(axis int) (*Tensor, error) {
	return t.arena.apply(ops.Reduce(ops.KindMin, axis), t)
}

// Sum reduces t along axis, or over every axis for tensor.NoAxis.
func (t *Tensor) Sum(axis int) (*Tensor, error) {
	return t.arena.apply(ops.Reduce(ops.KindSum, axis), t)
}

// SumAll sums every element into a tensor of shape [1].
func (t *Tensor) SumAll() (*Tensor, error) {
	return t.Sum(tensor.NoAxis)
}

// Graph returns the implicit graph rooted at t, building it on first use.
// The set of nodes a tensor depends on never changes, so the cached graph
// stays valid.
func (t *Tensor) Graph() (*Graph, error) {
	e := t.entry()
	if e.graph != nil {
		return e.graph, nil
	}
	g, err := FromTensor(t)
	if err != nil {
		return nil, err
	}
	e.graph = g
	return g, nil
}

// Forward evaluates t and everything it depends on. It is a no-op when all
// cached values are current.
func (t *Tensor) Forward() error {
	g, err := t.Graph()
	if err != nil {
		return fmt.Errorf("forward: %w", err)
	}
	return g.Forward()
}

// Backward seeds t with a gradient of ones and propagates it to every
// tensor t depends on. Forward must have run since the last leaf change.
func (t *Tensor) Backward() error {
	if t.entry().values == nil {
		return &tensor.StateError{Op: "backward", Tensor: int(t.id), Details: "forward has not run"}
	}
	g, err := t.Graph()
	if err != nil {
		return fmt.Errorf("backward: %w", err)
	}
	return g.Backward()
}

// RetainGrad asks the engine to keep t's gradient after a backward pass.
// Leaves that require gradients always keep theirs.
func (t *Tensor) RetainGrad() {
	t.entry().retainGrad = true
}

// SetRequiresGrad enables or disables gradient tracking for a leaf.
func (t *Tensor) SetRequiresGrad(requires bool) error {
	e := t.entry()
	if !e.isLeaf() {
		return &tensor.StateError{Op: "set_requires_grad", Tensor: int(t.id), Details: "only leaves carry the flag"}
	}
	e.requiresGrad = requires
	if !requires {
		e.grad = nil
	}
	return nil
}

// SetValues overwrites a leaf's values. Every tensor computed from it becomes
// stale until the next forward pass.
func (t *Tensor) SetValues(data []float64) error {
	e := t.entry()
	switch {
	case !e.isLeaf():
		return &tensor.StateError{Op: "set_values", Tensor: int(t.id), Details: "only leaves can be assigned"}
	case e.readOnly:
		return &tensor.StateError{Op: "set_values", Tensor: int(t.id), Details: "tensor is read-only"}
	case len(data) != e.values.Len():
		return &tensor.ShapeError{
			Op:      "set_values",
			Shapes:  []tensor.Shape{e.shape.Clone()},
			Details: fmt.Sprintf("data has %d elements, shape needs %d", len(data), e.values.Len()),
		}
	}
	e.values.CopyFrom(data)
	e.version++
	return nil
}

// checkCurrent fails unless t holds a value computed from current inputs.
func (t *Tensor) checkCurrent(op string) error {
	e := t.entry()
	if e.values == nil {
		return &tensor.StateError{Op: op, Tensor: int(t.id), Details: "forward has not run"}
	}
	if e.isLeaf() {
		return nil
	}
	g, err := t.Graph()
	if err != nil {
		return err
	}
	return g.checkForward(op)
}

// Values returns a copy of t's values in row-major order.
func (t *Tensor) Values() ([]float64, error) {
	if err := t.checkCurrent("values"); err != nil {
		return nil, err
	}
	return t.entry().values.Clone().Data(), nil
}

// At returns the element at the given coordinates.
func (t *Tensor) At(index ...int) (float64, error) {
	if err := t.checkCurrent("at"); err != nil {
		return 0, err
	}
	e := t.entry()
	if len(index) != len(e.shape) {
		return 0, &tensor.ShapeError{
			Op:      "at",
			Shapes:  []tensor.Shape{e.shape.Clone()},
			Details: fmt.Sprintf("expected %d indices, got %d", len(e.shape), len(index)),
		}
	}
	strides := e.shape.ComputeStrides()
	flat := 0
	for d, i := range index {
		if i < 0 || i >= e.shape[d] {
			return 0, &tensor.ShapeError{
				Op:      "at",
				Shapes:  []tensor.Shape{e.shape.Clone()},
				Details: fmt.Sprintf("index %d out of range for dimension %d", i, d),
			}
		}
		flat += i * strides[d]
	}
	return e.values.Data()[flat], nil
}

// Grad returns t's accumulated gradient as a new read-only leaf that does
// not require gradients.
func (t *Tensor) Grad() (*Tensor, error) {
	e := t.entry()
	if !e.keepsGrad() {
		return nil, &tensor.StateError{Op: "grad", Tensor: int(t.id), Details: "tensor does not retain gradients"}
	}
	if e.grad == nil {
		return nil, &tensor.StateError{Op: "grad", Tensor: int(t.id), Details: "no backward pass has reached this tensor"}
	}

	g := t.arena.newEntry(e.shape)
	g.init = ops.Leaf(ops.KindConst)
	g.values = e.grad.Clone()
	g.readOnly = true
	g.version = 1
	return t.arena.handle(g.id), nil
}
