package tensor

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is.
var (
	ErrShape = errors.New("shape error")
	ErrState = errors.New("state error")
	ErrCycle = errors.New("cycle error")
)

// ShapeError reports an incompatible broadcast, an invalid axis or a
// malformed shape. It is always raised while a graph is being built.
type ShapeError struct {
	Op      string // Operation that rejected the shape (e.g., "add", "max")
	Shapes  []Shape
	Details string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	if len(e.Shapes) > 0 {
		return fmt.Sprintf("%s: %s: shapes %v", e.Op, e.Details, e.Shapes)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Details)
}

// Is reports whether target is ErrShape.
func (e *ShapeError) Is(target error) bool {
	return target == ErrShape
}

// StateError reports a call made while a tensor or graph is not in the
// state the call needs (backward before forward, grad never reached, ...).
type StateError struct {
	Op      string
	Tensor  int // Tensor id involved, -1 if none
	Details string
}

// Error implements the error interface.
func (e *StateError) Error() string {
	if e.Tensor >= 0 {
		return fmt.Sprintf("%s: tensor %d: %s", e.Op, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Details)
}

// Is reports whether target is ErrState.
func (e *StateError) Is(target error) bool {
	return target == ErrState
}

// CycleError means the node graph is not a DAG. Construction never produces
// one, so seeing it means an internal invariant was broken.
type CycleError struct {
	Node int // Node id at which the back edge was found
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected at node %d", e.Node)
}

// Is reports whether target is ErrCycle.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}
