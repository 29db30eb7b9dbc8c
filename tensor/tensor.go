// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/toygrad/internal/tensor"
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// NoAxis selects every axis in a reduction.
const NoAxis = tensor.NoAxis

// Error kinds.
type (
	// ShapeError reports an invalid shape, axis or broadcast.
	ShapeError = tensor.ShapeError

	// StateError reports an operation invoked in the wrong lifecycle state.
	StateError = tensor.StateError

	// CycleError reports a cycle found while ordering a graph.
	CycleError = tensor.CycleError
)

// Sentinels for errors.Is.
var (
	ErrShape = tensor.ErrShape
	ErrState = tensor.ErrState
	ErrCycle = tensor.ErrCycle
)

// ParseShape parses a comma-separated list of dimensions such as "2,3,4".
func ParseShape(text string) (Shape, error) {
	return tensor.ParseShape(text)
}

// InferBroadcast returns the shape two operands broadcast to.
func InferBroadcast(a, b Shape) (Shape, error) {
	return tensor.InferBroadcast(a, b)
}

// InferReduce returns the shape left after reducing s along axis.
func InferReduce(s Shape, axis int) (Shape, error) {
	return tensor.InferReduce(s, axis)
}

// ValidateAxis checks that axis indexes s. NoAxis passes only if allowAll.
func ValidateAxis(s Shape, axis int, allowAll bool) error {
	return tensor.ValidateAxis(s, axis, allowAll)
}
