// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides shapes, broadcasting rules and the error kinds
// shared by the toygrad engine.
//
// # Overview
//
// Tensors themselves live in an autodiff.Arena. This package holds what
// callers need to describe them:
//   - Shape, with validation and NumPy-style broadcast inference
//   - Reduction shape inference (NoAxis reduces every axis)
//   - ShapeError, StateError and CycleError, matched with errors.Is
//
// # Broadcasting
//
// Shapes are aligned on their trailing dimensions. Two sizes are compatible
// when they are equal or one of them is 1; a missing dimension counts as 1:
//
//	tensor.InferBroadcast(tensor.Shape{3, 1}, tensor.Shape{4}) // [3, 4]
//	tensor.InferBroadcast(tensor.Shape{2, 3}, tensor.Shape{3, 3}) // ShapeError
//
// # Reductions
//
// Reducing drops the axis from the shape. A reduction that would leave no
// dimensions yields Shape{1}:
//
//	tensor.InferReduce(tensor.Shape{2, 3, 4}, 1)            // [2, 4]
//	tensor.InferReduce(tensor.Shape{2, 3, 4}, tensor.NoAxis) // [1]
//
// # Errors
//
//	_, err := x.Add(y)
//	if errors.Is(err, tensor.ErrShape) {
//	    // incompatible operands, reported while building the graph
//	}
package tensor
