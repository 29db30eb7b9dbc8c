// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides tensors, computation graphs and reverse-mode
// automatic differentiation.
//
// Every tensor belongs to an Arena. Initializers create leaves; operator
// methods append one node to the arena and return the output tensor, whose
// shape is known immediately. Values are computed only by a forward pass.
//
// Example:
//
//	import (
//	    "github.com/born-ml/toygrad/autodiff"
//	    "github.com/born-ml/toygrad/tensor"
//	)
//
//	func main() {
//	    arena := autodiff.New(autodiff.WithSeed(42))
//
//	    x, _ := arena.RandN(tensor.Shape{2, 3, 4})
//	    m, _ := x.Max(1)     // [2, 4]
//	    y, _ := m.SumAll()   // [1]
//
//	    _ = y.Forward()
//	    _ = y.Backward()
//	    grad, _ := x.Grad()  // ones where x held each maximum
//	}
//
// The same passes can be driven through an explicit graph:
//
//	g, _ := autodiff.FromTensor(y)
//	_ = g.Forward()
//	_ = g.Backward()
package autodiff

import (
	"github.com/born-ml/toygrad/internal/autodiff"
	"github.com/born-ml/toygrad/internal/autodiff/ops"
	"github.com/born-ml/toygrad/internal/parallel"
)

// Arena owns tensors and nodes and addresses them by stable IDs.
type Arena = autodiff.Arena

// Tensor is a handle to a tensor stored in an Arena.
type Tensor = autodiff.Tensor

// Graph is a topologically ordered view of the nodes a root depends on.
type Graph = autodiff.Graph

// Identifiers.
type (
	TensorID = autodiff.TensorID
	NodeID   = autodiff.NodeID
)

// NodeInfo describes one node of a Graph.
type NodeInfo = autodiff.NodeInfo

// Op identifies the operator of a node or the initializer of a leaf.
type Op = ops.Op

// Option configures an Arena.
type Option = autodiff.Option

// ParallelConfig controls worker usage during passes.
type ParallelConfig = parallel.Config

// GradCheck holds the result of a finite-difference gradient check.
type GradCheck = autodiff.GradCheck

// New creates an empty arena.
//
// Example:
//
//	arena := autodiff.New(autodiff.WithSeed(7), autodiff.WithParallel(autodiff.Sequential()))
func New(opts ...Option) *Arena {
	return autodiff.New(opts...)
}

// WithSeed makes RandN reproducible.
func WithSeed(seed uint64) Option {
	return autodiff.WithSeed(seed)
}

// WithParallel sets the worker configuration.
func WithParallel(cfg ParallelConfig) Option {
	return autodiff.WithParallel(cfg)
}

// DefaultParallel returns a configuration using every CPU.
func DefaultParallel() ParallelConfig {
	return parallel.DefaultConfig()
}

// Sequential returns a configuration that runs everything on the caller's
// goroutine.
func Sequential() ParallelConfig {
	return parallel.Sequential()
}

// FromTensor builds an explicit graph rooted at root.
func FromTensor(root *Tensor) (*Graph, error) {
	return autodiff.FromTensor(root)
}

// CheckGradients compares Backward with central finite differences of
// sum(out) for each leaf.
func CheckGradients(out *Tensor, leaves []*Tensor, eps float64) ([]GradCheck, error) {
	return autodiff.CheckGradients(out, leaves, eps)
}
