package autodiff

import (
	"fmt"
	"sync/atomic"

	"github.com/emirpasic/gods/v2/stacks/arraystack"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/born-ml/toygrad/internal/parallel"
	"github.com/born-ml/toygrad/internal/tensor"
)

// Graph is a frozen, topologically ordered view of the nodes a root tensor
// depends on. It drives forward and backward passes over them.
//
// A Graph never changes after FromTensor returns. Nodes and tensors belong
// to the Arena and outlive the Graph; several graphs may share them.
type Graph struct {
	id      uuid.UUID
	arena   *Arena
	root    TensorID
	order   []NodeID   // dependencies first
	levels  [][]NodeID // level l holds nodes whose producers sit below l
	level   map[NodeID]int
	tensors []TensorID // every tensor the graph reads or writes
}

// frame is one DFS stack entry: a node and the next input to visit.
type frame struct {
	node NodeID
	next int
}

const (
	white = iota // not visited
	grey         // on the DFS stack
	black        // emitted
)

// FromTensor discovers the nodes reachable backward from root with an
// iterative depth-first search. Each node is visited once and emitted in
// postorder, so every node follows all the nodes it depends on.
//
// A back edge to a node still on the stack yields a CycleError. Normal
// construction cannot create one because nodes only consume tensors that
// already exist.
func FromTensor(root *Tensor) (*Graph, error) {
	if root == nil || root.arena == nil {
		return nil, &tensor.StateError{Op: "graph", Tensor: -1, Details: "nil root tensor"}
	}
	a := root.arena

	g := &Graph{
		id:    uuid.New(),
		arena: a,
		root:  root.id,
		level: make(map[NodeID]int),
	}

	color := make([]uint8, len(a.nodes))
	stack := arraystack.New[frame]()
	if start := a.entry(root.id).node; start != NoNode {
		color[start] = grey
		stack.Push(frame{node: start})
	}

	for !stack.Empty() {
		f, _ := stack.Pop()
		n := a.nodes[f.node]

		if f.next < len(n.inputs) {
			stack.Push(frame{node: f.node, next: f.next + 1})

			child := a.entry(n.inputs[f.next]).node
			if child == NoNode {
				continue
			}
			switch color[child] {
			case grey:
				return nil, &tensor.CycleError{Node: int(child)}
			case white:
				color[child] = grey
				stack.Push(frame{node: child})
			}
			continue
		}

		color[f.node] = black
		g.emit(n)
	}

	g.collectTensors()

	klog.V(3).InfoS("Built tensor graph", "graph", g.id, "root", g.root,
		"nodes", len(g.order), "levels", len(g.levels))
	return g, nil
}

// emit appends a node whose producers have all been emitted already.
func (g *Graph) emit(n *Node) {
	lvl := 0
	for _, in := range n.inputs {
		if p := g.arena.entry(in).node; p != NoNode {
			lvl = max(lvl, g.level[p]+1)
		}
	}
	g.level[n.id] = lvl
	g.order = append(g.order, n.id)
	for len(g.levels) <= lvl {
		g.levels = append(g.levels, nil)
	}
	g.levels[lvl] = append(g.levels[lvl], n.id)
}

func (g *Graph) collectTensors() {
	seen := make(map[TensorID]bool)
	add := func(id TensorID) {
		if !seen[id] {
			seen[id] = true
			g.tensors = append(g.tensors, id)
		}
	}
	for _, id := range g.order {
		n := g.arena.nodes[id]
		for _, in := range n.inputs {
			add(in)
		}
		add(n.output)
	}
	add(g.root)
}

// ID returns the graph's unique identifier.
func (g *Graph) ID() uuid.UUID {
	return g.id
}

// Root returns the tensor the graph was built from.
func (g *Graph) Root() *Tensor {
	return g.arena.handle(g.root)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Order returns the node IDs in topological order.
func (g *Graph) Order() []NodeID {
	order := make([]NodeID, len(g.order))
	copy(order, g.order)
	return order
}

// Levels returns the node IDs grouped by dependency level. Nodes within one
// level are independent of each other.
func (g *Graph) Levels() [][]NodeID {
	levels := make([][]NodeID, len(g.levels))
	for i, l := range g.levels {
		levels[i] = append([]NodeID(nil), l...)
	}
	return levels
}

// Nodes describes the nodes in topological order.
func (g *Graph) Nodes() []NodeInfo {
	infos := make([]NodeInfo, len(g.order))
	for i, id := range g.order {
		n := g.arena.nodes[id]
		infos[i] = NodeInfo{
			ID:        n.id,
			Op:        n.op,
			Inputs:    append([]TensorID(nil), n.inputs...),
			Output:    n.output,
			Level:     g.level[id],
			State:     n.state,
			GradState: n.gradState,
		}
	}
	return infos
}

// Forward evaluates the nodes level by level. Nodes whose cached output is
// still current are skipped, so a second Forward without leaf mutations
// changes nothing.
func (g *Graph) Forward() error {
	a := g.arena
	var evaluated, skipped atomic.Int64

	for lvl, ids := range g.levels {
		err := parallel.Each(len(ids), func(i int) error {
			ran, err := g.evalNode(a.nodes[ids[i]])
			if ran {
				evaluated.Add(1)
			} else {
				skipped.Add(1)
			}
			return err
		}, a.cfg)
		if err != nil {
			return fmt.Errorf("forward: level %d: %w", lvl, err)
		}
	}

	klog.V(2).InfoS("Forward pass complete", "graph", g.id,
		"evaluated", evaluated.Load(), "skipped", skipped.Load())
	return nil
}

func (g *Graph) evalNode(n *Node) (bool, error) {
	a := g.arena
	if n.upToDate(a) {
		return false, nil
	}

	operands := n.operands(a)
	for i, op := range operands {
		if op.Values == nil {
			return false, &tensor.StateError{Op: "forward", Tensor: int(n.inputs[i]), Details: "input has no value"}
		}
	}

	out := a.entry(n.output)
	if out.values == nil {
		out.values = tensor.NewBuffer(out.shape.NumElements())
	}
	n.aux = n.op.Forward(operands, out.values, out.shape, a.cfg)
	for i, in := range n.inputs {
		n.seen[i] = a.entry(in).version
	}
	n.state = Evaluated
	out.version++

	klog.V(4).InfoS("Evaluated node", "graph", g.id, "node", n.id, "op", n.op, "shape", out.shape)
	return true, nil
}

// checkForward returns a StateError unless every node holds a current value.
func (g *Graph) checkForward(op string) error {
	a := g.arena
	if a.entry(g.root).values == nil {
		return &tensor.StateError{Op: op, Tensor: int(g.root), Details: "forward has not run"}
	}
	for _, id := range g.order {
		n := a.nodes[id]
		if n.upToDate(a) {
			continue
		}
		if n.state == Unevaluated {
			return &tensor.StateError{Op: op, Tensor: int(n.output), Details: "forward has not run"}
		}
		return &tensor.StateError{Op: op, Tensor: int(n.output), Details: "value is stale, run forward again"}
	}
	return nil
}

// gradMask marks the tensors gradients must flow into: leaves that require
// gradients and every tensor computed from one.
func (g *Graph) gradMask() map[TensorID]bool {
	a := g.arena
	needs := make(map[TensorID]bool, len(g.tensors))
	for _, id := range g.tensors {
		if e := a.entry(id); e.isLeaf() {
			needs[id] = e.requiresGrad
		}
	}
	for _, id := range g.order {
		n := a.nodes[id]
		for _, in := range n.inputs {
			if needs[in] {
				needs[n.output] = true
				break
			}
		}
	}
	return needs
}

// Backward propagates gradients from the root to every tensor in the graph.
//
// Algorithm:
//  1. Check that a forward pass left every node current
//  2. Reset the gradient buffers of the graph's tensors
//  3. Seed the root with ones (d(root)/d(root) = 1)
//  4. Walk the levels in reverse, adding each node's input gradients into
//     the inputs' buffers
//  5. Drop the gradients of tensors that do not retain them
//
// Step 4 accumulates rather than overwrites, so a tensor consumed by several
// nodes ends up with the sum of all contributions.
func (g *Graph) Backward() error {
	if err := g.checkForward("backward"); err != nil {
		return err
	}
	a := g.arena

	needs := g.gradMask()
	for _, id := range g.tensors {
		e := a.entry(id)
		e.grad = nil
		if needs[id] {
			e.grad = tensor.NewBuffer(e.shape.NumElements())
		}
	}
	for _, id := range g.order {
		a.nodes[id].gradState = Unvisited
	}
	root := a.entry(g.root)
	root.grad = tensor.Ones(root.shape.NumElements())

	var visited atomic.Int64
	for lvl := len(g.levels) - 1; lvl >= 0; lvl-- {
		ids := g.levels[lvl]
		err := parallel.Each(len(ids), func(i int) error {
			if g.backNode(a.nodes[ids[i]], needs) {
				visited.Add(1)
			}
			return nil
		}, a.cfg)
		if err != nil {
			return fmt.Errorf("backward: level %d: %w", lvl, err)
		}
	}

	for _, id := range g.tensors {
		if e := a.entry(id); !e.keepsGrad() {
			e.grad = nil
		}
	}

	klog.V(2).InfoS("Backward pass complete", "graph", g.id, "visited", visited.Load(), "nodes", len(g.order))
	return nil
}

// backNode runs one node's backward rule. Input gradients are computed
// privately and then merged under each input buffer's lock.
func (g *Graph) backNode(n *Node, needs map[TensorID]bool) bool {
	a := g.arena
	out := a.entry(n.output)
	if !needs[n.output] || out.grad == nil {
		return false
	}

	grads := n.op.Backward(out.grad, out.shape, n.operands(a), n.aux)
	for i, in := range n.inputs {
		if needs[in] {
			a.entry(in).grad.Accumulate(grads[i])
		}
	}
	n.gradState = GradientAccumulated

	klog.V(4).InfoS("Accumulated gradients", "graph", g.id, "node", n.id, "op", n.op)
	return true
}
