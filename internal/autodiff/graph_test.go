package autodiff

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/toygrad/internal/parallel"
	"github.com/born-ml/toygrad/internal/tensor"
)

func TestFromTensor_OrderAndLevels(t *testing.T) {
	a := New(WithSeed(1), WithParallel(parallel.Sequential()))

	x, _ := a.RandN(tensor.Shape{2, 3})
	y, _ := a.RandN(tensor.Shape{3})
	s, _ := x.Add(y)     // node 0, level 0
	m, _ := x.Max(1)     // node 1, level 0
	r, _ := s.Sum(1)     // node 2, level 1
	o, _ := r.Add(m)     // node 3, level 2
	out, _ := o.SumAll() // node 4, level 3

	g, err := FromTensor(out)
	require.NoError(t, err)

	assert.Equal(t, 5, g.Len())
	assert.Equal(t, out.ID(), g.Root().ID())

	pos := make(map[NodeID]int)
	for i, id := range g.Order() {
		pos[id] = i
	}
	for _, info := range g.Nodes() {
		for _, in := range info.Inputs {
			if p := a.entry(in).node; p != NoNode {
				assert.Less(t, pos[p], pos[info.ID], "node %d must follow its producer %d", info.ID, p)
			}
		}
	}

	levels := g.Levels()
	require.Len(t, levels, 4)
	assert.ElementsMatch(t, []NodeID{0, 1}, levels[0])
	assert.Equal(t, []NodeID{2}, levels[1])
	assert.Equal(t, []NodeID{3}, levels[2])
	assert.Equal(t, []NodeID{4}, levels[3])

	// Unrelated nodes stay out of the graph.
	_, _ = y.Sum(0)
	g2, err := FromTensor(out)
	require.NoError(t, err)
	assert.Equal(t, 5, g2.Len())
	assert.NotEqual(t, g.ID(), g2.ID())
}

func TestFromTensor_Cycle(t *testing.T) {
	a := New(WithSeed(1))

	x, _ := a.RandN(tensor.Shape{2})
	y, _ := a.RandN(tensor.Shape{2})
	s, _ := x.Add(y)     // node 0
	out, _ := s.SumAll() // node 1
	_ = out

	// Pretend x is produced by node 1, closing a loop through node 0.
	a.entry(x.ID()).node = 1

	_, err := FromTensor(out)
	require.Error(t, err)
	assert.ErrorIs(t, err, tensor.ErrCycle)

	var cycleErr *tensor.CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, 1, cycleErr.Node)
}

func TestFromTensor_NilRoot(t *testing.T) {
	_, err := FromTensor(nil)
	assert.ErrorIs(t, err, tensor.ErrState)
}

func TestNodeStates(t *testing.T) {
	a := New(WithSeed(1), WithParallel(parallel.Sequential()))

	x, _ := a.RandN(tensor.Shape{2, 2})
	m, _ := x.Max(0)
	out, _ := m.SumAll()

	g, err := FromTensor(out)
	require.NoError(t, err)
	for _, info := range g.Nodes() {
		assert.Equal(t, Unevaluated, info.State)
		assert.Equal(t, Unvisited, info.GradState)
	}

	require.NoError(t, g.Forward())
	for _, info := range g.Nodes() {
		assert.Equal(t, Evaluated, info.State)
		assert.Equal(t, Unvisited, info.GradState)
	}

	require.NoError(t, g.Backward())
	for _, info := range g.Nodes() {
		assert.Equal(t, "gradient-accumulated", info.GradState.String())
	}
	assert.Equal(t, "evaluated", Evaluated.String())
}

func TestForward_SkipsCurrentNodes(t *testing.T) {
	a := New(WithSeed(1), WithParallel(parallel.Sequential()))

	x, _ := a.RandN(tensor.Shape{3})
	y, _ := a.RandN(tensor.Shape{3})
	s, _ := x.Add(y)
	out, _ := s.SumAll()

	require.NoError(t, out.Forward())
	sVersion := a.entry(s.ID()).version
	outVersion := a.entry(out.ID()).version

	require.NoError(t, out.Forward())
	assert.Equal(t, sVersion, a.entry(s.ID()).version)
	assert.Equal(t, outVersion, a.entry(out.ID()).version)

	require.NoError(t, y.SetValues([]float64{1, 2, 3}))
	require.NoError(t, out.Forward())
	assert.Equal(t, sVersion+1, a.entry(s.ID()).version)
	assert.Equal(t, outVersion+1, a.entry(out.ID()).version)
}

func TestImplicitGraphCached(t *testing.T) {
	a := New(WithSeed(1))

	x, _ := a.RandN(tensor.Shape{2})
	out, _ := x.SumAll()

	g1, err := out.Graph()
	require.NoError(t, err)
	g2, err := out.Graph()
	require.NoError(t, err)
	assert.Same(t, g1, g2)
}

func TestPassesParallelMatchSequential(t *testing.T) {
	build := func(cfg parallel.Config) (*Tensor, []*Tensor) {
		a := New(WithSeed(99), WithParallel(cfg))
		var leaves []*Tensor
		var parts []*Tensor
		for i := 0; i < 8; i++ {
			x, _ := a.RandN(tensor.Shape{16, 32})
			w, _ := a.RandN(tensor.Shape{32})
			p, _ := x.Mul(w)
			m, _ := p.Max(1)
			leaves = append(leaves, x, w)
			parts = append(parts, m)
		}
		acc := parts[0]
		for _, p := range parts[1:] {
			acc, _ = acc.Add(p)
		}
		out, _ := acc.SumAll()
		return out, leaves
	}

	seqOut, seqLeaves := build(parallel.Sequential())
	parOut, parLeaves := build(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8})

	for _, out := range []*Tensor{seqOut, parOut} {
		require.NoError(t, out.Forward())
		require.NoError(t, out.Backward())
	}

	seqVal, err := seqOut.Values()
	require.NoError(t, err)
	parVal, err := parOut.Values()
	require.NoError(t, err)
	assert.Equal(t, seqVal, parVal)

	for i := range seqLeaves {
		sg, err := seqLeaves[i].Grad()
		require.NoError(t, err)
		pg, err := parLeaves[i].Grad()
		require.NoError(t, err)
		sv, _ := sg.Values()
		pv, _ := pg.Values()
		assert.Equal(t, sv, pv, "leaf %d", i)
	}
}
