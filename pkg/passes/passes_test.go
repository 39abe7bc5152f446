// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package passes

import (
	"testing"

	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(dims []int, v float32) *graph.ConstBuffer {
	return graph.FillConstBuffer(layout.Planar(dtypes.Float32, dims...), func(int) float32 { return v })
}

// addConv adds a 1x1 convolution with ofm output features over input with ifm features.
func addConv(topo *graph.Topology, id, input string, ifm, ofm int) {
	topo.Data(id+"_w", fill([]int{ofm, ifm, 1, 1}, 0.5))
	topo.Convolution(id, input, id+"_w", "", graph.ConvolutionAttrs{})
}

func executableNodes(p *graph.Program) int {
	count := 0
	for _, h := range p.Order() {
		if p.Node(h).Kind().IsExecutable() {
			count++
		}
	}
	return count
}

func integrated(t *testing.T) *device.Capabilities {
	return must.M1(device.Preset("integrated"))
}

func newProgram(t *testing.T, topo *graph.Topology) *graph.Program {
	p, err := graph.FromTopology(topo)
	require.NoError(t, err)
	_, err = SeedLayouts(p)
	require.NoError(t, err)
	return p
}

func TestFuseProducerScale(t *testing.T) {
	topo := graph.NewTopology()
	topo.Input("x", layout.Planar(dtypes.Float32, 1, 8, 4, 4))
	addConv(topo, "conv", "x", 8, 8)
	topo.Data("s", fill([]int{1, 8, 1, 1}, 2))
	topo.Scale("scale", "conv", "s", "", graph.ScaleAttrs{})
	p := newProgram(t, topo)
	require.Equal(t, 2, executableNodes(p))

	n, err := FusePrimitives(p, integrated(t), AllFusions())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, executableNodes(p))
	conv := p.MustLookup("conv")
	require.Len(t, p.Node(conv).FusedOps(), 1)
	assert.Equal(t, graph.PostOpRescale, p.Node(conv).FusedOps()[0].OpType)
	_, found := p.Lookup("scale")
	assert.False(t, found)

	// Fixed point.
	n, err = FusePrimitives(p, integrated(t), AllFusions())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNoFusionWithTwoUsers(t *testing.T) {
	topo := graph.NewTopology()
	topo.Input("x", layout.Planar(dtypes.Float32, 1, 8, 4, 4))
	addConv(topo, "conv", "x", 8, 8)
	topo.Data("s", fill([]int{1, 8, 1, 1}, 2))
	topo.Scale("scale", "conv", "s", "", graph.ScaleAttrs{})
	topo.Softmax("softmax", "conv", 1)
	p := newProgram(t, topo)
	before := p.String()

	n, err := FusePrimitives(p, integrated(t), AllFusions())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, before, p.String())
}

func TestFuseChain(t *testing.T) {
	// conv -> relu -> sum(., conv2) -> quantize: everything into conv, the sum reads conv2.
	topo := graph.NewTopology()
	topo.Input("x", layout.Planar(dtypes.Float32, 1, 8, 4, 4))
	addConv(topo, "conv", "x", 8, 8)
	addConv(topo, "conv2", "x", 8, 8)
	topo.Activation("relu", "conv", graph.ActivationRelu, 0, 0)
	topo.Eltwise("sum", graph.EltwiseSum, "relu", "conv2")
	for _, id := range []string{"lo", "hi", "out_lo", "out_hi"} {
		topo.Data(id, fill([]int{1, 1, 1, 1}, map[string]float32{"lo": -1, "hi": 1, "out_lo": 0, "out_hi": 255}[id]))
	}
	topo.Quantize("q", "sum", "lo", "hi", "out_lo", "out_hi", graph.QuantizeAttrs{Levels: 256, OutputDType: dtypes.Uint8})
	p := newProgram(t, topo)

	n, err := FusePrimitives(p, integrated(t), AllFusions())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	conv := p.MustLookup("conv")
	var types []graph.PostOpType
	for _, desc := range p.Node(conv).FusedOps() {
		types = append(types, desc.OpType)
	}
	assert.Equal(t, []graph.PostOpType{graph.PostOpClamp, graph.PostOpSum, graph.PostOpQuantize}, types)
	assert.Equal(t, 2, executableNodes(p))
	out, err := p.OutputLayout(conv, 0, true)
	require.NoError(t, err)
	assert.Equal(t, dtypes.Uint8, out.DType)
	assert.Equal(t, graph.Dependency{Node: p.MustLookup("conv2")}, p.Node(conv).Dependencies()[2])

	n, err = FusePrimitives(p, integrated(t), AllFusions())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFusionOptions(t *testing.T) {
	topo := graph.NewTopology()
	topo.Input("x", layout.Planar(dtypes.Float32, 1, 8, 4, 4))
	addConv(topo, "conv", "x", 8, 8)
	topo.Activation("relu", "conv", graph.ActivationRelu, 0, 0)
	topo.Data("s", fill([]int{1, 8, 1, 1}, 2))
	topo.Scale("scale", "relu", "s", "", graph.ScaleAttrs{})

	p := newProgram(t, topo)
	n, err := FusePrimitives(p, integrated(t), FusionOptions{Scale: true})
	require.NoError(t, err)
	// Scale can't be fused into conv, since relu sits between them. It can be fused into relu.
	assert.Equal(t, 1, n)
	assert.Len(t, p.Node(p.MustLookup("relu")).FusedOps(), 1)

	p = newProgram(t, topo)
	n, err = FusePrimitives(p, integrated(t), FusionOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPrecision(t *testing.T) {
	topo := graph.NewTopology()
	topo.Input("x", layout.Planar(dtypes.Float32, 1, 8, 4, 4))
	addConv(topo, "conv", "x", 8, 8)
	topo.Data("s", fill([]int{1, 8, 1, 1}, 2))
	topo.Scale("half", "conv", "s", "", graph.ScaleAttrs{OutputDType: dtypes.Float16})
	p := newProgram(t, topo)
	n, err := FusePrimitives(p, integrated(t), AllFusions())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "float32 -> float16 scale is not a whitelisted pairing")

	assert.True(t, precisionCompatible(graph.KindQuantize, dtypes.Float32, dtypes.Int8))
	assert.True(t, precisionCompatible(graph.KindScale, dtypes.Uint8, dtypes.Float32))
	assert.True(t, precisionCompatible(graph.KindActivation, dtypes.Float16, dtypes.Float16))
	assert.False(t, precisionCompatible(graph.KindActivation, dtypes.Int8, dtypes.Float32))
	assert.False(t, precisionCompatible(graph.KindQuantize, dtypes.Int8, dtypes.Float32))
}

func TestPreferFormatsAndBlockedFusion(t *testing.T) {
	build := func() *graph.Topology {
		topo := graph.NewTopology()
		topo.Input("x", layout.Planar(dtypes.Float32, 1, 16, 4, 4))
		topo.Input("y", layout.Planar(dtypes.Float32, 1, 16, 4, 4))
		addConv(topo, "conv", "x", 16, 16)
		topo.Data("s", fill([]int{1, 16, 1, 1}, 2))
		topo.Scale("scale", "conv", "s", "", graph.ScaleAttrs{})
		topo.Eltwise("sum", graph.EltwiseSum, "scale", "y")
		return topo
	}

	p := newProgram(t, build())
	n, err := PreferFormats(p, integrated(t))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	conv := p.MustLookup("conv")
	l, err := p.OutputLayout(conv, 0, true)
	require.NoError(t, err)
	assert.Equal(t, layout.FormatBFsYXFsv16, l.Format)
	l, err = p.OutputLayout(p.MustLookup("sum"), 0, true)
	require.NoError(t, err)
	assert.Equal(t, layout.FormatBFsYXFsv16, l.Format, "users layouts must follow")

	// The per-feature scale is fused, the planar full tensor y is not.
	n, err = FusePrimitives(p, integrated(t), AllFusions())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, p.Node(conv).FusedOps(), 1)

	// With the generic fallback both are.
	p = newProgram(t, build())
	_, err = PreferFormats(p, integrated(t))
	require.NoError(t, err)
	opts := AllFusions()
	opts.GenericFallback = true
	n, err = FusePrimitives(p, integrated(t), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// No 16-wide subgroups: formats unchanged.
	p = newProgram(t, build())
	n, err = PreferFormats(p, must.M1(device.Preset("minimal")))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestManager(t *testing.T) {
	topo := graph.NewTopology()
	topo.Input("x", layout.Planar(dtypes.Float32, 1, 8, 4, 4))
	addConv(topo, "conv", "x", 8, 8)
	topo.Activation("relu", "conv", graph.ActivationRelu, 0, 0)
	p := must.M1(graph.FromTopology(topo))
	caps := integrated(t)

	m := NewManager().
		Add("seed_layouts", SeedLayouts).
		Add("fuse", func(p *graph.Program) (int, error) { return FusePrimitives(p, caps, AllFusions()) }).
		Add("order_ids", AssignOrderIDs)
	assert.Equal(t, []string{"seed_layouts", "fuse", "order_ids"}, m.Names())
	changes, err := m.Run(p)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"seed_layouts": 4, "fuse": 1, "order_ids": 3}, changes)
	for ii, h := range p.Order() {
		assert.Equal(t, ii, p.Node(h).UniqueOrderID())
	}

	_, err = NewManager().Add("broken", func(*graph.Program) (int, error) { return 0, graph.ErrBufferFrozen }).Run(p)
	require.ErrorIs(t, err, graph.ErrBufferFrozen)
}
