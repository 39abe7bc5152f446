// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"testing"

	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(dims []int, value float32) *ConstBuffer {
	return FillConstBuffer(layout.Planar(dtypes.Float32, dims...), func(int) float32 { return value })
}

// addConv adds a 3x3 convolution with padding 1 (same spatial size) and its weights.
func addConv(t *Topology, id, input string, ifm, ofm int) {
	t.Data(id+"_w", constant([]int{ofm, ifm, 3, 3}, 0.1))
	t.Convolution(id, input, id+"_w", "", ConvolutionAttrs{PadLower: []int{1, 1}, PadUpper: []int{1, 1}})
}

func mustProgram(t *testing.T, topo *Topology) *Program {
	p, err := FromTopology(topo)
	require.NoError(t, err)
	return p
}

func TestTopology(t *testing.T) {
	topo := NewTopology()
	topo.Input("x", layout.Planar(dtypes.Float32, 1, 8, 4, 4))
	addConv(topo, "conv", "x", 8, 16)
	require.Error(t, topo.Add(&Primitive{ID: "conv", Kind: KindActivation, Attrs: ActivationAttrs{}, Inputs: []InputRef{In("x")}}))
	require.Error(t, topo.Add(&Primitive{ID: "bad", Kind: KindActivation, Attrs: ActivationAttrs{}, Inputs: []InputRef{In("missing")}}))
	require.Error(t, topo.Add(&Primitive{ID: "bad", Kind: KindActivation, Attrs: ScaleAttrs{}, Inputs: []InputRef{In("x")}}))
	require.Error(t, topo.Add(&Primitive{ID: "bad", Kind: KindActivation, Attrs: ActivationAttrs{}, Inputs: []InputRef{{ID: "x", Output: 1}}}))
	require.Panics(t, func() { topo.Softmax("s", "missing", 1) })
	assert.Equal(t, []InputRef{In("conv")}, topo.Outputs())

	kind, err := KindString("fully_connected")
	require.NoError(t, err)
	assert.Equal(t, KindFullyConnected, kind)
	_, err = KindString("gather")
	require.Error(t, err)
	assert.Equal(t, "arg_max_min", KindArgMaxMin.String())
	text, err := KindConcatenation.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "concatenation", string(text))
	require.NoError(t, kind.UnmarshalText([]byte("Softmax")))
	assert.Equal(t, KindSoftmax, kind)
	assert.False(t, KindData.IsExecutable())
	assert.True(t, KindSoftmax.IsExecutable())
}

func TestProgramOrderAndLayouts(t *testing.T) {
	topo := NewTopology()
	x := layout.Planar(dtypes.Float32, 2, 8, 6, 6)
	topo.Input("x", x)
	addConv(topo, "conv", "x", 8, 16)
	topo.Activation("relu", "conv", ActivationRelu, 0, 0)
	topo.Pooling("pool", "relu", PoolingAttrs{Mode: PoolingMax, Size: []int{2, 2}, Strides: []int{2, 2}})
	p := mustProgram(t, topo)

	assert.Equal(t, 5, p.NumNodes())
	var ids []string
	for _, h := range p.Order() {
		ids = append(ids, p.Node(h).ID())
	}
	assert.Equal(t, []string{"x", "conv_w", "conv", "relu", "pool"}, ids)

	pool := p.MustLookup("pool")
	l, err := p.OutputLayout(pool, 0, true)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 16, 3, 3}, l.Dims)
	for _, h := range p.Order() {
		assert.True(t, p.Node(h).IsValid(0), "node %s should have a valid layout", p.Node(h))
	}
	assert.Equal(t, []NodeHandle{p.MustLookup("conv")}, p.Node(p.MustLookup("conv_w")).Users())
	assert.Equal(t, []NodeHandle{p.MustLookup("x")}, p.Inputs())
}

func TestShapeInferenceErrors(t *testing.T) {
	x := layout.Planar(dtypes.Float32, 1, 6, 8, 8)
	tests := []struct {
		name string
		prim *Primitive
		in   []layout.Layout
	}{
		{"groups", &Primitive{ID: "c", Kind: KindConvolution, Attrs: ConvolutionAttrs{Groups: 4}},
			[]layout.Layout{x, layout.Planar(dtypes.Float32, 8, 1, 3, 3)}},
		{"weights", &Primitive{ID: "c", Kind: KindConvolution, Attrs: ConvolutionAttrs{}},
			[]layout.Layout{x, layout.Planar(dtypes.Float32, 8, 5, 3, 3)}},
		{"window", &Primitive{ID: "c", Kind: KindConvolution, Attrs: ConvolutionAttrs{}},
			[]layout.Layout{x, layout.Planar(dtypes.Float32, 8, 6, 9, 9)}},
		{"broadcast", &Primitive{ID: "e", Kind: KindEltwise, Attrs: EltwiseAttrs{}},
			[]layout.Layout{x, layout.Planar(dtypes.Float32, 1, 3, 8, 8)}},
		{"inputs", &Primitive{ID: "e", Kind: KindEltwise, Attrs: EltwiseAttrs{}}, []layout.Layout{x}},
		{"reshape", &Primitive{ID: "r", Kind: KindReshape, Attrs: ReshapeAttrs{Dims: []int{7, -1}}}, []layout.Layout{x}},
		{"softmax", &Primitive{ID: "s", Kind: KindSoftmax, Attrs: SoftmaxAttrs{Axis: 4}}, []layout.Layout{x}},
		{"quantize", &Primitive{ID: "q", Kind: KindQuantize, Attrs: QuantizeAttrs{Levels: 1}},
			[]layout.Layout{x, x, x, x, x}},
		{"topk", &Primitive{ID: "a", Kind: KindArgMaxMin, Attrs: ArgMaxMinAttrs{Axis: 1, TopK: 7}}, []layout.Layout{x}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InferLayouts(tt.prim, tt.in)
			require.Error(t, err)
			var shapeErr *ShapeInferenceError
			require.True(t, errors.As(err, &shapeErr), "wanted *ShapeInferenceError, got %T", err)
			assert.Equal(t, tt.prim.ID, shapeErr.NodeID)
			assert.Equal(t, tt.prim.Kind, shapeErr.Kind)
		})
	}
}

func TestShapeInference(t *testing.T) {
	x := layout.Planar(dtypes.Float32, 1, 8, 8, 8).WithAxisName(0, "batch")

	out, err := InferLayouts(&Primitive{ID: "c", Kind: KindConvolution, Attrs: ConvolutionAttrs{
		Groups: 2, Strides: []int{2, 2}}}, []layout.Layout{x, layout.Planar(dtypes.Float32, 4, 4, 3, 3)})
	require.NoError(t, err)
	assert.Equal(t, "(Float32:bfyx)[batch 4 3 3]", out[0].String())

	out, err = InferLayouts(&Primitive{ID: "fc", Kind: KindFullyConnected, Attrs: FullyConnectedAttrs{}},
		[]layout.Layout{x, layout.Planar(dtypes.Float32, 10, 512)})
	require.NoError(t, err)
	assert.Equal(t, "(Float32:bfyx)[batch 10]", out[0].String())

	out, err = InferLayouts(&Primitive{ID: "r", Kind: KindReshape, Attrs: ReshapeAttrs{Dims: []int{0, -1}}},
		[]layout.Layout{x})
	require.NoError(t, err)
	assert.Equal(t, "(Float32:bfyx)[batch ?]", out[0].String())

	out, err = InferLayouts(&Primitive{ID: "r", Kind: KindReshape, Attrs: ReshapeAttrs{Dims: []int{4, -1}}},
		[]layout.Layout{layout.Planar(dtypes.Float32, 2, 8, 2)})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 8}, out[0].Dims)

	out, err = InferLayouts(&Primitive{ID: "cat", Kind: KindConcatenation, Attrs: ConcatenationAttrs{Axis: 1}},
		[]layout.Layout{x, layout.Planar(dtypes.Float32, 1, 4, 8, 8).WithAxisName(0, "batch")})
	require.NoError(t, err)
	assert.Equal(t, 12, out[0].Feature())
	assert.Equal(t, "batch", out[0].Symbol(0))

	out, err = InferLayouts(&Primitive{ID: "arg", Kind: KindArgMaxMin, Attrs: ArgMaxMinAttrs{Axis: 1, TopK: 3, WithValues: true}},
		[]layout.Layout{x})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, dtypes.Int32, out[0].DType)
	assert.Equal(t, dtypes.Float32, out[1].DType)
	assert.Equal(t, 3, out[1].Feature())

	out, err = InferLayouts(&Primitive{ID: "q", Kind: KindQuantize, Attrs: QuantizeAttrs{Levels: 256, OutputDType: dtypes.Uint8}},
		[]layout.Layout{x, layout.Planar(dtypes.Float32, 1, 1, 1, 1), layout.Planar(dtypes.Float32, 1, 8, 1, 1),
			layout.Planar(dtypes.Float32, 1, 1, 1, 1), layout.Planar(dtypes.Float32, 1, 1, 1, 1)})
	require.NoError(t, err)
	assert.Equal(t, dtypes.Uint8, out[0].DType)
}

// TestLayoutInvalidation checks that a change in an ancestor's layout is never silently stale downstream.
func TestLayoutInvalidation(t *testing.T) {
	topo := NewTopology()
	topo.Input("x", layout.Planar(dtypes.Float32, 1, 8, 4, 4))
	topo.Activation("a", "x", ActivationRelu, 0, 0)
	topo.Activation("b", "a", ActivationTanh, 0, 0)
	topo.Activation("c", "b", ActivationAbs, 0, 0)
	p := mustProgram(t, topo)
	a, b, c := p.MustLookup("a"), p.MustLookup("b"), p.MustLookup("c")
	_, err := p.OutputLayout(c, 0, true)
	require.NoError(t, err)

	// Same layout: nothing is invalidated.
	p.SetOutputLayout(a, 0, layout.Planar(dtypes.Float32, 1, 8, 4, 4))
	assert.True(t, p.Node(b).IsValid(0))
	assert.True(t, p.Node(c).IsValid(0))

	// Different layout: all descendants are invalidated.
	p.SetOutputLayout(a, 0, layout.Planar(dtypes.Float32, 1, 8, 4, 4).WithFormat(layout.FormatBYXF))
	assert.False(t, p.Node(b).IsValid(0))
	assert.False(t, p.Node(c).IsValid(0))
	got, err := p.OutputLayout(c, 0, true)
	require.NoError(t, err)
	assert.Equal(t, layout.FormatBYXF, got.Format)
	assert.True(t, p.Node(b).IsValid(0))

	// Preferred format recomputes and invalidates.
	require.NoError(t, p.SetPreferredFormat(b, layout.FormatBFsYXFsv16))
	assert.False(t, p.Node(c).IsValid(0))
	got, err = p.OutputLayout(c, 0, true)
	require.NoError(t, err)
	assert.Equal(t, layout.FormatBFsYXFsv16, got.Format)
}

func TestLayoutInvalidationDynamic(t *testing.T) {
	topo := NewTopology()
	topo.Input("x", layout.Planar(dtypes.Float32, layout.Dynamic, 8))
	topo.Activation("a", "x", ActivationRelu, 0, 0)
	topo.Activation("b", "a", ActivationRelu, 0, 0)
	p := mustProgram(t, topo)
	a, b := p.MustLookup("a"), p.MustLookup("b")
	_, err := p.OutputLayout(b, 0, true)
	require.NoError(t, err)

	// An anonymous dynamic dimension never compares equal: recomputing "a" conservatively invalidates "b".
	p.Invalidate(a)
	_, err = p.OutputLayout(a, 0, true)
	require.NoError(t, err)
	assert.False(t, p.Node(b).IsValid(0))
}

func TestFuseScale(t *testing.T) {
	// Scenario: producer conv, consumer scale with a single user.
	topo := NewTopology()
	topo.Input("x", layout.Planar(dtypes.Float32, 1, 8, 4, 4))
	addConv(topo, "conv", "x", 8, 16)
	topo.Data("s", constant([]int{1, 16, 1, 1}, 2))
	topo.Scale("scale", "conv", "s", "", ScaleAttrs{})
	p := mustProgram(t, topo)
	conv, scale := p.MustLookup("conv"), p.MustLookup("scale")
	before := p.NumNodes()

	require.True(t, p.SingleConsumer(conv, scale))
	require.NoError(t, p.Fuse(conv, scale, PostOpRescale))
	assert.Equal(t, before-1, p.NumNodes())
	_, found := p.Lookup("scale")
	assert.False(t, found)
	cn := p.Node(conv)
	require.Len(t, cn.FusedOps(), 1)
	desc := cn.FusedOps()[0]
	assert.Equal(t, "scale", desc.Prim.ID)
	assert.Equal(t, 2, desc.DepStart)
	assert.Equal(t, 1, desc.DepCount)
	assert.Equal(t, 0, desc.PrimaryIndex)
	assert.Equal(t, PostOpRescale, desc.OpType)
	assert.Equal(t, p.MustLookup("s"), cn.Dependencies()[2].Node)
	assert.Equal(t, []NodeHandle{conv}, p.Node(p.MustLookup("s")).Users())
	assert.Equal(t, []Dependency{{Node: conv}}, p.Outputs())
	assert.True(t, p.IsOutput(conv))

	h, found := p.Resolve("scale")
	require.True(t, found)
	assert.Equal(t, conv, h)
	assert.Equal(t, FusionRecord{Into: "conv", Deps: []string{"x", "conv_w", "s"}}, p.FusionHistory()["scale"])

	l, err := p.OutputLayout(conv, 0, true)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 16, 4, 4}, l.Dims)
	assert.True(t, p.Node(scale).Removed())
}

func TestSingleConsumer(t *testing.T) {
	topo := NewTopology()
	topo.Input("x", layout.Planar(dtypes.Float32, 1, 8, 4, 4))
	addConv(topo, "conv", "x", 8, 8)
	topo.Activation("relu", "conv", ActivationRelu, 0, 0)
	topo.Activation("tanh", "relu", ActivationTanh, 0, 0)
	topo.Eltwise("sum", EltwiseSum, "relu", "tanh")
	p := mustProgram(t, topo)
	conv, relu, tanh := p.MustLookup("conv"), p.MustLookup("relu"), p.MustLookup("tanh")

	assert.True(t, p.SingleConsumer(conv, relu))
	// relu has two users: tanh and sum.
	assert.False(t, p.SingleConsumer(relu, tanh))

	// After fusing relu into conv, conv's original dependency (relu) resolves through the history.
	require.NoError(t, p.Fuse(conv, relu, PostOpClamp))
	assert.False(t, p.SingleConsumer(conv, tanh))
	assert.Len(t, p.Node(conv).Users(), 2)
}

func TestFuseCycle(t *testing.T) {
	// sum(conv, relu(conv)): fusing sum into conv would make conv depend on relu, which depends on conv.
	topo := NewTopology()
	topo.Input("x", layout.Planar(dtypes.Float32, 1, 8, 4, 4))
	addConv(topo, "conv", "x", 8, 8)
	topo.Activation("relu", "conv", ActivationRelu, 0, 0)
	topo.Activation("inner", "relu", ActivationAbs, 0, 0)
	topo.Eltwise("sum", EltwiseSum, "conv", "inner")
	topo.Eltwise("double", EltwiseSum, "inner", "inner")
	p := mustProgram(t, topo)
	before := p.String()

	err := p.Fuse(p.MustLookup("conv"), p.MustLookup("sum"), PostOpSum)
	require.ErrorIs(t, err, ErrFusionCycle)
	// Consuming the producer twice would be a self dependency.
	err = p.Fuse(p.MustLookup("inner"), p.MustLookup("double"), PostOpSum)
	require.ErrorIs(t, err, ErrFusionCycle)
	assert.Equal(t, before, p.String(), "graph must be unchanged after a rejected fusion")

	// The weights of conv are not reachable from x.
	require.NoError(t, p.CanFuse(p.MustLookup("x"), p.MustLookup("conv")))
	require.NoError(t, p.CanFuse(p.MustLookup("relu"), p.MustLookup("inner")))
	require.Error(t, p.CanFuse(p.MustLookup("relu"), p.MustLookup("sum")))
}

func TestFuseEltwiseRewiresAndReorders(t *testing.T) {
	// sum(convA, convB) fused into convA: convA now depends on convB, which comes later in the topology.
	topo := NewTopology()
	topo.Input("x", layout.Planar(dtypes.Float32, 1, 8, 4, 4))
	addConv(topo, "a", "x", 8, 8)
	addConv(topo, "b", "x", 8, 8)
	topo.Eltwise("sum", EltwiseSub, "b", "a")
	topo.Activation("out", "sum", ActivationRelu, 0, 0)
	p := mustProgram(t, topo)
	a, b, sum, out := p.MustLookup("a"), p.MustLookup("b"), p.MustLookup("sum"), p.MustLookup("out")
	_, err := p.OutputLayout(out, 0, true)
	require.NoError(t, err)

	require.NoError(t, p.Fuse(a, sum, PostOpEltwise))
	desc := p.Node(a).FusedOps()[0]
	assert.Equal(t, 1, desc.PrimaryIndex)
	assert.Equal(t, []Dependency{{Node: p.MustLookup("x")}, {Node: p.MustLookup("a_w")}, {Node: b}},
		p.Node(a).Dependencies())
	assert.Equal(t, []Dependency{{Node: a}}, p.Node(out).Dependencies())
	assert.False(t, p.Node(out).IsValid(0))

	position := make(map[NodeHandle]int)
	for ii, h := range p.Order() {
		position[h] = ii
	}
	assert.Less(t, position[b], position[a])
	assert.Less(t, position[a], position[out])

	// b feeds only the fused operation of a: changes in b don't propagate through that edge.
	_, err = p.OutputLayout(out, 0, true)
	require.NoError(t, err)
	p.SetOutputLayout(b, 0, layout.Planar(dtypes.Float32, 1, 8, 4, 4).WithFormat(layout.FormatBYXF))
	assert.True(t, p.Node(a).IsValid(0))
}

func TestConstBuffer(t *testing.T) {
	b := NewConstBuffer(layout.Planar(dtypes.Int8, 3), []float32{1.4, -200, 7})
	assert.Equal(t, []float32{1, -128, 7}, b.Values())

	require.NoError(t, b.Mutate(func(values []float32) error {
		for ii := range values {
			values[ii] *= 2
		}
		return nil
	}))
	assert.Equal(t, []float32{2, -128, 14}, b.Values())

	clone := b.Clone()
	require.Error(t, b.Mutate(func([]float32) error { return errors.New("failed") }))
	assert.Equal(t, float32(14), b.At(2))

	b.Freeze()
	assert.True(t, b.Frozen())
	require.ErrorIs(t, b.Mutate(func([]float32) error { return nil }), ErrBufferFrozen)
	assert.False(t, clone.Frozen())
	encoded, err := b.Bytes()
	require.NoError(t, err)
	assert.Len(t, encoded, 3)

	require.Panics(t, func() { NewConstBuffer(layout.Planar(dtypes.Float32, 2), []float32{1}) })
}
