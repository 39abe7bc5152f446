// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/kernels"
	"github.com/gomlx/gpuplan/pkg/kernels/catalog"
	"github.com/gomlx/gpuplan/pkg/passes"
	"github.com/gomlx/gpuplan/pkg/reference"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubKernel struct {
	kernels.Base
}

func newStub(name string, kind graph.Kind, priority kernels.Priority) *stubKernel {
	key := kernels.NewKey().EnableAllDTypes().EnableAllFormats().
		EnableFeatures(kernels.FeatureBatching, kernels.FeatureFusedOps, kernels.FeatureOutputScale).
		EnableFusedKinds(graph.KindEltwise, graph.KindActivation, graph.KindScale, graph.KindQuantize)
	return &stubKernel{Base: kernels.NewBase(name, kind, key, priority)}
}

func (k *stubKernel) Dispatch(params *kernels.Params, caps *device.Capabilities) (*kernels.SelectedKernel, error) {
	return &kernels.SelectedKernel{
		EntryPoint: k.Name(),
		Dispatch:   kernels.StaticDispatch([3]int{params.Output().Count(), 1, 1}, caps),
		Arguments:  []kernels.Argument{{Role: kernels.ArgInput}, {Role: kernels.ArgInput, Index: 1}, {Role: kernels.ArgOutput}},
	}, nil
}

func preset(name string) *device.Capabilities {
	return must.M1(device.Preset(name))
}

func fill(dims []int, fn func(flat int) float32) *graph.ConstBuffer {
	return graph.FillConstBuffer(layout.Planar(dtypes.Float32, dims...), fn)
}

// convScaleReLU builds x -> conv 3x3 -> scale (per feature) -> relu.
func convScaleReLU() *graph.Topology {
	topo := graph.NewTopology()
	topo.Input("x", layout.Planar(dtypes.Float32, 1, 16, 8, 8))
	topo.Data("w", fill([]int{16, 16, 3, 3}, func(flat int) float32 { return float32(flat%5-2) / 8 }))
	topo.Convolution("conv", "x", "w", "", graph.ConvolutionAttrs{PadLower: []int{1, 1}, PadUpper: []int{1, 1}})
	topo.Data("s", fill([]int{1, 16, 1, 1}, func(flat int) float32 { return float32(flat+1) / 4 }))
	topo.Scale("scale", "conv", "s", "", graph.ScaleAttrs{})
	topo.Activation("relu", "scale", graph.ActivationRelu, 0, 0)
	return topo
}

func xInput() map[string]reference.Tensor {
	return map[string]reference.Tensor{
		"x": reference.Fill(layout.Planar(dtypes.Float32, 1, 16, 8, 8),
			func(flat int) float32 { return float32(flat%13)/6 - 1 }),
	}
}

func TestCompileConvScaleReLU(t *testing.T) {
	prog, err := Compile(convScaleReLU(), catalog.New(), preset("integrated"), nil)
	require.NoError(t, err)
	rows := prog.Report()
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, 0, row.OrderID)
	assert.Equal(t, "conv", row.ID)
	assert.Equal(t, "convolution_b_fs_yx_fsv16", row.Kernel)
	assert.Equal(t, "priority_1", row.Priority)
	assert.Equal(t, []string{"scale", "relu"}, row.Fused)
	assert.Equal(t, [3]int{1, 8, 16}, row.GWS)
	assert.Equal(t, [3]int{1, 1, 16}, row.LWS)
	assert.False(t, row.Dynamic)
	assert.Positive(t, row.SourceBytes)

	changes := prog.PassChanges()
	assert.Equal(t, 1, changes["prefer_formats"])
	assert.Equal(t, 2, changes["fuse_primitives"])
	assert.Equal(t, 1, changes["compile_nodes"])

	conv := prog.Graph().MustLookup("conv")
	node := prog.NodeFor(conv)
	require.NotNil(t, node)
	assert.Same(t, node.Kernel, prog.Graph().Node(conv).SelectedImpl())
	assert.Nil(t, prog.NodeFor(prog.Graph().MustLookup("x")))
	assert.Contains(t, prog.String(), `#0 convolution("conv") -> convolution_b_fs_yx_fsv16`)
}

func TestCompileMinimalDevice(t *testing.T) {
	prog, err := Compile(convScaleReLU(), catalog.New(), preset("minimal"), nil)
	require.NoError(t, err)
	rows := prog.Report()
	require.Len(t, rows, 1)
	assert.Equal(t, "convolution_ref", rows[0].Kernel)
	assert.Equal(t, "fallback", rows[0].Priority)
	assert.Equal(t, 0, prog.PassChanges()["prefer_formats"])
}

// TestCompileSoundness compares the compiled program, with its optimized post-ops and rewritten
// constant buffers, to the topology evaluated as declared.
func TestCompileSoundness(t *testing.T) {
	for _, name := range device.PresetNames() {
		t.Run(name, func(t *testing.T) {
			topo := convScaleReLU()
			want := must.M1(reference.EvaluateTopology(topo, xInput()))
			prog, err := Compile(topo, catalog.New(), preset(name), nil)
			require.NoError(t, err)
			got, err := reference.Evaluate(prog.Graph(), xInput(), prog.PostOps)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, want[0].Layout.Dims, got[0].Layout.Dims)
			assert.InDeltaSlice(t, want[0].Values, got[0].Values, 1e-4)
		})
	}
}

func TestCompileDeterminism(t *testing.T) {
	first, err := Compile(convScaleReLU(), catalog.New(), preset("discrete"), nil)
	require.NoError(t, err)
	for range 3 {
		again, err := Compile(convScaleReLU(), catalog.New(), preset("discrete"), nil)
		require.NoError(t, err)
		assert.Equal(t, first.Report(), again.Report())
		for ii, node := range first.Nodes() {
			assert.Equal(t, node.Kernel.Source, again.Nodes()[ii].Kernel.Source)
			assert.True(t, node.Kernel.Dispatch.Equal(again.Nodes()[ii].Kernel.Dispatch))
		}
	}
}

func TestCompileLowestPriority(t *testing.T) {
	topo := graph.NewTopology()
	topo.Input("a", layout.Planar(dtypes.Float32, 1, 64))
	topo.Input("b", layout.Planar(dtypes.Float32, 1, 64))
	topo.Eltwise("sum", graph.EltwiseSum, "a", "b")

	reg := kernels.NewRegistry().Register(
		newStub("slow", graph.KindEltwise, kernels.Priority5),
		newStub("fast", graph.KindEltwise, kernels.Priority2))
	prog, err := Compile(topo, reg, preset("integrated"), nil)
	require.NoError(t, err)
	require.Len(t, prog.Nodes(), 1)
	assert.Equal(t, "fast", prog.Nodes()[0].Kernel.Kernel)
	assert.Equal(t, kernels.Priority2, prog.Nodes()[0].Kernel.Priority)
	assert.Equal(t, [3]int{64, 1, 1}, prog.Nodes()[0].Kernel.Dispatch.GWS)
}

func TestCompileErrors(t *testing.T) {
	t.Run("no_suitable_kernel", func(t *testing.T) {
		topo := graph.NewTopology()
		topo.Input("x", layout.Planar(dtypes.Float32, 1, 8))
		topo.Activation("relu", "x", graph.ActivationRelu, 0, 0)
		topo.Softmax("softmax", "relu", 1)
		reg := kernels.NewRegistry().Register(newStub("act", graph.KindActivation, kernels.Priority1))
		prog, err := Compile(topo, reg, preset("integrated"), nil)
		require.Error(t, err)
		assert.Nil(t, prog)
		var noKernel *kernels.NoSuitableKernelError
		require.True(t, errors.As(err, &noKernel))
		assert.Equal(t, "softmax", noKernel.NodeID)
		assert.Equal(t, graph.KindSoftmax, noKernel.Kind)
		assert.ErrorContains(t, err, "compile failed")
	})

	t.Run("shape_inference", func(t *testing.T) {
		topo := graph.NewTopology()
		topo.Input("x", layout.Planar(dtypes.Float32, 1, 8, 4, 4))
		topo.Data("w", fill([]int{6, 8, 1, 1}, func(int) float32 { return 1 }))
		topo.Convolution("conv", "x", "w", "", graph.ConvolutionAttrs{Groups: 3})
		_, err := Compile(topo, catalog.New(), preset("integrated"), nil)
		var shapeErr *graph.ShapeInferenceError
		require.True(t, errors.As(err, &shapeErr))
		assert.Equal(t, "conv", shapeErr.NodeID)
		assert.Equal(t, graph.KindConvolution, shapeErr.Kind)
	})

	t.Run("dynamic_shapes_disabled", func(t *testing.T) {
		topo := graph.NewTopology()
		topo.Input("x", layout.Planar(dtypes.Float32, 1, 8).WithAxisName(0, "batch"))
		topo.Activation("relu", "x", graph.ActivationRelu, 0, 0)
		_, err := Compile(topo, catalog.New(), preset("integrated"), DefaultConfig().WithDynamicShapes(false))
		require.ErrorContains(t, err, "dynamic shapes are disabled")
	})

	t.Run("invalid_config", func(t *testing.T) {
		_, err := Compile(convScaleReLU(), catalog.New(), preset("integrated"), DefaultConfig().WithMaxGroupSize(0))
		require.Error(t, err)
	})
}

// TestCompileNodesAtomic checks a failing selection leaves the program without kernels and with
// its constant buffers untouched.
func TestCompileNodesAtomic(t *testing.T) {
	topo := convScaleReLU()
	topo.Softmax("softmax", "relu", 1)
	p := must.M1(graph.FromTopology(topo))
	must.M1(passes.SeedLayouts(p))
	must.M1(passes.FusePrimitives(p, preset("minimal"), passes.AllFusions()))
	scale, found := topo.Lookup("s")
	require.True(t, found)
	before := scale.Attrs.(graph.DataAttrs).Buffer.Values()

	reg := kernels.NewRegistry().Register(newStub("conv", graph.KindConvolution, kernels.Priority1))
	nodes, err := CompileNodes(p, reg, preset("minimal"), DefaultConfig())
	require.Error(t, err)
	assert.Nil(t, nodes)
	for _, h := range p.Order() {
		assert.Nil(t, p.Node(h).SelectedImpl())
	}
	assert.Equal(t, before, scale.Attrs.(graph.DataAttrs).Buffer.Values())
}

func TestCompileDynamic(t *testing.T) {
	dynamic := layout.Planar(dtypes.Float32, 1, 16, 4, 8).WithAxisName(0, "batch")
	topo := graph.NewTopology()
	topo.Input("a", dynamic)
	topo.Input("b", dynamic)
	topo.Eltwise("sum", graph.EltwiseSum, "a", "b")
	topo.Activation("relu", "sum", graph.ActivationRelu, 0, 0)

	prog, err := Compile(topo, catalog.New(), preset("integrated"), nil)
	require.NoError(t, err)
	assert.True(t, prog.IsDynamic())
	require.Len(t, prog.Nodes(), 1)
	node := prog.Nodes()[0]
	assert.Equal(t, []string{"relu"}, node.Fused)
	require.True(t, node.Kernel.IsDynamic())
	assert.True(t, prog.Report()[0].Dynamic)
	assert.Equal(t, dynamic, prog.InputLayouts()["a"])

	resolved := must.M1(dynamic.Resolve(layout.Bindings{"batch": 2}))
	data, err := node.Kernel.UpdateDispatch([]layout.Layout{resolved, resolved}, []layout.Layout{resolved})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, data.GWS[0], 1)
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.DynamicShapes)
	assert.Equal(t, DefaultMaxGroupSize, cfg.MaxGroupSize)
	assert.Equal(t, passes.AllFusions(), cfg.Fusions)

	other := cfg.Clone().WithNoFusion().WithGenericFallbackFusion(true).WithMaxGroupSize(4)
	assert.Equal(t, passes.AllFusions(), cfg.Fusions, "Clone must not share state")
	assert.False(t, other.Fusions.Eltwise)
	assert.True(t, other.Fusions.GenericFallback)
	assert.Equal(t, 4, other.MaxGroupSize)
	require.NoError(t, other.Validate())
	require.Error(t, other.WithMaxGroupSize(-1).Validate())
}

func TestCompileNoFusion(t *testing.T) {
	prog, err := Compile(convScaleReLU(), catalog.New(), preset("integrated"), DefaultConfig().WithNoFusion())
	require.NoError(t, err)
	var kinds []graph.Kind
	for _, row := range prog.Report() {
		kinds = append(kinds, row.Kind)
		assert.Empty(t, row.Fused)
	}
	assert.Equal(t, []graph.Kind{graph.KindConvolution, graph.KindScale, graph.KindActivation}, kinds)

	// Kinds are encoded by name in the JSON report.
	data, err := json.Marshal(prog.Report()[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"convolution"`)
}
