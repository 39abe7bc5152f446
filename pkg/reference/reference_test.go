// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package reference

import (
	"math"
	"testing"

	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/passes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func iota(l layout.Layout) Tensor {
	return Fill(l, func(flat int) float32 { return float32(flat) })
}

func values(dims []int, v ...float32) *graph.ConstBuffer {
	return graph.NewConstBuffer(layout.Planar(dtypes.Float32, dims...), v)
}

func evalOne(t *testing.T, topo *graph.Topology, inputs map[string]Tensor) []Tensor {
	outputs, err := EvaluateTopology(topo, inputs)
	require.NoError(t, err)
	return outputs
}

func TestPrimitives(t *testing.T) {
	t.Run("conv1x1", func(t *testing.T) {
		topo := graph.NewTopology()
		topo.Input("x", layout.Planar(dtypes.Float32, 1, 2, 2, 2))
		topo.Data("w", values([]int{1, 2, 1, 1}, 1, 2))
		topo.Data("b", values([]int{1, 1}, 1))
		topo.Convolution("conv", "x", "w", "b", graph.ConvolutionAttrs{})
		out := evalOne(t, topo, map[string]Tensor{"x": iota(layout.Planar(dtypes.Float32, 1, 2, 2, 2))})
		assert.Equal(t, []float32{9, 12, 15, 18}, out[0].Values)
		assert.Equal(t, []int{1, 1, 2, 2}, out[0].Layout.Dims)
	})

	t.Run("conv3x3", func(t *testing.T) {
		topo := graph.NewTopology()
		topo.Input("x", layout.Planar(dtypes.Float32, 1, 1, 3, 3))
		topo.Data("w", graph.FillConstBuffer(layout.Planar(dtypes.Float32, 1, 1, 3, 3), func(int) float32 { return 1 }))
		topo.Convolution("conv", "x", "w", "", graph.ConvolutionAttrs{PadLower: []int{1, 1}, PadUpper: []int{1, 1}})
		ones := Fill(layout.Planar(dtypes.Float32, 1, 1, 3, 3), func(int) float32 { return 1 })
		out := evalOne(t, topo, map[string]Tensor{"x": ones})
		assert.Equal(t, []float32{4, 6, 4, 6, 9, 6, 4, 6, 4}, out[0].Values)
	})

	t.Run("pooling", func(t *testing.T) {
		for _, tt := range []struct {
			mode graph.PoolingMode
			want []float32
		}{
			{graph.PoolingMax, []float32{5, 7}},
			{graph.PoolingAverage, []float32{2.5, 4.5}},
		} {
			topo := graph.NewTopology()
			topo.Input("x", layout.Planar(dtypes.Float32, 1, 1, 2, 4))
			topo.Pooling("pool", "x", graph.PoolingAttrs{Mode: tt.mode, Size: []int{2, 2}, Strides: []int{2, 2}})
			out := evalOne(t, topo, map[string]Tensor{"x": iota(layout.Planar(dtypes.Float32, 1, 1, 2, 4))})
			assert.Equal(t, tt.want, out[0].Values, "mode %s", tt.mode)
		}
	})

	t.Run("softmax", func(t *testing.T) {
		topo := graph.NewTopology()
		topo.Input("x", layout.Planar(dtypes.Float32, 1, 2))
		topo.Softmax("softmax", "x", -1)
		x := NewTensor(layout.Planar(dtypes.Float32, 1, 2), []float32{0, float32(math.Log(3))})
		out := evalOne(t, topo, map[string]Tensor{"x": x})
		assert.InDeltaSlice(t, []float32{0.25, 0.75}, out[0].Values, 1e-6)
	})

	t.Run("arg_max_min", func(t *testing.T) {
		x := NewTensor(layout.Planar(dtypes.Float32, 1, 4), []float32{3, 1, 4, 1})
		for _, tt := range []struct {
			mode            graph.ArgMode
			indices, values []float32
		}{
			{graph.ArgMax, []float32{2, 0}, []float32{4, 3}},
			{graph.ArgMin, []float32{1, 3}, []float32{1, 1}},
		} {
			topo := graph.NewTopology()
			topo.Input("x", x.Layout)
			topo.ArgMaxMin("top", "x", graph.ArgMaxMinAttrs{Mode: tt.mode, Axis: 1, TopK: 2, WithValues: true})
			topo.MarkOutput(graph.In("top"), graph.InputRef{ID: "top", Output: 1})
			out := evalOne(t, topo, map[string]Tensor{"x": x})
			require.Len(t, out, 2)
			assert.Equal(t, tt.indices, out[0].Values)
			assert.Equal(t, dtypes.Int32, out[0].Layout.DType)
			assert.Equal(t, tt.values, out[1].Values)
		}
	})

	t.Run("concat_reshape", func(t *testing.T) {
		topo := graph.NewTopology()
		topo.Input("a", layout.Planar(dtypes.Float32, 1, 1, 2))
		topo.Input("b", layout.Planar(dtypes.Float32, 1, 2, 2))
		topo.Concatenation("concat", 1, "a", "b")
		topo.Reshape("flat", "concat", 1, -1)
		out := evalOne(t, topo, map[string]Tensor{
			"a": NewTensor(layout.Planar(dtypes.Float32, 1, 1, 2), []float32{1, 2}),
			"b": NewTensor(layout.Planar(dtypes.Float32, 1, 2, 2), []float32{3, 4, 5, 6}),
		})
		assert.Equal(t, []int{1, 6}, out[0].Layout.Dims)
		assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, out[0].Values)
	})

	t.Run("quantize", func(t *testing.T) {
		topo := graph.NewTopology()
		topo.Input("x", layout.Planar(dtypes.Float32, 1, 4))
		topo.Data("lo", values([]int{1, 1}, 0))
		topo.Data("hi", values([]int{1, 1}, 1))
		topo.Data("olo", values([]int{1, 1}, 0))
		topo.Data("ohi", values([]int{1, 1}, 255))
		topo.Quantize("q", "x", "lo", "hi", "olo", "ohi", graph.QuantizeAttrs{Levels: 256, OutputDType: dtypes.Uint8})
		x := NewTensor(layout.Planar(dtypes.Float32, 1, 4), []float32{-1, 0.5, 1, 2})
		out := evalOne(t, topo, map[string]Tensor{"x": x})
		assert.Equal(t, []float32{0, 128, 255, 255}, out[0].Values)
	})
}

func TestMissingInput(t *testing.T) {
	topo := graph.NewTopology()
	topo.Input("x", layout.Planar(dtypes.Float32, 1, 4))
	topo.Activation("relu", "x", graph.ActivationRelu, 0, 0)
	_, err := EvaluateTopology(topo, nil)
	require.ErrorContains(t, err, `input "x" not given`)

	_, err = EvaluateTopology(topo, map[string]Tensor{"x": iota(layout.Planar(dtypes.Float32, 1, 5))})
	require.Error(t, err)
}

// TestFusionSoundness checks the fused program gives the same results as the original one.
func TestFusionSoundness(t *testing.T) {
	xLayout := layout.Planar(dtypes.Float32, 2, 3, 4, 4)
	topo := graph.NewTopology()
	topo.Input("x", xLayout)
	topo.Input("y", layout.Planar(dtypes.Float32, 2, 4, 4, 4))
	topo.Data("w", graph.FillConstBuffer(layout.Planar(dtypes.Float32, 4, 3, 3, 3),
		func(flat int) float32 { return float32(flat%7-3) / 10 }))
	topo.Convolution("conv", "x", "w", "", graph.ConvolutionAttrs{PadLower: []int{1, 1}, PadUpper: []int{1, 1}})
	topo.Data("s", values([]int{1, 4, 1, 1}, 0.5, -1, 2, 1.5))
	topo.Data("shift", values([]int{1, 4, 1, 1}, 0.1, 0.2, 0.3, 0.4))
	topo.Scale("scale", "conv", "s", "shift", graph.ScaleAttrs{})
	topo.Activation("relu", "scale", graph.ActivationRelu, 0.1, 0)
	topo.Eltwise("sum", graph.EltwiseSum, "relu", "y")
	topo.Data("two", values([]int{1, 1, 1, 1}, 2))
	topo.Eltwise("mul", graph.EltwiseProd, "sum", "two")
	topo.Activation("tanh", "mul", graph.ActivationTanh, 0, 0)

	inputs := map[string]Tensor{
		"x": Fill(xLayout, func(flat int) float32 { return float32(flat%11) / 5 }),
		"y": Fill(layout.Planar(dtypes.Float32, 2, 4, 4, 4), func(flat int) float32 { return float32(flat%5) - 2 }),
	}
	want := evalOne(t, topo, inputs)

	p := must.M1(graph.FromTopology(topo))
	_, err := passes.SeedLayouts(p)
	require.NoError(t, err)
	n, err := passes.FusePrimitives(p, must.M1(device.Preset("integrated")), passes.AllFusions())
	require.NoError(t, err)
	require.Equal(t, 5, n)
	got, err := Evaluate(p, inputs, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want[0].Layout.Dims, got[0].Layout.Dims)
	assert.InDeltaSlice(t, want[0].Values, got[0].Values, 1e-5)
}
