// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package topology

import (
	"testing"

	"github.com/gomlx/gpuplan/pkg/compiler"
	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/kernels/catalog"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConvBlock(t *testing.T) {
	desc, err := Load("testdata/conv_block.yaml")
	require.NoError(t, err)
	assert.Equal(t, "conv_block", desc.Name)
	topo := desc.Topology
	require.Len(t, topo.Primitives(), 6)

	x, found := topo.Lookup("x")
	require.True(t, found)
	assert.Equal(t, graph.KindInput, x.Kind)
	assert.Equal(t, layout.Planar(dtypes.Float32, 1, 16, 8, 8), x.Attrs.(graph.InputAttrs).Layout)

	w, _ := topo.Lookup("w")
	values := w.Attrs.(graph.DataAttrs).Buffer.Values()
	assert.Equal(t, []float32{-0.25, -0.125, 0, 0.125, 0.25, -0.25}, values[:6])

	conv, _ := topo.Lookup("conv")
	assert.Equal(t, []graph.InputRef{graph.In("x"), graph.In("w")}, conv.Inputs)
	assert.Equal(t, graph.ConvolutionAttrs{PadLower: []int{1, 1}, PadUpper: []int{1, 1}}, conv.Attrs)

	relu, _ := topo.Lookup("relu")
	assert.Equal(t, graph.ActivationAttrs{Func: graph.ActivationRelu}, relu.Attrs)
	assert.Equal(t, []graph.InputRef{graph.In("relu")}, topo.Outputs())

	caps := must.M1(device.Preset("integrated"))
	prog, err := compiler.Compile(topo, catalog.New(), caps, nil)
	require.NoError(t, err)
	require.Len(t, prog.Nodes(), 1)
	assert.Equal(t, []string{"scale", "relu"}, prog.Nodes()[0].Fused)
}

func TestLoadDynamic(t *testing.T) {
	desc, err := Load("testdata/dynamic_sum.yaml")
	require.NoError(t, err)
	a, _ := desc.Topology.Lookup("a")
	l := a.Attrs.(graph.InputAttrs).Layout
	assert.Equal(t, layout.Planar(dtypes.Float32, 1, 16, 4, 8).WithAxisName(0, "batch"), l)
	relu, _ := desc.Topology.Lookup("relu")
	assert.Equal(t, float32(0.1), relu.Attrs.(graph.ActivationAttrs).Alpha)

	anon := must.M1(Parse([]byte(`primitives: [{id: x, kind: input, dtype: f16, dims: ["?", 8]}]`)))
	x, _ := anon.Topology.Lookup("x")
	l = x.Attrs.(graph.InputAttrs).Layout
	assert.Equal(t, []int{layout.Dynamic, 8}, l.Dims)
	assert.Equal(t, "", l.Symbol(0))
	assert.Equal(t, dtypes.Float16, l.DType)
}

func TestLoadClassifier(t *testing.T) {
	desc, err := Load("testdata/classifier.yaml")
	require.NoError(t, err)
	topo := desc.Topology
	top, _ := topo.Lookup("top")
	assert.Equal(t, graph.ArgMaxMinAttrs{Mode: graph.ArgMax, Axis: 1, TopK: 3, WithValues: true}, top.Attrs)
	assert.Equal(t, 2, top.NumOutputs())
	assert.Equal(t, []graph.InputRef{graph.In("probs"), graph.In("top"), {ID: "top", Output: 1}}, topo.Outputs())
	bias, _ := topo.Lookup("bias")
	assert.InDelta(t, 0.9, bias.Attrs.(graph.DataAttrs).Buffer.At(9), 1e-6)

	caps := must.M1(device.Preset("discrete"))
	prog, err := compiler.Compile(topo, catalog.New(), caps, nil)
	require.NoError(t, err)
	assert.True(t, prog.IsDynamic())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name, yaml, want string
	}{
		{"syntax", `primitives: [`, "failed to parse"},
		{"empty", `name: nothing`, "no primitives"},
		{"kind", `primitives: [{id: x, kind: lstm}]`, "lstm does not belong to Kind values"},
		{"no_kind", `primitives: [{id: x}]`, "missing primitive kind"},
		{"dtype", `primitives: [{id: x, kind: input, dtype: float128, dims: [1]}]`, `unknown dtype "float128"`},
		{"zero_dim", `primitives: [{id: x, kind: input, dtype: f32, dims: [0, 3]}]`, "must be > 0"},
		{"no_dims", `primitives: [{id: x, kind: input, dtype: f32}]`, "missing dims"},
		{"rank", `primitives: [{id: x, kind: input, dtype: f32, format: byxf, dims: [1, 3]}]`, "doesn't support rank"},
		{"unknown_input", `primitives: [{id: r, kind: activation, inputs: [x], attrs: {func: relu}}]`, "unknown primitive"},
		{"bad_ref", `primitives: [{id: r, kind: activation, inputs: ["x:a"], attrs: {func: relu}}]`, "invalid reference"},
		{"activation", `primitives: [{id: x, kind: input, dtype: f32, dims: [1]}, {id: r, kind: activation, inputs: [x], attrs: {func: swish}}]`,
			"swish does not belong to ActivationFunc values"},
		{"no_func", `primitives: [{id: x, kind: input, dtype: f32, dims: [1]}, {id: r, kind: activation, inputs: [x]}]`,
			"activation needs func"},
		{"eltwise_mode", `primitives: [{id: x, kind: input, dtype: f32, dims: [1]}, {id: s, kind: eltwise, inputs: [x, x], attrs: {mode: pow}}]`,
			"unknown eltwise mode"},
		{"dynamic_constant", `primitives: [{id: c, kind: data, dtype: f32, dims: [n], values: [1]}]`, "dynamic dimensions"},
		{"value_count", `primitives: [{id: c, kind: data, dtype: f32, dims: [2], values: [1]}]`, "got 1 values"},
		{"no_values", `primitives: [{id: c, kind: data, dtype: f32, dims: [2]}]`, "needs values or fill"},
		{"both_values", `primitives: [{id: c, kind: data, dtype: f32, dims: [1], values: [1], fill: {start: 1}}]`, "only one of"},
		{"levels", `primitives: [{id: x, kind: input, dtype: f32, dims: [1]}, {id: q, kind: quantize, inputs: [x, x, x, x, x]}]`,
			"levels"},
		{"pooling_mode", `primitives: [{id: x, kind: input, dtype: f32, dims: [1, 1, 2, 2]}, {id: p, kind: pooling, inputs: [x], attrs: {mode: median}}]`,
			"unknown pooling mode"},
		{"duplicate", `primitives: [{id: x, kind: input, dtype: f32, dims: [1]}, {id: x, kind: input, dtype: f32, dims: [1]}]`,
			"duplicate primitive"},
		{"output", `{primitives: [{id: x, kind: input, dtype: f32, dims: [1]}], outputs: [y]}`, `output "y"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := Load("testdata/missing.yaml")
	require.ErrorContains(t, err, "failed to read topology")
}
