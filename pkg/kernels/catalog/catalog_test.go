// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"testing"

	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/kernels"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func preset(name string) *device.Capabilities {
	return must.M1(device.Preset(name))
}

func convParams(format layout.Format, kernelSize int, dtype dtypes.DType) *kernels.Params {
	pad := (kernelSize - 1) / 2
	attrs := graph.ConvolutionAttrs{Groups: 1}
	if pad > 0 {
		attrs.PadLower, attrs.PadUpper = []int{pad, pad}, []int{pad, pad}
	}
	return &kernels.Params{
		NodeID: "conv",
		Kind:   graph.KindConvolution,
		Attrs:  attrs,
		Inputs: []layout.Layout{
			layout.Planar(dtype, 1, 8, 16, 16),
			layout.Planar(dtype, 32, 8, kernelSize, kernelSize),
		},
		Outputs: []layout.Layout{layout.Make(dtype, format, 1, 32, 16, 16)},
	}
}

func TestCatalogCoversAllKinds(t *testing.T) {
	reg := New()
	for kind := graph.KindInvalid; kind < graph.KindLast; kind++ {
		impls := reg.Implementations(kind)
		if !kind.IsExecutable() {
			assert.Emptyf(t, impls, "kind %s", kind)
			continue
		}
		require.NotEmptyf(t, impls, "kind %s", kind)
		fallback := 0
		for _, impl := range impls {
			assert.Equal(t, kind, impl.Kind())
			if impl.Priority(nil, nil) == kernels.PriorityFallback {
				fallback++
			}
		}
		if kind != graph.KindArgMaxMin {
			assert.Equalf(t, 1, fallback, "kind %s should have exactly one reference kernel", kind)
		}
	}
	_, found := reg.Lookup("softmax_items_class_optimized")
	assert.True(t, found)
}

func TestConvolutionSelection(t *testing.T) {
	reg := New()
	tests := []struct {
		name   string
		params *kernels.Params
		caps   string
		want   string
	}{
		{"blocked", convParams(layout.FormatBFsYXFsv16, 3, dtypes.Float32), "integrated", "convolution_b_fs_yx_fsv16"},
		{"1x1", convParams(layout.FormatBFYX, 1, dtypes.Float32), "integrated", "convolution_1x1"},
		{"3x3-planar", convParams(layout.FormatBFYX, 3, dtypes.Float16), "integrated", "convolution_bfyx_os"},
		{"no-subgroups", convParams(layout.FormatBFYX, 3, dtypes.Float32), "minimal", "convolution_ref"},
		{"1x1-minimal", convParams(layout.FormatBFYX, 1, dtypes.Float32), "minimal", "convolution_1x1"},
		{"int8", convParams(layout.FormatBFYX, 1, dtypes.Int8), "discrete", "convolution_ref"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			selected, err := reg.Select(tt.params, preset(tt.caps))
			require.NoError(t, err)
			assert.Equal(t, tt.want, selected.Kernel)
			assert.Equal(t, tt.want+"_conv", selected.EntryPoint)
			assert.Contains(t, selected.Source, "__kernel void "+tt.want+"_conv(")
			assert.Equal(t, []kernels.Argument{{Role: kernels.ArgInput, Index: 0}, {Role: kernels.ArgInput, Index: 1}, {Role: kernels.ArgOutput, Index: 0}},
				selected.Arguments)
		})
	}

	// Blocked dispatch geometry: 16 columns in blocks of 8, 16 rows, 32 features in slices of 16.
	selected, err := reg.Select(convParams(layout.FormatBFsYXFsv16, 3, dtypes.Float32), preset("integrated"))
	require.NoError(t, err)
	assert.Equal(t, [3]int{2, 16, 32}, selected.Dispatch.GWS)
	assert.Equal(t, [3]int{1, 1, 16}, selected.Dispatch.LWS)
	value, _ := selected.Constants.Lookup("SUB_GROUP_SIZE")
	assert.Equal(t, "16", value)

	// Half precision is not supported by the minimal device, not even by the reference kernel.
	_, err = reg.Select(convParams(layout.FormatBFYX, 1, dtypes.Float16), preset("minimal"))
	var noKernel *kernels.NoSuitableKernelError
	require.True(t, errors.As(err, &noKernel))
	assert.Len(t, noKernel.Rejections, 4)
}

func TestSelectionDeterminism(t *testing.T) {
	reg := New()
	caps := preset("integrated")
	first, err := reg.Select(convParams(layout.FormatBFsYXFsv16, 3, dtypes.Float32), caps)
	require.NoError(t, err)
	for range 5 {
		again, err := New().Select(convParams(layout.FormatBFsYXFsv16, 3, dtypes.Float32), caps.Clone())
		require.NoError(t, err)
		assert.Equal(t, first.Kernel, again.Kernel)
		assert.Equal(t, first.Dispatch, again.Dispatch)
		assert.Equal(t, first.Source, again.Source)
		assert.Equal(t, first.Constants.Entries(), again.Constants.Entries())
	}
}

func TestDynamicEltwise(t *testing.T) {
	reg := New()
	caps := preset("integrated")
	l := layout.Planar(dtypes.Float32, 1, 64).WithAxisName(0, "batch")
	params := &kernels.Params{
		NodeID:  "sum",
		Kind:    graph.KindEltwise,
		Attrs:   graph.EltwiseAttrs{Mode: graph.EltwiseSum},
		Inputs:  []layout.Layout{l, l},
		Outputs: []layout.Layout{l},
	}
	selected, err := reg.Select(params, caps)
	require.NoError(t, err)
	assert.Equal(t, "eltwise_vload8", selected.Kernel)
	require.True(t, selected.IsDynamic())
	assert.Contains(t, selected.Arguments, kernels.Argument{Role: kernels.ArgScalar, Index: 2})

	concrete := layout.Planar(dtypes.Float32, 4, 64)
	dispatch, err := selected.UpdateDispatch([]layout.Layout{concrete, concrete}, []layout.Layout{concrete})
	require.NoError(t, err)
	assert.Equal(t, [3]int{32, 1, 1}, dispatch.GWS)
	assert.Equal(t, [3]int{32, 1, 1}, dispatch.LWS)

	// Unresolved layouts can't be dispatched.
	_, err = selected.UpdateDispatch([]layout.Layout{l, l}, []layout.Layout{l})
	var updateErr *kernels.DispatchUpdateError
	require.True(t, errors.As(err, &updateErr))
	assert.Equal(t, "sum", updateErr.NodeID)
	assert.Equal(t, "eltwise_vload8", updateErr.Kernel)

	// Broadcast inputs go to the reference kernel.
	params.Inputs[1] = layout.Planar(dtypes.Float32, 1, 1)
	selected, err = reg.Select(params, caps)
	require.NoError(t, err)
	assert.Equal(t, "eltwise_ref", selected.Kernel)
}

func TestSoftmaxDispatchUpdateError(t *testing.T) {
	reg := New()
	caps := preset("integrated")
	l := layout.Planar(dtypes.Float32, 2, 10).WithAxisName(1, "classes")
	params := &kernels.Params{
		NodeID:  "softmax",
		Kind:    graph.KindSoftmax,
		Attrs:   graph.SoftmaxAttrs{Axis: -1},
		Inputs:  []layout.Layout{l},
		Outputs: []layout.Layout{l},
	}
	selected, err := reg.Select(params, caps)
	require.NoError(t, err)
	assert.Equal(t, "softmax_items_class_optimized", selected.Kernel)

	small := layout.Planar(dtypes.Float32, 2, 100)
	dispatch, err := selected.UpdateDispatch([]layout.Layout{small}, []layout.Layout{small})
	require.NoError(t, err)
	assert.Equal(t, [3]int{112, 2, 1}, dispatch.GWS)
	assert.Equal(t, [3]int{112, 1, 1}, dispatch.LWS)

	// 64KB of local memory holds 16384 float32 classes.
	huge := layout.Planar(dtypes.Float32, 2, 20000)
	_, err = selected.UpdateDispatch([]layout.Layout{huge}, []layout.Layout{huge})
	var updateErr *kernels.DispatchUpdateError
	require.True(t, errors.As(err, &updateErr))
	assert.Equal(t, 20000, updateErr.Dim)
	assert.Equal(t, "softmax", updateErr.NodeID)

	// Statically too large: the reference kernel is selected instead.
	params.Inputs = []layout.Layout{huge}
	params.Outputs = []layout.Layout{huge}
	selected, err = reg.Select(params, caps)
	require.NoError(t, err)
	assert.Equal(t, "softmax_ref", selected.Kernel)
	assert.False(t, selected.IsDynamic())
}

func TestArgMaxMinInternalBuffers(t *testing.T) {
	in := layout.Planar(dtypes.Float32, 2, 3, 10)
	attrs := graph.ArgMaxMinAttrs{Mode: graph.ArgMax, Axis: 2, TopK: 3}
	params := &kernels.Params{
		NodeID:  "topk",
		Kind:    graph.KindArgMaxMin,
		Attrs:   attrs,
		Inputs:  []layout.Layout{in},
		Outputs: []layout.Layout{layout.Planar(dtypes.Int32, 2, 3, 3)},
	}
	selected, err := New().Select(params, preset("minimal"))
	require.NoError(t, err)
	assert.Equal(t, "arg_max_min_axis", selected.Kernel)
	assert.Equal(t, []int64{60 * 4, 60 * 4}, selected.Dispatch.InternalBuffers)
	assert.Equal(t, [3]int{6, 1, 1}, selected.Dispatch.GWS)
	assert.Contains(t, selected.Arguments, kernels.Argument{Role: kernels.ArgInternalBuffer, Index: 1})
	value, _ := selected.Constants.Lookup("TOP_K")
	assert.Equal(t, "3", value)
}
