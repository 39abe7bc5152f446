// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/kernels"
	"github.com/gomlx/gpuplan/pkg/kernels/jit"
	"github.com/gomlx/gpuplan/pkg/support/xslices"
	"github.com/pkg/errors"
)

// softmaxSplit returns the number of classes (the softmax axis) and the number of independent
// rows (all the other axes).
func softmaxSplit(l layout.Layout, attrs graph.SoftmaxAttrs) (classes, rows int) {
	axis := xslices.NormalizeIndex(attrs.Axis, l.Rank())
	classes, rows = l.Dims[axis], 1
	for ii, dim := range l.Dims {
		if ii != axis {
			rows *= dim
		}
	}
	return
}

func softmaxKernels() []kernels.Implementation {
	return []kernels.Implementation{
		&kernel{
			Base: kernels.NewBase("softmax_items_class_optimized", graph.KindSoftmax,
				planarKey(dtypes.Float32, dtypes.Float16).EnableFeatures(kernels.FeatureDynamic),
				kernels.Priority3),
			validate: func(p *kernels.Params, caps *device.Capabilities) error {
				classes, _ := softmaxSplit(p.Input(0), p.Attrs.(graph.SoftmaxAttrs))
				if classes != layout.Dynamic && !fitsLocalMemory(classes, p.Input(0).DType, caps) {
					return errors.Errorf("%d classes don't fit in local memory", classes)
				}
				return nil
			},
			geometry: func(s *shapes) (kernels.DispatchData, error) {
				in := s.input(0)
				classes, rows := softmaxSplit(in, s.attrs.(graph.SoftmaxAttrs))
				if !fitsLocalMemory(classes, in.DType, s.caps) {
					return kernels.DispatchData{}, dimError(classes, "%d classes exceed the local memory of %d bytes",
						classes, s.caps.MaxLocalMemBytes)
				}
				workers := min(kernels.AlignUp(classes, 16), max(s.caps.MaxWorkGroupSize, 1))
				for workers > 1 && workers%16 != 0 {
					workers--
				}
				lws := [3]int{workers, 1, 1}
				return dispatch([3]int{workers, rows, 1}, &lws, s.caps)
			},
			constants: func(c *jit.Constants, p *kernels.Params, _ *device.Capabilities) {
				c.AddInt("SOFTMAX_AXIS", xslices.NormalizeIndex(p.Attrs.(graph.SoftmaxAttrs).Axis, p.Input(0).Rank()))
			},
			body: `    const uint lid = get_local_id(0);
    const uint row = get_global_id(1);
    __local ACCUMULATOR_TYPE items[MAX_CLASSES];
    LOAD_CLASSES(items, input0, row, lid);
    ACCUMULATOR_TYPE denominator = WORK_GROUP_SUM_EXP(items);
    STORE_CLASSES(output, items, row, lid, denominator, FUSED_OPS);`,
		},
		&kernel{
			Base: kernels.NewBase("softmax_ref", graph.KindSoftmax, fullKey(), kernels.PriorityFallback),
			geometry: func(s *shapes) (kernels.DispatchData, error) {
				_, rows := softmaxSplit(s.input(0), s.attrs.(graph.SoftmaxAttrs))
				return dispatch([3]int{rows, 1, 1}, nil, s.caps)
			},
			constants: func(c *jit.Constants, p *kernels.Params, _ *device.Capabilities) {
				c.AddInt("SOFTMAX_AXIS", xslices.NormalizeIndex(p.Attrs.(graph.SoftmaxAttrs).Axis, p.Input(0).Rank()))
			},
			body: `    const uint row = get_global_id(0);
    SOFTMAX_ROW(output, input0, row, FUSED_OPS);`,
		},
	}
}

// fitsLocalMemory returns whether the values of one softmax row fit in the local memory.
func fitsLocalMemory(classes int, dtype dtypes.DType, caps *device.Capabilities) bool {
	return int64(classes)*int64(dtype.Size()) <= caps.MaxLocalMemBytes
}
