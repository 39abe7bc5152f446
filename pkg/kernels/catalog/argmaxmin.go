// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/kernels"
	"github.com/gomlx/gpuplan/pkg/kernels/jit"
	"github.com/gomlx/gpuplan/pkg/support/xslices"
)

// arg_max_min_axis sorts each slice along the axis in two scratch buffers: the candidate indices
// (int32) and the candidate values (float32).
func argMaxMinKernels() []kernels.Implementation {
	return []kernels.Implementation{
		&kernel{
			Base:            kernels.NewBase("arg_max_min_axis", graph.KindArgMaxMin, fullKey(), kernels.Priority7),
			internalBuffers: 2,
			geometry: func(s *shapes) (kernels.DispatchData, error) {
				in := s.input(0)
				attrs := s.attrs.(graph.ArgMaxMinAttrs)
				axis := xslices.NormalizeIndex(attrs.Axis, in.Rank())
				axisDim := in.Dims[axis]
				if attrs.TopK > axisDim {
					return kernels.DispatchData{}, dimError(axisDim, "top_k %d larger than the axis dimension", attrs.TopK)
				}
				count := in.Count() / axisDim
				scratch := int64(in.Count())
				return dispatch([3]int{count, 1, 1}, nil, s.caps,
					scratch*int64(dtypes.Int32.Size()), scratch*int64(dtypes.Float32.Size()))
			},
			constants: func(c *jit.Constants, p *kernels.Params, _ *device.Capabilities) {
				attrs := p.Attrs.(graph.ArgMaxMinAttrs)
				c.Add("ARG_MODE", attrs.Mode.String()).
					AddInt("ARG_AXIS", xslices.NormalizeIndex(attrs.Axis, p.Input(0).Rank())).
					AddInt("TOP_K", attrs.TopK).
					AddBool("WITH_VALUES", attrs.WithValues)
			},
			body: `    const uint slice = get_global_id(0);
    SORT_AXIS(input0, internal0, internal1, slice);
    WRITE_TOP_K(output, internal0, internal1, slice);`,
		},
	}
}
