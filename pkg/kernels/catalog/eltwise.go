// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/kernels"
	"github.com/gomlx/gpuplan/pkg/kernels/jit"
	"github.com/pkg/errors"
)

// vectorSize is the number of elements loaded at once by eltwise_vload8.
const vectorSize = 8

func eltwiseKernels() []kernels.Implementation {
	return []kernels.Implementation{
		&kernel{
			Base: kernels.NewBase("eltwise_vload8", graph.KindEltwise,
				planarKey(dtypes.Float32, dtypes.Float16, dtypes.Int8, dtypes.Uint8, dtypes.Int32).
					EnableFeatures(kernels.FeatureDynamic),
				kernels.Priority2),
			validate: func(p *kernels.Params, _ *device.Capabilities) error {
				out := p.Output()
				for ii, in := range p.Inputs {
					if in.DType != out.DType || !in.EqualDims(out) {
						return errors.Errorf("input #%d %s is broadcast to %s", ii, in, out)
					}
				}
				// The innermost dimension must be static and aligned, so every resolved shape is.
				if inner := out.Dims[out.Rank()-1]; inner == layout.Dynamic || inner%vectorSize != 0 {
					return errors.Errorf("innermost dimension of %s not a multiple of %d", out, vectorSize)
				}
				return nil
			},
			geometry: func(s *shapes) (kernels.DispatchData, error) {
				count := s.output().Count()
				if count%vectorSize != 0 {
					return kernels.DispatchData{}, dimError(count, "element count not a multiple of %d", vectorSize)
				}
				return dispatch([3]int{count / vectorSize, 1, 1}, nil, s.caps)
			},
			constants: func(c *jit.Constants, p *kernels.Params, _ *device.Capabilities) {
				c.AddInt("VECTOR_SIZE", vectorSize)
				eltwiseConstants(c, p)
			},
			body: `    const uint idx = get_global_id(0) * VECTOR_SIZE;
    VECTOR_TYPE acc = vload8(0, input0 + idx);
    ELTWISE_REDUCE(acc, idx);
    vstore8(FUSED_OPS(acc), 0, output + idx);`,
		},
		&kernel{
			Base:      kernels.NewBase("eltwise_ref", graph.KindEltwise, fullKey(), kernels.PriorityFallback),
			geometry:  elementwiseGeometry,
			constants: func(c *jit.Constants, p *kernels.Params, _ *device.Capabilities) { eltwiseConstants(c, p) },
			body: `    const uint idx = get_global_id(0);
    ACCUMULATOR_TYPE acc = input0[INPUT0_OFFSET(idx)];
    ELTWISE_REDUCE(acc, idx);
    output[OUTPUT_OFFSET(idx)] = TO_OUTPUT_TYPE(FUSED_OPS(acc));`,
		},
	}
}

func eltwiseConstants(c *jit.Constants, p *kernels.Params) {
	c.Add("ELTWISE_MODE", p.Attrs.(graph.EltwiseAttrs).Mode.String())
	c.AddInt("ELTWISE_INPUTS", len(p.Inputs))
}
