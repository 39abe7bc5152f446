// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"fmt"

	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/kernels"
	"github.com/gomlx/gpuplan/pkg/kernels/jit"
	"github.com/pkg/errors"
)

const copyBody = `    const uint idx = get_global_id(0);
    output[OUTPUT_OFFSET(idx)] = TO_OUTPUT_TYPE(input0[INPUT0_OFFSET(idx)]);`

func poolingKernels() []kernels.Implementation {
	return []kernels.Implementation{
		&kernel{
			Base:     kernels.NewBase("pooling_ref", graph.KindPooling, fullKey(), kernels.PriorityFallback),
			geometry: spatialGeometry,
			constants: func(c *jit.Constants, p *kernels.Params, _ *device.Capabilities) {
				attrs := p.Attrs.(graph.PoolingAttrs)
				c.Add("POOLING_MODE", attrs.Mode.String())
				for ii, size := range attrs.Size {
					c.AddInt(fmt.Sprintf("POOL_SIZE_%d", ii), size)
				}
			},
			body: `    const uint xyz = get_global_id(0);
    const uint f = get_global_id(1);
    const uint b = get_global_id(2);
    ACCUMULATOR_TYPE acc = POOL_WINDOW(input0, b, f, xyz);
    output[OUTPUT_OFFSET(b, f, xyz)] = TO_OUTPUT_TYPE(FUSED_OPS(acc));`,
		},
	}
}

func reorderKernels() []kernels.Implementation {
	return []kernels.Implementation{
		&kernel{
			Base: kernels.NewBase("reorder_fast_b1", graph.KindReorder,
				kernels.NewKey().EnableAllDTypes().
					EnableFormats(layout.FormatBFYX, layout.FormatBFsYXFsv16, layout.FormatBFsYXFsv32).
					EnableFeatures(kernels.FeatureDifferentTypes),
				kernels.Priority2),
			validate: func(p *kernels.Params, _ *device.Capabilities) error {
				if p.Input(0).Batch() != 1 {
					return errors.Errorf("batch of %s must be 1", p.Input(0))
				}
				if p.Input(0).HasPadding() {
					return errors.New("padded inputs not supported")
				}
				return nil
			},
			geometry: func(s *shapes) (kernels.DispatchData, error) {
				return dispatch([3]int{kernels.AlignUp(s.output().PhysicalCount(), 16), 1, 1}, nil, s.caps)
			},
			body: copyBody,
		},
		&kernel{
			Base:     kernels.NewBase("reorder_ref", graph.KindReorder, fullKey(), kernels.PriorityFallback),
			geometry: elementwiseGeometry,
			body:     copyBody,
		},
	}
}

func reshapeKernels() []kernels.Implementation {
	return []kernels.Implementation{
		&kernel{
			Base:     kernels.NewBase("reshape_ref", graph.KindReshape, fullKey(), kernels.PriorityFallback),
			geometry: elementwiseGeometry,
			body:     copyBody,
		},
	}
}

func concatenationKernels() []kernels.Implementation {
	return []kernels.Implementation{
		&kernel{
			Base: kernels.NewBase("concatenation_ref", graph.KindConcatenation, fullKey(), kernels.PriorityFallback),
			geometry: func(s *shapes) (kernels.DispatchData, error) {
				// One work item per element of the largest input, the kernel loops over the inputs.
				largest := 1
				for _, in := range s.inputs {
					largest = max(largest, in.PhysicalCount())
				}
				return dispatch([3]int{largest, len(s.inputs), 1}, nil, s.caps)
			},
			constants: func(c *jit.Constants, p *kernels.Params, _ *device.Capabilities) {
				c.AddInt("CONCAT_AXIS", p.Attrs.(graph.ConcatenationAttrs).Axis).AddInt("CONCAT_INPUTS", len(p.Inputs))
			},
			body: `    const uint idx = get_global_id(0);
    const uint input = get_global_id(1);
    CONCAT_COPY(input, idx);`,
		},
	}
}
