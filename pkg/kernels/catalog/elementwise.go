// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/kernels"
	"github.com/gomlx/gpuplan/pkg/kernels/jit"
	"github.com/pkg/errors"
)

const elementwiseBody = `    const uint idx = get_global_id(0);
    ACCUMULATOR_TYPE acc = OPERATION(input0[INPUT0_OFFSET(idx)], idx);
    output[OUTPUT_OFFSET(idx)] = TO_OUTPUT_TYPE(FUSED_OPS(acc));`

func activationKernels() []kernels.Implementation {
	return []kernels.Implementation{
		&kernel{
			Base:     kernels.NewBase("activation_ref", graph.KindActivation, fullKey(), kernels.PriorityFallback),
			geometry: elementwiseGeometry,
			constants: func(c *jit.Constants, p *kernels.Params, _ *device.Capabilities) {
				attrs := p.Attrs.(graph.ActivationAttrs)
				c.Add("ACTIVATION_FUNC", attrs.Func.String()).
					AddFloat("ACTIVATION_ALPHA", attrs.Alpha).
					AddFloat("ACTIVATION_BETA", attrs.Beta)
			},
			body: elementwiseBody,
		},
	}
}

func scaleKernels() []kernels.Implementation {
	return []kernels.Implementation{
		&kernel{
			Base:     kernels.NewBase("scale_ref", graph.KindScale, fullKey(), kernels.PriorityFallback),
			geometry: elementwiseGeometry,
			constants: func(c *jit.Constants, p *kernels.Params, _ *device.Capabilities) {
				c.AddBool("HAS_SHIFT", len(p.Inputs) > 2)
			},
			body: elementwiseBody,
		},
	}
}

func quantizeKernels() []kernels.Implementation {
	return []kernels.Implementation{
		&kernel{
			Base: kernels.NewBase("quantize_scale_shift_opt", graph.KindQuantize,
				kernels.NewKey().EnableInputDTypes(dtypes.Float32, dtypes.Float16).
					EnableOutputDTypes(dtypes.Float32, dtypes.Float16, dtypes.Int8, dtypes.Uint8).
					EnableAllFormats().
					EnableFeatures(kernels.FeatureDynamic, kernels.FeatureBatching, kernels.FeatureDifferentTypes,
						kernels.FeatureFusedOps).
					EnableFusedKinds(fusableKinds...),
				kernels.Priority2),
			validate: func(p *kernels.Params, _ *device.Capabilities) error {
				// Ranges must be scalars or per feature, so they fold into one scale and shift per channel.
				for ii, in := range p.Inputs[1:] {
					for axis, dim := range in.Dims {
						if axis != 1 && dim != 1 {
							return errors.Errorf("range input #%d %s is not per-channel", ii+1, in)
						}
					}
				}
				return nil
			},
			geometry: spatialGeometry,
			constants: func(c *jit.Constants, p *kernels.Params, _ *device.Capabilities) {
				c.AddInt("LEVELS", p.Attrs.(graph.QuantizeAttrs).Levels)
			},
			body: `    const uint xyz = get_global_id(0);
    const uint f = get_global_id(1);
    const uint b = get_global_id(2);
    const uint idx = OUTPUT_OFFSET(b, f, xyz);
    ACCUMULATOR_TYPE acc = round(input0[idx] * SCALE(f) + SHIFT(f));
    output[idx] = TO_OUTPUT_TYPE(FUSED_OPS(acc * OUT_SCALE(f) + OUT_SHIFT(f)));`,
		},
		&kernel{
			Base:     kernels.NewBase("quantize_ref", graph.KindQuantize, fullKey(), kernels.PriorityFallback),
			geometry: elementwiseGeometry,
			constants: func(c *jit.Constants, p *kernels.Params, _ *device.Capabilities) {
				c.AddInt("LEVELS", p.Attrs.(graph.QuantizeAttrs).Levels)
			},
			body: elementwiseBody,
		},
	}
}
