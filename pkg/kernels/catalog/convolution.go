// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"slices"

	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/kernels"
	"github.com/gomlx/gpuplan/pkg/kernels/jit"
	"github.com/gomlx/gpuplan/pkg/support/xslices"
	"github.com/pkg/errors"
)

// fsv16BlockWidth is the number of output columns computed by one work item of the fsv16 kernel.
const fsv16BlockWidth = 8

func convolutionKernels() []kernels.Implementation {
	floats := []dtypes.DType{dtypes.Float32, dtypes.Float16}
	convFeatures := []kernels.Feature{kernels.FeatureFusedOps, kernels.FeatureBatching,
		kernels.FeatureOutputScale, kernels.FeatureBias}
	return []kernels.Implementation{
		&kernel{
			Base: kernels.NewBase("convolution_b_fs_yx_fsv16", graph.KindConvolution,
				kernels.NewKey().EnableDTypes(floats...).
					EnableInputFormats(layout.FormatBFYX, layout.FormatBFsYXFsv16).
					EnableOutputFormats(layout.FormatBFsYXFsv16).
					EnableFeatures(append(convFeatures, kernels.FeaturePadding)...).
					EnableFusedKinds(fusableKinds...),
				kernels.Priority1),
			validate: func(p *kernels.Params, caps *device.Capabilities) error {
				if !caps.SupportsSubgroup(16) {
					return errors.New("requires 16-wide subgroups")
				}
				if p.Output().Rank() != 4 || p.Output().Feature()%16 != 0 {
					return errors.Errorf("output %s features must be a multiple of 16", p.Output())
				}
				return nil
			},
			geometry: func(s *shapes) (kernels.DispatchData, error) {
				out := s.output()
				lws := [3]int{1, 1, 16}
				return dispatch([3]int{
					kernels.CeilDiv(out.SpatialDim(0), fsv16BlockWidth),
					out.SpatialDim(1),
					kernels.AlignUp(out.Feature(), 16) * out.Batch(),
				}, &lws, s.caps)
			},
			constants: func(c *jit.Constants, _ *kernels.Params, _ *device.Capabilities) {
				c.AddInt("SUB_GROUP_SIZE", 16).AddInt("OUTPUT_BLOCK_WIDTH", fsv16BlockWidth)
			},
			body: convolutionBody,
		},
		&kernel{
			Base: kernels.NewBase("convolution_1x1", graph.KindConvolution,
				planarKey(floats...).EnableFeatures(convFeatures...), kernels.Priority2),
			validate: func(p *kernels.Params, _ *device.Capabilities) error {
				attrs := p.Attrs.(graph.ConvolutionAttrs)
				weights := p.Input(1)
				if slices.ContainsFunc(weights.Dims[2:], func(dim int) bool { return dim != 1 }) {
					return errors.Errorf("weights %s are not 1x1", weights)
				}
				if !xslices.AllEqual(attrs.Strides, 1) || !xslices.AllEqual(attrs.Dilations, 1) {
					return errors.New("strides and dilations must be 1")
				}
				if !xslices.AllEqual(attrs.PadLower, 0) || !xslices.AllEqual(attrs.PadUpper, 0) {
					return errors.New("padding not supported")
				}
				return nil
			},
			geometry: func(s *shapes) (kernels.DispatchData, error) {
				out := s.output()
				return dispatch([3]int{
					kernels.AlignUp(out.SpatialDim(0)*out.SpatialDim(1)*out.SpatialDim(2), 8),
					out.Feature(),
					out.Batch(),
				}, nil, s.caps)
			},
			body: convolutionBody,
		},
		&kernel{
			Base: kernels.NewBase("convolution_bfyx_os", graph.KindConvolution,
				planarKey(floats...).EnableFeatures(append(convFeatures, kernels.FeaturePadding)...),
				kernels.Priority4),
			validate: func(_ *kernels.Params, caps *device.Capabilities) error {
				if !caps.SupportsSubgroup(16) {
					return errors.New("requires 16-wide subgroups")
				}
				return nil
			},
			geometry: func(s *shapes) (kernels.DispatchData, error) {
				out := s.output()
				lws := [3]int{1, 1, 16}
				return dispatch([3]int{
					out.SpatialDim(0),
					out.SpatialDim(1) * out.SpatialDim(2),
					kernels.AlignUp(out.Feature(), 16) * out.Batch(),
				}, &lws, s.caps)
			},
			constants: func(c *jit.Constants, _ *kernels.Params, _ *device.Capabilities) {
				c.AddInt("SUB_GROUP_SIZE", 16)
			},
			body: convolutionBody,
		},
		&kernel{
			Base:     kernels.NewBase("convolution_ref", graph.KindConvolution, fullKey(), kernels.PriorityFallback),
			geometry: spatialGeometry,
			constants: func(c *jit.Constants, p *kernels.Params, _ *device.Capabilities) {
				attrs := p.Attrs.(graph.ConvolutionAttrs)
				c.AddInt("GROUPS", max(attrs.Groups, 1))
			},
			body: convolutionBody,
		},
	}
}

const convolutionBody = `    const uint x = get_global_id(0);
    const uint y = get_global_id(1);
    const uint bf = get_global_id(2);
    ACCUMULATOR_TYPE acc = CONVOLUTION(input0, input1, x, y, bf);
#if BIAS_TERM
    acc += input2[bf % OUTPUT_FEATURE_NUM];
#endif
    output[OUTPUT_OFFSET(x, y, bf)] = TO_OUTPUT_TYPE(FUSED_OPS(acc));`
