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

// Tile sizes of fully_connected_bf_tiled: each work item computes tileOFM outputs of tileB batches.
const (
	tileB   = 8
	tileOFM = 2
)

func fullyConnectedKernels() []kernels.Implementation {
	return []kernels.Implementation{
		&kernel{
			Base: kernels.NewBase("fully_connected_bf_tiled", graph.KindFullyConnected,
				planarKey(dtypes.Float32, dtypes.Float16).
					EnableFeatures(kernels.FeatureDynamic, kernels.FeatureBias, kernels.FeatureOutputScale),
				kernels.Priority3),
			validate: func(p *kernels.Params, caps *device.Capabilities) error {
				if !caps.SupportsSubgroup(16) {
					return errors.New("requires 16-wide subgroups")
				}
				if ofm := p.Output().Feature(); ofm%tileOFM != 0 {
					return errors.Errorf("output features %d not a multiple of %d", ofm, tileOFM)
				}
				return nil
			},
			geometry: func(s *shapes) (kernels.DispatchData, error) {
				out := s.output()
				lws := [3]int{16, 1, 1}
				return dispatch([3]int{
					kernels.AlignUp(kernels.CeilDiv(out.Feature(), tileOFM), 16),
					kernels.CeilDiv(out.Batch(), tileB),
					1,
				}, &lws, s.caps)
			},
			constants: func(c *jit.Constants, _ *kernels.Params, _ *device.Capabilities) {
				c.AddInt("SUB_GROUP_SIZE", 16).AddInt("TILE_B", tileB).AddInt("TILE_OFM", tileOFM)
			},
			body: fullyConnectedBody,
		},
		&kernel{
			Base: kernels.NewBase("fully_connected_ref", graph.KindFullyConnected, fullKey(), kernels.PriorityFallback),
			geometry: func(s *shapes) (kernels.DispatchData, error) {
				out := s.output()
				return dispatch([3]int{out.Feature(), out.Batch(), 1}, nil, s.caps)
			},
			body: fullyConnectedBody,
		},
	}
}

const fullyConnectedBody = `    const uint ofm = get_global_id(0);
    const uint b = get_global_id(1);
    ACCUMULATOR_TYPE acc = DOT(input0, input1, b, ofm);
#if BIAS_TERM
    acc += input2[ofm];
#endif
    output[b * OUTPUT_FEATURE_NUM + ofm] = TO_OUTPUT_TYPE(FUSED_OPS(acc));`
