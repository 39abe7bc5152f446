// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package passes

import (
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BlockedFeatureAlignment is the feature count multiple required to prefer a blocked format.
const BlockedFeatureAlignment = 16

// PreferFormats sets the output format of convolutions to b_fs_yx_fsv16 when their output
// feature count is a multiple of 16, they have rank 4 with a float dtype, and the device has
// 16-wide subgroups and supports the format. Users' layouts are invalidated accordingly.
//
// It returns the number of nodes changed.
func PreferFormats(p *graph.Program, caps *device.Capabilities) (int, error) {
	if !caps.SupportsSubgroup(BlockedFeatureAlignment) || !caps.SupportsFormat(layout.FormatBFsYXFsv16) {
		return 0, nil
	}
	changed := 0
	for _, h := range p.Order() {
		n := p.Node(h)
		if n.Kind() != graph.KindConvolution || n.PreferredFormat() != layout.FormatAny {
			continue
		}
		l, err := p.OutputLayout(h, 0, true)
		if err != nil {
			return changed, err
		}
		if l.Rank() != 4 || !l.DType.IsFloat() || l.Feature() <= 0 || l.Feature()%BlockedFeatureAlignment != 0 {
			continue
		}
		if err := p.SetPreferredFormat(h, layout.FormatBFsYXFsv16); err != nil {
			return changed, errors.WithMessagef(err, "setting preferred format of %s", n)
		}
		klog.V(2).Infof("formats: %s output set to %s", n, layout.FormatBFsYXFsv16)
		changed++
	}
	return changed, nil
}

// SeedLayouts computes the layout of every output of every node, in order.
// It returns the number of nodes.
func SeedLayouts(p *graph.Program) (int, error) {
	order := p.Order()
	for _, h := range order {
		for k := range p.Node(h).NumOutputs() {
			if _, err := p.OutputLayout(h, k, true); err != nil {
				return 0, err
			}
		}
	}
	return len(order), nil
}

// AssignOrderIDs assigns dense unique order ids to the nodes, following the dependency order.
// It returns the number of nodes.
func AssignOrderIDs(p *graph.Program) (int, error) {
	order := p.Order()
	for ii, h := range order {
		p.Node(h).SetUniqueOrderID(ii)
	}
	return len(order), nil
}
