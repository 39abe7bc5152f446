// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/graph"
)

// Feature is a bitset of optional parameter features a kernel implementation may support.
type Feature uint32

const (
	// FeatureDynamic means some dimension is only known at dispatch time.
	FeatureDynamic Feature = 1 << iota

	// FeatureFusedOps means the node has live fused post-ops.
	FeatureFusedOps

	// FeatureBatching means batch > 1 (or dynamic).
	FeatureBatching

	// FeaturePadding means some input has explicit padding.
	FeaturePadding

	// FeatureOutputScale means the post-op chain uses the output scale.
	FeatureOutputScale

	// FeatureDifferentTypes means the output dtype differs from the input dtype.
	FeatureDifferentTypes

	// FeatureGroupedConv means a convolution with groups > 1.
	FeatureGroupedConv

	// FeatureBias means a convolution or fully connected with a bias input.
	FeatureBias

	featureLast
)

var featureNames = []string{"dynamic", "fused_ops", "batching", "padding", "output_scale", "different_types", "grouped_conv", "bias"}

// String implements fmt.Stringer.
func (f Feature) String() string {
	var names []string
	for ii, name := range featureNames {
		if f&(1<<ii) != 0 {
			names = append(names, name)
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}

// Key is the fast compatibility check between the parameters of a primitive and a kernel
// implementation: each field is a bitset. An implementation supports the parameters if its key
// includes every bit required by them.
type Key struct {
	InputDTypes, OutputDTypes   uint32
	InputFormats, OutputFormats uint32
	Features                    Feature
	FusedKinds                  uint32
}

// NewKey returns an empty key: it supports nothing.
func NewKey() Key { return Key{} }

// EnableInputDTypes adds the dtypes to the supported input dtypes.
func (k Key) EnableInputDTypes(list ...dtypes.DType) Key {
	for _, dtype := range list {
		k.InputDTypes |= dtype.Bit()
	}
	return k
}

// EnableOutputDTypes adds the dtypes to the supported output dtypes.
func (k Key) EnableOutputDTypes(list ...dtypes.DType) Key {
	for _, dtype := range list {
		k.OutputDTypes |= dtype.Bit()
	}
	return k
}

// EnableDTypes adds the dtypes to both the supported input and output dtypes.
func (k Key) EnableDTypes(list ...dtypes.DType) Key {
	return k.EnableInputDTypes(list...).EnableOutputDTypes(list...)
}

// EnableAllDTypes enables every dtype for inputs and outputs.
func (k Key) EnableAllDTypes() Key {
	return k.EnableDTypes(dtypes.All()...)
}

// EnableInputFormats adds the formats to the supported input formats.
func (k Key) EnableInputFormats(list ...layout.Format) Key {
	for _, format := range list {
		k.InputFormats |= format.Bit()
	}
	return k
}

// EnableOutputFormats adds the formats to the supported output formats.
func (k Key) EnableOutputFormats(list ...layout.Format) Key {
	for _, format := range list {
		k.OutputFormats |= format.Bit()
	}
	return k
}

// EnableFormats adds the formats to both the supported input and output formats.
func (k Key) EnableFormats(list ...layout.Format) Key {
	return k.EnableInputFormats(list...).EnableOutputFormats(list...)
}

// EnableAllFormats enables every format for inputs and outputs.
func (k Key) EnableAllFormats() Key {
	return k.EnableFormats(layout.Formats()...)
}

// EnableFeatures adds the features.
func (k Key) EnableFeatures(features ...Feature) Key {
	for _, f := range features {
		k.Features |= f
	}
	return k
}

// EnableFusedKinds adds the kinds of primitives that can be fused as post-ops.
func (k Key) EnableFusedKinds(kinds ...graph.Kind) Key {
	for _, kind := range kinds {
		k.FusedKinds |= kind.Bit()
	}
	return k
}

// Supports returns whether k includes all the bits of required.
func (k Key) Supports(required Key) bool {
	return k.missing(required) == ""
}

// missing returns a description of the bits of required not in k, or "" if none.
func (k Key) missing(required Key) string {
	var parts []string
	check := func(name string, have, want uint32) {
		if diff := want &^ have; diff != 0 {
			parts = append(parts, fmt.Sprintf("%s(%d bits)", name, bits.OnesCount32(diff)))
		}
	}
	check("input_dtypes", k.InputDTypes, required.InputDTypes)
	check("output_dtypes", k.OutputDTypes, required.OutputDTypes)
	check("input_formats", k.InputFormats, required.InputFormats)
	check("output_formats", k.OutputFormats, required.OutputFormats)
	if diff := required.Features &^ k.Features; diff != 0 {
		parts = append(parts, "features"+diff.String())
	}
	check("fused_kinds", k.FusedKinds, required.FusedKinds)
	return strings.Join(parts, ", ")
}
