// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"fmt"
	"slices"

	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/postops"
)

// Params are the fully resolved parameters of one node kernel selection is based on.
type Params struct {
	NodeID string
	Kind   graph.Kind
	Attrs  any

	// Inputs are the layouts of the primitive's own inputs, Outputs the layouts of the node outputs.
	Inputs, Outputs []layout.Layout

	// FusedInputs are the layouts of the node dependencies after the primitive's own inputs:
	// FusedInputs[i] is dependency len(Inputs)+i.
	FusedInputs []layout.Layout

	// FusedKinds are the kinds of the fused operations still live after the post-op optimizer.
	FusedKinds []graph.Kind

	PostOps     postops.Chain
	PostOpAttrs postops.Attrs
}

// NewParams collects the parameters of the node h, given its optimized post-op chain.
// Layouts must have been computed before.
func NewParams(p *graph.Program, h graph.NodeHandle, chain postops.Chain, attrs postops.Attrs) (*Params, error) {
	n := p.Node(h)
	params := &Params{
		NodeID:      n.ID(),
		Kind:        n.Kind(),
		Attrs:       n.Attrs(),
		PostOps:     chain,
		PostOpAttrs: attrs,
	}
	for ii, dep := range n.Dependencies() {
		l, err := p.OutputLayout(dep.Node, dep.Output, true)
		if err != nil {
			return nil, err
		}
		if ii < n.NumPrimaryInputs() {
			params.Inputs = append(params.Inputs, l)
		} else {
			params.FusedInputs = append(params.FusedInputs, l)
		}
	}
	for k := range n.NumOutputs() {
		l, err := p.OutputLayout(h, k, true)
		if err != nil {
			return nil, err
		}
		params.Outputs = append(params.Outputs, l)
	}
	fused := n.FusedOps()
	for _, op := range chain {
		if !op.OptimizedOut {
			params.FusedKinds = append(params.FusedKinds, fused[op.Desc].Prim.Kind)
		}
	}
	return params, nil
}

// WithLayouts returns a copy of the params with the layouts replaced, typically by concrete ones:
// deps are the layouts of all the node dependencies, in order.
func (p *Params) WithLayouts(deps, outputs []layout.Layout) *Params {
	p2 := *p
	p2.Inputs = slices.Clone(deps[:len(p.Inputs)])
	p2.FusedInputs = slices.Clone(deps[len(p.Inputs):])
	p2.Outputs = slices.Clone(outputs)
	return &p2
}

// Dependencies returns the layouts of all the node dependencies: inputs then fused inputs.
func (p *Params) Dependencies() []layout.Layout {
	return append(slices.Clone(p.Inputs), p.FusedInputs...)
}

// IsDynamic returns whether any input or output has dynamic dimensions.
func (p *Params) IsDynamic() bool {
	for _, l := range p.Inputs {
		if l.IsDynamic() {
			return true
		}
	}
	for _, l := range p.Outputs {
		if l.IsDynamic() {
			return true
		}
	}
	return false
}

// Input returns the layout of the primitive input idx.
func (p *Params) Input(idx int) layout.Layout { return p.Inputs[idx] }

// Output returns the layout of output 0.
func (p *Params) Output() layout.Layout { return p.Outputs[0] }

// RequiredKey returns the key bits an implementation must support to handle the parameters.
func (p *Params) RequiredKey() Key {
	var k Key
	for _, l := range p.Inputs {
		k.InputDTypes |= l.DType.Bit()
		k.InputFormats |= l.Format.Bit()
		if l.HasPadding() {
			k.Features |= FeaturePadding
		}
	}
	for _, l := range p.Outputs {
		k.OutputDTypes |= l.DType.Bit()
		k.OutputFormats |= l.Format.Bit()
	}
	if p.IsDynamic() {
		k.Features |= FeatureDynamic
	}
	if len(p.FusedKinds) > 0 {
		k.Features |= FeatureFusedOps
		for _, kind := range p.FusedKinds {
			k.FusedKinds |= kind.Bit()
		}
	}
	if out := p.Output(); out.Batch() > 1 || out.Batch() == layout.Dynamic {
		k.Features |= FeatureBatching
	}
	if p.PostOpAttrs.HasOutputScale {
		k.Features |= FeatureOutputScale
	}
	if len(p.Inputs) > 0 && p.Output().DType != p.Inputs[0].DType {
		k.Features |= FeatureDifferentTypes
	}
	switch attrs := p.Attrs.(type) {
	case graph.ConvolutionAttrs:
		if attrs.Groups > 1 {
			k.Features |= FeatureGroupedConv
		}
		if len(p.Inputs) > 2 {
			k.Features |= FeatureBias
		}
	case graph.FullyConnectedAttrs:
		if len(p.Inputs) > 2 {
			k.Features |= FeatureBias
		}
	}
	return k
}

// String implements fmt.Stringer.
func (p *Params) String() string {
	return fmt.Sprintf("%s(%q) inputs=%v outputs=%v fused=%v", p.Kind, p.NodeID, p.Inputs, p.Outputs, p.FusedKinds)
}
