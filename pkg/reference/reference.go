// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package reference is a host interpreter of program graphs, fused or not, on float32 values.
//
// It is slow and only meant for testing: evaluating a topology before and after the compiler
// passes must give the same results, within the tolerance of the dtypes involved.
// Physical formats are ignored: values are always stored in the row-major order of the
// logical dimensions.
package reference

import (
	"fmt"
	"slices"

	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/postops"
	"github.com/pkg/errors"
)

// Tensor holds logical values of a layout, rounded to its dtype.
type Tensor struct {
	Layout layout.Layout
	Values []float32
}

// NewTensor creates a tensor, rounding the values to the layout dtype.
// It panics if the number of values doesn't match the layout.
func NewTensor(l layout.Layout, values []float32) Tensor {
	if len(values) != l.Count() {
		panic(errors.Errorf("reference.NewTensor(%s): %d values given, %d expected", l, len(values), l.Count()))
	}
	t := Tensor{Layout: l, Values: slices.Clone(values)}
	for ii, v := range t.Values {
		t.Values[ii] = dtypes.RoundTrip(l.DType, v)
	}
	return t
}

// Fill creates a tensor with fn(flat) values.
func Fill(l layout.Layout, fn func(flat int) float32) Tensor {
	values := make([]float32, l.Count())
	for ii := range values {
		values[ii] = fn(ii)
	}
	return NewTensor(l, values)
}

// At returns the value at the indices, broadcasting axes of dimension 1.
func (t Tensor) At(indices []int) float32 {
	flat := 0
	for axis, dim := range t.Layout.Dims {
		idx := 0
		if dim > 1 {
			idx = indices[axis]
		}
		flat = flat*dim + idx
	}
	return t.Values[flat]
}

// String implements fmt.Stringer.
func (t Tensor) String() string {
	return fmt.Sprintf("%s%v", t.Layout, t.Values)
}

// ChainFn returns the post-op chain of a fused node.
type ChainFn func(h graph.NodeHandle) (postops.Chain, postops.Attrs, error)

// DefaultChains builds the chains from the fused op descriptors, without optimization.
func DefaultChains(p *graph.Program) ChainFn {
	return func(h graph.NodeHandle) (postops.Chain, postops.Attrs, error) {
		return postops.FromNode(p, h)
	}
}

// Evaluate the program with the inputs, by id of the input primitives. It returns the network
// outputs, in order.
//
// Fused nodes are evaluated by applying the chains returned by chains to the result of the
// node's own primitive. If chains is nil DefaultChains is used.
func Evaluate(p *graph.Program, inputs map[string]Tensor, chains ChainFn) ([]Tensor, error) {
	if chains == nil {
		chains = DefaultChains(p)
	}
	results := make(map[graph.NodeHandle][]Tensor)
	for _, h := range p.Order() {
		n := p.Node(h)
		deps := make([]Tensor, 0, len(n.Dependencies()))
		for _, dep := range n.Dependencies() {
			deps = append(deps, results[dep.Node][dep.Output])
		}
		outputs, err := evalNode(n, deps, inputs, chains)
		if err != nil {
			return nil, errors.WithMessagef(err, "evaluating %s", n)
		}
		results[h] = outputs
	}
	outputs := make([]Tensor, 0, len(p.Outputs()))
	for _, dep := range p.Outputs() {
		outputs = append(outputs, results[dep.Node][dep.Output])
	}
	return outputs, nil
}

// EvaluateTopology evaluates the topology as declared, without any compilation.
func EvaluateTopology(t *graph.Topology, inputs map[string]Tensor) ([]Tensor, error) {
	p, err := graph.FromTopology(t)
	if err != nil {
		return nil, err
	}
	return Evaluate(p, inputs, nil)
}

func evalNode(n *graph.Node, deps []Tensor, inputs map[string]Tensor, chains ChainFn) ([]Tensor, error) {
	switch n.Kind() {
	case graph.KindInput:
		declared := n.Attrs().(graph.InputAttrs).Layout
		t, found := inputs[n.ID()]
		if !found {
			return nil, errors.Errorf("input %q not given", n.ID())
		}
		if _, err := layout.ExtractBindings(declared, t.Layout); err != nil {
			return nil, errors.WithMessagef(err, "input %q doesn't match %s", n.ID(), declared)
		}
		return []Tensor{NewTensor(t.Layout.WithDType(declared.DType).WithFormat(layout.FormatBFYX), t.Values)}, nil
	case graph.KindData:
		buffer := n.Attrs().(graph.DataAttrs).Buffer
		return []Tensor{{Layout: buffer.Layout(), Values: buffer.Values()}}, nil
	}

	outputs, err := evalPrimitive(n.Primitive(), deps[:n.NumPrimaryInputs()])
	if err != nil {
		return nil, err
	}
	if len(n.FusedOps()) == 0 {
		return outputs, nil
	}
	chain, attrs, err := chains(n.Handle())
	if err != nil {
		return nil, err
	}
	depLayouts := make([]layout.Layout, len(deps))
	for ii, dep := range deps {
		depLayouts[ii] = dep.Layout
	}
	finalLayouts, _, err := graph.NodeLayouts(n, depLayouts)
	if err != nil {
		return nil, err
	}
	primary := outputs[0]
	fused := Tensor{Layout: finalLayouts[0], Values: make([]float32, len(primary.Values))}
	for flat, indices := range primary.Layout.Iter() {
		fetch := func(dep int) float32 { return deps[dep].At(indices) }
		fused.Values[flat] = dtypes.RoundTrip(fused.Layout.DType, chain.Apply(primary.Values[flat], attrs, fetch))
	}
	outputs[0] = fused
	return outputs, nil
}
