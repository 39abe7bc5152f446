// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/support/sets"
)

// OutputLayout returns the layout of output idx of the node.
//
// If the cached layout is valid it is returned as is. Otherwise, it is computed from the layouts
// of the node's dependencies (recursively) and its primitive shape rule, and cached. If
// invalidateUsersOnChange is set and the new layout differs from a previously cached one, all
// users reachable through data edges are invalidated.
//
// Errors are *ShapeInferenceError.
func (p *Program) OutputLayout(h NodeHandle, idx int, invalidateUsersOnChange bool) (layout.Layout, error) {
	n := p.Node(h)
	if idx < 0 || idx >= len(n.outputs) {
		exceptions.Panicf("OutputLayout(%s, %d): node has %d outputs", n, idx, len(n.outputs))
	}
	if n.outputs[idx].valid {
		return n.outputs[idx].layout, nil
	}

	depLayouts := make([]layout.Layout, len(n.deps))
	for ii, dep := range n.deps {
		l, err := p.OutputLayout(dep.Node, dep.Output, invalidateUsersOnChange)
		if err != nil {
			return layout.Invalid(), err
		}
		depLayouts[ii] = l
	}
	outputs, fusedOutputs, err := NodeLayouts(n, depLayouts)
	if err != nil {
		return layout.Invalid(), err
	}
	for ii, desc := range n.fused {
		desc.OutputLayout = fusedOutputs[ii]
	}

	changed := false
	for k := range n.outputs {
		slot := &n.outputs[k]
		if slot.cached && !slot.layout.Equal(outputs[k]) {
			changed = true
		}
		slot.layout = outputs[k]
		slot.valid = true
		slot.cached = true
	}
	if changed && invalidateUsersOnChange {
		p.InvalidateUsers(h)
	}
	return n.outputs[idx].layout, nil
}

// NodeLayouts computes the output layouts of the node given the layouts of all its dependencies
// (in the order of Node.Dependencies). It also returns the output layout of each fused operation.
//
// It doesn't change the node, so it can be used to re-infer layouts for concrete shapes.
func NodeLayouts(n *Node, depLayouts []layout.Layout) (outputs, fusedOutputs []layout.Layout, err error) {
	numPrimary := n.NumPrimaryInputs()
	outputs, err = InferLayouts(n.prim, depLayouts[:numPrimary])
	if err != nil {
		return nil, nil, err
	}
	if n.preferredFormat != layout.FormatAny && n.preferredFormat.SupportsRank(outputs[0].Rank()) {
		outputs[0] = outputs[0].WithFormat(n.preferredFormat)
	}
	current := outputs[0]
	fusedOutputs = make([]layout.Layout, len(n.fused))
	for ii, desc := range n.fused {
		fusedInputs := FusedInputs(desc, current, depLayouts[desc.DepStart:desc.DepStart+desc.DepCount])
		results, err := InferLayouts(desc.Prim, fusedInputs)
		if err != nil {
			return nil, nil, err
		}
		current = results[0]
		fusedOutputs[ii] = current
	}
	outputs[0] = current
	for k, l := range n.overrides {
		outputs[k] = l
	}
	return outputs, fusedOutputs, nil
}

// FusedInputs arranges the inputs of a fused primitive: primary fills position desc.PrimaryIndex
// and the extra inputs fill the others, in order.
func FusedInputs[T any](desc *FusedOpDesc, primary T, extra []T) []T {
	inputs := make([]T, 0, len(extra)+1)
	inputs = append(inputs, extra[:desc.PrimaryIndex]...)
	inputs = append(inputs, primary)
	inputs = append(inputs, extra[desc.PrimaryIndex:]...)
	return inputs
}

// Invalidate marks the cached layouts of the node's outputs as invalid. Users are not changed.
func (p *Program) Invalidate(h NodeHandle) {
	n := p.Node(h)
	for k := range n.outputs {
		n.outputs[k].valid = false
	}
}

// InvalidateUsers invalidates the layouts of every direct and indirect user of the node,
// following data edges only: an edge that only feeds fused operations' extra inputs is not followed.
func (p *Program) InvalidateUsers(h NodeHandle) {
	visited := sets.MakeWith(h)
	queue := []NodeHandle{h}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, user := range p.nodes[current].Users() {
			if visited.Has(user) || !p.isDataEdge(current, user) {
				continue
			}
			visited.Insert(user)
			p.Invalidate(user)
			queue = append(queue, user)
		}
	}
}

// isDataEdge returns whether producer feeds one of the primary inputs of user.
func (p *Program) isDataEdge(producer, user NodeHandle) bool {
	un := p.nodes[user]
	for _, dep := range un.deps[:un.NumPrimaryInputs()] {
		if dep.Node == producer {
			return true
		}
	}
	return false
}

// SetOutputLayout forces the layout of output idx of the node, overriding its shape rule.
// Users are invalidated if the layout changed.
func (p *Program) SetOutputLayout(h NodeHandle, idx int, l layout.Layout) {
	n := p.Node(h)
	if idx < 0 || idx >= len(n.outputs) {
		exceptions.Panicf("SetOutputLayout(%s, %d): node has %d outputs", n, idx, len(n.outputs))
	}
	if n.overrides == nil {
		n.overrides = make(map[int]layout.Layout)
	}
	n.overrides[idx] = l.Clone()
	slot := &n.outputs[idx]
	changed := slot.cached && !slot.layout.Equal(l)
	slot.layout = l.Clone()
	slot.valid = true
	slot.cached = true
	if changed {
		p.InvalidateUsers(h)
	}
}

// SetPreferredFormat forces the physical format of output 0 of the node, and recomputes its layout.
// Users are invalidated if the layout changed.
func (p *Program) SetPreferredFormat(h NodeHandle, format layout.Format) error {
	n := p.Node(h)
	if n.preferredFormat == format {
		return nil
	}
	n.preferredFormat = format
	p.Invalidate(h)
	_, err := p.OutputLayout(h, 0, true)
	return err
}
