// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/gpuplan/internal/metrics"
	"github.com/gomlx/gpuplan/pkg/compiler"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/kernels"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// PrimitiveInst is the per-network state of one executable node: its current kernel, dispatch
// geometry, resolved layouts and internal buffers.
//
// The compiled node it refers to is shared and never changed.
type PrimitiveInst struct {
	net  *Network
	node *compiler.Node

	kernel   *kernels.SelectedKernel
	dispatch kernels.DispatchData
	inputs   []layout.Layout // Resolved primary inputs.
	outputs  []layout.Layout // Resolved outputs.
	internal []Memory

	// dynamicLayouts are the positions, in inputs followed by outputs, of the layouts bound to
	// scalar arguments of the compiled kernel.
	dynamicLayouts []int

	prepared    bool
	layoutsKey  string
	specialized map[string]*kernels.SelectedKernel

	updates, selections int
}

func newPrimitiveInst(net *Network, node *compiler.Node) *PrimitiveInst {
	pi := &PrimitiveInst{net: net, node: node, kernel: node.Kernel}
	for ii, l := range slices.Concat(node.Params.Inputs, node.Params.Outputs) {
		if l.IsDynamic() {
			pi.dynamicLayouts = append(pi.dynamicLayouts, ii)
		}
	}
	return pi
}

// Node returns the compiled node.
func (pi *PrimitiveInst) Node() *compiler.Node { return pi.node }

// Kernel currently used by the instance. It differs from the compiled one only when dynamic
// shapes are specialized.
func (pi *PrimitiveInst) Kernel() *kernels.SelectedKernel { return pi.kernel }

// Dispatch returns the dispatch geometry of the last Prepare.
func (pi *PrimitiveInst) Dispatch() kernels.DispatchData { return pi.dispatch }

// OutputLayouts returns the resolved output layouts of the last Prepare.
func (pi *PrimitiveInst) OutputLayouts() []layout.Layout { return pi.outputs }

// DispatchUpdates returns how many times the dispatch geometry was recomputed for concrete shapes.
func (pi *PrimitiveInst) DispatchUpdates() int { return pi.updates }

// Selections returns how many times a kernel was selected for a concrete shape.
// It's always 0 unless dynamic shapes are specialized.
func (pi *PrimitiveInst) Selections() int { return pi.selections }

// Prepare the instance for the concrete layouts of the current call, as inferred by the network
// for every node output.
//
// Static nodes are prepared once. Dynamic ones take their concrete layouts and recompute the
// dispatch geometry, or, when shapes are specialized, re-select a kernel for the concrete shapes.
// It returns whether the kernel changed, in which case the command list must be rebuilt.
//
// On error the previous state is kept.
func (pi *PrimitiveInst) Prepare(concrete map[graph.Dependency]layout.Layout) (kernelChanged bool, err error) {
	params := pi.node.Params
	if !params.IsDynamic() {
		if !pi.prepared {
			pi.dispatch = pi.kernel.Dispatch.Clone()
			pi.inputs, pi.outputs = params.Inputs, params.Outputs
			pi.prepared = true
		}
		return false, nil
	}
	inputs, fused, outputs, err := pi.concreteLayouts(concrete)
	if err != nil {
		return false, err
	}
	key := layoutsKey(inputs, fused, outputs)
	if pi.prepared && key == pi.layoutsKey {
		return false, nil
	}

	kernel := pi.node.Kernel
	var dispatch kernels.DispatchData
	if pi.net.prog.Config().SpecializeDynamicShapes {
		kernel, err = pi.specialize(key, inputs, fused, outputs)
		if err != nil {
			return false, err
		}
		dispatch = kernel.Dispatch.Clone()
	} else {
		dispatch, err = kernel.UpdateDispatch(inputs, outputs)
		pi.updates++
		if err != nil {
			kernelName := kernel.Kernel
			var updateErr *kernels.DispatchUpdateError
			if errors.As(err, &updateErr) && updateErr.Kernel != "" {
				kernelName = updateErr.Kernel
			}
			metrics.RecordDispatchUpdateError(kernelName)
			return false, err
		}
	}
	kernelChanged = pi.prepared && kernel != pi.kernel
	pi.kernel, pi.dispatch = kernel, dispatch
	pi.inputs, pi.outputs = inputs, outputs
	pi.layoutsKey = key
	pi.prepared = true
	klog.V(3).Infof("prepared %s node %q for {%s}: %s %s", pi.node.Kind, pi.node.ID, key, kernel.Kernel, dispatch)
	return kernelChanged, nil
}

// concreteLayouts picks the layouts of the node's dependencies (primary and fused) and outputs.
func (pi *PrimitiveInst) concreteLayouts(concrete map[graph.Dependency]layout.Layout) (inputs, fused, outputs []layout.Layout, err error) {
	numPrimary := len(pi.node.Params.Inputs)
	lookup := func(dep graph.Dependency) (layout.Layout, error) {
		l, found := concrete[dep]
		if !found || l.IsDynamic() {
			return layout.Invalid(), &kernels.DispatchUpdateError{
				NodeID: pi.node.ID, Kernel: pi.kernel.Kernel, Reason: fmt.Sprintf("layout of %q output #%d not inferred for the call",
					pi.net.prog.Graph().Node(dep.Node).ID(), dep.Output)}
		}
		return l, nil
	}
	for ii, dep := range pi.node.Deps {
		l, err := lookup(dep)
		if err != nil {
			return nil, nil, nil, err
		}
		if ii < numPrimary {
			inputs = append(inputs, l)
		} else {
			fused = append(fused, l)
		}
	}
	for k := range pi.node.Params.Outputs {
		l, err := lookup(graph.Dependency{Node: pi.node.Handle, Output: k})
		if err != nil {
			return nil, nil, nil, err
		}
		outputs = append(outputs, l)
	}
	return inputs, fused, outputs, nil
}

// layoutsKey identifies concrete shapes: dtypes and formats of a node never change across calls.
func layoutsKey(groups ...[]layout.Layout) string {
	var sb strings.Builder
	for ii, group := range groups {
		if ii > 0 {
			sb.WriteByte('|')
		}
		for jj, l := range group {
			if jj > 0 {
				sb.WriteByte(';')
			}
			_, _ = fmt.Fprint(&sb, l.Dims)
		}
	}
	return sb.String()
}

// specialize returns the kernel selected for the concrete layouts, selecting it on first use.
func (pi *PrimitiveInst) specialize(key string, inputs, fused, outputs []layout.Layout) (*kernels.SelectedKernel, error) {
	if kernel, found := pi.specialized[key]; found {
		return kernel, nil
	}
	params := pi.node.Params
	concrete := params.WithLayouts(slices.Concat(inputs, fused), outputs)
	kernel, err := pi.net.prog.Registry().Select(concrete, pi.net.prog.Capabilities())
	if err != nil {
		return nil, errors.WithMessagef(err, "specializing %s node %q for {%s}", pi.node.Kind, pi.node.ID, key)
	}
	pi.selections++
	if pi.specialized == nil {
		pi.specialized = make(map[string]*kernels.SelectedKernel)
	}
	pi.specialized[key] = kernel
	klog.V(2).Infof("specialized %s node %q for {%s}: %s", pi.node.Kind, pi.node.ID, key, kernel)
	return kernel, nil
}

// allocate the outputs and internal buffers needed by the last Prepare.
func (pi *PrimitiveInst) allocate() error {
	for ii, l := range pi.outputs {
		dep := graph.Dependency{Node: pi.node.Handle, Output: ii}
		name := pi.node.ID
		if ii > 0 {
			name = fmt.Sprintf("%s:%d", pi.node.ID, ii)
		}
		if err := pi.net.ensureMemory(dep, name, MemoryOutput, l.Bytes()); err != nil {
			return err
		}
	}
	sizes := pi.dispatch.InternalBuffers
	for len(pi.internal) > len(sizes) {
		pi.net.alloc.Release(pi.internal[len(pi.internal)-1])
		pi.internal = pi.internal[:len(pi.internal)-1]
	}
	for ii, size := range sizes {
		if ii < len(pi.internal) && pi.internal[ii].Bytes() >= size {
			continue
		}
		mem, err := pi.net.alloc.Allocate(MemoryRequest{
			Name: fmt.Sprintf("%s/internal%d", pi.node.ID, ii), Role: MemoryInternal, Bytes: size})
		if err != nil {
			return errors.WithMessagef(err, "allocating internal buffer %d of %s node %q", ii, pi.node.Kind, pi.node.ID)
		}
		if ii < len(pi.internal) {
			pi.net.alloc.Release(pi.internal[ii])
			pi.internal[ii] = mem
		} else {
			pi.internal = append(pi.internal, mem)
		}
	}
	return nil
}

// command returns the invocation of the kernel with the current state.
func (pi *PrimitiveInst) command() (Command, error) {
	cmd := Command{
		Kernel:     pi.kernel.Kernel,
		EntryPoint: pi.kernel.EntryPoint,
		Dispatch:   pi.dispatch.Clone(),
		Bindings:   make([]Binding, 0, len(pi.kernel.Arguments)),
	}
	resolved := slices.Concat(pi.inputs, pi.outputs)
	for _, arg := range pi.kernel.Arguments {
		binding := Binding{Argument: arg}
		switch arg.Role {
		case kernels.ArgInput, kernels.ArgFusedInput:
			binding.Memory = pi.net.memory[pi.node.Deps[arg.Index]]
		case kernels.ArgOutput:
			binding.Memory = pi.net.memory[graph.Dependency{Node: pi.node.Handle, Output: arg.Index}]
		case kernels.ArgInternalBuffer:
			if arg.Index < len(pi.internal) {
				binding.Memory = pi.internal[arg.Index]
			}
		case kernels.ArgScalar:
			if arg.Index < len(pi.dynamicLayouts) {
				binding.Dims = resolved[pi.dynamicLayouts[arg.Index]].Dims
			}
		}
		if binding.Memory == nil && arg.Role != kernels.ArgScalar {
			return Command{}, errors.Errorf("%s node %q: no memory bound to argument %s", pi.node.Kind, pi.node.ID, arg)
		}
		cmd.Bindings = append(cmd.Bindings, binding)
	}
	return cmd, nil
}
