// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/gomlx/gpuplan/pkg/compiler"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/kernels"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Network is one instance of a compiled program, with its own memory, resolved layouts and
// command lists. The program is shared (read-only) by all its networks.
//
// A Network is not safe for concurrent use: each in-flight inference needs its own.
type Network struct {
	prog   *compiler.Program
	stream Stream
	alloc  Allocator

	insts  []*PrimitiveInst
	groups []*ExecutionGroup

	memory       map[graph.Dependency]Memory
	inputs       map[string]graph.NodeHandle
	inputLayouts map[string]layout.Layout // Concrete layouts of the bound inputs.
	bindings     layout.Bindings

	// layouts are the concrete layouts of every node output for the current inputs. Only set
	// for dynamic programs.
	layouts map[graph.Dependency]layout.Layout
}

// Output of a network: the resolved layout and the memory holding it.
type Output struct {
	ID     string
	Layout layout.Layout
	Memory Memory
}

// NewNetwork creates an instance of the compiled program on the stream, allocating memory
// from alloc.
//
// It freezes the constant buffers of the program, which are uploaded once here: after this
// they can't be rewritten.
func NewNetwork(prog *compiler.Program, stream Stream, alloc Allocator) (*Network, error) {
	n := &Network{
		prog:         prog,
		stream:       stream,
		alloc:        alloc,
		memory:       make(map[graph.Dependency]Memory),
		inputs:       make(map[string]graph.NodeHandle),
		inputLayouts: make(map[string]layout.Layout),
		bindings:     make(layout.Bindings),
	}
	g := prog.Graph()
	for _, h := range g.Order() {
		node := g.Node(h)
		switch node.Kind() {
		case graph.KindInput:
			n.inputs[node.ID()] = h
		case graph.KindData:
			if err := n.uploadConstant(node); err != nil {
				n.Release()
				return nil, err
			}
		}
	}
	for _, node := range prog.Nodes() {
		n.insts = append(n.insts, newPrimitiveInst(n, node))
	}
	groupSize := prog.Config().MaxGroupSize
	for start := 0; start < len(n.insts); start += groupSize {
		end := min(start+groupSize, len(n.insts))
		n.groups = append(n.groups, &ExecutionGroup{net: n, start: start, end: end, insts: n.insts[start:end]})
	}
	klog.V(1).Infof("network created: %d primitives in %d groups", len(n.insts), len(n.groups))
	return n, nil
}

func (n *Network) uploadConstant(node *graph.Node) error {
	buffer := node.Attrs().(graph.DataAttrs).Buffer
	buffer.Freeze()
	data, err := buffer.Bytes()
	if err != nil {
		return errors.WithMessagef(err, "encoding constant %q", node.ID())
	}
	dep := graph.Dependency{Node: node.Handle()}
	if err := n.ensureMemory(dep, node.ID(), MemoryConstant, int64(len(data))); err != nil {
		return err
	}
	if err := n.memory[dep].Write(0, data); err != nil {
		return errors.WithMessagef(err, "uploading constant %q", node.ID())
	}
	return nil
}

// ensureMemory makes sure dep has memory of at least the given size, reallocating it if needed.
func (n *Network) ensureMemory(dep graph.Dependency, name string, role MemoryRole, bytes int64) error {
	if bytes < 0 {
		return errors.Errorf("can't allocate memory for %q: size unknown", name)
	}
	bytes = max(bytes, 1)
	if current, found := n.memory[dep]; found {
		if current.Bytes() >= bytes {
			return nil
		}
		n.alloc.Release(current)
		delete(n.memory, dep)
	}
	mem, err := n.alloc.Allocate(MemoryRequest{Name: name, Role: role, Bytes: bytes})
	if err != nil {
		return errors.WithMessagef(err, "allocating %d bytes of %s memory for %q", bytes, role, name)
	}
	n.memory[dep] = mem
	return nil
}

// Program returns the compiled program of the network.
func (n *Network) Program() *compiler.Program { return n.prog }

// Groups returns the execution groups, in execution order.
func (n *Network) Groups() []*ExecutionGroup { return n.groups }

// Instances returns the primitive instances, in execution order.
func (n *Network) Instances() []*PrimitiveInst { return n.insts }

// Bindings of the dynamic dimensions for the current inputs.
func (n *Network) Bindings() layout.Bindings { return n.bindings.Clone() }

// SetInput binds the concrete layout of a network input, and returns its memory to be filled by
// the caller. The layout must match the declared one, with dynamic dimensions taking any value.
func (n *Network) SetInput(id string, l layout.Layout) (Memory, error) {
	h, found := n.inputs[id]
	if !found {
		return nil, errors.Errorf("unknown network input %q, valid inputs are %q", id, slices.Sorted(maps.Keys(n.inputs)))
	}
	declared := n.prog.InputLayouts()[id]
	if l.DType != declared.DType {
		return nil, errors.Errorf("input %q: dtype %s given, %s expected", id, l.DType, declared.DType)
	}
	if _, err := layout.ExtractBindings(declared, l); err != nil {
		return nil, errors.WithMessagef(err, "input %q: layout %s doesn't match %s", id, l, declared)
	}
	concrete := declared.WithDims(l.Dims...)
	if err := n.ensureMemory(graph.Dependency{Node: h}, id, MemoryInput, concrete.Bytes()); err != nil {
		return nil, err
	}
	n.inputLayouts[id] = concrete
	return n.memory[graph.Dependency{Node: h}], nil
}

// bind computes the bindings of the dynamic dimensions from the inputs set.
func (n *Network) bind() error {
	bindings := make(layout.Bindings)
	declared := n.prog.InputLayouts()
	for id := range n.inputs {
		l, found := n.inputLayouts[id]
		if !found {
			return errors.Errorf("input %q not set", id)
		}
		inputBindings, err := layout.ExtractBindings(declared[id], l)
		if err != nil {
			return errors.WithMessagef(err, "input %q", id)
		}
		if err := bindings.Merge(inputBindings); err != nil {
			return errors.WithMessagef(err, "input %q", id)
		}
	}
	n.bindings = bindings
	return nil
}

// inferLayouts re-runs the shape rules of every node over the concrete input layouts, so
// dimensions computed from dynamic ones (convolution and pooling windows, concatenations,
// reshapes) get their concrete values. Compiled layouts are all concrete in static programs.
func (n *Network) inferLayouts() error {
	if !n.prog.IsDynamic() {
		return nil
	}
	g := n.prog.Graph()
	layouts := make(map[graph.Dependency]layout.Layout, len(n.layouts))
	for _, h := range g.Order() {
		node := g.Node(h)
		switch node.Kind() {
		case graph.KindInput:
			layouts[graph.Dependency{Node: h}] = n.inputLayouts[node.ID()]
			continue
		case graph.KindData:
			layouts[graph.Dependency{Node: h}] = node.Attrs().(graph.DataAttrs).Buffer.Layout()
			continue
		}
		deps := node.Dependencies()
		depLayouts := make([]layout.Layout, len(deps))
		for ii, dep := range deps {
			depLayouts[ii] = layouts[dep]
		}
		outputs, _, err := graph.NodeLayouts(node, depLayouts)
		if err != nil {
			return &kernels.DispatchUpdateError{NodeID: node.ID(), Reason: err.Error()}
		}
		for k, l := range outputs {
			if l.IsDynamic() {
				return &kernels.DispatchUpdateError{NodeID: node.ID(), Reason: fmt.Sprintf("output #%d layout %s can't be resolved", k, l)}
			}
			layouts[graph.Dependency{Node: h, Output: k}] = l
		}
	}
	n.layouts = layouts
	return nil
}

// Layout returns the concrete layout of output idx of node id for the current inputs. It's
// only available after an Execute of a dynamic program, or for nodes with static layouts.
func (n *Network) Layout(id string, idx int) (layout.Layout, bool) {
	for _, pi := range n.insts {
		if pi.node.ID == id && pi.prepared && idx < len(pi.outputs) {
			return pi.outputs[idx], true
		}
	}
	return layout.Invalid(), false
}

// Execute enqueues all the execution groups, in order, after the deps events. It returns the
// completion event of the last group.
//
// On error, groups already enqueued still run: wait on the returned event before reusing the
// input memory.
func (n *Network) Execute(ctx context.Context, deps []Event) (Event, error) {
	if err := n.bind(); err != nil {
		return nil, err
	}
	if err := n.inferLayouts(); err != nil {
		return nil, err
	}
	var last Event
	for _, g := range n.groups {
		event, err := g.Run(ctx, deps)
		if err != nil {
			if last != nil {
				return last, err
			}
			return nil, err
		}
		deps, last = []Event{event}, event
	}
	if last == nil {
		// No executable nodes: only the ordering of the deps.
		return n.stream.EnqueueMarker(deps)
	}
	return last, nil
}

// Outputs returns the network outputs after the last Execute, in order.
func (n *Network) Outputs() []Output {
	g := n.prog.Graph()
	outputs := make([]Output, 0, len(g.Outputs()))
	for _, dep := range g.Outputs() {
		node := g.Node(dep.Node)
		out := Output{ID: node.ID(), Memory: n.memory[dep]}
		switch node.Kind() {
		case graph.KindInput:
			out.Layout = n.inputLayouts[node.ID()]
		case graph.KindData:
			out.Layout = node.Attrs().(graph.DataAttrs).Buffer.Layout()
		default:
			for _, pi := range n.insts {
				if pi.node.Handle == dep.Node && dep.Output < len(pi.outputs) {
					out.Layout = pi.outputs[dep.Output]
				}
			}
		}
		outputs = append(outputs, out)
	}
	return outputs
}

// Release all the memory of the network. The network can't be used afterwards.
func (n *Network) Release() {
	for dep, mem := range n.memory {
		n.alloc.Release(mem)
		delete(n.memory, dep)
	}
	for _, pi := range n.insts {
		for _, mem := range pi.internal {
			n.alloc.Release(mem)
		}
		pi.internal = nil
	}
}
