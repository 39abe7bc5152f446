// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graph holds the program graph the compiler passes operate on.
//
// A Topology (the graph as imported) is converted to a Program: an arena of nodes addressed by
// NodeHandle, with explicit ordered dependency lists and users back-references kept as handles,
// so removing nodes (during fusion) never leaves dangling references.
//
// The Program also owns the layout engine (see Program.OutputLayout) and the fusion mechanics
// (see Program.Fuse). It is mutated only during compilation, which is single-threaded, and is
// read-only afterwards.
package graph

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/support/sets"
	"github.com/pkg/errors"
)

// NodeHandle is the stable identity of a node: its index in the Program arena.
type NodeHandle int32

// InvalidHandle is the zero-like value for handles.
const InvalidHandle NodeHandle = -1

// Dependency of a node: one output of another node.
type Dependency struct {
	Node   NodeHandle
	Output int
}

// FusedOpDesc describes one consumer primitive absorbed into a producer node.
type FusedOpDesc struct {
	// Prim is the original primitive absorbed.
	Prim *Primitive

	// DepStart is the index of the first extra input of Prim in the producer's dependency list,
	// and DepCount the number of extra inputs.
	DepStart, DepCount int

	// PrimaryIndex is the position among Prim.Inputs that was fed by the producer.
	// The extra inputs fill the other positions, in order.
	PrimaryIndex int

	// OutputLayout is the resolved output layout of Prim.
	OutputLayout layout.Layout

	// OpType is the classification used by the post-op optimizer.
	OpType PostOpType
}

// String implements fmt.Stringer.
func (d *FusedOpDesc) String() string {
	return fmt.Sprintf("%s[%s, deps=%d+%d]", d.Prim, d.OpType, d.DepStart, d.DepCount)
}

type outputSlot struct {
	layout layout.Layout
	valid  bool

	// cached is set once a layout was computed, so changes can be detected.
	cached bool
}

// Node of the Program.
type Node struct {
	handle   NodeHandle
	prim     *Primitive
	deps     []Dependency
	users    sets.Set[NodeHandle]
	outputs  []outputSlot
	fused    []*FusedOpDesc
	selected any
	orderID  int
	removed  bool

	preferredFormat layout.Format
	overrides       map[int]layout.Layout
}

// Handle of the node.
func (n *Node) Handle() NodeHandle { return n.handle }

// ID returns the id of the primitive of the node.
func (n *Node) ID() string { return n.prim.ID }

// Kind of the primitive of the node.
func (n *Node) Kind() Kind { return n.prim.Kind }

// Primitive of the node. It must not be modified.
func (n *Node) Primitive() *Primitive { return n.prim }

// Attrs returns the attributes of the primitive of the node.
func (n *Node) Attrs() any { return n.prim.Attrs }

// Dependencies returns a copy of the ordered dependencies: first the primitive's own inputs,
// then the extra inputs of each fused operation.
func (n *Node) Dependencies() []Dependency { return slices.Clone(n.deps) }

// NumPrimaryInputs is the number of dependencies that are inputs of the node's own primitive.
func (n *Node) NumPrimaryInputs() int { return len(n.prim.Inputs) }

// Users returns the users of the node, sorted by handle.
func (n *Node) Users() []NodeHandle { return sets.Sorted(n.users) }

// NumUsers returns the number of distinct users of the node.
func (n *Node) NumUsers() int { return len(n.users) }

// NumOutputs returns the number of outputs.
func (n *Node) NumOutputs() int { return len(n.outputs) }

// IsValid returns whether the cached layout of output k is valid.
func (n *Node) IsValid(k int) bool { return n.outputs[k].valid }

// CachedLayout returns the last layout computed for output k, valid or not.
func (n *Node) CachedLayout(k int) (l layout.Layout, valid bool) {
	return n.outputs[k].layout, n.outputs[k].valid
}

// FusedOps returns the fused operation descriptors, in application order.
// The descriptors' OpType may be changed by the post-op optimizer, nothing else.
func (n *Node) FusedOps() []*FusedOpDesc { return n.fused }

// SelectedImpl returns the implementation attached by the compiler, or nil.
func (n *Node) SelectedImpl() any { return n.selected }

// SetSelectedImpl attaches the selected implementation to the node.
func (n *Node) SetSelectedImpl(impl any) { n.selected = impl }

// UniqueOrderID is the dense position of the node in dependency order, assigned at compile time.
func (n *Node) UniqueOrderID() int { return n.orderID }

// SetUniqueOrderID sets the order id of the node.
func (n *Node) SetUniqueOrderID(id int) { n.orderID = id }

// Removed returns whether the node was fused away.
func (n *Node) Removed() bool { return n.removed }

// PreferredFormat returns the output format forced on the node, or layout.FormatAny.
func (n *Node) PreferredFormat() layout.Format { return n.preferredFormat }

// String implements fmt.Stringer.
func (n *Node) String() string {
	return fmt.Sprintf("#%d:%s", n.handle, n.prim)
}

// FusionRecord is the entry of the fusion history for one absorbed primitive.
type FusionRecord struct {
	// Into is the id of the producer that absorbed the primitive.
	Into string

	// Deps are the ids of the producer dependencies right after the fusion.
	Deps []string
}

// Program is the arena graph of nodes.
type Program struct {
	nodes      []*Node
	byID       map[string]NodeHandle
	order      []NodeHandle
	orderDirty bool
	outputs    []Dependency
	history    map[string]FusionRecord
}

// FromTopology creates a Program from a Topology.
//
// Constant buffers are cloned: the Program owns its constants, since compilation may rewrite them.
func FromTopology(t *Topology) (*Program, error) {
	p := &Program{
		byID:    make(map[string]NodeHandle, len(t.prims)),
		history: make(map[string]FusionRecord),
	}
	for _, topoPrim := range t.prims {
		prim := *topoPrim
		prim.Inputs = slices.Clone(topoPrim.Inputs)
		if attrs, ok := prim.Attrs.(DataAttrs); ok {
			prim.Attrs = DataAttrs{Buffer: attrs.Buffer.Clone()}
		}
		n := &Node{
			handle:  NodeHandle(len(p.nodes)),
			prim:    &prim,
			users:   sets.Make[NodeHandle](),
			outputs: make([]outputSlot, prim.NumOutputs()),
			orderID: -1,
		}
		for _, input := range prim.Inputs {
			producer, found := p.byID[input.ID]
			if !found {
				return nil, errors.Errorf("primitive %q references unknown primitive %q", prim.ID, input.ID)
			}
			n.deps = append(n.deps, Dependency{Node: producer, Output: input.Output})
			p.nodes[producer].users.Insert(n.handle)
		}
		p.nodes = append(p.nodes, n)
		p.byID[prim.ID] = n.handle
		p.order = append(p.order, n.handle)
	}
	for _, ref := range t.Outputs() {
		p.outputs = append(p.outputs, Dependency{Node: p.byID[ref.ID], Output: ref.Output})
	}
	return p, nil
}

// Node returns the node for the handle. It panics for invalid handles.
func (p *Program) Node(h NodeHandle) *Node {
	if h < 0 || int(h) >= len(p.nodes) {
		exceptions.Panicf("invalid node handle %d, program has %d nodes", h, len(p.nodes))
	}
	return p.nodes[h]
}

// NodeCapacity returns the size of the arena: handles are in [0, NodeCapacity()).
func (p *Program) NodeCapacity() int {
	return len(p.nodes)
}

// Lookup returns the handle of the live node with the given id.
func (p *Program) Lookup(id string) (NodeHandle, bool) {
	h, found := p.byID[id]
	return h, found
}

// MustLookup is like Lookup, but panics if the id is not found.
func (p *Program) MustLookup(id string) NodeHandle {
	h, found := p.byID[id]
	if !found {
		exceptions.Panicf("node %q not found in program", id)
	}
	return h
}

// NumNodes returns the number of live nodes.
func (p *Program) NumNodes() int {
	return len(p.byID)
}

// Order returns the live nodes in dependency order.
func (p *Program) Order() []NodeHandle {
	if p.orderDirty {
		p.recomputeOrder()
	}
	return slices.Clone(p.order)
}

// recomputeOrder does a depth-first post-order sweep: dependencies are visited in their order,
// roots in arena order. It's deterministic for a given graph.
func (p *Program) recomputeOrder() {
	visited := make([]bool, len(p.nodes))
	order := make([]NodeHandle, 0, len(p.byID))
	var visit func(h NodeHandle)
	visit = func(h NodeHandle) {
		if visited[h] {
			return
		}
		visited[h] = true
		for _, dep := range p.nodes[h].deps {
			visit(dep.Node)
		}
		order = append(order, h)
	}
	for _, n := range p.nodes {
		if !n.removed {
			visit(n.handle)
		}
	}
	p.order = order
	p.orderDirty = false
}

// Outputs returns the network outputs.
func (p *Program) Outputs() []Dependency {
	return slices.Clone(p.outputs)
}

// IsOutput returns whether any output of the node is a network output.
func (p *Program) IsOutput(h NodeHandle) bool {
	for _, output := range p.outputs {
		if output.Node == h {
			return true
		}
	}
	return false
}

// Inputs returns the KindInput nodes, in dependency order.
func (p *Program) Inputs() []NodeHandle {
	var inputs []NodeHandle
	for _, h := range p.Order() {
		if p.nodes[h].Kind() == KindInput {
			inputs = append(inputs, h)
		}
	}
	return inputs
}

// FusionHistory returns a copy of the fusion history, keyed by the absorbed primitive id.
func (p *Program) FusionHistory() map[string]FusionRecord {
	history := make(map[string]FusionRecord, len(p.history))
	for k, v := range p.history {
		history[k] = FusionRecord{Into: v.Into, Deps: slices.Clone(v.Deps)}
	}
	return history
}

// Resolve returns the live node holding the given original primitive id: either the node itself
// or, following the fusion history, the producer that absorbed it.
func (p *Program) Resolve(id string) (NodeHandle, bool) {
	for range len(p.history) + 1 {
		if h, found := p.byID[id]; found {
			return h, true
		}
		record, found := p.history[id]
		if !found {
			return InvalidHandle, false
		}
		id = record.Into
	}
	return InvalidHandle, false
}

// String returns a multi-line description of the live nodes, in dependency order.
func (p *Program) String() string {
	var s string
	for _, h := range p.Order() {
		n := p.nodes[h]
		s += fmt.Sprintf("%s deps=%v", n, n.deps)
		if len(n.fused) > 0 {
			s += fmt.Sprintf(" fused=%v", n.fused)
		}
		s += "\n"
	}
	return s
}
