// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/gomlx/gpuplan/pkg/support/sets"
	"github.com/pkg/errors"
)

// primaryIndex returns the position of the first dependency of consumer on producer, or -1.
func (p *Program) primaryIndex(producer, consumer NodeHandle) int {
	for ii, dep := range p.nodes[consumer].deps {
		if dep.Node == producer {
			return ii
		}
	}
	return -1
}

// CanFuse checks the structural preconditions for absorbing consumer into producer:
//
//   - both are live nodes, and consumer depends on producer;
//   - producer and consumer have exactly one output, and consumer has no fused operations of its own;
//   - the fusion doesn't create a cycle: it returns ErrFusionCycle if any other dependency
//     of consumer is producer itself or is reachable from it.
//
// The cycle check runs on the current graph, before any mutation.
func (p *Program) CanFuse(producer, consumer NodeHandle) error {
	pn, cn := p.Node(producer), p.Node(consumer)
	if pn.removed || cn.removed {
		return errors.Errorf("can't fuse %s into %s: node was already fused away", cn, pn)
	}
	if producer == consumer {
		return errors.Errorf("can't fuse %s into itself", cn)
	}
	primary := p.primaryIndex(producer, consumer)
	if primary < 0 {
		return errors.Errorf("can't fuse %s into %s: it doesn't depend on it", cn, pn)
	}
	if len(pn.outputs) != 1 || len(cn.outputs) != 1 {
		return errors.Errorf("can't fuse %s into %s: only single output nodes can be fused", cn, pn)
	}
	if cn.deps[primary].Output != 0 {
		return errors.Errorf("can't fuse %s into %s: it doesn't consume output 0", cn, pn)
	}
	if len(cn.fused) > 0 {
		return errors.Errorf("can't fuse %s into %s: consumer has fused operations", cn, pn)
	}

	// Cycle check: after the fusion producer depends on the other dependencies of consumer.
	descendants := p.descendants(producer)
	for ii, dep := range cn.deps {
		if ii == primary {
			continue
		}
		if dep.Node == producer || descendants.Has(dep.Node) {
			return ErrFusionCycle
		}
	}
	return nil
}

// descendants returns all nodes reachable from h through user edges.
func (p *Program) descendants(h NodeHandle) sets.Set[NodeHandle] {
	reached := sets.Make[NodeHandle]()
	queue := []NodeHandle{h}
	for len(queue) > 0 {
		current := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		for user := range p.nodes[current].users {
			if !reached.Has(user) {
				reached.Insert(user)
				queue = append(queue, user)
			}
		}
	}
	return reached
}

// SingleConsumer returns whether consumer is the only reader of producer's output: it is its
// only user, through a single edge, and producer is not a network output.
//
// If producer already absorbed other primitives, the original primitive consumer read from is
// looked up in the fusion history: it must resolve to producer and be the last one applied.
func (p *Program) SingleConsumer(producer, consumer NodeHandle) bool {
	pn, cn := p.Node(producer), p.Node(consumer)
	if p.IsOutput(producer) || len(pn.users) != 1 || !pn.users.Has(consumer) {
		return false
	}
	edges := 0
	primary := -1
	for ii, dep := range cn.deps {
		if dep.Node == producer {
			edges++
			if primary < 0 {
				primary = ii
			}
		}
	}
	if edges != 1 {
		return false
	}
	if len(pn.fused) == 0 {
		return true
	}
	original := cn.prim.Inputs[primary].ID
	resolved, found := p.Resolve(original)
	return found && resolved == producer && pn.fused[len(pn.fused)-1].Prim.ID == original
}

// Fuse absorbs consumer into producer:
//
//  1. The extra inputs of consumer are appended to producer's dependencies.
//  2. A FusedOpDesc with the given opType is appended to producer.
//  3. The fusion history records consumer's id and producer's dependency ids.
//  4. Consumer is removed and its users (and network outputs) are rewired to producer.
//  5. Producer's layout and its users' layouts are invalidated.
//
// If CanFuse fails, the graph is left unchanged and its error is returned: ErrFusionCycle
// should be taken as a "not fused" outcome.
func (p *Program) Fuse(producer, consumer NodeHandle, opType PostOpType) error {
	if err := p.CanFuse(producer, consumer); err != nil {
		return err
	}
	consumerLayout, err := p.OutputLayout(consumer, 0, false)
	if err != nil {
		return err
	}
	pn, cn := p.nodes[producer], p.nodes[consumer]
	primary := p.primaryIndex(producer, consumer)

	extra := make([]Dependency, 0, len(cn.deps)-1)
	extra = append(extra, cn.deps[:primary]...)
	extra = append(extra, cn.deps[primary+1:]...)
	desc := &FusedOpDesc{
		Prim:         cn.prim,
		DepStart:     len(pn.deps),
		DepCount:     len(extra),
		PrimaryIndex: primary,
		OutputLayout: consumerLayout,
		OpType:       opType,
	}

	// Move the extra input edges to the producer.
	for _, dep := range extra {
		dn := p.nodes[dep.Node]
		dn.users.Remove(consumer)
		dn.users.Insert(producer)
	}
	pn.deps = append(pn.deps, extra...)
	pn.fused = append(pn.fused, desc)
	pn.users.Remove(consumer)

	// Rewire users and outputs of the consumer: its only output maps to the producer's only output.
	for _, user := range cn.Users() {
		un := p.nodes[user]
		for ii, dep := range un.deps {
			if dep.Node == consumer {
				un.deps[ii] = Dependency{Node: producer, Output: dep.Output}
			}
		}
		pn.users.Insert(user)
	}
	for ii, output := range p.outputs {
		if output.Node == consumer {
			p.outputs[ii] = Dependency{Node: producer, Output: output.Output}
		}
	}

	record := FusionRecord{Into: pn.ID()}
	for _, dep := range pn.deps {
		record.Deps = append(record.Deps, p.nodes[dep.Node].ID())
	}
	p.history[cn.ID()] = record

	cn.removed = true
	cn.users = sets.Make[NodeHandle]()
	delete(p.byID, cn.ID())
	p.orderDirty = true

	p.Invalidate(producer)
	p.InvalidateUsers(producer)
	return nil
}
