// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/kernels"
	"github.com/gomlx/gpuplan/pkg/passes"
	"github.com/gomlx/gpuplan/pkg/postops"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Node is an executable node of a compiled program.
type Node struct {
	Handle  graph.NodeHandle
	ID      string
	Kind    graph.Kind
	OrderID int

	// Params the kernel was selected with. Params.PostOps is the optimized chain, with its
	// constant buffer rewrites committed.
	Params *kernels.Params
	Kernel *kernels.SelectedKernel

	// Deps are the node dependencies: primary inputs first, then the fused inputs.
	Deps []graph.Dependency

	// Fused are the ids of the primitives fused into the node, in order.
	Fused []string
}

// CompileNodes selects the kernels of all executable nodes of the program, in dependency order.
//
// For each node it forces the layouts, builds and optimizes the post-op chain and selects the
// kernel. Only once all nodes got a kernel the program is changed: dense order ids are assigned,
// the selected kernels attached, the post-op classifications written back and the constant
// buffers rewrites committed. So on error the program is unchanged, except for cached layouts.
func CompileNodes(p *graph.Program, reg *kernels.Registry, caps *device.Capabilities, cfg *Config) ([]*Node, error) {
	type planned struct {
		node  *Node
		chain postops.Chain
	}
	var plan []planned
	for _, h := range p.Order() {
		n := p.Node(h)
		if !n.Kind().IsExecutable() {
			continue
		}
		for k := range n.NumOutputs() {
			if _, err := p.OutputLayout(h, k, true); err != nil {
				return nil, err
			}
		}
		chain, attrs, err := postops.FromNode(p, h)
		if err != nil {
			return nil, errors.WithMessagef(err, "building post-ops of %s node %q", n.Kind(), n.ID())
		}
		if cfg.OptimizePostOps {
			chain, attrs = postops.Optimize(chain, attrs)
		}
		params, err := kernels.NewParams(p, h, chain, attrs)
		if err != nil {
			return nil, err
		}
		selected, err := reg.Select(params, caps)
		if err != nil {
			return nil, err
		}
		if err := postops.CheckCommit(chain); err != nil {
			return nil, errors.WithMessagef(err, "%s node %q", n.Kind(), n.ID())
		}
		node := &Node{
			Handle: h,
			ID:     n.ID(),
			Kind:   n.Kind(),
			Params: params,
			Kernel: selected,
			Deps:   n.Dependencies(),
		}
		for _, desc := range n.FusedOps() {
			node.Fused = append(node.Fused, desc.Prim.ID)
		}
		plan = append(plan, planned{node: node, chain: chain})
	}

	if _, err := passes.AssignOrderIDs(p); err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(plan))
	for _, entry := range plan {
		n := p.Node(entry.node.Handle)
		entry.node.OrderID = n.UniqueOrderID()
		n.SetSelectedImpl(entry.node.Kernel)
		entry.chain.WriteOpTypes(n)
		if err := postops.Commit(entry.chain); err != nil {
			// Not reachable: CheckCommit passed and nothing else holds the buffers.
			return nil, errors.WithMessagef(err, "%s node %q", n.Kind(), n.ID())
		}
		klog.V(2).Infof("node #%d %q: %s", entry.node.OrderID, entry.node.ID, entry.node.Kernel)
		nodes = append(nodes, entry.node)
	}
	return nodes, nil
}
