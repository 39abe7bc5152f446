// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package compiler runs the whole compilation pipeline: from a graph.Topology and a device
// description to a Program whose executable nodes all have a selected kernel.
//
// The pipeline is: build the program graph, seed layouts, prefer formats, fuse primitives,
// assign order ids and compile the nodes (post-op optimization and kernel selection).
// A compiled Program is read-only and can be shared by any number of concurrent requests.
package compiler

import (
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gpuplan/internal/metrics"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/kernels"
	"github.com/gomlx/gpuplan/pkg/passes"
	"github.com/gomlx/gpuplan/pkg/postops"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Program is a compiled program.
type Program struct {
	graph    *graph.Program
	registry *kernels.Registry
	caps     *device.Capabilities
	config   *Config

	nodes    []*Node
	byHandle map[graph.NodeHandle]*Node
	changes  map[string]int
	dynamic  bool
}

// Compile the topology for the device, selecting kernels from the registry.
//
// It either returns a fully compiled program or an error: the first shape, fusion or kernel
// selection error aborts the compilation.
func Compile(t *graph.Topology, reg *kernels.Registry, caps *device.Capabilities, cfg *Config) (*Program, error) {
	var prog *Program
	var compileErr error
	start := time.Now()
	err := exceptions.TryCatch[error](func() { prog, compileErr = compile(t, reg, caps, cfg) })
	if err == nil {
		err = compileErr
	}
	if err != nil {
		return nil, errors.WithMessage(err, "compile failed")
	}
	elapsed := time.Since(start)
	metrics.RecordCompile(elapsed)
	klog.V(1).Infof("compiled %d executable nodes in %s", len(prog.nodes), elapsed)
	return prog, nil
}

func compile(t *graph.Topology, reg *kernels.Registry, caps *device.Capabilities, cfg *Config) (*Program, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := graph.FromTopology(t)
	if err != nil {
		return nil, err
	}
	prog := &Program{
		graph:    p,
		registry: reg,
		caps:     caps,
		config:   cfg.Clone(),
		byHandle: make(map[graph.NodeHandle]*Node),
	}
	for _, h := range p.Inputs() {
		l, err := p.OutputLayout(h, 0, true)
		if err != nil {
			return nil, err
		}
		if l.IsDynamic() {
			if !cfg.DynamicShapes {
				return nil, errors.Errorf("input %q has dynamic layout %s, but dynamic shapes are disabled", p.Node(h).ID(), l)
			}
			prog.dynamic = true
		}
	}

	manager := passes.NewManager().Add("seed_layouts", passes.SeedLayouts)
	if cfg.PreferBlockedFormats {
		manager.Add("prefer_formats", func(p *graph.Program) (int, error) { return passes.PreferFormats(p, caps) })
	}
	manager.Add("fuse_primitives", func(p *graph.Program) (int, error) { return passes.FusePrimitives(p, caps, cfg.Fusions) })
	manager.Add("order_ids", passes.AssignOrderIDs)
	manager.Add("compile_nodes", func(p *graph.Program) (int, error) {
		nodes, err := CompileNodes(p, reg, caps, cfg)
		prog.nodes = nodes
		return len(nodes), err
	})
	prog.changes, err = manager.Run(p)
	if err != nil {
		return nil, err
	}
	for _, node := range prog.nodes {
		prog.byHandle[node.Handle] = node
	}
	return prog, nil
}

// Graph returns the compiled program graph. It must not be changed.
func (p *Program) Graph() *graph.Program { return p.graph }

// Registry the kernels were selected from.
func (p *Program) Registry() *kernels.Registry { return p.registry }

// Capabilities of the device the program was compiled for.
func (p *Program) Capabilities() *device.Capabilities { return p.caps }

// Config used to compile the program.
func (p *Program) Config() *Config { return p.config }

// Nodes returns the executable nodes, in execution order.
func (p *Program) Nodes() []*Node { return p.nodes }

// NodeFor returns the executable node of the handle, or nil for Input and Data nodes.
func (p *Program) NodeFor(h graph.NodeHandle) *Node { return p.byHandle[h] }

// PassChanges returns the number of changes of each compilation pass.
func (p *Program) PassChanges() map[string]int { return p.changes }

// IsDynamic returns whether some network input has dynamic dimensions.
func (p *Program) IsDynamic() bool { return p.dynamic }

// InputLayouts returns the declared layout of each network input, by id.
func (p *Program) InputLayouts() map[string]layout.Layout {
	layouts := make(map[string]layout.Layout)
	for _, h := range p.graph.Inputs() {
		layouts[p.graph.Node(h).ID()] = p.graph.Node(h).Attrs().(graph.InputAttrs).Layout
	}
	return layouts
}

// PostOps returns the compiled post-op chain of the node h. It returns an empty chain for nodes
// without a kernel.
func (p *Program) PostOps(h graph.NodeHandle) (postops.Chain, postops.Attrs, error) {
	node := p.byHandle[h]
	if node == nil {
		return nil, postops.Attrs{OutputScale: 1}, nil
	}
	return node.Params.PostOps, node.Params.PostOpAttrs, nil
}
