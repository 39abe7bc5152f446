// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package passes implements the graph rewrites run before kernel selection: layout seeding,
// format preferences, fusion of primitives into their producers and order ids assignment.
//
// Passes are functions over a *graph.Program returning the number of changes, and are run in
// sequence by a Manager.
package passes

import (
	"time"

	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// PassFn runs a pass over the program and returns the number of changes it did.
type PassFn func(p *graph.Program) (int, error)

type pass struct {
	name string
	fn   PassFn
}

// Manager runs a named list of passes in order.
type Manager struct {
	passes []pass
}

// NewManager creates an empty pass manager.
func NewManager() *Manager {
	return &Manager{}
}

// Add a pass to the end of the list. It returns the manager, so calls can be chained.
func (m *Manager) Add(name string, fn PassFn) *Manager {
	m.passes = append(m.passes, pass{name: name, fn: fn})
	return m
}

// Names of the passes, in order.
func (m *Manager) Names() []string {
	names := make([]string, len(m.passes))
	for ii, pass := range m.passes {
		names[ii] = pass.name
	}
	return names
}

// Run all passes over the program, stopping at the first error.
// It returns the number of changes of each pass.
func (m *Manager) Run(p *graph.Program) (map[string]int, error) {
	changes := make(map[string]int, len(m.passes))
	for _, pass := range m.passes {
		start := time.Now()
		n, err := pass.fn(p)
		if err != nil {
			return changes, errors.WithMessagef(err, "pass %q", pass.name)
		}
		changes[pass.name] += n
		klog.V(1).Infof("pass %q: %d changes, %d nodes, %s", pass.name, n, p.NumNodes(), time.Since(start))
	}
	return changes, nil
}
