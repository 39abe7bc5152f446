// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package kernels is the kernel selector core: the parameters of a node (Params), the
// compatibility keys (Key) and ranks (Priority) of kernel implementations, the registry that
// picks the best implementation for a node and the result of the selection (SelectedKernel).
//
// The set of implementations is closed (see package catalog), but each one is only reachable
// through the Implementation interface and an explicit Registry, so tests can build registries
// with their own implementations.
package kernels

import (
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/graph"
)

// Implementation of a kernel for one Kind of primitive.
type Implementation interface {
	// Name of the implementation, unique in a Registry.
	Name() string

	// Kind of primitive the implementation runs.
	Kind() graph.Kind

	// SupportedKey returns the bits of Key the implementation supports.
	SupportedKey() Key

	// Validate checks the parameters beyond the key: attribute values, alignments, device limits.
	Validate(params *Params, caps *device.Capabilities) error

	// Priority of the implementation for the given parameters: lowest wins.
	Priority(params *Params, caps *device.Capabilities) Priority

	// Dispatch builds the selected kernel for the parameters: work sizes, arguments, source.
	// It is only called on parameters the implementation validated.
	Dispatch(params *Params, caps *device.Capabilities) (*SelectedKernel, error)
}

// Base can be embedded by Implementation types to provide Name, Kind and SupportedKey, plus a
// default Validate (accept everything) and a fixed Priority.
type Base struct {
	name     string
	kind     graph.Kind
	key      Key
	priority Priority
}

// NewBase creates a Base.
func NewBase(name string, kind graph.Kind, key Key, priority Priority) Base {
	return Base{name: name, kind: kind, key: key, priority: priority}
}

// Name implements Implementation.
func (b *Base) Name() string { return b.name }

// Kind implements Implementation.
func (b *Base) Kind() graph.Kind { return b.kind }

// SupportedKey implements Implementation.
func (b *Base) SupportedKey() Key { return b.key }

// Validate implements Implementation: it accepts everything.
func (b *Base) Validate(*Params, *device.Capabilities) error { return nil }

// Priority implements Implementation: the fixed priority given to NewBase.
func (b *Base) Priority(*Params, *device.Capabilities) Priority { return b.priority }
