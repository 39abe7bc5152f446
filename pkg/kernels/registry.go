// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gpuplan/internal/metrics"
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Registry of kernel implementations, with ordered lists per Kind.
// It is populated before compilation and read-only afterwards.
type Registry struct {
	byKind [graph.KindLast][]Implementation
	byName map[string]Implementation
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Implementation)}
}

// Register appends the implementations, in order. The registration order breaks priority ties.
//
// It panics if an implementation name is already registered or the kind is invalid.
func (r *Registry) Register(impls ...Implementation) *Registry {
	for _, impl := range impls {
		name := impl.Name()
		if _, found := r.byName[name]; found {
			exceptions.Panicf("kernels.Registry.Register: implementation %q already registered", name)
		}
		kind := impl.Kind()
		if !kind.IsExecutable() {
			exceptions.Panicf("kernels.Registry.Register(%q): kind %s has no kernels", name, kind)
		}
		r.byName[name] = impl
		r.byKind[kind] = append(r.byKind[kind], impl)
	}
	return r
}

// Implementations returns the implementations registered for the kind, in registration order.
func (r *Registry) Implementations(kind graph.Kind) []Implementation {
	if kind < 0 || kind >= graph.KindLast {
		return nil
	}
	return slices.Clone(r.byKind[kind])
}

// Lookup an implementation by name.
func (r *Registry) Lookup(name string) (Implementation, bool) {
	impl, found := r.byName[name]
	return impl, found
}

// Len returns the number of registered implementations.
func (r *Registry) Len() int { return len(r.byName) }

// Best returns the implementation of lowest priority accepting the parameters. Ties go to the
// first registered.
//
// It returns a *NoSuitableKernelError listing why each implementation was rejected otherwise.
func (r *Registry) Best(params *Params, caps *device.Capabilities) (Implementation, Priority, error) {
	required := params.RequiredKey()
	var (
		best         Implementation
		bestPriority Priority
		rejections   []Rejection
	)
	for _, impl := range r.Implementations(params.Kind) {
		if missing := impl.SupportedKey().missing(required); missing != "" {
			rejections = append(rejections, Rejection{impl.Name(), "unsupported " + missing})
			continue
		}
		if err := impl.Validate(params, caps); err != nil {
			rejections = append(rejections, Rejection{impl.Name(), err.Error()})
			continue
		}
		priority := impl.Priority(params, caps)
		if priority == PriorityDontUse {
			rejections = append(rejections, Rejection{impl.Name(), "priority dont_use"})
			continue
		}
		if best == nil || priority < bestPriority {
			best, bestPriority = impl, priority
		}
	}
	if best == nil {
		return nil, 0, &NoSuitableKernelError{NodeID: params.NodeID, Kind: params.Kind, Rejections: rejections}
	}
	return best, bestPriority, nil
}

// Select picks the best implementation for the parameters (see Best) and builds its SelectedKernel.
func (r *Registry) Select(params *Params, caps *device.Capabilities) (*SelectedKernel, error) {
	impl, priority, err := r.Best(params, caps)
	if err != nil {
		metrics.RecordSelectionFailure(params.Kind.String())
		return nil, err
	}
	selected, err := impl.Dispatch(params, caps)
	if err != nil {
		metrics.RecordSelectionFailure(params.Kind.String())
		return nil, errors.WithMessagef(err, "kernel %s failed to dispatch node %q", impl.Name(), params.NodeID)
	}
	selected.Kernel = impl.Name()
	selected.Priority = priority
	if err := selected.check(); err != nil {
		return nil, errors.WithMessagef(err, "kernel %s for node %q", impl.Name(), params.NodeID)
	}
	metrics.RecordSelection(params.Kind.String(), impl.Name())
	klog.V(2).Infof("selected %s (%s) for %s", impl.Name(), priority, params)
	return selected, nil
}

func (k *SelectedKernel) check() error {
	for axis := range 3 {
		if k.Dispatch.GWS[axis] < 1 || k.Dispatch.LWS[axis] < 1 {
			return errors.Errorf("invalid work sizes %s", k.Dispatch)
		}
		if k.Dispatch.GWS[axis]%k.Dispatch.LWS[axis] != 0 {
			return errors.Errorf("local work size doesn't divide global work size: %s", k.Dispatch)
		}
	}
	return nil
}
