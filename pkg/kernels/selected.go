// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"fmt"
	"slices"

	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/kernels/jit"
)

//go:generate go tool enumer -type=ArgumentRole -trimprefix=Arg -transform=snake -text -yaml -output=gen_argumentrole_enumer.go selected.go

// ArgumentRole of a kernel argument.
type ArgumentRole int

const (
	ArgInput ArgumentRole = iota
	ArgOutput
	ArgInternalBuffer
	ArgScalar
	ArgFusedInput
)

// Argument of a kernel: a role and the index within that role.
type Argument struct {
	Role  ArgumentRole
	Index int
}

// String implements fmt.Stringer.
func (a Argument) String() string { return fmt.Sprintf("%s[%d]", a.Role, a.Index) }

// DispatchData is the geometry of one kernel dispatch.
type DispatchData struct {
	// GWS and LWS are the global and local work sizes. Every axis is >= 1 and LWS divides GWS.
	GWS, LWS [3]int

	// InternalBuffers are the byte sizes of the scratch buffers the kernel needs.
	InternalBuffers []int64
}

// Clone returns a copy of the dispatch data.
func (d DispatchData) Clone() DispatchData {
	d.InternalBuffers = slices.Clone(d.InternalBuffers)
	return d
}

// Equal compares two dispatch geometries.
func (d DispatchData) Equal(o DispatchData) bool {
	return d.GWS == o.GWS && d.LWS == o.LWS && slices.Equal(d.InternalBuffers, o.InternalBuffers)
}

// String implements fmt.Stringer.
func (d DispatchData) String() string {
	s := fmt.Sprintf("gws=%v lws=%v", d.GWS, d.LWS)
	if len(d.InternalBuffers) > 0 {
		s += fmt.Sprintf(" internal=%v", d.InternalBuffers)
	}
	return s
}

// UpdateDispatchFn recomputes the dispatch geometry of a dynamic kernel from the concrete input
// and output layouts. It returns a *DispatchUpdateError if the kernel can't handle the shapes.
type UpdateDispatchFn func(inputs, outputs []layout.Layout) (DispatchData, error)

// SelectedKernel is the result of kernel selection for one node. It is immutable once attached
// to the node.
type SelectedKernel struct {
	// Kernel is the name of the implementation selected.
	Kernel   string
	Priority Priority

	EntryPoint string
	Dispatch   DispatchData
	Arguments  []Argument

	// Source is the generated kernel source, Constants the JIT constants it was generated with.
	Source    string
	Constants *jit.Constants

	// UpdateDispatch is set for kernels selected for dynamic shapes. Nil for static ones.
	UpdateDispatch UpdateDispatchFn
}

// IsDynamic returns whether the dispatch geometry needs to be computed per call.
func (k *SelectedKernel) IsDynamic() bool { return k.UpdateDispatch != nil }

// String implements fmt.Stringer.
func (k *SelectedKernel) String() string {
	return fmt.Sprintf("%s[%s, %s, args=%v]", k.Kernel, k.Priority, k.Dispatch, k.Arguments)
}
