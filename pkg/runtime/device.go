// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package runtime executes compiled programs: a Network instantiates a compiler.Program on a
// device Stream, split into ExecutionGroups whose command lists are built once and patched in
// place on later runs, and an InferRequest pipelines host setup and device completion over
// executors.
//
// The device itself (streams, command lists, events and memory) is only reached through the
// interfaces in this file, see package sim for a simulated implementation.
package runtime

import (
	"context"
	"fmt"

	"github.com/gomlx/gpuplan/pkg/kernels"
)

// Event signals the completion of work enqueued in a Stream.
type Event interface {
	// Wait blocks until the event is set or the context is done.
	Wait(ctx context.Context) error

	// IsSet returns whether the event was already set, without blocking.
	IsSet() bool
}

//go:generate go tool enumer -type=MemoryRole -trimprefix=Memory -transform=snake -text -yaml -output=gen_memoryrole_enumer.go device.go

// MemoryRole tags a memory request with what it holds.
type MemoryRole int

const (
	MemoryInput MemoryRole = iota
	MemoryOutput
	MemoryConstant
	MemoryInternal
)

// MemoryRequest is what the runtime asks from an Allocator: a size and a role.
type MemoryRequest struct {
	Name  string
	Role  MemoryRole
	Bytes int64
}

// Memory is an opaque handle to device memory returned by an Allocator.
type Memory interface {
	// Address of the memory on the device. Only used to bind kernel arguments.
	Address() uint64

	// Bytes allocated.
	Bytes() int64

	Role() MemoryRole

	// Write host data to the memory, starting at offset.
	Write(offset int64, data []byte) error
}

// Allocator is the memory allocation collaborator: the runtime never implements the allocation
// algorithm itself.
type Allocator interface {
	Allocate(req MemoryRequest) (Memory, error)
	Release(mem Memory)
}

// Binding of one kernel argument.
type Binding struct {
	Argument kernels.Argument

	// Memory bound to tensor and internal buffer arguments, nil for scalars.
	Memory Memory

	// Dims bound to scalar arguments: the concrete dimensions of a dynamic layout.
	Dims []int
}

// String implements fmt.Stringer.
func (b Binding) String() string {
	if b.Memory == nil {
		return fmt.Sprintf("%s=%v", b.Argument, b.Dims)
	}
	return fmt.Sprintf("%s=0x%x", b.Argument, b.Memory.Address())
}

// Command is one kernel invocation in a CommandList.
type Command struct {
	Kernel     string
	EntryPoint string
	Dispatch   kernels.DispatchData
	Bindings   []Binding
}

// CommandList is an opaque, backend specific, encoding of a sequence of kernel invocations.
//
// Commands are appended until Close is called. After that, mutable command lists can be patched
// in place with Update; immutable ones can only be replaced by a new list.
type CommandList interface {
	Append(cmd Command) error
	Close() error
	Mutable() bool
	Update(idx int, cmd Command) error
	Len() int
}

// Stream is the device submission collaborator. Work enqueued executes in order.
type Stream interface {
	// NewCommandList creates an empty command list. If mutable is set, the stream must support
	// mutable command lists.
	NewCommandList(mutable bool) (CommandList, error)

	// SupportsMutableCommandLists returns whether command lists can be patched in place.
	SupportsMutableCommandLists() bool

	// EnqueueBarrier makes the following work wait for all the work enqueued before.
	EnqueueBarrier() error

	// EnqueueMarker returns an event set once the given events and all previous work completed.
	// The following work doesn't start before that.
	EnqueueMarker(deps []Event) (Event, error)

	// EnqueueCommandList submits a closed command list, and returns its completion event.
	EnqueueCommandList(list CommandList) (Event, error)
}
