// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sim implements a simulated device for the runtime: an in-order Stream that executes
// command lists on its own goroutine, command lists that can be patched in place, and a bump
// Allocator of host backed memory.
//
// Kernels are not computed, the stream only records what it executed.
package sim

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/runtime"
	"github.com/gomlx/gpuplan/pkg/support/xsync"
	"github.com/pkg/errors"
)

// Event is set by the stream goroutine when the work it marks completes.
type Event struct {
	latch *xsync.Latch
}

var _ runtime.Event = (*Event)(nil)

func newEvent() *Event { return &Event{latch: xsync.NewLatch()} }

// Wait implements runtime.Event.
func (e *Event) Wait(ctx context.Context) error { return e.latch.WaitContext(ctx) }

// IsSet implements runtime.Event.
func (e *Event) IsSet() bool { return e.latch.Test() }

// Stats of a Stream.
type Stats struct {
	CommandListsCreated int
	Submissions         int
	Barriers            int
	Markers             int
	CommandsExecuted    int
	Updates             int
}

// Stream is an in-order queue executed by a goroutine. Create it with NewStream and Close it
// when done.
type Stream struct {
	mutable bool
	latency time.Duration

	queue chan func()
	done  chan struct{}

	// closeMu guards closed and the sends to queue.
	closeMu sync.RWMutex
	closed  bool

	mu           sync.Mutex
	stats        Stats
	lastExecuted []runtime.Command
	enqueued     []Op
}

//go:generate go tool enumer -type=Op -trimprefix=Op -transform=snake -text -yaml -output=gen_op_enumer.go sim.go

// Op is the kind of an operation enqueued in a Stream.
type Op int

const (
	OpBarrier Op = iota
	OpMarker
	OpCommandList
)

var _ runtime.Stream = (*Stream)(nil)

// NewStream creates a stream for a device with the given capabilities. Command lists are
// mutable if the device supports it.
func NewStream(caps *device.Capabilities) *Stream {
	s := &Stream{
		mutable: caps.SupportsMutableCommandList,
		queue:   make(chan func(), 1024),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		for work := range s.queue {
			work()
		}
	}()
	return s
}

// WithLatency sets how long the execution of each command list takes.
func (s *Stream) WithLatency(latency time.Duration) *Stream {
	s.latency = latency
	return s
}

// Close the stream after the pending work executed.
func (s *Stream) Close() {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.closeMu.Unlock()
	<-s.done
}

func (s *Stream) enqueue(work func()) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return errors.New("stream closed")
	}
	s.queue <- work
	return nil
}

// Stats returns a snapshot of the stream counters.
func (s *Stream) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// LastExecuted returns the commands of the last command list executed.
func (s *Stream) LastExecuted() []runtime.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lastExecuted)
}

// Enqueued returns the operations enqueued so far, in order.
func (s *Stream) Enqueued() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.enqueued)
}

func (s *Stream) record(op Op) {
	s.mu.Lock()
	s.enqueued = append(s.enqueued, op)
	s.mu.Unlock()
}

// SupportsMutableCommandLists implements runtime.Stream.
func (s *Stream) SupportsMutableCommandLists() bool { return s.mutable }

// NewCommandList implements runtime.Stream.
func (s *Stream) NewCommandList(mutable bool) (runtime.CommandList, error) {
	if mutable && !s.mutable {
		return nil, errors.New("device doesn't support mutable command lists")
	}
	s.mu.Lock()
	s.stats.CommandListsCreated++
	s.mu.Unlock()
	return &CommandList{stream: s, mutable: mutable}, nil
}

// EnqueueBarrier implements runtime.Stream. The stream is in order, so it's only counted.
func (s *Stream) EnqueueBarrier() error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return errors.New("stream closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Barriers++
	s.enqueued = append(s.enqueued, OpBarrier)
	return nil
}

// EnqueueMarker implements runtime.Stream.
func (s *Stream) EnqueueMarker(deps []runtime.Event) (runtime.Event, error) {
	event := newEvent()
	deps = slices.Clone(deps)
	err := s.enqueue(func() {
		for _, dep := range deps {
			_ = dep.Wait(context.Background())
		}
		s.mu.Lock()
		s.stats.Markers++
		s.mu.Unlock()
		event.latch.Trigger()
	})
	if err != nil {
		return nil, err
	}
	s.record(OpMarker)
	return event, nil
}

// EnqueueCommandList implements runtime.Stream.
func (s *Stream) EnqueueCommandList(list runtime.CommandList) (runtime.Event, error) {
	cl, ok := list.(*CommandList)
	if !ok || cl.stream != s {
		return nil, errors.Errorf("command list %T was not created by this stream", list)
	}
	commands, err := cl.snapshot()
	if err != nil {
		return nil, err
	}
	event := newEvent()
	err = s.enqueue(func() {
		if s.latency > 0 {
			time.Sleep(s.latency)
		}
		s.mu.Lock()
		s.stats.Submissions++
		s.stats.CommandsExecuted += len(commands)
		s.lastExecuted = commands
		s.mu.Unlock()
		event.latch.Trigger()
	})
	if err != nil {
		return nil, err
	}
	s.record(OpCommandList)
	return event, nil
}

// CommandList records commands. Mutable lists can be updated after being closed.
type CommandList struct {
	stream  *Stream
	mutable bool

	mu       sync.Mutex
	closed   bool
	commands []runtime.Command
	updates  int
}

var _ runtime.CommandList = (*CommandList)(nil)

// Append implements runtime.CommandList.
func (cl *CommandList) Append(cmd runtime.Command) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.closed {
		return errors.New("command list is closed")
	}
	cl.commands = append(cl.commands, cmd)
	return nil
}

// Close implements runtime.CommandList.
func (cl *CommandList) Close() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.closed {
		return errors.New("command list already closed")
	}
	cl.closed = true
	return nil
}

// Mutable implements runtime.CommandList.
func (cl *CommandList) Mutable() bool { return cl.mutable }

// Update implements runtime.CommandList.
func (cl *CommandList) Update(idx int, cmd runtime.Command) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	switch {
	case !cl.mutable:
		return errors.New("command list is immutable")
	case !cl.closed:
		return errors.New("command list must be closed before being updated")
	case idx < 0 || idx >= len(cl.commands):
		return errors.Errorf("command index %d out of range [0, %d)", idx, len(cl.commands))
	}
	cl.commands[idx] = cmd
	cl.updates++
	cl.stream.mu.Lock()
	cl.stream.stats.Updates++
	cl.stream.mu.Unlock()
	return nil
}

// Len implements runtime.CommandList.
func (cl *CommandList) Len() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.commands)
}

// Commands returns a copy of the commands recorded.
func (cl *CommandList) Commands() []runtime.Command {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return slices.Clone(cl.commands)
}

// Updates returns the number of commands patched in place.
func (cl *CommandList) Updates() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.updates
}

func (cl *CommandList) snapshot() ([]runtime.Command, error) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if !cl.closed {
		return nil, errors.New("command list must be closed before being submitted")
	}
	return slices.Clone(cl.commands), nil
}
