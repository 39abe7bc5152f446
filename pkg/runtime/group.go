// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"context"
	"slices"

	"github.com/gomlx/gpuplan/internal/metrics"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

//go:generate go tool enumer -type=GroupState -trimprefix=Group -transform=snake -text -yaml -output=gen_groupstate_enumer.go group.go

// GroupState is the state of the command list of an ExecutionGroup.
type GroupState int

const (
	// GroupUnbuilt has no command list.
	GroupUnbuilt GroupState = iota

	// GroupBuiltImmutable has a command list that can only be replaced.
	GroupBuiltImmutable

	// GroupBuiltMutable has a command list that can be patched in place.
	GroupBuiltMutable
)

// ExecutionGroup is a contiguous slice [start, end) of the executable nodes of a network,
// replayed as one command list.
type ExecutionGroup struct {
	net        *Network
	start, end int
	insts      []*PrimitiveInst

	state    GroupState
	list     CommandList
	commands []Command // Last commands written to list.

	builds, mutations int
}

// Range returns the interval of executable nodes of the group.
func (g *ExecutionGroup) Range() (start, end int) { return g.start, g.end }

// Instances returns the primitive instances of the group, in execution order.
func (g *ExecutionGroup) Instances() []*PrimitiveInst { return g.insts }

// State of the command list.
func (g *ExecutionGroup) State() GroupState { return g.state }

// Builds returns how many times the command list was built.
func (g *ExecutionGroup) Builds() int { return g.builds }

// Mutations returns how many times the command list was patched in place.
func (g *ExecutionGroup) Mutations() int { return g.mutations }

// CommandList returns the current command list, nil if the group is unbuilt.
func (g *ExecutionGroup) CommandList() CommandList { return g.list }

// Run the group after the deps events: prepare the primitives, build or patch the command list,
// and submit it behind a barrier. It returns the completion event.
//
// If preparing any primitive fails, the command list is left untouched and usable by the next run.
func (g *ExecutionGroup) Run(ctx context.Context, deps []Event) (Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rebuild, err := g.preparePrimitives()
	if err != nil {
		return nil, err
	}
	commands := make([]Command, 0, len(g.insts))
	for _, pi := range g.insts {
		cmd, err := pi.command()
		if err != nil {
			return nil, err
		}
		commands = append(commands, cmd)
	}

	if rebuild || g.state != GroupBuiltMutable {
		err = g.buildList(commands)
	} else {
		err = g.mutate(commands)
		if errors.Is(err, errRebuildRequired) {
			err = g.buildList(commands)
		}
	}
	if err != nil {
		return nil, err
	}

	stream := g.net.stream
	if len(deps) > 0 {
		if _, err := stream.EnqueueMarker(deps); err != nil {
			return nil, errors.WithMessage(err, "enqueuing dependencies marker")
		}
	}
	if err := stream.EnqueueBarrier(); err != nil {
		return nil, errors.WithMessage(err, "enqueuing barrier")
	}
	event, err := stream.EnqueueCommandList(g.list)
	if err != nil {
		return nil, errors.WithMessage(err, "enqueuing command list")
	}
	return event, nil
}

// preparePrimitives prepares every member and allocates their memory. It returns whether a
// member changed its kernel.
func (g *ExecutionGroup) preparePrimitives() (rebuild bool, err error) {
	for _, pi := range g.insts {
		changed, err := pi.Prepare(g.net.layouts)
		if err != nil {
			return false, err
		}
		if changed {
			klog.V(2).Infof("group [%d, %d): %s node %q changed kernel to %s", g.start, g.end, pi.node.Kind, pi.node.ID, pi.kernel.Kernel)
			rebuild = true
		}
		if err := pi.allocate(); err != nil {
			return false, err
		}
	}
	return rebuild, nil
}

// buildList encodes a new command list from scratch.
func (g *ExecutionGroup) buildList(commands []Command) error {
	mutable := g.net.stream.SupportsMutableCommandLists()
	list, err := g.net.stream.NewCommandList(mutable)
	if err != nil {
		return errors.WithMessagef(err, "creating command list of group [%d, %d)", g.start, g.end)
	}
	for _, cmd := range commands {
		if err := list.Append(cmd); err != nil {
			return errors.WithMessagef(err, "encoding %s in group [%d, %d)", cmd.EntryPoint, g.start, g.end)
		}
	}
	if err := list.Close(); err != nil {
		return errors.WithMessagef(err, "closing command list of group [%d, %d)", g.start, g.end)
	}
	g.list, g.commands = list, commands
	g.state = GroupBuiltImmutable
	if list.Mutable() {
		g.state = GroupBuiltMutable
	}
	g.builds++
	metrics.RecordGroupRun(true)
	klog.V(3).Infof("group [%d, %d): built %s command list with %d commands", g.start, g.end, g.state, len(commands))
	return nil
}

// mutate patches the commands whose geometry or bindings changed.
// It returns errRebuildRequired if the list can't be patched.
func (g *ExecutionGroup) mutate(commands []Command) error {
	if g.list == nil || !g.list.Mutable() || g.list.Len() != len(commands) {
		return errRebuildRequired
	}
	patched := 0
	for ii, cmd := range commands {
		if commandsEqual(g.commands[ii], cmd) {
			continue
		}
		if cmd.Kernel != g.commands[ii].Kernel || cmd.EntryPoint != g.commands[ii].EntryPoint {
			return errRebuildRequired
		}
		if err := g.list.Update(ii, cmd); err != nil {
			return errors.WithMessagef(err, "patching %s in group [%d, %d)", cmd.EntryPoint, g.start, g.end)
		}
		patched++
	}
	g.commands = commands
	g.mutations++
	metrics.RecordGroupRun(false)
	klog.V(3).Infof("group [%d, %d): patched %d of %d commands", g.start, g.end, patched, len(commands))
	return nil
}

func commandsEqual(a, b Command) bool {
	if a.Kernel != b.Kernel || a.EntryPoint != b.EntryPoint || !a.Dispatch.Equal(b.Dispatch) ||
		len(a.Bindings) != len(b.Bindings) {
		return false
	}
	for ii := range a.Bindings {
		ba, bb := a.Bindings[ii], b.Bindings[ii]
		if ba.Argument != bb.Argument || ba.Memory != bb.Memory || !slices.Equal(ba.Dims, bb.Dims) {
			return false
		}
	}
	return true
}
