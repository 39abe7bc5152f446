// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sim

import (
	"context"
	"testing"
	"time"

	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/runtime"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream(t *testing.T) {
	s := NewStream(must.M1(device.Preset("integrated"))).WithLatency(time.Millisecond)
	defer s.Close()
	require.True(t, s.SupportsMutableCommandLists())

	list := must.M1(s.NewCommandList(true))
	require.NoError(t, list.Append(runtime.Command{Kernel: "a"}))
	require.NoError(t, list.Append(runtime.Command{Kernel: "b"}))
	_, err := s.EnqueueCommandList(list)
	require.Error(t, err, "open lists can't be submitted")
	require.Error(t, list.Update(0, runtime.Command{Kernel: "c"}), "open lists can't be updated")
	require.NoError(t, list.Close())
	require.Error(t, list.Append(runtime.Command{}))

	require.NoError(t, s.EnqueueBarrier())
	first := must.M1(s.EnqueueCommandList(list))
	require.NoError(t, list.Update(1, runtime.Command{Kernel: "c"}))
	marker := must.M1(s.EnqueueMarker([]runtime.Event{first}))
	second := must.M1(s.EnqueueCommandList(list))
	require.Error(t, list.Update(2, runtime.Command{}))

	require.NoError(t, second.Wait(context.Background()))
	assert.True(t, first.IsSet())
	assert.True(t, marker.IsSet())
	stats := s.Stats()
	assert.Equal(t, Stats{CommandListsCreated: 1, Submissions: 2, Barriers: 1, Markers: 1, CommandsExecuted: 4, Updates: 1}, stats)
	executed := s.LastExecuted()
	require.Len(t, executed, 2)
	assert.Equal(t, "c", executed[1].Kernel)
}

func TestImmutableStream(t *testing.T) {
	s := NewStream(must.M1(device.Preset("minimal")))
	defer s.Close()
	assert.False(t, s.SupportsMutableCommandLists())
	_, err := s.NewCommandList(true)
	require.Error(t, err)
	list := must.M1(s.NewCommandList(false))
	require.NoError(t, list.Append(runtime.Command{Kernel: "a"}))
	require.NoError(t, list.Close())
	require.Error(t, list.Update(0, runtime.Command{Kernel: "b"}))

	other := NewStream(must.M1(device.Preset("minimal")))
	_, err = other.EnqueueCommandList(list)
	require.Error(t, err)
	other.Close()
	_, err = other.EnqueueMarker(nil)
	require.Error(t, err)
}

func TestAllocator(t *testing.T) {
	a := NewAllocator().WithLimit(1000)
	m1 := must.M1(a.Allocate(runtime.MemoryRequest{Name: "x", Role: runtime.MemoryInput, Bytes: 300}))
	m2 := must.M1(a.Allocate(runtime.MemoryRequest{Name: "y", Role: runtime.MemoryOutput, Bytes: 500}))
	assert.Equal(t, uint64(Alignment), m1.Address())
	assert.Equal(t, uint64(Alignment+512), m2.Address())
	assert.Equal(t, runtime.MemoryOutput, m2.Role())

	_, err := a.Allocate(runtime.MemoryRequest{Name: "z", Bytes: 300})
	require.ErrorContains(t, err, "out of device memory")
	_, err = a.Allocate(runtime.MemoryRequest{Name: "empty"})
	require.Error(t, err)

	require.NoError(t, m1.Write(298, []byte{1, 2}))
	require.Error(t, m1.Write(299, []byte{1, 2}))
	assert.Equal(t, []byte{1, 2}, m1.(*Memory).Data()[298:])

	a.Release(m1)
	a.Release(m1)
	assert.Equal(t, AllocatorStats{Allocations: 2, Releases: 1, LiveBytes: 500, PeakBytes: 800}, a.Stats())
	m3 := must.M1(a.Allocate(runtime.MemoryRequest{Name: "z", Bytes: 300}))
	assert.Greater(t, m3.Address(), m2.Address(), "addresses are never reused")
}
