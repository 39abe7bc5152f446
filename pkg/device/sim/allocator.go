// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sim

import (
	"sync"

	"github.com/gomlx/gpuplan/pkg/runtime"
	"github.com/pkg/errors"
)

// Alignment of the addresses returned by the Allocator.
const Alignment = 256

// Memory backed by a host slice.
type Memory struct {
	address uint64
	role    runtime.MemoryRole
	name    string

	mu   sync.Mutex
	data []byte
}

var _ runtime.Memory = (*Memory)(nil)

// Address implements runtime.Memory.
func (m *Memory) Address() uint64 { return m.address }

// Bytes implements runtime.Memory.
func (m *Memory) Bytes() int64 { return int64(len(m.data)) }

// Role implements runtime.Memory.
func (m *Memory) Role() runtime.MemoryRole { return m.role }

// Name given in the request.
func (m *Memory) Name() string { return m.name }

// Write implements runtime.Memory.
func (m *Memory) Write(offset int64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset < 0 || offset+int64(len(data)) > int64(len(m.data)) {
		return errors.Errorf("write of %d bytes at offset %d out of the %d bytes of %q", len(data), offset, len(m.data), m.name)
	}
	copy(m.data[offset:], data)
	return nil
}

// Data returns a copy of the contents.
func (m *Memory) Data() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// AllocatorStats are the counters of an Allocator.
type AllocatorStats struct {
	Allocations, Releases int
	LiveBytes, PeakBytes  int64
}

// Allocator hands out memory with monotonically increasing addresses. Addresses are never reused.
type Allocator struct {
	mu    sync.Mutex
	next  uint64
	limit int64
	live  map[uint64]*Memory
	stats AllocatorStats
}

var _ runtime.Allocator = (*Allocator)(nil)

// NewAllocator creates an allocator without limit.
func NewAllocator() *Allocator {
	return &Allocator{next: Alignment, live: make(map[uint64]*Memory)}
}

// WithLimit sets the maximum number of live bytes. 0 means no limit.
func (a *Allocator) WithLimit(bytes int64) *Allocator {
	a.limit = bytes
	return a
}

// Allocate implements runtime.Allocator.
func (a *Allocator) Allocate(req runtime.MemoryRequest) (runtime.Memory, error) {
	if req.Bytes <= 0 {
		return nil, errors.Errorf("invalid allocation of %d bytes for %q", req.Bytes, req.Name)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.limit > 0 && a.stats.LiveBytes+req.Bytes > a.limit {
		return nil, errors.Errorf("out of device memory: %d bytes requested for %q, %d of %d bytes in use",
			req.Bytes, req.Name, a.stats.LiveBytes, a.limit)
	}
	mem := &Memory{address: a.next, role: req.Role, name: req.Name, data: make([]byte, req.Bytes)}
	a.next += (uint64(req.Bytes) + Alignment - 1) / Alignment * Alignment
	a.live[mem.address] = mem
	a.stats.Allocations++
	a.stats.LiveBytes += req.Bytes
	a.stats.PeakBytes = max(a.stats.PeakBytes, a.stats.LiveBytes)
	return mem, nil
}

// Release implements runtime.Allocator. Releasing memory not owned by the allocator is a no-op.
func (a *Allocator) Release(mem runtime.Memory) {
	m, ok := mem.(*Memory)
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, found := a.live[m.address]; !found {
		return
	}
	delete(a.live, m.address)
	a.stats.Releases++
	a.stats.LiveBytes -= m.Bytes()
}

// Stats returns a snapshot of the counters.
func (a *Allocator) Stats() AllocatorStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
