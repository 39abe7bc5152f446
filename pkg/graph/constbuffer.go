// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"slices"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
)

// ConstBuffer holds the value of a constant (KindData) primitive.
//
// Values are stored as float32 in logical row-major order, already rounded to the buffer dtype.
// The buffer can be rewritten in place (see Mutate) during compilation, until it is frozen
// when the first network using it is created.
type ConstBuffer struct {
	mu     sync.RWMutex
	layout layout.Layout
	values []float32
	frozen bool
}

// NewConstBuffer creates a constant buffer with the given static layout and values.
// It panics if the number of values doesn't match the layout.
func NewConstBuffer(l layout.Layout, values []float32) *ConstBuffer {
	if l.IsDynamic() {
		exceptions.Panicf("NewConstBuffer(%s): constants can't have dynamic dimensions", l)
	}
	if len(values) != l.Count() {
		exceptions.Panicf("NewConstBuffer(%s): got %d values, wanted %d", l, len(values), l.Count())
	}
	b := &ConstBuffer{layout: l.Clone(), values: slices.Clone(values)}
	b.round()
	return b
}

// FillConstBuffer creates a constant buffer where values are generated by fn from the flat index.
func FillConstBuffer(l layout.Layout, fn func(flat int) float32) *ConstBuffer {
	values := make([]float32, l.Count())
	for ii := range values {
		values[ii] = fn(ii)
	}
	return NewConstBuffer(l, values)
}

func (b *ConstBuffer) round() {
	for ii, v := range b.values {
		b.values[ii] = dtypes.RoundTrip(b.layout.DType, v)
	}
}

// Layout of the constant.
func (b *ConstBuffer) Layout() layout.Layout {
	return b.layout
}

// Values returns a copy of the values of the buffer.
func (b *ConstBuffer) Values() []float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.values)
}

// At returns the value at the given flat index.
func (b *ConstBuffer) At(flat int) float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.values[flat]
}

// Bytes returns the encoding of the buffer in its dtype, as it would be uploaded to the device.
func (b *ConstBuffer) Bytes() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return dtypes.Encode(b.layout.DType, b.values)
}

// Mutate rewrites the values of the buffer in place while holding exclusive access to it.
// The values are rounded to the buffer dtype afterwards.
//
// It returns ErrBufferFrozen if the buffer was already frozen, or the error returned by fn,
// in which case the values are left unchanged.
func (b *ConstBuffer) Mutate(fn func(values []float32) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return ErrBufferFrozen
	}
	scratch := slices.Clone(b.values)
	if err := fn(scratch); err != nil {
		return err
	}
	b.values = scratch
	b.round()
	return nil
}

// Freeze the buffer: further calls to Mutate fail. It's idempotent.
func (b *ConstBuffer) Freeze() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen = true
}

// Frozen returns whether the buffer was frozen.
func (b *ConstBuffer) Frozen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frozen
}

// Clone returns an unfrozen copy of the buffer.
func (b *ConstBuffer) Clone() *ConstBuffer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return &ConstBuffer{layout: b.layout.Clone(), values: slices.Clone(b.values)}
}
