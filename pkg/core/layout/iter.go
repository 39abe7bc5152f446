// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package layout

import (
	"iter"

	"github.com/pkg/errors"
)

// Iter iterates sequentially over all possible indices of the logical dimensions.
//
// It yields the flat row-major index and a slice of indices for each axis.
// The yielded indices slice is owned by Iter: don't change it inside the loop.
//
// It panics for dynamic layouts.
func (l Layout) Iter() iter.Seq2[int, []int] {
	if l.IsDynamic() {
		panic(errors.Errorf("Layout.Iter() called on dynamic layout %s", l))
	}
	indices := make([]int, l.Rank())
	return func(yield func(int, []int) bool) {
		count := l.Count()
		for flat := range count {
			if !yield(flat, indices) {
				return
			}
			// Increment indices, innermost axis first.
			for axis := l.Rank() - 1; axis >= 0; axis-- {
				indices[axis]++
				if indices[axis] < l.Dims[axis] {
					break
				}
				indices[axis] = 0
			}
		}
	}
}

// FlatIndex returns the row-major flat index of the given per-axis indices.
func (l Layout) FlatIndex(indices []int) int {
	flat := 0
	for axis, idx := range indices {
		flat = flat*l.Dims[axis] + idx
	}
	return flat
}
