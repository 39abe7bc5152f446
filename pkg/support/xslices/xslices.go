// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provide small slice helpers missing from the standard slices package,
// used by the shape rules, the kernel catalog and the reference interpreter.
package xslices

// NormalizeIndex converts a possibly negative index (counting from the end) into a position in
// a sequence of the given length. It doesn't check bounds.
func NormalizeIndex(index, length int) int {
	if index < 0 {
		return length + index
	}
	return index
}

// At takes an element at the given `index`, where `index` can be negative, in which case it takes from the end
// of the slice.
func At[T any](slice []T, index int) T {
	return slice[NormalizeIndex(index, len(slice))]
}

// Last returns the last element of a slice.
func Last[T any](slice []T) T {
	return At(slice, -1)
}

// ValueOr returns slice[index], or defaultValue if the slice is too short.
// Used for per-axis attributes that may be omitted, like strides or paddings.
func ValueOr[T any](slice []T, index int, defaultValue T) T {
	if index >= 0 && index < len(slice) {
		return slice[index]
	}
	return defaultValue
}

// AllEqual returns whether every element of slice equals want. It is true for an empty slice.
func AllEqual[T comparable](slice []T, want T) bool {
	for _, v := range slice {
		if v != want {
			return false
		}
	}
	return true
}

// Copy creates a new (shallow) copy of T. A short cut to a call to `make` and then `copy`.
func Copy[T any](slice []T) []T {
	if len(slice) == 0 {
		return nil
	}
	slice2 := make([]T, len(slice))
	copy(slice2, slice)
	return slice2
}
