// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package layout defines Layout: the element type, logical dimensions, physical format and
// padding of a tensor produced by a node of the program graph.
//
// Logical dimensions are always ordered batch, feature, then spatial axes (z, y, x for rank 5,
// y, x for rank 4, x for rank 3). The physical format (see Format) only changes how they are
// laid out in memory, so two layouts with different formats describe the same logical tensor.
//
// ## Dynamic dimensions
//
// A dimension may be unknown until dispatch time. It is then stored as Dynamic (a negative
// value) and, optionally, tagged with a symbol name (see Layout.WithAxisName): two layouts
// sharing the same symbol are known to have the same dimension at runtime. Equality is
// conservative: an anonymous dynamic dimension is never equal to anything (not even to
// itself) and named ones are only equal to the identical symbol.
//
// Use Layout.Resolve with Bindings to get the concrete layout at dispatch time.
package layout

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/pkg/errors"
)

// Dynamic is the marker for a dimension only known at dispatch time.
const Dynamic = -1

// Layout of a tensor. Use Make to create a new one.
type Layout struct {
	DType  dtypes.DType
	Format Format

	// Dims are the logical dimensions: batch, feature, spatial axes. Dynamic dimensions hold Dynamic.
	Dims []int

	// Symbols holds the symbol name of dynamic dimensions, or "" for static or anonymous ones.
	// It is nil if there are no named axes.
	Symbols []string

	// PadLower and PadUpper hold the padding per axis, or nil if there is no padding.
	PadLower, PadUpper []int
}

// Make returns a Layout with the given values. Negative dimensions are taken as Dynamic.
//
// It panics for a format that doesn't support the rank.
func Make(dtype dtypes.DType, format Format, dims ...int) Layout {
	l := Layout{DType: dtype, Format: format, Dims: slices.Clone(dims)}
	for ii, dim := range l.Dims {
		if dim == 0 {
			exceptions.Panicf("layout.Make(%s): axis #%d has dimension 0", l, ii)
		}
		if dim < 0 {
			l.Dims[ii] = Dynamic
		}
	}
	if !format.SupportsRank(len(dims)) {
		exceptions.Panicf("layout.Make(%s): format %s doesn't support rank %d", l, format, len(dims))
	}
	return l
}

// Planar is a shortcut for Make(dtype, FormatBFYX, dims...).
func Planar(dtype dtypes.DType, dims ...int) Layout {
	return Make(dtype, FormatBFYX, dims...)
}

// Invalid returns an invalid layout: Invalid().Ok() == false.
func Invalid() Layout {
	return Layout{DType: dtypes.InvalidDType}
}

// Ok returns whether this is a valid Layout.
func (l Layout) Ok() bool { return l.DType != dtypes.InvalidDType }

// Rank returns the number of logical axes.
func (l Layout) Rank() int { return len(l.Dims) }

// Batch returns the batch dimension (axis 0), or 1 for scalars.
func (l Layout) Batch() int {
	if l.Rank() == 0 {
		return 1
	}
	return l.Dims[0]
}

// Feature returns the feature dimension (axis 1), or 1 if rank < 2.
func (l Layout) Feature() int {
	if l.Rank() < 2 {
		return 1
	}
	return l.Dims[1]
}

// Spatial returns the spatial dimensions (axes 2 and beyond), outermost first.
func (l Layout) Spatial() []int {
	if l.Rank() <= 2 {
		return nil
	}
	return l.Dims[2:]
}

// SpatialDim returns the i-th spatial dimension counting from the innermost (0 is x, 1 is y, 2 is z).
// It returns 1 if the layout doesn't have that many spatial axes.
func (l Layout) SpatialDim(i int) int {
	spatial := l.Spatial()
	if i >= len(spatial) {
		return 1
	}
	return spatial[len(spatial)-1-i]
}

// Symbol returns the symbol name of the given axis, "" if none.
func (l Layout) Symbol(axis int) string {
	if axis >= len(l.Symbols) {
		return ""
	}
	return l.Symbols[axis]
}

// IsDynamic returns whether any of the dimensions is Dynamic.
func (l Layout) IsDynamic() bool {
	return slices.Contains(l.Dims, Dynamic)
}

// IsStatic is the opposite of IsDynamic.
func (l Layout) IsStatic() bool { return !l.IsDynamic() }

// Count returns the number of logical elements. It returns -1 for dynamic layouts.
func (l Layout) Count() int {
	count := 1
	for _, dim := range l.Dims {
		if dim == Dynamic {
			return -1
		}
		count *= dim
	}
	return count
}

// PaddedDims returns the dimensions including padding, with batch and feature rounded up
// to the format's block sizes. Dynamic dimensions stay Dynamic.
func (l Layout) PaddedDims() []int {
	padded := make([]int, l.Rank())
	for axis, dim := range l.Dims {
		if dim == Dynamic {
			padded[axis] = Dynamic
			continue
		}
		dim += l.padAt(l.PadLower, axis) + l.padAt(l.PadUpper, axis)
		switch axis {
		case 0:
			dim = alignUp(dim, l.Format.BatchBlock())
		case 1:
			dim = alignUp(dim, l.Format.FeatureBlock())
		}
		padded[axis] = dim
	}
	return padded
}

// PhysicalCount returns the number of elements allocated for the layout, including padding
// and block alignment. It returns -1 for dynamic layouts.
func (l Layout) PhysicalCount() int {
	count := 1
	for _, dim := range l.PaddedDims() {
		if dim == Dynamic {
			return -1
		}
		count *= dim
	}
	return count
}

// Bytes returns the number of bytes needed to store the layout. It returns -1 for dynamic layouts.
func (l Layout) Bytes() int64 {
	count := l.PhysicalCount()
	if count < 0 {
		return -1
	}
	return int64(count) * int64(l.DType.Size())
}

// HasPadding returns whether any axis is padded.
func (l Layout) HasPadding() bool {
	for axis := range l.Dims {
		if l.padAt(l.PadLower, axis) != 0 || l.padAt(l.PadUpper, axis) != 0 {
			return true
		}
	}
	return false
}

func (l Layout) padAt(pads []int, axis int) int {
	if axis >= len(pads) {
		return 0
	}
	return pads[axis]
}

// Equal compares two layouts. Dynamic dimensions are only equal if both carry the same symbol.
func (l Layout) Equal(o Layout) bool {
	if l.DType != o.DType || l.Format != o.Format || l.Rank() != o.Rank() {
		return false
	}
	for axis := range l.Dims {
		if !dimsEqual(l.Dims[axis], l.Symbol(axis), o.Dims[axis], o.Symbol(axis)) {
			return false
		}
		if l.padAt(l.PadLower, axis) != o.padAt(o.PadLower, axis) ||
			l.padAt(l.PadUpper, axis) != o.padAt(o.PadUpper, axis) {
			return false
		}
	}
	return true
}

// EqualDims compares only the logical dimensions, with the same dynamic rules as Equal.
func (l Layout) EqualDims(o Layout) bool {
	if l.Rank() != o.Rank() {
		return false
	}
	for axis := range l.Dims {
		if !dimsEqual(l.Dims[axis], l.Symbol(axis), o.Dims[axis], o.Symbol(axis)) {
			return false
		}
	}
	return true
}

func dimsEqual(d1 int, sym1 string, d2 int, sym2 string) bool {
	if d1 == Dynamic || d2 == Dynamic {
		return d1 == d2 && sym1 != "" && sym1 == sym2
	}
	return d1 == d2
}

// Clone returns a deep copy of the layout.
func (l Layout) Clone() Layout {
	l2 := l
	l2.Dims = slices.Clone(l.Dims)
	l2.Symbols = slices.Clone(l.Symbols)
	l2.PadLower = slices.Clone(l.PadLower)
	l2.PadUpper = slices.Clone(l.PadUpper)
	return l2
}

// WithFormat returns a copy of the layout with the given format.
func (l Layout) WithFormat(format Format) Layout {
	l2 := l.Clone()
	l2.Format = format
	return l2
}

// WithDType returns a copy of the layout with the given dtype.
func (l Layout) WithDType(dtype dtypes.DType) Layout {
	l2 := l.Clone()
	l2.DType = dtype
	return l2
}

// WithDims returns a copy of the layout with new dimensions. Symbols and padding are dropped.
func (l Layout) WithDims(dims ...int) Layout {
	l2 := l.Clone()
	l2.Dims = slices.Clone(dims)
	l2.Symbols = nil
	l2.PadLower, l2.PadUpper = nil, nil
	return l2
}

// WithAxisName returns a copy of the layout where the given axis is dynamic and tagged with the symbol name.
func (l Layout) WithAxisName(axis int, name string) Layout {
	l2 := l.Clone()
	if l2.Symbols == nil {
		l2.Symbols = make([]string, l2.Rank())
	}
	l2.Dims[axis] = Dynamic
	l2.Symbols[axis] = name
	return l2
}

// WithPadding returns a copy of the layout with the given padding per axis.
func (l Layout) WithPadding(lower, upper []int) Layout {
	l2 := l.Clone()
	l2.PadLower = slices.Clone(lower)
	l2.PadUpper = slices.Clone(upper)
	return l2
}

// Strides returns the strides of each logical axis, in elements, for the row-major (planar)
// order of the logical dimensions. Padding is not taken into account.
func (l Layout) Strides() []int {
	rank := l.Rank()
	if rank == 0 {
		return nil
	}
	strides := make([]int, rank)
	current := 1
	for axis := rank - 1; axis >= 0; axis-- {
		strides[axis] = current
		current *= l.Dims[axis]
	}
	return strides
}

// String implements fmt.Stringer.
func (l Layout) String() string {
	parts := make([]string, len(l.Dims))
	for axis, dim := range l.Dims {
		switch {
		case dim != Dynamic:
			parts[axis] = fmt.Sprintf("%d", dim)
		case l.Symbol(axis) != "":
			parts[axis] = l.Symbol(axis)
		default:
			parts[axis] = "?"
		}
	}
	s := fmt.Sprintf("(%s:%s)[%s]", l.DType, l.Format, strings.Join(parts, " "))
	if l.HasPadding() {
		s += fmt.Sprintf("{pad:%v/%v}", l.PadLower, l.PadUpper)
	}
	return s
}

// Resolve replaces the dynamic dimensions with the values bound to their symbols.
// It returns an error if a dynamic dimension is anonymous or its symbol is not bound.
func (l Layout) Resolve(bindings Bindings) (Layout, error) {
	if l.IsStatic() {
		return l, nil
	}
	resolved := l.Clone()
	for axis, dim := range l.Dims {
		if dim != Dynamic {
			continue
		}
		name := l.Symbol(axis)
		if name == "" {
			return Invalid(), errors.Errorf("layout %s: axis #%d is dynamic and anonymous, it can't be resolved", l, axis)
		}
		value, found := bindings[name]
		if !found {
			return Invalid(), errors.Errorf("layout %s: axis #%d symbol %q not bound", l, axis, name)
		}
		if value <= 0 {
			return Invalid(), errors.Errorf("layout %s: axis #%d symbol %q bound to invalid value %d", l, axis, name, value)
		}
		resolved.Dims[axis] = value
	}
	resolved.Symbols = nil
	return resolved, nil
}

func alignUp(v, block int) int {
	if block <= 1 {
		return v
	}
	return (v + block - 1) / block * block
}
