// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package layout

import (
	"testing"

	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "b_fs_yx_fsv16", FormatBFsYXFsv16.String())
	assert.True(t, FormatBFsYXFsv16.IsBlocked())
	assert.False(t, FormatBYXF.IsBlocked())
	assert.Equal(t, 16, FormatBsFsYXBsv16Fsv16.BatchBlock())
	assert.Equal(t, 1, FormatBFYX.FeatureBlock())
	assert.True(t, FormatBFYX.SupportsRank(2))
	assert.True(t, FormatBFYX.SupportsRank(5))
	assert.False(t, FormatBYXF.SupportsRank(2))
	assert.Equal(t, "invalid", Format(42).String())

	f, err := ParseFormat("BYXF")
	require.NoError(t, err)
	assert.Equal(t, FormatBYXF, f)
	_, err = ParseFormat("nchw")
	require.Error(t, err)
}

func TestMake(t *testing.T) {
	l := Planar(dtypes.Float32, 2, 3, 4, 5)
	assert.Equal(t, 4, l.Rank())
	assert.Equal(t, 2, l.Batch())
	assert.Equal(t, 3, l.Feature())
	assert.Equal(t, []int{4, 5}, l.Spatial())
	assert.Equal(t, 5, l.SpatialDim(0))
	assert.Equal(t, 4, l.SpatialDim(1))
	assert.Equal(t, 1, l.SpatialDim(2))
	assert.Equal(t, 120, l.Count())
	assert.Equal(t, int64(480), l.Bytes())
	assert.Equal(t, "(Float32:bfyx)[2 3 4 5]", l.String())

	require.Panics(t, func() { Make(dtypes.Float32, FormatBYXF, 2, 3) })
	require.Panics(t, func() { Planar(dtypes.Float32, 2, 0) })
}

func TestBytesWithBlocksAndPadding(t *testing.T) {
	// Feature 3 is rounded up to 16.
	l := Make(dtypes.Float16, FormatBFsYXFsv16, 1, 3, 4, 4)
	assert.Equal(t, []int{1, 16, 4, 4}, l.PaddedDims())
	assert.Equal(t, int64(1*16*4*4*2), l.Bytes())

	l = Planar(dtypes.Float32, 1, 2, 4, 4).WithPadding([]int{0, 0, 1, 1}, []int{0, 0, 1, 1})
	assert.True(t, l.HasPadding())
	assert.Equal(t, 1*2*6*6, l.PhysicalCount())
	assert.Equal(t, 1*2*4*4, l.Count())

	dyn := Planar(dtypes.Float32, Dynamic, 3)
	assert.Equal(t, int64(-1), dyn.Bytes())
	assert.Equal(t, -1, dyn.Count())
}

func TestEqual(t *testing.T) {
	a := Planar(dtypes.Float32, 2, 3)
	assert.True(t, a.Equal(a.Clone()))
	assert.False(t, a.Equal(a.WithDType(dtypes.Float16)))
	assert.False(t, a.Equal(Planar(dtypes.Float32, 2, 4)))
	assert.True(t, a.EqualDims(a.WithDType(dtypes.Int8)))

	// Anonymous dynamic dimensions are never equal, not even to themselves.
	anon := Planar(dtypes.Float32, Dynamic, 3)
	assert.False(t, anon.Equal(anon))

	// Named ones are only equal to the same name.
	named := a.WithAxisName(0, "batch")
	assert.True(t, named.Equal(a.WithAxisName(0, "batch")))
	assert.False(t, named.Equal(a.WithAxisName(0, "seq")))
	assert.False(t, named.Equal(a))
	assert.Equal(t, "(Float32:bfyx)[batch 3]", named.String())

	padded := a.WithPadding([]int{0, 1}, nil)
	assert.False(t, a.Equal(padded))
}

func TestResolve(t *testing.T) {
	l := Planar(dtypes.Float32, 1, 3, 8, 8).WithAxisName(0, "batch").WithAxisName(2, "height")
	require.True(t, l.IsDynamic())

	resolved, err := l.Resolve(Bindings{"batch": 4, "height": 16})
	require.NoError(t, err)
	assert.True(t, resolved.IsStatic())
	assert.Equal(t, []int{4, 3, 16, 8}, resolved.Dims)
	assert.Nil(t, resolved.Symbols)

	_, err = l.Resolve(Bindings{"batch": 4})
	require.Error(t, err)

	_, err = Planar(dtypes.Float32, Dynamic, 2).Resolve(Bindings{"batch": 4})
	require.Error(t, err)
}

func TestBindings(t *testing.T) {
	tests := []struct {
		name     string
		bindings Bindings
		want     string
	}{
		{"nil", nil, ""},
		{"empty", Bindings{}, ""},
		{"single", Bindings{"batch": 32}, "batch=32"},
		{"sorted", Bindings{"seq": 128, "batch": 32}, "batch=32,seq=128"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.bindings.Key())
		})
	}

	b := Bindings{"batch": 2}
	clone := b.Clone()
	clone["seq"] = 3
	assert.Len(t, b, 1)
	assert.Nil(t, Bindings(nil).Clone())

	require.NoError(t, b.Merge(Bindings{"batch": 2, "seq": 7}))
	assert.Equal(t, 7, b["seq"])
	require.Error(t, b.Merge(Bindings{"batch": 3}))
}

func TestExtractBindings(t *testing.T) {
	pattern := Planar(dtypes.Float32, 1, 3, 1, 1).WithAxisName(0, "batch").WithAxisName(3, "batch")

	got, err := ExtractBindings(pattern, Planar(dtypes.Float32, 5, 3, 2, 5))
	require.NoError(t, err)
	assert.Equal(t, Bindings{"batch": 5}, got)

	// Same symbol, conflicting values.
	_, err = ExtractBindings(pattern, Planar(dtypes.Float32, 5, 3, 2, 6))
	require.Error(t, err)

	// Static mismatch.
	_, err = ExtractBindings(pattern, Planar(dtypes.Float32, 5, 4, 2, 5))
	require.Error(t, err)

	// Rank mismatch.
	_, err = ExtractBindings(pattern, Planar(dtypes.Float32, 5, 3))
	require.Error(t, err)

	// Anonymous dynamic axes accept anything.
	got, err = ExtractBindings(Planar(dtypes.Float32, Dynamic, 3), Planar(dtypes.Float32, 9, 3))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUnifySymbol(t *testing.T) {
	name, err := UnifySymbol("", "batch")
	require.NoError(t, err)
	assert.Equal(t, "batch", name)
	name, err = UnifySymbol("batch", "batch")
	require.NoError(t, err)
	assert.Equal(t, "batch", name)
	_, err = UnifySymbol("batch", "seq")
	require.Error(t, err)
}

func TestIter(t *testing.T) {
	l := Planar(dtypes.Float32, 2, 3)
	var flats []int
	var all [][]int
	for flat, indices := range l.Iter() {
		flats = append(flats, flat)
		all = append(all, append([]int(nil), indices...))
		assert.Equal(t, flat, l.FlatIndex(indices))
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, flats)
	assert.Equal(t, [][]int{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}}, all)
	assert.Equal(t, []int{3, 1}, l.Strides())
	require.Panics(t, func() { Planar(dtypes.Float32, Dynamic).Iter() })
}
