// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dtypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestParse(t *testing.T) {
	for name, want := range map[string]DType{
		"Float16": Float16,
		"f16":     Float16,
		"FLOAT32": Float32,
		"i8":      Int8,
		"uint8":   Uint8,
	} {
		got, err := Parse(name)
		require.NoError(t, err, "parsing %q", name)
		assert.Equal(t, want, got, "parsing %q", name)
	}
	_, err := Parse("complex64")
	require.Error(t, err)
}

func TestSize(t *testing.T) {
	assert.Equal(t, 2, Float16.Size())
	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, 1, Int8.Size())
	assert.Equal(t, 0, InvalidDType.Size())
	assert.Equal(t, 2*3*4*2, Float16.SizeForDimensions(2, 3, 4))
	assert.Equal(t, 4, Float32.SizeForDimensions())
	assert.Equal(t, "DType(42)", DType(42).String())
}

func TestEncodeDecode(t *testing.T) {
	values := []float32{-1.5, 0, 0.25, 3}
	buf, err := Encode(Float16, values)
	require.NoError(t, err)
	require.Len(t, buf, 8)
	got, err := Decode(Float16, buf)
	require.NoError(t, err)
	assert.Equal(t, values, got)

	// Saturation for integer types.
	buf, err = Encode(Int8, []float32{-300, 12.6, 300})
	require.NoError(t, err)
	got, err = Decode(Int8, buf)
	require.NoError(t, err)
	assert.Equal(t, []float32{-128, 13, 127}, got)

	_, err = Decode(Float32, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	v := float32(0.1)
	assert.Equal(t, float16.Fromfloat32(v).Float32(), RoundTrip(Float16, v))
	assert.Equal(t, v, RoundTrip(Float32, v))
	assert.Equal(t, float32(255), RoundTrip(Uint8, 1000))
}
