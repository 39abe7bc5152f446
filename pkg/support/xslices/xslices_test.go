// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xslices

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexing(t *testing.T) {
	values := []int{3, 5, 7}
	assert.Equal(t, 2, NormalizeIndex(-1, 3))
	assert.Equal(t, 1, NormalizeIndex(1, 3))
	assert.Equal(t, 5, At(values, -2))
	assert.Equal(t, 7, Last(values))
	assert.Equal(t, 5, ValueOr(values, 1, 1))
	assert.Equal(t, 1, ValueOr(values, 3, 1))
	assert.Equal(t, 1, ValueOr[int](nil, 0, 1))
}

func TestAllEqualAndCopy(t *testing.T) {
	assert.True(t, AllEqual([]int{1, 1}, 1))
	assert.True(t, AllEqual([]int{}, 1))
	assert.False(t, AllEqual([]int{1, 2}, 1))

	values := []int{1, 2}
	c := Copy(values)
	c[0] = 9
	assert.Equal(t, []int{1, 2}, values)
	assert.Nil(t, Copy([]int{}))
}
