// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package device

import (
	"testing"

	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresets(t *testing.T) {
	assert.Equal(t, []string{"discrete", "integrated", "minimal"}, PresetNames())
	caps, err := Preset("integrated")
	require.NoError(t, err)
	assert.True(t, caps.SupportsDType(dtypes.Float16))
	assert.True(t, caps.SupportsFormat(layout.FormatBFsYXFsv16))
	assert.True(t, caps.SupportsSubgroup(16))
	assert.Equal(t, 32, caps.MaxSubgroupSize())
	require.NoError(t, caps.Validate())

	minimal, err := Preset("minimal")
	require.NoError(t, err)
	assert.False(t, minimal.SupportsDType(dtypes.Float16))
	assert.False(t, minimal.SupportsFormat(layout.FormatBYXF))
	assert.True(t, minimal.SupportsFormat(layout.FormatAny))
	assert.Equal(t, 0, minimal.MaxSubgroupSize())

	_, err = Preset("tpu")
	require.Error(t, err)
}

func TestClone(t *testing.T) {
	caps, err := Preset("discrete")
	require.NoError(t, err)
	clone := caps.Clone()
	clone.DTypes[dtypes.Float16] = false
	clone.SubgroupSizes[0] = 8
	clone.Formats[layout.FormatBYXF] = false
	assert.True(t, caps.SupportsDType(dtypes.Float16))
	assert.Equal(t, 16, caps.SubgroupSizes[0])
	assert.True(t, caps.SupportsFormat(layout.FormatBYXF))
}

func TestParse(t *testing.T) {
	caps, err := Parse([]byte(`
base: minimal
name: my-gpu
max_work_group_size: 128
subgroup_sizes: [16, 8]
supports_fp16: true
dtypes: [f32, f16]
formats: [bfyx, b_fs_yx_fsv16]
`))
	require.NoError(t, err)
	assert.Equal(t, "my-gpu", caps.Name)
	assert.Equal(t, 128, caps.MaxWorkGroupSize)
	assert.Equal(t, [3]int{256, 256, 256}, caps.MaxWorkItemSizes) // From base.
	assert.Equal(t, []int{8, 16}, caps.SubgroupSizes)
	assert.True(t, caps.SupportsDType(dtypes.Float16))
	assert.False(t, caps.SupportsDType(dtypes.Int8))
	assert.True(t, caps.SupportsFormat(layout.FormatBFsYXFsv16))

	_, err = Parse([]byte(`{max_work_group_size: 0, max_work_item_sizes: [1,1,1]}`))
	require.Error(t, err)
	_, err = Parse([]byte(`{base: minimal, subgroup_sizes: [12]}`))
	require.Error(t, err)
	_, err = Parse([]byte(`{base: minimal, dtypes: [complex64]}`))
	require.Error(t, err)
	_, err = Parse([]byte(`{base: minimal, max_work_item_sizes: [1, 2]}`))
	require.Error(t, err)
}
