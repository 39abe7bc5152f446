// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package device defines the read-only description of a target device the compiler queries to
// validate and rank kernels. It never enumerates physical devices: capabilities come from presets,
// YAML files or are filled in by the caller.
package device

import (
	"fmt"
	"maps"
	"slices"

	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
)

// Capabilities holds what is supported by a device.
//
// It is read-only once handed to the compiler: use Clone to derive variations.
type Capabilities struct {
	// Name of the device, informative only.
	Name string

	// MaxWorkGroupSize is the maximum product of the local work sizes.
	MaxWorkGroupSize int

	// MaxWorkItemSizes is the maximum local work size on each of the 3 axes.
	MaxWorkItemSizes [3]int

	// MaxLocalMemBytes is the size of the shared local memory of one work group.
	MaxLocalMemBytes int64

	// ComputeUnits (execution units) of the device.
	ComputeUnits int

	// SubgroupSizes supported, in ascending order. Empty if the device doesn't support subgroups.
	SubgroupSizes []int

	// SupportsFP16 indicates half precision arithmetic.
	SupportsFP16 bool

	// SupportsImmad indicates the device has dedicated int8 dot-product (immad) instructions.
	SupportsImmad bool

	// SupportsMutableCommandList indicates command lists can be patched in place after being built.
	SupportsMutableCommandList bool

	// DTypes list the data types supported by the device.
	// If not listed, it's assumed to be false, hence not supported.
	DTypes map[dtypes.DType]bool

	// Formats list the memory formats supported by the device kernels.
	// If not listed, it's assumed to be false, hence not supported.
	Formats map[layout.Format]bool
}

// Clone makes a deep copy of the Capabilities.
func (c *Capabilities) Clone() *Capabilities {
	c2 := *c
	c2.SubgroupSizes = slices.Clone(c.SubgroupSizes)
	c2.DTypes = make(map[dtypes.DType]bool, len(c.DTypes))
	maps.Copy(c2.DTypes, c.DTypes)
	c2.Formats = make(map[layout.Format]bool, len(c.Formats))
	maps.Copy(c2.Formats, c.Formats)
	return &c2
}

// SupportsDType returns whether the dtype is supported. Float16 also requires SupportsFP16.
func (c *Capabilities) SupportsDType(dtype dtypes.DType) bool {
	if dtype == dtypes.Float16 && !c.SupportsFP16 {
		return false
	}
	return c.DTypes[dtype]
}

// SupportsFormat returns whether the memory format is supported. FormatAny is always supported.
func (c *Capabilities) SupportsFormat(format layout.Format) bool {
	return format == layout.FormatAny || c.Formats[format]
}

// SupportsSubgroup returns whether the given subgroup size is available.
func (c *Capabilities) SupportsSubgroup(size int) bool {
	return slices.Contains(c.SubgroupSizes, size)
}

// MaxSubgroupSize returns the largest supported subgroup size, or 0 if there is no subgroup support.
func (c *Capabilities) MaxSubgroupSize() int {
	if len(c.SubgroupSizes) == 0 {
		return 0
	}
	return slices.Max(c.SubgroupSizes)
}

// String implements fmt.Stringer.
func (c *Capabilities) String() string {
	return fmt.Sprintf("%s{wg=%d, eus=%d, subgroups=%v, fp16=%v, immad=%v, mutable=%v}",
		c.Name, c.MaxWorkGroupSize, c.ComputeUnits, c.SubgroupSizes,
		c.SupportsFP16, c.SupportsImmad, c.SupportsMutableCommandList)
}
