// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package device

import (
	"slices"
	"sort"

	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/pkg/errors"
)

func allFormats() map[layout.Format]bool {
	formats := make(map[layout.Format]bool)
	for _, f := range layout.Formats() {
		formats[f] = true
	}
	return formats
}

func dtypesMap(list ...dtypes.DType) map[dtypes.DType]bool {
	m := make(map[dtypes.DType]bool, len(list))
	for _, dt := range list {
		m[dt] = true
	}
	return m
}

var presets = map[string]func() *Capabilities{
	// Integrated GPU with 16-wide subgroups, half precision and mutable command lists.
	"integrated": func() *Capabilities {
		return &Capabilities{
			Name:                       "integrated",
			MaxWorkGroupSize:           512,
			MaxWorkItemSizes:           [3]int{512, 512, 512},
			MaxLocalMemBytes:           64 << 10,
			ComputeUnits:               96,
			SubgroupSizes:              []int{8, 16, 32},
			SupportsFP16:               true,
			SupportsMutableCommandList: true,
			DTypes:                     dtypesMap(dtypes.Float32, dtypes.Float16, dtypes.Int8, dtypes.Uint8, dtypes.Int32, dtypes.Int64),
			Formats:                    allFormats(),
		}
	},

	// Discrete GPU, same as integrated plus int8 dot-product (immad) instructions.
	"discrete": func() *Capabilities {
		return &Capabilities{
			Name:                       "discrete",
			MaxWorkGroupSize:           1024,
			MaxWorkItemSizes:           [3]int{1024, 1024, 1024},
			MaxLocalMemBytes:           128 << 10,
			ComputeUnits:               512,
			SubgroupSizes:              []int{16, 32},
			SupportsFP16:               true,
			SupportsImmad:              true,
			SupportsMutableCommandList: true,
			DTypes:                     dtypesMap(dtypes.Float32, dtypes.Float16, dtypes.Int8, dtypes.Uint8, dtypes.Int32, dtypes.Int64),
			Formats:                    allFormats(),
		}
	},

	// Minimal device: no subgroups, no half precision, planar formats only and
	// command lists that can't be patched.
	"minimal": func() *Capabilities {
		return &Capabilities{
			Name:             "minimal",
			MaxWorkGroupSize: 256,
			MaxWorkItemSizes: [3]int{256, 256, 256},
			MaxLocalMemBytes: 32 << 10,
			ComputeUnits:     8,
			DTypes:           dtypesMap(dtypes.Float32, dtypes.Int8, dtypes.Uint8, dtypes.Int32),
			Formats:          map[layout.Format]bool{layout.FormatBFYX: true},
		}
	},
}

// Preset returns a fresh copy of a named device preset. See PresetNames.
func Preset(name string) (*Capabilities, error) {
	constructor, found := presets[name]
	if !found {
		return nil, errors.Errorf("unknown device preset %q, valid presets are %q", name, PresetNames())
	}
	return constructor(), nil
}

// PresetNames returns the names of the known presets, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return slices.Clip(names)
}
