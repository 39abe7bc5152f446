// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package device

import (
	"slices"

	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/support/fsutil"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// capabilitiesYAML is the on-disk description of a device.
// If Base is set, the named preset is used as a starting point and only the given fields change.
type capabilitiesYAML struct {
	Base                       string   `yaml:"base"`
	Name                       string   `yaml:"name"`
	MaxWorkGroupSize           *int     `yaml:"max_work_group_size"`
	MaxWorkItemSizes           []int    `yaml:"max_work_item_sizes"`
	MaxLocalMemBytes           *int64   `yaml:"max_local_mem_bytes"`
	ComputeUnits               *int     `yaml:"compute_units"`
	SubgroupSizes              []int    `yaml:"subgroup_sizes"`
	SupportsFP16               *bool    `yaml:"supports_fp16"`
	SupportsImmad              *bool    `yaml:"supports_immad"`
	SupportsMutableCommandList *bool    `yaml:"supports_mutable_command_list"`
	DTypes                     []string `yaml:"dtypes"`
	Formats                    []string `yaml:"formats"`
}

// Parse decodes a device description in YAML.
func Parse(data []byte) (*Capabilities, error) {
	var desc capabilitiesYAML
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, errors.Wrap(err, "failed to parse device description")
	}
	caps := &Capabilities{DTypes: map[dtypes.DType]bool{}, Formats: map[layout.Format]bool{}}
	if desc.Base != "" {
		var err error
		caps, err = Preset(desc.Base)
		if err != nil {
			return nil, err
		}
	}
	if desc.Name != "" {
		caps.Name = desc.Name
	}
	setIf(&caps.MaxWorkGroupSize, desc.MaxWorkGroupSize)
	setIf(&caps.MaxLocalMemBytes, desc.MaxLocalMemBytes)
	setIf(&caps.ComputeUnits, desc.ComputeUnits)
	setIf(&caps.SupportsFP16, desc.SupportsFP16)
	setIf(&caps.SupportsImmad, desc.SupportsImmad)
	setIf(&caps.SupportsMutableCommandList, desc.SupportsMutableCommandList)
	if len(desc.MaxWorkItemSizes) > 0 {
		if len(desc.MaxWorkItemSizes) != 3 {
			return nil, errors.Errorf("max_work_item_sizes must have 3 values, got %v", desc.MaxWorkItemSizes)
		}
		copy(caps.MaxWorkItemSizes[:], desc.MaxWorkItemSizes)
	}
	if desc.SubgroupSizes != nil {
		caps.SubgroupSizes = slices.Sorted(slices.Values(desc.SubgroupSizes))
	}
	if desc.DTypes != nil {
		caps.DTypes = make(map[dtypes.DType]bool, len(desc.DTypes))
		for _, name := range desc.DTypes {
			dtype, err := dtypes.Parse(name)
			if err != nil {
				return nil, errors.WithMessagef(err, "device %q", caps.Name)
			}
			caps.DTypes[dtype] = true
		}
	}
	if desc.Formats != nil {
		caps.Formats = make(map[layout.Format]bool, len(desc.Formats))
		for _, name := range desc.Formats {
			format, err := layout.ParseFormat(name)
			if err != nil {
				return nil, errors.WithMessagef(err, "device %q", caps.Name)
			}
			caps.Formats[format] = true
		}
	}
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	return caps, nil
}

// Load reads and parses a YAML device description from a file.
func Load(path string) (*Capabilities, error) {
	data, err := fsutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read device description from %q", path)
	}
	caps, err := Parse(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "device description %q", path)
	}
	return caps, nil
}

// Validate checks that the capabilities are consistent.
func (c *Capabilities) Validate() error {
	if c.MaxWorkGroupSize <= 0 {
		return errors.Errorf("device %q: max_work_group_size must be > 0, got %d", c.Name, c.MaxWorkGroupSize)
	}
	for axis, size := range c.MaxWorkItemSizes {
		if size <= 0 {
			return errors.Errorf("device %q: max_work_item_sizes[%d] must be > 0, got %d", c.Name, axis, size)
		}
	}
	for _, size := range c.SubgroupSizes {
		if size <= 0 || size&(size-1) != 0 {
			return errors.Errorf("device %q: subgroup size %d is not a power of 2", c.Name, size)
		}
	}
	return nil
}

func setIf[T any](target *T, value *T) {
	if value != nil {
		*target = *value
	}
}
