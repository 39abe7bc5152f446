// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package layout

import (
	"strings"

	"github.com/pkg/errors"
)

// Format is the physical format (blocking and axes order in memory) of a tensor.
//
// The logical order of the dimensions of a Layout is always batch, feature, then spatial
// axes (z, y, x). The Format only describes how those are stored.
type Format int

const (
	// FormatAny means the format was not decided yet: shape rules pick one for the output.
	FormatAny Format = iota

	// FormatBFYX is the planar row-major format of the logical axes. For rank 2 it is "bf",
	// for rank 5 "bfzyx".
	FormatBFYX

	// FormatBYXF keeps features innermost. Rank 4 only.
	FormatBYXF

	// FormatBFsYXFsv16 blocks the feature axis in slices of 16. Rank 4 only.
	FormatBFsYXFsv16

	// FormatBFsYXFsv32 blocks the feature axis in slices of 32. Rank 4 only.
	FormatBFsYXFsv32

	// FormatBsFsYXBsv16Fsv16 blocks both batch and feature axes in slices of 16. Rank 4 only.
	FormatBsFsYXBsv16Fsv16
)

type formatInfo struct {
	name         string
	rank         int // 0 means any rank.
	batchBlock   int
	featureBlock int
}

var formatInfos = [...]formatInfo{
	FormatAny:              {name: "any"},
	FormatBFYX:             {name: "bfyx", batchBlock: 1, featureBlock: 1},
	FormatBYXF:             {name: "byxf", rank: 4, batchBlock: 1, featureBlock: 1},
	FormatBFsYXFsv16:       {name: "b_fs_yx_fsv16", rank: 4, batchBlock: 1, featureBlock: 16},
	FormatBFsYXFsv32:       {name: "b_fs_yx_fsv32", rank: 4, batchBlock: 1, featureBlock: 32},
	FormatBsFsYXBsv16Fsv16: {name: "bs_fs_yx_bsv16_fsv16", rank: 4, batchBlock: 16, featureBlock: 16},
}

func (f Format) info() formatInfo {
	if f < 0 || int(f) >= len(formatInfos) {
		return formatInfo{name: "invalid"}
	}
	return formatInfos[f]
}

// String implements fmt.Stringer.
func (f Format) String() string {
	return f.info().name
}

// Formats lists all known concrete formats (FormatAny excluded), in enum order.
func Formats() []Format {
	return []Format{FormatBFYX, FormatBYXF, FormatBFsYXFsv16, FormatBFsYXFsv32, FormatBsFsYXBsv16Fsv16}
}

// ParseFormat converts a format name (as returned by String) to a Format.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(name)
	for ii, info := range formatInfos {
		if info.name == name {
			return Format(ii), nil
		}
	}
	return FormatAny, errors.Errorf("unknown layout format %q", name)
}

// IsBlocked returns whether the format splits the batch or feature axes into blocks.
func (f Format) IsBlocked() bool {
	info := f.info()
	return info.featureBlock > 1 || info.batchBlock > 1
}

// IsPlanar returns whether the format is the row-major layout of the logical axes.
func (f Format) IsPlanar() bool {
	return f == FormatBFYX
}

// FeatureBlock returns the block size of the feature axis (1 if the format doesn't block features).
func (f Format) FeatureBlock() int {
	return max(f.info().featureBlock, 1)
}

// BatchBlock returns the block size of the batch axis (1 if the format doesn't block batches).
func (f Format) BatchBlock() int {
	return max(f.info().batchBlock, 1)
}

// SupportsRank returns whether a tensor of the given rank can be stored with this format.
func (f Format) SupportsRank(rank int) bool {
	if f == FormatAny {
		return true
	}
	info := f.info()
	if info.name == "invalid" {
		return false
	}
	if info.rank == 0 {
		return rank >= 1
	}
	return info.rank == rank
}

// Bit returns a bitmask with one bit set for the format. Used in kernel capability keys.
func (f Format) Bit() uint32 {
	return 1 << uint32(f)
}
