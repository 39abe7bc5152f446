// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package jit builds the JIT constants of generated kernels and renders their source text.
//
// Constants are kept in insertion order, so the same parameters always generate byte-identical
// sources.
package jit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/postops"
)

// Constant is one named macro of a generated kernel.
type Constant struct {
	Name, Value string
}

// Constants is an ordered table of JIT constants. Names are unique.
type Constants struct {
	entries []Constant
	index   map[string]int
}

// NewConstants creates an empty table.
func NewConstants() *Constants {
	return &Constants{index: make(map[string]int)}
}

// Add a constant. It panics if the name is already defined.
func (c *Constants) Add(name, value string) *Constants {
	if _, found := c.index[name]; found {
		exceptions.Panicf("jit.Constants.Add(%q): constant already defined with value %q", name, c.entries[c.index[name]].Value)
	}
	c.index[name] = len(c.entries)
	c.entries = append(c.entries, Constant{Name: name, Value: value})
	return c
}

// AddInt adds an integer constant.
func (c *Constants) AddInt(name string, value int) *Constants {
	return c.Add(name, strconv.Itoa(value))
}

// AddFloat adds a float constant, formatted as a float literal.
func (c *Constants) AddFloat(name string, value float32) *Constants {
	s := strconv.FormatFloat(float64(value), 'g', -1, 32)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return c.Add(name, s+"f")
}

// AddBool adds a 0/1 constant.
func (c *Constants) AddBool(name string, value bool) *Constants {
	if value {
		return c.Add(name, "1")
	}
	return c.Add(name, "0")
}

// TypeName returns the kernel language name of the dtype.
func TypeName(dtype dtypes.DType) string {
	switch dtype {
	case dtypes.Bool:
		return "bool"
	case dtypes.Int8:
		return "char"
	case dtypes.Uint8:
		return "uchar"
	case dtypes.Int32:
		return "int"
	case dtypes.Int64:
		return "long"
	case dtypes.Float16:
		return "half"
	case dtypes.Float32:
		return "float"
	}
	return "void"
}

// AddLayout adds the constants describing a tensor layout under the given prefix:
// PREFIX_TYPE, PREFIX_FORMAT, PREFIX_RANK, PREFIX_BATCH_NUM, PREFIX_FEATURE_NUM,
// PREFIX_SIZE_X/Y/Z, PREFIX_PAD_LOWER/UPPER and PREFIX_IS_DYNAMIC.
//
// Dynamic dimensions are read at run time from the <prefix>_dims kernel argument.
func (c *Constants) AddLayout(prefix string, l layout.Layout) *Constants {
	dimsArg := strings.ToLower(prefix) + "_dims"
	dim := func(axis int) string {
		if axis >= l.Rank() {
			return "1"
		}
		if l.Dims[axis] == layout.Dynamic {
			return fmt.Sprintf("(%s[%d])", dimsArg, axis)
		}
		return strconv.Itoa(l.Dims[axis])
	}
	spatial := func(i int) string {
		axis := l.Rank() - 1 - i
		if axis < 2 {
			return "1"
		}
		return dim(axis)
	}
	c.Add(prefix+"_TYPE", TypeName(l.DType))
	c.Add(prefix+"_FORMAT", strings.ToUpper(l.Format.String()))
	c.AddInt(prefix+"_RANK", l.Rank())
	c.Add(prefix+"_BATCH_NUM", dim(0))
	c.Add(prefix+"_FEATURE_NUM", dim(1))
	c.Add(prefix+"_SIZE_X", spatial(0))
	c.Add(prefix+"_SIZE_Y", spatial(1))
	c.Add(prefix+"_SIZE_Z", spatial(2))
	c.Add(prefix+"_PAD_LOWER", padList(l.PadLower, l.Rank()))
	c.Add(prefix+"_PAD_UPPER", padList(l.PadUpper, l.Rank()))
	c.AddBool(prefix+"_IS_DYNAMIC", l.IsDynamic())
	return c
}

func padList(pads []int, rank int) string {
	parts := make([]string, rank)
	for axis := range rank {
		value := 0
		if axis < len(pads) {
			value = pads[axis]
		}
		parts[axis] = strconv.Itoa(value)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// AddFusedOps adds the constants of a post-op chain: HAS_FUSED_OPS, FUSED_OPS_COUNT, the
// FUSED_OPS(acc) macro with the chain expression, and the layout constants of each fused
// input (FUSED_INPUT<dep>_*). fusedInputs[i] is the layout of the node dependency firstDep+i.
func (c *Constants) AddFusedOps(chain postops.Chain, attrs postops.Attrs, firstDep int, fusedInputs []layout.Layout) *Constants {
	live := chain.Live()
	c.AddBool("HAS_FUSED_OPS", live > 0 || attrs.HasOutputScale)
	c.AddInt("FUSED_OPS_COUNT", live)
	if attrs.HasOutputScale {
		c.AddFloat("OUTPUT_SCALE", attrs.OutputScale)
	}
	c.Add("FUSED_OPS(acc)", chain.Expression("(acc)", attrs))
	for ii, l := range fusedInputs {
		c.AddLayout(strings.ToUpper(postops.InputName(firstDep+ii)), l)
	}
	return c
}

// Merge appends the constants of other, in order. It panics on duplicate names.
func (c *Constants) Merge(other *Constants) *Constants {
	for _, entry := range other.entries {
		c.Add(entry.Name, entry.Value)
	}
	return c
}

// Entries returns a copy of the constants, in insertion order.
func (c *Constants) Entries() []Constant {
	return append([]Constant(nil), c.entries...)
}

// Lookup a constant value by name.
func (c *Constants) Lookup(name string) (string, bool) {
	idx, found := c.index[name]
	if !found {
		return "", false
	}
	return c.entries[idx].Value, true
}

// Len returns the number of constants.
func (c *Constants) Len() int { return len(c.entries) }
