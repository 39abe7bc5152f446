// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package layout

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Bindings maps symbol names of dynamic axes to concrete dimension values.
// Used to resolve dynamic layouts to concrete ones at dispatch time.
type Bindings map[string]int

// Key returns a canonical string representation for map keying.
// Format: "name1=val1,name2=val2" with names sorted alphabetically.
// Returns empty string for empty or nil bindings.
func (b Bindings) Key() string {
	if len(b) == 0 {
		return ""
	}
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, b[name])
	}
	return strings.Join(parts, ",")
}

// Clone returns a copy of the bindings.
func (b Bindings) Clone() Bindings {
	if b == nil {
		return nil
	}
	clone := make(Bindings, len(b))
	for k, v := range b {
		clone[k] = v
	}
	return clone
}

// Merge combines bindings from another Bindings into this one.
// Returns an error if there are conflicting values for the same symbol.
func (b Bindings) Merge(other Bindings) error {
	for name, val := range other {
		if existing, ok := b[name]; ok && existing != val {
			return errors.Errorf("conflicting values for axis %q: %d vs %d", name, existing, val)
		}
		b[name] = val
	}
	return nil
}

// ExtractBindings gets the bindings from a concrete layout matching a pattern.
// The pattern may have named dynamic axes; concrete must have actual values.
//
// Returns error if:
//   - Layouts have different ranks
//   - Static dimensions don't match
//   - Same symbol has conflicting values
func ExtractBindings(pattern, concrete Layout) (Bindings, error) {
	if pattern.Rank() != concrete.Rank() {
		return nil, errors.Errorf("rank mismatch: pattern has %d, concrete has %d",
			pattern.Rank(), concrete.Rank())
	}
	if concrete.IsDynamic() {
		return nil, errors.Errorf("concrete layout %s has dynamic dimensions", concrete)
	}

	bindings := make(Bindings)
	for i, dim := range pattern.Dims {
		concreteVal := concrete.Dims[i]
		name := pattern.Symbol(i)
		if name != "" {
			if existing, ok := bindings[name]; ok && existing != concreteVal {
				return nil, errors.Errorf("axis %q has conflicting values at dimension %d: %d vs %d",
					name, i, existing, concreteVal)
			}
			bindings[name] = concreteVal
		} else if dim != Dynamic && dim != concreteVal {
			return nil, errors.Errorf("dimension %d mismatch: pattern has %d, concrete has %d",
				i, dim, concreteVal)
		}
		// Anonymous dynamic axes accept any value.
	}
	return bindings, nil
}

// UnifySymbol combines two symbol names during shape inference: broadcasting or combining
// layouts in elementwise operations.
//
// Rules:
//   - If either name is empty, return the other (unnamed adopts name)
//   - If both names are the same, return that name
//   - If names differ, return error (incompatible axes)
func UnifySymbol(a, b string) (string, error) {
	if a == "" {
		return b, nil
	}
	if b == "" {
		return a, nil
	}
	if a == b {
		return a, nil
	}
	return "", errors.Errorf("incompatible axis names: %q vs %q", a, b)
}
