// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"fmt"
	"math"
)

// Priority ranks the implementations accepting the same parameters: the lowest value wins, and
// ties go to the implementation registered first.
//
// The named ranks are spaced so implementations can express "slightly better than" a rank.
type Priority uint32

const (
	Priority1 Priority = (iota + 1) * 100
	Priority2
	Priority3
	Priority4
	Priority5
	Priority6
	Priority7
	Priority8
	Priority9

	// PriorityFallback is the rank of the reference implementations: they accept everything and
	// should only be picked when nothing else does.
	PriorityFallback Priority = 100_000

	// PriorityDontUse disables an implementation for the given parameters, even though it
	// validated them.
	PriorityDontUse Priority = math.MaxUint32
)

// String implements fmt.Stringer.
func (p Priority) String() string {
	switch {
	case p == PriorityDontUse:
		return "dont_use"
	case p == PriorityFallback:
		return "fallback"
	case p%100 == 0 && p >= Priority1 && p <= Priority9:
		return fmt.Sprintf("priority_%d", p/100)
	}
	return fmt.Sprintf("priority(%d)", uint32(p))
}
