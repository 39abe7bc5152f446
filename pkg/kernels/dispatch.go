// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"math"

	"github.com/gomlx/gpuplan/pkg/device"
	"golang.org/x/exp/constraints"
)

// MaxGlobalSize is the largest global work size accepted on one axis.
const MaxGlobalSize = math.MaxInt32

// CeilDiv returns a/b rounded up, for positive values.
func CeilDiv[T constraints.Integer](a, b T) T {
	return (a + b - 1) / b
}

// AlignUp rounds v up to a multiple of align.
func AlignUp[T constraints.Integer](v, align T) T {
	if align <= 1 {
		return v
	}
	return CeilDiv(v, align) * align
}

// OptimalLWS returns a local work size for the global work size: on each axis, starting with the
// innermost (axis 0), the largest divisor of the global size that fits the device limits.
// It is deterministic for the same inputs.
func OptimalLWS(gws [3]int, caps *device.Capabilities) [3]int {
	lws := [3]int{1, 1, 1}
	budget := max(caps.MaxWorkGroupSize, 1)
	for axis := range 3 {
		limit := min(budget, max(caps.MaxWorkItemSizes[axis], 1))
		for size := min(limit, gws[axis]); size > 1; size-- {
			if gws[axis]%size == 0 {
				lws[axis] = size
				break
			}
		}
		budget /= lws[axis]
	}
	return lws
}

// StaticDispatch builds a DispatchData for the global work size, with the local work size
// given by OptimalLWS.
func StaticDispatch(gws [3]int, caps *device.Capabilities, internalBuffers ...int64) DispatchData {
	for axis := range 3 {
		gws[axis] = max(gws[axis], 1)
	}
	return DispatchData{GWS: gws, LWS: OptimalLWS(gws, caps), InternalBuffers: internalBuffers}
}
