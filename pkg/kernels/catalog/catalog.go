// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package catalog holds the closed set of kernel implementations known to the compiler.
//
// Every executable Kind has at least one reference implementation (priority
// kernels.PriorityFallback) accepting any dtype, format and feature, so kernel selection only
// fails if the device doesn't support the dtypes or formats of a node. Optimized
// implementations have narrower keys and validation, and lower priorities.
//
// Kernel bodies are not part of the catalog: the generated sources only carry the JIT constants
// and the argument bindings.
package catalog

import (
	"github.com/gomlx/gpuplan/pkg/kernels"
)

// New returns a registry with all the implementations of the catalog.
// The registration order is fixed, so priority ties are resolved the same way on every call.
func New() *kernels.Registry {
	reg := kernels.NewRegistry()
	for _, impls := range [][]kernels.Implementation{
		convolutionKernels(),
		fullyConnectedKernels(),
		eltwiseKernels(),
		activationKernels(),
		scaleKernels(),
		quantizeKernels(),
		poolingKernels(),
		softmaxKernels(),
		reorderKernels(),
		reshapeKernels(),
		concatenationKernels(),
		argMaxMinKernels(),
	} {
		reg.Register(impls...)
	}
	return reg
}
