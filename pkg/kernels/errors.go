// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"fmt"
	"strings"

	"github.com/gomlx/gpuplan/pkg/graph"
)

// Rejection of one implementation during selection.
type Rejection struct {
	Kernel, Reason string
}

// NoSuitableKernelError is returned by Registry.Select when no implementation accepts the parameters.
type NoSuitableKernelError struct {
	NodeID     string
	Kind       graph.Kind
	Rejections []Rejection
}

// Error implements error.
func (e *NoSuitableKernelError) Error() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "no suitable kernel for %s node %q", e.Kind, e.NodeID)
	if len(e.Rejections) == 0 {
		sb.WriteString(": no implementations registered")
		return sb.String()
	}
	for ii, r := range e.Rejections {
		if ii == 0 {
			sb.WriteString(": ")
		} else {
			sb.WriteString("; ")
		}
		_, _ = fmt.Fprintf(&sb, "%s: %s", r.Kernel, r.Reason)
	}
	return sb.String()
}

// DispatchUpdateError is returned when a dynamic kernel can't handle the concrete shapes of a call.
type DispatchUpdateError struct {
	NodeID, Kernel string
	Reason         string

	// Dim is the concrete dimension value the kernel can't handle, 0 if the failure isn't about
	// one dimension.
	Dim int
}

// Error implements error.
func (e *DispatchUpdateError) Error() string {
	msg := fmt.Sprintf("dispatch update of node %q", e.NodeID)
	if e.Kernel != "" {
		msg += fmt.Sprintf(" (kernel %s)", e.Kernel)
	}
	msg += " failed: " + e.Reason
	if e.Dim > 0 {
		msg += fmt.Sprintf(" (dim=%d)", e.Dim)
	}
	return msg
}
