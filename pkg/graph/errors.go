// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"

	"github.com/pkg/errors"
)

// ShapeInferenceError is returned when the parameters of a primitive are geometrically inconsistent.
// It's fatal to the compilation of the program.
type ShapeInferenceError struct {
	NodeID string
	Kind   Kind
	Reason string
}

// Error implements error.
func (e *ShapeInferenceError) Error() string {
	return fmt.Sprintf("shape inference failed for %s %q: %s", e.Kind, e.NodeID, e.Reason)
}

// ErrFusionCycle is the outcome of a fusion that would create a cycle in the graph.
// It's not a failure: callers treat it as "not fused" and move on.
var ErrFusionCycle = errors.New("fusion would create a cycle")

// ErrBufferFrozen is returned when trying to mutate a constant buffer after the program started running.
var ErrBufferFrozen = errors.New("constant buffer is frozen")
