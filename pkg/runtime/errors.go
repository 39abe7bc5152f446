// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrRequestBusy is returned when an InferRequest is used while an inference is in flight.
var ErrRequestBusy = errors.New("infer request is busy")

// ErrNotStarted is returned by InferRequest.Wait if no asynchronous inference was started.
var ErrNotStarted = errors.New("infer request not started")

// errRebuildRequired is the internal signal for an ExecutionGroup to build its command list
// from scratch instead of patching it.
var errRebuildRequired = errors.New("command list rebuild required")

// RequestError is the failure of one inference call. The compiled program and the other requests
// are not affected.
type RequestError struct {
	RequestID uuid.UUID
	Err       error
}

// Error implements error.
func (e *RequestError) Error() string {
	return fmt.Sprintf("infer request %s: %v", e.RequestID, e.Err)
}

// Unwrap returns the underlying error, e.g. a *kernels.DispatchUpdateError.
func (e *RequestError) Unwrap() error { return e.Err }
