// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gomlx/gpuplan/internal/metrics"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/support/xsync"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	defaultTaskExecutorOnce sync.Once
	defaultTaskExecutor     *TaskExecutor
)

// DefaultTaskExecutor is the task executor shared by requests that don't set one.
func DefaultTaskExecutor() *TaskExecutor {
	defaultTaskExecutorOnce.Do(func() {
		defaultTaskExecutor = NewTaskExecutor("tasks", nil)
	})
	return defaultTaskExecutor
}

// InferRequest runs inferences on a Network, as a two stages pipeline:
//
//   - Stage A, on the task executor: binds the inputs and enqueues the execution groups. If no wait
//     executor is set, it then waits for the device to complete.
//   - Stage B, on the wait executor when one is set: only waits for the device to complete.
//
// Only one inference may be in flight per request: Infer, StartAsync, SetInput and Reset return
// ErrRequestBusy otherwise. Failures of an inference are returned as *RequestError.
type InferRequest struct {
	id  uuid.UUID
	net *Network

	taskExecutor, waitExecutor Executor

	busy atomic.Bool
	mu   sync.Mutex
	done *xsync.LatchWithValue[error]
}

// NewInferRequest creates a request running on the network, which it owns from now on.
func NewInferRequest(net *Network) *InferRequest {
	return &InferRequest{id: uuid.New(), net: net}
}

// WithTaskExecutor sets the executor of stage A. The default is DefaultTaskExecutor.
func (r *InferRequest) WithTaskExecutor(e Executor) *InferRequest {
	r.taskExecutor = e
	return r
}

// WithWaitExecutor sets the executor of stage B, where the completion of the device is waited
// for. If nil (the default) stage A waits itself.
func (r *InferRequest) WithWaitExecutor(e Executor) *InferRequest {
	r.waitExecutor = e
	return r
}

// ID of the request, used in its errors.
func (r *InferRequest) ID() uuid.UUID { return r.id }

// Network of the request.
func (r *InferRequest) Network() *Network { return r.net }

// SetInput binds the concrete layout of an input and returns its memory, to be filled by the caller.
func (r *InferRequest) SetInput(id string, l layout.Layout) (Memory, error) {
	if r.busy.Load() {
		return nil, ErrRequestBusy
	}
	mem, err := r.net.SetInput(id, l)
	if err != nil {
		return nil, r.wrap(err)
	}
	return mem, nil
}

// Outputs of the last completed inference.
func (r *InferRequest) Outputs() []Output { return r.net.Outputs() }

// Infer runs an inference synchronously: both stages run inline.
func (r *InferRequest) Infer(ctx context.Context) error {
	if !r.busy.CompareAndSwap(false, true) {
		return ErrRequestBusy
	}
	start := time.Now()
	event, err := r.submit(ctx)
	if err == nil {
		err = event.Wait(ctx)
	}
	return r.finish(start, err)
}

// StartAsync starts an inference and returns without blocking. Use Wait for its result.
func (r *InferRequest) StartAsync(ctx context.Context) error {
	if !r.busy.CompareAndSwap(false, true) {
		return ErrRequestBusy
	}
	done := xsync.NewLatchWithValue[error]()
	r.mu.Lock()
	r.done = done
	r.mu.Unlock()

	start := time.Now()
	taskExecutor := r.taskExecutor
	if taskExecutor == nil {
		taskExecutor = DefaultTaskExecutor()
	}
	waitExecutor := r.waitExecutor
	taskExecutor.Submit(func() {
		event, err := r.submit(ctx)
		if err != nil {
			done.Trigger(r.finish(start, err))
			return
		}
		if waitExecutor == nil {
			done.Trigger(r.finish(start, r.waitInStage(ctx, taskExecutor, event)))
			return
		}
		waitExecutor.Submit(func() {
			done.Trigger(r.finish(start, event.Wait(ctx)))
		})
	})
	return nil
}

// Wait for the inference started with StartAsync and return its error.
func (r *InferRequest) Wait(ctx context.Context) error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return ErrNotStarted
	}
	err, ctxErr := done.WaitContext(ctx)
	if ctxErr != nil {
		return ctxErr
	}
	return err
}

// Reset the request after its result was retrieved, so Wait reports ErrNotStarted again.
func (r *InferRequest) Reset() error {
	if r.busy.Load() {
		return ErrRequestBusy
	}
	r.mu.Lock()
	r.done = nil
	r.mu.Unlock()
	return nil
}

// Release the memory of the request network.
func (r *InferRequest) Release() error {
	if r.busy.Load() {
		return ErrRequestBusy
	}
	r.net.Release()
	return nil
}

// submit is the host side setup of stage A.
func (r *InferRequest) submit(ctx context.Context) (Event, error) {
	event, err := r.net.Execute(ctx, nil)
	if err != nil && event != nil {
		// Groups already enqueued still use the network memory.
		_ = event.Wait(context.Background())
	}
	return event, err
}

func (r *InferRequest) waitInStage(ctx context.Context, executor Executor, event Event) error {
	if s, ok := executor.(sleeper); ok {
		s.sleep()
		defer s.wakeUp()
	}
	return event.Wait(ctx)
}

func (r *InferRequest) finish(start time.Time, err error) error {
	elapsed := time.Since(start)
	if err != nil {
		err = r.wrap(err)
		klog.V(1).Infof("%v", err)
	} else {
		metrics.RecordInference(elapsed)
		klog.V(2).Infof("infer request %s completed in %s", r.id, elapsed)
	}
	r.busy.Store(false)
	return err
}

func (r *InferRequest) wrap(err error) error {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return err
	}
	return &RequestError{RequestID: r.id, Err: err}
}
