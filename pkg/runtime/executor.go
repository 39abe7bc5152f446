// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"sync"

	"github.com/gomlx/gpuplan/internal/workerspool"
)

// Executor runs the tasks of the inference pipeline stages.
type Executor interface {
	Name() string

	// Submit a task. It may run it inline, but it must not wait for other submitted tasks.
	Submit(task func())
}

// sleeper is implemented by executors that can lend the worker while a task blocks on the device.
type sleeper interface {
	sleep()
	wakeUp()
}

// TaskExecutor runs tasks on a pool of goroutines. Tasks submitted while the pool is full wait
// in a FIFO backlog, fed to the pool by a drainer goroutine, so Submit never blocks.
type TaskExecutor struct {
	name string
	pool *workerspool.Pool

	mu       sync.Mutex
	backlog  []func()
	pending  int // Tasks in backlog plus the one the drainer is handing to the pool.
	draining bool
}

var _ Executor = (*TaskExecutor)(nil)

// NewTaskExecutor creates an executor backed by the pool. If pool is nil a new one is created
// with the default parallelism.
func NewTaskExecutor(name string, pool *workerspool.Pool) *TaskExecutor {
	if pool == nil {
		pool = workerspool.New(0)
	}
	return &TaskExecutor{name: name, pool: pool}
}

// Name implements Executor.
func (e *TaskExecutor) Name() string { return e.name }

// Submit implements Executor. It starts the task if the pool has a free worker, or queues it
// after the tasks already waiting otherwise.
func (e *TaskExecutor) Submit(task func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == 0 && e.pool.TrySubmit(task) {
		return
	}
	e.backlog = append(e.backlog, task)
	e.pending++
	if !e.draining {
		e.draining = true
		go e.drain()
	}
}

// drain hands the backlog to the pool in order, blocking on it while it's full.
func (e *TaskExecutor) drain() {
	for {
		e.mu.Lock()
		if len(e.backlog) == 0 {
			e.draining = false
			e.mu.Unlock()
			return
		}
		task := e.backlog[0]
		e.backlog[0] = nil
		e.backlog = e.backlog[1:]
		e.mu.Unlock()

		e.pool.Submit(task)
		e.mu.Lock()
		e.pending--
		e.mu.Unlock()
	}
}

// Backlog returns the number of submitted tasks still waiting for a worker.
func (e *TaskExecutor) Backlog() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// Pool returns the pool of workers of the executor.
func (e *TaskExecutor) Pool() *workerspool.Pool { return e.pool }

func (e *TaskExecutor) sleep()  { e.pool.Sleep() }
func (e *TaskExecutor) wakeUp() { e.pool.Wake() }

// SerialExecutor runs tasks one at a time, in submission order, on its own goroutine.
// It's the usual wait executor: completions are waited for in the order requests were submitted.
type SerialExecutor struct {
	name string

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

var _ Executor = (*SerialExecutor)(nil)

// NewSerialExecutor creates and starts a serial executor. Call Close to stop it.
func NewSerialExecutor(name string) *SerialExecutor {
	e := &SerialExecutor{name: name, done: make(chan struct{})}
	e.cond = sync.NewCond(&e.mu)
	go e.loop()
	return e
}

// Name implements Executor.
func (e *SerialExecutor) Name() string { return e.name }

// Submit implements Executor. Tasks submitted after Close run inline.
func (e *SerialExecutor) Submit(task func()) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		task()
		return
	}
	e.queue = append(e.queue, task)
	e.cond.Signal()
	e.mu.Unlock()
}

func (e *SerialExecutor) loop() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		task := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()
		task()
	}
}

// Close stops the executor after the pending tasks ran, and waits for them.
func (e *SerialExecutor) Close() {
	e.mu.Lock()
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()
	<-e.done
}

type inlineExecutor struct{}

// InlineExecutor runs tasks in the goroutine that submits them.
var InlineExecutor Executor = inlineExecutor{}

func (inlineExecutor) Name() string       { return "inline" }
func (inlineExecutor) Submit(task func()) { task() }
