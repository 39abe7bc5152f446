// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool implements a soft-bounded pool of goroutines. It backs the general task
// executor of the inference pipeline, where host-side setup of each request runs.
//
// Workers that block on the device call Sleep, lending their slot to another task until Wake.
package workerspool

import (
	"runtime"
	"sync"
)

// goroutinesPerWorker is how many goroutines may run per unit of parallelism: stage A tasks
// spend part of their time enqueueing on the device stream.
const goroutinesPerWorker = 2

// Pool of workers. Create it with New.
type Pool struct {
	parallelism int

	mu       sync.Mutex
	cond     sync.Cond // Signaled whenever a slot is freed.
	running  int
	sleeping int
}

// New returns a Pool with the given soft limit of parallel tasks. If parallelism <= 0 it
// defaults to runtime.NumCPU().
func New(parallelism int) *Pool {
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	p := &Pool{parallelism: parallelism}
	p.cond.L = &p.mu
	return p
}

// Parallelism returns the soft limit of parallel tasks. The limit of goroutines is higher.
func (p *Pool) Parallelism() int { return p.parallelism }

// NumRunning returns the number of tasks currently running in the pool, sleeping ones included.
func (p *Pool) NumRunning() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// NumSleeping returns the number of workers waiting on the device.
func (p *Pool) NumSleeping() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sleeping
}

// lockedIsFull must be called with Pool.mu acquired.
func (p *Pool) lockedIsFull() bool {
	return p.running-p.sleeping >= goroutinesPerWorker*p.parallelism
}

// Submit waits until there is a worker available and runs the task on it.
func (p *Pool) Submit(task func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.lockedIsFull() {
		p.cond.Wait()
	}
	p.lockedStart(task)
}

// TrySubmit runs the task if a worker is available, and returns whether it did.
func (p *Pool) TrySubmit(task func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lockedIsFull() {
		return false
	}
	p.lockedStart(task)
	return true
}

// lockedStart must be called with Pool.mu acquired.
func (p *Pool) lockedStart(task func()) {
	p.running++
	go func() {
		task()
		p.mu.Lock()
		p.running--
		p.cond.Signal()
		p.mu.Unlock()
	}()
}

// Sleep indicates the calling worker is going to block waiting for the device: its slot is
// lent to another task until Wake is called.
func (p *Pool) Sleep() {
	p.mu.Lock()
	p.sleeping++
	p.cond.Signal()
	p.mu.Unlock()
}

// Wake indicates the calling worker, after a Sleep, is running again.
func (p *Pool) Wake() {
	p.mu.Lock()
	p.sleeping--
	p.mu.Unlock()
}
