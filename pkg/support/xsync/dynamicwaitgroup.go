// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xsync

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// DynamicWaitGroup counts in-flight tasks like a sync.WaitGroup, except that tasks can be added
// while others are waiting on it, and waiting can be cancelled with a context.
//
// The zero value is not usable: create it with NewDynamicWaitGroup.
type DynamicWaitGroup struct {
	mu    sync.Mutex
	count int

	// idle is closed whenever count is 0, and replaced when it becomes positive again.
	idle chan struct{}
}

// NewDynamicWaitGroup creates a DynamicWaitGroup with no tasks.
func NewDynamicWaitGroup() *DynamicWaitGroup {
	idle := make(chan struct{})
	close(idle)
	return &DynamicWaitGroup{idle: idle}
}

// Add changes the counter by delta. It panics if the counter becomes negative.
func (wg *DynamicWaitGroup) Add(delta int) {
	wg.mu.Lock()
	defer wg.mu.Unlock()
	next := wg.count + delta
	switch {
	case next < 0:
		panic(errors.Errorf("xsync.DynamicWaitGroup: negative counter %d", next))
	case wg.count == 0 && next > 0:
		wg.idle = make(chan struct{})
	case wg.count > 0 && next == 0:
		close(wg.idle)
	}
	wg.count = next
}

// Done decrements the counter by one.
func (wg *DynamicWaitGroup) Done() { wg.Add(-1) }

// Go runs fn in a new goroutine, counted until it returns.
func (wg *DynamicWaitGroup) Go(fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
}

// Count returns the current value of the counter.
func (wg *DynamicWaitGroup) Count() int {
	wg.mu.Lock()
	defer wg.mu.Unlock()
	return wg.count
}

// Wait blocks until the counter is zero.
func (wg *DynamicWaitGroup) Wait() {
	_ = wg.WaitContext(context.Background())
}

// WaitContext blocks until the counter is zero or ctx is done, in which case it returns ctx.Err().
// Tasks added while waiting extend the wait.
func (wg *DynamicWaitGroup) WaitContext(ctx context.Context) error {
	for {
		wg.mu.Lock()
		idle := wg.idle
		wg.mu.Unlock()
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
		if wg.Count() == 0 {
			return nil
		}
	}
}
