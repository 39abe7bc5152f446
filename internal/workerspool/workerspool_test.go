// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gomlx/gpuplan/pkg/support/xsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitIdle(t *testing.T, pool *Pool) {
	deadline := time.Now().Add(time.Second)
	for pool.NumRunning() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, 0, pool.NumRunning())
}

func TestSubmit(t *testing.T) {
	assert.Equal(t, runtime.NumCPU(), New(0).Parallelism())

	pool := New(2)
	const numTasks = 20
	var count atomic.Int32
	wg := xsync.NewDynamicWaitGroup()
	for range numTasks {
		wg.Add(1)
		pool.Submit(func() {
			count.Add(1)
			wg.Done()
		})
	}
	wg.Wait()
	assert.Equal(t, int32(numTasks), count.Load())
	waitIdle(t, pool)
}

func TestTrySubmitAndSleep(t *testing.T) {
	pool := New(1)
	release := xsync.NewLatch()
	started := 0
	for pool.TrySubmit(release.Wait) {
		started++
		require.Less(t, started, 10, "pool is not bounded")
	}
	assert.Equal(t, goroutinesPerWorker, started)
	assert.Equal(t, started, pool.NumRunning())

	// A sleeping worker lends its slot.
	pool.Sleep()
	assert.Equal(t, 1, pool.NumSleeping())
	assert.True(t, pool.TrySubmit(release.Wait))
	assert.False(t, pool.TrySubmit(release.Wait))
	pool.Wake()
	assert.Equal(t, 0, pool.NumSleeping())

	// Submit blocks until a slot is freed.
	submitted := xsync.NewLatch()
	go func() {
		pool.Submit(func() {})
		submitted.Trigger()
	}()
	select {
	case <-submitted.WaitChan():
		t.Fatal("Submit should block while the pool is full")
	case <-time.After(20 * time.Millisecond):
	}
	release.Trigger()
	submitted.Wait()
	waitIdle(t, pool)
}
