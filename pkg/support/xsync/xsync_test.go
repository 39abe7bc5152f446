// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatch(t *testing.T) {
	l := NewLatch()
	assert.False(t, l.Test())
	go l.Trigger()
	l.Wait()
	assert.True(t, l.Test())
	l.Trigger() // Triggering twice is a no-op.
	require.NoError(t, l.WaitContext(context.Background()))

	l2 := NewLatch()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, l2.WaitContext(ctx), context.DeadlineExceeded)
}

func TestLatchWithValue(t *testing.T) {
	l := NewLatchWithValue[int]()
	go func() {
		l.Trigger(3)
		l.Trigger(5)
	}()
	assert.Equal(t, 3, l.Wait())
	v, err := l.WaitContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestDynamicWaitGroup(t *testing.T) {
	wg := NewDynamicWaitGroup()
	wg.Add(2)
	assert.Equal(t, 2, wg.Count())
	done := NewLatch()
	go func() {
		wg.Wait()
		done.Trigger()
	}()
	wg.Done()
	wg.Add(1) // Grows while being waited on.
	wg.Done()
	wg.Done()
	select {
	case <-done.WaitChan():
	case <-time.After(time.Second):
		t.Fatal("DynamicWaitGroup.Wait() didn't return")
	}
	require.Panics(t, func() { wg.Done() })
}

func TestDynamicWaitGroupContext(t *testing.T) {
	wg := NewDynamicWaitGroup()
	require.NoError(t, wg.WaitContext(context.Background()), "no tasks: returns immediately")

	release := NewLatch()
	for range 3 {
		wg.Go(release.Wait)
	}
	assert.Equal(t, 3, wg.Count())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, wg.WaitContext(ctx), context.DeadlineExceeded)

	release.Trigger()
	require.NoError(t, wg.WaitContext(context.Background()))
	assert.Equal(t, 0, wg.Count())

	// Becomes busy again after being idle.
	wg.Add(1)
	assert.Equal(t, 1, wg.Count())
	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel2()
	require.ErrorIs(t, wg.WaitContext(ctx2), context.DeadlineExceeded)
	wg.Done()
	wg.Wait()
}
