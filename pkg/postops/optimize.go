// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package postops

import (
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Optimize merges reducible neighbour ops of the chain and returns the new chain and attributes.
// The input chain is not changed. The reductions are:
//
//   - linear, linear: one linear.
//   - linear(a>0, 0), clamp: the clamp with its input scale multiplied by a. And the symmetric
//     clamp, linear(a>0, 0), with the bounds scaled too.
//   - sum, linear: the sum with its scales and shift updated.
//   - linear, scale buffer (either order): the scale buffer, with its values to be rewritten by
//     Commit. Only if the buffers are exclusive to the op and buffer mutation is allowed; if the
//     merged shift is not zero a shift buffer must be present.
//   - first op linear(a, 0): moved into the output scale, if the primitive supports it and it's free.
//
// Merged ops are marked OptimizedOut. After each reduction the scan restarts right before the
// touched position, since a reduction may expose a new reducible pair. Each reduction removes
// one live op, so it terminates.
func Optimize(chain Chain, attrs Attrs) (Chain, Attrs) {
	chain = chain.Clone()
	live := chain.liveIndices()
	for ii := 0; ii < len(live); {
		if ii+1 < len(live) && reducePair(&chain[live[ii]], &chain[live[ii+1]], attrs) {
			klog.V(3).Infof("postops: reduced pair at #%d: %s, %s", live[ii], chain[live[ii]], chain[live[ii+1]])
			live = chain.liveIndices()
			ii = max(ii-1, 0)
			continue
		}
		if ii == 0 && reduceIntoOutputScale(&chain[live[ii]], &attrs) {
			live = chain.liveIndices()
			continue
		}
		ii++
	}
	return chain, attrs
}

func (c Chain) liveIndices() []int {
	live := make([]int, 0, len(c))
	for ii := range c {
		if !c[ii].OptimizedOut {
			live = append(live, ii)
		}
	}
	return live
}

// reducePair tries to merge first and second, marking one of them as optimized out.
func reducePair(first, second *Op, attrs Attrs) bool {
	switch {
	case first.Kind == OpLinear && second.Kind == OpLinear:
		first.Alpha, first.Beta = second.Alpha*first.Alpha, second.Alpha*first.Beta+second.Beta
		second.OptimizedOut = true
		first.DType = second.DType
		return true

	case first.Kind == OpLinear && second.Kind == OpClamp && first.Alpha > 0 && first.Beta == 0:
		second.InScale *= first.Alpha
		first.OptimizedOut = true
		return true

	case first.Kind == OpClamp && second.Kind == OpLinear && second.Alpha > 0 && second.Beta == 0:
		first.InScale *= second.Alpha
		first.Alpha *= second.Alpha
		first.Beta *= second.Alpha
		first.DType = second.DType
		second.OptimizedOut = true
		return true

	case first.Kind == OpSum && second.Kind == OpLinear:
		a, b := second.Alpha, second.Beta
		first.Alpha, first.Beta, first.Shift = a*first.Alpha, a*first.Beta, a*first.Shift+b
		first.DType = second.DType
		second.OptimizedOut = true
		return true

	case first.Kind == OpLinear && second.Kind == OpScaleBuffer && attrs.AllowBufferMutation && second.Exclusive:
		// scale*(a*x + b) + shift = (a*scale)*x + (shift + b*scale).
		p, q, r, s := second.factors()
		a, b := first.Alpha, first.Beta
		p, r = a*p, r+b*p
		if second.ShiftBuffer == nil && (r != 0 || s != 0) {
			return false
		}
		second.setFactors(p, q, r, s)
		first.OptimizedOut = true
		return true

	case first.Kind == OpScaleBuffer && second.Kind == OpLinear && attrs.AllowBufferMutation && first.Exclusive:
		// a*(scale*x + shift) + b = (a*scale)*x + (a*shift + b).
		p, q, r, s := first.factors()
		a, b := second.Alpha, second.Beta
		p, q, r, s = a*p, a*q, a*r, a*s+b
		if first.ShiftBuffer == nil && (r != 0 || s != 0) {
			return false
		}
		first.setFactors(p, q, r, s)
		first.DType = second.DType
		second.OptimizedOut = true
		return true
	}
	return false
}

func reduceIntoOutputScale(op *Op, attrs *Attrs) bool {
	if op.Kind != OpLinear || op.Beta != 0 || !attrs.AllowOutputScale || attrs.HasOutputScale {
		return false
	}
	attrs.OutputScale *= op.Alpha
	attrs.HasOutputScale = true
	op.OptimizedOut = true
	return true
}

func (op *Op) factors() (p, q, r, s float32) {
	if !op.pending {
		return 1, 1, 0, 0
	}
	return op.pp, op.pq, op.pr, op.pShift
}

func (op *Op) setFactors(p, q, r, s float32) {
	op.pending = true
	op.pp, op.pq, op.pr, op.pShift = p, q, r, s
}

// Pending returns whether the op holds rewrites of its constant buffers not yet committed.
func (op *Op) Pending() bool { return op.pending }

// CheckCommit returns an error wrapping graph.ErrBufferFrozen if a pending rewrite of the chain
// targets a frozen buffer.
func CheckCommit(chain Chain) error {
	for ii := range chain {
		op := &chain[ii]
		if !op.pending {
			continue
		}
		if op.Scale.Frozen() || (op.ShiftBuffer != nil && op.ShiftBuffer.Frozen()) {
			return errors.WithMessagef(graph.ErrBufferFrozen, "post-op #%d (%s)", ii, op)
		}
	}
	return nil
}

// Commit rewrites the constant scale buffers of the ops with pending rewrites (see Optimize),
// under the buffers' exclusive lock, and clears the pending rewrites of the chain.
//
// It must only be called during compilation: once a buffer is frozen it fails with an error
// wrapping graph.ErrBufferFrozen, and no buffer is changed.
func Commit(chain Chain) error {
	if err := CheckCommit(chain); err != nil {
		return err
	}
	for ii := range chain {
		op := &chain[ii]
		if !op.pending {
			continue
		}
		p, q, r, s := op.factors()
		scale := op.Scale.Values()
		if op.ShiftBuffer != nil {
			err := op.ShiftBuffer.Mutate(func(values []float32) error {
				for jj := range values {
					values[jj] = q*values[jj] + r*scale[jj] + s
				}
				return nil
			})
			if err != nil {
				return errors.WithMessagef(err, "post-op #%d (%s) shift", ii, op)
			}
		}
		err := op.Scale.Mutate(func(values []float32) error {
			for jj := range values {
				values[jj] *= p
			}
			return nil
		})
		if err != nil {
			return errors.WithMessagef(err, "post-op #%d (%s) scale", ii, op)
		}
		op.pending = false
	}
	return nil
}
