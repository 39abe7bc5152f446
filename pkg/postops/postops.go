// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package postops models the chain of fused operations of one compiled node as a list of
// post-ops executed inside the same kernel invocation, and implements the post-op optimizer
// that merges algebraically reducible neighbours.
//
// A Chain is built from the FusedOpDesc list of a node (see FromNode): one Op per descriptor,
// in application order. Optimize returns a new chain where merged ops are marked OptimizedOut,
// and Commit applies the pending rewrites of constant scale buffers.
package postops

import (
	"fmt"
	"math"
	"slices"

	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/pkg/errors"
)

//go:generate go tool enumer -type=OpKind -trimprefix=Op -transform=snake -text -yaml -output=gen_opkind_enumer.go postops.go

// OpKind is the form of a post-op.
type OpKind int

const (
	// OpLinear is Alpha*x + Beta, with scalar constants.
	OpLinear OpKind = iota

	// OpClamp is clamp(InScale*x, Alpha, Beta). Relu is a clamp to [0, +Inf).
	OpClamp

	// OpActivation is any other activation function, with its Alpha, Beta parameters.
	OpActivation

	// OpSum is Alpha*x + Beta*other + Shift, where other is a tensor read from an extra dependency.
	OpSum

	// OpBinary applies Mode over the inputs (in the primitive order) where x takes the Primary position.
	OpBinary

	// OpScaleBuffer is x*scale + shift with constant per-channel buffers, Shift optional.
	OpScaleBuffer

	// OpScaleTensor is x*scale + shift where scale or shift are not constants.
	OpScaleTensor

	// OpQuantize quantizes x given the 4 range inputs.
	OpQuantize
)

// Op is one post-op of a chain. The meaning of the scalar fields depends on Kind.
type Op struct {
	Kind OpKind

	// Desc is the index of the fused op descriptor of the node this op was built from.
	Desc int

	// OptimizedOut is set when the op was merged into another one.
	OptimizedOut bool

	Alpha, Beta float32
	InScale     float32
	Shift       float32

	Func   graph.ActivationFunc
	Mode   graph.EltwiseMode
	Levels int

	// Inputs holds, for each input of the fused primitive, the index of the node dependency
	// feeding it, or -1 for the position taken by the running value (x).
	Inputs []int

	// Scale and ShiftBuffer are the constants of an OpScaleBuffer, and Exclusive is set if
	// nothing else reads them, so they can be rewritten.
	Scale, ShiftBuffer *graph.ConstBuffer
	Exclusive          bool

	// DType of the op output. Values are rounded to it after the op is applied.
	DType dtypes.DType

	// pending is the rewrite of the scale buffers not yet committed:
	// scale' = p*scale, shift' = q*shift + r*scale + s.
	pending            bool
	pp, pq, pr, pShift float32
}

// deps returns the dependency indices of the extra inputs of the op, in order.
func (op *Op) deps() []int {
	deps := make([]int, 0, len(op.Inputs))
	for _, dep := range op.Inputs {
		if dep >= 0 {
			deps = append(deps, dep)
		}
	}
	return deps
}

// String implements fmt.Stringer.
func (op Op) String() string {
	var s string
	switch op.Kind {
	case OpLinear:
		s = fmt.Sprintf("linear(%g, %g)", op.Alpha, op.Beta)
	case OpClamp:
		s = fmt.Sprintf("clamp(%g*x, %g, %g)", op.InScale, op.Alpha, op.Beta)
	case OpActivation:
		s = fmt.Sprintf("%s(%g, %g)", op.Func, op.Alpha, op.Beta)
	case OpSum:
		s = fmt.Sprintf("sum(%g*x + %g*dep%v + %g)", op.Alpha, op.Beta, op.deps(), op.Shift)
	case OpBinary:
		s = fmt.Sprintf("%s%v", op.Mode, op.Inputs)
	default:
		s = fmt.Sprintf("%s%v", op.Kind, op.deps())
	}
	if op.OptimizedOut {
		s += "[out]"
	}
	return s
}

// PostOpType returns the classification of the op, written back to its fused op descriptor.
func (op *Op) PostOpType() graph.PostOpType {
	if op.OptimizedOut {
		return graph.PostOpOptimizedOut
	}
	switch op.Kind {
	case OpLinear, OpScaleBuffer, OpScaleTensor:
		return graph.PostOpRescale
	case OpClamp:
		return graph.PostOpClamp
	case OpSum:
		return graph.PostOpSum
	case OpQuantize:
		return graph.PostOpQuantize
	default:
		return graph.PostOpEltwise
	}
}

// Chain of post-ops, in application order.
type Chain []Op

// Clone returns a deep copy of the chain. Constant buffers are shared.
func (c Chain) Clone() Chain {
	c2 := slices.Clone(c)
	for ii := range c2 {
		c2[ii].Inputs = slices.Clone(c[ii].Inputs)
	}
	return c2
}

// Live returns the number of ops not optimized out.
func (c Chain) Live() int {
	count := 0
	for _, op := range c {
		if !op.OptimizedOut {
			count++
		}
	}
	return count
}

// WriteOpTypes writes the classification of each op back to the fused op descriptors of the node.
func (c Chain) WriteOpTypes(n *graph.Node) {
	fused := n.FusedOps()
	for ii := range c {
		fused[c[ii].Desc].OpType = c[ii].PostOpType()
	}
}

// Attrs holds the node-level parameters of a chain.
type Attrs struct {
	// OutputScale multiplies the primitive result before the chain is applied.
	OutputScale    float32
	HasOutputScale bool

	// AllowOutputScale is set for primitives whose kernels implement an output scale.
	AllowOutputScale bool

	// AllowBufferMutation enables merging linear ops into exclusive constant scale buffers.
	AllowBufferMutation bool
}

// FromNode builds the chain of the fused operations of the node h.
func FromNode(p *graph.Program, h graph.NodeHandle) (Chain, Attrs, error) {
	n := p.Node(h)
	attrs := Attrs{
		OutputScale:         1,
		AllowOutputScale:    n.Kind() == graph.KindConvolution || n.Kind() == graph.KindFullyConnected,
		AllowBufferMutation: true,
	}
	deps := n.Dependencies()
	constant := func(dep int) *graph.ConstBuffer {
		if dep < 0 {
			return nil
		}
		dn := p.Node(deps[dep].Node)
		if dn.Kind() != graph.KindData {
			return nil
		}
		return dn.Attrs().(graph.DataAttrs).Buffer
	}
	exclusive := func(dep int) bool {
		producer := deps[dep].Node
		// Program outputs are read back by the caller: they can't be rewritten in place.
		if slices.ContainsFunc(p.Outputs(), func(out graph.Dependency) bool { return out.Node == producer }) {
			return false
		}
		edges := 0
		for _, user := range p.Node(producer).Users() {
			for _, userDep := range p.Node(user).Dependencies() {
				if userDep.Node == producer {
					edges++
				}
			}
		}
		return edges == 1
	}

	chain := make(Chain, 0, len(n.FusedOps()))
	for ii, desc := range n.FusedOps() {
		extra := make([]int, desc.DepCount)
		for jj := range extra {
			extra[jj] = desc.DepStart + jj
		}
		op := Op{
			Desc:    ii,
			InScale: 1,
			Inputs:  graph.FusedInputs(desc, -1, extra),
			DType:   desc.OutputLayout.DType,
		}
		switch primAttrs := desc.Prim.Attrs.(type) {
		case graph.ActivationAttrs:
			op.Alpha, op.Beta = primAttrs.Alpha, primAttrs.Beta
			switch {
			case primAttrs.Func == graph.ActivationLinear:
				op.Kind = OpLinear
			case primAttrs.Func == graph.ActivationRelu && primAttrs.Alpha == 0:
				op.Kind, op.Alpha, op.Beta = OpClamp, 0, float32(math.Inf(1))
			case primAttrs.Func == graph.ActivationClamp:
				op.Kind = OpClamp
			default:
				op.Kind, op.Func = OpActivation, primAttrs.Func
			}

		case graph.ScaleAttrs:
			op.Kind = OpScaleTensor
			if desc.PrimaryIndex != 0 {
				break
			}
			scale, shift := constant(op.Inputs[1]), (*graph.ConstBuffer)(nil)
			hasShift := len(op.Inputs) > 2
			if hasShift {
				shift = constant(op.Inputs[2])
			}
			switch {
			case scale == nil || (hasShift && shift == nil):
			case scale.Layout().Count() == 1 && (!hasShift || shift.Layout().Count() == 1):
				op.Kind, op.Alpha = OpLinear, scale.At(0)
				if hasShift {
					op.Beta = shift.At(0)
				}
			case !hasShift || shift.Layout().EqualDims(scale.Layout()):
				op.Kind, op.Scale, op.ShiftBuffer = OpScaleBuffer, scale, shift
				op.Exclusive = exclusive(op.Inputs[1]) && (!hasShift || (shift != scale && exclusive(op.Inputs[2])))
			}

		case graph.EltwiseAttrs:
			op.Kind, op.Mode = OpBinary, primAttrs.Mode
			if len(op.Inputs) != 2 {
				break
			}
			primary := desc.PrimaryIndex
			other := op.Inputs[1-primary]
			if c := constant(other); c != nil && c.Layout().Count() == 1 {
				linearFromScalar(&op, primAttrs.Mode, c.At(0), primary)
			} else if primAttrs.Mode == graph.EltwiseSum {
				op.Kind, op.Alpha, op.Beta = OpSum, 1, 1
			}

		case graph.QuantizeAttrs:
			op.Kind, op.Levels = OpQuantize, primAttrs.Levels

		default:
			return nil, attrs, errors.Errorf("node %s: fused operation %s of kind %s can't be a post-op",
				n, desc.Prim, desc.Prim.Kind)
		}
		chain = append(chain, op)
	}
	return chain, attrs, nil
}

// linearFromScalar converts a binary op with a scalar constant c into a linear or a clamp, when possible.
func linearFromScalar(op *Op, mode graph.EltwiseMode, c float32, primary int) {
	inf := float32(math.Inf(1))
	switch {
	case mode == graph.EltwiseSum:
		op.Kind, op.Alpha, op.Beta = OpLinear, 1, c
	case mode == graph.EltwiseSub && primary == 0:
		op.Kind, op.Alpha, op.Beta = OpLinear, 1, -c
	case mode == graph.EltwiseSub:
		op.Kind, op.Alpha, op.Beta = OpLinear, -1, c
	case mode == graph.EltwiseProd:
		op.Kind, op.Alpha, op.Beta = OpLinear, c, 0
	case mode == graph.EltwiseDiv && primary == 0 && c != 0:
		op.Kind, op.Alpha, op.Beta = OpLinear, 1/c, 0
	case mode == graph.EltwiseMax:
		op.Kind, op.Alpha, op.Beta = OpClamp, c, inf
	case mode == graph.EltwiseMin:
		op.Kind, op.Alpha, op.Beta = OpClamp, -inf, c
	}
}
