// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

//go:generate go tool enumer -type=Kind -trimprefix=Kind -transform=snake -text -yaml -output=gen_kind_enumer.go kind.go

// Kind of primitive. The set is closed: every kind has a shape rule and a set of kernels in the catalog.
type Kind int

const (
	KindInvalid Kind = iota

	// KindInput is a network input, bound per inference request.
	KindInput

	// KindData is a constant, holding a ConstBuffer.
	KindData

	KindConvolution
	KindFullyConnected
	KindEltwise
	KindActivation
	KindScale
	KindQuantize
	KindPooling
	KindSoftmax
	KindReorder
	KindReshape
	KindConcatenation
	KindArgMaxMin

	// KindLast is the number of kinds, not a valid kind itself.
	KindLast
)

// IsExecutable returns whether nodes of this kind are dispatched to the device.
// Input and Data nodes only hold values.
func (k Kind) IsExecutable() bool {
	return k != KindInput && k != KindData && k != KindInvalid
}

// Bit returns a bitmask with one bit set for the kind. Used in kernel capability keys.
func (k Kind) Bit() uint32 {
	return 1 << uint32(k)
}

//go:generate go tool enumer -type=PostOpType -trimprefix=PostOp -transform=snake -text -yaml -output=gen_postoptype_enumer.go kind.go

// PostOpType classifies a fused operation for the post-op optimizer.
type PostOpType int

const (
	// PostOpUndefined is the type of descriptors not yet classified.
	PostOpUndefined PostOpType = iota

	// PostOpRescale is a multiply-add by a scalar or per-channel constant.
	PostOpRescale

	// PostOpEltwise is a generic activation or binary elementwise operation.
	PostOpEltwise

	// PostOpClamp is a relu or clamp: a nonlinear operation with zero shift.
	PostOpClamp

	// PostOpSum adds a tensor from an extra dependency.
	PostOpSum

	// PostOpQuantize is a quantization (fake-quantize) step.
	PostOpQuantize

	// PostOpOptimizedOut marks a descriptor merged into another one: it's not executed anymore.
	PostOpOptimizedOut
)
