// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"math"

	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
)

// InputAttrs of a KindInput primitive: the layout of the network input.
// Dynamic dimensions are resolved when a request binds the input.
type InputAttrs struct {
	Layout layout.Layout
}

// DataAttrs of a KindData primitive.
type DataAttrs struct {
	Buffer *ConstBuffer
}

// ConvolutionAttrs of a KindConvolution primitive.
//
// Inputs are the data (b, f, spatial...), the weights (ofm, ifm/groups, kernel spatial...) and
// optionally the bias (1, ofm).
// Strides, Dilations and pads are given per spatial axis, nil means the default (1 or 0).
type ConvolutionAttrs struct {
	Groups             int
	Strides, Dilations []int
	PadLower, PadUpper []int

	// OutputDType if different from the input dtype (e.g. int8 convolutions accumulating into float32).
	OutputDType dtypes.DType
}

// FullyConnectedAttrs of a KindFullyConnected primitive.
//
// Inputs are the data (b, ifm...), the weights (ofm, ifm) and optionally the bias (1, ofm).
// Data with rank > 2 is flattened after the batch axis.
type FullyConnectedAttrs struct {
	OutputDType dtypes.DType
}

//go:generate go tool enumer -type=EltwiseMode -trimprefix=Eltwise -transform=snake -text -yaml -output=gen_eltwisemode_enumer.go attrs.go

// EltwiseMode is the binary operation of a KindEltwise primitive.
type EltwiseMode int

const (
	EltwiseSum EltwiseMode = iota
	EltwiseSub
	EltwiseProd
	EltwiseDiv
	EltwiseMax
	EltwiseMin
)

// Apply the binary operation to scalars.
func (m EltwiseMode) Apply(a, b float32) float32 {
	switch m {
	case EltwiseSum:
		return a + b
	case EltwiseSub:
		return a - b
	case EltwiseProd:
		return a * b
	case EltwiseDiv:
		return a / b
	case EltwiseMax:
		return max(a, b)
	case EltwiseMin:
		return min(a, b)
	}
	return 0
}

// EltwiseAttrs of a KindEltwise primitive. It takes 2 or more inputs, broadcast to the first one,
// and applies Mode left to right.
type EltwiseAttrs struct {
	Mode EltwiseMode
}

//go:generate go tool enumer -type=ActivationFunc -trimprefix=Activation -transform=snake -text -yaml -output=gen_activationfunc_enumer.go attrs.go

// ActivationFunc is the function of a KindActivation primitive.
type ActivationFunc int

const (
	// ActivationRelu is max(x, 0) + Alpha * min(x, 0): Alpha is the negative slope.
	ActivationRelu ActivationFunc = iota

	// ActivationClamp clamps x to [Alpha, Beta].
	ActivationClamp

	// ActivationLinear is Alpha * x + Beta.
	ActivationLinear

	ActivationSigmoid
	ActivationTanh
	ActivationAbs
	ActivationGelu
	ActivationExp
)

// ActivationAttrs of a KindActivation primitive.
type ActivationAttrs struct {
	Func        ActivationFunc
	Alpha, Beta float32
}

// Apply the activation to a scalar.
func (a ActivationAttrs) Apply(x float32) float32 {
	switch a.Func {
	case ActivationRelu:
		if x < 0 {
			return a.Alpha * x
		}
		return x
	case ActivationClamp:
		return min(max(x, a.Alpha), a.Beta)
	case ActivationLinear:
		return a.Alpha*x + a.Beta
	case ActivationSigmoid:
		return float32(1 / (1 + math.Exp(-float64(x))))
	case ActivationTanh:
		return float32(math.Tanh(float64(x)))
	case ActivationAbs:
		return float32(math.Abs(float64(x)))
	case ActivationGelu:
		return float32(0.5 * float64(x) * (1 + math.Erf(float64(x)/math.Sqrt2)))
	case ActivationExp:
		return float32(math.Exp(float64(x)))
	}
	return x
}

// ScaleAttrs of a KindScale primitive: inputs are the data, the scale and optionally the shift,
// both broadcast to the data (usually per feature).
type ScaleAttrs struct {
	// OutputDType if different from the input dtype: scales are used to dequantize int8 outputs.
	OutputDType dtypes.DType
}

// QuantizeAttrs of a KindQuantize primitive: inputs are the data, input low/high and output low/high,
// each broadcast to the data.
type QuantizeAttrs struct {
	Levels      int
	OutputDType dtypes.DType
}

// Apply the quantization to a scalar, given the values of the ranges for its position.
func (a QuantizeAttrs) Apply(x, inLow, inHigh, outLow, outHigh float32) float32 {
	switch {
	case x <= min(inLow, inHigh):
		return outLow
	case x > max(inLow, inHigh):
		return outHigh
	}
	steps := float64(a.Levels - 1)
	q := math.Round(float64(x-inLow) / float64(inHigh-inLow) * steps)
	return float32(q/steps*float64(outHigh-outLow) + float64(outLow))
}

//go:generate go tool enumer -type=PoolingMode -trimprefix=Pooling -transform=snake -text -yaml -output=gen_poolingmode_enumer.go attrs.go

// PoolingMode of a KindPooling primitive.
type PoolingMode int

const (
	PoolingMax PoolingMode = iota
	PoolingAverage
)

// PoolingAttrs of a KindPooling primitive. Size and Strides are given per spatial axis.
type PoolingAttrs struct {
	Mode               PoolingMode
	Size, Strides      []int
	PadLower, PadUpper []int
}

// SoftmaxAttrs of a KindSoftmax primitive.
type SoftmaxAttrs struct {
	Axis int
}

// ReorderAttrs of a KindReorder primitive: converts the input to a different format and/or dtype.
// Zero values mean "unchanged".
type ReorderAttrs struct {
	Format layout.Format
	DType  dtypes.DType
}

// ReshapeAttrs of a KindReshape primitive. A 0 dimension copies the input dimension at the same axis,
// and at most one -1 is inferred from the remaining elements.
type ReshapeAttrs struct {
	Dims []int
}

// ConcatenationAttrs of a KindConcatenation primitive.
type ConcatenationAttrs struct {
	Axis int
}

//go:generate go tool enumer -type=ArgMode -trimprefix=Arg -transform=snake -text -yaml -output=gen_argmode_enumer.go attrs.go

// ArgMode of a KindArgMaxMin primitive.
type ArgMode int

const (
	ArgMax ArgMode = iota
	ArgMin
)

// ArgMaxMinAttrs of a KindArgMaxMin primitive. Output 0 holds the Int32 indices of the TopK
// values along Axis. If WithValues is set, output 1 holds the values themselves.
type ArgMaxMinAttrs struct {
	Mode       ArgMode
	Axis       int
	TopK       int
	WithValues bool
}
