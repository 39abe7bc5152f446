// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"slices"

	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/support/xslices"
)

// InferLayouts is the shape rule of the primitive: it computes the output layouts from the layouts
// of its inputs and its static attributes. It's a pure function.
//
// Dynamic dimensions propagate: any dimension computed from a dynamic one is dynamic (anonymous),
// while dimensions passed through (like batch) keep their symbol.
//
// Errors are *ShapeInferenceError.
func InferLayouts(prim *Primitive, inputs []layout.Layout) ([]layout.Layout, error) {
	r := shapeRule{prim: prim, inputs: inputs}
	if err := r.checkInputs(); err != nil {
		return nil, err
	}
	var output layout.Layout
	var err error
	switch prim.Kind {
	case KindInput:
		output = prim.Attrs.(InputAttrs).Layout.Clone()
	case KindData:
		output = prim.Attrs.(DataAttrs).Buffer.Layout()
	case KindConvolution:
		output, err = r.convolution(prim.Attrs.(ConvolutionAttrs))
	case KindFullyConnected:
		output, err = r.fullyConnected(prim.Attrs.(FullyConnectedAttrs))
	case KindEltwise:
		output, err = r.eltwise()
	case KindActivation:
		output = plain(inputs[0])
	case KindScale:
		output, err = r.scale(prim.Attrs.(ScaleAttrs))
	case KindQuantize:
		output, err = r.quantize(prim.Attrs.(QuantizeAttrs))
	case KindPooling:
		output, err = r.pooling(prim.Attrs.(PoolingAttrs))
	case KindSoftmax:
		output, err = r.softmax(prim.Attrs.(SoftmaxAttrs))
	case KindReorder:
		output, err = r.reorder(prim.Attrs.(ReorderAttrs))
	case KindReshape:
		output, err = r.reshape(prim.Attrs.(ReshapeAttrs))
	case KindConcatenation:
		output, err = r.concatenation(prim.Attrs.(ConcatenationAttrs))
	case KindArgMaxMin:
		return r.argMaxMin(prim.Attrs.(ArgMaxMinAttrs))
	default:
		return nil, r.errorf("no shape rule for kind %s", prim.Kind)
	}
	if err != nil {
		return nil, err
	}
	return []layout.Layout{output}, nil
}

type shapeRule struct {
	prim   *Primitive
	inputs []layout.Layout
}

func (r *shapeRule) errorf(format string, args ...any) error {
	return &ShapeInferenceError{NodeID: r.prim.ID, Kind: r.prim.Kind, Reason: fmt.Sprintf(format, args...)}
}

// numInputs per kind: minimum and maximum (-1 for unbounded).
var numInputs = map[Kind][2]int{
	KindInput:          {0, 0},
	KindData:           {0, 0},
	KindConvolution:    {2, 3},
	KindFullyConnected: {2, 3},
	KindEltwise:        {2, -1},
	KindActivation:     {1, 1},
	KindScale:          {2, 3},
	KindQuantize:       {5, 5},
	KindPooling:        {1, 1},
	KindSoftmax:        {1, 1},
	KindReorder:        {1, 1},
	KindReshape:        {1, 1},
	KindConcatenation:  {1, -1},
	KindArgMaxMin:      {1, 1},
}

func (r *shapeRule) checkInputs() error {
	bounds, found := numInputs[r.prim.Kind]
	if !found {
		return r.errorf("unknown kind %d", r.prim.Kind)
	}
	n := len(r.inputs)
	if n < bounds[0] || (bounds[1] >= 0 && n > bounds[1]) {
		return r.errorf("got %d inputs, wanted between %d and %d", n, bounds[0], bounds[1])
	}
	for ii, input := range r.inputs {
		if !input.Ok() {
			return r.errorf("input #%d has an invalid layout", ii)
		}
	}
	return nil
}

// plain returns a copy of the layout without padding.
func plain(l layout.Layout) layout.Layout {
	l = l.Clone()
	l.PadLower, l.PadUpper = nil, nil
	return l
}

// setDim sets a computed dimension, dropping its symbol.
func setDim(l *layout.Layout, axis, dim int) {
	if dim < 0 {
		dim = layout.Dynamic
	}
	l.Dims[axis] = dim
	if l.Symbols != nil {
		l.Symbols[axis] = ""
	}
}

// formatFor returns format if it supports rank, or the planar format otherwise.
func formatFor(format layout.Format, rank int) layout.Format {
	if format.SupportsRank(rank) {
		return format
	}
	return layout.FormatBFYX
}

func checkSpatialParams(r *shapeRule, spatialRank int, params map[string][]int) error {
	for _, name := range []string{"strides", "dilations", "pad_lower", "pad_upper", "size"} {
		values, found := params[name]
		if !found || values == nil {
			continue
		}
		if len(values) != spatialRank {
			return r.errorf("%s %v must have one value per spatial axis (%d)", name, values, spatialRank)
		}
		for _, v := range values {
			if v < 0 || (v == 0 && name != "pad_lower" && name != "pad_upper") {
				return r.errorf("invalid %s %v", name, values)
			}
		}
	}
	return nil
}

// windowOutput returns the output dimension of a sliding window, Dynamic for a dynamic input
// or 0 if the window doesn't fit in the padded input.
func windowOutput(in, window, stride, padLower, padUpper int) int {
	if in == layout.Dynamic {
		return layout.Dynamic
	}
	padded := in + padLower + padUpper
	if padded < window {
		return 0
	}
	return (padded-window)/stride + 1
}

func (r *shapeRule) convolution(attrs ConvolutionAttrs) (layout.Layout, error) {
	input, weights := r.inputs[0], r.inputs[1]
	rank := input.Rank()
	if rank < 3 {
		return layout.Invalid(), r.errorf("input %s must have rank >= 3 (batch, feature, spatial...)", input)
	}
	if weights.Rank() != rank {
		return layout.Invalid(), r.errorf("weights %s must have the same rank as the input %s", weights, input)
	}
	if weights.IsDynamic() {
		return layout.Invalid(), r.errorf("weights %s can't be dynamic", weights)
	}
	spatialRank := rank - 2
	if err := checkSpatialParams(r, spatialRank, map[string][]int{
		"strides": attrs.Strides, "dilations": attrs.Dilations,
		"pad_lower": attrs.PadLower, "pad_upper": attrs.PadUpper}); err != nil {
		return layout.Invalid(), err
	}
	groups := max(attrs.Groups, 1)
	ifm := input.Feature()
	if ifm == layout.Dynamic {
		return layout.Invalid(), r.errorf("input %s feature dimension can't be dynamic", input)
	}
	ofm := weights.Dims[0]
	if ifm%groups != 0 {
		return layout.Invalid(), r.errorf("input features %d not divisible by groups %d", ifm, groups)
	}
	if ofm%groups != 0 {
		return layout.Invalid(), r.errorf("output features %d not divisible by groups %d", ofm, groups)
	}
	if weights.Dims[1] != ifm/groups {
		return layout.Invalid(), r.errorf("weights %s input features %d should be %d (input features %d / groups %d)",
			weights, weights.Dims[1], ifm/groups, ifm, groups)
	}
	if len(r.inputs) == 3 && r.inputs[2].Count() != ofm {
		return layout.Invalid(), r.errorf("bias %s must have %d (output features) elements", r.inputs[2], ofm)
	}

	output := plain(input)
	if attrs.OutputDType != dtypes.InvalidDType {
		output.DType = attrs.OutputDType
	}
	setDim(&output, 1, ofm)
	for axis := range spatialRank {
		kernel := weights.Dims[2+axis]
		dilation := xslices.ValueOr(attrs.Dilations, axis, 1)
		window := (kernel-1)*dilation + 1
		dim := windowOutput(input.Dims[2+axis], window, xslices.ValueOr(attrs.Strides, axis, 1),
			xslices.ValueOr(attrs.PadLower, axis, 0), xslices.ValueOr(attrs.PadUpper, axis, 0))
		if dim != layout.Dynamic && dim < 1 {
			return layout.Invalid(), r.errorf("spatial axis #%d: window %d larger than padded input %s", axis, window, input)
		}
		setDim(&output, 2+axis, dim)
	}
	return output, nil
}

func (r *shapeRule) fullyConnected(attrs FullyConnectedAttrs) (layout.Layout, error) {
	input, weights := r.inputs[0], r.inputs[1]
	if input.Rank() < 2 {
		return layout.Invalid(), r.errorf("input %s must have rank >= 2", input)
	}
	if weights.Rank() != 2 || weights.IsDynamic() {
		return layout.Invalid(), r.errorf("weights %s must be static with rank 2 (ofm, ifm)", weights)
	}
	ifm := 1
	for _, dim := range input.Dims[1:] {
		if dim == layout.Dynamic {
			return layout.Invalid(), r.errorf("input %s non-batch dimensions can't be dynamic", input)
		}
		ifm *= dim
	}
	if ifm != weights.Dims[1] {
		return layout.Invalid(), r.errorf("input %s has %d features, weights %s expect %d", input, ifm, weights, weights.Dims[1])
	}
	ofm := weights.Dims[0]
	if len(r.inputs) == 3 && r.inputs[2].Count() != ofm {
		return layout.Invalid(), r.errorf("bias %s must have %d (output features) elements", r.inputs[2], ofm)
	}
	dtype := input.DType
	if attrs.OutputDType != dtypes.InvalidDType {
		dtype = attrs.OutputDType
	}
	output := layout.Planar(dtype, input.Batch(), ofm)
	if name := input.Symbol(0); name != "" {
		output = output.WithAxisName(0, name)
	}
	return output, nil
}

// broadcastsTo checks that x can be broadcast to target: same rank, each dimension either 1 or
// equal to the target's. Dynamic dimensions are checked at dispatch time.
func (r *shapeRule) broadcastsTo(name string, x, target layout.Layout) error {
	if x.Rank() != target.Rank() {
		return r.errorf("%s %s must have the same rank as %s", name, x, target)
	}
	for axis, dim := range x.Dims {
		tDim := target.Dims[axis]
		if dim == 1 || dim == tDim || dim == layout.Dynamic || tDim == layout.Dynamic {
			continue
		}
		return r.errorf("%s %s can't be broadcast to %s at axis %d", name, x, target, axis)
	}
	return nil
}

func (r *shapeRule) eltwise() (layout.Layout, error) {
	first := r.inputs[0]
	for ii, input := range r.inputs[1:] {
		if input.DType != first.DType {
			return layout.Invalid(), r.errorf("input #%d dtype %s doesn't match input #0 dtype %s", ii+1, input.DType, first.DType)
		}
		if err := r.broadcastsTo(fmt.Sprintf("input #%d", ii+1), input, first); err != nil {
			return layout.Invalid(), err
		}
	}
	return plain(first), nil
}

func (r *shapeRule) scale(attrs ScaleAttrs) (layout.Layout, error) {
	input := r.inputs[0]
	names := []string{"scale", "shift"}
	for ii, x := range r.inputs[1:] {
		if err := r.broadcastsTo(names[ii], x, input); err != nil {
			return layout.Invalid(), err
		}
	}
	output := plain(input)
	if attrs.OutputDType != dtypes.InvalidDType {
		output.DType = attrs.OutputDType
	}
	return output, nil
}

func (r *shapeRule) quantize(attrs QuantizeAttrs) (layout.Layout, error) {
	input := r.inputs[0]
	if attrs.Levels < 2 {
		return layout.Invalid(), r.errorf("quantization levels must be >= 2, got %d", attrs.Levels)
	}
	names := []string{"input_low", "input_high", "output_low", "output_high"}
	for ii, x := range r.inputs[1:] {
		if err := r.broadcastsTo(names[ii], x, input); err != nil {
			return layout.Invalid(), err
		}
	}
	output := plain(input)
	if attrs.OutputDType != dtypes.InvalidDType {
		output.DType = attrs.OutputDType
	}
	return output, nil
}

func (r *shapeRule) pooling(attrs PoolingAttrs) (layout.Layout, error) {
	input := r.inputs[0]
	rank := input.Rank()
	if rank < 3 {
		return layout.Invalid(), r.errorf("input %s must have rank >= 3 (batch, feature, spatial...)", input)
	}
	spatialRank := rank - 2
	if len(attrs.Size) == 0 {
		return layout.Invalid(), r.errorf("pooling size must be given")
	}
	if err := checkSpatialParams(r, spatialRank, map[string][]int{
		"size": attrs.Size, "strides": attrs.Strides,
		"pad_lower": attrs.PadLower, "pad_upper": attrs.PadUpper}); err != nil {
		return layout.Invalid(), err
	}
	output := plain(input)
	for axis := range spatialRank {
		dim := windowOutput(input.Dims[2+axis], attrs.Size[axis], xslices.ValueOr(attrs.Strides, axis, 1),
			xslices.ValueOr(attrs.PadLower, axis, 0), xslices.ValueOr(attrs.PadUpper, axis, 0))
		if dim != layout.Dynamic && dim < 1 {
			return layout.Invalid(), r.errorf("spatial axis #%d: pooling window %d larger than padded input %s",
				axis, attrs.Size[axis], input)
		}
		setDim(&output, 2+axis, dim)
	}
	return output, nil
}

func (r *shapeRule) normalizeAxis(axis, rank int) (int, error) {
	normalized := xslices.NormalizeIndex(axis, rank)
	if normalized < 0 || normalized >= rank {
		return 0, r.errorf("axis %d out of range for rank %d", axis, rank)
	}
	return normalized, nil
}

func (r *shapeRule) softmax(attrs SoftmaxAttrs) (layout.Layout, error) {
	if _, err := r.normalizeAxis(attrs.Axis, r.inputs[0].Rank()); err != nil {
		return layout.Invalid(), err
	}
	return plain(r.inputs[0]), nil
}

func (r *shapeRule) reorder(attrs ReorderAttrs) (layout.Layout, error) {
	output := plain(r.inputs[0])
	if attrs.DType != dtypes.InvalidDType {
		output.DType = attrs.DType
	}
	if attrs.Format != layout.FormatAny {
		if !attrs.Format.SupportsRank(output.Rank()) {
			return layout.Invalid(), r.errorf("format %s doesn't support rank %d", attrs.Format, output.Rank())
		}
		output.Format = attrs.Format
	}
	return output, nil
}

func (r *shapeRule) reshape(attrs ReshapeAttrs) (layout.Layout, error) {
	input := r.inputs[0]
	if len(attrs.Dims) == 0 {
		return layout.Invalid(), r.errorf("reshape to empty dimensions")
	}
	output := layout.Layout{
		DType:   input.DType,
		Format:  layout.FormatBFYX,
		Dims:    make([]int, len(attrs.Dims)),
		Symbols: make([]string, len(attrs.Dims)),
	}
	if !input.Format.IsBlocked() {
		output.Format = formatFor(input.Format, len(attrs.Dims))
	}
	inferAxis := -1
	known := 1
	for axis, dim := range attrs.Dims {
		switch {
		case dim == 0:
			if axis >= input.Rank() {
				return layout.Invalid(), r.errorf("dimension 0 at axis %d copies a non-existing input axis of %s", axis, input)
			}
			output.Dims[axis] = input.Dims[axis]
			output.Symbols[axis] = input.Symbol(axis)
		case dim == -1:
			if inferAxis >= 0 {
				return layout.Invalid(), r.errorf("more than one -1 in reshape dimensions %v", attrs.Dims)
			}
			inferAxis = axis
			continue
		case dim < 0:
			return layout.Invalid(), r.errorf("invalid reshape dimensions %v", attrs.Dims)
		default:
			output.Dims[axis] = dim
		}
		if output.Dims[axis] == layout.Dynamic {
			known = -1
		} else if known > 0 {
			known *= output.Dims[axis]
		}
	}
	count := input.Count()
	switch {
	case count < 0 || known < 0:
		// Dynamic: checked at dispatch time.
		if inferAxis >= 0 {
			output.Dims[inferAxis] = layout.Dynamic
		}
	case inferAxis >= 0:
		if count%known != 0 {
			return layout.Invalid(), r.errorf("can't reshape %s to %v: %d elements not divisible by %d", input, attrs.Dims, count, known)
		}
		output.Dims[inferAxis] = count / known
	case count != known:
		return layout.Invalid(), r.errorf("can't reshape %s (%d elements) to %v (%d elements)", input, count, attrs.Dims, known)
	}
	if !slices.ContainsFunc(output.Symbols, func(s string) bool { return s != "" }) {
		output.Symbols = nil
	}
	return output, nil
}

func (r *shapeRule) concatenation(attrs ConcatenationAttrs) (layout.Layout, error) {
	first := r.inputs[0]
	axis, err := r.normalizeAxis(attrs.Axis, first.Rank())
	if err != nil {
		return layout.Invalid(), err
	}
	output := plain(first)
	total := first.Dims[axis]
	for ii, input := range r.inputs[1:] {
		if input.DType != first.DType {
			return layout.Invalid(), r.errorf("input #%d dtype %s doesn't match input #0 dtype %s", ii+1, input.DType, first.DType)
		}
		if input.Rank() != first.Rank() {
			return layout.Invalid(), r.errorf("input #%d rank %d doesn't match input #0 rank %d", ii+1, input.Rank(), first.Rank())
		}
		for d, dim := range input.Dims {
			if d == axis || dim == layout.Dynamic || first.Dims[d] == layout.Dynamic {
				continue
			}
			if dim != first.Dims[d] {
				return layout.Invalid(), r.errorf("input #%d %s doesn't match input #0 %s at axis %d", ii+1, input, first, d)
			}
		}
		if total == layout.Dynamic || input.Dims[axis] == layout.Dynamic {
			total = layout.Dynamic
		} else {
			total += input.Dims[axis]
		}
	}
	if len(r.inputs) > 1 {
		setDim(&output, axis, total)
	}
	return output, nil
}

func (r *shapeRule) argMaxMin(attrs ArgMaxMinAttrs) ([]layout.Layout, error) {
	input := r.inputs[0]
	axis, err := r.normalizeAxis(attrs.Axis, input.Rank())
	if err != nil {
		return nil, err
	}
	if attrs.TopK < 1 {
		return nil, r.errorf("top_k must be >= 1, got %d", attrs.TopK)
	}
	if dim := input.Dims[axis]; dim != layout.Dynamic && attrs.TopK > dim {
		return nil, r.errorf("top_k %d larger than input %s axis %d", attrs.TopK, input, axis)
	}
	values := plain(input)
	values.Format = formatFor(layout.FormatBFYX, input.Rank())
	setDim(&values, axis, attrs.TopK)
	indices := values.WithDType(dtypes.Int32)
	if attrs.WithValues {
		return []layout.Layout{indices, values}, nil
	}
	return []layout.Layout{indices}, nil
}
