// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package reference

import (
	"cmp"
	"math"
	"slices"

	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/support/xslices"
	"github.com/pkg/errors"
)

// evalPrimitive evaluates one primitive. Output layouts are given by its shape rule.
func evalPrimitive(prim *graph.Primitive, inputs []Tensor) ([]Tensor, error) {
	inputLayouts := make([]layout.Layout, len(inputs))
	for ii, t := range inputs {
		inputLayouts[ii] = t.Layout
	}
	outLayouts, err := graph.InferLayouts(prim, inputLayouts)
	if err != nil {
		return nil, err
	}
	for ii, l := range outLayouts {
		outLayouts[ii] = l.WithFormat(layout.FormatBFYX).WithPadding(nil, nil)
		if outLayouts[ii].IsDynamic() {
			return nil, errors.Errorf("output #%d layout %s is not concrete", ii, l)
		}
	}
	out := outLayouts[0]

	var values []float32
	switch attrs := prim.Attrs.(type) {
	case graph.ConvolutionAttrs:
		values = convolution(attrs, inputs, out)
	case graph.FullyConnectedAttrs:
		values = fullyConnected(inputs, out)
	case graph.EltwiseAttrs:
		values = mapIndices(out, func(indices []int) float32 {
			acc := inputs[0].At(indices)
			for _, in := range inputs[1:] {
				acc = attrs.Mode.Apply(acc, in.At(indices))
			}
			return acc
		})
	case graph.ActivationAttrs:
		values = mapIndices(out, func(indices []int) float32 { return attrs.Apply(inputs[0].At(indices)) })
	case graph.ScaleAttrs:
		values = mapIndices(out, func(indices []int) float32 {
			v := inputs[0].At(indices) * inputs[1].At(indices)
			if len(inputs) > 2 {
				v += inputs[2].At(indices)
			}
			return v
		})
	case graph.QuantizeAttrs:
		values = mapIndices(out, func(indices []int) float32 {
			return attrs.Apply(inputs[0].At(indices), inputs[1].At(indices), inputs[2].At(indices),
				inputs[3].At(indices), inputs[4].At(indices))
		})
	case graph.PoolingAttrs:
		values = pooling(attrs, inputs[0], out)
	case graph.SoftmaxAttrs:
		values = softmax(xslices.NormalizeIndex(attrs.Axis, out.Rank()), inputs[0])
	case graph.ReorderAttrs, graph.ReshapeAttrs:
		values = slices.Clone(inputs[0].Values)
	case graph.ConcatenationAttrs:
		values = concatenation(xslices.NormalizeIndex(attrs.Axis, out.Rank()), inputs, out)
	case graph.ArgMaxMinAttrs:
		indices, topValues := argMaxMin(attrs, inputs[0], out)
		results := []Tensor{NewTensor(outLayouts[0], indices)}
		if attrs.WithValues {
			results = append(results, NewTensor(outLayouts[1], topValues))
		}
		return results, nil
	default:
		return nil, errors.Errorf("reference evaluation of %s not supported", prim)
	}
	return []Tensor{NewTensor(out, values)}, nil
}

func mapIndices(out layout.Layout, fn func(indices []int) float32) []float32 {
	values := make([]float32, out.Count())
	for flat, indices := range out.Iter() {
		values[flat] = fn(indices)
	}
	return values
}

func convolution(attrs graph.ConvolutionAttrs, inputs []Tensor, out layout.Layout) []float32 {
	input, weights := inputs[0], inputs[1]
	groups := max(attrs.Groups, 1)
	ofmPerGroup := weights.Layout.Dims[0] / groups
	ifmPerGroup := weights.Layout.Dims[1]
	window := layout.Planar(dtypes.Float32, weights.Layout.Dims[2:]...)
	inIndices := make([]int, input.Layout.Rank())
	wIndices := make([]int, weights.Layout.Rank())
	return mapIndices(out, func(indices []int) float32 {
		ofm := indices[1]
		group := ofm / ofmPerGroup
		var acc float64
		for _, kernelPos := range window.Iter() {
			inside := true
			for axis, k := range kernelPos {
				pos := indices[2+axis]*xslices.ValueOr(attrs.Strides, axis, 1) - xslices.ValueOr(attrs.PadLower, axis, 0) +
					k*xslices.ValueOr(attrs.Dilations, axis, 1)
				if pos < 0 || pos >= input.Layout.Dims[2+axis] {
					inside = false
					break
				}
				inIndices[2+axis] = pos
				wIndices[2+axis] = k
			}
			if !inside {
				continue
			}
			inIndices[0] = indices[0]
			wIndices[0] = ofm
			for c := range ifmPerGroup {
				inIndices[1] = group*ifmPerGroup + c
				wIndices[1] = c
				acc += float64(input.At(inIndices)) * float64(weights.At(wIndices))
			}
		}
		if len(inputs) > 2 {
			acc += float64(inputs[2].Values[ofm])
		}
		return float32(acc)
	})
}

func fullyConnected(inputs []Tensor, out layout.Layout) []float32 {
	input, weights := inputs[0], inputs[1]
	ifm := weights.Layout.Dims[1]
	return mapIndices(out, func(indices []int) float32 {
		b, ofm := indices[0], indices[1]
		var acc float64
		for ii := range ifm {
			acc += float64(input.Values[b*ifm+ii]) * float64(weights.Values[ofm*ifm+ii])
		}
		if len(inputs) > 2 {
			acc += float64(inputs[2].Values[ofm])
		}
		return float32(acc)
	})
}

// pooling with average excluding the padded positions.
func pooling(attrs graph.PoolingAttrs, input Tensor, out layout.Layout) []float32 {
	window := layout.Planar(dtypes.Float32, attrs.Size...)
	inIndices := make([]int, input.Layout.Rank())
	return mapIndices(out, func(indices []int) float32 {
		inIndices[0], inIndices[1] = indices[0], indices[1]
		result := math.Inf(-1)
		var sum float64
		count := 0
		for _, kernelPos := range window.Iter() {
			inside := true
			for axis, k := range kernelPos {
				pos := indices[2+axis]*xslices.ValueOr(attrs.Strides, axis, 1) - xslices.ValueOr(attrs.PadLower, axis, 0) + k
				if pos < 0 || pos >= input.Layout.Dims[2+axis] {
					inside = false
					break
				}
				inIndices[2+axis] = pos
			}
			if !inside {
				continue
			}
			v := float64(input.At(inIndices))
			result = max(result, v)
			sum += v
			count++
		}
		if attrs.Mode == graph.PoolingAverage {
			if count == 0 {
				return 0
			}
			return float32(sum / float64(count))
		}
		return float32(result)
	})
}

// axisSlices calls fn for each slice of the layout along the axis, with the flat indices of its elements.
func axisSlices(l layout.Layout, axis int, fn func(flats []int)) {
	strides := l.Strides()
	dim := l.Dims[axis]
	outerDims := slices.Clone(l.Dims)
	outerDims[axis] = 1
	outer := layout.Planar(dtypes.Float32, outerDims...)
	flats := make([]int, dim)
	for _, indices := range outer.Iter() {
		base := 0
		for a, idx := range indices {
			base += idx * strides[a]
		}
		for ii := range dim {
			flats[ii] = base + ii*strides[axis]
		}
		fn(flats)
	}
}

func softmax(axis int, input Tensor) []float32 {
	values := make([]float32, len(input.Values))
	axisSlices(input.Layout, axis, func(flats []int) {
		maxValue := math.Inf(-1)
		for _, flat := range flats {
			maxValue = max(maxValue, float64(input.Values[flat]))
		}
		var sum float64
		for _, flat := range flats {
			sum += math.Exp(float64(input.Values[flat]) - maxValue)
		}
		for _, flat := range flats {
			values[flat] = float32(math.Exp(float64(input.Values[flat])-maxValue) / sum)
		}
	})
	return values
}

func concatenation(axis int, inputs []Tensor, out layout.Layout) []float32 {
	return mapIndices(out, func(indices []int) float32 {
		pos := indices[axis]
		for _, in := range inputs {
			dim := in.Layout.Dims[axis]
			if pos < dim {
				idx := slices.Clone(indices)
				idx[axis] = pos
				return in.Values[in.Layout.FlatIndex(idx)]
			}
			pos -= dim
		}
		return 0
	})
}

// argMaxMin returns the indices and values of the top-k elements of each slice along the axis.
// Ties go to the lowest index.
func argMaxMin(attrs graph.ArgMaxMinAttrs, input Tensor, out layout.Layout) (indices, values []float32) {
	axis := xslices.NormalizeIndex(attrs.Axis, input.Layout.Rank())
	indices = make([]float32, out.Count())
	values = make([]float32, out.Count())
	outStrides := out.Strides()
	inStrides := input.Layout.Strides()
	axisSlices(input.Layout, axis, func(flats []int) {
		order := make([]int, len(flats))
		for ii := range order {
			order[ii] = ii
		}
		slices.SortStableFunc(order, func(a, b int) int {
			c := cmp.Compare(input.Values[flats[a]], input.Values[flats[b]])
			if attrs.Mode == graph.ArgMax {
				return -c
			}
			return c
		})
		// Position of the slice in the output: same outer indices, axis stride of the output.
		base := 0
		rest := flats[0]
		for a := range input.Layout.Rank() {
			idx := rest / inStrides[a]
			rest %= inStrides[a]
			if a != axis {
				base += idx * outStrides[a]
			}
		}
		for k := range attrs.TopK {
			flat := base + k*outStrides[axis]
			indices[flat] = float32(order[k])
			values[flat] = input.Values[flats[order[k]]]
		}
	})
	return
}
