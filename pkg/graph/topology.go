// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/pkg/errors"
)

// InputRef references one output of another primitive.
type InputRef struct {
	ID     string
	Output int
}

// In returns a reference to output 0 of the primitive id.
func In(id string) InputRef {
	return InputRef{ID: id}
}

// String implements fmt.Stringer.
func (r InputRef) String() string {
	if r.Output == 0 {
		return r.ID
	}
	return fmt.Sprintf("%s:%d", r.ID, r.Output)
}

// Primitive is one declared operation: its kind, static attributes and ordered inputs.
//
// Attrs must hold the attributes struct of the kind (e.g. ConvolutionAttrs for KindConvolution),
// by value.
type Primitive struct {
	ID     string
	Kind   Kind
	Inputs []InputRef
	Attrs  any
}

// NumOutputs returns the number of outputs produced by the primitive.
func (p *Primitive) NumOutputs() int {
	if attrs, ok := p.Attrs.(ArgMaxMinAttrs); ok && attrs.WithValues {
		return 2
	}
	return 1
}

// String implements fmt.Stringer.
func (p *Primitive) String() string {
	return fmt.Sprintf("%s(%q)", p.Kind, p.ID)
}

// Topology is the graph as it comes from the IR importer: a list of primitives where each
// one only references earlier ones, hence acyclic by construction.
//
// The typed helper methods (Input, Data, Convolution, ...) panic on errors, use Add for an error return.
type Topology struct {
	prims   []*Primitive
	byID    map[string]*Primitive
	outputs []InputRef
}

// NewTopology creates an empty Topology.
func NewTopology() *Topology {
	return &Topology{byID: make(map[string]*Primitive)}
}

// Add a primitive to the topology. Its inputs must reference primitives already added.
func (t *Topology) Add(prim *Primitive) error {
	if prim.ID == "" {
		return errors.Errorf("primitive of kind %s has an empty id", prim.Kind)
	}
	if _, found := t.byID[prim.ID]; found {
		return errors.Errorf("duplicate primitive id %q", prim.ID)
	}
	if prim.Kind <= KindInvalid || prim.Kind >= KindLast {
		return errors.Errorf("primitive %q has invalid kind %d", prim.ID, prim.Kind)
	}
	if err := checkAttrs(prim); err != nil {
		return err
	}
	for ii, input := range prim.Inputs {
		producer, found := t.byID[input.ID]
		if !found {
			return errors.Errorf("primitive %q input #%d references unknown primitive %q", prim.ID, ii, input.ID)
		}
		if input.Output < 0 || input.Output >= producer.NumOutputs() {
			return errors.Errorf("primitive %q input #%d references output %d of %s, which has %d outputs",
				prim.ID, ii, input.Output, producer, producer.NumOutputs())
		}
	}
	prim.Inputs = slices.Clone(prim.Inputs)
	t.prims = append(t.prims, prim)
	t.byID[prim.ID] = prim
	return nil
}

func checkAttrs(prim *Primitive) error {
	var ok bool
	switch prim.Kind {
	case KindInput:
		_, ok = prim.Attrs.(InputAttrs)
	case KindData:
		var attrs DataAttrs
		attrs, ok = prim.Attrs.(DataAttrs)
		ok = ok && attrs.Buffer != nil
	case KindConvolution:
		_, ok = prim.Attrs.(ConvolutionAttrs)
	case KindFullyConnected:
		_, ok = prim.Attrs.(FullyConnectedAttrs)
	case KindEltwise:
		_, ok = prim.Attrs.(EltwiseAttrs)
	case KindActivation:
		_, ok = prim.Attrs.(ActivationAttrs)
	case KindScale:
		_, ok = prim.Attrs.(ScaleAttrs)
	case KindQuantize:
		_, ok = prim.Attrs.(QuantizeAttrs)
	case KindPooling:
		_, ok = prim.Attrs.(PoolingAttrs)
	case KindSoftmax:
		_, ok = prim.Attrs.(SoftmaxAttrs)
	case KindReorder:
		_, ok = prim.Attrs.(ReorderAttrs)
	case KindReshape:
		_, ok = prim.Attrs.(ReshapeAttrs)
	case KindConcatenation:
		_, ok = prim.Attrs.(ConcatenationAttrs)
	case KindArgMaxMin:
		_, ok = prim.Attrs.(ArgMaxMinAttrs)
	}
	if !ok {
		return errors.Errorf("primitive %q of kind %s has attributes of type %T", prim.ID, prim.Kind, prim.Attrs)
	}
	return nil
}

func (t *Topology) mustAdd(id string, kind Kind, attrs any, inputs ...string) {
	prim := &Primitive{ID: id, Kind: kind, Attrs: attrs}
	for _, input := range inputs {
		prim.Inputs = append(prim.Inputs, In(input))
	}
	if err := t.Add(prim); err != nil {
		panic(err)
	}
}

// MarkOutput declares a network output. If no output is declared, every primitive without
// users is an output.
func (t *Topology) MarkOutput(refs ...InputRef) {
	for _, ref := range refs {
		if _, found := t.byID[ref.ID]; !found {
			exceptions.Panicf("MarkOutput(%s): unknown primitive", ref)
		}
		t.outputs = append(t.outputs, ref)
	}
}

// Primitives returns the primitives in insertion order. The slice must not be modified.
func (t *Topology) Primitives() []*Primitive {
	return t.prims
}

// Lookup returns the primitive with the given id.
func (t *Topology) Lookup(id string) (*Primitive, bool) {
	prim, found := t.byID[id]
	return prim, found
}

// Outputs returns the declared outputs, or the outputs of all primitives without users.
func (t *Topology) Outputs() []InputRef {
	if len(t.outputs) > 0 {
		return slices.Clone(t.outputs)
	}
	used := make(map[InputRef]bool)
	for _, prim := range t.prims {
		for _, input := range prim.Inputs {
			used[input] = true
		}
	}
	var outputs []InputRef
	for _, prim := range t.prims {
		if prim.Kind == KindData {
			continue
		}
		for k := range prim.NumOutputs() {
			ref := InputRef{ID: prim.ID, Output: k}
			if !used[ref] {
				outputs = append(outputs, ref)
			}
		}
	}
	return outputs
}

// Input adds a network input.
func (t *Topology) Input(id string, l layout.Layout) {
	t.mustAdd(id, KindInput, InputAttrs{Layout: l})
}

// Data adds a constant.
func (t *Topology) Data(id string, buffer *ConstBuffer) {
	t.mustAdd(id, KindData, DataAttrs{Buffer: buffer})
}

// Convolution adds a convolution of input with weights and the optional bias ("" for none).
func (t *Topology) Convolution(id, input, weights, bias string, attrs ConvolutionAttrs) {
	inputs := []string{input, weights}
	if bias != "" {
		inputs = append(inputs, bias)
	}
	t.mustAdd(id, KindConvolution, attrs, inputs...)
}

// FullyConnected adds a fully connected layer over input with weights and the optional bias ("" for none).
func (t *Topology) FullyConnected(id, input, weights, bias string, attrs FullyConnectedAttrs) {
	inputs := []string{input, weights}
	if bias != "" {
		inputs = append(inputs, bias)
	}
	t.mustAdd(id, KindFullyConnected, attrs, inputs...)
}

// Eltwise adds a binary elementwise operation over the inputs.
func (t *Topology) Eltwise(id string, mode EltwiseMode, inputs ...string) {
	t.mustAdd(id, KindEltwise, EltwiseAttrs{Mode: mode}, inputs...)
}

// Activation adds an activation function.
func (t *Topology) Activation(id, input string, fn ActivationFunc, alpha, beta float32) {
	t.mustAdd(id, KindActivation, ActivationAttrs{Func: fn, Alpha: alpha, Beta: beta}, input)
}

// Scale adds input*scale+shift, shift is optional ("" for none).
func (t *Topology) Scale(id, input, scale, shift string, attrs ScaleAttrs) {
	inputs := []string{input, scale}
	if shift != "" {
		inputs = append(inputs, shift)
	}
	t.mustAdd(id, KindScale, attrs, inputs...)
}

// Quantize adds a quantization of input, with the given ranges (ids of the inputs holding them).
func (t *Topology) Quantize(id, input, inLow, inHigh, outLow, outHigh string, attrs QuantizeAttrs) {
	t.mustAdd(id, KindQuantize, attrs, input, inLow, inHigh, outLow, outHigh)
}

// Pooling adds a pooling operation.
func (t *Topology) Pooling(id, input string, attrs PoolingAttrs) {
	t.mustAdd(id, KindPooling, attrs, input)
}

// Softmax adds a softmax along axis.
func (t *Topology) Softmax(id, input string, axis int) {
	t.mustAdd(id, KindSoftmax, SoftmaxAttrs{Axis: axis}, input)
}

// Reorder adds a format and/or dtype conversion.
func (t *Topology) Reorder(id, input string, attrs ReorderAttrs) {
	t.mustAdd(id, KindReorder, attrs, input)
}

// Reshape adds a reshape to the given dimensions.
func (t *Topology) Reshape(id, input string, dims ...int) {
	t.mustAdd(id, KindReshape, ReshapeAttrs{Dims: slices.Clone(dims)}, input)
}

// Concatenation adds a concatenation of the inputs along axis.
func (t *Topology) Concatenation(id string, axis int, inputs ...string) {
	t.mustAdd(id, KindConcatenation, ConcatenationAttrs{Axis: axis}, inputs...)
}

// ArgMaxMin adds a top-k selection along an axis.
func (t *Topology) ArgMaxMin(id, input string, attrs ArgMaxMinAttrs) {
	t.mustAdd(id, KindArgMaxMin, attrs, input)
}
