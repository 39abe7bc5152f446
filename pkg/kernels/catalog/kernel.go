// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"fmt"
	"strings"

	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/kernels"
	"github.com/gomlx/gpuplan/pkg/kernels/jit"
	"github.com/gomlx/gpuplan/pkg/postops"
	"github.com/pkg/errors"
)

// shapes are the values the dispatch geometry of a kernel is computed from: at compile time for
// static parameters, and per call for dynamic ones.
type shapes struct {
	inputs, outputs []layout.Layout
	attrs           any
	caps            *device.Capabilities
}

func (s *shapes) input(idx int) layout.Layout { return s.inputs[idx] }
func (s *shapes) output() layout.Layout      { return s.outputs[0] }

// geometryFn computes the dispatch data. Unsupported shapes are reported with dimError.
type geometryFn func(s *shapes) (kernels.DispatchData, error)

// kernel is the implementation shared by the whole catalog: each entry is configured with its
// own key, validation, priority, geometry and body.
type kernel struct {
	kernels.Base

	// validate checks the parameters beyond the key and the device support of dtypes and formats.
	validate func(p *kernels.Params, caps *device.Capabilities) error

	// priority overrides the fixed priority of the Base, if set.
	priority func(p *kernels.Params, caps *device.Capabilities) kernels.Priority

	geometry geometryFn

	// constants adds the kernel specific JIT constants, if set.
	constants func(c *jit.Constants, p *kernels.Params, caps *device.Capabilities)

	// internalBuffers is the number of scratch buffers the kernel takes.
	internalBuffers int

	body string
}

// Validate implements kernels.Implementation.
func (k *kernel) Validate(p *kernels.Params, caps *device.Capabilities) error {
	for _, l := range allLayouts(p.Inputs, p.Outputs) {
		if !caps.SupportsDType(l.DType) {
			return errors.Errorf("device %s doesn't support dtype %s", caps.Name, l.DType)
		}
		if !caps.SupportsFormat(l.Format) {
			return errors.Errorf("device %s doesn't support format %s", caps.Name, l.Format)
		}
	}
	if k.validate != nil {
		return k.validate(p, caps)
	}
	return nil
}

// Priority implements kernels.Implementation.
func (k *kernel) Priority(p *kernels.Params, caps *device.Capabilities) kernels.Priority {
	if k.priority != nil {
		return k.priority(p, caps)
	}
	return k.Base.Priority(p, caps)
}

// Dispatch implements kernels.Implementation.
func (k *kernel) Dispatch(p *kernels.Params, caps *device.Capabilities) (*kernels.SelectedKernel, error) {
	selected := &kernels.SelectedKernel{EntryPoint: entryPoint(k.Name(), p.NodeID)}
	if p.IsDynamic() {
		selected.Dispatch = kernels.StaticDispatch([3]int{1, 1, 1}, caps)
		selected.UpdateDispatch = k.updateDispatch(p.NodeID, p.Attrs, caps)
	} else {
		dispatch, err := k.geometry(&shapes{inputs: p.Inputs, outputs: p.Outputs, attrs: p.Attrs, caps: caps})
		if err != nil {
			return nil, err
		}
		selected.Dispatch = dispatch
	}

	constants := jit.NewConstants()
	var args []string
	addTensor := func(prefix, name string, role kernels.ArgumentRole, idx int, l layout.Layout, readOnly bool) {
		constants.AddLayout(prefix, l)
		selected.Arguments = append(selected.Arguments, kernels.Argument{Role: role, Index: idx})
		decl := fmt.Sprintf("__global %s_TYPE* %s", prefix, name)
		if readOnly {
			decl = "const " + decl
		}
		args = append(args, decl)
	}
	for ii, l := range p.Inputs {
		addTensor(fmt.Sprintf("INPUT%d", ii), fmt.Sprintf("input%d", ii), kernels.ArgInput, ii, l, true)
	}
	for ii, l := range p.FusedInputs {
		dep := len(p.Inputs) + ii
		name := postops.InputName(dep)
		addTensor(strings.ToUpper(name), name, kernels.ArgFusedInput, dep, l, true)
	}
	for ii, l := range p.Outputs {
		prefix, name := "OUTPUT", "output"
		if ii > 0 {
			prefix, name = fmt.Sprintf("OUTPUT%d", ii), fmt.Sprintf("output%d", ii)
		}
		addTensor(prefix, name, kernels.ArgOutput, ii, l, false)
	}
	for ii := range k.internalBuffers {
		selected.Arguments = append(selected.Arguments, kernels.Argument{Role: kernels.ArgInternalBuffer, Index: ii})
		args = append(args, fmt.Sprintf("__global uchar* internal%d", ii))
	}
	scalar := 0
	for _, l := range allLayouts(p.Inputs, p.Outputs) {
		if l.IsDynamic() {
			selected.Arguments = append(selected.Arguments, kernels.Argument{Role: kernels.ArgScalar, Index: scalar})
			args = append(args, fmt.Sprintf("const __global int* dims%d", scalar))
			scalar++
		}
	}

	// The layouts of the fused inputs were added with the arguments.
	constants.AddFusedOps(p.PostOps, p.PostOpAttrs, len(p.Inputs), nil)
	if p.Kind == graph.KindConvolution || p.Kind == graph.KindFullyConnected {
		constants.AddBool("BIAS_TERM", len(p.Inputs) > 2)
	}
	if k.constants != nil {
		k.constants(constants, p, caps)
	}
	source, err := jit.Render(jit.Source{
		Name:       k.Name(),
		EntryPoint: selected.EntryPoint,
		Constants:  constants,
		Args:       args,
		Body:       k.body,
	})
	if err != nil {
		return nil, err
	}
	selected.Source = source
	selected.Constants = constants
	return selected, nil
}

// updateDispatch returns the closure recomputing the dispatch data of a dynamic node.
func (k *kernel) updateDispatch(nodeID string, attrs any, caps *device.Capabilities) kernels.UpdateDispatchFn {
	name := k.Name()
	return func(inputs, outputs []layout.Layout) (kernels.DispatchData, error) {
		for _, l := range allLayouts(inputs, outputs) {
			if l.IsDynamic() {
				return kernels.DispatchData{}, &kernels.DispatchUpdateError{
					NodeID: nodeID, Kernel: name, Reason: fmt.Sprintf("layout %s not resolved", l)}
			}
		}
		dispatch, err := k.geometry(&shapes{inputs: inputs, outputs: outputs, attrs: attrs, caps: caps})
		if err != nil {
			updateErr := &kernels.DispatchUpdateError{Reason: err.Error()}
			var dimErr *kernels.DispatchUpdateError
			if errors.As(err, &dimErr) {
				*updateErr = *dimErr
			}
			updateErr.NodeID, updateErr.Kernel = nodeID, name
			return kernels.DispatchData{}, updateErr
		}
		return dispatch, nil
	}
}

// dimError reports shapes a kernel can't run.
func dimError(dim int, format string, args ...any) error {
	return &kernels.DispatchUpdateError{Reason: fmt.Sprintf(format, args...), Dim: dim}
}

// dispatch checks the global work size limits and builds the dispatch data.
// If lws is nil, kernels.OptimalLWS is used.
func dispatch(gws [3]int, lws *[3]int, caps *device.Capabilities, internalBuffers ...int64) (kernels.DispatchData, error) {
	for axis, size := range gws {
		if size > kernels.MaxGlobalSize {
			return kernels.DispatchData{}, dimError(size, "global work size of axis %d exceeds %d", axis, kernels.MaxGlobalSize)
		}
	}
	data := kernels.StaticDispatch(gws, caps, internalBuffers...)
	if lws != nil {
		data.LWS = *lws
	}
	return data, nil
}

// elementwiseGeometry dispatches one work item per physical element of the output.
func elementwiseGeometry(s *shapes) (kernels.DispatchData, error) {
	return dispatch([3]int{s.output().PhysicalCount(), 1, 1}, nil, s.caps)
}

// spatialGeometry dispatches one work item per output (x*y*z, feature, batch).
func spatialGeometry(s *shapes) (kernels.DispatchData, error) {
	out := s.output()
	padded := out.PaddedDims()
	spatial := out.SpatialDim(0) * out.SpatialDim(1) * out.SpatialDim(2)
	feature, batch := 1, 1
	if out.Rank() > 1 {
		feature = padded[1]
	}
	if out.Rank() > 0 {
		batch = padded[0]
	}
	return dispatch([3]int{spatial, feature, batch}, nil, s.caps)
}

func entryPoint(kernelName, nodeID string) string {
	var sb strings.Builder
	sb.WriteString(kernelName)
	sb.WriteByte('_')
	for _, r := range nodeID {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// fusableKinds are the kinds of primitives the passes may fuse into a node.
var fusableKinds = []graph.Kind{graph.KindEltwise, graph.KindActivation, graph.KindScale, graph.KindQuantize}

var allFeatures = []kernels.Feature{
	kernels.FeatureDynamic, kernels.FeatureFusedOps, kernels.FeatureBatching, kernels.FeaturePadding,
	kernels.FeatureOutputScale, kernels.FeatureDifferentTypes, kernels.FeatureGroupedConv, kernels.FeatureBias,
}

// fullKey is the key of the reference kernels: they accept every parameter.
func fullKey() kernels.Key {
	return kernels.NewKey().EnableAllDTypes().EnableAllFormats().EnableFeatures(allFeatures...).
		EnableFusedKinds(fusableKinds...)
}

// planarKey accepts the given dtypes in planar format, with fused ops and batching.
func planarKey(list ...dtypes.DType) kernels.Key {
	return kernels.NewKey().EnableDTypes(list...).EnableFormats(layout.FormatBFYX).
		EnableFeatures(kernels.FeatureFusedOps, kernels.FeatureBatching).EnableFusedKinds(fusableKinds...)
}

func allLayouts(inputs, outputs []layout.Layout) []layout.Layout {
	return append(append(make([]layout.Layout, 0, len(inputs)+len(outputs)), inputs...), outputs...)
}
