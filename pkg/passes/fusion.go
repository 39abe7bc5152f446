// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package passes

import (
	"github.com/gomlx/gpuplan/internal/metrics"
	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/support/sets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// FusionOptions enables the categories of consumers that can be fused into their producers.
type FusionOptions struct {
	Eltwise, Activation, Scale, Quantize bool

	// GenericFallback allows fusing into producers with blocked formats extra inputs that are
	// neither broadcast per feature nor stored in the producer's format.
	GenericFallback bool
}

// AllFusions enables every fusion category, without the generic fallback.
func AllFusions() FusionOptions {
	return FusionOptions{Eltwise: true, Activation: true, Scale: true, Quantize: true}
}

func (o FusionOptions) enabled(kind graph.Kind) bool {
	switch kind {
	case graph.KindEltwise:
		return o.Eltwise
	case graph.KindActivation:
		return o.Activation
	case graph.KindScale:
		return o.Scale
	case graph.KindQuantize:
		return o.Quantize
	}
	return false
}

// absorbs is the capability table: the consumer kinds each producer kind can absorb.
var absorbs = map[graph.Kind]sets.Set[graph.Kind]{
	graph.KindConvolution:    sets.MakeWith(graph.KindEltwise, graph.KindActivation, graph.KindScale, graph.KindQuantize),
	graph.KindFullyConnected: sets.MakeWith(graph.KindEltwise, graph.KindActivation, graph.KindScale, graph.KindQuantize),
	graph.KindEltwise:        sets.MakeWith(graph.KindEltwise, graph.KindActivation, graph.KindScale, graph.KindQuantize),
	graph.KindPooling:        sets.MakeWith(graph.KindActivation, graph.KindScale, graph.KindQuantize),
	graph.KindActivation:     sets.MakeWith(graph.KindActivation, graph.KindScale, graph.KindQuantize),
	graph.KindScale:          sets.MakeWith(graph.KindActivation, graph.KindScale, graph.KindQuantize),
	graph.KindQuantize:       sets.MakeWith(graph.KindScale),
}

// CanAbsorb returns whether nodes of the producer kind can absorb consumers of the given kind.
func CanAbsorb(producer, consumer graph.Kind) bool {
	kinds, found := absorbs[producer]
	return found && kinds.Has(consumer)
}

// FusePrimitives runs one forward sweep over the current order of the program, fusing each
// eligible consumer into one of its producers. Nodes fused away are skipped when reached.
//
// It returns the number of fusions. Rejections due to cycles are not errors.
func FusePrimitives(p *graph.Program, caps *device.Capabilities, opts FusionOptions) (int, error) {
	fused := 0
	for _, consumer := range p.Order() {
		cn := p.Node(consumer)
		if cn.Removed() || !opts.enabled(cn.Kind()) {
			continue
		}
		visited := sets.Make[graph.NodeHandle]()
		for _, dep := range cn.Dependencies() {
			producer := dep.Node
			if visited.Has(producer) {
				continue
			}
			visited.Insert(producer)
			ok, reason, err := shouldFuse(p, caps, opts, producer, consumer)
			if err != nil {
				return fused, err
			}
			if !ok {
				klog.V(3).Infof("fusion: %s into %s rejected: %s", cn, p.Node(producer), reason)
				continue
			}
			if err := p.CanFuse(producer, consumer); err != nil {
				if errors.Is(err, graph.ErrFusionCycle) {
					klog.V(2).Infof("fusion: %s into %s would create a cycle, skipped", cn, p.Node(producer))
				} else {
					klog.V(3).Infof("fusion: %s into %s rejected: %v", cn, p.Node(producer), err)
				}
				continue
			}
			klog.V(2).Infof("fusion: %s into %s", cn, p.Node(producer))
			if err := p.Fuse(producer, consumer, InitialOpType(cn.Primitive())); err != nil {
				return fused, errors.WithMessagef(err, "fusing %s into %s", cn, p.Node(producer))
			}
			metrics.RecordFusion(cn.Kind().String())
			fused++
			break
		}
	}
	return fused, nil
}

// InitialOpType classifies a fused primitive before the post-op optimizer runs.
func InitialOpType(prim *graph.Primitive) graph.PostOpType {
	switch attrs := prim.Attrs.(type) {
	case graph.ActivationAttrs:
		switch {
		case attrs.Func == graph.ActivationClamp, attrs.Func == graph.ActivationRelu && attrs.Alpha == 0:
			return graph.PostOpClamp
		case attrs.Func == graph.ActivationLinear:
			return graph.PostOpRescale
		}
		return graph.PostOpEltwise
	case graph.ScaleAttrs:
		return graph.PostOpRescale
	case graph.EltwiseAttrs:
		if attrs.Mode == graph.EltwiseSum {
			return graph.PostOpSum
		}
		return graph.PostOpEltwise
	case graph.QuantizeAttrs:
		return graph.PostOpQuantize
	}
	return graph.PostOpUndefined
}

// shouldFuse evaluates the fusion rules for the pair. If not, it returns the reason.
func shouldFuse(p *graph.Program, caps *device.Capabilities, opts FusionOptions,
	producer, consumer graph.NodeHandle) (ok bool, reason string, err error) {
	pn, cn := p.Node(producer), p.Node(consumer)

	// (1) Capabilities.
	if !CanAbsorb(pn.Kind(), cn.Kind()) {
		return false, "producer kind can't absorb consumer kind", nil
	}
	if pn.NumOutputs() != 1 {
		return false, "producer has multiple outputs", nil
	}
	primary := -1
	for ii, dep := range cn.Dependencies()[:cn.NumPrimaryInputs()] {
		if dep.Node == producer {
			primary = ii
			break
		}
	}
	if primary < 0 {
		return false, "producer only feeds fused operations of the consumer", nil
	}
	if primary != 0 && cn.Kind() != graph.KindEltwise {
		return false, "producer doesn't feed the data input of the consumer", nil
	}
	producerLayout, err := p.OutputLayout(producer, 0, true)
	if err != nil {
		return false, "", err
	}
	consumerLayout, err := p.OutputLayout(consumer, 0, true)
	if err != nil {
		return false, "", err
	}
	if !producerLayout.EqualDims(consumerLayout) {
		return false, "consumer output dimensions differ from the producer's", nil
	}

	// (2) Single consumer, possibly through the fusion history.
	if !p.SingleConsumer(producer, consumer) {
		return false, "producer output has other readers", nil
	}

	// (3) Formats and (4) precision of the extra inputs.
	deps := cn.Dependencies()
	for ii, dep := range deps[:cn.NumPrimaryInputs()] {
		if ii == primary {
			continue
		}
		extraLayout, err := p.OutputLayout(dep.Node, dep.Output, true)
		if err != nil {
			return false, "", err
		}
		if producerLayout.Format.IsBlocked() && !opts.GenericFallback && !formatCompatible(producerLayout, extraLayout) {
			return false, "extra input format incompatible with the blocked producer format", nil
		}
	}
	if !precisionCompatible(cn.Kind(), producerLayout.DType, consumerLayout.DType) {
		return false, "precision pairing not supported", nil
	}
	if !caps.SupportsDType(consumerLayout.DType) {
		return false, "consumer output dtype not supported by the device", nil
	}
	return true, "", nil
}

// formatCompatible returns whether an extra input can be read by a kernel writing the blocked
// producer layout: either it is stored the same way, or it's a per-feature or scalar broadcast.
func formatCompatible(producer, extra layout.Layout) bool {
	if extra.Format == producer.Format && extra.EqualDims(producer) {
		return true
	}
	for axis, dim := range extra.Dims {
		if dim == 1 || (axis == 1 && dim == producer.Feature()) {
			continue
		}
		return false
	}
	return true
}

// precisionCompatible is the whitelist of dtype pairings of fused operations.
func precisionCompatible(consumer graph.Kind, producer, output dtypes.DType) bool {
	switch {
	case producer == output:
		return true
	case consumer == graph.KindQuantize && producer.IsFloat() && output.IsQuantized():
		return true
	case consumer == graph.KindScale && (producer.IsQuantized() || producer == dtypes.Int32) && output.IsFloat():
		return true
	}
	return false
}
