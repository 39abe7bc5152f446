// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package topology decodes graph.Topology descriptions from YAML, used by the gpuplan CLI and tests.
//
// A description lists the primitives in order, each one only referencing earlier ones:
//
//	name: conv_block
//	primitives:
//	  - {id: x, kind: input, dtype: float32, dims: [batch, 16, 8, 8]}
//	  - {id: w, kind: data, dtype: float32, dims: [16, 16, 3, 3], fill: {start: -0.25, step: 0.125, mod: 5}}
//	  - id: conv
//	    kind: convolution
//	    inputs: [x, w]
//	    attrs: {pad_lower: [1, 1], pad_upper: [1, 1]}
//	outputs: [conv]
//
// Dimensions are either positive integers, a symbol name (a dynamic dimension bound per request)
// or "?" (an anonymous dynamic dimension). Inputs reference output 0 of a primitive by its id,
// or output k with "id:k".
package topology

import (
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/graph"
	"github.com/gomlx/gpuplan/pkg/support/fsutil"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Description of a topology, as decoded from YAML.
type Description struct {
	Name     string
	Topology *graph.Topology
}

type fileYAML struct {
	Name       string          `yaml:"name"`
	Primitives []primitiveYAML `yaml:"primitives"`
	Outputs    []string        `yaml:"outputs"`
}

type primitiveYAML struct {
	ID     string     `yaml:"id"`
	Kind   graph.Kind `yaml:"kind"`
	Inputs []string   `yaml:"inputs"`
	Attrs  yaml.Node  `yaml:"attrs"`

	// Layout of inputs and constants.
	DType  string `yaml:"dtype"`
	Format string `yaml:"format"`
	Dims   []dim  `yaml:"dims"`

	// Values of constants: either listed or generated.
	Values []float32 `yaml:"values"`
	Fill   *fillYAML `yaml:"fill"`
}

// attrsYAML holds the union of the attributes of all kinds: each kind reads only its own.
type attrsYAML struct {
	Groups      int                   `yaml:"groups"`
	Strides     []int                 `yaml:"strides"`
	Dilations   []int                 `yaml:"dilations"`
	PadLower    []int                 `yaml:"pad_lower"`
	PadUpper    []int                 `yaml:"pad_upper"`
	OutputDType string                `yaml:"output_dtype"`
	Mode        string                `yaml:"mode"`
	Func        *graph.ActivationFunc `yaml:"func"`
	Alpha       float32               `yaml:"alpha"`
	Beta        float32               `yaml:"beta"`
	Levels      int                   `yaml:"levels"`
	Size        []int                 `yaml:"size"`
	Axis        int                   `yaml:"axis"`
	Format      string                `yaml:"format"`
	DType       string                `yaml:"dtype"`
	Dims        []int                 `yaml:"dims"`
	TopK        int                   `yaml:"top_k"`
	WithValues  bool                  `yaml:"with_values"`
}

// fillYAML generates the value start + step * (flat % mod) for each flat index. A mod of 0
// means no modulo.
type fillYAML struct {
	Start float32 `yaml:"start"`
	Step  float32 `yaml:"step"`
	Mod   int     `yaml:"mod"`
}

// dim is one dimension of a layout: a positive value, or layout.Dynamic with an optional symbol.
type dim struct {
	value  int
	symbol string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *dim) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: dimension must be a scalar", node.Line)
	}
	if v, err := strconv.Atoi(node.Value); err == nil {
		if v <= 0 {
			return errors.Errorf("line %d: dimension must be > 0, got %d", node.Line, v)
		}
		d.value = v
		return nil
	}
	d.value = layout.Dynamic
	if node.Value != "?" {
		d.symbol = node.Value
	}
	return nil
}

// Parse decodes a YAML topology description.
func Parse(data []byte) (*Description, error) {
	var file fileYAML
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "failed to parse topology description")
	}
	if len(file.Primitives) == 0 {
		return nil, errors.Errorf("topology %q has no primitives", file.Name)
	}
	topo := graph.NewTopology()
	for ii := range file.Primitives {
		py := &file.Primitives[ii]
		prim, err := py.primitive()
		if err != nil {
			return nil, errors.WithMessagef(err, "topology %q primitive #%d (%q)", file.Name, ii, py.ID)
		}
		if err := topo.Add(prim); err != nil {
			return nil, errors.WithMessagef(err, "topology %q", file.Name)
		}
	}
	for _, output := range file.Outputs {
		ref, err := parseRef(output)
		if err != nil {
			return nil, errors.WithMessagef(err, "topology %q outputs", file.Name)
		}
		if _, found := topo.Lookup(ref.ID); !found {
			return nil, errors.Errorf("topology %q: output %q references unknown primitive", file.Name, output)
		}
		topo.MarkOutput(ref)
	}
	return &Description{Name: file.Name, Topology: topo}, nil
}

// Load reads and parses a YAML topology description from a file.
func Load(path string) (*Description, error) {
	data, err := fsutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read topology from %q", path)
	}
	desc, err := Parse(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "topology %q", path)
	}
	if desc.Name == "" {
		desc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return desc, nil
}

func parseRef(s string) (graph.InputRef, error) {
	id, output, found := strings.Cut(s, ":")
	if !found {
		return graph.In(s), nil
	}
	k, err := strconv.Atoi(output)
	if err != nil || k < 0 {
		return graph.InputRef{}, errors.Errorf("invalid reference %q, expected \"id\" or \"id:output\"", s)
	}
	return graph.InputRef{ID: id, Output: k}, nil
}

func (py *primitiveYAML) primitive() (*graph.Primitive, error) {
	kind := py.Kind
	if kind <= graph.KindInvalid || kind >= graph.KindLast {
		names := graph.KindStrings()
		return nil, errors.Errorf("missing primitive kind, valid kinds are %q", names[1:len(names)-1])
	}
	prim := &graph.Primitive{ID: py.ID, Kind: kind}
	for _, input := range py.Inputs {
		ref, err := parseRef(input)
		if err != nil {
			return nil, err
		}
		prim.Inputs = append(prim.Inputs, ref)
	}
	var a attrsYAML
	if !py.Attrs.IsZero() {
		if err := py.Attrs.Decode(&a); err != nil {
			return nil, errors.Wrap(err, "decoding attrs")
		}
	}
	attrs, err := py.kindAttrs(kind, &a)
	if err != nil {
		return nil, err
	}
	prim.Attrs = attrs
	return prim, nil
}

func (py *primitiveYAML) layout() (layout.Layout, error) {
	dtype, err := dtypes.Parse(py.DType)
	if err != nil {
		return layout.Invalid(), err
	}
	format := layout.FormatBFYX
	if py.Format != "" {
		if format, err = layout.ParseFormat(py.Format); err != nil {
			return layout.Invalid(), err
		}
	}
	if len(py.Dims) == 0 {
		return layout.Invalid(), errors.New("missing dims")
	}
	if !format.SupportsRank(len(py.Dims)) {
		return layout.Invalid(), errors.Errorf("format %s doesn't support rank %d", format, len(py.Dims))
	}
	dims := make([]int, len(py.Dims))
	for ii, d := range py.Dims {
		dims[ii] = d.value
	}
	l := layout.Make(dtype, format, dims...)
	for ii, d := range py.Dims {
		if d.symbol != "" {
			l = l.WithAxisName(ii, d.symbol)
		}
	}
	return l, nil
}

func (py *primitiveYAML) constant() (*graph.ConstBuffer, error) {
	l, err := py.layout()
	if err != nil {
		return nil, err
	}
	if l.IsDynamic() {
		return nil, errors.Errorf("constants can't have dynamic dimensions, got %s", l)
	}
	switch {
	case py.Values != nil && py.Fill != nil:
		return nil, errors.New("only one of values or fill can be given")
	case py.Values != nil:
		if len(py.Values) != l.Count() {
			return nil, errors.Errorf("got %d values for layout %s, wanted %d", len(py.Values), l, l.Count())
		}
		return graph.NewConstBuffer(l, py.Values), nil
	case py.Fill != nil:
		fill := *py.Fill
		return graph.FillConstBuffer(l, func(flat int) float32 {
			if fill.Mod > 0 {
				flat %= fill.Mod
			}
			return fill.Start + fill.Step*float32(flat)
		}), nil
	}
	return nil, errors.New("constant needs values or fill")
}

func parseOptionalDType(name string) (dtypes.DType, error) {
	if name == "" {
		return dtypes.InvalidDType, nil
	}
	return dtypes.Parse(name)
}

func (py *primitiveYAML) kindAttrs(kind graph.Kind, a *attrsYAML) (any, error) {
	outputDType, err := parseOptionalDType(a.OutputDType)
	if err != nil {
		return nil, err
	}
	switch kind {
	case graph.KindInput:
		l, err := py.layout()
		if err != nil {
			return nil, err
		}
		return graph.InputAttrs{Layout: l}, nil

	case graph.KindData:
		buffer, err := py.constant()
		if err != nil {
			return nil, err
		}
		return graph.DataAttrs{Buffer: buffer}, nil

	case graph.KindConvolution:
		return graph.ConvolutionAttrs{
			Groups: a.Groups, Strides: a.Strides, Dilations: a.Dilations,
			PadLower: a.PadLower, PadUpper: a.PadUpper, OutputDType: outputDType}, nil

	case graph.KindFullyConnected:
		return graph.FullyConnectedAttrs{OutputDType: outputDType}, nil

	case graph.KindEltwise:
		mode := graph.EltwiseSum
		if a.Mode != "" {
			if mode, err = graph.EltwiseModeString(a.Mode); err != nil {
				return nil, errors.Wrapf(err, "unknown eltwise mode %q", a.Mode)
			}
		}
		return graph.EltwiseAttrs{Mode: mode}, nil

	case graph.KindActivation:
		if a.Func == nil {
			return nil, errors.New("activation needs func")
		}
		return graph.ActivationAttrs{Func: *a.Func, Alpha: a.Alpha, Beta: a.Beta}, nil

	case graph.KindScale:
		return graph.ScaleAttrs{OutputDType: outputDType}, nil

	case graph.KindQuantize:
		if a.Levels < 2 || a.Levels > math.MaxUint16 {
			return nil, errors.Errorf("quantize levels must be in [2, %d], got %d", math.MaxUint16, a.Levels)
		}
		return graph.QuantizeAttrs{Levels: a.Levels, OutputDType: outputDType}, nil

	case graph.KindPooling:
		mode := graph.PoolingMax
		switch strings.ToLower(a.Mode) {
		case "":
		case "avg":
			mode = graph.PoolingAverage
		default:
			if mode, err = graph.PoolingModeString(a.Mode); err != nil {
				return nil, errors.Wrapf(err, "unknown pooling mode %q", a.Mode)
			}
		}
		return graph.PoolingAttrs{Mode: mode, Size: a.Size, Strides: a.Strides,
			PadLower: a.PadLower, PadUpper: a.PadUpper}, nil

	case graph.KindSoftmax:
		return graph.SoftmaxAttrs{Axis: a.Axis}, nil

	case graph.KindReorder:
		attrs := graph.ReorderAttrs{}
		if a.Format != "" {
			if attrs.Format, err = layout.ParseFormat(a.Format); err != nil {
				return nil, err
			}
		}
		if attrs.DType, err = parseOptionalDType(a.DType); err != nil {
			return nil, err
		}
		return attrs, nil

	case graph.KindReshape:
		if len(a.Dims) == 0 {
			return nil, errors.New("reshape needs dims")
		}
		return graph.ReshapeAttrs{Dims: a.Dims}, nil

	case graph.KindConcatenation:
		return graph.ConcatenationAttrs{Axis: a.Axis}, nil

	case graph.KindArgMaxMin:
		mode := graph.ArgMax
		if a.Mode != "" {
			if mode, err = graph.ArgModeString(a.Mode); err != nil {
				return nil, errors.Wrapf(err, "unknown arg_max_min mode %q", a.Mode)
			}
		}
		return graph.ArgMaxMinAttrs{Mode: mode, Axis: a.Axis, TopK: max(a.TopK, 1), WithValues: a.WithValues}, nil
	}
	return nil, errors.Errorf("unsupported kind %s", kind)
}
