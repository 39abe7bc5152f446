// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package postops

import (
	"fmt"
	"math"
	"strings"

	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/graph"
)

// Apply evaluates the chain for one element: x is the result of the primitive itself, and
// fetch returns the value, broadcast to the position of the element, of the node dependency
// with the given index.
//
// Pending buffer rewrites (see Optimize) are taken into account, so a chain can be evaluated
// before or after Commit.
func (c Chain) Apply(x float32, attrs Attrs, fetch func(dep int) float32) float32 {
	if attrs.HasOutputScale {
		x *= attrs.OutputScale
	}
	for ii := range c {
		op := &c[ii]
		if op.OptimizedOut {
			continue
		}
		x = op.apply(x, fetch)
		if op.DType != dtypes.InvalidDType {
			x = dtypes.RoundTrip(op.DType, x)
		}
	}
	return x
}

// inputs returns the values of the inputs of the op, with x at its position.
func (op *Op) inputs(x float32, fetch func(dep int) float32) []float32 {
	values := make([]float32, len(op.Inputs))
	for ii, dep := range op.Inputs {
		if dep < 0 {
			values[ii] = x
		} else {
			values[ii] = fetch(dep)
		}
	}
	return values
}

func (op *Op) apply(x float32, fetch func(dep int) float32) float32 {
	switch op.Kind {
	case OpLinear:
		return op.Alpha*x + op.Beta
	case OpClamp:
		return min(max(op.InScale*x, op.Alpha), op.Beta)
	case OpActivation:
		return graph.ActivationAttrs{Func: op.Func, Alpha: op.Alpha, Beta: op.Beta}.Apply(x)
	case OpSum:
		other := op.deps()[0]
		return op.Alpha*x + op.Beta*fetch(other) + op.Shift
	case OpBinary:
		values := op.inputs(x, fetch)
		result := values[0]
		for _, v := range values[1:] {
			result = op.Mode.Apply(result, v)
		}
		return result
	case OpScaleBuffer:
		p, q, r, s := op.factors()
		scale := fetch(op.Inputs[1])
		var shift float32
		if op.ShiftBuffer != nil {
			shift = fetch(op.Inputs[2])
		}
		return x*(p*scale) + q*shift + r*scale + s
	case OpScaleTensor:
		values := op.inputs(x, fetch)
		result := values[0] * values[1]
		if len(values) > 2 {
			result += values[2]
		}
		return result
	case OpQuantize:
		values := op.inputs(x, fetch)
		return graph.QuantizeAttrs{Levels: op.Levels}.Apply(values[0], values[1], values[2], values[3], values[4])
	}
	return x
}

// literal formats a float constant for kernel sources.
func literal(v float32) string {
	switch {
	case math.IsInf(float64(v), 1):
		return "INFINITY"
	case math.IsInf(float64(v), -1):
		return "(-INFINITY)"
	}
	s := fmt.Sprintf("%g", v)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s + "f"
}

// InputName is the name of the fused input variable for the node dependency dep in kernel sources.
func InputName(dep int) string {
	return fmt.Sprintf("fused_input%d", dep)
}

var binaryOperators = map[graph.EltwiseMode]string{
	graph.EltwiseSum:  "+",
	graph.EltwiseSub:  "-",
	graph.EltwiseProd: "*",
	graph.EltwiseDiv:  "/",
}

// Expression returns the kernel source expression of the op applied to the expression in.
func (op *Op) Expression(in string) string {
	switch op.Kind {
	case OpLinear:
		return fmt.Sprintf("(%s*%s + %s)", literal(op.Alpha), in, literal(op.Beta))
	case OpClamp:
		return fmt.Sprintf("clamp(%s*%s, %s, %s)", literal(op.InScale), in, literal(op.Alpha), literal(op.Beta))
	case OpActivation:
		return fmt.Sprintf("activation_%s(%s, %s, %s)", op.Func, in, literal(op.Alpha), literal(op.Beta))
	case OpSum:
		return fmt.Sprintf("(%s*%s + %s*%s + %s)", literal(op.Alpha), in, literal(op.Beta),
			InputName(op.deps()[0]), literal(op.Shift))
	case OpBinary:
		result := ""
		for ii, dep := range op.Inputs {
			value := in
			if dep >= 0 {
				value = InputName(dep)
			}
			switch {
			case ii == 0:
				result = value
			case binaryOperators[op.Mode] != "":
				result = fmt.Sprintf("(%s %s %s)", result, binaryOperators[op.Mode], value)
			default:
				result = fmt.Sprintf("%s(%s, %s)", op.Mode, result, value)
			}
		}
		return result
	case OpScaleBuffer, OpScaleTensor:
		values := make([]string, len(op.Inputs))
		for ii, dep := range op.Inputs {
			values[ii] = in
			if dep >= 0 {
				values[ii] = InputName(dep)
			}
		}
		if len(values) > 2 {
			return fmt.Sprintf("(%s*%s + %s)", values[0], values[1], values[2])
		}
		return fmt.Sprintf("(%s*%s)", values[0], values[1])
	case OpQuantize:
		args := []string{in}
		for _, dep := range op.deps() {
			args = append(args, InputName(dep))
		}
		return fmt.Sprintf("quantize%d(%s)", op.Levels, strings.Join(args, ", "))
	}
	return in
}

// Expression returns the kernel source expression of the whole chain applied to in.
func (c Chain) Expression(in string, attrs Attrs) string {
	if attrs.HasOutputScale {
		in = fmt.Sprintf("(%s*%s)", literal(attrs.OutputScale), in)
	}
	for ii := range c {
		if !c[ii].OptimizedOut {
			in = c[ii].Expression(in)
		}
	}
	return in
}
