// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dtypes includes the DType enum for the element types the kernel catalog knows about.
//
// The set is intentionally small: it covers what GPU inference kernels take as inputs, weights
// and outputs. It also includes converters between float32 host values and the in-memory
// representation of each dtype, used when constant buffers are rewritten at compile time.
package dtypes

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// DType is an enum that represents the data type of a tensor element.
type DType int32

const (
	// InvalidDType serves as the zero value.
	InvalidDType DType = iota
	Bool
	Int8
	Uint8
	Int32
	Int64
	Float16
	Float32
)

// Aliases.
const (
	F16 = Float16
	F32 = Float32
	I8  = Int8
	U8  = Uint8
	I32 = Int32
	I64 = Int64
)

var dtypeNames = [...]string{
	InvalidDType: "InvalidDType",
	Bool:         "Bool",
	Int8:         "Int8",
	Uint8:        "Uint8",
	Int32:        "Int32",
	Int64:        "Int64",
	Float16:      "Float16",
	Float32:      "Float32",
}

// String implements fmt.Stringer.
func (dtype DType) String() string {
	if dtype < 0 || int(dtype) >= len(dtypeNames) {
		return "DType(" + strconv.Itoa(int(dtype)) + ")"
	}
	return dtypeNames[dtype]
}

// MapOfNames maps the names (and common short aliases, case-insensitive) to the DType.
var MapOfNames = map[string]DType{
	"bool":    Bool,
	"int8":    Int8,
	"i8":      Int8,
	"uint8":   Uint8,
	"u8":      Uint8,
	"int32":   Int32,
	"i32":     Int32,
	"int64":   Int64,
	"i64":     Int64,
	"float16": Float16,
	"f16":     Float16,
	"half":    Float16,
	"float32": Float32,
	"f32":     Float32,
	"float":   Float32,
}

// Parse converts a name (as in MapOfNames) to a DType.
func Parse(name string) (DType, error) {
	dtype, found := MapOfNames[strings.ToLower(name)]
	if !found {
		return InvalidDType, errors.Errorf("unknown dtype %q", name)
	}
	return dtype, nil
}

// All lists the valid dtypes, in enum order.
func All() []DType {
	return []DType{Bool, Int8, Uint8, Int32, Int64, Float16, Float32}
}

// Size returns the number of bytes for the given DType.
func (dtype DType) Size() int {
	switch dtype {
	case Bool, Int8, Uint8:
		return 1
	case Float16:
		return 2
	case Int32, Float32:
		return 4
	case Int64:
		return 8
	default:
		return 0
	}
}

// SizeForDimensions returns the size in bytes used for the given dimensions.
// It works also for scalars, where the list of dimensions is empty.
func (dtype DType) SizeForDimensions(dimensions ...int) int {
	size := dtype.Size()
	for _, dim := range dimensions {
		size *= dim
	}
	return size
}

// IsFloat returns whether dtype is a float.
func (dtype DType) IsFloat() bool {
	return dtype == Float16 || dtype == Float32
}

// IsInt returns whether dtype is an integer (signed or unsigned).
func (dtype DType) IsInt() bool {
	switch dtype {
	case Int8, Uint8, Int32, Int64:
		return true
	default:
		return false
	}
}

// IsQuantized returns whether dtype is one of the 8-bit types used by quantized kernels.
func (dtype DType) IsQuantized() bool {
	return dtype == Int8 || dtype == Uint8
}

// IsSigned returns whether the dtype holds negative values.
func (dtype DType) IsSigned() bool {
	return dtype != Uint8 && dtype != Bool && dtype != InvalidDType
}

// Bit returns a bitmask with one bit set for the dtype. Used in kernel capability keys.
func (dtype DType) Bit() uint32 {
	return 1 << uint32(dtype)
}

// Encode writes the float32 values converted to dtype into a new little-endian byte slice.
// Integer values are rounded and saturated to the dtype range.
func Encode(dtype DType, values []float32) ([]byte, error) {
	size := dtype.Size()
	if size == 0 {
		return nil, errors.Errorf("cannot encode values into dtype %s", dtype)
	}
	buf := make([]byte, size*len(values))
	for ii, v := range values {
		pos := buf[ii*size:]
		switch dtype {
		case Float32:
			binary.LittleEndian.PutUint32(pos, math.Float32bits(v))
		case Float16:
			binary.LittleEndian.PutUint16(pos, float16.Fromfloat32(v).Bits())
		case Int8:
			pos[0] = byte(int8(saturate(v, math.MinInt8, math.MaxInt8)))
		case Uint8, Bool:
			pos[0] = byte(saturate(v, 0, math.MaxUint8))
		case Int32:
			binary.LittleEndian.PutUint32(pos, uint32(int32(saturate(v, math.MinInt32, math.MaxInt32))))
		case Int64:
			binary.LittleEndian.PutUint64(pos, uint64(int64(math.Round(float64(v)))))
		}
	}
	return buf, nil
}

// Decode reads values of the given dtype from buf and converts them to float32.
func Decode(dtype DType, buf []byte) ([]float32, error) {
	size := dtype.Size()
	if size == 0 {
		return nil, errors.Errorf("cannot decode values from dtype %s", dtype)
	}
	if len(buf)%size != 0 {
		return nil, errors.Errorf("buffer of %d bytes is not a multiple of %s size (%d)", len(buf), dtype, size)
	}
	values := make([]float32, len(buf)/size)
	for ii := range values {
		pos := buf[ii*size:]
		switch dtype {
		case Float32:
			values[ii] = math.Float32frombits(binary.LittleEndian.Uint32(pos))
		case Float16:
			values[ii] = float16.Frombits(binary.LittleEndian.Uint16(pos)).Float32()
		case Int8:
			values[ii] = float32(int8(pos[0]))
		case Uint8, Bool:
			values[ii] = float32(pos[0])
		case Int32:
			values[ii] = float32(int32(binary.LittleEndian.Uint32(pos)))
		case Int64:
			values[ii] = float32(int64(binary.LittleEndian.Uint64(pos)))
		}
	}
	return values, nil
}

// RoundTrip converts v to dtype and back, returning the value as it would be stored.
func RoundTrip(dtype DType, v float32) float32 {
	switch dtype {
	case Float16:
		return float16.Fromfloat32(v).Float32()
	case Int8:
		return float32(int8(saturate(v, math.MinInt8, math.MaxInt8)))
	case Uint8, Bool:
		return float32(uint8(saturate(v, 0, math.MaxUint8)))
	case Int32:
		return float32(int32(saturate(v, math.MinInt32, math.MaxInt32)))
	case Int64:
		return float32(math.Round(float64(v)))
	default:
		return v
	}
}

// Epsilon returns the relative tolerance used when comparing results computed at dtype precision.
func (dtype DType) Epsilon() float64 {
	switch dtype {
	case Float16:
		return 1e-2
	case Float32:
		return 1e-5
	default:
		return 1
	}
}

func saturate(v float32, lo, hi float64) float64 {
	r := math.Round(float64(v))
	if r < lo {
		return lo
	}
	if r > hi {
		return hi
	}
	return r
}
