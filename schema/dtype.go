package schema

import (
	"encoding/binary"
	"math"
)

// DType is the tagged set of coordinate/value types the engine supports.
// Dispatch on DType happens once at array open time; internal loops are
// monomorphic per type from there on.
type DType uint8

const (
	Int32 DType = iota
	Int64
	Float32
	Float64
)

func (t DType) String() string {
	switch t {
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// Size returns the on-disk size in bytes of a single value of this type.
func (t DType) Size() int {
	switch t {
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	default:
		return 0
	}
}

// Datum is a single coordinate or attribute value, tagged by DType.
// It stands in for the template specialization the original engine uses;
// callers read the field matching the schema's declared type.
type Datum struct {
	I32 int32
	I64 int64
	F32 float32
	F64 float64
}

func DatumInt32(v int32) Datum    { return Datum{I32: v} }
func DatumInt64(v int64) Datum    { return Datum{I64: v} }
func DatumFloat32(v float32) Datum { return Datum{F32: v} }
func DatumFloat64(v float64) Datum { return Datum{F64: v} }

// AsFloat64 widens any typed datum to float64 for generic comparisons
// (domain bound checks, MBR arithmetic) where exactness across int64's
// full range is not required by the caller.
func (d Datum) AsFloat64(t DType) float64 {
	switch t {
	case Int32:
		return float64(d.I32)
	case Int64:
		return float64(d.I64)
	case Float32:
		return float64(d.F32)
	case Float64:
		return d.F64
	default:
		return 0
	}
}

// Compare returns -1, 0, 1 comparing a and b, both interpreted as DType t.
func Compare(t DType, a, b Datum) int {
	switch t {
	case Int32:
		switch {
		case a.I32 < b.I32:
			return -1
		case a.I32 > b.I32:
			return 1
		default:
			return 0
		}
	case Int64:
		switch {
		case a.I64 < b.I64:
			return -1
		case a.I64 > b.I64:
			return 1
		default:
			return 0
		}
	case Float32:
		switch {
		case a.F32 < b.F32:
			return -1
		case a.F32 > b.F32:
			return 1
		default:
			return 0
		}
	default:
		switch {
		case a.F64 < b.F64:
			return -1
		case a.F64 > b.F64:
			return 1
		default:
			return 0
		}
	}
}

// EmptySentinel is the fixed bit pattern written for cells no fragment
// covers in a dense read.
func EmptySentinel(t DType) Datum {
	switch t {
	case Int32:
		return Datum{I32: math.MinInt32 + 1}
	case Int64:
		return Datum{I64: math.MinInt64 + 1}
	case Float32:
		return Datum{F32: float32(math.NaN())}
	default:
		return Datum{F64: math.NaN()}
	}
}

// Encode appends the little-endian byte representation of d (as DType t)
// to buf, returning the extended slice.
func Encode(t DType, d Datum, buf []byte) []byte {
	switch t {
	case Int32:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(d.I32))
		return append(buf, tmp[:]...)
	case Int64:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(d.I64))
		return append(buf, tmp[:]...)
	case Float32:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(d.F32))
		return append(buf, tmp[:]...)
	default:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(d.F64))
		return append(buf, tmp[:]...)
	}
}

// Decode reads one value of type t from the front of b.
func Decode(t DType, b []byte) Datum {
	switch t {
	case Int32:
		return Datum{I32: int32(binary.LittleEndian.Uint32(b))}
	case Int64:
		return Datum{I64: int64(binary.LittleEndian.Uint64(b))}
	case Float32:
		return Datum{F32: math.Float32frombits(binary.LittleEndian.Uint32(b))}
	default:
		return Datum{F64: math.Float64frombits(binary.LittleEndian.Uint64(b))}
	}
}

// AddInt adds an integer delta to a coordinate datum, used for tile
// geometry arithmetic over integer dimensions.
func AddInt(t DType, d Datum, delta int64) Datum {
	switch t {
	case Int32:
		return Datum{I32: d.I32 + int32(delta)}
	case Int64:
		return Datum{I64: d.I64 + delta}
	default:
		panic("AddInt called on a non-integer DType")
	}
}

// DatumFromInt64 widens an int64 back into a Datum of type t, used to
// reconstruct dimension values from the coordinates pseudo-attribute's
// physical storage, which is always a fixed 8-byte int64 per dimension
// regardless of the dimension's declared type.
func DatumFromInt64(t DType, v int64) Datum {
	switch t {
	case Int32:
		return Datum{I32: int32(v)}
	case Int64:
		return Datum{I64: v}
	case Float32:
		return Datum{F32: float32(v)}
	default:
		return Datum{F64: float64(v)}
	}
}

// ToInt64 narrows an integer-typed datum to int64, used by row/column
// major cell-order arithmetic which is always integer even when the
// domain type is float (cell counts, tile indices).
func ToInt64(t DType, d Datum) int64 {
	switch t {
	case Int32:
		return int64(d.I32)
	case Int64:
		return d.I64
	case Float32:
		return int64(d.F32)
	default:
		return int64(d.F64)
	}
}
