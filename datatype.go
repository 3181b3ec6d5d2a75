package n5

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// DataType is the element type of a dataset.
type DataType uint8

const (
	Uint8 DataType = iota + 1
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Uint64
	Int64
	Float32
	Float64
)

type dataTypeInfo struct {
	name     string
	size     int
	minValue float64
	maxValue float64
	float    bool
}

// Floating point types use the normalized range [0, 1].
var dataTypes = map[DataType]dataTypeInfo{
	Uint8:   {"uint8", 1, 0, math.MaxUint8, false},
	Int8:    {"int8", 1, math.MinInt8, math.MaxInt8, false},
	Uint16:  {"uint16", 2, 0, math.MaxUint16, false},
	Int16:   {"int16", 2, math.MinInt16, math.MaxInt16, false},
	Uint32:  {"uint32", 4, 0, math.MaxUint32, false},
	Int32:   {"int32", 4, math.MinInt32, math.MaxInt32, false},
	Uint64:  {"uint64", 8, 0, math.MaxUint64, false},
	Int64:   {"int64", 8, math.MinInt64, math.MaxInt64, false},
	Float32: {"float32", 4, 0, 1, true},
	Float64: {"float64", 8, 0, 1, true},
}

// ParseDataType parses a lower-case type name such as "uint16".
func ParseDataType(s string) (DataType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, info := range dataTypes {
		if info.name == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedDataType, s)
}

// Valid reports whether t is one of the supported element types.
func (t DataType) Valid() bool {
	_, ok := dataTypes[t]
	return ok
}

func (t DataType) String() string {
	if info, ok := dataTypes[t]; ok {
		return info.name
	}
	return fmt.Sprintf("DataType(%d)", uint8(t))
}

// Size returns the size of one sample in bytes.
func (t DataType) Size() int { return dataTypes[t].size }

// MinValue returns the lower bound of the type's value range.
func (t DataType) MinValue() float64 { return dataTypes[t].minValue }

// MaxValue returns the upper bound of the type's value range.
func (t DataType) MaxValue() float64 { return dataTypes[t].maxValue }

// IsFloat reports whether t is a floating point type.
func (t DataType) IsFloat() bool { return dataTypes[t].float }

func (t DataType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDataType, uint8(t))
	}
	return json.Marshal(t.String())
}

func (t *DataType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDataType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Samples are stored big-endian.

func (t DataType) get(b []byte) float64 {
	switch t {
	case Uint8:
		return float64(b[0])
	case Int8:
		return float64(int8(b[0]))
	case Uint16:
		return float64(binary.BigEndian.Uint16(b))
	case Int16:
		return float64(int16(binary.BigEndian.Uint16(b)))
	case Uint32:
		return float64(binary.BigEndian.Uint32(b))
	case Int32:
		return float64(int32(binary.BigEndian.Uint32(b)))
	case Uint64:
		return float64(binary.BigEndian.Uint64(b))
	case Int64:
		return float64(int64(binary.BigEndian.Uint64(b)))
	case Float32:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
	case Float64:
		return math.Float64frombits(binary.BigEndian.Uint64(b))
	}
	panic("n5: unsupported data type " + t.String())
}

// put stores v, rounding half up and clamping for integer types.
func (t DataType) put(b []byte, v float64) {
	if !t.IsFloat() {
		v = clamp(roundHalfUp(v), t.MinValue(), t.MaxValue())
	}
	switch t {
	case Uint8:
		b[0] = uint8(v)
	case Int8:
		b[0] = uint8(int8(v))
	case Uint16:
		binary.BigEndian.PutUint16(b, uint16(v))
	case Int16:
		binary.BigEndian.PutUint16(b, uint16(int16(v)))
	case Uint32:
		binary.BigEndian.PutUint32(b, uint32(v))
	case Int32:
		binary.BigEndian.PutUint32(b, uint32(int32(v)))
	case Uint64:
		// float64(MaxUint64) rounds up to 2^64, which does not fit.
		if v >= math.MaxUint64 {
			binary.BigEndian.PutUint64(b, math.MaxUint64)
			return
		}
		binary.BigEndian.PutUint64(b, uint64(v))
	case Int64:
		if v >= math.MaxInt64 {
			binary.BigEndian.PutUint64(b, uint64(math.MaxInt64))
			return
		}
		binary.BigEndian.PutUint64(b, uint64(int64(v)))
	case Float32:
		binary.BigEndian.PutUint32(b, math.Float32bits(float32(v)))
	case Float64:
		binary.BigEndian.PutUint64(b, math.Float64bits(v))
	default:
		panic("n5: unsupported data type " + t.String())
	}
}

const signBias = 1 << 63

// getBits reads an integer sample as an order-preserving uint64: unsigned
// values as is, signed values shifted by 2^63.
func (t DataType) getBits(b []byte) uint64 {
	s := t.Size()
	var u uint64
	for _, x := range b[:s] {
		u = u<<8 | uint64(x)
	}
	if !t.signed() {
		return u
	}
	shift := 64 - 8*s
	return uint64(int64(u<<shift)>>shift) ^ signBias
}

// putBits is the inverse of getBits.
func (t DataType) putBits(b []byte, u uint64) {
	if t.signed() {
		u ^= signBias
	}
	s := t.Size()
	for i := s - 1; i >= 0; i-- {
		b[i] = byte(u)
		u >>= 8
	}
}

func (t DataType) signed() bool {
	switch t {
	case Int8, Int16, Int32, Int64:
		return true
	}
	return false
}

// ConvertValue maps v from the range of src to the range of dst.
// Integer destinations are rounded to the nearest value and clamped.
func ConvertValue(v float64, src, dst DataType) float64 {
	return Converter(src, dst)(v)
}

// Converter returns the function ConvertValue applies for src and dst.
func Converter(src, dst DataType) func(float64) float64 {
	srcMin, srcRange := src.MinValue(), src.MaxValue()-src.MinValue()
	dstMin, dstMax := dst.MinValue(), dst.MaxValue()
	dstRange := dstMax - dstMin
	if dst.IsFloat() {
		return func(v float64) float64 {
			return (v-srcMin)/srcRange*dstRange + dstMin
		}
	}
	return func(v float64) float64 {
		return clamp(roundHalfUp((v-srcMin)/srcRange*dstRange+dstMin), dstMin, dstMax)
	}
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
