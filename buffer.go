package n5

import (
	"fmt"
	"math/bits"
	"slices"
)

// Buffer is a dense N-dimensional sample buffer. Axis 0 varies fastest and
// samples are stored big-endian, matching the block payload layout.
type Buffer struct {
	Type  DataType
	Shape []int
	Data  []byte
}

// NewBuffer allocates a zero-filled buffer.
func NewBuffer(t DataType, shape []int) *Buffer {
	return &Buffer{
		Type:  t,
		Shape: append([]int(nil), shape...),
		Data:  make([]byte, numElements(shape)*t.Size()),
	}
}

func numElements(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// Len returns the number of samples.
func (b *Buffer) Len() int { return numElements(b.Shape) }

// At returns sample i as a float64.
func (b *Buffer) At(i int) float64 {
	s := b.Type.Size()
	return b.Type.get(b.Data[i*s : (i+1)*s])
}

// Set stores v at sample i, rounding and clamping for integer types.
func (b *Buffer) Set(i int, v float64) {
	s := b.Type.Size()
	b.Type.put(b.Data[i*s:(i+1)*s], v)
}

// IsEmpty reports whether every sample equals the background value zero.
func (b *Buffer) IsEmpty() bool {
	if b.Type.IsFloat() {
		for i := range b.Len() {
			if b.At(i) != 0 {
				return false
			}
		}
		return true
	}
	for _, v := range b.Data {
		if v != 0 {
			return false
		}
	}
	return true
}

// ConvertTo returns the buffer rescaled into the range of t.
// Converting to the buffer's own type returns b unchanged.
func (b *Buffer) ConvertTo(t DataType) *Buffer {
	if t == b.Type {
		return b
	}
	out := NewBuffer(t, b.Shape)
	convert := Converter(b.Type, t)
	for i := range b.Len() {
		out.Set(i, convert(b.At(i)))
	}
	return out
}

// Downsample averages non-overlapping boxes of factors[d] samples per axis.
// The output shape is floor(shape[d] / factors[d]). Integer samples are
// averaged exactly and rounded half up.
func (b *Buffer) Downsample(factors []int) (*Buffer, error) {
	if len(factors) != len(b.Shape) {
		return nil, &ErrDimensionMismatch{Expected: []int{len(b.Shape)}, Actual: []int{len(factors)}}
	}
	outShape := make([]int, len(b.Shape))
	boxSize := 1
	for d, f := range factors {
		if f < 1 {
			return nil, fmt.Errorf("%w: downsampling factor %d on axis %d", ErrInvalidArguments, f, d)
		}
		outShape[d] = b.Shape[d] / f
		boxSize *= f
	}
	if boxSize == 1 {
		return &Buffer{Type: b.Type, Shape: outShape, Data: slices.Clone(b.Data)}, nil
	}
	out := NewBuffer(b.Type, outShape)
	if out.Len() == 0 {
		return out, nil
	}
	srcStrides := strides(b.Shape)
	outStrides := strides(outShape)
	boxStrides := strides(factors)
	size := b.Type.Size()

	box := make([]int, boxSize)
	for o := range out.Len() {
		base := 0
		for d := range outShape {
			base += (o / outStrides[d] % outShape[d]) * factors[d] * srcStrides[d]
		}
		for k := range box {
			off := base
			for d := range factors {
				off += (k / boxStrides[d] % factors[d]) * srcStrides[d]
			}
			box[k] = off
		}

		if b.Type.IsFloat() {
			sum := 0.0
			for _, off := range box {
				sum += b.At(off)
			}
			out.Set(o, sum/float64(boxSize))
			continue
		}
		// 128-bit sum; the quotient fits since every term is below 2^64.
		var hi, lo uint64
		for _, off := range box {
			var carry uint64
			lo, carry = bits.Add64(lo, b.Type.getBits(b.Data[off*size:]), 0)
			hi += carry
		}
		q, r := bits.Div64(hi, lo, uint64(boxSize))
		if 2*r >= uint64(boxSize) {
			q++
		}
		b.Type.putBits(out.Data[o*size:], q)
	}
	return out, nil
}

// strides computes the strides for a shape with axis 0 varying fastest.
func strides(shape []int) []int {
	s := make([]int, len(shape))
	stride := 1
	for i := range shape {
		s[i] = stride
		stride *= shape[i]
	}
	return s
}
