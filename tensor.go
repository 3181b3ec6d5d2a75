package n5

import (
	"context"
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// ReadTensor reads the voxel interval iv of the dataset at p as a tensor.
// Tensors are row-major, so the axes are reversed: a region of N5 shape
// [x, y, z] becomes a tensor of dimensions [z, y, x].
func (c *Container) ReadTensor(ctx context.Context, p string, iv Interval) (*tensors.Tensor, error) {
	attrs, err := c.DatasetAttributes(ctx, p)
	if err != nil {
		return nil, err
	}
	buf, err := c.ReadRegion(ctx, p, attrs, iv)
	if err != nil {
		return nil, err
	}
	return buf.Tensor()
}

// Tensor converts the buffer into a tensor with reversed axes.
func (b *Buffer) Tensor() (*tensors.Tensor, error) {
	dims := slices.Clone(b.Shape)
	slices.Reverse(dims)

	switch b.Type {
	case Uint8:
		return tensors.FromFlatDataAndDimensions(flatten[uint8](b), dims...), nil
	case Int8:
		return tensors.FromFlatDataAndDimensions(flatten[int8](b), dims...), nil
	case Uint16:
		return tensors.FromFlatDataAndDimensions(flatten[uint16](b), dims...), nil
	case Int16:
		return tensors.FromFlatDataAndDimensions(flatten[int16](b), dims...), nil
	case Uint32:
		return tensors.FromFlatDataAndDimensions(flatten[uint32](b), dims...), nil
	case Int32:
		return tensors.FromFlatDataAndDimensions(flatten[int32](b), dims...), nil
	case Uint64:
		return tensors.FromFlatDataAndDimensions(flattenBits[uint64](b), dims...), nil
	case Int64:
		return tensors.FromFlatDataAndDimensions(flattenBits[int64](b), dims...), nil
	case Float32:
		return tensors.FromFlatDataAndDimensions(flatten[float32](b), dims...), nil
	case Float64:
		return tensors.FromFlatDataAndDimensions(flatten[float64](b), dims...), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDataType, b.Type)
	}
}

// flatten decodes samples that survive a round trip through float64.
func flatten[T uint8 | int8 | uint16 | int16 | uint32 | int32 | float32 | float64](b *Buffer) []T {
	out := make([]T, b.Len())
	for i := range out {
		out[i] = T(b.At(i))
	}
	return out
}

// flattenBits decodes 64-bit integers directly from their bytes.
func flattenBits[T uint64 | int64](b *Buffer) []T {
	out := make([]T, b.Len())
	for i := range out {
		out[i] = T(binary.BigEndian.Uint64(b.Data[i*8:]))
	}
	return out
}
