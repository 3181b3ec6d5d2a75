package n5

import (
	"context"
	"fmt"
)

// ReadRegion reads the voxel interval iv of the dataset at p into a dense
// buffer shaped iv.Dimensions(). Missing blocks read as zeros.
func (c *Container) ReadRegion(ctx context.Context, p string, attrs *DatasetAttributes, iv Interval) (*Buffer, error) {
	n := len(attrs.Dimensions)
	if len(iv.Min) != n || len(iv.Max) != n {
		return nil, &ErrDimensionMismatch{Expected: []int{n}, Actual: []int{len(iv.Min), len(iv.Max)}}
	}
	for d := range n {
		if iv.Min[d] < 0 || iv.Max[d] < iv.Min[d] || iv.Max[d] >= attrs.Dimensions[d] {
			return nil, fmt.Errorf("%w: region %v out of bounds at dimension %d", ErrInvalidArguments, iv, d)
		}
	}

	out := NewBuffer(attrs.DataType, iv.Dimensions())
	itemSize := attrs.DataType.Size()
	dstStrides := strides(out.Shape)

	minBlock := make([]int64, n)
	maxBlock := make([]int64, n)
	for d := range n {
		minBlock[d] = iv.Min[d] / int64(attrs.BlockSize[d])
		maxBlock[d] = iv.Max[d] / int64(attrs.BlockSize[d])
	}

	copyShape := make([]int, n)
	srcOffset := make([]int, n)
	dstOffset := make([]int, n)

	err := iterateSubGrid(minBlock, maxBlock, func(pos GridPosition) error {
		block, err := c.ReadBlock(ctx, p, attrs, pos)
		if err != nil {
			return err
		}
		for d := range n {
			blockStart := pos[d] * int64(attrs.BlockSize[d])
			blockEnd := blockStart + int64(block.Shape[d])

			intersectStart := max(blockStart, iv.Min[d])
			intersectEnd := min(blockEnd, iv.Max[d]+1)
			if intersectStart >= intersectEnd {
				return nil
			}
			copyShape[d] = int(intersectEnd - intersectStart)
			srcOffset[d] = int(intersectStart - blockStart)
			dstOffset[d] = int(intersectStart - iv.Min[d])
		}
		copyND(out.Data, dstStrides, dstOffset, block.Data, strides(block.Shape), srcOffset, copyShape, itemSize)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// iterateSubGrid visits every position in [start, end] (inclusive), axis 0 fastest.
func iterateSubGrid(start, end []int64, fn func(pos GridPosition) error) error {
	pos := make(GridPosition, len(start))
	copy(pos, start)
	for {
		if err := fn(pos); err != nil {
			return err
		}
		d := 0
		for ; d < len(start); d++ {
			pos[d]++
			if pos[d] <= end[d] {
				break
			}
			pos[d] = start[d]
		}
		if d == len(start) {
			return nil
		}
	}
}

// copyND copies an n-dimensional box of samples from src to dst.
func copyND(
	dst []byte, dstStrides, dstOffset []int,
	src []byte, srcStrides, srcOffset []int,
	copyShape []int, itemSize int,
) {
	startSrcIdx := 0
	startDstIdx := 0
	for i := range copyShape {
		startSrcIdx += srcOffset[i] * srcStrides[i]
		startDstIdx += dstOffset[i] * dstStrides[i]
	}

	var iterate func(dim int, currentSrcIdx, currentDstIdx int)
	iterate = func(dim int, currentSrcIdx, currentDstIdx int) {
		// Axis 0 is contiguous in both buffers: copy it in one go.
		if dim == 0 {
			byteLen := copyShape[0] * itemSize
			srcStart := currentSrcIdx * itemSize
			dstStart := currentDstIdx * itemSize
			copy(dst[dstStart:dstStart+byteLen], src[srcStart:srcStart+byteLen])
			return
		}
		for i := 0; i < copyShape[dim]; i++ {
			iterate(dim-1, currentSrcIdx+i*srcStrides[dim], currentDstIdx+i*dstStrides[dim])
		}
	}
	iterate(len(copyShape)-1, startSrcIdx, startDstIdx)
}
