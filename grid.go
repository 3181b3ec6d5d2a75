package n5

import (
	"fmt"
	"strconv"
	"strings"
)

// GridPosition is the position of a block in the block grid (block units, not voxels).
type GridPosition []int64

// Interval is a closed voxel-space box [Min, Max] per axis.
type Interval struct {
	Min []int64
	Max []int64
}

// Dimensions returns the number of samples covered on each axis.
func (iv Interval) Dimensions() []int {
	dims := make([]int, len(iv.Min))
	for d := range iv.Min {
		dims[d] = int(iv.Max[d] - iv.Min[d] + 1)
	}
	return dims
}

// NumElements returns the number of samples in the interval.
func (iv Interval) NumElements() int {
	n := 1
	for _, d := range iv.Dimensions() {
		n *= d
	}
	return n
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%v, %v]", iv.Min, iv.Max)
}

// Grid maps flat block indices to grid positions and voxel intervals for a
// dataset of the given dimensions and block size.
type Grid struct {
	dimensions []int64
	blockSize  []int
	gridDims   []int64
}

// NewGrid creates the block grid for a dataset.
func NewGrid(dimensions []int64, blockSize []int) *Grid {
	return &Grid{
		dimensions: dimensions,
		blockSize:  blockSize,
		gridDims:   GridShape(dimensions, blockSize),
	}
}

// GridShape calculates the number of blocks in each dimension.
// For each dimension i, the number of blocks is ceil(dimensions[i] / blockSize[i]).
func GridShape(dimensions []int64, blockSize []int) []int64 {
	grid := make([]int64, len(dimensions))
	for i := range dimensions {
		b := int64(blockSize[i])
		grid[i] = (dimensions[i] + b - 1) / b
	}
	return grid
}

// NumDimensions returns the dimensionality of the grid.
func (g *Grid) NumDimensions() int { return len(g.dimensions) }

// GridDimensions returns the number of blocks per axis.
func (g *Grid) GridDimensions() []int64 {
	return append([]int64(nil), g.gridDims...)
}

// NumBlocks returns the total number of blocks in the grid.
func (g *Grid) NumBlocks() int64 {
	if len(g.gridDims) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range g.gridDims {
		n *= d
	}
	return n
}

// Position decodes a flat block index, axis 0 varying fastest.
// It panics if index is outside [0, NumBlocks()).
func (g *Grid) Position(index int64) GridPosition {
	if index < 0 || index >= g.NumBlocks() {
		panic(fmt.Sprintf("n5: block index %d out of range [0, %d)", index, g.NumBlocks()))
	}
	pos := make(GridPosition, len(g.gridDims))
	for d, n := range g.gridDims {
		pos[d] = index % n
		index /= n
	}
	return pos
}

// Index is the inverse of Position.
func (g *Grid) Index(pos GridPosition) int64 {
	index := int64(0)
	for d := len(g.gridDims) - 1; d >= 0; d-- {
		index = index*g.gridDims[d] + pos[d]
	}
	return index
}

// BlockShape returns the shape of the block at pos, truncated at the volume edges.
func (g *Grid) BlockShape(pos GridPosition) []int {
	shape := make([]int, len(pos))
	for d := range pos {
		minD := pos[d] * int64(g.blockSize[d])
		shape[d] = int(min(int64(g.blockSize[d]), g.dimensions[d]-minD))
	}
	return shape
}

// BlockInterval returns the voxel interval covered by the block at pos.
func (g *Grid) BlockInterval(pos GridPosition) Interval {
	shape := g.BlockShape(pos)
	iv := Interval{Min: make([]int64, len(pos)), Max: make([]int64, len(pos))}
	for d := range pos {
		iv.Min[d] = pos[d] * int64(g.blockSize[d])
		iv.Max[d] = iv.Min[d] + int64(shape[d]) - 1
	}
	return iv
}

// BlockKey generates the storage key of a block within a dataset.
// Example: path="data/s0", pos=[1, 4, 0] -> "data/s0/1/4/0"
func BlockKey(datasetPath string, pos GridPosition) string {
	var sb strings.Builder
	sb.WriteString(normalizePath(datasetPath))
	for _, p := range pos {
		if sb.Len() > 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(strconv.FormatInt(p, 10))
	}
	return sb.String()
}
