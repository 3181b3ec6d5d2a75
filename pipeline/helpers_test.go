package pipeline_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"

	n5 "github.com/TuSKan/n5-gomlx"
	"github.com/TuSKan/n5-gomlx/parallel"
	"github.com/TuSKan/n5-gomlx/pipeline"
)

func newMemContainer(t *testing.T) *n5.Container {
	t.Helper()
	c := n5.NewContainer(memblob.OpenBucket(nil))
	t.Cleanup(func() { c.Close() })
	return c
}

// testOptions runs passes on a small scheduler and captures logs in logs.
func testOptions(logs *bytes.Buffer) *pipeline.Options {
	return &pipeline.Options{
		Scheduler: &parallel.Scheduler{Workers: 4, MaxPartitions: 3},
		Logger:    pipeline.NewJSONLogger(logs, -4),
	}
}

// writeDataset creates p and fills it with fn evaluated at every sample.
func writeDataset(t *testing.T, c *n5.Container, p string, attrs n5.DatasetAttributes, fn func(pos []int64) float64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.CreateDataset(ctx, p, attrs))

	grid := attrs.Grid()
	for i := range grid.NumBlocks() {
		pos := grid.Position(i)
		iv := grid.BlockInterval(pos)
		dims := iv.Dimensions()
		buf := n5.NewBuffer(attrs.DataType, dims)
		coord := make([]int64, len(dims))
		for k := range buf.Len() {
			rem := k
			for d := range dims {
				coord[d] = iv.Min[d] + int64(rem%dims[d])
				rem /= dims[d]
			}
			buf.Set(k, fn(coord))
		}
		_, err := c.WriteBlockIfNonEmpty(ctx, p, &attrs, pos, buf)
		require.NoError(t, err)
	}
}

// readDataset returns the attributes and every sample of p, axis 0 fastest.
func readDataset(t *testing.T, c *n5.Container, p string) (*n5.DatasetAttributes, []float64) {
	t.Helper()
	ctx := context.Background()
	attrs, err := c.DatasetAttributes(ctx, p)
	require.NoError(t, err)

	iv := n5.Interval{Min: make([]int64, len(attrs.Dimensions)), Max: make([]int64, len(attrs.Dimensions))}
	for d, dim := range attrs.Dimensions {
		iv.Max[d] = dim - 1
	}
	buf, err := c.ReadRegion(ctx, p, attrs, iv)
	require.NoError(t, err)

	out := make([]float64, buf.Len())
	for i := range out {
		out[i] = buf.At(i)
	}
	return attrs, out
}

func datasetAttributes(dt n5.DataType, compression string, dims []int64, blockSize []int) n5.DatasetAttributes {
	c, _ := n5.ParseCompression(compression)
	return n5.DatasetAttributes{
		Dimensions:  dims,
		BlockSize:   blockSize,
		DataType:    dt,
		Compression: c,
	}
}
