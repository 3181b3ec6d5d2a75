package n5_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/memblob"

	n5 "github.com/TuSKan/n5-gomlx"
)

func newMemContainer(t *testing.T) *n5.Container {
	t.Helper()
	c := n5.NewContainer(memblob.OpenBucket(nil))
	t.Cleanup(func() { c.Close() })
	return c
}

func testAttributes(dt n5.DataType, compression string) n5.DatasetAttributes {
	c, _ := n5.ParseCompression(compression)
	return n5.DatasetAttributes{
		Dimensions:  []int64{5, 4},
		BlockSize:   []int{2, 3},
		DataType:    dt,
		Compression: c,
	}
}

func TestContainer_CreateDataset(t *testing.T) {
	ctx := context.Background()
	c := newMemContainer(t)

	exists, err := c.DatasetExists(ctx, "volume/s0")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, c.CreateDataset(ctx, "volume/s0", testAttributes(n5.Uint16, "gzip")))

	exists, err = c.DatasetExists(ctx, "volume/s0")
	require.NoError(t, err)
	require.True(t, exists)

	attrs, err := c.DatasetAttributes(ctx, "volume/s0")
	require.NoError(t, err)
	require.Equal(t, []int64{5, 4}, attrs.Dimensions)
	require.Equal(t, []int{2, 3}, attrs.BlockSize)
	require.Equal(t, n5.Uint16, attrs.DataType)
	require.Equal(t, n5.CompressionGzip, attrs.Compression.Type)

	err = c.CreateDataset(ctx, "volume/s0", testAttributes(n5.Uint8, "raw"))
	require.ErrorIs(t, err, n5.ErrDatasetExists)

	attrs, err = c.DatasetAttributes(ctx, "volume/s0")
	require.NoError(t, err)
	require.Equal(t, n5.Uint16, attrs.DataType)
}

func TestContainer_CreateDatasetValidates(t *testing.T) {
	ctx := context.Background()
	c := newMemContainer(t)

	bad := testAttributes(n5.Uint8, "raw")
	bad.BlockSize = []int{2}
	require.ErrorIs(t, c.CreateDataset(ctx, "a", bad), n5.ErrInvalidArguments)

	bad = testAttributes(n5.Uint8, "raw")
	bad.Compression = n5.Compression{Type: "snappy"}
	require.ErrorIs(t, c.CreateDataset(ctx, "a", bad), n5.ErrInvalidArguments)

	bad = testAttributes(n5.DataType(42), "raw")
	require.ErrorIs(t, c.CreateDataset(ctx, "a", bad), n5.ErrUnsupportedDataType)
}

func TestContainer_Attributes(t *testing.T) {
	ctx := context.Background()
	c := newMemContainer(t)
	require.NoError(t, c.CreateDataset(ctx, "s1", testAttributes(n5.Uint8, "raw")))

	require.NoError(t, c.SetAttribute(ctx, "s1", "downsamplingFactors", []int{2, 2}))
	require.NoError(t, c.SetAttribute(ctx, "s1", "unit", "nm"))

	var factors []int
	ok, err := c.Attribute(ctx, "s1", "downsamplingFactors", &factors)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []int{2, 2}, factors)

	var missing string
	ok, err = c.Attribute(ctx, "s1", "resolution", &missing)
	require.NoError(t, err)
	require.False(t, ok)

	// Setting attributes keeps the dataset intact.
	attrs, err := c.DatasetAttributes(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, []int64{5, 4}, attrs.Dimensions)

	require.ErrorIs(t, c.SetAttribute(ctx, "s1", "dimensions", []int{1, 1}), n5.ErrInvalidArguments)
}

func TestContainer_MissingDataset(t *testing.T) {
	c := newMemContainer(t)
	_, err := c.DatasetAttributes(context.Background(), "nope")
	require.ErrorIs(t, err, n5.ErrNotFound)
}

func TestContainer_BlockRoundTripAllCompressions(t *testing.T) {
	ctx := context.Background()
	names := n5.CompressionNames()
	require.Subset(t, names, []string{"raw", "gzip", "bzip2", "lz4", "xz", "zstd"})
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			c := newMemContainer(t)
			attrs := testAttributes(n5.Int32, name)
			require.NoError(t, c.CreateDataset(ctx, "d", attrs))

			pos := n5.GridPosition{2, 1}
			buf := filledBuffer(n5.Int32, []int{1, 1}, -123456)
			n, err := c.WriteBlock(ctx, "d", &attrs, pos, buf)
			require.NoError(t, err)
			require.Positive(t, n)

			got, err := c.ReadBlock(ctx, "d", &attrs, pos)
			require.NoError(t, err)
			require.Equal(t, []int{1, 1}, got.Shape)
			require.Equal(t, []float64{-123456}, samples(got))

			full := filledBuffer(n5.Int32, []int{2, 3}, 1, -2, 3, 1 << 30, -(1 << 31), 0)
			_, err = c.WriteBlock(ctx, "d", &attrs, n5.GridPosition{0, 0}, full)
			require.NoError(t, err)
			got, err = c.ReadBlock(ctx, "d", &attrs, n5.GridPosition{0, 0})
			require.NoError(t, err)
			require.Equal(t, full.Data, got.Data)
		})
	}
}

func TestContainer_WriteBlockRejectsWrongShape(t *testing.T) {
	ctx := context.Background()
	c := newMemContainer(t)
	attrs := testAttributes(n5.Uint8, "raw")
	require.NoError(t, c.CreateDataset(ctx, "d", attrs))

	_, err := c.WriteBlock(ctx, "d", &attrs, n5.GridPosition{0, 0}, n5.NewBuffer(n5.Uint8, []int{2, 2}))
	require.ErrorIs(t, err, n5.ErrInvalidArguments)
}

func TestContainer_WriteBlockIfNonEmpty(t *testing.T) {
	ctx := context.Background()
	c := newMemContainer(t)
	attrs := testAttributes(n5.Uint8, "raw")
	require.NoError(t, c.CreateDataset(ctx, "d", attrs))

	empty := n5.GridPosition{0, 0}
	n, err := c.WriteBlockIfNonEmpty(ctx, "d", &attrs, empty, n5.NewBuffer(n5.Uint8, []int{2, 3}))
	require.NoError(t, err)
	require.Zero(t, n)
	exists, err := c.BlockExists(ctx, "d", empty)
	require.NoError(t, err)
	require.False(t, exists)

	full := n5.GridPosition{1, 0}
	_, err = c.WriteBlockIfNonEmpty(ctx, "d", &attrs, full, filledBuffer(n5.Uint8, []int{2, 3}, 0, 0, 0, 0, 0, 7))
	require.NoError(t, err)
	exists, err = c.BlockExists(ctx, "d", full)
	require.NoError(t, err)
	require.True(t, exists)

	got, err := c.ReadBlock(ctx, "d", &attrs, full)
	require.NoError(t, err)
	require.Equal(t, []float64{0, 0, 0, 0, 0, 7}, samples(got))
}

func TestContainer_ReadRegion(t *testing.T) {
	ctx := context.Background()
	c := newMemContainer(t)
	attrs := testAttributes(n5.Uint16, "zstd")
	require.NoError(t, c.CreateDataset(ctx, "d", attrs))

	// Fill the 5x4 volume with value x + 10*y, block by block.
	grid := attrs.Grid()
	for i := range grid.NumBlocks() {
		pos := grid.Position(i)
		iv := grid.BlockInterval(pos)
		buf := n5.NewBuffer(n5.Uint16, iv.Dimensions())
		k := 0
		for y := iv.Min[1]; y <= iv.Max[1]; y++ {
			for x := iv.Min[0]; x <= iv.Max[0]; x++ {
				buf.Set(k, float64(x+10*y))
				k++
			}
		}
		_, err := c.WriteBlock(ctx, "d", &attrs, pos, buf)
		require.NoError(t, err)
	}

	region, err := c.ReadRegion(ctx, "d", &attrs, n5.Interval{Min: []int64{1, 1}, Max: []int64{4, 3}})
	require.NoError(t, err)
	require.Equal(t, []int{4, 3}, region.Shape)
	require.Equal(t, []float64{
		11, 12, 13, 14,
		21, 22, 23, 24,
		31, 32, 33, 34,
	}, samples(region))

	_, err = c.ReadRegion(ctx, "d", &attrs, n5.Interval{Min: []int64{0, 0}, Max: []int64{5, 0}})
	require.ErrorIs(t, err, n5.ErrInvalidArguments)
}

func TestContainer_ReadRegionMissingBlocksAreZero(t *testing.T) {
	ctx := context.Background()
	c := newMemContainer(t)
	attrs := testAttributes(n5.Float32, "lz4")
	require.NoError(t, c.CreateDataset(ctx, "d", attrs))

	_, err := c.WriteBlock(ctx, "d", &attrs, n5.GridPosition{0, 0}, filledBuffer(n5.Float32, []int{2, 3}, 0.5, 0.25))
	require.NoError(t, err)

	region, err := c.ReadRegion(ctx, "d", &attrs, n5.Interval{Min: []int64{0, 0}, Max: []int64{3, 0}})
	require.NoError(t, err)
	require.Equal(t, []float64{0.5, 0.25, 0, 0}, samples(region))
}

func TestContainer_ReadTensor(t *testing.T) {
	ctx := context.Background()
	c := newMemContainer(t)
	attrs := testAttributes(n5.Uint8, "raw")
	require.NoError(t, c.CreateDataset(ctx, "d", attrs))
	_, err := c.WriteBlock(ctx, "d", &attrs, n5.GridPosition{0, 0}, filledBuffer(n5.Uint8, []int{2, 3}, 1, 2, 3, 4, 5, 6))
	require.NoError(t, err)

	tensor, err := c.ReadTensor(ctx, "d", n5.Interval{Min: []int64{0, 0}, Max: []int64{1, 2}})
	require.NoError(t, err)
	require.Equal(t, []int{3, 2}, tensor.Shape().Dimensions)
	require.Equal(t, [][]uint8{{1, 2}, {3, 4}, {5, 6}}, tensor.Value().([][]uint8))
}

func TestContainer_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	c := newMemContainer(t)
	attrs := testAttributes(n5.Uint8, "raw")
	require.NoError(t, c.CreateDataset(ctx, "g/a", attrs))
	require.NoError(t, c.CreateDataset(ctx, "g2/a", attrs))
	_, err := c.WriteBlock(ctx, "g/a", &attrs, n5.GridPosition{0, 0}, filledBuffer(n5.Uint8, []int{2, 3}, 1))
	require.NoError(t, err)

	keys, err := c.List(ctx, "g")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"g/a/0/0", "g/a/attributes.json"}, keys)

	for _, k := range keys {
		require.NoError(t, c.Delete(ctx, k))
	}
	exists, err := c.DatasetExists(ctx, "g/a")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, c.Delete(ctx, "g/a/attributes.json"))

	exists, err = c.DatasetExists(ctx, "g2/a")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestOpen_FileBlobLayout(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	c, err := n5.Open(ctx, "file://"+filepath.ToSlash(tmpDir))
	require.NoError(t, err)
	defer c.Close()

	attrs := testAttributes(n5.Uint8, "gzip")
	require.NoError(t, c.CreateDataset(ctx, "vol/s0", attrs))
	_, err = c.WriteBlock(ctx, "vol/s0", &attrs, n5.GridPosition{1, 0}, filledBuffer(n5.Uint8, []int{2, 3}, 9))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(tmpDir, "vol", "s0", "attributes.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(tmpDir, "vol", "s0", "1", "0"))
	require.NoError(t, err)
}
