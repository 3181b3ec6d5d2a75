// Package pipeline implements block-parallel dataset conversion, downsampling
// and scale pyramid generation on top of n5 containers.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	n5 "github.com/TuSKan/n5-gomlx"
)

// Stats summarizes one block-parallel pass.
type Stats struct {
	// Blocks is the number of blocks in the output grid.
	Blocks int64
	// Written is the number of non-empty blocks stored.
	Written int64
	// Bytes is the encoded size of all stored blocks.
	Bytes uint64
}

// Convert copies the dataset inPath of in into a new dataset outPath of out,
// optionally changing block size, compression and element type. The output
// dataset must not exist yet.
func Convert(ctx context.Context, in *n5.Container, inPath string, out *n5.Container, outPath string, convert ConvertOptions, opts *Options) (*Stats, error) {
	inAttrs, err := in.DatasetAttributes(ctx, inPath)
	if err != nil {
		return nil, err
	}
	cfg, err := ResolveConvert(inAttrs, convert)
	if err != nil {
		return nil, err
	}
	return runPass(ctx, "convert", in, inPath, out, outPath, cfg, opts)
}

// Downsample writes a new dataset outPath whose samples average boxes of
// factors[d] input samples per axis. Output dimensions are floor(dim/factor);
// the block size is reused from the input unless blockSize is given.
func Downsample(ctx context.Context, c *n5.Container, inPath, outPath string, factors, blockSize []int, opts *Options) (*Stats, error) {
	inAttrs, err := c.DatasetAttributes(ctx, inPath)
	if err != nil {
		return nil, err
	}
	cfg, err := ResolveDownsample(inAttrs, factors, blockSize)
	if err != nil {
		return nil, err
	}
	return runPass(ctx, "downsample", c, inPath, c, outPath, cfg, opts)
}

// runPass creates the output dataset and dispatches one BlockTask per block.
func runPass(ctx context.Context, op string, in *n5.Container, inPath string, out *n5.Container, outPath string, cfg *ResolvedConfig, opts *Options) (*Stats, error) {
	log := opts.logger().WithDataset(inPath)
	start := time.Now()

	exists, err := out.DatasetExists(ctx, outPath)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("output dataset %q: %w", outPath, n5.ErrDatasetExists)
	}
	if err := out.CreateDataset(ctx, outPath, cfg.Output); err != nil {
		return nil, err
	}

	grid := cfg.Output.Grid()
	stats := &Stats{Blocks: grid.NumBlocks()}
	var written, bytes atomic.Int64

	sched := opts.scheduler()
	log.DebugContext(ctx, op+" started",
		"output", outPath,
		"blocks", stats.Blocks,
		"partitions", sched.Partitions(stats.Blocks),
	)

	err = sched.Dispatch(ctx, stats.Blocks, func(ctx context.Context, i int64) error {
		task := BlockTask{InputPath: inPath, OutputPath: outPath, Position: grid.Position(i)}
		n, err := task.Run(ctx, in, out, cfg)
		if err != nil {
			return err
		}
		if n > 0 {
			written.Add(1)
			bytes.Add(int64(n))
		}
		return nil
	})
	stats.Written = written.Load()
	stats.Bytes = uint64(bytes.Load())
	log.LogPass(ctx, op, outPath, stats, time.Since(start), err)
	return stats, err
}
