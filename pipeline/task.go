package pipeline

import (
	"context"

	n5 "github.com/TuSKan/n5-gomlx"
)

// BlockTask produces one block of an output dataset. It carries no state
// besides what it names, so it can be built and run by any scheduler.
type BlockTask struct {
	InputPath  string
	OutputPath string
	Position   n5.GridPosition
}

// Run reads the input region backing the output block, converts and reduces
// it as configured, and writes the block unless it is empty. It returns the
// number of bytes written.
func (t BlockTask) Run(ctx context.Context, in, out *n5.Container, cfg *ResolvedConfig) (int, error) {
	n, err := t.run(ctx, in, out, cfg)
	if err != nil {
		return 0, &BlockTaskError{Path: t.OutputPath, Position: t.Position, Err: err}
	}
	return n, nil
}

func (t BlockTask) run(ctx context.Context, in, out *n5.Container, cfg *ResolvedConfig) (int, error) {
	outInterval := cfg.Output.Grid().BlockInterval(t.Position)
	inInterval := inputInterval(outInterval, cfg.Factors)

	buf, err := in.ReadRegion(ctx, t.InputPath, &cfg.Input, inInterval)
	if err != nil {
		return 0, err
	}
	if cfg.Factors != nil {
		if buf, err = buf.Downsample(cfg.Factors); err != nil {
			return 0, err
		}
	}
	buf = buf.ConvertTo(cfg.Output.DataType)
	return out.WriteBlockIfNonEmpty(ctx, t.OutputPath, &cfg.Output, t.Position, buf)
}

// inputInterval scales an output interval up by the downsampling factors.
// Without factors the output interval is valid in input coordinates.
func inputInterval(iv n5.Interval, factors []int) n5.Interval {
	if factors == nil {
		return iv
	}
	in := n5.Interval{Min: make([]int64, len(iv.Min)), Max: make([]int64, len(iv.Max))}
	for d, f := range factors {
		in.Min[d] = iv.Min[d] * int64(f)
		in.Max[d] = (iv.Max[d]+1)*int64(f) - 1
	}
	return in
}
