package pipeline

import (
	"fmt"
	"slices"

	n5 "github.com/TuSKan/n5-gomlx"
	"github.com/TuSKan/n5-gomlx/parallel"
)

// Options configure how passes are executed.
type Options struct {
	// Scheduler distributes block tasks. Nil uses a default Scheduler.
	Scheduler *parallel.Scheduler

	// Logger receives progress logs. Nil disables logging.
	Logger *Logger
}

func (o *Options) scheduler() *parallel.Scheduler {
	if o == nil || o.Scheduler == nil {
		return &parallel.Scheduler{}
	}
	return o.Scheduler
}

func (o *Options) logger() *Logger {
	if o == nil || o.Logger == nil {
		return NoopLogger()
	}
	return o.Logger
}

// ConvertOptions are optional overrides for the output dataset of Convert.
// Unset fields default to the input dataset's values.
type ConvertOptions struct {
	BlockSize   []int
	Compression *n5.Compression
	DataType    *n5.DataType
}

// ResolvedConfig is the fully resolved configuration of one pass. It is
// computed before any store mutation and shared read-only by all block tasks.
type ResolvedConfig struct {
	Input  n5.DatasetAttributes
	Output n5.DatasetAttributes

	// Factors are the per-axis downsampling factors; nil for a plain conversion.
	Factors []int
}

// ResolveConvert merges the overrides in opts with the input attributes.
func ResolveConvert(input *n5.DatasetAttributes, opts ConvertOptions) (*ResolvedConfig, error) {
	out := n5.DatasetAttributes{
		Dimensions:  slices.Clone(input.Dimensions),
		BlockSize:   slices.Clone(input.BlockSize),
		DataType:    input.DataType,
		Compression: input.Compression,
	}
	if opts.BlockSize != nil {
		if len(opts.BlockSize) != len(input.Dimensions) {
			return nil, fmt.Errorf("%w: block size %v does not match %d dimensions",
				n5.ErrInvalidArguments, opts.BlockSize, len(input.Dimensions))
		}
		out.BlockSize = slices.Clone(opts.BlockSize)
	}
	if opts.Compression != nil {
		out.Compression = *opts.Compression
	}
	if opts.DataType != nil {
		out.DataType = *opts.DataType
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &ResolvedConfig{Input: *input, Output: out}, nil
}

// ResolveDownsample computes the output attributes of downsampling input by
// factors. The output reuses the input block size, type and compression
// unless blockSize is given.
func ResolveDownsample(input *n5.DatasetAttributes, factors, blockSize []int) (*ResolvedConfig, error) {
	if len(factors) != len(input.Dimensions) {
		return nil, fmt.Errorf("%w: downsampling factors %v do not match %d dimensions",
			n5.ErrInvalidArguments, factors, len(input.Dimensions))
	}
	for d, f := range factors {
		if f < 1 {
			return nil, fmt.Errorf("%w: downsampling factor %d on axis %d", n5.ErrInvalidArguments, f, d)
		}
	}
	dims, ok := downsampledDimensions(input.Dimensions, factors)
	if !ok {
		return nil, fmt.Errorf("%w: downsampling %v by %v leaves an empty dimension",
			n5.ErrInvalidArguments, input.Dimensions, factors)
	}
	cfg, err := ResolveConvert(input, ConvertOptions{BlockSize: blockSize})
	if err != nil {
		return nil, err
	}
	cfg.Output.Dimensions = dims
	cfg.Factors = slices.Clone(factors)
	return cfg, nil
}

// downsampledDimensions divides dims by factors. ok is false once any
// resulting dimension is below 1, or a factor is not positive.
func downsampledDimensions(dims []int64, factors []int) (out []int64, ok bool) {
	out = make([]int64, len(dims))
	for d := range dims {
		if factors[d] < 1 {
			return nil, false
		}
		out[d] = dims[d] / int64(factors[d])
		if out[d] < 1 {
			return nil, false
		}
	}
	return out, true
}
