package pipeline

import (
	"context"
	"fmt"
	"iter"
	"path"
	"slices"

	n5 "github.com/TuSKan/n5-gomlx"
	"github.com/TuSKan/n5-gomlx/parallel"
)

// DownsamplingFactorsKey is the attribute holding a level's cumulative
// downsampling factors relative to full resolution.
const DownsamplingFactorsKey = "downsamplingFactors"

// ScaleLevel describes level Scale of a pyramid.
type ScaleLevel struct {
	Scale int
	// Dimensions of the level.
	Dimensions []int64
	// Factors relative to the previous level.
	Factors []int
	// Cumulative factors relative to full resolution.
	Cumulative []int
}

// ScaleLevels yields the levels s1, s2, ... obtained by repeatedly dividing
// dimensions by factors. It stops before the first level with a dimension
// below 1.
func ScaleLevels(dimensions []int64, factors []int) iter.Seq[ScaleLevel] {
	return func(yield func(ScaleLevel) bool) {
		dims := slices.Clone(dimensions)
		cumulative := make([]int, len(factors))
		for d := range cumulative {
			cumulative[d] = 1
		}
		for scale := 1; ; scale++ {
			next, ok := downsampledDimensions(dims, factors)
			if !ok || slices.Equal(next, dims) {
				return
			}
			for d, f := range factors {
				cumulative[d] *= f
			}
			level := ScaleLevel{
				Scale:      scale,
				Dimensions: next,
				Factors:    slices.Clone(factors),
				Cumulative: slices.Clone(cumulative),
			}
			if !yield(level) {
				return
			}
			dims = next
		}
	}
}

func levelPath(group string, scale int) string {
	return path.Join(group, fmt.Sprintf("s%d", scale))
}

// parentGroup returns the group containing datasetPath.
func parentGroup(datasetPath string) string {
	dir := path.Dir(path.Clean("/" + datasetPath))
	if dir == "/" {
		return ""
	}
	return dir[1:]
}

// DownsampleScalePyramid builds the levels s1, s2, ... of datasetPath under
// outputGroupPath, each downsampled from the previous one by factors. Every
// level stores its cumulative factors as DownsamplingFactorsKey. It returns
// the paths of the produced levels.
func DownsampleScalePyramid(ctx context.Context, c *n5.Container, datasetPath, outputGroupPath string, factors []int, opts *Options) ([]string, error) {
	attrs, err := c.DatasetAttributes(ctx, datasetPath)
	if err != nil {
		return nil, err
	}
	if len(factors) != len(attrs.Dimensions) {
		return nil, fmt.Errorf("%w: downsampling factors %v do not match %d dimensions",
			n5.ErrInvalidArguments, factors, len(attrs.Dimensions))
	}
	for d, f := range factors {
		if f < 1 {
			return nil, fmt.Errorf("%w: downsampling factor %d on axis %d", n5.ErrInvalidArguments, f, d)
		}
	}

	log := opts.logger().WithDataset(datasetPath)
	var produced []string
	input := datasetPath
	for level := range ScaleLevels(attrs.Dimensions, factors) {
		output := levelPath(outputGroupPath, level.Scale)
		if _, err := Downsample(ctx, c, input, output, factors, nil, opts); err != nil {
			return produced, fmt.Errorf("scale level %d: %w", level.Scale, err)
		}
		if err := c.SetAttribute(ctx, output, DownsamplingFactorsKey, level.Cumulative); err != nil {
			return produced, err
		}
		log.LogLevel(ctx, output, level.Dimensions, level.Cumulative)
		produced = append(produced, output)
		input = output
	}
	return produced, nil
}

// Remove deletes the group or dataset at groupPath and everything below it.
func Remove(ctx context.Context, c *n5.Container, groupPath string, sched *parallel.Scheduler) error {
	keys, err := c.List(ctx, groupPath)
	if err != nil {
		return err
	}
	return parallel.DispatchItems(ctx, sched, keys, c.Delete)
}
