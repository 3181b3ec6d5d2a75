package pipeline

import (
	"context"
	"fmt"
	"math"
	"path"

	n5 "github.com/TuSKan/n5-gomlx"
)

const (
	resolutionTolerance = 1e-10

	// IntermediateXYGroup holds the XY-only pyramid while the isotropic
	// levels are produced.
	IntermediateXYGroup = "intermediate-downsampling-xy"
)

// PixelResolutionZtoXY returns the ratio of the Z resolution to the XY resolution.
func PixelResolutionZtoXY(pixelResolution [3]float64) float64 {
	return pixelResolution[2] / math.Max(pixelResolution[0], pixelResolution[1])
}

// IsotropicFactors returns the cumulative downsampling factors of scale
// level: 2^scale in X and Y, and the Z factor that keeps the level closest
// to isotropic (at least 1).
func IsotropicFactors(scale int, ratioZtoXY float64) [3]int {
	xy := 1 << scale
	z := max(int(math.Floor(float64(xy)/ratioZtoXY+0.5)), 1)
	return [3]int{xy, xy, z}
}

func approxEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

// DownsampleIsotropic3D builds a power-of-two scale pyramid of a 3D dataset
// whose levels are downsampled by 2 in XY and in Z by whatever factor keeps
// the voxels closest to isotropic. X and Y must have the same resolution.
//
// The XY pyramid is built first under an intermediate group, each of its
// levels is then downsampled in Z only into outputGroupPath, and the
// intermediate group is removed. If the resolution is already isotropic the
// plain pyramid with factors (2, 2, 2) is built instead. An empty
// outputGroupPath defaults to the group containing datasetPath.
//
// It returns the paths of the produced levels, excluding full resolution.
func DownsampleIsotropic3D(ctx context.Context, c *n5.Container, datasetPath, outputGroupPath string, pixelResolution [3]float64, opts *Options) ([]string, error) {
	for d, r := range pixelResolution {
		if !(r > 0) {
			return nil, fmt.Errorf("%w: pixel resolution %v is not positive on axis %d", n5.ErrInvalidArguments, pixelResolution, d)
		}
	}
	if !approxEqual(pixelResolution[0], pixelResolution[1], resolutionTolerance) {
		return nil, fmt.Errorf("%w: %v", ErrAnisotropicXY, pixelResolution)
	}
	if outputGroupPath == "" {
		outputGroupPath = parentGroup(datasetPath)
	}

	attrs, err := c.DatasetAttributes(ctx, datasetPath)
	if err != nil {
		return nil, err
	}
	if len(attrs.Dimensions) != 3 {
		return nil, fmt.Errorf("%w: expected a 3D dataset, got %d dimensions", n5.ErrInvalidArguments, len(attrs.Dimensions))
	}

	ratio := PixelResolutionZtoXY(pixelResolution)
	if approxEqual(ratio, 1, resolutionTolerance) {
		return DownsampleScalePyramid(ctx, c, datasetPath, outputGroupPath, []int{2, 2, 2}, opts)
	}

	xyGroupPath := path.Join(outputGroupPath, IntermediateXYGroup)
	if _, err := DownsampleScalePyramid(ctx, c, datasetPath, xyGroupPath, []int{2, 2, 1}, opts); err != nil {
		return nil, fmt.Errorf("xy pyramid: %w", err)
	}

	log := opts.logger().WithDataset(datasetPath)
	var produced []string
	for scale := 1; ; scale++ {
		factors := IsotropicFactors(scale, ratio)
		dims, ok := downsampledDimensions(attrs.Dimensions, factors[:])
		if !ok {
			break
		}

		input := levelPath(xyGroupPath, scale)
		output := levelPath(outputGroupPath, scale)
		if _, err := Downsample(ctx, c, input, output, []int{1, 1, factors[2]}, nil, opts); err != nil {
			return produced, fmt.Errorf("scale level %d: %w", scale, err)
		}
		if err := c.SetAttribute(ctx, output, DownsamplingFactorsKey, factors); err != nil {
			return produced, err
		}
		log.LogLevel(ctx, output, dims, factors[:])
		produced = append(produced, output)
	}

	if err := Remove(ctx, c, xyGroupPath, opts.scheduler()); err != nil {
		return produced, fmt.Errorf("removing %s: %w", xyGroupPath, err)
	}
	return produced, nil
}
