// Command n5pyramid generates a power-of-two scale pyramid of a 3D N5
// dataset, keeping every level as close to isotropic as possible.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"

	n5 "github.com/TuSKan/n5-gomlx"
	"github.com/TuSKan/n5-gomlx/internal/config"
	"github.com/TuSKan/n5-gomlx/pipeline"
)

type arguments struct {
	n5Path           string
	inputDatasetPath string
	outputGroupPath  string
	pixelResolution  [3]float64
	configFile       string
}

func parseArguments(args []string) (*arguments, error) {
	fs := flag.NewFlagSet("n5pyramid", flag.ContinueOnError)
	a := &arguments{}
	var resolution string
	fs.StringVar(&a.n5Path, "n", "", "Path to an N5 container.")
	fs.StringVar(&a.inputDatasetPath, "i", "", "Path to an input dataset within the N5 container (e.g. data/group/s0).")
	fs.StringVar(&a.outputGroupPath, "o", "", "Path to a group within the N5 container to store the output datasets (e.g. data/group/scale-pyramid).")
	fs.StringVar(&resolution, "r", "", "Pixel resolution of the data (e.g. 4,4,40). Used to determine downsampling factors in Z to make the scale levels as close to isotropic as possible.")
	fs.StringVar(&a.configFile, "config", "", "Optional TOML run configuration.")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if a.n5Path == "" || a.inputDatasetPath == "" || resolution == "" {
		fs.Usage()
		return nil, fmt.Errorf("%w: -n, -i and -r are required", n5.ErrInvalidArguments)
	}
	res, err := n5.ParseDoubleArray(resolution)
	if err != nil {
		return nil, err
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("%w: pixel resolution needs 3 values, got %d", n5.ErrInvalidArguments, len(res))
	}
	for d, r := range res {
		if !(r > 0) {
			return nil, fmt.Errorf("%w: pixel resolution must be positive, got %v", n5.ErrInvalidArguments, res)
		}
		a.pixelResolution[d] = r
	}
	return a, nil
}

func run(ctx context.Context, a *arguments) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	url, err := config.BucketURL(a.n5Path, false)
	if err != nil {
		return err
	}
	c, err := n5.Open(ctx, url)
	if err != nil {
		return err
	}
	defer c.Close()

	levels, err := pipeline.DownsampleIsotropic3D(ctx, c, a.inputDatasetPath, a.outputGroupPath, a.pixelResolution, cfg.Options(os.Stderr))
	if err != nil {
		return err
	}
	for _, l := range levels {
		fmt.Println(l)
	}
	return nil
}

func main() {
	a, err := parseArguments(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(context.Background(), a); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}
