// Command n5convert converts an N5 dataset into a new dataset with a
// different block size, compression or element type.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"

	n5 "github.com/TuSKan/n5-gomlx"
	"github.com/TuSKan/n5-gomlx/internal/config"
	"github.com/TuSKan/n5-gomlx/pipeline"
)

type arguments struct {
	inputN5Path       string
	inputDatasetPath  string
	outputN5Path      string
	outputDatasetPath string
	configFile        string
	convert           pipeline.ConvertOptions
}

func parseArguments(args []string) (*arguments, error) {
	fs := flag.NewFlagSet("n5convert", flag.ContinueOnError)
	a := &arguments{}
	var blockSize, compression, dataType string
	fs.StringVar(&a.inputN5Path, "ni", "", "Path to the input N5 container.")
	fs.StringVar(&a.inputDatasetPath, "i", "", "Path to the input dataset within the N5 container (e.g. data/group/s0).")
	fs.StringVar(&a.outputN5Path, "no", "", "Path to the output N5 container (by default the output dataset is stored within the same container as the input dataset).")
	fs.StringVar(&a.outputDatasetPath, "o", "", "Output dataset path.")
	fs.StringVar(&blockSize, "b", "", "Block size for the output dataset (by default the same block size is used as for the input dataset).")
	fs.StringVar(&compression, "c", "", "Compression to be used for the converted dataset: "+strings.Join(n5.CompressionNames(), ", ")+" (by default the same compression is used as for the input dataset).")
	fs.StringVar(&dataType, "t", "", "Type to be used for the converted dataset (by default the same type is used as for the input dataset). "+
		"If a different type is used, the values are mapped to the range of the output type, rounding to the nearest integer value if necessary.")
	fs.StringVar(&a.configFile, "config", "", "Optional TOML run configuration.")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if a.inputN5Path == "" || a.inputDatasetPath == "" || a.outputDatasetPath == "" {
		fs.Usage()
		return nil, fmt.Errorf("%w: -ni, -i and -o are required", n5.ErrInvalidArguments)
	}
	if a.outputN5Path == "" {
		a.outputN5Path = a.inputN5Path
	}
	if blockSize != "" {
		bs, err := n5.ParseIntArray(blockSize)
		if err != nil {
			return nil, err
		}
		a.convert.BlockSize = bs
	}
	if compression != "" {
		c, err := n5.ParseCompression(compression)
		if err != nil {
			return nil, err
		}
		a.convert.Compression = &c
	}
	if dataType != "" {
		t, err := n5.ParseDataType(dataType)
		if err != nil {
			return nil, err
		}
		a.convert.DataType = &t
	}
	return a, nil
}

func run(ctx context.Context, a *arguments) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}

	inURL, err := config.BucketURL(a.inputN5Path, false)
	if err != nil {
		return err
	}
	in, err := n5.Open(ctx, inURL)
	if err != nil {
		return err
	}
	defer in.Close()

	out := in
	if a.outputN5Path != a.inputN5Path {
		outURL, err := config.BucketURL(a.outputN5Path, true)
		if err != nil {
			return err
		}
		if out, err = n5.Open(ctx, outURL); err != nil {
			return err
		}
		defer out.Close()
	}

	_, err = pipeline.Convert(ctx, in, a.inputDatasetPath, out, a.outputDatasetPath, a.convert, cfg.Options(os.Stderr))
	return err
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
	fmt.Println()
	fmt.Println("Done")
}
