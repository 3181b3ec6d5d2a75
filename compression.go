package n5

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Supported block compressions.
const (
	CompressionRaw   = "raw"
	CompressionGzip  = "gzip"
	CompressionBzip2 = "bzip2"
	CompressionLZ4   = "lz4"
	CompressionXz    = "xz"
	CompressionZstd  = "zstd"
)

var compressions = map[string]Compression{
	CompressionRaw:   {Type: CompressionRaw},
	CompressionGzip:  {Type: CompressionGzip, Level: gzip.DefaultCompression},
	CompressionBzip2: {Type: CompressionBzip2, BlockSize: 9},
	CompressionLZ4:   {Type: CompressionLZ4, BlockSize: 1 << 16},
	CompressionXz:    {Type: CompressionXz, Preset: 6},
	CompressionZstd:  {Type: CompressionZstd, Level: 3},
}

// Compression is the block codec of a dataset. Level applies to gzip and
// zstd, BlockSize to bzip2 (in 100k units) and lz4 (in bytes), Preset to xz.
type Compression struct {
	Type      string `json:"type"`
	Level     int    `json:"level,omitempty"`
	BlockSize int    `json:"blockSize,omitempty"`
	Preset    int    `json:"preset,omitempty"`
}

// ParseCompression returns the default configuration of a named compression.
func ParseCompression(name string) (Compression, error) {
	c, ok := compressions[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Compression{}, fmt.Errorf("%w: unsupported compression %q, supported compressions are %v",
			ErrInvalidArguments, name, CompressionNames())
	}
	return c, nil
}

// CompressionNames lists the supported compression names.
func CompressionNames() []string {
	names := make([]string, 0, len(compressions))
	for name := range compressions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate reports whether the compression type and its parameters are supported.
func (c Compression) Validate() error {
	if _, ok := compressions[c.Type]; !ok {
		return fmt.Errorf("%w: unsupported compression %q", ErrInvalidArguments, c.Type)
	}
	switch {
	case c.Type == CompressionBzip2 && (c.BlockSize < 0 || c.BlockSize > 9),
		c.Type == CompressionLZ4 && (c.BlockSize < 0 || c.BlockSize > lz4MaxBlockSize),
		c.Type == CompressionXz && (c.Preset < 0 || c.Preset > 9):
		return fmt.Errorf("%w: invalid %s parameters %+v", ErrInvalidArguments, c.Type, c)
	}
	return nil
}

// zstd coders are pooled per level; a pooled encoder keeps the level it was
// created with.
var (
	zstdEncoderMu    sync.Mutex
	zstdEncoderPools = map[int]*sync.Pool{}
	zstdDecoderPool  sync.Pool
)

func zstdEncoderPool(level int) *sync.Pool {
	zstdEncoderMu.Lock()
	defer zstdEncoderMu.Unlock()
	p, ok := zstdEncoderPools[level]
	if !ok {
		p = &sync.Pool{}
		zstdEncoderPools[level] = p
	}
	return p
}

func getZstdEncoder(pool *sync.Pool, level int) (*zstd.Encoder, error) {
	if v := pool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// xz presets 0-9 select the dictionary size.
var xzDictCaps = [10]int{
	256 << 10, 1 << 20, 2 << 20, 4 << 20, 4 << 20,
	8 << 20, 8 << 20, 16 << 20, 32 << 20, 64 << 20,
}

// compress encodes a raw block payload.
func (c Compression) compress(data []byte) ([]byte, error) {
	switch c.Type {
	case CompressionRaw, "":
		return data, nil
	case CompressionGzip:
		var buf bytes.Buffer
		level := c.Level
		if level == 0 {
			level = gzip.DefaultCompression
		}
		zw, err := gzip.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, fmt.Errorf("failed to init gzip writer: %w", err)
		}
		return closeWriter(&buf, zw, data)
	case CompressionBzip2:
		var buf bytes.Buffer
		level := c.BlockSize
		if level == 0 {
			level = bzip2.BestCompression
		}
		zw, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: level})
		if err != nil {
			return nil, fmt.Errorf("failed to init bzip2 writer: %w", err)
		}
		return closeWriter(&buf, zw, data)
	case CompressionXz:
		var buf bytes.Buffer
		zw, err := xz.WriterConfig{DictCap: xzDictCaps[c.Preset]}.NewWriter(&buf)
		if err != nil {
			return nil, fmt.Errorf("failed to init xz writer: %w", err)
		}
		return closeWriter(&buf, zw, data)
	case CompressionZstd:
		pool := zstdEncoderPool(c.Level)
		enc, err := getZstdEncoder(pool, c.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to init zstd writer: %w", err)
		}
		defer pool.Put(enc)
		return enc.EncodeAll(data, nil), nil
	case CompressionLZ4:
		blockSize := c.BlockSize
		if blockSize == 0 {
			blockSize = compressions[CompressionLZ4].BlockSize
		}
		return encodeLZ4Blocks(data, blockSize)
	default:
		return nil, fmt.Errorf("%w: unsupported compression %q", ErrInvalidArguments, c.Type)
	}
}

func closeWriter(buf *bytes.Buffer, w io.WriteCloser, data []byte) ([]byte, error) {
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decompress decodes a block payload of the given decoded size.
func (c Compression) decompress(data []byte, size int) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch c.Type {
	case CompressionRaw, "":
		out = data
	case CompressionGzip:
		zr, zerr := gzip.NewReader(bytes.NewReader(data))
		if zerr != nil {
			return nil, fmt.Errorf("failed to init gzip reader: %w", zerr)
		}
		out, err = io.ReadAll(zr)
		zr.Close()
	case CompressionBzip2:
		zr, zerr := bzip2.NewReader(bytes.NewReader(data), nil)
		if zerr != nil {
			return nil, fmt.Errorf("failed to init bzip2 reader: %w", zerr)
		}
		out, err = io.ReadAll(zr)
		zr.Close()
	case CompressionXz:
		zr, zerr := xz.NewReader(bytes.NewReader(data))
		if zerr != nil {
			return nil, fmt.Errorf("failed to init xz reader: %w", zerr)
		}
		out, err = io.ReadAll(zr)
	case CompressionZstd:
		dec, derr := getZstdDecoder()
		if derr != nil {
			return nil, fmt.Errorf("failed to init zstd reader: %w", derr)
		}
		out, err = dec.DecodeAll(data, make([]byte, 0, size))
		zstdDecoderPool.Put(dec)
	case CompressionLZ4:
		out, err = decodeLZ4Blocks(data, size)
	default:
		return nil, fmt.Errorf("%w: unsupported compression %q", ErrInvalidArguments, c.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s block: %w", c.Type, err)
	}
	if len(out) < size {
		return nil, fmt.Errorf("decompressed %s block has %d bytes, expected %d", c.Type, len(out), size)
	}
	return out[:size], nil
}
