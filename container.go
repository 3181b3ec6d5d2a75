package n5

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"sync"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// Container is an N5 container stored in a blob bucket. Datasets and groups
// are addressed by slash-separated paths relative to the bucket root.
// A Container is safe for concurrent use; writers must target disjoint blocks.
type Container struct {
	bucket *blob.Bucket

	// attrMu serializes read-modify-write cycles of attributes.json records
	// issued through this Container.
	attrMu sync.Mutex
}

// Open opens the container at a gocloud blob URL such as "file:///data/vol.n5".
func Open(ctx context.Context, url string) (*Container, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	return NewContainer(bucket), nil
}

// NewContainer wraps an already opened bucket.
func NewContainer(bucket *blob.Bucket) *Container {
	return &Container{bucket: bucket}
}

// Close closes the underlying bucket.
func (c *Container) Close() error {
	return c.bucket.Close()
}

func normalizePath(p string) string {
	p = strings.Trim(path.Clean("/"+p), "/")
	return p
}

func attributesKey(p string) string {
	return path.Join(normalizePath(p), attributesFile)
}

// readAttributes loads the raw attribute record at p. A missing record yields
// an empty map and found=false.
func (c *Container) readAttributes(ctx context.Context, p string) (attrs map[string]json.RawMessage, found bool, err error) {
	reader, err := c.bucket.NewReader(ctx, attributesKey(p), nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return map[string]json.RawMessage{}, false, nil
		}
		return nil, false, fmt.Errorf("failed to open attributes of %q: %w", p, err)
	}
	defer reader.Close()

	attrs, err = LoadAttributes(reader)
	if err != nil {
		return nil, true, fmt.Errorf("%q: %w", p, err)
	}
	return attrs, true, nil
}

func (c *Container) writeAttributes(ctx context.Context, p string, attrs map[string]json.RawMessage) error {
	data, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to encode attributes of %q: %w", p, err)
	}
	if err := c.bucket.WriteAll(ctx, attributesKey(p), data, nil); err != nil {
		return fmt.Errorf("failed to write attributes of %q: %w", p, err)
	}
	return nil
}

// DatasetExists reports whether a dataset exists at p.
func (c *Container) DatasetExists(ctx context.Context, p string) (bool, error) {
	raw, found, err := c.readAttributes(ctx, p)
	if err != nil || !found {
		return false, err
	}
	_, ok, err := parseDatasetAttributes(raw)
	return ok, err
}

// DatasetAttributes returns the attributes of the dataset at p.
func (c *Container) DatasetAttributes(ctx context.Context, p string) (*DatasetAttributes, error) {
	raw, found, err := c.readAttributes(ctx, p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("dataset %q: %w", p, ErrNotFound)
	}
	attrs, ok, err := parseDatasetAttributes(raw)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", p, err)
	}
	if !ok {
		return nil, fmt.Errorf("%q is not a dataset: %w", p, ErrNotFound)
	}
	return attrs, nil
}

// CreateDataset creates a dataset at p. It fails with ErrDatasetExists if a
// dataset is already stored there; no existing data is modified in that case.
func (c *Container) CreateDataset(ctx context.Context, p string, attrs DatasetAttributes) error {
	if err := attrs.Validate(); err != nil {
		return err
	}

	c.attrMu.Lock()
	defer c.attrMu.Unlock()

	raw, _, err := c.readAttributes(ctx, p)
	if err != nil {
		return err
	}
	if _, ok, _ := parseDatasetAttributes(raw); ok {
		return fmt.Errorf("%q: %w", p, ErrDatasetExists)
	}

	fields := map[string]any{
		dimensionsKey:  attrs.Dimensions,
		blockSizeKey:   attrs.BlockSize,
		dataTypeKey:    attrs.DataType,
		compressionKey: attrs.Compression,
	}
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", k, err)
		}
		raw[k] = b
	}
	return c.writeAttributes(ctx, p, raw)
}

// Attribute decodes the attribute key of the group or dataset at p into out.
// It returns false if the attribute is not set.
func (c *Container) Attribute(ctx context.Context, p, key string, out any) (bool, error) {
	raw, _, err := c.readAttributes(ctx, p)
	if err != nil {
		return false, err
	}
	v, ok := raw[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(v, out); err != nil {
		return true, fmt.Errorf("failed to decode attribute %q of %q: %w", key, p, err)
	}
	return true, nil
}

// SetAttribute sets an attribute on the group or dataset at p, preserving
// all other attributes. Concurrent writers are last-writer-wins.
func (c *Container) SetAttribute(ctx context.Context, p, key string, value any) error {
	switch key {
	case dimensionsKey, blockSizeKey, dataTypeKey, compressionKey:
		return fmt.Errorf("%w: attribute %q is immutable", ErrInvalidArguments, key)
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode attribute %q: %w", key, err)
	}

	c.attrMu.Lock()
	defer c.attrMu.Unlock()

	raw, _, err := c.readAttributes(ctx, p)
	if err != nil {
		return err
	}
	raw[key] = b
	return c.writeAttributes(ctx, p, raw)
}

// ReadBlock reads and decodes the block at pos. A block that was never
// written reads as a zero-filled buffer.
func (c *Container) ReadBlock(ctx context.Context, p string, attrs *DatasetAttributes, pos GridPosition) (*Buffer, error) {
	key := BlockKey(p, pos)
	shape := attrs.Grid().BlockShape(pos)

	data, err := c.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return NewBuffer(attrs.DataType, shape), nil
		}
		return nil, fmt.Errorf("failed to read block %s: %w", key, err)
	}
	buf, err := decodeBlock(data, attrs)
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", key, err)
	}
	return buf, nil
}

// BlockExists reports whether a block has been stored at pos.
func (c *Container) BlockExists(ctx context.Context, p string, pos GridPosition) (bool, error) {
	return c.bucket.Exists(ctx, BlockKey(p, pos))
}

// WriteBlock encodes and stores buf as the block at pos.
// It returns the number of bytes written.
func (c *Container) WriteBlock(ctx context.Context, p string, attrs *DatasetAttributes, pos GridPosition, buf *Buffer) (int, error) {
	key := BlockKey(p, pos)
	expected := attrs.Grid().BlockShape(pos)
	if !slices.Equal(expected, buf.Shape) {
		return 0, fmt.Errorf("block %s: %w", key, &ErrDimensionMismatch{Expected: expected, Actual: buf.Shape})
	}
	if buf.Type != attrs.DataType {
		return 0, fmt.Errorf("block %s: %w: buffer is %s, dataset is %s", key, ErrUnsupportedDataType, buf.Type, attrs.DataType)
	}
	data, err := encodeBlock(buf, attrs.Compression)
	if err != nil {
		return 0, fmt.Errorf("block %s: %w", key, err)
	}
	if err := c.bucket.WriteAll(ctx, key, data, nil); err != nil {
		return 0, fmt.Errorf("failed to write block %s: %w", key, err)
	}
	return len(data), nil
}

// WriteBlockIfNonEmpty stores buf unless every sample is the background
// value, in which case nothing is written and 0 is returned.
func (c *Container) WriteBlockIfNonEmpty(ctx context.Context, p string, attrs *DatasetAttributes, pos GridPosition, buf *Buffer) (int, error) {
	if buf.IsEmpty() {
		return 0, nil
	}
	return c.WriteBlock(ctx, p, attrs, pos, buf)
}

// List returns every key stored under the group or dataset at p.
func (c *Container) List(ctx context.Context, p string) ([]string, error) {
	prefix := normalizePath(p)
	if prefix != "" {
		prefix += "/"
	}
	var keys []string
	iter := c.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list %q: %w", p, err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Delete removes a single key. Missing keys are ignored.
func (c *Container) Delete(ctx context.Context, key string) error {
	if err := c.bucket.Delete(ctx, key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
