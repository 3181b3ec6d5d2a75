package n5

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const attributesFile = "attributes.json"

// Reserved attribute keys of a dataset.
const (
	dimensionsKey  = "dimensions"
	blockSizeKey   = "blockSize"
	dataTypeKey    = "dataType"
	compressionKey = "compression"
)

// DatasetAttributes describes the immutable geometry and encoding of a dataset.
type DatasetAttributes struct {
	Dimensions  []int64     `json:"dimensions"`
	BlockSize   []int       `json:"blockSize"`
	DataType    DataType    `json:"dataType"`
	Compression Compression `json:"compression"`
}

// Validate checks that the attributes describe a well-formed dataset.
func (a *DatasetAttributes) Validate() error {
	if len(a.Dimensions) == 0 {
		return fmt.Errorf("%w: dataset must have at least one dimension", ErrInvalidArguments)
	}
	if len(a.BlockSize) != len(a.Dimensions) {
		return &ErrDimensionMismatch{Expected: []int{len(a.Dimensions)}, Actual: []int{len(a.BlockSize)}}
	}
	for d := range a.Dimensions {
		if a.Dimensions[d] < 1 {
			return fmt.Errorf("%w: dimension %d is %d", ErrInvalidArguments, d, a.Dimensions[d])
		}
		if a.BlockSize[d] < 1 {
			return fmt.Errorf("%w: block size %d is %d", ErrInvalidArguments, d, a.BlockSize[d])
		}
	}
	if !a.DataType.Valid() {
		return fmt.Errorf("%w: %d", ErrUnsupportedDataType, uint8(a.DataType))
	}
	return a.Compression.Validate()
}

// Grid returns the block grid of the dataset.
func (a *DatasetAttributes) Grid() *Grid {
	return NewGrid(a.Dimensions, a.BlockSize)
}

// LoadAttributes reads an attributes.json record into a raw key/value map.
func LoadAttributes(reader io.Reader) (map[string]json.RawMessage, error) {
	attrs := map[string]json.RawMessage{}
	if err := json.NewDecoder(reader).Decode(&attrs); err != nil {
		return nil, fmt.Errorf("failed to decode attributes: %w", err)
	}
	return attrs, nil
}

// parseDatasetAttributes extracts the dataset attributes from a raw record.
// ok is false if the record does not describe a dataset.
func parseDatasetAttributes(raw map[string]json.RawMessage) (attrs *DatasetAttributes, ok bool, err error) {
	for _, k := range []string{dimensionsKey, blockSizeKey, dataTypeKey} {
		if _, present := raw[k]; !present {
			return nil, false, nil
		}
	}
	attrs = &DatasetAttributes{Compression: Compression{Type: CompressionRaw}}
	fields := []struct {
		key string
		out any
	}{
		{dimensionsKey, &attrs.Dimensions},
		{blockSizeKey, &attrs.BlockSize},
		{dataTypeKey, &attrs.DataType},
	}
	for _, f := range fields {
		if err := json.Unmarshal(raw[f.key], f.out); err != nil {
			return nil, true, fmt.Errorf("failed to decode %s: %w", f.key, err)
		}
	}
	if c, present := raw[compressionKey]; present {
		if err := json.Unmarshal(c, &attrs.Compression); err != nil {
			return nil, true, fmt.Errorf("failed to decode %s: %w", compressionKey, err)
		}
	}
	return attrs, true, nil
}

// ParseIntArray parses a comma-separated list such as "64,64,32".
func ParseIntArray(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer list", ErrInvalidArguments, s)
		}
		out[i] = v
	}
	return out, nil
}

// ParseDoubleArray parses a comma-separated list such as "4,4,40".
func ParseDoubleArray(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number list", ErrInvalidArguments, s)
		}
		out[i] = v
	}
	return out, nil
}
