package n5

import (
	"encoding/binary"
	"fmt"
	"slices"
)

// Block payload modes.
const (
	blockModeDefault = 0
	blockModeVarLen  = 1
)

// encodeBlock serializes buf in the N5 block layout:
//
//	mode      uint16
//	ndim      uint16
//	size      uint32[ndim]
//	payload   compressed big-endian samples
func encodeBlock(buf *Buffer, c Compression) ([]byte, error) {
	payload, err := c.compress(buf.Data)
	if err != nil {
		return nil, err
	}
	header := 4 + 4*len(buf.Shape)
	out := make([]byte, header, header+len(payload))
	binary.BigEndian.PutUint16(out[0:], blockModeDefault)
	binary.BigEndian.PutUint16(out[2:], uint16(len(buf.Shape)))
	for d, s := range buf.Shape {
		binary.BigEndian.PutUint32(out[4+4*d:], uint32(s))
	}
	return append(out, payload...), nil
}

// decodeBlock parses a stored block of the dataset described by attrs.
func decodeBlock(data []byte, attrs *DatasetAttributes) (*Buffer, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("block too small for header: %d bytes", len(data))
	}
	mode := binary.BigEndian.Uint16(data[0:])
	ndim := int(binary.BigEndian.Uint16(data[2:]))
	if ndim != len(attrs.Dimensions) {
		return nil, &ErrDimensionMismatch{Expected: []int{len(attrs.Dimensions)}, Actual: []int{ndim}}
	}
	offset := 4 + 4*ndim
	if mode == blockModeVarLen {
		offset += 4
	} else if mode != blockModeDefault {
		return nil, fmt.Errorf("unsupported block mode %d", mode)
	}
	if len(data) < offset {
		return nil, fmt.Errorf("block too small for header: %d bytes", len(data))
	}

	shape := make([]int, ndim)
	for d := range shape {
		shape[d] = int(binary.BigEndian.Uint32(data[4+4*d:]))
	}
	for d := range shape {
		if shape[d] > attrs.BlockSize[d] {
			return nil, &ErrDimensionMismatch{Expected: attrs.BlockSize, Actual: shape}
		}
	}

	buf := &Buffer{Type: attrs.DataType, Shape: shape}
	payload, err := attrs.Compression.decompress(data[offset:], numElements(shape)*attrs.DataType.Size())
	if err != nil {
		return nil, err
	}
	buf.Data = slices.Clone(payload)
	return buf, nil
}
