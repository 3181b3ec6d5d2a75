package n5

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/OneOfOne/xxhash"
	"github.com/pierrec/lz4/v4"
)

// N5 lz4 payloads are LZ4Block streams: a sequence of independently
// compressed chunks, each behind a 21 byte header
//
//	magic              "LZ4Block"
//	token              method | (level - 10)
//	compressed length  int32, little-endian
//	original length    int32, little-endian
//	checksum           xxhash32 of the original bytes, low 28 bits
//
// terminated by an empty raw chunk.
const (
	lz4BlockMagic     = "LZ4Block"
	lz4BlockHeaderLen = len(lz4BlockMagic) + 13
	lz4MethodRaw      = 0x10
	lz4MethodLZ4      = 0x20
	lz4LevelBase      = 10
	lz4ChecksumSeed   = 0x9747b28c
	lz4MaxBlockSize   = 1 << (lz4LevelBase + 0x0f)
)

var errLZ4Block = errors.New("malformed LZ4Block stream")

func lz4Checksum(b []byte) uint32 {
	return xxhash.Checksum32S(b, lz4ChecksumSeed) & 0x0fffffff
}

func lz4BlockLevel(blockSize int) byte {
	return byte(max(0, bits.Len32(uint32(blockSize-1))-lz4LevelBase))
}

func appendLZ4BlockHeader(out []byte, token byte, compressedLen, originalLen int, checksum uint32) []byte {
	out = append(out, lz4BlockMagic...)
	out = append(out, token)
	out = binary.LittleEndian.AppendUint32(out, uint32(compressedLen))
	out = binary.LittleEndian.AppendUint32(out, uint32(originalLen))
	return binary.LittleEndian.AppendUint32(out, checksum)
}

func encodeLZ4Blocks(data []byte, blockSize int) ([]byte, error) {
	level := lz4BlockLevel(blockSize)
	chunks := (len(data) + blockSize - 1) / blockSize
	out := make([]byte, 0, len(data)+(chunks+1)*lz4BlockHeaderLen)
	compressed := make([]byte, lz4.CompressBlockBound(min(blockSize, len(data))))

	for start := 0; start < len(data); start += blockSize {
		chunk := data[start:min(start+blockSize, len(data))]
		n, err := lz4.CompressBlock(chunk, compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compression failed: %w", err)
		}
		method, payload := byte(lz4MethodLZ4), compressed[:n]
		if n == 0 || n >= len(chunk) {
			method, payload = lz4MethodRaw, chunk
		}
		out = appendLZ4BlockHeader(out, method|level, len(payload), len(chunk), lz4Checksum(chunk))
		out = append(out, payload...)
	}
	return appendLZ4BlockHeader(out, lz4MethodRaw|level, 0, 0, 0), nil
}

func decodeLZ4Blocks(data []byte, size int) ([]byte, error) {
	out := make([]byte, 0, size)
	for len(data) > 0 {
		if len(data) < lz4BlockHeaderLen || string(data[:len(lz4BlockMagic)]) != lz4BlockMagic {
			return nil, fmt.Errorf("%w: bad header", errLZ4Block)
		}
		h := data[len(lz4BlockMagic):lz4BlockHeaderLen]
		token := h[0]
		compressedLen := int(binary.LittleEndian.Uint32(h[1:]))
		originalLen := int(binary.LittleEndian.Uint32(h[5:]))
		checksum := binary.LittleEndian.Uint32(h[9:])
		data = data[lz4BlockHeaderLen:]

		if originalLen == 0 && compressedLen == 0 {
			continue
		}
		if originalLen > 1<<(lz4LevelBase+int(token&0x0f)) || compressedLen > len(data) {
			return nil, fmt.Errorf("%w: chunk lengths %d/%d", errLZ4Block, compressedLen, originalLen)
		}
		payload := data[:compressedLen]
		data = data[compressedLen:]

		var chunk []byte
		switch token & 0xf0 {
		case lz4MethodRaw:
			if compressedLen != originalLen {
				return nil, fmt.Errorf("%w: raw chunk length mismatch", errLZ4Block)
			}
			chunk = payload
		case lz4MethodLZ4:
			chunk = make([]byte, originalLen)
			n, err := lz4.UncompressBlock(payload, chunk)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", errLZ4Block, err)
			}
			if n != originalLen {
				return nil, fmt.Errorf("%w: chunk decoded to %d bytes, expected %d", errLZ4Block, n, originalLen)
			}
		default:
			return nil, fmt.Errorf("%w: unknown method %#x", errLZ4Block, token&0xf0)
		}
		if lz4Checksum(chunk) != checksum {
			return nil, fmt.Errorf("%w: checksum mismatch", errLZ4Block)
		}
		out = append(out, chunk...)
	}
	return out, nil
}
