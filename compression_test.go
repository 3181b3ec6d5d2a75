package n5

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

func TestZstdEncoderKeepsLevel(t *testing.T) {
	data := bytes.Repeat([]byte("n5 block payload with some repetition 0123456789"), 4096)

	_, err := Compression{Type: CompressionZstd, Level: 1}.compress(data)
	require.NoError(t, err)
	got, err := Compression{Type: CompressionZstd, Level: 19}.compress(data)
	require.NoError(t, err)

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(19)))
	require.NoError(t, err)
	defer enc.Close()
	require.Equal(t, enc.EncodeAll(data, nil), got)

	again, err := Compression{Type: CompressionZstd, Level: 1}.compress(data)
	require.NoError(t, err)
	require.NotEqual(t, got, again)
}

func lz4Chunks(t *testing.T, stream []byte) (tokens []byte, lengths []int) {
	t.Helper()
	for len(stream) > 0 {
		require.GreaterOrEqual(t, len(stream), lz4BlockHeaderLen)
		require.Equal(t, "LZ4Block", string(stream[:8]))
		tokens = append(tokens, stream[8])
		n := int(binary.LittleEndian.Uint32(stream[9:]))
		lengths = append(lengths, int(binary.LittleEndian.Uint32(stream[13:])))
		stream = stream[lz4BlockHeaderLen+n:]
	}
	return tokens, lengths
}

func TestLZ4Block_Stream(t *testing.T) {
	c := compressions[CompressionLZ4]
	data := bytes.Repeat([]byte{1, 2, 3, 4, 5, 6, 7, 8}, 20000)

	stream, err := c.compress(data)
	require.NoError(t, err)
	tokens, lengths := lz4Chunks(t, stream)
	require.Equal(t, []byte{0x26, 0x26, 0x26, 0x16}, tokens)
	require.Equal(t, []int{65536, 65536, 28928, 0}, lengths)
	require.Equal(t, append([]byte("LZ4Block\x16"), make([]byte, 12)...), stream[len(stream)-lz4BlockHeaderLen:])

	got, err := c.decompress(stream, len(data))
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestLZ4Block_IncompressibleChunkIsStoredRaw(t *testing.T) {
	data := make([]byte, 1000)
	rand.New(rand.NewSource(7)).Read(data)

	stream, err := encodeLZ4Blocks(data, 1<<16)
	require.NoError(t, err)
	tokens, lengths := lz4Chunks(t, stream)
	require.Equal(t, []byte{0x16, 0x16}, tokens)
	require.Equal(t, []int{1000, 0}, lengths)
	require.Equal(t, data, stream[lz4BlockHeaderLen:lz4BlockHeaderLen+1000])

	got, err := decodeLZ4Blocks(stream, len(data))
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestLZ4Block_Corruption(t *testing.T) {
	data := bytes.Repeat([]byte("abcd"), 100)
	stream, err := encodeLZ4Blocks(data, 1<<16)
	require.NoError(t, err)

	bad := bytes.Clone(stream)
	bad[17] ^= 0xff
	_, err = decodeLZ4Blocks(bad, len(data))
	require.ErrorIs(t, err, errLZ4Block)

	bad = bytes.Clone(stream)
	bad[0] = 'X'
	_, err = decodeLZ4Blocks(bad, len(data))
	require.ErrorIs(t, err, errLZ4Block)

	_, err = decodeLZ4Blocks(stream[:lz4BlockHeaderLen+2], len(data))
	require.ErrorIs(t, err, errLZ4Block)
}

func TestLZ4Block_Empty(t *testing.T) {
	stream, err := encodeLZ4Blocks(nil, 1<<16)
	require.NoError(t, err)
	require.Len(t, stream, lz4BlockHeaderLen)
	got, err := decodeLZ4Blocks(stream, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestLZ4BlockLevel(t *testing.T) {
	require.Equal(t, byte(6), lz4BlockLevel(1<<16))
	require.Equal(t, byte(0), lz4BlockLevel(64))
	require.Equal(t, byte(1), lz4BlockLevel(1025))
}
