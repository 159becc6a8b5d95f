package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompression_String(t *testing.T) {
	assert.Equal(t, "none", CompressionNone.String())
	assert.Equal(t, "snappy", CompressionSnappy.String())
	assert.Equal(t, "unknown(42)", Compression(42).String())
}

func TestCompress_NonePassesThrough(t *testing.T) {
	data := []byte("payload")

	out, err := Compress(data, CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, data, out)

	out, err = Decompress(data, CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestCompress_SnappyRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("all work and no play "), 100)

	compressed, err := Compress(data, CompressionSnappy)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(data), "repetitive data should shrink")

	out, err := Decompress(compressed, CompressionSnappy)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestDecompress_CorruptFrame(t *testing.T) {
	_, err := Decompress([]byte("\xff\xff\xff\xffgarbage"), CompressionSnappy)
	assert.Error(t, err)
}

func TestCompress_UnknownType(t *testing.T) {
	_, err := Compress([]byte("x"), Compression(42))
	assert.Error(t, err)

	_, err = Decompress([]byte("x"), Compression(42))
	assert.Error(t, err)
}
