package codec

import (
	"fmt"

	"github.com/golang/snappy"
)

// Compression selects how serialized values are stored on disk.
type Compression uint8

const (
	// CompressionNone stores the codec output as-is (default).
	CompressionNone Compression = 0

	// CompressionSnappy stores values as snappy blocks.
	CompressionSnappy Compression = 1
)

// MaxDecodedSize caps the decoded size of a stored value to guard against
// corrupt length headers in compressed frames.
const MaxDecodedSize = 100 * 1024 * 1024 // 100 MB

// String returns the string representation of the compression type.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// Compress encodes data with the given compression type.
func Compress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionSnappy:
		return snappy.Encode(nil, data), nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", c)
	}
}

// Decompress decodes data stored with the given compression type.
func Decompress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionSnappy:
		n, err := snappy.DecodedLen(data)
		if err != nil {
			return nil, fmt.Errorf("corrupt snappy frame: %w", err)
		}
		if n > MaxDecodedSize {
			return nil, fmt.Errorf("decoded value exceeds maximum size of %d bytes", MaxDecodedSize)
		}
		out, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("decompress value: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", c)
	}
}
