package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// A schema record names the codec/compression/type combination a region
// was written with, so reopening it with an incompatible combination
// fails loudly instead of mid-deserialization. The record is an 8-byte
// big-endian xxhash tag of the descriptor followed by the descriptor
// itself.

// Descriptor builds the schema descriptor for a codec name, compression
// type, and Go type name.
func Descriptor(codecName string, c Compression, goType string) string {
	return codecName + "/" + c.String() + "/" + goType
}

// EncodeSchema builds the stored schema record for a descriptor.
func EncodeSchema(descriptor string) []byte {
	rec := make([]byte, 8+len(descriptor))
	binary.BigEndian.PutUint64(rec, xxhash.Sum64String(descriptor))
	copy(rec[8:], descriptor)
	return rec
}

// DecodeSchema extracts and validates the descriptor from a stored schema
// record. A tag/descriptor mismatch means the record itself is corrupt.
func DecodeSchema(rec []byte) (string, error) {
	if len(rec) < 8 {
		return "", fmt.Errorf("schema record too short: %d bytes", len(rec))
	}
	descriptor := string(rec[8:])
	if binary.BigEndian.Uint64(rec) != xxhash.Sum64String(descriptor) {
		return "", fmt.Errorf("schema record tag does not match descriptor %q", descriptor)
	}
	return descriptor, nil
}
