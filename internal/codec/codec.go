// Package codec handles serialization of queue values and the schema
// records that identify what a region stores.
package codec

import (
	jsoniter "github.com/json-iterator/go"
)

var stdjson = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONCodec serializes values as JSON using json-iterator with standard
// library semantics (sorted map keys, exact round-trips for the supported
// types).
type JSONCodec struct{}

// JSON returns the default JSON codec.
func JSON() JSONCodec {
	return JSONCodec{}
}

// Name identifies the codec in schema records.
func (JSONCodec) Name() string {
	return "json"
}

// Marshal serializes v.
func (JSONCodec) Marshal(v any) ([]byte, error) {
	return stdjson.Marshal(v)
}

// Unmarshal deserializes data into v.
func (JSONCodec) Unmarshal(data []byte, v any) error {
	return stdjson.Unmarshal(data, v)
}
