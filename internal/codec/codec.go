package codec

import (
	"encoding/json"
)

// Codec converts a structured value to and from a byte sequence.
// The storage manager is format agnostic; everything past the codec
// operates on opaque bytes.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// JSON is the default codec.
type JSON struct{}

// Encode marshals v to JSON.
func (JSON) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode unmarshals data into v, which must be a non-nil pointer.
func (JSON) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
