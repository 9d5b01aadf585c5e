package serializer

import (
	"bytes"
	"encoding/gob"
)

// NewGobCodec creates a Codec using Go's binary gob format.
func NewGobCodec() Codec {
	return gobCodec{}
}

type gobCodec struct{}

func (gobCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Decode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
