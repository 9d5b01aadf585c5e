package serializer

import (
	"errors"
	"fmt"
)

// NewRawCodec returns a pass-through Codec for callers that already have
// wire bytes (the degenerate case of record.Request's lazily-materialized
// []byte payload). Decode requires v to be *[]byte.
func NewRawCodec() Codec {
	return rawCodec{}
}

type rawCodec struct{}

func (rawCodec) Encode(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("serializer: raw codec requires []byte, got %T", v)
	}
	return b, nil
}

func (rawCodec) Decode(data []byte, v any) error {
	out, ok := v.(*[]byte)
	if !ok {
		return errors.New("serializer: raw codec requires *[]byte destination")
	}
	*out = data
	return nil
}
