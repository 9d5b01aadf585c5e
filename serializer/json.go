package serializer

import "encoding/json"

// NewJSONCodec creates a Codec using encoding/json.
func NewJSONCodec() Codec {
	return jsonCodec{}
}

type jsonCodec struct{}

func (jsonCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
