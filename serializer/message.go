package serializer

// Message adapts a Codec and an arbitrary value into a record.Message,
// letting callers hand SendRequest/SendMessage a plain Go value instead
// of hand-writing an Encode method per payload type. Structurally
// satisfies record.Message without importing it.
type Message struct {
	Codec Codec
	Value any
}

func (m Message) Encode() ([]byte, error) {
	return m.Codec.Encode(m.Value)
}
