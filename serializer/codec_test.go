package serializer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Key   string
	Value int
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c := NewJSONCodec()
	b, err := c.Encode(sample{Key: "a", Value: 1})
	require.NoError(t, err)

	var out sample
	require.NoError(t, c.Decode(b, &out))
	require.Equal(t, sample{Key: "a", Value: 1}, out)
}

func TestGobCodecRoundTrip(t *testing.T) {
	c := NewGobCodec()
	b, err := c.Encode(sample{Key: "b", Value: 2})
	require.NoError(t, err)

	var out sample
	require.NoError(t, c.Decode(b, &out))
	require.Equal(t, sample{Key: "b", Value: 2}, out)
}

func TestRawCodecPassthrough(t *testing.T) {
	c := NewRawCodec()
	b, err := c.Encode([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), b)

	var out []byte
	require.NoError(t, c.Decode(b, &out))
	require.Equal(t, []byte("hello"), out)
}
