package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clusterrpc/clusterrpc/rpcerrors"
)

func TestDefaultConfigStringContainsSections(t *testing.T) {
	c := Default()
	s := c.String()
	require.True(t, strings.Contains(s, "CHANNEL POOL"))
	require.True(t, strings.Contains(s, "STALE SWEEPER"))
	require.True(t, strings.Contains(s, "STATISTICS"))
}

func TestDefaultRetryPolicyRejectsCallerErrors(t *testing.T) {
	p := NewDefaultRetryPolicy(3)
	require.Equal(t, 3, p.MaxAttempts())
	require.False(t, p.Retriable(rpcerrors.KindNullArgument))
	require.False(t, p.Retriable(rpcerrors.KindDeserializationError))
	require.True(t, p.Retriable(rpcerrors.KindWriteError))
}

func TestToPoolConfigNarrowsFields(t *testing.T) {
	c := Default()
	pc := c.ToPoolConfig()
	require.Equal(t, c.MaxConnectionsPerNode, pc.MaxConnectionsPerNode)
	require.Equal(t, c.CloseChannelTimeMillis, pc.CloseChannelTimeMillis)
}
