package clusterrpc

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	rcmetrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/require"

	"github.com/clusterrpc/clusterrpc/backoff"
	"github.com/clusterrpc/clusterrpc/cluster"
	"github.com/clusterrpc/clusterrpc/config"
	"github.com/clusterrpc/clusterrpc/internal/wire"
	"github.com/clusterrpc/clusterrpc/lb"
	"github.com/clusterrpc/clusterrpc/rpcerrors"
)

type fakeMessage struct{ body []byte }

func (m fakeMessage) Encode() ([]byte, error) { return m.body, nil }

// multiNodeConnector dials net.Pipe client ends, keyed by address, and
// can be told to fail a given address outright (simulating a dead
// node) while still succeeding for others.
type multiNodeConnector struct {
	mu     sync.Mutex
	accept map[string]chan net.Conn
	fail   map[string]bool
}

func newMultiNodeConnector() *multiNodeConnector {
	return &multiNodeConnector{accept: make(map[string]chan net.Conn), fail: make(map[string]bool)}
}

func (c *multiNodeConnector) failAddr(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail[addr] = true
}

func (c *multiNodeConnector) acceptChan(addr string) chan net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.accept[addr]
	if !ok {
		ch = make(chan net.Conn, 4)
		c.accept[addr] = ch
	}
	return ch
}

func (c *multiNodeConnector) Dial(ctx context.Context, addr string) (net.Conn, error) {
	c.mu.Lock()
	shouldFail := c.fail[addr]
	c.mu.Unlock()
	if shouldFail {
		return nil, context.DeadlineExceeded
	}
	client, server := net.Pipe()
	c.acceptChan(addr) <- server
	return client, nil
}

// scriptedBalancer returns nodes from a fixed list in call order,
// repeating the last entry once the script is exhausted.
type scriptedBalancer struct {
	mu    sync.Mutex
	calls int
	nodes []cluster.Node
}

func (b *scriptedBalancer) NextNode(capability, persistentCapability cluster.Capability) (cluster.Node, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.nodes) == 0 {
		return cluster.Node{}, false
	}
	idx := b.calls
	if idx >= len(b.nodes) {
		idx = len(b.nodes) - 1
	}
	b.calls++
	return b.nodes[idx], true
}

type scriptedFactory struct{ balancer lb.LoadBalancer }

func (f scriptedFactory) New(snapshot cluster.Snapshot) (lb.LoadBalancer, error) {
	return f.balancer, nil
}

func testConfig() config.NetworkClientConfig {
	cfg := config.Default()
	cfg.MaxConnectionsPerNode = 1
	cfg.CloseChannelTimeMillis = -1
	cfg.ConnectTimeoutMillis = 200
	cfg.WriteTimeoutMillis = 200
	cfg.StaleRequestCleanupFreqMins = 0
	cfg.RetryStrategy = config.NewDefaultRetryPolicy(2)
	return cfg
}

func waitForResult(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("completion never fired")
	}
}

// TestRetryReachesHealthyNodeOnDifferentNode covers scenario S3: the
// first-selected node is unreachable, the error exposes RequestAccess,
// retries remain, and the load balancer's next pick differs from the
// failing node - the retry trampoline should dispatch to that node and
// let its response complete the caller's callback.
func TestRetryReachesHealthyNodeOnDifferentNode(t *testing.T) {
	nodeA := cluster.Node{ID: 1, Host: "127.0.0.1", Port: 9001}
	nodeB := cluster.Node{ID: 2, Host: "127.0.0.1", Port: 9002}

	connector := newMultiNodeConnector()
	connector.failAddr(nodeA.Addr())

	balancer := &scriptedBalancer{nodes: []cluster.Node{nodeA, nodeB}}
	nc := New(testConfig(), scriptedFactory{balancer: balancer}, backoff.Noop{}, connector)
	nc.UpdateMembership(cluster.Snapshot{Endpoints: []cluster.Endpoint{{Node: nodeA}, {Node: nodeB}}})

	done := make(chan struct{}, 1)
	var resp []byte
	var outErr error

	nc.SendRequest(fakeMessage{body: []byte("hi")}, 0, 0, 2, func(r []byte, err error) {
		resp, outErr = r, err
		done <- struct{}{}
	})

	var server net.Conn
	select {
	case server = <-connector.acceptChan(nodeB.Addr()):
	case <-time.After(2 * time.Second):
		t.Fatal("never dialed the retry node")
	}

	frame, err := wire.ReadFrom(server)
	require.NoError(t, err)
	require.NoError(t, wire.WriteTo(server, wire.Frame{CorrelationID: frame.CorrelationID, Body: []byte("ok")}))

	waitForResult(t, done)
	require.NoError(t, outErr)
	require.Equal(t, []byte("ok"), resp)
}

// TestRetryNotTakenWhenBalancerPicksSameNode covers scenario S4: the
// load balancer keeps returning the same (failing) node, so the
// trampoline must propagate the ORIGINAL error rather than loop.
func TestRetryNotTakenWhenBalancerPicksSameNode(t *testing.T) {
	nodeA := cluster.Node{ID: 1, Host: "127.0.0.1", Port: 9001}

	connector := newMultiNodeConnector()
	connector.failAddr(nodeA.Addr())

	balancer := &scriptedBalancer{nodes: []cluster.Node{nodeA}}
	nc := New(testConfig(), scriptedFactory{balancer: balancer}, backoff.Noop{}, connector)
	nc.UpdateMembership(cluster.Snapshot{Endpoints: []cluster.Endpoint{{Node: nodeA}}})

	done := make(chan struct{}, 1)
	var outErr error

	nc.SendRequest(fakeMessage{body: []byte("hi")}, 0, 0, 2, func(r []byte, err error) {
		outErr = err
		done <- struct{}{}
	})

	waitForResult(t, done)
	require.Error(t, outErr)
	require.Equal(t, rpcerrors.KindConnectError, rpcerrors.KindOf(outErr))
}

// TestRetryNotAttemptedWhenMaxRetryIsZero confirms a caller that passes
// maxRetry=0 gets the original failure with no trampoline wrapping at
// all, even though a different healthy node exists.
func TestRetryNotAttemptedWhenMaxRetryIsZero(t *testing.T) {
	nodeA := cluster.Node{ID: 1, Host: "127.0.0.1", Port: 9001}
	nodeB := cluster.Node{ID: 2, Host: "127.0.0.1", Port: 9002}

	connector := newMultiNodeConnector()
	connector.failAddr(nodeA.Addr())

	balancer := &scriptedBalancer{nodes: []cluster.Node{nodeA, nodeB}}
	nc := New(testConfig(), scriptedFactory{balancer: balancer}, backoff.Noop{}, connector)
	nc.UpdateMembership(cluster.Snapshot{Endpoints: []cluster.Endpoint{{Node: nodeA}, {Node: nodeB}}})

	done := make(chan struct{}, 1)
	var outErr error

	nc.SendRequest(fakeMessage{body: []byte("hi")}, 0, 0, 0, func(r []byte, err error) {
		outErr = err
		done <- struct{}{}
	})

	waitForResult(t, done)
	require.Error(t, outErr)
	require.Equal(t, rpcerrors.KindConnectError, rpcerrors.KindOf(outErr))
}

// TestNullMessageFailsFast confirms sending a nil Message never touches
// node selection or dispatch.
func TestNullMessageFailsFast(t *testing.T) {
	connector := newMultiNodeConnector()
	balancer := &scriptedBalancer{}
	nc := New(testConfig(), scriptedFactory{balancer: balancer}, backoff.Noop{}, connector)

	done := make(chan struct{}, 1)
	var outErr error
	nc.SendRequest(nil, 0, 0, 2, func(r []byte, err error) {
		outErr = err
		done <- struct{}{}
	})

	waitForResult(t, done)
	require.Equal(t, rpcerrors.KindNullArgument, rpcerrors.KindOf(outErr))
	require.Equal(t, 0, balancer.calls)
}

// TestSendMessageIsFireAndForget confirms sendMessage dispatches without
// ever registering a correlation entry.
func TestSendMessageIsFireAndForget(t *testing.T) {
	nodeA := cluster.Node{ID: 1, Host: "127.0.0.1", Port: 9001}
	connector := newMultiNodeConnector()
	balancer := &scriptedBalancer{nodes: []cluster.Node{nodeA}}
	nc := New(testConfig(), scriptedFactory{balancer: balancer}, backoff.Noop{}, connector)
	nc.UpdateMembership(cluster.Snapshot{Endpoints: []cluster.Endpoint{{Node: nodeA}}})

	err := nc.SendMessage(fakeMessage{body: []byte("ping")}, 0, 0)
	require.NoError(t, err)

	select {
	case server := <-connector.acceptChan(nodeA.Addr()):
		frame, err := wire.ReadFrom(server)
		require.NoError(t, err)
		require.Equal(t, []byte("ping"), frame.Body)
	case <-time.After(2 * time.Second):
		t.Fatal("fire-and-forget message never reached the wire")
	}

	require.Equal(t, 0, nc.pending.Size())
}

// TestUpdateMembershipRegistersNodeGaugesOnce confirms a node appearing
// in membership gets its exporter gauges registered exactly once, even
// across repeated snapshots that both include it.
func TestUpdateMembershipRegistersNodeGaugesOnce(t *testing.T) {
	nodeA := cluster.Node{ID: 1, Host: "127.0.0.1", Port: 9001}
	connector := newMultiNodeConnector()
	balancer := &scriptedBalancer{nodes: []cluster.Node{nodeA}}
	nc := New(testConfig(), scriptedFactory{balancer: balancer}, backoff.Noop{}, connector)

	snapshot := cluster.Snapshot{Endpoints: []cluster.Endpoint{{Node: nodeA}}}
	nc.UpdateMembership(snapshot)
	nc.UpdateMembership(snapshot)

	require.Equal(t, 1, nc.gaugeNodes.Size())

	var buf bytes.Buffer
	nc.Exporter().WritePrometheus(&buf)
	require.Contains(t, buf.String(), `clusterrpc_node_p99_latency_ms{node="1"}`)
}

// TestExporterCountsSentFailedAndRetried drives a request that fails on
// its first node and succeeds after retrying on a second, then checks
// that the exporter's sent/failed/retried counters reflect exactly what
// happened: two sends (initial attempt plus retry), one retry, and no
// terminal failure since the retried attempt succeeded.
func TestExporterCountsSentFailedAndRetried(t *testing.T) {
	nodeA := cluster.Node{ID: 1, Host: "127.0.0.1", Port: 9001}
	nodeB := cluster.Node{ID: 2, Host: "127.0.0.1", Port: 9002}

	connector := newMultiNodeConnector()
	connector.failAddr(nodeA.Addr())

	balancer := &scriptedBalancer{nodes: []cluster.Node{nodeA, nodeB}}
	nc := New(testConfig(), scriptedFactory{balancer: balancer}, backoff.Noop{}, connector)
	nc.UpdateMembership(cluster.Snapshot{Endpoints: []cluster.Endpoint{{Node: nodeA}, {Node: nodeB}}})

	done := make(chan struct{}, 1)
	nc.SendRequest(fakeMessage{body: []byte("hi")}, 0, 0, 2, func(r []byte, err error) {
		done <- struct{}{}
	})

	server := <-connector.acceptChan(nodeB.Addr())
	frame, err := wire.ReadFrom(server)
	require.NoError(t, err)
	require.NoError(t, wire.WriteTo(server, wire.Frame{CorrelationID: frame.CorrelationID, Body: []byte("ok")}))

	waitForResult(t, done)

	exporter := nc.Exporter()
	rc := exporter.RCRegistry()
	require.Equal(t, int64(2), rc.Get("clusterrpc.requests.sent").(rcmetrics.Counter).Count())
	require.Equal(t, int64(1), rc.Get("clusterrpc.requests.retried").(rcmetrics.Counter).Count())
	require.Equal(t, int64(0), rc.Get("clusterrpc.requests.failed").(rcmetrics.Counter).Count())
}
