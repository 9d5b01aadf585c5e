package clusterrpc

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/clusterrpc/clusterrpc/backoff"
	"github.com/clusterrpc/clusterrpc/cluster"
	"github.com/clusterrpc/clusterrpc/config"
	"github.com/clusterrpc/clusterrpc/internal/rpclog"
	"github.com/clusterrpc/clusterrpc/lb"
	"github.com/clusterrpc/clusterrpc/pool"
	"github.com/clusterrpc/clusterrpc/record"
	"github.com/clusterrpc/clusterrpc/rpcerrors"
	"github.com/clusterrpc/clusterrpc/stats"
)

var log = rpclog.Get("netclient")

// poolRegistryGracePeriod is how long a departed node's pool is kept
// alive before being closed, letting in-flight requests complete or
// time out naturally rather than being aborted mid-flight.
const poolRegistryGracePeriod = 30 * time.Second

// lbState is the contents of the network client's load-balancer slot
// (spec §4.3): absent (nil *lbState), error(e), or ready(lb).
type lbState struct {
	lb  lb.LoadBalancer
	err error
}

// pendingEntry is what the correlation table keeps per in-flight
// request: the request itself (to fire its completion) and the node it
// was sent to (to find the right statistics tracker on response).
type pendingEntry struct {
	req  *record.Request
	node cluster.Node
}

// NetworkClient orchestrates membership-driven load-balancer refresh,
// per-request node selection, the retry trampoline, and hand-off to the
// per-node channel pool registry.
type NetworkClient struct {
	lbFactory lb.Factory
	slot      atomic.Pointer[lbState]

	registry      *pool.Registry
	statsRegistry *stats.Registry
	exporter      *stats.Exporter

	// gaugeNodes tracks which node IDs already have Exporter gauges
	// registered, so a node repeatedly reappearing across membership
	// snapshots never double-registers its gauge set.
	gaugeNodes *xsync.MapOf[uint64, struct{}]

	pending *xsync.MapOf[uuid.UUID, pendingEntry]

	// retryPolicy gates which error kinds the retry trampoline is even
	// willing to consider, independent of the per-call maxRetry count a
	// caller passes to SendRequest.
	retryPolicy config.RetryPolicy
}

// New builds a NetworkClient wired with the given configuration,
// load-balancer factory, connection backoff strategy and socket
// connector.
func New(cfg config.NetworkClientConfig, lbFactory lb.Factory, errorStrategy backoff.Strategy, connector pool.Connector) *NetworkClient {
	retryPolicy := cfg.RetryStrategy
	if retryPolicy == nil {
		retryPolicy = config.NewDefaultRetryPolicy(0)
	}

	nc := &NetworkClient{
		lbFactory:     lbFactory,
		statsRegistry: stats.NewRegistry(time.Duration(cfg.RequestStatisticsWindowMillis) * time.Millisecond),
		exporter:      stats.NewExporter(),
		gaugeNodes:    xsync.NewMapOf[uint64, struct{}](),
		pending:       xsync.NewMapOf[uuid.UUID, pendingEntry](),
		retryPolicy:   retryPolicy,
	}

	factory := pool.DefaultFactory(connector, cfg.ToPoolConfig(), errorStrategy, nc.statsRegistry, nc)
	nc.registry = pool.NewRegistry(factory, poolRegistryGracePeriod)

	return nc
}

// UpdateMembership rebuilds the load balancer from a new snapshot and
// reconciles the channel pool registry against it. Construction
// failures are captured in the slot so subsequent sends fail fast with
// InvalidCluster rather than racing the next snapshot.
func (c *NetworkClient) UpdateMembership(snapshot cluster.Snapshot) {
	balancer, err := c.lbFactory.New(snapshot)
	if err != nil {
		c.slot.Store(&lbState{err: rpcerrors.New(rpcerrors.KindInvalidCluster, err)})
	} else {
		c.slot.Store(&lbState{lb: balancer})
	}

	nodes := snapshot.NodeSet()
	live := make([]cluster.Node, 0, len(nodes))
	for _, n := range nodes {
		live = append(live, n)
	}
	c.registry.ApplyMembership(live)

	for _, n := range live {
		if _, seen := c.gaugeNodes.LoadOrStore(n.ID, struct{}{}); !seen {
			c.exporter.RegisterNodeGauges(c.statsRegistry, n.ID)
		}
	}
}

// SendRequest implements spec §4.3's sendRequest.
func (c *NetworkClient) SendRequest(msg record.Message, capability, persistentCapability cluster.Capability, maxRetry int, callback record.Completion) {
	if msg == nil {
		callback(nil, rpcerrors.New(rpcerrors.KindNullArgument, nil))
		return
	}

	node, err := c.selectNode(capability, persistentCapability)
	if err != nil {
		callback(nil, err)
		return
	}

	terminalCallback := func(resp []byte, err error) {
		if err != nil {
			c.exporter.RequestFailed()
		}
		callback(resp, err)
	}

	userCallback := terminalCallback
	if maxRetry > 0 {
		userCallback = c.buildRetryCallback(capability, persistentCapability, maxRetry, terminalCallback)
	}

	var req *record.Request
	cleanup := func(resp []byte, err error) {
		c.pending.Delete(req.CorrelationID)
		userCallback(resp, err)
	}
	req = record.New(msg, node, cleanup)
	c.dispatch(req)
}

// SendMessage implements spec §4.3's sendMessage (fire-and-forget):
// identical through node selection, but the record carries no
// completion and is never registered for response correlation.
func (c *NetworkClient) SendMessage(msg record.Message, capability, persistentCapability cluster.Capability) error {
	if msg == nil {
		return rpcerrors.New(rpcerrors.KindNullArgument, nil)
	}

	node, err := c.selectNode(capability, persistentCapability)
	if err != nil {
		return err
	}

	req := record.NewFireAndForget(msg, node)
	c.dispatch(req)
	return nil
}

func (c *NetworkClient) selectNode(capability, persistentCapability cluster.Capability) (cluster.Node, error) {
	state := c.slot.Load()
	if state == nil {
		return cluster.Node{}, rpcerrors.New(rpcerrors.KindClusterDisconnected, nil)
	}
	if state.err != nil {
		return cluster.Node{}, state.err
	}
	node, ok := state.lb.NextNode(capability, persistentCapability)
	if !ok {
		return cluster.Node{}, rpcerrors.New(rpcerrors.KindNoNodesAvailable, nil)
	}
	return node, nil
}

// dispatch registers req for response correlation (if it expects one)
// and hands it to its destination node's channel pool. Correlation
// cleanup on completion is the caller's responsibility (see SendRequest
// and buildRetryCallback), since req's completion may fire
// synchronously inside this very call (e.g. PoolClosed).
func (c *NetworkClient) dispatch(req *record.Request) {
	if req.ExpectResponse {
		c.pending.Store(req.CorrelationID, pendingEntry{req: req, node: req.Node})
	}
	c.exporter.RequestSent()
	c.registry.PoolFor(req.Node).SendRequest(req)
}

// OnResponse implements pool.ResponseSink: it resolves the correlation
// id back to the originating Request, records the finish in that
// node's statistics tracker, and fires the Request's completion. This
// is "the correlation layer below the pool" spec §4.1 refers to.
func (c *NetworkClient) OnResponse(node cluster.Node, corrID uuid.UUID, body []byte, err error) {
	entry, ok := c.pending.LoadAndDelete(corrID)
	if !ok {
		log.Warningf("response for unknown correlation id %s from %s", corrID, node)
		return
	}

	if tracker, ok := c.statsRegistry.Get(entry.node.ID); ok {
		tracker.EndRequest(corrID, time.Now())
	}

	entry.req.Complete(body, err)
}

// Shutdown closes every channel pool, blocking for socket teardown.
// Pending requests not yet written are resolved with PoolClosed by the
// pool layer itself; Shutdown does not separately resolve them to avoid
// racing a response that is already in flight.
func (c *NetworkClient) Shutdown() {
	c.registry.CloseAll()
}

// StatsRegistry exposes the per-node statistics trackers, used by a
// caller's own health-score driven load balancer or metrics scrape.
func (c *NetworkClient) StatsRegistry() *stats.Registry {
	return c.statsRegistry
}

// Exporter exposes the wired metrics surface (rcrowley counters plus
// VictoriaMetrics gauges) for a caller to fold into its own reporter.
func (c *NetworkClient) Exporter() *stats.Exporter {
	return c.exporter
}
