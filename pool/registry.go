package pool

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/clusterrpc/clusterrpc/backoff"
	"github.com/clusterrpc/clusterrpc/cluster"
	"github.com/clusterrpc/clusterrpc/internal/rpclog"
	"github.com/clusterrpc/clusterrpc/stats"
)

var registryLog = rpclog.Get("registry")

// Factory builds a ChannelPool for a newly discovered node. Kept as an
// interface (rather than a bare constructor function) so tests can
// substitute pools backed by net.Pipe or record-only fakes.
type Factory interface {
	New(node cluster.Node) *ChannelPool
}

// FactoryFunc adapts a plain function to Factory.
type FactoryFunc func(node cluster.Node) *ChannelPool

func (f FactoryFunc) New(node cluster.Node) *ChannelPool { return f(node) }

// Registry is the channel pool registry / I/O client of spec §4.2: it
// maps each Node to its ChannelPool, created lazily, and tears pools
// down (after a grace period) once their node drops out of membership.
type Registry struct {
	factory Factory
	pools   *xsync.MapOf[uint64, *ChannelPool]
	grace   time.Duration
}

// NewRegistry builds a Registry whose pools are created through
// factory. gracePeriod is how long a departed node's pool is kept alive
// before Close is called on it, giving in-flight requests a chance to
// complete or time out naturally.
func NewRegistry(factory Factory, gracePeriod time.Duration) *Registry {
	return &Registry{
		factory: factory,
		pools:   xsync.NewMapOf[uint64, *ChannelPool](),
		grace:   gracePeriod,
	}
}

// PoolFor returns the pool for node, creating it on first access.
func (r *Registry) PoolFor(node cluster.Node) *ChannelPool {
	p, _ := r.pools.LoadOrCompute(node.ID, func() *ChannelPool {
		return r.factory.New(node)
	})
	return p
}

// ApplyMembership reconciles the registry against the current set of
// live nodes: pools for nodes no longer present are scheduled for
// closure after the grace period; nodes still present keep their
// existing pool untouched.
func (r *Registry) ApplyMembership(live []cluster.Node) {
	liveIDs := make(map[uint64]struct{}, len(live))
	for _, n := range live {
		liveIDs[n.ID] = struct{}{}
	}

	var departed []uint64
	r.pools.Range(func(nodeID uint64, _ *ChannelPool) bool {
		if _, ok := liveIDs[nodeID]; !ok {
			departed = append(departed, nodeID)
		}
		return true
	})

	for _, nodeID := range departed {
		p, ok := r.pools.LoadAndDelete(nodeID)
		if !ok {
			continue
		}
		registryLog.Infof("node %d left membership, closing its pool in %s", nodeID, r.grace)
		if r.grace <= 0 {
			p.Close()
			continue
		}
		time.AfterFunc(r.grace, p.Close)
	}
}

// CloseAll closes every pool the registry currently owns, used by the
// network client's Shutdown.
func (r *Registry) CloseAll() {
	r.pools.Range(func(_ uint64, p *ChannelPool) bool {
		p.Close()
		return true
	})
}

// DefaultFactory builds a Factory that constructs TCP-backed pools
// sharing a single error-backoff strategy, statistics registry and
// response sink - the wiring a NetworkClient actually uses.
func DefaultFactory(connector Connector, cfg Config, errorStrategy backoff.Strategy, statsRegistry *stats.Registry, sink ResponseSink) Factory {
	return FactoryFunc(func(node cluster.Node) *ChannelPool {
		var tracker *stats.PerNodeTracker
		if statsRegistry != nil {
			tracker = statsRegistry.GetOrCreate(node.ID)
		}
		return New(node, connector, cfg, errorStrategy, tracker, sink)
	})
}
