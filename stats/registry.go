package stats

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry owns the PerNodeTracker for every node the network client
// currently knows about (and recently knew about - a tracker survives a
// brief membership flap so transient resize events don't discard
// history). Lookups are lock-free on the hot path via xsync.MapOf.
type Registry struct {
	window time.Duration
	nodes  *xsync.MapOf[uint64, *PerNodeTracker]
}

// NewRegistry builds a Registry whose per-node trackers use the given
// finished-latency window.
func NewRegistry(window time.Duration) *Registry {
	return &Registry{
		window: window,
		nodes:  xsync.NewMapOf[uint64, *PerNodeTracker](),
	}
}

// GetOrCreate returns the tracker for nodeID, creating one on first
// access. Concurrent callers racing to create the same node's tracker
// all observe the same instance.
func (r *Registry) GetOrCreate(nodeID uint64) *PerNodeTracker {
	tracker, _ := r.nodes.LoadOrCompute(nodeID, func() *PerNodeTracker {
		return NewPerNodeTracker(r.window)
	})
	return tracker
}

// Get returns the tracker for nodeID if one already exists.
func (r *Registry) Get(nodeID uint64) (*PerNodeTracker, bool) {
	return r.nodes.Load(nodeID)
}

// Remove drops the tracker for a node that has left the cluster for
// good (as opposed to a transient resize). NetworkClient never calls it:
// trackers of nodes that leave membership are kept.
func (r *Registry) Remove(nodeID uint64) {
	r.nodes.Delete(nodeID)
}

// NodeIDs returns the set of node IDs currently tracked.
func (r *Registry) NodeIDs() []uint64 {
	ids := make([]uint64, 0, r.nodes.Size())
	r.nodes.Range(func(nodeID uint64, _ *PerNodeTracker) bool {
		ids = append(ids, nodeID)
		return true
	})
	return ids
}
