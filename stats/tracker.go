package stats

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const cacheTTL = 50 * time.Millisecond

// PerNodeTracker accumulates latency and in-flight request state for a
// single cluster node. One tracker lives per node for the lifetime of a
// network client; it survives across load-balancer rebuilds so history
// is not lost on every membership change.
type PerNodeTracker struct {
	window  *finishedWindow
	pending *pendingMap

	rpsCache     *cacheMaintainer[float64]
	pendingCache *cacheMaintainer[int]

	percentilesMu sync.Mutex
	percentiles   map[float64]*cacheMaintainer[float64]
}

// NewPerNodeTracker builds a tracker whose finished-request window
// spans the given duration (RequestStatisticsWindowMillis in the
// network client config).
func NewPerNodeTracker(window time.Duration) *PerNodeTracker {
	return &PerNodeTracker{
		window:       newFinishedWindow(window),
		pending:      newPendingMap(),
		rpsCache:     newCacheMaintainer[float64](cacheTTL),
		pendingCache: newCacheMaintainer[int](cacheTTL),
		percentiles:  make(map[float64]*cacheMaintainer[float64]),
	}
}

// BeginRequest records that a request with the given correlation id was
// dispatched to this node at the given time.
func (t *PerNodeTracker) BeginRequest(id uuid.UUID, at time.Time) {
	t.pending.begin(id, at)
}

// EndRequest records that the in-flight request with the given
// correlation id finished at the given time, moving it from pending
// into the finished-latency window. A request that was never begun (or
// already ended once) is a no-op, guarding against double-completion.
func (t *PerNodeTracker) EndRequest(id uuid.UUID, at time.Time) {
	startedAt, ok := t.pending.end(id)
	if !ok {
		return
	}
	latencyMs := at.Sub(startedAt).Milliseconds()
	if latencyMs < 0 {
		latencyMs = 0
	}
	t.window.record(at, latencyMs)
}

// Percentile returns the p-th percentile (p in [0, 1]) finished latency
// in milliseconds, cached per distinct p value for cacheTTL.
func (t *PerNodeTracker) Percentile(now time.Time, p float64) float64 {
	t.percentilesMu.Lock()
	cache, ok := t.percentiles[p]
	if !ok {
		cache = newCacheMaintainer[float64](cacheTTL)
		t.percentiles[p] = cache
	}
	t.percentilesMu.Unlock()

	return cache.get(now, func() float64 {
		return percentile(t.window.snapshot(now), p)
	})
}

// RPS returns the requests-per-second figure over the last second,
// cached for cacheTTL.
func (t *PerNodeTracker) RPS(now time.Time) float64 {
	return t.rpsCache.get(now, func() float64 {
		return t.window.rps(now)
	})
}

// PendingCount returns the number of in-flight requests currently
// dispatched to this node, cached for cacheTTL.
func (t *PerNodeTracker) PendingCount(now time.Time) int {
	return t.pendingCache.get(now, func() int {
		return t.pending.count()
	})
}

// HealthScore combines tail latency and queue depth into a single
// figure where 0 is healthy and increasing values mean increasingly
// degraded; a node is considered an outlier once its score exceeds
// outlierConstant (the multiplier scales how heavily pending requests
// count against the node relative to its own p99).
func (t *PerNodeTracker) HealthScore(now time.Time, outlierMultiplier, outlierConstant float64) float64 {
	p99 := t.Percentile(now, 0.99)
	pending := float64(t.PendingCount(now))
	return p99 + outlierMultiplier*pending - outlierConstant
}
