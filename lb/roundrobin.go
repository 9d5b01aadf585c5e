package lb

import (
	"sync"

	"github.com/clusterrpc/clusterrpc/backoff"
	"github.com/clusterrpc/clusterrpc/cluster"
)

// NewRoundRobinFactory builds a Factory producing a smooth weighted
// round-robin LoadBalancer over each snapshot's endpoints, skipping any
// node the supplied Strategy currently reports unavailable. Weight is
// fixed at 1 per endpoint (plain round robin); the smoothing bookkeeping
// is kept so a future weighted policy is a drop-in change.
func NewRoundRobinFactory(strategy backoff.Strategy) Factory {
	if strategy == nil {
		strategy = backoff.Noop{}
	}
	return FactoryFunc(func(snapshot cluster.Snapshot) (LoadBalancer, error) {
		return &roundRobinBalancer{
			endpoints:      append([]cluster.Endpoint(nil), snapshot.Endpoints...),
			strategy:       strategy,
			currentWeights: make(map[uint64]float64),
		}, nil
	})
}

type roundRobinBalancer struct {
	endpoints []cluster.Endpoint
	strategy  backoff.Strategy

	mu             sync.Mutex
	currentWeights map[uint64]float64
	fallbackIndex  int
}

func (b *roundRobinBalancer) NextNode(capability, persistentCapability cluster.Capability) (cluster.Node, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	type candidate struct {
		node   cluster.Node
		weight float64
	}

	candidates := make([]candidate, 0, len(b.endpoints))
	for _, ep := range b.endpoints {
		if !ep.Capability.Has(capability) || !ep.PersistentCapability.Has(persistentCapability) {
			continue
		}
		if !b.strategy.Available(ep.Node) {
			continue
		}
		candidates = append(candidates, candidate{node: ep.Node, weight: 1})
	}

	if len(candidates) == 0 {
		return cluster.Node{}, false
	}

	totalWeight := 0.0
	for _, c := range candidates {
		totalWeight += c.weight
	}
	if totalWeight <= 0 {
		chosen := candidates[b.fallbackIndex%len(candidates)].node
		b.fallbackIndex++
		return chosen, true
	}

	var chosenNode cluster.Node
	var maxWeight float64
	seenAny := false
	for _, c := range candidates {
		b.currentWeights[c.node.ID] += c.weight
		if !seenAny || b.currentWeights[c.node.ID] > maxWeight {
			maxWeight = b.currentWeights[c.node.ID]
			chosenNode = c.node
			seenAny = true
		}
	}
	b.currentWeights[chosenNode.ID] -= totalWeight
	b.fallbackIndex = 0

	return chosenNode, true
}
