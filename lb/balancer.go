package lb

import "github.com/clusterrpc/clusterrpc/cluster"

// LoadBalancer is built fresh from every membership snapshot and
// replaced wholesale - never mutated in place - by the network client.
type LoadBalancer interface {
	// NextNode returns a candidate Node satisfying both capability
	// masks, or false if none is available. DuplicatesOk in the network
	// client config permits a degenerate implementation that returns the
	// same node on every call.
	NextNode(capability, persistentCapability cluster.Capability) (cluster.Node, bool)
}

// Factory builds a LoadBalancer from a membership snapshot. Construction
// can fail (e.g. an implementation that rejects an empty snapshot or an
// invariant violation in the supplied endpoints); the network client
// stores that error and fails fast on subsequent sends rather than
// racing the next snapshot.
type Factory interface {
	New(snapshot cluster.Snapshot) (LoadBalancer, error)
}

// FactoryFunc adapts a plain function to Factory.
type FactoryFunc func(snapshot cluster.Snapshot) (LoadBalancer, error)

func (f FactoryFunc) New(snapshot cluster.Snapshot) (LoadBalancer, error) {
	return f(snapshot)
}
