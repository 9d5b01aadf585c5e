package cluster

// Capability is a bitmask consulted by a LoadBalancer's NextNode query.
// Two independent masks exist on an Endpoint: Capability is transient
// (derived from live health signals) and PersistentCapability is sticky
// for the lifetime of the membership snapshot (derived from static
// configuration such as "this node serves writes").
type Capability uint64

// Has reports whether all bits in want are set in c.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// Endpoint is a Node plus the capability bitmasks the load balancer uses
// to filter candidates. Endpoints are immutable for the lifetime of a
// single membership snapshot; a new snapshot produces entirely new
// Endpoint values, never in-place mutation.
type Endpoint struct {
	Node                 Node
	Capability           Capability
	PersistentCapability Capability
}

// Snapshot is an immutable set of Endpoints representing one membership
// view. The membership/discovery layer that produces a stream of these is
// an external collaborator - out of scope for this module.
type Snapshot struct {
	Endpoints []Endpoint
}

// NodeSet returns the set of Node identities present in this snapshot,
// keyed by Node.ID. Used by the pool registry to compute which pools to
// tear down on membership change.
func (s Snapshot) NodeSet() map[uint64]Node {
	out := make(map[uint64]Node, len(s.Endpoints))
	for _, ep := range s.Endpoints {
		out[ep.Node.ID] = ep.Node
	}
	return out
}
