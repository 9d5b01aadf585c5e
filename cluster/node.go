package cluster

import "fmt"

// Node is an addressable peer in the cluster. Identity equality is by ID
// alone; a node whose address changed is a different Node as far as the
// pool registry is concerned and requires an explicit remove + re-add by
// the membership layer.
type Node struct {
	ID   uint64
	Host string
	Port int
}

// Addr returns the host:port string used to dial this node.
func (n Node) Addr() string {
	return fmt.Sprintf("%s:%d", n.Host, n.Port)
}

// Equal reports whether two nodes share the same identity.
func (n Node) Equal(other Node) bool {
	return n.ID == other.ID
}

func (n Node) String() string {
	return fmt.Sprintf("node(%d@%s)", n.ID, n.Addr())
}
