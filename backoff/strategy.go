package backoff

import "github.com/clusterrpc/clusterrpc/cluster"

// Strategy is the error-backoff collaborator. The channel pool calls
// NotifyFailure on connect/write errors; a LoadBalancer implementation is
// expected to call Available when deciding whether a candidate node
// should be offered by NextNode. This spec treats load-balancer policy as
// an external collaborator, but a Strategy implementation ships here
// because the pool layer has a hard dependency on *some* NotifyFailure
// sink even when the caller supplies its own LoadBalancer.
type Strategy interface {
	// NotifyFailure records a connect or write failure against node.
	NotifyFailure(node cluster.Node)

	// NotifySuccess records a successful write/response against node,
	// allowing a tripped breaker to recover.
	NotifySuccess(node cluster.Node)

	// Available reports whether node should currently be considered a
	// candidate by a load balancer.
	Available(node cluster.Node) bool
}

// Noop never marks a node unavailable. Useful for tests and for callers
// that implement their own external health signal.
type Noop struct{}

func (Noop) NotifyFailure(cluster.Node) {}
func (Noop) NotifySuccess(cluster.Node) {}
func (Noop) Available(cluster.Node) bool { return true }
