// Package clusterrpc is the client-side core of a cluster RPC runtime:
// it turns application messages into length-prefixed frames on pooled
// TCP connections to peer nodes, correlates asynchronous responses back
// to their callers, retries through a freshly load-balanced node on
// failure, and feeds per-node latency statistics back to the load
// balancer.
//
// NetworkClient is the single entry point; membership discovery and
// load-balancer policy are supplied by the caller (lb.Factory) rather
// than owned here, matching the module boundary this package is scoped
// to.
package clusterrpc
