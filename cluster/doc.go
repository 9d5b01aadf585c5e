// Package cluster defines the identity types shared by every layer of the
// RPC client: Node (an addressable peer) and Endpoint (a Node plus the
// capability bitmasks the load balancer consults). Both types are
// immutable snapshots handed down from the membership layer, which is an
// external collaborator not implemented in this module.
package cluster
