// Package lb defines the LoadBalancer external collaborator (spec §3/§6):
// a snapshot-immutable object built from an Endpoint set by a replaceable
// Factory, exposing a single NextNode query. This module treats load
// balancer *policy* as out of scope, but a default smooth weighted
// round-robin implementation is provided so the network client is
// runnable end-to-end without a caller having to supply their own.
package lb
