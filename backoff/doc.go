// Package backoff implements the error-backoff strategy external
// collaborator described in spec §4.1/§4.3.1: something the channel pool
// tells about connect/write failures and something the load balancer
// consults to mask an unhealthy node for a cooldown window. The default
// implementation is a per-node circuit breaker.
package backoff
