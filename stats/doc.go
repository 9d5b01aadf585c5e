// Package stats implements the rolling latency / pending-request
// statistics engine (spec §4.4): a per-node sliding window of finished
// request latencies plus a pending-request start-time map, percentile and
// RPS queries over the window, and a CAS-gated TTL cache layer so heavy
// read traffic (load-balancer decisions, metric scrapes) does not
// recompute the underlying sorted array on every call.
//
// The finished-latency window and percentile math are bespoke - the
// spec's exact invariants (time-windowed elision on read, value at index
// ⌊p·n⌋ of the sorted window) have no off-the-shelf equivalent in the
// example pack's histogram libraries, which use fixed-bucket or
// exponentially-decaying reservoirs instead of a literal sliding window.
// The observability *export* surface built on top of the window,
// however, is wired to two real metrics libraries - see metrics.go.
package stats
