// Package pool implements the per-node channel pool (§4.1): bounded
// concurrency to a single destination address, idle-socket reuse, a
// FIFO of writes waiting for a free socket, a stale-entry sweeper, and
// open/write deadline enforcement. The design is grounded on the
// teacher's base.clientTransport (round-robin connection reuse,
// correlation via a concurrent map, reader-goroutine-per-socket), bent
// from "N round-robin sockets to one endpoint" into "bounded pool plus
// waiting-writes queue" to match this package's capacity and
// back-pressure requirements.
package pool
