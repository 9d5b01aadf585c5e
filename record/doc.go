// Package record defines the Request record: the value that flows from
// the network client down through the channel pool to the wire and back.
// A Request carries everything the pool and retry layers need without
// any of them reaching back into application-level message types -
// payload bytes, destination node, correlation id, retry attempt count,
// and a completion continuation invoked exactly once.
package record
