// Package rpcerrors defines the closed taxonomy of errors produced by the
// client runtime (spec §7) plus the RequestAccess capability that lets the
// retry trampoline recover the failing request record from an error
// without a type switch over every pool-layer error.
package rpcerrors
