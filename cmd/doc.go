// Package cmd implements the clusterrpcctl command-line interface: a
// thin operator tool for exercising a cluster RPC endpoint list by hand
// (send a unary request, fire a one-way message) without writing a Go
// program against the NetworkClient API directly.
package cmd
