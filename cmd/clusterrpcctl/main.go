// Command clusterrpcctl is the operator CLI entry point.
package main

import "github.com/clusterrpc/clusterrpc/cmd"

func main() {
	cmd.Execute()
}
