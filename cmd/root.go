package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clusterrpc/clusterrpc"
	"github.com/clusterrpc/clusterrpc/backoff"
	"github.com/clusterrpc/clusterrpc/cluster"
	"github.com/clusterrpc/clusterrpc/config"
	"github.com/clusterrpc/clusterrpc/internal/rpclog"
	"github.com/clusterrpc/clusterrpc/lb"
	"github.com/clusterrpc/clusterrpc/pool"
)

const Version = "0.1.0"

// RootCmd is the base command when clusterrpcctl is called without any
// subcommands.
var RootCmd = &cobra.Command{
	Use:   "clusterrpcctl",
	Short: "operator CLI for a cluster RPC endpoint list",
	Long: fmt.Sprintf(`clusterrpcctl (v%s)

A small command-line client over the clusterrpc NetworkClient: point it
at a comma-separated endpoint list and send unary or fire-and-forget
messages without writing a Go program.`, Version),
	PersistentPreRunE: bindFlags,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the clusterrpcctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("clusterrpcctl v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(config.Init)
	config.SetupFlags(RootCmd)

	key := "endpoints"
	RootCmd.PersistentFlags().String(key, "127.0.0.1:9000", "Comma-separated list of node_id@host:port, or host:port (sequential ids assigned)")
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "info", "Log level (debug, info, warning, error)")

	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(sendCmd)
	RootCmd.AddCommand(fireCmd)
}

func bindFlags(cmd *cobra.Command, _ []string) error {
	if err := config.BindCommandFlags(cmd); err != nil {
		return err
	}
	rpclog.Init(viper.GetString("log-level"))
	return nil
}

// Execute runs RootCmd. Called once by main.main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// parseEndpoints turns the --endpoints flag into a cluster.Snapshot with
// every endpoint granted the zero capability mask (so default calls with
// capability=0 always match), one entry per comma-separated item.
func parseEndpoints() (cluster.Snapshot, error) {
	raw := viper.GetString("endpoints")
	parts := strings.Split(raw, ",")

	snapshot := cluster.Snapshot{Endpoints: make([]cluster.Endpoint, 0, len(parts))}
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id := uint64(i + 1)
		addr := part
		if at := strings.Index(part, "@"); at >= 0 {
			parsedID, err := strconv.ParseUint(part[:at], 10, 64)
			if err != nil {
				return cluster.Snapshot{}, fmt.Errorf("invalid node id in %q: %w", part, err)
			}
			id = parsedID
			addr = part[at+1:]
		}

		host, portStr, err := splitHostPort(addr)
		if err != nil {
			return cluster.Snapshot{}, fmt.Errorf("invalid endpoint %q: %w", part, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return cluster.Snapshot{}, fmt.Errorf("invalid port in %q: %w", part, err)
		}

		snapshot.Endpoints = append(snapshot.Endpoints, cluster.Endpoint{
			Node: cluster.Node{ID: id, Host: host, Port: port},
		})
	}

	if len(snapshot.Endpoints) == 0 {
		return cluster.Snapshot{}, fmt.Errorf("no endpoints parsed from %q", raw)
	}
	return snapshot, nil
}

func splitHostPort(addr string) (string, string, error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("expected host:port")
	}
	return addr[:idx], addr[idx+1:], nil
}

// newClient builds a NetworkClient wired from the bound flags: a
// TCP connector with the default socket tuning, a no-op circuit breaker
// (the CLI is a one-shot tool, not a long-lived process worth tripping
// breakers for), and a smooth round-robin load balancer over whatever
// --endpoints resolved to.
func newClient() (*clusterrpc.NetworkClient, error) {
	snapshot, err := parseEndpoints()
	if err != nil {
		return nil, err
	}

	cfg := config.FromViper()
	connector := pool.NewTCPConnector(pool.DefaultTCPSettings())
	client := clusterrpc.New(cfg, lb.NewRoundRobinFactory(backoff.Noop{}), backoff.Noop{}, connector)
	client.UpdateMembership(snapshot)
	return client, nil
}
