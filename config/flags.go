package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// wrap is the character width help text is wrapped at.
const wrap = 60

func wrapString(text string) string {
	var lines []string
	var current strings.Builder
	width := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)
		if width > 0 && width+1+wordWidth > wrap {
			lines = append(lines, current.String())
			current.Reset()
			width = 0
		}
		if width > 0 {
			current.WriteString(" ")
			width++
		}
		current.WriteString(word)
		width += wordWidth
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return strings.Join(lines, "\n")
}

// SetupFlags registers every NetworkClientConfig knob as a persistent
// flag on cmd.
func SetupFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.Int("max-connections-per-node", 8, wrapString("Maximum number of pooled sockets per destination node"))
	flags.Int64("connect-timeout-millis", 5000, wrapString("Socket open deadline in milliseconds"))
	flags.Int64("write-timeout-millis", 5000, wrapString("Queued-waiter deadline for write from socket acquisition, in milliseconds"))
	flags.Int64("close-channel-time-millis", -1, wrapString("Connection max age in milliseconds; negative never ages out, zero closes after a single use"))

	flags.Int("stale-request-timeout-mins", 10, wrapString("Minutes a queued write may wait before the sweeper fails it; zero disables the sweeper"))
	flags.Int("stale-request-cleanup-freq-mins", 1, wrapString("How often the stale-queue sweeper runs, in minutes; zero disables it"))

	flags.Int64("request-statistics-window-millis", 60_000, wrapString("Rolling window size for latency percentiles, in milliseconds"))
	flags.Float64("outlier-multiplier", 3, wrapString("Health-score weight applied to a node's pending-request count"))
	flags.Float64("outlier-constant", 50, wrapString("Health-score baseline subtracted before a node is flagged an outlier"))

	flags.Int("response-handler-core-pool-size", 4, wrapString("Core size of the response-callback dispatch pool"))
	flags.Int("response-handler-max-pool-size", 32, wrapString("Max size of the response-callback dispatch pool"))
	flags.Int64("response-handler-keep-alive-millis", 60_000, wrapString("Idle keep-alive for response-callback dispatch workers, in milliseconds"))
	flags.Int("response-handler-max-waiting-queue-size", 1024, wrapString("Maximum queued callbacks awaiting dispatch"))

	flags.String("dark-canary-service-name", "", wrapString("Optional shadow-traffic mirror destination"))
	flags.Bool("duplicates-ok", false, wrapString("Permit a load balancer that returns the same node on consecutive calls"))
	flags.Int("max-retry", 2, wrapString("Maximum retry attempts per logical request"))
}

// Init loads .env / .env.local and wires viper's environment binding.
func Init() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("clusterrpc")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// BindCommandFlags binds cmd's flags into viper.
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// FromViper builds a NetworkClientConfig from whatever viper currently
// holds (flags, env vars, .env files), in that precedence order.
func FromViper() NetworkClientConfig {
	return NetworkClientConfig{
		MaxConnectionsPerNode:               viper.GetInt("max-connections-per-node"),
		ConnectTimeoutMillis:                viper.GetInt64("connect-timeout-millis"),
		WriteTimeoutMillis:                  viper.GetInt64("write-timeout-millis"),
		CloseChannelTimeMillis:              viper.GetInt64("close-channel-time-millis"),
		StaleRequestTimeoutMins:             viper.GetInt("stale-request-timeout-mins"),
		StaleRequestCleanupFreqMins:         viper.GetInt("stale-request-cleanup-freq-mins"),
		RequestStatisticsWindowMillis:       viper.GetInt64("request-statistics-window-millis"),
		OutlierMultiplier:                   viper.GetFloat64("outlier-multiplier"),
		OutlierConstant:                     viper.GetFloat64("outlier-constant"),
		ResponseHandlerCorePoolSize:         viper.GetInt("response-handler-core-pool-size"),
		ResponseHandlerMaxPoolSize:          viper.GetInt("response-handler-max-pool-size"),
		ResponseHandlerKeepAliveMillis:      viper.GetInt64("response-handler-keep-alive-millis"),
		ResponseHandlerMaxWaitingQueueSize:  viper.GetInt("response-handler-max-waiting-queue-size"),
		DarkCanaryServiceName:               viper.GetString("dark-canary-service-name"),
		DuplicatesOk:                        viper.GetBool("duplicates-ok"),
		RetryStrategy:                       NewDefaultRetryPolicy(viper.GetInt("max-retry")),
	}
}
