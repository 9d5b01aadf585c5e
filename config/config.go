package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clusterrpc/clusterrpc/pool"
	"github.com/clusterrpc/clusterrpc/rpcerrors"
)

// RetryPolicy is the pluggable retry strategy from spec §6: which error
// kinds are worth retrying at all (a NullArgument or DeserializationError
// will never succeed on a different node, for instance), plus a
// MaxAttempts figure. NetworkClient consults only Retriable; the number
// of retries a request gets is the maxRetry argument to SendRequest, and
// MaxAttempts is reported by NetworkClientConfig.String but not enforced.
type RetryPolicy interface {
	MaxAttempts() int
	Retriable(kind rpcerrors.Kind) bool
}

// defaultRetryPolicy treats every kind except the caller-error kinds as
// retriable and reports maxAttempts from MaxAttempts.
type defaultRetryPolicy struct {
	maxAttempts int
}

// NewDefaultRetryPolicy builds a RetryPolicy that treats any
// request-carrying failure except NullArgument and
// DeserializationError as retriable, with MaxAttempts returning
// maxAttempts.
func NewDefaultRetryPolicy(maxAttempts int) RetryPolicy {
	return defaultRetryPolicy{maxAttempts: maxAttempts}
}

func (p defaultRetryPolicy) MaxAttempts() int { return p.maxAttempts }

func (p defaultRetryPolicy) Retriable(kind rpcerrors.Kind) bool {
	switch kind {
	case rpcerrors.KindNullArgument, rpcerrors.KindDeserializationError:
		return false
	default:
		return true
	}
}

// NetworkClientConfig holds every tuning knob spec §6 names.
type NetworkClientConfig struct {
	MaxConnectionsPerNode int
	ConnectTimeoutMillis  int64
	WriteTimeoutMillis    int64
	// CloseChannelTimeMillis: < 0 never ages out, 0 closes after a
	// single use, > 0 closes once a socket's age exceeds this value.
	CloseChannelTimeMillis int64

	// StaleRequestTimeoutMins / StaleRequestCleanupFreqMins: 0 disables
	// the stale-queue sweeper entirely.
	StaleRequestTimeoutMins     int
	StaleRequestCleanupFreqMins int

	RequestStatisticsWindowMillis int64
	OutlierMultiplier             float64
	OutlierConstant               float64

	ResponseHandlerCorePoolSize        int
	ResponseHandlerMaxPoolSize         int
	ResponseHandlerKeepAliveMillis     int64
	ResponseHandlerMaxWaitingQueueSize int

	// DarkCanaryServiceName optionally mirrors traffic to a shadow
	// destination; out of core scope (spec §1), carried here only as a
	// configuration placeholder for that external collaborator.
	DarkCanaryServiceName string

	// DuplicatesOk permits a degenerate load balancer that returns the
	// same node on consecutive calls (e.g. a single-node cluster).
	DuplicatesOk bool

	RetryStrategy RetryPolicy
}

// Default returns a NetworkClientConfig with conservative production
// defaults: sockets never age out, a 5-second connect/write budget, a
// 10-minute stale sweep every minute, a 1-minute statistics window, and
// a default RetryPolicy whose MaxAttempts is 2.
func Default() NetworkClientConfig {
	return NetworkClientConfig{
		MaxConnectionsPerNode:               8,
		ConnectTimeoutMillis:                5000,
		WriteTimeoutMillis:                  5000,
		CloseChannelTimeMillis:              -1,
		StaleRequestTimeoutMins:             10,
		StaleRequestCleanupFreqMins:         1,
		RequestStatisticsWindowMillis:       60_000,
		OutlierMultiplier:                   3,
		OutlierConstant:                     50,
		ResponseHandlerCorePoolSize:         4,
		ResponseHandlerMaxPoolSize:          32,
		ResponseHandlerKeepAliveMillis:      60_000,
		ResponseHandlerMaxWaitingQueueSize:  1024,
		DuplicatesOk:                        false,
		RetryStrategy:                       NewDefaultRetryPolicy(2),
	}
}

// ToPoolConfig narrows NetworkClientConfig to the fields a ChannelPool
// itself consumes.
func (c NetworkClientConfig) ToPoolConfig() pool.Config {
	return pool.Config{
		MaxConnectionsPerNode:       c.MaxConnectionsPerNode,
		ConnectTimeoutMillis:        c.ConnectTimeoutMillis,
		WriteTimeoutMillis:          c.WriteTimeoutMillis,
		CloseChannelTimeMillis:      c.CloseChannelTimeMillis,
		StaleRequestTimeoutMins:     c.StaleRequestTimeoutMins,
		StaleRequestCleanupFreqMins: c.StaleRequestCleanupFreqMins,
	}
}

// String returns a formatted representation grouped by section.
func (c NetworkClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-32s: %s\n", name, value))
	}

	addSection("Channel Pool")
	addField("Max Connections Per Node", strconv.Itoa(c.MaxConnectionsPerNode))
	addField("Connect Timeout", fmt.Sprintf("%d ms", c.ConnectTimeoutMillis))
	addField("Write Timeout", fmt.Sprintf("%d ms", c.WriteTimeoutMillis))
	addField("Close Channel Time", fmt.Sprintf("%d ms", c.CloseChannelTimeMillis))

	addSection("Stale Sweeper")
	addField("Stale Request Timeout", fmt.Sprintf("%d min", c.StaleRequestTimeoutMins))
	addField("Stale Cleanup Frequency", fmt.Sprintf("%d min", c.StaleRequestCleanupFreqMins))

	addSection("Statistics")
	addField("Window", fmt.Sprintf("%d ms", c.RequestStatisticsWindowMillis))
	addField("Outlier Multiplier", fmt.Sprintf("%.2f", c.OutlierMultiplier))
	addField("Outlier Constant", fmt.Sprintf("%.2f", c.OutlierConstant))

	addSection("Response Handler")
	addField("Core Pool Size", strconv.Itoa(c.ResponseHandlerCorePoolSize))
	addField("Max Pool Size", strconv.Itoa(c.ResponseHandlerMaxPoolSize))
	addField("Keep Alive", fmt.Sprintf("%d ms", c.ResponseHandlerKeepAliveMillis))
	addField("Max Waiting Queue Size", strconv.Itoa(c.ResponseHandlerMaxWaitingQueueSize))

	addSection("Misc")
	addField("Dark Canary Service", c.DarkCanaryServiceName)
	addField("Duplicates OK", fmt.Sprintf("%t", c.DuplicatesOk))
	if c.RetryStrategy != nil {
		addField("Max Retry Attempts", strconv.Itoa(c.RetryStrategy.MaxAttempts()))
	}

	return sb.String()
}
