package stats

import (
	"fmt"
	"io"
	"time"

	vmetrics "github.com/VictoriaMetrics/metrics"
	rcmetrics "github.com/rcrowley/go-metrics"
)

// Exporter is the observability surface built on top of a Registry. It
// keeps two distinct metrics backends, each doing the job it is good
// at: rcrowley/go-metrics owns cheap, hot-path counters updated on
// every request (no allocation, no label formatting); VictoriaMetrics's
// metrics owns the labeled per-node gauges scraped far less often, where
// the cost of formatting a metric name with a node-id label is
// negligible next to a Prometheus scrape interval.
//
// A private *vmetrics.Set is used instead of the package-level default
// set so that multiple NetworkClient instances - as created routinely
// in tests - never collide over a shared metric name.
type Exporter struct {
	rc rcmetrics.Registry
	vm *vmetrics.Set

	sent    rcmetrics.Counter
	failed  rcmetrics.Counter
	retried rcmetrics.Counter
}

// NewExporter builds an Exporter with its counters pre-registered.
func NewExporter() *Exporter {
	rc := rcmetrics.NewRegistry()
	e := &Exporter{
		rc:      rc,
		vm:      vmetrics.NewSet(),
		sent:    rcmetrics.NewCounter(),
		failed:  rcmetrics.NewCounter(),
		retried: rcmetrics.NewCounter(),
	}
	rc.Register("clusterrpc.requests.sent", e.sent)
	rc.Register("clusterrpc.requests.failed", e.failed)
	rc.Register("clusterrpc.requests.retried", e.retried)
	return e
}

func (e *Exporter) RequestSent()    { e.sent.Inc(1) }
func (e *Exporter) RequestFailed()  { e.failed.Inc(1) }
func (e *Exporter) RequestRetried() { e.retried.Inc(1) }

// RegisterNodeGauges wires per-node p99 latency, RPS and pending-count
// gauges for nodeID into the exporter's VictoriaMetrics set, reading
// live values from the given Registry on every scrape. Calling it twice
// for the same node is a programmer error in the owning pool/registry
// wiring; not guarded against here.
func (e *Exporter) RegisterNodeGauges(registry *Registry, nodeID uint64) {
	labels := fmt.Sprintf(`{node="%d"}`, nodeID)

	e.vm.NewGauge("clusterrpc_node_p99_latency_ms"+labels, func() float64 {
		tracker, ok := registry.Get(nodeID)
		if !ok {
			return 0
		}
		return tracker.Percentile(time.Now(), 0.99)
	})
	e.vm.NewGauge("clusterrpc_node_rps"+labels, func() float64 {
		tracker, ok := registry.Get(nodeID)
		if !ok {
			return 0
		}
		return tracker.RPS(time.Now())
	})
	e.vm.NewGauge("clusterrpc_node_pending"+labels, func() float64 {
		tracker, ok := registry.Get(nodeID)
		if !ok {
			return 0
		}
		return float64(tracker.PendingCount(time.Now()))
	})
}

// WritePrometheus writes the VictoriaMetrics-backed gauges in
// Prometheus exposition format.
func (e *Exporter) WritePrometheus(w io.Writer) {
	e.vm.WritePrometheus(w)
}

// RCRegistry exposes the underlying rcrowley registry so a process can
// fold it into its own metrics.Log / graphite reporter.
func (e *Exporter) RCRegistry() rcmetrics.Registry {
	return e.rc
}
