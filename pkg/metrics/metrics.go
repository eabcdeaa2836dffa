// Package metrics provides Prometheus metrics for vland.
//
// Metrics are exposed on the daemon's metrics listener (see settings
// metrics_addr) under /metrics.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	Namespace = "vland"

	SubsystemReconcile = "reconcile"
	SubsystemSink      = "sink"
	SubsystemAllocator = "allocator"
)

// Result label values.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultFailure  = "failure"
	ResultAck      = "ack"
	ResultNack     = "nack"
)

var (
	registerOnce sync.Once

	// CommitsTotal counts configuration transactions by outcome.
	// Labels: source (user/system/resync), result (success/rejected/failure)
	CommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemReconcile,
			Name:      "commits_total",
			Help:      "Total number of configuration transactions processed",
		},
		[]string{"source", "result"},
	)

	// PassDuration measures one validate-apply-recompute pass.
	PassDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: SubsystemReconcile,
			Name:      "pass_duration_seconds",
			Help:      "Time taken by one reconciliation pass in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	// VLANs reports configured non-internal VLANs by derived state.
	// Labels: oper_state, reason
	VLANs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "vlans",
			Help:      "Number of VLANs by derived operational state",
		},
		[]string{"oper_state", "reason"},
	)

	// SinkUpdatesTotal counts hardware programming attempts.
	// Labels: sink, result (ack/nack)
	SinkUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemSink,
			Name:      "updates_total",
			Help:      "Total number of hardware programming updates by result",
		},
		[]string{"sink", "result"},
	)

	// SinkQueueDepth is the number of VLANs waiting to be programmed.
	SinkQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: SubsystemSink,
			Name:      "queue_depth",
			Help:      "Number of VLAN programs waiting for the hardware sink",
		},
	)

	// InternalVLANsAllocated is the number of held internal VLAN ids.
	InternalVLANsAllocated = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: SubsystemAllocator,
			Name:      "allocated",
			Help:      "Number of internal VLAN ids currently allocated",
		},
	)

	// InternalVLANsAvailable is the number of free ids in the active range.
	InternalVLANsAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: SubsystemAllocator,
			Name:      "available",
			Help:      "Number of free internal VLAN ids in the configured range",
		},
	)
)

// Register registers all metrics with the default Prometheus registry.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CommitsTotal,
			PassDuration,
			VLANs,
			SinkUpdatesTotal,
			SinkQueueDepth,
			InternalVLANsAllocated,
			InternalVLANsAvailable,
		)
	})
}

// Handler returns the HTTP handler serving registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCommit counts one transaction.
func RecordCommit(source string, err error, rejected bool) {
	result := ResultSuccess
	switch {
	case rejected:
		result = ResultRejected
	case err != nil:
		result = ResultFailure
	}
	CommitsTotal.WithLabelValues(source, result).Inc()
}

// RecordPass records a reconciliation pass duration.
func RecordPass(d time.Duration) {
	PassDuration.Observe(d.Seconds())
}

// RecordSinkUpdate counts one hardware programming attempt.
func RecordSinkUpdate(sink string, err error) {
	result := ResultAck
	if err != nil {
		result = ResultNack
	}
	SinkUpdatesTotal.WithLabelValues(sink, result).Inc()
}

// SetVLANStates replaces the per-state VLAN gauge. counts is keyed by
// oper_state and reason.
func SetVLANStates(counts map[[2]string]int) {
	VLANs.Reset()
	for k, n := range counts {
		VLANs.WithLabelValues(k[0], k[1]).Set(float64(n))
	}
}

// SetPool updates the allocator gauges.
func SetPool(allocated, available int) {
	InternalVLANsAllocated.Set(float64(allocated))
	InternalVLANsAvailable.Set(float64(available))
}
