package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/benoit160/changefeed/types"
)

// PrometheusCollector implements types.MetricsCollector backed by
// Prometheus.
//
// Registration is deferred until the first recording so that constructing
// the collector never panics on duplicate registration in tests.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	leaseAcquisitions  *prometheus.CounterVec
	leaseReleases      prometheus.Counter
	leaseLosses        prometheus.Counter
	leaseRenewals      *prometheus.CounterVec
	ownedLeases        prometheus.Gauge
	storeOpLatency     *prometheus.HistogramVec
	batchesDelivered   prometheus.Counter
	changesDelivered   prometheus.Counter
	handlerLatency     prometheus.Histogram
	handlerFailures    *prometheus.CounterVec
	checkpointLatency  prometheus.Histogram
	partitionBacklog   *prometheus.GaugeVec
}

// Compile-time assertion that PrometheusCollector implements
// MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Metrics namespace (defaults to "changefeed" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "changefeed"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.leaseAcquisitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lease",
			Name:      "acquisitions_total",
			Help:      "Total lease acquisitions by kind (unowned|stolen).",
		}, []string{"kind"})

		p.leaseReleases = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lease",
			Name:      "releases_total",
			Help:      "Total voluntary lease releases (shutdown or balancing shed).",
		})

		p.leaseLosses = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lease",
			Name:      "losses_total",
			Help:      "Total involuntary lease losses detected via version conflicts.",
		})

		p.leaseRenewals = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lease",
			Name:      "renewals_total",
			Help:      "Total lease renewal attempts by result (success|failure).",
		}, []string{"result"})

		p.ownedLeases = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "lease",
			Name:      "owned_current",
			Help:      "Current number of leases owned by this instance.",
		})

		p.storeOpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "lease",
			Name:      "store_operation_seconds",
			Help:      "Lease store operation latency in seconds by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~4s
		}, []string{"op"})

		p.batchesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "pump",
			Name:      "batches_delivered_total",
			Help:      "Total change batches successfully handed to the handler.",
		})

		p.changesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "pump",
			Name:      "changes_delivered_total",
			Help:      "Total individual changes delivered across all batches.",
		})

		p.handlerLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "pump",
			Name:      "handler_seconds",
			Help:      "User handler execution time per batch in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~20s
		})

		p.handlerFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "pump",
			Name:      "handler_failures_total",
			Help:      "Total user handler failures by partition.",
		}, []string{"partition"})

		p.checkpointLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "pump",
			Name:      "checkpoint_seconds",
			Help:      "Checkpoint write latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		})

		p.partitionBacklog = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "estimator",
			Name:      "backlog_changes",
			Help:      "Estimated undelivered changes per partition.",
		}, []string{"partition"})

		p.reg.MustRegister(p.leaseAcquisitions)
		p.reg.MustRegister(p.leaseReleases)
		p.reg.MustRegister(p.leaseLosses)
		p.reg.MustRegister(p.leaseRenewals)
		p.reg.MustRegister(p.ownedLeases)
		p.reg.MustRegister(p.storeOpLatency)
		p.reg.MustRegister(p.batchesDelivered)
		p.reg.MustRegister(p.changesDelivered)
		p.reg.MustRegister(p.handlerLatency)
		p.reg.MustRegister(p.handlerFailures)
		p.reg.MustRegister(p.checkpointLatency)
		p.reg.MustRegister(p.partitionBacklog)
	})
}

// LeaseMetrics implementation

// RecordLeaseAcquired increments the acquisition counter by kind.
func (p *PrometheusCollector) RecordLeaseAcquired(_ string, stolen bool) {
	p.ensureRegistered()
	kind := "unowned"
	if stolen {
		kind = "stolen"
	}
	p.leaseAcquisitions.WithLabelValues(kind).Inc()
}

// RecordLeaseReleased increments the voluntary release counter.
func (p *PrometheusCollector) RecordLeaseReleased(_ string) {
	p.ensureRegistered()
	p.leaseReleases.Inc()
}

// RecordLeaseLost increments the involuntary loss counter.
func (p *PrometheusCollector) RecordLeaseLost(_ string) {
	p.ensureRegistered()
	p.leaseLosses.Inc()
}

// RecordLeaseRenewal increments the renewal counter by result.
func (p *PrometheusCollector) RecordLeaseRenewal(success bool) {
	p.ensureRegistered()
	result := "failure"
	if success {
		result = "success"
	}
	p.leaseRenewals.WithLabelValues(result).Inc()
}

// RecordOwnedLeases sets the owned lease gauge.
func (p *PrometheusCollector) RecordOwnedLeases(count int) {
	p.ensureRegistered()
	p.ownedLeases.Set(float64(count))
}

// RecordStoreOperationDuration observes lease store operation latency.
func (p *PrometheusCollector) RecordStoreOperationDuration(operation string, duration float64) {
	p.ensureRegistered()
	p.storeOpLatency.WithLabelValues(operation).Observe(duration)
}

// PumpMetrics implementation

// RecordBatchDelivered records a delivered batch and its handler latency.
func (p *PrometheusCollector) RecordBatchDelivered(_ string, items int, duration float64) {
	p.ensureRegistered()
	p.batchesDelivered.Inc()
	p.changesDelivered.Add(float64(items))
	p.handlerLatency.Observe(duration)
}

// RecordHandlerFailure increments the handler failure counter.
func (p *PrometheusCollector) RecordHandlerFailure(partitionID string) {
	p.ensureRegistered()
	p.handlerFailures.WithLabelValues(partitionID).Inc()
}

// RecordCheckpoint observes checkpoint write latency.
func (p *PrometheusCollector) RecordCheckpoint(_ string, duration float64) {
	p.ensureRegistered()
	p.checkpointLatency.Observe(duration)
}

// EstimatorMetrics implementation

// RecordBacklog sets the per-partition backlog gauge.
func (p *PrometheusCollector) RecordBacklog(partitionID string, pending int64) {
	p.ensureRegistered()
	p.partitionBacklog.WithLabelValues(partitionID).Set(float64(pending))
}
