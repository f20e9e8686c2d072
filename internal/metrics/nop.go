// Package metrics provides MetricsCollector implementations for the
// changefeed library.
package metrics

import "github.com/benoit160/changefeed/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external metrics
// collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// LeaseMetrics implementation

// RecordLeaseAcquired discards the lease acquisition metric.
func (n *NopMetrics) RecordLeaseAcquired(_ /* partitionID */ string, _ /* stolen */ bool) {
	// No-op
}

// RecordLeaseReleased discards the lease release metric.
func (n *NopMetrics) RecordLeaseReleased(_ /* partitionID */ string) {
	// No-op
}

// RecordLeaseLost discards the lease loss metric.
func (n *NopMetrics) RecordLeaseLost(_ /* partitionID */ string) {
	// No-op
}

// RecordLeaseRenewal discards the renewal outcome metric.
func (n *NopMetrics) RecordLeaseRenewal(_ /* success */ bool) {
	// No-op
}

// RecordOwnedLeases discards the owned lease count metric.
func (n *NopMetrics) RecordOwnedLeases(_ /* count */ int) {
	// No-op
}

// RecordStoreOperationDuration discards the store operation duration metric.
func (n *NopMetrics) RecordStoreOperationDuration(_ /* operation */ string, _ /* duration */ float64) {
	// No-op
}

// PumpMetrics implementation

// RecordBatchDelivered discards the batch delivery metric.
func (n *NopMetrics) RecordBatchDelivered(_ /* partitionID */ string, _ /* items */ int, _ /* duration */ float64) {
	// No-op
}

// RecordHandlerFailure discards the handler failure metric.
func (n *NopMetrics) RecordHandlerFailure(_ /* partitionID */ string) {
	// No-op
}

// RecordCheckpoint discards the checkpoint metric.
func (n *NopMetrics) RecordCheckpoint(_ /* partitionID */ string, _ /* duration */ float64) {
	// No-op
}

// EstimatorMetrics implementation

// RecordBacklog discards the backlog gauge metric.
func (n *NopMetrics) RecordBacklog(_ /* partitionID */ string, _ /* pending */ int64) {
	// No-op
}
