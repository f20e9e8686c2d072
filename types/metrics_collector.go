package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better
// modularity.
type MetricsCollector interface {
	LeaseMetrics
	PumpMetrics
	EstimatorMetrics
}

// LeaseMetrics defines metrics for lease management and balancing.
type LeaseMetrics interface {
	// RecordLeaseAcquired records a successful lease acquisition.
	// stolen is true when the lease was taken from another live instance
	// during a balancing pass.
	RecordLeaseAcquired(partitionID string, stolen bool)

	// RecordLeaseReleased records a voluntary lease release (shutdown or
	// balancing shed).
	RecordLeaseReleased(partitionID string)

	// RecordLeaseLost records an involuntary ownership loss detected
	// through a version conflict.
	RecordLeaseLost(partitionID string)

	// RecordLeaseRenewal records a renewal attempt outcome.
	RecordLeaseRenewal(success bool)

	// RecordOwnedLeases sets the current number of leases owned by this
	// instance (gauge metric).
	RecordOwnedLeases(count int)

	// RecordStoreOperationDuration records lease store operation latency.
	//
	// Parameters:
	//   - operation: Operation type ("get", "create", "update", "list")
	//   - duration: Time taken in seconds
	RecordStoreOperationDuration(operation string, duration float64)
}

// PumpMetrics defines metrics for per-partition batch processing.
type PumpMetrics interface {
	// RecordBatchDelivered records a batch successfully handed to the
	// handler.
	//
	// Parameters:
	//   - partitionID: Partition the batch was read from
	//   - items: Number of changes in the batch
	//   - duration: Handler execution time in seconds
	RecordBatchDelivered(partitionID string, items int, duration float64)

	// RecordHandlerFailure records a user handler failure on a batch.
	RecordHandlerFailure(partitionID string)

	// RecordCheckpoint records a persisted checkpoint.
	//
	// Parameters:
	//   - partitionID: Partition whose checkpoint advanced
	//   - duration: Checkpoint write time in seconds
	RecordCheckpoint(partitionID string, duration float64)
}

// EstimatorMetrics defines metrics for backlog estimation.
type EstimatorMetrics interface {
	// RecordBacklog sets the estimated pending change count for a
	// partition (gauge metric).
	RecordBacklog(partitionID string, pending int64)
}
