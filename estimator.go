package changefeed

import (
	"context"
	"errors"
	"fmt"

	"github.com/benoit160/changefeed/internal/logger"
	"github.com/benoit160/changefeed/internal/metrics"
	"github.com/benoit160/changefeed/types"
)

// PartitionBacklog is the estimated processing lag of one partition.
type PartitionBacklog struct {
	// PartitionID identifies the partition.
	PartitionID string

	// Owner is the instance currently holding the partition's lease,
	// empty when unowned.
	Owner string

	// Pending is the number of changes between the partition's checkpoint
	// and its tail, in the source's own positional metric. Partitions
	// with no checkpoint count their full backlog.
	Pending int64
}

// Estimator reports how far the fleet's processing lags behind the feed.
//
// The estimator is read-only: it never acquires leases, never writes
// checkpoints and can run inside a processor instance or as a separate
// monitoring process. Estimates are inherently racy against live
// processing and serve scaling decisions, not exact accounting.
type Estimator struct {
	store   LeaseStore
	source  ChangeSource
	metrics MetricsCollector
	logger  Logger
}

// NewEstimator creates a backlog estimator over the fleet's lease store
// and change source.
//
// Parameters:
//   - store: Lease store holding the fleet's checkpoints
//   - source: Change feed being processed
//   - opts: Optional configuration (metrics, logger)
//
// Returns:
//   - *Estimator: Initialized estimator
//   - error: Dependency error when store or source is nil
func NewEstimator(store LeaseStore, source ChangeSource, opts ...Option) (*Estimator, error) {
	if store == nil {
		return nil, ErrLeaseStoreRequired
	}
	if source == nil {
		return nil, ErrChangeSourceRequired
	}

	options := &processorOptions{}
	for _, opt := range opts {
		opt(options)
	}

	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logger.NewNop()
	}

	return &Estimator{
		store:   store,
		source:  source,
		metrics: metricsCollector,
		logger:  loggerInstance,
	}, nil
}

// Estimate returns the per-partition backlog for every partition the
// source currently reports.
//
// Partitions whose leases vanished mid-estimate are skipped rather than
// failing the whole pass.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - []PartitionBacklog: One entry per live partition, in source order
//   - error: Source or store listing error
func (e *Estimator) Estimate(ctx context.Context) ([]PartitionBacklog, error) {
	partitions, err := e.source.ListPartitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("estimate backlog: %w", err)
	}

	leases, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("estimate backlog: %w", err)
	}

	checkpoints := make(map[string]types.Lease, len(leases))
	for _, lease := range leases {
		checkpoints[lease.PartitionID] = lease
	}

	result := make([]PartitionBacklog, 0, len(partitions))

	for _, partitionID := range partitions {
		lease := checkpoints[partitionID] // zero value: no checkpoint, full backlog

		pending, err := e.source.PendingChanges(ctx, partitionID, lease.ContinuationToken)
		if err != nil {
			if errors.Is(err, types.ErrPartitionGone) {
				e.logger.Debug("partition vanished during estimate", "partition", partitionID)

				continue
			}

			return nil, fmt.Errorf("estimate backlog for %s: %w", partitionID, err)
		}

		e.metrics.RecordBacklog(partitionID, pending)
		result = append(result, PartitionBacklog{
			PartitionID: partitionID,
			Owner:       lease.Owner,
			Pending:     pending,
		})
	}

	return result, nil
}

// TotalBacklog returns the summed pending count across all partitions.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - int64: Total estimated pending changes
//   - error: Estimation error
func (e *Estimator) TotalBacklog(ctx context.Context) (int64, error) {
	backlogs, err := e.Estimate(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, backlog := range backlogs {
		total += backlog.Pending
	}

	return total, nil
}
