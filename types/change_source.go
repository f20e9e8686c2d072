package types

import "context"

// ChangeSource is the partitioned, appendable data source the processor
// consumes: a set of physical partitions, each exposing an ordered change
// log addressable by opaque continuation tokens.
//
// Implementations can back onto various systems:
//   - JetStream: one subject per partition, stream sequence as the token
//   - Memory: appendable in-process logs for tests
//   - Custom: anything with ordered per-partition change retrieval
type ChangeSource interface {
	// ListPartitions returns the identifiers of all current partitions.
	//
	// Called periodically by the processor's discovery loop; results are
	// diffed against the previously known set to detect splits and merges.
	ListPartitions(ctx context.Context) ([]string, error)

	// ReadChanges reads the next batch of changes from a partition.
	//
	// Parameters:
	//   - partitionID: Partition to read from
	//   - continuationToken: Position to resume after ("" = log start)
	//   - maxItems: Upper bound on the number of changes returned
	//
	// Returns:
	//   - ChangeBatch: Changes in log order; empty batch (token unchanged)
	//     when the reader has caught up with the tail
	//   - error: ErrPartitionGone if the partition no longer exists
	ReadChanges(ctx context.Context, partitionID, continuationToken string, maxItems int) (ChangeBatch, error)

	// TailToken returns the continuation token of the partition's current
	// tail, i.e. the position after the newest change. Used to realize the
	// StartNow position.
	TailToken(ctx context.Context, partitionID string) (string, error)

	// PendingChanges returns the number of changes between the given token
	// and the partition's current tail, in the source's own positional
	// metric. Read-only; used by the backlog estimator.
	PendingChanges(ctx context.Context, partitionID, continuationToken string) (int64, error)
}
