package changefeed

import "github.com/benoit160/changefeed/types"

// Sentinel errors returned by the Processor and its dependencies,
// re-exported from the types subpackage so callers can match them with
// errors.Is without importing types directly.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrLeaseStoreRequired is returned when the lease store is nil.
	ErrLeaseStoreRequired = types.ErrLeaseStoreRequired

	// ErrChangeSourceRequired is returned when the change source is nil.
	ErrChangeSourceRequired = types.ErrChangeSourceRequired

	// ErrHandlerRequired is returned when the change handler is nil.
	ErrHandlerRequired = types.ErrHandlerRequired

	// ErrAlreadyStarted is returned when Start is called on a running
	// processor.
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrNotStarted is returned when Stop is called on a processor that
	// hasn't been started.
	ErrNotStarted = types.ErrNotStarted

	// ErrNoPartitions is returned at startup when the change source
	// reports no partitions.
	ErrNoPartitions = types.ErrNoPartitions

	// ErrLeaseNotFound is returned when no lease exists for a partition.
	ErrLeaseNotFound = types.ErrLeaseNotFound

	// ErrLeaseLost indicates ownership of a lease was lost to another
	// instance.
	ErrLeaseLost = types.ErrLeaseLost

	// ErrVersionConflict is returned by lease stores on stale conditional
	// writes.
	ErrVersionConflict = types.ErrVersionConflict

	// ErrPartitionGone is returned when a partition no longer exists at
	// the source.
	ErrPartitionGone = types.ErrPartitionGone

	// ErrHandlerFailed wraps a handler failure that exhausted its retry
	// budget.
	ErrHandlerFailed = types.ErrHandlerFailed
)

// IsLeaseLost reports whether err indicates this instance no longer owns
// a lease.
func IsLeaseLost(err error) bool {
	return types.IsLeaseLost(err)
}
