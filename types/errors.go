package types

import "errors"

// Sentinel errors for the changefeed library.
//
// These errors provide type-safe error checking using errors.Is() and
// errors.As(). Components use these sentinels for known error conditions
// and wrap external errors with context using fmt.Errorf("...: %w", err).

// Lease store errors - returned by LeaseStore implementations.
var (
	// ErrLeaseNotFound is returned when no lease exists for a partition.
	ErrLeaseNotFound = errors.New("lease not found")

	// ErrLeaseExists is returned by Create when a lease for the partition
	// already exists. Expected during lease-creation races; callers treat
	// it as success (another instance won).
	ErrLeaseExists = errors.New("lease already exists")

	// ErrVersionConflict is returned by TryUpdate when the caller's version
	// token is stale. This is the normal signal of a lost lease race and is
	// never retried blindly: callers re-read and re-decide, or retreat.
	ErrVersionConflict = errors.New("lease version conflict")
)

// Source errors - returned by ChangeSource implementations.
var (
	// ErrPartitionGone is returned when a partition no longer exists
	// (split or merge). Not an error to the processor's caller: the lease
	// is marked for cleanup and the pump stops cleanly.
	ErrPartitionGone = errors.New("partition no longer exists")
)

// Processor errors - public API errors returned by the root package.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrLeaseStoreRequired is returned when the lease store is nil.
	ErrLeaseStoreRequired = errors.New("lease store is required")

	// ErrChangeSourceRequired is returned when the change source is nil.
	ErrChangeSourceRequired = errors.New("change source is required")

	// ErrHandlerRequired is returned when the change handler is nil.
	ErrHandlerRequired = errors.New("change handler is required")

	// ErrAlreadyStarted is returned when Start is called on a running
	// processor.
	ErrAlreadyStarted = errors.New("processor already started")

	// ErrNotStarted is returned when operations require a started
	// processor.
	ErrNotStarted = errors.New("processor not started")

	// ErrNoPartitions is returned at startup when the source reports no
	// reachable partitions.
	ErrNoPartitions = errors.New("no source partitions reachable")

	// ErrLeaseLost indicates this instance lost ownership of a lease,
	// detected through a version conflict during renewal or checkpointing.
	ErrLeaseLost = errors.New("lease ownership lost")

	// ErrHandlerFailed wraps a user handler failure after the configured
	// retry budget is exhausted.
	ErrHandlerFailed = errors.New("change handler failed")

	// ErrConnectivity indicates a store or source connectivity issue.
	// Distinguishes transient network failures from application errors;
	// these are retried with backoff at the call site.
	ErrConnectivity = errors.New("connectivity issue")
)

// IsVersionConflict reports whether err indicates a lost conditional-write
// race on a lease record.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsLeaseLost reports whether err indicates this instance no longer owns a
// lease. Version conflicts on owned leases always mean the lease was
// reclaimed by another instance.
func IsLeaseLost(err error) bool {
	return errors.Is(err, ErrLeaseLost) || errors.Is(err, ErrVersionConflict)
}
