package types

import "context"

// LeaseStore provides atomic CRUD over lease records in a control
// collection.
//
// Conditional writes on the lease's Version are the sole concurrency-control
// primitive of the whole library: there is no distributed locking. Any store
// offering compare-and-swap on a single record can implement this interface;
// the canonical implementation is a NATS JetStream KV bucket where Version
// is the entry revision.
type LeaseStore interface {
	// Get returns the lease for the given partition.
	//
	// Returns:
	//   - Lease: The stored lease with Version set to the current revision
	//   - error: ErrLeaseNotFound if no lease exists for the partition
	Get(ctx context.Context, partitionID string) (Lease, error)

	// Create stores a brand-new lease record.
	//
	// Returns:
	//   - uint64: The new version token
	//   - error: ErrLeaseExists if a lease for the partition already exists
	Create(ctx context.Context, lease Lease) (uint64, error)

	// TryUpdate writes the lease conditionally on lease.Version matching
	// the store's current revision for the record.
	//
	// Returns:
	//   - uint64: The new version token after a successful write
	//   - error: ErrVersionConflict if lease.Version is stale
	TryUpdate(ctx context.Context, lease Lease) (uint64, error)

	// List returns all leases in the control collection.
	//
	// Returns:
	//   - []Lease: Every stored lease, each with its current Version
	//   - error: Store or connectivity error
	List(ctx context.Context) ([]Lease, error)
}
