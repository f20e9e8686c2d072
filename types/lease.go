package types

import "time"

// Lease is the control-plane record tracking ownership and checkpoint
// position for one source partition.
//
// Exactly one lease exists per partition once the processor has converged.
// All mutations go through LeaseStore.TryUpdate conditioned on Version, so
// two instances can never both believe they own the same lease: the loser
// of any write race observes ErrVersionConflict and backs off.
type Lease struct {
	// PartitionID is the stable identifier of the source partition.
	// Immutable once the lease is created.
	PartitionID string `json:"partitionId"`

	// Owner is the instance ID of the current holder, empty if unowned.
	Owner string `json:"owner"`

	// ContinuationToken marks the last successfully processed position in
	// the partition's change log. Empty means "start from the configured
	// start position". Advances monotonically; a checkpoint is only written
	// after the handler has returned successfully for the batch.
	ContinuationToken string `json:"continuationToken"`

	// LastRenewed is the wall-clock time of the last acquire or renewal
	// write. A lease whose LastRenewed is older than the configured expiry
	// is treated as orphaned regardless of Owner.
	LastRenewed time.Time `json:"lastRenewed"`

	// MarkedForCleanup is set when the partition disappeared from the
	// source (split or merge). Deletion itself is an administrative action
	// outside steady-state processing.
	MarkedForCleanup bool `json:"markedForCleanup"`

	// Version is the store's optimistic-concurrency token (the KV revision
	// for the NATS implementation). It is maintained by the store, not
	// serialized with the lease body.
	Version uint64 `json:"-"`
}

// IsOwned reports whether the lease has a recorded owner.
func (l Lease) IsOwned() bool {
	return l.Owner != ""
}

// IsExpired reports whether the lease's last renewal is older than expiry
// at the given instant. Expired leases are reclaimable by any instance.
func (l Lease) IsExpired(now time.Time, expiry time.Duration) bool {
	return now.Sub(l.LastRenewed) > expiry
}

// HeldBy reports whether the lease is currently held by the given instance
// with a non-expired renewal.
func (l Lease) HeldBy(instanceID string, now time.Time, expiry time.Duration) bool {
	return l.Owner == instanceID && !l.IsExpired(now, expiry)
}
