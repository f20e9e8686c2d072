package leasestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/benoit160/changefeed/internal/kvutil"
	"github.com/benoit160/changefeed/internal/natsutil"
	"github.com/benoit160/changefeed/types"
)

// NATSKV implements types.LeaseStore on a NATS JetStream KeyValue bucket.
//
// One key per partition holds the JSON-encoded lease body; the KV entry
// revision is the lease's version token. The bucket carries no TTL:
// orphan detection works off the LastRenewed timestamp inside the lease
// body, and leases are never deleted by steady-state processing.
type NATSKV struct {
	kv jetstream.KeyValue
}

var _ types.LeaseStore = (*NATSKV)(nil)

// NewNATSKV wraps an existing KV bucket as a lease store.
//
// Parameters:
//   - kv: JetStream KV bucket holding the lease records
//
// Returns:
//   - *NATSKV: Initialized store
func NewNATSKV(kv jetstream.KeyValue) *NATSKV {
	return &NATSKV{kv: kv}
}

// Bootstrap creates or opens the named lease bucket and wraps it.
//
// Multiple instances bootstrap the same bucket concurrently; creation
// races are absorbed by kvutil's retry logic.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - bucket: KV bucket name (e.g. "changefeed-leases")
//
// Returns:
//   - *NATSKV: Store backed by the bucket
//   - error: Bucket creation/open error
func Bootstrap(ctx context.Context, js jetstream.JetStream, bucket string) (*NATSKV, error) {
	kv, err := kvutil.EnsureBucketWithRetry(ctx, js, jetstream.KeyValueConfig{
		Bucket:  bucket,
		History: 1, // Only the latest lease state matters
	}, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to create/open lease bucket %s: %w", bucket, err)
	}

	return NewNATSKV(kv), nil
}

// Get returns the lease for the given partition.
func (s *NATSKV) Get(ctx context.Context, partitionID string) (types.Lease, error) {
	entry, err := s.kv.Get(ctx, partitionID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return types.Lease{}, fmt.Errorf("get lease %s: %w", partitionID, types.ErrLeaseNotFound)
		}

		return types.Lease{}, fmt.Errorf("get lease %s: %w", partitionID, classify(err))
	}

	return decodeLease(entry.Value(), entry.Revision())
}

// Create stores a brand-new lease record using the KV's atomic Create.
func (s *NATSKV) Create(ctx context.Context, lease types.Lease) (uint64, error) {
	data, err := json.Marshal(lease)
	if err != nil {
		return 0, fmt.Errorf("encode lease %s: %w", lease.PartitionID, err)
	}

	revision, err := s.kv.Create(ctx, lease.PartitionID, data)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return 0, fmt.Errorf("create lease %s: %w", lease.PartitionID, types.ErrLeaseExists)
		}

		return 0, fmt.Errorf("create lease %s: %w", lease.PartitionID, classify(err))
	}

	return revision, nil
}

// TryUpdate writes the lease conditionally on its version matching the
// current KV revision.
func (s *NATSKV) TryUpdate(ctx context.Context, lease types.Lease) (uint64, error) {
	data, err := json.Marshal(lease)
	if err != nil {
		return 0, fmt.Errorf("encode lease %s: %w", lease.PartitionID, err)
	}

	revision, err := s.kv.Update(ctx, lease.PartitionID, data, lease.Version)
	if err != nil {
		if natsutil.IsWrongLastRevision(err) {
			return 0, fmt.Errorf("update lease %s at version %d: %w",
				lease.PartitionID, lease.Version, types.ErrVersionConflict)
		}

		return 0, fmt.Errorf("update lease %s: %w", lease.PartitionID, classify(err))
	}

	return revision, nil
}

// List returns all leases in the bucket.
func (s *NATSKV) List(ctx context.Context) ([]types.Lease, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("list leases: %w", classify(err))
	}

	var leases []types.Lease
	for key := range lister.Keys() {
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			// Deleted between listing and read; lease deletion is an
			// administrative action, so just skip the key.
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}

			return nil, fmt.Errorf("list leases: read %s: %w", key, classify(err))
		}

		lease, err := decodeLease(entry.Value(), entry.Revision())
		if err != nil {
			return nil, err
		}
		leases = append(leases, lease)
	}

	return leases, nil
}

// decodeLease unmarshals a stored lease body and attaches its revision.
func decodeLease(data []byte, revision uint64) (types.Lease, error) {
	var lease types.Lease
	if err := json.Unmarshal(data, &lease); err != nil {
		return types.Lease{}, fmt.Errorf("decode lease: %w", err)
	}
	lease.Version = revision

	return lease, nil
}

// classify tags connectivity failures so call sites can retry them with
// backoff instead of treating them as lease races.
func classify(err error) error {
	if natsutil.IsConnectivityError(err) {
		return fmt.Errorf("%w: %w", types.ErrConnectivity, err)
	}

	return err
}
