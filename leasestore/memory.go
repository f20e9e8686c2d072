package leasestore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/benoit160/changefeed/types"
)

// Memory implements types.LeaseStore with an in-process map.
//
// Semantics mirror the NATS implementation: a single monotonically
// increasing revision counter versions every write, Create fails on an
// existing partition, and TryUpdate fails on a stale version. Safe for
// concurrent use, which lets tests run several simulated instances
// against one shared store.
type Memory struct {
	mu      sync.Mutex
	leases  map[string]types.Lease
	nextRev uint64
}

var _ types.LeaseStore = (*Memory)(nil)

// NewMemory creates an empty in-memory lease store.
//
// Returns:
//   - *Memory: Initialized store
func NewMemory() *Memory {
	return &Memory{leases: make(map[string]types.Lease)}
}

// Get returns the lease for the given partition.
func (m *Memory) Get(_ context.Context, partitionID string) (types.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lease, ok := m.leases[partitionID]
	if !ok {
		return types.Lease{}, fmt.Errorf("get lease %s: %w", partitionID, types.ErrLeaseNotFound)
	}

	return lease, nil
}

// Create stores a brand-new lease record.
func (m *Memory) Create(_ context.Context, lease types.Lease) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.leases[lease.PartitionID]; ok {
		return 0, fmt.Errorf("create lease %s: %w", lease.PartitionID, types.ErrLeaseExists)
	}

	m.nextRev++
	lease.Version = m.nextRev
	m.leases[lease.PartitionID] = lease

	return lease.Version, nil
}

// TryUpdate writes the lease conditionally on its version being current.
func (m *Memory) TryUpdate(_ context.Context, lease types.Lease) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.leases[lease.PartitionID]
	if !ok {
		return 0, fmt.Errorf("update lease %s: %w", lease.PartitionID, types.ErrLeaseNotFound)
	}

	if current.Version != lease.Version {
		return 0, fmt.Errorf("update lease %s: expected version %d, have %d: %w",
			lease.PartitionID, lease.Version, current.Version, types.ErrVersionConflict)
	}

	m.nextRev++
	lease.Version = m.nextRev
	m.leases[lease.PartitionID] = lease

	return lease.Version, nil
}

// List returns all leases sorted by partition ID.
func (m *Memory) List(_ context.Context) ([]types.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]types.Lease, 0, len(m.leases))
	for _, lease := range m.leases {
		result = append(result, lease)
	}

	slices.SortFunc(result, func(a, b types.Lease) int {
		switch {
		case a.PartitionID < b.PartitionID:
			return -1
		case a.PartitionID > b.PartitionID:
			return 1
		default:
			return 0
		}
	})

	return result, nil
}
