package source

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/benoit160/changefeed/types"
)

// Memory implements types.ChangeSource with in-process append-only logs.
//
// Each partition holds an ordered log of changes; sequences start at 1
// and continuation tokens are the decimal of the last delivered sequence.
// Partitions can be added, removed and appended to at runtime, which lets
// tests simulate splits, merges and a live feed. Safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	partitions map[string][]types.Change
}

var _ types.ChangeSource = (*Memory)(nil)

// NewMemory creates an empty in-memory change source.
//
// Parameters:
//   - partitionIDs: Initial partitions to create, each with an empty log
//
// Returns:
//   - *Memory: Initialized source
func NewMemory(partitionIDs ...string) *Memory {
	m := &Memory{partitions: make(map[string][]types.Change)}
	for _, id := range partitionIDs {
		m.partitions[id] = nil
	}

	return m
}

// AddPartition creates a new empty partition. Adding an existing partition
// is a no-op and preserves its log.
func (m *Memory) AddPartition(partitionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.partitions[partitionID]; !ok {
		m.partitions[partitionID] = nil
	}
}

// RemovePartition deletes a partition and its log, simulating a partition
// that disappeared from the source.
func (m *Memory) RemovePartition(partitionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.partitions, partitionID)
}

// Append appends change payloads to a partition's log in order.
//
// Parameters:
//   - partitionID: Target partition
//   - payloads: Raw change payloads, appended in argument order
//
// Returns:
//   - error: types.ErrPartitionGone if the partition does not exist
func (m *Memory) Append(partitionID string, payloads ...[]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	log, ok := m.partitions[partitionID]
	if !ok {
		return fmt.Errorf("append to %s: %w", partitionID, types.ErrPartitionGone)
	}

	now := time.Now()
	for _, payload := range payloads {
		log = append(log, types.Change{
			PartitionID: partitionID,
			Sequence:    uint64(len(log)) + 1,
			Data:        payload,
			Timestamp:   now,
		})
	}
	m.partitions[partitionID] = log

	return nil
}

// ListPartitions returns all partition identifiers, sorted.
func (m *Memory) ListPartitions(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.partitions))
	for id := range m.partitions {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids, nil
}

// ReadChanges reads up to maxItems changes after the continuation token.
func (m *Memory) ReadChanges(_ context.Context, partitionID, continuationToken string, maxItems int) (types.ChangeBatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log, ok := m.partitions[partitionID]
	if !ok {
		return types.ChangeBatch{}, fmt.Errorf("read %s: %w", partitionID, types.ErrPartitionGone)
	}

	after, err := parseToken(continuationToken)
	if err != nil {
		return types.ChangeBatch{}, fmt.Errorf("read %s: %w", partitionID, err)
	}

	batch := types.ChangeBatch{
		PartitionID:       partitionID,
		ContinuationToken: continuationToken,
	}

	if after >= uint64(len(log)) {
		return batch, nil
	}

	end := after + uint64(maxItems)
	if end > uint64(len(log)) {
		end = uint64(len(log))
	}

	batch.Changes = slices.Clone(log[after:end])
	batch.ContinuationToken = formatToken(batch.Changes[len(batch.Changes)-1].Sequence)

	return batch, nil
}

// TailToken returns the token positioned after the newest change.
func (m *Memory) TailToken(_ context.Context, partitionID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log, ok := m.partitions[partitionID]
	if !ok {
		return "", fmt.Errorf("tail of %s: %w", partitionID, types.ErrPartitionGone)
	}

	return formatToken(uint64(len(log))), nil
}

// PendingChanges returns the number of changes between the token and the
// partition tail.
func (m *Memory) PendingChanges(_ context.Context, partitionID, continuationToken string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log, ok := m.partitions[partitionID]
	if !ok {
		return 0, fmt.Errorf("pending of %s: %w", partitionID, types.ErrPartitionGone)
	}

	after, err := parseToken(continuationToken)
	if err != nil {
		return 0, fmt.Errorf("pending of %s: %w", partitionID, err)
	}

	if after >= uint64(len(log)) {
		return 0, nil
	}

	return int64(uint64(len(log)) - after), nil
}

// parseToken decodes a decimal continuation token. The empty token means
// the log start and decodes to zero.
func parseToken(token string) (uint64, error) {
	if token == "" {
		return 0, nil
	}

	seq, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid continuation token %q: %w", token, err)
	}

	return seq, nil
}

// formatToken encodes a sequence number as a continuation token.
func formatToken(seq uint64) string {
	return strconv.FormatUint(seq, 10)
}
