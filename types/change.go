package types

import (
	"context"
	"time"
)

// Change is a single record read from a partition's change log.
type Change struct {
	// PartitionID identifies the source partition the change came from.
	PartitionID string `json:"partitionId"`

	// Sequence is the change's position in the partition log, in the
	// source's own positional metric (the stream sequence for JetStream).
	Sequence uint64 `json:"sequence"`

	// Data is the raw change payload.
	Data []byte `json:"data"`

	// Timestamp is the source-side commit time of the change.
	Timestamp time.Time `json:"timestamp"`
}

// ChangeBatch is an ordered sequence of changes read from one partition
// starting at a continuation token.
//
// Ordering within a batch mirrors the source log's commit order. Ordering
// across partitions is unspecified: partitions are processed independently
// and concurrently. Batches are ephemeral and never persisted.
type ChangeBatch struct {
	// PartitionID identifies the partition the batch was read from.
	PartitionID string `json:"partitionId"`

	// Changes holds the batch items in log order. May be empty when the
	// reader caught up with the partition tail.
	Changes []Change `json:"changes"`

	// ContinuationToken is the position immediately after the last change
	// in the batch. Persisting it as the lease checkpoint acknowledges the
	// whole batch. Equal to the requested token when the batch is empty.
	ContinuationToken string `json:"continuationToken"`
}

// IsEmpty reports whether the batch contains no changes.
func (b ChangeBatch) IsEmpty() bool {
	return len(b.Changes) == 0
}

// Handler consumes ordered change batches for the partitions this instance
// owns.
//
// The pump invokes HandleChanges synchronously and blocks on it: the batch's
// checkpoint is persisted only after HandleChanges returns nil. Returning an
// error leaves the checkpoint untouched; the same batch is re-read from the
// same continuation token after a backoff, so implementations must tolerate
// at-least-once delivery.
//
// HandleChanges is called from one goroutine per partition. Implementations
// that share state across partitions must synchronize it themselves.
type Handler interface {
	HandleChanges(ctx context.Context, batch ChangeBatch) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, batch ChangeBatch) error

// HandleChanges calls f(ctx, batch).
func (f HandlerFunc) HandleChanges(ctx context.Context, batch ChangeBatch) error {
	return f(ctx, batch)
}

// StartPosition selects where processing begins for a partition whose lease
// has no checkpoint yet.
type StartPosition int

const (
	// StartBeginning reads the partition log from its first retained change.
	StartBeginning StartPosition = iota

	// StartNow skips the existing backlog and reads only changes appended
	// after the partition's pump first polls it.
	StartNow

	// StartCustom starts from the configured continuation token.
	StartCustom
)

// String returns the string representation of the start position.
func (p StartPosition) String() string {
	switch p {
	case StartBeginning:
		return "Beginning"
	case StartNow:
		return "Now"
	case StartCustom:
		return "Custom"
	default:
		return "Unknown"
	}
}
