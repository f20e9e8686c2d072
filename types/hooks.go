package types

import "context"

// Hooks defines callbacks for processor lifecycle events.
//
// All hooks are optional and called asynchronously in background goroutines
// to avoid blocking lease management or batch delivery. Hooks receive the
// processor's lifecycle context, which is cancelled during shutdown.
//
// Hook execution behavior:
//   - Hooks run concurrently and may not complete before Stop() returns
//   - Hook errors are logged but never fail processor operations
//
// Implementations should complete quickly, respect context cancellation,
// and be idempotent.
type Hooks struct {
	// OnLeaseAcquired is called after this instance acquires a lease,
	// whether from the unowned pool or stolen during balancing.
	OnLeaseAcquired func(ctx context.Context, partitionID string) error

	// OnLeaseLost is called when ownership of a lease is lost through a
	// version conflict during renewal or checkpointing. The pump for the
	// partition has already been stopped.
	OnLeaseLost func(ctx context.Context, partitionID string, err error) error

	// OnHandlerError is called every time the user handler fails on a
	// batch. attempt counts failures on the same batch, starting at 1.
	// Processing stalls and retries from the same continuation token;
	// failures are never swallowed silently.
	OnHandlerError func(ctx context.Context, partitionID string, attempt int, err error) error

	// OnPartitionGone is called when a partition disappeared from the
	// source (split or merge) and its lease was marked for cleanup.
	OnPartitionGone func(ctx context.Context, partitionID string) error
}
