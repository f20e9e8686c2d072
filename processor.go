package changefeed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/benoit160/changefeed/internal/balancer"
	"github.com/benoit160/changefeed/internal/hooks"
	"github.com/benoit160/changefeed/internal/logger"
	"github.com/benoit160/changefeed/internal/metrics"
	"github.com/benoit160/changefeed/internal/pump"
	"github.com/benoit160/changefeed/types"
)

// Processor coordinates competing instances over a partitioned change
// feed.
//
// Processor is the main entry point of the changefeed library. It handles:
//   - Lease acquisition and renewal through the shared lease store
//   - Load balancing of partitions across live instances
//   - One pull-deliver-checkpoint pump per owned partition
//   - Partition discovery (splits and merges)
//   - Graceful hand-off of partitions during scaling and shutdown
//
// Instances never talk to each other: all coordination happens through
// conditional writes on the lease store, so any number of instances can
// run the same configuration against the same store and source.
//
// Thread Safety:
//   - All public methods are safe for concurrent use
//   - Lease mutations are serialized per partition
//
// Lifecycle:
//   - Create with NewProcessor()
//   - Call Start() to discover partitions and begin acquiring leases
//   - Use hooks to react to ownership changes
//   - Call Stop() for graceful shutdown
type Processor struct {
	cfg     Config
	store   LeaseStore
	source  ChangeSource
	handler Handler

	hooks   *Hooks
	metrics MetricsCollector
	logger  Logger

	// owned maps partition ID to its lease and pump for partitions this
	// instance currently owns.
	owned *xsync.Map[string, *ownedLease]

	// known is the partition set from the latest discovery pass.
	knownMu sync.RWMutex
	known   map[string]struct{}

	// Lifecycle management. loopCtx drives the background loops and is
	// cancelled first on Stop; pumpCtx outlives it so in-flight batches
	// can finish before the hard abort.
	mu         sync.Mutex
	loopCtx    context.Context
	loopCancel context.CancelFunc
	pumpCtx    context.Context
	pumpCancel context.CancelFunc
	stopped    bool
	wg         sync.WaitGroup
}

// ownedLease pairs an owned lease with its pump. The mutex serializes all
// conditional writes against the lease record (renewals, checkpoints,
// releases) so the in-memory version token always matches the store.
type ownedLease struct {
	mu    sync.Mutex
	lease types.Lease
	pump  *pump.Pump
}

// leaseCheckpointer adapts the Processor to the pump's Checkpointer
// dependency without exposing checkpoint writes on the public API.
type leaseCheckpointer struct {
	p *Processor
}

// NewProcessor creates a new Processor instance with the provided
// configuration.
//
// Returns a concrete *Processor struct following the "accept interfaces,
// return structs" principle. Consumers can define their own interfaces
// for testing if needed.
//
// Parameters:
//   - cfg: Runtime configuration with parsed durations
//   - store: Lease store shared by all competing instances
//   - source: Partitioned change feed to process
//   - handler: User handler invoked for each change batch
//   - opts: Optional configuration (hooks, metrics, logger)
//
// Returns:
//   - *Processor: Initialized processor instance
//   - error: Validation error if configuration or dependencies are invalid
//
// Example:
//
//	cfg := changefeed.DefaultConfig()
//	store, _ := leasestore.Bootstrap(ctx, js, "orders-leases")
//	src := source.NewJetStream(js, "ORDERS", "orders")
//	proc, err := changefeed.NewProcessor(&cfg, store, src, handler)
func NewProcessor(cfg *Config, store LeaseStore, source ChangeSource, handler Handler, opts ...Option) (*Processor, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if store == nil {
		return nil, ErrLeaseStoreRequired
	}
	if source == nil {
		return nil, ErrChangeSourceRequired
	}
	if handler == nil {
		return nil, ErrHandlerRequired
	}

	SetDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	options := &processorOptions{}
	for _, opt := range opts {
		opt(options)
	}

	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logger.NewNop()
	}

	cfg.ValidateWithWarnings(loggerInstance)

	hooksInstance := options.hooks
	if hooksInstance == nil {
		nopHooks := hooks.NewNop()
		hooksInstance = &nopHooks
	}

	return &Processor{
		cfg:     *cfg,
		store:   store,
		source:  source,
		handler: handler,
		hooks:   hooksInstance,
		metrics: metricsCollector,
		logger:  loggerInstance,
		owned:   xsync.NewMap[string, *ownedLease](),
		known:   make(map[string]struct{}),
	}, nil
}

// Start discovers partitions, seeds lease records and begins acquiring
// leases. Returns once the first balancing pass has run; partitions keep
// shifting between instances afterwards as the fleet changes.
//
// Parameters:
//   - ctx: Context bounding the startup sequence
//
// Returns:
//   - error: Startup error, ErrNoPartitions, or context cancellation
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.loopCtx != nil {
		p.mu.Unlock()

		return ErrAlreadyStarted
	}

	p.loopCtx, p.loopCancel = context.WithCancel(context.Background())
	p.pumpCtx, p.pumpCancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	startupCtx := ctx
	if p.cfg.StartupTimeout > 0 {
		var cancel context.CancelFunc
		startupCtx, cancel = context.WithTimeout(ctx, p.cfg.StartupTimeout)
		defer cancel()
	}

	p.logger.Debug("discovering partitions", "instance", p.cfg.InstanceID)

	partitions, err := p.discoverPartitions(startupCtx)
	if err != nil {
		return fmt.Errorf("failed to discover partitions: %w", err)
	}
	if len(partitions) == 0 {
		return ErrNoPartitions
	}

	if err := p.seedLeases(startupCtx, partitions); err != nil {
		return fmt.Errorf("failed to seed lease records: %w", err)
	}

	// First balancing pass runs inline so callers can rely on the
	// instance competing for leases as soon as Start returns.
	p.balanceOnce(startupCtx)

	p.wg.Add(3)
	go p.renewLoop()
	go p.balanceLoop()
	go p.discoveryLoop()

	p.logger.Info("processor started",
		"instance", p.cfg.InstanceID,
		"partitions", len(partitions),
		"owned", p.owned.Size(),
	)

	return nil
}

// Stop gracefully shuts down the processor.
//
// In-flight batches finish delivery and checkpointing, then all owned
// leases are released so other instances pick the partitions up without
// waiting for expiry. Safe to call multiple times; subsequent calls
// return ErrNotStarted.
//
// Parameters:
//   - ctx: Context for shutdown timeout (ShutdownTimeout applies when the
//     context carries no deadline)
//
// Returns:
//   - error: Shutdown error or timeout
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.loopCtx == nil || p.stopped {
		p.mu.Unlock()

		return ErrNotStarted
	}
	p.stopped = true
	p.mu.Unlock()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && p.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ShutdownTimeout)
		defer cancel()
	}

	// Stop the background loops first so no new leases are acquired or
	// renewed while pumps drain.
	p.loopCancel()

	// Drain all pumps in parallel; each finishes its current batch and
	// checkpoint before exiting.
	var drain sync.WaitGroup

	p.owned.Range(func(partitionID string, op *ownedLease) bool {
		drain.Add(1)
		go func() {
			defer drain.Done()

			if err := op.pump.Stop(ctx); err != nil {
				p.logger.Warn("pump did not stop in time",
					"instance", p.cfg.InstanceID,
					"partition", partitionID,
					"error", err,
				)
			}
		}()

		return true
	})
	drain.Wait()

	// Hard abort for anything still running past the drain.
	p.pumpCancel()

	// Release every lease so successors take over immediately.
	var shutdownErr error

	p.owned.Range(func(partitionID string, op *ownedLease) bool {
		if err := p.releaseLease(ctx, partitionID, op, false); err != nil {
			p.logger.Error("failed to release lease on shutdown",
				"instance", p.cfg.InstanceID,
				"partition", partitionID,
				"error", err,
			)
			if shutdownErr == nil {
				shutdownErr = fmt.Errorf("lease release failed: %w", err)
			}
		}

		return true
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("processor stopped gracefully", "instance", p.cfg.InstanceID)
		return shutdownErr
	case <-ctx.Done():
		p.logger.Error("shutdown timeout exceeded, some goroutines may still be running",
			"instance", p.cfg.InstanceID,
		)
		if shutdownErr == nil {
			return ctx.Err()
		}

		return fmt.Errorf("shutdown timeout: %w; additional error: %w", ctx.Err(), shutdownErr)
	}
}

// InstanceID returns this processor's identity in the lease store.
func (p *Processor) InstanceID() string {
	return p.cfg.InstanceID
}

// Owned returns the partition IDs this instance currently owns, sorted.
//
// The set changes over time as balancing shifts leases between instances;
// the result is a point-in-time snapshot.
func (p *Processor) Owned() []string {
	ids := make([]string, 0, p.owned.Size())
	p.owned.Range(func(partitionID string, _ *ownedLease) bool {
		ids = append(ids, partitionID)

		return true
	})
	slices.Sort(ids)

	return ids
}

// WaitOwned blocks until this instance owns at least count partitions or
// the context expires. Useful in tests and in deployments that must not
// report ready before processing can begin.
//
// Parameters:
//   - ctx: Context bounding the wait
//   - count: Minimum number of owned partitions to wait for (minimum 1)
//
// Returns:
//   - error: Context error, or ErrNotStarted when the processor isn't running
func (p *Processor) WaitOwned(ctx context.Context, count int) error {
	p.mu.Lock()
	running := p.loopCtx != nil && !p.stopped
	p.mu.Unlock()

	if !running {
		return ErrNotStarted
	}

	if count < 1 {
		count = 1
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if p.owned.Size() >= count {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// renewLoop re-stamps every owned lease each RenewInterval so other
// instances keep seeing this one as alive.
func (p *Processor) renewLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.RenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.loopCtx.Done():
			return
		case <-ticker.C:
			p.owned.Range(func(partitionID string, op *ownedLease) bool {
				p.renewLease(partitionID, op)

				return true
			})
		}
	}
}

// renewLease performs one conditional renewal write. A version conflict
// means another instance reclaimed the lease: the pump is stopped and the
// partition is surrendered.
func (p *Processor) renewLease(partitionID string, op *ownedLease) {
	op.mu.Lock()
	defer op.mu.Unlock()

	ctx, cancel := context.WithTimeout(p.pumpCtx, p.cfg.OperationTimeout)
	defer cancel()

	lease := op.lease
	lease.LastRenewed = time.Now().UTC()

	start := time.Now()
	version, err := p.store.TryUpdate(ctx, lease)
	p.metrics.RecordStoreOperationDuration("update", time.Since(start).Seconds())

	if err != nil {
		p.metrics.RecordLeaseRenewal(false)

		if types.IsVersionConflict(err) {
			p.logger.Warn("lease reclaimed by another instance",
				"instance", p.cfg.InstanceID,
				"partition", partitionID,
			)
			p.surrenderLease(partitionID, op, err)

			return
		}

		// Transient failure: the next tick retries, and LeaseExpiry gives
		// slack for several missed renewals.
		p.logger.Warn("lease renewal failed",
			"instance", p.cfg.InstanceID,
			"partition", partitionID,
			"error", err,
		)

		return
	}

	lease.Version = version
	op.lease = lease
	p.metrics.RecordLeaseRenewal(true)
}

// surrenderLease drops a partition whose lease was lost to another
// instance. The pump is told to stop; no store write is attempted since
// the record already belongs to the new owner. Caller holds op.mu.
func (p *Processor) surrenderLease(partitionID string, op *ownedLease, cause error) {
	p.owned.Delete(partitionID)
	p.metrics.RecordLeaseLost(partitionID)
	p.metrics.RecordOwnedLeases(p.owned.Size())
	p.fireLeaseLost(partitionID, cause)

	go func() {
		ctx, cancel := context.WithTimeout(p.pumpCtx, p.cfg.OperationTimeout)
		defer cancel()

		if err := op.pump.Stop(ctx); err != nil {
			p.logger.Warn("pump did not stop in time",
				"instance", p.cfg.InstanceID,
				"partition", partitionID,
				"error", err,
			)
		}
	}()
}

// balanceLoop runs a balancing pass each BalanceInterval.
func (p *Processor) balanceLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.BalanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.loopCtx.Done():
			return
		case <-ticker.C:
			p.balanceOnce(p.loopCtx)
		}
	}
}

// balanceOnce lists the lease store, computes this instance's plan and
// applies it: acquisitions first, then releases. Losing any conditional
// write is harmless; the next pass recomputes from fresh state.
func (p *Processor) balanceOnce(ctx context.Context) {
	listCtx, cancel := context.WithTimeout(ctx, p.cfg.OperationTimeout)
	defer cancel()

	start := time.Now()
	leases, err := p.store.List(listCtx)
	p.metrics.RecordStoreOperationDuration("list", time.Since(start).Seconds())

	if err != nil {
		p.logger.Warn("balance pass skipped, lease listing failed",
			"instance", p.cfg.InstanceID,
			"error", err,
		)

		return
	}

	// Leases marked for cleanup belong to partitions that no longer
	// exist and are never rebalanced.
	active := leases[:0]
	for _, lease := range leases {
		if !lease.MarkedForCleanup {
			active = append(active, lease)
		}
	}

	plan := balancer.ComputePlan(balancer.Snapshot{
		InstanceID: p.cfg.InstanceID,
		Leases:     active,
		Now:        time.Now().UTC(),
		Expiry:     p.cfg.LeaseExpiry,
	})

	for _, cand := range plan.Acquire {
		p.tryAcquire(ctx, cand)
	}

	for _, lease := range plan.Release {
		if op, ok := p.owned.Load(lease.PartitionID); ok {
			if err := p.releaseLease(ctx, lease.PartitionID, op, false); err != nil {
				p.logger.Warn("failed to shed lease",
					"instance", p.cfg.InstanceID,
					"partition", lease.PartitionID,
					"error", err,
				)
			}
		}
	}

	p.metrics.RecordOwnedLeases(p.owned.Size())
}

// tryAcquire attempts one conditional lease takeover and starts a pump on
// success. Conflicts mean another instance won the same lease this pass.
func (p *Processor) tryAcquire(ctx context.Context, cand balancer.Candidate) {
	opCtx, cancel := context.WithTimeout(ctx, p.cfg.OperationTimeout)
	defer cancel()

	lease := cand.Lease
	lease.Owner = p.cfg.InstanceID
	lease.LastRenewed = time.Now().UTC()

	start := time.Now()
	version, err := p.store.TryUpdate(opCtx, lease)
	p.metrics.RecordStoreOperationDuration("update", time.Since(start).Seconds())

	if err != nil {
		if types.IsVersionConflict(err) {
			p.logger.Debug("lost acquisition race",
				"instance", p.cfg.InstanceID,
				"partition", lease.PartitionID,
			)
		} else {
			p.logger.Warn("lease acquisition failed",
				"instance", p.cfg.InstanceID,
				"partition", lease.PartitionID,
				"error", err,
			)
		}

		return
	}

	lease.Version = version

	startToken, err := p.resolveStartToken(opCtx, lease.PartitionID, lease.ContinuationToken)
	if err != nil {
		p.logger.Warn("failed to resolve start position, releasing lease",
			"instance", p.cfg.InstanceID,
			"partition", lease.PartitionID,
			"error", err,
		)

		lease.Owner = ""
		if _, relErr := p.store.TryUpdate(opCtx, lease); relErr != nil {
			p.logger.Warn("failed to release lease after start position error",
				"partition", lease.PartitionID,
				"error", relErr,
			)
		}

		return
	}

	op := &ownedLease{
		lease: lease,
		pump: pump.New(pump.Config{
			PartitionID:       lease.PartitionID,
			StartToken:        startToken,
			Source:            p.source,
			Handler:           p.handler,
			Checkpointer:      leaseCheckpointer{p: p},
			PollInterval:      p.cfg.PollInterval,
			MaxItems:          p.cfg.MaxItemsPerBatch,
			MaxHandlerRetries: p.cfg.HandlerRetry.MaxRetries,
			RetryBaseDelay:    p.cfg.HandlerRetry.BaseDelay,
			RetryMaxDelay:     p.cfg.HandlerRetry.MaxDelay,
			Logger:            p.logger,
			Metrics:           p.metrics,
			OnHandlerError:    p.hooks.OnHandlerError,
		}),
	}

	p.owned.Store(lease.PartitionID, op)
	op.pump.Start(p.pumpCtx)

	p.wg.Add(1)
	go p.watchPump(lease.PartitionID, op)

	p.metrics.RecordLeaseAcquired(lease.PartitionID, cand.Stolen)
	p.logger.Info("lease acquired",
		"instance", p.cfg.InstanceID,
		"partition", lease.PartitionID,
		"stolen", cand.Stolen,
		"startToken", startToken,
	)

	if p.hooks.OnLeaseAcquired != nil {
		go func(partitionID string) {
			if err := p.hooks.OnLeaseAcquired(p.pumpCtx, partitionID); err != nil {
				p.logger.Warn("lease-acquired hook failed", "partition", partitionID, "error", err)
			}
		}(lease.PartitionID)
	}
}

// resolveStartToken picks the position a fresh pump resumes from: the
// lease checkpoint when one exists, otherwise the configured start
// position.
func (p *Processor) resolveStartToken(ctx context.Context, partitionID, checkpoint string) (string, error) {
	if checkpoint != "" {
		return checkpoint, nil
	}

	switch p.cfg.StartPosition {
	case types.StartNow:
		return p.source.TailToken(ctx, partitionID)
	case types.StartCustom:
		return p.cfg.StartToken, nil
	default:
		return "", nil
	}
}

// watchPump reacts to a pump exiting on its own: lease loss, partition
// disappearance or handler retry exhaustion.
func (p *Processor) watchPump(partitionID string, op *ownedLease) {
	defer p.wg.Done()

	select {
	case <-p.loopCtx.Done():
		// Shutdown path; Stop drains and releases explicitly.
		return
	case <-op.pump.Done():
	}

	err := op.pump.Err()
	switch {
	case err == nil:
		// Stopped on request; nothing to clean up here.

	case types.IsLeaseLost(err):
		if _, stillOwned := p.owned.LoadAndDelete(partitionID); stillOwned {
			p.metrics.RecordLeaseLost(partitionID)
			p.metrics.RecordOwnedLeases(p.owned.Size())
			p.fireLeaseLost(partitionID, err)
		}

	case errors.Is(err, types.ErrPartitionGone):
		// Discovery may have already retired the partition.
		if _, stillOwned := p.owned.Load(partitionID); !stillOwned {
			return
		}

		p.logger.Info("partition disappeared from source",
			"instance", p.cfg.InstanceID,
			"partition", partitionID,
		)

		ctx, cancel := context.WithTimeout(p.pumpCtx, p.cfg.OperationTimeout)
		defer cancel()

		if relErr := p.releaseLease(ctx, partitionID, op, true); relErr != nil {
			p.logger.Warn("failed to mark lease for cleanup",
				"partition", partitionID,
				"error", relErr,
			)
		}

		p.firePartitionGone(partitionID)

	default:
		// Handler retry exhaustion or a persistent source failure. The
		// lease is released so another instance can try; the checkpoint
		// still points at the unprocessed batch.
		p.logger.Error("pump failed, releasing partition",
			"instance", p.cfg.InstanceID,
			"partition", partitionID,
			"error", err,
		)

		ctx, cancel := context.WithTimeout(p.pumpCtx, p.cfg.OperationTimeout)
		defer cancel()

		if relErr := p.releaseLease(ctx, partitionID, op, false); relErr != nil {
			p.logger.Warn("failed to release lease after pump failure",
				"partition", partitionID,
				"error", relErr,
			)
		}
	}
}

// releaseLease voluntarily gives up an owned lease: the pump is stopped,
// the owner field cleared and, for vanished partitions, the record marked
// for cleanup. The checkpoint is preserved for the next owner.
func (p *Processor) releaseLease(ctx context.Context, partitionID string, op *ownedLease, gone bool) error {
	if err := op.pump.Stop(ctx); err != nil {
		p.logger.Warn("pump stop timed out during release",
			"partition", partitionID,
			"error", err,
		)
	}

	op.mu.Lock()
	defer op.mu.Unlock()

	if _, stillOwned := p.owned.LoadAndDelete(partitionID); !stillOwned {
		return nil
	}

	lease := op.lease
	lease.Owner = ""
	lease.MarkedForCleanup = gone

	// The stopped pump may have checkpointed past our snapshot; its token
	// is authoritative.
	if token := op.pump.Token(); token != "" {
		lease.ContinuationToken = token
	}

	start := time.Now()
	_, err := p.store.TryUpdate(ctx, lease)
	p.metrics.RecordStoreOperationDuration("update", time.Since(start).Seconds())

	if err != nil {
		if types.IsVersionConflict(err) {
			// Someone already took the lease over; nothing left to release.
			return nil
		}

		return fmt.Errorf("release lease %s: %w", partitionID, err)
	}

	p.metrics.RecordLeaseReleased(partitionID)
	p.logger.Info("lease released",
		"instance", p.cfg.InstanceID,
		"partition", partitionID,
		"markedForCleanup", gone,
	)

	return nil
}

// firePartitionGone invokes the partition-gone hook asynchronously.
func (p *Processor) firePartitionGone(partitionID string) {
	if p.hooks.OnPartitionGone == nil {
		return
	}

	go func() {
		if err := p.hooks.OnPartitionGone(p.pumpCtx, partitionID); err != nil {
			p.logger.Warn("partition-gone hook failed", "partition", partitionID, "error", err)
		}
	}()
}

// fireLeaseLost invokes the lease-lost hook asynchronously.
func (p *Processor) fireLeaseLost(partitionID string, cause error) {
	if p.hooks.OnLeaseLost == nil {
		return
	}

	go func() {
		if err := p.hooks.OnLeaseLost(p.pumpCtx, partitionID, cause); err != nil {
			p.logger.Warn("lease-lost hook failed", "partition", partitionID, "error", err)
		}
	}()
}

// discoveryLoop periodically re-lists the source's partitions to pick up
// splits and merges.
func (p *Processor) discoveryLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.DiscoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.loopCtx.Done():
			return
		case <-ticker.C:
			partitions, err := p.discoverPartitions(p.loopCtx)
			if err != nil {
				p.logger.Warn("partition discovery failed",
					"instance", p.cfg.InstanceID,
					"error", err,
				)

				continue
			}

			if err := p.seedLeases(p.loopCtx, partitions); err != nil {
				p.logger.Warn("failed to seed leases for new partitions",
					"instance", p.cfg.InstanceID,
					"error", err,
				)
			}
		}
	}
}

// discoverPartitions lists the source and diffs against the known set.
// Newly appeared partitions are reported for lease seeding; vanished
// partitions get their pumps stopped and their leases marked for cleanup
// so balancing stops counting them.
func (p *Processor) discoverPartitions(ctx context.Context) ([]string, error) {
	opCtx, cancel := context.WithTimeout(ctx, p.cfg.OperationTimeout)
	defer cancel()

	partitions, err := p.source.ListPartitions(opCtx)
	if err != nil {
		return nil, err
	}

	next := make(map[string]struct{}, len(partitions))
	for _, id := range partitions {
		next[id] = struct{}{}
	}

	p.knownMu.Lock()
	prev := p.known
	p.known = next
	p.knownMu.Unlock()

	for id := range next {
		if _, ok := prev[id]; !ok && len(prev) > 0 {
			p.logger.Info("new partition discovered",
				"instance", p.cfg.InstanceID,
				"partition", id,
			)
		}
	}

	for id := range prev {
		if _, ok := next[id]; !ok {
			p.cleanupVanished(ctx, id)
		}
	}

	return partitions, nil
}

// cleanupVanished retires a partition that dropped out of the source
// listing, typically after a merge. The lease record is kept but marked
// for cleanup, which removes it from balancing on every instance.
func (p *Processor) cleanupVanished(ctx context.Context, partitionID string) {
	p.logger.Info("partition disappeared from source",
		"instance", p.cfg.InstanceID,
		"partition", partitionID,
	)

	opCtx, cancel := context.WithTimeout(ctx, p.cfg.OperationTimeout)
	defer cancel()

	// Owned locally: stop the pump and release with the cleanup mark. Other
	// live owners retire their own leases through the same diff on their
	// discovery pass.
	if op, ok := p.owned.Load(partitionID); ok {
		if err := p.releaseLease(opCtx, partitionID, op, true); err != nil {
			p.logger.Warn("failed to mark lease for cleanup",
				"partition", partitionID,
				"error", err,
			)
		}
		p.firePartitionGone(partitionID)

		return
	}

	// Unowned or orphaned: any instance may mark the record. Losing the
	// conditional write means someone else got there first.
	lease, err := p.store.Get(opCtx, partitionID)
	if err != nil {
		if !errors.Is(err, types.ErrLeaseNotFound) {
			p.logger.Warn("failed to read lease of vanished partition",
				"partition", partitionID,
				"error", err,
			)
		}

		return
	}
	if lease.MarkedForCleanup {
		return
	}
	if lease.IsOwned() && !lease.IsExpired(time.Now().UTC(), p.cfg.LeaseExpiry) {
		return
	}

	lease.Owner = ""
	lease.MarkedForCleanup = true

	if _, err := p.store.TryUpdate(opCtx, lease); err != nil && !types.IsVersionConflict(err) {
		p.logger.Warn("failed to mark lease for cleanup",
			"partition", partitionID,
			"error", err,
		)
	}
}

// seedLeases creates missing lease records so every live partition is
// visible to balancing. Creation races between instances are expected;
// losing one means the record exists, which is all that matters.
func (p *Processor) seedLeases(ctx context.Context, partitions []string) error {
	for _, partitionID := range partitions {
		opCtx, cancel := context.WithTimeout(ctx, p.cfg.OperationTimeout)

		start := time.Now()
		_, err := p.store.Create(opCtx, types.Lease{PartitionID: partitionID})
		p.metrics.RecordStoreOperationDuration("create", time.Since(start).Seconds())

		cancel()

		if err != nil && !errors.Is(err, types.ErrLeaseExists) {
			return fmt.Errorf("seed lease for %s: %w", partitionID, err)
		}
	}

	return nil
}

// Checkpoint persists a partition's continuation token against its lease.
// Serialized with renewals through the per-partition mutex so the version
// token never goes stale between the two writers.
func (c leaseCheckpointer) Checkpoint(ctx context.Context, partitionID, continuationToken string) error {
	p := c.p

	op, ok := p.owned.Load(partitionID)
	if !ok {
		return fmt.Errorf("checkpoint %s: %w", partitionID, types.ErrLeaseLost)
	}

	op.mu.Lock()
	defer op.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, p.cfg.OperationTimeout)
	defer cancel()

	lease := op.lease
	lease.ContinuationToken = continuationToken
	lease.LastRenewed = time.Now().UTC()

	start := time.Now()
	version, err := p.store.TryUpdate(opCtx, lease)
	p.metrics.RecordStoreOperationDuration("update", time.Since(start).Seconds())

	if err != nil {
		return err
	}

	lease.Version = version
	op.lease = lease

	return nil
}
