// Package pump implements the per-partition processing loop: pull a batch
// from the change source, deliver it to the user handler, persist the
// checkpoint, repeat.
package pump

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benoit160/changefeed/types"
)

// readMaxAttempts bounds transient retries on source reads and checkpoint
// writes before the pump gives up and stops.
const readMaxAttempts = 5

// errStopped signals a stop request observed mid-operation; it maps to a
// clean pump exit, never to a reported failure.
var errStopped = errors.New("pump stop requested")

// Checkpointer persists a partition's continuation token against the
// caller's lease, failing with types.ErrVersionConflict when the lease
// was reclaimed by another instance.
type Checkpointer interface {
	Checkpoint(ctx context.Context, partitionID, continuationToken string) error
}

// Config holds the dependencies and tuning for a single partition pump.
// The processor fills all fields; New applies defaults for the zero
// values of the tuning fields.
type Config struct {
	// PartitionID is the partition this pump processes.
	PartitionID string

	// StartToken is the continuation token to resume from, already
	// resolved by the processor from the lease checkpoint or the
	// configured start position.
	StartToken string

	Source       types.ChangeSource
	Handler      types.Handler
	Checkpointer Checkpointer

	// PollInterval is how long to sleep after the source reports no new
	// changes.
	PollInterval time.Duration

	// MaxItems caps the batch size requested from the source.
	MaxItems int

	// MaxHandlerRetries bounds delivery attempts per batch. Zero retries
	// forever: a persistently failing handler stalls the partition rather
	// than losing its position.
	MaxHandlerRetries int

	// RetryBaseDelay and RetryMaxDelay shape the jittered backoff between
	// retries of the handler, source reads and checkpoint writes.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// RetrySeed pins the backoff RNG for tests. Zero uses the shared PRNG.
	RetrySeed int64

	Logger  types.Logger
	Metrics types.PumpMetrics

	// OnHandlerError is invoked asynchronously on every handler failure.
	OnHandlerError func(ctx context.Context, partitionID string, attempt int, err error) error
}

// Pump runs the processing loop for one owned partition.
//
// Lifecycle: the processor creates a pump when it acquires a lease, starts
// it, and stops it when the lease is shed, lost or the processor shuts
// down. Stop is graceful: an in-flight batch finishes delivery and
// checkpointing before the goroutine exits, so a handed-over partition
// never replays a batch its previous owner completed.
type Pump struct {
	cfg Config
	rng *rand.Rand

	state   atomic.Int32
	started atomic.Bool

	mu    sync.Mutex
	token string

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	// runErr is written by the run goroutine before doneCh closes.
	runErr error
}

// New creates a pump for one partition. The pump does nothing until Start
// is called.
func New(cfg Config) *Pump {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 100
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 100 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 5 * time.Second
	}

	p := &Pump{
		cfg:    cfg,
		rng:    newRetryRNG(cfg.RetrySeed),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	p.state.Store(int32(types.PumpStarting))
	p.token = cfg.StartToken

	return p
}

// Start launches the pump goroutine. Starting twice is a no-op.
func (p *Pump) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}

	go p.run(ctx)
}

// Stop requests a graceful stop and waits for the pump goroutine to exit
// or the context to expire. Safe to call multiple times.
//
// Returns:
//   - error: Context error if the pump did not exit in time
func (p *Pump) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stopCh) })

	if !p.started.Load() {
		return nil
	}

	select {
	case <-p.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for pump %s to stop: %w", p.cfg.PartitionID, ctx.Err())
	}
}

// Done returns a channel closed when the pump goroutine has exited.
func (p *Pump) Done() <-chan struct{} {
	return p.doneCh
}

// Err returns the failure that stopped the pump, or nil after a clean
// stop. Valid once Done is closed. Lease loss surfaces as an error
// matching types.IsLeaseLost.
func (p *Pump) Err() error {
	select {
	case <-p.doneCh:
		return p.runErr
	default:
		return nil
	}
}

// State returns the pump's current lifecycle state.
func (p *Pump) State() types.PumpState {
	return types.PumpState(p.state.Load())
}

// Token returns the last checkpointed continuation token.
func (p *Pump) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.token
}

func (p *Pump) setToken(token string) {
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
}

func (p *Pump) stopping() bool {
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}

// sleep waits for d, returning false when the wait was cut short by a stop
// request or context cancellation.
func (p *Pump) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-p.stopCh:
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (p *Pump) run(ctx context.Context) {
	defer close(p.doneCh)
	defer p.state.Store(int32(types.PumpStopped))

	p.cfg.Logger.Debug("pump started",
		"partition", p.cfg.PartitionID,
		"startToken", p.cfg.StartToken,
	)

	token := p.cfg.StartToken

	for {
		if p.stopping() || ctx.Err() != nil {
			return
		}

		p.state.Store(int32(types.PumpPolling))

		batch, err := p.readBatch(ctx, token)
		if err != nil {
			p.finish(err)
			return
		}

		if batch.IsEmpty() {
			if !p.sleep(ctx, p.cfg.PollInterval) {
				return
			}

			continue
		}

		// A stop request from here on is honored only after the batch is
		// delivered and checkpointed, so ownership hand-off never replays
		// completed work.
		p.state.Store(int32(types.PumpDelivering))

		if err := p.deliver(ctx, batch); err != nil {
			p.finish(err)
			return
		}

		p.state.Store(int32(types.PumpCheckpointing))

		if err := p.checkpoint(ctx, batch.ContinuationToken); err != nil {
			p.finish(err)
			return
		}

		token = batch.ContinuationToken
		p.setToken(token)
	}
}

// finish records the terminal error, mapping stop requests to a clean exit.
func (p *Pump) finish(err error) {
	if errors.Is(err, errStopped) || errors.Is(err, context.Canceled) {
		return
	}

	p.runErr = err
	p.cfg.Logger.Warn("pump stopped with error",
		"partition", p.cfg.PartitionID,
		"error", err,
	)
}

// readBatch pulls the next batch, retrying transient source failures with
// jittered backoff. Gone partitions and invalid tokens are terminal.
func (p *Pump) readBatch(ctx context.Context, token string) (types.ChangeBatch, error) {
	var delay time.Duration

	for attempt := 1; ; attempt++ {
		batch, err := p.cfg.Source.ReadChanges(ctx, p.cfg.PartitionID, token, p.cfg.MaxItems)
		if err == nil {
			return batch, nil
		}

		if errors.Is(err, types.ErrPartitionGone) {
			return types.ChangeBatch{}, err
		}
		if ctx.Err() != nil {
			return types.ChangeBatch{}, context.Canceled
		}
		if attempt >= readMaxAttempts {
			return types.ChangeBatch{}, fmt.Errorf("reading partition %s: %w", p.cfg.PartitionID, err)
		}

		delay = jitterBackoff(delay, p.cfg.RetryBaseDelay, 2.0, p.cfg.RetryMaxDelay, p.rng)
		p.cfg.Logger.Debug("source read failed, retrying",
			"partition", p.cfg.PartitionID,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		if !p.sleep(ctx, delay) {
			return types.ChangeBatch{}, errStopped
		}
	}
}

// deliver hands the batch to the user handler, retrying failures from the
// same position until the handler succeeds or the retry budget runs out.
func (p *Pump) deliver(ctx context.Context, batch types.ChangeBatch) error {
	var delay time.Duration

	for attempt := 1; ; attempt++ {
		start := time.Now()
		err := p.cfg.Handler.HandleChanges(ctx, batch)
		if err == nil {
			p.cfg.Metrics.RecordBatchDelivered(p.cfg.PartitionID, len(batch.Changes), time.Since(start).Seconds())
			return nil
		}

		p.cfg.Metrics.RecordHandlerFailure(p.cfg.PartitionID)
		p.fireHandlerError(ctx, attempt, err)
		p.cfg.Logger.Warn("handler failed on batch",
			"partition", p.cfg.PartitionID,
			"attempt", attempt,
			"items", len(batch.Changes),
			"error", err,
		)

		if ctx.Err() != nil {
			return context.Canceled
		}
		if p.cfg.MaxHandlerRetries > 0 && attempt >= p.cfg.MaxHandlerRetries {
			return fmt.Errorf("partition %s after %d attempts: %w: %w",
				p.cfg.PartitionID, attempt, types.ErrHandlerFailed, err)
		}

		delay = jitterBackoff(delay, p.cfg.RetryBaseDelay, 2.0, p.cfg.RetryMaxDelay, p.rng)
		if !p.sleep(ctx, delay) {
			return errStopped
		}
	}
}

// checkpoint persists the token against the lease. A version conflict
// means the lease was reclaimed: the pump stops immediately and never
// retries the write.
func (p *Pump) checkpoint(ctx context.Context, token string) error {
	var delay time.Duration

	for attempt := 1; ; attempt++ {
		start := time.Now()
		err := p.cfg.Checkpointer.Checkpoint(ctx, p.cfg.PartitionID, token)
		if err == nil {
			p.cfg.Metrics.RecordCheckpoint(p.cfg.PartitionID, time.Since(start).Seconds())
			return nil
		}

		if types.IsVersionConflict(err) {
			return fmt.Errorf("checkpoint partition %s: %w: %w", p.cfg.PartitionID, types.ErrLeaseLost, err)
		}
		if ctx.Err() != nil {
			return context.Canceled
		}
		if attempt >= readMaxAttempts {
			return fmt.Errorf("checkpoint partition %s: %w", p.cfg.PartitionID, err)
		}

		delay = jitterBackoff(delay, p.cfg.RetryBaseDelay, 2.0, p.cfg.RetryMaxDelay, p.rng)
		p.cfg.Logger.Debug("checkpoint failed, retrying",
			"partition", p.cfg.PartitionID,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		// Keep retrying through a stop request: losing the write here
		// would replay the delivered batch on the next owner.
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return context.Canceled
		case <-timer.C:
		}
	}
}

// fireHandlerError invokes the handler-error hook without blocking the
// delivery loop.
func (p *Pump) fireHandlerError(ctx context.Context, attempt int, handlerErr error) {
	if p.cfg.OnHandlerError == nil {
		return
	}

	go func() {
		if err := p.cfg.OnHandlerError(ctx, p.cfg.PartitionID, attempt, handlerErr); err != nil {
			p.cfg.Logger.Warn("handler-error hook failed",
				"partition", p.cfg.PartitionID,
				"error", err,
			)
		}
	}()
}
