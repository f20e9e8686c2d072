package pump

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/benoit160/changefeed/internal/logger"
	"github.com/benoit160/changefeed/internal/metrics"
	"github.com/benoit160/changefeed/source"
	"github.com/benoit160/changefeed/types"
)

// recordingCheckpointer captures checkpointed tokens and can inject
// transient failures or a version conflict.
type recordingCheckpointer struct {
	mu          sync.Mutex
	tokens      []string
	failFirst   int
	conflictAll bool
}

func (c *recordingCheckpointer) Checkpoint(_ context.Context, partitionID, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conflictAll {
		return fmt.Errorf("update lease %s: %w", partitionID, types.ErrVersionConflict)
	}
	if c.failFirst > 0 {
		c.failFirst--
		return errors.New("transient store error")
	}

	c.tokens = append(c.tokens, token)

	return nil
}

func (c *recordingCheckpointer) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.tokens))
	copy(out, c.tokens)

	return out
}

// collectingHandler records delivered payloads and can fail the first N
// delivery attempts.
type collectingHandler struct {
	mu        sync.Mutex
	payloads  []string
	failFirst int
	attempts  int
}

func (h *collectingHandler) HandleChanges(_ context.Context, batch types.ChangeBatch) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.attempts++
	if h.failFirst > 0 {
		h.failFirst--
		return errors.New("handler boom")
	}

	for _, change := range batch.Changes {
		h.payloads = append(h.payloads, string(change.Data))
	}

	return nil
}

func (h *collectingHandler) delivered() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, len(h.payloads))
	copy(out, h.payloads)

	return out
}

func newTestPump(t *testing.T, cfg Config) *Pump {
	t.Helper()

	if cfg.Logger == nil {
		cfg.Logger = logger.NewTest(t)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNop()
	}
	cfg.PollInterval = 10 * time.Millisecond
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 20 * time.Millisecond
	cfg.RetrySeed = 1

	return New(cfg)
}

func TestPumpDeliversAndCheckpoints(t *testing.T) {
	src := source.NewMemory("p0")
	require.NoError(t, src.Append("p0", []byte("a"), []byte("b"), []byte("c"), []byte("d"), []byte("e")))

	handler := &collectingHandler{}
	cp := &recordingCheckpointer{}

	p := newTestPump(t, Config{
		PartitionID:  "p0",
		Source:       src,
		Handler:      handler,
		Checkpointer: cp,
		MaxItems:     2,
	})
	p.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(handler.delivered()) == 5
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, p.Err())

	require.Equal(t, []string{"a", "b", "c", "d", "e"}, handler.delivered())

	// Checkpoints advance monotonically, one per delivered batch.
	require.Equal(t, []string{"2", "4", "5"}, cp.all())
	require.Equal(t, "5", p.Token())
	require.Equal(t, types.PumpStopped, p.State())
}

func TestPumpPicksUpLiveAppends(t *testing.T) {
	src := source.NewMemory("p0")
	handler := &collectingHandler{}
	cp := &recordingCheckpointer{}

	p := newTestPump(t, Config{
		PartitionID:  "p0",
		Source:       src,
		Handler:      handler,
		Checkpointer: cp,
		MaxItems:     10,
	})
	p.Start(context.Background())
	defer func() { require.NoError(t, p.Stop(context.Background())) }()

	// The pump idles on an empty partition, then drains new appends.
	require.NoError(t, src.Append("p0", []byte("late-1")))

	require.Eventually(t, func() bool {
		return len(handler.delivered()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, src.Append("p0", []byte("late-2")))

	require.Eventually(t, func() bool {
		return len(handler.delivered()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, []string{"late-1", "late-2"}, handler.delivered())
}

func TestPumpResumesFromStartToken(t *testing.T) {
	src := source.NewMemory("p0")
	require.NoError(t, src.Append("p0", []byte("a"), []byte("b"), []byte("c")))

	handler := &collectingHandler{}
	cp := &recordingCheckpointer{}

	p := newTestPump(t, Config{
		PartitionID:  "p0",
		StartToken:   "2",
		Source:       src,
		Handler:      handler,
		Checkpointer: cp,
		MaxItems:     10,
	})
	p.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(handler.delivered()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop(context.Background()))
	require.Equal(t, []string{"c"}, handler.delivered())
}

func TestPumpRetriesHandlerFromSamePosition(t *testing.T) {
	src := source.NewMemory("p0")
	require.NoError(t, src.Append("p0", []byte("a"), []byte("b")))

	handler := &collectingHandler{failFirst: 2}
	cp := &recordingCheckpointer{}

	var hookCalls []int
	var hookMu sync.Mutex

	p := newTestPump(t, Config{
		PartitionID:  "p0",
		Source:       src,
		Handler:      handler,
		Checkpointer: cp,
		MaxItems:     10,
		OnHandlerError: func(_ context.Context, partitionID string, attempt int, err error) error {
			hookMu.Lock()
			defer hookMu.Unlock()
			hookCalls = append(hookCalls, attempt)

			return nil
		},
	})
	p.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(handler.delivered()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, p.Err())

	// Both changes arrive exactly once despite two failed attempts, and
	// the checkpoint only covers the finally-delivered batch.
	require.Equal(t, []string{"a", "b"}, handler.delivered())
	require.Equal(t, []string{"2"}, cp.all())

	hookMu.Lock()
	defer hookMu.Unlock()
	require.Contains(t, hookCalls, 1)
	require.Contains(t, hookCalls, 2)
}

func TestPumpStopsWhenRetryBudgetExhausted(t *testing.T) {
	src := source.NewMemory("p0")
	require.NoError(t, src.Append("p0", []byte("a")))

	handler := &collectingHandler{failFirst: 100}
	cp := &recordingCheckpointer{}

	p := newTestPump(t, Config{
		PartitionID:       "p0",
		Source:            src,
		Handler:           handler,
		Checkpointer:      cp,
		MaxItems:          10,
		MaxHandlerRetries: 3,
	})
	p.Start(context.Background())

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop after exhausting handler retries")
	}

	require.ErrorIs(t, p.Err(), types.ErrHandlerFailed)
	// The checkpoint never advanced past the failing batch.
	require.Empty(t, cp.all())
}

func TestPumpStopsOnCheckpointConflict(t *testing.T) {
	src := source.NewMemory("p0")
	require.NoError(t, src.Append("p0", []byte("a")))

	handler := &collectingHandler{}
	cp := &recordingCheckpointer{conflictAll: true}

	p := newTestPump(t, Config{
		PartitionID:  "p0",
		Source:       src,
		Handler:      handler,
		Checkpointer: cp,
		MaxItems:     10,
	})
	p.Start(context.Background())

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop on checkpoint conflict")
	}

	require.True(t, types.IsLeaseLost(p.Err()))
	require.ErrorIs(t, p.Err(), types.ErrLeaseLost)
}

func TestPumpRetriesTransientCheckpointFailure(t *testing.T) {
	src := source.NewMemory("p0")
	require.NoError(t, src.Append("p0", []byte("a")))

	handler := &collectingHandler{}
	cp := &recordingCheckpointer{failFirst: 2}

	p := newTestPump(t, Config{
		PartitionID:  "p0",
		Source:       src,
		Handler:      handler,
		Checkpointer: cp,
		MaxItems:     10,
	})
	p.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(cp.all()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, p.Err())
	require.Equal(t, []string{"1"}, cp.all())
}

func TestPumpStopsOnPartitionGone(t *testing.T) {
	src := source.NewMemory("p0")

	handler := &collectingHandler{}
	cp := &recordingCheckpointer{}

	p := newTestPump(t, Config{
		PartitionID:  "p0",
		Source:       src,
		Handler:      handler,
		Checkpointer: cp,
		MaxItems:     10,
	})
	p.Start(context.Background())

	src.RemovePartition("p0")

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop after partition removal")
	}

	require.ErrorIs(t, p.Err(), types.ErrPartitionGone)
}

func TestPumpStopBeforeStart(t *testing.T) {
	p := newTestPump(t, Config{
		PartitionID:  "p0",
		Source:       source.NewMemory("p0"),
		Handler:      &collectingHandler{},
		Checkpointer: &recordingCheckpointer{},
	})

	require.NoError(t, p.Stop(context.Background()))
}
