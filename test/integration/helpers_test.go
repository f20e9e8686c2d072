//go:build integration
// +build integration

package integration_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/benoit160/changefeed"
	"github.com/benoit160/changefeed/internal/logger"
	"github.com/benoit160/changefeed/leasestore"
	"github.com/benoit160/changefeed/source"
	cftest "github.com/benoit160/changefeed/testing"
	"github.com/benoit160/changefeed/types"
)

// feedFixture wires an embedded NATS server, a feed stream and a lease
// bucket for one test.
type feedFixture struct {
	js     jetstream.JetStream
	store  *leasestore.NATSKV
	source *source.JetStream
	prefix string
}

func newFeedFixture(t *testing.T) *feedFixture {
	t.Helper()

	_, nc := cftest.StartEmbeddedNATS(t)
	js := cftest.CreateFeedStream(t, nc, "FEED", "feed")
	kv := cftest.CreateLeaseKV(t, nc, "feed-leases")

	return &feedFixture{
		js:     js,
		store:  leasestore.NewNATSKV(kv),
		source: source.NewJetStream(js, "FEED", "feed"),
		prefix: "feed",
	}
}

// publish appends payloads to a partition of the fixture's feed.
func (f *feedFixture) publish(t *testing.T, partitionID string, payloads ...string) {
	t.Helper()

	for _, payload := range payloads {
		_, err := f.js.Publish(context.Background(), f.prefix+"."+partitionID, []byte(payload))
		require.NoError(t, err)
	}
}

// newProcessor builds a processor over the fixture with fast test timings.
func (f *feedFixture) newProcessor(t *testing.T, instanceID string, handler changefeed.Handler) *changefeed.Processor {
	t.Helper()

	cfg := changefeed.TestConfig()
	cfg.InstanceID = instanceID

	proc, err := changefeed.NewProcessor(&cfg, f.store, f.source, handler,
		changefeed.WithLogger(logger.NewTest(t)),
	)
	require.NoError(t, err)

	return proc
}

// feedRecorder is a handler that records every delivered change and
// asserts per-partition ordering by sequence.
type feedRecorder struct {
	mu      sync.Mutex
	byPart  map[string][]string
	lastSeq map[string]uint64
	orderOK bool
}

func newFeedRecorder() *feedRecorder {
	return &feedRecorder{
		byPart:  make(map[string][]string),
		lastSeq: make(map[string]uint64),
		orderOK: true,
	}
}

func (r *feedRecorder) HandleChanges(_ context.Context, batch types.ChangeBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, change := range batch.Changes {
		if change.Sequence <= r.lastSeq[batch.PartitionID] {
			r.orderOK = false
		}
		r.lastSeq[batch.PartitionID] = change.Sequence
		r.byPart[batch.PartitionID] = append(r.byPart[batch.PartitionID], string(change.Data))
	}

	return nil
}

func (r *feedRecorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, payloads := range r.byPart {
		n += len(payloads)
	}

	return n
}

func (r *feedRecorder) partition(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.byPart[id]))
	copy(out, r.byPart[id])

	return out
}

func (r *feedRecorder) ordered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.orderOK
}

// requireDisjointOwnership fails the test when any partition shows up in
// more than one instance's owned set.
func requireDisjointOwnership(t *testing.T, procs ...*changefeed.Processor) {
	t.Helper()

	seen := make(map[string]string)
	for _, proc := range procs {
		for _, partitionID := range proc.Owned() {
			if other, dup := seen[partitionID]; dup {
				t.Fatalf("partition %s owned by both %s and %s",
					partitionID, other, proc.InstanceID())
			}
			seen[partitionID] = proc.InstanceID()
		}
	}
}

// payloads generates deterministic change payloads for a partition.
func payloads(partitionID string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-change-%03d", partitionID, i)
	}

	return out
}
