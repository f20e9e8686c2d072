package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/benoit160/changefeed/types"
)

func TestMemoryListPartitionsSorted(t *testing.T) {
	src := NewMemory("p2", "p0", "p1")

	ids, err := src.ListPartitions(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"p0", "p1", "p2"}, ids)
}

func TestMemoryReadFromBeginning(t *testing.T) {
	src := NewMemory("p0")
	ctx := context.Background()

	require.NoError(t, src.Append("p0", []byte("a"), []byte("b"), []byte("c")))

	batch, err := src.ReadChanges(ctx, "p0", "", 10)
	require.NoError(t, err)
	require.Len(t, batch.Changes, 3)
	require.Equal(t, "p0", batch.PartitionID)
	require.Equal(t, []byte("a"), batch.Changes[0].Data)
	require.Equal(t, uint64(1), batch.Changes[0].Sequence)
	require.Equal(t, uint64(3), batch.Changes[2].Sequence)
	require.Equal(t, "3", batch.ContinuationToken)
}

func TestMemoryReadResumesAfterToken(t *testing.T) {
	src := NewMemory("p0")
	ctx := context.Background()

	require.NoError(t, src.Append("p0", []byte("a"), []byte("b"), []byte("c"), []byte("d")))

	first, err := src.ReadChanges(ctx, "p0", "", 2)
	require.NoError(t, err)
	require.Len(t, first.Changes, 2)
	require.Equal(t, "2", first.ContinuationToken)

	second, err := src.ReadChanges(ctx, "p0", first.ContinuationToken, 2)
	require.NoError(t, err)
	require.Len(t, second.Changes, 2)
	require.Equal(t, []byte("c"), second.Changes[0].Data)
	require.Equal(t, "4", second.ContinuationToken)
}

func TestMemoryReadAtTail(t *testing.T) {
	src := NewMemory("p0")
	ctx := context.Background()

	require.NoError(t, src.Append("p0", []byte("a")))

	batch, err := src.ReadChanges(ctx, "p0", "1", 10)
	require.NoError(t, err)
	require.True(t, batch.IsEmpty())
	// The token is preserved across empty reads.
	require.Equal(t, "1", batch.ContinuationToken)
}

func TestMemoryReadEmptyPartition(t *testing.T) {
	src := NewMemory("p0")

	batch, err := src.ReadChanges(context.Background(), "p0", "", 10)
	require.NoError(t, err)
	require.True(t, batch.IsEmpty())
	require.Equal(t, "", batch.ContinuationToken)
}

func TestMemoryReadInvalidToken(t *testing.T) {
	src := NewMemory("p0")

	_, err := src.ReadChanges(context.Background(), "p0", "not-a-number", 10)
	require.Error(t, err)
}

func TestMemoryPartitionGone(t *testing.T) {
	src := NewMemory("p0")
	ctx := context.Background()

	src.RemovePartition("p0")

	_, err := src.ReadChanges(ctx, "p0", "", 10)
	require.ErrorIs(t, err, types.ErrPartitionGone)

	_, err = src.TailToken(ctx, "p0")
	require.ErrorIs(t, err, types.ErrPartitionGone)

	_, err = src.PendingChanges(ctx, "p0", "")
	require.ErrorIs(t, err, types.ErrPartitionGone)

	require.ErrorIs(t, src.Append("p0", []byte("x")), types.ErrPartitionGone)
}

func TestMemoryTailToken(t *testing.T) {
	src := NewMemory("p0")
	ctx := context.Background()

	tail, err := src.TailToken(ctx, "p0")
	require.NoError(t, err)
	require.Equal(t, "0", tail)

	require.NoError(t, src.Append("p0", []byte("a"), []byte("b")))

	tail, err = src.TailToken(ctx, "p0")
	require.NoError(t, err)
	require.Equal(t, "2", tail)

	// Reading from the tail skips the existing backlog.
	batch, err := src.ReadChanges(ctx, "p0", tail, 10)
	require.NoError(t, err)
	require.True(t, batch.IsEmpty())

	require.NoError(t, src.Append("p0", []byte("c")))

	batch, err = src.ReadChanges(ctx, "p0", tail, 10)
	require.NoError(t, err)
	require.Len(t, batch.Changes, 1)
	require.Equal(t, []byte("c"), batch.Changes[0].Data)
}

func TestMemoryPendingChanges(t *testing.T) {
	src := NewMemory("p0")
	ctx := context.Background()

	pending, err := src.PendingChanges(ctx, "p0", "")
	require.NoError(t, err)
	require.Zero(t, pending)

	require.NoError(t, src.Append("p0", []byte("a"), []byte("b"), []byte("c")))

	pending, err = src.PendingChanges(ctx, "p0", "")
	require.NoError(t, err)
	require.Equal(t, int64(3), pending)

	pending, err = src.PendingChanges(ctx, "p0", "2")
	require.NoError(t, err)
	require.Equal(t, int64(1), pending)
}

func TestMemoryAddPartitionIdempotent(t *testing.T) {
	src := NewMemory()
	ctx := context.Background()

	src.AddPartition("p0")
	require.NoError(t, src.Append("p0", []byte("a")))

	// Re-adding must not wipe the log.
	src.AddPartition("p0")

	pending, err := src.PendingChanges(ctx, "p0", "")
	require.NoError(t, err)
	require.Equal(t, int64(1), pending)
}
