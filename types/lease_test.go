package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLeaseIsOwned(t *testing.T) {
	require.False(t, Lease{PartitionID: "p0"}.IsOwned())
	require.True(t, Lease{PartitionID: "p0", Owner: "inst-a"}.IsOwned())
}

func TestLeaseIsExpired(t *testing.T) {
	now := time.Now()
	expiry := 30 * time.Second

	tests := []struct {
		name        string
		lastRenewed time.Time
		expired     bool
	}{
		{"freshly renewed", now, false},
		{"within window", now.Add(-15 * time.Second), false},
		{"exactly at window", now.Add(-expiry), false},
		{"past window", now.Add(-expiry - time.Second), true},
		{"never renewed", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Lease{PartitionID: "p0", Owner: "inst-a", LastRenewed: tt.lastRenewed}
			require.Equal(t, tt.expired, l.IsExpired(now, expiry))
		})
	}
}

func TestLeaseHeldBy(t *testing.T) {
	now := time.Now()
	expiry := 10 * time.Second

	l := Lease{PartitionID: "p0", Owner: "inst-a", LastRenewed: now}
	require.True(t, l.HeldBy("inst-a", now, expiry))
	require.False(t, l.HeldBy("inst-b", now, expiry))

	// An expired renewal means the lease is no longer held, regardless of
	// the recorded owner.
	l.LastRenewed = now.Add(-time.Minute)
	require.False(t, l.HeldBy("inst-a", now, expiry))
}

func TestChangeBatchIsEmpty(t *testing.T) {
	require.True(t, ChangeBatch{PartitionID: "p0"}.IsEmpty())

	b := ChangeBatch{
		PartitionID: "p0",
		Changes:     []Change{{PartitionID: "p0", Sequence: 1}},
	}
	require.False(t, b.IsEmpty())
}

func TestStartPositionString(t *testing.T) {
	require.Equal(t, "Beginning", StartBeginning.String())
	require.Equal(t, "Now", StartNow.String())
	require.Equal(t, "Custom", StartCustom.String())
	require.Equal(t, "Unknown", StartPosition(99).String())
}

func TestPumpStateString(t *testing.T) {
	require.Equal(t, "Starting", PumpStarting.String())
	require.Equal(t, "Polling", PumpPolling.String())
	require.Equal(t, "Delivering", PumpDelivering.String())
	require.Equal(t, "Checkpointing", PumpCheckpointing.String())
	require.Equal(t, "Stopped", PumpStopped.String())
	require.Equal(t, "Unknown", PumpState(99).String())
}
