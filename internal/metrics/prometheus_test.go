package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/benoit160/changefeed/types"
)

func TestPrometheusImplementsInterface(t *testing.T) {
	var _ types.MetricsCollector = (*PrometheusCollector)(nil)
}

func TestNewPrometheusDefaults(t *testing.T) {
	p := NewPrometheus(nil, "")

	require.NotNil(t, p)
	require.Equal(t, "changefeed", p.namespace)
}

func TestPrometheusRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "cf_test")

	p.RecordLeaseAcquired("p0", false)
	p.RecordLeaseAcquired("p1", true)
	p.RecordLeaseReleased("p0")
	p.RecordLeaseLost("p1")
	p.RecordLeaseRenewal(true)
	p.RecordLeaseRenewal(false)
	p.RecordOwnedLeases(2)
	p.RecordStoreOperationDuration("update", 0.004)
	p.RecordBatchDelivered("p0", 25, 0.1)
	p.RecordHandlerFailure("p0")
	p.RecordCheckpoint("p0", 0.002)
	p.RecordBacklog("p1", 17)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}

	require.True(t, names["cf_test_lease_acquisitions_total"])
	require.True(t, names["cf_test_lease_owned_current"])
	require.True(t, names["cf_test_pump_batches_delivered_total"])
	require.True(t, names["cf_test_pump_handler_failures_total"])
	require.True(t, names["cf_test_estimator_backlog_changes"])
}

func TestPrometheusRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "cf_once")

	// Repeated recording must not re-register collectors.
	for range 10 {
		p.RecordLeaseRenewal(true)
		p.RecordOwnedLeases(1)
	}

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
