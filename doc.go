// Package changefeed distributes the processing of a partitioned change
// feed across competing instances.
//
// Each partition of the feed is guarded by a lease record in a shared
// lease store. Instances acquire leases through conditional writes,
// renew them while alive, and steal orphaned or excess leases from each
// other until the partitions are spread evenly. Every owned partition is
// driven by a pump that pulls change batches from the source, delivers
// them to the user handler and persists a checkpoint, giving at-least-once
// delivery with per-partition ordering.
//
// There is no coordinator and no instance-to-instance communication: the
// lease store's version tokens are the only concurrency control. Any
// instance can crash at any point; its leases expire and are reclaimed,
// and its partitions resume from their last checkpoints.
//
// # Basic Usage
//
//	cfg := changefeed.DefaultConfig()
//	cfg.InstanceID = "worker-1"
//
//	store, err := leasestore.Bootstrap(ctx, js, "orders-leases")
//	if err != nil { /* handle */ }
//
//	src := source.NewJetStream(js, "ORDERS", "orders")
//
//	proc, err := changefeed.NewProcessor(&cfg, store, src,
//	    changefeed.HandlerFunc(func(ctx context.Context, batch changefeed.ChangeBatch) error {
//	        for _, change := range batch.Changes {
//	            process(change)
//	        }
//	        return nil
//	    }))
//	if err != nil { /* handle */ }
//
//	if err := proc.Start(ctx); err != nil { /* handle */ }
//	defer proc.Stop(context.Background())
//
// Run the same program on any number of machines; the instances divide
// the partitions among themselves and re-divide on every scale-up,
// scale-down or crash.
//
// # Monitoring
//
// The Estimator reports how far processing lags behind the feed without
// participating in it, and the metrics subpackage provides a Prometheus
// collector for lease and pump metrics.
package changefeed
