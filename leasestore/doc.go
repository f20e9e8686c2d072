// Package leasestore provides LeaseStore implementations.
//
// The NATS implementation stores one lease record per partition in a
// JetStream KeyValue bucket and uses the entry revision as the lease's
// optimistic-concurrency version token: Create fails when the key exists,
// and Update fails when the supplied revision is stale. These two
// conditional operations are the only concurrency control the library
// needs.
//
// The memory implementation mirrors the same semantics in-process and is
// used by unit tests and multi-instance simulations.
package leasestore
