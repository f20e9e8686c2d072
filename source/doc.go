// Package source provides built-in change source implementations.
//
// Change sources expose a partitioned, append-only feed of changes that
// the processor pulls from. The package includes:
//
//   - Memory: In-process append-only logs, useful for tests and examples
//   - JetStream: NATS JetStream stream, one subject per partition
//
// Custom sources can be implemented by satisfying the types.ChangeSource
// interface. Continuation tokens are opaque to the processor; both
// built-in sources encode the last delivered sequence number as a
// decimal string, with the empty token meaning "start from the
// beginning".
package source
