// Package testing provides test helpers for the changefeed library.
//
// It offers an embedded NATS server with JetStream enabled, KV and stream
// creation shortcuts, and a types.Logger that writes to testing.T. Import
// it under an alias (conventionally cftest) to avoid clashing with the
// standard library's testing package.
package testing
