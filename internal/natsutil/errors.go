// Package natsutil provides NATS-specific error classification helpers.
package natsutil

import (
	"errors"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/benoit160/changefeed/types"
)

// IsConnectivityError checks if an error is caused by connectivity issues.
//
// This includes NATS timeouts, connection refused, disconnections, etc.
// Connectivity errors are transient: callers retry them with backoff
// instead of treating them as lease races or application failures.
//
// Kept in internal/natsutil to avoid importing NATS dependencies in the
// types/ package.
//
// Parameters:
//   - err: Error to check
//
// Returns:
//   - bool: true if error indicates a connectivity issue
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, types.ErrConnectivity) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "i/o timeout")
}

// IsWrongLastRevision checks if an error is a JetStream conditional-write
// failure, i.e. the ExpectedLastSubjectSequence supplied with a KV update
// did not match the server's state.
//
// jetstream.ErrKeyExists carries the same API error code
// (JSErrCodeStreamWrongLastSequence), so errors.Is matches both the
// Create-on-existing-key case and the stale-revision Update case.
func IsWrongLastRevision(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, jetstream.ErrKeyExists) ||
		strings.Contains(err.Error(), "wrong last sequence")
}
