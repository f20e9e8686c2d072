// Package hooks provides the default no-op hook implementations.
package hooks

import (
	"context"

	"github.com/benoit160/changefeed/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are
// provided, eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// NewNop creates a new no-op hooks set.
//
// Returns:
//   - types.Hooks: Hooks with no-op implementations
func NewNop() types.Hooks {
	h := &NopHooks{}

	return types.Hooks{
		OnLeaseAcquired: h.OnLeaseAcquired,
		OnLeaseLost:     h.OnLeaseLost,
		OnHandlerError:  h.OnHandlerError,
		OnPartitionGone: h.OnPartitionGone,
	}
}

// OnLeaseAcquired is a no-op implementation.
func (h *NopHooks) OnLeaseAcquired(_ context.Context, _ string) error {
	return nil
}

// OnLeaseLost is a no-op implementation.
func (h *NopHooks) OnLeaseLost(_ context.Context, _ string, _ error) error {
	return nil
}

// OnHandlerError is a no-op implementation.
func (h *NopHooks) OnHandlerError(_ context.Context, _ string, _ int, _ error) error {
	return nil
}

// OnPartitionGone is a no-op implementation.
func (h *NopHooks) OnPartitionGone(_ context.Context, _ string) error {
	return nil
}
