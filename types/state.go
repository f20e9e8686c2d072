package types

// PumpState represents the lifecycle state of a single partition pump.
//
// States follow a defined progression during normal operation:
//
//	PumpStarting → PumpPolling → (PumpDelivering → PumpCheckpointing → PumpPolling)* → PumpStopped
//
// PumpStopped is terminal and reachable from any state, either through an
// explicit stop (graceful shutdown, lease shed) or through lease loss.
type PumpState int32

const (
	// PumpStarting is the initial state before the first poll.
	PumpStarting PumpState = iota

	// PumpPolling indicates the pump is reading the next batch from the
	// source, or sleeping the poll interval after an empty read.
	PumpPolling

	// PumpDelivering indicates the user handler is processing a batch.
	PumpDelivering

	// PumpCheckpointing indicates the pump is persisting the batch's
	// continuation token to the lease store.
	PumpCheckpointing

	// PumpStopped is the terminal state; the processor removes the pump
	// from its active set.
	PumpStopped
)

// String returns the string representation of the pump state.
func (s PumpState) String() string {
	switch s {
	case PumpStarting:
		return "Starting"
	case PumpPolling:
		return "Polling"
	case PumpDelivering:
		return "Delivering"
	case PumpCheckpointing:
		return "Checkpointing"
	case PumpStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
