package changefeed

import "github.com/benoit160/changefeed/types"

// Re-export types from the types subpackage.
//
// This file provides a stable public API for the library's core types and
// interfaces. It uses type aliases to re-export definitions from the
// `types` subpackage, which contains the actual implementations.
//
// This pattern solves the "import cycle" problem by allowing internal
// packages to depend on `types` without depending on the root `changefeed`
// package, while still providing a convenient `changefeed.Lease`,
// `changefeed.Handler`, etc. for users.
type (
	Lease       = types.Lease
	Change      = types.Change
	ChangeBatch = types.ChangeBatch
	HandlerFunc = types.HandlerFunc
)

// Re-export interfaces from the types subpackage for convenience.
type (
	Handler          = types.Handler
	LeaseStore       = types.LeaseStore
	ChangeSource     = types.ChangeSource
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export enumerations from the types subpackage.
type (
	StartPosition = types.StartPosition
	PumpState     = types.PumpState
)

// Re-export StartPosition constants.
const (
	StartBeginning = types.StartBeginning
	StartNow       = types.StartNow
	StartCustom    = types.StartCustom
)

// Re-export PumpState constants.
const (
	PumpStarting      = types.PumpStarting
	PumpPolling       = types.PumpPolling
	PumpDelivering    = types.PumpDelivering
	PumpCheckpointing = types.PumpCheckpointing
	PumpStopped       = types.PumpStopped
)
