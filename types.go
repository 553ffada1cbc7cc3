package procbridge

import "github.com/wagiedev/procbridge/internal/config"

// Re-export configuration types from internal package.
type (
	// LaunchSpec describes the executable a bridge starts.
	LaunchSpec = config.LaunchSpec

	// Channel is the duplex byte stream bound to the child's stdin and stdout.
	Channel = config.Channel

	// ExitReport describes how a bridged process ended.
	ExitReport = config.ExitReport

	// State is the lifecycle state of a bridged process.
	State = config.State

	// BridgeOptions holds the settings applied by Option values.
	BridgeOptions = config.Options
)

// Lifecycle states.
const (
	StateIdle            = config.StateIdle
	StateStarting        = config.StateStarting
	StateRunning         = config.StateRunning
	StateExitedCleanly   = config.StateExitedCleanly
	StateExitedWithError = config.StateExitedWithError
	StateKilled          = config.StateKilled
	StateFailed          = config.StateFailed
)

// Defaults applied when the corresponding option is not set.
const (
	DefaultGracePeriod  = config.DefaultGracePeriod
	DefaultDrainTimeout = config.DefaultDrainTimeout
)
