package config

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a bridged process.
//
// Transitions are one-way: Idle -> Starting -> Running -> one of the
// terminal states. A launch that never produced a process ends in Failed.
type State int32

const (
	// StateIdle indicates the bridge has not been activated.
	StateIdle State = iota
	// StateStarting indicates the process is being launched.
	StateStarting
	// StateRunning indicates the process is alive and the channel is open.
	StateRunning
	// StateExitedCleanly indicates the process exited with status 0.
	StateExitedCleanly
	// StateExitedWithError indicates the process exited with a non-zero status.
	StateExitedWithError
	// StateKilled indicates the process was terminated by a signal.
	StateKilled
	// StateFailed indicates the process could not be launched. A process that
	// started and was killed because activation was abandoned reports
	// StateKilled instead.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateExitedCleanly:
		return "exited_cleanly"
	case StateExitedWithError:
		return "exited_with_error"
	case StateKilled:
		return "killed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// IsTerminal reports whether no further transition can happen from s.
func (s State) IsTerminal() bool {
	switch s {
	case StateExitedCleanly, StateExitedWithError, StateKilled, StateFailed:
		return true
	default:
		return false
	}
}

// ExitReport describes how a bridged process ended.
type ExitReport struct {
	// HandleID identifies the process handle the report belongs to.
	HandleID string

	// PID is the OS process ID of the child.
	PID int

	// State is the terminal state reached.
	State State

	// ExitCode is the exit status, or -1 when the process was killed by a signal.
	ExitCode int

	// Signal names the terminating signal, if any.
	Signal string

	// Unexpected is true when the process ended without a shutdown request.
	Unexpected bool

	// Escalated is true when shutdown had to kill the process after the grace period.
	Escalated bool

	// StartedAt is when the process was started.
	StartedAt time.Time

	// ExitedAt is when the exit was observed.
	ExitedAt time.Time

	// Stderr holds the tail of the child's stderr when capture was requested.
	Stderr string

	// Err is the error returned by waiting on the process, if any.
	Err error
}

// Runtime returns how long the process ran.
func (r ExitReport) Runtime() time.Duration {
	if r.StartedAt.IsZero() || r.ExitedAt.IsZero() {
		return 0
	}

	return r.ExitedAt.Sub(r.StartedAt)
}

// Abnormal reports whether the process ended with a non-zero status or a signal.
func (r ExitReport) Abnormal() bool {
	return r.State == StateExitedWithError || r.State == StateKilled
}
