package procbridge

import "github.com/wagiedev/procbridge/internal/errors"

// Re-export error types from internal package

// LaunchError indicates the OS could not start the child process.
type LaunchError = errors.LaunchError

// UnexpectedExitError indicates the child exited without a shutdown request.
type UnexpectedExitError = errors.UnexpectedExitError

// ShutdownTimeoutError indicates the child had to be killed after the grace period.
type ShutdownTimeoutError = errors.ShutdownTimeoutError

// SpecFileError indicates a launch spec file could not be loaded.
type SpecFileError = errors.SpecFileError

// BridgeError is the base interface for all bridge errors.
type BridgeError = errors.BridgeError

// Re-export sentinel errors from internal package.
var (
	// ErrInvalidLaunchSpec indicates the launch spec cannot describe a process.
	ErrInvalidLaunchSpec = errors.ErrInvalidLaunchSpec

	// ErrAlreadyActivated indicates Activate was called twice.
	ErrAlreadyActivated = errors.ErrAlreadyActivated

	// ErrBridgeClosed indicates the bridge has been shut down and cannot be reused.
	ErrBridgeClosed = errors.ErrBridgeClosed

	// ErrNotActivated indicates the bridge has no process yet.
	ErrNotActivated = errors.ErrNotActivated

	// ErrStdinClosed indicates a write after CloseWrite.
	ErrStdinClosed = errors.ErrStdinClosed

	// ErrProcessExited indicates the child process is no longer running.
	ErrProcessExited = errors.ErrProcessExited
)
