package errors

import (
	"errors"
	"fmt"
	"time"
)

// BridgeError is the base interface for all bridge errors.
type BridgeError interface {
	error
	IsBridgeError() bool
}

// Compile-time verification that all error types implement BridgeError.
var (
	_ BridgeError = (*LaunchError)(nil)
	_ BridgeError = (*UnexpectedExitError)(nil)
	_ BridgeError = (*ShutdownTimeoutError)(nil)
	_ BridgeError = (*SpecFileError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrInvalidLaunchSpec indicates the launch spec cannot describe a process.
	ErrInvalidLaunchSpec = errors.New("invalid launch spec")

	// ErrAlreadyActivated indicates Activate was called on a bridge that already owns a process.
	ErrAlreadyActivated = errors.New("bridge already activated")

	// ErrBridgeClosed indicates the bridge has been shut down and cannot be reused.
	ErrBridgeClosed = errors.New("bridge closed: bridges are single-use, create a new one with New()")

	// ErrNotActivated indicates the bridge has no process yet.
	ErrNotActivated = errors.New("bridge not activated")

	// ErrStdinClosed indicates the child's stdin was closed with CloseWrite.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrProcessExited indicates the child process is no longer running.
	ErrProcessExited = errors.New("process exited")
)

// LaunchError indicates the OS could not start the child process.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *LaunchError) IsBridgeError() bool { return true }

// UnexpectedExitError indicates the child process ended without a shutdown request.
type UnexpectedExitError struct {
	PID      int
	ExitCode int
	Signal   string
	Err      error
}

func (e *UnexpectedExitError) Error() string {
	if e.Signal != "" {
		return fmt.Sprintf("process %d exited unexpectedly (signal %s)", e.PID, e.Signal)
	}

	return fmt.Sprintf("process %d exited unexpectedly (exit %d)", e.PID, e.ExitCode)
}

// Unwrap returns the wait error together with ErrProcessExited so callers can
// match either.
func (e *UnexpectedExitError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProcessExited}
	}

	return []error{ErrProcessExited, e.Err}
}

// IsBridgeError implements BridgeError.
func (e *UnexpectedExitError) IsBridgeError() bool { return true }

// ShutdownTimeoutError reports that a graceful termination request was not
// honoured within the grace period and the process was killed.
//
// It is returned after the process has been reaped; no resources are leaked.
type ShutdownTimeoutError struct {
	PID         int
	GracePeriod time.Duration
}

func (e *ShutdownTimeoutError) Error() string {
	return fmt.Sprintf("process %d did not exit within %s, killed", e.PID, e.GracePeriod)
}

// IsBridgeError implements BridgeError.
func (e *ShutdownTimeoutError) IsBridgeError() bool { return true }

// SpecFileError indicates a launch spec file could not be loaded.
type SpecFileError struct {
	File string
	Err  error
}

func (e *SpecFileError) Error() string {
	return fmt.Sprintf("load launch spec %s: %v", e.File, e.Err)
}

func (e *SpecFileError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *SpecFileError) IsBridgeError() bool { return true }
