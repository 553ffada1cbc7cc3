package config

import (
	"context"
	"io"
)

// Channel is the duplex byte stream bound to a child's stdin and stdout.
//
// Read drains the child's stdout and Write feeds its stdin. The bytes are
// opaque to the bridge. Channel does not serialize concurrent readers or
// concurrent writers; callers that need that must add their own locking.
//
// Close shuts the process down the same way Bridge.Shutdown does and is safe
// to call multiple times.
type Channel interface {
	io.ReadWriteCloser

	// CloseWrite closes the child's stdin, signalling end of input.
	// The process keeps running and Read continues to work.
	CloseWrite() error

	// Done returns a channel that is closed once the process has exited and
	// both pipe ends are closed.
	Done() <-chan struct{}

	// Wait blocks until the process has exited and returns its report.
	Wait(ctx context.Context) (*ExitReport, error)

	// ID returns the unique identifier of the process handle.
	ID() string

	// PID returns the OS process ID of the child.
	PID() int

	// State returns the current lifecycle state of the child.
	State() State
}
