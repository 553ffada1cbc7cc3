package procbridge

import "context"

// Bridge launches one child process and exposes its stdin and stdout as a
// duplex Channel.
//
// Lifecycle: bridges are single-use. After Shutdown, create a new bridge
// with New(). Any number of bridges may run side by side; they share no
// state.
//
// Example usage:
//
//	bridge := procbridge.New(
//	    procbridge.WithLogger(slog.Default()),
//	    procbridge.WithExitCallback(func(r procbridge.ExitReport) {
//	        log.Printf("server exited: %s", r.State)
//	    }),
//	)
//	defer bridge.Shutdown(ctx)
//
//	ch, err := bridge.Activate(ctx, procbridge.LaunchSpec{Path: "server"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Hand ch to the protocol client that owns the byte stream.
type Bridge interface {
	// Activate launches the process described by spec and returns the
	// channel bound to its stdin and stdout. The channel is usable
	// immediately.
	// Returns *LaunchError if the OS cannot start the process,
	// ErrAlreadyActivated on a second call and ErrBridgeClosed after Shutdown.
	Activate(ctx context.Context, spec LaunchSpec) (Channel, error)

	// Shutdown closes both pipe ends, asks the process to terminate and
	// kills it when it is still alive after the grace period. In that case
	// *ShutdownTimeoutError is returned once the process has been reaped.
	// Safe to call multiple times and before Activate.
	Shutdown(ctx context.Context) error

	// State returns the lifecycle state of the bridged process.
	State() State

	// Wait blocks until the process has exited and returns its report.
	// Returns ErrNotActivated if Activate has not succeeded.
	Wait(ctx context.Context) (*ExitReport, error)
}

// New creates a bridge. No process is started until Activate.
//
//	bridge := procbridge.New(
//	    procbridge.WithLogger(slog.Default()),
//	    procbridge.WithGracePeriod(2*time.Second),
//	)
func New(opts ...Option) Bridge {
	return newBridgeImpl(applyBridgeOptions(opts))
}
