// Package procbridge launches a child process and exposes its standard input
// and output as a duplex byte channel.
//
// A Bridge owns exactly one child for its whole life. The bytes on the channel
// are opaque to the bridge: a protocol client (a language server client, an
// MCP client, a line reader) owns the stream, and the bridge owns the process.
//
// # Basic Usage
//
//	bridge := procbridge.New()
//	defer bridge.Shutdown(ctx)
//
//	ch, err := bridge.Activate(ctx, procbridge.LaunchSpec{
//	    Path:    "server",
//	    BaseDir: installDir,
//	    Args:    []string{"--stdio"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	io.WriteString(ch, "ping\n")
//
// A relative Path is resolved against BaseDir and PATH is never searched.
// ExecutableDir returns the directory of the running program, which is the
// usual BaseDir for a server shipped next to its host.
//
// # Exit Notification
//
// When the child exits without a shutdown request the bridge releases the
// channel and calls the exit callback once:
//
//	bridge := procbridge.New(
//	    procbridge.WithExitCallback(func(r procbridge.ExitReport) {
//	        log.Printf("server stopped: state=%s code=%d", r.State, r.ExitCode)
//	    }),
//	)
//
// Writes on a released channel fail with *UnexpectedExitError; reads return
// the output still buffered and then io.EOF.
//
// # Shutdown
//
// Shutdown closes both pipe ends, sends a graceful termination request
// (SIGTERM to the process group on unix, CTRL_BREAK on windows), and kills
// the child if it is still alive after the grace period:
//
//	if err := bridge.Shutdown(ctx); err != nil {
//	    if timeoutErr, ok := errors.AsType[*procbridge.ShutdownTimeoutError](err); ok {
//	        log.Printf("pid %d was killed", timeoutErr.PID)
//	    }
//	}
//
// # Launch Spec Files
//
// LoadLaunchSpec reads a LaunchSpec from TOML, YAML or JSON with ${VAR}
// expansion.
//
// # Logging
//
// For detailed operation tracking, use WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	bridge := procbridge.New(procbridge.WithLogger(logger))
//
// # Error Handling
//
// The package provides typed errors for the failure scenarios:
//
//	ch, err := bridge.Activate(ctx, spec)
//	if err != nil {
//	    if launchErr, ok := errors.AsType[*procbridge.LaunchError](err); ok {
//	        log.Fatalf("cannot start %s: %v", launchErr.Path, launchErr.Err)
//	    }
//	    log.Fatal(err)
//	}
package procbridge
