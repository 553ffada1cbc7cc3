package procbridge

import (
	"context"
	"fmt"
)

// WithBridge manages bridge lifecycle with automatic cleanup.
//
// This helper creates a bridge, activates it with spec, executes the callback
// with the channel, and shuts the bridge down when the callback returns.
//
// If the callback returns an error, it is returned to the caller.
// If Shutdown fails, a warning is logged but does not override the
// callback's error.
//
// Example usage:
//
//	err := procbridge.WithBridge(ctx, spec, func(ch procbridge.Channel) error {
//	    _, err := io.WriteString(ch, "ping\n")
//	    return err
//	},
//	    procbridge.WithLogger(log),
//	)
func WithBridge(ctx context.Context, spec LaunchSpec, fn func(Channel) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyBridgeOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	bridge := newBridgeImpl(options)

	ch, err := bridge.Activate(ctx, spec)
	if err != nil {
		return fmt.Errorf("failed to activate bridge: %w", err)
	}

	defer func() {
		// The callback's context may already be done; shutdown still has to run.
		if shutdownErr := bridge.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			log.Warn("failed to shut down bridge", "error", shutdownErr)
		}
	}()

	return fn(ch)
}
