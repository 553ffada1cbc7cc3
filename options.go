package procbridge

import (
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Option configures BridgeOptions using the functional options pattern.
type Option func(*BridgeOptions)

// applyBridgeOptions applies functional options to a BridgeOptions struct.
func applyBridgeOptions(opts []Option) *BridgeOptions {
	options := &BridgeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *BridgeOptions) {
		o.Logger = logger
	}
}

// ===== Lifecycle =====

// WithGracePeriod sets how long Shutdown waits for the process to exit after
// the graceful termination request before killing it. Defaults to 5s.
func WithGracePeriod(d time.Duration) Option {
	return func(o *BridgeOptions) {
		o.GracePeriod = d
	}
}

// WithDrainTimeout sets how long stdout stays readable after the process
// exited on its own. Defaults to 1s.
func WithDrainTimeout(d time.Duration) Option {
	return func(o *BridgeOptions) {
		o.DrainTimeout = d
	}
}

// WithExitCallback registers fn to be called when the process exits without
// a shutdown request. It is called at most once, from its own goroutine,
// after the channel has been released.
func WithExitCallback(fn func(ExitReport)) Option {
	return func(o *BridgeOptions) {
		o.OnExit = fn
	}
}

// ===== Stderr =====

// WithStderr copies the child's stderr to w instead of inheriting the
// parent's stderr. The tail is kept in ExitReport.Stderr.
func WithStderr(w io.Writer) Option {
	return func(o *BridgeOptions) {
		o.Stderr = w
	}
}

// WithStderrCallback delivers the child's stderr line by line to handler
// instead of inheriting the parent's stderr.
func WithStderrCallback(handler func(string)) Option {
	return func(o *BridgeOptions) {
		o.StderrCallback = handler
	}
}

// ===== Telemetry =====

// WithTracerProvider sets the provider for activate and shutdown spans.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *BridgeOptions) {
		o.TracerProvider = tp
	}
}

// WithMeterProvider sets the provider for process metrics.
// Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *BridgeOptions) {
		o.MeterProvider = mp
	}
}
