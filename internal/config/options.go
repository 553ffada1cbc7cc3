package config

import (
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultGracePeriod is the time shutdown waits between the graceful
// termination request and the forceful kill.
const DefaultGracePeriod = 5 * time.Second

// DefaultDrainTimeout is how long a process that exited on its own keeps its
// stdout open for the caller to read what it wrote before exiting.
const DefaultDrainTimeout = time.Second

// Options configures the behavior of a process bridge.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// GracePeriod bounds how long shutdown waits for a graceful exit.
	// Zero uses DefaultGracePeriod.
	GracePeriod time.Duration

	// DrainTimeout bounds how long stdout stays readable after the process
	// exited on its own. Zero uses DefaultDrainTimeout.
	DrainTimeout time.Duration

	// OnExit is called at most once per process when it exits without a
	// shutdown request.
	OnExit func(ExitReport)

	// Stderr receives the child's stderr. If both Stderr and StderrCallback
	// are nil the child inherits the parent's stderr.
	Stderr io.Writer

	// StderrCallback receives the child's stderr line by line.
	StderrCallback func(string)

	// TracerProvider supplies the tracer for activate and shutdown spans.
	// If nil, the global provider is used.
	TracerProvider trace.TracerProvider

	// MeterProvider supplies the meter for process metrics.
	// If nil, the global provider is used.
	MeterProvider metric.MeterProvider
}

// EffectiveGracePeriod returns GracePeriod or DefaultGracePeriod when unset.
func (o *Options) EffectiveGracePeriod() time.Duration {
	if o == nil || o.GracePeriod <= 0 {
		return DefaultGracePeriod
	}

	return o.GracePeriod
}

// EffectiveDrainTimeout returns DrainTimeout or DefaultDrainTimeout when unset.
func (o *Options) EffectiveDrainTimeout() time.Duration {
	if o == nil || o.DrainTimeout <= 0 {
		return DefaultDrainTimeout
	}

	return o.DrainTimeout
}

// CapturesStderr reports whether the child's stderr is redirected away from
// the parent's.
func (o *Options) CapturesStderr() bool {
	return o != nil && (o.Stderr != nil || o.StderrCallback != nil)
}
