// Package telemetry holds the OpenTelemetry instruments recorded by the
// process bridge.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wagiedev/procbridge/internal/config"
)

// ScopeName is the instrumentation scope for spans and metrics.
const ScopeName = "github.com/wagiedev/procbridge"

// Attribute keys shared by spans and metrics.
const (
	AttrHandleID   = attribute.Key("procbridge.handle_id")
	AttrPath       = attribute.Key("procbridge.path")
	AttrPID        = attribute.Key("procbridge.pid")
	AttrResult     = attribute.Key("procbridge.result")
	AttrState      = attribute.Key("procbridge.state")
	AttrUnexpected = attribute.Key("procbridge.unexpected")
)

// Instruments records spans and metrics for one bridge.
type Instruments struct {
	tracer      trace.Tracer
	launches    metric.Int64Counter
	exits       metric.Int64Counter
	escalations metric.Int64Counter
	running     metric.Int64UpDownCounter
}

// New creates instruments from the given providers, falling back to the
// otel globals for nil providers.
func New(tp trace.TracerProvider, mp metric.MeterProvider) (*Instruments, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	meter := mp.Meter(ScopeName)

	launches, err := meter.Int64Counter("procbridge.launches",
		metric.WithDescription("Process launch attempts"),
		metric.WithUnit("{launch}"))
	if err != nil {
		return nil, fmt.Errorf("create launches counter: %w", err)
	}

	exits, err := meter.Int64Counter("procbridge.exits",
		metric.WithDescription("Bridged processes that reached a terminal state"),
		metric.WithUnit("{exit}"))
	if err != nil {
		return nil, fmt.Errorf("create exits counter: %w", err)
	}

	escalations, err := meter.Int64Counter("procbridge.shutdown.escalations",
		metric.WithDescription("Shutdowns that had to kill the process after the grace period"),
		metric.WithUnit("{escalation}"))
	if err != nil {
		return nil, fmt.Errorf("create escalations counter: %w", err)
	}

	running, err := meter.Int64UpDownCounter("procbridge.processes.running",
		metric.WithDescription("Bridged processes currently running"),
		metric.WithUnit("{process}"))
	if err != nil {
		return nil, fmt.Errorf("create running counter: %w", err)
	}

	return &Instruments{
		tracer:      tp.Tracer(ScopeName),
		launches:    launches,
		exits:       exits,
		escalations: escalations,
		running:     running,
	}, nil
}

// Start opens a span named name.
func (i *Instruments) Start(
	ctx context.Context,
	name string,
	attrs ...attribute.KeyValue,
) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Launched records a launch attempt. result is "success", "failure" or "cancelled".
func (i *Instruments) Launched(ctx context.Context, result string) {
	i.launches.Add(ctx, 1, metric.WithAttributes(AttrResult.String(result)))

	if result == "success" {
		i.running.Add(ctx, 1)
	}
}

// Exited records a process reaching its terminal state.
func (i *Instruments) Exited(ctx context.Context, report config.ExitReport) {
	i.running.Add(ctx, -1)
	i.exits.Add(ctx, 1, metric.WithAttributes(
		AttrState.String(report.State.String()),
		AttrUnexpected.Bool(report.Unexpected),
	))
}

// Escalated records a shutdown that fell back to a forceful kill.
func (i *Instruments) Escalated(ctx context.Context) {
	i.escalations.Add(ctx, 1)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}
