// Package telemetry provides the logging, metrics, and tracing interfaces
// used throughout the gateway. Implementations wrap a concrete backend (zap,
// OpenTelemetry, goa.design/clue) behind small interfaces so components and
// tests can depend on the interface rather than a vendor SDK.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging used throughout the gateway.
// Implementations typically delegate to zap but the interface is
// intentionally small so tests can provide lightweight stubs.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter and histogram helpers for request instrumentation.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer abstracts span creation so gateway code can remain agnostic of the
// underlying OpenTelemetry provider.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span represents an in-flight tracing span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// ToolTelemetry captures observability metadata collected during a tool
// execution or provider call. Common fields provide type safety for the
// standard metrics; Extra holds provider/tool-specific data.
type ToolTelemetry struct {
	// DurationMs is the wall-clock execution time in milliseconds.
	DurationMs int64
	// TokensUsed tracks the total tokens consumed by the call.
	TokensUsed int
	// Model identifies which model served the call (e.g. "openai@gpt-4o").
	Model string
	// Extra holds tool- or provider-specific metadata not captured above.
	Extra map[string]any
}

// Bundle groups the three telemetry facets so they can be handed to a
// component as one value (the Orchestrator's Telemetry field).
type Bundle struct {
	Logger Logger
	Tracer Tracer
	Meter  Metrics
}

// Noop returns a Bundle whose facets all discard their input. Useful as a
// default when a caller does not configure telemetry explicitly.
func Noop() Bundle {
	return Bundle{Logger: NewNoopLogger(), Tracer: NewNoopTracer(), Meter: NewNoopMetrics()}
}
