package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	// ZapLogger wraps go.uber.org/zap for gateway logging.
	ZapLogger struct {
		base *zap.Logger
	}

	// OtelMetrics wraps OTEL metrics for request instrumentation.
	OtelMetrics struct {
		meter metric.Meter
	}

	// OtelTracer wraps OTEL tracing for request tracing.
	OtelTracer struct {
		tracer trace.Tracer
	}

	otelSpan struct {
		span trace.Span
	}
)

// NewZapLogger constructs a Logger that delegates to a zap.Logger. Pass
// zap.NewProduction() or zap.NewDevelopment() from the caller so log format
// is controlled by configuration, not by this package.
func NewZapLogger(base *zap.Logger) Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return &ZapLogger{base: base}
}

// NewOtelMeter constructs a Metrics recorder backed by the named OTEL meter.
// Configure the global MeterProvider before invoking gateway methods.
func NewOtelMeter(instrumentationName string) Metrics {
	return &OtelMetrics{meter: otel.Meter(instrumentationName)}
}

// NewOtelTracer constructs a Tracer backed by the named OTEL tracer.
// Configure the global TracerProvider before invoking gateway methods.
func NewOtelTracer(instrumentationName string) Tracer {
	return &OtelTracer{tracer: otel.Tracer(instrumentationName)}
}

// Debug emits a debug-level log message with structured key-value pairs.
func (l *ZapLogger) Debug(_ context.Context, msg string, keyvals ...any) {
	l.base.Sugar().Debugw(msg, keyvals...)
}

// Info emits an info-level log message with structured key-value pairs.
func (l *ZapLogger) Info(_ context.Context, msg string, keyvals ...any) {
	l.base.Sugar().Infow(msg, keyvals...)
}

// Warn emits a warning-level log message with structured key-value pairs.
func (l *ZapLogger) Warn(_ context.Context, msg string, keyvals ...any) {
	l.base.Sugar().Warnw(msg, keyvals...)
}

// Error emits an error-level log message with structured key-value pairs.
func (l *ZapLogger) Error(_ context.Context, msg string, keyvals ...any) {
	l.base.Sugar().Errorw(msg, keyvals...)
}

// IncCounter increments a counter metric by the given value.
func (m *OtelMetrics) IncCounter(name string, value float64, tags ...string) {
	counter, err := m.meter.Float64Counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

// RecordTimer records a duration histogram metric.
func (m *OtelMetrics) RecordTimer(name string, duration time.Duration, tags ...string) {
	histogram, err := m.meter.Float64Histogram(name)
	if err != nil {
		return
	}
	histogram.Record(context.Background(), duration.Seconds(), metric.WithAttributes(tagsToAttrs(tags)...))
}

// RecordGauge records a gauge metric value. OTEL has no synchronous gauge
// instrument so this records into a histogram named name+"_gauge" as an
// approximation.
func (m *OtelMetrics) RecordGauge(name string, value float64, tags ...string) {
	histogram, err := m.meter.Float64Histogram(name + "_gauge")
	if err != nil {
		return
	}
	histogram.Record(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

// Start creates a new span with the given name, returning the derived context
// and the span handle.
func (t *OtelTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	newCtx, span := t.tracer.Start(ctx, name, opts...)
	return newCtx, &otelSpan{span: span}
}

// Span retrieves the current span from the context.
func (t *OtelTracer) Span(ctx context.Context) Span {
	return &otelSpan{span: trace.SpanFromContext(ctx)}
}

func (s *otelSpan) End(opts ...trace.SpanEndOption) { s.span.End(opts...) }

func (s *otelSpan) AddEvent(name string, attrs ...any) {
	s.span.AddEvent(name, trace.WithAttributes(kvSliceToAttrs(attrs)...))
}

func (s *otelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

func (s *otelSpan) RecordError(err error, opts ...trace.EventOption) {
	s.span.RecordError(err, opts...)
}

