package mcp

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/masaicai/openresponses/runtime/toolregistry"
)

func injectTraceHeaders(ctx context.Context, header http.Header) {
	if ctx == nil || header == nil {
		return
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))
}

func addTraceMeta(ctx context.Context, params map[string]any) {
	if ctx == nil || params == nil {
		return
	}
	traceParent, traceState, baggage := toolregistry.InjectTraceContext(ctx)
	meta := make(map[string]string, 3)
	if traceParent != "" {
		meta["traceparent"] = traceParent
	}
	if traceState != "" {
		meta["tracestate"] = traceState
	}
	if baggage != "" {
		meta["baggage"] = baggage
	}
	if len(meta) == 0 {
		return
	}
	params["_meta"] = meta
}
