package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/masaicai/openresponses/runtime/agent/telemetry"
	"github.com/masaicai/openresponses/runtime/toolregistry"
)

type ctxKey int

const (
	ctxKeyBearer ctxKey = iota
	ctxKeyProvider
)

// bearerFromContext returns the caller's Authorization bearer token, if any,
// extracted by requestContext. Not yet consumed by provideradapter.Registry,
// which caches one client per provider family for the process lifetime
// (see DESIGN.md's Provider Registry open-question entry); kept available
// in context for a future per-request client path.
func bearerFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyBearer).(string)
	return v
}

// providerHeaderFromContext returns the x-model-provider header value, if
// any, extracted by requestContext.
func providerHeaderFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyProvider).(string)
	return v
}

// requestContext stashes the Authorization bearer token and x-model-provider
// header onto the request context so handlers can reach them without
// re-parsing r.Header past the point the request body has been consumed, and
// joins the request to the caller's W3C trace when traceparent/tracestate/
// baggage headers are present, so the run observation nests under it.
func requestContext(r *http.Request) context.Context {
	ctx := r.Context()
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		ctx = context.WithValue(ctx, ctxKeyBearer, strings.TrimPrefix(auth, "Bearer "))
	}
	if provider := r.Header.Get("x-model-provider"); provider != "" {
		ctx = context.WithValue(ctx, ctxKeyProvider, provider)
	}
	ctx = toolregistry.ExtractTraceContext(ctx,
		r.Header.Get("traceparent"), r.Header.Get("tracestate"), r.Header.Get("baggage"))
	return ctx
}

// requestLogger logs one line per request at completion through the
// structured telemetry.Logger rather than a bespoke access-log format.
func requestLogger(logger telemetry.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.Info(r.Context(), "http request",
				"method", r.Method, "path", r.URL.Path,
				"status", sw.status, "duration_ms", time.Since(start).Milliseconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
