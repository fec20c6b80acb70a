// Package toolregistry carries the context plumbing shared between the
// gateway's tool dispatch and the transports that surface tool activity to
// callers: an output-delta publisher native tools use to stream best-effort
// progress fragments while a tool runs, and W3C Trace Context helpers for
// carrying the request trace across process boundaries.
package toolregistry

import "context"

type (
	// OutputDeltaPublisher emits best-effort tool output deltas for a single
	// tool execution. The HTTP layer injects an instance into the tool call
	// context so native tools can stream partial output while running; the
	// canonical tool result is still the string the executor returns.
	OutputDeltaPublisher interface {
		PublishToolOutputDelta(ctx context.Context, stream string, delta string) error
	}

	outputDeltaPublisherKey struct{}
)

// WithOutputDeltaPublisher returns a context that carries pub.
func WithOutputDeltaPublisher(ctx context.Context, pub OutputDeltaPublisher) context.Context {
	return context.WithValue(ctx, outputDeltaPublisherKey{}, pub)
}

// OutputDeltaPublisherFromContext returns the output-delta publisher carried by
// ctx, if any.
func OutputDeltaPublisherFromContext(ctx context.Context) (OutputDeltaPublisher, bool) {
	pub, ok := ctx.Value(outputDeltaPublisherKey{}).(OutputDeltaPublisher)
	return pub, ok
}
