package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/masaicai/openresponses/runtime/agent/stream"
	"github.com/masaicai/openresponses/runtime/toolregistry"
)

// sseSink writes stream.Event values as Server-Sent Events: "event: <type>\n
// data: <json>\n\n", flushing after every write so the client observes
// deltas as they arrive rather than buffered behind the transport.
//
// The orchestrator is the only goroutine sending catalog events, but tool
// executions publish best-effort output deltas concurrently through
// PublishToolOutputDelta, so every write to the underlying ResponseWriter is
// serialized behind mu.
type sseSink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

var (
	_ stream.Sink                       = (*sseSink)(nil)
	_ toolregistry.OutputDeltaPublisher = (*sseSink)(nil)
)

func newSSESink(w http.ResponseWriter) (*sseSink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("httpapi: response writer does not support streaming flush")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseSink{w: w, flusher: flusher}, nil
}

// Send implements stream.Sink.
func (s *sseSink) Send(ctx context.Context, event stream.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Type() == stream.EventDone {
		return s.write("event: done\ndata: [DONE]\n\n")
	}
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("httpapi: marshal sse payload: %w", err)
	}
	return s.write(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type(), payload))
}

// PublishToolOutputDelta implements toolregistry.OutputDeltaPublisher:
// best-effort progress fragments from a running tool, framed as their own
// event type so they never masquerade as catalog output-item events.
func (s *sseSink) PublishToolOutputDelta(ctx context.Context, streamName, delta string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]string{"tool": streamName, "delta": delta})
	if err != nil {
		return fmt.Errorf("httpapi: marshal tool output delta: %w", err)
	}
	return s.write(fmt.Sprintf("event: response.tool_call.output_delta\ndata: %s\n\n", payload))
}

func (s *sseSink) write(record string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprint(s.w, record); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Close implements stream.Sink. The underlying HTTP response is closed by
// the handler returning; there is nothing this sink itself owns to release.
func (s *sseSink) Close(ctx context.Context) error {
	return nil
}

// nullSink discards every event; used for non-streaming requests where the
// Orchestrator still drives an Emitter internally (always streams
// provider-side) but the HTTP layer only wants the final assembled document.
type nullSink struct{}

var _ stream.Sink = nullSink{}

func (nullSink) Send(ctx context.Context, event stream.Event) error { return nil }
func (nullSink) Close(ctx context.Context) error                    { return nil }
