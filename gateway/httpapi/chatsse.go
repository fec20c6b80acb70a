package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/masaicai/openresponses/gateway/chatapi"
	"github.com/masaicai/openresponses/runtime/agent/stream"
)

// chatChunkSink is a stream.Sink that transcodes the Emitter's Responses-API
// events into OpenAI chat.completion.chunk SSE lines for the
// /v1/chat/completions streaming surface. This keeps the event emitter
// single-sourced: the orchestrator always drives the same emitter/event
// sequence over a single per-request channel, and only the transport-level
// encoding differs by protocol, applied at the Sink boundary instead of
// duplicating the folding logic per wire format.
type chatChunkSink struct {
	w       http.ResponseWriter
	flusher http.Flusher

	id      string
	model   string
	created string

	// toolCallIndex maps an Emitter output_index to the chat-completions
	// tool_calls[] index, assigned in first-seen order: key by index, not
	// array position.
	toolCallIndex map[int]int
	nextToolCall  int
	sawToolCall   bool
	roleSent      bool
}

var _ stream.Sink = (*chatChunkSink)(nil)

func newChatChunkSink(w http.ResponseWriter, id, model, created string) (*chatChunkSink, error) {
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
	return &chatChunkSink{w: w, flusher: flusher, id: id, model: model, created: created, toolCallIndex: make(map[int]int)}, nil
}

// Send implements stream.Sink, mapping each Responses-API event to zero or
// one chat.completion.chunk lines.
func (s *chatChunkSink) Send(ctx context.Context, event stream.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch event.Type() {
	case stream.EventDone:
		return s.writeRaw("event: done\ndata: [DONE]\n\n")

	case stream.EventResponseCreated:
		return s.writeDelta(chatapi.ChunkDelta{Role: "assistant"}, nil)

	case stream.EventOutputTextDelta:
		p := event.Payload().(stream.TextDeltaPayload)
		if p.Delta == "" {
			return nil
		}
		return s.writeDelta(chatapi.ChunkDelta{Content: p.Delta}, nil)

	case stream.EventOutputItemAdded:
		p := event.Payload().(stream.OutputItemPayload)
		if p.ItemType != "function_call" {
			return nil
		}
		idx := s.indexFor(p.OutputIndex)
		s.sawToolCall = true
		return s.writeDelta(chatapi.ChunkDelta{ToolCalls: []chatapi.ChunkToolCall{{
			Index: idx, ID: p.CallID, Type: "function",
			Function: &chatapi.ChunkToolCallFn{Name: p.Name},
		}}}, nil)

	case stream.EventFunctionCallArgumentsDelta:
		p := event.Payload().(stream.FunctionCallArgumentsDeltaPayload)
		if p.Delta == "" {
			return nil
		}
		idx := s.indexFor(p.OutputIndex)
		return s.writeDelta(chatapi.ChunkDelta{ToolCalls: []chatapi.ChunkToolCall{{
			Index: idx, Function: &chatapi.ChunkToolCallFn{Arguments: p.Delta},
		}}}, nil)

	case stream.EventResponseCompleted, stream.EventResponseIncomplete:
		reason := "stop"
		if s.sawToolCall {
			reason = "tool_calls"
		}
		if event.Type() == stream.EventResponseIncomplete {
			reason = "length"
		}
		return s.writeDelta(chatapi.ChunkDelta{}, &reason)

	case stream.EventResponseFailed:
		// Matches : errors mid-stream surface as a terminal event,
		// not an HTTP error, since the stream has already started. Chat
		// completions has no dedicated error chunk shape, so this closes the
		// stream with finish_reason "stop"; the caller observes the
		// truncated content and the [DONE] sentinel that follows.
		reason := "stop"
		return s.writeDelta(chatapi.ChunkDelta{}, &reason)

	default:
		// response.in_progress, content_part.*, output_item.done for message
		// items, reasoning_text.* — none has a chat-completions chunk
		// counterpart; the text/tool_call deltas already carry everything a
		// chat completions client expects.
		return nil
	}
}

func (s *chatChunkSink) indexFor(outputIndex int) int {
	if idx, ok := s.toolCallIndex[outputIndex]; ok {
		return idx
	}
	idx := s.nextToolCall
	s.nextToolCall++
	s.toolCallIndex[outputIndex] = idx
	return idx
}

func (s *chatChunkSink) writeDelta(delta chatapi.ChunkDelta, finishReason *string) error {
	if delta.Role != "" {
		if s.roleSent {
			return nil
		}
		s.roleSent = true
	}
	chunk := chatapi.Chunk{
		ID:      s.id,
		Object:  "chat.completion.chunk",
		Created: s.created,
		Model:   s.model,
		Choices: []chatapi.ChunkChoice{{Index: 0, Delta: delta, FinishReason: finishReason}},
	}
	payload, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("httpapi: marshal chat completion chunk: %w", err)
	}
	return s.writeRaw(fmt.Sprintf("data: %s\n\n", payload))
}

func (s *chatChunkSink) writeRaw(line string) error {
	if _, err := fmt.Fprint(s.w, line); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Close implements stream.Sink.
func (s *chatChunkSink) Close(ctx context.Context) error { return nil }
