// Package stream translates the Chunk Accumulator's fold-state
// transitions into the ordered Responses-API Server-Sent Event sequence,
// delivered to clients through a transport-agnostic Sink (SSE, WebSocket,
// Pulse).
//
// All event types implement the Event interface and can be safely sent
// concurrently through a Sink implementation, though the Orchestrator is
// the only writer for any one request: funneling all writes through a
// single per-request producer keeps events from interleaving.
package stream

import (
	"context"
)

type (
	// Sink delivers streaming updates to clients over a transport (SSE,
	// WebSocket, Pulse). Implementations must be thread-safe, though in
	// practice the Orchestrator is the sole caller of Send for a given
	// request (see package doc).
	Sink interface {
		// Send publishes an event to the sink's underlying transport. The
		// implementation is responsible for marshaling the event into the wire
		// format (e.g. "event: <type>\ndata: <json>\n\n" for SSE) and handling
		// transport-specific delivery semantics.
		Send(ctx context.Context, event Event) error

		// Close releases resources owned by the sink (connections, buffers).
		// Close is idempotent; after it returns, subsequent Send calls must
		// return errors.
		Close(ctx context.Context) error
	}

	// Event describes one Responses-API SSE event. All concrete event types
	// embed Base to provide standard metadata (type, response/run id,
	// sequence, payload); concrete payload types are accessed by type
	// assertion when a consumer needs structured fields rather than the
	// generic Payload().
	Event interface {
		// Type returns the Responses-API event type constant (e.g.
		// EventResponseCreated, EventOutputTextDelta).
		Type() EventType

		// ResponseID returns the id of the response this event belongs to,
		// the equivalent of the agent runtime's RunID for this domain.
		ResponseID() string

		// SequenceNumber returns this event's position within the response's
		// event stream, starting at 0, used by clients resuming a stream and
		// by tests asserting the ordering contract.
		SequenceNumber() int

		// Payload returns the event-specific data in JSON-serializable form.
		Payload() any
	}

	// Base carries the fields every concrete Event embeds. Field names are
	// abbreviated since consumers use the interface methods, not direct
	// field access.
	Base struct {
		t   EventType
		rid string
		seq int
		p   any
	}
)

// NewBase constructs a Base event envelope with the given type, response id,
// sequence number, and JSON-serializable payload.
func NewBase(t EventType, responseID string, seq int, payload any) Base {
	return Base{t: t, rid: responseID, seq: seq, p: payload}
}

// Type implements Event.Type.
func (b Base) Type() EventType { return b.t }

// ResponseID implements Event.ResponseID.
func (b Base) ResponseID() string { return b.rid }

// SequenceNumber implements Event.SequenceNumber.
func (b Base) SequenceNumber() int { return b.seq }

// Payload implements Event.Payload.
func (b Base) Payload() any { return b.p }

// EventType identifies a Responses-API SSE event kind. Values are the exact
// wire strings sent as the SSE "event:" line.
type EventType string

const (
	EventResponseCreated    EventType = "response.created"
	EventResponseInProgress EventType = "response.in_progress"
	EventResponseCompleted  EventType = "response.completed"
	EventResponseFailed     EventType = "response.failed"
	EventResponseIncomplete EventType = "response.incomplete"

	EventOutputItemAdded EventType = "response.output_item.added"
	EventOutputItemDone  EventType = "response.output_item.done"

	EventContentPartAdded EventType = "response.content_part.added"
	EventContentPartDone  EventType = "response.content_part.done"

	EventOutputTextDelta EventType = "response.output_text.delta"
	EventOutputTextDone  EventType = "response.output_text.done"

	EventFunctionCallArgumentsDelta EventType = "response.function_call_arguments.delta"
	EventFunctionCallArgumentsDone  EventType = "response.function_call_arguments.done"

	EventReasoningDelta EventType = "response.reasoning_text.delta"
	EventReasoningDone  EventType = "response.reasoning_text.done"

	// EventDone is the chat-completion-style "[DONE]" sentinel written after
	// the terminal event for non-Responses streams.
	EventDone EventType = "done"
)

// Payload shapes for each event kind. Field names mirror the Responses API
// JSON so Sinks can marshal Payload() generically without this package
// knowing about the transport's wire framing.
type (
	// ResponseCreatedPayload accompanies the single response.created event
	// that must precede everything else in a turn.
	ResponseCreatedPayload struct {
		ID        string `json:"id"`
		Model     string `json:"model"`
		CreatedAt string `json:"created_at"`
	}

	// ResponseInProgressPayload marks the transition into active streaming.
	ResponseInProgressPayload struct {
		ID string `json:"id"`
	}

	// OutputItemPayload accompanies output_item.added/done; Status is only
	// meaningful on .done ("completed" | "incomplete" | "failed").
	OutputItemPayload struct {
		OutputIndex int    `json:"output_index"`
		ItemID      string `json:"item_id"`
		ItemType    string `json:"type"` // "message" | "function_call" | "reasoning"
		Status      string `json:"status,omitempty"`
		CallID      string `json:"call_id,omitempty"`
		Name        string `json:"name,omitempty"`
	}

	// ContentPartPayload accompanies content_part.added/done for message items.
	ContentPartPayload struct {
		OutputIndex  int    `json:"output_index"`
		ItemID       string `json:"item_id"`
		ContentIndex int    `json:"content_index"`
		PartType     string `json:"part_type"` // "output_text"
	}

	// TextDeltaPayload accompanies output_text.delta/done.
	TextDeltaPayload struct {
		OutputIndex  int    `json:"output_index"`
		ItemID       string `json:"item_id"`
		ContentIndex int    `json:"content_index"`
		Delta        string `json:"delta,omitempty"`
		Text         string `json:"text,omitempty"` // populated on .done with the full segment
	}

	// FunctionCallArgumentsDeltaPayload accompanies
	// function_call_arguments.delta/done.
	FunctionCallArgumentsDeltaPayload struct {
		OutputIndex int    `json:"output_index"`
		ItemID      string `json:"item_id"`
		Delta       string `json:"delta,omitempty"`
		Arguments   string `json:"arguments,omitempty"` // populated on .done
	}

	// ReasoningDeltaPayload accompanies reasoning_text.delta/done.
	ReasoningDeltaPayload struct {
		OutputIndex int    `json:"output_index"`
		ItemID      string `json:"item_id"`
		Delta       string `json:"delta,omitempty"`
		Text        string `json:"text,omitempty"`
	}

	// ResponseTerminalPayload accompanies response.completed/incomplete.
	ResponseTerminalPayload struct {
		ID                string         `json:"id"`
		Status            string         `json:"status"`
		IncompleteReason  string         `json:"incomplete_reason,omitempty"` // "max_tool_calls" | "timeout" | "max_output_tokens"
		Usage             map[string]int `json:"usage,omitempty"`
	}

	// ResponseFailedPayload accompanies response.failed; HTTP status remains
	// 200 even though this signals an error.
	ResponseFailedPayload struct {
		ID    string            `json:"id"`
		Error map[string]string `json:"error"`
	}
)
