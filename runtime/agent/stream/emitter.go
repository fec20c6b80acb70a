package stream

import (
	"context"
	"fmt"

	"github.com/masaicai/openresponses/gateway/accumulator"
)

// itemKind identifies which Responses-API output item kind an output index
// is tracked as, so Emitter can pick the right event/payload shapes when it
// later closes that item out.
type itemKind int

const (
	itemMessage itemKind = iota
	itemFunctionCall
	itemReasoning
)

type itemState struct {
	kind        itemKind
	itemID      string
	outputIndex int
	contentOpen bool // message items: whether content_part.added has fired
	name        string
	callID      string
}

// Emitter owns the sequencing contract for one
// response's event stream and translates accumulator.FoldEvent
// values, plus a handful of orchestrator-driven lifecycle calls, into the
// ordered Responses-API SSE sequence delivered to a Sink.
//
// Only one goroutine may drive an Emitter for a given response: the
// Orchestrator is the sole per-request producer (package doc in
// stream.go), so Emitter itself does no internal locking.
type Emitter struct {
	sink       Sink
	responseID string
	model      string
	seq        int

	items       map[int]*itemState // fold index -> item state
	nextOutput  int                // next output_index to assign
	createdSent bool
	closed      bool
}

// NewEmitter constructs an Emitter for one response/model pair. Nothing is
// sent until Start is called.
func NewEmitter(sink Sink, responseID, model string) *Emitter {
	return &Emitter{
		sink:       sink,
		responseID: responseID,
		model:      model,
		items:      make(map[int]*itemState),
	}
}

func (e *Emitter) send(ctx context.Context, t EventType, payload any) error {
	evt := NewBase(t, e.responseID, e.seq, payload)
	e.seq++
	return e.sink.Send(ctx, evt)
}

// Created emits the single response.created event; it must be called
// exactly once, before any fold events are translated, ahead of the
// orchestrator's first CALLING transition.
func (e *Emitter) Created(ctx context.Context, createdAt string) error {
	if e.createdSent {
		return fmt.Errorf("stream: response.created already sent for %s", e.responseID)
	}
	e.createdSent = true
	return e.send(ctx, EventResponseCreated, ResponseCreatedPayload{
		ID: e.responseID, Model: e.model, CreatedAt: createdAt,
	})
}

// InProgress emits response.in_progress, marking the CALLING→STREAMING
// transition.
func (e *Emitter) InProgress(ctx context.Context) error {
	return e.send(ctx, EventResponseInProgress, ResponseInProgressPayload{ID: e.responseID})
}

// Start is a convenience that emits response.created followed immediately by
// response.in_progress, for callers that do not need the two transitions
// separated (e.g. a single-turn non-orchestrated stream).
func (e *Emitter) Start(ctx context.Context, createdAt string) error {
	if err := e.Created(ctx, createdAt); err != nil {
		return err
	}
	return e.InProgress(ctx)
}

// itemFor returns the tracked item state for a fold index, allocating an
// output_index and item id on first reference.
func (e *Emitter) itemFor(index int, kind itemKind) *itemState {
	st, ok := e.items[index]
	if !ok {
		st = &itemState{kind: kind, outputIndex: e.nextOutput, itemID: fmt.Sprintf("%s_out_%d", e.responseID, e.nextOutput)}
		e.nextOutput++
		e.items[index] = st
	}
	return st
}

// Translate applies one accumulator.FoldEvent, emitting zero or more
// Responses-API events in the order the ordering contract requires: an
// item's .added precedes its deltas, which precede its .done, and content
// parts are nested within message items.
func (e *Emitter) Translate(ctx context.Context, fold accumulator.FoldEvent) error {
	switch f := fold.(type) {
	case accumulator.TextStarted:
		st := e.itemFor(f.Index, itemMessage)
		if err := e.send(ctx, EventOutputItemAdded, OutputItemPayload{
			OutputIndex: st.outputIndex, ItemID: st.itemID, ItemType: "message", Status: "in_progress",
		}); err != nil {
			return err
		}
		st.contentOpen = true
		return e.send(ctx, EventContentPartAdded, ContentPartPayload{
			OutputIndex: st.outputIndex, ItemID: st.itemID, ContentIndex: 0, PartType: "output_text",
		})

	case accumulator.TextDelta:
		st := e.itemFor(f.Index, itemMessage)
		return e.send(ctx, EventOutputTextDelta, TextDeltaPayload{
			OutputIndex: st.outputIndex, ItemID: st.itemID, ContentIndex: 0, Delta: f.Text,
		})

	case accumulator.TextDone:
		st := e.itemFor(f.Index, itemMessage)
		if err := e.send(ctx, EventOutputTextDone, TextDeltaPayload{
			OutputIndex: st.outputIndex, ItemID: st.itemID, ContentIndex: 0, Text: f.Text,
		}); err != nil {
			return err
		}
		if st.contentOpen {
			if err := e.send(ctx, EventContentPartDone, ContentPartPayload{
				OutputIndex: st.outputIndex, ItemID: st.itemID, ContentIndex: 0, PartType: "output_text",
			}); err != nil {
				return err
			}
		}
		return e.send(ctx, EventOutputItemDone, OutputItemPayload{
			OutputIndex: st.outputIndex, ItemID: st.itemID, ItemType: "message", Status: "completed",
		})

	case accumulator.ToolCallStarted:
		st := e.itemFor(f.Index, itemFunctionCall)
		st.name, st.callID = f.Name, f.ID
		return e.send(ctx, EventOutputItemAdded, OutputItemPayload{
			OutputIndex: st.outputIndex, ItemID: st.itemID, ItemType: "function_call", Status: "in_progress",
			CallID: f.ID, Name: f.Name,
		})

	case accumulator.ToolCallArgsDelta:
		st := e.itemFor(f.Index, itemFunctionCall)
		return e.send(ctx, EventFunctionCallArgumentsDelta, FunctionCallArgumentsDeltaPayload{
			OutputIndex: st.outputIndex, ItemID: st.itemID, Delta: f.Delta,
		})

	case accumulator.ToolCallDone:
		st := e.itemFor(f.Index, itemFunctionCall)
		if err := e.send(ctx, EventFunctionCallArgumentsDone, FunctionCallArgumentsDeltaPayload{
			OutputIndex: st.outputIndex, ItemID: st.itemID, Arguments: f.Arguments,
		}); err != nil {
			return err
		}
		status := "completed"
		if f.InvalidJSON {
			status = "incomplete"
		}
		return e.send(ctx, EventOutputItemDone, OutputItemPayload{
			OutputIndex: st.outputIndex, ItemID: st.itemID, ItemType: "function_call", Status: status,
			CallID: st.callID, Name: st.name,
		})

	case accumulator.ReasoningDelta:
		st := e.itemFor(f.Index, itemReasoning)
		return e.send(ctx, EventReasoningDelta, ReasoningDeltaPayload{
			OutputIndex: st.outputIndex, ItemID: st.itemID, Delta: f.Text,
		})

	case accumulator.TurnDone:
		// TurnDone carries no per-item payload of its own; the orchestrator
		// decides whether the whole response is complete/incomplete/failed and
		// calls Complete/Incomplete/Fail accordingly, since a TurnDone that
		// produced tool calls is not yet a terminal response event: the
		// loop continues into EXECUTING/APPENDING/CALLING.
		return nil

	default:
		return fmt.Errorf("stream: unrecognized fold event %T", fold)
	}
}

// Complete emits the single terminal response.completed event: exactly
// one terminal event, nothing follows it.
func (e *Emitter) Complete(ctx context.Context, usage map[string]int) error {
	return e.terminal(ctx, EventResponseCompleted, ResponseTerminalPayload{ID: e.responseID, Status: "completed", Usage: usage})
}

// Incomplete emits response.incomplete with the given reason ("max_tool_calls",
// "timeout" or "max_output_tokens") as the terminal event.
func (e *Emitter) Incomplete(ctx context.Context, reason string, usage map[string]int) error {
	return e.terminal(ctx, EventResponseIncomplete, ResponseTerminalPayload{
		ID: e.responseID, Status: "incomplete", IncompleteReason: reason, Usage: usage,
	})
}

// Fail emits response.failed as the terminal event. The HTTP status of the
// surrounding request remains 200; only this event's body
// signals the error to the client.
func (e *Emitter) Fail(ctx context.Context, errType, message string) error {
	return e.terminal(ctx, EventResponseFailed, ResponseFailedPayload{
		ID: e.responseID, Error: map[string]string{"type": errType, "message": message},
	})
}

// EndTurn drops per-turn item tracking so the next provider turn's fold
// indexes (which restart at zero) allocate fresh output items and ids
// instead of reusing the previous turn's already-closed ones. Assigned
// output_index values keep increasing across turns.
func (e *Emitter) EndTurn() {
	e.items = make(map[int]*itemState)
}

func (e *Emitter) terminal(ctx context.Context, t EventType, payload any) error {
	if e.closed {
		return fmt.Errorf("stream: terminal event already sent for %s", e.responseID)
	}
	e.closed = true
	return e.send(ctx, t, payload)
}

// ChatCompletionDone writes the chat-completion-style "[DONE]" sentinel after
// the terminal event, for streams served over the /v1/chat/completions
// surface rather than /v1/responses.
func (e *Emitter) ChatCompletionDone(ctx context.Context) error {
	return e.send(ctx, EventDone, nil)
}
