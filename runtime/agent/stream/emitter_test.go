package stream

import (
	"context"
	"testing"

	"github.com/masaicai/openresponses/gateway/accumulator"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events []Event
	closed bool
}

func (s *recordingSink) Send(_ context.Context, event Event) error {
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Close(_ context.Context) error {
	s.closed = true
	return nil
}

func (s *recordingSink) types() []EventType {
	out := make([]EventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type())
	}
	return out
}

func TestEmitterStartSendsCreatedBeforeInProgress(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	e := NewEmitter(sink, "resp_1", "gpt-test")
	require.NoError(t, e.Start(context.Background(), "1700000000"))

	require.Equal(t, []EventType{EventResponseCreated, EventResponseInProgress}, sink.types())
	require.Equal(t, 0, sink.events[0].SequenceNumber())
	require.Equal(t, 1, sink.events[1].SequenceNumber())
}

func TestEmitterStartTwiceFails(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	e := NewEmitter(sink, "resp_1", "gpt-test")
	require.NoError(t, e.Start(context.Background(), "1700000000"))
	require.Error(t, e.Start(context.Background(), "1700000000"))
}

func TestEmitterTextSequenceOrdering(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	e := NewEmitter(sink, "resp_1", "gpt-test")
	ctx := context.Background()
	require.NoError(t, e.Start(ctx, "1700000000"))

	require.NoError(t, e.Translate(ctx, accumulator.TextStarted{Index: 0}))
	require.NoError(t, e.Translate(ctx, accumulator.TextDelta{Index: 0, Text: "Hel"}))
	require.NoError(t, e.Translate(ctx, accumulator.TextDelta{Index: 0, Text: "lo"}))
	require.NoError(t, e.Translate(ctx, accumulator.TextDone{Index: 0, Text: "Hello"}))
	require.NoError(t, e.Complete(ctx, nil))

	require.Equal(t, []EventType{
		EventResponseCreated,
		EventResponseInProgress,
		EventOutputItemAdded,
		EventContentPartAdded,
		EventOutputTextDelta,
		EventOutputTextDelta,
		EventOutputTextDone,
		EventContentPartDone,
		EventOutputItemDone,
		EventResponseCompleted,
	}, sink.types())

	last := sink.events[len(sink.events)-1]
	payload, ok := last.Payload().(ResponseTerminalPayload)
	require.True(t, ok)
	require.Equal(t, "completed", payload.Status)
}

func TestEmitterFunctionCallSequenceOrdering(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	e := NewEmitter(sink, "resp_2", "gpt-test")
	ctx := context.Background()
	require.NoError(t, e.Start(ctx, "1700000000"))

	require.NoError(t, e.Translate(ctx, accumulator.ToolCallStarted{Index: 0, ID: "call_1", Name: "get_weather"}))
	require.NoError(t, e.Translate(ctx, accumulator.ToolCallArgsDelta{Index: 0, Delta: `{"city":`}))
	require.NoError(t, e.Translate(ctx, accumulator.ToolCallArgsDelta{Index: 0, Delta: `"nyc"}`}))
	require.NoError(t, e.Translate(ctx, accumulator.ToolCallDone{Index: 0, ID: "call_1", Name: "get_weather", Arguments: `{"city":"nyc"}`}))

	require.Equal(t, []EventType{
		EventResponseCreated,
		EventResponseInProgress,
		EventOutputItemAdded,
		EventFunctionCallArgumentsDelta,
		EventFunctionCallArgumentsDelta,
		EventFunctionCallArgumentsDone,
		EventOutputItemDone,
	}, sink.types())

	doneEvt := sink.events[len(sink.events)-1]
	payload, ok := doneEvt.Payload().(OutputItemPayload)
	require.True(t, ok)
	require.Equal(t, "completed", payload.Status)
	require.Equal(t, "get_weather", payload.Name)
	require.Equal(t, "call_1", payload.CallID)
}

func TestEmitterToolCallInvalidJSONMarksItemIncomplete(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	e := NewEmitter(sink, "resp_3", "gpt-test")
	ctx := context.Background()
	require.NoError(t, e.Start(ctx, "1700000000"))
	require.NoError(t, e.Translate(ctx, accumulator.ToolCallStarted{Index: 0, ID: "call_1", Name: "broken"}))
	require.NoError(t, e.Translate(ctx, accumulator.ToolCallDone{Index: 0, ID: "call_1", Name: "broken", Arguments: "{not json", InvalidJSON: true}))

	last := sink.events[len(sink.events)-1]
	payload, ok := last.Payload().(OutputItemPayload)
	require.True(t, ok)
	require.Equal(t, "incomplete", payload.Status)
}

func TestEmitterIncompleteIsTerminalAndRejectsSecondTerminal(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	e := NewEmitter(sink, "resp_4", "gpt-test")
	ctx := context.Background()
	require.NoError(t, e.Start(ctx, "1700000000"))
	require.NoError(t, e.Incomplete(ctx, "max_tool_calls", map[string]int{"total_tokens": 10}))
	require.Error(t, e.Complete(ctx, nil))

	last := sink.events[len(sink.events)-1]
	require.Equal(t, EventResponseIncomplete, last.Type())
}

func TestEmitterFailEmitsResponseFailed(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	e := NewEmitter(sink, "resp_5", "gpt-test")
	ctx := context.Background()
	require.NoError(t, e.Start(ctx, "1700000000"))
	require.NoError(t, e.Fail(ctx, "api_error", "upstream exploded"))

	last := sink.events[len(sink.events)-1]
	require.Equal(t, EventResponseFailed, last.Type())
	payload, ok := last.Payload().(ResponseFailedPayload)
	require.True(t, ok)
	require.Equal(t, "upstream exploded", payload.Error["message"])
}

func TestEmitterChatCompletionDoneSentinelFollowsTerminal(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	e := NewEmitter(sink, "resp_6", "gpt-test")
	ctx := context.Background()
	require.NoError(t, e.Start(ctx, "1700000000"))
	require.NoError(t, e.Complete(ctx, nil))
	require.NoError(t, e.ChatCompletionDone(ctx))

	types := sink.types()
	require.Equal(t, EventDone, types[len(types)-1])
	require.Equal(t, EventResponseCompleted, types[len(types)-2])
}

func TestEmitterEndTurnAllocatesFreshItemsNextTurn(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	e := NewEmitter(sink, "resp_4", "gpt-test")
	ctx := context.Background()
	require.NoError(t, e.Start(ctx, "1700000000"))

	// Turn 1: a tool call at fold index 0.
	require.NoError(t, e.Translate(ctx, accumulator.ToolCallStarted{Index: 0, ID: "call_1", Name: "get_weather"}))
	require.NoError(t, e.Translate(ctx, accumulator.ToolCallDone{Index: 0, ID: "call_1", Name: "get_weather", Arguments: `{}`}))
	e.EndTurn()

	// Turn 2 restarts fold indexes at 0; the emitter must allocate a new
	// output item instead of reopening the closed one.
	require.NoError(t, e.Translate(ctx, accumulator.TextStarted{Index: 0}))
	require.NoError(t, e.Translate(ctx, accumulator.TextDelta{Index: 0, Text: "done"}))
	require.NoError(t, e.Translate(ctx, accumulator.TextDone{Index: 0, Text: "done"}))
	require.NoError(t, e.Complete(ctx, nil))

	var added []OutputItemPayload
	for _, evt := range sink.events {
		if evt.Type() == EventOutputItemAdded {
			added = append(added, evt.Payload().(OutputItemPayload))
		}
	}
	require.Len(t, added, 2)
	require.Equal(t, 0, added[0].OutputIndex)
	require.Equal(t, 1, added[1].OutputIndex)
	require.NotEqual(t, added[0].ItemID, added[1].ItemID)
}
