package accumulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaicai/openresponses/runtime/agent/model"
)

func TestFoldTextThenStop(t *testing.T) {
	t.Parallel()
	s := NewStreamState()

	events := s.Fold(model.Chunk{Type: model.ChunkTypeText, Message: &model.Message{Parts: []model.Part{model.TextPart{Text: "Hel"}}}})
	require.Len(t, events, 2)
	assert.Equal(t, TextStarted{Index: 0}, events[0])
	assert.Equal(t, TextDelta{Index: 0, Text: "Hel"}, events[1])

	events = s.Fold(model.Chunk{Type: model.ChunkTypeText, Message: &model.Message{Parts: []model.Part{model.TextPart{Text: "lo"}}}})
	require.Len(t, events, 1)
	assert.Equal(t, TextDelta{Index: 0, Text: "lo"}, events[0])

	events = s.Fold(model.Chunk{Type: model.ChunkTypeStop, StopReason: "stop"})
	require.Len(t, events, 2)
	assert.Equal(t, TextDone{Index: 0, Text: "Hello"}, events[0])
	turnDone, ok := events[1].(TurnDone)
	require.True(t, ok)
	assert.Equal(t, "stop", turnDone.FinishReason)
	assert.Empty(t, turnDone.OutputOrder)

	assert.True(t, s.Terminal())
	assert.Equal(t, map[int]string{0: "Hello"}, s.TextByIndex())
}

func TestFoldToolCallDeltaKeyedByIndexNotPosition(t *testing.T) {
	t.Parallel()
	s := NewStreamState()

	// Two tool calls interleave: index 1 appears before index 0 completes.
	s.Fold(model.Chunk{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 0, ID: "c0", Name: "get_weather"}})
	s.Fold(model.Chunk{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 1, ID: "c1", Name: "get_time"}})
	s.Fold(model.Chunk{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 0, Delta: `{"city":`}})
	s.Fold(model.Chunk{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 1, Delta: `{"tz":"UTC"}`}})
	events := s.Fold(model.Chunk{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 0, Delta: `"Paris"}`}})
	require.Len(t, events, 1)

	events = s.Fold(model.Chunk{Type: model.ChunkTypeStop, StopReason: "tool_calls"})
	// last event is TurnDone; order must preserve first-seen order: 0 then 1.
	turnDone := events[len(events)-1].(TurnDone)
	assert.Equal(t, []int{0, 1}, turnDone.OutputOrder)

	calls := s.ToolCallsInOrder()
	require.Len(t, calls, 2)
	assert.Equal(t, "c0", calls[0].ID)
	assert.Equal(t, `{"city":"Paris"}`, calls[0].Arguments())
	assert.Equal(t, ToolCallComplete, calls[0].Status)
	assert.Equal(t, "c1", calls[1].ID)
	assert.Equal(t, `{"tz":"UTC"}`, calls[1].Arguments())
}

func TestFoldToolCallInvalidArgumentsMarkedFailed(t *testing.T) {
	t.Parallel()
	s := NewStreamState()

	s.Fold(model.Chunk{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 0, ID: "c0", Name: "broken"}})
	s.Fold(model.Chunk{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 0, Delta: "{not json"}})
	events := s.Fold(model.Chunk{Type: model.ChunkTypeStop, StopReason: "tool_calls"})

	var done ToolCallDone
	found := false
	for _, ev := range events {
		if d, ok := ev.(ToolCallDone); ok {
			done = d
			found = true
		}
	}
	require.True(t, found)
	assert.True(t, done.InvalidJSON)

	calls := s.ToolCallsInOrder()
	require.Len(t, calls, 1)
	assert.Equal(t, ToolCallFailed, calls[0].Status)
}

func TestFoldSingleBareToolCallShape(t *testing.T) {
	t.Parallel()
	s := NewStreamState()

	// Some providers emit the whole tool call in one non-delta chunk rather
	// than an indexed array of deltas.
	events := s.Fold(model.Chunk{Type: model.ChunkTypeToolCall, ToolCall: &model.ToolCall{
		Index: 0, ID: "c0", Name: "get_weather", Payload: []byte(`{"city":"Paris"}`),
	}})
	require.Len(t, events, 2)
	assert.Equal(t, ToolCallStarted{Index: 0, ID: "c0", Name: "get_weather"}, events[0])
	done, ok := events[1].(ToolCallDone)
	require.True(t, ok)
	assert.False(t, done.InvalidJSON)
	assert.Equal(t, `{"city":"Paris"}`, done.Arguments)
}

func TestFoldNonTerminalStopReasonDoesNotCloseTurn(t *testing.T) {
	t.Parallel()
	s := NewStreamState()
	events := s.Fold(model.Chunk{Type: model.ChunkTypeStop, StopReason: "unknown_reason"})
	assert.Empty(t, events)
	assert.False(t, s.Terminal())
}

func TestFoldReasoningDelta(t *testing.T) {
	t.Parallel()
	s := NewStreamState()
	events := s.Fold(model.Chunk{Type: model.ChunkTypeThinking, Thinking: "pondering"})
	require.Len(t, events, 1)
	assert.Equal(t, ReasoningDelta{Index: 0, Text: "pondering"}, events[0])
}

func TestFoldUsageCarriedIntoTurnDone(t *testing.T) {
	t.Parallel()
	s := NewStreamState()
	s.Fold(model.Chunk{Type: model.ChunkTypeUsage, UsageDelta: &model.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}})
	events := s.Fold(model.Chunk{Type: model.ChunkTypeStop, StopReason: "stop"})
	turnDone := events[len(events)-1].(TurnDone)
	require.NotNil(t, turnDone.Usage)
	assert.Equal(t, 15, turnDone.Usage.TotalTokens)
}

func TestFoldAbruptStopClosesAccumulatingToolCall(t *testing.T) {
	t.Parallel()
	s := NewStreamState()
	s.Fold(model.Chunk{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 0, ID: "c0", Name: "get_weather"}})
	s.Fold(model.Chunk{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 0, Delta: `{"city":"Paris"}`}})
	// Stream ends on "length" without an explicit tool-call-complete chunk.
	events := s.Fold(model.Chunk{Type: model.ChunkTypeStop, StopReason: "length"})
	var done ToolCallDone
	for _, ev := range events {
		if d, ok := ev.(ToolCallDone); ok {
			done = d
		}
	}
	assert.Equal(t, `{"city":"Paris"}`, done.Arguments)
	assert.False(t, done.InvalidJSON)
}

func TestFoldToolCallStartedEmittedOnce(t *testing.T) {
	t.Parallel()
	s := NewStreamState()

	// First delta carries only id+name; the arguments arrive in a later
	// delta. The start transition must not repeat when the second delta
	// still finds an empty arguments buffer.
	first := s.Fold(model.Chunk{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 0, ID: "c0", Name: "get_weather"}})
	require.Len(t, first, 1)
	require.IsType(t, ToolCallStarted{}, first[0])

	second := s.Fold(model.Chunk{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 0, Delta: `{"city":"Paris"}`}})
	require.Len(t, second, 1)
	assert.IsType(t, ToolCallArgsDelta{}, second[0])
}
