// Package accumulator folds a stream of provider chat-completion chunks
// into a stable per-turn StreamState (text segments, tool calls, reasoning,
// usage).
package accumulator

import (
	"encoding/json"
	"strings"

	"github.com/masaicai/openresponses/runtime/agent/model"
)

// ToolCallStatus is the lifecycle of an in-flight tool call.
type ToolCallStatus string

const (
	ToolCallAccumulating ToolCallStatus = "accumulating"
	ToolCallComplete     ToolCallStatus = "complete"
	ToolCallFailed       ToolCallStatus = "failed"
)

// ToolCallState is the accumulator's view of one in-flight tool call, keyed
// by its provider delta index rather than array position.
type ToolCallState struct {
	Index       int
	ID          string
	Name        string
	ArgsBuilder strings.Builder
	Status      ToolCallStatus
	FirstSeen   int // monotonic order of first appearance, used for first-seen ordering

	announced bool // ToolCallStarted already emitted
}

// Arguments returns the accumulated JSON arguments fragment collected so far.
func (t *ToolCallState) Arguments() string { return t.ArgsBuilder.String() }

// FoldEvent is the tagged union of state transitions the accumulator emits
// while folding chunks; the Event Emitter maps each variant to its
// corresponding Responses-API SSE event(s).
type FoldEvent interface{ isFoldEvent() }

type (
	// TextStarted fires the first time text appears at a given index.
	TextStarted struct{ Index int }

	// TextDelta fires for every text fragment at index.
	TextDelta struct {
		Index int
		Text  string
	}

	// TextDone fires once a choice reaches a terminal finish_reason, closing
	// out its text segment.
	TextDone struct {
		Index int
		Text  string
	}

	// ToolCallStarted fires when a tool call first appears with an id and name.
	ToolCallStarted struct {
		Index int
		ID    string
		Name  string
	}

	// ToolCallArgsDelta fires for every incremental arguments fragment.
	ToolCallArgsDelta struct {
		Index int
		Delta string
	}

	// ToolCallDone fires once a tool call's arguments are complete and valid
	// JSON; InvalidJSON is true when the accumulated arguments failed to
	// parse, in which case the orchestrator must not execute it.
	ToolCallDone struct {
		Index       int
		ID          string
		Name        string
		Arguments   string
		InvalidJSON bool
	}

	// ReasoningDelta fires for incremental reasoning/thinking text.
	ReasoningDelta struct {
		Index int
		Text  string
	}

	// TurnDone fires once every choice has reached a terminal finish_reason.
	// OutputOrder lists tool call indexes in first-seen order, matching the
	// ordering-preservation invariant.
	TurnDone struct {
		FinishReason string
		Usage        *model.TokenUsage
		OutputOrder  []int
	}
)

func (TextStarted) isFoldEvent()       {}
func (TextDelta) isFoldEvent()         {}
func (TextDone) isFoldEvent()          {}
func (ToolCallStarted) isFoldEvent()   {}
func (ToolCallArgsDelta) isFoldEvent() {}
func (ToolCallDone) isFoldEvent()      {}
func (ReasoningDelta) isFoldEvent()    {}
func (TurnDone) isFoldEvent()          {}

// terminalReasons are the finish_reason values that close a choice.
var terminalReasons = map[string]bool{
	"stop": true, "length": true, "tool_calls": true, "content_filter": true, "function_call": true,
}

// StreamState is the accumulator's fold state for a single turn.
// Indexes are stable within the turn; once a tool call reaches
// complete its ArgsBuilder parses as JSON.
type StreamState struct {
	textSegments      map[int]*strings.Builder
	textStarted       map[int]bool
	reasoningSegments map[int]*strings.Builder
	toolCalls         map[int]*ToolCallState
	toolOrder         []int // first-seen order

	finishReason string
	terminal     bool
	usage        *model.TokenUsage

	seenCounter int
}

// NewStreamState constructs an empty per-turn fold state.
func NewStreamState() *StreamState {
	return &StreamState{
		textSegments:      make(map[int]*strings.Builder),
		textStarted:       make(map[int]bool),
		reasoningSegments: make(map[int]*strings.Builder),
		toolCalls:         make(map[int]*ToolCallState),
	}
}

// Terminal reports whether the turn has reached a terminal finish_reason.
func (s *StreamState) Terminal() bool { return s.terminal }

// ToolCallsInOrder returns completed tool calls in first-seen order, used by
// the Orchestrator to preserve end-to-end ordering.
func (s *StreamState) ToolCallsInOrder() []*ToolCallState {
	out := make([]*ToolCallState, 0, len(s.toolOrder))
	for _, idx := range s.toolOrder {
		out = append(out, s.toolCalls[idx])
	}
	return out
}

// TextByIndex returns the finalized text of every text segment that started
// during the turn, keyed by its Fold index. Called once Terminal() is true,
// to build the non-streaming/replay view of a turn's message output.
func (s *StreamState) TextByIndex() map[int]string {
	out := make(map[int]string, len(s.textSegments))
	for idx, started := range s.textStarted {
		if started {
			out[idx] = s.textSegments[idx].String()
		}
	}
	return out
}

// Fold applies one provider chunk to the state, returning the FoldEvents it
// produced in emission order. The same index always maps to the same choice
// across calls within a turn.
//
// Some providers emit a single tool call as a bare object instead of an
// indexed array entry; such chunks arrive here as a
// ToolCall with Index 0, which this fold treats identically to an explicit
// index-0 delta.
func (s *StreamState) Fold(chunk model.Chunk) []FoldEvent {
	var events []FoldEvent

	switch chunk.Type {
	case model.ChunkTypeText:
		if chunk.Message != nil {
			text := extractText(chunk.Message)
			if text != "" {
				events = append(events, s.foldText(0, text)...)
			}
		}
	case model.ChunkTypeThinking:
		if chunk.Thinking != "" {
			events = append(events, ReasoningDelta{Index: 0, Text: chunk.Thinking})
		}
	case model.ChunkTypeToolCallDelta:
		if d := chunk.ToolCallDelta; d != nil {
			events = append(events, s.foldToolDelta(d.Index, d.ID, string(d.Name), d.Delta)...)
		}
	case model.ChunkTypeToolCall:
		if tc := chunk.ToolCall; tc != nil {
			events = append(events, s.foldToolComplete(tc.Index, tc.ID, string(tc.Name), string(tc.Payload))...)
		}
	case model.ChunkTypeUsage:
		if chunk.UsageDelta != nil {
			s.usage = chunk.UsageDelta
		}
	case model.ChunkTypeStop:
		events = append(events, s.foldStop(chunk.StopReason)...)
	}

	return events
}

func (s *StreamState) foldText(index int, text string) []FoldEvent {
	var events []FoldEvent
	b, ok := s.textSegments[index]
	if !ok {
		b = &strings.Builder{}
		s.textSegments[index] = b
	}
	if !s.textStarted[index] {
		s.textStarted[index] = true
		events = append(events, TextStarted{Index: index})
	}
	b.WriteString(text)
	events = append(events, TextDelta{Index: index, Text: text})
	return events
}

func (s *StreamState) foldToolDelta(index int, id, name, delta string) []FoldEvent {
	var events []FoldEvent
	tc, ok := s.toolCalls[index]
	if !ok {
		tc = &ToolCallState{Index: index, Status: ToolCallAccumulating, FirstSeen: s.nextSeen()}
		s.toolCalls[index] = tc
		s.toolOrder = append(s.toolOrder, index)
	}
	if id != "" {
		tc.ID = id
	}
	if name != "" {
		tc.Name = name
	}
	if !tc.announced && tc.ID != "" {
		tc.announced = true
		events = append(events, ToolCallStarted{Index: index, ID: tc.ID, Name: tc.Name})
	}
	if delta != "" {
		tc.ArgsBuilder.WriteString(delta)
		events = append(events, ToolCallArgsDelta{Index: index, Delta: delta})
	}
	return events
}

// foldToolComplete handles a final (non-delta) ChunkTypeToolCall, either the
// terminal close of a previously-delta-accumulated call or a provider that
// emits the whole tool call in one chunk.
func (s *StreamState) foldToolComplete(index int, id, name, payload string) []FoldEvent {
	var events []FoldEvent
	tc, ok := s.toolCalls[index]
	if !ok {
		tc = &ToolCallState{Index: index, Status: ToolCallAccumulating, FirstSeen: s.nextSeen(), announced: true}
		s.toolCalls[index] = tc
		s.toolOrder = append(s.toolOrder, index)
		events = append(events, ToolCallStarted{Index: index, ID: id, Name: name})
	}
	if id != "" {
		tc.ID = id
	}
	if name != "" {
		tc.Name = name
	}
	if payload != "" && tc.ArgsBuilder.Len() == 0 {
		tc.ArgsBuilder.WriteString(payload)
	}
	events = append(events, s.closeToolCall(tc)...)
	return events
}

func (s *StreamState) closeToolCall(tc *ToolCallState) []FoldEvent {
	args := tc.Arguments()
	valid := json.Valid([]byte(args))
	if valid {
		tc.Status = ToolCallComplete
	} else {
		tc.Status = ToolCallFailed
	}
	return []FoldEvent{ToolCallDone{Index: tc.Index, ID: tc.ID, Name: tc.Name, Arguments: args, InvalidJSON: !valid}}
}

func (s *StreamState) foldStop(reason string) []FoldEvent {
	var events []FoldEvent
	s.finishReason = reason
	if !terminalReasons[reason] {
		return events
	}
	// Close any tool call still accumulating when the stream ends abruptly.
	for _, idx := range s.toolOrder {
		tc := s.toolCalls[idx]
		if tc.Status == ToolCallAccumulating {
			events = append(events, s.closeToolCall(tc)...)
		}
	}
	for index, started := range s.textStarted {
		if started {
			events = append(events, TextDone{Index: index, Text: s.textSegments[index].String()})
		}
	}
	s.terminal = true
	events = append(events, TurnDone{FinishReason: reason, Usage: s.usage, OutputOrder: append([]int(nil), s.toolOrder...)})
	return events
}

func (s *StreamState) nextSeen() int {
	s.seenCounter++
	return s.seenCounter
}

func extractText(msg *model.Message) string {
	var b strings.Builder
	for _, part := range msg.Parts {
		if tp, ok := part.(model.TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}
