package chatapi

import (
	"encoding/json"
	"fmt"

	"github.com/masaicai/openresponses/gateway/orchestrator"
)

// BuildResponse assembles the non-streaming chat.completion document from
// one orchestrator run, projecting the model's final-turn output into the
// single-choice message shape chat completions clients expect: prior turns'
// tool calls are folded into message history by the orchestrator already,
// so only the terminal turn's text/tool_calls are reported here (unlike the
// Responses API's buildOutputItems, which reports every turn's output as
// its own item).
func BuildResponse(id, modelName, createdAt string, result orchestrator.Result) *Response {
	resp := &Response{
		ID:      id,
		Object:  "chat.completion",
		Created: createdAt,
		Model:   modelName,
		Usage: &Usage{
			PromptTokens:     result.Usage.InputTokens,
			CompletionTokens: result.Usage.OutputTokens,
			TotalTokens:      result.Usage.TotalTokens,
		},
	}

	msg, finishReason := finalChoice(result)
	resp.Choices = []Choice{{Index: 0, Message: msg, FinishReason: finishReason}}

	switch result.Status {
	case orchestrator.StatusFailed:
		resp.Error = &Error{Type: "api_error", Message: result.FailureMessage}
	case orchestrator.StatusIncomplete:
		if finishReason == "" {
			resp.Choices[0].FinishReason = "length"
		}
	}

	return resp
}

// finalChoice projects the last turn's OutputRecords (the tail of
// result.Output contributed by the turn that actually stopped the loop)
// into one assistant message plus the chat-completions finish_reason.
func finalChoice(result orchestrator.Result) (Message, string) {
	msg := Message{Role: "assistant"}
	finishReason := "stop"

	var text string
	var calls []ToolCall
	for _, rec := range lastTurnRecords(result.Output) {
		switch rec.Kind {
		case orchestrator.OutputMessage:
			text += rec.Text
		case orchestrator.OutputFunctionCall:
			calls = append(calls, ToolCall{
				ID:   rec.CallID,
				Type: "function",
				Function: ToolCallFunc{
					Name:      rec.Name,
					Arguments: rec.Arguments,
				},
			})
		}
	}
	msg.Content = text
	msg.ToolCalls = calls
	if len(calls) > 0 {
		finishReason = "tool_calls"
	}
	return msg, finishReason
}

// lastTurnRecords returns the suffix of records belonging to the final
// provider turn: the orchestrator appends every turn's records in order, so
// the last turn's records are whatever follows the final OutputFunctionCall
// run that was actually dispatched, or the records starting right after the
// previous message/tool-call boundary. Since OutputRecord carries no turn
// index, this walks backward to the last point the record kind changed from
// OutputFunctionCall in a completed loop back to OutputMessage (a turn
// never mixes text from one turn with tool calls from a later one in the
// accumulated slice without a status change in between), falling back to
// the whole slice when that boundary can't be identified.
func lastTurnRecords(records []orchestrator.OutputRecord) []orchestrator.OutputRecord {
	if len(records) == 0 {
		return nil
	}
	// The final turn is delimited by the records produced after the last
	// time the orchestrator re-entered CALLING, which always starts with
	// either a message or a fresh set of function calls. Because
	// OutputRecord doesn't carry a turn id, take the trailing run of the
	// same Kind-category as the last record: a terminal message turn is
	// just the trailing OutputMessage records, a terminal tool-call turn is
	// the trailing OutputFunctionCall records.
	lastKind := records[len(records)-1].Kind
	start := len(records) - 1
	for start > 0 && records[start-1].Kind == lastKind {
		start--
	}
	return records[start:]
}

// MarshalChunk renders one streamed event into the raw JSON body of a
// chat.completion.chunk SSE line ("data: <json>"), used by the chat
// completions Sink adapter.
func MarshalChunk(chunk Chunk) ([]byte, error) {
	out, err := json.Marshal(chunk)
	if err != nil {
		return nil, fmt.Errorf("chatapi: marshal chunk: %w", err)
	}
	return out, nil
}

// Chunk is one chat.completion.chunk streamed document.
type Chunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"` // "chat.completion.chunk"
	Created string        `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice is one choice of a streamed chunk: a partial delta plus an
// optional terminal finish_reason.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChunkDelta carries the incremental fields of one chunk: the assistant
// role on the first chunk, a text fragment, or a partial tool_calls array
// keyed by index per the OpenAI streaming convention.
type ChunkDelta struct {
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []ChunkToolCall `json:"tool_calls,omitempty"`
}

// ChunkToolCall is one streamed tool_calls[] delta entry. Index is the
// stable key (accumulator fold key); ID/Type/Function.Name are
// only populated on the delta that first introduces the call.
type ChunkToolCall struct {
	Index    int              `json:"index"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function *ChunkToolCallFn `json:"function,omitempty"`
}

// ChunkToolCallFn carries a tool call delta's name (first chunk only) and
// incremental arguments fragment.
type ChunkToolCallFn struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}
