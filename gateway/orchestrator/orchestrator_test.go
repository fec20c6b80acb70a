package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/masaicai/openresponses/gateway/budget"
	"github.com/masaicai/openresponses/gateway/toolcatalog"
	"github.com/masaicai/openresponses/runtime/agent/model"
	"github.com/masaicai/openresponses/runtime/agent/stream"
	"github.com/masaicai/openresponses/runtime/agent/tools"
	"github.com/stretchr/testify/require"
)

type recordingSink struct{ events []stream.Event }

func (s *recordingSink) Send(_ context.Context, event stream.Event) error {
	s.events = append(s.events, event)
	return nil
}
func (s *recordingSink) Close(context.Context) error { return nil }

func (s *recordingSink) types() []stream.EventType {
	out := make([]stream.EventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type())
	}
	return out
}

// scriptStreamer replays a fixed sequence of chunks, then io.EOF.
type scriptStreamer struct {
	chunks []model.Chunk
	idx    int
}

func (s *scriptStreamer) Recv() (model.Chunk, error) {
	if s.idx >= len(s.chunks) {
		return model.Chunk{}, io.EOF
	}
	c := s.chunks[s.idx]
	s.idx++
	return c, nil
}
func (s *scriptStreamer) Close() error             { return nil }
func (s *scriptStreamer) Metadata() map[string]any { return nil }

// scriptClient returns one scripted streamer per call, in order.
type scriptClient struct {
	turns [][]model.Chunk
	call  int
}

func (c *scriptClient) Complete(context.Context, *model.Request) (*model.Response, error) {
	return nil, errors.New("not implemented")
}

func (c *scriptClient) Stream(context.Context, *model.Request) (model.Streamer, error) {
	if c.call >= len(c.turns) {
		return nil, errors.New("no more scripted turns")
	}
	s := &scriptStreamer{chunks: c.turns[c.call]}
	c.call++
	return s, nil
}

func textChunk(text string) model.Chunk {
	return model.Chunk{Type: model.ChunkTypeText, Message: &model.Message{Parts: []model.Part{model.TextPart{Text: text}}}}
}

func stopChunk(reason string) model.Chunk {
	return model.Chunk{Type: model.ChunkTypeStop, StopReason: reason}
}

func TestOrchestratorCompletesWithNoToolCalls(t *testing.T) {
	t.Parallel()

	client := &scriptClient{turns: [][]model.Chunk{
		{textChunk("hi"), textChunk(" there"), stopChunk("stop")},
	}}
	sink := &recordingSink{}
	emitter := stream.NewEmitter(sink, "resp_1", "gpt-test")
	orch := New(nil)
	orch.Now = func() time.Time { return time.Unix(1700000000, 0) }

	req := &model.Request{Model: "gpt-test", Messages: []*model.Message{{Role: "user", Parts: []model.Part{model.TextPart{Text: "hello"}}}}}
	result := orch.Run(context.Background(), client, req, emitter, budget.DefaultConfig(), nil)

	require.Equal(t, StatusCompleted, result.Status)
	last := sink.types()[len(sink.types())-1]
	require.Equal(t, stream.EventResponseCompleted, last)
}

func toolCallChunks(id, name, args string) []model.Chunk {
	return []model.Chunk{
		{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 0, ID: id, Name: tools.Ident(name), Delta: args}},
		stopChunk("tool_calls"),
	}
}

// nativeStub exposes exactly one tool so the registry can dispatch it.
type nativeStub struct{ def toolcatalog.Definition }

func (n *nativeStub) Definitions() []toolcatalog.Definition { return []toolcatalog.Definition{n.def} }
func (n *nativeStub) Execute(context.Context, string, json.RawMessage, toolcatalog.ParamsAccessor) (string, error) {
	return `"Your thought has been logged."`, nil
}

func TestOrchestratorExecutesToolThenCompletes(t *testing.T) {
	t.Parallel()

	client := &scriptClient{turns: [][]model.Chunk{
		toolCallChunks("call_1", "think", `{"thought":"hmm"}`),
		{textChunk("done"), stopChunk("stop")},
	}}
	sink := &recordingSink{}
	emitter := stream.NewEmitter(sink, "resp_2", "gpt-test")

	registry := toolcatalog.New(&nativeStub{def: toolcatalog.Definition{Name: "think", Protocol: toolcatalog.ProtocolNative}}, nil)
	orch := New(registry)
	orch.Now = func() time.Time { return time.Unix(1700000000, 0) }

	req := &model.Request{Model: "gpt-test", Messages: []*model.Message{{Role: "user", Parts: []model.Part{model.TextPart{Text: "think about it"}}}}}
	result := orch.Run(context.Background(), client, req, emitter, budget.DefaultConfig(), nil)

	require.Equal(t, StatusCompleted, result.Status)
	require.Equal(t, 2, client.call)

	var sawToolResult bool
	for _, m := range result.Messages {
		if m.Role == "tool" {
			sawToolResult = true
			part, ok := m.Parts[0].(model.ToolResultPart)
			require.True(t, ok)
			require.Equal(t, "call_1", part.ToolUseID)
			require.False(t, part.IsError)
		}
	}
	require.True(t, sawToolResult)
}

// multiToolStub exposes two distinct tools and records dispatch order.
type multiToolStub struct {
	defs  []toolcatalog.Definition
	order []string
	mu    sync.Mutex
}

func (n *multiToolStub) Definitions() []toolcatalog.Definition { return n.defs }
func (n *multiToolStub) Execute(_ context.Context, name string, _ json.RawMessage, _ toolcatalog.ParamsAccessor) (string, error) {
	n.mu.Lock()
	n.order = append(n.order, name)
	n.mu.Unlock()
	return `"ok:` + name + `"`, nil
}

func TestOrchestratorExecutesTwoParallelToolCallsInFirstSeenOrder(t *testing.T) {
	t.Parallel()

	// Two tool calls interleave within one turn, keyed by index 0 and 1.
	turnOne := []model.Chunk{
		{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 0, ID: "call_a", Name: "get_weather"}},
		{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 1, ID: "call_b", Name: "get_time"}},
		{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 0, Delta: `{"city":"Paris"}`}},
		{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 1, Delta: `{"tz":"UTC"}`}},
		stopChunk("tool_calls"),
	}
	client := &scriptClient{turns: [][]model.Chunk{
		turnOne,
		{textChunk("both done"), stopChunk("stop")},
	}}
	sink := &recordingSink{}
	emitter := stream.NewEmitter(sink, "resp_parallel", "gpt-test")

	stub := &multiToolStub{defs: []toolcatalog.Definition{
		{Name: "get_weather", Protocol: toolcatalog.ProtocolNative},
		{Name: "get_time", Protocol: toolcatalog.ProtocolNative},
	}}
	registry := toolcatalog.New(stub, nil)
	orch := New(registry)
	orch.Now = func() time.Time { return time.Unix(1700000000, 0) }

	req := &model.Request{Model: "gpt-test"}
	result := orch.Run(context.Background(), client, req, emitter, budget.DefaultConfig(), nil)

	require.Equal(t, StatusCompleted, result.Status)
	require.Equal(t, 2, client.call)

	var callOrder []string
	for _, m := range result.Messages {
		if m.Role == "assistant" {
			if part, ok := m.Parts[0].(model.ToolUsePart); ok {
				callOrder = append(callOrder, part.ID)
			}
		}
	}
	require.Equal(t, []string{"call_a", "call_b"}, callOrder)
}

func TestOrchestratorStopsAtMaxIterations(t *testing.T) {
	t.Parallel()

	client := &scriptClient{turns: [][]model.Chunk{
		toolCallChunks("call_1", "think", `{"thought":"a"}`),
		toolCallChunks("call_2", "think", `{"thought":"b"}`),
	}}
	sink := &recordingSink{}
	emitter := stream.NewEmitter(sink, "resp_3", "gpt-test")
	registry := toolcatalog.New(&nativeStub{def: toolcatalog.Definition{Name: "think", Protocol: toolcatalog.ProtocolNative}}, nil)
	orch := New(registry)
	orch.Now = func() time.Time { return time.Unix(1700000000, 0) }

	cfg := budget.Config{MaxIterations: 1, MaxDuration: time.Minute, PerToolTimeout: time.Second}
	req := &model.Request{Model: "gpt-test"}
	result := orch.Run(context.Background(), client, req, emitter, cfg, nil)

	require.Equal(t, StatusIncomplete, result.Status)
	require.Equal(t, string(budget.ReasonMaxToolCalls), result.IncompleteReason)
}

func TestOrchestratorStopsAtMaxOutputTokens(t *testing.T) {
	t.Parallel()

	client := &scriptClient{turns: [][]model.Chunk{
		{textChunk("this is a long enough turn to burn through the token budget"), stopChunk("stop")},
	}}
	sink := &recordingSink{}
	emitter := stream.NewEmitter(sink, "resp_5", "gpt-test")
	orch := New(nil)
	orch.Now = func() time.Time { return time.Unix(1700000000, 0) }

	cfg := budget.DefaultConfig()
	cfg.MaxOutputTokens = 1

	req := &model.Request{Model: "gpt-test", Messages: []*model.Message{{Role: "user", Parts: []model.Part{model.TextPart{Text: "hello"}}}}}
	result := orch.Run(context.Background(), client, req, emitter, cfg, nil)

	require.Equal(t, StatusIncomplete, result.Status)
	require.Equal(t, string(budget.ReasonMaxOutputTokens), result.IncompleteReason)
}

func TestOrchestratorInvalidArgumentsSynthesizesErrorOutput(t *testing.T) {
	t.Parallel()

	client := &scriptClient{turns: [][]model.Chunk{
		toolCallChunks("call_1", "think", `{not json`),
		{textChunk("ok"), stopChunk("stop")},
	}}
	sink := &recordingSink{}
	emitter := stream.NewEmitter(sink, "resp_4", "gpt-test")
	registry := toolcatalog.New(&nativeStub{def: toolcatalog.Definition{Name: "think", Protocol: toolcatalog.ProtocolNative}}, nil)
	orch := New(registry)
	orch.Now = func() time.Time { return time.Unix(1700000000, 0) }

	result := orch.Run(context.Background(), client, &model.Request{Model: "gpt-test"}, emitter, budget.DefaultConfig(), nil)
	require.Equal(t, StatusCompleted, result.Status)

	var found bool
	for _, m := range result.Messages {
		if m.Role == "tool" {
			part := m.Parts[0].(model.ToolResultPart)
			require.True(t, part.IsError)
			require.Contains(t, part.Content.(string), "invalid_arguments")
			found = true
		}
	}
	require.True(t, found)
}
