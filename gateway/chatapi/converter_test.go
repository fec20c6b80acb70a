package chatapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaicai/openresponses/gateway/nativetool"
	"github.com/masaicai/openresponses/gateway/toolcatalog"
	"github.com/masaicai/openresponses/runtime/agent/model"
)

func TestConvertPlainUserMessage(t *testing.T) {
	t.Parallel()
	req := Request{Model: "gpt-4o", Messages: []Message{{Role: "user", Content: "Hi"}}}

	out, aliases, err := Convert(context.Background(), req, ConverterDeps{})
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, model.ConversationRole("user"), out.Messages[0].Role)
	assert.Empty(t, aliases)
}

func TestConvertRejectsSystemMessageNotAtIndexZero(t *testing.T) {
	t.Parallel()
	req := Request{Messages: []Message{
		{Role: "user", Content: "hi"},
		{Role: "system", Content: "late system prompt"},
	}}
	_, _, err := Convert(context.Background(), req, ConverterDeps{})
	require.Error(t, err)
}

func TestConvertAssistantMessageWithToolCalls(t *testing.T) {
	t.Parallel()
	req := Request{Messages: []Message{
		{Role: "assistant", ToolCalls: []ToolCall{{
			ID: "call_1", Type: "function",
			Function: ToolCallFunc{Name: "get_weather", Arguments: `{"city":"Paris"}`},
		}}},
	}}
	out, _, err := Convert(context.Background(), req, ConverterDeps{})
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	require.Len(t, out.Messages[0].Parts, 1)
	tp, ok := out.Messages[0].Parts[0].(model.ToolUsePart)
	require.True(t, ok)
	assert.Equal(t, "call_1", tp.ID)
	assert.Equal(t, "get_weather", tp.Name)
}

func TestConvertAssistantToolCallInvalidArgumentsJSON(t *testing.T) {
	t.Parallel()
	req := Request{Messages: []Message{
		{Role: "assistant", ToolCalls: []ToolCall{{
			ID: "call_1", Function: ToolCallFunc{Name: "get_weather", Arguments: `{not json`},
		}}},
	}}
	_, _, err := Convert(context.Background(), req, ConverterDeps{})
	require.Error(t, err)
}

func TestConvertToolResultMessage(t *testing.T) {
	t.Parallel()
	req := Request{Messages: []Message{
		{Role: "tool", ToolCallID: "call_1", Content: `{"temp":20}`},
	}}
	out, _, err := Convert(context.Background(), req, ConverterDeps{})
	require.NoError(t, err)
	require.Len(t, out.Messages[0].Parts, 1)
	rp, ok := out.Messages[0].Parts[0].(model.ToolResultPart)
	require.True(t, ok)
	assert.Equal(t, "call_1", rp.ToolUseID)
	assert.Equal(t, `{"temp":20}`, rp.Content)
}

func TestConvertFunctionToolNormalizesAdditionalProperties(t *testing.T) {
	t.Parallel()
	req := Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Tools: []ToolSpec{{Type: "function", Function: &ToolFunction{
			Name:       "get_weather",
			Parameters: []byte(`{"type":"object","properties":{"city":{"type":"string"}}}`),
		}}},
	}
	out, _, err := Convert(context.Background(), req, ConverterDeps{})
	require.NoError(t, err)
	require.Len(t, out.Tools, 1)
	schema, ok := out.Tools[0].InputSchema.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, schema["additionalProperties"])
}

func TestConvertBuiltinAliasExpandsToRegisteredToolAndRecordsAlias(t *testing.T) {
	t.Parallel()
	native := nativetool.NewRegistry(nil, nil, nil)
	registry := toolcatalog.New(native, nil)
	req := Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Tools:    []ToolSpec{{Type: "think"}},
	}
	out, aliases, err := Convert(context.Background(), req, ConverterDeps{Registry: registry})
	require.NoError(t, err)
	require.Len(t, out.Tools, 1)
	assert.Equal(t, "think", out.Tools[0].Name)
	assert.Equal(t, "think", aliases["think"])
}

func TestConvertUnknownAliasWithoutRegistryReturnsError(t *testing.T) {
	t.Parallel()
	req := Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Tools:    []ToolSpec{{Type: "mystery_tool"}},
	}
	_, _, err := Convert(context.Background(), req, ConverterDeps{})
	require.Error(t, err)
}
