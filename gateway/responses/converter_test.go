package responses

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/masaicai/openresponses/gateway/toolcatalog"
	"github.com/masaicai/openresponses/runtime/agent/model"
	"github.com/stretchr/testify/require"
)

func TestConvertStringInputPrependsInstructions(t *testing.T) {
	t.Parallel()

	req := Request{
		Model:        "gpt-test",
		Input:        json.RawMessage(`"hello there"`),
		Instructions: "be concise",
	}
	out, aliases, err := Convert(context.Background(), req, ConverterDeps{})
	require.NoError(t, err)
	require.Empty(t, aliases)
	require.Len(t, out.Messages, 2)
	require.Equal(t, model.ConversationRole("system"), out.Messages[0].Role)
	require.Equal(t, model.ConversationRole("user"), out.Messages[1].Role)
}

func TestConvertListInputFunctionCallRoundTrip(t *testing.T) {
	t.Parallel()

	items := []InputItem{
		{Type: "message", Role: "user", Content: []ContentPart{{Type: "input_text", Text: "what's the weather?"}}},
		{Type: "function_call", CallID: "call_1", Name: "get_weather", Arguments: `{"city":"nyc"}`},
		{Type: "function_call_output", CallID: "call_1", Output: `{"temp_f":72}`},
	}
	raw, err := json.Marshal(items)
	require.NoError(t, err)

	req := Request{Model: "gpt-test", Input: raw}
	out, _, err := Convert(context.Background(), req, ConverterDeps{})
	require.NoError(t, err)
	require.Len(t, out.Messages, 3)
	require.Equal(t, model.ConversationRole("assistant"), out.Messages[1].Role)
	require.Equal(t, model.ConversationRole("tool"), out.Messages[2].Role)

	toolUse, ok := out.Messages[1].Parts[0].(model.ToolUsePart)
	require.True(t, ok)
	require.Equal(t, "get_weather", toolUse.Name)
	require.Equal(t, "call_1", toolUse.ID)
}

func TestConvertRejectsSystemMessageNotAtIndexZero(t *testing.T) {
	t.Parallel()

	items := []InputItem{
		{Type: "message", Role: "user", Content: []ContentPart{{Type: "input_text", Text: "hi"}}},
		{Type: "message", Role: "system", Content: []ContentPart{{Type: "input_text", Text: "late system"}}},
	}
	raw, err := json.Marshal(items)
	require.NoError(t, err)

	_, _, err = Convert(context.Background(), Request{Model: "gpt-test", Input: raw}, ConverterDeps{})
	require.Error(t, err)
}

func TestConvertFunctionToolNormalizesAdditionalProperties(t *testing.T) {
	t.Parallel()

	req := Request{
		Model: "gpt-test",
		Input: json.RawMessage(`"hi"`),
		Tools: []ToolSpec{
			{
				Type:       "function",
				Name:       "lookup",
				Parameters: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`),
			},
		},
	}
	out, _, err := Convert(context.Background(), req, ConverterDeps{})
	require.NoError(t, err)
	require.Len(t, out.Tools, 1)
	schema, ok := out.Tools[0].InputSchema.(map[string]any)
	require.True(t, ok)
	require.Equal(t, false, schema["additionalProperties"])
}

func TestConvertTextFormatJSONSchemaBecomesResponseFormat(t *testing.T) {
	t.Parallel()

	req := Request{
		Model: "gpt-test",
		Input: json.RawMessage(`"hi"`),
		Text: &TextConfig{Format: &TextFormat{
			Type: "json_schema", Name: "answer", Strict: true,
			Schema: map[string]any{"type": "object"},
		}},
		Reasoning: &ReasoningConfig{Effort: "high"},
	}
	out, _, err := Convert(context.Background(), req, ConverterDeps{})
	require.NoError(t, err)
	require.NotNil(t, out.ResponseFormat)
	require.Equal(t, "json_schema", out.ResponseFormat.Type)
	require.Equal(t, "answer", out.ResponseFormat.Name)
	require.True(t, out.ResponseFormat.Strict)
	require.Equal(t, "high", out.ReasoningEffort)
}

type fakeMCPExecutor struct {
	connectErr error
	tools      []toolcatalog.Definition
}

func (f *fakeMCPExecutor) Connect(context.Context, string, string, map[string]string) (string, error) {
	if f.connectErr != nil {
		return "", f.connectErr
	}
	return "server_1", nil
}

func (f *fakeMCPExecutor) ListTools(context.Context, string) ([]toolcatalog.Definition, error) {
	return f.tools, nil
}

func (f *fakeMCPExecutor) Execute(context.Context, string, string, json.RawMessage) (string, error) {
	return "", nil
}

func TestConvertMCPToolExpandsToDiscoveredToolNames(t *testing.T) {
	t.Parallel()

	mcp := &fakeMCPExecutor{tools: []toolcatalog.Definition{
		{Name: "gh_search_repositories", Description: "search", Protocol: toolcatalog.ProtocolMCP},
	}}
	registry := toolcatalog.New(nil, mcp)

	req := Request{
		Model: "gpt-test",
		Input: json.RawMessage(`"hi"`),
		Tools: []ToolSpec{{
			Type: "mcp", ServerLabel: "gh", ServerURL: "https://mcp.example/gh",
		}},
	}
	out, _, err := Convert(context.Background(), req, ConverterDeps{Registry: registry})
	require.NoError(t, err)
	require.Len(t, out.Tools, 1)
	require.Equal(t, "gh_search_repositories", out.Tools[0].Name)
}
