// Package openai provides a model.Client implementation backed by the
// OpenAI Chat Completions API ("OpenAI" provider family, and any
// OpenAI-compatible endpoint reachable via a base URL override — groq, xai,
// togetherai). It translates gateway requests into
// chat.completions.create calls using github.com/openai/openai-go and maps
// responses back into the generic runtime/agent/model structures the
// Orchestrator drives.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"

	"github.com/masaicai/openresponses/runtime/agent/model"
	"github.com/masaicai/openresponses/runtime/agent/tools"
)

type (
	// CompletionsClient captures the subset of the OpenAI SDK client used by
	// the adapter, so callers can pass a real client or a mock in tests.
	CompletionsClient interface {
		New(ctx context.Context, body oai.ChatCompletionNewParams, opts ...option.RequestOption) (*oai.ChatCompletion, error)
		NewStreaming(ctx context.Context, body oai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[oai.ChatCompletionChunk]
	}

	// Options configures the OpenAI adapter.
	Options struct {
		// DefaultModel is the model identifier used when model.Request.Model
		// is empty.
		DefaultModel string

		// MaxTokens sets the default completion cap when a request does not
		// specify MaxTokens.
		MaxTokens int

		// Temperature is used when a request does not specify Temperature.
		Temperature float64
	}

	// Client implements model.Client on top of OpenAI Chat Completions. The
	// same implementation serves any OpenAI-compatible provider (groq, xai,
	// togetherai) by pointing BaseURL at that provider's endpoint.
	Client struct {
		chat         CompletionsClient
		defaultModel string
		maxTok       int
		temp         float64
	}
)

// New builds an OpenAI-backed model client from the provided Completions
// client and configuration options.
func New(chat CompletionsClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: completions client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("openai: default model identifier is required")
	}
	return &Client{
		chat:         chat,
		defaultModel: opts.DefaultModel,
		maxTok:       opts.MaxTokens,
		temp:         opts.Temperature,
	}, nil
}

// NewFromCredentials constructs a client from an API key and optional base
// URL override, as read from gateway/config's per-provider credentials. The
// base URL override is what lets this same adapter serve groq, xai, and
// togetherai: all three expose an OpenAI-compatible Chat Completions route.
func NewFromCredentials(apiKey, baseURL, defaultModel string, maxTokens int) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	oc := oai.NewClient(reqOpts...)
	return New(&oc.Chat.Completions, Options{DefaultModel: defaultModel, MaxTokens: maxTokens})
}

// Complete issues a non-streaming Chat Completions request and translates
// the response into the gateway's generic message/tool-call structures.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	params, canonToProv, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.chat.New(ctx, *params)
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("openai chat.completions.new: %w", err)
	}
	return translateResponse(resp, canonToProv)
}

// Stream invokes Chat.Completions.NewStreaming and adapts incremental
// deltas into model.Chunks consumed by the Chunk Accumulator.
func (c *Client) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	params, canonToProv, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	params.StreamOptions = oai.ChatCompletionStreamOptionsParam{IncludeUsage: oai.Bool(true)}
	stream := c.chat.NewStreaming(ctx, *params)
	if err := stream.Err(); err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("openai chat.completions.new stream: %w", err)
	}
	return newOpenAIStreamer(ctx, stream, canonToProv), nil
}

func (c *Client) prepareRequest(req *model.Request) (*oai.ChatCompletionNewParams, map[string]string, error) {
	if len(req.Messages) == 0 {
		return nil, nil, errors.New("openai: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	toolParams, canonToProv, provToCanon, err := encodeTools(req.Tools)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := encodeMessages(req.Messages, provToCanon, canonToProv)
	if err != nil {
		return nil, nil, err
	}
	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(modelID),
		Messages: msgs,
	}
	if maxTokens := c.effectiveMaxTokens(req.MaxTokens); maxTokens > 0 {
		params.MaxCompletionTokens = oai.Int(int64(maxTokens))
	}
	if t := c.effectiveTemperature(req.Temperature); t > 0 {
		params.Temperature = oai.Float(t)
	}
	if req.TopP > 0 {
		params.TopP = oai.Float(float64(req.TopP))
	}
	if len(toolParams) > 0 {
		params.Tools = toolParams
	}
	if req.ToolChoice != nil {
		tc, err := encodeToolChoice(req.ToolChoice, canonToProv, req.Tools)
		if err != nil {
			return nil, nil, err
		}
		params.ToolChoice = tc
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_schema" {
		schemaParam, err := responseFormatSchema(req.ResponseFormat)
		if err != nil {
			return nil, nil, err
		}
		params.ResponseFormat = schemaParam
	}
	return &params, provToCanon, nil
}

func (c *Client) effectiveMaxTokens(requested int) int {
	if requested > 0 {
		return requested
	}
	return c.maxTok
}

func (c *Client) effectiveTemperature(requested float32) float64 {
	if requested > 0 {
		return float64(requested)
	}
	return c.temp
}

// encodeMessages converts the gateway's generic transcript into
// ChatCompletionMessageParamUnion values. Tool calls are collected per
// assistant message (OpenAI carries all of a turn's tool calls in one
// message) and tool results are emitted as separate "tool" role messages
// keyed by tool_call_id.
func encodeMessages(msgs []*model.Message, provToCanon, canonToProv map[string]string) ([]oai.ChatCompletionMessageParamUnion, error) {
	result := make([]oai.ChatCompletionMessageParamUnion, 0, len(msgs))

	for _, m := range msgs {
		if m == nil {
			continue
		}
		switch m.Role {
		case model.ConversationRoleSystem:
			text := joinText(m.Parts)
			if text == "" {
				continue
			}
			result = append(result, oai.SystemMessage(text))
		case model.ConversationRoleUser, "tool":
			var toolResults []oai.ChatCompletionMessageParamUnion
			text := ""
			for _, part := range m.Parts {
				switch v := part.(type) {
				case model.TextPart:
					text += v.Text
				case model.ToolResultPart:
					toolResults = append(toolResults, oai.ToolMessage(toolResultContent(v), v.ToolUseID))
				}
			}
			if text != "" {
				result = append(result, oai.UserMessage(text))
			}
			result = append(result, toolResults...)
		case model.ConversationRoleAssistant:
			var text strings.Builder
			var calls []oai.ChatCompletionMessageToolCallParam
			for _, part := range m.Parts {
				switch v := part.(type) {
				case model.TextPart:
					text.WriteString(v.Text)
				case model.ToolUsePart:
					if v.Name == "" {
						return nil, errors.New("openai: tool_use part missing name")
					}
					provName, ok := canonToProv[v.Name]
					if !ok || provName == "" {
						provName = v.Name
					}
					args, err := encodeToolInput(v.Input)
					if err != nil {
						return nil, fmt.Errorf("openai: tool %q arguments: %w", v.Name, err)
					}
					calls = append(calls, oai.ChatCompletionMessageToolCallParam{
						ID:   v.ID,
						Type: "function",
						Function: oai.ChatCompletionMessageToolCallFunctionParam{
							Name:      provName,
							Arguments: args,
						},
					})
				}
			}
			if text.Len() == 0 && len(calls) == 0 {
				continue
			}
			assistantMsg := oai.ChatCompletionAssistantMessageParam{}
			if text.Len() > 0 {
				assistantMsg.Content = oai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: oai.String(text.String()),
				}
			}
			if len(calls) > 0 {
				assistantMsg.ToolCalls = calls
			}
			result = append(result, oai.ChatCompletionMessageParamUnion{OfAssistant: &assistantMsg})
		default:
			return nil, fmt.Errorf("openai: unsupported message role %q", m.Role)
		}
	}
	if len(result) == 0 {
		return nil, errors.New("openai: at least one message is required")
	}
	return result, nil
}

func joinText(parts []model.Part) string {
	var b strings.Builder
	for _, part := range parts {
		if v, ok := part.(model.TextPart); ok {
			b.WriteString(v.Text)
		}
	}
	return b.String()
}

func toolResultContent(v model.ToolResultPart) string {
	switch c := v.Content.(type) {
	case nil:
		return ""
	case string:
		return c
	case []byte:
		return string(c)
	default:
		if data, err := json.Marshal(c); err == nil {
			return string(data)
		}
		return ""
	}
}

func encodeToolInput(input any) (string, error) {
	switch v := input.(type) {
	case nil:
		return "{}", nil
	case json.RawMessage:
		if len(v) == 0 {
			return "{}", nil
		}
		return string(v), nil
	case string:
		if v == "" {
			return "{}", nil
		}
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func encodeTools(defs []*model.ToolDefinition) ([]oai.ChatCompletionToolParam, map[string]string, map[string]string, error) {
	if len(defs) == 0 {
		return nil, nil, nil, nil
	}
	toolList := make([]oai.ChatCompletionToolParam, 0, len(defs))
	canonToProv := make(map[string]string, len(defs))
	provToCanon := make(map[string]string, len(defs))

	for _, def := range defs {
		if def == nil || def.Name == "" {
			continue
		}
		// OpenAI's function name charset is a superset of what the gateway
		// produces (letters, digits, underscore, dash) for the tools this
		// gateway exposes, so no sanitization/collision handling is needed
		// the way the Anthropic adapter requires.
		canonToProv[def.Name] = def.Name
		provToCanon[def.Name] = def.Name

		var schema map[string]any
		if def.InputSchema != nil {
			raw, err := json.Marshal(def.InputSchema)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("openai: tool %q schema: %w", def.Name, err)
			}
			if err := json.Unmarshal(raw, &schema); err != nil {
				return nil, nil, nil, fmt.Errorf("openai: tool %q schema: %w", def.Name, err)
			}
		}
		toolList = append(toolList, oai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        def.Name,
				Description: oai.String(def.Description),
				Parameters:  shared.FunctionParameters(schema),
			},
		})
	}
	if len(toolList) == 0 {
		return nil, nil, nil, nil
	}
	return toolList, canonToProv, provToCanon, nil
}

func encodeToolChoice(choice *model.ToolChoice, canonToProv map[string]string, defs []*model.ToolDefinition) (oai.ChatCompletionToolChoiceOptionUnionParam, error) {
	switch choice.Mode {
	case "", model.ToolChoiceModeAuto:
		return oai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: oai.String("auto")}, nil
	case model.ToolChoiceModeNone:
		return oai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: oai.String("none")}, nil
	case model.ToolChoiceModeAny:
		return oai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: oai.String("required")}, nil
	case model.ToolChoiceModeTool:
		if choice.Name == "" {
			return oai.ChatCompletionToolChoiceOptionUnionParam{}, fmt.Errorf("openai: tool choice mode %q requires a tool name", choice.Mode)
		}
		if !hasToolDefinition(defs, choice.Name) {
			return oai.ChatCompletionToolChoiceOptionUnionParam{}, fmt.Errorf("openai: tool choice name %q does not match any tool", choice.Name)
		}
		provName, ok := canonToProv[choice.Name]
		if !ok || provName == "" {
			return oai.ChatCompletionToolChoiceOptionUnionParam{}, fmt.Errorf("openai: tool choice name %q does not match any tool", choice.Name)
		}
		return oai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &oai.ChatCompletionNamedToolChoiceParam{
				Function: oai.ChatCompletionNamedToolChoiceFunctionParam{Name: provName},
			},
		}, nil
	default:
		return oai.ChatCompletionToolChoiceOptionUnionParam{}, fmt.Errorf("openai: unsupported tool choice mode %q", choice.Mode)
	}
}

func hasToolDefinition(defs []*model.ToolDefinition, name string) bool {
	for _, def := range defs {
		if def != nil && def.Name == name {
			return true
		}
	}
	return false
}

func responseFormatSchema(rf *model.ResponseFormat) (oai.ChatCompletionNewParamsResponseFormatUnion, error) {
	var schema map[string]any
	if rf.Schema != nil {
		raw, err := json.Marshal(rf.Schema)
		if err != nil {
			return oai.ChatCompletionNewParamsResponseFormatUnion{}, err
		}
		if err := json.Unmarshal(raw, &schema); err != nil {
			return oai.ChatCompletionNewParamsResponseFormatUnion{}, err
		}
	}
	name := rf.Name
	if name == "" {
		name = "response"
	}
	return oai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   name,
				Schema: schema,
				Strict: oai.Bool(rf.Strict),
			},
		},
	}, nil
}

func isRateLimited(err error) bool {
	return err != nil && strings.Contains(err.Error(), "429")
}

func translateResponse(resp *oai.ChatCompletion, nameMap map[string]string) (*model.Response, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, errors.New("openai: response has no choices")
	}
	choice := resp.Choices[0]
	out := &model.Response{StopReason: string(choice.FinishReason)}
	if text := choice.Message.Content; text != "" {
		out.Content = append(out.Content, model.Message{
			Role:  model.ConversationRoleAssistant,
			Parts: []model.Part{model.TextPart{Text: text}},
		})
	}
	for _, tc := range choice.Message.ToolCalls {
		name := tc.Function.Name
		if canonical, ok := nameMap[name]; ok {
			name = canonical
		}
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{
			Name:    tools.Ident(name),
			Payload: json.RawMessage(tc.Function.Arguments),
			ID:      tc.ID,
		})
	}
	out.Usage = model.TokenUsage{
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:  int(resp.Usage.TotalTokens),
	}
	return out, nil
}
