package chatapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/masaicai/openresponses/gateway/gatewayerrors"
	"github.com/masaicai/openresponses/gateway/responses"
	"github.com/masaicai/openresponses/gateway/toolcatalog"
	"github.com/masaicai/openresponses/runtime/agent/model"
)

// ConverterDeps mirrors responses.ConverterDeps: the Parameter Converter's
// side-effecting collaborators (MCP tool discovery), shared across both
// wire protocols.
type ConverterDeps struct {
	Registry *toolcatalog.Registry
}

// Convert translates a chat completions request into a provider-agnostic
// model.Request, reusing the same alias/MCP expansion rules the Responses
// converter applies, with this surface's own alias map.
func Convert(ctx context.Context, req Request, deps ConverterDeps) (*model.Request, responses.AliasMap, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, nil, err
	}

	toolDefs, aliasMap, err := convertTools(ctx, req.Tools, deps)
	if err != nil {
		return nil, nil, err
	}

	out := &model.Request{
		Model:    req.Model,
		Messages: messages,
		Tools:    toolDefs,
		Stream:   req.Stream,
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		out.TopP = *req.TopP
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}

	return out, aliasMap, nil
}

func convertMessages(msgs []Message) ([]*model.Message, error) {
	out := make([]*model.Message, 0, len(msgs))
	for i, m := range msgs {
		path := fmt.Sprintf("messages[%d]", i)
		if (m.Role == "system" || m.Role == "developer") && i != 0 {
			return nil, gatewayerrors.New(gatewayerrors.ClassInvalidRequest,
				fmt.Sprintf("%s role %q must be at index 0", path, m.Role)).WithPath(path + ".role")
		}
		switch m.Role {
		case "tool":
			out = append(out, &model.Message{
				Role: "tool",
				Parts: []model.Part{model.ToolResultPart{
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})
		case "assistant":
			msg := &model.Message{Role: model.ConversationRoleAssistant}
			if m.Content != "" {
				msg.Parts = append(msg.Parts, model.TextPart{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				var args any
				if tc.Function.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
						return nil, gatewayerrors.New(gatewayerrors.ClassInvalidRequest,
							path+".tool_calls.function.arguments: invalid JSON").WithPath(path + ".tool_calls")
					}
				}
				msg.Parts = append(msg.Parts, model.ToolUsePart{ID: tc.ID, Name: tc.Function.Name, Input: args})
			}
			out = append(out, msg)
		default:
			role := m.Role
			if role == "" {
				role = "user"
			}
			out = append(out, &model.Message{
				Role:  model.ConversationRole(role),
				Parts: []model.Part{model.TextPart{Text: m.Content}},
			})
		}
	}
	return out, nil
}

func convertTools(ctx context.Context, specs []ToolSpec, deps ConverterDeps) ([]*model.ToolDefinition, responses.AliasMap, error) {
	var defs []*model.ToolDefinition
	aliases := responses.AliasMap{}

	for i, spec := range specs {
		path := fmt.Sprintf("tools[%d]", i)
		switch {
		case spec.IsFunction():
			if spec.Function == nil {
				return nil, nil, gatewayerrors.New(gatewayerrors.ClassInvalidRequest, path+": function tool requires a function object").WithPath(path)
			}
			schema, err := normalizeSchema(spec.Function.Parameters)
			if err != nil {
				return nil, nil, gatewayerrors.New(gatewayerrors.ClassInvalidRequest,
					path+".function.parameters: "+err.Error()).WithPath(path + ".function.parameters")
			}
			defs = append(defs, &model.ToolDefinition{Name: spec.Function.Name, Description: spec.Function.Description, InputSchema: schema})

		case spec.IsMCP():
			if deps.Registry == nil {
				return nil, nil, gatewayerrors.New(gatewayerrors.ClassMCPUnavailable, path+": no tool registry configured").WithPath(path)
			}
			available, _, err := deps.Registry.EnsureMCPTools(ctx, spec.ServerLabel, spec.ServerURL, spec.Headers)
			if err != nil {
				return nil, nil, err
			}
			allowed := toSet(spec.AllowedTools)
			for _, def := range available {
				if len(allowed) > 0 {
					raw := toolcatalog.StripQualifier(spec.ServerLabel, def.Name)
					if !allowed[raw] {
						continue
					}
				}
				var schema any
				if len(def.Parameters) > 0 {
					if err := json.Unmarshal(def.Parameters, &schema); err != nil {
						return nil, nil, gatewayerrors.New(gatewayerrors.ClassInvalidRequest,
							path+": mcp tool schema is not valid JSON").WithPath(path)
					}
				}
				defs = append(defs, &model.ToolDefinition{Name: def.Name, Description: def.Description, InputSchema: schema})
			}

		default:
			if deps.Registry == nil {
				return nil, nil, gatewayerrors.New(gatewayerrors.ClassToolNotFound, path+": unknown tool alias "+spec.Type).WithPath(path)
			}
			def, ok := deps.Registry.GetFunctionTool(spec.Type)
			if !ok {
				return nil, nil, gatewayerrors.New(gatewayerrors.ClassToolNotFound, path+": unknown tool alias "+spec.Type).WithPath(path)
			}
			var schema any
			if len(def.Parameters) > 0 {
				if err := json.Unmarshal(def.Parameters, &schema); err != nil {
					return nil, nil, err
				}
			}
			aliases[spec.Type] = def.Name
			defs = append(defs, &model.ToolDefinition{Name: def.Name, Description: def.Description, InputSchema: schema})
		}
	}

	return defs, aliases, nil
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

// normalizeSchema applies the same additionalProperties=false rewrite the
// Responses converter applies to function tools, kept local to this
// package to avoid an import cycle back through gateway/responses.
func normalizeSchema(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON Schema: %w", err)
	}
	return closeAdditionalProperties(doc), nil
}

func closeAdditionalProperties(node any) any {
	switch v := node.(type) {
	case map[string]any:
		if t, _ := v["type"].(string); t == "object" {
			if _, has := v["additionalProperties"]; !has {
				v["additionalProperties"] = false
			}
		}
		for k, child := range v {
			v[k] = closeAdditionalProperties(child)
		}
		return v
	case []any:
		for i, child := range v {
			v[i] = closeAdditionalProperties(child)
		}
		return v
	default:
		return node
	}
}
