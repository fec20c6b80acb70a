package responses

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/masaicai/openresponses/gateway/gatewayerrors"
	"github.com/masaicai/openresponses/gateway/toolcatalog"
	"github.com/masaicai/openresponses/runtime/agent/model"
)

// FileService resolves an input_file reference to extracted text, used by
// the converter when a request embeds an input_file content part.
type FileService interface {
	GetContent(ctx context.Context, fileID string) ([]byte, error)
}

// AliasMap records, for a single request, the mapping from a wire-facing
// alias tool type (e.g. "file_search") or MCP-qualified name to the
// canonical registry tool name.
type AliasMap map[string]string

// ConverterDeps bundles the Parameter Converter's two side-effecting
// collaborators: MCP tool discovery and input_file text extraction. Files
// may be nil if the request has no input_file content; Registry may be nil
// if it has neither mcp nor alias tools.
type ConverterDeps struct {
	Files    FileService
	Registry *toolcatalog.Registry
}

// Convert translates a Responses-API request into a provider-agnostic
// model.Request. Translation errors are returned as *gatewayerrors.Error
// with class invalid_request and a JSON-path-shaped Path field.
func Convert(ctx context.Context, req Request, deps ConverterDeps) (*model.Request, AliasMap, error) {
	messages, err := convertInput(ctx, req, deps)
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
	if req.MaxOutputTokens != nil {
		out.MaxTokens = *req.MaxOutputTokens
	}
	if req.Reasoning != nil && req.Reasoning.Effort != "" {
		out.ReasoningEffort = req.Reasoning.Effort
	}
	if req.Text != nil && req.Text.Format != nil && req.Text.Format.Type == "json_schema" {
		out.ResponseFormat = &model.ResponseFormat{
			Type:   "json_schema",
			Name:   req.Text.Format.Name,
			Schema: req.Text.Format.Schema,
			Strict: req.Text.Format.Strict,
		}
	}

	if choice, err := convertToolChoice(req.ToolChoice); err != nil {
		return nil, nil, err
	} else {
		out.ToolChoice = choice
	}

	return out, aliasMap, nil
}

// convertToolChoice translates the Responses-API tool_choice field, which is
// either the bare strings "auto"/"none"/"required" or a
// {"type":"function","name":"..."} object naming a specific tool, into a
// model.ToolChoice. A nil/empty field leaves provider default behavior.
func convertToolChoice(raw json.RawMessage) (*model.ToolChoice, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		switch asString {
		case "", "auto":
			return nil, nil
		case "none":
			return &model.ToolChoice{Mode: model.ToolChoiceModeNone}, nil
		case "required":
			return &model.ToolChoice{Mode: model.ToolChoiceModeAny}, nil
		default:
			return nil, gatewayerrors.New(gatewayerrors.ClassInvalidRequest, "tool_choice: unrecognized value "+asString).WithPath("tool_choice")
		}
	}
	var named struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &named); err != nil || named.Name == "" {
		return nil, gatewayerrors.New(gatewayerrors.ClassInvalidRequest, "tool_choice: must be a string or {type, name}").WithPath("tool_choice")
	}
	return &model.ToolChoice{Mode: model.ToolChoiceModeTool, Name: named.Name}, nil
}

// convertInput handles both input shapes: string input becomes one user
// message (with an optional prepended system message); list input is
// walked item by item.
func convertInput(ctx context.Context, req Request, deps ConverterDeps) ([]*model.Message, error) {
	var messages []*model.Message

	var asString string
	if err := json.Unmarshal(req.Input, &asString); err == nil {
		if req.Instructions != "" {
			messages = append(messages, systemMessage(req.Instructions))
		}
		messages = append(messages, &model.Message{
			Role:  "user",
			Parts: []model.Part{model.TextPart{Text: asString}},
		})
		return messages, nil
	}

	var items []InputItem
	if err := json.Unmarshal(req.Input, &items); err != nil {
		return nil, gatewayerrors.New(gatewayerrors.ClassInvalidRequest, "input: must be a string or a list of items").WithPath("input")
	}

	if req.Instructions != "" {
		messages = append(messages, systemMessage(req.Instructions))
	}

	for i, item := range items {
		path := fmt.Sprintf("input[%d]", i)
		switch {
		case item.IsMessage():
			if (item.Role == "system" || item.Role == "developer") && i != 0 {
				return nil, gatewayerrors.New(gatewayerrors.ClassInvalidRequest,
					fmt.Sprintf("%s role %q must be at index 0", path, item.Role)).WithPath(path + ".role")
			}
			msg, err := convertMessageItem(ctx, path, item, deps)
			if err != nil {
				return nil, err
			}
			messages = append(messages, msg)

		case item.Type == "function_call":
			var args any
			if item.Arguments != "" {
				if err := json.Unmarshal([]byte(item.Arguments), &args); err != nil {
					return nil, gatewayerrors.New(gatewayerrors.ClassInvalidRequest,
						path+".arguments: invalid JSON").WithPath(path + ".arguments")
				}
			}
			messages = append(messages, &model.Message{
				Role: "assistant",
				Parts: []model.Part{model.ToolUsePart{
					ID:    item.CallID,
					Name:  item.Name,
					Input: args,
				}},
			})

		case item.Type == "function_call_output":
			messages = append(messages, &model.Message{
				Role: "tool",
				Parts: []model.Part{model.ToolResultPart{
					ToolUseID: item.CallID,
					Content:   item.Output,
				}},
			})

		default:
			return nil, gatewayerrors.New(gatewayerrors.ClassInvalidRequest,
				fmt.Sprintf("%s: unsupported input item type %q", path, item.Type)).WithPath(path + ".type")
		}
	}

	return messages, nil
}

func systemMessage(text string) *model.Message {
	return &model.Message{Role: "system", Parts: []model.Part{model.TextPart{Text: text}}}
}

func convertMessageItem(ctx context.Context, path string, item InputItem, deps ConverterDeps) (*model.Message, error) {
	role := item.Role
	if role == "" {
		role = "user"
	}
	msg := &model.Message{Role: model.ConversationRole(role)}
	for j, part := range item.Content {
		partPath := fmt.Sprintf("%s.content[%d]", path, j)
		switch part.Type {
		case "input_text", "output_text":
			msg.Parts = append(msg.Parts, model.TextPart{Text: part.Text})
		case "input_image":
			msg.Parts = append(msg.Parts, model.ImagePart{Format: model.ImageFormat(inferImageFormat(part.ImageURL)), Bytes: nil})
		case "input_file":
			if deps.Files == nil {
				return nil, gatewayerrors.New(gatewayerrors.ClassInvalidRequest,
					partPath+": input_file requires a configured file service").WithPath(partPath)
			}
			content, err := deps.Files.GetContent(ctx, part.FileID)
			if err != nil {
				return nil, gatewayerrors.WithCause(gatewayerrors.ClassInvalidRequest,
					partPath+": failed to read file content", gatewayerrors.From(err)).WithPath(partPath)
			}
			msg.Parts = append(msg.Parts, model.TextPart{Text: string(content)})
		default:
			return nil, gatewayerrors.New(gatewayerrors.ClassInvalidRequest,
				fmt.Sprintf("%s: unsupported content part type %q", partPath, part.Type)).WithPath(partPath)
		}
	}
	return msg, nil
}

func inferImageFormat(url string) string {
	// A data URL carries its mime type; anything else is left for the
	// provider adapter to resolve by content negotiation.
	const prefix = "data:image/"
	if len(url) > len(prefix) && url[:len(prefix)] == prefix {
		rest := url[len(prefix):]
		for i, c := range rest {
			if c == ';' || c == ',' {
				return rest[:i]
			}
		}
	}
	return "png"
}

// convertTools handles the request's tools list: function tools pass
// through with schema normalization, alias tools expand to their canonical
// definition, and mcp tools expand to one function-shape definition per
// discovered server tool.
func convertTools(ctx context.Context, specs []ToolSpec, deps ConverterDeps) ([]*model.ToolDefinition, AliasMap, error) {
	var defs []*model.ToolDefinition
	aliases := AliasMap{}

	for i, spec := range specs {
		path := fmt.Sprintf("tools[%d]", i)
		switch {
		case spec.IsFunction():
			schema, err := normalizeSchema(spec.Parameters)
			if err != nil {
				return nil, nil, gatewayerrors.New(gatewayerrors.ClassInvalidRequest,
					path+".parameters: "+err.Error()).WithPath(path + ".parameters")
			}
			defs = append(defs, &model.ToolDefinition{Name: spec.Name, Description: spec.Description, InputSchema: schema})

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

// normalizeSchema sets additionalProperties=false on every object schema
// node, recursively. A plain recursive walk over
// map[string]any is used rather than a schema library: this is a mechanical
// rewrite of the caller-supplied document, not validation (the
// jsonschema/v6 dependency owns actual schema validation).
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
