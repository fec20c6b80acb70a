// Package responses implements the Responses-API parameter converter: translating
// OpenAI Responses-API request/response JSON shapes to and from the
// provider-agnostic runtime/agent/model types the orchestrator drives.
package responses

import "encoding/json"

// Request is the wire shape of POST /v1/responses.
type Request struct {
	Model              string          `json:"model"`
	Input              json.RawMessage `json:"input"`
	Instructions       string          `json:"instructions,omitempty"`
	Tools              []ToolSpec      `json:"tools,omitempty"`
	ToolChoice         json.RawMessage `json:"tool_choice,omitempty"`
	Temperature        *float32        `json:"temperature,omitempty"`
	TopP               *float32        `json:"top_p,omitempty"`
	MaxOutputTokens    *int            `json:"max_output_tokens,omitempty"`
	Text               *TextConfig     `json:"text,omitempty"`
	Reasoning          *ReasoningConfig `json:"reasoning,omitempty"`
	PreviousResponseID string          `json:"previous_response_id,omitempty"`
	Store              *bool           `json:"store,omitempty"`
	Truncation         string          `json:"truncation,omitempty"`
	Stream             bool            `json:"stream,omitempty"`

	// FileSearch carries the file_search tool config (vector store ids,
	// defaults) referenced by the file_search handler.
	FileSearch *FileSearchConfig `json:"file_search,omitempty"`
}

// TextConfig configures the output text format, including structured output
// via json_schema.
type TextConfig struct {
	Format *TextFormat `json:"format,omitempty"`
}

// TextFormat is the text.format sub-object; Type "json_schema" triggers
// response_format translation in the converter.
type TextFormat struct {
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	Schema any    `json:"schema,omitempty"`
	Strict bool   `json:"strict,omitempty"`
}

// ReasoningConfig carries reasoning.effort, translated verbatim into the
// model.Request's ReasoningEffort field.
type ReasoningConfig struct {
	Effort string `json:"effort,omitempty"`
}

// FileSearchConfig configures the file_search native tool.
type FileSearchConfig struct {
	VectorStoreIDs []string `json:"vector_store_ids,omitempty"`
	MaxNumResults  int      `json:"max_num_results,omitempty"`
}

// InputItem is a single entry of the Responses-API input list. Exactly one of
// the typed fields is meaningful, selected by Type — a hand-rolled
// discriminated union (no reflection).
type InputItem struct {
	Type string `json:"type,omitempty"` // "message" (default when omitted), "function_call", "function_call_output", "reasoning", "file_search_call", "web_search_call"

	// message fields
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`

	// function_call fields
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	// function_call_output fields
	Output string `json:"output,omitempty"`
}

// IsMessage reports whether the item is a message item (the default shape
// when Type is empty, matching the Responses API's omission convention).
func (i InputItem) IsMessage() bool {
	return i.Type == "" || i.Type == "message"
}

// ContentPart is one content block of a message InputItem: input_text,
// input_image, or input_file.
type ContentPart struct {
	Type string `json:"type"` // "input_text" | "input_image" | "input_file" | "output_text"
	Text string `json:"text,omitempty"`
	// input_image
	ImageURL string `json:"image_url,omitempty"`
	FileID   string `json:"file_id,omitempty"`
}

// ToolSpec is the discriminated union of request-supplied tool shapes:
// function, mcp, and built-in/masaic_managed aliases.
type ToolSpec struct {
	Type string `json:"type"` // "function" | "mcp" | a registered alias name

	// function
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Strict      bool            `json:"strict,omitempty"`

	// mcp
	ServerLabel  string            `json:"server_label,omitempty"`
	ServerURL    string            `json:"server_url,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	AllowedTools []string          `json:"allowed_tools,omitempty"`
}

// IsFunction reports whether this spec is a plain function tool.
func (t ToolSpec) IsFunction() bool { return t.Type == "function" }

// IsMCP reports whether this spec is an MCP server tool group.
func (t ToolSpec) IsMCP() bool { return t.Type == "mcp" }

// Response is the non-streaming Responses-API result shape returned from
// POST /v1/responses and from GET /v1/responses/{id}.
type Response struct {
	ID        string       `json:"id"`
	Object    string       `json:"object"`
	CreatedAt string       `json:"created_at"` // fixed-point decimal, never scientific
	Model     string       `json:"model"`
	Status    string       `json:"status"` // "completed" | "failed" | "incomplete"
	Output    []OutputItem `json:"output"`
	Usage     *Usage       `json:"usage,omitempty"`
	Tools     []ToolSpec   `json:"tools,omitempty"`
	Error     *ErrorBody   `json:"error,omitempty"`

	IncompleteDetails *IncompleteDetails `json:"incomplete_details,omitempty"`
}

// IncompleteDetails carries the reason a response ended in status
// "incomplete" (max_tool_calls, timeout or max_output_tokens).
type IncompleteDetails struct {
	Reason string `json:"reason"`
}

// ErrorBody is the response.error shape for a failed response.
type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

// OutputItem is one entry of Response.Output: a message, function_call, or
// reasoning item, discriminated by Type.
type OutputItem struct {
	ID      string        `json:"id"`
	Type    string        `json:"type"` // "message" | "function_call" | "function_call_output" | "reasoning"
	Role    string        `json:"role,omitempty"`
	Status  string        `json:"status,omitempty"`
	Content []ContentPart `json:"content,omitempty"`

	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`
}

// Usage mirrors the Responses-API usage object.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}
