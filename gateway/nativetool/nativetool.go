// Package nativetool implements the built-in
// think, file_search, agentic_search, and image_generation tools, each with a
// fixed JSON Schema and an executor 's signature.
package nativetool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/masaicai/openresponses/gateway/gatewayerrors"
	"github.com/masaicai/openresponses/gateway/toolcatalog"
	"github.com/masaicai/openresponses/runtime/toolregistry"
)

// Accessor exposes request-scoped parameters (the file_search config with
// its vector store ids) to a native tool's Execute call.
type Accessor interface {
	toolcatalog.ParamsAccessor
}

// EmitFunc lets a native tool publish best-effort output deltas while
// running. Execute binds it to the toolregistry.OutputDeltaPublisher the
// HTTP layer carried in the call context, or to a discard when none is
// present (non-streaming requests).
type EmitFunc func(stream string, delta string)

// Executor is the fixed signature every native tool implements:
// (ctx, args_json, params_accessor, emit_event, metadata) -> string.
type Executor func(ctx context.Context, args json.RawMessage, accessor Accessor, emit EmitFunc, meta map[string]any) (string, error)

// Tool pairs a tool's registry metadata with its executor.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Run         Executor
}

// Registry is the process-wide native tool catalog, loaded once at startup
// and read-only thereafter.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry constructs a Registry containing the standard built-in tools:
// think, file_search, agentic_search, image_generation.
func NewRegistry(search VectorSearch, llm LLMCompleter, imagegen ImageGenerator) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	r.register(thinkTool())
	r.register(fileSearchTool(search))
	r.register(agenticSearchTool(search, llm))
	r.register(imageGenerationTool(imagegen))
	return r
}

func (r *Registry) register(t Tool) {
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
}

// Definitions implements toolcatalog.NativeExecutor.
func (r *Registry) Definitions() []toolcatalog.Definition {
	defs := make([]toolcatalog.Definition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, toolcatalog.Definition{
			ID:          "native:" + name,
			Name:        name,
			Description: t.Description,
			Parameters:  t.Parameters,
			Protocol:    toolcatalog.ProtocolNative,
			Hosting:     toolcatalog.HostingSelf,
		})
	}
	return defs
}

// Execute implements toolcatalog.NativeExecutor.
func (r *Registry) Execute(ctx context.Context, name string, argsJSON json.RawMessage, accessor toolcatalog.ParamsAccessor) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", gatewayerrors.New(gatewayerrors.ClassToolNotFound, fmt.Sprintf("native tool %q not registered", name))
	}
	emit := EmitFunc(func(string, string) {})
	if pub, ok := toolregistry.OutputDeltaPublisherFromContext(ctx); ok {
		emit = func(stream, delta string) {
			_ = pub.PublishToolOutputDelta(ctx, stream, delta)
		}
	}
	return t.Run(ctx, argsJSON, accessor, emit, nil)
}
