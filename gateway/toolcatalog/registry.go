// Package toolcatalog is the tool registry and router: the
// catalog of native, MCP, and user-function tools, name resolution through a
// per-request alias map, and dispatch by protocol.
package toolcatalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/masaicai/openresponses/gateway/gatewayerrors"
)

// Protocol identifies how a tool is executed, modeled as an enum switched at
// dispatch design notes (avoid open polymorphism for a closed set).
type Protocol string

const (
	ProtocolNative Protocol = "native"
	ProtocolMCP    Protocol = "mcp"
)

// Hosting identifies whether the tool runs inside this process or on a
// remote MCP server.
type Hosting string

const (
	HostingSelf   Hosting = "self"
	HostingRemote Hosting = "remote"
)

// MCPServerInfo identifies the MCP server backing an MCP-protocol tool.
type MCPServerInfo struct {
	Label     string
	URL       string
	Headers   map[string]string
	ToolNames []string

	// ID is the pool/cache key this server was connected under
	// (hash(label|url)). Populated by whoever discovers the
	// tool (the MCP pool), so Dispatch never needs to recompute it from a
	// possibly-incomplete URL.
	ID string
}

// ServerIdentifier returns the stable cache/pool key for this server. If ID
// was already populated (the normal case, set when the tool was discovered)
// it is returned as-is; otherwise it is derived from label+url.
func (s MCPServerInfo) ServerIdentifier() string {
	if s.ID != "" {
		return s.ID
	}
	return ServerIdentifier(s.Label, s.URL)
}

// ServerIdentifier computes hash(label|url) for a label/URL pair without
// requiring a constructed MCPServerInfo.
func ServerIdentifier(label, url string) string {
	sum := sha256.Sum256([]byte(label + "|" + url))
	return hex.EncodeToString(sum[:])[:16]
}

// Definition describes one tool visible to a model, in the registry's
// canonical internal shape (distinct from the request-level responses.ToolSpec
// wire shape the parameter converter translates into this one).
type Definition struct {
	ID          string
	Name        string // on-wire name seen by the model: raw native name, or "<label>_<tool>" for MCP
	Description string
	Parameters  json.RawMessage
	Protocol    Protocol
	Hosting     Hosting
	Server      *MCPServerInfo // non-nil only when Protocol == ProtocolMCP
}

// NativeExecutor dispatches a native tool call by its registered name.
// Implemented by gateway/nativetool.Registry; kept as an interface here so
// toolcatalog does not import nativetool's provider/search dependencies.
type NativeExecutor interface {
	Execute(ctx context.Context, name string, argsJSON json.RawMessage, accessor ParamsAccessor) (string, error)
	Definitions() []Definition
}

// MCPExecutor dispatches a tool call to a connected MCP server and lists its
// tools. Implemented by runtime/mcp's pool; kept as an interface here so
// toolcatalog does not depend on a concrete transport.
type MCPExecutor interface {
	Connect(ctx context.Context, label, url string, headers map[string]string) (serverID string, err error)
	ListTools(ctx context.Context, serverID string) ([]Definition, error)
	Execute(ctx context.Context, serverID, tool string, argsJSON json.RawMessage) (string, error)
}

// ParamsAccessor exposes request-scoped parameters (e.g. file_search config,
// vector store ids) to native tool executors without threading the whole
// responses.Request through the dispatch call.
type ParamsAccessor interface {
	Get(key string) (any, bool)
}

// StaticParams is the simplest ParamsAccessor: a fixed map built once per
// request by the HTTP layer from the request's tool configs.
type StaticParams map[string]any

// Get implements ParamsAccessor.
func (p StaticParams) Get(key string) (any, bool) {
	v, ok := p[key]
	return v, ok
}

// Registry is the process-wide tool catalog: native tools loaded at start,
// plus a per-server cache of MCP tool listings populated lazily. It is
// shared read-mostly state across requests.
type Registry struct {
	native NativeExecutor
	mcp    MCPExecutor

	mu        sync.RWMutex
	mcpCache  map[string][]Definition // serverID -> tools, evicted on disconnect
	mcpServer map[string]MCPServerInfo
}

// New constructs a Registry backed by the given native and MCP executors.
func New(native NativeExecutor, mcp MCPExecutor) *Registry {
	return &Registry{
		native:    native,
		mcp:       mcp,
		mcpCache:  make(map[string][]Definition),
		mcpServer: make(map[string]MCPServerInfo),
	}
}

// ListAvailable returns metadata for every native tool visible to this
// process (MCP tools are per-request, discovered via EnsureMCPTools).
func (r *Registry) ListAvailable() []Definition {
	if r.native == nil {
		return nil
	}
	return r.native.Definitions()
}

// EnsureMCPTools fetches and caches the tool list for the given server,
// connecting lazily on first encounter. Subsequent calls
// for the same server reuse the cache.
func (r *Registry) EnsureMCPTools(ctx context.Context, label, url string, headers map[string]string) ([]Definition, string, error) {
	serverID := ServerIdentifier(label, url)

	r.mu.RLock()
	cached, ok := r.mcpCache[serverID]
	r.mu.RUnlock()
	if ok {
		return cached, serverID, nil
	}

	if r.mcp == nil {
		return nil, "", gatewayerrors.New(gatewayerrors.ClassMCPUnavailable, "no MCP executor configured")
	}
	if _, err := r.mcp.Connect(ctx, label, url, headers); err != nil {
		return nil, "", gatewayerrors.WithCause(gatewayerrors.ClassMCPUnavailable, "mcp connect failed", gatewayerrors.From(err))
	}
	defs, err := r.mcp.ListTools(ctx, serverID)
	if err != nil {
		return nil, "", gatewayerrors.WithCause(gatewayerrors.ClassMCPUnavailable, "mcp list_tools failed", gatewayerrors.From(err))
	}

	r.mu.Lock()
	r.mcpCache[serverID] = defs
	r.mcpServer[serverID] = MCPServerInfo{Label: label, URL: url, Headers: headers}
	r.mu.Unlock()
	return defs, serverID, nil
}

// EvictMCPServer drops the cached tool listing for serverID, called on MCP
// client disconnect
func (r *Registry) EvictMCPServer(serverID string) {
	r.mu.Lock()
	delete(r.mcpCache, serverID)
	delete(r.mcpServer, serverID)
	r.mu.Unlock()
}

// Resolve maps a wire-facing tool name through aliasMap (alias -> canonical)
// if present, returning the canonical name. A tool with no alias entry
// resolves to itself.
func Resolve(name string, aliasMap map[string]string) string {
	if canonical, ok := aliasMap[name]; ok {
		return canonical
	}
	return name
}

// GetFunctionTool returns the function-shape definition used when a request
// references the tool by alias, or false if name is not a registered tool.
func (r *Registry) GetFunctionTool(name string) (Definition, bool) {
	for _, def := range r.ListAvailable() {
		if def.Name == name {
			return def, true
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, defs := range r.mcpCache {
		for _, def := range defs {
			if def.Name == name {
				return def, true
			}
		}
	}
	return Definition{}, false
}

// Dispatch routes a tool call by protocol: NATIVE to the native executor, MCP
// to the MCP executor with the qualified name stripped back to its raw tool
// name. Returns tool_not_found for anything unrecognized.
func (r *Registry) Dispatch(ctx context.Context, def Definition, argsJSON json.RawMessage, accessor ParamsAccessor) (string, error) {
	if err := validateArguments(def, argsJSON); err != nil {
		return "", err
	}
	switch def.Protocol {
	case ProtocolNative:
		if r.native == nil {
			return "", gatewayerrors.New(gatewayerrors.ClassToolNotFound, "no native executor configured")
		}
		return r.native.Execute(ctx, def.Name, argsJSON, accessor)
	case ProtocolMCP:
		if r.mcp == nil || def.Server == nil {
			return "", gatewayerrors.New(gatewayerrors.ClassToolNotFound, "mcp tool has no server binding")
		}
		serverID := def.Server.ServerIdentifier()
		rawTool := StripQualifier(def.Server.Label, def.Name)
		return r.mcp.Execute(ctx, serverID, rawTool, argsJSON)
	default:
		return "", gatewayerrors.New(gatewayerrors.ClassToolNotFound, "unknown tool protocol: "+string(def.Protocol))
	}
}

// Qualify builds the wire-facing qualified name for an MCP tool:
// "<label>_<tool>".
func Qualify(label, tool string) string {
	return label + "_" + tool
}

// StripQualifier removes the "<label>_" prefix from a qualified MCP tool
// name, returning the raw tool name the MCP server expects.
func StripQualifier(label, qualified string) string {
	prefix := label + "_"
	if len(qualified) > len(prefix) && qualified[:len(prefix)] == prefix {
		return qualified[len(prefix):]
	}
	return qualified
}
