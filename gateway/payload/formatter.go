// Package payload post-processes a
// completed response's outgoing JSON. It is applied to the Response
// document built at the end of a run: the non-streaming reply and, on the
// streaming path, the document that is stored. Streamed response.* events
// carry no full response object and do not pass through it.
package payload

import (
	"strconv"
	"time"

	"github.com/masaicai/openresponses/gateway/responses"
	"github.com/masaicai/openresponses/gateway/toolcatalog"
)

// Format rewrites a Response in place (and returns it, for chaining):
//   - registered native/MCP tools in Tools are rewritten from their
//     function shape back to alias form, so clients see server-managed
//     tools as first-class types rather than raw functions;
//   - CreatedAt is re-rendered as fixed-point decimal (never scientific).
func Format(resp *responses.Response, aliases responses.AliasMap, registry *toolcatalog.Registry) *responses.Response {
	if resp == nil {
		return nil
	}
	resp.Tools = rewriteToolAliases(resp.Tools, aliases, registry)
	resp.CreatedAt = FormatCreatedAt(resp.CreatedAt)
	return resp
}

// rewriteToolAliases replaces each function-shape tool whose name matches a
// recorded alias, or an MCP-qualified name, with its alias wire shape.
func rewriteToolAliases(tools []responses.ToolSpec, aliases responses.AliasMap, registry *toolcatalog.Registry) []responses.ToolSpec {
	if len(tools) == 0 {
		return tools
	}
	canonicalToAlias := make(map[string]string, len(aliases))
	for alias, canonical := range aliases {
		canonicalToAlias[canonical] = alias
	}

	out := make([]responses.ToolSpec, 0, len(tools))
	for _, t := range tools {
		if !t.IsFunction() {
			out = append(out, t)
			continue
		}
		if alias, ok := canonicalToAlias[t.Name]; ok {
			out = append(out, responses.ToolSpec{Type: alias})
			continue
		}
		if registry != nil {
			if label, tool, ok := mcpOrigin(t.Name, registry); ok {
				out = append(out, responses.ToolSpec{Type: "mcp", Name: tool, ServerLabel: label})
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// mcpOrigin reports whether name is a "<label>_<tool>" qualified MCP tool
// name the registry currently has cached, returning the unqualified label
// and tool name.
func mcpOrigin(name string, registry *toolcatalog.Registry) (label, tool string, ok bool) {
	def, found := registry.GetFunctionTool(name)
	if !found || def.Protocol != toolcatalog.ProtocolMCP || def.Server == nil {
		return "", "", false
	}
	return def.Server.Label, toolcatalog.StripQualifier(def.Server.Label, name), true
}

// FormatCreatedAt normalizes a numeric timestamp string to fixed-point
// decimal, never scientific notation. Non-numeric input is returned
// unchanged.
func FormatCreatedAt(createdAt string) string {
	if createdAt == "" {
		return createdAt
	}
	if f, err := strconv.ParseFloat(createdAt, 64); err == nil {
		if f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return createdAt
}

// FormatUnix renders t as a fixed-point decimal Unix timestamp.
func FormatUnix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
