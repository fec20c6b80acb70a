package main

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/masaicai/openresponses/runtime/mcp"
)

// mcpConfigFile is the shape of the mcp.config_path YAML document: a map of
// server label to its connection details, mirroring the "mcpServers"
// convention used by MCP client configs elsewhere in the ecosystem.
type mcpConfigFile struct {
	MCPServers map[string]mcpServerEntry `yaml:"mcpServers"`
}

type mcpServerEntry struct {
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	Transport string            `yaml:"transport"`
}

// loadMCPServers parses path into the Pool's ServerConfig shape, preserving
// declaration order isn't required since each server connects independently.
func loadMCPServers(path string) ([]mcp.ServerConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mcp config: read %s: %w", path, err)
	}
	var doc mcpConfigFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("mcp config: parse %s: %w", path, err)
	}
	out := make([]mcp.ServerConfig, 0, len(doc.MCPServers))
	for label, entry := range doc.MCPServers {
		transport := mcp.TransportHTTP
		switch entry.Transport {
		case string(mcp.TransportSSE):
			transport = mcp.TransportSSE
		case string(mcp.TransportStdio):
			transport = mcp.TransportStdio
		}
		out = append(out, mcp.ServerConfig{
			Label:     label,
			URL:       entry.URL,
			Headers:   entry.Headers,
			Transport: transport,
		})
	}
	return out, nil
}

// prewarmMCPServers eagerly connects every configured server at startup
//, logging a failure rather than aborting boot since a request
// referencing that server directly with its own server_url can still
// succeed, and other servers should not be blocked by one bad entry.
func prewarmMCPServers(ctx context.Context, pool *mcp.Pool, servers []mcp.ServerConfig, onError func(label string, err error)) {
	for _, s := range servers {
		if _, err := pool.ConnectTransport(ctx, s); err != nil && onError != nil {
			onError(s.Label, err)
		}
	}
}
