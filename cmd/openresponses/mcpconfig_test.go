package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaicai/openresponses/runtime/mcp"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadMCPServersParsesEntriesAndDefaultsTransport(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
mcpServers:
  gh:
    url: https://mcp.example/gh
    headers:
      Authorization: Bearer xyz
  local:
    url: http://localhost:9000
    transport: stdio
`)

	servers, err := loadMCPServers(path)
	require.NoError(t, err)
	require.Len(t, servers, 2)

	byLabel := map[string]mcp.ServerConfig{}
	for _, s := range servers {
		byLabel[s.Label] = s
	}

	gh := byLabel["gh"]
	assert.Equal(t, "https://mcp.example/gh", gh.URL)
	assert.Equal(t, mcp.TransportHTTP, gh.Transport, "transport defaults to http when omitted")
	assert.Equal(t, "Bearer xyz", gh.Headers["Authorization"])

	local := byLabel["local"]
	assert.Equal(t, mcp.TransportStdio, local.Transport)
}

func TestLoadMCPServersMissingFileReturnsError(t *testing.T) {
	t.Parallel()
	_, err := loadMCPServers(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestLoadMCPServersMalformedYAMLReturnsError(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "mcpServers: [this is not a map")
	_, err := loadMCPServers(path)
	require.Error(t, err)
}

func TestPrewarmMCPServersReportsFailuresWithoutAbortingOthers(t *testing.T) {
	t.Parallel()
	servers := []mcp.ServerConfig{
		{Label: "bad", URL: "http://127.0.0.1:1"},
		{Label: "also-bad", URL: "http://127.0.0.1:2"},
	}
	pool := mcp.NewPool(2 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var failed []string
	prewarmMCPServers(ctx, pool, servers, func(label string, err error) {
		require.Error(t, err)
		failed = append(failed, label)
	})

	assert.ElementsMatch(t, []string{"bad", "also-bad"}, failed)
}

func TestPrewarmMCPServersNilOnErrorDoesNotPanic(t *testing.T) {
	t.Parallel()
	pool := mcp.NewPool(2 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NotPanics(t, func() {
		prewarmMCPServers(ctx, pool, []mcp.ServerConfig{{Label: "x", URL: "http://127.0.0.1:1"}}, nil)
	})
}
