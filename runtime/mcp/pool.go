package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/masaicai/openresponses/gateway/toolcatalog"
)

// ListCaller is a Caller that can also enumerate the tools a server exposes.
// All three transports (HTTP, SSE, stdio) implement it.
type ListCaller interface {
	Caller
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
}

// Transport selects which MCP wire transport a configured server uses.
type Transport string

const (
	TransportHTTP  Transport = "http"
	TransportSSE   Transport = "sse"
	TransportStdio Transport = "stdio"
)

// ServerConfig describes one entry of the mcp.config_path file:
// {mcpServers: {name: {url, headers?}}}.
type ServerConfig struct {
	Label     string
	URL       string
	Headers   map[string]string
	Transport Transport // defaults to TransportHTTP when empty
}

// Pool maintains one logical MCP client per server identifier, keyed by
// hash(label|url). Connects are single-flighted per server id; once
// connected, ListTools and Execute run fully concurrently, 
type Pool struct {
	mu       sync.Mutex
	callers  map[string]ListCaller
	labels   map[string]string
	inflight map[string]*connectCall
	timeout  time.Duration
}

type connectCall struct {
	done chan struct{}
	err  error
}

// NewPool constructs an empty MCP client pool. initTimeout bounds each
// server's initialize handshake.
func NewPool(initTimeout time.Duration) *Pool {
	if initTimeout <= 0 {
		initTimeout = 10 * time.Second
	}
	return &Pool{
		callers:  make(map[string]ListCaller),
		labels:   make(map[string]string),
		inflight: make(map[string]*connectCall),
		timeout:  initTimeout,
	}
}

// Connect establishes (or reuses) the client for the given label/url,
// single-flighting concurrent connects to the same server identifier.
// Satisfies toolcatalog.MCPExecutor.
func (p *Pool) Connect(ctx context.Context, label, url string, headers map[string]string) (string, error) {
	serverID := toolcatalog.ServerIdentifier(label, url)

	p.mu.Lock()
	if _, ok := p.callers[serverID]; ok {
		p.mu.Unlock()
		return serverID, nil
	}
	if call, ok := p.inflight[serverID]; ok {
		p.mu.Unlock()
		<-call.done
		return serverID, call.err
	}
	call := &connectCall{done: make(chan struct{})}
	p.inflight[serverID] = call
	p.mu.Unlock()

	caller, err := p.dial(ctx, label, url, headers)

	p.mu.Lock()
	if err == nil {
		p.callers[serverID] = caller
		p.labels[serverID] = label
	}
	delete(p.inflight, serverID)
	call.err = err
	p.mu.Unlock()
	close(call.done)

	return serverID, err
}

func (p *Pool) dial(ctx context.Context, _, url string, headers map[string]string) (ListCaller, error) {
	opts := HTTPOptions{Endpoint: url, Headers: headers, InitTimeout: p.timeout}
	// Prefer plain HTTP JSON-RPC; servers that require streaming responses
	// are configured explicitly via ConnectTransport.
	caller, err := NewHTTPCaller(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mcp connect %s: %w", url, err)
	}
	return caller, nil
}

// ConnectTransport is like Connect but lets the caller pin a specific
// transport kind (http, sse, stdio) instead of the HTTP default, used when a
// ServerConfig entry specifies one explicitly.
func (p *Pool) ConnectTransport(ctx context.Context, cfg ServerConfig) (string, error) {
	serverID := toolcatalog.ServerIdentifier(cfg.Label, cfg.URL)

	p.mu.Lock()
	if _, ok := p.callers[serverID]; ok {
		p.mu.Unlock()
		return serverID, nil
	}
	p.mu.Unlock()

	var caller ListCaller
	var err error
	opts := HTTPOptions{Endpoint: cfg.URL, Headers: cfg.Headers, InitTimeout: p.timeout}
	switch cfg.Transport {
	case TransportSSE:
		caller, err = NewSSECaller(ctx, opts)
	case TransportStdio:
		return "", fmt.Errorf("mcp: stdio transport requires StdioOptions; ConnectTransport connects only http and sse servers")
	default:
		caller, err = NewHTTPCaller(ctx, opts)
	}
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.callers[serverID] = caller
	p.labels[serverID] = cfg.Label
	p.mu.Unlock()
	return serverID, nil
}

// ListTools enumerates the tools exposed by serverID, translating MCP
// descriptors into toolcatalog.Definitions qualified as "<label>_<tool>".
// Retries once on a transient failure
func (p *Pool) ListTools(ctx context.Context, serverID string) ([]toolcatalog.Definition, error) {
	p.mu.Lock()
	caller, ok := p.callers[serverID]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("mcp: server %s not connected", serverID)
	}

	descriptors, err := caller.ListTools(ctx)
	if err != nil {
		descriptors, err = caller.ListTools(ctx) // one retry, idempotent
	}
	if err != nil {
		return nil, err
	}

	label := p.labelFor(serverID)
	defs := make([]toolcatalog.Definition, 0, len(descriptors))
	for _, d := range descriptors {
		params := d.InputSchema
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		defs = append(defs, toolcatalog.Definition{
			ID:          serverID + ":" + d.Name,
			Name:        toolcatalog.Qualify(label, d.Name),
			Description: d.Description,
			Parameters:  params,
			Protocol:    toolcatalog.ProtocolMCP,
			Hosting:     toolcatalog.HostingRemote,
			Server:      &toolcatalog.MCPServerInfo{Label: label, ID: serverID},
		})
	}
	return defs, nil
}

// Execute invokes tool on serverID with the raw (unqualified) tool name.
func (p *Pool) Execute(ctx context.Context, serverID, tool string, argsJSON json.RawMessage) (string, error) {
	p.mu.Lock()
	caller, ok := p.callers[serverID]
	p.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("mcp: server %s not connected", serverID)
	}
	resp, err := caller.CallTool(ctx, CallRequest{Suite: serverID, Tool: tool, Payload: argsJSON})
	if err != nil {
		return "", err
	}
	return string(resp.Result), nil
}

// Disconnect closes and forgets the client for serverID, used on shutdown or
// when a server needs to be re-resolved (: cache entries are
// evicted on MCP client disconnect).
func (p *Pool) Disconnect(serverID string) error {
	p.mu.Lock()
	caller, ok := p.callers[serverID]
	delete(p.callers, serverID)
	delete(p.labels, serverID)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	if closer, ok := caller.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// labelFor returns the label a server was connected under, falling back to
// a prefix of the server identifier if the label was somehow never recorded.
func (p *Pool) labelFor(serverID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if label, ok := p.labels[serverID]; ok {
		return label
	}
	return serverID[:8]
}
