package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/mcpchat/pkg/api"
	"github.com/rhuss/mcpchat/pkg/logging"
	"github.com/rhuss/mcpchat/pkg/tools"
)

// ClientName and ClientVersion identify mcpchat in the MCP handshake.
const (
	ClientName    = "mcpchat"
	ClientVersion = "0.1.0"
)

// Client wraps an MCP SDK Client and ClientSession for a single
// MCP server connection. It handles connection lifecycle, tool discovery,
// and tool execution.
type Client struct {
	cfg     ServerConfig
	client  *mcp.Client
	session *mcp.ClientSession

	mu            sync.Mutex
	cachedTools   []api.ToolDescriptor
	toolsResolved bool
}

// NewClient creates a new Client for the given server configuration.
// Call Connect to establish the connection.
func NewClient(cfg ServerConfig) *Client {
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	return &Client{cfg: cfg}
}

// Name returns the configured server name.
func (c *Client) Name() string {
	return c.cfg.Name
}

// Connect establishes the MCP connection to the server, performing the
// protocol handshake.
func (c *Client) Connect(ctx context.Context) error {
	return c.ConnectWithTransport(ctx, nil)
}

// ConnectWithTransport establishes the MCP connection using the given
// transport. If transport is nil, a transport is created from the
// server configuration.
func (c *Client) ConnectWithTransport(ctx context.Context, transport mcp.Transport) error {
	c.client = mcp.NewClient(
		&mcp.Implementation{
			Name:    ClientName,
			Version: ClientVersion,
		},
		&mcp.ClientOptions{
			Capabilities: &mcp.ClientCapabilities{},
		},
	)

	if transport == nil {
		t, err := c.createTransport()
		if err != nil {
			return fmt.Errorf("creating transport for %q: %w", c.cfg.Name, err)
		}
		transport = t
	}

	session, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("connecting to MCP server %q: %w", c.cfg.Name, err)
	}
	c.session = session

	logging.Log("tools", "connected to MCP server",
		"server", c.cfg.Name,
		"transport", c.transportName(),
	)
	return nil
}

func (c *Client) transportName() string {
	if c.cfg.Transport == "" {
		return "streamable-http"
	}
	return c.cfg.Transport
}

// createTransport creates an MCP transport based on the server configuration.
func (c *Client) createTransport() (mcp.Transport, error) {
	switch c.transportName() {
	case "stdio":
		if c.cfg.Command == "" {
			return nil, fmt.Errorf("stdio transport requires a command")
		}
		cmd := exec.Command(c.cfg.Command, c.cfg.Args...)
		cmd.Env = os.Environ()
		for k, v := range c.cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		return &mcp.CommandTransport{Command: cmd}, nil

	case "sse":
		httpClient, err := c.buildHTTPClient()
		if err != nil {
			return nil, err
		}
		transport := &mcp.SSEClientTransport{
			Endpoint: c.cfg.URL,
		}
		if httpClient != nil {
			transport.HTTPClient = httpClient
		}
		return transport, nil

	case "streamable-http":
		httpClient, err := c.buildHTTPClient()
		if err != nil {
			return nil, err
		}
		transport := &mcp.StreamableClientTransport{
			Endpoint: c.cfg.URL,
		}
		if httpClient != nil {
			transport.HTTPClient = httpClient
		}
		return transport, nil

	default:
		return nil, fmt.Errorf("unsupported transport type %q", c.cfg.Transport)
	}
}

// buildHTTPClient returns an HTTP client that injects static headers and
// auth headers. Returns nil if neither is configured.
func (c *Client) buildHTTPClient() (*http.Client, error) {
	authProvider, err := NewAuthProvider(c.cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("configuring auth for %q: %w", c.cfg.Name, err)
	}

	if len(c.cfg.Headers) == 0 && authProvider == nil {
		return nil, nil
	}

	return &http.Client{
		Transport: &authAwareTransport{
			base:         http.DefaultTransport,
			headers:      c.cfg.Headers,
			authProvider: authProvider,
		},
	}, nil
}

// authAwareTransport is an http.RoundTripper that adds static headers and
// dynamically obtained auth headers to every request.
type authAwareTransport struct {
	base         http.RoundTripper
	headers      map[string]string
	authProvider AuthProvider
}

func (t *authAwareTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())

	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	// Auth headers win over static ones (e.g. Authorization).
	if t.authProvider != nil {
		authHeaders, err := t.authProvider.GetHeaders(req.Context())
		if err != nil {
			return nil, fmt.Errorf("getting auth headers: %w", err)
		}
		for k, v := range authHeaders {
			req.Header.Set(k, v)
		}
	}

	return t.base.RoundTrip(req)
}

// DiscoverTools queries the MCP server for available tools, converts them
// to api.ToolDescriptor format, and caches the results. Subsequent calls
// return the cached tools.
func (c *Client) DiscoverTools(ctx context.Context) ([]api.ToolDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.toolsResolved {
		return c.cachedTools, nil
	}

	if c.session == nil {
		return nil, fmt.Errorf("MCP client %q not connected", c.cfg.Name)
	}

	var descs []api.ToolDescriptor
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing tools from %q: %w", c.cfg.Name, err)
		}
		td, convErr := convertTool(tool)
		if convErr != nil {
			return nil, fmt.Errorf("converting tool %q from %q: %w", tool.Name, c.cfg.Name, convErr)
		}
		descs = append(descs, td)
	}

	c.cachedTools = descs
	c.toolsResolved = true
	return descs, nil
}

// CallTool executes a tool call on the MCP server. Transport and protocol
// failures are reported as error results.
func (c *Client) CallTool(ctx context.Context, call api.ToolCall) (*tools.ToolResult, error) {
	if c.session == nil {
		return nil, fmt.Errorf("MCP client %q not connected", c.cfg.Name)
	}

	args, err := call.ParseArguments()
	if err != nil {
		return tools.ErrorResult(call.ID, "%v", err), nil
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      call.Name,
		Arguments: args,
	})
	if err != nil {
		return tools.ErrorResult(call.ID, "MCP tool call error: %v", err), nil
	}

	return convertResult(call.ID, result), nil
}

// Close closes the MCP session.
func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

// convertTool converts an MCP Tool to an api.ToolDescriptor.
func convertTool(t *mcp.Tool) (api.ToolDescriptor, error) {
	var schema json.RawMessage
	if t.InputSchema != nil {
		data, err := json.Marshal(t.InputSchema)
		if err != nil {
			return api.ToolDescriptor{}, fmt.Errorf("marshaling input schema: %w", err)
		}
		schema = data
	}

	return api.ToolDescriptor{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}, nil
}

// convertResult joins the text content of an MCP CallToolResult. Non-text
// content is summarized by type so the model knows something was returned.
func convertResult(callID string, result *mcp.CallToolResult) *tools.ToolResult {
	var parts []string
	for _, content := range result.Content {
		switch v := content.(type) {
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image %s]", v.MIMEType))
		case *mcp.AudioContent:
			parts = append(parts, fmt.Sprintf("[audio %s]", v.MIMEType))
		}
	}

	output := strings.Join(parts, "\n")
	if output == "" && result.StructuredContent != nil {
		if data, err := json.Marshal(result.StructuredContent); err == nil {
			output = string(data)
		}
	}

	return &tools.ToolResult{
		CallID:  callID,
		Output:  output,
		IsError: result.IsError,
	}
}
