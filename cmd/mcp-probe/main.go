// Command mcp-probe checks connectivity to an MCP server with an
// implementation independent of the one mcpchat uses, and prints the
// server's tools. Optionally it calls one tool.
//
// The server defaults to the one in the mcpchat configuration:
//
//	mcp-probe
//	mcp-probe --server http://localhost:8000/mcp
//	mcp-probe --transport stdio --server "python server.py"
//	mcp-probe --call echo --args '{"message":"hi"}'
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	flag "github.com/spf13/pflag"

	"github.com/rhuss/mcpchat/pkg/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("probe failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to the mcpchat YAML config file")
		server     = flag.String("server", "", "server URL, or command line for stdio (overrides config)")
		transportF = flag.String("transport", "", "streamable-http, sse or stdio (overrides config)")
		call       = flag.String("call", "", "tool to call after listing")
		args       = flag.String("args", "{}", "JSON arguments for --call")
		timeout    = flag.Duration("timeout", 30*time.Second, "overall timeout")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *transportF != "" {
		cfg.MCP.Transport = *transportF
	}
	if s := strings.TrimSpace(*server); s != "" {
		if cfg.MCP.Transport == "stdio" {
			fields := strings.Fields(s)
			cfg.MCP.Command, cfg.MCP.Args = fields[0], fields[1:]
		} else {
			cfg.MCP.URL = s
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c, err := newClient(cfg.MCP)
	if err != nil {
		return err
	}
	defer c.Close()

	return probe(ctx, c, os.Stdout, *call, *args)
}

// newClient creates an unstarted client for the configured transport.
func newClient(cfg config.MCPServerConfig) (*client.Client, error) {
	switch cfg.Transport {
	case "stdio":
		env := make([]string, 0, len(cfg.Env))
		for k, v := range cfg.Env {
			env = append(env, k+"="+v)
		}
		c, err := client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
		if err != nil {
			return nil, fmt.Errorf("starting %s: %w", cfg.Command, err)
		}
		return c, nil
	case "sse":
		c, err := client.NewSSEMCPClient(cfg.URL, transport.WithHeaders(cfg.Headers))
		if err != nil {
			return nil, fmt.Errorf("creating SSE client: %w", err)
		}
		return c, nil
	case "streamable-http", "":
		c, err := client.NewStreamableHttpClient(cfg.URL, transport.WithHTTPHeaders(cfg.Headers))
		if err != nil {
			return nil, fmt.Errorf("creating streamable client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

// probe initializes c, prints its tools to w and calls one tool when
// callName is set.
func probe(ctx context.Context, c *client.Client, w io.Writer, callName, callArgs string) error {
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("starting client: %w", err)
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "mcp-probe",
		Version: "1.0.0",
	}
	initResult, err := c.Initialize(ctx, initRequest)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	fmt.Fprintf(w, "Connected to %s %s (protocol %s)\n",
		initResult.ServerInfo.Name, initResult.ServerInfo.Version, initResult.ProtocolVersion)

	tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("listing tools: %w", err)
	}
	fmt.Fprintf(w, "Tools (%d):\n", len(tools.Tools))
	for _, tool := range tools.Tools {
		fmt.Fprintf(w, "  %s: %s\n", tool.Name, tool.Description)
	}

	if callName == "" {
		return nil
	}

	var arguments map[string]any
	if err := json.Unmarshal([]byte(callArgs), &arguments); err != nil {
		return fmt.Errorf("parsing --args: %w", err)
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = callName
	req.Params.Arguments = arguments
	res, err := c.CallTool(ctx, req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", callName, err)
	}

	status := "ok"
	if res.IsError {
		status = "error"
	}
	fmt.Fprintf(w, "Call %s (%s):\n", callName, status)
	for _, content := range res.Content {
		fmt.Fprintln(w, mcp.GetTextFromContent(content))
	}
	return nil
}
