package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rhuss/mcpchat/pkg/api"
	"github.com/rhuss/mcpchat/pkg/tools"
)

// Executor implements tools.ToolExecutor on one connected MCP server.
type Executor struct {
	client   *Client
	validate bool

	mu        sync.RWMutex
	known     map[string]bool
	validator *tools.Validator
}

// Ensure Executor implements tools.ToolExecutor at compile time.
var _ tools.ToolExecutor = (*Executor)(nil)

// NewExecutor creates an Executor for a connected client.
func NewExecutor(client *Client, validateArguments bool) *Executor {
	return &Executor{
		client:   client,
		validate: validateArguments,
	}
}

// Connect creates a client from cfg, connects it and returns an Executor
// with the tool catalog already discovered.
func Connect(ctx context.Context, cfg ServerConfig) (*Executor, error) {
	client := NewClient(cfg)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	e := NewExecutor(client, cfg.ValidateArguments)
	if _, err := e.Tools(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return e, nil
}

// Tools returns the server's tool catalog, discovering it on first use.
func (e *Executor) Tools(ctx context.Context) ([]api.ToolDescriptor, error) {
	descs, err := e.client.DiscoverTools(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.known == nil {
		e.known = make(map[string]bool, len(descs))
		for _, d := range descs {
			e.known[d.Name] = true
		}
		e.validator = tools.NewValidator(descs)
		slog.Info("discovered MCP tools",
			"server", e.client.Name(),
			"count", len(descs),
		)
	}
	return descs, nil
}

// Execute validates the call against the catalog and forwards it to the
// server. Unknown tools and invalid arguments never reach the server.
func (e *Executor) Execute(ctx context.Context, call api.ToolCall) (*tools.ToolResult, error) {
	if _, err := e.Tools(ctx); err != nil {
		return tools.ErrorResult(call.ID, "MCP tool discovery failed: %v", err), nil
	}

	e.mu.RLock()
	known := e.known[call.Name]
	validator := e.validator
	e.mu.RUnlock()

	if !known {
		return tools.ErrorResult(call.ID, "no MCP tool named %q on server %q", call.Name, e.client.Name()), nil
	}

	if e.validate {
		if err := validator.Validate(call); err != nil {
			return tools.ErrorResult(call.ID, "%v", err), nil
		}
	}

	result, err := e.client.CallTool(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("calling %q: %w", call.Name, err)
	}
	return result, nil
}

// Close closes the MCP connection.
func (e *Executor) Close() error {
	if err := e.client.Close(); err != nil {
		slog.Warn("failed to close MCP client", "server", e.client.Name(), "error", err)
		return err
	}
	return nil
}
