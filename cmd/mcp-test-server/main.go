// Command mcp-test-server runs a small MCP server for trying out mcpchat.
// It provides "list_dir", "echo" and "get_time" over streamable HTTP on /mcp.
//
// Configuration:
//
//	PORT     - Listen port (default: 8000)
//	MCP_ROOT - Directory list_dir is confined to (default: working directory)
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}
	root := os.Getenv("MCP_ROOT")
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		log.Fatalf("Invalid MCP_ROOT: %v", err)
	}

	server := newServer(absRoot)

	// Serve via streamable HTTP on /mcp.
	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, nil)

	httpMux := http.NewServeMux()
	httpMux.Handle("/mcp", handler)
	httpMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})

	log.Printf("MCP test server starting on :%s (root %s)", port, absRoot)
	if err := http.ListenAndServe(":"+port, httpMux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// ListDirInput is the argument of list_dir.
type ListDirInput struct {
	Path string `json:"path" jsonschema:"directory to list, relative to the server root"`
}

// EchoInput is the argument of echo.
type EchoInput struct {
	Message string `json:"message" jsonschema:"the message to echo back"`
}

func newServer(root string) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{Name: "mcpchat-test-mcp", Version: "v1.0.0"},
		nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_dir",
		Description: "Lists the entries of a directory. Directories end with a slash.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input ListDirInput) (*mcp.CallToolResult, struct{}, error) {
		entries, err := listDir(root, input.Path)
		if err != nil {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
			}, struct{}{}, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: strings.Join(entries, "\n")}},
		}, struct{}{}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_time",
		Description: "Returns the current UTC time",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, struct{}, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Current time: %s", time.Now().UTC().Format(time.RFC3339))},
			},
		}, struct{}{}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "echo",
		Description: "Echoes the provided message back",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input EchoInput) (*mcp.CallToolResult, struct{}, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Echo: %s", input.Message)},
			},
		}, struct{}{}, nil
	})

	return server
}

// listDir returns the sorted entry names of root/rel. Paths leaving root
// are rejected.
func listDir(root, rel string) ([]string, error) {
	if rel == "" {
		rel = "."
	}
	dir := filepath.Join(root, filepath.Clean("/"+rel))
	if dir != root && !strings.HasPrefix(dir, root+string(filepath.Separator)) {
		return nil, fmt.Errorf("path %q is outside the server root", rel)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", rel, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
