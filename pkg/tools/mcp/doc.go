// Package mcp connects the chat session to a Model Context Protocol tool
// server. It wraps the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk), discovers the server's tools
// once per connection and executes tool calls, implementing
// tools.ToolExecutor.
//
// Three transports are supported: streamable-http (default), sse and
// stdio. HTTP transports can carry static headers plus an OAuth 2.0
// client_credentials or locally signed JWT bearer token.
package mcp
