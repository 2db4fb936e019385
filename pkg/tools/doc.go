// Package tools defines the contract between the chat session and a tool
// server. A ToolExecutor lists the tools a server offers and runs calls the
// model requested; every outcome, failures included, comes back as a
// ToolResult so it can be fed to the model as a tool message.
//
// The package also holds the allowed_tools filter and the JSON Schema
// argument validator used by executor implementations.
package tools
