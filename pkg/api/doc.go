// Package api defines the core types shared by the mcpchat packages.
//
// It provides the conversation message model, tool call and tool
// descriptor types, the classified session error, and ID generation.
// The package performs no I/O.
//
// Core types:
//   - [Message]: one history entry (user, assistant, tool, summary)
//   - [ToolCall]: a model's request to run a tool
//   - [ToolDescriptor]: a tool offered by the tool server
//   - [Error]: classified failure with a fatal/recoverable distinction
package api
