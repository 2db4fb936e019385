// Package provider defines the protocol-agnostic interface for chat model
// backends. Each adapter (openaicompat, openai) handles its own wire
// protocol internally. The interface operates on mcpchat's own types
// (ProviderRequest, ProviderResponse), keeping backend protocol details
// invisible to the session manager.
package provider
