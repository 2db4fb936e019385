package provider

import (
	"context"
)

// Provider abstracts a chat model backend. The interface is
// protocol-agnostic: each adapter handles its own backend protocol
// internally.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Name returns the provider identifier (e.g., "openaicompat", "openai").
	Name() string

	// Complete performs non-streaming inference.
	Complete(ctx context.Context, req *ProviderRequest) (*ProviderResponse, error)

	// ListModels returns available models from the backend.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}
