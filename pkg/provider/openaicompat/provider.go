package openaicompat

import (
	"context"
	"fmt"
	"time"

	"github.com/rhuss/mcpchat/pkg/provider"
)

// Provider implements provider.Provider on top of Client.
type Provider struct {
	cfg    Config
	client *Client
}

// Ensure Provider implements provider.Provider at compile time.
var _ provider.Provider = (*Provider)(nil)

// New creates a new Provider with the given configuration.
// Returns an error if the configuration is invalid.
func New(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("openaicompat: BaseURL is required")
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	client := NewClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout)

	if len(cfg.Aliases) > 0 {
		aliases := cfg.Aliases
		client.ModelMapper = func(model string) string {
			if mapped, ok := aliases[model]; ok {
				return mapped
			}
			return model
		}
	}

	return &Provider{cfg: cfg, client: client}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "openaicompat"
}

// Complete performs non-streaming inference against the Chat Completions endpoint.
func (p *Provider) Complete(ctx context.Context, req *provider.ProviderRequest) (*provider.ProviderResponse, error) {
	return p.client.Complete(ctx, req)
}

// ListModels returns available models from the backend.
func (p *Provider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	return p.client.ListModels(ctx)
}

// Close releases provider resources.
func (p *Provider) Close() error {
	return p.client.Close()
}
