// Package openai implements provider.Provider on the official OpenAI Go SDK.
//
// It is the alternative to the openaicompat adapter for deployments that
// talk to api.openai.com (or an Azure-style gateway the SDK understands)
// and want the SDK's request building and error decoding.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/rhuss/mcpchat/pkg/api"
	"github.com/rhuss/mcpchat/pkg/logging"
	"github.com/rhuss/mcpchat/pkg/provider"
)

// Config holds configuration for the SDK-backed provider.
type Config struct {
	// BaseURL overrides the SDK default endpoint when non-empty.
	BaseURL string

	// APIKey authenticates requests.
	APIKey string

	// Timeout bounds each request. Defaults to 120s.
	Timeout time.Duration

	// Aliases maps requested model names to backend model identifiers.
	Aliases map[string]string
}

// Provider implements provider.Provider using openai-go.
type Provider struct {
	cfg    Config
	client openai.Client
}

var _ provider.Provider = (*Provider)(nil)

// New creates a Provider. Retries are disabled: the session decides what a
// failed model call means.
func New(cfg Config) (*Provider, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{cfg: cfg, client: openai.NewClient(opts...)}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "openai"
}

// Complete performs one non-streaming Chat Completions call.
func (p *Provider) Complete(ctx context.Context, req *provider.ProviderRequest) (*provider.ProviderResponse, error) {
	model := req.Model
	if mapped, ok := p.cfg.Aliases[model]; ok {
		model = mapped
	}

	tools, err := toSDKTools(req.Tools)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toSDKMessages(req.Messages),
		Tools:    tools,
	}

	logging.Log("providers", "sdk chat completion request",
		"model", model,
		"messages", len(params.Messages),
		"tools", len(params.Tools),
	)

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapError(err)
	}

	pr := &provider.ProviderResponse{
		Model: resp.Model,
		Usage: provider.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}
	if len(resp.Choices) == 0 {
		return pr, nil
	}

	choice := resp.Choices[0]
	pr.FinishReason = choice.FinishReason
	pr.Content = choice.Message.Content
	for _, tc := range choice.Message.ToolCalls {
		pr.ToolCalls = append(pr.ToolCalls, api.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	pr.ToolCalls = provider.EnsureCallIDs(pr.ToolCalls)

	logging.Log("providers", "sdk chat completion response",
		"model", pr.Model,
		"finish_reason", pr.FinishReason,
		"tool_calls", len(pr.ToolCalls),
	)
	return pr, nil
}

// ListModels returns the first page of models the backend reports.
func (p *Provider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	models := make([]provider.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, provider.ModelInfo{
			ID:      m.ID,
			Object:  "model",
			OwnedBy: m.OwnedBy,
		})
	}
	return models, nil
}

// Close is a no-op; the SDK client holds no resources of its own.
func (p *Provider) Close() error {
	return nil
}

func toSDKMessages(msgs []provider.ProviderMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "user":
			out = append(out, openai.UserMessage(m.Content))
		case "tool":
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case "assistant":
			am := &openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				am.Content.OfString = openai.String(m.Content)
			}
			for _, tc := range m.ToolCalls {
				am.ToolCalls = append(am.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Function.Name,
							Arguments: tc.Function.Arguments,
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: am})
		}
	}
	return out
}

func toSDKTools(tools []provider.ProviderTool) ([]openai.ChatCompletionToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		params := openai.FunctionParameters{"type": "object", "properties": map[string]any{}}
		if len(t.Function.Parameters) > 0 {
			params = openai.FunctionParameters{}
			if err := json.Unmarshal(t.Function.Parameters, &params); err != nil {
				return nil, fmt.Errorf("decoding parameters of tool %q: %w", t.Function.Name, err)
			}
		}
		def := shared.FunctionDefinitionParam{
			Name:       t.Function.Name,
			Parameters: params,
		}
		if t.Function.Description != "" {
			def.Description = openai.String(t.Function.Description)
		}
		out = append(out, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{Function: def},
		})
	}
	return out, nil
}

// mapError converts SDK errors into provider.BackendError so callers see the
// same error shape regardless of adapter.
func mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = fmt.Sprintf("backend error (HTTP %d)", apiErr.StatusCode)
		}
		return &provider.BackendError{StatusCode: apiErr.StatusCode, Message: msg, Err: err}
	}
	return &provider.BackendError{Message: err.Error(), Err: err}
}
