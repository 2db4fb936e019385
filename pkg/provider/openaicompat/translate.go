package openaicompat

import (
	"github.com/rhuss/mcpchat/pkg/api"
	"github.com/rhuss/mcpchat/pkg/provider"
)

// TranslateToChat converts a ProviderRequest into a ChatCompletionRequest
// suitable for the /chat/completions endpoint.
func TranslateToChat(req *provider.ProviderRequest) ChatCompletionRequest {
	cr := ChatCompletionRequest{
		Model: req.Model,
		N:     1,
	}

	for _, pm := range req.Messages {
		cm := ChatMessage{
			Role:       pm.Role,
			Content:    pm.Content,
			ToolCallID: pm.ToolCallID,
		}
		// An assistant turn that only calls tools has null content.
		if pm.Content == "" && len(pm.ToolCalls) > 0 {
			cm.Content = nil
		}
		for _, tc := range pm.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, ChatToolCall{
				ID:   tc.ID,
				Type: tc.Type,
				Function: ChatFunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		cr.Messages = append(cr.Messages, cm)
	}

	for _, pt := range req.Tools {
		cr.Tools = append(cr.Tools, ChatTool{
			Type: pt.Type,
			Function: ChatFunctionDef{
				Name:        pt.Function.Name,
				Description: pt.Function.Description,
				Parameters:  pt.Function.Parameters,
			},
		})
	}

	return cr
}

// TranslateResponse converts a ChatCompletionResponse into a ProviderResponse.
// Only choices[0] is used.
func TranslateResponse(resp *ChatCompletionResponse) *provider.ProviderResponse {
	pr := &provider.ProviderResponse{
		Model: resp.Model,
	}

	if resp.Usage != nil {
		pr.Usage = provider.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}

	if len(resp.Choices) == 0 {
		return pr
	}

	choice := resp.Choices[0]
	pr.FinishReason = choice.FinishReason
	pr.Content = ExtractContentString(choice.Message.Content)

	for _, tc := range choice.Message.ToolCalls {
		pr.ToolCalls = append(pr.ToolCalls, api.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	pr.ToolCalls = provider.EnsureCallIDs(pr.ToolCalls)

	return pr
}

// ExtractContentString attempts to get a plain string from the message content.
// The content field in Chat Completions can be a string or nil.
func ExtractContentString(content any) string {
	if content == nil {
		return ""
	}
	switch v := content.(type) {
	case string:
		return v
	default:
		return ""
	}
}
