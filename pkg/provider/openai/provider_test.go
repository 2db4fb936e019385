package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/mcpchat/pkg/provider"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": null,
      "tool_calls": [{
        "id": "call_abc",
        "type": "function",
        "function": {"name": "list_dir", "arguments": "{\"path\":\".\"}"}
      }]
    }
  }],
  "usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
}`

func TestProvider_Complete(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("expected path /v1/chat/completions, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody))
	}))
	defer srv.Close()

	p, err := New(Config{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Aliases: map[string]string{"fast": "gpt-4o-mini"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := p.Complete(context.Background(), &provider.ProviderRequest{
		Model: "fast",
		Messages: []provider.ProviderMessage{
			{Role: "system", Content: "Summary of the conversation so far: nothing"},
			{Role: "user", Content: "list files"},
		},
		Tools: []provider.ProviderTool{{
			Type: "function",
			Function: provider.ProviderFunctionDef{
				Name:        "list_dir",
				Description: "List a directory",
				Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}}}`),
			},
		}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if captured["model"] != "gpt-4o-mini" {
		t.Errorf("expected aliased model in request, got %v", captured["model"])
	}
	if tools, _ := captured["tools"].([]any); len(tools) != 1 {
		t.Errorf("expected 1 tool in request, got %v", captured["tools"])
	}
	if msgs, _ := captured["messages"].([]any); len(msgs) != 2 {
		t.Errorf("expected 2 messages in request, got %v", captured["messages"])
	}

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_abc" || tc.Name != "list_dir" || tc.Arguments != `{"path":"."}` {
		t.Errorf("unexpected tool call: %+v", tc)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 7 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
	if resp.FinishReason != "tool_calls" {
		t.Errorf("expected finish_reason tool_calls, got %q", resp.FinishReason)
	}
}

func TestProvider_Complete_AssistantToolCallsRoundTrip(t *testing.T) {
	var captured struct {
		Messages []map[string]any `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"done"}}]}`))
	}))
	defer srv.Close()

	p, _ := New(Config{BaseURL: srv.URL + "/v1/", APIKey: "k"})
	resp, err := p.Complete(context.Background(), &provider.ProviderRequest{
		Model: "m",
		Messages: []provider.ProviderMessage{
			{Role: "user", Content: "list files"},
			{Role: "assistant", ToolCalls: []provider.ProviderToolCall{
				{ID: "call_1", Type: "function", Function: provider.ProviderFunctionCall{Name: "list_dir", Arguments: `{}`}},
			}},
			{Role: "tool", Content: `["a.txt"]`, ToolCallID: "call_1"},
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "done" {
		t.Errorf("expected content done, got %q", resp.Content)
	}

	if len(captured.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(captured.Messages))
	}
	if calls, _ := captured.Messages[1]["tool_calls"].([]any); len(calls) != 1 {
		t.Errorf("expected assistant tool_calls, got %v", captured.Messages[1])
	}
	if captured.Messages[2]["tool_call_id"] != "call_1" {
		t.Errorf("expected tool_call_id call_1, got %v", captured.Messages[2]["tool_call_id"])
	}
}

func TestProvider_Complete_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	}))
	defer srv.Close()

	p, _ := New(Config{BaseURL: srv.URL + "/v1/", APIKey: "k"})
	_, err := p.Complete(context.Background(), &provider.ProviderRequest{Model: "m"})

	var backendErr *provider.BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected *provider.BackendError, got %T (%v)", err, err)
	}
	if backendErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", backendErr.StatusCode)
	}
}

func TestProvider_Complete_InvalidToolSchema(t *testing.T) {
	p, _ := New(Config{BaseURL: "http://127.0.0.1:1/v1/", APIKey: "k"})
	_, err := p.Complete(context.Background(), &provider.ProviderRequest{
		Model: "m",
		Tools: []provider.ProviderTool{{Type: "function", Function: provider.ProviderFunctionDef{
			Name: "broken", Parameters: json.RawMessage(`[1,2`),
		}}},
	})
	if err == nil {
		t.Fatal("expected error for undecodable tool parameters")
	}
}

func TestProvider_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("expected path /v1/models, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o-mini","object":"model","created":1,"owned_by":"openai"}]}`))
	}))
	defer srv.Close()

	p, _ := New(Config{BaseURL: srv.URL + "/v1/", APIKey: "k"})
	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 1 || models[0].ID != "gpt-4o-mini" || models[0].OwnedBy != "openai" {
		t.Errorf("unexpected models: %+v", models)
	}
}

func TestProvider_Name(t *testing.T) {
	p, _ := New(Config{APIKey: "k"})
	if p.Name() != "openai" {
		t.Errorf("expected name openai, got %q", p.Name())
	}
}
