package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClientSelectsProvider(t *testing.T) {
	cfg := ProviderConfig{APIKey: "k"}
	if c, err := NewClient("", cfg); err != nil {
		t.Fatalf("default provider: %v", err)
	} else if _, ok := c.(*AnthropicClient); !ok {
		t.Fatalf("expected anthropic client, got %T", c)
	}
	if c, err := NewClient(" OpenAI ", cfg); err != nil {
		t.Fatalf("openai provider: %v", err)
	} else if _, ok := c.(*OpenAIClient); !ok {
		t.Fatalf("expected openai client, got %T", c)
	}
	if _, err := NewClient("bedrock", cfg); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
	if _, err := NewClient(ProviderOpenAI, ProviderConfig{}); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestOpenAIClientComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1760000000,
			"model": "gpt-test",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Check the HDMI handshake."}}],
			"usage": {"prompt_tokens": 21, "completion_tokens": 7, "total_tokens": 28}
		}`))
	}))
	defer srv.Close()

	client, errNew := NewOpenAIClient(ProviderConfig{APIKey: "test-key", BaseURL: srv.URL + "/"})
	if errNew != nil {
		t.Fatalf("new client: %v", errNew)
	}
	resp, errComplete := client.Complete(context.Background(), Request{
		Model:     "gpt-test",
		System:    "be brief",
		MaxTokens: 1000,
		Messages: []Message{
			{Role: RoleUser, Content: "no picture"},
			{Role: RoleAssistant, Content: "which input?"},
			{Role: RoleUser, Content: "HDMI 2"},
		},
	})
	if errComplete != nil {
		t.Fatalf("complete: %v", errComplete)
	}
	if resp.Text != "Check the HDMI handshake." || resp.Usage.InputTokens != 21 || resp.Usage.OutputTokens != 7 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Model != "gpt-test" {
		t.Fatalf("unexpected model %q", resp.Model)
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 4 {
		t.Fatalf("expected system plus 3 messages upstream, got %v", got["messages"])
	}
	if first, _ := msgs[0].(map[string]any); first["role"] != "system" {
		t.Fatalf("expected system message first, got %v", msgs[0])
	}
	if got["max_completion_tokens"] != float64(1000) {
		t.Fatalf("max_completion_tokens not forwarded: %v", got["max_completion_tokens"])
	}
}

func TestOpenAIClientWrapsUpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client, _ := NewOpenAIClient(ProviderConfig{APIKey: "k", BaseURL: srv.URL + "/", MaxRetries: 1})
	_, err := client.Complete(context.Background(), Request{Model: "m", MaxTokens: 10, Messages: []Message{{Role: RoleUser, Content: "x"}}})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}
