package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaProvider_Generate(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Stream   bool   `json:"stream"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s, want /api/chat", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"Try a hash map."},"done":true,"done_reason":"stop","prompt_eval_count":12,"eval_count":5}`))
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(OllamaConfig{URL: srv.URL})
	if err != nil {
		t.Fatalf("NewOllamaProvider() error = %v", err)
	}
	resp, err := p.Generate(context.Background(), &Request{
		System:   "be brief",
		Messages: []Message{{Role: RoleUser, Content: "help"}},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if resp.Content != "Try a hash map." || resp.FinishReason != "stop" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 5 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
	if got.Model != DefaultOllamaModel || got.Stream {
		t.Errorf("request model=%q stream=%v", got.Model, got.Stream)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "help" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestOpenAIProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Check the loop bound."},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":20,"completion_tokens":6,"total_tokens":26}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/"})
	resp, err := p.Generate(context.Background(), &Request{
		System:      "mentor",
		Messages:    []Message{{Role: RoleUser, Content: "why?"}},
		MaxTokens:   100,
		Temperature: 0.5,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "Check the loop bound." || resp.Usage.InputTokens != 20 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestClaudeProvider_Generate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude",
			"content":[{"type":"text","text":"Think about "},{"type":"text","text":"complements."}],
			"stop_reason":"end_turn","usage":{"input_tokens":30,"output_tokens":4}}`))
	}))
	defer srv.Close()

	p := NewClaudeProvider(ClaudeConfig{APIKey: "k", BaseURL: srv.URL + "/"})
	resp, err := p.Generate(context.Background(), &Request{
		System:   "mentor",
		Messages: []Message{{Role: RoleUser, Content: "hint please"}},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "Think about complements." {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.FinishReason != "end_turn" || resp.Usage.OutputTokens != 4 {
		t.Errorf("resp = %+v", resp)
	}
	if body["max_tokens"] != float64(1024) {
		t.Errorf("max_tokens = %v, want 1024 default", body["max_tokens"])
	}
}
